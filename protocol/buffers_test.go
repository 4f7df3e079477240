package protocol

import "testing"

func TestSliceInputBuffer(t *testing.T) {
	buf := NewSliceInputBuffer([]byte{1, 2, 3, 4, 5})

	if buf.Available() != 5 {
		t.Errorf("Expected 5 bytes available, got %d", buf.Available())
	}

	buf.Pop(2)
	if buf.Available() != 3 {
		t.Errorf("After popping 2, expected 3 bytes available, got %d", buf.Available())
	}
	if buf.Data()[0] != 3 {
		t.Errorf("After popping 2, expected first byte 3, got %d", buf.Data()[0])
	}

	buf.Pop(10)
	if buf.Available() != 0 {
		t.Errorf("Popping past the end should empty the buffer, got %d", buf.Available())
	}
}

func TestScratchOutput(t *testing.T) {
	scratch := NewScratchOutput()
	scratch.Output([]byte{1, 2, 3})
	scratch.Output([]byte{4, 5})

	if scratch.CurPosition() != 5 {
		t.Errorf("Expected position 5, got %d", scratch.CurPosition())
	}

	scratch.Update(0, 99)
	if scratch.Result()[0] != 99 {
		t.Errorf("Expected first byte 99, got %d", scratch.Result()[0])
	}

	since := scratch.DataSince(2)
	if len(since) != 3 || since[0] != 3 {
		t.Errorf("DataSince(2): expected [3 4 5], got %v", since)
	}
	if scratch.DataSince(10) != nil {
		t.Error("DataSince past the end should be nil")
	}

	scratch.Reset()
	if scratch.CurPosition() != 0 || scratch.Free() != MessageMax {
		t.Errorf("After reset: position %d, free %d", scratch.CurPosition(), scratch.Free())
	}
}

func TestScratchOutputTruncates(t *testing.T) {
	scratch := NewScratchOutput()
	scratch.Output(make([]byte, MessageMax+10))
	if scratch.CurPosition() != MessageMax {
		t.Errorf("Expected output truncated at %d, got %d", MessageMax, scratch.CurPosition())
	}
}

func TestFifoBuffer(t *testing.T) {
	fifo := NewFifoBuffer(10)

	if !fifo.IsEmpty() {
		t.Error("New FIFO should be empty")
	}

	if written := fifo.Write([]byte{1, 2, 3, 4, 5}); written != 5 {
		t.Errorf("Expected to write 5 bytes, wrote %d", written)
	}

	readBuf := make([]byte, 3)
	if n := fifo.Read(readBuf); n != 3 {
		t.Errorf("Expected to read 3 bytes, read %d", n)
	}
	if readBuf[0] != 1 || readBuf[1] != 2 || readBuf[2] != 3 {
		t.Errorf("Read data mismatch: got %v", readBuf)
	}

	fifo.Pop(1)
	if fifo.Available() != 1 {
		t.Errorf("After popping 1, expected 1 available, got %d", fifo.Available())
	}

	fifo.Reset()
	if written := fifo.Write(make([]byte, 12)); written != 9 {
		t.Errorf("Expected to write 9 bytes to size-10 FIFO, wrote %d", written)
	}
	if fifo.Free() != 0 {
		t.Errorf("Full FIFO should have no free space, got %d", fifo.Free())
	}
}

func TestFifoBufferWrapAround(t *testing.T) {
	fifo := NewFifoBuffer(5)

	fifo.Write([]byte{1, 2, 3, 4})
	fifo.Read(make([]byte, 2))

	if written := fifo.Write([]byte{5, 6}); written != 2 {
		t.Errorf("Expected to write 2 bytes, wrote %d", written)
	}

	data := fifo.Data()
	if len(data) != 4 || data[0] != 3 || data[3] != 6 {
		t.Errorf("Wrapped Data() mismatch: got %v", data)
	}

	fifo.Pop(3)
	if fifo.Available() != 1 || fifo.Data()[0] != 6 {
		t.Errorf("After wrapped pop expected [6], got %v", fifo.Data())
	}
}

func TestScratchOutputDiscard(t *testing.T) {
	scratch := NewScratchOutput()
	scratch.Output([]byte{1, 2, 3, 4})

	scratch.Discard(3)
	if got := scratch.Result(); len(got) != 1 || got[0] != 4 {
		t.Errorf("After Discard(3) expected [4], got %v", got)
	}

	scratch.Discard(5)
	if scratch.CurPosition() != 0 {
		t.Errorf("Discard past the end should empty the buffer, got %d", scratch.CurPosition())
	}
}
