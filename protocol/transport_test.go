package protocol

import (
	"errors"
	"net"
	"testing"
	"time"
)

// hostFrame builds a host-to-firmware frame the way HostTransport does
func hostFrame(seq uint8, cmdID uint16, args func(OutputBuffer)) []byte {
	scratch := NewScratchOutput()
	EncodeVLQUint(scratch, uint32(cmdID))
	if args != nil {
		args(scratch)
	}
	payload := scratch.Result()
	frame := append([]byte{uint8(MessageLengthMin + len(payload)), seq}, payload...)
	return appendTrailer(frame)
}

// splitFrames validates and splits transport output into payloads
func splitFrames(t *testing.T, data []byte) []Message {
	t.Helper()
	var msgs []Message
	for len(data) > 0 {
		msgLen, status := scanFrame(data)
		if status != frameOK {
			t.Fatalf("invalid frame in output %v", data)
		}
		msgs = append(msgs, Message{
			Length:   data[0],
			Sequence: data[1],
			Payload:  data[MessageHeaderSize : msgLen-MessageTrailerSize],
		})
		data = data[msgLen:]
	}
	return msgs
}

func TestTransportDispatchAndAck(t *testing.T) {
	output := NewScratchOutput()
	var gotID uint16
	var gotArg uint32
	tr := NewTransport(output, func(cmdID uint16, data *[]byte) error {
		gotID = cmdID
		v, err := DecodeVLQUint(data)
		gotArg = v
		return err
	})

	in := NewSliceInputBuffer(hostFrame(MessageDest, 7, func(o OutputBuffer) {
		EncodeVLQUint(o, 4242)
	}))
	tr.Receive(in)

	if gotID != 7 || gotArg != 4242 {
		t.Errorf("Expected command 7 with 4242, got %d with %d", gotID, gotArg)
	}
	if in.Available() != 0 {
		t.Errorf("Expected frame consumed, %d bytes left", in.Available())
	}

	msgs := splitFrames(t, output.Result())
	if len(msgs) != 1 || len(msgs[0].Payload) != 0 {
		t.Fatalf("Expected a single ACK, got %+v", msgs)
	}
	if msgs[0].Sequence != MessageDest+1 {
		t.Errorf("ACK should carry next sequence 0x11, got 0x%02x", msgs[0].Sequence)
	}
}

func TestTransportPartialFrame(t *testing.T) {
	output := NewScratchOutput()
	calls := 0
	tr := NewTransport(output, func(cmdID uint16, data *[]byte) error {
		calls++
		return nil
	})

	frame := hostFrame(MessageDest, 3, nil)
	fifo := NewFifoBuffer(64)
	fifo.Write(frame[:3])

	in := NewSliceInputBuffer(fifo.Data())
	tr.Receive(in)
	if calls != 0 || in.Available() != 3 {
		t.Fatalf("Partial frame should wait: calls=%d left=%d", calls, in.Available())
	}

	fifo.Write(frame[3:])
	tr.Receive(NewSliceInputBuffer(fifo.Data()))
	if calls != 1 {
		t.Errorf("Expected one dispatch after completing the frame, got %d", calls)
	}
}

func TestTransportResyncAfterCorruption(t *testing.T) {
	output := NewScratchOutput()
	calls := 0
	tr := NewTransport(output, func(cmdID uint16, data *[]byte) error {
		calls++
		return nil
	})

	bad := hostFrame(MessageDest, 3, nil)
	bad[2] ^= 0xFF // break the CRC
	good := hostFrame(MessageDest, 3, nil)

	tr.Receive(NewSliceInputBuffer(append(bad, good...)))
	if calls != 1 {
		t.Errorf("Expected the good frame dispatched after resync, got %d calls", calls)
	}
	if !tr.IsSynchronized() {
		t.Error("Transport should be synchronized again")
	}
}

func TestTransportHandlerError(t *testing.T) {
	output := NewScratchOutput()
	var failed uint16
	tr := NewTransport(output, func(cmdID uint16, data *[]byte) error {
		return errors.New("boom")
	})
	tr.SetErrorCallback(func(cmdID uint16, err error) { failed = cmdID })

	tr.Receive(NewSliceInputBuffer(hostFrame(MessageDest, 9, nil)))
	if failed != 9 {
		t.Errorf("Expected error callback for command 9, got %d", failed)
	}
	if !tr.IsSynchronized() {
		t.Error("Handler errors must not desynchronize the link")
	}
}

func TestTransportHostReset(t *testing.T) {
	output := NewScratchOutput()
	resets := 0
	tr := NewTransport(output, func(cmdID uint16, data *[]byte) error { return nil })
	tr.SetResetCallback(func() { resets++ })

	tr.Receive(NewSliceInputBuffer(hostFrame(MessageDest, 1, nil)))
	tr.Receive(NewSliceInputBuffer(hostFrame(MessageDest, 1, nil)))
	if resets != 1 {
		t.Errorf("Expected one reset when the host restarts its sequence, got %d", resets)
	}
}

func TestSendCommandFrame(t *testing.T) {
	output := NewScratchOutput()
	tr := NewTransport(output, nil)
	tr.SendCommand(5, func(o OutputBuffer) { EncodeVLQFloat(o, 1.5) })

	msgs := splitFrames(t, output.Result())
	if len(msgs) != 1 {
		t.Fatalf("Expected one frame, got %d", len(msgs))
	}
	payload := msgs[0].Payload
	id, _ := DecodeVLQUint(&payload)
	f, _ := DecodeVLQFloat(&payload)
	if id != 5 || f != 1.5 {
		t.Errorf("Expected command 5 with 1.5, got %d with %v", id, f)
	}
}

// TestHostTransportRoundTrip runs both ends over an in-memory pipe
func TestHostTransportRoundTrip(t *testing.T) {
	hostEnd, mcuEnd := net.Pipe()

	output := NewScratchOutput()
	var fw *Transport
	fw = NewTransport(output, func(cmdID uint16, data *[]byte) error {
		v, err := DecodeVLQUint(data)
		if err != nil {
			return err
		}
		fw.SendCommand(0, func(o OutputBuffer) { EncodeVLQUint(o, v*2) })
		return nil
	})

	go func() {
		buf := make([]byte, 128)
		fifo := NewFifoBuffer(256)
		for {
			n, err := mcuEnd.Read(buf)
			if err != nil {
				return
			}
			fifo.Write(buf[:n])
			in := NewSliceInputBuffer(fifo.Data())
			before := in.Available()
			fw.Receive(in)
			fifo.Pop(before - in.Available())
			if out := output.Result(); len(out) > 0 {
				if _, err := mcuEnd.Write(append([]byte(nil), out...)); err != nil {
					return
				}
				output.Reset()
			}
		}
	}()

	host := NewHostTransport(hostEnd)
	defer func() {
		host.Close()
		mcuEnd.Close()
	}()

	for i := uint32(1); i <= 3; i++ {
		if err := host.SendCommand(1, func(o OutputBuffer) { EncodeVLQUint(o, i) }); err != nil {
			t.Fatalf("SendCommand %d: %v", i, err)
		}
		resp, err := host.ReceiveResponse(time.Second)
		if err != nil {
			t.Fatalf("ReceiveResponse %d: %v", i, err)
		}
		payload := resp.Payload
		id, _ := DecodeVLQUint(&payload)
		v, _ := DecodeVLQUint(&payload)
		if id != 0 || v != i*2 {
			t.Errorf("Expected response 0 with %d, got %d with %d", i*2, id, v)
		}
	}

	if seq := host.GetCurrentSequence(); seq != MessageDest+3 {
		t.Errorf("Expected host sequence 0x13, got 0x%02x", seq)
	}
}

func TestTransportHoldsFramesWithoutRoom(t *testing.T) {
	output := NewScratchOutput()
	tr := NewTransport(output, nil)

	// Fill the scratch buffer until a reply and its ACK no longer fit
	output.Output(make([]byte, output.Free()-replyRoom+1))
	before := output.CurPosition()

	frame := hostFrame(MessageDest, 7, nil)
	in := NewSliceInputBuffer(frame)
	tr.Receive(in)

	if in.Available() != len(frame) {
		t.Errorf("Expected the frame to stay queued, %d of %d bytes left", in.Available(), len(frame))
	}
	if output.CurPosition() != before {
		t.Errorf("Expected no output, wrote %d bytes", output.CurPosition()-before)
	}

	// Once the output drains the frame is served
	output.Reset()
	tr.Receive(in)
	if in.Available() != 0 {
		t.Errorf("Expected the frame consumed after the flush, %d bytes left", in.Available())
	}
	if msgs := splitFrames(t, output.Result()); len(msgs) != 1 {
		t.Errorf("Expected one ACK, got %d frames", len(msgs))
	}
}

func TestTransportDropsFrameThatDoesNotFit(t *testing.T) {
	output := NewScratchOutput()
	tr := NewTransport(output, nil)
	output.Output(make([]byte, output.Free()-MessageLengthMax+1))
	before := output.CurPosition()

	if tr.SendCommand(9, nil) {
		t.Error("Expected SendCommand to refuse a frame without room")
	}
	if output.CurPosition() != before {
		t.Errorf("A refused frame must not write anything, wrote %d bytes", output.CurPosition()-before)
	}
	if tr.Dropped() != 1 {
		t.Errorf("Expected 1 dropped frame, got %d", tr.Dropped())
	}
}

func TestTransportFlushesAfterAck(t *testing.T) {
	output := NewScratchOutput()
	var flushed [][]byte
	tr := NewTransport(output, func(cmdID uint16, data *[]byte) error {
		return nil
	})
	tr.SetFlushCallback(func() {
		flushed = append(flushed, append([]byte(nil), output.Result()...))
		output.Reset()
	})

	frames := append(hostFrame(MessageDest, 7, nil), hostFrame(MessageDest+1, 7, nil)...)
	tr.Receive(NewSliceInputBuffer(frames))

	if len(flushed) != 2 {
		t.Fatalf("Expected a flush per ACK, got %d", len(flushed))
	}
	for i, data := range flushed {
		msgs := splitFrames(t, data)
		if len(msgs) != 1 || msgs[0].Sequence != MessageDest+uint8(i)+1 {
			t.Errorf("Flush %d: expected ACK 0x%02x, got %+v", i, MessageDest+i+1, msgs)
		}
	}
}
