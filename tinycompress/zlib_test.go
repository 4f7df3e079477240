package tinycompress

import (
	"bytes"
	"compress/zlib"
	"io"
	"testing"
)

func compress(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	return buf.Bytes()
}

func TestWriterIsStandardZlib(t *testing.T) {
	input := []byte(`{"version":"wavescope-0.1.0","config":{"SAMPLE_RATE":"1000.000"}}`)
	stream := compress(t, input)

	if !IsZlib(stream) {
		t.Fatal("Missing zlib header")
	}

	r, err := zlib.NewReader(bytes.NewReader(stream))
	if err != nil {
		t.Fatalf("compress/zlib rejected the header: %v", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("compress/zlib rejected the stream: %v", err)
	}
	if !bytes.Equal(out, input) {
		t.Errorf("Got %q, want %q", out, input)
	}
}

func TestInflate(t *testing.T) {
	input := bytes.Repeat([]byte("sine cosine atan2 "), 50)
	out, err := Inflate(compress(t, input))
	if err != nil {
		t.Fatalf("Inflate failed: %v", err)
	}
	if !bytes.Equal(out, input) {
		t.Error("Inflate did not return the input")
	}

	empty, err := Inflate(compress(t, nil))
	if err != nil || len(empty) != 0 {
		t.Errorf("Expected empty output, got %v (%v)", empty, err)
	}
}

func TestInflateStandardStoredBlocks(t *testing.T) {
	input := bytes.Repeat([]byte{0xAA, 0x55}, 40000)
	var buf bytes.Buffer
	w, _ := zlib.NewWriterLevel(&buf, zlib.NoCompression)
	w.Write(input)
	w.Close()

	out, err := Inflate(buf.Bytes())
	if err != nil {
		t.Fatalf("Inflate failed on multi-block stream: %v", err)
	}
	if !bytes.Equal(out, input) {
		t.Error("Multi-block output differs")
	}
}

func TestInflateErrors(t *testing.T) {
	good := compress(t, []byte("payload"))

	badSum := append([]byte(nil), good...)
	badSum[len(badSum)-1] ^= 0xFF
	if _, err := Inflate(badSum); err != ErrChecksum {
		t.Errorf("Expected ErrChecksum, got %v", err)
	}

	badLen := append([]byte(nil), good...)
	badLen[5] ^= 0xFF
	if _, err := Inflate(badLen); err != ErrBlock {
		t.Errorf("Expected ErrBlock, got %v", err)
	}

	if _, err := Inflate([]byte{0x1F, 0x8B, 0, 0}); err != ErrHeader {
		t.Errorf("Expected ErrHeader, got %v", err)
	}

	var deflated bytes.Buffer
	w := zlib.NewWriter(&deflated)
	w.Write(bytes.Repeat([]byte("abc"), 100))
	w.Close()
	if _, err := Inflate(deflated.Bytes()); err != ErrBlock {
		t.Errorf("Expected ErrBlock for a compressed block, got %v", err)
	}
}

func TestWriterTooLarge(t *testing.T) {
	w := NewWriter(io.Discard)
	if _, err := w.Write(make([]byte, maxStoredBlock+1)); err != ErrTooLarge {
		t.Errorf("Expected ErrTooLarge, got %v", err)
	}
}
