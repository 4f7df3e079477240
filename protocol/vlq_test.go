package protocol

import (
	"math"
	"testing"
)

func TestVLQEncodeDecodeInt(t *testing.T) {
	testCases := []int32{
		0, 1, -1, 31, -32, 95, 96, 127, -127, 128, -128,
		1000, -1000, 65535, -65535, 1000000, -1000000,
		math.MaxInt32, math.MinInt32,
	}

	for _, expected := range testCases {
		output := NewScratchOutput()
		EncodeVLQInt(output, expected)
		encoded := output.Result()

		data := encoded
		decoded, err := DecodeVLQInt(&data)
		if err != nil {
			t.Errorf("Failed to decode VLQ for value %d: %v", expected, err)
			continue
		}
		if decoded != expected {
			t.Errorf("VLQ mismatch: expected %d, got %d (encoded as %v)", expected, decoded, encoded)
		}
		if len(data) != 0 {
			t.Errorf("VLQ decode left %d bytes for value %d", len(data), expected)
		}
	}
}

func TestVLQEncodedLength(t *testing.T) {
	testCases := []struct {
		value int32
		size  int
	}{
		{0, 1},
		{95, 1},
		{-32, 1},
		{96, 2},
		{-33, 2},
		{12287, 2},
		{12288, 3},
		{math.MaxInt32, 5},
	}

	for _, tc := range testCases {
		if got := len(EncodeVLQ(tc.value)); got != tc.size {
			t.Errorf("EncodeVLQ(%d) produced %d bytes, expected %d", tc.value, got, tc.size)
		}
	}
}

func TestVLQEncodeDecodeUint(t *testing.T) {
	testCases := []uint32{0, 1, 127, 128, 255, 1000, 65535, 1000000, 0x3F800000, 0xFFFFFFFF}

	for _, expected := range testCases {
		output := NewScratchOutput()
		EncodeVLQUint(output, expected)

		data := output.Result()
		decoded, err := DecodeVLQUint(&data)
		if err != nil {
			t.Errorf("Failed to decode VLQ for value %d: %v", expected, err)
			continue
		}
		if decoded != expected {
			t.Errorf("VLQ mismatch: expected %d, got %d", expected, decoded)
		}
	}
}

func TestVLQFloat(t *testing.T) {
	testCases := []float32{0, 1, -1, 0.0062832, 6.2831853, 1000, -3.1415927, 1e-9}

	output := NewScratchOutput()
	for _, f := range testCases {
		EncodeVLQFloat(output, f)
	}

	data := output.Result()
	for _, expected := range testCases {
		got, err := DecodeVLQFloat(&data)
		if err != nil {
			t.Fatalf("Failed to decode float %v: %v", expected, err)
		}
		if got != expected {
			t.Errorf("Float mismatch: expected %v, got %v", expected, got)
		}
	}
	if len(data) != 0 {
		t.Errorf("Expected all bytes consumed, %d left", len(data))
	}
}

func TestVLQBytes(t *testing.T) {
	testCases := [][]byte{
		{},
		{0x01},
		{0x01, 0x02, 0x03},
		{0xFF, 0xFE, 0xFD},
		make([]byte, 50),
	}

	for i, expected := range testCases {
		output := NewScratchOutput()
		EncodeVLQBytes(output, expected)

		data := output.Result()
		decoded, err := DecodeVLQBytes(&data)
		if err != nil {
			t.Errorf("Test case %d: Failed to decode bytes: %v", i, err)
			continue
		}
		if string(decoded) != string(expected) {
			t.Errorf("Test case %d: expected %v, got %v", i, expected, decoded)
		}
	}
}

func TestVLQBufferTooSmall(t *testing.T) {
	data := []byte{0x80}
	if _, err := DecodeVLQInt(&data); err != ErrBufferTooSmall {
		t.Errorf("Expected ErrBufferTooSmall, got %v", err)
	}

	empty := []byte{}
	if _, err := DecodeVLQInt(&empty); err != ErrBufferTooSmall {
		t.Errorf("Expected ErrBufferTooSmall on empty input, got %v", err)
	}

	short := []byte{0x05, 0x01}
	if _, err := DecodeVLQBytes(&short); err != ErrBufferTooSmall {
		t.Errorf("Expected ErrBufferTooSmall for truncated bytes, got %v", err)
	}
}

func TestVLQTooLong(t *testing.T) {
	data := []byte{0x81, 0x81, 0x81, 0x81, 0x81, 0x01}
	if _, err := DecodeVLQInt(&data); err != ErrInvalidVLQ {
		t.Errorf("Expected ErrInvalidVLQ, got %v", err)
	}
}
