// Package tinycompress writes and reads zlib streams made of stored
// (uncompressed) DEFLATE blocks. The output is valid zlib, so any standard
// inflater accepts it, while the firmware side needs no compressor tables.
package tinycompress

import (
	"errors"
	"hash/adler32"
	"io"
)

const (
	zlibCMF = 0x78
	zlibFLG = 0x9C

	maxStoredBlock = 0xFFFF
)

var (
	ErrHeader   = errors.New("tinycompress: invalid zlib header")
	ErrBlock    = errors.New("tinycompress: unsupported or corrupt block")
	ErrChecksum = errors.New("tinycompress: adler32 mismatch")
	ErrTooLarge = errors.New("tinycompress: input exceeds one stored block")
)

// Writer buffers everything written to it and emits a single stored block
// on Close
type Writer struct {
	output   io.Writer
	inputBuf []byte
}

// NewWriter creates a zlib Writer. The buffer is preallocated so Write does
// not reallocate for typical dictionary sizes.
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		output:   w,
		inputBuf: make([]byte, 0, 4096),
	}
}

// Write implements io.Writer
func (w *Writer) Write(p []byte) (int, error) {
	if len(w.inputBuf)+len(p) > maxStoredBlock {
		return 0, ErrTooLarge
	}
	w.inputBuf = append(w.inputBuf, p...)
	return len(p), nil
}

// Close writes header, block and checksum to the underlying writer
func (w *Writer) Close() error {
	length := uint16(len(w.inputBuf))
	nlength := ^length
	checksum := adler32.Checksum(w.inputBuf)

	header := []byte{
		zlibCMF, zlibFLG,
		0x01, // final stored block
		byte(length), byte(length >> 8),
		byte(nlength), byte(nlength >> 8),
	}
	if _, err := w.output.Write(header); err != nil {
		return err
	}
	if _, err := w.output.Write(w.inputBuf); err != nil {
		return err
	}
	_, err := w.output.Write([]byte{
		byte(checksum >> 24),
		byte(checksum >> 16),
		byte(checksum >> 8),
		byte(checksum),
	})
	return err
}

// IsZlib reports whether data starts with the zlib header this package writes
func IsZlib(data []byte) bool {
	return len(data) >= 2 && data[0] == zlibCMF
}

// Inflate decodes a zlib stream of stored blocks
func Inflate(compressed []byte) ([]byte, error) {
	if len(compressed) < 2+5+4 || compressed[0] != zlibCMF {
		return nil, ErrHeader
	}
	pos := 2
	end := len(compressed) - 4
	out := make([]byte, 0, len(compressed))

	for {
		if pos+5 > end {
			return nil, ErrBlock
		}
		blockHeader := compressed[pos]
		if (blockHeader>>1)&0x03 != 0 {
			return nil, ErrBlock
		}
		length := int(compressed[pos+1]) | int(compressed[pos+2])<<8
		nlength := int(compressed[pos+3]) | int(compressed[pos+4])<<8
		pos += 5
		if length != (^nlength & 0xFFFF) {
			return nil, ErrBlock
		}
		if pos+length > end {
			return nil, ErrBlock
		}
		out = append(out, compressed[pos:pos+length]...)
		pos += length

		if blockHeader&0x01 != 0 {
			break
		}
	}

	if pos != end {
		return nil, ErrBlock
	}
	expected := uint32(compressed[pos])<<24 |
		uint32(compressed[pos+1])<<16 |
		uint32(compressed[pos+2])<<8 |
		uint32(compressed[pos+3])
	if adler32.Checksum(out) != expected {
		return nil, ErrChecksum
	}
	return out, nil
}
