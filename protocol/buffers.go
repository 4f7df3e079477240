package protocol

// InputBuffer is a source of received bytes that the transport consumes
// from the front
type InputBuffer interface {
	// Data returns the unconsumed bytes
	Data() []byte

	// Available returns the number of unconsumed bytes
	Available() int

	// Pop consumes n bytes from the front
	Pop(n int)
}

// OutputBuffer collects encoded frames
type OutputBuffer interface {
	// Output appends data
	Output(data []byte)

	// CurPosition returns the current write position
	CurPosition() int

	// Update overwrites the byte at pos, used to patch the length byte
	Update(pos int, val byte)

	// DataSince returns everything written from pos to the current position
	DataSince(pos int) []byte

	// Free returns how many more bytes fit
	Free() int
}

// SliceInputBuffer is an InputBuffer over a byte slice
type SliceInputBuffer struct {
	data []byte
}

// NewSliceInputBuffer wraps data
func NewSliceInputBuffer(data []byte) *SliceInputBuffer {
	return &SliceInputBuffer{data: data}
}

// Data returns the unconsumed part of the slice
func (s *SliceInputBuffer) Data() []byte {
	return s.data
}

// Available returns the number of unconsumed bytes
func (s *SliceInputBuffer) Available() int {
	return len(s.data)
}

// Pop consumes n bytes, or everything if fewer remain
func (s *SliceInputBuffer) Pop(n int) {
	if n > len(s.data) {
		n = len(s.data)
	}
	s.data = s.data[n:]
}

// ScratchOutput is a fixed-size OutputBuffer. Writes past MessageMax are
// truncated.
type ScratchOutput struct {
	buf [MessageMax]byte
	pos int
}

// NewScratchOutput creates an empty ScratchOutput
func NewScratchOutput() *ScratchOutput {
	return &ScratchOutput{}
}

// Output appends data, silently dropping what does not fit
func (s *ScratchOutput) Output(data []byte) {
	s.pos += copy(s.buf[s.pos:], data)
}

// CurPosition returns the current write position
func (s *ScratchOutput) CurPosition() int {
	return s.pos
}

// Update overwrites the byte at pos
func (s *ScratchOutput) Update(pos int, val byte) {
	if pos < len(s.buf) {
		s.buf[pos] = val
	}
}

// DataSince returns the bytes written since pos
func (s *ScratchOutput) DataSince(pos int) []byte {
	if pos > s.pos {
		return nil
	}
	return s.buf[pos:s.pos]
}

// Free returns the bytes left before output is truncated
func (s *ScratchOutput) Free() int {
	return len(s.buf) - s.pos
}

// Discard drops the first n bytes, keeping the rest for a later write
func (s *ScratchOutput) Discard(n int) {
	if n >= s.pos {
		s.pos = 0
		return
	}
	copy(s.buf[:], s.buf[n:s.pos])
	s.pos -= n
}

// Result returns the accumulated output
func (s *ScratchOutput) Result() []byte {
	return s.buf[:s.pos]
}

// Reset discards the accumulated output
func (s *ScratchOutput) Reset() {
	s.pos = 0
}

// FifoBuffer is a byte ring for link input. One slot stays empty to tell
// full from empty.
type FifoBuffer struct {
	buf   []byte
	read  int
	write int
	size  int
}

// NewFifoBuffer creates a FifoBuffer holding capacity-1 bytes
func NewFifoBuffer(capacity int) *FifoBuffer {
	return &FifoBuffer{
		buf:  make([]byte, capacity),
		size: capacity,
	}
}

// Write appends as much of data as fits and returns the count written
func (f *FifoBuffer) Write(data []byte) int {
	written := 0
	for _, b := range data {
		next := (f.write + 1) % f.size
		if next == f.read {
			break
		}
		f.buf[f.write] = b
		f.write = next
		written++
	}
	return written
}

// Read moves up to len(data) bytes out of the ring
func (f *FifoBuffer) Read(data []byte) int {
	n := 0
	for i := range data {
		if f.read == f.write {
			break
		}
		data[i] = f.buf[f.read]
		f.read = (f.read + 1) % f.size
		n++
	}
	return n
}

// Available returns the number of buffered bytes
func (f *FifoBuffer) Available() int {
	if f.write >= f.read {
		return f.write - f.read
	}
	return f.size - f.read + f.write
}

// Free returns the room left for writing
func (f *FifoBuffer) Free() int {
	return f.size - f.Available() - 1
}

// Data returns the buffered bytes as one slice, copying when the content
// wraps around the end of the ring
func (f *FifoBuffer) Data() []byte {
	if f.read <= f.write {
		return f.buf[f.read:f.write]
	}
	result := make([]byte, f.Available())
	n := copy(result, f.buf[f.read:])
	copy(result[n:], f.buf[:f.write])
	return result
}

// Pop drops n bytes from the front
func (f *FifoBuffer) Pop(n int) {
	if n > f.Available() {
		n = f.Available()
	}
	f.read = (f.read + n) % f.size
}

// IsEmpty reports whether nothing is buffered
func (f *FifoBuffer) IsEmpty() bool {
	return f.read == f.write
}

// Reset empties the ring
func (f *FifoBuffer) Reset() {
	f.read = 0
	f.write = 0
}
