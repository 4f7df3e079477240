// Package capture records streamed signal samples to CSV for offline
// plotting.
package capture

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"wavescope/core"
)

// Writer appends one row per sample. Rows are buffered; call Flush
// periodically and Close at the end.
type Writer struct {
	mu    sync.Mutex
	file  io.Closer
	buf   *bufio.Writer
	csv   *csv.Writer
	rows  uint64
	start time.Time
}

// Header is the CSV header: host time, then every signal in wire order
func Header() []string {
	return append([]string{"host_time_s"}, core.SignalNames...)
}

// Create opens path for writing and writes the header row
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv create %s: %w", path, err)
	}
	w, err := NewWriter(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.file = f
	return w, nil
}

// NewWriter writes CSV to out. Close does not close out.
func NewWriter(out io.Writer) (*Writer, error) {
	bw := bufio.NewWriterSize(out, 64*1024)
	w := &Writer{
		buf:   bw,
		csv:   csv.NewWriter(bw),
		start: time.Now(),
	}
	if err := w.csv.Write(Header()); err != nil {
		return nil, fmt.Errorf("csv write header: %w", err)
	}
	return w, nil
}

// WriteSample appends a sample stamped with the time since the writer
// was created
func (w *Writer) WriteSample(sig *core.Signals) error {
	row := make([]string, 0, 1+len(core.SignalNames))
	row = append(row, strconv.FormatFloat(time.Since(w.start).Seconds(), 'f', 6, 64))
	for _, f := range sig.Floats() {
		row = append(row, strconv.FormatFloat(float64(f), 'g', -1, 32))
	}
	for _, c := range sig.Counters() {
		row = append(row, strconv.FormatUint(uint64(c), 10))
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.rows++
	return w.csv.Write(row)
}

// Rows returns the number of samples written
func (w *Writer) Rows() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rows
}

// Flush pushes buffered rows to the underlying writer
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return err
	}
	return w.buf.Flush()
}

// Close flushes and closes the file opened by Create
func (w *Writer) Close() error {
	err := w.Flush()
	if w.file != nil {
		if cerr := w.file.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
