package capture

import (
	"bytes"
	"encoding/csv"
	"testing"

	"wavescope/core"
)

func TestWriteSamples(t *testing.T) {
	var out bytes.Buffer
	w, err := NewWriter(&out)
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}

	var sig core.Signals
	sig.Reset()
	sig.SineValue = 0.5
	sig.SampleCounter = 42
	if err := w.WriteSample(&sig); err != nil {
		t.Fatalf("WriteSample failed: %v", err)
	}
	sig.SampleCounter = 43
	w.WriteSample(&sig)
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	records, err := csv.NewReader(&out).ReadAll()
	if err != nil {
		t.Fatalf("Output is not valid CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected header and 2 rows, got %d records", len(records))
	}
	if len(records[0]) != len(core.SignalNames)+1 || records[0][2] != "sine_value" {
		t.Errorf("Unexpected header %v", records[0])
	}

	row := records[1]
	if row[2] != "0.5" || row[3] != "1" {
		t.Errorf("Expected sine 0.5 and cosine 1, got %v", row[1:4])
	}
	if row[1+core.FloatSignalCount] != "42" {
		t.Errorf("Expected sample_counter 42, got %s", row[1+core.FloatSignalCount])
	}
	if w.Rows() != 2 {
		t.Errorf("Expected 2 rows, got %d", w.Rows())
	}
}
