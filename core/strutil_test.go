package core

import "testing"

func TestItoa(t *testing.T) {
	tests := map[int]string{
		0:     "0",
		7:     "7",
		-42:   "-42",
		65535: "65535",
	}
	for in, want := range tests {
		if got := Itoa(in); got != want {
			t.Errorf("Itoa(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestFtoa(t *testing.T) {
	tests := []struct {
		in       float32
		decimals int
		want     string
	}{
		{0, 3, "0.000"},
		{1000, 3, "1000.000"},
		{0.0062832, 4, "0.0063"},
		{-2.5, 1, "-2.5"},
		{99.96, 1, "100.0"},
		{3.7, 0, "4"},
		{1, 9, "1.000000"},
	}
	for _, tt := range tests {
		if got := Ftoa(tt.in, tt.decimals); got != tt.want {
			t.Errorf("Ftoa(%v, %d) = %q, want %q", tt.in, tt.decimals, got, tt.want)
		}
	}

	nan := float32(0)
	nan = nan / nan
	if got := Ftoa(nan, 2); got != "NaN" {
		t.Errorf("Ftoa(NaN) = %q", got)
	}
}

func TestValueToString(t *testing.T) {
	if got := valueToString(uint32(125000000)); got != "125000000" {
		t.Errorf("uint32: got %q", got)
	}
	if got := valueToString(int32(-3)); got != "-3" {
		t.Errorf("int32: got %q", got)
	}
	if got := valueToString(struct{}{}); got != "" {
		t.Errorf("unsupported type: got %q", got)
	}
}

func TestUtoaFullRange(t *testing.T) {
	tests := map[uint32]string{
		0:          "0",
		2147483648: "2147483648",
		4294967295: "4294967295",
	}
	for in, want := range tests {
		if got := Utoa(in); got != want {
			t.Errorf("Utoa(%d) = %q, want %q", in, got, want)
		}
	}
}
