//go:build (rp2040 || rp2350) && !neopixel

package main

import (
	"testing"
	"time"

	pio "github.com/tinygo-org/pio/rp2-pio"
)

func TestPulsePeriodFitsClockDivider(t *testing.T) {
	// Pulsar.SetPeriod divides by four: one pulse is four PIO instructions
	for _, cpuHz := range []uint32{125000000, 133000000, 150000000, 200000000} {
		whole, _, err := pio.ClkDivFromPeriod(uint32(pulsePeriod/4), cpuHz)
		if err != nil {
			t.Errorf("%d Hz: %v", cpuHz, err)
			continue
		}
		if whole == 0 {
			t.Errorf("%d Hz: zero clock divider", cpuHz)
		}
	}
}

func TestFlashIsVisible(t *testing.T) {
	flash := pulsePeriod * flashPulses
	if flash < 50*time.Millisecond {
		t.Errorf("Flash of %v is too short to see", flash)
	}
}
