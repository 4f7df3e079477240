//go:build (rp2040 || rp2350) && !neopixel

package main

import (
	"machine"
	"time"

	pio "github.com/tinygo-org/pio/rp2-pio"
	"github.com/tinygo-org/pio/rp2-pio/piolib"

	"wavescope/core"
)

// A flash is a burst of short pulses: the PIO clock divider tops out near
// 2ms per pulse at these clock rates, far below a visible blink.
const (
	pulsePeriod = time.Millisecond
	flashPulses = 100 // 100ms of 1kHz pulses, seen as one dimmed flash
)

// heartbeat flashes the on-board LED once per waveform cycle. A PIO
// state machine times the flash so the idle loop only queues it.
type heartbeat struct {
	pulsar     *piolib.Pulsar
	lastCycles uint32
}

func newHeartbeat() *heartbeat {
	sm, err := pio.PIO0.ClaimStateMachine()
	if err != nil {
		core.DebugPrintln("[LED] no free state machine: " + err.Error())
		return &heartbeat{}
	}
	pulsar, err := piolib.NewPulsar(sm, machine.LED)
	if err != nil {
		core.DebugPrintln("[LED] pulsar init failed: " + err.Error())
		return &heartbeat{}
	}
	if err := pulsar.SetPeriod(pulsePeriod); err != nil {
		// At the default divider every pulse is nanoseconds long
		core.DebugPrintln("[LED] pulsar period: " + err.Error())
		return &heartbeat{}
	}
	return &heartbeat{pulsar: pulsar}
}

// Update queues a flash when the waveform completed another cycle
func (h *heartbeat) Update(sig *core.Signals) {
	if h.pulsar == nil || sig.WaveformCycles == h.lastCycles {
		return
	}
	h.lastCycles = sig.WaveformCycles
	// Faster waveforms than the flash rate just fill the queue
	_ = h.pulsar.TryQueue(flashPulses)
}
