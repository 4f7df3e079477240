//go:build (rp2040 || rp2350) && neopixel

package main

import (
	"image/color"
	"machine"

	"tinygo.org/x/drivers/ws2812"

	"wavescope/core"
)

const (
	neopixelPin = machine.GPIO16

	// Refresh at 50 Hz; each write masks interrupts for about 30us
	refreshUs = 20000

	maxLevel = 32
)

// heartbeat shows the waveform on a WS2812 pixel: green follows the sine,
// red follows the interrupt's CPU load
type heartbeat struct {
	dev    ws2812.Device
	last   uint64
	pixels [1]color.RGBA
}

func newHeartbeat() *heartbeat {
	neopixelPin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	return &heartbeat{dev: ws2812.New(neopixelPin)}
}

func (h *heartbeat) Update(sig *core.Signals) {
	now := GetHardwareUptime()
	if now-h.last < refreshUs {
		return
	}
	h.last = now

	load := sig.CPULoadPercent
	if load < 0 {
		load = 0
	} else if load > 100 {
		load = 100
	}
	h.pixels[0] = color.RGBA{
		R: uint8(load * maxLevel / 100),
		G: uint8((sig.SineValue + 1) * maxLevel / 2),
	}
	_ = h.dev.WriteColors(h.pixels[:])
}
