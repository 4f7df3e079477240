//go:build rp2040 || rp2350

package main

import (
	"machine"
)

// InitUSB configures the USB CDC port the host scope talks to.
// machine.Serial is USB CDC on both chips; the descriptors come from the
// TinyGo runtime.
func InitUSB() {
	_ = machine.Serial.Configure(machine.UARTConfig{})
}

// usbLink is the telemetry link over machine.Serial
type usbLink struct{}

func (usbLink) Buffered() int {
	return machine.Serial.Buffered()
}

func (usbLink) ReadByte() (byte, error) {
	return machine.Serial.ReadByte()
}

func (usbLink) Write(p []byte) (int, error) {
	return machine.Serial.Write(p)
}
