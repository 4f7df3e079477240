//go:build rp2040 || rp2350

package main

import (
	"machine"
	"runtime/volatile"
	"unsafe"

	"wavescope/core"
)

// RP2040/RP2350 Timer peripheral memory map
const (
	timerBase     = 0x40054000
	timerTIMERAWH = timerBase + 0x08 // Raw timer high word
	timerTIMERAWL = timerBase + 0x0C // Raw timer low word
)

var (
	timerRAWH = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWH)))
	timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))
)

// cpuClock reports the system clock that drives SysTick
type cpuClock struct{}

func (cpuClock) InstructionFrequency() uint32 {
	return machine.CPUFrequency()
}

// registerClockConstants publishes the MCU identity for the host
func registerClockConstants(dict *core.Dictionary) {
	dict.AddConstant("MCU", mcuName)
	dict.AddConstant("CLOCK_FREQ", machine.CPUFrequency())
}

// GetHardwareUptime reads the free-running 1MHz timer, which keeps going
// while SysTick is reprogrammed
func GetHardwareUptime() uint64 {
	// Read high, low, high to detect a rollover between the two words
	for {
		high1 := timerRAWH.Get()
		low := timerRAWL.Get()
		high2 := timerRAWH.Get()
		if high1 == high2 {
			return (uint64(high1) << 32) | uint64(low)
		}
	}
}
