//go:build rp2040 || rp2350

package main

import (
	"device/arm"
	"errors"
	"machine"
)

// One waveform sample per millisecond
const sampleRateHz = 1000

var errTimerRange = errors.New("sample period does not fit SysTick")

// SYST_CSR.COUNTFLAG: set when the counter reloads, cleared by reading CSR
const systCSRCountFlag = 1 << 16

// sysTick exposes the SysTick down-counter as an up-counting TickCounter
type sysTick struct{}

// Count returns ticks since the last reload: RVR at reload, 0 just after
func (sysTick) Count() uint32 {
	return arm.SYST.SYST_RVR.Get() - arm.SYST.SYST_CVR.Get()
}

// Period returns the reload value
func (sysTick) Period() uint32 {
	return arm.SYST.SYST_RVR.Get()
}

// Overran reads and clears COUNTFLAG. Nothing else reads SYST_CSR after
// startSampleTimer, so the flag belongs to the engine.
func (sysTick) Overran() bool {
	return arm.SYST.SYST_CSR.Get()&systCSRCountFlag != 0
}

// startSampleTimer programs SysTick for sampleRateHz off the CPU clock and
// enables its interrupt
func startSampleTimer() error {
	cycles := machine.CPUFrequency() / sampleRateHz
	if cycles == 0 || cycles > 0xFFFFFF {
		return errTimerRange
	}
	return arm.SetupSystemTimer(cycles)
}

//export SysTick_Handler
func sysTickHandler() {
	// SysTick may fire before main has built the engine
	if engine != nil {
		engine.HandleInterrupt()
	}
}
