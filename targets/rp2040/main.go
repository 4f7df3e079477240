//go:build rp2040 || rp2350

package main

import (
	"machine"
	"time"

	"wavescope/core"
	"wavescope/telemetry"
)

// Interval between debug summaries, in microseconds
const statsIntervalUs = 1000000

var (
	// Set once in main before the sample timer is useful; read by
	// SysTick_Handler
	engine *core.Engine
	scope  *telemetry.Scope

	loopPanics   uint32
	lastOverruns uint32
)

func main() {
	// Disable a watchdog left armed by the previous image
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	InitUSB()
	if InitDebugUART() {
		core.SetDebugWriter(DebugPrintln)
		core.SetDebugEnabled(true)
		core.InitAsyncDebug()
	}

	signals := &core.Signals{}
	scope = telemetry.NewScope(signals, usbLink{})

	// SysTick must hold its reload value before the engine derives its
	// timing from it
	if err := startSampleTimer(); err != nil {
		core.DebugPrintln("[Main] sample timer: " + err.Error())
	}
	engine = core.NewEngine(signals, sysTick{}, cpuClock{}, scope)
	scope.AttachEngine(engine)
	registerClockConstants(scope.Dictionary())
	scope.Dictionary().BuildDictionary()

	core.DebugPrintln("[Main] sample rate " + core.Ftoa(engine.SampleRateHz(), 1) +
		" Hz, period " + core.Utoa(engine.PeriodCounts()) + " ticks")

	led := newHeartbeat()
	lastStats := GetHardwareUptime()

	for {
		// Recover from panics in the idle loop; the interrupt keeps sampling
		func() {
			defer func() {
				if r := recover(); r != nil {
					loopPanics++
				}
			}()

			scope.Communicate()

			sample := signals.Snapshot()
			led.Update(&sample)

			if now := GetHardwareUptime(); now-lastStats >= statsIntervalUs {
				lastStats = now
				reportStats(&sample)
			}
		}()

		// Yield to other goroutines
		time.Sleep(10 * time.Microsecond)
	}
}

// reportStats writes a one-line summary and dumps the timing ring when
// the interrupt has started overrunning
func reportStats(sig *core.Signals) {
	if !core.IsDebugEnabled() {
		return
	}
	sent, linkErrors, dropped := scope.Stats()
	core.DebugAsync("[Stats] samples=" + core.Utoa(sig.SampleCounter) +
		" freq=" + core.Ftoa(sig.ActualFrequencyHz, 3) +
		" isr=" + core.Ftoa(sig.IsrTimeUs, 2) + "us" +
		" load=" + core.Ftoa(sig.CPULoadPercent, 2) + "%" +
		" overruns=" + core.Utoa(sig.OverrunCount) +
		" frames=" + core.Utoa(sent) +
		" linkerr=" + core.Utoa(linkErrors) +
		" dropped=" + core.Utoa(dropped) +
		" panics=" + core.Utoa(loopPanics))

	if sig.OverrunCount != lastOverruns {
		lastOverruns = sig.OverrunCount
		core.DumpTimingRing()
	}
}
