//go:build !tinygo

// Command sim runs the waveform firmware on the desktop. The timer
// interrupt is a 1 kHz ticker, the tick counter is the wall clock at 10ns
// resolution, and the host link is a TCP socket:
//
//	go run ./targets/sim -listen :5555
//	go run ./host/cmd/scope-host -device tcp://localhost:5555
package main

import (
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"time"

	"wavescope/core"
	"wavescope/telemetry"
)

var (
	listen    = flag.String("listen", "localhost:5555", "TCP address the host scope connects to")
	frequency = flag.Float64("freq", 1, "Initial waveform frequency in Hz")
	cpuHz     = flag.Uint("cpu-hz", 100000000, "Nominal CPU clock for cycle estimates")
	verbose   = flag.Bool("verbose", false, "Log firmware debug output")
	stats     = flag.Duration("stats", 5*time.Second, "Interval between summary lines (0 disables)")
)

// Ticks of the simulated counter: 10ns each, 100000 per 1ms period
const (
	tickNs       = 10
	periodCounts = 100000
)

// wallTimer is a TickCounter over the monotonic clock. A period of the
// counter lines up with one firing of the interrupt ticker when start is
// taken just before the ticker is created.
type wallTimer struct {
	start  time.Time
	period int64 // period index at the previous Overran call

	// Whole periods that passed without an interrupt; the ticker drops
	// ticks when the loop falls behind
	missed uint64
}

func (w *wallTimer) ticks() int64 {
	return time.Since(w.start).Nanoseconds() / tickNs
}

func (w *wallTimer) Count() uint32 {
	return uint32(w.ticks() % periodCounts)
}

func (w *wallTimer) Period() uint32 {
	return periodCounts - 1
}

// Overran reports whether a period boundary passed since the last call
func (w *wallTimer) Overran() bool {
	period := w.ticks() / periodCounts
	if skipped := period - w.period - 1; skipped > 0 {
		w.missed += uint64(skipped)
	}
	reloaded := period != w.period
	w.period = period
	return reloaded
}

func main() {
	flag.Parse()

	core.SetDebugWriter(func(s string) { log.Println(s) })
	core.SetDebugEnabled(*verbose)
	core.InitAsyncDebug()

	link := &tcpLink{}
	ln, err := net.Listen("tcp", *listen)
	if err != nil {
		log.Fatalf("listen %s: %v", *listen, err)
	}
	defer ln.Close()
	go link.serve(ln)
	log.Printf("waiting for the host scope on %s", ln.Addr())

	signals := &core.Signals{}
	scope := telemetry.NewScope(signals, link)
	timer := &wallTimer{start: time.Now()}
	engine := core.NewEngine(signals, timer, core.FixedClock(uint32(*cpuHz)), scope)
	scope.AttachEngine(engine)
	scope.Dictionary().AddConstant("MCU", "sim")
	scope.Dictionary().AddConstant("CLOCK_FREQ", uint32(*cpuHz))
	scope.Dictionary().BuildDictionary()
	signals.SetRequestedFrequency(float32(*frequency))

	timer.start = time.Now()
	interrupt := time.NewTicker(time.Millisecond)
	defer interrupt.Stop()
	poll := time.NewTicker(200 * time.Microsecond)
	defer poll.Stop()

	var summary <-chan time.Time
	if *stats > 0 {
		t := time.NewTicker(*stats)
		defer t.Stop()
		summary = t.C
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)

	// One goroutine plays both contexts, so the interrupt never preempts
	// the foreground
	for {
		select {
		case <-interrupt.C:
			engine.HandleInterrupt()
		case <-poll.C:
			scope.Communicate()
		case <-summary:
			s := signals.Snapshot()
			sent, linkErrors, dropped := scope.Stats()
			log.Printf("samples=%d freq=%.3fHz isr=%.2fus load=%.3f%% overruns=%d missed=%d frames=%d linkerr=%d dropped=%d",
				s.SampleCounter, s.ActualFrequencyHz, s.IsrTimeUs, s.CPULoadPercent,
				s.OverrunCount, timer.missed, sent, linkErrors, dropped)
		case <-quit:
			log.Printf("stopping after %d samples", signals.SampleCounter)
			core.DumpTimingRing()
			return
		}
	}
}
