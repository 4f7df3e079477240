package core

import (
	"math"
	"sync/atomic"
)

// Engine generates the waveform and times itself from inside the timer
// interrupt. One Engine owns one Signals block for the life of the firmware.
type Engine struct {
	signals *Signals
	timer   TickCounter
	clock   ClockSource
	pub     Publisher
	reload  OverrunDetector // nil when the timer cannot report reloads

	// Derived once from the timer and clock configuration
	periodCounts  uint32
	periodTicks   float32
	tickUs        float32
	sampleRateHz  float32
	cyclesPerTick float32

	// Recomputed every interrupt from RequestedFrequencyHz
	angleStep     float32
	lastRequested float32

	busy uint32 // atomic bool, set while HandleInterrupt runs
}

// NewEngine creates an engine and runs the initializer. It must be called
// before the timer interrupt is enabled. pub may be nil.
func NewEngine(signals *Signals, timer TickCounter, clock ClockSource, pub Publisher) *Engine {
	e := &Engine{
		signals:       signals,
		timer:         timer,
		clock:         clock,
		pub:           pub,
		periodCounts:  1,
		periodTicks:   1,
		tickUs:        DefaultTimerTickUs,
		sampleRateHz:  1000,
		cyclesPerTick: 1,
	}
	e.reload, _ = timer.(OverrunDetector)
	e.Initialize()
	return e
}

// Initialize resets the signals and derives the timing parameters from the
// timer period and CPU clock.
func (e *Engine) Initialize() {
	sig := e.signals
	sig.Reset()

	counts := e.timer.Period() + 1
	if counts == 0 {
		counts = 1
	}
	e.periodCounts = counts
	e.periodTicks = float32(counts)

	// The time base assumes the timer period is exactly 1ms
	e.tickUs = 1000 / e.periodTicks
	sig.TimerTickUs = e.tickUs
	sig.SamplePeriodUs = e.tickUs * e.periodTicks
	if sig.SamplePeriodUs > 0 {
		e.sampleRateHz = 1000000 / sig.SamplePeriodUs
	} else {
		e.sampleRateHz = 0
	}
	sig.SampleRateHz = e.sampleRateHz

	// Approximation only: a static ratio applied to tick deltas, not a
	// cycle counter.
	cpuHz := float32(0)
	if e.clock != nil {
		cpuHz = float32(e.clock.InstructionFrequency())
	}
	e.cyclesPerTick = (cpuHz / 1000000) * e.tickUs

	e.lastRequested = sig.RequestedFrequencyHz
	e.updateAngleStep()
}

// Reset re-runs the initializer from foreground context
func (e *Engine) Reset() {
	state := disableInterrupts()
	e.Initialize()
	restoreInterrupts(state)
	RecordTiming(EvtReset, 0, e.periodCounts, 0)
}

// HandleInterrupt runs one sample. Call it from the timer interrupt.
// A run that outlasts its period counts as an overrun: either the timer
// reloaded again before it returned, or it was entered a second time.
func (e *Engine) HandleInterrupt() {
	sig := e.signals
	if !atomic.CompareAndSwapUint32(&e.busy, 0, 1) {
		// Still inside the previous invocation
		sig.OverrunCount++
		RecordTiming(EvtOverrun, sig.SampleCounter, sig.OverrunCount, 0)
		return
	}

	if e.reload != nil {
		// Acknowledge the reload that raised this interrupt
		e.reload.Overran()
	}
	isrStart := e.timer.Count()
	sig.SampleCounter++

	e.updateAngleStep()

	angle := sig.PhaseAngleRad + e.angleStep
	wrapped := angle >= TwoPi || angle < 0
	angle = WrapAngle(angle)
	sig.PhaseAngleRad = angle
	if wrapped {
		sig.WaveformCycles++
	}

	trigStart := e.timer.Count()
	sine := float32(math.Sin(float64(angle)))
	cosine := float32(math.Cos(float64(angle)))
	trigEnd := e.timer.Count()
	trigTicks := e.TickDelta(trigStart, trigEnd)
	sig.TrigTicks = trigTicks
	sig.TrigTimeUs = e.TicksToUs(trigTicks)
	sig.TrigCycles = e.ticksToCycles(trigTicks)
	sig.SineValue = sine
	sig.CosineValue = cosine

	atanStart := e.timer.Count()
	sig.ArctangentRad = float32(math.Atan2(float64(sine), float64(cosine)))
	atanEnd := e.timer.Count()
	atanTicks := e.TickDelta(atanStart, atanEnd)
	sig.AtanTicks = atanTicks
	sig.AtanTimeUs = e.TicksToUs(atanTicks)
	sig.AtanCycles = e.ticksToCycles(atanTicks)

	if e.pub != nil {
		e.pub.Publish()
	}

	isrEnd := e.timer.Count()
	e.updateMetrics(e.TickDelta(isrStart, isrEnd))

	if e.reload != nil && e.reload.Overran() {
		// The next period started before this one was finished
		sig.OverrunCount++
		RecordTiming(EvtOverrun, sig.SampleCounter, sig.OverrunCount, sig.IsrTicks)
	}

	atomic.StoreUint32(&e.busy, 0)
}

// TickDelta returns the ticks elapsed between two counter snapshots,
// allowing for at most one wrap of the counter in between.
func (e *Engine) TickDelta(start, end uint32) uint32 {
	if end >= start {
		return end - start
	}
	return (e.periodCounts - start) + end
}

// TicksToUs converts timer ticks to microseconds
func (e *Engine) TicksToUs(ticks uint32) float32 {
	return float32(ticks) * e.tickUs
}

func (e *Engine) ticksToCycles(ticks uint32) uint32 {
	return uint32(float32(ticks) * e.cyclesPerTick)
}

// WrapAngle brings an angle in (-2π, 4π) into [0, 2π) with one correction.
// It is not a general modulo.
func WrapAngle(angle float32) float32 {
	if angle >= TwoPi {
		angle -= TwoPi
	} else if angle < 0 {
		angle += TwoPi
		// A tiny negative angle rounds up to exactly 2π in float32
		if angle >= TwoPi {
			angle = 0
		}
	}
	return angle
}

// AngleStepFor returns the per-sample phase increment for a frequency
// together with the frequency that increment actually produces.
func AngleStepFor(requestedHz, sampleRateHz float32) (step, actualHz float32) {
	if sampleRateHz <= 0 {
		return 0, 0
	}
	step = (TwoPi * requestedHz) / sampleRateHz
	actualHz = (step * sampleRateHz) / TwoPi
	return step, actualHz
}

// updateAngleStep picks up the requested frequency, which the host may have
// rewritten since the last interrupt.
func (e *Engine) updateAngleStep() {
	sig := e.signals
	requested := sig.RequestedFrequencyHz
	if requested != e.lastRequested {
		RecordTiming(EvtFrequency, sig.SampleCounter, math.Float32bits(requested), math.Float32bits(e.lastRequested))
		e.lastRequested = requested
	}
	e.angleStep, sig.ActualFrequencyHz = AngleStepFor(requested, e.sampleRateHz)
}

// updateMetrics stores the whole-handler cost and republishes the static
// timing fields so an asynchronous reader always sees them together.
func (e *Engine) updateMetrics(isrTicks uint32) {
	sig := e.signals
	sig.IsrTicks = isrTicks
	sig.IsrTimeUs = e.TicksToUs(isrTicks)
	sig.IsrCycles = e.ticksToCycles(isrTicks)
	sig.TimerTickUs = e.tickUs
	sig.SamplePeriodUs = e.tickUs * e.periodTicks
	sig.SampleRateHz = e.sampleRateHz

	if e.periodTicks > 0 {
		sig.CPULoadPercent = (float32(isrTicks) / e.periodTicks) * 100
	} else {
		sig.CPULoadPercent = 0
	}
}

// Signals returns the block the engine writes
func (e *Engine) Signals() *Signals {
	return e.signals
}

// AngleStep returns the phase increment used by the last interrupt
func (e *Engine) AngleStep() float32 {
	return e.angleStep
}

// PeriodCounts returns the timer period in ticks (reload value + 1)
func (e *Engine) PeriodCounts() uint32 {
	return e.periodCounts
}

// SampleRateHz returns the interrupt rate derived at start-up
func (e *Engine) SampleRateHz() float32 {
	return e.sampleRateHz
}

// CyclesPerTick returns the static tick-to-cycle conversion factor
func (e *Engine) CyclesPerTick() float32 {
	return e.cyclesPerTick
}
