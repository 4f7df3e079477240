package core

// TickCounter is the hardware timer that paces the waveform interrupt.
// Count is a free-running up-counter that restarts at 0 after reaching
// Period, the configured reload value.
type TickCounter interface {
	Count() uint32
	Period() uint32
}

// OverrunDetector is implemented by timers that can tell the handler the
// counter reloaded again while it was running, i.e. the next interrupt
// already came due. Overran reports a reload since the previous call and
// clears the condition.
type OverrunDetector interface {
	Overran() bool
}

// ClockSource reports the CPU instruction clock
type ClockSource interface {
	InstructionFrequency() uint32
}

// Publisher hands a fresh sample to the telemetry transport.
// Called from interrupt context; must not block.
type Publisher interface {
	Publish()
}

// ManualTimer is a TickCounter whose count is set by the caller.
// The simulation target and the tests drive it.
type ManualTimer struct {
	count    uint32
	period   uint32
	reloaded uint32 // set by Advance when the count wraps

	// OnCount, if set, runs after every Count read. Tests use it to advance
	// time between snapshots.
	OnCount func(t *ManualTimer)
}

// NewManualTimer creates a ManualTimer with the given reload value
func NewManualTimer(period uint32) *ManualTimer {
	return &ManualTimer{period: period}
}

// Count returns the current tick count
func (t *ManualTimer) Count() uint32 {
	c := loadTicks(&t.count)
	if t.OnCount != nil {
		t.OnCount(t)
	}
	return c
}

// Period returns the configured reload value
func (t *ManualTimer) Period() uint32 {
	return t.period
}

// Set sets the current tick count
func (t *ManualTimer) Set(ticks uint32) {
	storeTicks(&t.count, ticks)
}

// Advance moves the counter forward, wrapping after the reload value
func (t *ManualTimer) Advance(ticks uint32) {
	counts := uint64(t.period) + 1
	next := uint64(loadTicks(&t.count)) + uint64(ticks)
	if next >= counts {
		storeTicks(&t.reloaded, 1)
	}
	storeTicks(&t.count, uint32(next%counts))
}

// Overran reports whether Advance wrapped the count since the last call
func (t *ManualTimer) Overran() bool {
	r := loadTicks(&t.reloaded) != 0
	storeTicks(&t.reloaded, 0)
	return r
}

// FixedClock is a ClockSource with a constant frequency
type FixedClock uint32

// InstructionFrequency returns the fixed frequency in Hz
func (c FixedClock) InstructionFrequency() uint32 {
	return uint32(c)
}
