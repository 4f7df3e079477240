package core

// Waveform defaults applied by Reset
const (
	TwoPi              = float32(6.28318530717958647692)
	DefaultTimerTickUs = float32(0.01)
	DefaultWaveformHz  = float32(1.0)
)

// Signals is the live telemetry block inspected by the host scope.
// The timer interrupt writes it with plain stores; the foreground reads it
// through Snapshot when it needs a self-consistent copy.
type Signals struct {
	// Waveform state
	PhaseAngleRad float32
	SineValue     float32
	CosineValue   float32
	TrigTimeUs    float32
	ArctangentRad float32
	AtanTimeUs    float32

	// Timing and frequency information
	RequestedFrequencyHz float32 // Writable by the host at any time
	ActualFrequencyHz    float32
	SampleRateHz         float32
	TimerTickUs          float32
	SamplePeriodUs       float32
	IsrTimeUs            float32
	CPULoadPercent       float32

	// Raw counters
	SampleCounter uint32
	IsrTicks      uint32
	TrigTicks     uint32
	AtanTicks     uint32
	IsrCycles     uint32
	TrigCycles    uint32
	AtanCycles    uint32

	// Diagnostics
	OverrunCount   uint32
	WaveformCycles uint32
}

// SignalNames lists the signal fields in wire order.
// The signals response and the dictionary "signal" enumeration both use it.
var SignalNames = []string{
	"phase_angle_rad",
	"sine_value",
	"cosine_value",
	"trig_time_us",
	"arctangent_rad",
	"atan_time_us",
	"requested_frequency_hz",
	"actual_frequency_hz",
	"sample_rate_hz",
	"timer_tick_us",
	"sample_period_us",
	"isr_time_us",
	"cpu_load_percent",
	"sample_counter",
	"isr_ticks",
	"trig_ticks",
	"atan_ticks",
	"isr_cycles",
	"trig_cycles",
	"atan_cycles",
	"overrun_count",
	"waveform_cycles",
}

// Split of SignalNames: float32 entries first, then uint32 counters
const (
	FloatSignalCount   = 13
	CounterSignalCount = 9
)

// Reset puts every field back to its start-up baseline
func (s *Signals) Reset() {
	*s = Signals{
		CosineValue:          1,
		RequestedFrequencyHz: DefaultWaveformHz,
		ActualFrequencyHz:    DefaultWaveformHz,
		TimerTickUs:          DefaultTimerTickUs,
	}
}

// Snapshot copies the block with interrupts masked so the copy never mixes
// two samples.
func (s *Signals) Snapshot() Signals {
	state := disableInterrupts()
	snap := *s
	restoreInterrupts(state)
	return snap
}

// SetRequestedFrequency updates the only host-tunable input.
// No range checking: negative or above-Nyquist values are taken as given.
func (s *Signals) SetRequestedFrequency(hz float32) {
	state := disableInterrupts()
	s.RequestedFrequencyHz = hz
	restoreInterrupts(state)
}

// Floats returns the float32 signals in wire order
func (s *Signals) Floats() [FloatSignalCount]float32 {
	return [FloatSignalCount]float32{
		s.PhaseAngleRad,
		s.SineValue,
		s.CosineValue,
		s.TrigTimeUs,
		s.ArctangentRad,
		s.AtanTimeUs,
		s.RequestedFrequencyHz,
		s.ActualFrequencyHz,
		s.SampleRateHz,
		s.TimerTickUs,
		s.SamplePeriodUs,
		s.IsrTimeUs,
		s.CPULoadPercent,
	}
}

// Counters returns the uint32 signals in wire order
func (s *Signals) Counters() [CounterSignalCount]uint32 {
	return [CounterSignalCount]uint32{
		s.SampleCounter,
		s.IsrTicks,
		s.TrigTicks,
		s.AtanTicks,
		s.IsrCycles,
		s.TrigCycles,
		s.AtanCycles,
		s.OverrunCount,
		s.WaveformCycles,
	}
}

// SetFloats is the inverse of Floats, used by the host decoder
func (s *Signals) SetFloats(v [FloatSignalCount]float32) {
	s.PhaseAngleRad = v[0]
	s.SineValue = v[1]
	s.CosineValue = v[2]
	s.TrigTimeUs = v[3]
	s.ArctangentRad = v[4]
	s.AtanTimeUs = v[5]
	s.RequestedFrequencyHz = v[6]
	s.ActualFrequencyHz = v[7]
	s.SampleRateHz = v[8]
	s.TimerTickUs = v[9]
	s.SamplePeriodUs = v[10]
	s.IsrTimeUs = v[11]
	s.CPULoadPercent = v[12]
}

// SetCounters is the inverse of Counters
func (s *Signals) SetCounters(v [CounterSignalCount]uint32) {
	s.SampleCounter = v[0]
	s.IsrTicks = v[1]
	s.TrigTicks = v[2]
	s.AtanTicks = v[3]
	s.IsrCycles = v[4]
	s.TrigCycles = v[5]
	s.AtanCycles = v[6]
	s.OverrunCount = v[7]
	s.WaveformCycles = v[8]
}
