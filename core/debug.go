package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// TimingEvent is one entry of the post-mortem timing ring
type TimingEvent struct {
	EventType uint8
	Sample    uint32 // SampleCounter when the event fired
	Value1    uint32 // Context-dependent value
	Value2    uint32 // Context-dependent value
}

// Event type codes
const (
	EvtOverrun   = 1 // Interrupt entered while still running; v1=overrun count
	EvtFrequency = 2 // Requested frequency changed; v1=new bits, v2=old bits
	EvtReset     = 3 // Engine re-initialized; v1=period counts
	EvtCommand   = 4 // Host command failed; v1=command ID
)

const (
	TimingRingSize = 32
)

var (
	// debugPrintln is the platform debug output (UART, stdout...)
	debugPrintln DebugWriter = func(s string) {}

	debugEnabled bool = false

	timingRing     [TimingRingSize]TimingEvent
	timingRingHead uint8
	timingEnabled  bool = true

	debugChan chan string
)

// SetDebugWriter sets the platform-specific debug output function
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// InitAsyncDebug starts the goroutine that drains DebugAsync messages.
// Call it from main() after SetDebugWriter.
func InitAsyncDebug() {
	debugChan = make(chan string, 16)
	go debugOutputWorker()
}

func debugOutputWorker() {
	for msg := range debugChan {
		if debugPrintln != nil {
			debugPrintln(msg)
		}
	}
}

// DebugPrintln writes a debug message synchronously
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// DebugAsync queues a debug message without blocking.
// The message is dropped when the queue is full.
func DebugAsync(msg string) {
	if debugChan != nil && debugEnabled {
		select {
		case debugChan <- msg:
		default:
		}
	}
}

// RecordTiming captures an event in the ring buffer. Safe to call from the
// timer interrupt: no allocation, no locking.
func RecordTiming(eventType uint8, sample, value1, value2 uint32) {
	if !timingEnabled {
		return
	}
	idx := timingRingHead
	timingRing[idx] = TimingEvent{
		EventType: eventType,
		Sample:    sample,
		Value1:    value1,
		Value2:    value2,
	}
	timingRingHead = (idx + 1) % TimingRingSize
}

// TimingEvents returns the recorded events, oldest first
func TimingEvents() []TimingEvent {
	events := make([]TimingEvent, 0, TimingRingSize)
	start := timingRingHead
	for i := uint8(0); i < TimingRingSize; i++ {
		evt := timingRing[(start+i)%TimingRingSize]
		if evt.EventType == 0 {
			continue
		}
		events = append(events, evt)
	}
	return events
}

// DumpTimingRing writes the ring through the debug writer
func DumpTimingRing() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[TIMING] === Timing Ring Dump ===")
	for _, evt := range TimingEvents() {
		var name string
		switch evt.EventType {
		case EvtOverrun:
			name = "OVERRUN!"
		case EvtFrequency:
			name = "FREQ"
		case EvtReset:
			name = "RESET"
		case EvtCommand:
			name = "CMD_ERR"
		default:
			name = "UNKNOWN"
		}

		debugPrintln("[TIMING] " + name +
			" sample=" + Utoa(evt.Sample) +
			" v1=" + Utoa(evt.Value1) +
			" v2=" + Utoa(evt.Value2))
	}
	debugPrintln("[TIMING] === End Dump ===")
}

// ClearTimingRing clears the timing buffer
func ClearTimingRing() {
	for i := range timingRing {
		timingRing[i] = TimingEvent{}
	}
	timingRingHead = 0
}
