package telemetry

import (
	"wavescope/core"
	"wavescope/protocol"
)

// EncodeSignals writes every signal in core.SignalNames order: the float
// signals as IEEE-754 bits, then the counters
func EncodeSignals(output protocol.OutputBuffer, sig *core.Signals) {
	for _, f := range sig.Floats() {
		protocol.EncodeVLQFloat(output, f)
	}
	for _, c := range sig.Counters() {
		protocol.EncodeVLQUint(output, c)
	}
}

// DecodeSignals is the inverse of EncodeSignals
func DecodeSignals(data *[]byte) (core.Signals, error) {
	var sig core.Signals
	var floats [core.FloatSignalCount]float32
	for i := range floats {
		f, err := protocol.DecodeVLQFloat(data)
		if err != nil {
			return sig, err
		}
		floats[i] = f
	}
	var counters [core.CounterSignalCount]uint32
	for i := range counters {
		c, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return sig, err
		}
		counters[i] = c
	}
	sig.SetFloats(floats)
	sig.SetCounters(counters)
	return sig, nil
}

// signalsFormat is the dictionary format of the signals response
func signalsFormat() string {
	format := ""
	for i, name := range core.SignalNames {
		if i > 0 {
			format += " "
		}
		format += name + "=%u"
	}
	return format
}
