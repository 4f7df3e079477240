package telemetry

import (
	"errors"
	"sync/atomic"

	"wavescope/core"
	"wavescope/protocol"
)

var errNoEngine = errors.New("engine not attached")

// Bootstrap IDs the host relies on before it has the dictionary
const (
	IdentifyResponseID = 0
	IdentifyID         = 1
)

// IdentifyChunkMax is the most dictionary bytes one identify_response can
// carry: a full frame less the response ID, a five byte offset and a two
// byte length prefix
const IdentifyChunkMax = protocol.MessageLengthMax - protocol.MessageLengthMin - 1 - 5 - 2

// registerCommands fills the registry. identify_response and identify must
// be registered first so they get IDs 0 and 1.
func (s *Scope) registerCommands() {
	r := s.registry
	s.ids.identify = r.Register("identify_response", "offset=%u data=%*s", nil)
	r.Register("identify", "offset=%u count=%c", s.handleIdentify)

	r.Register("get_uptime", "", s.handleGetUptime)
	r.Register("get_signals", "", s.handleGetSignals)
	r.Register("set_frequency", "hz=%u", s.handleSetFrequency)
	r.Register("stream_signals", "enable=%c every=%u", s.handleStreamSignals)
	r.Register("reset_signals", "", s.handleResetSignals)
	r.Register("get_overruns", "", s.handleGetOverruns)

	// Responses
	s.ids.uptime = r.Register("uptime", "samples=%u", nil)
	s.ids.signals = r.Register("signals", signalsFormat(), nil)
	s.ids.overruns = r.Register("overruns", "count=%u", nil)

	s.dictionary.AddEnumeration("signal", core.SignalNames)
	s.dictionary.AddConstant("SIGNAL_FLOATS", uint32(core.FloatSignalCount))
	s.dictionary.AddConstant("PROTOCOL", protocol.Version)
}

// handleIdentify returns one chunk of the compressed dictionary
func (s *Scope) handleIdentify(data *[]byte) error {
	offset, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	count, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	if count > IdentifyChunkMax {
		count = IdentifyChunkMax
	}
	chunk := s.dictionary.GetChunk(offset, uint8(count))
	s.transport.SendCommand(s.ids.identify, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQBytes(output, chunk)
	})
	return nil
}

// handleGetUptime reports the number of interrupts serviced
func (s *Scope) handleGetUptime(data *[]byte) error {
	snap := s.signals.Snapshot()
	s.transport.SendCommand(s.ids.uptime, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, snap.SampleCounter)
	})
	return nil
}

// handleGetSignals replies with one consistent copy of every signal
func (s *Scope) handleGetSignals(data *[]byte) error {
	snap := s.signals.Snapshot()
	s.transport.SendCommand(s.ids.signals, func(output protocol.OutputBuffer) {
		EncodeSignals(output, &snap)
	})
	return nil
}

// handleSetFrequency rewrites the requested frequency. The engine picks it
// up on its next interrupt.
func (s *Scope) handleSetFrequency(data *[]byte) error {
	hz, err := protocol.DecodeVLQFloat(data)
	if err != nil {
		return err
	}
	s.signals.SetRequestedFrequency(hz)
	core.DebugAsync("[Scope] requested frequency " + core.Ftoa(hz, 3) + " Hz")
	return nil
}

// handleStreamSignals turns sample streaming on or off. every is the
// number of interrupts per streamed sample (0 is treated as 1).
func (s *Scope) handleStreamSignals(data *[]byte) error {
	enable, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	every, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	if every == 0 {
		every = 1
	}

	atomic.StoreUint32(&s.every, every)
	if enable != 0 {
		atomic.StoreUint32(&s.streaming, 1)
	} else {
		atomic.StoreUint32(&s.streaming, 0)
	}
	return nil
}

// handleResetSignals re-runs the engine initializer
func (s *Scope) handleResetSignals(data *[]byte) error {
	if s.engine == nil {
		return errNoEngine
	}
	s.engine.Reset()
	return nil
}

// handleGetOverruns reports how often the interrupt caught itself running
func (s *Scope) handleGetOverruns(data *[]byte) error {
	snap := s.signals.Snapshot()
	s.transport.SendCommand(s.ids.overruns, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, snap.OverrunCount)
	})
	return nil
}
