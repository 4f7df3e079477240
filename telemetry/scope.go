// Package telemetry connects the live signal block to the host scope tool.
// Scope is the transport collaborator of the waveform engine: Publish runs
// in the timer interrupt, Communicate in the idle loop.
package telemetry

import (
	"sync/atomic"

	"wavescope/core"
	"wavescope/protocol"
)

// Link is the byte stream to the host. machine.Serial (USB CDC) satisfies
// it on the board.
type Link interface {
	Buffered() int
	ReadByte() (byte, error)
	Write(p []byte) (int, error)
}

const (
	inputBufferSize = 256

	// Room a signals frame needs in the output buffer
	signalsFrameMax = protocol.MessageLengthMax

	// Consecutive failed writes before the link is treated as dropped
	maxWriteFailures = 10
)

// Scope serves commands from the host and streams signal samples to it
type Scope struct {
	signals *core.Signals
	engine  *core.Engine
	link    Link

	registry   *core.CommandRegistry
	dictionary *core.Dictionary
	transport  *protocol.Transport
	input      *protocol.FifoBuffer
	output     *protocol.ScratchOutput

	// Written by Publish in interrupt context
	latched    core.Signals
	latchedSeq uint32 // atomic
	decimation uint32 // interrupts since the last latch

	streaming uint32 // atomic bool
	every     uint32 // atomic; latch one sample every N interrupts
	sentSeq   uint32

	writeFailures uint32
	linkErrors    uint32
	framesSent    uint32

	ids responseIDs
}

type responseIDs struct {
	identify uint16
	signals  uint16
	uptime   uint16
	overruns uint16
}

// NewScope creates a Scope over signals. Attach the engine with
// AttachEngine before serving commands.
func NewScope(signals *core.Signals, link Link) *Scope {
	s := &Scope{
		signals:  signals,
		link:     link,
		registry: core.NewCommandRegistry(),
		input:    protocol.NewFifoBuffer(inputBufferSize),
		output:   protocol.NewScratchOutput(),
		every:    1,
	}
	s.dictionary = core.NewDictionary(s.registry)
	s.registerCommands()

	s.transport = protocol.NewTransport(s.output, s.registry.Dispatch)
	s.transport.SetResetCallback(func() {
		// Input still holds the frame being parsed; only drop stale output
		s.output.Reset()
		atomic.StoreUint32(&s.streaming, 0)
	})
	// Push each ACK, and the replies queued ahead of it, out right away
	s.transport.SetFlushCallback(s.flush)
	s.transport.SetErrorCallback(func(cmdID uint16, err error) {
		core.RecordTiming(core.EvtCommand, s.signals.SampleCounter, uint32(cmdID), 0)
		core.DebugAsync("[Scope] command " + core.Itoa(int(cmdID)) + " failed: " + err.Error())
	})
	return s
}

// AttachEngine links the engine used by reset_signals and publishes its
// timing parameters as dictionary constants
func (s *Scope) AttachEngine(e *core.Engine) {
	s.engine = e
	s.dictionary.AddConstant("TIMER_PERIOD", e.PeriodCounts())
	s.dictionary.AddConstant("SAMPLE_RATE", e.SampleRateHz())
	s.dictionary.AddConstant("CYCLES_PER_TICK", e.CyclesPerTick())
}

// Dictionary returns the dictionary so targets can add MCU constants
func (s *Scope) Dictionary() *core.Dictionary {
	return s.dictionary
}

// Publish latches the current signals for transmission. Interrupt context:
// no allocation, no blocking.
func (s *Scope) Publish() {
	if atomic.LoadUint32(&s.streaming) == 0 {
		return
	}
	s.decimation++
	if s.decimation < atomic.LoadUint32(&s.every) {
		return
	}
	s.decimation = 0
	s.latched = *s.signals
	atomic.AddUint32(&s.latchedSeq, 1)
}

// Communicate services the link once: reads pending bytes, runs received
// commands, queues a streamed sample and flushes output. Frames that would
// not leave room for their reply stay in the input buffer for a later call.
func (s *Scope) Communicate() {
	s.pollLink()

	if s.input.Available() > 0 {
		in := protocol.NewSliceInputBuffer(s.input.Data())
		before := in.Available()
		s.transport.Receive(in)
		s.input.Pop(before - in.Available())
	}

	s.streamSample()
	s.flush()
}

// pollLink moves buffered link bytes into the input FIFO
func (s *Scope) pollLink() {
	if s.link == nil {
		return
	}
	for s.link.Buffered() > 0 && s.input.Free() > 0 {
		b, err := s.link.ReadByte()
		if err != nil {
			s.linkErrors++
			return
		}
		s.input.Write([]byte{b})
	}
}

// streamSample encodes the newest latched sample, skipping any the host
// was too slow to take
func (s *Scope) streamSample() {
	seq := atomic.LoadUint32(&s.latchedSeq)
	if seq == s.sentSeq || atomic.LoadUint32(&s.streaming) == 0 {
		return
	}
	if s.output.Free() < signalsFrameMax {
		return
	}
	sample := s.latched.Snapshot()
	sent := s.transport.SendCommand(s.ids.signals, func(output protocol.OutputBuffer) {
		EncodeSignals(output, &sample)
	})
	if sent {
		s.sentSeq = seq
		s.framesSent++
	}
}

// flush writes pending output to the link, keeping whatever did not fit
func (s *Scope) flush() {
	result := s.output.Result()
	if len(result) == 0 || s.link == nil {
		return
	}

	n, err := s.link.Write(result)
	if n > 0 {
		s.output.Discard(n)
	}
	if err == nil && n > 0 {
		s.writeFailures = 0
		return
	}

	s.writeFailures++
	if s.writeFailures > maxWriteFailures {
		// Host is gone; drop stale data and wait for a fresh connection
		s.writeFailures = 0
		s.linkErrors++
		s.transport.Reset()
	}
}

// Stats returns link counters for diagnostics. dropped counts replies and
// ACKs the output buffer had no room for.
func (s *Scope) Stats() (framesSent, linkErrors, dropped uint32) {
	return s.framesSent, s.linkErrors, s.transport.Dropped()
}

// Streaming reports whether sample streaming is enabled and its decimation
func (s *Scope) Streaming() (bool, uint32) {
	return atomic.LoadUint32(&s.streaming) != 0, atomic.LoadUint32(&s.every)
}
