package protocol

import "sync/atomic"

// Output room required before a received frame is processed: one reply
// and its ACK
const replyRoom = MessageLengthMax + MessageLengthMin

// CommandHandler handles one decoded command; it consumes its arguments
// from data
type CommandHandler func(cmdID uint16, data *[]byte) error

// Transport is the firmware end of the link. It validates incoming frames,
// dispatches their commands, acknowledges every frame and encodes
// responses into an OutputBuffer.
type Transport struct {
	isSynchronized uint32 // atomic bool
	nextSequence   uint32 // atomic; expected host sequence, also used on replies
	dropped        uint32 // atomic; frames skipped for lack of output room

	output        OutputBuffer
	handler       CommandHandler
	errorCallback func(cmdID uint16, err error)
	resetCallback func()
	flushCallback func()
}

// NewTransport creates a Transport writing to output
func NewTransport(output OutputBuffer, handler CommandHandler) *Transport {
	return &Transport{
		isSynchronized: 1,
		nextSequence:   MessageDest,
		output:         output,
		handler:        handler,
	}
}

// Receive consumes complete frames from input. Partial frames stay in the
// buffer for the next call.
func (t *Transport) Receive(input InputBuffer) {
	data := input.Data()

	for len(data) > 0 {
		if !t.getSynchronized() {
			// Drop everything up to and including the next sync byte
			syncPos := -1
			for i, b := range data {
				if b == MessageValueSync {
					syncPos = i
					break
				}
			}
			if syncPos < 0 {
				data = nil
				break
			}
			data = data[syncPos+1:]
			t.setSynchronized(true)
			t.encodeAckNak()
			continue
		}

		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}

		msgLen, status := scanFrame(data)
		if status == frameNeedMore {
			break
		}
		if status == frameOK && t.output.Free() < replyRoom {
			// Leave the frame queued until the output has been flushed
			break
		}
		if status == frameBad {
			t.setSynchronized(false)
			continue
		}

		seq := data[MessagePositionSeq]
		if seq&^MessageSeqMask != MessageDest {
			t.setSynchronized(false)
			continue
		}
		frame := data[MessageHeaderSize : msgLen-MessageTrailerSize]
		data = data[msgLen:]

		expected := uint8(atomic.LoadUint32(&t.nextSequence))
		if seq == MessageDest && expected != MessageDest {
			// Host restarted its sequence
			atomic.StoreUint32(&t.nextSequence, MessageDest)
			expected = MessageDest
			if t.resetCallback != nil {
				t.resetCallback()
			}
		}

		if seq == expected {
			atomic.StoreUint32(&t.nextSequence, uint32(nextSequence(seq)))
			t.parseFrame(frame)
		}
		// A mismatched sequence still gets a reply; it acts as a NAK
		t.encodeAckNak()
	}

	consumed := input.Available() - len(data)
	if consumed > 0 {
		input.Pop(consumed)
	}
}

// parseFrame dispatches every command in a frame. A malformed command ID
// desynchronizes the link; handler errors only stop this frame.
func (t *Transport) parseFrame(frame []byte) {
	defer func() {
		if r := recover(); r != nil {
			t.setSynchronized(false)
		}
	}()

	for len(frame) > 0 {
		cmdID, err := DecodeVLQUint(&frame)
		if err != nil {
			t.setSynchronized(false)
			return
		}
		if t.handler == nil {
			return
		}
		if err := t.handler(uint16(cmdID), &frame); err != nil {
			if t.errorCallback != nil {
				t.errorCallback(uint16(cmdID), err)
			}
			return
		}
	}
}

// encodeAckNak writes an empty frame carrying the next expected sequence
func (t *Transport) encodeAckNak() {
	if t.output.Free() < MessageLengthMin {
		atomic.AddUint32(&t.dropped, 1)
		return
	}
	ns := uint8(atomic.LoadUint32(&t.nextSequence))
	t.output.Output(appendTrailer([]byte{MessageLengthMin, ns}))
	if t.flushCallback != nil {
		t.flushCallback()
	}
}

// EncodeFrame writes one frame whose payload is produced by frameData.
// The frame is dropped, and false returned, when the output buffer cannot
// hold a frame of MessageLengthMax bytes.
func (t *Transport) EncodeFrame(frameData func(output OutputBuffer)) bool {
	if t.output.Free() < MessageLengthMax {
		atomic.AddUint32(&t.dropped, 1)
		return false
	}
	cursor := t.output.CurPosition()

	seq := uint8(atomic.LoadUint32(&t.nextSequence))
	t.output.Output([]byte{0, seq})
	frameData(t.output)

	changed := len(t.output.DataSince(cursor))
	t.output.Update(cursor, uint8(changed+MessageTrailerSize))

	crc := CRC16(t.output.DataSince(cursor))
	t.output.Output([]byte{uint8(crc >> 8), uint8(crc), MessageValueSync})
	return true
}

// SendCommand encodes a response or command with its arguments
func (t *Transport) SendCommand(cmdID uint16, args func(output OutputBuffer)) bool {
	return t.EncodeFrame(func(output OutputBuffer) {
		EncodeVLQUint(output, uint32(cmdID))
		if args != nil {
			args(output)
		}
	})
}

// Reset returns the transport to its power-on state
func (t *Transport) Reset() {
	atomic.StoreUint32(&t.isSynchronized, 1)
	atomic.StoreUint32(&t.nextSequence, MessageDest)
	if t.resetCallback != nil {
		t.resetCallback()
	}
}

// SetResetCallback sets the hook run when the host restarts its sequence
func (t *Transport) SetResetCallback(callback func()) {
	t.resetCallback = callback
}

// SetFlushCallback sets the hook that pushes an ACK out immediately
func (t *Transport) SetFlushCallback(callback func()) {
	t.flushCallback = callback
}

// SetErrorCallback sets the hook run when a command handler fails
func (t *Transport) SetErrorCallback(callback func(cmdID uint16, err error)) {
	t.errorCallback = callback
}

// Dropped returns how many replies and ACKs were skipped because the
// output buffer was full
func (t *Transport) Dropped() uint32 {
	return atomic.LoadUint32(&t.dropped)
}

// IsSynchronized reports whether the transport is locked onto frames
func (t *Transport) IsSynchronized() bool {
	return t.getSynchronized()
}

func (t *Transport) getSynchronized() bool {
	return atomic.LoadUint32(&t.isSynchronized) != 0
}

func (t *Transport) setSynchronized(val bool) {
	if val {
		atomic.StoreUint32(&t.isSynchronized, 1)
	} else {
		atomic.StoreUint32(&t.isSynchronized, 0)
	}
}
