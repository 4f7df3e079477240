// Package protocol implements the framed link between the firmware and the
// host scope tool: VLQ-encoded command frames with a length byte, a
// sequence byte, a CRC16 and a trailing sync byte.
package protocol

// Version is the wire protocol version reported in the dictionary
const Version = "0.1.0"

const (
	MessageMax         = 512 // Firmware output scratch buffer size
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 128 // A full signals frame needs about 116 bytes
	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1
	MessageValueSync   = 0x7E
	MessageDest        = 0x10
	MessageSeqMask     = 0x0F
)

// frameStatus is the outcome of scanning for one frame
type frameStatus int

const (
	frameOK       frameStatus = iota
	frameNeedMore             // Not enough bytes yet
	frameBad                  // Length, sync or CRC is wrong; resync
)

// scanFrame validates the frame at the start of data (a leading sync byte
// must already be stripped) and returns its total length.
func scanFrame(data []byte) (int, frameStatus) {
	if len(data) < MessageLengthMin {
		return 0, frameNeedMore
	}
	msgLen := int(data[MessagePositionLen])
	if msgLen < MessageLengthMin || msgLen > MessageLengthMax {
		return 0, frameBad
	}
	if len(data) < msgLen {
		return 0, frameNeedMore
	}
	if data[msgLen-MessageTrailerSync] != MessageValueSync {
		return 0, frameBad
	}
	frameCRC := uint16(data[msgLen-MessageTrailerCRC])<<8 |
		uint16(data[msgLen-MessageTrailerCRC+1])
	if frameCRC != CRC16(data[:msgLen-MessageTrailerSize]) {
		return 0, frameBad
	}
	return msgLen, frameOK
}

// appendTrailer appends CRC and sync to a frame whose length byte is set
func appendTrailer(frame []byte) []byte {
	crc := CRC16(frame)
	return append(frame, uint8(crc>>8), uint8(crc), MessageValueSync)
}

// nextSequence advances a sequence byte within 0x10-0x1F
func nextSequence(seq uint8) uint8 {
	return ((seq + 1) & MessageSeqMask) | MessageDest
}
