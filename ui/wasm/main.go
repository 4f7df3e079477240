//go:build js && wasm

// Command wasm exposes the wavescope frame codec to a browser page so the
// scope can be plotted over Web Serial without a native host tool.
package main

import (
	"encoding/hex"
	"syscall/js"

	"wavescope/core"
	"wavescope/protocol"
	"wavescope/telemetry"
	"wavescope/tinycompress"
)

func main() {
	js.Global().Set("wavescope", js.ValueOf(map[string]interface{}{
		"crc16":             js.FuncOf(crc16Wrapper),
		"encodeCommand":     js.FuncOf(encodeCommandWrapper),
		"encodeFloat":       js.FuncOf(encodeFloatWrapper),
		"decodeFrame":       js.FuncOf(decodeFrameWrapper),
		"decodeSignals":     js.FuncOf(decodeSignalsWrapper),
		"inflateDictionary": js.FuncOf(inflateWrapper),
		"signalNames":       js.FuncOf(signalNamesWrapper),
		"version":           protocol.Version,
	}))

	select {}
}

// crc16Wrapper returns the frame CRC of a hex string
func crc16Wrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(0)
	}
	data, err := hex.DecodeString(args[0].String())
	if err != nil {
		return js.ValueOf(0)
	}
	return js.ValueOf(int(protocol.CRC16(data)))
}

// encodeCommandWrapper builds a complete host frame.
// Args: seq (0-15), cmdID, argsHex (VLQ encoded parameters)
func encodeCommandWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return errorResult("missing arguments")
	}
	seq := uint8(args[0].Int()) & protocol.MessageSeqMask
	cmdID := uint32(args[1].Int())
	params, err := hex.DecodeString(args[2].String())
	if err != nil {
		return errorResult("invalid args hex: " + err.Error())
	}

	out := protocol.NewScratchOutput()
	protocol.EncodeVLQUint(out, cmdID)
	out.Output(params)
	body := out.Result()
	if len(body)+protocol.MessageLengthMin > protocol.MessageLengthMax {
		return errorResult("command too long")
	}

	frame := make([]byte, 0, len(body)+protocol.MessageLengthMin)
	frame = append(frame, byte(len(body)+protocol.MessageLengthMin), protocol.MessageDest|seq)
	frame = append(frame, body...)
	crc := protocol.CRC16(frame)
	frame = append(frame, byte(crc>>8), byte(crc), protocol.MessageValueSync)

	return js.ValueOf(map[string]interface{}{"frame": hex.EncodeToString(frame)})
}

// encodeFloatWrapper returns the VLQ encoding of a float parameter such as
// set_frequency's hz
func encodeFloatWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf("")
	}
	out := protocol.NewScratchOutput()
	protocol.EncodeVLQFloat(out, float32(args[0].Float()))
	return js.ValueOf(hex.EncodeToString(out.Result()))
}

// decodeFrameWrapper splits one firmware frame into its header, command ID
// and remaining payload.
// Returns: {length, sequence, cmdID, payload (hex), crcValid, error}
func decodeFrameWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("missing hex string argument")
	}
	data, err := hex.DecodeString(args[0].String())
	if err != nil {
		return errorResult("invalid hex string: " + err.Error())
	}
	if len(data) < protocol.MessageLengthMin {
		return errorResult("message too short")
	}
	msgLen := int(data[protocol.MessagePositionLen])
	if msgLen < protocol.MessageLengthMin || msgLen > len(data) {
		return errorResult("bad length")
	}
	if data[msgLen-1] != protocol.MessageValueSync {
		return errorResult("missing sync byte")
	}

	frameCRC := uint16(data[msgLen-3])<<8 | uint16(data[msgLen-2])
	result := map[string]interface{}{
		"length":   msgLen,
		"sequence": int(data[protocol.MessagePositionSeq] & protocol.MessageSeqMask),
		"crcValid": frameCRC == protocol.CRC16(data[:msgLen-protocol.MessageTrailerSize]),
		"cmdID":    -1,
		"payload":  "",
	}

	payload := data[protocol.MessageHeaderSize : msgLen-protocol.MessageTrailerSize]
	if len(payload) == 0 {
		// Bare ACK
		return js.ValueOf(result)
	}
	id, err := protocol.DecodeVLQUint(&payload)
	if err != nil {
		result["error"] = "failed to decode command ID: " + err.Error()
		return js.ValueOf(result)
	}
	result["cmdID"] = int(id)
	result["payload"] = hex.EncodeToString(payload)
	return js.ValueOf(result)
}

// decodeSignalsWrapper decodes the payload of a signals response (after the
// ID) into an object keyed by signal name
func decodeSignalsWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("missing hex string argument")
	}
	data, err := hex.DecodeString(args[0].String())
	if err != nil {
		return errorResult("invalid hex string: " + err.Error())
	}
	sig, err := telemetry.DecodeSignals(&data)
	if err != nil {
		return errorResult(err.Error())
	}

	result := make(map[string]interface{}, len(core.SignalNames))
	i := 0
	for _, f := range sig.Floats() {
		result[core.SignalNames[i]] = float64(f)
		i++
	}
	for _, c := range sig.Counters() {
		result[core.SignalNames[i]] = int(c)
		i++
	}
	return js.ValueOf(result)
}

// inflateWrapper decompresses the concatenated identify chunks and returns
// the dictionary JSON text
func inflateWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("missing hex string argument")
	}
	data, err := hex.DecodeString(args[0].String())
	if err != nil {
		return errorResult("invalid hex string: " + err.Error())
	}
	raw, err := tinycompress.Inflate(data)
	if err != nil {
		return errorResult(err.Error())
	}
	return js.ValueOf(map[string]interface{}{"json": string(raw)})
}

func signalNamesWrapper(this js.Value, args []js.Value) interface{} {
	names := make([]interface{}, len(core.SignalNames))
	for i, n := range core.SignalNames {
		names[i] = n
	}
	return js.ValueOf(names)
}

func errorResult(msg string) js.Value {
	return js.ValueOf(map[string]interface{}{"error": msg})
}
