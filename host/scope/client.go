// Package scope is the host side of the telemetry link: it fetches the
// firmware dictionary and reads, tunes and streams the signal block.
package scope

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"wavescope/core"
	"wavescope/host/serial"
	"wavescope/protocol"
	"wavescope/telemetry"
	"wavescope/tinycompress"
)

var (
	ErrNotConnected = errors.New("not connected")
	ErrNoDictionary = errors.New("dictionary not loaded")
)

// Client is a connection to the scope firmware
type Client struct {
	transport *protocol.HostTransport
	port      io.ReadWriteCloser

	dictionary     *Dictionary
	dictionaryData []byte

	// Name (first word of the format) to ID
	commands  map[string]uint16
	responses map[string]uint16

	// Progress output; nil silences it
	Log io.Writer

	Timeout time.Duration
}

// Dictionary is the parsed firmware dictionary
type Dictionary struct {
	Version       string                    `json:"version"`
	BuildVersions string                    `json:"build_versions"`
	Config        map[string]string         `json:"config"`
	Commands      map[string]int            `json:"commands"`
	Responses     map[string]int            `json:"responses"`
	Enumerations  map[string]map[string]int `json:"enumerations,omitempty"`
}

// Connect opens the serial device and starts the transport
func Connect(cfg *serial.Config) (*Client, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}
	// Stale frames from an earlier session would confuse the first ACK
	_ = port.Flush()

	c := NewClient(port)
	// Give the firmware time to settle if it just enumerated
	time.Sleep(100 * time.Millisecond)
	return c, nil
}

// NewClient runs the protocol over an already open port
func NewClient(port io.ReadWriteCloser) *Client {
	return &Client{
		transport: protocol.NewHostTransport(port),
		port:      port,
		Timeout:   time.Second,
	}
}

// Close closes the transport and the port
func (c *Client) Close() error {
	if c.transport == nil {
		return nil
	}
	err := c.transport.Close()
	c.transport = nil
	return err
}

func (c *Client) logf(format string, args ...interface{}) {
	if c.Log != nil {
		fmt.Fprintf(c.Log, format, args...)
	}
}

// RetrieveDictionary fetches the dictionary in chunks of chunkSize bytes.
// It starts a fresh session: streaming is stopped and the frame sequence
// restarts, which the firmware takes as a host restart.
func (c *Client) RetrieveDictionary(chunkSize uint8) error {
	if c.transport == nil {
		return ErrNotConnected
	}
	if chunkSize == 0 {
		chunkSize = 40
	}
	// The firmware never sends more per frame; a short chunk ends the loop
	if chunkSize > telemetry.IdentifyChunkMax {
		chunkSize = telemetry.IdentifyChunkMax
	}

	c.logf("Retrieving dictionary...\n")
	if c.dictionary != nil {
		// The sequence may already be back at its start, which the
		// firmware would not see as a restart
		_ = c.Stream(false, 1)
	}
	c.transport.Reset()

	var dictBuffer bytes.Buffer
	offset := uint32(0)
	for i := 0; i < 4096; i++ {
		chunk, err := c.sendIdentify(offset, chunkSize)
		if err != nil {
			return fmt.Errorf("failed to retrieve dictionary chunk at offset %d: %w", offset, err)
		}
		if len(chunk) == 0 {
			break
		}
		dictBuffer.Write(chunk)
		offset += uint32(len(chunk))

		if i%10 == 0 {
			c.logf("  Retrieved %d bytes...\n", offset)
		}
		if len(chunk) < int(chunkSize) {
			break
		}
	}

	raw := dictBuffer.Bytes()
	c.logf("Dictionary retrieved: %d bytes\n", len(raw))
	if tinycompress.IsZlib(raw) {
		decompressed, err := inflate(raw)
		if err != nil {
			return fmt.Errorf("failed to decompress dictionary: %w", err)
		}
		c.logf("Dictionary decompressed: %d -> %d bytes\n", len(raw), len(decompressed))
		raw = decompressed
	}

	return c.loadDictionary(raw)
}

// inflate decompresses a zlib stream of any block type
func inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

// loadDictionary parses the JSON and indexes commands by name
func (c *Client) loadDictionary(raw []byte) error {
	dict := &Dictionary{}
	if err := json.Unmarshal(raw, dict); err != nil {
		return fmt.Errorf("failed to parse dictionary: %w", err)
	}

	c.dictionaryData = raw
	c.dictionary = dict
	c.commands = indexByName(dict.Commands)
	c.responses = indexByName(dict.Responses)
	return nil
}

func indexByName(formats map[string]int) map[string]uint16 {
	index := make(map[string]uint16, len(formats))
	for format, id := range formats {
		name := format
		if i := strings.IndexByte(format, ' '); i >= 0 {
			name = format[:i]
		}
		index[name] = uint16(id)
	}
	return index
}

// sendIdentify requests one dictionary chunk. identify and its response
// have fixed IDs so this works before the dictionary is known.
func (c *Client) sendIdentify(offset uint32, count uint8) ([]byte, error) {
	err := c.transport.SendCommand(telemetry.IdentifyID, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQUint(output, uint32(count))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send identify command: %w", err)
	}

	payload, err := c.awaitResponse(telemetry.IdentifyResponseID)
	if err != nil {
		return nil, fmt.Errorf("failed to receive identify response: %w", err)
	}

	respOffset, err := protocol.DecodeVLQUint(&payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode response offset: %w", err)
	}
	if respOffset != offset {
		return nil, fmt.Errorf("offset mismatch: expected %d, got %d", offset, respOffset)
	}

	data, err := protocol.DecodeVLQBytes(&payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode response data: %w", err)
	}
	return data, nil
}

// awaitResponse returns the payload (after the ID) of the next response
// with cmdID, skipping streamed samples and anything else in between
func (c *Client) awaitResponse(cmdID uint16) ([]byte, error) {
	deadline := time.Now().Add(c.Timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("no response %d within %v", cmdID, c.Timeout)
		}
		msg, err := c.transport.ReceiveResponse(remaining)
		if err != nil {
			return nil, err
		}
		payload := msg.Payload
		id, err := protocol.DecodeVLQUint(&payload)
		if err != nil {
			continue
		}
		if uint16(id) == cmdID {
			return payload, nil
		}
	}
}

// send looks up a command by name and sends it
func (c *Client) send(name string, args func(output protocol.OutputBuffer)) error {
	if c.transport == nil {
		return ErrNotConnected
	}
	if c.dictionary == nil {
		return ErrNoDictionary
	}
	cmdID, ok := c.commands[name]
	if !ok {
		return fmt.Errorf("unknown command: %s", name)
	}
	return c.transport.SendCommand(cmdID, args)
}

// request sends a command and waits for the named response
func (c *Client) request(command, response string, args func(output protocol.OutputBuffer)) ([]byte, error) {
	if c.dictionary == nil {
		return nil, ErrNoDictionary
	}
	respID, ok := c.responses[response]
	if !ok {
		return nil, fmt.Errorf("unknown response: %s", response)
	}
	c.transport.DrainResponses()
	if err := c.send(command, args); err != nil {
		return nil, err
	}
	return c.awaitResponse(respID)
}

// ReadSignals fetches one consistent copy of the signal block
func (c *Client) ReadSignals() (core.Signals, error) {
	payload, err := c.request("get_signals", "signals", nil)
	if err != nil {
		return core.Signals{}, err
	}
	return telemetry.DecodeSignals(&payload)
}

// SetFrequency sets the requested waveform frequency
func (c *Client) SetFrequency(hz float32) error {
	return c.send("set_frequency", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQFloat(output, hz)
	})
}

// Stream enables or disables sample streaming, one sample every N
// interrupts
func (c *Client) Stream(enable bool, every uint32) error {
	flag := uint32(0)
	if enable {
		flag = 1
	}
	if !enable {
		defer c.transport.DrainResponses()
	}
	return c.send("stream_signals", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, flag)
		protocol.EncodeVLQUint(output, every)
	})
}

// NextSample waits for the next streamed sample
func (c *Client) NextSample() (core.Signals, error) {
	if c.dictionary == nil {
		return core.Signals{}, ErrNoDictionary
	}
	payload, err := c.awaitResponse(c.responses["signals"])
	if err != nil {
		return core.Signals{}, err
	}
	return telemetry.DecodeSignals(&payload)
}

// OnSample calls fn from the reader goroutine for every signals response,
// streamed or requested. Samples still queue for NextSample as well. A nil
// fn removes the callback.
func (c *Client) OnSample(fn func(core.Signals)) error {
	if c.transport == nil {
		return ErrNotConnected
	}
	if fn == nil {
		c.transport.SetResponseHandler(nil)
		return nil
	}
	if c.dictionary == nil {
		return ErrNoDictionary
	}

	signalsID := c.responses["signals"]
	c.transport.SetResponseHandler(func(cmdID uint16, data *[]byte) error {
		if cmdID != signalsID {
			return nil
		}
		sig, err := telemetry.DecodeSignals(data)
		if err != nil {
			return err
		}
		fn(sig)
		return nil
	})
	return nil
}

// ResetSignals re-initializes the firmware signal block
func (c *Client) ResetSignals() error {
	return c.send("reset_signals", nil)
}

// Uptime returns the number of interrupts the firmware has serviced
func (c *Client) Uptime() (uint32, error) {
	payload, err := c.request("get_uptime", "uptime", nil)
	if err != nil {
		return 0, err
	}
	return protocol.DecodeVLQUint(&payload)
}

// Overruns returns how often the interrupt fired while still running
func (c *Client) Overruns() (uint32, error) {
	payload, err := c.request("get_overruns", "overruns", nil)
	if err != nil {
		return 0, err
	}
	return protocol.DecodeVLQUint(&payload)
}

// GetDictionary returns the parsed dictionary
func (c *Client) GetDictionary() *Dictionary {
	return c.dictionary
}

// GetDictionaryRaw returns the decompressed dictionary JSON
func (c *Client) GetDictionaryRaw() []byte {
	return c.dictionaryData
}

// Constant returns a dictionary constant
func (c *Client) Constant(name string) (string, bool) {
	if c.dictionary == nil {
		return "", false
	}
	v, ok := c.dictionary.Config[name]
	return v, ok
}

// PrintDictionary writes a summary of the dictionary
func (c *Client) PrintDictionary(w io.Writer) {
	d := c.dictionary
	if d == nil {
		fmt.Fprintln(w, "No dictionary loaded")
		return
	}

	fmt.Fprintln(w, "\n=== Firmware Dictionary ===")
	fmt.Fprintf(w, "Version: %s\n", d.Version)
	fmt.Fprintf(w, "Build: %s\n", d.BuildVersions)

	fmt.Fprintln(w, "\nConfig:")
	for _, k := range sortedKeys(d.Config) {
		fmt.Fprintf(w, "  %s = %s\n", k, d.Config[k])
	}

	fmt.Fprintf(w, "\nCommands (%d):\n", len(d.Commands))
	for _, format := range sortedByID(d.Commands) {
		fmt.Fprintf(w, "  [%d] %s\n", d.Commands[format], format)
	}

	fmt.Fprintf(w, "\nResponses (%d):\n", len(d.Responses))
	for _, format := range sortedByID(d.Responses) {
		line := format
		if len(line) > 72 {
			line = line[:69] + "..."
		}
		fmt.Fprintf(w, "  [%d] %s\n", d.Responses[format], line)
	}

	if len(d.Enumerations) > 0 {
		fmt.Fprintf(w, "\nEnumerations (%d):\n", len(d.Enumerations))
		for name, values := range d.Enumerations {
			fmt.Fprintf(w, "  %s: %d values\n", name, len(values))
		}
	}
	fmt.Fprintln(w, "===========================")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedByID(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return m[keys[i]] < m[keys[j]] })
	return keys
}
