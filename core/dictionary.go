package core

import (
	"bytes"
	"sort"
	"sync"

	"wavescope/tinycompress"
)

// Constant is a firmware constant exposed to the host
type Constant struct {
	Name  string
	Value interface{}
}

// Enumeration maps names to their index, e.g. the signal field order
type Enumeration struct {
	Name   string
	Values []string
}

// Dictionary describes the firmware to the host scope: version, constants,
// commands, responses and enumerations. It is sent zlib-wrapped, in chunks,
// in reply to identify.
type Dictionary struct {
	mu            sync.RWMutex
	constants     map[string]*Constant
	enumerations  map[string]*Enumeration
	commandReg    *CommandRegistry
	version       string
	buildVersions string
	cachedDict    []byte
}

// NewDictionary creates a dictionary over a command registry
func NewDictionary(cmdReg *CommandRegistry) *Dictionary {
	return &Dictionary{
		constants:     make(map[string]*Constant),
		enumerations:  make(map[string]*Enumeration),
		commandReg:    cmdReg,
		version:       "wavescope-0.1.0",
		buildVersions: "go-tinygo",
	}
}

// AddConstant adds a constant. Invalidates the cached build.
func (d *Dictionary) AddConstant(name string, value interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.constants[name] = &Constant{Name: name, Value: value}
	d.cachedDict = nil
}

// AddEnumeration adds an enumeration. Invalidates the cached build.
func (d *Dictionary) AddEnumeration(name string, values []string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	// Keep our own copy; TinyGo's GC may reclaim the caller's slice
	valuesCopy := make([]string, len(values))
	copy(valuesCopy, values)
	d.enumerations[name] = &Enumeration{Name: name, Values: valuesCopy}
	d.cachedDict = nil
}

// SetVersion sets the firmware version string
func (d *Dictionary) SetVersion(version string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.version = version
	d.cachedDict = nil
}

// BuildDictionary builds and caches the compressed dictionary.
// Call it after every command and constant is registered.
func (d *Dictionary) BuildDictionary() {
	// Fetch commands before taking our own lock; the registry has its own
	commands, responses := d.commandReg.GetCommandsAndResponses()

	d.mu.Lock()
	defer d.mu.Unlock()

	jsonData := d.buildJSONLocked(commands, responses)
	DebugPrintln("[Dict] JSON size: " + itoa(len(jsonData)) + " bytes")

	var buf bytes.Buffer
	w := tinycompress.NewWriter(&buf)
	if _, err := w.Write(jsonData); err != nil {
		DebugPrintln("[Dict] compression write failed: " + err.Error())
		d.cachedDict = jsonData
		return
	}
	if err := w.Close(); err != nil {
		DebugPrintln("[Dict] compression close failed: " + err.Error())
		d.cachedDict = jsonData
		return
	}
	d.cachedDict = buf.Bytes()
}

// Generate returns the cached dictionary, building it on first use
func (d *Dictionary) Generate() []byte {
	d.mu.RLock()
	cached := d.cachedDict
	d.mu.RUnlock()
	if cached != nil {
		return cached
	}
	d.BuildDictionary()

	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cachedDict
}

// GetChunk returns up to count bytes of the dictionary starting at offset.
// An empty chunk marks the end.
func (d *Dictionary) GetChunk(offset uint32, count uint8) []byte {
	data := d.Generate()
	if offset >= uint32(len(data)) {
		return []byte{}
	}
	end := offset + uint32(count)
	if end > uint32(len(data)) {
		end = uint32(len(data))
	}

	// Copy: the chunk outlives this call while it sits in the USB buffer
	chunk := make([]byte, end-offset)
	copy(chunk, data[offset:end])
	return chunk
}

// buildJSONLocked writes the dictionary JSON by hand; encoding/json's
// reflection is too heavy for the firmware. Caller holds d.mu.
func (d *Dictionary) buildJSONLocked(commands map[string]int, responses map[string]int) []byte {
	result := make([]byte, 0, 1024)

	result = append(result, `{"version":"`...)
	result = append(result, d.version...)
	result = append(result, `","build_versions":"`...)
	result = append(result, d.buildVersions...)
	result = append(result, `","config":{`...)

	constNames := make([]string, 0, len(d.constants))
	for name := range d.constants {
		constNames = append(constNames, name)
	}
	sort.Strings(constNames)
	for i, name := range constNames {
		if i > 0 {
			result = append(result, ',')
		}
		result = append(result, '"')
		result = append(result, name...)
		result = append(result, `":"`...)
		result = append(result, valueToString(d.constants[name].Value)...)
		result = append(result, '"')
	}

	result = append(result, `},"commands":`...)
	result = appendIDMap(result, commands)
	result = append(result, `,"responses":`...)
	result = appendIDMap(result, responses)

	if len(d.enumerations) > 0 {
		result = append(result, `,"enumerations":{`...)
		enumNames := make([]string, 0, len(d.enumerations))
		for name := range d.enumerations {
			enumNames = append(enumNames, name)
		}
		sort.Strings(enumNames)

		for i, name := range enumNames {
			if i > 0 {
				result = append(result, ',')
			}
			result = append(result, '"')
			result = append(result, name...)
			result = append(result, `":{`...)
			first := true
			for idx, value := range d.enumerations[name].Values {
				if value == "" {
					continue
				}
				if !first {
					result = append(result, ',')
				}
				result = append(result, '"')
				result = append(result, value...)
				result = append(result, `":`...)
				result = append(result, itoa(idx)...)
				first = false
			}
			result = append(result, '}')
		}
		result = append(result, '}')
	}

	return append(result, '}')
}

// appendIDMap writes {"format":id,...} ordered by ID
func appendIDMap(result []byte, m map[string]int) []byte {
	formats := make([]string, 0, len(m))
	for format := range m {
		formats = append(formats, format)
	}
	sort.Slice(formats, func(i, j int) bool { return m[formats[i]] < m[formats[j]] })

	result = append(result, '{')
	for i, format := range formats {
		if i > 0 {
			result = append(result, ',')
		}
		result = append(result, '"')
		result = append(result, format...)
		result = append(result, `":`...)
		result = append(result, itoa(m[format])...)
	}
	return append(result, '}')
}
