// Package config loads the scope host settings from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"wavescope/host/serial"
)

// SerialConfig selects the device the firmware enumerates as
type SerialConfig struct {
	Device      string        `yaml:"device"`
	Baud        int           `yaml:"baud"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// DictionaryConfig controls dictionary retrieval
type DictionaryConfig struct {
	ChunkSize uint8 `yaml:"chunk_size"`
}

// StreamConfig holds the defaults for the watch and capture commands
type StreamConfig struct {
	Every   uint32 `yaml:"every"`
	Samples int    `yaml:"samples"`
	CSVPath string `yaml:"csv_path"`
}

// Config is the top-level structure of scope.yaml
type Config struct {
	Serial     SerialConfig     `yaml:"serial"`
	Dictionary DictionaryConfig `yaml:"dictionary"`
	Stream     StreamConfig     `yaml:"stream"`

	// Frequency applied right after connecting; 0 leaves the firmware as is
	FrequencyHz float32       `yaml:"frequency_hz"`
	Timeout     time.Duration `yaml:"timeout"`
	Verbose     bool          `yaml:"verbose"`
}

// Default returns the settings used when no file is given
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Device:      "/dev/ttyACM0",
			Baud:        115200,
			ReadTimeout: 100 * time.Millisecond,
		},
		Dictionary: DictionaryConfig{ChunkSize: 40},
		Stream: StreamConfig{
			Every:   100,
			Samples: 20,
			CSVPath: "signals.csv",
		},
		Timeout: time.Second,
	}
}

// Load reads path over the defaults. Keys missing from the file keep
// their default.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scope config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse scope config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scope config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects settings the link cannot work with
func (c *Config) Validate() error {
	if c.Serial.Device == "" {
		return fmt.Errorf("serial.device is empty")
	}
	if c.Dictionary.ChunkSize == 0 || c.Dictionary.ChunkSize > 100 {
		return fmt.Errorf("dictionary.chunk_size must be 1-100, got %d", c.Dictionary.ChunkSize)
	}
	if c.Stream.Every == 0 {
		return fmt.Errorf("stream.every must be at least 1")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}

// SerialPort converts the serial section for serial.Open
func (c *Config) SerialPort() *serial.Config {
	return &serial.Config{
		Device:      c.Serial.Device,
		Baud:        c.Serial.Baud,
		ReadTimeout: c.Serial.ReadTimeout,
	}
}
