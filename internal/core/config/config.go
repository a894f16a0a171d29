package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

const (
	DefaultExpectedLines     = 58936
	DefaultClientBinary      = "Thread/client"
	DefaultEventClientBinary = "Event/client"
	DefaultClientCommand     = "{{{binary}}} {{{host}}} {{{port}}}"
	DefaultInputFile         = "Dostoyevsky.txt"
	DefaultClients           = 1
	DefaultExpectIntervalMS  = 10
)

type Config struct {
	ExpectedLines     int
	ClientBinary      string // Thread-based client, used by default
	EventClientBinary string // Event-based client, used with --event
	ClientCommand     string // Mustache template for the client shell command; host and port arrive shell quoted
	InputFile         string // Fed to each client's stdin
	DefaultClients    int
	ExpectIntervalMS  int // Pause between lines in expect mode
}

type tomlConfig struct {
	ExpectedLines     int    `toml:"expected_lines"`
	ClientBinary      string `toml:"client_binary"`
	EventClientBinary string `toml:"event_client_binary"`
	ClientCommand     string `toml:"client_command"`
	InputFile         string `toml:"input_file"`
	DefaultClients    int    `toml:"default_clients"`
	ExpectIntervalMS  int    `toml:"expect_interval_ms"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		ExpectedLines:     DefaultExpectedLines,
		ClientBinary:      DefaultClientBinary,
		EventClientBinary: DefaultEventClientBinary,
		ClientCommand:     DefaultClientCommand,
		InputFile:         DefaultInputFile,
		DefaultClients:    DefaultClients,
		ExpectIntervalMS:  DefaultExpectIntervalMS,
	}
}

// Dir returns ~/.config/p0pkit
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("~", ".config", "p0pkit")
	}
	return filepath.Join(home, ".config", "p0pkit")
}

// Load reads config from ~/.config/p0pkit/config.toml
func Load() (*Config, error) {
	return LoadFile(filepath.Join(Dir(), "config.toml"))
}

// LoadFile reads config from path. A missing or unreadable file yields the
// defaults; zero values in the file keep their defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err != nil {
		return cfg, nil // Use defaults
	}

	var tc tomlConfig
	if _, err := toml.DecodeFile(path, &tc); err != nil {
		return cfg, nil
	}

	if tc.ExpectedLines > 0 {
		cfg.ExpectedLines = tc.ExpectedLines
	}
	if tc.ClientBinary != "" {
		cfg.ClientBinary = tc.ClientBinary
	}
	if tc.EventClientBinary != "" {
		cfg.EventClientBinary = tc.EventClientBinary
	}
	if tc.ClientCommand != "" {
		cfg.ClientCommand = tc.ClientCommand
	}
	if tc.InputFile != "" {
		cfg.InputFile = tc.InputFile
	}
	if tc.DefaultClients > 0 {
		cfg.DefaultClients = tc.DefaultClients
	}
	if tc.ExpectIntervalMS > 0 {
		cfg.ExpectIntervalMS = tc.ExpectIntervalMS
	}

	return cfg, nil
}

// Binary picks the client binary family
func (c *Config) Binary(event bool) string {
	if event {
		return c.EventClientBinary
	}
	return c.ClientBinary
}
