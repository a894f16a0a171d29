package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFile_Missing(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if *cfg != *Default() {
		t.Errorf("LoadFile() = %+v, want defaults", cfg)
	}
}

func TestLoadFile_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
expected_lines = 100
client_binary = "./client"
client_command = "{{binary}} -h {{host}} -p {{port}}"
default_clients = 8
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.ExpectedLines != 100 {
		t.Errorf("ExpectedLines = %d, want 100", cfg.ExpectedLines)
	}
	if cfg.ClientBinary != "./client" {
		t.Errorf("ClientBinary = %q, want ./client", cfg.ClientBinary)
	}
	if cfg.ClientCommand != "{{binary}} -h {{host}} -p {{port}}" {
		t.Errorf("ClientCommand = %q", cfg.ClientCommand)
	}
	if cfg.DefaultClients != 8 {
		t.Errorf("DefaultClients = %d, want 8", cfg.DefaultClients)
	}

	// Unset keys keep defaults
	if cfg.EventClientBinary != DefaultEventClientBinary {
		t.Errorf("EventClientBinary = %q, want %q", cfg.EventClientBinary, DefaultEventClientBinary)
	}
	if cfg.InputFile != DefaultInputFile {
		t.Errorf("InputFile = %q, want %q", cfg.InputFile, DefaultInputFile)
	}
}

func TestLoadFile_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("expected_lines = ["), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.ExpectedLines != DefaultExpectedLines {
		t.Errorf("ExpectedLines = %d, want default", cfg.ExpectedLines)
	}
}

func TestBinary(t *testing.T) {
	cfg := Default()
	if got := cfg.Binary(false); got != DefaultClientBinary {
		t.Errorf("Binary(false) = %q", got)
	}
	if got := cfg.Binary(true); got != DefaultEventClientBinary {
		t.Errorf("Binary(true) = %q", got)
	}
}
