package swarm

import (
	"fmt"
	"strings"

	"github.com/cbroglie/mustache"
)

// BuildCommand renders the shell command that starts one client.
//
// Template variables: binary, host, port, input. host, port and input are
// shell quoted; binary is inserted as-is so it may carry its own arguments.
// Without expect mode the input file is redirected to stdin.
func BuildCommand(cfg Config) (string, error) {
	if cfg.CommandTemplate == "" {
		return "", fmt.Errorf("empty client command template")
	}

	data := map[string]interface{}{
		"binary": cfg.Binary,
		"host":   shellEscape(cfg.Host),
		"port":   shellEscape(cfg.Port),
		"input":  shellEscape(cfg.InputFile),
	}

	cmd, err := mustache.Render(cfg.CommandTemplate, data)
	if err != nil {
		return "", fmt.Errorf("failed to render client command: %w", err)
	}
	cmd = strings.TrimSpace(cmd)

	if !cfg.Expect && cfg.InputFile != "" {
		cmd += " < " + shellEscape(cfg.InputFile)
	}

	return cmd, nil
}

// shellEscape escapes a string for safe use in shell commands
func shellEscape(s string) string {
	// Simple escape: wrap in single quotes, escape single quotes
	return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
}
