package p0plog

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// LostMarker is the suffix the server writes for every sequence number it
// never received.
const LostMarker = "Lost packet!"

var (
	sessionIDPattern = regexp.MustCompile(`^(0x[0-9a-f]+)`)
	seqPattern       = regexp.MustCompile(`\[(\d+)\]`)
	lineBreaks       = regexp.MustCompile(`[\r\n]+`)
)

// Log is a capture log loaded fully into memory
type Log struct {
	Path  string
	Size  int64
	Lines []Line
}

// Line is one trimmed log line and the fields parsed out of it.
//
// Grammar: [0x<hex>] ... ["[" <decimal> "]"] ... ["Lost packet!"]
type Line struct {
	Text      string
	SessionID string // empty when the line has no 0x prefix
	Seq       int
	HasSeq    bool
	Lost      bool
}

// ReadFile reads and parses a whole capture log in one pass
func ReadFile(path string) (*Log, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read log: %w", err)
	}

	return Parse(path, string(data)), nil
}

// Parse builds a Log from raw file contents
func Parse(path, data string) *Log {
	texts := Split(data)
	log := &Log{
		Path:  path,
		Size:  int64(len(data)),
		Lines: make([]Line, 0, len(texts)),
	}
	for _, text := range texts {
		log.Lines = append(log.Lines, ParseLine(text))
	}
	return log
}

// Split breaks data on any run of CR/LF characters and trims each piece.
// A trailing line break leaves a final empty line.
func Split(data string) []string {
	parts := lineBreaks.Split(data, -1)
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

// ParseLine applies the line grammar to a single trimmed line
func ParseLine(text string) Line {
	line := Line{Text: text}

	if m := sessionIDPattern.FindStringSubmatch(text); m != nil {
		line.SessionID = m[1]
	}

	if m := seqPattern.FindStringSubmatch(text); m != nil {
		// Digits only, so the only failure is overflow; treat that as no seq.
		if n, err := strconv.Atoi(m[1]); err == nil {
			line.Seq = n
			line.HasSeq = true
		}
	}

	line.Lost = hasSuffixFold(text, LostMarker)

	return line
}

func hasSuffixFold(s, suffix string) bool {
	if len(s) < len(suffix) {
		return false
	}
	return strings.EqualFold(s[len(s)-len(suffix):], suffix)
}
