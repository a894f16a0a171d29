package lossrate

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neilberkman/p0pkit/pkg/p0plog"
)

// With n = 4 the expected range is [0, 5].
const testExpected = 4

func sessionLines(id string, seqs []int, lost map[int]bool) []string {
	var lines []string
	for _, seq := range seqs {
		text := "data"
		if lost[seq] {
			text = "Lost packet!"
		}
		lines = append(lines, fmt.Sprintf("%s [%d] %s", id, seq, text))
	}
	return lines
}

func buildLog(lines ...[]string) *p0plog.Log {
	var all []string
	for _, l := range lines {
		all = append(all, l...)
	}
	return p0plog.Parse("test.log", strings.Join(all, "\n"))
}

func TestAnalyze_NoGaps(t *testing.T) {
	log := buildLog(sessionLines("0x0000000a", []int{0, 1, 2, 3, 4, 5}, map[int]bool{2: true}))

	report := New(testExpected).Analyze(log)

	require.Len(t, report.Sessions, 1)
	s := report.Sessions[0]
	assert.True(t, s.CheckedGaps)
	assert.Empty(t, s.Missing)
	assert.Equal(t, 1, s.Lost)
	assert.InDelta(t, 25.0, s.Rate, 1e-9)
	assert.Equal(t, 1, report.TotalLost)
	assert.Equal(t, testExpected, report.Denominator)
}

func TestAnalyze_FastPathSkipsGapDetection(t *testing.T) {
	// n+3 lines but seq 1 and 2 never appear
	log := buildLog(sessionLines("0x0000000b", []int{0, 0, 3, 3, 4, 5, 5}, map[int]bool{4: true}))

	report := New(testExpected).Analyze(log)

	require.Len(t, report.Sessions, 1)
	s := report.Sessions[0]
	assert.Equal(t, testExpected+HeaderFooterLines, s.Lines)
	assert.False(t, s.CheckedGaps)
	assert.False(t, s.Anomaly())
	assert.Equal(t, 1, s.Lost)
}

func TestAnalyze_TrailingGapIsAbsorbed(t *testing.T) {
	log := buildLog(sessionLines("0x0000000c", []int{0, 1, 2, 3}, nil))

	report := New(testExpected).Analyze(log)

	s := report.Sessions[0]
	assert.True(t, s.CheckedGaps)
	assert.False(t, s.Anomaly())
	assert.Equal(t, "0x0000000c loss rate (%): 0.0000 (0 / 4)", s.String(testExpected))
}

func TestAnalyze_InteriorGapIsAnomaly(t *testing.T) {
	log := buildLog(sessionLines("0x0000000d", []int{0, 1, 3, 4, 5}, map[int]bool{4: true}))

	report := New(testExpected).Analyze(log)

	s := report.Sessions[0]
	assert.True(t, s.Anomaly())
	assert.Equal(t, []int{2}, s.Missing)
	assert.Equal(t, 0, s.Lost, "loss count is not computed for anomalous sessions")
	assert.Equal(t, "0x0000000d - missing seq: 2", s.String(testExpected))
	assert.Equal(t, 0, report.TotalLost)
}

func TestAnalyze_AnomalyReportsFullMissingSet(t *testing.T) {
	// missing {1, 5}: the trailing walk removes 5 but 1 remains, and both are reported
	log := buildLog(sessionLines("0x0000000e", []int{0, 2, 3, 4}, nil))

	report := New(testExpected).Analyze(log)

	assert.Equal(t, []int{1, 5}, report.Sessions[0].Missing)
	assert.Equal(t, "0x0000000e - missing seq: 1 5", report.Sessions[0].String(testExpected))
}

func TestAnalyze_DenominatorCountsAnomalousSessions(t *testing.T) {
	log := buildLog(
		sessionLines("0x00000001", []int{0, 1, 2, 3, 4, 5}, map[int]bool{1: true, 3: true}),
		sessionLines("0x00000002", []int{0, 2, 3, 4, 5}, map[int]bool{3: true}),
	)

	report := New(testExpected).Analyze(log)

	require.Len(t, report.Sessions, 2)
	assert.Equal(t, 2, report.TotalLost)
	assert.Equal(t, testExpected*2, report.Denominator)
	assert.Equal(t, 1, report.AnomalyCount())
	assert.Equal(t, "Average loss rate: 25.0000 (2 / 8)", report.Summary())
}

func TestAnalyze_NoSessions(t *testing.T) {
	log := p0plog.Parse("empty.log", "server started\nno sessions here\n")

	report := New(testExpected).Analyze(log)

	assert.Empty(t, report.Sessions)
	assert.Equal(t, 0, report.Denominator)
	assert.Equal(t, 0.0, report.Rate())

	var buf bytes.Buffer
	require.NoError(t, report.Write(&buf))
	assert.Equal(t, "no sessions to analyze\n", buf.String())
}

func TestAnalyze_LinesWithoutPrefixAreIgnored(t *testing.T) {
	lines := append([]string{"Waiting on port 1234..."}, sessionLines("0x0000000f", []int{0, 1, 2, 3, 4, 5}, nil)...)
	report := New(testExpected).Analyze(buildLog(lines))

	require.Len(t, report.Sessions, 1)
	assert.Equal(t, 6, report.Sessions[0].Lines)
	assert.Equal(t, 7, report.TotalLines)
}

func TestSessionResultString_DefaultExpected(t *testing.T) {
	s := SessionResult{SessionID: "0xabc", Lost: 10, Rate: percent(10, DefaultExpectedTotal)}

	assert.Equal(t, "0xabc loss rate (%): 0.0170 (10 / 58936)", s.String(DefaultExpectedTotal))
}

func TestReportWrite(t *testing.T) {
	log := buildLog(
		sessionLines("0x00000001", []int{0, 1, 2, 3, 4, 5}, map[int]bool{1: true}),
		sessionLines("0x00000002", []int{0, 1, 3, 4, 5}, nil),
	)

	var buf bytes.Buffer
	require.NoError(t, New(testExpected).Analyze(log).Write(&buf))

	want := "0x00000001 loss rate (%): 25.0000 (1 / 4)\n" +
		"0x00000002 - missing seq: 2\n" +
		"Average loss rate: 12.5000 (1 / 8)\n"
	assert.Equal(t, want, buf.String())
}

func TestMissingSet(t *testing.T) {
	seqs := map[int]struct{}{0: {}, 1: {}, 3: {}}

	assert.Equal(t, []int{2, 4, 5}, MissingSet(seqs, 5))
	assert.Empty(t, MissingSet(map[int]struct{}{0: {}, 1: {}}, 1))
}

func TestTrimTrailing(t *testing.T) {
	tests := []struct {
		name    string
		missing []int
		top     int
		want    []int
	}{
		{"empty", nil, 5, []int{}},
		{"trailing run", []int{4, 5}, 5, []int{}},
		{"interior only", []int{2}, 5, []int{2}},
		{"interior and trailing", []int{1, 4, 5}, 5, []int{1}},
		{"run broken below top", []int{3, 5}, 5, []int{3}},
		{"everything missing", []int{0, 1, 2, 3, 4, 5}, 5, []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orig := append([]int(nil), tt.missing...)
			got := TrimTrailing(tt.missing, tt.top)
			assert.ElementsMatch(t, tt.want, got)
			assert.Equal(t, orig, tt.missing, "input must not be modified")
		})
	}
}

func TestNew_DefaultsExpectedTotal(t *testing.T) {
	assert.Equal(t, DefaultExpectedTotal, New(0).ExpectedTotal)
	assert.Equal(t, 10, New(10).ExpectedTotal)
}
