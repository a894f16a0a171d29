package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/neilberkman/p0pkit/internal/core/swarm"
)

// recentLimit is how many finished clients stay on screen
const recentLimit = 8

type keymap struct {
	Cancel key.Binding
}

func (k keymap) ShortHelp() []key.Binding {
	return []key.Binding{k.Cancel}
}

func (k keymap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

func defaultKeymap() keymap {
	return keymap{
		Cancel: key.NewBinding(
			key.WithKeys("ctrl+c", "q", "esc"),
			key.WithHelp("q", "cancel pending clients"),
		),
	}
}

// SwarmModel shows a running swarm: a spinner while clients are pending, a
// bar over finished clients, and the most recent exits.
type SwarmModel struct {
	label   string
	total   int
	started time.Time

	results    []swarm.Result
	ch         <-chan swarm.Result
	cancel     context.CancelFunc
	cancelling bool
	done       bool

	spinner  spinner.Model
	progress progress.Model
	help     help.Model
	keys     keymap
}

// NewSwarmModel creates the view over a launcher's result channel. cancel is
// called when the user asks to stop; started clients still run to completion.
func NewSwarmModel(label string, total int, results <-chan swarm.Result, cancel context.CancelFunc) SwarmModel {
	return SwarmModel{
		label:   label,
		total:   total,
		started: time.Now(),
		ch:      results,
		cancel:  cancel,
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(spinnerStyle),
		),
		progress: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(50),
		),
		help: help.New(),
		keys: defaultKeymap(),
	}
}

// Results returns the clients that finished so far
func (m SwarmModel) Results() []swarm.Result {
	return m.results
}

func (m SwarmModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForResult(m.ch))
}

func (m SwarmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		width := msg.Width - 4
		if width > 80 {
			width = 80
		}
		if width < 20 {
			width = 20
		}
		m.progress.Width = width
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Cancel) && !m.cancelling {
			m.cancelling = true
			if m.cancel != nil {
				m.cancel()
			}
		}
		return m, nil

	case clientDoneMsg:
		m.results = append(m.results, msg.result)
		return m, waitForResult(m.ch)

	case swarmDoneMsg:
		m.done = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m SwarmModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("Client swarm → %s", m.label)))
	b.WriteString("\n\n")

	finished := len(m.results)
	switch {
	case m.done:
		b.WriteString(okStyle.Render("✓"))
		b.WriteString(fmt.Sprintf(" %d of %d clients finished", finished, m.total))
	case m.cancelling:
		b.WriteString(m.spinner.View())
		b.WriteString(" Cancelling, waiting for started clients to exit...")
	default:
		b.WriteString(m.spinner.View())
		b.WriteString(fmt.Sprintf(" %d client(s) running or waiting", m.total-finished))
	}
	b.WriteString("\n\n")

	pct := 0.0
	if m.total > 0 {
		pct = float64(finished) / float64(m.total)
	}
	b.WriteString(m.progress.ViewAs(pct))
	b.WriteString("\n")

	stats := swarm.Summarize(m.results)
	b.WriteString(metaStyle.Render(fmt.Sprintf("%d/%d done, %d failed, %s elapsed",
		finished, m.total, stats.Failures, time.Since(m.started).Round(time.Second))))
	b.WriteString("\n\n")

	start := 0
	if len(m.results) > recentLimit {
		start = len(m.results) - recentLimit
	}
	for _, r := range m.results[start:] {
		b.WriteString(renderResult(r))
		b.WriteString("\n")
	}

	if !m.done {
		b.WriteString("\n")
		b.WriteString(helpStyle.Render(m.help.View(m.keys)))
		b.WriteString("\n")
	}

	return b.String()
}

func renderResult(r swarm.Result) string {
	switch {
	case r.Err != nil:
		return failStyle.Render(fmt.Sprintf("client %d error: %v", r.Index, r.Err))
	case r.ExitCode != 0:
		return failStyle.Render(fmt.Sprintf("client %d (%d): %.6f", r.Index, r.ExitCode, r.Elapsed.Seconds()))
	default:
		return okStyle.Render(fmt.Sprintf("client %d (%d): %.6f", r.Index, r.ExitCode, r.Elapsed.Seconds()))
	}
}

// RunSwarm starts the launcher and shows its progress until every client has
// reported. It returns the collected results.
func RunSwarm(ctx context.Context, launcher *swarm.Launcher, label string, total int) ([]swarm.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch := launcher.Run(ctx)
	p := tea.NewProgram(NewSwarmModel(label, total, ch, cancel))

	finalModel, err := p.Run()
	if err != nil {
		cancel()
		var results []swarm.Result
		for r := range ch {
			results = append(results, r)
		}
		return results, err
	}

	m, ok := finalModel.(SwarmModel)
	if !ok {
		return nil, fmt.Errorf("unexpected model type %T", finalModel)
	}

	return m.Results(), nil
}
