package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/neilberkman/p0pkit/internal/core/swarm"
)

type clientDoneMsg struct {
	result swarm.Result
}

type swarmDoneMsg struct{}

// waitForResult blocks on the launcher channel for the next finished client
func waitForResult(results <-chan swarm.Result) tea.Cmd {
	return func() tea.Msg {
		r, ok := <-results
		if !ok {
			return swarmDoneMsg{}
		}
		return clientDoneMsg{result: r}
	}
}
