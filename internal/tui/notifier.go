package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/developer-yasir/support-panel/internal/realtime"
	"github.com/developer-yasir/support-panel/internal/stats"
)

// StateReader exposes the push channel state. *realtime.Manager implements it.
type StateReader interface {
	State() realtime.State
}

// Notifier turns coordinator callbacks and push channel events into
// messages for a running program.
type Notifier struct {
	send func(tea.Msg)
}

// NewNotifier returns a Notifier that delivers through send, usually a
// tea.Program's Send.
func NewNotifier(send func(tea.Msg)) *Notifier {
	return &Notifier{send: send}
}

// Snapshot is a stats.Options.OnSnapshot callback.
func (n *Notifier) Snapshot(s stats.Snapshot) { n.send(SnapshotMsg{Snapshot: s}) }

// NewTickets is a stats.Options.OnNewTickets callback.
func (n *Notifier) NewTickets(count int) { n.send(NewTicketsMsg{Count: count}) }

// Error is a stats.Options.OnError callback.
func (n *Notifier) Error(err error) { n.send(FetchErrorMsg{Err: err}) }

// ConnListener returns a listener that reports the state of src after each
// open, close or error event.
func (n *Notifier) ConnListener(src StateReader) realtime.Listener {
	return func(ev realtime.Event) {
		n.send(ConnStateMsg{State: src.State(), Err: ev.Err})
	}
}
