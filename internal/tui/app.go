// Package tui renders the ticket dashboard in the terminal.
package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/developer-yasir/support-panel/internal/api/dto"
	"github.com/developer-yasir/support-panel/internal/realtime"
	"github.com/developer-yasir/support-panel/internal/stats"
)

const (
	defaultSLAInterval = 30 * time.Second
	defaultSLALimit    = 5
)

// Refresher requests an out-of-band stats refresh. *stats.Coordinator
// implements it.
type Refresher interface {
	Request()
}

// SLASource loads the SLA overview. *apiclient.Client implements it.
type SLASource interface {
	SLASummary(ctx context.Context, limit int) (dto.SLASummaryResponse, error)
}

// Options configures an App.
type Options struct {
	Refresher   Refresher
	SLA         SLASource
	SLAInterval time.Duration
	SLALimit    int
	// Window is the filter label shown in the header.
	Window string
}

// App is the root Bubble Tea model. Stats arrive from the coordinator as
// messages; the SLA overview is polled by the model itself.
type App struct {
	refresher   Refresher
	sla         SLASource
	slaInterval time.Duration
	slaLimit    int
	window      string

	snapshot    *stats.Snapshot
	newTickets  int
	lastError   error
	lastUpdated time.Time

	connState realtime.State
	connErr   error

	summary     *dto.SLASummaryResponse
	slaError    error
	fetchingSLA bool

	width, height int
	showHelp      bool
}

// NewApp creates the model.
func NewApp(opts Options) *App {
	if opts.SLAInterval <= 0 {
		opts.SLAInterval = defaultSLAInterval
	}
	if opts.SLALimit <= 0 {
		opts.SLALimit = defaultSLALimit
	}
	return &App{
		refresher:   opts.Refresher,
		sla:         opts.SLA,
		slaInterval: opts.SLAInterval,
		slaLimit:    opts.SLALimit,
		window:      opts.Window,
		connState:   realtime.StateDisconnected,
	}
}

// Init implements tea.Model.
func (app *App) Init() tea.Cmd {
	return app.fetchSLA()
}

// Update implements tea.Model.
func (app *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		app.width = msg.Width
		app.height = msg.Height

	case SnapshotMsg:
		snap := msg.Snapshot
		app.snapshot = &snap
		app.lastError = nil
		app.lastUpdated = snap.CapturedAt

	case NewTicketsMsg:
		app.newTickets = msg.Count

	case FetchErrorMsg:
		app.lastError = msg.Err

	case ConnStateMsg:
		app.connState = msg.State
		app.connErr = msg.Err

	case SLAMsg:
		summary := msg.Summary
		app.summary = &summary
		app.slaError = nil
		app.fetchingSLA = false
		return app, slaTick(app.slaInterval)

	case SLAErrorMsg:
		app.slaError = msg.Err
		app.fetchingSLA = false
		return app, slaTick(app.slaInterval)

	case SLATickMsg:
		return app, app.fetchSLA()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return app, tea.Quit
		case key.Matches(msg, keys.Refresh):
			if app.refresher != nil {
				app.refresher.Request()
			}
			return app, app.fetchSLA()
		case key.Matches(msg, keys.Help):
			app.showHelp = !app.showHelp
		}
	}
	return app, nil
}

// View implements tea.Model.
func (app *App) View() string {
	parts := []string{renderHeader(app), renderStats(app)}
	if s := renderSLA(app); s != "" {
		parts = append(parts, s)
	}
	parts = append(parts, renderFooter(app))
	return strings.Join(parts, "\n")
}

// fetchSLA starts an overview fetch unless one is running or no source is
// configured.
func (app *App) fetchSLA() tea.Cmd {
	if app.sla == nil || app.fetchingSLA {
		return nil
	}
	app.fetchingSLA = true
	src, limit, timeout := app.sla, app.slaLimit, app.slaInterval
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		summary, err := src.SLASummary(ctx, limit)
		if err != nil {
			return SLAErrorMsg{Err: err}
		}
		return SLAMsg{Summary: summary}
	}
}

func slaTick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return SLATickMsg(t)
	})
}
