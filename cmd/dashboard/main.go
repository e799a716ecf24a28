// dashboard is the terminal client of the support panel. It keeps the
// ticket stats current by polling the API and by listening on the push
// channel, and renders them with an SLA overview.
//
// With --plain it skips the terminal UI and logs every change as JSON.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/developer-yasir/support-panel/internal/apiclient"
	"github.com/developer-yasir/support-panel/internal/config"
	"github.com/developer-yasir/support-panel/internal/domain"
	"github.com/developer-yasir/support-panel/internal/observability"
	"github.com/developer-yasir/support-panel/internal/realtime"
	"github.com/developer-yasir/support-panel/internal/stats"
	"github.com/developer-yasir/support-panel/internal/tui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	dc := &cfg.Dashboard

	var plain bool
	flagSet := pflag.NewFlagSet("dashboard", pflag.ContinueOnError)
	flagSet.StringVar(&dc.APIURL, "api-url", dc.APIURL, "ticket API base URL")
	flagSet.StringVar(&dc.PushURL, "push-url", dc.PushURL, "push channel URL (default: derived from --api-url)")
	flagSet.StringVar(&dc.Token, "token", dc.Token, "access token minted for a DASHBOARD subject")
	flagSet.StringVar(&dc.StartDate, "start-date", dc.StartDate, "only count tickets created on or after this day (YYYY-MM-DD)")
	flagSet.StringVar(&dc.EndDate, "end-date", dc.EndDate, "only count tickets created on or before this day (YYYY-MM-DD)")
	flagSet.IntVar(&dc.PollSeconds, "poll", dc.PollSeconds, "seconds between periodic refreshes")
	flagSet.StringVar(&cfg.Logger.File, "log-file", cfg.Logger.File, "write JSON logs to this file")
	flagSet.BoolVar(&plain, "plain", false, "log changes instead of drawing the terminal UI")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	window, err := dc.Window()
	if err != nil {
		return fmt.Errorf("invalid date filter: %w", err)
	}
	if dc.Token == "" {
		return errors.New("a token is required: set DASHBOARD_TOKEN or pass --token")
	}

	logger := zap.NewNop()
	if plain || cfg.Logger.File != "" {
		logger, err = observability.NewLogger(cfg.Logger)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer logger.Sync() //nolint:errcheck
	}

	client, err := apiclient.New(apiclient.Config{BaseURL: dc.APIURL, Token: dc.Token})
	if err != nil {
		return err
	}
	endpoint := dc.PushURL
	if endpoint == "" {
		if endpoint, err = realtime.EndpointFromAPI(dc.APIURL, cfg.Push.Path); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		logger.Warn("ticket API not reachable yet", zap.String("api", client.BaseURL()), zap.Error(err))
	}

	manager := realtime.NewManager(realtime.Options{
		Dialer:               realtime.NewWebsocketDialer(realtime.BearerHeader(dc.Token)),
		Logger:               logger,
		ReconnectDelay:       dc.ReconnectDelay(),
		MaxReconnectAttempts: dc.MaxReconnectAttempts,
	})
	defer manager.Disconnect()

	opts := stats.Options{
		Logger:        logger,
		PollInterval:  dc.PollInterval(),
		Debounce:      dc.Debounce(),
		NewTicketsTTL: dc.NewTicketsTTL(),
	}

	if plain {
		return runPlain(ctx, logger, client, manager, endpoint, window, opts)
	}
	return runTUI(ctx, client, manager, endpoint, window, opts)
}

func runTUI(ctx context.Context, client *apiclient.Client, manager *realtime.Manager, endpoint string, window domain.FilterWindow, opts stats.Options) error {
	var program *tea.Program
	notifier := tui.NewNotifier(func(msg tea.Msg) { program.Send(msg) })
	opts.OnSnapshot = notifier.Snapshot
	opts.OnNewTickets = notifier.NewTickets
	opts.OnError = notifier.Error

	coordinator := stats.NewCoordinator(client, manager, opts)
	program = tea.NewProgram(tui.NewApp(tui.Options{
		Refresher: coordinator,
		SLA:       client,
		Window:    window.String(),
	}), tea.WithAltScreen(), tea.WithContext(ctx))

	conn := notifier.ConnListener(manager)
	for _, kind := range []realtime.EventKind{realtime.EventOpen, realtime.EventClose, realtime.EventError} {
		manager.AddListener(kind, conn)
	}
	manager.Connect(endpoint)
	if err := coordinator.Start(ctx, window); err != nil {
		return err
	}
	defer coordinator.Stop()

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		defer stop()
		_, err := program.Run()
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		waitForSignal(gctx)
		program.Quit()
		return nil
	})
	return g.Wait()
}

func runPlain(ctx context.Context, logger *zap.Logger, client *apiclient.Client, manager *realtime.Manager, endpoint string, window domain.FilterWindow, opts stats.Options) error {
	opts.OnSnapshot = func(s stats.Snapshot) {
		logger.Info("ticket stats",
			zap.Int("total", s.TotalTickets),
			zap.Int("open", s.OpenTickets),
			zap.Int("in_progress", s.InProgressTickets),
			zap.Int("high_priority", s.HighPriorityTickets),
			zap.Time("captured_at", s.CapturedAt))
	}
	opts.OnNewTickets = func(n int) {
		if n > 0 {
			logger.Info("new tickets", zap.Int("count", n))
		}
	}
	opts.OnError = func(err error) {
		logger.Warn("stats refresh failed", zap.Error(err))
	}
	manager.AddListener(realtime.EventClose, func(ev realtime.Event) {
		logger.Info("push channel closed", zap.Stringer("state", manager.State()), zap.Error(ev.Err))
	})
	manager.AddListener(realtime.EventError, func(ev realtime.Event) {
		if errors.Is(ev.Err, realtime.ErrRetriesExhausted) {
			logger.Error("push channel gave up; relying on polling", zap.Error(ev.Err))
		}
	})

	coordinator := stats.NewCoordinator(client, manager, opts)
	manager.Connect(endpoint)
	if err := coordinator.Start(ctx, window); err != nil {
		return err
	}
	defer coordinator.Stop()
	logger.Info("dashboard running",
		zap.String("api", client.BaseURL()),
		zap.String("push", endpoint),
		zap.Stringer("window", window))

	waitForSignal(ctx)
	return nil
}

func waitForSignal(ctx context.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}
}
