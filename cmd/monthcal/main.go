package main

import (
	"context"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/robfig/cron/v3"

	"monthcal/internal/capture"
	"monthcal/internal/config"
	"monthcal/internal/daykey"
	"monthcal/internal/grid"
	"monthcal/internal/layout"
	appLog "monthcal/internal/log"
	"monthcal/internal/render"
	"monthcal/internal/source"
	"monthcal/internal/tui"
	"monthcal/internal/web"
)

const version = "0.1.0"

type flagConfig struct {
	configPath string
	month      string
	listen     string
	print      bool
	tui        bool
	serve      bool
	capture    bool
	once       bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if lvl, ok := appLog.ParseLevel(conf.LogLevel); ok {
		appLog.SetLevel(lvl)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.tui {
		// Log lines would tear the alternate screen.
		appLog.SetLevel(appLog.LevelError)
	}

	loc := conf.Location()
	year, month, err := parseMonth(flags.month, time.Now().In(loc))
	if err != nil {
		appLog.Error("invalid -month", err, "month", flags.month)
		os.Exit(2)
	}

	appLog.Debug("effective config",
		"version", version,
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"week_start", conf.WeekStart,
		"max_visible_events", conf.MaxVisibleEvents,
		"event_order", conf.EventOrder,
		"refresh", conf.RefreshCron,
		"ics_count", len(conf.ICS),
		"month", fmt.Sprintf("%d-%02d", year, month),
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store := source.NewStore(conf)
	page := grid.Month(year, month, conf.Weekday(), conf.ShowAdjacentMonths)

	switch {
	case flags.tui:
		err = runTUI(conf, store, page)
	case flags.serve:
		err = runServe(ctx, conf, store, flags.capture)
	case flags.once || flags.capture:
		err = runOnce(ctx, conf, store, page, flags.capture)
	default:
		err = runPrint(ctx, conf, store, page)
	}
	if err != nil {
		appLog.Error("monthcal failed", err)
		os.Exit(1)
	}
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./config.yaml", "Path to config file (created with defaults if missing)")
	flag.StringVar(&cfg.month, "month", "", `Month to show: YYYY-MM, YYYY-MM-DD or e.g. "next month" (default: current)`)
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.print, "print", false, "Print the month grid to stdout and exit (default mode)")
	flag.BoolVar(&cfg.tui, "tui", false, "Start the interactive month view")
	flag.BoolVar(&cfg.serve, "serve", false, "Serve the HTTP API and refresh sources on the configured schedule")
	flag.BoolVar(&cfg.capture, "capture", false, "Write a PNG preview of the month page with headless Chromium")
	flag.BoolVar(&cfg.once, "once", false, "Refresh sources once (and capture if -capture) and exit")

	flag.Parse()

	return cfg
}

// refresh loads the sources for a page. Failures are logged: an empty or
// stale calendar is still worth showing.
func refresh(ctx context.Context, store *source.Store, page grid.Grid) {
	if err := store.Refresh(ctx, page.Window()); err != nil {
		appLog.Error("refresh failed", err)
	}
}

func runPrint(ctx context.Context, conf *config.Config, store *source.Store, page grid.Grid) error {
	refresh(ctx, store, page)
	l := layout.Allocate(store.Events(), page, conf.LayoutOptions())
	_, err := fmt.Fprint(os.Stdout, render.Month(l, render.Options{
		MoreLabel:      conf.MoreLabel,
		ShowWeekNumber: conf.ShowWeekNumber,
		Today:          daykey.Of(time.Now(), conf.Location()),
	}))
	return err
}

func runTUI(conf *config.Config, store *source.Store, page grid.Grid) error {
	year, month := page.Target()
	start := daykey.FromDate(year, month, 1)
	if today := daykey.Of(time.Now(), conf.Location()); page.InMonth(today) {
		start = today
	}
	m := tui.New(store, tui.Config{
		Layout:         conf.LayoutOptions(),
		ShowAdjacent:   conf.ShowAdjacentMonths,
		ShowWeekNumber: conf.ShowWeekNumber,
		MoreLabel:      conf.MoreLabel,
		Start:          start,
	})
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

// runOnce refreshes the page and optionally captures it through a
// short-lived server on a loopback port.
func runOnce(ctx context.Context, conf *config.Config, store *source.Store, page grid.Grid, withCapture bool) error {
	refresh(ctx, store, page)
	if !withCapture {
		snap := store.Snapshot()
		appLog.Info("refresh done", "events", len(snap.Events), "failures", snap.Failures)
		return nil
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("listen for capture: %w", err)
	}
	srv := &http.Server{
		Handler:           web.NewServer(conf, store).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("capture server failed", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	return capture.Screenshot(ctx, captureOptions(conf, "http://"+ln.Addr().String(), page))
}

func captureOptions(conf *config.Config, base string, page grid.Grid) capture.Options {
	year, month := page.Target()
	opts := capture.Options{
		URL:        fmt.Sprintf("%s/month?month=%d-%02d", base, year, month),
		OutputPath: conf.PreviewPath,
	}
	if conf.BasicAuth != nil && conf.BasicAuth.Username != "" && conf.BasicAuth.Password != "" {
		creds := base64.StdEncoding.EncodeToString([]byte(conf.BasicAuth.Username + ":" + conf.BasicAuth.Password))
		opts.Headers = map[string]string{"Authorization": "Basic " + creds}
	}
	return opts
}

// runServe serves HTTP until ctx is cancelled and refreshes the current
// month on the configured cron schedule.
func runServe(ctx context.Context, conf *config.Config, store *source.Store, withCapture bool) error {
	loc := conf.Location()
	currentPage := func() grid.Grid {
		return grid.ForDate(daykey.Of(time.Now(), loc), conf.Weekday(), conf.ShowAdjacentMonths)
	}

	srv := &http.Server{
		Addr:              conf.Listen,
		Handler:           web.NewServer(conf, store).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	tick := func() {
		page := currentPage()
		refresh(ctx, store, page)
		if withCapture {
			if err := capture.Screenshot(ctx, captureOptions(conf, "http://"+conf.Listen, page)); err != nil {
				appLog.Error("capture failed", err)
			}
		}
	}

	sched := cron.New(cron.WithLocation(loc))
	if _, err := sched.AddFunc(conf.RefreshCron, tick); err != nil {
		return fmt.Errorf("schedule refresh %q: %w", conf.RefreshCron, err)
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	go tick()
	sched.Start()
	appLog.Info("refresh scheduled", "refresh", conf.RefreshCron)

	var serveErr error
	select {
	case <-ctx.Done():
		appLog.Info("signal received, shutting down")
	case serveErr = <-errCh:
	}

	stopped := sched.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("HTTP shutdown failed", err)
	}
	select {
	case <-stopped.Done():
	case <-shutdownCtx.Done():
	}
	appLog.Info("monthcal exiting")
	return serveErr
}
