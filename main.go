// Command sharpwatch runs the prop and sentiment scrapers on their timers
// and serves the control API.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/lmittmann/tint"

	"github.com/ibeckermayer/sharpwatch/internal/api"
	"github.com/ibeckermayer/sharpwatch/internal/app"
	"github.com/ibeckermayer/sharpwatch/internal/browser"
	"github.com/ibeckermayer/sharpwatch/internal/config"
	"github.com/ibeckermayer/sharpwatch/internal/connector/providers"
	"github.com/ibeckermayer/sharpwatch/internal/live"
	"github.com/ibeckermayer/sharpwatch/internal/notifier"
	"github.com/ibeckermayer/sharpwatch/internal/quality"
	"github.com/ibeckermayer/sharpwatch/internal/scheduler"
	"github.com/ibeckermayer/sharpwatch/internal/store"
	"github.com/ibeckermayer/sharpwatch/internal/synthetic"
)

func main() {
	configPath := flag.String("config", "", "path to config.toml (default: user config dir)")
	jsonLogs := flag.Bool("json", false, "log as JSON instead of colored text")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	logger := newLogger(*jsonLogs, *debug)
	slog.SetDefault(logger)

	if err := run(*configPath, logger); err != nil {
		logger.Error("sharpwatch: fatal", "error", err)
		os.Exit(1)
	}
}

func newLogger(jsonLogs, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	if jsonLogs {
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
}

// loadConfig reads path, or the default location when path is empty. On
// first run the defaults are written out so there is a file to edit.
func loadConfig(path string, logger *slog.Logger) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}

	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist) && path == "":
		cfg = config.Default()
		if err := cfg.Save(); err != nil {
			logger.Warn("sharpwatch: could not save default config", "error", err)
		} else {
			p, _ := config.ConfigPath()
			logger.Info("sharpwatch: created default config", "path", p)
		}
	default:
		return nil, err
	}

	cfg.ApplyEnv()
	return cfg, cfg.Validate()
}

func openStore(cfg config.StorageConfig) (*store.SQLStore, error) {
	dsn := cfg.DSN
	if dsn == "" {
		var err error
		if dsn, err = config.DefaultDSN(); err != nil {
			return nil, err
		}
	}
	return store.Open(cfg.Driver, dsn)
}

func run(configPath string, logger *slog.Logger) error {
	cfg, err := loadConfig(configPath, logger)
	if err != nil {
		return err
	}

	db, err := openStore(cfg.Storage)
	if err != nil {
		return err
	}
	defer db.Close()

	var jar *browser.CookieJar
	if sessionPath, err := config.SessionPath(); err == nil {
		jar = browser.NewCookieJar(sessionPath, browser.XLogin.AuthCookie)
	} else {
		logger.Warn("sharpwatch: no session path, X disabled", "error", err)
	}

	var hub *live.Hub
	var extra []notifier.Sender
	if cfg.API.Enabled && cfg.Alerts.LiveFeed {
		hub = live.NewHub(cfg.API.AllowedOrigins, logger)
		extra = append(extra, hub)
	}

	alerts, err := notifier.NewFromConfig(cfg.Alerts, logger, extra...)
	if err != nil {
		return err
	}
	defer alerts.Close()

	var synth synthetic.Generator
	if cfg.Scraping.FillSyntheticPercent {
		synth = synthetic.NewSeeded(cfg.Scraping.SyntheticSeed)
	}

	registry := providers.NewRegistry(cfg, jar, logger)
	monitor := quality.NewMonitor(logger)
	a := app.New(cfg, app.Deps{
		Store:     db,
		Registry:  registry,
		Emitter:   alerts,
		Quality:   monitor,
		Synthetic: synth,
		Logger:    logger,
	})

	sch, err := scheduler.New(cfg.Schedule, a, db, logger)
	if err != nil {
		return err
	}

	logger.Info("sharpwatch: starting",
		"sources", registry.Names(),
		"alerts", alerts.Senders(),
		"storage", cfg.Storage.Driver)
	sch.Start()

	var srv *http.Server
	if cfg.API.Enabled {
		server := api.New(sch, monitor, db, logger)
		if hub != nil {
			server.SetLiveFeed(hub)
		}
		srv = &http.Server{
			Addr:              cfg.API.Addr,
			Handler:           server.Router(cfg.API.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("sharpwatch: control API listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("sharpwatch: control API stopped", "error", err)
			}
		}()
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	for sig := range sigs {
		if sig != syscall.SIGHUP {
			logger.Info("sharpwatch: shutting down", "signal", sig.String())
			break
		}
		reload(configPath, a, sch, logger)
	}

	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("sharpwatch: control API shutdown", "error", err)
		}
		cancel()
	}
	if hub != nil {
		// Shutdown leaves hijacked websocket connections open
		hub.Close()
	}

	// wait for running sessions to finalize before the store closes
	<-sch.Stop().Done()
	return nil
}

// reload re-reads the config on SIGHUP. Connectors and storage keep their
// startup settings; thresholds, keywords and the schedule are replaced.
func reload(configPath string, a *app.App, sch *scheduler.Scheduler, logger *slog.Logger) {
	cfg, err := loadConfig(configPath, logger)
	if err != nil {
		logger.Error("sharpwatch: reload failed, keeping current config", "error", err)
		return
	}
	if err := a.ReloadConfig(cfg); err != nil {
		logger.Error("sharpwatch: reload failed, keeping current config", "error", err)
		return
	}
	if err := sch.Reconfigure(cfg.Schedule); err != nil {
		logger.Error("sharpwatch: schedule reload failed", "error", err)
		return
	}
	logger.Info("sharpwatch: config reloaded")
}
