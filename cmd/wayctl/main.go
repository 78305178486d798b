// Command wayctl is a dev CLI for sharpwatch maintenance and debugging tasks.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"
	_ "time/tzdata"

	"github.com/chromedp/chromedp"
	"github.com/lmittmann/tint"
	"github.com/pkg/browser"

	"github.com/ibeckermayer/sharpwatch/internal/app"
	browseropts "github.com/ibeckermayer/sharpwatch/internal/browser"
	"github.com/ibeckermayer/sharpwatch/internal/config"
	"github.com/ibeckermayer/sharpwatch/internal/connector/providers"
	"github.com/ibeckermayer/sharpwatch/internal/notifier"
	"github.com/ibeckermayer/sharpwatch/internal/store"
	"github.com/ibeckermayer/sharpwatch/internal/synthetic"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelDebug, TimeFormat: time.Kitchen}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch os.Args[1] {
	case "once":
		kind := "all"
		if len(os.Args) > 2 {
			kind = os.Args[2]
		}
		err = runOnce(ctx, kind, logger)
	case "login-x":
		err = runLogin(ctx, logger)
	case "logout-x":
		err = runLogout()
	case "bot-test":
		err = runBotTest(ctx)
	case "open":
		if len(os.Args) < 3 {
			fmt.Println("Usage: wayctl open <config|cache>")
			os.Exit(1)
		}
		err = runOpen(os.Args[2])
	default:
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		logger.Error("wayctl: "+os.Args[1]+" failed", "error", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: wayctl <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  once [props|sentiment|all]  Run one cycle now and print the counts")
	fmt.Println("  login-x                     Log in to X in a visible browser and save the session")
	fmt.Println("  logout-x                    Delete the saved X session")
	fmt.Println("  bot-test                    Open bot.sannysoft.com to audit the browser fingerprint")
	fmt.Println("  open config                 Open config file in default editor")
	fmt.Println("  open cache                  Open cache directory in file explorer")
}

func xJar() (*browseropts.CookieJar, error) {
	path, err := config.SessionPath()
	if err != nil {
		return nil, err
	}
	return browseropts.NewCookieJar(path, browseropts.XLogin.AuthCookie), nil
}

// runOnce runs a single cycle against the configured store without
// starting the timers.
func runOnce(ctx context.Context, kind string, logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		logger.Warn("wayctl: using default config", "error", err)
		cfg = config.Default()
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return err
	}

	dsn := cfg.Storage.DSN
	if dsn == "" {
		if dsn, err = config.DefaultDSN(); err != nil {
			return err
		}
	}
	db, err := store.Open(cfg.Storage.Driver, dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	jar, err := xJar()
	if err != nil {
		return err
	}

	alerts, err := notifier.NewFromConfig(cfg.Alerts, logger)
	if err != nil {
		return err
	}
	defer alerts.Close()

	deps := app.Deps{
		Store:    db,
		Registry: providers.NewRegistry(cfg, jar, logger),
		Emitter:  alerts,
		Logger:   logger,
	}
	if cfg.Scraping.FillSyntheticPercent {
		deps.Synthetic = synthetic.NewSeeded(cfg.Scraping.SyntheticSeed)
	}
	a := app.New(cfg, deps)

	var counts app.Counts
	switch kind {
	case "props":
		counts, err = a.RunProps(ctx)
	case "sentiment":
		counts, err = a.RunSentiment(ctx)
	case "all":
		counts, err = a.RunAll(ctx)
	default:
		return fmt.Errorf("unknown cycle %q", kind)
	}

	out, _ := json.MarshalIndent(map[string]any{
		"counts":   counts,
		"quality":  a.Quality().Rollup(),
		"insights": a.Quality().ActionableInsights(),
	}, "", "  ")
	fmt.Println(string(out))
	return err
}

func runLogin(ctx context.Context, logger *slog.Logger) error {
	jar, err := xJar()
	if err != nil {
		return err
	}
	fmt.Println("A browser window will open. Log in to X; it closes once the session is captured.")
	return browseropts.Login(ctx, browseropts.XLogin, jar, logger)
}

func runLogout() error {
	jar, err := xJar()
	if err != nil {
		return err
	}
	if err := jar.Clear(); err != nil {
		return err
	}
	fmt.Println("X session removed:", jar.Path())
	return nil
}

func runBotTest(ctx context.Context) error {
	fmt.Println("Opening bot.sannysoft.com with stealth browser options...")

	browserCtx, cancel := browseropts.NewContext(ctx, false, "")
	defer cancel()

	if err := chromedp.Run(browserCtx,
		chromedp.Navigate("https://bot.sannysoft.com"),
		chromedp.WaitVisible("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("failed to navigate: %w", err)
	}

	fmt.Println("Press Enter to close the browser...")
	fmt.Scanln()
	return nil
}

func runOpen(target string) error {
	var path string
	var err error

	switch target {
	case "config":
		path, err = config.ConfigPath()
	case "cache":
		path, err = config.CacheDir()
	default:
		return fmt.Errorf("unknown target: %s", target)
	}
	if err != nil {
		return fmt.Errorf("failed to get path: %w", err)
	}

	if target == "cache" {
		if err := os.MkdirAll(path, 0755); err != nil {
			return err
		}
	}
	return browser.OpenFile(path)
}
