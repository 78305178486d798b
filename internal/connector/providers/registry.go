package providers

import (
	"log/slog"
	"time"

	"github.com/ibeckermayer/sharpwatch/internal/browser"
	"github.com/ibeckermayer/sharpwatch/internal/config"
	"github.com/ibeckermayer/sharpwatch/internal/connector"
)

// NewRegistry builds every connector the config describes. Props run in
// the order registered: DraftKings, OddsAPI, PrizePicks, Underdog.
// jar may be nil, which leaves the X connector unavailable.
func NewRegistry(cfg *config.Config, jar *browser.CookieJar, logger *slog.Logger) *connector.Registry {
	sc := cfg.Scraping
	timeout := time.Duration(sc.RequestTimeoutSeconds) * time.Second
	delay := time.Duration(sc.RequestDelayMillis) * time.Millisecond

	client := connector.NewHTTPClient(timeout, sc.UserAgent)
	renderer := browser.ChromeRenderer{
		Headless:  sc.Headless,
		UserAgent: sc.UserAgent,
		Timeout:   time.Duration(sc.PageTimeoutSeconds) * time.Second,
	}

	reg := connector.NewRegistry()
	reg.AddProps(
		NewDraftKings(cfg.Sources.DraftKings, client),
		NewOddsAPI(cfg.Sources.OddsAPI, client, connector.NewPacer(delay)),
		NewPrizePicks(cfg.Sources.PrizePicks, renderer),
		NewUnderdog(cfg.Sources.Underdog, renderer),
	)
	reg.AddSentiment(
		NewReddit(cfg.Sources.Reddit, client, connector.NewPacer(delay)),
	)
	if jar != nil {
		reg.AddSentiment(NewX(cfg.Sources.X, jar, sc, logger))
	}
	return reg
}
