// Package app runs one scrape cycle end to end: connectors, line-movement
// tracking, sentiment classification, tailing aggregation and quality
// bookkeeping.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ibeckermayer/sharpwatch/internal/config"
	"github.com/ibeckermayer/sharpwatch/internal/connector"
	"github.com/ibeckermayer/sharpwatch/internal/quality"
	"github.com/ibeckermayer/sharpwatch/internal/sentiment"
	"github.com/ibeckermayer/sharpwatch/internal/signals"
	"github.com/ibeckermayer/sharpwatch/internal/store"
	"github.com/ibeckermayer/sharpwatch/internal/synthetic"
	"github.com/ibeckermayer/sharpwatch/internal/tailing"
	"github.com/ibeckermayer/sharpwatch/internal/tracker"
	"github.com/ibeckermayer/sharpwatch/internal/types"
)

var (
	// ErrAllSourcesFailed is returned when every connector in a cycle failed.
	ErrAllSourcesFailed = errors.New("app: all sources failed")
	// ErrNoSources is returned when no connector of the requested kind is available.
	ErrNoSources = errors.New("app: no sources available")
)

// sentimentWindowLimit caps how many records one tailing pass reads.
const sentimentWindowLimit = 5000

// Counts summarizes one cycle.
type Counts struct {
	PropsScraped    int                   `json:"props_scraped"`
	Movements       int                   `json:"movements_detected"`
	ReverseMoves    int                   `json:"reverse_line_movements"`
	Signals         map[signals.Label]int `json:"signals,omitempty"`
	SentimentPoints int                   `json:"sentiment_points_collected"`
	TailingAlerts   int                   `json:"tailing_alerts"`
	Sources         []string              `json:"sources"`
	Errors          []string              `json:"errors,omitempty"`
}

func (c *Counts) merge(o Counts) {
	c.PropsScraped += o.PropsScraped
	c.Movements += o.Movements
	c.ReverseMoves += o.ReverseMoves
	c.SentimentPoints += o.SentimentPoints
	c.TailingAlerts += o.TailingAlerts
	c.Sources = append(c.Sources, o.Sources...)
	c.Errors = append(c.Errors, o.Errors...)
	for k, v := range o.Signals {
		if c.Signals == nil {
			c.Signals = map[signals.Label]int{}
		}
		c.Signals[k] += v
	}
}

// Deps are the long-lived collaborators shared by every cycle.
type Deps struct {
	Store    store.Store
	Registry *connector.Registry
	// Emitter receives major-movement and overtailed alerts. May be nil.
	Emitter tracker.Emitter
	Quality *quality.Monitor
	// Synthetic fills absent public/money percentages and tail-rate jitter.
	// Nil disables both.
	Synthetic synthetic.Generator
	Logger    *slog.Logger
}

// App holds the application state.
type App struct {
	mu sync.RWMutex

	store    store.Store
	registry *connector.Registry
	emitter  tracker.Emitter
	quality  *quality.Monitor
	synth    synthetic.Generator
	logger   *slog.Logger
	now      func() time.Time

	// Mutable fields - use getSnapshot() for concurrent access.
	config     *config.Config
	tracker    *tracker.Tracker
	aggregator *sentiment.Aggregator
	analyzer   *tailing.Analyzer
}

// snapshot holds fields that may be replaced by ReloadConfig.
type snapshot struct {
	config     *config.Config
	tracker    *tracker.Tracker
	aggregator *sentiment.Aggregator
	analyzer   *tailing.Analyzer
}

// getSnapshot returns a snapshot of mutable fields under read lock.
func (a *App) getSnapshot() snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return snapshot{
		config:     a.config,
		tracker:    a.tracker,
		aggregator: a.aggregator,
		analyzer:   a.analyzer,
	}
}

// New creates a new App instance.
func New(cfg *config.Config, deps Deps) *App {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Quality == nil {
		deps.Quality = quality.NewMonitor(deps.Logger)
	}
	if deps.Registry == nil {
		deps.Registry = connector.NewRegistry()
	}

	a := &App{
		store:    deps.Store,
		registry: deps.Registry,
		emitter:  deps.Emitter,
		quality:  deps.Quality,
		synth:    deps.Synthetic,
		logger:   deps.Logger,
		now:      time.Now,
	}
	a.apply(cfg)
	return a
}

// SetClock overrides the clock used for cycle timestamps.
func (a *App) SetClock(now func() time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.now = now
}

func (a *App) apply(cfg *config.Config) {
	var players sentiment.PlayerExtractor
	if len(cfg.Sentiment.KnownPlayers) > 0 {
		players = sentiment.NewGazetteer(cfg.Sentiment.KnownPlayers)
	}
	classifier := sentiment.NewClassifier(sentiment.Keywords{
		Bullish: cfg.Sentiment.BullishKeywords,
		Bearish: cfg.Sentiment.BearishKeywords,
		Betting: cfg.Sentiment.BettingKeywords,
	})

	var estimator tailing.ConsensusEstimator
	if a.synth != nil {
		estimator = tailing.EngagementBands{Jitter: a.synth}
	}

	tr := tracker.New(a.store, a.emitter, tracker.ThresholdsFromConfig(cfg.Movement), a.logger)
	tr.SetClock(a.clock)

	a.mu.Lock()
	a.config = cfg
	a.tracker = tr
	a.aggregator = sentiment.NewAggregator(classifier, players, a.logger)
	a.analyzer = tailing.New(tailing.OptionsFromConfig(cfg.Tailing), estimator)
	a.mu.Unlock()
}

// Config returns the active configuration.
func (a *App) Config() *config.Config {
	return a.getSnapshot().config
}

// Quality returns the data-quality monitor.
func (a *App) Quality() *quality.Monitor { return a.quality }

// Store returns the backing store.
func (a *App) Store() store.Store { return a.store }

// Registry returns the connector registry.
func (a *App) Registry() *connector.Registry { return a.registry }

// ReloadConfig validates cfg and swaps it in for subsequent cycles. A cycle
// already running keeps the configuration it started with.
func (a *App) ReloadConfig(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.apply(cfg)
	a.logger.Info("app: configuration reloaded")
	return nil
}

func (a *App) clock() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.now()
}

// RunProps fetches every available prop connector in registration order,
// pausing between sources, and runs the results through the tracker.
func (a *App) RunProps(ctx context.Context) (Counts, error) {
	s := a.getSnapshot()
	counts := Counts{Signals: map[signals.Label]int{}}

	conns := a.registry.PropConnectors()
	if len(conns) == 0 {
		return counts, fmt.Errorf("props: %w", ErrNoSources)
	}

	delay := time.Duration(s.config.Scraping.SourceDelayMillis) * time.Millisecond
	var failures []error
	var scraped []types.ScrapedProp

	for i, c := range conns {
		if i > 0 && delay > 0 {
			if err := sleep(ctx, delay); err != nil {
				return counts, err
			}
		}

		start := time.Now()
		batch, err := c.FetchProps(ctx)
		elapsed := time.Since(start)

		if err != nil {
			a.quality.Record(c.Name(), 0, 0, elapsed, []string{err.Error()})
			a.logger.Warn("app: prop source failed", "source", c.Name(), "error", err)
			failures = append(failures, fmt.Errorf("%s: %w", c.Name(), err))
			counts.Errors = append(counts.Errors, fmt.Sprintf("%s: %v", c.Name(), err))
			continue
		}
		a.quality.Record(c.Name(), batch.Found, len(batch.Props), elapsed, nil)

		if s.config.Scraping.FillSyntheticPercent && a.synth != nil {
			if n := synthetic.FillPercentages(a.synth, batch.Props); n > 0 {
				a.logger.Debug("app: filled synthetic percentages", "source", c.Name(), "props", n)
			}
		}

		res, err := s.tracker.RecordBatch(ctx, batch.Props)
		if err != nil {
			// persistence failures are per record; the rest of the batch was attempted
			a.logger.Error("app: failed to record some observations", "source", c.Name(), "error", err)
			counts.Errors = append(counts.Errors, fmt.Sprintf("%s: %v", c.Name(), err))
		}

		counts.PropsScraped += res.Recorded
		counts.Movements += len(res.Movements)
		counts.ReverseMoves += a.annotate(batch.Props, res.Movements, counts.Signals)
		counts.Sources = append(counts.Sources, c.Name())
		scraped = append(scraped, batch.Props...)

		a.logger.Info("app: prop source done",
			"source", c.Name(),
			"found", batch.Found,
			"recorded", res.Recorded,
			"skipped", res.Skipped,
			"movements", len(res.Movements),
			"elapsed", elapsed.Round(time.Millisecond))
	}

	if len(counts.Sources) == 0 {
		return counts, fmt.Errorf("props: %w: %w", ErrAllSourcesFailed, errors.Join(failures...))
	}

	if s.config.Debug.CacheSnapshots {
		a.saveSnapshot(store.SnapshotProps, scraped)
		a.saveSnapshot(store.SnapshotQuality, a.quality.Rollup())
	}
	return counts, nil
}

// annotate tallies signal labels and returns how many movements went
// against the public side.
func (a *App) annotate(props []types.ScrapedProp, moves []types.LineMovement, tally map[signals.Label]int) int {
	public := make(map[string]float64, len(props))
	for _, p := range props {
		tally[signals.Classify(p)]++
		if p.PublicPercent != nil {
			public[p.Key()] = *p.PublicPercent
		}
	}

	reverse := 0
	for _, m := range moves {
		pct, ok := public[types.PropKey(m.Source, m.Player, m.StatType)]
		if ok && signals.IsReverseLineMovement(m, pct) {
			reverse++
			a.logger.Info("app: reverse line movement",
				"player", m.Player, "stat", m.StatType, "source", m.Source,
				"movement", m.Movement, "public_percent", pct)
		}
	}
	return reverse
}

type sentimentResult struct {
	name    string
	batch   connector.SentimentBatch
	err     error
	elapsed time.Duration
}

// RunSentiment fetches every available sentiment connector concurrently,
// classifies and stores the posts, then recomputes tailing over the window.
func (a *App) RunSentiment(ctx context.Context) (Counts, error) {
	s := a.getSnapshot()
	var counts Counts

	conns := a.registry.SentimentConnectors()
	if len(conns) == 0 {
		return counts, fmt.Errorf("sentiment: %w", ErrNoSources)
	}

	results := make([]sentimentResult, len(conns))
	var g errgroup.Group
	for i, c := range conns {
		g.Go(func() error {
			start := time.Now()
			batch, err := c.FetchSentiment(ctx)
			results[i] = sentimentResult{name: c.Name(), batch: batch, err: err, elapsed: time.Since(start)}
			return nil
		})
	}
	g.Wait()

	var failures []error
	for _, r := range results {
		if r.err != nil {
			a.quality.Record(r.name, 0, 0, r.elapsed, []string{r.err.Error()})
			a.logger.Warn("app: sentiment source failed", "source", r.name, "error", r.err)
			failures = append(failures, fmt.Errorf("%s: %w", r.name, r.err))
			counts.Errors = append(counts.Errors, fmt.Sprintf("%s: %v", r.name, r.err))
			continue
		}

		records := s.aggregator.ProcessAll(r.batch.Records)
		a.quality.Record(r.name, r.batch.Found, len(records), r.elapsed, nil)

		stored, seen := 0, 0
		for _, rec := range records {
			ok, err := store.AppendSentimentOnce(ctx, a.store, rec)
			if err != nil {
				a.logger.Error("app: failed to store sentiment", "source", r.name, "id", rec.ID, "error", err)
				continue
			}
			if !ok {
				seen++
				continue
			}
			stored++
		}
		counts.SentimentPoints += stored
		counts.Sources = append(counts.Sources, r.name)

		a.logger.Info("app: sentiment source done",
			"source", r.name, "found", r.batch.Found, "kept", len(records), "stored", stored, "already_seen", seen,
			"elapsed", r.elapsed.Round(time.Millisecond))
	}

	if len(counts.Sources) == 0 {
		return counts, fmt.Errorf("sentiment: %w: %w", ErrAllSourcesFailed, errors.Join(failures...))
	}

	alerts, err := a.runTailing(ctx, s)
	if err != nil {
		counts.Errors = append(counts.Errors, fmt.Sprintf("tailing: %v", err))
		a.logger.Error("app: tailing pass failed", "error", err)
	}
	counts.TailingAlerts = alerts
	return counts, nil
}

// runTailing aggregates the sentiment window, stores the top results and
// returns how many are overtailed.
func (a *App) runTailing(ctx context.Context, s snapshot) (int, error) {
	now := a.clock()
	window := time.Duration(s.config.Tailing.WindowHours) * time.Hour

	recs, err := store.RecentSentiment(ctx, a.store, now.Add(-window), sentimentWindowLimit)
	if err != nil {
		return 0, fmt.Errorf("load sentiment window: %w", err)
	}

	top := tailing.Top(s.analyzer.Aggregate(recs), s.config.Tailing.TopN)
	if err := store.AppendTailing(ctx, a.store, now, top); err != nil {
		return 0, fmt.Errorf("store tailing: %w", err)
	}

	overtailed := 0
	for i := range top {
		t := top[i]
		if t.Risk != types.RiskOvertailed {
			continue
		}
		overtailed++
		if s.config.Tailing.AlertOvertailed && a.emitter != nil {
			a.emitter.Emit(ctx, types.Alert{
				Kind:      types.AlertOvertailed,
				Key:       t.Key,
				Title:     fmt.Sprintf("%s %s overtailed at %.0f%%", t.Player, t.PropType, t.TailRate),
				Tailing:   &t,
				CreatedAt: now,
			})
		}
	}

	if s.config.Debug.CacheSnapshots {
		a.saveSnapshot(store.SnapshotTailing, top)
	}
	return overtailed, nil
}

// RunAll runs the prop cycle then the sentiment cycle. It fails only when
// both fail; a single failing half is reported in Counts.Errors.
func (a *App) RunAll(ctx context.Context) (Counts, error) {
	props, propsErr := a.RunProps(ctx)
	sent, sentErr := a.RunSentiment(ctx)

	counts := props
	counts.merge(sent)

	switch {
	case propsErr != nil && sentErr != nil:
		return counts, errors.Join(propsErr, sentErr)
	case propsErr != nil:
		counts.Errors = append(counts.Errors, propsErr.Error())
	case sentErr != nil:
		counts.Errors = append(counts.Errors, sentErr.Error())
	}
	return counts, nil
}

func (a *App) saveSnapshot(name store.SnapshotName, data any) {
	dir, err := config.CacheDir()
	if err != nil {
		a.logger.Warn("app: no cache dir for snapshot", "error", err)
		return
	}
	path, err := store.SaveSnapshot(dir, name, a.clock(), data)
	if err != nil {
		a.logger.Warn("app: failed to save snapshot", "name", name, "error", err)
		return
	}
	a.logger.Debug("app: saved snapshot", "path", path)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
