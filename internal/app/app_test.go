package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ibeckermayer/sharpwatch/internal/config"
	"github.com/ibeckermayer/sharpwatch/internal/connector"
	"github.com/ibeckermayer/sharpwatch/internal/quality"
	"github.com/ibeckermayer/sharpwatch/internal/signals"
	"github.com/ibeckermayer/sharpwatch/internal/store"
	"github.com/ibeckermayer/sharpwatch/internal/types"
)

var now = time.Date(2025, 10, 12, 18, 0, 0, 0, time.UTC)

type fakeProps struct {
	name  string
	lines []float64
	call  int
	err   error
}

func (f *fakeProps) Name() string    { return f.name }
func (f *fakeProps) Available() bool { return true }

func (f *fakeProps) FetchProps(context.Context) (connector.PropBatch, error) {
	if f.err != nil {
		return connector.PropBatch{}, f.err
	}
	line := f.lines[min(f.call, len(f.lines)-1)]
	public := 72.0
	p := types.ScrapedProp{
		Player:        "Josh Allen",
		StatType:      "Passing Yards",
		Line:          line,
		Source:        types.SourceDraftKings,
		Status:        types.StatusActive,
		Timestamp:     now.Add(time.Duration(f.call) * time.Minute),
		PublicPercent: &public,
	}
	f.call++
	return connector.PropBatch{Props: []types.ScrapedProp{p}, Found: 2}, nil
}

type fakeSentiment struct {
	name    string
	records []types.SentimentRecord
	err     error
}

func (f *fakeSentiment) Name() string    { return f.name }
func (f *fakeSentiment) Available() bool { return true }

func (f *fakeSentiment) FetchSentiment(context.Context) (connector.SentimentBatch, error) {
	if f.err != nil {
		return connector.SentimentBatch{}, f.err
	}
	return connector.SentimentBatch{Records: f.records, Found: len(f.records)}, nil
}

type recordingEmitter struct {
	mu     sync.Mutex
	alerts []types.Alert
}

func (e *recordingEmitter) Emit(_ context.Context, a types.Alert) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.alerts = append(e.alerts, a)
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Scraping.SourceDelayMillis = 0
	cfg.Scraping.FillSyntheticPercent = false
	return cfg
}

func newApp(t *testing.T, reg *connector.Registry, em *recordingEmitter) (*App, *store.SQLStore) {
	t.Helper()
	s, err := store.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })

	deps := Deps{Store: s, Registry: reg}
	if em != nil {
		deps.Emitter = em
	}
	a := New(testConfig(), deps)
	a.SetClock(func() time.Time { return now })
	return a, s
}

func TestRunPropsIsolatesFailures(t *testing.T) {
	reg := connector.NewRegistry()
	dk := &fakeProps{name: "DraftKings", lines: []float64{267.5, 264.5}}
	reg.AddProps(&fakeProps{name: "Broken", err: errors.New("timeout")}, dk)
	em := &recordingEmitter{}
	a, s := newApp(t, reg, em)
	ctx := context.Background()

	c, err := a.RunProps(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if c.PropsScraped != 1 || c.Movements != 0 || len(c.Sources) != 1 || len(c.Errors) != 1 {
		t.Fatalf("first cycle = %+v", c)
	}

	c, err = a.RunProps(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if c.Movements != 1 {
		t.Fatalf("second cycle movements = %d, want 1", c.Movements)
	}
	// public on the over at 72% while the line dropped three points
	if c.ReverseMoves != 1 {
		t.Errorf("reverse moves = %d, want 1", c.ReverseMoves)
	}
	if c.Signals[signals.Neutral] != 1 {
		t.Errorf("signals = %v", c.Signals)
	}
	if len(em.alerts) != 1 || em.alerts[0].Kind != types.AlertMajorMovement {
		t.Errorf("alerts = %+v", em.alerts)
	}

	moves, err := store.RecentMovements(ctx, s, 10)
	if err != nil || len(moves) != 1 || moves[0].Movement != -3 {
		t.Errorf("movements = %+v, %v", moves, err)
	}

	broken, ok := a.Quality().Source("Broken")
	if !ok || broken.Status != types.HealthFailed {
		t.Errorf("broken metrics = %+v", broken)
	}
	dkm, _ := a.Quality().Source("DraftKings")
	if dkm.ExtractionRate != 50 || dkm.Status != types.HealthHealthy {
		t.Errorf("draftkings metrics = %+v", dkm)
	}
}

func TestRunPropsAllFail(t *testing.T) {
	reg := connector.NewRegistry()
	reg.AddProps(&fakeProps{name: "A", err: errors.New("down")}, &fakeProps{name: "B", err: errors.New("down")})
	a, _ := newApp(t, reg, nil)

	_, err := a.RunProps(context.Background())
	if !errors.Is(err, ErrAllSourcesFailed) {
		t.Fatalf("err = %v, want ErrAllSourcesFailed", err)
	}
	if a.Quality().Rollup().OverallHealth != types.HealthFailed {
		t.Error("overall health should be failed")
	}
}

func TestRunNoSources(t *testing.T) {
	a, _ := newApp(t, connector.NewRegistry(), nil)
	if _, err := a.RunProps(context.Background()); !errors.Is(err, ErrNoSources) {
		t.Errorf("props err = %v", err)
	}
	if _, err := a.RunSentiment(context.Background()); !errors.Is(err, ErrNoSources) {
		t.Errorf("sentiment err = %v", err)
	}
}

func post(community, author, content string, engagement int) types.SentimentRecord {
	return types.SentimentRecord{
		Platform:   "Reddit",
		Community:  community,
		Author:     author,
		Content:    content,
		Engagement: engagement,
		Timestamp:  now.Add(-time.Hour),
	}
}

func TestRunSentiment(t *testing.T) {
	reg := connector.NewRegistry()
	reg.AddSentiment(
		&fakeSentiment{name: "Reddit", records: []types.SentimentRecord{
			post("r/sportsbook", "u1", "Josh Allen over passing yards is a lock", 200),
			post("r/sportsbook", "u2", "Game thread, who is watching?", 500),
		}},
		&fakeSentiment{name: "Twitter", err: errors.New("no session")},
	)
	em := &recordingEmitter{}
	a, s := newApp(t, reg, em)
	ctx := context.Background()

	c, err := a.RunSentiment(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if c.SentimentPoints != 1 {
		t.Errorf("sentiment points = %d, want 1 (non-betting post dropped)", c.SentimentPoints)
	}
	if len(c.Errors) != 1 || len(c.Sources) != 1 {
		t.Errorf("counts = %+v", c)
	}
	if c.TailingAlerts != 1 {
		t.Errorf("tailing alerts = %d, want 1", c.TailingAlerts)
	}

	snap, err := store.LatestTailing(ctx, s)
	if err != nil || snap == nil || len(snap.Results) != 1 {
		t.Fatalf("tailing snapshot = %+v, %v", snap, err)
	}
	if r := snap.Results[0]; r.Player != "Josh Allen" || r.Risk != types.RiskOvertailed {
		t.Errorf("tailing = %+v", r)
	}
	if len(em.alerts) != 1 || em.alerts[0].Kind != types.AlertOvertailed {
		t.Errorf("alerts = %+v", em.alerts)
	}

	reddit, _ := a.Quality().Source("Reddit")
	if reddit.GamesFound != 2 || reddit.PropsExtracted != 1 {
		t.Errorf("reddit metrics = %+v", reddit)
	}
}

func TestRunSentimentRepeatedPolls(t *testing.T) {
	p := post("r/sportsbook", "u1", "Josh Allen over passing yards is a lock", 10)
	p.ID = "reddit_abc"
	reg := connector.NewRegistry()
	reg.AddSentiment(&fakeSentiment{name: "Reddit", records: []types.SentimentRecord{p}})

	a, s := newApp(t, reg, nil)
	cfg := testConfig()
	cfg.Tailing.Rebalance = false
	if err := a.ReloadConfig(cfg); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	var first types.TailingSentiment
	for i := 0; i < 6; i++ {
		c, err := a.RunSentiment(ctx)
		if err != nil {
			t.Fatal(err)
		}
		want := 0
		if i == 0 {
			want = 1
		}
		if c.SentimentPoints != want {
			t.Errorf("poll %d: sentiment points = %d, want %d", i, c.SentimentPoints, want)
		}

		snap, err := store.LatestTailing(ctx, s)
		if err != nil || snap == nil || len(snap.Results) != 1 {
			t.Fatalf("poll %d: tailing snapshot = %+v, %v", i, snap, err)
		}
		r := snap.Results[0]
		if i == 0 {
			first = r
		}
		if r.Mentions != 1 || r.TailRate != first.TailRate || r.Risk == types.RiskOvertailed {
			t.Errorf("poll %d: tailing = %+v", i, r)
		}
	}

	recs, err := store.RecentSentiment(ctx, s, now.Add(-24*time.Hour), 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Errorf("stored sentiment records = %d, want 1", len(recs))
	}
}

func TestRunAllPartialFailure(t *testing.T) {
	reg := connector.NewRegistry()
	reg.AddProps(&fakeProps{name: "DraftKings", lines: []float64{250}})
	reg.AddSentiment(&fakeSentiment{name: "Reddit", err: errors.New("429")})
	a, _ := newApp(t, reg, nil)

	c, err := a.RunAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if c.PropsScraped != 1 || len(c.Errors) == 0 {
		t.Errorf("counts = %+v", c)
	}
}

func TestRunAllBothFail(t *testing.T) {
	reg := connector.NewRegistry()
	reg.AddProps(&fakeProps{name: "DraftKings", err: errors.New("down")})
	reg.AddSentiment(&fakeSentiment{name: "Reddit", err: errors.New("down")})
	a, _ := newApp(t, reg, nil)

	if _, err := a.RunAll(context.Background()); !errors.Is(err, ErrAllSourcesFailed) {
		t.Fatalf("err = %v", err)
	}
}

func TestReloadConfig(t *testing.T) {
	a, _ := newApp(t, connector.NewRegistry(), nil)

	bad := testConfig()
	bad.Movement.MinThreshold = -1
	if err := a.ReloadConfig(bad); err == nil {
		t.Fatal("expected validation error")
	}

	good := testConfig()
	good.Tailing.TopN = 3
	if err := a.ReloadConfig(good); err != nil {
		t.Fatal(err)
	}
	if a.Config().Tailing.TopN != 3 {
		t.Error("config not swapped")
	}
}

func TestSharedQualityMonitor(t *testing.T) {
	m := quality.NewMonitor(nil)
	a := New(testConfig(), Deps{Quality: m})
	if a.Quality() != m {
		t.Error("monitor not used")
	}
}
