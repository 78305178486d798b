package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ibeckermayer/sharpwatch/internal/config"
	"github.com/ibeckermayer/sharpwatch/internal/connector"
	"github.com/ibeckermayer/sharpwatch/internal/types"
)

var fixedNow = time.Date(2025, 10, 12, 18, 0, 0, 0, time.UTC)

func newClient() *connector.HTTPClient {
	return connector.NewHTTPClient(2*time.Second, "test")
}

const dkFixture = `{
  "eventGroup": {
    "events": [
      {
        "name": "BUF @ MIA",
        "teamName1": "Buffalo Bills",
        "displayGroups": [{
          "markets": [{
            "name": "Passing Yards",
            "outcomes": [
              {"participant": "Josh Allen", "line": 267.5, "oddsAmerican": "-115", "percentOfSpread": 68},
              {"participant": "Tua Tagovailoa", "line": 245.5, "oddsAmerican": ""},
              {"participant": "", "line": 10.5, "oddsAmerican": "+100"},
              {"participant": "No Line", "oddsAmerican": "+100"}
            ]
          }]
        }]
      },
      {"name": "empty", "displayGroups": []}
    ]
  }
}`

func TestDraftKingsFetchProps(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, dkFixture)
	}))
	defer srv.Close()

	dk := NewDraftKings(config.DraftKingsConfig{Enabled: true, URL: srv.URL}, newClient())
	dk.now = func() time.Time { return fixedNow }

	batch, err := dk.FetchProps(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if batch.Found != 2 {
		t.Errorf("found = %d, want 2 events", batch.Found)
	}
	if len(batch.Props) != 2 {
		t.Fatalf("props = %d, want 2", len(batch.Props))
	}

	allen := batch.Props[0]
	if allen.Player != "Josh Allen" || allen.Line != 267.5 || allen.Team != "Buffalo Bills" {
		t.Errorf("allen = %+v", allen)
	}
	if allen.Status != types.StatusActive || allen.Odds == nil || *allen.Odds != -115 {
		t.Errorf("allen odds/status = %v %v", allen.Status, allen.Odds)
	}
	if allen.PublicPercent == nil || *allen.PublicPercent != 68 {
		t.Errorf("public percent = %v", allen.PublicPercent)
	}
	if !allen.Timestamp.Equal(fixedNow) {
		t.Errorf("timestamp = %v", allen.Timestamp)
	}

	if tua := batch.Props[1]; tua.Status != types.StatusSuspended || tua.Odds != nil {
		t.Errorf("tua = %+v, want suspended without odds", tua)
	}
}

func TestDraftKingsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	dk := NewDraftKings(config.DraftKingsConfig{Enabled: true, URL: srv.URL}, newClient())
	_, err := dk.FetchProps(context.Background())

	var se *connector.StatusError
	if !errors.As(err, &se) || se.Code != http.StatusForbidden {
		t.Fatalf("err = %v, want 403 StatusError", err)
	}
}

func TestOddsAPIFetchProps(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/sports/americanfootball_nfl/events", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("apiKey") != "k" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `[
			{"id":"e1","home_team":"Miami Dolphins","away_team":"Buffalo Bills","commence_time":"2025-10-12T17:00:00Z"},
			{"id":"e2","home_team":"A","away_team":"B","commence_time":"2025-10-12T17:00:00Z"},
			{"id":"e3","home_team":"C","away_team":"D","commence_time":"2025-10-12T17:00:00Z"}
		]`)
	})
	mux.HandleFunc("/sports/americanfootball_nfl/events/e1/odds", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("markets"); got != "player_pass_yds" {
			t.Errorf("markets = %q", got)
		}
		fmt.Fprint(w, `{"id":"e1","bookmakers":[
			{"key":"fanduel","markets":[{"key":"player_pass_yds","outcomes":[
				{"name":"Over","description":"Josh Allen","price":-110,"point":265.5},
				{"name":"Under","description":"Josh Allen","price":-110,"point":265.5}
			]}]},
			{"key":"williamhill_us","markets":[{"key":"player_pass_yds","outcomes":[
				{"name":"Over","description":"Josh Allen","price":-120,"point":266.5}
			]}]},
			{"key":"caesars","markets":[{"key":"player_pass_yds","outcomes":[
				{"name":"Over","description":"Josh Allen","price":-105,"point":267.5}
			]}]},
			{"key":"pointsbetus","markets":[{"key":"player_pass_yds","outcomes":[
				{"name":"Over","description":"Josh Allen","price":-110,"point":264.5}
			]}]}
		]}`)
	})
	mux.HandleFunc("/sports/americanfootball_nfl/events/e2/odds", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := config.OddsAPIConfig{
		Enabled:   true,
		APIKey:    "k",
		BaseURL:   srv.URL,
		Sports:    []string{"americanfootball_nfl"},
		Markets:   []string{"player_pass_yds"},
		MaxEvents: 2,
	}
	o := NewOddsAPI(cfg, newClient(), connector.NewPacer(0))
	o.now = func() time.Time { return fixedNow }

	batch, err := o.FetchProps(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if batch.Found != 3 {
		t.Errorf("found = %d, want 3", batch.Found)
	}
	if len(batch.Props) != 2 {
		t.Fatalf("props = %+v, want 2 (over only, known books, one per source)", batch.Props)
	}
	if p := batch.Props[0]; p.Source != types.SourceFanDuel || p.StatType != "Passing Yards" || p.Line != 265.5 || p.GameInfo != "Buffalo Bills @ Miami Dolphins" {
		t.Errorf("fanduel prop = %+v", p)
	}
	if p := batch.Props[1]; p.Source != types.SourceCaesars || *p.Odds != -120 {
		t.Errorf("caesars prop = %+v", p)
	}
}

func TestOddsAPIAvailable(t *testing.T) {
	o := NewOddsAPI(config.Default().Sources.OddsAPI, newClient(), connector.NewPacer(0))
	if o.Available() {
		t.Error("connector without api key should be unavailable")
	}
}

func TestStatName(t *testing.T) {
	tests := map[string]string{
		"player_pass_yds":      "Passing Yards",
		"pitcher_strikeouts":   "Strikeouts",
		"player_blocks_steals": "Blocks Steals",
	}
	for in, want := range tests {
		if got := StatName(in); got != want {
			t.Errorf("StatName(%q) = %q, want %q", in, got, want)
		}
	}
}

type fakeRenderer struct {
	html string
	err  error
	url  string
	wait string
}

func (f *fakeRenderer) Render(_ context.Context, url, wait string) (string, error) {
	f.url, f.wait = url, wait
	return f.html, f.err
}

const prizePicksFixture = `<html><body>
<div data-testid="pick-card">
  <span class="player-name">Josh   Allen</span>
  <span class="team">BUF</span>
  <span class="stat-type">Pass Yards</span>
  <span class="line">267.5</span>
</div>
<div class="pick-card">
  <span class="name">Tyreek Hill</span>
  <span class="category">Receiving Yards</span>
  <span class="projection">85½</span>
</div>
<div class="prop-card">
  <span class="player-name">Locked Player</span>
  <span class="line">--</span>
</div>
</body></html>`

func TestPageParsesCards(t *testing.T) {
	r := &fakeRenderer{html: prizePicksFixture}
	p := NewPrizePicks(config.PageConfig{Enabled: true, URL: "https://example.test/board"}, r)
	p.now = func() time.Time { return fixedNow }

	batch, err := p.FetchProps(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if r.url != "https://example.test/board" || r.wait != PrizePicksSelectors.Card {
		t.Errorf("render called with %q, %q", r.url, r.wait)
	}
	if batch.Found != 3 || len(batch.Props) != 2 {
		t.Fatalf("found = %d, props = %d", batch.Found, len(batch.Props))
	}

	allen := batch.Props[0]
	if allen.Player != "Josh Allen" || allen.Team != "BUF" || allen.StatType != "Pass Yards" || allen.Line != 267.5 {
		t.Errorf("allen = %+v", allen)
	}
	if hill := batch.Props[1]; hill.Line != 85.5 || hill.Team != "Unknown Team" || hill.Source != types.SourcePrizePicks {
		t.Errorf("hill = %+v", hill)
	}
}

func TestPageRenderError(t *testing.T) {
	p := NewUnderdog(config.PageConfig{Enabled: true, URL: "u"}, &fakeRenderer{err: errors.New("chrome crashed")})
	if _, err := p.FetchProps(context.Background()); err == nil {
		t.Fatal("expected render error")
	}
	if NewUnderdog(config.PageConfig{Enabled: true, URL: "u"}, nil).Available() {
		t.Error("page connector without renderer should be unavailable")
	}
}

func TestRedditFetchSentiment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "sharpwatch-test" {
			t.Errorf("user agent = %q", r.Header.Get("User-Agent"))
		}
		switch r.URL.Path {
		case "/r/sportsbook/hot.json":
			if r.URL.Query().Get("limit") != "25" {
				t.Errorf("limit = %q", r.URL.Query().Get("limit"))
			}
			fmt.Fprint(w, `{"data":{"children":[
				{"data":{"id":"a1","title":"Josh Allen over 267.5 is a lock","selftext":"smash it","author":"u1","score":40,"num_comments":12,"created_utc":1760292000}},
				{"data":{"id":"a2","title":"Weekly thread","selftext":"","author":"mod","score":5,"num_comments":0,"created_utc":1760292100}}
			]}}`)
		default:
			w.WriteHeader(http.StatusTooManyRequests)
		}
	}))
	defer srv.Close()

	cfg := config.RedditConfig{
		Enabled:    true,
		BaseURL:    srv.URL,
		Subreddits: []string{"sportsbook", "nfl"},
		Limit:      25,
		UserAgent:  "sharpwatch-test",
	}
	r := NewReddit(cfg, newClient(), connector.NewPacer(0))

	batch, err := r.FetchSentiment(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if batch.Found != 2 || len(batch.Records) != 2 {
		t.Fatalf("found = %d, records = %d", batch.Found, len(batch.Records))
	}

	rec := batch.Records[0]
	if rec.Community != "r/sportsbook" || rec.Platform != "Reddit" || rec.Engagement != 52 {
		t.Errorf("record = %+v", rec)
	}
	if !strings.Contains(rec.Content, "smash it") {
		t.Errorf("content should include selftext: %q", rec.Content)
	}
	if !rec.Timestamp.Equal(time.Unix(1760292000, 0)) {
		t.Errorf("timestamp = %v", rec.Timestamp)
	}
}

func TestRedditAllSubredditsFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := config.RedditConfig{Enabled: true, BaseURL: srv.URL, Subreddits: []string{"a", "b"}, Limit: 5}
	if _, err := NewReddit(cfg, newClient(), connector.NewPacer(0)).FetchSentiment(context.Background()); err == nil {
		t.Fatal("expected error when every subreddit fails")
	}
}

func TestTweetRecord(t *testing.T) {
	tw := rawTweet{
		ID:        "123",
		Content:   "Sharp money hammering the under",
		Timestamp: "2025-10-12T17:30:00.000Z",
		Likes:     "1.2K",
		Retweets:  "300",
		Replies:   "45",
	}
	rec := tweetRecord("ActionNetworkHQ", tw, fixedNow)
	if rec.Community != "@ActionNetworkHQ" || rec.Author != "ActionNetworkHQ" || rec.Platform != "Twitter" {
		t.Errorf("record = %+v", rec)
	}
	if rec.Engagement != 1545 {
		t.Errorf("engagement = %d, want 1545", rec.Engagement)
	}
	if rec.Timestamp.Equal(fixedNow) {
		t.Error("timestamp should come from the tweet")
	}

	tw.Timestamp = ""
	if got := tweetRecord("x", tw, fixedNow); !got.Timestamp.Equal(fixedNow) {
		t.Errorf("missing timestamp = %v, want now", got.Timestamp)
	}
}

func TestNewRegistryDefaults(t *testing.T) {
	cfg := config.Default()
	reg := NewRegistry(cfg, nil, nil)

	want := map[string]bool{
		"DraftKings": true,
		"OddsAPI":    false, // no key
		"PrizePicks": false,
		"Underdog":   false,
		"Reddit":     true,
	}
	got := reg.Names()
	if len(got) != len(want) {
		t.Fatalf("names = %v", got)
	}
	for name, avail := range want {
		if got[name] != avail {
			t.Errorf("%s available = %v, want %v", name, got[name], avail)
		}
	}

	cfg.Sources.OddsAPI.Enabled = true
	cfg.Sources.OddsAPI.APIKey = "k"
	props := NewRegistry(cfg, nil, nil).PropConnectors()
	if len(props) != 2 || props[0].Name() != "DraftKings" || props[1].Name() != "OddsAPI" {
		t.Errorf("prop order = %v", props)
	}
}
