package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ibeckermayer/sharpwatch/internal/app"
	"github.com/ibeckermayer/sharpwatch/internal/live"
	"github.com/ibeckermayer/sharpwatch/internal/quality"
	"github.com/ibeckermayer/sharpwatch/internal/scheduler"
	"github.com/ibeckermayer/sharpwatch/internal/store"
	"github.com/ibeckermayer/sharpwatch/internal/types"
)

type fakeController struct {
	triggerErr  error
	sessionsErr error
	updated     int
	gotLimit    int
}

func (f *fakeController) Status() scheduler.Status {
	return scheduler.Status{
		Started:    true,
		IsPeakTime: true,
		Props:      scheduler.TimerStatus{Interval: "3m0s"},
		Sentiment:  scheduler.TimerStatus{Interval: "10m0s"},
	}
}

func (f *fakeController) TriggerImmediate(ctx context.Context) (*types.ScrapingSession, app.Counts, error) {
	if f.triggerErr != nil {
		return nil, app.Counts{}, f.triggerErr
	}
	sess := types.NewSession("manual-1", types.KindManual, time.Now())
	return sess, app.Counts{PropsScraped: 35, SentimentPoints: 25, Movements: 3, Sources: []string{"DraftKings", "Reddit"}}, nil
}

func (f *fakeController) UpdateFrequency() time.Duration {
	f.updated++
	return 3 * time.Minute
}

func (f *fakeController) Sessions(ctx context.Context, n int) ([]types.ScrapingSession, error) {
	f.gotLimit = n
	if f.sessionsErr != nil {
		return nil, f.sessionsErr
	}
	return []types.ScrapingSession{*types.NewSession("s1", types.KindProps, time.Now())}, nil
}

type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func do(t *testing.T, h http.Handler, method, target string) (int, response) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))

	var resp response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("%s %s: decode %q: %v", method, target, rec.Body.String(), err)
	}
	return rec.Code, resp
}

func newServer(t *testing.T, ctrl Controller) (http.Handler, *store.SQLStore) {
	t.Helper()
	s, err := store.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })

	q := quality.NewMonitor(nil)
	q.Record("DraftKings", 10, 2, 1500*time.Millisecond, nil)
	return New(ctrl, q, s, nil).Router([]string{"http://localhost:5173"}), s
}

func TestStatus(t *testing.T) {
	h, _ := newServer(t, &fakeController{})
	code, resp := do(t, h, http.MethodGet, "/api/scraper/status")
	if code != http.StatusOK || !resp.Success {
		t.Fatalf("code = %d, resp = %+v", code, resp)
	}

	var st scheduler.Status
	if err := json.Unmarshal(resp.Data, &st); err != nil {
		t.Fatal(err)
	}
	if !st.IsPeakTime || st.Props.Interval != "3m0s" {
		t.Errorf("status = %+v", st)
	}
}

func TestTrigger(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"ok", nil, http.StatusOK, ""},
		{"busy", scheduler.ErrSessionRunning, http.StatusConflict, "already running"},
		{"failed", app.ErrAllSourcesFailed, http.StatusInternalServerError, "scraping session failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newServer(t, &fakeController{triggerErr: tt.err})
			code, resp := do(t, h, http.MethodPost, "/api/scraper/trigger")
			if code != tt.wantCode {
				t.Errorf("code = %d, want %d", code, tt.wantCode)
			}
			if resp.Success != (tt.err == nil) {
				t.Errorf("success = %v", resp.Success)
			}
			if !strings.Contains(resp.Error, tt.wantErr) {
				t.Errorf("error = %q, want %q", resp.Error, tt.wantErr)
			}
			if tt.err != nil {
				return
			}

			var data map[string]any
			if err := json.Unmarshal(resp.Data, &data); err != nil {
				t.Fatal(err)
			}
			if data["props_scraped"] != float64(35) || data["session_id"] != "manual-1" {
				t.Errorf("data = %v", data)
			}
		})
	}
}

func TestFrequency(t *testing.T) {
	ctrl := &fakeController{}
	h, _ := newServer(t, ctrl)
	code, resp := do(t, h, http.MethodPost, "/api/scraper/frequency")
	if code != http.StatusOK || ctrl.updated != 1 {
		t.Fatalf("code = %d, updated = %d", code, ctrl.updated)
	}
	var data map[string]any
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data["props_interval"] != "3m0s" || data["sentiment_interval"] != "10m0s" {
		t.Errorf("data = %v", data)
	}
}

func TestQuality(t *testing.T) {
	h, _ := newServer(t, &fakeController{})
	code, resp := do(t, h, http.MethodGet, "/api/scraper/quality")
	if code != http.StatusOK {
		t.Fatalf("code = %d", code)
	}

	var data struct {
		Metrics     quality.Rollup      `json:"metrics"`
		Diagnostics quality.Diagnostics `json:"diagnostics"`
		Insights    []string            `json:"insights"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatal(err)
	}
	if len(data.Metrics.Sources) != 1 || data.Metrics.TotalProps != 2 {
		t.Errorf("metrics = %+v", data.Metrics)
	}
	if len(data.Diagnostics.CriticalIssues) == 0 {
		t.Error("20% extraction should be a critical issue")
	}
	if len(data.Insights) == 0 {
		t.Error("expected insights")
	}
}

func TestSessions(t *testing.T) {
	ctrl := &fakeController{}
	h, _ := newServer(t, ctrl)

	code, _ := do(t, h, http.MethodGet, "/api/scraper/sessions?limit=1000")
	if code != http.StatusOK || ctrl.gotLimit != 200 {
		t.Errorf("code = %d, limit = %d", code, ctrl.gotLimit)
	}

	ctrl.sessionsErr = errors.New("no session store configured")
	code, resp := do(t, h, http.MethodGet, "/api/scraper/sessions")
	if code != http.StatusServiceUnavailable || resp.Success || ctrl.gotLimit != 20 {
		t.Errorf("code = %d, resp = %+v, limit = %d", code, resp, ctrl.gotLimit)
	}
}

func TestHistoryEndpoints(t *testing.T) {
	ctx := context.Background()
	h, s := newServer(t, &fakeController{})

	if code, _ := do(t, h, http.MethodGet, "/api/tailing"); code != http.StatusNotFound {
		t.Errorf("empty tailing code = %d", code)
	}

	at := time.Date(2025, 10, 12, 18, 0, 0, 0, time.UTC)
	m := types.LineMovement{
		PropID: "Josh Allen-Passing Yards", Player: "Josh Allen", StatType: "Passing Yards",
		Source: types.SourceDraftKings, PreviousLine: 267.5, CurrentLine: 270.5, Movement: 3,
		Direction: types.DirectionUp, Significance: types.SignificanceMajor, DetectedAt: at,
	}
	if err := store.AppendMovement(ctx, s, m); err != nil {
		t.Fatal(err)
	}
	if err := store.AppendTailing(ctx, s, at, []types.TailingSentiment{{Key: "Josh Allen_Passing Yards", TailRate: 80}}); err != nil {
		t.Fatal(err)
	}

	code, resp := do(t, h, http.MethodGet, "/api/movements")
	if code != http.StatusOK {
		t.Fatalf("movements code = %d", code)
	}
	var data struct {
		Movements []types.LineMovement `json:"movements"`
		Count     int                  `json:"count"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.Count != 1 || data.Movements[0].Significance != types.SignificanceMajor {
		t.Errorf("movements = %+v", data)
	}

	if code, _ := do(t, h, http.MethodGet, "/api/tailing"); code != http.StatusOK {
		t.Errorf("tailing code = %d", code)
	}
}

func TestCORSPreflight(t *testing.T) {
	h, _ := newServer(t, &fakeController{})
	req := httptest.NewRequest(http.MethodOptions, "/api/scraper/status", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("allow origin = %q", got)
	}
}

func TestLiveFeed(t *testing.T) {
	h, _ := newServer(t, &fakeController{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/alerts/live", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unmounted live feed code = %d, want 404", rec.Code)
	}

	hub := live.NewHub(nil, nil)
	defer hub.Close()
	server := New(&fakeController{}, nil, nil, nil)
	server.SetLiveFeed(hub)
	srv := httptest.NewServer(server.Router(nil))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/alerts/live", nil)
	if err != nil {
		t.Fatalf("dial through router: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
