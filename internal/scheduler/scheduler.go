// Package scheduler runs the prop and sentiment cycles on independent
// timers with single-flight protection per cycle kind.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/ibeckermayer/sharpwatch/internal/app"
	"github.com/ibeckermayer/sharpwatch/internal/calendar"
	"github.com/ibeckermayer/sharpwatch/internal/config"
	"github.com/ibeckermayer/sharpwatch/internal/store"
	"github.com/ibeckermayer/sharpwatch/internal/types"
)

// ErrSessionRunning is returned by TriggerImmediate while any cycle runs.
var ErrSessionRunning = errors.New("scheduler: a session is already running")

// Runner executes cycles. *app.App implements it.
type Runner interface {
	RunProps(ctx context.Context) (app.Counts, error)
	RunSentiment(ctx context.Context) (app.Counts, error)
	RunAll(ctx context.Context) (app.Counts, error)
}

// category is the single-flight state for one kind of work.
type category struct {
	mu      sync.Mutex
	running *types.ScrapingSession
	last    *types.ScrapingSession
}

// begin claims the category for sess. It reports false if already claimed.
func (c *category) begin(sess *types.ScrapingSession) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running != nil {
		return false
	}
	c.running = sess
	return true
}

// finish releases the category and records sess as the last outcome.
func (c *category) finish(sess *types.ScrapingSession) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = nil
	if sess != nil {
		c.last = sess
	}
}

func (c *category) state() (running, last *types.ScrapingSession) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running, c.last
}

// Scheduler manages the periodic cycles
type Scheduler struct {
	runner Runner
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
	newID  func() string

	// cfgMu guards cfg and peak. cron calls Next on its own goroutine, so
	// it must never be held while talking to cron.
	cfgMu sync.RWMutex
	cfg   config.ScheduleConfig
	peak  calendar.PeakWindow

	mu      sync.Mutex // guards entries and started
	cron    *cron.Cron
	entries map[types.SessionKind]cron.EntryID
	started bool

	props     category
	sentiment category
}

// New creates a scheduler. s may be nil, in which case sessions are only
// kept in memory.
func New(cfg config.ScheduleConfig, runner Runner, s store.Store, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	peak, err := calendar.FromConfig(cfg)
	if err != nil {
		return nil, err
	}

	sch := &Scheduler{
		runner:  runner,
		store:   s,
		logger:  logger,
		now:     time.Now,
		newID:   uuid.NewString,
		cfg:     cfg,
		peak:    peak,
		entries: make(map[types.SessionKind]cron.EntryID),
	}
	l := cronLogger{logger}
	sch.cron = cron.New(
		cron.WithLocation(peak.Location()),
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l)),
	)
	return sch, nil
}

// SetClock overrides the clock used for sessions and peak evaluation.
func (s *Scheduler) SetClock(now func() time.Time) { s.now = now }

// PropsInterval returns the prop-cycle interval in effect at t.
func (s *Scheduler) PropsInterval(t time.Time) time.Duration {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	if s.peak.IsPeak(t) {
		return time.Duration(s.cfg.PeakIntervalMinutes) * time.Minute
	}
	return time.Duration(s.cfg.OffPeakIntervalMinutes) * time.Minute
}

// SentimentInterval is constant regardless of peak.
func (s *Scheduler) SentimentInterval() time.Duration {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return time.Duration(s.cfg.SentimentIntervalMinutes) * time.Minute
}

// IsPeak reports whether t is inside the configured peak window.
func (s *Scheduler) IsPeak(t time.Time) bool {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.peak.IsPeak(t)
}

// adaptiveSchedule re-derives the prop interval at every tick, so the
// cadence shifts as the peak window opens and closes.
type adaptiveSchedule struct {
	s *Scheduler
}

func (a adaptiveSchedule) Next(t time.Time) time.Time {
	return t.Add(a.s.PropsInterval(t))
}

// Start installs both timers and begins running them.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.installLocked()
	s.cron.Start()
	s.started = true
	s.logger.Info("scheduler: started",
		"props_interval", s.PropsInterval(s.now()),
		"sentiment_interval", s.SentimentInterval())
}

// installLocked replaces any installed timers with fresh ones.
func (s *Scheduler) installLocked() {
	s.removeLocked()
	s.entries[types.KindProps] = s.cron.Schedule(adaptiveSchedule{s}, cron.FuncJob(func() {
		s.runScheduled(types.KindProps)
	}))
	s.entries[types.KindSentiment] = s.cron.Schedule(
		cron.Every(s.SentimentInterval()),
		cron.FuncJob(func() { s.runScheduled(types.KindSentiment) }),
	)
}

func (s *Scheduler) removeLocked() {
	for kind, id := range s.entries {
		s.cron.Remove(id)
		delete(s.entries, kind)
	}
}

// Stop halts and removes the timers. The returned context is done once
// running jobs have finished. A later Start installs fresh timers.
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked()
	s.started = false
	s.logger.Info("scheduler: stopping")
	return s.cron.Stop()
}

// UpdateFrequency tears down both timers and reinstalls them so their next
// fire times are derived from the current peak state. It returns the prop
// interval now in effect.
func (s *Scheduler) UpdateFrequency() time.Duration {
	s.mu.Lock()
	s.installLocked()
	s.mu.Unlock()

	now := s.now()
	interval := s.PropsInterval(now)
	s.logger.Info("scheduler: frequency updated", "props_interval", interval, "peak", s.IsPeak(now))
	return interval
}

// Reconfigure applies a new schedule section and reinstalls the timers.
// The cron location stays fixed; peak evaluation converts to the new zone.
func (s *Scheduler) Reconfigure(cfg config.ScheduleConfig) error {
	peak, err := calendar.FromConfig(cfg)
	if err != nil {
		return err
	}

	s.cfgMu.Lock()
	s.cfg = cfg
	s.peak = peak
	s.cfgMu.Unlock()

	s.UpdateFrequency()
	return nil
}

func (s *Scheduler) sessionTimeout() time.Duration {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	if s.cfg.SessionTimeoutMinutes <= 0 {
		return 0
	}
	return time.Duration(s.cfg.SessionTimeoutMinutes) * time.Minute
}

func (s *Scheduler) sessionContext() (context.Context, context.CancelFunc) {
	if d := s.sessionTimeout(); d > 0 {
		return context.WithTimeout(context.Background(), d)
	}
	return context.WithCancel(context.Background())
}

// runScheduled is the timer callback. A tick that finds its category busy
// is skipped. Errors end up on the session record, never in cron.
func (s *Scheduler) runScheduled(kind types.SessionKind) {
	cat, run := &s.props, s.runner.RunProps
	if kind == types.KindSentiment {
		cat, run = &s.sentiment, s.runner.RunSentiment
	}

	sess := types.NewSession(s.newID(), kind, s.now())
	if !cat.begin(sess) {
		s.logger.Info("scheduler: previous session still running, skipping tick", "kind", kind)
		return
	}

	ctx, cancel := s.sessionContext()
	defer cancel()

	s.logger.Info("scheduler: session started", "kind", kind, "session", sess.ID)
	counts, err := run(ctx)
	s.finalize(sess, counts, err)
	cat.finish(sess)
}

// TriggerImmediate runs a full prop and sentiment cycle now and returns its
// counts. It returns ErrSessionRunning without running anything if either
// timer's session is in flight.
func (s *Scheduler) TriggerImmediate(ctx context.Context) (*types.ScrapingSession, app.Counts, error) {
	sess := types.NewSession(s.newID(), types.KindManual, s.now())

	if !s.props.begin(sess) {
		return nil, app.Counts{}, ErrSessionRunning
	}
	if !s.sentiment.begin(sess) {
		s.props.finish(nil)
		return nil, app.Counts{}, ErrSessionRunning
	}

	if d := s.sessionTimeout(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	s.logger.Info("scheduler: manual session started", "session", sess.ID)
	counts, err := s.runner.RunAll(ctx)
	s.finalize(sess, counts, err)

	s.sentiment.finish(sess)
	s.props.finish(sess)
	return sess, counts, err
}

// finalize moves sess to its terminal state and persists it.
func (s *Scheduler) finalize(sess *types.ScrapingSession, counts app.Counts, err error) {
	sess.PropsScraped = counts.PropsScraped
	sess.SentimentPointsCollected = counts.SentimentPoints
	sess.MovementsDetected = counts.Movements
	sess.TailingAlerts = counts.TailingAlerts
	sess.Sources = counts.Sources
	sess.Errors = append(sess.Errors, counts.Errors...)

	end := s.now()
	if err != nil {
		sess.Fail(end, err)
		s.logger.Error("scheduler: session failed", "kind", sess.Kind, "session", sess.ID, "error", err)
	} else {
		sess.Complete(end)
		s.logger.Info("scheduler: session completed",
			"kind", sess.Kind,
			"session", sess.ID,
			"props", sess.PropsScraped,
			"sentiment", sess.SentimentPointsCollected,
			"movements", sess.MovementsDetected,
			"duration", end.Sub(sess.StartTime).Round(time.Millisecond))
	}

	if s.store == nil {
		return
	}
	// persist even if the session's own context expired
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if perr := store.AppendSession(ctx, s.store, sess); perr != nil {
		s.logger.Error("scheduler: failed to persist session", "session", sess.ID, "error", perr)
	}
}

// TimerStatus describes one timer.
type TimerStatus struct {
	Interval string                 `json:"interval"`
	Running  bool                   `json:"running"`
	Session  string                 `json:"session_id,omitempty"`
	NextRun  *time.Time             `json:"next_run,omitempty"`
	NextIn   string                 `json:"next_in,omitempty"`
	LastRun  *time.Time             `json:"last_run,omitempty"`
	Last     *types.ScrapingSession `json:"last_session,omitempty"`
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	Started       bool                  `json:"started"`
	IsRunning     bool                  `json:"is_running"`
	IsPeakTime    bool                  `json:"is_peak_time"`
	Props         TimerStatus           `json:"props"`
	Sentiment     TimerStatus           `json:"sentiment"`
	ActiveLeagues []calendar.SeasonInfo `json:"active_leagues"`
	SeasonMessage string                `json:"season_message"`
	CheckedAt     time.Time             `json:"checked_at"`
}

// Status reports running flags, peak state and next fire times.
func (s *Scheduler) Status() Status {
	now := s.now()

	s.mu.Lock()
	started := s.started
	ids := make(map[types.SessionKind]cron.EntryID, len(s.entries))
	for k, v := range s.entries {
		ids[k] = v
	}
	s.mu.Unlock()

	st := Status{
		Started:       started,
		IsPeakTime:    s.IsPeak(now),
		Props:         timerStatus(&s.props, s.PropsInterval(now)),
		Sentiment:     timerStatus(&s.sentiment, s.SentimentInterval()),
		ActiveLeagues: calendar.ActiveLeagues(now),
		SeasonMessage: calendar.ActiveLeaguesMessage(now),
		CheckedAt:     now,
	}
	st.IsRunning = st.Props.Running || st.Sentiment.Running

	if started {
		for kind, id := range ids {
			e := s.cron.Entry(id)
			if !e.Valid() || e.Next.IsZero() {
				continue
			}
			ts := &st.Props
			if kind == types.KindSentiment {
				ts = &st.Sentiment
			}
			next := e.Next
			ts.NextRun = &next
			ts.NextIn = humanize.RelTime(next, now, "ago", "from now")
			if !e.Prev.IsZero() {
				prev := e.Prev
				ts.LastRun = &prev
			}
		}
	}
	return st
}

func timerStatus(c *category, interval time.Duration) TimerStatus {
	running, last := c.state()
	ts := TimerStatus{
		Interval: interval.String(),
		Running:  running != nil,
		Last:     last,
	}
	if running != nil {
		ts.Session = running.ID
	}
	return ts
}

// Sessions returns the most recent persisted sessions.
func (s *Scheduler) Sessions(ctx context.Context, n int) ([]types.ScrapingSession, error) {
	if s.store == nil {
		return nil, fmt.Errorf("scheduler: no session store configured")
	}
	return store.RecentSessions(ctx, s.store, n)
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
