// Package quality tracks per-source extraction health.
package quality

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/ibeckermayer/sharpwatch/internal/types"
)

// SourceMetrics is the latest observation for one source.
type SourceMetrics struct {
	Source         string       `json:"source"`
	GamesFound     int          `json:"games_found"`
	PropsExtracted int          `json:"props_extracted"`
	ExtractionRate float64      `json:"extraction_rate"`
	ResponseTimeMs int64        `json:"response_time_ms"`
	Errors         []string     `json:"errors"`
	Status         types.Health `json:"status"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Rollup aggregates every source's latest metrics.
type Rollup struct {
	TotalProps        int             `json:"total_props"`
	ActiveSources     int             `json:"active_sources"`
	AvgResponseTimeMs float64         `json:"avg_response_time_ms"`
	OverallHealth     types.Health    `json:"overall_health"`
	Sources           []SourceMetrics `json:"sources"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Diagnostics are advisory, human-readable findings.
type Diagnostics struct {
	CriticalIssues      []string `json:"critical_issues"`
	Recommendations     []string `json:"recommendations"`
	PerformanceInsights []string `json:"performance_insights"`
}

// Monitor is safe for concurrent use.
type Monitor struct {
	mu      sync.RWMutex
	sources map[string]SourceMetrics
	rollup  Rollup
	now     func() time.Time
	logger  *slog.Logger
}

func NewMonitor(logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		sources: map[string]SourceMetrics{},
		rollup:  Rollup{OverallHealth: types.HealthFailed, Sources: []SourceMetrics{}},
		now:     time.Now,
		logger:  logger,
	}
}

// SetClock overrides the timestamp source.
func (m *Monitor) SetClock(now func() time.Time) { m.now = now }

// ExtractionRate is extracted/found*100, or 0 when nothing was found.
func ExtractionRate(found, extracted int) float64 {
	if found == 0 {
		return 0
	}
	return float64(extracted) / float64(found) * 100
}

// StatusOf derives a source status.
func StatusOf(rate float64, errs []string) types.Health {
	switch {
	case len(errs) > 0:
		return types.HealthFailed
	case rate < 50:
		return types.HealthDegraded
	default:
		return types.HealthHealthy
	}
}

// Record replaces the metrics for source and recomputes the rollup.
func (m *Monitor) Record(source string, found, extracted int, responseTime time.Duration, errs []string) SourceMetrics {
	rate := ExtractionRate(found, extracted)
	sm := SourceMetrics{
		Source:         source,
		GamesFound:     found,
		PropsExtracted: extracted,
		ExtractionRate: rate,
		ResponseTimeMs: responseTime.Milliseconds(),
		Errors:         append([]string{}, errs...),
		Status:         StatusOf(rate, errs),
		UpdatedAt:      m.now(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sources[source] = sm
	m.rollup = m.computeRollup()

	m.logger.Debug("quality: recorded",
		"source", source, "rate", fmt.Sprintf("%.1f", rate), "status", sm.Status, "overall", m.rollup.OverallHealth)
	return sm
}

func (m *Monitor) computeRollup() Rollup {
	r := Rollup{Sources: make([]SourceMetrics, 0, len(m.sources)), UpdatedAt: m.now()}

	var healthy int
	var totalResponse int64
	for _, sm := range m.sources {
		r.Sources = append(r.Sources, sm)
		r.TotalProps += sm.PropsExtracted
		totalResponse += sm.ResponseTimeMs
		if sm.Status != types.HealthFailed {
			r.ActiveSources++
		}
		if sm.Status == types.HealthHealthy {
			healthy++
		}
	}
	sort.Slice(r.Sources, func(i, j int) bool { return r.Sources[i].Source < r.Sources[j].Source })

	n := len(m.sources)
	if n > 0 {
		r.AvgResponseTimeMs = float64(totalResponse) / float64(n)
	}

	switch {
	case healthy == 0:
		r.OverallHealth = types.HealthFailed
	case float64(healthy)/float64(n) >= 0.7:
		r.OverallHealth = types.HealthHealthy
	default:
		r.OverallHealth = types.HealthDegraded
	}
	return r
}

// Rollup returns the current aggregate.
func (m *Monitor) Rollup() Rollup {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r := m.rollup
	r.Sources = append([]SourceMetrics(nil), m.rollup.Sources...)
	return r
}

// Source returns the latest metrics for one source.
func (m *Monitor) Source(name string) (SourceMetrics, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sm, ok := m.sources[name]
	return sm, ok
}

// Reset forgets every source.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources = map[string]SourceMetrics{}
	m.rollup = m.computeRollup()
}

// Diagnostics applies threshold rules to each source.
func (m *Monitor) Diagnostics() Diagnostics {
	r := m.Rollup()
	d := Diagnostics{CriticalIssues: []string{}, Recommendations: []string{}, PerformanceInsights: []string{}}

	for _, sm := range r.Sources {
		if sm.Status == types.HealthFailed {
			d.CriticalIssues = append(d.CriticalIssues,
				fmt.Sprintf("%s: complete failure - %s", sm.Source, strings.Join(sm.Errors, ", ")))
		}
		if sm.ExtractionRate < 30 && sm.GamesFound > 0 {
			d.CriticalIssues = append(d.CriticalIssues,
				fmt.Sprintf("%s: low extraction rate %.1f%% (%d/%d found)", sm.Source, sm.ExtractionRate, sm.PropsExtracted, sm.GamesFound))
			d.Recommendations = append(d.Recommendations,
				fmt.Sprintf("Investigate %s parsing - it may be missing nested data", sm.Source))
		}
		if sm.ResponseTimeMs > 1000 {
			d.PerformanceInsights = append(d.PerformanceInsights,
				fmt.Sprintf("%s: slow response %dms, last seen %s", sm.Source, sm.ResponseTimeMs, humanize.Time(sm.UpdatedAt)))
		}
		if sm.GamesFound > 10 && sm.PropsExtracted < 5 {
			d.Recommendations = append(d.Recommendations,
				fmt.Sprintf("%s: found %d candidates but only %d props - check endpoint depth", sm.Source, sm.GamesFound, sm.PropsExtracted))
		}
	}
	return d
}

// ActionableInsights summarizes the rollup in a few lines.
func (m *Monitor) ActionableInsights() []string {
	r := m.Rollup()
	d := m.Diagnostics()

	insights := []string{}
	if failing := len(d.CriticalIssues); failing > 0 {
		insights = append(insights, fmt.Sprintf("CRITICAL: %d issue(s) across sources", failing))
	}
	if r.TotalProps < 10 {
		insights = append(insights, fmt.Sprintf("LOW COVERAGE: only %s props across all sources", humanize.Comma(int64(r.TotalProps))))
	}
	if r.AvgResponseTimeMs > 800 {
		insights = append(insights, fmt.Sprintf("PERFORMANCE: average response time %.0fms", r.AvgResponseTimeMs))
	}
	if len(insights) == 0 {
		insights = append(insights, fmt.Sprintf("All %d source(s) within thresholds", len(r.Sources)))
	}
	return insights
}
