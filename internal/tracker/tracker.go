// Package tracker turns successive prop observations into line movements.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ibeckermayer/sharpwatch/internal/config"
	"github.com/ibeckermayer/sharpwatch/internal/store"
	"github.com/ibeckermayer/sharpwatch/internal/types"
)

var (
	// ErrOutOfOrder is returned for an observation older than the latest stored one.
	ErrOutOfOrder = errors.New("tracker: observation older than latest")
	// ErrDuplicate is returned for a re-delivered observation.
	ErrDuplicate = errors.New("tracker: duplicate observation")
	// ErrConflict is returned for an observation sharing the latest stored
	// timestamp but carrying a different line.
	ErrConflict = errors.New("tracker: conflicting observation at same timestamp")
)

// Emitter receives alerts. Emit must not block on delivery.
type Emitter interface {
	Emit(ctx context.Context, alert types.Alert)
}

// Thresholds are the significance band floors, in line points.
type Thresholds struct {
	Min      decimal.Decimal
	Moderate decimal.Decimal
	Major    decimal.Decimal
}

// ThresholdsFromConfig converts the movement section into Thresholds.
func ThresholdsFromConfig(cfg config.MovementConfig) Thresholds {
	return Thresholds{
		Min:      decimal.NewFromFloat(cfg.MinThreshold),
		Moderate: decimal.NewFromFloat(cfg.ModerateThreshold),
		Major:    decimal.NewFromFloat(cfg.MajorThreshold),
	}
}

// Classify returns the significance of a movement and whether it reaches
// the minimum threshold at all.
func (t Thresholds) Classify(movement decimal.Decimal) (types.Significance, bool) {
	abs := movement.Abs()
	switch {
	case abs.LessThan(t.Min):
		return "", false
	case abs.LessThan(t.Moderate):
		return types.SignificanceMinor, true
	case abs.LessThan(t.Major):
		return types.SignificanceModerate, true
	default:
		return types.SignificanceMajor, true
	}
}

// Tracker records observations and materializes movements.
type Tracker struct {
	store      store.Store
	emitter    Emitter
	thresholds Thresholds
	logger     *slog.Logger
	now        func() time.Time

	// serializes lookup+append so concurrent records cannot diff against a stale prior
	mu sync.Mutex
}

// New creates a Tracker. emitter may be nil.
func New(s store.Store, emitter Emitter, th Thresholds, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		store:      s,
		emitter:    emitter,
		thresholds: th,
		logger:     logger,
		now:        time.Now,
	}
}

// SetClock overrides the detection timestamp source.
func (t *Tracker) SetClock(now func() time.Time) { t.now = now }

// Record stores obs and returns the movement it produced, if any.
func (t *Tracker) Record(ctx context.Context, obs types.ScrapedProp) (*types.LineMovement, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := obs.Key()
	prior, err := store.LatestProp(ctx, t.store, key)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", key, err)
	}

	if prior != nil {
		switch {
		case obs.Timestamp.Before(prior.Timestamp):
			return nil, fmt.Errorf("%w: %s at %s", ErrOutOfOrder, key, obs.Timestamp.Format(time.RFC3339))
		case obs.Timestamp.Equal(prior.Timestamp) && obs.Line == prior.Line:
			return nil, fmt.Errorf("%w: %s at %s", ErrDuplicate, key, obs.Timestamp.Format(time.RFC3339))
		case obs.Timestamp.Equal(prior.Timestamp):
			return nil, fmt.Errorf("%w: %s at %s (%v vs stored %v)", ErrConflict, key,
				obs.Timestamp.Format(time.RFC3339), obs.Line, prior.Line)
		}
	}

	if err := store.AppendProp(ctx, t.store, obs); err != nil {
		return nil, fmt.Errorf("persist observation %s: %w", key, err)
	}

	if prior == nil {
		return nil, nil
	}

	delta := decimal.NewFromFloat(obs.Line).Sub(decimal.NewFromFloat(prior.Line))
	significance, ok := t.thresholds.Classify(delta)
	if !ok {
		return nil, nil
	}

	movement := delta.InexactFloat64()
	m := types.LineMovement{
		PropID:       obs.Player + "-" + obs.StatType,
		Player:       obs.Player,
		StatType:     obs.StatType,
		PreviousLine: prior.Line,
		CurrentLine:  obs.Line,
		Movement:     movement,
		Direction:    types.DirectionOf(movement),
		Source:       obs.Source,
		Significance: significance,
		DetectedAt:   t.now(),
	}

	if err := store.AppendMovement(ctx, t.store, m); err != nil {
		return nil, fmt.Errorf("persist movement %s: %w", key, err)
	}

	t.logger.Debug("tracker: movement detected",
		"key", key, "movement", delta.String(), "significance", significance)

	if significance == types.SignificanceMajor && t.emitter != nil {
		t.emitter.Emit(ctx, types.Alert{
			Kind:      types.AlertMajorMovement,
			Key:       key,
			Title:     fmt.Sprintf("%s %s moved %s (%s)", m.Player, m.StatType, delta.StringFixed(1), m.Direction),
			Movement:  &m,
			CreatedAt: m.DetectedAt,
		})
	}

	return &m, nil
}

// BatchResult summarizes RecordBatch.
type BatchResult struct {
	Recorded  int
	Skipped   int
	Movements []types.LineMovement
}

// RecordBatch records every observation in timestamp order. Failures are
// isolated per observation and returned joined; out-of-order, duplicate and
// conflicting observations count as skipped rather than failed.
func (t *Tracker) RecordBatch(ctx context.Context, props []types.ScrapedProp) (BatchResult, error) {
	ordered := make([]types.ScrapedProp, len(props))
	copy(ordered, props)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	var res BatchResult
	var errs []error
	for _, p := range ordered {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		m, err := t.Record(ctx, p)
		switch {
		case errors.Is(err, ErrOutOfOrder), errors.Is(err, ErrDuplicate), errors.Is(err, ErrConflict):
			res.Skipped++
			t.logger.Debug("tracker: observation skipped", "error", err)
		case err != nil:
			errs = append(errs, err)
			t.logger.Warn("tracker: record failed", "key", p.Key(), "error", err)
		default:
			res.Recorded++
			if m != nil {
				res.Movements = append(res.Movements, *m)
			}
		}
	}

	return res, errors.Join(errs...)
}
