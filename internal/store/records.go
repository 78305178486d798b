package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ibeckermayer/sharpwatch/internal/types"
)

// Collection names.
const (
	CollectionProps     = "prop_history"
	CollectionMovements = "line_movements"
	CollectionSentiment = "sentiment_data"
	CollectionSessions  = "scraping_sessions"
	CollectionTailing   = "tailing_snapshots"
)

// Latest decodes up to n of the newest documents for (collection, key) into T.
func Latest[T any](ctx context.Context, s Store, collection, key string, n int) ([]T, error) {
	docs, err := s.QueryLatest(ctx, collection, key, n)
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, len(docs))
	for _, d := range docs {
		var v T
		if err := d.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// LatestProp returns the most recent observation for a tracking key, or nil.
func LatestProp(ctx context.Context, s Store, key string) (*types.ScrapedProp, error) {
	props, err := Latest[types.ScrapedProp](ctx, s, CollectionProps, key, 1)
	if err != nil {
		return nil, err
	}
	if len(props) == 0 {
		return nil, nil
	}
	return &props[0], nil
}

// AppendProp stores one observation in the prop history.
func AppendProp(ctx context.Context, s Store, p types.ScrapedProp) error {
	_, err := s.Append(ctx, CollectionProps, p.Key(), p.Timestamp, p)
	return err
}

// AppendMovement stores a detected line movement.
func AppendMovement(ctx context.Context, s Store, m types.LineMovement) error {
	key := types.PropKey(m.Source, m.Player, m.StatType)
	_, err := s.Append(ctx, CollectionMovements, key, m.DetectedAt, m)
	return err
}

// RecentMovements returns the newest movements across all keys.
func RecentMovements(ctx context.Context, s Store, n int) ([]types.LineMovement, error) {
	return Latest[types.LineMovement](ctx, s, CollectionMovements, "", n)
}

// sentimentKey is the record ID, or the community for records without one.
func sentimentKey(r types.SentimentRecord) string {
	if r.ID != "" {
		return r.ID
	}
	return r.Community
}

// AppendSentiment stores a classified record keyed by its ID.
func AppendSentiment(ctx context.Context, s Store, r types.SentimentRecord) error {
	_, err := s.Append(ctx, CollectionSentiment, sentimentKey(r), r.Timestamp, r)
	return err
}

// AppendSentimentOnce stores r unless a record with the same ID is already
// stored. It reports whether r was written. Records without an ID are
// always written.
func AppendSentimentOnce(ctx context.Context, s Store, r types.SentimentRecord) (bool, error) {
	if r.ID != "" {
		docs, err := s.QueryLatest(ctx, CollectionSentiment, r.ID, 1)
		if err != nil {
			return false, err
		}
		if len(docs) > 0 {
			return false, nil
		}
	}
	if err := AppendSentiment(ctx, s, r); err != nil {
		return false, err
	}
	return true, nil
}

// RecentSentiment returns up to limit records observed at or after since.
func RecentSentiment(ctx context.Context, s Store, since time.Time, limit int) ([]types.SentimentRecord, error) {
	recs, err := Latest[types.SentimentRecord](ctx, s, CollectionSentiment, "", limit)
	if err != nil {
		return nil, err
	}

	// newest first, so the window ends at the first record older than since
	for i, r := range recs {
		if r.Timestamp.Before(since) {
			return recs[:i], nil
		}
	}
	return recs, nil
}

// AppendSession stores a finalized session record.
func AppendSession(ctx context.Context, s Store, sess *types.ScrapingSession) error {
	if sess == nil {
		return fmt.Errorf("append session: nil session")
	}
	_, err := s.Append(ctx, CollectionSessions, string(sess.Kind), sess.StartTime, sess)
	return err
}

// RecentSessions returns the newest n sessions of every kind.
func RecentSessions(ctx context.Context, s Store, n int) ([]types.ScrapingSession, error) {
	return Latest[types.ScrapingSession](ctx, s, CollectionSessions, "", n)
}

// TailingSnapshot is one full tailing aggregation pass.
type TailingSnapshot struct {
	GeneratedAt time.Time                `json:"generated_at"`
	Results     []types.TailingSentiment `json:"results"`
}

// AppendTailing stores the result of one aggregation pass.
func AppendTailing(ctx context.Context, s Store, at time.Time, results []types.TailingSentiment) error {
	_, err := s.Append(ctx, CollectionTailing, "snapshot", at, TailingSnapshot{GeneratedAt: at, Results: results})
	return err
}

// LatestTailing returns the most recent tailing snapshot, or nil.
func LatestTailing(ctx context.Context, s Store) (*TailingSnapshot, error) {
	snaps, err := Latest[TailingSnapshot](ctx, s, CollectionTailing, "snapshot", 1)
	if err != nil || len(snaps) == 0 {
		return nil, err
	}
	return &snaps[0], nil
}
