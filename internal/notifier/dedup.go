package notifier

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ibeckermayer/sharpwatch/internal/types"
)

// Deduper suppresses repeats of the same alert within a TTL using Redis.
type Deduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewDeduper(client *redis.Client, ttl time.Duration) *Deduper {
	return &Deduper{client: client, ttl: ttl}
}

// ShouldAlert reports whether a has not been seen within the TTL, and
// records it if so.
func (d *Deduper) ShouldAlert(ctx context.Context, a types.Alert) (bool, error) {
	ok, err := d.client.SetNX(ctx, DedupKey(a), "1", d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to set dedup key: %w", err)
	}
	return ok, nil
}

// Clear removes the dedup entry for a.
func (d *Deduper) Clear(ctx context.Context, a types.Alert) error {
	return d.client.Del(ctx, DedupKey(a)).Err()
}

// DedupKey identifies an alert. Movements include both lines, so a further
// move on the same prop is a new alert.
//
// Format: sharpwatch:alert:{kind}:{hash}
func DedupKey(a types.Alert) string {
	h := xxhash.New()
	h.WriteString(a.Key)
	if m := a.Movement; m != nil {
		h.WriteString("|" + strconv.FormatFloat(m.PreviousLine, 'f', -1, 64))
		h.WriteString("|" + strconv.FormatFloat(m.CurrentLine, 'f', -1, 64))
	}
	return fmt.Sprintf("sharpwatch:alert:%s:%016x", a.Kind, h.Sum64())
}
