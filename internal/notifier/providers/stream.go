package providers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ibeckermayer/sharpwatch/internal/types"
)

// StreamSender publishes alerts to a Redis stream for downstream consumers.
type StreamSender struct {
	client *redis.Client
	stream string
}

func NewStreamSender(client *redis.Client, stream string) *StreamSender {
	if stream == "" {
		stream = "sharpwatch.alerts"
	}
	return &StreamSender{client: client, stream: stream}
}

func (s *StreamSender) Name() string { return "redis-stream" }

// Send appends the alert JSON under the "alert" field.
func (s *StreamSender) Send(ctx context.Context, a types.Alert) error {
	alertJSON, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	_, err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"kind":  string(a.Kind),
			"alert": string(alertJSON),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to stream %s: %w", s.stream, err)
	}
	return nil
}
