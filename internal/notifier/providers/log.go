package providers

import (
	"context"
	"log/slog"

	"github.com/ibeckermayer/sharpwatch/internal/digest"
	"github.com/ibeckermayer/sharpwatch/internal/types"
)

// LogSender writes alerts to the structured log.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (l *LogSender) Name() string { return "log" }

func (l *LogSender) Send(ctx context.Context, a types.Alert) error {
	l.logger.LogAttrs(ctx, slog.LevelWarn, "alert: "+a.Title,
		slog.String("kind", string(a.Kind)),
		slog.String("key", a.Key),
		slog.String("detail", digest.Detail(a)),
	)
	return nil
}
