// Package notifier fans alerts out to the configured delivery channels.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ibeckermayer/sharpwatch/internal/config"
	"github.com/ibeckermayer/sharpwatch/internal/notifier/providers"
	"github.com/ibeckermayer/sharpwatch/internal/types"
)

// DeliveryTimeout bounds one alert's delivery across all senders.
const DeliveryTimeout = 15 * time.Second

// Sender delivers a single alert to one channel.
type Sender interface {
	Name() string
	Send(ctx context.Context, a types.Alert) error
}

// Notifier delivers alerts to every sender. Emit never blocks the caller.
type Notifier struct {
	senders []Sender
	dedup   *Deduper
	logger  *slog.Logger
	closers []func() error

	wg sync.WaitGroup
}

// New creates a notifier. dedup may be nil.
func New(senders []Sender, dedup *Deduper, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{senders: senders, dedup: dedup, logger: logger}
}

// NewFromConfig builds senders from configuration, followed by extra. A
// configured Redis URL enables both the stream sender and the dedup window.
func NewFromConfig(cfg config.AlertsConfig, logger *slog.Logger, extra ...Sender) (*Notifier, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var senders []Sender
	if cfg.Log {
		senders = append(senders, providers.NewLogSender(logger))
	}
	if cfg.SlackWebhook != "" {
		senders = append(senders, providers.NewSlackSender(cfg.SlackWebhook))
	}
	if cfg.Email.Enabled {
		email, err := providers.NewEmailSender(providers.NewSMTPSender(
			cfg.Email.SMTPHost,
			cfg.Email.SMTPPort,
			cfg.Email.SMTPUser,
			cfg.Email.SMTPPass,
			cfg.Email.FromAddr,
		), cfg.Email.ToAddr)
		if err != nil {
			return nil, err
		}
		senders = append(senders, email)
	}

	var dedup *Deduper
	var closers []func() error
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		client := redis.NewClient(opts)
		closers = append(closers, client.Close)

		senders = append(senders, providers.NewStreamSender(client, cfg.RedisStream))
		if cfg.DedupTTLMinutes > 0 {
			dedup = NewDeduper(client, time.Duration(cfg.DedupTTLMinutes)*time.Minute)
		}
	}

	senders = append(senders, extra...)
	n := New(senders, dedup, logger)
	n.closers = closers
	return n, nil
}

// Senders returns the configured sender names.
func (n *Notifier) Senders() []string {
	names := make([]string, len(n.senders))
	for i, s := range n.senders {
		names[i] = s.Name()
	}
	return names
}

// Emit delivers a asynchronously. Failures are logged, never returned.
func (n *Notifier) Emit(ctx context.Context, a types.Alert) {
	if len(n.senders) == 0 {
		return
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DeliveryTimeout)
		defer cancel()

		if err := n.Deliver(ctx, a); err != nil {
			n.logger.Warn("notifier: delivery failed", "kind", a.Kind, "key", a.Key, "error", err)
		}
	}()
}

// Deliver sends a to every sender and returns the joined errors. A
// duplicate inside the dedup window is dropped without error.
func (n *Notifier) Deliver(ctx context.Context, a types.Alert) error {
	if n.dedup != nil {
		ok, err := n.dedup.ShouldAlert(ctx, a)
		if err != nil {
			// dedup outage must not swallow alerts
			n.logger.Warn("notifier: dedup check failed", "error", err)
		} else if !ok {
			n.logger.Debug("notifier: duplicate alert suppressed", "key", a.Key)
			return nil
		}
	}

	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, a); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Wait blocks until in-flight deliveries finish.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// Close waits for deliveries and releases connections.
func (n *Notifier) Close() error {
	n.Wait()
	var errs []error
	for _, c := range n.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}
