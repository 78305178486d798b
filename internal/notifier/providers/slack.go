package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ibeckermayer/sharpwatch/internal/digest"
	"github.com/ibeckermayer/sharpwatch/internal/types"
)

// SlackSender posts alerts to a Slack incoming webhook.
type SlackSender struct {
	webhookURL string
	httpClient *http.Client
}

func NewSlackSender(webhookURL string) *SlackSender {
	return &SlackSender{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *SlackSender) Name() string { return "slack" }

func (s *SlackSender) Send(ctx context.Context, a types.Alert) error {
	payload, err := json.Marshal(map[string]string{"text": FormatSlack(a)})
	if err != nil {
		return fmt.Errorf("failed to marshal Slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send Slack alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// FormatSlack renders an alert as Slack mrkdwn.
func FormatSlack(a types.Alert) string {
	var sb strings.Builder

	emoji := ":chart_with_upwards_trend:"
	switch {
	case a.Kind == types.AlertOvertailed:
		emoji = ":warning:"
	case a.Movement != nil && a.Movement.Direction == types.DirectionDown:
		emoji = ":chart_with_downwards_trend:"
	}
	fmt.Fprintf(&sb, "%s *%s*\n", emoji, a.Title)
	if d := digest.Detail(a); d != "" {
		fmt.Fprintf(&sb, "%s\n", d)
	}
	fmt.Fprintf(&sb, "_Detected: %s_", a.CreatedAt.Format("15:04:05"))
	return sb.String()
}
