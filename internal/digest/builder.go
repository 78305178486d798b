// Package digest renders alerts into email-ready HTML and plain text.
package digest

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/ibeckermayer/sharpwatch/internal/types"
)

// Builder creates alert digests
type Builder struct {
	maxAlerts int
	template  *template.Template
}

// New creates a new digest builder
func New(maxAlerts int) (*Builder, error) {
	tmpl, err := template.New("digest").Parse(defaultTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	return &Builder{
		maxAlerts: maxAlerts,
		template:  tmpl,
	}, nil
}

// Digest represents a compiled digest ready for sending
type Digest struct {
	Subject   string
	HTMLBody  string
	PlainBody string
	Keys      []string
	CreatedAt time.Time
}

type digestData struct {
	Title    string
	Date     string
	Alerts   []alertData
	Included int
	Total    int
}

type alertData struct {
	Kind    string
	Title   string
	Detail  string
	Age     string
	Warning bool
}

// Build creates a digest from alerts, newest first. now anchors the
// relative ages shown per alert.
func (b *Builder) Build(alerts []types.Alert, now time.Time) (*Digest, error) {
	if len(alerts) == 0 {
		return nil, fmt.Errorf("no alerts to include in digest")
	}

	sorted := make([]types.Alert, len(alerts))
	copy(sorted, alerts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	if b.maxAlerts > 0 && len(sorted) > b.maxAlerts {
		sorted = sorted[:b.maxAlerts]
	}

	data := digestData{
		Title:    "Sharpwatch Alerts",
		Date:     now.Format("Monday, January 2 3:04 PM"),
		Alerts:   make([]alertData, len(sorted)),
		Included: len(sorted),
		Total:    len(alerts),
	}

	keys := make([]string, len(sorted))
	for i, a := range sorted {
		data.Alerts[i] = alertData{
			Kind:    kindLabel(a.Kind),
			Title:   a.Title,
			Detail:  Detail(a),
			Age:     humanize.RelTime(a.CreatedAt, now, "ago", "from now"),
			Warning: a.Kind == types.AlertOvertailed,
		}
		keys[i] = a.Key
	}

	var htmlBuf bytes.Buffer
	if err := b.template.Execute(&htmlBuf, data); err != nil {
		return nil, fmt.Errorf("failed to render template: %w", err)
	}

	subject := fmt.Sprintf("Sharpwatch: %d alerts, %s", len(alerts), now.Format("Jan 2"))
	if len(alerts) == 1 {
		subject = "Sharpwatch: " + alerts[0].Title
	}

	return &Digest{
		Subject:   subject,
		HTMLBody:  htmlBuf.String(),
		PlainBody: buildPlainText(data),
		Keys:      keys,
		CreatedAt: now,
	}, nil
}

func kindLabel(k types.AlertKind) string {
	switch k {
	case types.AlertMajorMovement:
		return "Line movement"
	case types.AlertOvertailed:
		return "Overtailed"
	default:
		return string(k)
	}
}

// Detail is a one-line description of the alert payload.
func Detail(a types.Alert) string {
	switch {
	case a.Movement != nil:
		m := a.Movement
		return fmt.Sprintf("%s: %s → %s (%+.1f, %s)",
			m.Source,
			humanize.FormatFloat("#,###.#", m.PreviousLine),
			humanize.FormatFloat("#,###.#", m.CurrentLine),
			m.Movement, m.Significance)
	case a.Tailing != nil:
		t := a.Tailing
		return fmt.Sprintf("tail rate %.0f%% across %d mentions from %s",
			t.TailRate, t.Mentions, strings.Join(t.Communities, ", "))
	default:
		return ""
	}
}

func buildPlainText(data digestData) string {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("%s\n%s\n\n", data.Title, data.Date))

	for i, a := range data.Alerts {
		buf.WriteString(fmt.Sprintf("%d. [%s] %s\n", i+1, a.Kind, a.Title))
		if a.Detail != "" {
			buf.WriteString(fmt.Sprintf("   %s (%s)\n\n", a.Detail, a.Age))
		}
	}
	if data.Included < data.Total {
		buf.WriteString(fmt.Sprintf("... and %d more\n", data.Total-data.Included))
	}

	return buf.String()
}

const defaultTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; background: #f4f6f8; }
        .container { background: white; border-radius: 8px; padding: 20px; }
        h1 { color: #0b6e4f; margin-bottom: 5px; }
        .date { color: #666; margin-bottom: 20px; }
        .alert { border-left: 4px solid #0b6e4f; padding: 10px 12px; margin: 12px 0; }
        .alert.warning { border-color: #d9822b; }
        .kind { font-size: 12px; text-transform: uppercase; color: #666; }
        .title { font-weight: bold; color: #222; margin: 4px 0; }
        .detail { color: #444; font-size: 14px; }
        .age { color: #999; font-size: 12px; }
        .footer { margin-top: 20px; padding-top: 15px; border-top: 1px solid #eee; color: #999; font-size: 12px; text-align: center; }
    </style>
</head>
<body>
    <div class="container">
        <h1>{{.Title}}</h1>
        <div class="date">{{.Date}}</div>

        {{range .Alerts}}
        <div class="alert{{if .Warning}} warning{{end}}">
            <div class="kind">{{.Kind}}</div>
            <div class="title">{{.Title}}</div>
            {{if .Detail}}<div class="detail">{{.Detail}}</div>{{end}}
            <div class="age">{{.Age}}</div>
        </div>
        {{end}}

        <div class="footer">
            {{.Included}} of {{.Total}} alerts · sharpwatch
        </div>
    </div>
</body>
</html>`
