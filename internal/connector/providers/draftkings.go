// Package providers implements the prop and sentiment source connectors.
package providers

import (
	"context"
	"strings"
	"time"

	"github.com/ibeckermayer/sharpwatch/internal/config"
	"github.com/ibeckermayer/sharpwatch/internal/connector"
	"github.com/ibeckermayer/sharpwatch/internal/types"
)

// DraftKings reads player props from the DraftKings sportsbook JSON API.
type DraftKings struct {
	cfg    config.DraftKingsConfig
	client *connector.HTTPClient
	now    func() time.Time
}

// NewDraftKings creates the connector.
func NewDraftKings(cfg config.DraftKingsConfig, client *connector.HTTPClient) *DraftKings {
	return &DraftKings{cfg: cfg, client: client, now: time.Now}
}

func (d *DraftKings) Name() string    { return string(types.SourceDraftKings) }
func (d *DraftKings) Available() bool { return d.cfg.Enabled && d.cfg.URL != "" }

type dkResponse struct {
	EventGroup struct {
		Events []dkEvent `json:"events"`
	} `json:"eventGroup"`
}

type dkEvent struct {
	Name          string `json:"name"`
	TeamName1     string `json:"teamName1"`
	TeamName2     string `json:"teamName2"`
	DisplayGroups []struct {
		Markets []struct {
			Name     string `json:"name"`
			Outcomes []struct {
				Participant     string   `json:"participant"`
				Line            *float64 `json:"line"`
				OddsAmerican    string   `json:"oddsAmerican"`
				PercentOfSpread *float64 `json:"percentOfSpread"`
			} `json:"outcomes"`
		} `json:"markets"`
	} `json:"displayGroups"`
}

// FetchProps walks events → display groups → markets → outcomes. Outcomes
// without a participant or line are skipped.
func (d *DraftKings) FetchProps(ctx context.Context) (connector.PropBatch, error) {
	var resp dkResponse
	if err := d.client.GetJSON(ctx, d.cfg.URL, nil, &resp); err != nil {
		return connector.PropBatch{}, err
	}

	now := d.now()
	events := resp.EventGroup.Events
	batch := connector.PropBatch{Found: len(events)}

	for _, ev := range events {
		team := ev.TeamName1
		if team == "" {
			team = "Unknown Team"
		}
		for _, g := range ev.DisplayGroups {
			for _, m := range g.Markets {
				stat := strings.TrimSpace(m.Name)
				if stat == "" {
					stat = "Unknown Stat"
				}
				for _, o := range m.Outcomes {
					if o.Participant == "" || o.Line == nil || *o.Line == 0 {
						continue
					}

					p := types.ScrapedProp{
						Player:        strings.TrimSpace(o.Participant),
						Team:          team,
						StatType:      stat,
						Line:          *o.Line,
						Source:        types.SourceDraftKings,
						Status:        types.StatusSuspended,
						Timestamp:     now,
						GameInfo:      ev.Name,
						PublicPercent: o.PercentOfSpread,
					}
					if odds, ok := connector.ParseOdds(o.OddsAmerican); ok {
						p.Odds = &odds
						p.Status = types.StatusActive
					}
					batch.Props = append(batch.Props, p)
				}
			}
		}
	}
	return batch, nil
}
