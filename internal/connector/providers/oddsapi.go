package providers

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ibeckermayer/sharpwatch/internal/config"
	"github.com/ibeckermayer/sharpwatch/internal/connector"
	"github.com/ibeckermayer/sharpwatch/internal/types"
)

// bookmakerSources maps The Odds API bookmaker keys to Sources.
var bookmakerSources = map[string]types.Source{
	"draftkings":     types.SourceDraftKings,
	"fanduel":        types.SourceFanDuel,
	"betmgm":         types.SourceBetMGM,
	"williamhill_us": types.SourceCaesars,
	"caesars":        types.SourceCaesars,
}

var marketStats = map[string]string{
	"player_pass_yds":         "Passing Yards",
	"player_pass_tds":         "Passing TDs",
	"player_rush_yds":         "Rushing Yards",
	"player_reception_yds":    "Receiving Yards",
	"player_receptions":       "Receptions",
	"player_points":           "Points",
	"player_rebounds":         "Rebounds",
	"player_assists":          "Assists",
	"player_threes":           "Threes",
	"batter_hits":             "Hits",
	"batter_total_bases":      "Total Bases",
	"pitcher_strikeouts":      "Strikeouts",
	"player_anytime_td":       "Anytime TD",
	"player_rush_attempts":    "Rushing Attempts",
	"player_pass_attempts":    "Passing Attempts",
	"player_pass_completions": "Completions",
}

// StatName returns the display stat name for an Odds API market key.
func StatName(market string) string {
	if s, ok := marketStats[market]; ok {
		return s
	}
	words := strings.Fields(strings.ReplaceAll(strings.TrimPrefix(market, "player_"), "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// OddsAPI reads player prop markets from The Odds API, one request per
// event.
type OddsAPI struct {
	cfg    config.OddsAPIConfig
	client *connector.HTTPClient
	pacer  *connector.Pacer
	now    func() time.Time
}

// NewOddsAPI creates the connector. pacer spaces per-event requests.
func NewOddsAPI(cfg config.OddsAPIConfig, client *connector.HTTPClient, pacer *connector.Pacer) *OddsAPI {
	return &OddsAPI{cfg: cfg, client: client, pacer: pacer, now: time.Now}
}

func (o *OddsAPI) Name() string { return "OddsAPI" }

func (o *OddsAPI) Available() bool {
	return o.cfg.Enabled && o.cfg.APIKey != "" && len(o.cfg.Sports) > 0
}

type oddsEvent struct {
	ID           string    `json:"id"`
	SportKey     string    `json:"sport_key"`
	CommenceTime time.Time `json:"commence_time"`
	HomeTeam     string    `json:"home_team"`
	AwayTeam     string    `json:"away_team"`
}

type oddsEventOdds struct {
	oddsEvent
	Bookmakers []struct {
		Key     string `json:"key"`
		Markets []struct {
			Key      string `json:"key"`
			Outcomes []struct {
				Name        string   `json:"name"`
				Description string   `json:"description"`
				Price       int      `json:"price"`
				Point       *float64 `json:"point"`
			} `json:"outcomes"`
		} `json:"markets"`
	} `json:"bookmakers"`
}

// FetchProps lists events per sport then fetches prop odds for up to
// MaxEvents of them. Found counts events listed.
func (o *OddsAPI) FetchProps(ctx context.Context) (connector.PropBatch, error) {
	var batch connector.PropBatch
	now := o.now()

	for _, sport := range o.cfg.Sports {
		if err := o.pacer.Wait(ctx); err != nil {
			return batch, err
		}

		var events []oddsEvent
		eventsURL := fmt.Sprintf("%s/sports/%s/events?%s", o.cfg.BaseURL, url.PathEscape(sport),
			url.Values{"apiKey": {o.cfg.APIKey}}.Encode())
		if err := o.client.GetJSON(ctx, eventsURL, nil, &events); err != nil {
			return batch, fmt.Errorf("list %s events: %w", sport, err)
		}
		batch.Found += len(events)

		if o.cfg.MaxEvents > 0 && len(events) > o.cfg.MaxEvents {
			events = events[:o.cfg.MaxEvents]
		}

		for _, ev := range events {
			if err := o.pacer.Wait(ctx); err != nil {
				return batch, err
			}

			props, err := o.fetchEvent(ctx, sport, ev, now)
			if err != nil {
				// one bad event should not drop the rest of the slate
				continue
			}
			batch.Props = append(batch.Props, props...)
		}
	}
	return batch, nil
}

func (o *OddsAPI) fetchEvent(ctx context.Context, sport string, ev oddsEvent, now time.Time) ([]types.ScrapedProp, error) {
	q := url.Values{
		"apiKey":     {o.cfg.APIKey},
		"regions":    {"us"},
		"markets":    {strings.Join(o.cfg.Markets, ",")},
		"oddsFormat": {"american"},
	}
	if len(o.cfg.Bookmakers) > 0 {
		q.Set("bookmakers", strings.Join(o.cfg.Bookmakers, ","))
	}
	u := fmt.Sprintf("%s/sports/%s/events/%s/odds?%s", o.cfg.BaseURL, url.PathEscape(sport), url.PathEscape(ev.ID), q.Encode())

	var odds oddsEventOdds
	if err := o.client.GetJSON(ctx, u, nil, &odds); err != nil {
		return nil, err
	}

	game := fmt.Sprintf("%s @ %s", ev.AwayTeam, ev.HomeTeam)
	var props []types.ScrapedProp
	// two bookmaker keys can map to one Source; the first listed wins
	seen := map[string]struct{}{}
	for _, bm := range odds.Bookmakers {
		source, ok := bookmakerSources[bm.Key]
		if !ok {
			continue
		}
		for _, m := range bm.Markets {
			for _, out := range m.Outcomes {
				// the Under mirrors the Over's point
				if !strings.EqualFold(out.Name, "Over") || out.Description == "" || out.Point == nil {
					continue
				}
				stat := StatName(m.Key)
				key := types.PropKey(source, out.Description, stat)
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}

				price := out.Price
				props = append(props, types.ScrapedProp{
					Player:    out.Description,
					StatType:  stat,
					Line:      *out.Point,
					Source:    source,
					Status:    types.StatusActive,
					Timestamp: now,
					GameInfo:  game,
					Odds:      &price,
				})
			}
		}
	}
	return props, nil
}
