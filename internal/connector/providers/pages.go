package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ibeckermayer/sharpwatch/internal/browser"
	"github.com/ibeckermayer/sharpwatch/internal/config"
	"github.com/ibeckermayer/sharpwatch/internal/connector"
	"github.com/ibeckermayer/sharpwatch/internal/types"
)

// Selectors locate prop fields on a rendered pick'em board. The boards
// change their DOM often; update these when extraction rate drops.
type Selectors struct {
	Card   string
	Player string
	Stat   string
	Line   string
	Team   string
}

var (
	PrizePicksSelectors = Selectors{
		Card:   `[data-testid="pick-card"], .pick-card, .prop-card`,
		Player: `.player-name, .name, [data-testid="player-name"]`,
		Stat:   `.stat-type, .category, [data-testid="stat-type"]`,
		Line:   `.line, .projection, [data-testid="line"]`,
		Team:   `.team, [data-testid="team"]`,
	}
	UnderdogSelectors = Selectors{
		Card:   `.pick-card, [data-testid="pick"], .prop-selection`,
		Player: `.player-name, .athlete-name`,
		Stat:   `.stat-type, .pick-type`,
		Line:   `.line, .target`,
		Team:   `.team-name, .team`,
	}
)

// Page scrapes a browser-rendered pick'em board.
type Page struct {
	source    types.Source
	cfg       config.PageConfig
	selectors Selectors
	renderer  browser.Renderer
	now       func() time.Time
}

// NewPage creates a page connector for source.
func NewPage(source types.Source, cfg config.PageConfig, sel Selectors, r browser.Renderer) *Page {
	return &Page{source: source, cfg: cfg, selectors: sel, renderer: r, now: time.Now}
}

// NewPrizePicks creates the PrizePicks board connector.
func NewPrizePicks(cfg config.PageConfig, r browser.Renderer) *Page {
	return NewPage(types.SourcePrizePicks, cfg, PrizePicksSelectors, r)
}

// NewUnderdog creates the Underdog board connector.
func NewUnderdog(cfg config.PageConfig, r browser.Renderer) *Page {
	return NewPage(types.SourceUnderdog, cfg, UnderdogSelectors, r)
}

func (p *Page) Name() string    { return string(p.source) }
func (p *Page) Available() bool { return p.cfg.Enabled && p.cfg.URL != "" && p.renderer != nil }

// FetchProps renders the board and extracts one prop per card.
func (p *Page) FetchProps(ctx context.Context) (connector.PropBatch, error) {
	html, err := p.renderer.Render(ctx, p.cfg.URL, p.selectors.Card)
	if err != nil {
		return connector.PropBatch{}, err
	}
	return p.parse(html)
}

func (p *Page) parse(html string) (connector.PropBatch, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return connector.PropBatch{}, fmt.Errorf("parse %s page: %w", p.source, err)
	}

	now := p.now()
	cards := doc.Find(p.selectors.Card)
	batch := connector.PropBatch{Found: cards.Length()}

	cards.Each(func(_ int, card *goquery.Selection) {
		player := firstText(card, p.selectors.Player)
		line := connector.ParseLine(firstText(card, p.selectors.Line))
		if player == "" || line <= 0 {
			return
		}

		stat := firstText(card, p.selectors.Stat)
		if stat == "" {
			stat = "Unknown Stat"
		}
		team := firstText(card, p.selectors.Team)
		if team == "" {
			team = "Unknown Team"
		}

		batch.Props = append(batch.Props, types.ScrapedProp{
			Player:    player,
			Team:      team,
			StatType:  stat,
			Line:      line,
			Source:    p.source,
			Status:    types.StatusActive,
			Timestamp: now,
		})
	})
	return batch, nil
}

func firstText(s *goquery.Selection, selector string) string {
	return strings.Join(strings.Fields(s.Find(selector).First().Text()), " ")
}
