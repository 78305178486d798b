// Package tailing measures how hard the public is piling onto a pick.
package tailing

import (
	"sort"

	"github.com/samber/lo"

	"github.com/ibeckermayer/sharpwatch/internal/config"
	"github.com/ibeckermayer/sharpwatch/internal/types"
)

// Options control classification and the optional rebalancing pass.
type Options struct {
	OvertailedAbove float64
	ContrarianBelow float64
	MentionBoost    float64
	MaxTailRate     float64
	Rebalance       bool
}

// OptionsFromConfig converts the tailing section.
func OptionsFromConfig(cfg config.TailingConfig) Options {
	return Options{
		OvertailedAbove: cfg.OvertailedAbove,
		ContrarianBelow: cfg.ContrarianBelow,
		MentionBoost:    cfg.MentionBoost,
		MaxTailRate:     cfg.MaxTailRate,
		Rebalance:       cfg.Rebalance,
	}
}

// Analyzer groups sentiment records by (player, prop type).
type Analyzer struct {
	opts      Options
	estimator ConsensusEstimator
}

// New returns an Analyzer. A nil estimator uses EngagementBands without jitter.
func New(opts Options, estimator ConsensusEstimator) *Analyzer {
	if estimator == nil {
		estimator = EngagementBands{}
	}
	return &Analyzer{opts: opts, estimator: estimator}
}

// Key builds the grouping key for a player and prop type.
func Key(player, propType string) string {
	return player + "_" + propType
}

type group struct {
	result  *types.TailingSentiment
	authors map[string]struct{}
	labels  map[types.Sentiment]int
}

// Aggregate builds one TailingSentiment per key from a full window of
// records. Records without a player, and repeats of an ID already counted,
// are ignored. Output order follows the
// first mention of each key.
func (a *Analyzer) Aggregate(records []types.SentimentRecord) []types.TailingSentiment {
	groups := map[string]*group{}
	ids := map[string]struct{}{}
	var order []string

	for _, rec := range records {
		if rec.Player == "" {
			continue
		}
		if rec.ID != "" {
			if _, dup := ids[rec.ID]; dup {
				continue
			}
			ids[rec.ID] = struct{}{}
		}
		propType := rec.PropType
		if propType == "" {
			propType = "Props"
		}
		key := Key(rec.Player, propType)

		g, ok := groups[key]
		if !ok {
			g = &group{
				result: &types.TailingSentiment{
					Key:      key,
					Player:   rec.Player,
					PropType: propType,
					TailRate: a.estimator.Estimate(rec),
				},
				authors: map[string]struct{}{},
				labels:  map[types.Sentiment]int{},
			}
			groups[key] = g
			order = append(order, key)
		} else {
			g.result.TailRate = min(g.result.TailRate+a.opts.MentionBoost, a.opts.MaxTailRate)
		}

		g.result.Mentions++
		if rec.Author != "" {
			g.authors[rec.Author] = struct{}{}
		}
		if rec.Sentiment != "" {
			g.labels[rec.Sentiment]++
		}
		if rec.Community != "" {
			g.result.Communities = append(g.result.Communities, rec.Community)
		}
	}

	results := make([]types.TailingSentiment, 0, len(order))
	for _, key := range order {
		g := groups[key]
		r := g.result
		r.InfluencerCount = len(g.authors)
		r.Sentiment = majority(g.labels)
		r.Communities = lo.Uniq(r.Communities)
		if r.Communities == nil {
			r.Communities = []string{}
		}
		r.Risk = a.Classify(r.TailRate)
		results = append(results, *r)
	}

	if a.opts.Rebalance {
		a.rebalance(results)
	}
	return results
}

// majority returns the label with the strictly highest count, else neutral.
func majority(labels map[types.Sentiment]int) types.Sentiment {
	bull, bear, neutral := labels[types.Bullish], labels[types.Bearish], labels[types.Neutral]
	switch {
	case bull > bear && bull > neutral:
		return types.Bullish
	case bear > bull && bear > neutral:
		return types.Bearish
	default:
		return types.Neutral
	}
}

// Classify maps a tail rate to a risk level.
func (a *Analyzer) Classify(rate float64) types.RiskLevel {
	switch {
	case rate > a.opts.OvertailedAbove:
		return types.RiskOvertailed
	case rate < a.opts.ContrarianBelow:
		return types.RiskContrarian
	default:
		return types.RiskConsensus
	}
}

// promotionMargin moves a promoted rate strictly past its threshold so
// Classify agrees with the promoted risk.
const promotionMargin = 1.0

// rebalance guarantees an overtailed entry when any exist and a contrarian
// entry when more than one exists. Promoted entries are marked Rebalanced.
func (a *Analyzer) rebalance(results []types.TailingSentiment) {
	if len(results) == 0 {
		return
	}

	idx := lo.Range(len(results))
	highest := lo.MaxBy(idx, func(i, j int) bool { return results[i].TailRate > results[j].TailRate })

	if !lo.ContainsBy(results, func(r types.TailingSentiment) bool { return r.Risk == types.RiskOvertailed }) {
		r := &results[highest]
		r.Risk = types.RiskOvertailed
		r.TailRate = max(r.TailRate, min(a.opts.OvertailedAbove+promotionMargin, a.opts.MaxTailRate))
		r.Rebalanced = true
	}

	if len(results) < 2 || lo.ContainsBy(results, func(r types.TailingSentiment) bool { return r.Risk == types.RiskContrarian }) {
		return
	}

	others := lo.Without(idx, highest)
	lowest := lo.MinBy(others, func(i, j int) bool { return results[i].TailRate < results[j].TailRate })
	r := &results[lowest]
	r.Risk = types.RiskContrarian
	r.TailRate = min(r.TailRate, max(a.opts.ContrarianBelow-promotionMargin, 0))
	r.Rebalanced = true
}

// Top returns the n entries with the highest tail rate.
func Top(results []types.TailingSentiment, n int) []types.TailingSentiment {
	sorted := make([]types.TailingSentiment, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].TailRate > sorted[j].TailRate })
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
