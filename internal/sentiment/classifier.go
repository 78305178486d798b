// Package sentiment classifies betting chatter with fixed keyword lists.
package sentiment

import (
	"strings"

	"github.com/ibeckermayer/sharpwatch/internal/types"
)

var (
	DefaultBullish = []string{"lock", "easy", "smash", "bet", "confident", "love", "free money"}
	DefaultBearish = []string{"fade", "avoid", "trap", "stay away", "risky", "skip"}
	DefaultBetting = []string{
		"bet", "prop", "line", "odds", "over", "under", "points", "yards",
		"assists", "rebounds", "strikeouts", "sportsbook", "parlay", "pick",
		"lock", "hammer", "fade", "tail", "value", "sharp", "public", "trap",
	}
)

// Keywords configures a Classifier. Empty lists fall back to the defaults.
type Keywords struct {
	Bullish []string
	Bearish []string
	Betting []string
}

// Result of classifying one text.
type Result struct {
	Sentiment  types.Sentiment `json:"sentiment"`
	Confidence int             `json:"confidence"`
	Bullish    int             `json:"bullish_count"`
	Bearish    int             `json:"bearish_count"`
}

// Classifier is stateless after construction and safe for concurrent use.
type Classifier struct {
	bullish []string
	bearish []string
	betting []string
}

func NewClassifier(kw Keywords) *Classifier {
	return &Classifier{
		bullish: lowerOr(kw.Bullish, DefaultBullish),
		bearish: lowerOr(kw.Bearish, DefaultBearish),
		betting: lowerOr(kw.Betting, DefaultBetting),
	}
}

func lowerOr(list, fallback []string) []string {
	if len(list) == 0 {
		list = fallback
	}
	out := make([]string, 0, len(list))
	for _, k := range list {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// Classify counts keyword occurrences on each side. The larger side wins
// with confidence min(count*20, 90); a tie is neutral at 50.
func (c *Classifier) Classify(text string) Result {
	lower := strings.ToLower(text)
	r := Result{
		Bullish: countAll(lower, c.bullish),
		Bearish: countAll(lower, c.bearish),
	}

	switch {
	case r.Bullish > r.Bearish:
		r.Sentiment, r.Confidence = types.Bullish, confidence(r.Bullish)
	case r.Bearish > r.Bullish:
		r.Sentiment, r.Confidence = types.Bearish, confidence(r.Bearish)
	default:
		r.Sentiment, r.Confidence = types.Neutral, 50
	}
	return r
}

func countAll(text string, keywords []string) int {
	n := 0
	for _, k := range keywords {
		n += strings.Count(text, k)
	}
	return n
}

func confidence(n int) int {
	return min(n*20, 90)
}

// IsBettingRelated reports whether text mentions any betting vocabulary.
func (c *Classifier) IsBettingRelated(text string) bool {
	lower := strings.ToLower(text)
	for _, k := range c.betting {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

var tagRules = []struct {
	tag     string
	markers []string
}{
	{"over", []string{"over"}},
	{"under", []string{"under"}},
	{"parlay", []string{"parlay"}},
	{"lock", []string{"lock"}},
	{"fade", []string{"fade"}},
	{"sharp-money", []string{"sharp"}},
	{"reverse-line-movement", []string{"reverse line", "rlm"}},
}

// ExtractTags returns the betting tags present in text, in a fixed order.
func ExtractTags(text string) []string {
	lower := strings.ToLower(text)
	tags := []string{}
	for _, rule := range tagRules {
		for _, m := range rule.markers {
			if strings.Contains(lower, m) {
				tags = append(tags, rule.tag)
				break
			}
		}
	}
	return tags
}

var betTypes = []string{
	"passing yards", "rushing yards", "receiving yards", "receptions",
	"points", "rebounds", "assists", "hits", "strikeouts", "home runs",
	"touchdowns", "field goals", "sacks", "interceptions",
}

// ExtractBetType returns the first known prop category mentioned, title
// cased, "Props" for a bare over/under mention, or "".
func ExtractBetType(text string) string {
	lower := strings.ToLower(text)
	for _, bt := range betTypes {
		if strings.Contains(lower, bt) {
			return titleCase(bt)
		}
	}
	if strings.Contains(lower, "over") || strings.Contains(lower, "under") {
		return "Props"
	}
	return ""
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
