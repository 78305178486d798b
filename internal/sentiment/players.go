package sentiment

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// PlayerExtractor finds a player name in free text. Extraction is best
// effort and never fails; ok is false when nothing was found.
type PlayerExtractor interface {
	ExtractPlayer(text string) (name string, ok bool)
}

var namePart = regexp.MustCompile(`^[A-Z][a-z]+$`)

// placeNames are capitalized pairs that look like names but are not.
var placeNames = map[string]bool{
	"New York": true, "Los Angeles": true, "Las Vegas": true, "New England": true,
	"San Francisco": true, "Green Bay": true, "Kansas City": true, "Tampa Bay": true,
	"New Orleans": true, "San Diego": true, "San Antonio": true, "Golden State": true,
	"Oklahoma City": true, "Salt Lake": true, "Super Bowl": true,
}

// sentenceWords are capitalized words that commonly open a sentence.
var sentenceWords = map[string]bool{
	"The": true, "This": true, "That": true, "Take": true, "Smash": true,
	"Hammer": true, "Fade": true, "Lock": true, "Love": true, "Bet": true,
	"Over": true, "Under": true, "Tail": true, "Avoid": true, "Skip": true,
	"Easy": true, "Free": true, "Stay": true, "My": true, "Why": true,
	"Tonight": true, "Today": true, "Best": true, "Big": true,
}

// BigramExtractor returns the first pair of adjacent capitalized words
// that is not a known place and does not start with a sentence opener.
type BigramExtractor struct{}

func (BigramExtractor) ExtractPlayer(text string) (string, bool) {
	words := strings.Fields(text)
	for i := 0; i+1 < len(words); i++ {
		// punctuation after the first word ends a clause, so it must be bare
		first := strings.TrimLeftFunc(words[i], unicode.IsPunct)
		last := strings.TrimLeftFunc(words[i+1], unicode.IsPunct)
		last = strings.TrimRightFunc(strings.TrimSuffix(strings.TrimRightFunc(last, unicode.IsPunct), "'s"), unicode.IsPunct)

		if !namePart.MatchString(first) || !namePart.MatchString(last) {
			continue
		}
		if sentenceWords[first] {
			continue
		}
		name := first + " " + last
		if placeNames[name] {
			continue
		}
		return name, true
	}
	return "", false
}

// GazetteerExtractor matches against a list of known player names.
type GazetteerExtractor struct {
	names []string
	lower []string
}

// NewGazetteer builds an extractor over names. Longer names are tried first
// so "Josh Allen" is not shadowed by a shorter entry.
func NewGazetteer(names []string) *GazetteerExtractor {
	sorted := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			sorted = append(sorted, n)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })

	g := &GazetteerExtractor{names: sorted, lower: make([]string, len(sorted))}
	for i, n := range sorted {
		g.lower[i] = strings.ToLower(n)
	}
	return g
}

// ExtractPlayer returns the known name appearing earliest in text.
func (g *GazetteerExtractor) ExtractPlayer(text string) (string, bool) {
	lower := strings.ToLower(text)
	best, bestAt := "", -1
	for i, n := range g.lower {
		if at := strings.Index(lower, n); at >= 0 && (bestAt < 0 || at < bestAt) {
			best, bestAt = g.names[i], at
		}
	}
	return best, bestAt >= 0
}
