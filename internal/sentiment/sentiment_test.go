package sentiment

import (
	"reflect"
	"testing"

	"github.com/ibeckermayer/sharpwatch/internal/types"
)

func TestClassify(t *testing.T) {
	c := NewClassifier(Keywords{})

	tests := []struct {
		text       string
		sentiment  types.Sentiment
		confidence int
	}{
		{"This is a lock, smash the over", types.Bullish, 40},
		{"Fade this, total trap. Avoid.", types.Bearish, 60},
		{"LOCK LOCK LOCK LOCK LOCK LOCK", types.Bullish, 90},
		{"lock it in but the line is a trap", types.Neutral, 50},
		{"nothing to see here", types.Neutral, 50},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := c.Classify(tt.text)
			if got.Sentiment != tt.sentiment || got.Confidence != tt.confidence {
				t.Errorf("Classify = %s/%d, want %s/%d", got.Sentiment, got.Confidence, tt.sentiment, tt.confidence)
			}
			if again := c.Classify(tt.text); again != got {
				t.Errorf("classification not deterministic: %+v vs %+v", got, again)
			}
		})
	}
}

func TestClassifyCustomKeywords(t *testing.T) {
	c := NewClassifier(Keywords{Bullish: []string{"Hammer"}, Bearish: []string{"pass"}})
	if got := c.Classify("hammer it"); got.Sentiment != types.Bullish || got.Confidence != 20 {
		t.Errorf("got %+v", got)
	}
}

func TestIsBettingRelated(t *testing.T) {
	c := NewClassifier(Keywords{})
	if !c.IsBettingRelated("Taking the OVER tonight") {
		t.Error("over should qualify")
	}
	if c.IsBettingRelated("great game yesterday") {
		t.Error("unrelated content should not qualify")
	}
}

func TestExtractTags(t *testing.T) {
	got := ExtractTags("Sharp money on the under, classic RLM. Fade the public parlay")
	want := []string{"under", "parlay", "fade", "sharp-money", "reverse-line-movement"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("tags = %v, want %v", got, want)
	}
	if got := ExtractTags("hello"); len(got) != 0 {
		t.Errorf("tags = %v, want none", got)
	}
}

func TestExtractBetType(t *testing.T) {
	tests := map[string]string{
		"Allen over 250.5 passing yards": "Passing Yards",
		"hammer the under on home runs":  "Home Runs",
		"take the over":                  "Props",
		"big game tonight":               "",
	}
	for text, want := range tests {
		if got := ExtractBetType(text); got != want {
			t.Errorf("ExtractBetType(%q) = %q, want %q", text, got, want)
		}
	}
}

func TestBigramExtractor(t *testing.T) {
	tests := []struct {
		text string
		want string
		ok   bool
	}{
		{"Josh Allen over 250.5 is a lock", "Josh Allen", true},
		{"Smash Josh Allen's over", "Josh Allen", true},
		{"New York fans love Jalen Brunson tonight", "Jalen Brunson", true},
		{"Kansas City at Las Vegas", "", false},
		{"lock of the day", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := BigramExtractor{}.ExtractPlayer(tt.text)
			if got != tt.want || ok != tt.ok {
				t.Errorf("ExtractPlayer = %q/%v, want %q/%v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestGazetteer(t *testing.T) {
	g := NewGazetteer([]string{"Allen", "Josh Allen", "Patrick Mahomes"})
	if got, ok := g.ExtractPlayer("fading mahomes but JOSH ALLEN is a lock"); !ok || got != "Josh Allen" {
		t.Errorf("got %q/%v", got, ok)
	}
	if got, ok := g.ExtractPlayer("Patrick Mahomes then Josh Allen"); !ok || got != "Patrick Mahomes" {
		t.Errorf("earliest match: got %q/%v", got, ok)
	}
	if _, ok := g.ExtractPlayer("no names"); ok {
		t.Error("expected no match")
	}
}

func TestAggregatorProcessAll(t *testing.T) {
	a := NewAggregator(NewClassifier(Keywords{}), nil, nil)
	raw := []types.SentimentRecord{
		{Community: "r/sportsbook", Content: "Josh Allen over 250.5 passing yards is a lock"},
		{Community: "r/nfl", Content: "what a catch"},
		{Community: "r/nfl", Content: "fade the over", Player: "Travis Kelce", PropType: "Receptions"},
	}

	got := a.ProcessAll(raw)
	if len(got) != 2 {
		t.Fatalf("kept %d, want 2", len(got))
	}
	first := got[0]
	if first.Player != "Josh Allen" || first.PropType != "Passing Yards" || first.Sentiment != types.Bullish {
		t.Errorf("first = %+v", first)
	}
	if got[1].Player != "Travis Kelce" || got[1].PropType != "Receptions" || got[1].Sentiment != types.Bearish {
		t.Errorf("connector fields overwritten: %+v", got[1])
	}
}
