package sentiment

import (
	"log/slog"

	"github.com/ibeckermayer/sharpwatch/internal/types"
)

// Aggregator normalizes raw posts into classified SentimentRecords.
type Aggregator struct {
	classifier *Classifier
	players    PlayerExtractor
	logger     *slog.Logger
}

// NewAggregator wires a classifier and player extractor. A nil extractor
// uses BigramExtractor.
func NewAggregator(c *Classifier, players PlayerExtractor, logger *slog.Logger) *Aggregator {
	if players == nil {
		players = BigramExtractor{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{classifier: c, players: players, logger: logger}
}

// Process classifies one raw post. ok is false when the content is not
// betting related and the post should be discarded. Player and prop type
// set by the connector are kept.
func (a *Aggregator) Process(raw types.SentimentRecord) (types.SentimentRecord, bool) {
	if !a.classifier.IsBettingRelated(raw.Content) {
		return types.SentimentRecord{}, false
	}

	r := a.classifier.Classify(raw.Content)
	raw.Sentiment = r.Sentiment
	raw.Confidence = r.Confidence
	raw.Tags = ExtractTags(raw.Content)

	if raw.Player == "" {
		if name, ok := a.players.ExtractPlayer(raw.Content); ok {
			raw.Player = name
		}
	}
	if raw.PropType == "" {
		raw.PropType = ExtractBetType(raw.Content)
	}
	return raw, true
}

// ProcessAll classifies a batch, dropping non-betting content.
func (a *Aggregator) ProcessAll(raw []types.SentimentRecord) []types.SentimentRecord {
	out := make([]types.SentimentRecord, 0, len(raw))
	for _, r := range raw {
		if rec, ok := a.Process(r); ok {
			out = append(out, rec)
		}
	}
	if dropped := len(raw) - len(out); dropped > 0 {
		a.logger.Debug("sentiment: dropped non-betting posts", "dropped", dropped, "kept", len(out))
	}
	return out
}
