package tailing

import (
	"github.com/ibeckermayer/sharpwatch/internal/synthetic"
	"github.com/ibeckermayer/sharpwatch/internal/types"
)

// ConsensusEstimator supplies the initial tail rate for a key's first
// mention. A measured consensus feed would implement this directly.
type ConsensusEstimator interface {
	Estimate(rec types.SentimentRecord) float64
}

type band struct {
	above  int
	lo, hi float64
}

var engagementBands = []band{
	{180, 75, 95},
	{120, 55, 80},
	{60, 35, 60},
}

// EngagementBands maps engagement to a tail-rate band and picks a point in
// it with Jitter. Without a generator the band midpoint is used.
type EngagementBands struct {
	Jitter synthetic.Generator
}

func (e EngagementBands) Estimate(rec types.SentimentRecord) float64 {
	lo, hi := 15.0, 45.0
	for _, b := range engagementBands {
		if rec.Engagement > b.above {
			lo, hi = b.lo, b.hi
			break
		}
	}

	f := 0.5
	if e.Jitter != nil {
		f = e.Jitter.Jitter()
	}
	return lo + f*(hi-lo)
}
