// Package signals labels props from the split between ticket and money
// percentages.
package signals

import (
	"math"

	"github.com/ibeckermayer/sharpwatch/internal/types"
)

// Label is a public-vs-sharp read on a prop.
type Label string

const (
	PublicTrap Label = "public_trap"
	SharpPlay  Label = "sharp_play"
	FadeAlert  Label = "fade_alert"
	Neutral    Label = "neutral"
)

// Classify labels a prop. Rules are checked in order; props missing either
// percentage are Neutral.
func Classify(p types.ScrapedProp) Label {
	if p.PublicPercent == nil || p.MoneyPercent == nil {
		return Neutral
	}
	return ClassifySplit(*p.PublicPercent, *p.MoneyPercent)
}

// ClassifySplit labels a public/money percentage pair.
func ClassifySplit(public, money float64) Label {
	switch {
	case public > 70 && math.Abs(public-money) > 15:
		return PublicTrap
	case public < 40 && money > 60:
		return SharpPlay
	case public > 75:
		return FadeAlert
	default:
		return Neutral
	}
}

// IsReverseLineMovement reports whether m moved against the side the public
// is on. public is the percentage of tickets on the over.
func IsReverseLineMovement(m types.LineMovement, public float64) bool {
	switch {
	case public > 50:
		return m.Direction == types.DirectionDown
	case public < 50:
		return m.Direction == types.DirectionUp
	default:
		return false
	}
}
