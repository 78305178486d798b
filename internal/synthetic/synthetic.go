// Package synthetic produces placeholder market values for fields no
// upstream source reports. Nothing it returns is an observation; values it
// fills are marked Synthetic on the record.
package synthetic

import (
	"math/rand/v2"
	"sync"

	"github.com/ibeckermayer/sharpwatch/internal/types"
)

// Generator supplies stand-in public/money percentages and jitter.
type Generator interface {
	// PublicPercent returns a public-backing percentage in [0, 100].
	PublicPercent() float64
	// MoneyPercent returns a money percentage in [0, 100].
	MoneyPercent() float64
	// Jitter returns a fraction in [0, 1).
	Jitter() float64
}

// Seeded draws from a deterministic PCG stream. Safe for concurrent use.
type Seeded struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSeeded returns a Generator whose output is fixed by seed.
func NewSeeded(seed int64) *Seeded {
	return &Seeded{rng: rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))}
}

func (g *Seeded) intn(lo, width int) float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return float64(lo + g.rng.IntN(width))
}

// PublicPercent returns a value in [40, 80).
func (g *Seeded) PublicPercent() float64 { return g.intn(40, 40) }

// MoneyPercent returns a value in [30, 70).
func (g *Seeded) MoneyPercent() float64 { return g.intn(30, 40) }

func (g *Seeded) Jitter() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Float64()
}

// Zero returns fixed midpoint values. Useful in tests and when placeholder
// variance is unwanted.
type Zero struct{}

func (Zero) PublicPercent() float64 { return 50 }
func (Zero) MoneyPercent() float64  { return 50 }
func (Zero) Jitter() float64        { return 0.5 }

// FillPercentages sets PublicPercent/MoneyPercent on props that lack them
// and marks those props synthetic. Props with observed values are untouched.
func FillPercentages(g Generator, props []types.ScrapedProp) int {
	filled := 0
	for i := range props {
		p := &props[i]
		if p.PublicPercent != nil && p.MoneyPercent != nil {
			continue
		}
		if p.PublicPercent == nil {
			v := g.PublicPercent()
			p.PublicPercent = &v
		}
		if p.MoneyPercent == nil {
			v := g.MoneyPercent()
			p.MoneyPercent = &v
		}
		p.Synthetic = true
		filled++
	}
	return filled
}
