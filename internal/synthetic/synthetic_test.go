package synthetic

import (
	"testing"

	"github.com/ibeckermayer/sharpwatch/internal/types"
)

func TestSeededIsDeterministic(t *testing.T) {
	a, b := NewSeeded(7), NewSeeded(7)
	for i := 0; i < 20; i++ {
		if a.PublicPercent() != b.PublicPercent() || a.Jitter() != b.Jitter() {
			t.Fatal("same seed produced different streams")
		}
	}
}

func TestSeededRanges(t *testing.T) {
	g := NewSeeded(1)
	for i := 0; i < 200; i++ {
		if p := g.PublicPercent(); p < 40 || p >= 80 {
			t.Fatalf("public %v out of range", p)
		}
		if m := g.MoneyPercent(); m < 30 || m >= 70 {
			t.Fatalf("money %v out of range", m)
		}
		if j := g.Jitter(); j < 0 || j >= 1 {
			t.Fatalf("jitter %v out of range", j)
		}
	}
}

func TestFillPercentages(t *testing.T) {
	observed := 62.0
	props := []types.ScrapedProp{
		{Player: "A", PublicPercent: &observed, MoneyPercent: &observed},
		{Player: "B"},
	}

	if n := FillPercentages(Zero{}, props); n != 1 {
		t.Fatalf("filled %d, want 1", n)
	}
	if props[0].Synthetic || *props[0].PublicPercent != 62 {
		t.Errorf("observed prop modified: %+v", props[0])
	}
	if !props[1].Synthetic || *props[1].PublicPercent != 50 || *props[1].MoneyPercent != 50 {
		t.Errorf("missing prop not filled: %+v", props[1])
	}
}
