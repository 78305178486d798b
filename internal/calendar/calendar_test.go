package calendar

import (
	"strings"
	"testing"
	"time"

	"github.com/ibeckermayer/sharpwatch/internal/config"
)

func TestIsPeak(t *testing.T) {
	w, err := FromConfig(config.Default().Schedule)
	if err != nil {
		t.Fatal(err)
	}
	ny := w.Location()

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"wednesday afternoon", time.Date(2025, 10, 15, 15, 0, 0, 0, ny), false},
		{"saturday evening", time.Date(2025, 10, 18, 20, 0, 0, 0, ny), true},
		{"sunday before window", time.Date(2025, 10, 19, 12, 59, 0, 0, ny), false},
		{"monday start hour", time.Date(2025, 10, 20, 13, 0, 0, 0, ny), true},
		{"thursday end hour inclusive", time.Date(2025, 10, 16, 23, 30, 0, 0, ny), true},
		{"tuesday evening", time.Date(2025, 10, 21, 20, 0, 0, 0, ny), false},
		// 00:30 UTC Sunday is 20:30 Saturday in New York
		{"converted from utc", time.Date(2025, 10, 19, 0, 30, 0, 0, time.UTC), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := w.IsPeak(tt.at); got != tt.want {
				t.Errorf("IsPeak(%v) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}

func TestSeason(t *testing.T) {
	tests := []struct {
		league string
		at     time.Time
		phase  Phase
	}{
		{"NFL", time.Date(2025, 10, 12, 0, 0, 0, 0, time.UTC), Regular},
		{"NFL", time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC), Playoffs},
		{"NFL", time.Date(2025, 2, 20, 0, 0, 0, 0, time.UTC), Offseason},
		{"NFL", time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC), Preseason},
		{"nba", time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), Playoffs},
		{"NBA", time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC), Offseason},
		{"MLB", time.Date(2025, 10, 20, 0, 0, 0, 0, time.UTC), Playoffs},
		{"MLB", time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC), Offseason},
		{"NHL", time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC), Offseason},
	}

	for _, tt := range tests {
		t.Run(tt.league+" "+tt.at.Format("Jan"), func(t *testing.T) {
			if got := Season(tt.league, tt.at); got.Phase != tt.phase {
				t.Errorf("phase = %s, want %s", got.Phase, tt.phase)
			}
		})
	}
}

func TestActiveLeaguesMessage(t *testing.T) {
	msg := ActiveLeaguesMessage(time.Date(2025, 10, 12, 0, 0, 0, 0, time.UTC))
	for _, want := range []string{"NFL (regular)", "NBA (regular)", "MLB (playoffs)"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
}
