package calendar

import (
	"fmt"
	"time"

	"github.com/ibeckermayer/sharpwatch/internal/config"
)

// PeakWindow is the game-day/evening window during which scraping runs at
// the short interval.
type PeakWindow struct {
	days      [7]bool
	startHour int
	endHour   int // inclusive
	loc       *time.Location
}

// NewPeakWindow builds a window over days between startHour and endHour
// (both inclusive) in loc. A nil loc means UTC.
func NewPeakWindow(days []time.Weekday, startHour, endHour int, loc *time.Location) PeakWindow {
	if loc == nil {
		loc = time.UTC
	}
	w := PeakWindow{startHour: startHour, endHour: endHour, loc: loc}
	for _, d := range days {
		w.days[d] = true
	}
	return w
}

// FromConfig builds the window described by the schedule section.
func FromConfig(cfg config.ScheduleConfig) (PeakWindow, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return PeakWindow{}, fmt.Errorf("load timezone %s: %w", cfg.Timezone, err)
	}
	days, err := config.ParseWeekdays(cfg.PeakDays)
	if err != nil {
		return PeakWindow{}, err
	}
	return NewPeakWindow(days, cfg.PeakStartHour, cfg.PeakEndHour, loc), nil
}

// IsPeak reports whether t falls on a peak day inside the peak hours.
func (w PeakWindow) IsPeak(t time.Time) bool {
	local := t.In(w.loc)
	if !w.days[local.Weekday()] {
		return false
	}
	h := local.Hour()
	return h >= w.startHour && h <= w.endHour
}

// Location returns the window's time zone.
func (w PeakWindow) Location() *time.Location { return w.loc }
