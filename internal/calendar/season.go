package calendar

import (
	"fmt"
	"strings"
	"time"
)

// Phase of a league's season.
type Phase string

const (
	Preseason Phase = "preseason"
	Regular   Phase = "regular"
	Playoffs  Phase = "playoffs"
	Offseason Phase = "offseason"
)

// SeasonInfo explains why a league may or may not have props posted.
type SeasonInfo struct {
	League   string `json:"league"`
	InSeason bool   `json:"in_season"`
	Phase    Phase  `json:"phase"`
	Message  string `json:"message"`
}

// Leagues lists the leagues with known season calendars.
var Leagues = []string{"NFL", "NBA", "MLB"}

// Season returns the season phase of league on date t.
func Season(league string, t time.Time) SeasonInfo {
	month, day := t.Month(), t.Day()

	switch strings.ToUpper(league) {
	case "NFL":
		return nflSeason(month, day)
	case "NBA":
		return nbaSeason(month)
	case "MLB":
		return mlbSeason(month, day)
	default:
		return SeasonInfo{
			League:  league,
			Phase:   Offseason,
			Message: fmt.Sprintf("%s season information not available", league),
		}
	}
}

func nflSeason(month time.Month, day int) SeasonInfo {
	info := SeasonInfo{League: "NFL", InSeason: true}
	switch {
	case month == time.February && day > 15:
		info.InSeason, info.Phase = false, Offseason
		info.Message = "NFL season ended in February. Next season starts in September with preseason games."
	case month <= time.February:
		info.Phase = Playoffs
		info.Message = "NFL playoffs - limited games with heavy action on conference championships and the Super Bowl."
	case month >= time.September:
		info.Phase = Regular
		info.Message = "NFL regular season - peak prop betting with games Thursday, Sunday and Monday."
	case month >= time.July:
		info.Phase = Preseason
		info.Message = "NFL preseason - limited prop markets while teams rest starters."
	default:
		info.InSeason, info.Phase = false, Offseason
		info.Message = "NFL offseason - no active games. Peak betting season returns in September."
	}
	return info
}

func nbaSeason(month time.Month) SeasonInfo {
	info := SeasonInfo{League: "NBA", InSeason: true}
	switch {
	case month >= time.April && month <= time.June:
		info.Phase = Playoffs
		info.Message = "NBA playoffs - fewer games but higher stakes through the conference finals and Finals."
	case month >= time.October || month <= time.March:
		info.Phase = Regular
		info.Message = "NBA regular season - high-volume prop betting with games nearly every day."
	default:
		info.InSeason, info.Phase = false, Offseason
		info.Message = "NBA offseason - no active games. Season returns in October."
	}
	return info
}

func mlbSeason(month time.Month, day int) SeasonInfo {
	info := SeasonInfo{League: "MLB", InSeason: true}
	switch {
	case month == time.March:
		info.Phase = Preseason
		info.Message = "MLB spring training - limited props ahead of the regular season in early April."
	case month >= time.April && month <= time.September:
		info.Phase = Regular
		info.Message = "MLB regular season - daily games provide consistent prop opportunities."
	case month == time.October || (month == time.November && day <= 15):
		info.Phase = Playoffs
		info.Message = "MLB postseason - limited games with betting focus on the Division Series, LCS and World Series."
	default:
		info.InSeason, info.Phase = false, Offseason
		info.Message = "MLB offseason - no active games. Spring training starts in March."
	}
	return info
}

// ActiveLeagues returns the in-season leagues on date t.
func ActiveLeagues(t time.Time) []SeasonInfo {
	var active []SeasonInfo
	for _, l := range Leagues {
		if info := Season(l, t); info.InSeason {
			active = append(active, info)
		}
	}
	return active
}

// ActiveLeaguesMessage summarizes ActiveLeagues for status displays.
func ActiveLeaguesMessage(t time.Time) string {
	active := ActiveLeagues(t)
	if len(active) == 0 {
		return "All major sports are in the offseason. Expect few or no props."
	}

	names := make([]string, len(active))
	for i, a := range active {
		names[i] = fmt.Sprintf("%s (%s)", a.League, a.Phase)
	}
	return "Currently active: " + strings.Join(names, ", ") + ". Limited props may indicate rest days or gaps between series."
}
