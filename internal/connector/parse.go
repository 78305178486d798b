package connector

import (
	"regexp"
	"strconv"
	"strings"
)

var numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// ParseLine pulls the numeric line out of display text such as "o 250.5",
// "U45½" or "Line: 6.5". Unparseable text yields 0.
func ParseLine(s string) float64 {
	s = strings.ReplaceAll(s, ",", "")
	half := strings.Contains(s, "½")
	m := numberPattern.FindString(s)
	if m == "" {
		if half {
			return 0.5
		}
		return 0
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	if half {
		v += 0.5
	}
	return v
}

// ParseMetric converts abbreviated metric strings like "1.2K", "5.7M", or "423" to integers
func ParseMetric(s string) int {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0
	}

	multiplier := 1.0
	switch strings.ToUpper(s[len(s)-1:]) {
	case "K":
		multiplier = 1000
		s = s[:len(s)-1]
	case "M":
		multiplier = 1000000
		s = s[:len(s)-1]
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int(value * multiplier)
}

// ParseOdds parses American odds ("+150", "-110", "−110", "EVEN").
func ParseOdds(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "even") || strings.EqualFold(s, "ev") {
		return 100, true
	}

	negative := strings.HasPrefix(s, "-") || strings.HasPrefix(s, "−")
	s = strings.TrimPrefix(s, "+")
	s = strings.TrimPrefix(s, "-")
	s = strings.TrimPrefix(s, "−")

	v, err := strconv.Atoi(s)
	if err != nil || v == 0 {
		return 0, false
	}
	if negative {
		v = -v
	}
	return v, true
}
