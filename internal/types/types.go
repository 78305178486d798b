package types

import (
	"strings"
	"time"
)

// Source identifies the sportsbook or pick'em market a prop line came from.
type Source string

const (
	SourcePrizePicks Source = "PrizePicks"
	SourceUnderdog   Source = "Underdog"
	SourceDraftKings Source = "DraftKings"
	SourceFanDuel    Source = "FanDuel"
	SourceBetMGM     Source = "BetMGM"
	SourceCaesars    Source = "Caesars"
)

// KnownSources lists every Source the connectors may emit.
var KnownSources = []Source{
	SourcePrizePicks, SourceUnderdog, SourceDraftKings,
	SourceFanDuel, SourceBetMGM, SourceCaesars,
}

// PropStatus is the market state of a prop line.
type PropStatus string

const (
	StatusActive    PropStatus = "active"
	StatusSuspended PropStatus = "suspended"
	StatusClosed    PropStatus = "closed"
)

// ScrapedProp is a single observed prop line at a point in time.
type ScrapedProp struct {
	Player        string     `json:"player"`
	Team          string     `json:"team"`
	StatType      string     `json:"stat_type"`
	Line          float64    `json:"line"`
	Source        Source     `json:"source"`
	Status        PropStatus `json:"status"`
	Timestamp     time.Time  `json:"timestamp"`
	GameInfo      string     `json:"game_info,omitempty"`
	Odds          *int       `json:"odds,omitempty"`
	PublicPercent *float64   `json:"public_percent,omitempty"`
	MoneyPercent  *float64   `json:"money_percent,omitempty"`
	// Synthetic is set when PublicPercent/MoneyPercent were filled by a
	// placeholder generator rather than observed upstream.
	Synthetic bool `json:"synthetic,omitempty"`
}

// Key returns the tracking key for line-movement history.
func (p ScrapedProp) Key() string {
	return PropKey(p.Source, p.Player, p.StatType)
}

// PropKey builds the (source, player, stat type) tracking key.
func PropKey(source Source, player, statType string) string {
	return string(source) + "|" + strings.TrimSpace(player) + "|" + strings.TrimSpace(statType)
}

// Direction of a line movement.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
	DirectionFlat Direction = "flat"
)

// DirectionOf applies the sign convention: up iff > 0, down iff < 0.
func DirectionOf(movement float64) Direction {
	switch {
	case movement > 0:
		return DirectionUp
	case movement < 0:
		return DirectionDown
	default:
		return DirectionFlat
	}
}

// Significance classifies the magnitude of a line movement.
type Significance string

const (
	SignificanceMinor    Significance = "minor"
	SignificanceModerate Significance = "moderate"
	SignificanceMajor    Significance = "major"
)

// LineMovement is the delta between two consecutive observations of one key.
type LineMovement struct {
	PropID       string       `json:"prop_id"` // player + "-" + stat type
	Player       string       `json:"player"`
	StatType     string       `json:"stat_type"`
	PreviousLine float64      `json:"previous_line"`
	CurrentLine  float64      `json:"current_line"`
	Movement     float64      `json:"movement"`
	Direction    Direction    `json:"direction"`
	Source       Source       `json:"source"`
	Significance Significance `json:"significance"`
	DetectedAt   time.Time    `json:"detected_at"`
}

// Sentiment is the directional read of a piece of public content.
type Sentiment string

const (
	Bullish Sentiment = "bullish"
	Bearish Sentiment = "bearish"
	Neutral Sentiment = "neutral"
)

// SentimentRecord is one classified social post.
type SentimentRecord struct {
	ID         string    `json:"id,omitempty"`
	Platform   string    `json:"platform"`  // "Reddit", "Twitter"
	Community  string    `json:"community"` // "r/sportsbook", "@ActionNetworkHQ"
	Content    string    `json:"content"`
	Author     string    `json:"author"`
	Player     string    `json:"player,omitempty"`
	PropType   string    `json:"prop_type,omitempty"`
	Sentiment  Sentiment `json:"sentiment"`
	Engagement int       `json:"engagement"`
	Confidence int       `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
	Tags       []string  `json:"tags"`
}

// RiskLevel is the tailing risk classification.
type RiskLevel string

const (
	RiskOvertailed RiskLevel = "overtailed"
	RiskConsensus  RiskLevel = "consensus"
	RiskContrarian RiskLevel = "contrarian"
)

// TailingSentiment aggregates sentiment for one (player, prop type) key.
type TailingSentiment struct {
	Key             string    `json:"key"`
	Player          string    `json:"player"`
	PropType        string    `json:"prop_type"`
	TailRate        float64   `json:"tail_rate"`
	Mentions        int       `json:"mentions"`
	InfluencerCount int       `json:"influencer_count"`
	Sentiment       Sentiment `json:"sentiment"`
	Risk            RiskLevel `json:"risk"`
	Communities     []string  `json:"communities"`
	Rebalanced      bool      `json:"rebalanced,omitempty"`
}

// SessionStatus is the lifecycle state of a ScrapingSession.
type SessionStatus string

const (
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
)

// SessionKind names the class of work a session performed.
type SessionKind string

const (
	KindProps     SessionKind = "props"
	KindSentiment SessionKind = "sentiment"
	KindManual    SessionKind = "manual"
)

// ScrapingSession records one scheduler-triggered run.
type ScrapingSession struct {
	ID                       string        `json:"session_id"`
	Kind                     SessionKind   `json:"kind"`
	StartTime                time.Time     `json:"start_time"`
	EndTime                  *time.Time    `json:"end_time,omitempty"`
	PropsScraped             int           `json:"props_scraped"`
	SentimentPointsCollected int           `json:"sentiment_points_collected"`
	MovementsDetected        int           `json:"movements_detected"`
	TailingAlerts            int           `json:"tailing_alerts"`
	Sources                  []string      `json:"sources"`
	Status                   SessionStatus `json:"status"`
	Errors                   []string      `json:"errors,omitempty"`
}

// AlertKind names what triggered an alert.
type AlertKind string

const (
	AlertMajorMovement AlertKind = "major_line_movement"
	AlertOvertailed    AlertKind = "overtailed"
)

// Alert is the payload handed to the notification collaborator.
type Alert struct {
	Kind      AlertKind         `json:"kind"`
	Key       string            `json:"key"`
	Title     string            `json:"title"`
	Movement  *LineMovement     `json:"movement,omitempty"`
	Tailing   *TailingSentiment `json:"tailing,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Health is a data-quality status.
type Health string

const (
	HealthHealthy  Health = "healthy"
	HealthDegraded Health = "degraded"
	HealthFailed   Health = "failed"
)
