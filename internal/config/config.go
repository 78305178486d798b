package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const appName = "sharpwatch"

// Config holds all application configuration
type Config struct {
	Version   int             `toml:"version"`
	Schedule  ScheduleConfig  `toml:"schedule"`
	Scraping  ScrapingConfig  `toml:"scraping"`
	Movement  MovementConfig  `toml:"movement"`
	Tailing   TailingConfig   `toml:"tailing"`
	Sentiment SentimentConfig `toml:"sentiment"`
	Sources   SourcesConfig   `toml:"sources"`
	Storage   StorageConfig   `toml:"storage"`
	Alerts    AlertsConfig    `toml:"alerts"`
	API       APIConfig       `toml:"api"`
	Debug     DebugConfig     `toml:"debug"`
}

// ScheduleConfig controls the timers and the peak-time heuristic.
type ScheduleConfig struct {
	Timezone                 string   `toml:"timezone"`
	PeakIntervalMinutes      int      `toml:"peak_interval_minutes"`
	OffPeakIntervalMinutes   int      `toml:"off_peak_interval_minutes"`
	SentimentIntervalMinutes int      `toml:"sentiment_interval_minutes"`
	PeakDays                 []string `toml:"peak_days"`
	PeakStartHour            int      `toml:"peak_start_hour"`
	PeakEndHour              int      `toml:"peak_end_hour"` // inclusive
	SessionTimeoutMinutes    int      `toml:"session_timeout_minutes"`
}

type ScrapingConfig struct {
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	RequestDelayMillis    int    `toml:"request_delay_millis"`
	SourceDelayMillis     int    `toml:"source_delay_millis"`
	PageTimeoutSeconds    int    `toml:"page_timeout_seconds"`
	Headless              bool   `toml:"headless"`
	UserAgent             string `toml:"user_agent"`
	FillSyntheticPercent  bool   `toml:"fill_synthetic_percent"`
	SyntheticSeed         int64  `toml:"synthetic_seed"`
}

// MovementConfig holds the line-movement significance bands.
type MovementConfig struct {
	MinThreshold      float64 `toml:"min_threshold"`
	ModerateThreshold float64 `toml:"moderate_threshold"`
	MajorThreshold    float64 `toml:"major_threshold"`
}

type TailingConfig struct {
	OvertailedAbove float64 `toml:"overtailed_above"`
	ContrarianBelow float64 `toml:"contrarian_below"`
	MentionBoost    float64 `toml:"mention_boost"`
	MaxTailRate     float64 `toml:"max_tail_rate"`
	Rebalance       bool    `toml:"rebalance"`
	TopN            int     `toml:"top_n"`
	WindowHours     int     `toml:"window_hours"`
	AlertOvertailed bool    `toml:"alert_overtailed"`
}

type SentimentConfig struct {
	BullishKeywords []string `toml:"bullish_keywords"`
	BearishKeywords []string `toml:"bearish_keywords"`
	BettingKeywords []string `toml:"betting_keywords"`
	// KnownPlayers switches player extraction from the capitalized-bigram
	// heuristic to a gazetteer lookup when non-empty.
	KnownPlayers []string `toml:"known_players"`
}

type SourcesConfig struct {
	DraftKings DraftKingsConfig `toml:"draftkings"`
	OddsAPI    OddsAPIConfig    `toml:"odds_api"`
	PrizePicks PageConfig       `toml:"prizepicks"`
	Underdog   PageConfig       `toml:"underdog"`
	Reddit     RedditConfig     `toml:"reddit"`
	X          XConfig          `toml:"x"`
}

type DraftKingsConfig struct {
	Enabled bool   `toml:"enabled"`
	URL     string `toml:"url"`
}

type OddsAPIConfig struct {
	Enabled    bool     `toml:"enabled"`
	APIKey     string   `toml:"api_key"`
	BaseURL    string   `toml:"base_url"`
	Sports     []string `toml:"sports"`
	Markets    []string `toml:"markets"`
	Bookmakers []string `toml:"bookmakers"`
	MaxEvents  int      `toml:"max_events"`
}

// PageConfig describes a browser-rendered pick'em board.
type PageConfig struct {
	Enabled bool   `toml:"enabled"`
	URL     string `toml:"url"`
}

type RedditConfig struct {
	Enabled    bool     `toml:"enabled"`
	BaseURL    string   `toml:"base_url"`
	Subreddits []string `toml:"subreddits"`
	Limit      int      `toml:"limit"`
	UserAgent  string   `toml:"user_agent"`
}

type XConfig struct {
	Enabled         bool     `toml:"enabled"`
	Accounts        []string `toml:"accounts"`
	PostsPerAccount int      `toml:"posts_per_account"`
}

type StorageConfig struct {
	Driver string `toml:"driver"` // "sqlite" or "postgres"
	DSN    string `toml:"dsn"`
}

type AlertsConfig struct {
	Log             bool        `toml:"log"`
	SlackWebhook    string      `toml:"slack_webhook"`
	RedisURL        string      `toml:"redis_url"`
	RedisStream     string      `toml:"redis_stream"`
	DedupTTLMinutes int         `toml:"dedup_ttl_minutes"`
	LiveFeed        bool        `toml:"live_feed"` // websocket feed on the control API
	Email           EmailConfig `toml:"email"`
}

type EmailConfig struct {
	Enabled  bool   `toml:"enabled"`
	SMTPHost string `toml:"smtp_host"`
	SMTPPort int    `toml:"smtp_port"`
	SMTPUser string `toml:"smtp_user"`
	SMTPPass string `toml:"smtp_pass"`
	FromAddr string `toml:"from_address"`
	ToAddr   string `toml:"to_address"`
}

type APIConfig struct {
	Enabled        bool     `toml:"enabled"`
	Addr           string   `toml:"addr"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

type DebugConfig struct {
	CacheSnapshots bool `toml:"cache_snapshots"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Version: 1,
		Schedule: ScheduleConfig{
			Timezone:                 "America/New_York",
			PeakIntervalMinutes:      3,
			OffPeakIntervalMinutes:   15,
			SentimentIntervalMinutes: 10,
			PeakDays:                 []string{"thu", "fri", "sat", "sun", "mon"},
			PeakStartHour:            13,
			PeakEndHour:              23,
			SessionTimeoutMinutes:    10,
		},
		Scraping: ScrapingConfig{
			RequestTimeoutSeconds: 10,
			RequestDelayMillis:    1000,
			SourceDelayMillis:     3000,
			PageTimeoutSeconds:    30,
			Headless:              true,
			FillSyntheticPercent:  true,
			SyntheticSeed:         1,
		},
		Movement: MovementConfig{
			MinThreshold:      0.5,
			ModerateThreshold: 1.5,
			MajorThreshold:    3.0,
		},
		Tailing: TailingConfig{
			OvertailedAbove: 70,
			ContrarianBelow: 30,
			MentionBoost:    15,
			MaxTailRate:     95,
			Rebalance:       true,
			TopN:            8,
			WindowHours:     24,
		},
		Sentiment: SentimentConfig{},
		Sources: SourcesConfig{
			DraftKings: DraftKingsConfig{
				Enabled: true,
				URL:     "https://sportsbook-us-nh.draftkings.com/sites/US-NH-SB/api/v5/eventgroups/88808/categories/1215/subcategories",
			},
			OddsAPI: OddsAPIConfig{
				BaseURL:    "https://api.the-odds-api.com/v4",
				Sports:     []string{"americanfootball_nfl"},
				Markets:    []string{"player_pass_yds", "player_rush_yds", "player_reception_yds", "player_receptions"},
				Bookmakers: []string{"fanduel", "draftkings", "betmgm", "williamhill_us"},
				MaxEvents:  10,
			},
			PrizePicks: PageConfig{Enabled: false, URL: "https://app.prizepicks.com/"},
			Underdog:   PageConfig{Enabled: false, URL: "https://underdogfantasy.com/pick-em"},
			Reddit: RedditConfig{
				Enabled:    true,
				BaseURL:    "https://www.reddit.com",
				Subreddits: []string{"sportsbook", "sportsbetting", "dfsports", "nfl", "nba", "baseball", "fantasyfootball"},
				Limit:      25,
				UserAgent:  "sharpwatch/1.0",
			},
			X: XConfig{
				Enabled:         false,
				Accounts:        []string{"ActionNetworkHQ", "BettingPros", "VSiNLive", "OddsChecker"},
				PostsPerAccount: 20,
			},
		},
		Storage: StorageConfig{
			Driver: "sqlite",
		},
		Alerts: AlertsConfig{
			Log:             true,
			RedisStream:     "sharpwatch.alerts",
			DedupTTLMinutes: 30,
			LiveFeed:        true,
			Email: EmailConfig{
				SMTPPort: 587,
			},
		},
		API: APIConfig{
			Enabled: true,
			Addr:    "127.0.0.1:8089",
		},
	}
}

// Validate checks the values that would otherwise produce nonsensical schedules
// or classifications.
func (c *Config) Validate() error {
	var errs []error

	s := c.Schedule
	if s.PeakIntervalMinutes <= 0 || s.OffPeakIntervalMinutes <= 0 || s.SentimentIntervalMinutes <= 0 {
		errs = append(errs, errors.New("schedule intervals must be positive"))
	}
	if s.PeakStartHour < 0 || s.PeakEndHour > 23 || s.PeakStartHour > s.PeakEndHour {
		errs = append(errs, fmt.Errorf("invalid peak hours %d-%d", s.PeakStartHour, s.PeakEndHour))
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid timezone %s: %w", s.Timezone, err))
	}
	if _, err := ParseWeekdays(s.PeakDays); err != nil {
		errs = append(errs, err)
	}

	m := c.Movement
	if !(m.MinThreshold > 0 && m.MinThreshold <= m.ModerateThreshold && m.ModerateThreshold <= m.MajorThreshold) {
		errs = append(errs, fmt.Errorf("movement thresholds must satisfy 0 < min <= moderate <= major (got %v/%v/%v)",
			m.MinThreshold, m.ModerateThreshold, m.MajorThreshold))
	}

	t := c.Tailing
	if t.ContrarianBelow >= t.OvertailedAbove {
		errs = append(errs, fmt.Errorf("tailing contrarian_below (%v) must be below overtailed_above (%v)",
			t.ContrarianBelow, t.OvertailedAbove))
	}

	switch c.Storage.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}

	return errors.Join(errs...)
}

// ApplyEnv overrides secrets from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("SHARPWATCH_ODDS_API_KEY"); v != "" {
		c.Sources.OddsAPI.APIKey = v
	}
	if v := os.Getenv("SHARPWATCH_SMTP_PASS"); v != "" {
		c.Alerts.Email.SMTPPass = v
	}
	if v := os.Getenv("SHARPWATCH_SLACK_WEBHOOK"); v != "" {
		c.Alerts.SlackWebhook = v
	}
	if v := os.Getenv("SHARPWATCH_REDIS_URL"); v != "" {
		c.Alerts.RedisURL = v
	}
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

// ParseWeekdays converts names like "thu" or "Thursday" into time.Weekday values.
func ParseWeekdays(names []string) ([]time.Weekday, error) {
	out := make([]time.Weekday, 0, len(names))
	for _, n := range names {
		key := strings.ToLower(strings.TrimSpace(n))
		if len(key) > 3 {
			key = key[:3]
		}
		d, ok := weekdays[key]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", n)
		}
		out = append(out, d)
	}
	return out, nil
}

// ConfigDir returns the platform-appropriate config directory
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, appName), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// CacheDir returns the platform-appropriate cache directory
func CacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, appName), nil
}

// SessionPath is where captured browser sessions are stored.
func SessionPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "x_session.json"), nil
}

// DefaultDSN is the sqlite database location used when storage.dsn is empty.
func DefaultDSN() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "sharpwatch.db"), nil
}

// Load reads config from the default location
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads config from path on top of Default, so missing keys keep
// their default values.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes config to the default location
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes config to path
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}
