// Package config loads environment variables and provides a typed Config used across the service.
// It applies sensible defaults so the binary can run locally with minimal setup.
// For required chat credentials, use ValidateChatReady.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultPrefix is used when BOT_PREFIX is unset. Setting BOT_PREFIX to an
// empty string makes every message a command candidate.
const DefaultPrefix = "!"

type Config struct {
	// Twitch
	TwitchChannels     []string
	TwitchBotUsername  string
	TwitchOAuthToken   string
	TwitchClientID     string
	TwitchClientSecret string
	TwitchRedirectURI  string

	// Bot
	Prefix string
	Admins []string

	// Stock API
	StockBaseURL      string
	StockFetchTimeout time.Duration
	StockFetchRetries int

	// Tracker timings
	TrackerInitialDelay    time.Duration
	TrackerSettleOffset    time.Duration
	TrackerMinWait         time.Duration
	TrackerPollInterval    time.Duration
	TrackerMaxPollAttempts int

	// HTTP server
	HTTPAddr      string
	AdminToken    string
	AdminUsername string
	AdminPassword string

	// Database (optional)
	DBDsn         string
	EncryptionKey string
	// Token refresh
	TokenRefreshInterval time.Duration
	TokenRefreshWindow   time.Duration

	// Observability
	OTLPEndpoint   string
	ServiceVersion string
	LogLevel       string
	LogFormat      string
	LogFile        string
}

// Load reads environment variables and applies defaults. It doesn't fail if Twitch creds are missing;
// use ValidateChatReady() when you need a chat connection. Malformed durations and numbers are errors.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	cfg.TwitchChannels = splitList(os.Getenv("TWITCH_CHANNELS"))
	cfg.TwitchBotUsername = os.Getenv("TWITCH_BOT_USERNAME")
	cfg.TwitchOAuthToken = os.Getenv("TWITCH_OAUTH_TOKEN")
	cfg.TwitchClientID = os.Getenv("TWITCH_CLIENT_ID")
	cfg.TwitchClientSecret = os.Getenv("TWITCH_CLIENT_SECRET")
	cfg.TwitchRedirectURI = os.Getenv("TWITCH_REDIRECT_URI")
	if cfg.TwitchRedirectURI == "" {
		cfg.TwitchRedirectURI = "http://localhost:3000"
	}

	cfg.Prefix = DefaultPrefix
	if v, ok := os.LookupEnv("BOT_PREFIX"); ok {
		cfg.Prefix = strings.TrimSpace(v)
	}
	cfg.Admins = splitList(os.Getenv("BOT_ADMINS"))

	cfg.StockBaseURL = getenv("STOCK_API_BASE_URL", "https://growagarden.gg")
	if cfg.StockFetchTimeout, err = durationEnv("STOCK_FETCH_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.StockFetchRetries, err = intEnv("STOCK_FETCH_RETRIES", 0); err != nil {
		return nil, err
	}

	if cfg.TrackerInitialDelay, err = durationEnv("TRACKER_INITIAL_DELAY", 3*time.Second); err != nil {
		return nil, err
	}
	if cfg.TrackerSettleOffset, err = durationEnv("TRACKER_SETTLE_OFFSET", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.TrackerMinWait, err = durationEnv("TRACKER_MIN_WAIT", 35*time.Second); err != nil {
		return nil, err
	}
	if cfg.TrackerPollInterval, err = durationEnv("TRACKER_POLL_INTERVAL", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.TrackerMaxPollAttempts, err = intEnv("TRACKER_MAX_POLL_ATTEMPTS", 6); err != nil {
		return nil, err
	}

	cfg.HTTPAddr = getenv("HTTP_ADDR", ":8080")
	cfg.AdminToken = os.Getenv("ADMIN_TOKEN")
	cfg.AdminUsername = os.Getenv("ADMIN_USERNAME")
	cfg.AdminPassword = os.Getenv("ADMIN_PASSWORD")

	cfg.DBDsn = os.Getenv("DB_DSN")
	cfg.EncryptionKey = os.Getenv("ENCRYPTION_KEY")
	if cfg.TokenRefreshInterval, err = durationEnv("TOKEN_REFRESH_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.TokenRefreshWindow, err = durationEnv("TOKEN_REFRESH_WINDOW", 15*time.Minute); err != nil {
		return nil, err
	}

	cfg.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	cfg.ServiceVersion = getenv("SERVICE_VERSION", "dev")
	cfg.LogLevel = getenv("LOG_LEVEL", "info")
	cfg.LogFormat = getenv("LOG_FORMAT", "text")
	cfg.LogFile = os.Getenv("LOG_FILE")

	return cfg, nil
}

// ValidateChatReady checks the fields needed to connect to chat. The token
// may also come from the database, so it is checked only when no DSN is set.
func (c *Config) ValidateChatReady() error {
	var missing []string
	if len(c.TwitchChannels) == 0 {
		missing = append(missing, "TWITCH_CHANNELS")
	}
	if c.TwitchBotUsername == "" {
		missing = append(missing, "TWITCH_BOT_USERNAME")
	}
	if c.TwitchOAuthToken == "" && c.DBDsn == "" {
		missing = append(missing, "TWITCH_OAUTH_TOKEN (or DB_DSN with a stored token)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing twitch env: require %s", strings.Join(missing, ", "))
	}
	return nil
}

// Validate checks value ranges that Load cannot express as defaults.
func (c *Config) Validate() error {
	if c.TrackerMaxPollAttempts < 0 {
		return fmt.Errorf("TRACKER_MAX_POLL_ATTEMPTS must be >= 0, got %d", c.TrackerMaxPollAttempts)
	}
	if c.TrackerPollInterval <= 0 {
		return fmt.Errorf("TRACKER_POLL_INTERVAL must be positive, got %s", c.TrackerPollInterval)
	}
	if c.StockFetchTimeout <= 0 {
		return fmt.Errorf("STOCK_FETCH_TIMEOUT must be positive, got %s", c.StockFetchTimeout)
	}
	if c.StockFetchRetries < 0 {
		return fmt.Errorf("STOCK_FETCH_RETRIES must be >= 0, got %d", c.StockFetchRetries)
	}
	if (c.AdminUsername == "") != (c.AdminPassword == "") {
		return fmt.Errorf("ADMIN_USERNAME and ADMIN_PASSWORD must be set together")
	}
	return nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s (duration): %w", key, err)
	}
	return d, nil
}

func intEnv(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s (integer): %w", key, err)
	}
	return n, nil
}
