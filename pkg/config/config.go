package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the trading core.
type Config struct {
	// Deriv
	DerivURL string
	AppID    string
	Token    string
	Symbols  []string

	// Connector tuning
	RequestTimeout    time.Duration
	ReconnectDelay    time.Duration
	RequestsPerSecond float64

	// Storage
	DBPath       string
	AuditLogPath string

	// Trading settings and per-symbol strategy profiles (YAML, optional)
	SettingsPath         string
	StrategyProfilesPath string

	// Optional native safety co-engine (gRPC); empty means in-process
	SafetyEngineAddr string

	// Execution toggle; false runs the full analysis without submitting orders
	ExecutionEnabled bool

	// Portfolio reconciliation; auto sync drops local records the broker
	// no longer lists
	ReconcileInterval time.Duration
	ReconcileAutoSync bool

	HTTPAddr string
	LogLevel string
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	return &Config{
		DerivURL:             getEnv("DERIV_WS_URL", "wss://ws.binaryws.com/websockets/v3"),
		AppID:                getEnv("DERIV_APP_ID", "1089"),
		Token:                os.Getenv("DERIV_TOKEN"),
		Symbols:              splitAndTrim(getEnv("DERIV_SYMBOLS", "R_100,R_50")),
		RequestTimeout:       getEnvDuration("REQUEST_TIMEOUT", 10*time.Second),
		ReconnectDelay:       getEnvDuration("RECONNECT_DELAY", 5*time.Second),
		RequestsPerSecond:    getEnvFloat("REQUESTS_PER_SECOND", 20),
		DBPath:               getEnv("DB_PATH", "./data/deriv.db"),
		AuditLogPath:         getEnv("AUDIT_LOG_PATH", "./logs/audit.log"),
		SettingsPath:         os.Getenv("SETTINGS_PATH"),
		StrategyProfilesPath: os.Getenv("STRATEGY_PROFILES_PATH"),
		SafetyEngineAddr:     os.Getenv("SAFETY_ENGINE_ADDR"),
		ExecutionEnabled:     getEnv("EXECUTION_ENABLED", "true") == "true",
		ReconcileInterval:    getEnvDuration("RECONCILE_INTERVAL", time.Minute),
		ReconcileAutoSync:    getEnv("RECONCILE_AUTO_SYNC", "true") == "true",
		HTTPAddr:             getEnv("HTTP_ADDR", ":8080"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
	}, nil
}

// EndpointURL returns the websocket URL with the app_id query parameter applied.
func (c *Config) EndpointURL() string {
	u, err := url.Parse(c.DerivURL)
	if err != nil {
		return c.DerivURL
	}
	q := u.Query()
	if c.AppID != "" {
		q.Set("app_id", c.AppID)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitAndTrim(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// SplitSymbols normalizes a comma separated symbol list (used by CLI flags).
func SplitSymbols(val string) []string {
	return splitAndTrim(val)
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

// getEnvDuration accepts Go durations ("10s") or plain seconds ("10").
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs := getEnvInt(key, -1); secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return def
}
