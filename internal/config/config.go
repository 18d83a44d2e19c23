package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	RippledRPCURL         string
	RippledWSURL          string
	WSOrigin              string
	RPCRetryMax           int
	RPCRetryBaseDelay     time.Duration
	StreamReconnectDelay  time.Duration
	EventBuffer           int
	HistoryLimit          int
	HistoryDedup          bool
	BackfillMinLedger     int64
	BackfillMaxLedger     int64
	JournalDir            string
	DatabaseURL           string
	CaptureInterval       time.Duration
	HTTPPort              string
	AdminAPIKey           string
	GoogleCredentialsJSON string
	GoogleSpreadsheetID   string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	return Config{
		RippledRPCURL:         envOrDefault("RIPPLED_RPC_URL", "http://localhost:5005"),
		RippledWSURL:          envOrDefault("RIPPLED_WS_URL", "ws://localhost:6006"),
		WSOrigin:              envOrDefault("RIPPLED_WS_ORIGIN", "http://localhost/"),
		RPCRetryMax:           envOrDefaultInt("RPC_RETRY_MAX", 5),
		RPCRetryBaseDelay:     envOrDefaultDuration("RPC_RETRY_BASE_DELAY", 2*time.Second),
		StreamReconnectDelay:  envOrDefaultDuration("STREAM_RECONNECT_DELAY", 2*time.Second),
		EventBuffer:           envOrDefaultInt("EVENT_BUFFER", 256),
		HistoryLimit:          envOrDefaultInt("HISTORY_LIMIT", 0),
		HistoryDedup:          envOrDefaultBool("HISTORY_DEDUP", true),
		BackfillMinLedger:     envOrDefaultInt64("BACKFILL_MIN_LEDGER", -1),
		BackfillMaxLedger:     envOrDefaultInt64("BACKFILL_MAX_LEDGER", -1),
		JournalDir:            envOrDefault("JOURNAL_DIR", "./wal"),
		DatabaseURL:           envOrDefault("DATABASE_URL", ""),
		CaptureInterval:       envOrDefaultDuration("CAPTURE_INTERVAL", time.Hour),
		HTTPPort:              envOrDefault("HTTP_PORT", "8080"),
		AdminAPIKey:           envOrDefault("ADMIN_API_KEY", ""),
		GoogleCredentialsJSON: envOrDefault("GOOGLE_CREDENTIALS_JSON", ""),
		GoogleSpreadsheetID:   envOrDefault("GOOGLE_SPREADSHEET_ID", ""),
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("invalid integer env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return n
	}
	return defaultVal
}

func envOrDefaultInt64(key string, defaultVal int64) int64 {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			slog.Warn("invalid integer env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return n
	}
	return defaultVal
}

func envOrDefaultBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			slog.Warn("invalid boolean env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return b
	}
	return defaultVal
}

func envOrDefaultDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Warn("invalid duration env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return d
	}
	return defaultVal
}
