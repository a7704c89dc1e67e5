package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables that override the configuration file.
const (
	EnvLogLevel     = "EXPOSETEXT_LOG_LEVEL"
	EnvLogFormat    = "EXPOSETEXT_LOG_FORMAT"
	EnvPDFEncoding  = "EXPOSETEXT_PDF_ENCODING"
	EnvMetricsFile  = "EXPOSETEXT_METRICS_FILE"
	EnvTagSeparator = "EXPOSETEXT_TAG_SEPARATOR"
	EnvDebounce     = "EXPOSETEXT_WATCH_DEBOUNCE"
	EnvJournal      = "EXPOSETEXT_JOURNAL"
	EnvNATSURL      = "EXPOSETEXT_NATS_URL"
)

var envFiles = []string{".env", ".env.local"}

// loadEnvFiles loads the .env files that exist. Variables already set in the
// process environment are kept.
func loadEnvFiles() {
	for _, path := range envFiles {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		_ = godotenv.Load(path)
	}
}

func applyEnvOverrides(cfg *Config) {
	if v, ok := lookup(EnvLogLevel); ok {
		cfg.Logging.Level = LogLevel(v)
	}
	if v, ok := lookup(EnvLogFormat); ok {
		cfg.Logging.Format = LogFormat(v)
	}
	if v, ok := lookup(EnvPDFEncoding); ok {
		cfg.PDF.Encoding = v
	}
	if v, ok := lookup(EnvMetricsFile); ok {
		cfg.Metrics.Textfile = v
	}
	if v, ok := lookup(EnvJournal); ok {
		cfg.Journal.Path = v
	}
	if v, ok := lookup(EnvNATSURL); ok {
		cfg.Journal.NATSURL = v
	}
	if v, ok := os.LookupEnv(EnvTagSeparator); ok && v != "" {
		cfg.Markup.TagSeparator = v
	}
	if v, ok := lookup(EnvDebounce); ok {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Watch.Debounce = d
		}
	}
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}
