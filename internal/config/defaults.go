package config

import "time"

// Default values.
const (
	DefaultTagSeparator = "\n"
	DefaultPDFEncoding  = "windows-1252"
	DefaultDebounce     = 300 * time.Millisecond
	DefaultRetryInitial = 200 * time.Millisecond
	DefaultRetryMax     = 2 * time.Second
	DefaultMaxRetries   = 2
	DefaultSubject      = "exposetext.events"
)

// Defaults returns a configuration with every default applied.
func Defaults() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills unset fields.
func ApplyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = LogLevelInfo
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = LogFormatText
	}
	if cfg.Markup.TagSeparator == "" {
		cfg.Markup.TagSeparator = DefaultTagSeparator
	}
	if cfg.PDF.Encoding == "" {
		cfg.PDF.Encoding = DefaultPDFEncoding
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = DefaultDebounce
	}
	if cfg.Journal.NATSURL != "" && cfg.Journal.Subject == "" {
		cfg.Journal.Subject = DefaultSubject
	}
	if cfg.Watch.RetryBackoff == "" {
		cfg.Watch.RetryBackoff = RetryBackoffLinear
	}
	if cfg.Watch.RetryInitialDelay == 0 {
		cfg.Watch.RetryInitialDelay = DefaultRetryInitial
	}
	if cfg.Watch.RetryMaxDelay == 0 {
		cfg.Watch.RetryMaxDelay = DefaultRetryMax
	}
	if cfg.Watch.MaxRetries == 0 {
		cfg.Watch.MaxRetries = DefaultMaxRetries
	}
}
