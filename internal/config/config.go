// Package config loads the exposetext configuration: a YAML file, optional
// .env files and EXPOSETEXT_* environment overrides.
package config

import (
	"bytes"
	"errors"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/exposetext/internal/foundation/errors"
)

// DefaultPath is the configuration file looked up when none is given.
const DefaultPath = "exposetext.yaml"

// Config represents the application configuration.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Markup  MarkupConfig  `yaml:"markup"`
	PDF     PDFConfig     `yaml:"pdf"`
	Metrics MetricsConfig `yaml:"metrics"`
	Watch   WatchConfig   `yaml:"watch"`
	Journal JournalConfig `yaml:"journal"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// MarkupConfig tunes the rewriting of HTML and DOCX markup.
type MarkupConfig struct {
	// TagSeparator joins tags re-inserted after a replacement.
	TagSeparator string `yaml:"tag_separator"`
}

// PDFConfig tunes the PDF format.
type PDFConfig struct {
	// Encoding is the single-byte encoding of PDF text strings.
	Encoding string `yaml:"encoding"`
}

// MetricsConfig enables Prometheus metrics.
type MetricsConfig struct {
	// Textfile is written in the node exporter textfile format after each run.
	Textfile string `yaml:"textfile,omitempty"`
	// Listen serves /metrics while watching, for example ":9464".
	Listen string `yaml:"listen,omitempty"`
}

// JournalConfig enables the SQLite journal of apply runs and publishing
// its events to NATS.
type JournalConfig struct {
	// Path of the database; empty disables the journal.
	Path string `yaml:"path,omitempty"`
	// NATSURL publishes every journal event when set.
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// WatchConfig tunes the watch command.
type WatchConfig struct {
	// Debounce coalesces bursts of file events.
	Debounce time.Duration `yaml:"debounce"`
	// Interval re-applies periodically even without file events; zero disables.
	Interval time.Duration `yaml:"interval,omitempty"`
	// A document caught mid-write fails to load; it is retried with backoff.
	RetryBackoff      RetryBackoffMode `yaml:"retry_backoff"`
	RetryInitialDelay time.Duration    `yaml:"retry_initial_delay"`
	RetryMaxDelay     time.Duration    `yaml:"retry_max_delay"`
	// MaxRetries of zero selects the default; a negative value disables retries.
	MaxRetries int `yaml:"max_retries"`
}

// Load reads the configuration at path. A missing file yields the defaults.
// Environment files are loaded first so ${VAR} references and overrides see
// them.
func Load(path string) (*Config, *NormalizationResult, error) {
	loadEnvFiles()

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "cannot read configuration").
			WithContext("path", path).
			Build()
	default:
		if err := decode([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, nil, ferrors.WrapError(err, ferrors.CategoryConfig, "invalid configuration").
				WithContext("path", path).
				Fatal().
				Build()
		}
	}

	applyEnvOverrides(cfg)
	res, err := NormalizeConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	ApplyDefaults(cfg)
	if err := ValidateConfig(cfg); err != nil {
		return nil, nil, err
	}
	return cfg, res, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Init writes a configuration file holding the defaults. An existing file is
// only replaced when force is set.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return ferrors.ConfigError("configuration file already exists").
			WithContext("path", path).
			UserAction().
			Build()
	}
	cfg := Defaults()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "cannot encode configuration").Build()
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // configuration is not secret
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "cannot write configuration").
			WithContext("path", path).
			Build()
	}
	return nil
}
