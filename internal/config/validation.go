package config

import (
	"net"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"

	ferrors "git.home.luguber.info/inful/exposetext/internal/foundation/errors"
)

// ValidateConfig checks a normalized configuration with defaults applied.
func ValidateConfig(cfg *Config) error {
	enc, err := htmlindex.Get(cfg.PDF.Encoding)
	if err != nil {
		return ferrors.ConfigError("unknown pdf.encoding").
			WithContext("encoding", cfg.PDF.Encoding).
			Build()
	}
	if _, ok := enc.(*charmap.Charmap); !ok {
		return ferrors.ConfigError("pdf.encoding must be a single byte encoding").
			WithContext("encoding", cfg.PDF.Encoding).
			Build()
	}
	if cfg.Watch.Debounce < 0 {
		return ferrors.ConfigError("watch.debounce must not be negative").
			WithContext("debounce", cfg.Watch.Debounce.String()).
			Build()
	}
	if cfg.Watch.Interval < 0 {
		return ferrors.ConfigError("watch.interval must not be negative").Build()
	}
	if cfg.Watch.RetryInitialDelay < 0 || cfg.Watch.RetryMaxDelay < 0 {
		return ferrors.ConfigError("watch retry delays must not be negative").Build()
	}
	if cfg.Metrics.Listen != "" {
		if _, _, err := net.SplitHostPort(cfg.Metrics.Listen); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryConfig, "invalid metrics.listen address").
				WithContext("listen", cfg.Metrics.Listen).
				Fatal().
				Build()
		}
	}
	return nil
}
