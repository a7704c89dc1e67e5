package config

import (
	"fmt"
	"strings"
)

// NormalizationResult captures adjustments & warnings from normalization pass.
type NormalizationResult struct{ Warnings []string }

// NormalizeConfig canonicalizes enumerated fields before defaults are
// applied. Unknown values are replaced by the default and reported.
func NormalizeConfig(c *Config) (*NormalizationResult, error) {
	if c == nil {
		return nil, fmt.Errorf("config nil")
	}
	res := &NormalizationResult{}
	normalizeLogging(&c.Logging, res)
	normalizeWatch(&c.Watch, res)
	c.PDF.Encoding = strings.ToLower(strings.TrimSpace(c.PDF.Encoding))
	c.Metrics.Textfile = strings.TrimSpace(c.Metrics.Textfile)
	c.Metrics.Listen = strings.TrimSpace(c.Metrics.Listen)
	c.Journal.Path = strings.TrimSpace(c.Journal.Path)
	c.Journal.NATSURL = strings.TrimSpace(c.Journal.NATSURL)
	return res, nil
}

func normalizeLogging(l *LoggingConfig, res *NormalizationResult) {
	if lvl := NormalizeLogLevel(string(l.Level)); lvl != "" {
		if l.Level != lvl {
			res.Warnings = append(res.Warnings, warnChanged("logging.level", l.Level, lvl))
			l.Level = lvl
		}
	} else if strings.TrimSpace(string(l.Level)) != "" {
		res.Warnings = append(res.Warnings, warnUnknown("logging.level", string(l.Level), string(LogLevelInfo), logLevelNormalizer.ValidValues()))
		l.Level = LogLevelInfo
	}
	if f := NormalizeLogFormat(string(l.Format)); f != "" {
		if l.Format != f {
			res.Warnings = append(res.Warnings, warnChanged("logging.format", l.Format, f))
			l.Format = f
		}
	} else if strings.TrimSpace(string(l.Format)) != "" {
		res.Warnings = append(res.Warnings, warnUnknown("logging.format", string(l.Format), string(LogFormatText), logFormatNormalizer.ValidValues()))
		l.Format = LogFormatText
	}
}

func normalizeWatch(w *WatchConfig, res *NormalizationResult) {
	if rb := NormalizeRetryBackoff(string(w.RetryBackoff)); rb != "" {
		if w.RetryBackoff != rb {
			res.Warnings = append(res.Warnings, warnChanged("watch.retry_backoff", w.RetryBackoff, rb))
			w.RetryBackoff = rb
		}
	} else if strings.TrimSpace(string(w.RetryBackoff)) != "" {
		res.Warnings = append(res.Warnings, warnUnknown("watch.retry_backoff", string(w.RetryBackoff), string(RetryBackoffLinear), retryBackoffNormalizer.ValidValues()))
		w.RetryBackoff = RetryBackoffLinear
	}
}

func warnChanged(field string, from, to any) string {
	return fmt.Sprintf("normalized %s from '%v' to '%v'", field, from, to)
}

func warnUnknown(field, value, def string, valid []string) string {
	return fmt.Sprintf("unknown %s '%s', defaulting to %s (valid: %s)", field, value, def, strings.Join(valid, ", "))
}
