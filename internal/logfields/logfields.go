package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeySessionID   = "session_id"
	KeyFormat      = "format"
	KeyPath        = "path"
	KeyAlterations = "alterations"
	KeyTextLen     = "text_len"
	KeyDurationMS  = "duration_ms"
	KeyRule        = "rule"
	KeyStream      = "stream"
	KeyOperation   = "operation"
	KeyError       = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func SessionID(id string) slog.Attr { return slog.String(KeySessionID, id) }
func Format(key string) slog.Attr   { return slog.String(KeyFormat, key) }
func Path(p string) slog.Attr       { return slog.String(KeyPath, p) }
func Alterations(n int) slog.Attr   { return slog.Int(KeyAlterations, n) }
func TextLen(n int) slog.Attr       { return slog.Int(KeyTextLen, n) }
func Rule(name string) slog.Attr    { return slog.String(KeyRule, name) }
func Stream(obj int) slog.Attr      { return slog.Int(KeyStream, obj) }
func Operation(op string) slog.Attr { return slog.String(KeyOperation, op) }

// DurationMS reports d in fractional milliseconds.
func DurationMS(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMS, float64(d.Microseconds())/1000)
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
