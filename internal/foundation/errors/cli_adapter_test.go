package errors

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "nil error", err: nil, expected: 0},
		{name: "validation", err: ValidationError("overlap").Build(), expected: 2},
		{name: "not found", err: NewError(CategoryNotFound, "no adapter").Build(), expected: 4},
		{name: "config", err: ConfigError("bad yaml").Build(), expected: 7},
		{name: "format", err: FormatError("broken zip").Build(), expected: 9},
		{name: "encoding", err: EncodingError("unknown charset").Build(), expected: 9},
		{name: "internal", err: InternalError("bug").Build(), expected: 10},
		{name: "filesystem", err: FileSystemError("disk full").Build(), expected: 11},
		{name: "runtime", err: RuntimeError("watcher").Build(), expected: 12},
		{name: "plain error", err: errors.New("boom"), expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, adapter.ExitCodeFor(tt.err))
		})
	}
}

func TestCLIErrorAdapter_FormatError(t *testing.T) {
	quiet := NewCLIErrorAdapter(false, nil)
	verbose := NewCLIErrorAdapter(true, nil)

	internal := InternalError("index corrupted").Build()
	assert.Equal(t, "Internal error occurred (use -v for details)", quiet.FormatError(internal))
	assert.Contains(t, verbose.FormatError(internal), "index corrupted")

	validation := ValidationError("alteration rejected").Build()
	assert.Contains(t, quiet.FormatError(validation), "alteration rejected")
	assert.Equal(t, "Error: boom", quiet.FormatError(errors.New("boom")))
	assert.Empty(t, quiet.FormatError(nil))
}

func TestCLIErrorAdapter_HandleError(t *testing.T) {
	var logs, out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	adapter := NewCLIErrorAdapter(true, logger)
	adapter.out = &out

	code := adapter.HandleError(FormatError("broken zip").WithContext("path", "a.docx").Build())

	assert.Equal(t, 9, code)
	assert.Contains(t, out.String(), "broken zip")
	assert.Contains(t, logs.String(), "category=format")
	assert.Contains(t, logs.String(), "path=a.docx")
	assert.Equal(t, 0, adapter.HandleError(nil))
}
