// Package document wraps a loaded format with a session identity, logging
// and metrics, and handles reading from and writing to files.
package document

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/exposetext/internal/format"
	"git.home.luguber.info/inful/exposetext/internal/format/docx"
	"git.home.luguber.info/inful/exposetext/internal/format/html"
	"git.home.luguber.info/inful/exposetext/internal/format/markdown"
	"git.home.luguber.info/inful/exposetext/internal/format/pdf"
	"git.home.luguber.info/inful/exposetext/internal/format/txt"
	ferrors "git.home.luguber.info/inful/exposetext/internal/foundation/errors"
	"git.home.luguber.info/inful/exposetext/internal/logfields"
	"git.home.luguber.info/inful/exposetext/internal/metrics"
)

// DefaultRegistry returns a registry with every built-in format.
func DefaultRegistry() *format.Registry {
	r := format.NewRegistry()
	r.Register(".txt", txt.New)
	r.Register(".html", html.New)
	r.Register(".htm", html.New)
	r.Register(".md", markdown.New)
	r.Register(".markdown", markdown.New)
	r.Register(".docx", docx.New)
	r.Register(".pdf", pdf.New)
	return r
}

// Option configures a Document.
type Option func(*settings)

type settings struct {
	registry *format.Registry
	opts     format.Options
	recorder metrics.Recorder
	now      func() time.Time
}

// WithRegistry selects formats from r instead of DefaultRegistry.
func WithRegistry(r *format.Registry) Option {
	return func(s *settings) { s.registry = r }
}

// WithLogger sets the logger of the session and its format.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.opts.Logger = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(s *settings) { s.recorder = r }
}

// WithTagSeparator sets the separator of re-inserted markup tags.
func WithTagSeparator(sep string) Option {
	return func(s *settings) { s.opts.TagSeparator = sep }
}

// WithPDFEncoding sets the single-byte encoding of PDF strings.
func WithPDFEncoding(name string) Option {
	return func(s *settings) { s.opts.PDFEncoding = name }
}

// Document is one editing session on a document.
type Document struct {
	id       string
	key      string
	f        format.Format
	logger   *slog.Logger
	recorder metrics.Recorder
	now      func() time.Time
}

// New loads raw as the format registered for key (a file extension).
func New(raw []byte, key string, options ...Option) (*Document, error) {
	s := settings{recorder: metrics.NoopRecorder{}, now: time.Now}
	for _, o := range options {
		o(&s)
	}
	if s.registry == nil {
		s.registry = DefaultRegistry()
	}

	key = format.NormalizeKey(key)
	id := uuid.NewString()
	logger := s.opts.Log().With(logfields.SessionID(id), logfields.Format(key))
	s.opts.Logger = logger

	start := s.now()
	f, err := s.registry.Load(key, raw, s.opts)
	elapsed := s.now().Sub(start)
	s.recorder.ObserveLoad(key, elapsed, metrics.ResultOf(err))
	if err != nil {
		return nil, err
	}
	logger.Debug("Document loaded",
		logfields.TextLen(len(f.Text())),
		logfields.DurationMS(elapsed))

	return &Document{id: id, key: key, f: f, logger: logger, recorder: s.recorder, now: s.now}, nil
}

// Open reads path and loads it by its extension.
func Open(path string, options ...Option) (*Document, error) {
	return OpenAs(path, filepath.Ext(path), options...)
}

// OpenAs reads path and loads it as the format registered for key.
func OpenAs(path, key string, options ...Option) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "cannot read document").
			WithContext("path", path).
			Build()
	}
	d, err := New(raw, key, options...)
	if err != nil {
		return nil, err
	}
	d.logger = d.logger.With(logfields.Path(path))
	return d, nil
}

// ID returns the session identifier used in logs.
func (d *Document) ID() string { return d.id }

// Format returns the normalized format key.
func (d *Document) Format() string { return d.key }

// Unwrap returns the underlying format implementation.
func (d *Document) Unwrap() format.Format { return d.f }

// Text returns the distilled text.
func (d *Document) Text() string { return d.f.Text() }

// AddAlter queues the replacement of the runes [start,end) of Text.
func (d *Document) AddAlter(start, end int, text string) error {
	return d.f.AddAlter(start, end, text)
}

// Pending returns the number of queued alterations.
func (d *Document) Pending() int { return d.f.Pending() }

// ApplyAlters applies the queued alterations.
func (d *Document) ApplyAlters() error {
	n := d.f.Pending()
	start := d.now()
	err := d.f.ApplyAlters()
	elapsed := d.now().Sub(start)
	d.recorder.ObserveApply(d.key, n, elapsed, metrics.ResultOf(err))
	if err != nil {
		d.logger.Debug("Apply failed", logfields.Alterations(n), logfields.Error(err))
		return err
	}
	d.logger.Debug("Alterations applied",
		logfields.Alterations(n),
		logfields.TextLen(len(d.f.Text())),
		logfields.DurationMS(elapsed))
	return nil
}

// Bytes serializes the document.
func (d *Document) Bytes() ([]byte, error) { return d.f.Bytes() }

// Save writes the serialized document to path through a temporary file in
// the same directory, keeping the mode of an existing file.
func (d *Document) Save(path string) error {
	data, err := d.f.Bytes()
	if err != nil {
		return err
	}
	mode := os.FileMode(0o644)
	if info, statErr := os.Stat(path); statErr == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return saveError(err, path)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return saveError(err, path)
	}
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return saveError(err, path)
	}
	if err := tmp.Close(); err != nil {
		return saveError(err, path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return saveError(err, path)
	}
	d.logger.Info("Document saved", logfields.Path(path))
	return nil
}

func saveError(err error, path string) error {
	return ferrors.WrapError(err, ferrors.CategoryFileSystem, "cannot write document").
		WithContext("path", path).
		Build()
}
