// Package commands implements the exposetext subcommands.
package commands

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/exposetext/internal/config"
	"git.home.luguber.info/inful/exposetext/internal/document"
	"git.home.luguber.info/inful/exposetext/internal/eventstore"
	ferrors "git.home.luguber.info/inful/exposetext/internal/foundation/errors"
	"git.home.luguber.info/inful/exposetext/internal/logfields"
	"git.home.luguber.info/inful/exposetext/internal/metrics"
	"git.home.luguber.info/inful/exposetext/internal/plan"
)

// Global carries state shared by all subcommands.
type Global struct {
	Out io.Writer
}

// CLI definition & global flags - used by commands that need access to root config.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"exposetext.yaml" env:"EXPOSETEXT_CONFIG"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Text    TextCmd    `cmd:"" help:"Print the plain text of a document"`
	Apply   ApplyCmd   `cmd:"" help:"Apply alterations to the text of a document"`
	Watch   WatchCmd   `cmd:"" help:"Re-apply a plan whenever the document or the plan changes"`
	History HistoryCmd `cmd:"" help:"Show the journal of recent apply runs"`
	Formats FormatsCmd `cmd:"" help:"List supported document formats"`
	Init    InitCmd    `cmd:"" help:"Initialize a new configuration file"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

// Load reads the configuration and reconfigures logging from it. The
// verbose flag wins over the configured level.
func (c *CLI) Load() (*config.Config, error) {
	cfg, res, err := config.Load(c.Config)
	if err != nil {
		return nil, err
	}
	level := cfg.Logging.Level.Slog()
	if c.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(cfg.Logging.NewLogger(os.Stderr, level))
	for _, w := range res.Warnings {
		slog.Warn("Configuration normalized", slog.String("warning", w))
	}
	return cfg, nil
}

// session holds what one command invocation shares across documents.
type session struct {
	cfg      *config.Config
	registry *prom.Registry
	recorder *metrics.PrometheusRecorder
	journal  eventstore.Store
	events   *eventstore.NATSPublisher
}

func (c *CLI) session() (*session, error) {
	cfg, err := c.Load()
	if err != nil {
		return nil, err
	}
	reg := prom.NewRegistry()
	s := &session{cfg: cfg, registry: reg, recorder: metrics.NewPrometheusRecorder(reg)}
	if cfg.Journal.Path != "" {
		if s.journal, err = eventstore.NewSQLiteStore(cfg.Journal.Path); err != nil {
			return nil, err
		}
	}
	if cfg.Journal.NATSURL != "" {
		if s.events, err = eventstore.NewNATSPublisher(cfg.Journal.NATSURL, cfg.Journal.Subject); err != nil {
			s.close()
			return nil, err
		}
	}
	return s, nil
}

// close releases the journal and the NATS connection.
func (s *session) close() {
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			slog.Warn("Error closing journal", logfields.Error(err))
		}
	}
	if s.events != nil {
		if err := s.events.Close(); err != nil {
			slog.Warn("Error closing NATS connection", logfields.Error(err))
		}
	}
}

// open loads path, by its extension unless key is set.
func (s *session) open(path, key string) (*document.Document, error) {
	opts := []document.Option{
		document.WithLogger(slog.Default()),
		document.WithRecorder(s.recorder),
		document.WithTagSeparator(s.cfg.Markup.TagSeparator),
		document.WithPDFEncoding(s.cfg.PDF.Encoding),
	}
	if key != "" {
		return document.OpenAs(path, key, opts...)
	}
	return document.Open(path, opts...)
}

// apply queues p on the document at path, applies it and writes the result
// to output, "-" meaning out. Runs on a loaded document are journaled.
func (s *session) apply(ctx context.Context, path, key string, p *plan.Plan, output string, out io.Writer) (*document.Document, int, error) {
	d, err := s.open(path, key)
	if err != nil {
		return nil, 0, err
	}
	n, err := s.write(d, p, output, out)
	s.record(ctx, d, path, eventstore.Applied{Output: output, Alterations: n, TextLen: len([]rune(d.Text()))}, err)
	return d, n, err
}

// record journals an apply run. Journal failures are logged and never fail
// the run.
func (s *session) record(ctx context.Context, d *document.Document, path string, a eventstore.Applied, err error) {
	if s.journal == nil && s.events == nil {
		return
	}
	e, jerr := eventstore.NewApplied(d.ID(), path, d.Format(), a, err)
	if jerr != nil {
		slog.Warn("Cannot encode journal event", logfields.SessionID(d.ID()), logfields.Error(jerr))
		return
	}
	e.Timestamp = time.Now()
	if s.journal != nil {
		if jerr := s.journal.Append(ctx, e); jerr != nil {
			slog.Warn("Cannot journal apply run", logfields.SessionID(d.ID()), logfields.Error(jerr))
		}
	}
	if s.events != nil {
		if jerr := s.events.Publish(ctx, e); jerr != nil {
			slog.Warn("Cannot publish apply run", logfields.SessionID(d.ID()), logfields.Error(jerr))
		}
	}
}

func (s *session) write(d *document.Document, p *plan.Plan, output string, out io.Writer) (int, error) {
	n, err := p.Queue(d)
	if err != nil {
		return n, err
	}
	if err := d.ApplyAlters(); err != nil {
		return n, err
	}
	if output == "-" {
		data, err := d.Bytes()
		if err != nil {
			return n, err
		}
		if _, err := out.Write(data); err != nil {
			return n, ferrors.WrapError(err, ferrors.CategoryFileSystem, "cannot write output").Build()
		}
		return n, nil
	}
	return n, d.Save(output)
}

// flush writes the metrics textfile when one is configured.
func (s *session) flush() error {
	path := s.cfg.Metrics.Textfile
	if path == "" {
		return nil
	}
	if err := metrics.WriteTextfile(path, s.registry); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "cannot write metrics textfile").
			WithContext("path", path).
			Build()
	}
	slog.Debug("Metrics written", logfields.Path(path))
	return nil
}

// finish records the operation outcome and flushes metrics. The operation
// error takes precedence over a flush error.
func (s *session) finish(operation string, err error) error {
	s.recorder.IncOperation(operation, metrics.ResultOf(err))
	if ferr := s.flush(); err == nil {
		return ferr
	}
	return err
}
