package commands

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	ferrors "git.home.luguber.info/inful/exposetext/internal/foundation/errors"
	"git.home.luguber.info/inful/exposetext/internal/logfields"
	"git.home.luguber.info/inful/exposetext/internal/metrics"
	"git.home.luguber.info/inful/exposetext/internal/plan"
	"git.home.luguber.info/inful/exposetext/internal/retry"
	"git.home.luguber.info/inful/exposetext/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Path     string        `arg:"" help:"Document to alter"`
	Plan     string        `short:"p" required:"" help:"Alteration plan (YAML)"`
	Output   string        `short:"o" required:"" help:"Where the altered document is written"`
	Format   string        `short:"f" help:"Format key overriding the file extension, for example .md"`
	Listen   string        `help:"Serve Prometheus metrics on this address, overriding metrics.listen"`
	Interval time.Duration `help:"Also re-apply at this interval, overriding watch.interval"`
}

func (w *WatchCmd) Run(_ *Global, root *CLI) error {
	if err := w.validate(); err != nil {
		return err
	}
	s, err := root.session()
	if err != nil {
		return err
	}
	defer s.close()
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return w.run(ctx, s)
}

// validate rejects outputs that would retrigger the watcher.
func (w *WatchCmd) validate() error {
	if w.Output == "-" {
		return ferrors.ValidationError("watch cannot write to stdout").Build()
	}
	out, err := filepath.Abs(w.Output)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryValidation, "invalid output path").Build()
	}
	for _, in := range []string{w.Path, w.Plan} {
		if abs, err := filepath.Abs(in); err == nil && abs == out {
			return ferrors.ValidationError("output must differ from the watched files").
				WithContext("output", w.Output).
				Build()
		}
	}
	return nil
}

func (w *WatchCmd) run(ctx context.Context, s *session) error {
	interval := s.cfg.Watch.Interval
	if w.Interval > 0 {
		interval = w.Interval
	}
	watcher, err := watch.New([]string{w.Path, w.Plan}, func(ctx context.Context) error {
		p, err := plan.Load(w.Plan)
		if err == nil {
			var n int
			_, n, err = s.apply(ctx, w.Path, w.Format, p, w.Output, nil)
			if err == nil {
				slog.Debug("Plan applied", logfields.Alterations(n), logfields.Path(w.Output))
			}
		}
		if ferr := s.flush(); err == nil {
			err = ferr
		}
		return err
	},
		watch.WithDebounce(s.cfg.Watch.Debounce),
		watch.WithInterval(interval),
		watch.WithPolicy(retry.FromConfig(s.cfg.Watch)),
		watch.WithLogger(slog.Default()),
		watch.WithRecorder(s.recorder),
	)
	if err != nil {
		return err
	}

	listen := s.cfg.Metrics.Listen
	if w.Listen != "" {
		listen = w.Listen
	}
	if listen != "" {
		stop := serveMetrics(listen, s)
		defer stop()
	}
	return watcher.Run(ctx)
}

// serveMetrics serves /metrics in the background and returns a function
// shutting the server down.
func serveMetrics(addr string, s *session) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(s.registry))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		slog.Info("Serving metrics", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server failed", logfields.Error(err))
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Warn("Metrics server shutdown", logfields.Error(err))
		}
	}
}
