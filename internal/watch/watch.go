// Package watch re-runs an action whenever watched files change.
//
// Events are debounced and runs never overlap: events arriving during a run
// schedule exactly one more run after it.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	ferrors "git.home.luguber.info/inful/exposetext/internal/foundation/errors"
	"git.home.luguber.info/inful/exposetext/internal/logfields"
	"git.home.luguber.info/inful/exposetext/internal/metrics"
	"git.home.luguber.info/inful/exposetext/internal/retry"
)

// DefaultDebounce is used when no debounce is configured.
const DefaultDebounce = 300 * time.Millisecond

// RunFunc is the action executed on changes.
type RunFunc func(ctx context.Context) error

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets how long the watcher waits for events to settle.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d >= 0 {
			w.debounce = d
		}
	}
}

// WithInterval additionally runs the action every d; zero disables.
func WithInterval(d time.Duration) Option {
	return func(w *Watcher) { w.interval = d }
}

// WithPolicy sets the retry policy for transient failures.
func WithPolicy(p retry.Policy) Option {
	return func(w *Watcher) { w.policy = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithRecorder counts runs as the "watch" operation.
func WithRecorder(r metrics.Recorder) Option {
	return func(w *Watcher) { w.recorder = r }
}

// Watcher runs an action once at start and again after every change of one
// of its paths.
type Watcher struct {
	paths    []string
	targets  map[string]struct{}
	run      RunFunc
	debounce time.Duration
	interval time.Duration
	policy   retry.Policy
	logger   *slog.Logger
	recorder metrics.Recorder
	tick     chan struct{}
}

// New creates a watcher for paths. Paths need not exist yet; their parent
// directories must.
func New(paths []string, run RunFunc, opts ...Option) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, ferrors.ValidationError("nothing to watch").Build()
	}
	w := &Watcher{
		targets:  make(map[string]struct{}, len(paths)),
		run:      run,
		debounce: DefaultDebounce,
		policy:   retry.DefaultPolicy(),
		logger:   slog.Default(),
		recorder: metrics.NoopRecorder{},
		tick:     make(chan struct{}, 1),
	}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "cannot resolve path").
				WithContext("path", p).
				Build()
		}
		if _, dup := w.targets[abs]; dup {
			continue
		}
		w.targets[abs] = struct{}{}
		w.paths = append(w.paths, abs)
	}
	for _, o := range opts {
		o(w)
	}
	return w, nil
}

// Paths returns the absolute watched paths.
func (w *Watcher) Paths() []string { return w.paths }

// Run blocks until ctx is done or a run fails fatally. Failed runs that are
// not fatal are logged and the watcher keeps going.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryRuntime, "failed to create file watcher").Build()
	}
	defer func() {
		if cerr := fw.Close(); cerr != nil {
			w.logger.Warn("Error closing file watcher", logfields.Error(cerr))
		}
	}()

	added := map[string]struct{}{}
	for _, p := range w.paths {
		dir := filepath.Dir(p)
		if _, ok := added[dir]; ok {
			continue
		}
		// Watching the directory survives editors that replace files.
		if err := fw.Add(dir); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryFileSystem, fmt.Sprintf("failed to watch directory %s", dir)).
				WithContext("path", dir).
				Build()
		}
		added[dir] = struct{}{}
	}

	if w.interval > 0 {
		sched, err := newSchedule(w.interval, w.trigger)
		if err != nil {
			return err
		}
		defer func() {
			if serr := sched.Shutdown(); serr != nil {
				w.logger.Warn("Error stopping schedule", logfields.Error(serr))
			}
		}()
	}

	w.logger.Info("Watching for changes", slog.Any("paths", w.paths), slog.Duration("debounce", w.debounce))
	if err := w.runOnce(ctx); err != nil {
		return err
	}

	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if w.relevant(ev) {
				w.logger.Debug("Change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
				settle = time.After(w.debounce)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("File watcher error", logfields.Error(err))
		case <-settle:
			settle = nil
			if err := w.runOnce(ctx); err != nil {
				return err
			}
		case <-w.tick:
			if err := w.runOnce(ctx); err != nil {
				return err
			}
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	_, ok := w.targets[filepath.Clean(ev.Name)]
	return ok
}

// trigger requests a run without blocking; a pending request absorbs it.
func (w *Watcher) trigger() {
	select {
	case w.tick <- struct{}{}:
	default:
	}
}

func (w *Watcher) runOnce(ctx context.Context) error {
	start := time.Now()
	err := w.policy.Do(ctx, Retryable, func() error { return w.run(ctx) })
	w.recorder.IncOperation("watch", metrics.ResultOf(err))
	if err == nil {
		w.logger.Info("Re-applied", logfields.DurationMS(time.Since(start)))
		return nil
	}
	if ctx.Err() != nil {
		return nil
	}
	if ce, ok := ferrors.AsClassified(err); ok && ce.IsFatal() {
		return err
	}
	w.logger.Error("Re-apply failed", logfields.Error(err))
	return nil
}

// Retryable reports whether err may be caused by a file caught mid-write.
func Retryable(err error) bool {
	return ferrors.HasCategory(err, ferrors.CategoryFormat) ||
		ferrors.HasCategory(err, ferrors.CategoryEncoding) ||
		ferrors.HasCategory(err, ferrors.CategoryFileSystem)
}
