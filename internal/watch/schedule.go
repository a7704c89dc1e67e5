package watch

import (
	"time"

	"github.com/go-co-op/gocron/v2"

	ferrors "git.home.luguber.info/inful/exposetext/internal/foundation/errors"
)

// newSchedule starts a scheduler calling fn every interval.
func newSchedule(interval time.Duration, fn func()) (gocron.Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryRuntime, "failed to create scheduler").Build()
	}
	if _, err := s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(fn),
		gocron.WithName("periodic-apply"),
	); err != nil {
		_ = s.Shutdown()
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to schedule periodic apply").
			WithContext("interval", interval.String()).
			Build()
	}
	s.Start()
	return s, nil
}
