// internal/app/system/workers/dailyreset.go
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/pickuphub/internal/app/core/lifecycle"
	"go.uber.org/zap"
)

// DailyReset is a background worker that returns every student to the
// start-of-day status once per day at a fixed local hour. The reset itself
// is idempotent, so a missed or doubled firing is harmless.
type DailyReset struct {
	svc    *lifecycle.Service
	log    *zap.Logger
	hour   int // local hour 0-23 at which to fire
	loc    *time.Location
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewDailyReset creates a daily reset worker firing at the given hour in
// the given location.
func NewDailyReset(svc *lifecycle.Service, logger *zap.Logger, hour int, loc *time.Location) *DailyReset {
	if loc == nil {
		loc = time.Local
	}
	return &DailyReset{
		svc:    svc,
		log:    logger,
		hour:   hour,
		loc:    loc,
		stopCh: make(chan struct{}),
	}
}

// Start begins the background reset loop.
func (w *DailyReset) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("daily reset worker started",
		zap.Int("hour", w.hour),
		zap.String("location", w.loc.String()))
}

// Stop signals the worker to stop and waits for it to finish.
func (w *DailyReset) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("daily reset worker stopped")
}

func (w *DailyReset) run() {
	defer w.wg.Done()

	for {
		timer := time.NewTimer(time.Until(w.nextFiring(time.Now())))
		select {
		case <-w.stopCh:
			timer.Stop()
			return
		case <-timer.C:
			w.reset()
		}
	}
}

// nextFiring returns the next wall-clock instant at the configured hour
// strictly after now.
func (w *DailyReset) nextFiring(now time.Time) time.Time {
	now = now.In(w.loc)
	next := time.Date(now.Year(), now.Month(), now.Day(), w.hour, 0, 0, 0, w.loc)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (w *DailyReset) reset() {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	count, err := w.svc.ResetAll(ctx)
	if err != nil {
		w.log.Error("daily reset failed", zap.Error(err))
		return
	}
	w.log.Info("daily reset complete", zap.Int64("students_reset", count))
}
