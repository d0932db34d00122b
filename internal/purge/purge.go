// Package purge is the Purge Scheduler: a non-reentrant ticker loop that
// deletes terminal Job/UpscaleJob rows older than the configured retention
// window.
package purge

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/bobmcallan/palette/internal/common"
	"github.com/bobmcallan/palette/internal/interfaces"
)

// initialDelay is how long the scheduler waits after Start before its first tick.
const initialDelay = 60 * time.Second

// Scheduler runs purge_old on a timer against the Store.
type Scheduler struct {
	store  interfaces.Store
	config common.PurgeConfig
	logger *common.Logger

	ticking bool
	mu      sync.Mutex

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Scheduler.
func New(store interfaces.Store, config common.PurgeConfig, logger *common.Logger) *Scheduler {
	return &Scheduler{store: store, config: config, logger: logger}
}

func (s *Scheduler) safeGo(name string, fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error().
					Str("goroutine", name).
					Str("panic", fmt.Sprintf("%v", rec)).
					Str("stack", string(debug.Stack())).
					Msg("Recovered from panic in purge scheduler goroutine")
			}
		}()
		fn()
	}()
}

// Start begins the timer loop. Safe to call multiple times — stops any
// existing loop first.
func (s *Scheduler) Start() {
	if s.cancel != nil {
		s.Stop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.safeGo("purge-loop", func() { s.loop(ctx) })
	s.logger.Info().Dur("interval", s.config.Interval()).Dur("max_age", s.config.MaxAge()).Msg("Purge scheduler started")
}

// Stop cancels the loop and waits for any in-flight tick to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.wg.Wait()
	s.logger.Info().Msg("Purge scheduler stopped")
}

// RunOnce runs a single purge immediately, for a manual-purge command.
// maxAge overrides the configured retention window when non-zero.
func (s *Scheduler) RunOnce(ctx context.Context, maxAge time.Duration) (jobsDeleted, upscaleDeleted int, err error) {
	if maxAge <= 0 {
		maxAge = s.config.MaxAge()
	}
	cutoff := time.Now().Add(-maxAge).UnixMilli()
	return s.store.PurgeOld(ctx, cutoff)
}

func (s *Scheduler) loop(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(initialDelay):
	}

	s.tick(ctx)

	ticker := time.NewTicker(s.config.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs one purge pass, dropping the tick (logged at debug) if a
// previous tick is still in flight rather than overlapping.
func (s *Scheduler) tick(ctx context.Context) {
	s.mu.Lock()
	if s.ticking {
		s.mu.Unlock()
		s.logger.Debug().Msg("Purge tick skipped: previous tick still running")
		return
	}
	s.ticking = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.ticking = false
		s.mu.Unlock()
	}()

	jobsDeleted, upscaleDeleted, err := s.RunOnce(ctx, 0)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Purge tick failed")
		return
	}
	if jobsDeleted > 0 || upscaleDeleted > 0 {
		s.logger.Info().Int("jobs_deleted", jobsDeleted).Int("upscale_deleted", upscaleDeleted).Msg("Purge tick complete")
	} else {
		s.logger.Debug().Msg("Purge tick complete: nothing to delete")
	}
}
