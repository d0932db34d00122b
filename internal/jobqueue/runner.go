// Package jobqueue is the Job Queue & Runner: a persistent-FIFO, single-slot
// processor that binds, submits, polls, and records the outcome of each
// queued Job/UpscaleJob in strict enqueue order, never running two jobs
// concurrently.
package jobqueue

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/bobmcallan/palette/internal/common"
	"github.com/bobmcallan/palette/internal/interfaces"
	"github.com/bobmcallan/palette/internal/metadata"
)

// PollInterval is how often the runner checks the renderer's history
// endpoint for a submitted prompt.
const PollInterval = 2 * time.Second

// Runner drains the FIFO one entry at a time. Concurrency of exactly 1 is
// enforced structurally: a single dispatch goroutine processes entries
// synchronously, so there is never a second in-flight job to guard against.
type Runner struct {
	store    interfaces.Store
	renderer interfaces.RendererClient
	binder   interfaces.Binder
	notifier interfaces.Notifier
	metadata *metadata.Cache
	config   *common.Config
	logger   *common.Logger

	mu    sync.Mutex
	queue *fifo
	wake  chan struct{}

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Runner. None of its dependencies are started here;
// call Start to begin draining the queue.
func New(store interfaces.Store, renderer interfaces.RendererClient, binder interfaces.Binder, notifier interfaces.Notifier, metadataCache *metadata.Cache, config *common.Config, logger *common.Logger) *Runner {
	return &Runner{
		store:    store,
		renderer: renderer,
		binder:   binder,
		notifier: notifier,
		metadata: metadataCache,
		config:   config,
		logger:   logger,
		queue:    newFIFO(),
		wake:     make(chan struct{}, 1),
	}
}

// safeGo launches a goroutine with panic recovery and logging.
func (r *Runner) safeGo(name string, fn func()) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error().
					Str("goroutine", name).
					Str("panic", fmt.Sprintf("%v", rec)).
					Str("stack", string(debug.Stack())).
					Msg("Recovered from panic in job queue goroutine")
			}
		}()
		fn()
	}()
}

// Start recovers any queued rows left over from a previous process and
// begins draining the FIFO. Safe to call multiple times — stops any
// existing dispatch loop first.
func (r *Runner) Start() {
	if r.cancel != nil {
		r.Stop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	r.recoverQueued(ctx)

	r.safeGo("dispatcher", func() { r.dispatchLoop(ctx) })
	r.logger.Info().Msg("Job queue runner started")
}

// Stop cancels the dispatch loop and waits for any in-flight job to finish.
func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.wg.Wait()
	r.logger.Info().Msg("Job queue runner stopped")
}

// EnqueueGeneration appends a generation job and arms a wake-up. The Store
// row must already exist with status=queued.
func (r *Runner) EnqueueGeneration(jobID string) {
	r.mu.Lock()
	r.queue.push(entry{jobID: jobID, kind: kindGeneration})
	r.mu.Unlock()
	r.arm()
}

// EnqueueUpscale appends an upscale job and arms a wake-up.
func (r *Runner) EnqueueUpscale(jobID string) {
	r.mu.Lock()
	r.queue.push(entry{jobID: jobID, kind: kindUpscale})
	r.mu.Unlock()
	r.arm()
}

func (r *Runner) arm() {
	select {
	case r.wake <- struct{}{}:
	default:
		// already armed
	}
}

// dispatchLoop is the single concurrency slot: it blocks on wake-up, then
// drains the queue completely before waiting again, one entry at a time.
func (r *Runner) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.wake:
			for {
				r.mu.Lock()
				e, ok := r.queue.pop()
				r.mu.Unlock()
				if !ok {
					break
				}
				r.processEntry(ctx, e)
				select {
				case <-ctx.Done():
					return
				default:
				}
			}
		}
	}
}

func (r *Runner) processEntry(ctx context.Context, e entry) {
	switch e.kind {
	case kindGeneration:
		r.processGeneration(ctx, e.jobID)
	case kindUpscale:
		r.processUpscale(ctx, e.jobID)
	}
}

// recoverQueued re-enqueues rows left in status=queued by a previous
// process, ordered by created_at to preserve fairness across both tables.
func (r *Runner) recoverQueued(ctx context.Context) {
	jobs, err := r.store.ListQueuedJobs(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Failed to list queued jobs for boot recovery")
	}
	upscales, err := r.store.ListQueuedUpscaleJobs(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Failed to list queued upscale jobs for boot recovery")
	}

	type recovered struct {
		e         entry
		createdAt int64
	}
	var all []recovered
	for _, j := range jobs {
		all = append(all, recovered{entry{jobID: j.ID, kind: kindGeneration}, j.CreatedAtMS})
	}
	for _, u := range upscales {
		all = append(all, recovered{entry{jobID: u.ID, kind: kindUpscale}, u.CreatedAtMS})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].createdAt < all[j].createdAt })

	if len(all) == 0 {
		return
	}

	r.mu.Lock()
	for _, rec := range all {
		r.queue.push(rec.e)
	}
	r.mu.Unlock()
	r.arm()

	r.logger.Info().Int("count", len(all)).Msg("Recovered queued jobs from previous run")
}
