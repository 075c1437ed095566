package flow

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nekogravitycat/futsal-booking-flow/internal/backend"
	"github.com/nekogravitycat/futsal-booking-flow/internal/slot"
)

// Releaser hands slot holds back to the backend without blocking the caller.
type Releaser interface {
	// Release schedules a release per id. ctx is only read for the caller's token.
	Release(ctx context.Context, ids ...int64)
}

type releaseJob struct {
	token  string
	slotID int64
}

// QueueReleaser runs releases on a fixed worker pool fed by a buffered queue.
// Failures are logged and dropped: the backend eventually expires holds on its own.
type QueueReleaser struct {
	slots   slot.Client
	log     *zap.Logger
	timeout time.Duration
	workers int

	jobs     chan releaseJob
	wg       sync.WaitGroup
	overflow sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

// NewQueueReleaser creates a releaser. Call Start before use and Stop on shutdown.
func NewQueueReleaser(slots slot.Client, log *zap.Logger, workers, queueSize int, timeout time.Duration) *QueueReleaser {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &QueueReleaser{
		slots:   slots,
		log:     log,
		timeout: timeout,
		workers: workers,
		jobs:    make(chan releaseJob, queueSize),
	}
}

// Start launches the workers.
func (r *QueueReleaser) Start() {
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	r.log.Info("slot release workers started", zap.Int("workers", r.workers))
}

func (r *QueueReleaser) Release(ctx context.Context, ids ...int64) {
	token := backend.TokenFrom(ctx)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.stopped {
		// Stop may already be waiting on the pool; the backend expires these holds
		r.log.Warn("release dropped after shutdown", zap.Int64s("slot_ids", ids))
		return
	}

	for _, id := range ids {
		job := releaseJob{token: token, slotID: id}
		select {
		case r.jobs <- job:
		default:
			// Queue full: never block the transition that asked for the release
			r.log.Warn("release queue full, releasing on a detached goroutine", zap.Int64("slot_id", id))
			r.detach(job)
		}
	}
}

// detach runs job outside the pool. Callers hold r.mu for reading with r.stopped
// false, so every Add happens before Stop starts waiting.
func (r *QueueReleaser) detach(job releaseJob) {
	r.overflow.Add(1)
	go func() {
		defer r.overflow.Done()
		r.run(job)
	}()
}

// Stop stops accepting work and waits for queued releases to finish or ctx to expire.
func (r *QueueReleaser) Stop(ctx context.Context) {
	r.mu.Lock()
	if !r.stopped {
		r.stopped = true
		close(r.jobs)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		r.overflow.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.log.Info("slot release workers stopped")
	case <-ctx.Done():
		r.log.Warn("slot release workers did not drain before shutdown", zap.Error(ctx.Err()))
	}
}

func (r *QueueReleaser) worker() {
	defer r.wg.Done()
	for job := range r.jobs {
		r.run(job)
	}
}

func (r *QueueReleaser) run(job releaseJob) {
	ctx, cancel := context.WithTimeout(backend.WithToken(context.Background(), job.token), r.timeout)
	defer cancel()

	if err := r.slots.Release(ctx, job.slotID); err != nil {
		r.log.Warn("slot release failed", zap.Int64("slot_id", job.slotID), zap.Error(err))
		return
	}
	r.log.Debug("slot released", zap.Int64("slot_id", job.slotID))
}
