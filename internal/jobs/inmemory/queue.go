package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/securebank/internal/jobs"
	"github.com/dvloznov/securebank/internal/logger"
	"github.com/dvloznov/securebank/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Defaults for NewQueue.
const (
	DefaultWorkers    = 2
	DefaultMaxRetries = 2
)

// Queue is a channel-backed Publisher and Consumer for one session.
// Stop cancels everything still queued.
type Queue struct {
	jobChan   chan *jobs.CategorizeJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	workers   int
	backoff   time.Duration
	log       zerolog.Logger
	closed    bool
}

// Option configures a Queue.
type Option func(*Queue)

// WithWorkers sets the number of concurrent workers.
func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

// WithRetryBackoff sets the base delay between retries.
func WithRetryBackoff(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.backoff = d
		}
	}
}

// WithLogger sets the queue logger.
func WithLogger(log zerolog.Logger) Option {
	return func(q *Queue) {
		q.log = logger.Component(log, "jobs")
	}
}

// NewQueue creates a new in-memory job queue.
// bufferSize determines how many jobs can wait before PublishCategorize blocks.
func NewQueue(bufferSize int, store jobs.JobStore, opts ...Option) *Queue {
	q := &Queue{
		jobChan:   make(chan *jobs.CategorizeJob, bufferSize),
		closeChan: make(chan struct{}),
		store:     store,
		workers:   DefaultWorkers,
		backoff:   time.Second,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// PublishCategorize implements the Publisher interface.
func (q *Queue) PublishCategorize(ctx context.Context, job *jobs.CategorizeJob) error {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()

	if closed {
		return fmt.Errorf("PublishCategorize: queue is closed")
	}
	if job.TransactionID == "" {
		return fmt.Errorf("PublishCategorize: transaction id is required")
	}

	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = DefaultMaxRetries
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("PublishCategorize: save job: %w", err)
		}
	}

	// Not under mu: a full buffer must not block Stop.
	select {
	case <-q.closeChan:
		return fmt.Errorf("PublishCategorize: queue is closed")
	default:
	}
	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return fmt.Errorf("PublishCategorize: queue is closed")
	}
}

// Start implements the Consumer interface.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return fmt.Errorf("Start: queue is closed")
	}
	q.mu.RUnlock()

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}
	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}
			q.processJob(ctx, job, handler)
		}
	}
}

// processJob executes a single job with retry logic.
func (q *Queue) processJob(ctx context.Context, job *jobs.CategorizeJob, handler jobs.JobHandler) {
	job.Status = jobs.JobStatusRunning
	now := time.Now()
	job.StartedAt = &now
	q.save(ctx, job)

	jobLog := logger.WithFields(q.log, map[string]interface{}{
		"job_id":         job.JobID,
		"transaction_id": job.TransactionID,
		"attempt":        job.RetryCount + 1,
	})
	err := handler(logger.WithContext(ctx, jobLog), job)

	completedAt := time.Now()
	job.CompletedAt = &completedAt

	if err != nil {
		job.Error = err.Error()
		if job.RetryCount < job.MaxRetries && ctx.Err() == nil {
			job.RetryCount++
			job.Status = jobs.JobStatusRetrying
			q.save(ctx, job)

			delay := time.Duration(job.RetryCount) * q.backoff
			retry := *job
			time.AfterFunc(delay, func() {
				retry.Status = jobs.JobStatusPending
				retry.StartedAt = nil
				retry.CompletedAt = nil
				if err := q.PublishCategorize(ctx, &retry); err != nil {
					jobLog.Debug().Err(err).Msg("Retry dropped")
				}
			})
			return
		}
		job.Status = jobs.JobStatusFailed
		jobLog.Error().Err(err).Msg("Job failed")
	} else {
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
	}

	metrics.JobsTotal.WithLabelValues(string(job.GetType()), string(job.Status)).Inc()
	q.save(ctx, job)
}

func (q *Queue) save(ctx context.Context, job *jobs.CategorizeJob) {
	if q.store == nil {
		return
	}
	if err := q.store.SaveJob(context.WithoutCancel(ctx), job); err != nil {
		q.log.Warn().Err(err).Str("job_id", job.JobID).Msg("Failed to save job state")
	}
}

// cancel records a queued job as dropped. The job was saved on publish, so
// only its status changes.
func (q *Queue) cancel(ctx context.Context, job *jobs.CategorizeJob) {
	if q.store == nil {
		return
	}
	if err := q.store.UpdateJobStatus(context.WithoutCancel(ctx), job.JobID, jobs.JobStatusCancelled, "session closed"); err != nil {
		q.log.Warn().Err(err).Str("job_id", job.JobID).Msg("Failed to cancel job")
	}
}

// Stop implements the Consumer interface. Jobs still queued are marked
// cancelled; in-flight jobs are awaited until ctx expires.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	for {
		select {
		case job := <-q.jobChan:
			job.Status = jobs.JobStatusCancelled
			metrics.JobsTotal.WithLabelValues(string(job.GetType()), string(job.Status)).Inc()
			q.cancel(ctx, job)
		default:
			return nil
		}
	}
}

// Close implements the Publisher interface.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

// Ensure Queue implements both Publisher and Consumer interfaces.
var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
