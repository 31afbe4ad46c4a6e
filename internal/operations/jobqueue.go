package operations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kosonkh7/SOPO-Dashboard/internal/evaluation"
	"github.com/kosonkh7/SOPO-Dashboard/internal/infrastructure"
	"github.com/kosonkh7/SOPO-Dashboard/internal/websocket"
)

// JobStatus represents the status of a job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Finished reports whether the status is terminal
func (s JobStatus) Finished() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// DefaultJobRetention is how long finished jobs are kept by the janitor
const DefaultJobRetention = 24 * time.Hour

// RankingRequest describes the sweep a job runs
type RankingRequest struct {
	Strategy   string   `json:"strategy,omitempty"`
	PeriodDays int      `json:"period_days" validate:"omitempty,period_days"`
	SortBy     string   `json:"sort_by,omitempty" validate:"omitempty,oneof=mae rmse r2"`
	Descending bool     `json:"descending,omitempty"`
	Centers    []string `json:"centers,omitempty" validate:"omitempty,dive,required"`
	Items      []string `json:"items,omitempty" validate:"omitempty,dive,required"`
}

// Job represents an async ranking sweep
type Job struct {
	ID          string              `json:"id"`
	Status      JobStatus           `json:"status"`
	Progress    int                 `json:"progress"`
	Done        int                 `json:"done"`
	Total       int                 `json:"total"`
	Message     string              `json:"message,omitempty"`
	Error       string              `json:"error,omitempty"`
	TraceID     string              `json:"trace_id,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	StartedAt   *time.Time          `json:"started_at,omitempty"`
	CompletedAt *time.Time          `json:"completed_at,omitempty"`
	Request     RankingRequest      `json:"request"`
	Result      *evaluation.Ranking `json:"result,omitempty"`
}

func (j *Job) clone() *Job {
	c := *j
	c.Request.Centers = append([]string(nil), j.Request.Centers...)
	c.Request.Items = append([]string(nil), j.Request.Items...)
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// Runner executes a sweep, reporting progress as series complete
type Runner func(ctx context.Context, req RankingRequest, progress func(done, total int)) (*evaluation.Ranking, error)

// Broadcaster receives job status and progress messages
type Broadcaster interface {
	Broadcast(ctx context.Context, messageType string, data interface{})
}

// JobQueue manages async job execution
type JobQueue struct {
	mu          sync.Mutex
	jobs        chan *Job
	workers     int
	wg          sync.WaitGroup
	store       JobStore
	runner      Runner
	broadcaster Broadcaster
	logger      *slog.Logger
	tracer      trace.Tracer
	shutdown    chan struct{}
	cancelRun   context.CancelFunc
	active      map[string]context.CancelFunc // Currently executing jobs
}

// NewJobQueue creates a new job queue. broadcaster may be nil.
func NewJobQueue(workers int, store JobStore, runner Runner, broadcaster Broadcaster, logger *slog.Logger) *JobQueue {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &JobQueue{
		jobs:        make(chan *Job, workers*8),
		workers:     workers,
		store:       store,
		runner:      runner,
		broadcaster: broadcaster,
		logger:      logger.With(slog.String("component", "jobqueue")),
		tracer:      otel.Tracer(infrastructure.MeterName),
		shutdown:    make(chan struct{}),
		active:      make(map[string]context.CancelFunc),
	}
}

// Start begins processing jobs
func (q *JobQueue) Start(ctx context.Context) {
	q.logger.Info("starting job queue", slog.Int("workers", q.workers))

	ctx, cancel := context.WithCancel(ctx)
	q.mu.Lock()
	q.cancelRun = cancel
	q.mu.Unlock()

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}

	if cleaner, ok := q.store.(interface{ CleanupOldJobs(time.Duration) int }); ok {
		go q.janitor(ctx, cleaner.CleanupOldJobs)
	}
}

// Stop signals workers to stop and waits for running jobs. Jobs still
// running after timeout are cancelled.
func (q *JobQueue) Stop(timeout time.Duration) error {
	q.logger.Info("stopping job queue")
	close(q.shutdown)

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	q.mu.Lock()
	cancel := q.cancelRun
	q.mu.Unlock()
	if cancel == nil {
		cancel = func() {}
	}

	select {
	case <-done:
		cancel()
		q.logger.Info("job queue stopped gracefully")
		return nil
	case <-time.After(timeout):
		cancel()
		<-done
		q.logger.Warn("job queue stop timeout exceeded")
		return fmt.Errorf("timeout waiting for workers to finish")
	}
}

// Enqueue records a pending job for req and queues it. The job carries the
// trace id of ctx.
func (q *JobQueue) Enqueue(ctx context.Context, req RankingRequest) (*Job, error) {
	traceID := infrastructure.GetTraceID(ctx)
	if traceID == "" {
		traceID = middleware.GetReqID(ctx)
	}
	if traceID == "" {
		traceID = infrastructure.GenerateTraceID()
	}

	job := &Job{
		ID:        uuid.New().String(),
		Status:    JobStatusPending,
		Message:   "Job queued",
		TraceID:   traceID,
		CreatedAt: time.Now(),
		Request:   req,
	}

	if err := q.store.CreateJob(job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	q.publishStatus(job)

	select {
	case q.jobs <- job.clone():
		q.logger.InfoContext(ctx, "job enqueued",
			slog.String("job_id", job.ID),
			slog.Int("period_days", req.PeriodDays))
		return job, nil
	default:
		q.finish(ctx, job, JobStatusFailed, fmt.Errorf("job queue is full"), q.logger)
		return nil, fmt.Errorf("job queue is full")
	}
}

// GetJob retrieves a job by ID
func (q *JobQueue) GetJob(id string) (*Job, error) {
	return q.store.GetJob(id)
}

// ListJobs returns jobs matching the filter
func (q *JobQueue) ListJobs(filter JobFilter) ([]*Job, error) {
	return q.store.ListJobs(filter)
}

// CancelJob cancels a pending or running job
func (q *JobQueue) CancelJob(id string) error {
	job, err := q.store.GetJob(id)
	if err != nil {
		return err
	}
	if job.Status.Finished() {
		return fmt.Errorf("job %s cannot be cancelled (status: %s)", id, job.Status)
	}

	q.mu.Lock()
	cancel, running := q.active[id]
	q.mu.Unlock()
	if running {
		// the worker records the cancellation when the runner returns
		cancel()
		return nil
	}

	job.Status = JobStatusCancelled
	job.Message = "Job cancelled"
	now := time.Now()
	job.CompletedAt = &now
	if err := q.store.UpdateJob(job); err != nil {
		return err
	}
	q.publishStatus(job)
	return nil
}

// worker processes jobs from the queue
func (q *JobQueue) worker(ctx context.Context, workerID int) {
	defer q.wg.Done()

	logger := q.logger.With(slog.Int("worker_id", workerID))
	logger.Debug("worker started")

	for {
		select {
		case <-ctx.Done():
			logger.Debug("worker stopped by context")
			return
		case <-q.shutdown:
			logger.Debug("worker stopped by shutdown")
			return
		case job := <-q.jobs:
			q.processJob(ctx, job, logger)
		}
	}
}

// processJob executes a single job
func (q *JobQueue) processJob(ctx context.Context, job *Job, logger *slog.Logger) {
	// A job cancelled while queued is skipped.
	if current, err := q.store.GetJob(job.ID); err == nil && current.Status.Finished() {
		return
	}

	ctx = infrastructure.WithJobID(infrastructure.WithTraceID(ctx, job.TraceID), job.ID)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ctx, span := q.tracer.Start(ctx, "ranking.job", trace.WithAttributes(
		attribute.String("job.id", job.ID),
		attribute.Int("job.period_days", job.Request.PeriodDays),
	))
	defer span.End()

	logger.InfoContext(ctx, "processing job started")

	q.mu.Lock()
	q.active[job.ID] = cancel
	q.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "job processing panicked", slog.Any("panic", r))
			q.finish(ctx, job, JobStatusFailed, fmt.Errorf("job processing panicked: %v", r), logger)
		}

		q.mu.Lock()
		delete(q.active, job.ID)
		q.mu.Unlock()
	}()

	job.Status = JobStatusRunning
	now := time.Now()
	job.StartedAt = &now
	job.Message = "Job started"
	if err := q.store.UpdateJob(job); err != nil {
		logger.ErrorContext(ctx, "failed to update job status", slog.String("error", err.Error()))
	}
	q.publishStatus(job)

	var progressMu sync.Mutex
	lastPercent := -1
	progress := func(done, total int) {
		progressMu.Lock()
		defer progressMu.Unlock()
		if done <= job.Done {
			return
		}
		job.Done, job.Total = done, total
		if total > 0 {
			job.Progress = done * 100 / total
		}
		job.Message = fmt.Sprintf("%d of %d series evaluated", done, total)
		if err := q.store.UpdateJob(job); err != nil {
			logger.WarnContext(ctx, "failed to record job progress", slog.String("error", err.Error()))
		}
		if job.Progress != lastPercent {
			lastPercent = job.Progress
			q.publish(ctx, websocket.TypeJobProgress, map[string]interface{}{
				"job_id":   job.ID,
				"done":     done,
				"total":    total,
				"progress": job.Progress,
			})
		}
	}

	result, err := q.runner(ctx, job.Request, progress)

	progressMu.Lock()
	defer progressMu.Unlock()

	switch {
	case err == nil:
		job.Result = result
		q.finish(ctx, job, JobStatusCompleted, nil, logger)
	case errors.Is(err, context.Canceled):
		q.finish(ctx, job, JobStatusCancelled, nil, logger)
	default:
		infrastructure.RecordError(ctx, err)
		q.finish(ctx, job, JobStatusFailed, err, logger)
	}
}

// finish records a terminal status and broadcasts it
func (q *JobQueue) finish(ctx context.Context, job *Job, status JobStatus, err error, logger *slog.Logger) {
	job.Status = status
	completedAt := time.Now()
	job.CompletedAt = &completedAt

	switch status {
	case JobStatusCompleted:
		job.Progress = 100
		job.Message = "Job completed successfully"
		logger.InfoContext(ctx, "processing job completed")
	case JobStatusCancelled:
		job.Message = "Job cancelled"
		logger.InfoContext(ctx, "processing job cancelled")
	default:
		job.Message = "Job failed"
		job.Error = err.Error()
		logger.ErrorContext(ctx, "job failed", slog.String("error", err.Error()))
	}

	if err := q.store.UpdateJob(job); err != nil {
		logger.ErrorContext(ctx, "failed to update job", slog.String("error", err.Error()))
	}
	q.publishStatus(job)
}

// publishStatus broadcasts the job without its result payload
func (q *JobQueue) publishStatus(job *Job) {
	snapshot := job.clone()
	snapshot.Result = nil
	q.publish(infrastructure.WithTraceID(context.Background(), job.TraceID), websocket.TypeJobStatus, snapshot)
}

func (q *JobQueue) publish(ctx context.Context, messageType string, data interface{}) {
	if q.broadcaster == nil {
		return
	}
	q.broadcaster.Broadcast(ctx, messageType, data)
}

// janitor periodically drops finished jobs older than DefaultJobRetention
func (q *JobQueue) janitor(ctx context.Context, cleanup func(time.Duration) int) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.shutdown:
			return
		case <-ticker.C:
			if n := cleanup(DefaultJobRetention); n > 0 {
				q.logger.Info("removed finished jobs", slog.Int("count", n))
			}
		}
	}
}

// GetQueueStats returns queue statistics
func (q *JobQueue) GetQueueStats() map[string]interface{} {
	q.mu.Lock()
	activeCount := len(q.active)
	q.mu.Unlock()

	return map[string]interface{}{
		"workers":     q.workers,
		"queue_size":  len(q.jobs),
		"queue_cap":   cap(q.jobs),
		"active_jobs": activeCount,
	}
}
