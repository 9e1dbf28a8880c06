// Package worker implements the cooperative poll loop (C9), grounded on
// original_source/backend/app/jobs/runner.py's run_loop: claim, dispatch
// through a static handler registry, complete or fail-with-backoff, sleep
// POLL_INTERVAL when idle. Graceful shutdown finishes any in-flight
// handler before returning, per spec §6.
package worker

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"github.com/fenwick-labs/graphrag/internal/config"
	"github.com/fenwick-labs/graphrag/internal/domain"
	"github.com/fenwick-labs/graphrag/internal/jobqueue"
	"github.com/fenwick-labs/graphrag/internal/logging"
)

// Handler implements one job type. Handlers must be idempotent (I6) and
// must not catch transient errors — returning one causes the runner to
// requeue with backoff (spec §7).
type Handler func(ctx context.Context, workspaceID string, payload []byte) error

// Registry is the static type->handler map, written once at startup
// (spec §9, "global mutable state").
type Registry map[domain.JobType]Handler

// Worker polls the queue and dispatches claimed jobs to the registry.
type Worker struct {
	queue       *jobqueue.Queue
	registry    Registry
	poll        time.Duration
	maxAttempts int
}

// New builds a Worker. registry must be fully populated before Run starts;
// it is never mutated afterward.
func New(queue *jobqueue.Queue, registry Registry, cfg config.JobQueueConfig) *Worker {
	return &Worker{queue: queue, registry: registry, poll: cfg.PollInterval, maxAttempts: cfg.MaxAttempts}
}

// Run loops until ctx is cancelled, finishing any in-flight handler before
// returning.
func (w *Worker) Run(ctx context.Context) {
	log := logging.FromContext(ctx)
	log.Info().Msg("worker started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("worker shutting down")
			return
		default:
		}

		job, ok, err := w.queue.Claim(ctx)
		if err != nil {
			log.Error().Err(err).Msg("claim failed")
			sleepOrDone(ctx, w.poll)
			continue
		}
		if !ok {
			sleepOrDone(ctx, w.poll)
			continue
		}

		w.process(ctx, job)
	}
}

func (w *Worker) process(ctx context.Context, job domain.Job) {
	log := logging.FromContext(ctx)
	log.Info().Str("job_id", job.ID).Str("type", string(job.Type)).Int("attempt", job.Attempts).Msg("claimed job")

	err := w.dispatch(ctx, job)
	if err != nil {
		log.Error().Err(err).Str("job_id", job.ID).Str("type", string(job.Type)).Msg("job failed")
		attempts := job.Attempts
		if errors.Is(err, jobqueue.ErrUnregisteredType) {
			// An unregistered type is terminal: recording it at the attempt
			// cap makes Fail mark the job failed instead of requeueing it.
			attempts = max(attempts, w.maxAttempts)
		}
		if failErr := w.queue.Fail(ctx, job.ID, err.Error(), attempts); failErr != nil {
			log.Error().Err(failErr).Str("job_id", job.ID).Msg("failed to record job failure")
		}
		return
	}

	if err := w.queue.Complete(ctx, job.ID); err != nil {
		log.Error().Err(err).Str("job_id", job.ID).Msg("failed to mark job done")
	}
}

// dispatch recovers a handler panic into an error so a single bad handler
// cannot kill the poll loop; the recovered stack becomes last_error,
// mirroring the Python runner's traceback.format_exc() capture.
func (w *Worker) dispatch(ctx context.Context, job domain.Job) (err error) {
	handler, ok := w.registry[job.Type]
	if !ok {
		return jobqueue.ErrUnregisteredType
	}

	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r, stack: debug.Stack()}
		}
	}()

	return handler(ctx, job.WorkspaceID, job.Payload)
}

type panicError struct {
	value any
	stack []byte
}

func (e *panicError) Error() string {
	return string(e.stack)
}

func sleepOrDone(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
