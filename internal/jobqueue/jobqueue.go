// Package jobqueue implements the Postgres-backed at-least-once job queue
// (C8), grounded line-for-line on
// original_source/backend/app/jobs/runner.py's claim/complete/fail SQL
// (SELECT ... FOR UPDATE SKIP LOCKED, linear backoff), translated from
// SQLAlchemy text() queries to jackc/pgx/v5.
package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fenwick-labs/graphrag/internal/config"
	"github.com/fenwick-labs/graphrag/internal/domain"
)

// ErrUnregisteredType is returned by dispatch when no handler exists for a
// job's type; callers must treat this as a terminal failure (spec §7,
// "programmer error").
var ErrUnregisteredType = errors.New("jobqueue: no handler registered for job type")

// Queue wraps the jobs table. The idempotency-guard cache is optional; see
// NewQueue.
type Queue struct {
	pool  *pgxpool.Pool
	cache *RedisGuardCache
	cfg   config.JobQueueConfig
}

// NewQueue builds a Queue against pool. If cache is nil the idempotency
// guard falls straight through to RS, per SPEC_FULL §4.12's "degrades to a
// direct RS query with no behavior change" contract.
func NewQueue(pool *pgxpool.Pool, cache *RedisGuardCache, cfg config.JobQueueConfig) *Queue {
	return &Queue{pool: pool, cache: cache, cfg: cfg}
}

// Enqueue inserts a queued job and returns its id.
func (q *Queue) Enqueue(ctx context.Context, workspaceID string, jobType domain.JobType, payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err = q.pool.Exec(ctx, `
INSERT INTO jobs (id, workspace_id, type, payload, status, attempts)
VALUES ($1, $2, $3, $4, 'queued', 0)`,
		id, workspaceID, jobType, raw,
	)
	if err != nil {
		return "", err
	}
	if q.cache != nil {
		q.cache.invalidate(ctx, guardKey(workspaceID, jobType, documentIDFromPayload(raw)))
	}
	return id, nil
}

// Claim atomically picks the oldest ready job, marks it running, and
// increments attempts, skipping rows another worker holds. Returns
// (job, false, nil) when no job is ready.
func (q *Queue) Claim(ctx context.Context) (domain.Job, bool, error) {
	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return domain.Job{}, false, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
UPDATE jobs
SET status = 'running', attempts = attempts + 1, updated_at = now()
WHERE id = (
	SELECT id FROM jobs
	WHERE status = 'queued'
	  AND (run_after IS NULL OR run_after <= now())
	  AND attempts < $1
	ORDER BY created_at
	FOR UPDATE SKIP LOCKED
	LIMIT 1
)
RETURNING id, workspace_id, type, payload, status, attempts, last_error, run_after, created_at, updated_at`,
		q.cfg.MaxAttempts,
	)

	var j domain.Job
	var payload []byte
	err = row.Scan(&j.ID, &j.WorkspaceID, &j.Type, &payload, &j.Status, &j.Attempts, &j.LastError, &j.RunAfter, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Job{}, false, nil
	}
	if err != nil {
		return domain.Job{}, false, err
	}
	j.Payload = payload

	if err := tx.Commit(ctx); err != nil {
		return domain.Job{}, false, err
	}
	return j, true, nil
}

// Complete marks a job done.
func (q *Queue) Complete(ctx context.Context, jobID string) error {
	_, err := q.pool.Exec(ctx, `UPDATE jobs SET status = 'done', updated_at = now() WHERE id = $1`, jobID)
	return err
}

const maxErrorLen = 4000

// Fail requeues with linear backoff, or marks failed once attempts reach
// MAX_ATTEMPTS. attempts is the post-claim attempt count already on the row.
func (q *Queue) Fail(ctx context.Context, jobID, errText string, attempts int) error {
	if len(errText) > maxErrorLen {
		errText = errText[:maxErrorLen]
	}

	if attempts < q.cfg.MaxAttempts {
		runAfter := q.nextRunAfter(time.Now().UTC(), attempts)
		_, err := q.pool.Exec(ctx, `
UPDATE jobs SET status = 'queued', last_error = $2, run_after = $3, updated_at = now()
WHERE id = $1`, jobID, errText, runAfter)
		return err
	}

	_, err := q.pool.Exec(ctx, `
UPDATE jobs SET status = 'failed', last_error = $2, run_after = NULL, updated_at = now()
WHERE id = $1`, jobID, errText)
	return err
}

// nextRunAfter is the linear backoff schedule Fail uses: attempts times
// BACKOFF_BASE after now.
func (q *Queue) nextRunAfter(now time.Time, attempts int) time.Time {
	return now.Add(time.Duration(attempts) * q.cfg.BackoffBase)
}

// HasPending implements the §4.2 idempotency guard: true if a job of this
// (type, document_id) is currently queued or running for the workspace.
func (q *Queue) HasPending(ctx context.Context, workspaceID string, jobType domain.JobType, documentID string) (bool, error) {
	key := guardKey(workspaceID, jobType, documentID)
	if q.cache != nil {
		if hit, found := q.cache.get(ctx, key); found {
			return hit, nil
		}
	}

	var exists bool
	err := q.pool.QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1 FROM jobs
	WHERE workspace_id = $1 AND type = $2 AND status IN ('queued', 'running')
	  AND payload->>'document_id' = $3
)`, workspaceID, jobType, documentID).Scan(&exists)
	if err != nil {
		return false, err
	}

	// Only a "nothing pending" answer is cached: a cached "pending" could
	// outlive the job it describes and make EnqueueIfAbsent skip an enqueue.
	if q.cache != nil && !exists {
		q.cache.set(ctx, key, false)
	}
	return exists, nil
}

// EnqueueIfAbsent enqueues jobType{document_id: documentID, ...extra} unless
// HasPending already reports an in-flight job for that (type, document_id).
// Returns the new job id, or "" if skipped by the guard.
func (q *Queue) EnqueueIfAbsent(ctx context.Context, workspaceID string, jobType domain.JobType, documentID string, payload any) (string, error) {
	pending, err := q.HasPending(ctx, workspaceID, jobType, documentID)
	if err != nil {
		return "", err
	}
	if pending {
		return "", nil
	}
	return q.Enqueue(ctx, workspaceID, jobType, payload)
}

// Stats aggregates job counts by (type, status) for GET /jobs/stats.
func (q *Queue) Stats(ctx context.Context, workspaceID string) (domain.JobStats, error) {
	rows, err := q.pool.Query(ctx, `
SELECT type, status, count(*) FROM jobs WHERE workspace_id = $1 GROUP BY type, status`, workspaceID)
	if err != nil {
		return domain.JobStats{}, err
	}
	defer rows.Close()

	stats := domain.JobStats{ByTypeStatus: map[string]map[domain.JobStatus]int{}}
	for rows.Next() {
		var jobType string
		var status domain.JobStatus
		var n int
		if err := rows.Scan(&jobType, &status, &n); err != nil {
			return domain.JobStats{}, err
		}
		if stats.ByTypeStatus[jobType] == nil {
			stats.ByTypeStatus[jobType] = map[domain.JobStatus]int{}
		}
		stats.ByTypeStatus[jobType][status] = n
		stats.Total += n
		switch status {
		case domain.JobQueued:
			stats.Queued += n
		case domain.JobRunning:
			stats.Running += n
		case domain.JobDone:
			stats.Done += n
		case domain.JobFailed:
			stats.Failed += n
		}
	}
	return stats, rows.Err()
}

// Failed returns recent failed jobs for a workspace, most recent first.
func (q *Queue) Failed(ctx context.Context, workspaceID string, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := q.pool.Query(ctx, `
SELECT id, workspace_id, type, payload, status, attempts, last_error, run_after, created_at, updated_at
FROM jobs WHERE workspace_id = $1 AND status = 'failed'
ORDER BY updated_at DESC LIMIT $2`, workspaceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Job
	for rows.Next() {
		var j domain.Job
		if err := rows.Scan(&j.ID, &j.WorkspaceID, &j.Type, &j.Payload, &j.Status, &j.Attempts, &j.LastError, &j.RunAfter, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func documentIDFromPayload(raw []byte) string {
	var v struct {
		DocumentID string `json:"document_id"`
	}
	_ = json.Unmarshal(raw, &v)
	return v.DocumentID
}
