// Package jobs is the durable scheduler for follow-up work.
//
// The update path only enqueues: when a property declaration changes,
// every subject using the property gets a queued propagation job. Running
// the jobs is left to an external worker that claims and completes them.
// A subject is queued at most once per kind until a worker claims it.
package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roach88/semstore/internal/errors"
	"github.com/roach88/semstore/internal/ir"
	"github.com/roach88/semstore/internal/logger"
)

// KindPropagation re-processes a subject after a declaration change.
const KindPropagation = "propagation"

// Status is the lifecycle state of a job.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
)

// Job is one unit of scheduled work.
type Job struct {
	ID        string     `json:"id"`
	Kind      string     `json:"kind"`
	Subject   ir.Subject `json:"subject"`
	Status    Status     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS semstore_jobs (
    seq         INTEGER PRIMARY KEY AUTOINCREMENT,
    id          TEXT NOT NULL UNIQUE,
    kind        TEXT NOT NULL,
    subject     TEXT NOT NULL,
    subject_key TEXT NOT NULL,
    status      TEXT NOT NULL,
    created_at  TEXT NOT NULL,
    updated_at  TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_jobs_queued
    ON semstore_jobs (kind, subject_key) WHERE status = 'queued';
`

// Queue persists jobs in the store's SQLite database.
type Queue struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *zap.SugaredLogger
	now    func() time.Time
}

// Option configures a Queue.
type Option func(*Queue)

// WithLogger sets the logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(q *Queue) { q.logger = logger.OrNop(l) }
}

// WithClock sets the clock used for job timestamps.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// NewQueue creates the jobs table if needed and returns a queue over db.
func NewQueue(ctx context.Context, db *sql.DB, opts ...Option) (*Queue, error) {
	q := &Queue{
		db:     db,
		logger: zap.NewNop().Sugar(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return nil, errors.Storage(err, "create jobs table")
	}
	return q, nil
}

// EnqueuePropagation queues a propagation job for every subject and
// returns how many were newly queued. Subjects already waiting in the
// queue are skipped.
func (q *Queue) EnqueuePropagation(ctx context.Context, subjects []ir.Subject) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Storage(err, "enqueue propagation: begin")
	}
	defer tx.Rollback()

	at := q.timestamp()
	queued := 0
	for _, subj := range subjects {
		payload, err := json.Marshal(subj)
		if err != nil {
			return 0, errors.Wrap(err, "marshal job subject")
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO semstore_jobs (id, kind, subject, subject_key, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT DO NOTHING
		`, uuid.Must(uuid.NewV7()).String(), KindPropagation, string(payload), subj.Key(), StatusQueued, at, at)
		if err != nil {
			err = errors.Storage(err, "failed to enqueue job")
			err = errors.WithDetail(err, fmt.Sprintf("Kind: %s", KindPropagation))
			err = errors.WithDetail(err, fmt.Sprintf("Subject: %s", subj.Key()))
			return 0, err
		}
		n, _ := res.RowsAffected()
		queued += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Storage(err, "enqueue propagation: commit")
	}

	q.logger.Debugw("enqueued propagation", "requested", len(subjects), "queued", queued)
	return queued, nil
}

// List returns jobs in enqueue order, optionally filtered by status.
// A limit of 0 or less returns every match.
func (q *Queue) List(ctx context.Context, status *Status, limit int) ([]Job, error) {
	query := `SELECT id, kind, subject, status, created_at, updated_at FROM semstore_jobs`
	args := []any{}
	if status != nil {
		query += ` WHERE status = ?`
		args = append(args, string(*status))
	}
	query += ` ORDER BY seq ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Storage(err, "list jobs")
	}
	defer rows.Close()

	jobs := []Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Storage(err, "iterate jobs")
	}
	return jobs, nil
}

// Claim marks the oldest queued job as running and returns it, or nil
// when the queue is empty.
func (q *Queue) Claim(ctx context.Context) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	queued := StatusQueued
	jobs, err := q.List(ctx, &queued, 1)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get queued jobs")
	}
	if len(jobs) == 0 {
		return nil, nil
	}

	job := jobs[0]
	if err := q.setStatus(ctx, job.ID, StatusRunning); err != nil {
		err = errors.Wrap(err, "failed to mark job as running")
		return nil, errors.WithDetail(err, fmt.Sprintf("Job ID: %s", job.ID))
	}
	job.Status = StatusRunning
	return &job, nil
}

// Complete marks a job as done.
func (q *Queue) Complete(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.setStatus(ctx, id, StatusDone)
}

func (q *Queue) setStatus(ctx context.Context, id string, status Status) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE semstore_jobs SET status = ?, updated_at = ? WHERE id = ?
	`, string(status), q.timestamp(), id)
	if err != nil {
		return errors.Storage(err, "update job status")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Mark(errors.Newf("job not found: %s", id), errors.ErrNotFound)
	}
	return nil
}

func (q *Queue) timestamp() string {
	return q.now().UTC().Format(time.RFC3339Nano)
}

func scanJob(rows *sql.Rows) (Job, error) {
	var (
		job                  Job
		subject, status      string
		createdAt, updatedAt string
	)
	if err := rows.Scan(&job.ID, &job.Kind, &subject, &status, &createdAt, &updatedAt); err != nil {
		return Job{}, errors.Storage(err, "scan job")
	}
	if err := json.Unmarshal([]byte(subject), &job.Subject); err != nil {
		return Job{}, errors.Wrap(err, "unmarshal job subject")
	}
	job.Status = Status(status)

	var err error
	if job.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return Job{}, errors.Wrap(err, "parse created_at")
	}
	if job.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return Job{}, errors.Wrap(err, "parse updated_at")
	}
	return job, nil
}
