package jobs

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const jobColumns = `id, user_id, file_name, original_size, status, storage_key, error_message, created_at, started_at, completed_at, failed_at, updated_at`

// Create inserts a new job.
func (r *PGRepo) Create(ctx context.Context, job Job) error {
	const query = `
INSERT INTO jobs (
    id,
    user_id,
    file_name,
    original_size,
    status,
    storage_key,
    error_message,
    created_at,
    updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`

	createdAt := job.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := r.DB.ExecContext(
		ctx,
		query,
		job.ID,
		job.UserID,
		job.FileName,
		job.OriginalSize,
		job.Status,
		job.StorageKey,
		job.ErrorMessage,
		createdAt,
	)
	return err
}

// GetByID returns a job scoped to its owner.
func (r *PGRepo) GetByID(ctx context.Context, userID, jobID string) (Job, error) {
	const query = `
SELECT ` + jobColumns + `
FROM jobs
WHERE id = $1 AND user_id = $2`
	return r.scanOne(r.DB.QueryRowContext(ctx, query, jobID, userID))
}

// Get returns a job by id without an ownership filter.
func (r *PGRepo) Get(ctx context.Context, jobID string) (Job, error) {
	const query = `
SELECT ` + jobColumns + `
FROM jobs
WHERE id = $1`
	return r.scanOne(r.DB.QueryRowContext(ctx, query, jobID))
}

// ListByUser returns jobs newest first, optionally filtered by status.
func (r *PGRepo) ListByUser(ctx context.Context, userID, status string, limit, offset int) ([]Job, error) {
	query := `
SELECT ` + jobColumns + `
FROM jobs
WHERE user_id = $1`
	args := []any{userID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`
	args = append(args, limit, offset)
	if status != "" {
		query += ` LIMIT $3 OFFSET $4`
	} else {
		query += ` LIMIT $2 OFFSET $3`
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

// UpdatedSince returns jobs touched after since, newest update first.
func (r *PGRepo) UpdatedSince(ctx context.Context, userID string, since time.Time, limit int) ([]Job, error) {
	const query = `
SELECT ` + jobColumns + `
FROM jobs
WHERE user_id = $1 AND updated_at > $2
ORDER BY updated_at DESC
LIMIT $3`
	rows, err := r.DB.QueryContext(ctx, query, userID, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

// MarkProcessing transitions a job into processing.
func (r *PGRepo) MarkProcessing(ctx context.Context, jobID string, startedAt time.Time) error {
	const query = `
UPDATE jobs
SET status = $2, started_at = $3, updated_at = $3
WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, jobID, StatusProcessing, startedAt)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// MarkProcessed finishes a job, keeping any per-page error summary.
func (r *PGRepo) MarkProcessed(ctx context.Context, jobID, errorMessage string, completedAt time.Time) error {
	const query = `
UPDATE jobs
SET status = $2, error_message = $3, completed_at = $4, updated_at = $4
WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, jobID, StatusProcessed, errorMessage, completedAt)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// MarkError fails a job.
func (r *PGRepo) MarkError(ctx context.Context, jobID, errorMessage string, failedAt time.Time) error {
	const query = `
UPDATE jobs
SET status = $2, error_message = $3, failed_at = $4, updated_at = $4
WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, jobID, StatusError, errorMessage, failedAt)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Requeue resets a job for another attempt.
func (r *PGRepo) Requeue(ctx context.Context, jobID string) error {
	const query = `
UPDATE jobs
SET status = $2, error_message = '', started_at = NULL, completed_at = NULL, failed_at = NULL, updated_at = $3
WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, jobID, StatusInQueue, time.Now().UTC())
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PGRepo) scanOne(row *sql.Row) (Job, error) {
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Job{}, ErrNotFound
		}
		return Job{}, err
	}
	return job, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (Job, error) {
	var job Job
	var started, completed, failed sql.NullTime
	err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.FileName,
		&job.OriginalSize,
		&job.Status,
		&job.StorageKey,
		&job.ErrorMessage,
		&job.CreatedAt,
		&started,
		&completed,
		&failed,
		&job.UpdatedAt,
	)
	if err != nil {
		return Job{}, err
	}
	if started.Valid {
		job.StartedAt = &started.Time
	}
	if completed.Valid {
		job.CompletedAt = &completed.Time
	}
	if failed.Valid {
		job.FailedAt = &failed.Time
	}
	return job, nil
}

func scanJobs(rows *sql.Rows) ([]Job, error) {
	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
