package jobs

import (
	"context"
	"time"
)

// Repo defines persistence operations for processing jobs.
type Repo interface {
	Create(ctx context.Context, job Job) error
	// GetByID returns a job only if it belongs to userID.
	GetByID(ctx context.Context, userID, jobID string) (Job, error)
	// Get returns a job without an ownership check; worker-side only.
	Get(ctx context.Context, jobID string) (Job, error)
	// ListByUser returns jobs newest first. status filters when non-empty.
	ListByUser(ctx context.Context, userID, status string, limit, offset int) ([]Job, error)
	// UpdatedSince returns jobs touched after since, for client polling.
	UpdatedSince(ctx context.Context, userID string, since time.Time, limit int) ([]Job, error)
	MarkProcessing(ctx context.Context, jobID string, startedAt time.Time) error
	// MarkProcessed finishes a job; errorMessage carries non-fatal
	// per-page failures and may be empty.
	MarkProcessed(ctx context.Context, jobID, errorMessage string, completedAt time.Time) error
	MarkError(ctx context.Context, jobID, errorMessage string, failedAt time.Time) error
	// Requeue resets a job to in_queue for an admin retry. Page records
	// from the previous attempt are kept.
	Requeue(ctx context.Context, jobID string) error
}
