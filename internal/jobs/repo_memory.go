package jobs

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is the in-memory Repo used in dev and tests.
type MemoryRepo struct {
	mu   sync.RWMutex
	jobs map[string]Job
}

// NewMemoryRepo creates an empty in-memory repo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{jobs: make(map[string]Job)}
}

func (r *MemoryRepo) Create(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	job.UpdatedAt = job.CreatedAt
	r.jobs[job.ID] = job
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, userID, jobID string) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[jobID]
	if !ok || job.UserID != userID {
		return Job{}, ErrNotFound
	}
	return job, nil
}

func (r *MemoryRepo) Get(ctx context.Context, jobID string) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return Job{}, ErrNotFound
	}
	return job, nil
}

func (r *MemoryRepo) ListByUser(ctx context.Context, userID, status string, limit, offset int) ([]Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Job
	for _, job := range r.jobs {
		if job.UserID != userID {
			continue
		}
		if status != "" && job.Status != status {
			continue
		}
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}

func (r *MemoryRepo) UpdatedSince(ctx context.Context, userID string, since time.Time, limit int) ([]Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Job
	for _, job := range r.jobs {
		if job.UserID == userID && job.UpdatedAt.After(since) {
			out = append(out, job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) MarkProcessing(ctx context.Context, jobID string, startedAt time.Time) error {
	return r.update(ctx, jobID, func(job *Job) {
		job.Status = StatusProcessing
		job.StartedAt = &startedAt
		job.UpdatedAt = startedAt
	})
}

func (r *MemoryRepo) MarkProcessed(ctx context.Context, jobID, errorMessage string, completedAt time.Time) error {
	return r.update(ctx, jobID, func(job *Job) {
		job.Status = StatusProcessed
		job.ErrorMessage = errorMessage
		job.CompletedAt = &completedAt
		job.UpdatedAt = completedAt
	})
}

func (r *MemoryRepo) MarkError(ctx context.Context, jobID, errorMessage string, failedAt time.Time) error {
	return r.update(ctx, jobID, func(job *Job) {
		job.Status = StatusError
		job.ErrorMessage = errorMessage
		job.FailedAt = &failedAt
		job.UpdatedAt = failedAt
	})
}

func (r *MemoryRepo) Requeue(ctx context.Context, jobID string) error {
	return r.update(ctx, jobID, func(job *Job) {
		job.Status = StatusInQueue
		job.ErrorMessage = ""
		job.StartedAt = nil
		job.CompletedAt = nil
		job.FailedAt = nil
		job.UpdatedAt = time.Now().UTC()
	})
}

func (r *MemoryRepo) update(ctx context.Context, jobID string, fn func(*Job)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	fn(&job)
	r.jobs[jobID] = job
	return nil
}

func page(jobs []Job, limit, offset int) []Job {
	if offset >= len(jobs) {
		return nil
	}
	jobs = jobs[offset:]
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs
}

var _ Repo = (*MemoryRepo)(nil)
