package jobs

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"bills-backend/internal/queue"
	"bills-backend/internal/shared/storage/object"
	"bills-backend/internal/shared/telemetry"
)

// allowedExtensions for uploads. Images are processed as single-page
// documents.
var allowedExtensions = map[string]bool{
	".pdf":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// Processor runs a job to completion. It is used for inline processing
// when no queue is configured.
type Processor interface {
	ProcessJob(ctx context.Context, jobID string) error
}

// Service contains business logic for processing jobs.
type Service struct {
	Repo  Repo
	Store object.ObjectStore
	Queue queue.Client
	// Processor handles jobs inline when Queue is nil (dev mode).
	Processor Processor
}

// Upload stores the file, records the job and hands it to the pipeline.
func (s *Service) Upload(ctx context.Context, userID, fileName string, r io.Reader) (Job, error) {
	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		return Job{}, fmt.Errorf("%w: file name is required", ErrInvalidInput)
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	if !allowedExtensions[ext] {
		return Job{}, fmt.Errorf("%w: unsupported file type %q", ErrInvalidInput, ext)
	}

	storageKey, size, _, err := s.Store.Save(ctx, userID, fileName, r)
	if err != nil {
		return Job{}, fmt.Errorf("store upload: %w", err)
	}

	job := Job{
		ID:           uuid.NewString(),
		UserID:       userID,
		FileName:     fileName,
		OriginalSize: size,
		Status:       StatusInQueue,
		StorageKey:   storageKey,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.Repo.Create(ctx, job); err != nil {
		// The stored object is orphaned otherwise.
		if delErr := s.Store.Delete(ctx, storageKey); delErr != nil {
			telemetry.Error("job.cleanup_failed", map[string]any{
				"storage_key": storageKey, "error": delErr.Error(),
			})
		}
		return Job{}, fmt.Errorf("create job: %w", err)
	}

	s.dispatch(ctx, job.ID)
	return job, nil
}

// dispatch enqueues the job, or processes it inline when no queue is
// configured. Enqueue failure leaves the job in_queue for a later retry
// rather than failing the upload.
func (s *Service) dispatch(ctx context.Context, jobID string) {
	if s.Queue == nil {
		if s.Processor == nil {
			telemetry.Error("job.no_dispatch_target", map[string]any{"job_id": jobID})
			return
		}
		go func() {
			bg, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
			defer cancel()
			if err := s.Processor.ProcessJob(bg, jobID); err != nil {
				telemetry.Error("job.inline_process_failed", map[string]any{
					"job_id": jobID, "error": err.Error(),
				})
			}
		}()
		return
	}

	msg := queue.NewMessage(jobID, requestIDFromContext(ctx))
	if err := s.Queue.Send(ctx, msg); err != nil {
		telemetry.Error("job.enqueue_failed", map[string]any{
			"job_id": jobID, "error": err.Error(),
		})
	}
}

// Get returns a job owned by the user.
func (s *Service) Get(ctx context.Context, userID, jobID string) (Job, error) {
	return s.Repo.GetByID(ctx, userID, jobID)
}

// List returns the user's jobs, newest first.
func (s *Service) List(ctx context.Context, userID, status string, limit, offset int) ([]Job, error) {
	if status != "" && !validStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	return s.Repo.ListByUser(ctx, userID, status, limit, offset)
}

// Updates returns jobs changed since the given time, for polling clients.
func (s *Service) Updates(ctx context.Context, userID string, since time.Time, limit int) ([]Job, error) {
	return s.Repo.UpdatedSince(ctx, userID, since, limit)
}

// Retry resets a job and dispatches it again under the same id. Page
// records from the previous attempt are kept so a partially processed
// job stays inspectable.
func (s *Service) Retry(ctx context.Context, jobID string) (Job, error) {
	if _, err := s.Repo.Get(ctx, jobID); err != nil {
		return Job{}, err
	}
	if err := s.Repo.Requeue(ctx, jobID); err != nil {
		return Job{}, err
	}
	s.dispatch(ctx, jobID)
	return s.Repo.Get(ctx, jobID)
}

func validStatus(status string) bool {
	switch status {
	case StatusInQueue, StatusProcessing, StatusProcessed, StatusError:
		return true
	}
	return false
}
