// Package pipeline drives a processing job end to end: download the
// upload, render pages, run each page through extraction, and settle the
// job status.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"bills-backend/internal/jobs"
	"bills-backend/internal/pages"
	"bills-backend/internal/render"
	"bills-backend/internal/shared/metrics"
	"bills-backend/internal/shared/storage/object"
	"bills-backend/internal/shared/telemetry"
)

// Orchestrator processes jobs pulled off the queue.
type Orchestrator struct {
	Jobs   jobs.Repo
	Pages  *pages.Extractor
	Store  object.ObjectStore
	Render render.Converter
}

// ProcessJob runs one job to completion. Page-level failures degrade to
// error documents and an error summary; only job-level failures (missing
// upload, render failure) mark the job as errored.
func (o *Orchestrator) ProcessJob(ctx context.Context, jobID string) error {
	start := time.Now()
	fields := map[string]any{"job_id": jobID}

	job, err := o.Jobs.Get(ctx, jobID)
	if err != nil {
		telemetry.Error("job.lookup_failed", withErr(fields, err))
		return fmt.Errorf("lookup job %s: %w", jobID, err)
	}
	if job.StorageKey == "" {
		return o.fail(ctx, jobID, fmt.Errorf("job has no stored file"))
	}

	if err := o.Jobs.MarkProcessing(ctx, jobID, time.Now().UTC()); err != nil {
		telemetry.Error("job.mark_processing_failed", withErr(fields, err))
		return err
	}
	metrics.IncJobStarted()
	telemetry.Info("job.processing", fields)

	src, err := o.download(ctx, job.StorageKey)
	if err != nil {
		return o.fail(ctx, jobID, fmt.Errorf("download upload: %w", err))
	}

	pageImages, err := o.Render.Pages(ctx, src, job.FileName)
	if err != nil {
		return o.fail(ctx, jobID, fmt.Errorf("render pages: %w", err))
	}

	var pageErrors []string
	for _, page := range pageImages {
		if _, err := o.Pages.Process(ctx, job.ID, job.UserID, page); err != nil {
			pageErrors = append(pageErrors, fmt.Sprintf("page %d: %v", page.Number, err))
		}
	}

	summary := ""
	if len(pageErrors) > 0 {
		summary = "some pages could not be processed: " + strings.Join(pageErrors, "; ")
	}
	if err := o.Jobs.MarkProcessed(ctx, jobID, summary, time.Now().UTC()); err != nil {
		telemetry.Error("job.mark_processed_failed", withErr(fields, err))
		return err
	}

	metrics.IncJobProcessed()
	metrics.ObserveJobDurationMs(float64(time.Since(start).Milliseconds()))
	telemetry.Info("job.processed", map[string]any{
		"job_id":      jobID,
		"pages":       len(pageImages),
		"page_errors": len(pageErrors),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return nil
}

func (o *Orchestrator) download(ctx context.Context, storageKey string) ([]byte, error) {
	rc, err := o.Store.Open(ctx, storageKey)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// fail marks the job errored and returns the cause.
func (o *Orchestrator) fail(ctx context.Context, jobID string, cause error) error {
	telemetry.Error("job.failed", map[string]any{"job_id": jobID, "error": cause.Error()})
	if err := o.Jobs.MarkError(ctx, jobID, cause.Error(), time.Now().UTC()); err != nil {
		telemetry.Error("job.mark_error_failed", map[string]any{"job_id": jobID, "error": err.Error()})
	}
	metrics.IncJobFailed()
	return cause
}

func withErr(fields map[string]any, err error) map[string]any {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["error"] = err.Error()
	return out
}
