package pages

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"bills-backend/internal/extract"
	"bills-backend/internal/llm"
	"bills-backend/internal/render"
	"bills-backend/internal/shared/metrics"
	"bills-backend/internal/shared/storage/object"
	"bills-backend/internal/shared/telemetry"
)

// Extractor runs one page through classify -> extract -> normalize and
// persists the resulting document. A page failure produces an error
// document rather than aborting; the caller decides how to report it.
type Extractor struct {
	LLM   llm.Client
	Repo  Repo
	Store object.ObjectStore
}

// NormalizeClassification maps a raw model label onto the supported
// document types. "eway" is checked first because e-way bill labels
// usually contain "bill" too.
func NormalizeClassification(raw string) string {
	label := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(label, "eway"):
		return TypeEwayBill
	case strings.Contains(label, "bill"):
		return TypeBill
	default:
		return TypeUnknown
	}
}

// Process handles a single rendered page. It always persists a document;
// the returned error, when non-nil, describes why the page degraded to
// an error document and feeds the job's error summary.
func (e *Extractor) Process(ctx context.Context, jobID, userID string, page render.PageImage) (Document, error) {
	fields := map[string]any{"job_id": jobID, "page": page.Number}

	rawLabel, err := e.LLM.ClassifyPage(ctx, page.PNG)
	if err != nil {
		telemetry.Error("page.classify_failed", withErr(fields, err))
		return e.persistFailure(ctx, jobID, userID, page, fmt.Errorf("classification failed: %w", err))
	}
	docType := NormalizeClassification(rawLabel)
	fields["doc_type"] = docType

	doc := Document{
		ID:         uuid.NewString(),
		JobID:      jobID,
		UserID:     userID,
		PageNumber: page.Number,
		DocType:    docType,
		CreatedAt:  time.Now().UTC(),
	}

	if docType == TypeUnknown {
		doc.Status = StatusUnknown
	} else {
		doc.Status = StatusDraftPending
		payload, err := e.LLM.ExtractPage(ctx, page.PNG, docType)
		if err != nil {
			telemetry.Error("page.extract_failed", withErr(fields, err))
			return e.persistFailure(ctx, jobID, userID, page, fmt.Errorf("extraction failed: %w", err))
		}
		doc.Payload = payload

		var decoded map[string]any
		if err := json.Unmarshal(payload, &decoded); err != nil {
			telemetry.Error("page.payload_decode_failed", withErr(fields, err))
			return e.persistFailure(ctx, jobID, userID, page, fmt.Errorf("extraction payload decode: %w", err))
		}
		doc.PONumber = extract.PONumber(decoded)
		doc.Items = extract.Items(decoded)
	}

	doc.StorageKey = e.savePageImage(ctx, jobID, page)

	if err := e.Repo.Create(ctx, doc); err != nil {
		telemetry.Error("page.persist_failed", withErr(fields, err))
		return Document{}, fmt.Errorf("persist page %d: %w", page.Number, err)
	}

	metrics.IncPageProcessed()
	telemetry.Info("page.processed", fields)
	return doc, nil
}

// persistFailure records a page that could not be processed as an
// unknown document carrying the error, so the job can finish and the
// user sees which page degraded.
func (e *Extractor) persistFailure(ctx context.Context, jobID, userID string, page render.PageImage, cause error) (Document, error) {
	payload, _ := json.Marshal(map[string]string{"error": cause.Error()})
	doc := Document{
		ID:         uuid.NewString(),
		JobID:      jobID,
		UserID:     userID,
		PageNumber: page.Number,
		DocType:    TypeUnknown,
		Status:     StatusUnknown,
		Payload:    payload,
		StorageKey: e.savePageImage(ctx, jobID, page),
		CreatedAt:  time.Now().UTC(),
	}
	if err := e.Repo.Create(ctx, doc); err != nil {
		return Document{}, fmt.Errorf("persist failed page %d: %w", page.Number, err)
	}
	metrics.IncPageFailed()
	return doc, cause
}

// savePageImage stores the rendered page for later review. Failures are
// logged and tolerated; the image is a convenience, not workflow state.
func (e *Extractor) savePageImage(ctx context.Context, jobID string, page render.PageImage) string {
	if e.Store == nil {
		return ""
	}
	key := fmt.Sprintf("jobs/%s/pages/page-%d.png", jobID, page.Number)
	if _, err := e.Store.SaveWithKey(ctx, key, "image/png", bytes.NewReader(page.PNG)); err != nil {
		telemetry.Error("page.image_save_failed", map[string]any{
			"job_id": jobID, "page": page.Number, "error": err.Error(),
		})
		return ""
	}
	return key
}

func withErr(fields map[string]any, err error) map[string]any {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["error"] = err.Error()
	return out
}
