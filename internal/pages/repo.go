package pages

import "context"

// Repo defines persistence operations for page documents.
type Repo interface {
	Create(ctx context.Context, doc Document) error
	// GetByID returns a document only if it belongs to userID.
	GetByID(ctx context.Context, userID, docID string) (Document, error)
	ListByJob(ctx context.Context, jobID string) ([]Document, error)
	UpdatePONumber(ctx context.Context, docID, poNumber string) error
	UpdateStatus(ctx context.Context, docID, status string) error
}
