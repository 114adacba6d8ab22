package pages

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"bills-backend/internal/extract"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new page document.
func (r *PGRepo) Create(ctx context.Context, doc Document) error {
	const query = `
INSERT INTO page_documents (
    id,
    job_id,
    user_id,
    page_number,
    doc_type,
    status,
    payload,
    po_number,
    items,
    storage_key,
    created_at,
    updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)`

	payload := nullableJSON(doc.Payload)
	items, err := marshalItems(doc.Items)
	if err != nil {
		return err
	}

	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = r.DB.ExecContext(
		ctx,
		query,
		doc.ID,
		doc.JobID,
		doc.UserID,
		doc.PageNumber,
		doc.DocType,
		doc.Status,
		payload,
		doc.PONumber,
		items,
		doc.StorageKey,
		createdAt,
	)
	return err
}

const docColumns = `id, job_id, user_id, page_number, doc_type, status, payload, po_number, items, storage_key, created_at, updated_at`

// GetByID returns a document scoped to its owner.
func (r *PGRepo) GetByID(ctx context.Context, userID, docID string) (Document, error) {
	const query = `
SELECT ` + docColumns + `
FROM page_documents
WHERE id = $1 AND user_id = $2`
	doc, err := scanDocument(r.DB.QueryRowContext(ctx, query, docID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

// ListByJob returns all page documents of a job in page order.
func (r *PGRepo) ListByJob(ctx context.Context, jobID string) ([]Document, error) {
	const query = `
SELECT ` + docColumns + `
FROM page_documents
WHERE job_id = $1
ORDER BY page_number ASC`
	rows, err := r.DB.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// UpdatePONumber records the user-confirmed PO number.
func (r *PGRepo) UpdatePONumber(ctx context.Context, docID, poNumber string) error {
	const query = `
UPDATE page_documents SET po_number = $2, updated_at = $3 WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, docID, poNumber, time.Now().UTC())
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpdateStatus transitions the document's draft state.
func (r *PGRepo) UpdateStatus(ctx context.Context, docID, status string) error {
	const query = `
UPDATE page_documents SET status = $2, updated_at = $3 WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, docID, status, time.Now().UTC())
	if err != nil {
		return err
	}
	return requireRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var doc Document
	var payload, items []byte
	err := row.Scan(
		&doc.ID,
		&doc.JobID,
		&doc.UserID,
		&doc.PageNumber,
		&doc.DocType,
		&doc.Status,
		&payload,
		&doc.PONumber,
		&items,
		&doc.StorageKey,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return Document{}, err
	}
	if len(payload) > 0 {
		doc.Payload = json.RawMessage(payload)
	}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &doc.Items); err != nil {
			return Document{}, err
		}
	}
	return doc, nil
}

func marshalItems(items []extract.Item) (any, error) {
	if len(items) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
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
