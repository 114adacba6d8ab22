package pages

import (
	"encoding/json"
	"time"

	"bills-backend/internal/extract"
)

// Document types assigned by classification.
const (
	TypeBill     = "bill"
	TypeEwayBill = "eway_bill"
	TypeUnknown  = "unknown"
)

// Draft workflow states of a page document.
const (
	StatusDraftPending = "draft_pending"
	StatusDraftCreated = "draft_created"
	StatusUnknown      = "unknown"
)

// Document is one classified page of a processed upload.
type Document struct {
	ID         string          `json:"id"`
	JobID      string          `json:"jobId"`
	UserID     string          `json:"userId"`
	PageNumber int             `json:"pageNumber"`
	DocType    string          `json:"docType"`
	Status     string          `json:"status"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	PONumber   string          `json:"poNumber,omitempty"`
	Items      []extract.Item  `json:"items,omitempty"`
	StorageKey string          `json:"-"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}
