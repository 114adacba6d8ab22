package jobs

import "time"

// Job status lifecycle. A job leaves in_queue exactly once per attempt;
// admin retry resets it back.
const (
	StatusInQueue    = "in_queue"
	StatusProcessing = "processing"
	StatusProcessed  = "processed"
	StatusError      = "error"
)

// Job is one uploaded file moving through the processing pipeline.
type Job struct {
	ID           string     `json:"id"`
	UserID       string     `json:"userId"`
	FileName     string     `json:"fileName"`
	OriginalSize int64      `json:"originalSize"`
	Status       string     `json:"status"`
	StorageKey   string     `json:"-"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	FailedAt     *time.Time `json:"failedAt,omitempty"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}
