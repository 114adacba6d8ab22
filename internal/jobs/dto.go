package jobs

import "time"

type jobResponse struct {
	JobID        string     `json:"jobId"`
	FileName     string     `json:"fileName"`
	Status       string     `json:"status"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	FailedAt     *time.Time `json:"failedAt,omitempty"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

func toResponse(job Job) jobResponse {
	return jobResponse{
		JobID:        job.ID,
		FileName:     job.FileName,
		Status:       job.Status,
		ErrorMessage: job.ErrorMessage,
		CreatedAt:    job.CreatedAt,
		StartedAt:    job.StartedAt,
		CompletedAt:  job.CompletedAt,
		FailedAt:     job.FailedAt,
		UpdatedAt:    job.UpdatedAt,
	}
}
