package interfaces

import (
	"context"
	"time"
)

// Job lifecycle event types
const (
	EventJobProcessing = "job.processing"
	EventJobCompleted  = "job.completed"
	EventJobFailed     = "job.failed"
)

// JobEvent is a job lifecycle notification
type JobEvent struct {
	Type      string    `json:"type"` // job.processing, job.completed, job.failed
	JobID     string    `json:"job_id"`
	JobType   string    `json:"job_type"`
	SessionID string    `json:"session_id"`
	Status    string    `json:"status"`
	ErrorCode string    `json:"error_code,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EventPublisher publishes job lifecycle events. Failures must not affect jobs.
type EventPublisher interface {
	Publish(ctx context.Context, event JobEvent) error
	Close() error
}
