package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/quill/internal/models"
)

// JobStorage is the durable record of submitted jobs.
// Get returns (nil, nil) for an unknown, expired or unreadable job.
type JobStorage interface {
	// Create stores a new PENDING job under a freshly generated id
	Create(ctx context.Context, jobType models.JobType, metadata models.JobMetadata) (*models.Job, error)

	// CreateWithID stores a new PENDING job under a caller-supplied id
	CreateWithID(ctx context.Context, id string, jobType models.JobType, metadata models.JobMetadata) (*models.Job, error)

	Get(ctx context.Context, id string) (*models.Job, error)

	// Update overwrites the whole record, last writer wins
	Update(ctx context.Context, job *models.Job) error

	// Delete removes a job, returning false when it did not exist
	Delete(ctx context.Context, id string) (bool, error)
}

// JobReaper is implemented by job stores without native expiry
type JobReaper interface {
	// CleanupOldJobs removes terminal jobs not updated within maxAge and returns the count removed
	CleanupOldJobs(ctx context.Context, maxAge time.Duration) (int, error)
}

// SessionStorage persists session pipeline checkpoints keyed by session id.
// Load returns (nil, nil) when no checkpoint exists.
type SessionStorage interface {
	Load(ctx context.Context, sessionID string) (*models.SessionState, error)
	Save(ctx context.Context, state *models.SessionState) error
	Delete(ctx context.Context, sessionID string) error
}
