// Package memory provides a process-lifetime job store.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/quill/internal/common"
	"github.com/ternarybob/quill/internal/interfaces"
	"github.com/ternarybob/quill/internal/models"
	"github.com/ternarybob/quill/internal/storage/errs"
)

// JobStorage keeps jobs in a mutex-guarded map. Records live until deleted
// or reaped by CleanupOldJobs.
type JobStorage struct {
	mu     sync.RWMutex
	jobs   map[string]*models.Job
	logger arbor.ILogger
}

var (
	_ interfaces.JobStorage = (*JobStorage)(nil)
	_ interfaces.JobReaper  = (*JobStorage)(nil)
)

// NewJobStorage creates an empty in-memory job store
func NewJobStorage(logger arbor.ILogger) *JobStorage {
	return &JobStorage{
		jobs:   make(map[string]*models.Job),
		logger: logger,
	}
}

func (s *JobStorage) Create(ctx context.Context, jobType models.JobType, metadata models.JobMetadata) (*models.Job, error) {
	return s.CreateWithID(ctx, common.NewJobID(), jobType, metadata)
}

func (s *JobStorage) CreateWithID(ctx context.Context, id string, jobType models.JobType, metadata models.JobMetadata) (*models.Job, error) {
	if id == "" {
		return nil, fmt.Errorf("job id is required")
	}

	job := models.NewJob(id, jobType, metadata)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[id]; exists {
		return nil, fmt.Errorf("%w: %s", errs.ErrJobExists, id)
	}
	s.jobs[id] = job.Clone()

	return job, nil
}

func (s *JobStorage) Get(ctx context.Context, id string) (*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	return job.Clone(), nil
}

func (s *JobStorage) Update(ctx context.Context, job *models.Job) error {
	if job == nil || job.ID == "" {
		return fmt.Errorf("job with id is required")
	}

	s.mu.Lock()
	s.jobs[job.ID] = job.Clone()
	s.mu.Unlock()

	return nil
}

func (s *JobStorage) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return false, nil
	}
	delete(s.jobs, id)
	return true, nil
}

// CleanupOldJobs removes COMPLETED and FAILED jobs whose UpdatedAt is older than maxAge.
// PENDING and PROCESSING jobs are kept so a slow job can still record its outcome.
func (s *JobStorage) CleanupOldJobs(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-maxAge)

	s.mu.Lock()
	removed := 0
	for id, job := range s.jobs {
		if job.Status.IsTerminal() && job.UpdatedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	remaining := len(s.jobs)
	s.mu.Unlock()

	if removed > 0 {
		s.logger.Info().
			Int("removed", removed).
			Int("remaining", remaining).
			Dur("max_age", maxAge).
			Msg("Cleaned up inactive jobs")
	}

	return removed, nil
}

// Count returns the number of stored jobs
func (s *JobStorage) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
