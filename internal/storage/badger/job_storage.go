package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/quill/internal/common"
	"github.com/ternarybob/quill/internal/interfaces"
	"github.com/ternarybob/quill/internal/models"
	"github.com/ternarybob/quill/internal/storage/errs"
)

const (
	jobKeyPrefix = "job:"

	// DefaultJobTTL is how long an untouched job record survives
	DefaultJobTTL = 24 * time.Hour
)

// JobStorage stores jobs as JSON under job:<id> with a per-record TTL.
// Every write resets the TTL so jobs being worked on never expire mid-flight.
type JobStorage struct {
	db     *DB
	ttl    time.Duration
	logger arbor.ILogger
}

var _ interfaces.JobStorage = (*JobStorage)(nil)

// NewJobStorage creates a TTL job store. A non-positive ttl uses DefaultJobTTL.
func NewJobStorage(db *DB, ttl time.Duration, logger arbor.ILogger) *JobStorage {
	if ttl <= 0 {
		ttl = DefaultJobTTL
	}
	return &JobStorage{
		db:     db,
		ttl:    ttl,
		logger: logger,
	}
}

func jobKey(id string) []byte {
	return []byte(jobKeyPrefix + id)
}

func (s *JobStorage) Create(ctx context.Context, jobType models.JobType, metadata models.JobMetadata) (*models.Job, error) {
	return s.CreateWithID(ctx, common.NewJobID(), jobType, metadata)
}

func (s *JobStorage) CreateWithID(ctx context.Context, id string, jobType models.JobType, metadata models.JobMetadata) (*models.Job, error) {
	if id == "" {
		return nil, fmt.Errorf("job id is required")
	}

	job := models.NewJob(id, jobType, metadata)
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}

	err = s.db.Raw().Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(jobKey(id)); err == nil {
			return fmt.Errorf("%w: %s", errs.ErrJobExists, id)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.SetEntry(badger.NewEntry(jobKey(id), data).WithTTL(s.ttl))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create job %s: %w", id, err)
	}

	s.logger.Debug().Str("job_id", id).Str("job_type", string(jobType)).Msg("Job created")
	return job, nil
}

// Get returns nil for unknown, expired and undecodable records
func (s *JobStorage) Get(ctx context.Context, id string) (*models.Job, error) {
	var data []byte
	err := s.db.Raw().View(func(txn *badger.Txn) error {
		item, err := txn.Get(jobKey(id))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read job %s: %w", id, err)
	}

	var job models.Job
	if err := json.Unmarshal(data, &job); err != nil {
		s.logger.Warn().Err(err).Str("job_id", id).Msg("Discarding unreadable job record")
		return nil, nil
	}
	return &job, nil
}

func (s *JobStorage) Update(ctx context.Context, job *models.Job) error {
	if job == nil || job.ID == "" {
		return fmt.Errorf("job with id is required")
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	err = s.db.Raw().Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(jobKey(job.ID), data).WithTTL(s.ttl))
	})
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", job.ID, err)
	}
	return nil
}

func (s *JobStorage) Delete(ctx context.Context, id string) (bool, error) {
	existed := false
	err := s.db.Raw().Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(jobKey(id)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		existed = true
		return txn.Delete(jobKey(id))
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete job %s: %w", id, err)
	}
	return existed, nil
}
