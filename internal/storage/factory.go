package storage

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/quill/internal/common"
	"github.com/ternarybob/quill/internal/interfaces"
	"github.com/ternarybob/quill/internal/storage/badger"
	"github.com/ternarybob/quill/internal/storage/memory"
)

// Stores bundles the persistence used by the service
type Stores struct {
	Jobs     interfaces.JobStorage
	Sessions interfaces.SessionStorage
	badger   *badger.Manager
}

// Close releases the underlying database
func (s *Stores) Close() error {
	if s.badger != nil {
		return s.badger.Close()
	}
	return nil
}

// NewStores opens Badger for session checkpoints and selects the job store backend from config.
// jobs.store = "badger" uses TTL records; "memory" keeps jobs in process.
func NewStores(logger arbor.ILogger, config *common.Config) (*Stores, error) {
	ttl := common.ParseDurationOr(config.Jobs.TTL, badger.DefaultJobTTL)

	mgr, err := badger.NewManager(logger, &config.Storage.Badger, ttl)
	if err != nil {
		return nil, err
	}

	stores := &Stores{
		Sessions: mgr.SessionStorage(),
		badger:   mgr,
	}

	switch config.Jobs.Store {
	case "badger":
		stores.Jobs = mgr.JobStorage()
	case "memory", "":
		stores.Jobs = memory.NewJobStorage(logger)
	default:
		mgr.Close()
		return nil, fmt.Errorf("unsupported job store: %s (expected memory or badger)", config.Jobs.Store)
	}

	logger.Info().
		Str("job_store", config.Jobs.Store).
		Dur("job_ttl", ttl).
		Msg("Storage initialized")

	return stores, nil
}
