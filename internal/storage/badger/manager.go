package badger

import (
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/quill/internal/common"
)

// Manager owns the Badger connection and the stores built on it
type Manager struct {
	db      *DB
	jobs    *JobStorage
	session *SessionStorage
	logger  arbor.ILogger
}

// NewManager opens Badger and creates the job and session stores
func NewManager(logger arbor.ILogger, config *common.BadgerConfig, jobTTL time.Duration) (*Manager, error) {
	db, err := Open(logger, config)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		db:      db,
		jobs:    NewJobStorage(db, jobTTL, logger),
		session: NewSessionStorage(db, logger),
		logger:  logger,
	}

	logger.Info().Str("path", config.Path).Msg("Badger storage manager initialized")
	return m, nil
}

// JobStorage returns the TTL job store
func (m *Manager) JobStorage() *JobStorage {
	return m.jobs
}

// SessionStorage returns the session checkpoint store
func (m *Manager) SessionStorage() *SessionStorage {
	return m.session
}

// Close closes the database
func (m *Manager) Close() error {
	return m.db.Close()
}
