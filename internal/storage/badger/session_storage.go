package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/quill/internal/interfaces"
	"github.com/ternarybob/quill/internal/models"
)

// SessionStorage checkpoints session pipeline state with badgerhold, keyed by session id
type SessionStorage struct {
	db     *DB
	logger arbor.ILogger
}

var _ interfaces.SessionStorage = (*SessionStorage)(nil)

// NewSessionStorage creates a new session checkpoint store
func NewSessionStorage(db *DB, logger arbor.ILogger) *SessionStorage {
	return &SessionStorage{
		db:     db,
		logger: logger,
	}
}

func (s *SessionStorage) Load(ctx context.Context, sessionID string) (*models.SessionState, error) {
	var state models.SessionState
	if err := s.db.Hold().Get(sessionID, &state); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}

	// gob drops empty maps
	if state.Transcripts == nil {
		state.Transcripts = make(map[string]models.FileRef)
	}
	if state.CompletedSections == nil {
		state.CompletedSections = make(map[string]models.SectionRef)
	}
	if state.CachedPaths == nil {
		state.CachedPaths = make(map[string]string)
	}
	return &state, nil
}

// Save writes the whole snapshot in a single upsert
func (s *SessionStorage) Save(ctx context.Context, state *models.SessionState) error {
	if state == nil || state.SessionID == "" {
		return fmt.Errorf("session with id is required")
	}
	if err := s.db.Hold().Upsert(state.SessionID, state); err != nil {
		return fmt.Errorf("failed to save session %s: %w", state.SessionID, err)
	}

	s.logger.Debug().
		Str("session_id", state.SessionID).
		Int("version", state.Version).
		Msg("Session checkpoint saved")
	return nil
}

func (s *SessionStorage) Delete(ctx context.Context, sessionID string) error {
	err := s.db.Hold().Delete(sessionID, models.SessionState{})
	if err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	return nil
}
