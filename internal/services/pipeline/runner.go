// -----------------------------------------------------------------------
// Pipeline runner - Advances a session through its checkpointed stages
// -----------------------------------------------------------------------

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/quill/internal/interfaces"
	"github.com/ternarybob/quill/internal/models"
)

// Stage is one idempotent step of the session pipeline. A nil or empty delta means no change.
type Stage interface {
	Ensure(ctx context.Context, state *models.SessionState) (*models.SessionDelta, error)
}

type namedStage struct {
	name  string
	stage Stage
}

// Runner loads a session checkpoint, runs the stages in order and persists
// each stage's delta before the next one starts.
type Runner struct {
	sessions interfaces.SessionStorage
	stages   []namedStage
	failFast bool
	logger   arbor.ILogger
}

// NewRunner creates a runner for the transcript and extraction stages
func NewRunner(sessions interfaces.SessionStorage, transcripts, extraction Stage, failFast bool, logger arbor.ILogger) *Runner {
	return &Runner{
		sessions: sessions,
		stages: []namedStage{
			{name: "transcripts", stage: transcripts},
			{name: "extraction", stage: extraction},
		},
		failFast: failFast,
		logger:   logger,
	}
}

// Prepare brings a session up to date: load or create, fill ids, then run every stage
func (r *Runner) Prepare(ctx context.Context, sessionID, customerID, opportunityID string) (*models.SessionState, error) {
	state, err := r.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = models.NewSessionState(sessionID)
		state.FailFast = r.failFast
		r.logger.Debug().Str("session_id", sessionID).Msg("Starting new session")
	}

	ids := &models.SessionDelta{}
	if state.CustomerID == "" && customerID != "" {
		ids.CustomerID = &customerID
	}
	if state.OpportunityID == "" && opportunityID != "" {
		ids.OpportunityID = &opportunityID
	}
	if state, err = r.Commit(ctx, state, ids); err != nil {
		return nil, err
	}

	for _, s := range r.stages {
		start := time.Now()
		delta, err := s.stage.Ensure(ctx, state)
		if err != nil {
			return nil, fmt.Errorf("%s stage: %w", s.name, err)
		}
		if state, err = r.Commit(ctx, state, delta); err != nil {
			return nil, err
		}
		r.logger.Debug().
			Str("session_id", sessionID).
			Str("stage", s.name).
			Bool("changed", !delta.IsEmpty()).
			Dur("duration", time.Since(start)).
			Msg("Pipeline stage finished")
	}

	return state, nil
}

// Load returns the session checkpoint, or nil when none exists
func (r *Runner) Load(ctx context.Context, sessionID string) (*models.SessionState, error) {
	state, err := r.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	return state, nil
}

// Commit applies a delta and persists the result. An empty delta returns state unchanged.
func (r *Runner) Commit(ctx context.Context, state *models.SessionState, delta *models.SessionDelta) (*models.SessionState, error) {
	if delta.IsEmpty() {
		return state, nil
	}
	next := state.Apply(delta)
	if err := r.sessions.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to save session %s: %w", next.SessionID, err)
	}
	return next, nil
}
