// -----------------------------------------------------------------------
// Session State - Checkpointed per-session pipeline progress
// -----------------------------------------------------------------------

package models

import (
	"sort"
	"time"
)

// FileRef is a handle to a session artifact on durable storage
type FileRef struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	FetchedAt time.Time `json:"fetched_at"`
}

// SectionSource records where a completed section came from
type SectionSource string

const (
	SectionSourceGenerated SectionSource = "generated"
	SectionSourceRefined   SectionSource = "refined"
	SectionSourceExternal  SectionSource = "external"
)

// SectionRef is a handle to a completed section artifact
type SectionRef struct {
	ID        string        `json:"section_id"`
	Key       string        `json:"key"`
	Path      string        `json:"path"`
	DocsPath  string        `json:"docs_path,omitempty"`
	UpdatedAt time.Time     `json:"updated_at"`
	Source    SectionSource `json:"source"`
}

// CachedPathTranscriptFailures is the CachedPaths key for the transcript failure list
const CachedPathTranscriptFailures = "transcript_failures"

// SessionState is the checkpointed pipeline progress for one session.
// Maps only grow: stages add entries through a SessionDelta and never remove them.
type SessionState struct {
	SessionID     string `json:"session_id" badgerhold:"key"`
	Version       int    `json:"version"`
	CustomerID    string `json:"customer_id,omitempty"`
	OpportunityID string `json:"opportunity_id,omitempty"`
	FailFast      bool   `json:"fail_fast"`

	Transcripts       map[string]FileRef `json:"transcripts"`
	TranscriptsLoaded bool               `json:"transcripts_loaded"`

	ContextExtracted bool     `json:"context_extracted"`
	Context          *FileRef `json:"context,omitempty"`
	ContextStats     *FileRef `json:"context_stats,omitempty"`

	CompletedSections map[string]SectionRef `json:"completed_sections"`
	CachedPaths       map[string]string     `json:"cached_paths"`

	UpdatedAt time.Time `json:"updated_at"`
}

// NewSessionState creates an empty state for a session
func NewSessionState(sessionID string) *SessionState {
	return &SessionState{
		SessionID:         sessionID,
		Transcripts:       make(map[string]FileRef),
		CompletedSections: make(map[string]SectionRef),
		CachedPaths:       make(map[string]string),
		UpdatedAt:         time.Now().UTC(),
	}
}

// SessionDelta is the change a single stage makes to a SessionState.
// Nil pointer fields leave the state untouched.
type SessionDelta struct {
	CustomerID        *string
	OpportunityID     *string
	Transcripts       map[string]FileRef
	TranscriptsLoaded *bool
	ContextExtracted  *bool
	Context           *FileRef
	ContextStats      *FileRef
	CompletedSections map[string]SectionRef
	CachedPaths       map[string]string
}

// IsEmpty reports whether applying the delta would change nothing
func (d *SessionDelta) IsEmpty() bool {
	return d == nil || (d.CustomerID == nil && d.OpportunityID == nil &&
		len(d.Transcripts) == 0 && d.TranscriptsLoaded == nil &&
		d.ContextExtracted == nil && d.Context == nil && d.ContextStats == nil &&
		len(d.CompletedSections) == 0 && len(d.CachedPaths) == 0)
}

// Apply returns a new state with the delta merged in and Version incremented.
// The receiver is not modified. Flags only move from false to true.
func (s *SessionState) Apply(d *SessionDelta) *SessionState {
	next := s.Clone()
	if d.IsEmpty() {
		return next
	}

	if d.CustomerID != nil && next.CustomerID == "" {
		next.CustomerID = *d.CustomerID
	}
	if d.OpportunityID != nil && next.OpportunityID == "" {
		next.OpportunityID = *d.OpportunityID
	}
	for k, v := range d.Transcripts {
		next.Transcripts[k] = v
	}
	if d.TranscriptsLoaded != nil && *d.TranscriptsLoaded {
		next.TranscriptsLoaded = true
	}
	if d.Context != nil {
		ref := *d.Context
		next.Context = &ref
	}
	if d.ContextStats != nil {
		ref := *d.ContextStats
		next.ContextStats = &ref
	}
	if d.ContextExtracted != nil && *d.ContextExtracted && next.Context != nil {
		next.ContextExtracted = true
	}
	for k, v := range d.CompletedSections {
		next.CompletedSections[k] = v
	}
	for k, v := range d.CachedPaths {
		next.CachedPaths[k] = v
	}

	next.Version++
	next.UpdatedAt = time.Now().UTC()
	return next
}

// SectionKeys returns the completed section keys in sorted order
func (s *SessionState) SectionKeys() []string {
	keys := make([]string, 0, len(s.CompletedSections))
	for k := range s.CompletedSections {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// TranscriptKeys returns the transcript keys in sorted order
func (s *SessionState) TranscriptKeys() []string {
	keys := make([]string, 0, len(s.Transcripts))
	for k := range s.Transcripts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a deep copy of the state
func (s *SessionState) Clone() *SessionState {
	c := *s
	c.Transcripts = make(map[string]FileRef, len(s.Transcripts))
	for k, v := range s.Transcripts {
		c.Transcripts[k] = v
	}
	c.CompletedSections = make(map[string]SectionRef, len(s.CompletedSections))
	for k, v := range s.CompletedSections {
		c.CompletedSections[k] = v
	}
	c.CachedPaths = make(map[string]string, len(s.CachedPaths))
	for k, v := range s.CachedPaths {
		c.CachedPaths[k] = v
	}
	if s.Context != nil {
		ref := *s.Context
		c.Context = &ref
	}
	if s.ContextStats != nil {
		ref := *s.ContextStats
		c.ContextStats = &ref
	}
	return &c
}
