package facts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/quill/internal/interfaces"
	"github.com/ternarybob/quill/internal/models"
	"github.com/ternarybob/quill/internal/services/workspace"
)

// ErrTranscriptsNotLoaded is returned when transcripts exist but the loading stage has not completed
var ErrTranscriptsNotLoaded = errors.New("transcripts not loaded")

const extractTemperature = 0.2

// TranscriptStats summarises extraction for one transcript
type TranscriptStats struct {
	TranscriptFile  string `json:"transcript_file"`
	NumChunks       int    `json:"num_chunks"`
	ChunksWithFacts []int  `json:"chunks_with_facts"`
}

// Extractor is the fact extraction stage of the session pipeline
type Extractor struct {
	provider     interfaces.TextProvider
	workspace    *workspace.Workspace
	logger       arbor.ILogger
	chunkChars   int
	chunkOverlap int
}

// NewExtractor creates an extractor using the default chunk window
func NewExtractor(provider interfaces.TextProvider, ws *workspace.Workspace, logger arbor.ILogger) *Extractor {
	return &Extractor{
		provider:     provider,
		workspace:    ws,
		logger:       logger,
		chunkChars:   DefaultChunkChars,
		chunkOverlap: DefaultChunkOverlap,
	}
}

// Ensure extracts facts for every loaded transcript not yet covered by the
// session's stats artifact, merging them into the existing collection.
// The returned delta is nil when there is nothing to change.
func (e *Extractor) Ensure(ctx context.Context, state *models.SessionState) (*models.SessionDelta, error) {
	if len(state.Transcripts) > 0 && !state.TranscriptsLoaded {
		return nil, ErrTranscriptsNotLoaded
	}

	collected, stats := e.previous(state)
	pending := make([]string, 0, len(state.Transcripts))
	for _, key := range state.TranscriptKeys() {
		if _, done := stats[key]; !done {
			pending = append(pending, key)
		}
	}
	if collected != nil && len(pending) == 0 {
		e.logger.Debug().Str("session_id", state.SessionID).Msg("Facts already extracted, skipping")
		return nil, nil
	}

	started := time.Now()
	for _, key := range pending {
		ref := state.Transcripts[key]
		text, err := os.ReadFile(ref.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read transcript %s: %w", key, err)
		}

		chunks := ChunkText(string(text), e.chunkChars, e.chunkOverlap)
		st := TranscriptStats{TranscriptFile: ref.Name, NumChunks: len(chunks), ChunksWithFacts: []int{}}

		for _, chunk := range chunks {
			batch := e.extractChunk(ctx, key, ref.Name, chunk)
			if len(batch) == 0 {
				continue
			}
			st.ChunksWithFacts = append(st.ChunksWithFacts, chunk.ID)
			collected = Merge(collected, batch)
		}
		stats[key] = st
	}

	if collected == nil {
		collected = []models.Fact{}
	}

	factsPath := e.workspace.FactsPath(state.SessionID)
	statsPath := e.workspace.FactsStatsPath(state.SessionID)
	if err := e.writeJSON(factsPath, collected); err != nil {
		return nil, err
	}
	if err := e.writeJSON(statsPath, stats); err != nil {
		return nil, err
	}

	e.logger.Info().
		Str("session_id", state.SessionID).
		Int("transcripts", len(state.Transcripts)).
		Int("extracted", len(pending)).
		Int("facts", len(collected)).
		Dur("duration", time.Since(started)).
		Msg("Fact extraction complete")

	now := time.Now().UTC()
	extracted := true
	return &models.SessionDelta{
		ContextExtracted: &extracted,
		Context:          &models.FileRef{Name: "facts.json", Path: factsPath, FetchedAt: now},
		ContextStats:     &models.FileRef{Name: "facts_stats.json", Path: statsPath, FetchedAt: now},
	}, nil
}

// previous returns the facts and stats of an earlier extraction. Facts are nil
// when the session has no usable artifacts, which forces a full extraction.
func (e *Extractor) previous(state *models.SessionState) ([]models.Fact, map[string]TranscriptStats) {
	stats := make(map[string]TranscriptStats, len(state.Transcripts))
	if !state.ContextExtracted || state.Context == nil || state.ContextStats == nil ||
		!e.workspace.Exists(state.Context.Path) {
		return nil, stats
	}

	collected, err := Load(e.workspace, state.Context)
	if err != nil {
		e.logger.Warn().Err(err).Str("session_id", state.SessionID).Msg("Facts artifact unreadable, extracting again")
		return nil, stats
	}
	data, err := e.workspace.ReadFile(state.ContextStats.Path)
	if err == nil {
		err = json.Unmarshal(data, &stats)
	}
	if err != nil {
		e.logger.Warn().Err(err).Str("session_id", state.SessionID).Msg("Facts stats unreadable, extracting again")
		return nil, make(map[string]TranscriptStats, len(state.Transcripts))
	}
	if stats == nil {
		stats = make(map[string]TranscriptStats, len(state.Transcripts))
	}
	return collected, stats
}

// extractChunk asks the provider for facts in one chunk. Provider errors and
// malformed responses skip the chunk; invalid items are dropped individually.
func (e *Extractor) extractChunk(ctx context.Context, key, file string, chunk Chunk) []models.Fact {
	prompt := buildExtractPrompt(key, file, chunk)
	raw, err := e.provider.GenerateJSON(ctx, prompt, models.FactSchema(), interfaces.GenerateOptions{
		Temperature: extractTemperature,
		SchemaName:  "facts",
	})
	if err != nil {
		e.logger.Warn().Err(err).Str("transcript", key).Int("chunk_id", chunk.ID).Msg("Fact extraction failed for chunk, skipping")
		return nil
	}

	items, ok := raw.([]interface{})
	if !ok {
		e.logger.Warn().Str("transcript", key).Int("chunk_id", chunk.ID).Msg("Provider returned non-list facts, skipping chunk")
		return nil
	}

	facts := make([]models.Fact, 0, len(items))
	for _, item := range items {
		f, err := decodeFact(item)
		if err != nil {
			e.logger.Debug().Err(err).Str("transcript", key).Int("chunk_id", chunk.ID).Msg("Dropping invalid fact")
			continue
		}
		if f.Evidence.TranscriptKey == "" {
			f.Evidence.TranscriptKey = key
		}
		if f.Evidence.TranscriptFile == "" {
			f.Evidence.TranscriptFile = file
		}
		f.Evidence.ChunkID = chunk.ID
		facts = append(facts, f)
	}
	return facts
}

func decodeFact(item interface{}) (models.Fact, error) {
	var f models.Fact
	data, err := json.Marshal(item)
	if err != nil {
		return f, err
	}
	if err := json.Unmarshal(data, &f); err != nil {
		return f, err
	}
	if err := f.Validate(); err != nil {
		return f, err
	}
	return f, nil
}

func (e *Extractor) writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return e.workspace.WriteFile(path, data)
}

// Load reads a facts artifact
func Load(ws *workspace.Workspace, ref *models.FileRef) ([]models.Fact, error) {
	if ref == nil {
		return []models.Fact{}, nil
	}
	data, err := ws.ReadFile(ref.Path)
	if err != nil {
		return nil, err
	}
	var facts []models.Fact
	if err := json.Unmarshal(data, &facts); err != nil {
		return nil, fmt.Errorf("failed to decode facts artifact: %w", err)
	}
	if facts == nil {
		facts = []models.Fact{}
	}
	return facts, nil
}
