package facts

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/quill/internal/interfaces"
	"github.com/ternarybob/quill/internal/models"
	"github.com/ternarybob/quill/internal/services/workspace"
)

type fakeProvider struct {
	mu      sync.Mutex
	calls   int
	temps   []float32
	respond func(prompt string) (interface{}, error)
}

func (p *fakeProvider) GenerateText(ctx context.Context, prompt string, opts interfaces.GenerateOptions) (string, error) {
	return "", errors.New("not used")
}

func (p *fakeProvider) GenerateJSON(ctx context.Context, prompt string, schema map[string]interface{}, opts interfaces.GenerateOptions) (interface{}, error) {
	p.mu.Lock()
	p.calls++
	p.temps = append(p.temps, opts.Temperature)
	p.mu.Unlock()
	return p.respond(prompt)
}

func writeTranscript(t *testing.T, dir, name, text string) models.FileRef {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(text), 0644))
	return models.FileRef{Name: name, Path: path, FetchedAt: time.Now()}
}

func item(factType, value, confidence, quote string) map[string]interface{} {
	return map[string]interface{}{
		"type":       factType,
		"value":      value,
		"confidence": confidence,
		"evidence":   map[string]interface{}{"quote": quote},
	}
}

func TestExtractor_ZeroTranscripts(t *testing.T) {
	ws := workspace.New(t.TempDir())
	provider := &fakeProvider{respond: func(string) (interface{}, error) { return []interface{}{}, nil }}
	ex := NewExtractor(provider, ws, arbor.NewLogger())

	state := models.NewSessionState("s1")
	delta, err := ex.Ensure(context.Background(), state)
	require.NoError(t, err)
	require.NotNil(t, delta)

	next := state.Apply(delta)
	assert.True(t, next.ContextExtracted)
	assert.Equal(t, 0, provider.calls)

	facts, err := Load(ws, next.Context)
	require.NoError(t, err)
	assert.Empty(t, facts)
	assert.True(t, ws.Exists(ws.FactsStatsPath("s1")))
}

func TestExtractor_RequiresLoadedTranscripts(t *testing.T) {
	ws := workspace.New(t.TempDir())
	ex := NewExtractor(&fakeProvider{}, ws, arbor.NewLogger())

	state := models.NewSessionState("s1")
	state.Transcripts["call"] = writeTranscript(t, t.TempDir(), "call.txt", "hello")

	_, err := ex.Ensure(context.Background(), state)
	assert.ErrorIs(t, err, ErrTranscriptsNotLoaded)
}

func TestExtractor_MergesAndWritesStats(t *testing.T) {
	dir := t.TempDir()
	ws := workspace.New(t.TempDir())
	provider := &fakeProvider{respond: func(prompt string) (interface{}, error) {
		if strings.Contains(prompt, "transcript_key: broken") {
			return nil, errors.New("provider unavailable")
		}
		if strings.Contains(prompt, "transcript_key: odd") {
			return map[string]interface{}{"not": "a list"}, nil
		}
		return []interface{}{
			item("KPI", "  Budget  ", "LOW", ""),
			item("KPI", "budget", "HIGH", "around 200k"),
			item("NOT_A_TYPE", "dropped", "HIGH", ""),
			item("RISK", "", "HIGH", ""),
		}, nil
	}}
	ex := NewExtractor(provider, ws, arbor.NewLogger())

	state := models.NewSessionState("s1")
	state.Transcripts["call"] = writeTranscript(t, dir, "call.txt", "we have around 200k of budget")
	state.Transcripts["broken"] = writeTranscript(t, dir, "broken.txt", "something")
	state.Transcripts["odd"] = writeTranscript(t, dir, "odd.txt", "something else")
	state.TranscriptsLoaded = true

	delta, err := ex.Ensure(context.Background(), state)
	require.NoError(t, err)
	next := state.Apply(delta)
	require.True(t, next.ContextExtracted)

	facts, err := Load(ws, next.Context)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, models.ConfidenceHigh, facts[0].Confidence)
	assert.Equal(t, "call", facts[0].Evidence.TranscriptKey)
	assert.Equal(t, "call.txt", facts[0].Evidence.TranscriptFile)

	data, err := os.ReadFile(next.ContextStats.Path)
	require.NoError(t, err)
	var stats map[string]TranscriptStats
	require.NoError(t, json.Unmarshal(data, &stats))
	assert.Equal(t, []int{0}, stats["call"].ChunksWithFacts)
	assert.Equal(t, 1, stats["broken"].NumChunks)
	assert.Empty(t, stats["broken"].ChunksWithFacts)
	assert.Empty(t, stats["odd"].ChunksWithFacts)

	for _, temp := range provider.temps {
		assert.InDelta(t, 0.2, temp, 0.0001)
	}
}

func TestExtractor_NoOpWhenExtracted(t *testing.T) {
	ws := workspace.New(t.TempDir())
	provider := &fakeProvider{respond: func(string) (interface{}, error) { return []interface{}{}, nil }}
	ex := NewExtractor(provider, ws, arbor.NewLogger())

	state := models.NewSessionState("s1")
	delta, err := ex.Ensure(context.Background(), state)
	require.NoError(t, err)
	state = state.Apply(delta)

	delta, err = ex.Ensure(context.Background(), state)
	require.NoError(t, err)
	assert.Nil(t, delta)
}

func TestExtractor_ExtractsTranscriptsAddedAfterEmptyContext(t *testing.T) {
	ws := workspace.New(t.TempDir())
	provider := &fakeProvider{respond: func(string) (interface{}, error) {
		return []interface{}{item("KPI", "budget", "HIGH", "200k")}, nil
	}}
	ex := NewExtractor(provider, ws, arbor.NewLogger())

	state := models.NewSessionState("s1")
	delta, err := ex.Ensure(context.Background(), state)
	require.NoError(t, err)
	state = state.Apply(delta)
	require.True(t, state.ContextExtracted)
	assert.Equal(t, 0, provider.calls)

	state.Transcripts["call"] = writeTranscript(t, t.TempDir(), "call.txt", "we have 200k of budget")
	state.TranscriptsLoaded = true

	delta, err = ex.Ensure(context.Background(), state)
	require.NoError(t, err)
	require.NotNil(t, delta)
	state = state.Apply(delta)
	assert.Equal(t, 1, provider.calls)

	facts, err := Load(ws, state.Context)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "budget", facts[0].Value)

	delta, err = ex.Ensure(context.Background(), state)
	require.NoError(t, err)
	assert.Nil(t, delta)
	assert.Equal(t, 1, provider.calls)
}

func TestExtractor_OnlyExtractsUncoveredTranscripts(t *testing.T) {
	dir := t.TempDir()
	ws := workspace.New(t.TempDir())
	provider := &fakeProvider{respond: func(prompt string) (interface{}, error) {
		if strings.Contains(prompt, "transcript_key: second") {
			return []interface{}{item("RISK", "vendor lock-in", "MEDIUM", "")}, nil
		}
		return []interface{}{item("KPI", "budget", "HIGH", "200k")}, nil
	}}
	ex := NewExtractor(provider, ws, arbor.NewLogger())

	state := models.NewSessionState("s1")
	state.Transcripts["first"] = writeTranscript(t, dir, "first.txt", "budget talk")
	state.TranscriptsLoaded = true
	delta, err := ex.Ensure(context.Background(), state)
	require.NoError(t, err)
	state = state.Apply(delta)
	require.Equal(t, 1, provider.calls)

	state.Transcripts["second"] = writeTranscript(t, dir, "second.txt", "risk talk")
	delta, err = ex.Ensure(context.Background(), state)
	require.NoError(t, err)
	state = state.Apply(delta)
	assert.Equal(t, 2, provider.calls)

	facts, err := Load(ws, state.Context)
	require.NoError(t, err)
	require.Len(t, facts, 2)

	data, err := os.ReadFile(state.ContextStats.Path)
	require.NoError(t, err)
	var stats map[string]TranscriptStats
	require.NoError(t, json.Unmarshal(data, &stats))
	assert.Contains(t, stats, "first")
	assert.Contains(t, stats, "second")
}
