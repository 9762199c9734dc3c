package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/quill/internal/models"
)

func TestSessionStorage_LoadMissing(t *testing.T) {
	store := NewSessionStorage(newTestDB(t), arbor.NewLogger())

	state, err := store.Load(context.Background(), "unknown")
	assert.NoError(t, err)
	assert.Nil(t, state)
}

func TestSessionStorage_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStorage(newTestDB(t), arbor.NewLogger())

	loaded := true
	state := models.NewSessionState("s1").Apply(&models.SessionDelta{
		Transcripts: map[string]models.FileRef{
			"discovery_call": {Name: "discovery_call", Path: "/t/discovery_call.txt", FetchedAt: time.Now().UTC()},
		},
		TranscriptsLoaded: &loaded,
	})
	require.NoError(t, store.Save(ctx, state))

	got, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, 1, got.Version)
	assert.True(t, got.TranscriptsLoaded)
	assert.Contains(t, got.Transcripts, "discovery_call")
	assert.NotNil(t, got.CompletedSections, "empty maps are restored")
	assert.NotNil(t, got.CachedPaths)
}

func TestSessionStorage_SaveOverwritesAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStorage(newTestDB(t), arbor.NewLogger())

	state := models.NewSessionState("s1")
	require.NoError(t, store.Save(ctx, state))

	extracted := true
	next := state.Apply(&models.SessionDelta{
		ContextExtracted: &extracted,
		Context:          &models.FileRef{Name: "context_facts", Path: "/c/s1_facts.json"},
	})
	require.NoError(t, store.Save(ctx, next))

	got, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, got.ContextExtracted)
	require.NotNil(t, got.Context)

	require.NoError(t, store.Delete(ctx, "s1"))
	got, err = store.Load(ctx, "s1")
	assert.NoError(t, err)
	assert.Nil(t, got)

	// Deleting twice is not an error
	assert.NoError(t, store.Delete(ctx, "s1"))
}
