// -----------------------------------------------------------------------
// Transcript loader - First stage of the session pipeline
// -----------------------------------------------------------------------

package transcripts

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/quill/internal/interfaces"
	"github.com/ternarybob/quill/internal/models"
	"github.com/ternarybob/quill/internal/services/workspace"
)

// DefaultMaxBytes caps the size of a single source document
const DefaultMaxBytes int64 = 25 * 1024 * 1024

const failuresFile = "_failures.txt"

// Loader fetches opportunity documents, stores them and extracts their text
type Loader struct {
	source    interfaces.DocumentSource
	extractor interfaces.TextExtractor
	workspace *workspace.Workspace
	logger    arbor.ILogger
	maxBytes  int64
}

// NewLoader creates the transcript stage. maxBytes <= 0 uses DefaultMaxBytes.
func NewLoader(source interfaces.DocumentSource, extractor interfaces.TextExtractor, ws *workspace.Workspace, maxBytes int64, logger arbor.ILogger) *Loader {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Loader{
		source:    source,
		extractor: extractor,
		workspace: ws,
		logger:    logger,
		maxBytes:  maxBytes,
	}
}

// Ensure loads transcripts for the session's opportunity unless they are already loaded.
// Item failures are collected; with FailFast the first one aborts the stage.
func (l *Loader) Ensure(ctx context.Context, state *models.SessionState) (*models.SessionDelta, error) {
	if state.TranscriptsLoaded {
		l.logger.Debug().Str("session_id", state.SessionID).Msg("Transcripts already loaded, skipping")
		return nil, nil
	}
	if state.CustomerID == "" || state.OpportunityID == "" {
		l.logger.Debug().Str("session_id", state.SessionID).Msg("Customer or opportunity id missing, skipping transcript load")
		return &models.SessionDelta{}, nil
	}

	docs, err := l.source.List(ctx, state.OpportunityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents for opportunity %s: %w", state.OpportunityID, err)
	}

	rawDir := l.workspace.TranscriptsRawDir(state.SessionID)
	extractedDir := l.workspace.TranscriptsExtractedDir(state.SessionID)

	loaded := make(map[string]models.FileRef)
	var failures []string

	for _, doc := range docs {
		ref, key, err := l.loadOne(ctx, doc, rawDir, extractedDir)
		if err != nil {
			if state.FailFast {
				return nil, fmt.Errorf("failed to load %s: %w", doc.FileName, err)
			}
			l.logger.Warn().Err(err).Str("file", doc.FileName).Msg("Transcript load failed, continuing")
			failures = append(failures, fmt.Sprintf("%s: %v", doc.FileName, err))
			continue
		}
		loaded[key] = ref
	}

	delta := &models.SessionDelta{Transcripts: loaded}

	if len(failures) > 0 {
		path := filepath.Join(extractedDir, failuresFile)
		if err := l.workspace.WriteFile(path, []byte(strings.Join(failures, "\n")+"\n")); err != nil {
			return nil, err
		}
		delta.CachedPaths = map[string]string{models.CachedPathTranscriptFailures: path}
	}

	transcriptsLoaded := len(state.Transcripts)+len(loaded) > 0
	delta.TranscriptsLoaded = &transcriptsLoaded

	l.logger.Info().
		Str("session_id", state.SessionID).
		Int("documents", len(docs)).
		Int("loaded", len(loaded)).
		Int("failed", len(failures)).
		Msg("Transcript load complete")

	return delta, nil
}

func (l *Loader) loadOne(ctx context.Context, doc interfaces.SourceDocument, rawDir, extractedDir string) (models.FileRef, string, error) {
	if doc.Size > l.maxBytes {
		return models.FileRef{}, "", fmt.Errorf("document is %d bytes, limit is %d", doc.Size, l.maxBytes)
	}

	content, err := l.source.Download(ctx, doc)
	if err != nil {
		return models.FileRef{}, "", fmt.Errorf("download failed: %w", err)
	}
	if int64(len(content)) > l.maxBytes {
		return models.FileRef{}, "", fmt.Errorf("document is %d bytes, limit is %d", len(content), l.maxBytes)
	}

	ext := strings.ToLower(filepath.Ext(doc.FileName))
	base := doc.Description
	if strings.TrimSpace(base) == "" {
		base = strings.TrimSuffix(filepath.Base(doc.FileName), filepath.Ext(doc.FileName))
	}
	name := l.workspace.UniqueName(extractedDir, workspace.SafeName(base), ".txt")

	if err := l.workspace.WriteFile(filepath.Join(rawDir, name+ext), content); err != nil {
		return models.FileRef{}, "", err
	}

	text, err := l.extractor.ExtractText(ctx, doc.FileName, content)
	if err != nil {
		return models.FileRef{}, "", fmt.Errorf("text extraction failed: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return models.FileRef{}, "", fmt.Errorf("no text extracted")
	}

	path := filepath.Join(extractedDir, name+".txt")
	if err := l.workspace.WriteFile(path, []byte(text)); err != nil {
		return models.FileRef{}, "", err
	}

	return models.FileRef{Name: name + ".txt", Path: path, FetchedAt: time.Now().UTC()}, name, nil
}
