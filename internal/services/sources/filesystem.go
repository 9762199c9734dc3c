package sources

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/quill/internal/interfaces"
)

// FilesystemSource reads opportunity documents from <dir>/<opportunity_id>/
type FilesystemSource struct {
	dir    string
	logger arbor.ILogger
}

var _ interfaces.DocumentSource = (*FilesystemSource)(nil)

// NewFilesystemSource creates a directory-backed document source
func NewFilesystemSource(dir string, logger arbor.ILogger) *FilesystemSource {
	return &FilesystemSource{dir: dir, logger: logger}
}

// List returns the regular files of the opportunity folder, oldest first.
// A missing folder means the opportunity has no documents.
func (s *FilesystemSource) List(ctx context.Context, opportunityID string) ([]interfaces.SourceDocument, error) {
	oppDir := filepath.Join(s.dir, filepath.Base(opportunityID))
	entries, err := os.ReadDir(oppDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []interfaces.SourceDocument{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", oppDir, err)
	}

	docs := make([]interfaces.SourceDocument, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		docs = append(docs, interfaces.SourceDocument{
			ID:            entry.Name(),
			OpportunityID: opportunityID,
			FileName:      entry.Name(),
			Path:          filepath.Join(oppDir, entry.Name()),
			Size:          info.Size(),
			CreatedAt:     info.ModTime(),
		})
	}

	sort.SliceStable(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.Before(docs[j].CreatedAt)
		}
		return docs[i].FileName < docs[j].FileName
	})
	return docs, nil
}

// Download reads the document file
func (s *FilesystemSource) Download(ctx context.Context, doc interfaces.SourceDocument) ([]byte, error) {
	data, err := os.ReadFile(doc.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", doc.Path, err)
	}
	return data, nil
}
