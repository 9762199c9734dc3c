package sources

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/quill/internal/common"
)

func TestFilesystemSource_ListAndDownload(t *testing.T) {
	dir := t.TempDir()
	oppDir := filepath.Join(dir, "opp-1")
	require.NoError(t, os.MkdirAll(filepath.Join(oppDir, "nested"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(oppDir, "b.txt"), []byte("second"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(oppDir, "a.txt"), []byte("first"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(oppDir, ".hidden"), []byte("x"), 0644))

	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(oppDir, "b.txt"), old, old))

	source := NewFilesystemSource(dir, arbor.NewLogger())
	docs, err := source.List(context.Background(), "opp-1")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "b.txt", docs[0].FileName, "oldest first")
	assert.Equal(t, "a.txt", docs[1].FileName)

	data, err := source.Download(context.Background(), docs[1])
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}

func TestFilesystemSource_MissingOpportunity(t *testing.T) {
	source := NewFilesystemSource(t.TempDir(), arbor.NewLogger())
	docs, err := source.List(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestNewDocumentSource(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Sources.Type = "filesystem"
	source, err := NewDocumentSource(cfg, arbor.NewLogger())
	require.NoError(t, err)
	assert.IsType(t, &FilesystemSource{}, source)

	cfg.Sources.Type = "minio"
	cfg.Minio.Endpoint = "localhost:9000"
	source, err = NewDocumentSource(cfg, arbor.NewLogger())
	require.NoError(t, err)
	assert.IsType(t, &MinioSource{}, source)

	cfg.Sources.Type = "ftp"
	_, err = NewDocumentSource(cfg, arbor.NewLogger())
	assert.Error(t, err)
}
