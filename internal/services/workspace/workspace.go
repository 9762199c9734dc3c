// Package workspace owns the on-disk layout of session artifacts.
package workspace

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var unsafeChars = regexp.MustCompile(`[^a-z0-9_\-]+`)

// SafeName lower-cases s and replaces runs of characters outside [a-z0-9_-]
// with "_", truncated to 80 characters. Empty input becomes "file".
func SafeName(s string) string {
	s = unsafeChars.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "_")
	if len(s) > 80 {
		s = s[:80]
	}
	if s == "" {
		return "file"
	}
	return s
}

// SessionDir names a session's artifacts: a readable prefix of the id followed by
// a digest of the raw id, so ids differing only in case or punctuation never share files.
func SessionDir(sessionID string) string {
	sum := sha256.Sum256([]byte(sessionID))
	prefix := SafeName(sessionID)
	if len(prefix) > 48 {
		prefix = prefix[:48]
	}
	return prefix + "-" + hex.EncodeToString(sum[:8])
}

// Workspace resolves artifact paths below a root directory, where <sid> is SessionDir(session id):
//
//	transcripts/<sid>/raw/*
//	transcripts/<sid>/extracted/*.txt
//	context/<sid>_facts.json
//	context/<sid>_facts_stats.json
//	sections/<sid>/<key>.md
type Workspace struct {
	root string
}

// New creates a workspace rooted at dir
func New(dir string) *Workspace {
	return &Workspace{root: dir}
}

// Root returns the workspace root directory
func (w *Workspace) Root() string {
	return w.root
}

func (w *Workspace) TranscriptsRawDir(sessionID string) string {
	return filepath.Join(w.root, "transcripts", SessionDir(sessionID), "raw")
}

func (w *Workspace) TranscriptsExtractedDir(sessionID string) string {
	return filepath.Join(w.root, "transcripts", SessionDir(sessionID), "extracted")
}

func (w *Workspace) FactsPath(sessionID string) string {
	return filepath.Join(w.root, "context", SessionDir(sessionID)+"_facts.json")
}

func (w *Workspace) FactsStatsPath(sessionID string) string {
	return filepath.Join(w.root, "context", SessionDir(sessionID)+"_facts_stats.json")
}

func (w *Workspace) SectionsDir(sessionID string) string {
	return filepath.Join(w.root, "sections", SessionDir(sessionID))
}

// SectionPath places a section artifact inside the session's directory whatever the key contains
func (w *Workspace) SectionPath(sessionID, key, ext string) string {
	return filepath.Join(w.SectionsDir(sessionID), SafeName(key)+ext)
}

// WriteFile writes data via a temp file and rename so readers never see a partial artifact
func (w *Workspace) WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}

// ReadFile reads an artifact
func (w *Workspace) ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", path, err)
	}
	return data, nil
}

// Exists reports whether an artifact file is present
func (w *Workspace) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// UniqueName returns base, or base_2, base_3, ... so that <dir>/<name><ext> does not exist yet
func (w *Workspace) UniqueName(dir, base, ext string) string {
	name := base
	for i := 2; w.Exists(filepath.Join(dir, name+ext)); i++ {
		name = fmt.Sprintf("%s_%d", base, i)
	}
	return name
}
