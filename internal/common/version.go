package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Stamped at link time, for example:
//
//	go build -ldflags "-X github.com/ternarybob/quill/internal/common.Version=1.4.0"
var (
	Version   = "dev"
	Build     = "unknown"
	GitCommit = "unknown"
)

// BuildInfo identifies the running binary in the banner, crash reports and /api/health
type BuildInfo struct {
	Version string `json:"version"`
	Build   string `json:"build"`
	Commit  string `json:"commit"`
}

func CurrentBuild() BuildInfo {
	return BuildInfo{Version: Version, Build: Build, Commit: GitCommit}
}

func (b BuildInfo) String() string {
	return fmt.Sprintf("%s (build %s, commit %s)", b.Version, b.Build, b.Commit)
}

// ReadVersionFile sets Version from <dir>/.version. A missing or blank file leaves it unchanged.
func ReadVersionFile(dir string) {
	data, err := os.ReadFile(filepath.Join(dir, ".version"))
	if err != nil {
		return
	}
	if v := strings.TrimSpace(string(data)); v != "" {
		Version = v
	}
}
