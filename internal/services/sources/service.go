package sources

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/quill/internal/common"
	"github.com/ternarybob/quill/internal/interfaces"
)

// NewDocumentSource builds the document source selected by [sources].type
func NewDocumentSource(cfg *common.Config, logger arbor.ILogger) (interfaces.DocumentSource, error) {
	switch cfg.Sources.Type {
	case "", "filesystem":
		return NewFilesystemSource(cfg.Sources.Dir, logger), nil
	case "minio":
		return NewMinioSource(&cfg.Minio, logger)
	default:
		return nil, fmt.Errorf("unknown document source type: %s", cfg.Sources.Type)
	}
}
