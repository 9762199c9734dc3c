package interfaces

import (
	"context"
	"time"
)

// SourceDocument describes one document attached to an opportunity
type SourceDocument struct {
	ID            string
	OpportunityID string
	FileName      string
	Path          string // Object key or file path within the source
	Description   string
	MimeType      string
	Size          int64
	CreatedAt     time.Time
}

// DocumentSource is the document-storage collaborator the transcript loader reads from
type DocumentSource interface {
	// List returns the documents for an opportunity ordered by creation time
	List(ctx context.Context, opportunityID string) ([]SourceDocument, error)

	// Download returns the raw bytes of a document
	Download(ctx context.Context, doc SourceDocument) ([]byte, error)
}

// TextExtractor converts a raw document into plain text based on its extension
type TextExtractor interface {
	ExtractText(ctx context.Context, fileName string, content []byte) (string, error)
}
