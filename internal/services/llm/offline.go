package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/quill/internal/common"
)

// OfflineBackend answers without any network call. Structured calls get an
// empty value of the schema's top-level type; text calls echo the prompt's
// final block so downstream stages have deterministic, non-empty output.
type OfflineBackend struct{}

// NewOfflineBackend creates the offline backend
func NewOfflineBackend() *OfflineBackend {
	return &OfflineBackend{}
}

func (b *OfflineBackend) Name() string  { return string(common.LLMProviderOffline) }
func (b *OfflineBackend) Model() string { return "offline" }

func (b *OfflineBackend) Generate(ctx context.Context, req *Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(req.Schema) > 0 {
		if req.Schema["type"] == "array" {
			return "[]", nil
		}
		return "{}", nil
	}
	return fmt.Sprintf("Offline response (%d prompt characters).\n\n%s", len(req.Prompt), lastBlock(req.Prompt)), nil
}

// lastBlock returns the final paragraph of text, at most 500 characters
func lastBlock(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.LastIndex(text, "\n\n"); i >= 0 {
		text = strings.TrimSpace(text[i+2:])
	}
	if len(text) > 500 {
		text = text[:500]
	}
	return text
}
