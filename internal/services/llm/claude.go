package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ternarybob/quill/internal/common"
)

const claudeSystemJSON = "Respond with a single JSON value and nothing else. No prose, no markdown fences."

// ClaudeBackend calls the Anthropic Messages API
type ClaudeBackend struct {
	client      anthropic.Client
	model       string
	maxTokens   int
	temperature float32
}

// NewClaudeBackend creates an Anthropic client from [claude]
func NewClaudeBackend(cfg *common.ClaudeConfig) (*ClaudeBackend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("claude api key is required (claude.api_key or QUILL_CLAUDE_API_KEY)")
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}
	return &ClaudeBackend{
		client:      anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:       NormalizeModel(cfg.Model),
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
	}, nil
}

func (b *ClaudeBackend) Name() string  { return string(common.LLMProviderClaude) }
func (b *ClaudeBackend) Model() string { return b.model }

// Generate sends one user message. The Messages API has no schema enforcement,
// so a schema is appended to the prompt and JSON-only output is requested.
func (b *ClaudeBackend) Generate(ctx context.Context, req *Request) (string, error) {
	prompt := req.Prompt
	if len(req.Schema) > 0 {
		schemaJSON, err := json.Marshal(req.Schema)
		if err != nil {
			return "", fmt.Errorf("failed to encode output schema: %w", err)
		}
		prompt = fmt.Sprintf("%s\n\nThe response must validate against this JSON schema:\n%s", prompt, schemaJSON)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(b.model),
		MaxTokens: int64(b.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	temp := req.Temperature
	if temp <= 0 {
		temp = b.temperature
	}
	if temp > 0 {
		params.Temperature = anthropic.Float(float64(temp))
	}
	if len(req.Schema) > 0 {
		params.System = []anthropic.TextBlockParam{{Text: claudeSystemJSON}}
	}

	resp, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return "", err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return text.String(), nil
}
