package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/quill/internal/common"
	"github.com/ternarybob/quill/internal/interfaces"
)

// Request is a single provider-agnostic generation call
type Request struct {
	Prompt      string
	Temperature float32
	// Schema requests structured JSON output when set
	Schema map[string]interface{}
}

// Backend is one concrete model API
type Backend interface {
	Generate(ctx context.Context, req *Request) (string, error)
	Name() string
	Model() string
}

// Provider implements interfaces.TextProvider over a Backend, adding call
// spacing, a per-call timeout, rate limit retries and lenient JSON decoding.
type Provider struct {
	backend Backend
	limiter *rate.Limiter
	retry   *RetryConfig
	timeout time.Duration
	logger  arbor.ILogger
}

var _ interfaces.TextProvider = (*Provider)(nil)

// NewProvider builds the provider selected by llm.default_provider
func NewProvider(ctx context.Context, cfg *common.Config, logger arbor.ILogger) (*Provider, error) {
	var (
		backend Backend
		spacing string
		err     error
	)

	switch DetectProvider(string(cfg.LLM.DefaultProvider), cfg.LLM.DefaultProvider) {
	case common.LLMProviderGemini:
		backend, err = NewGeminiBackend(ctx, &cfg.Gemini)
		spacing = cfg.Gemini.RateLimit
	case common.LLMProviderClaude:
		backend, err = NewClaudeBackend(&cfg.Claude)
		spacing = cfg.Claude.RateLimit
	case common.LLMProviderOffline:
		backend = NewOfflineBackend()
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.LLM.DefaultProvider)
	}
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("backend", backend.Name()).
		Str("model", backend.Model()).
		Msg("Text provider initialized")

	return newProvider(
		backend,
		common.ParseDurationOr(spacing, 0),
		NewRetryConfig(cfg.LLM.MaxRetries),
		common.ParseDurationOr(cfg.LLM.Timeout, 5*time.Minute),
		logger,
	), nil
}

// newProvider wraps a backend. spacing <= 0 disables call spacing.
func newProvider(backend Backend, spacing time.Duration, retry *RetryConfig, timeout time.Duration, logger arbor.ILogger) *Provider {
	limit := rate.Inf
	if spacing > 0 {
		limit = rate.Every(spacing)
	}
	return &Provider{
		backend: backend,
		limiter: rate.NewLimiter(limit, 1),
		retry:   retry,
		timeout: timeout,
		logger:  logger,
	}
}

// GenerateText returns the model's text for prompt
func (p *Provider) GenerateText(ctx context.Context, prompt string, opts interfaces.GenerateOptions) (string, error) {
	return p.call(ctx, &Request{Prompt: prompt, Temperature: opts.Temperature}, "text")
}

// GenerateJSON returns the decoded JSON value of a structured call
func (p *Provider) GenerateJSON(ctx context.Context, prompt string, schema map[string]interface{}, opts interfaces.GenerateOptions) (interface{}, error) {
	label := opts.SchemaName
	if label == "" {
		label = "json"
	}
	text, err := p.call(ctx, &Request{Prompt: prompt, Temperature: opts.Temperature, Schema: schema}, label)
	if err != nil {
		return nil, err
	}
	v, err := ExtractJSON(text)
	if err != nil {
		return nil, fmt.Errorf("%s response from %s: %w", label, p.backend.Name(), err)
	}
	return v, nil
}

func (p *Provider) call(ctx context.Context, req *Request, label string) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	var text string
	err := p.retry.do(ctx, p.logger, p.backend.Name(), func() error {
		var genErr error
		text, genErr = p.backend.Generate(ctx, req)
		return genErr
	})

	var event arbor.ILogEvent = p.logger.Debug()
	if err != nil {
		event = p.logger.Warn().Err(err)
	}
	event.
		Str("backend", p.backend.Name()).
		Str("model", p.backend.Model()).
		Str("call", label).
		Int("prompt_chars", len(req.Prompt)).
		Int("response_chars", len(text)).
		Dur("duration", time.Since(start)).
		Msg("Provider call finished")

	if err != nil {
		return "", fmt.Errorf("%s call failed: %w", p.backend.Name(), err)
	}
	return text, nil
}

// DetectProvider determines the provider from a model string such as
// "claude-sonnet-4", "gemini/gemini-2.0-flash" or a bare provider name.
// Unrecognised values fall back to the given default.
func DetectProvider(model string, fallback common.LLMProvider) common.LLMProvider {
	model = strings.ToLower(strings.TrimSpace(model))
	switch {
	case model == "claude" || strings.HasPrefix(model, "claude/") || strings.HasPrefix(model, "anthropic/") || strings.HasPrefix(model, "claude-"):
		return common.LLMProviderClaude
	case model == "gemini" || strings.HasPrefix(model, "gemini/") || strings.HasPrefix(model, "google/") || strings.HasPrefix(model, "gemini-"):
		return common.LLMProviderGemini
	case model == "offline":
		return common.LLMProviderOffline
	default:
		return fallback
	}
}

// NormalizeModel removes a provider prefix from a model name
func NormalizeModel(model string) string {
	for _, prefix := range []string{"claude/", "anthropic/", "gemini/", "google/"} {
		if strings.HasPrefix(strings.ToLower(model), prefix) {
			return model[len(prefix):]
		}
	}
	return model
}
