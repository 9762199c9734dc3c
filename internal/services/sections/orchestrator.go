// -----------------------------------------------------------------------
// Section orchestrator - Generates and refines report sections
// -----------------------------------------------------------------------

package sections

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/quill/internal/interfaces"
	"github.com/ternarybob/quill/internal/models"
	"github.com/ternarybob/quill/internal/services/facts"
	"github.com/ternarybob/quill/internal/services/workspace"
)

var (
	// ErrContextNotExtracted is returned by Generate before fact extraction has run
	ErrContextNotExtracted = errors.New("context must be extracted before section generation")

	// ErrSessionNotFound is returned by Refine when the session has no checkpoint
	ErrSessionNotFound = errors.New("session not initialized")

	// ErrEmptyOutput is returned when a provider pass produces no text
	ErrEmptyOutput = errors.New("provider returned empty output")
)

// GenerateRequest selects the section to write
type GenerateRequest struct {
	ReportType   string
	SectionTitle string
	Requirements string
}

// GenerateOutput is a written section
type GenerateOutput struct {
	Key        string
	Title      string
	ReportType string
	Content    string
	Ref        models.SectionRef
}

// RefineRequest describes an edit of an existing section
type RefineRequest struct {
	ReportType   string
	SectionTitle string
	OriginalText string // base64, may be empty
	UserPrompt   string
}

// RefineOutput is the edited section text
type RefineOutput struct {
	Content string
}

// Orchestrator writes sections from a session's extracted facts
type Orchestrator struct {
	provider  interfaces.TextProvider
	catalog   *Catalog
	workspace *workspace.Workspace
	exporter  interfaces.SectionExporter
	logger    arbor.ILogger
}

// NewOrchestrator creates an orchestrator. exporter may be nil to skip PDF rendering.
func NewOrchestrator(provider interfaces.TextProvider, catalog *Catalog, ws *workspace.Workspace, exporter interfaces.SectionExporter, logger arbor.ILogger) *Orchestrator {
	return &Orchestrator{
		provider:  provider,
		catalog:   catalog,
		workspace: ws,
		exporter:  exporter,
		logger:    logger,
	}
}

// Generate writes one section through filter, draft and finalize passes and
// returns a delta recording it as completed.
func (o *Orchestrator) Generate(ctx context.Context, state *models.SessionState, req GenerateRequest) (*GenerateOutput, *models.SessionDelta, error) {
	if state == nil || !state.ContextExtracted {
		return nil, nil, ErrContextNotExtracted
	}

	started := time.Now()
	sec := o.catalog.Resolve(req.ReportType, req.SectionTitle)

	sessionFacts, err := facts.Load(o.workspace, state.Context)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load facts: %w", err)
	}

	prior, err := o.priorSections(state, sec.Key)
	if err != nil {
		return nil, nil, err
	}

	// Filtering nothing yields nothing, so an empty fact set skips the pass
	filtered := ""
	if len(sessionFacts) > 0 {
		filtered, err = o.pass(ctx, "filter", buildFilterPrompt(sec, formatFacts(sessionFacts)))
		if err != nil {
			return nil, nil, err
		}
	}

	draft, err := o.pass(ctx, "draft", buildDraftPrompt(req.ReportType, sec, req.Requirements, filtered, prior))
	if err != nil {
		return nil, nil, err
	}

	final, err := o.pass(ctx, "finalize", buildFinalizePrompt(sec, draft))
	if err != nil {
		return nil, nil, err
	}

	path := o.workspace.SectionPath(state.SessionID, sec.Key, ".md")
	if err := o.workspace.WriteFile(path, []byte(final)); err != nil {
		return nil, nil, fmt.Errorf("failed to write section: %w", err)
	}

	now := time.Now().UTC()
	ref := models.SectionRef{
		ID:        fmt.Sprintf("%s_%d", sec.Key, now.Unix()),
		Key:       sec.Key,
		Path:      path,
		UpdatedAt: now,
		Source:    models.SectionSourceGenerated,
	}

	if o.exporter != nil {
		pdfPath := o.workspace.SectionPath(state.SessionID, sec.Key, ".pdf")
		if err := o.exporter.RenderSection(ctx, sec.Title, final, pdfPath); err != nil {
			o.logger.Warn().Err(err).Str("section", sec.Key).Msg("Section PDF rendering failed")
		} else {
			ref.DocsPath = pdfPath
		}
	}

	o.logger.Info().
		Str("session_id", state.SessionID).
		Str("section", sec.Key).
		Int("facts", len(sessionFacts)).
		Int("prior_sections", len(state.CompletedSections)).
		Dur("duration", time.Since(started)).
		Msg("Section generated")

	out := &GenerateOutput{
		Key:        sec.Key,
		Title:      req.SectionTitle,
		ReportType: req.ReportType,
		Content:    final,
		Ref:        ref,
	}
	delta := &models.SessionDelta{CompletedSections: map[string]models.SectionRef{sec.Key: ref}}
	return out, delta, nil
}

// Refine edits caller-supplied section text. It never records a completed section.
func (o *Orchestrator) Refine(ctx context.Context, state *models.SessionState, req RefineRequest) (*RefineOutput, error) {
	if state == nil {
		return nil, ErrSessionNotFound
	}

	original, err := base64.StdEncoding.DecodeString(req.OriginalText)
	if err != nil {
		return nil, fmt.Errorf("original text is not valid base64: %w", err)
	}

	factsText := ""
	if state.ContextExtracted && state.Context != nil && o.workspace.Exists(state.Context.Path) {
		sessionFacts, err := facts.Load(o.workspace, state.Context)
		if err != nil {
			o.logger.Warn().Err(err).Str("session_id", state.SessionID).Msg("Facts unreadable, refining without them")
		} else {
			factsText = formatFacts(sessionFacts)
		}
	}

	prompt := buildRefinePrompt(req.ReportType, req.SectionTitle, req.UserPrompt, string(original), factsText)
	refined, err := o.pass(ctx, "refine", prompt)
	if err != nil {
		return nil, err
	}

	o.logger.Info().
		Str("session_id", state.SessionID).
		Str("section_title", req.SectionTitle).
		Int("original_chars", len(original)).
		Int("refined_chars", len(refined)).
		Msg("Section refined")

	return &RefineOutput{Content: refined}, nil
}

func (o *Orchestrator) pass(ctx context.Context, name, prompt string) (string, error) {
	text, err := o.provider.GenerateText(ctx, prompt, interfaces.GenerateOptions{})
	if err != nil {
		return "", fmt.Errorf("%s pass failed: %w", name, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%s pass: %w", name, ErrEmptyOutput)
	}
	return text, nil
}

// priorSections reads completed sections in key order, excluding the one being rewritten
func (o *Orchestrator) priorSections(state *models.SessionState, currentKey string) (string, error) {
	var parts []string
	for _, key := range state.SectionKeys() {
		if key == currentKey {
			continue
		}
		ref := state.CompletedSections[key]
		data, err := o.workspace.ReadFile(ref.Path)
		if err != nil {
			return "", fmt.Errorf("failed to read completed section %s: %w", key, err)
		}
		parts = append(parts, fmt.Sprintf("### %s\n%s", key, strings.TrimSpace(string(data))))
	}
	return strings.Join(parts, "\n\n"), nil
}
