package sections

import (
	"fmt"
	"strings"

	"github.com/ternarybob/quill/internal/models"
)

// formatFacts renders facts one per line for prompts
func formatFacts(facts []models.Fact) string {
	var b strings.Builder
	for _, f := range facts {
		fmt.Fprintf(&b, "- [%s/%s] %s", f.Type, f.Confidence, f.Value)
		if f.Evidence.Quote != "" {
			fmt.Fprintf(&b, " (\"%s\")", f.Evidence.Quote)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func buildFilterPrompt(sec Section, factsText string) string {
	return fmt.Sprintf(`You select source material for one section of a consulting report.

SECTION TITLE
%s

SECTION RULES
%s

From the facts below keep only the lines that are relevant to this section,
including supporting context needed to understand them. Copy kept lines as they
are. Do not summarise or rewrite.

FACTS
"""
%s
"""

Return only the kept lines.`, sec.Title, sec.Rules, factsText)
}

func buildDraftPrompt(reportType string, sec Section, requirements, factsText, priorSections string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are writing one section of a %s for senior decision-makers.\n\n", reportType)
	fmt.Fprintf(&b, "SECTION\n%s\n\nSECTION RULES\n%s\n\n", sec.Title, sec.Rules)
	if requirements != "" {
		fmt.Fprintf(&b, "ADDITIONAL REQUIREMENTS\n%s\n\n", requirements)
	}
	if strings.TrimSpace(factsText) == "" {
		b.WriteString("FACTS\n(none extracted; state the assumptions the section relies on)\n\n")
	} else {
		fmt.Fprintf(&b, "FACTS\n%s\n\n", factsText)
	}
	if priorSections != "" {
		b.WriteString("COMPLETED SECTIONS (authoritative)\n")
		b.WriteString("Use these for consistent terminology and assumptions. Do not restate or reinterpret them.\n\n")
		b.WriteString(priorSections)
		b.WriteString("\n\n")
	}
	b.WriteString(`WRITING RULES
- Use only the facts provided. State missing information as explicit, concise assumptions.
- Write a narrative in well-organised paragraphs, not a list of facts or meeting notes.
- Clear, neutral, confident consulting language. No speculation or brainstorming.
- Use a table or bullets only where they make the content clearer.
- No individual names, no meetings, calls, emails or scheduling, no next steps.

Return only the section content in Markdown.`)
	return b.String()
}

func buildFinalizePrompt(sec Section, draft string) string {
	return fmt.Sprintf(`You edit one section of a consulting report.

SECTION TITLE
%s

SECTION RULES
%s

Edit the draft below:
- Keep all of its information.
- Make the tone narrative with a logical flow between paragraphs.
- Remove any personal names and any mention of meetings, calls, emails or scheduling.
- Remove anything that reads like a content dump.

DRAFT
"""
%s
"""

Return only the finished section in Markdown.`, sec.Title, sec.Rules, draft)
}

func buildRefinePrompt(reportType, title, instruction, original, factsText string) string {
	if strings.TrimSpace(original) == "" {
		original = "(empty; write the section from the instruction)"
	}
	if strings.TrimSpace(factsText) == "" {
		factsText = "(none)"
	}
	return fmt.Sprintf(`You edit an existing report section according to a user instruction.

PRIORITY, highest first:
1. The user instruction
2. The original section text
3. The facts, for reference only

Do not invent facts, figures, timelines, systems or costs. Do not add content the
instruction does not ask for, and do not silently correct the instruction against
the facts. When the instruction is ambiguous make the smallest reasonable change and
keep the length similar.

DOCUMENT TYPE
%s

SECTION
%s

USER INSTRUCTION
%s

ORIGINAL SECTION
<<<
%s
>>>

FACTS (reference only)
<<<
%s
>>>

Return only the refined section in Markdown, with no commentary.`, reportType, title, instruction, original, factsText)
}
