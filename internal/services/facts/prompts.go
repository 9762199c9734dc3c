package facts

import (
	"fmt"
	"strings"

	"github.com/ternarybob/quill/internal/models"
)

func buildExtractPrompt(key, file string, chunk Chunk) string {
	types := make([]string, len(models.FactTypes))
	for i, t := range models.FactTypes {
		types[i] = string(t)
	}

	var b strings.Builder
	b.WriteString("You extract atomic facts from a discovery meeting transcript.\n\n")
	b.WriteString("Return a JSON array. Each element has:\n")
	fmt.Fprintf(&b, "- type: one of %s\n", strings.Join(types, ", "))
	b.WriteString("- value: one short self-contained statement\n")
	b.WriteString("- confidence: HIGH when stated explicitly, MEDIUM when implied, LOW when uncertain\n")
	b.WriteString("- evidence: {transcript_key, transcript_file, chunk_id, quote, anchor}\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Only record what the text supports. Do not infer budgets, dates or names.\n")
	b.WriteString("- Keep quotes verbatim and under 200 characters.\n")
	b.WriteString("- Return [] when the chunk contains nothing useful.\n\n")
	fmt.Fprintf(&b, "transcript_key: %s\ntranscript_file: %s\nchunk_id: %d\n\n", key, file, chunk.ID)
	b.WriteString("<chunk>\n")
	b.WriteString(chunk.Text)
	b.WriteString("\n</chunk>\n")
	return b.String()
}
