package facts

import "strings"

const (
	DefaultChunkChars   = 12000
	DefaultChunkOverlap = 1200
)

// Chunk is one window of a transcript sent to the provider
type Chunk struct {
	ID    int
	Start int
	End   int
	Text  string
}

// ChunkText splits text into windows of at most maxChars runes, each starting
// overlap runes before the previous one ended. A window prefers to end at a
// paragraph or line break found in its second half.
func ChunkText(text string, maxChars, overlap int) []Chunk {
	if maxChars <= 0 {
		maxChars = DefaultChunkChars
	}
	if overlap < 0 || overlap >= maxChars {
		overlap = 0
	}

	runes := []rune(text)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var chunks []Chunk
	start := 0
	for start < len(runes) {
		end := start + maxChars
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = breakPoint(runes, start, end)
		}

		chunkText := strings.TrimSpace(string(runes[start:end]))
		if chunkText != "" {
			chunks = append(chunks, Chunk{ID: len(chunks), Start: start, End: end, Text: chunkText})
		}

		if end == len(runes) {
			break
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// breakPoint looks back from end for a blank line, then a newline, within the second half of the window
func breakPoint(runes []rune, start, end int) int {
	floor := start + (end-start)/2
	for i := end - 1; i > floor; i-- {
		if runes[i] == '\n' && runes[i-1] == '\n' {
			return i + 1
		}
	}
	for i := end - 1; i > floor; i-- {
		if runes[i] == '\n' {
			return i + 1
		}
	}
	return end
}
