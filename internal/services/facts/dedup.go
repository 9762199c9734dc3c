package facts

import (
	"regexp"
	"sort"
	"strings"

	"github.com/ternarybob/quill/internal/models"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// NormalizeValue lower-cases, trims and collapses internal whitespace
func NormalizeValue(value string) string {
	return whitespaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(value)), " ")
}

type factKey struct {
	Type  models.FactType
	Value string
}

// Merge folds batch into existing and returns a new deduplicated collection.
//
// Facts sharing (type, normalized value) collapse into one: the highest
// confidence wins, then a candidate carrying an evidence quote, then a fixed
// ordering over the remaining fields. A winner without a quote takes one from
// the best lower-ranked candidate. Facts with an empty normalized value are
// dropped. Inputs are never modified and the result is sorted by key, so the
// output does not depend on arrival order and merging the same batch twice
// changes nothing.
func Merge(existing, batch []models.Fact) []models.Fact {
	groups := make(map[factKey][]models.Fact)

	add := func(f models.Fact) {
		k := factKey{Type: f.Type, Value: NormalizeValue(f.Value)}
		if k.Value == "" {
			return
		}
		groups[k] = append(groups[k], f)
	}
	for _, f := range existing {
		add(f)
	}
	for _, f := range batch {
		add(f)
	}

	keys := make([]factKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Type != keys[j].Type {
			return keys[i].Type < keys[j].Type
		}
		return keys[i].Value < keys[j].Value
	})

	merged := make([]models.Fact, 0, len(keys))
	for _, k := range keys {
		merged = append(merged, resolve(groups[k]))
	}
	return merged
}

// resolve picks the surviving fact of one duplicate group
func resolve(candidates []models.Fact) models.Fact {
	sort.SliceStable(candidates, func(i, j int) bool {
		return better(candidates[i], candidates[j])
	})

	winner := candidates[0]
	if winner.Evidence.Quote == "" {
		for _, c := range candidates[1:] {
			if c.Evidence.Quote != "" {
				winner.Evidence.Quote = c.Evidence.Quote
				break
			}
		}
	}
	return winner
}

// better is a strict total order over facts of the same group
func better(a, b models.Fact) bool {
	if ra, rb := a.Confidence.Rank(), b.Confidence.Rank(); ra != rb {
		return ra > rb
	}
	if qa, qb := a.Evidence.Quote != "", b.Evidence.Quote != ""; qa != qb {
		return qa
	}
	if a.Value != b.Value {
		return a.Value < b.Value
	}
	if a.Confidence != b.Confidence {
		return a.Confidence < b.Confidence
	}
	ea, eb := a.Evidence, b.Evidence
	if ea.TranscriptKey != eb.TranscriptKey {
		return ea.TranscriptKey < eb.TranscriptKey
	}
	if ea.TranscriptFile != eb.TranscriptFile {
		return ea.TranscriptFile < eb.TranscriptFile
	}
	if ea.ChunkID != eb.ChunkID {
		return ea.ChunkID < eb.ChunkID
	}
	if ea.Anchor != eb.Anchor {
		return ea.Anchor < eb.Anchor
	}
	return ea.Quote < eb.Quote
}
