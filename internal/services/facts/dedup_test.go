package facts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/quill/internal/models"
)

func fact(t models.FactType, value string, conf models.Confidence, quote string) models.Fact {
	return models.Fact{
		Type:       t,
		Value:      value,
		Confidence: conf,
		Evidence:   models.Evidence{TranscriptKey: "call", TranscriptFile: "call.txt", Quote: quote},
	}
}

func TestNormalizeValue(t *testing.T) {
	assert.Equal(t, "budget", NormalizeValue("  Budget  "))
	assert.Equal(t, "go live in q3", NormalizeValue("Go   live\tin\nQ3"))
	assert.Equal(t, "", NormalizeValue("   "))
}

func TestMerge_CollapsesNormalizedDuplicates(t *testing.T) {
	merged := Merge(nil, []models.Fact{
		fact(models.FactKPI, "  Budget  ", models.ConfidenceLow, ""),
		fact(models.FactKPI, "budget", models.ConfidenceLow, ""),
	})
	require.Len(t, merged, 1)
	assert.Equal(t, models.FactKPI, merged[0].Type)
}

func TestMerge_SameValueDifferentTypeKept(t *testing.T) {
	merged := Merge(nil, []models.Fact{
		fact(models.FactRisk, "vendor lock-in", models.ConfidenceHigh, ""),
		fact(models.FactOpenQuestion, "vendor lock-in", models.ConfidenceHigh, ""),
	})
	assert.Len(t, merged, 2)
}

func TestMerge_DropsEmptyValues(t *testing.T) {
	merged := Merge(nil, []models.Fact{
		fact(models.FactOther, "   ", models.ConfidenceHigh, "q"),
		fact(models.FactOther, "kept", models.ConfidenceHigh, ""),
	})
	require.Len(t, merged, 1)
	assert.Equal(t, "kept", merged[0].Value)
}

func TestMerge_HigherConfidenceReplaces(t *testing.T) {
	existing := []models.Fact{fact(models.FactTimeline, "Go live Q3", models.ConfidenceLow, "")}
	batch := []models.Fact{fact(models.FactTimeline, "go live q3", models.ConfidenceHigh, "")}

	merged := Merge(existing, batch)
	require.Len(t, merged, 1)
	assert.Equal(t, models.ConfidenceHigh, merged[0].Confidence)
	assert.Equal(t, "go live q3", merged[0].Value)
}

func TestMerge_QuoteBreaksConfidenceTie(t *testing.T) {
	merged := Merge(
		[]models.Fact{fact(models.FactRisk, "data quality", models.ConfidenceMedium, "")},
		[]models.Fact{fact(models.FactRisk, "Data quality", models.ConfidenceMedium, "the data is a mess")},
	)
	require.Len(t, merged, 1)
	assert.Equal(t, "Data quality", merged[0].Value)
	assert.Equal(t, "the data is a mess", merged[0].Evidence.Quote)
}

func TestMerge_WinnerBackfillsQuote(t *testing.T) {
	merged := Merge(
		[]models.Fact{fact(models.FactSystem, "SAP", models.ConfidenceLow, "we run SAP today")},
		[]models.Fact{fact(models.FactSystem, "sap", models.ConfidenceHigh, "")},
	)
	require.Len(t, merged, 1)
	assert.Equal(t, models.ConfidenceHigh, merged[0].Confidence)
	assert.Equal(t, "we run SAP today", merged[0].Evidence.Quote)
}

func TestMerge_Idempotent(t *testing.T) {
	batch := []models.Fact{
		fact(models.FactKPI, "Budget", models.ConfidenceLow, ""),
		fact(models.FactKPI, "budget", models.ConfidenceHigh, "about 200k"),
		fact(models.FactRisk, "Key person dependency", models.ConfidenceMedium, ""),
	}

	once := Merge(nil, batch)
	twice := Merge(once, batch)
	assert.Equal(t, once, twice)
}

func TestMerge_OrderIndependent(t *testing.T) {
	a := []models.Fact{
		fact(models.FactKPI, "Budget", models.ConfidenceMedium, ""),
		fact(models.FactRisk, "Scope creep", models.ConfidenceLow, "scope keeps growing"),
	}
	b := []models.Fact{
		fact(models.FactKPI, "budget", models.ConfidenceMedium, "roughly 200k"),
		fact(models.FactRisk, "scope creep", models.ConfidenceLow, ""),
		fact(models.FactDecision, "Use Azure", models.ConfidenceHigh, ""),
	}

	assert.Equal(t, Merge(Merge(nil, a), b), Merge(Merge(nil, b), a))
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	existing := []models.Fact{fact(models.FactSystem, "sap", models.ConfidenceHigh, "")}
	batch := []models.Fact{fact(models.FactSystem, "SAP", models.ConfidenceLow, "quote")}

	Merge(existing, batch)
	assert.Equal(t, "", existing[0].Evidence.Quote)
	assert.Equal(t, "SAP", batch[0].Value)
}

func TestMerge_SortedOutput(t *testing.T) {
	merged := Merge(nil, []models.Fact{
		fact(models.FactRisk, "b", models.ConfidenceLow, ""),
		fact(models.FactKPI, "z", models.ConfidenceLow, ""),
		fact(models.FactRisk, "a", models.ConfidenceLow, ""),
	})
	require.Len(t, merged, 3)
	assert.Equal(t, models.FactKPI, merged[0].Type)
	assert.Equal(t, "a", merged[1].Value)
	assert.Equal(t, "b", merged[2].Value)
}
