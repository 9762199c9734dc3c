package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFact_Validate(t *testing.T) {
	valid := Fact{Type: FactKPI, Value: "Reduce churn by 5%", Confidence: ConfidenceHigh}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name string
		fact Fact
	}{
		{"unknown type", Fact{Type: "GOSSIP", Value: "x", Confidence: ConfidenceLow}},
		{"missing value", Fact{Type: FactRisk, Confidence: ConfidenceLow}},
		{"unknown confidence", Fact{Type: FactRisk, Value: "x", Confidence: "CERTAIN"}},
		{"negative chunk", Fact{Type: FactRisk, Value: "x", Confidence: ConfidenceLow, Evidence: Evidence{ChunkID: -1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.fact.Validate())
		})
	}
}

func TestConfidence_Rank(t *testing.T) {
	assert.Less(t, ConfidenceLow.Rank(), ConfidenceMedium.Rank())
	assert.Less(t, ConfidenceMedium.Rank(), ConfidenceHigh.Rank())
	assert.Equal(t, ConfidenceLow.Rank(), Confidence("").Rank())
}

func TestFactSchema_ListsEveryType(t *testing.T) {
	schema := FactSchema()
	items := schema["items"].(map[string]interface{})
	props := items["properties"].(map[string]interface{})
	enum := props["type"].(map[string]interface{})["enum"].([]interface{})
	assert.Len(t, enum, len(FactTypes))
}
