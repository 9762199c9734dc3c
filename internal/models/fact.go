package models

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

// FactType is the closed category enumeration for extracted facts
type FactType string

const (
	FactObjective         FactType = "OBJECTIVE"
	FactProblem           FactType = "PROBLEM"
	FactKPI               FactType = "KPI"
	FactWorkflow          FactType = "WORKFLOW"
	FactWorkflowStep      FactType = "WORKFLOW_STEP"
	FactPainPoint         FactType = "PAIN_POINT"
	FactSystem            FactType = "SYSTEM"
	FactIntegrationTarget FactType = "INTEGRATION_TARGET"
	FactDataSource        FactType = "DATA_SOURCE"
	FactDataQuality       FactType = "DATA_QUALITY"
	FactDataVolume        FactType = "DATA_VOLUME"
	FactAccessConstraint  FactType = "ACCESS_CONSTRAINT"
	FactTimeline          FactType = "TIMELINE"
	FactMilestone         FactType = "MILESTONE"
	FactPhase             FactType = "PHASE"
	FactResource          FactType = "RESOURCE"
	FactCostCapex         FactType = "COST_CAPEX"
	FactCostOpex          FactType = "COST_OPEX"
	FactPricingModel      FactType = "PRICING_MODEL"
	FactROIAssumption     FactType = "ROI_ASSUMPTION"
	FactRisk              FactType = "RISK"
	FactMitigation        FactType = "MITIGATION"
	FactDecision          FactType = "DECISION"
	FactActionItem        FactType = "ACTION_ITEM"
	FactOpenQuestion      FactType = "OPEN_QUESTION"
	FactOther             FactType = "OTHER"
)

// FactTypes lists every FactType in declaration order
var FactTypes = []FactType{
	FactObjective, FactProblem, FactKPI, FactWorkflow, FactWorkflowStep, FactPainPoint,
	FactSystem, FactIntegrationTarget, FactDataSource, FactDataQuality, FactDataVolume,
	FactAccessConstraint, FactTimeline, FactMilestone, FactPhase, FactResource,
	FactCostCapex, FactCostOpex, FactPricingModel, FactROIAssumption, FactRisk,
	FactMitigation, FactDecision, FactActionItem, FactOpenQuestion, FactOther,
}

// Confidence ranks how strongly a fact is supported by its source
type Confidence string

const (
	ConfidenceLow    Confidence = "LOW"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceHigh   Confidence = "HIGH"
)

// Rank orders confidence LOW < MEDIUM < HIGH. Unknown values rank as LOW.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 2
	case ConfidenceMedium:
		return 1
	default:
		return 0
	}
}

// Evidence ties a fact back to the transcript chunk it came from
type Evidence struct {
	TranscriptKey  string `json:"transcript_key"`
	TranscriptFile string `json:"transcript_file"`
	ChunkID        int    `json:"chunk_id" validate:"gte=0"`
	Quote          string `json:"quote,omitempty" validate:"max=400"`
	Anchor         string `json:"anchor,omitempty"`
}

// Fact is an atomic, evidence-tagged claim extracted from source material
type Fact struct {
	Type       FactType   `json:"type" validate:"required,oneof=OBJECTIVE PROBLEM KPI WORKFLOW WORKFLOW_STEP PAIN_POINT SYSTEM INTEGRATION_TARGET DATA_SOURCE DATA_QUALITY DATA_VOLUME ACCESS_CONSTRAINT TIMELINE MILESTONE PHASE RESOURCE COST_CAPEX COST_OPEX PRICING_MODEL ROI_ASSUMPTION RISK MITIGATION DECISION ACTION_ITEM OPEN_QUESTION OTHER"`
	Value      string     `json:"value" validate:"required"`
	Confidence Confidence `json:"confidence" validate:"required,oneof=LOW MEDIUM HIGH"`
	Evidence   Evidence   `json:"evidence"`
}

var (
	factValidator     *validator.Validate
	factValidatorOnce sync.Once
)

// Validate checks a fact candidate against the schema
func (f *Fact) Validate() error {
	factValidatorOnce.Do(func() {
		factValidator = validator.New(validator.WithRequiredStructEnabled())
	})
	if err := factValidator.Struct(f); err != nil {
		return fmt.Errorf("invalid fact: %w", err)
	}
	return nil
}

// FactSchema is the JSON schema of a fact list, used for structured provider output
func FactSchema() map[string]interface{} {
	types := make([]interface{}, len(FactTypes))
	for i, t := range FactTypes {
		types[i] = string(t)
	}
	return map[string]interface{}{
		"type": "array",
		"items": map[string]interface{}{
			"type":     "object",
			"required": []interface{}{"type", "value", "confidence", "evidence"},
			"properties": map[string]interface{}{
				"type":       map[string]interface{}{"type": "string", "enum": types},
				"value":      map[string]interface{}{"type": "string"},
				"confidence": map[string]interface{}{"type": "string", "enum": []interface{}{"HIGH", "MEDIUM", "LOW"}},
				"evidence": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"transcript_key":  map[string]interface{}{"type": "string"},
						"transcript_file": map[string]interface{}{"type": "string"},
						"chunk_id":        map[string]interface{}{"type": "integer"},
						"quote":           map[string]interface{}{"type": "string", "description": "Short excerpt (<=200 chars) from the chunk"},
						"anchor":          map[string]interface{}{"type": "string"},
					},
				},
			},
		},
	}
}
