package llm

import (
	"google.golang.org/genai"

	"github.com/dvloznov/insight-agent/internal/domain"
)

// SchemaFor returns the response schema enforced for a given analysis kind,
// or nil for kinds that accept free-form output.
func SchemaFor(kind domain.AnalysisKind) *genai.Schema {
	switch kind {
	case domain.KindCoach:
		return coachSchema
	case domain.KindSpending:
		return spendingSchema
	case domain.KindFraud:
		return fraudSchema
	default:
		return nil
	}
}

var transactionSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"date":   {Type: genai.TypeString},
		"label":  {Type: genai.TypeString},
		"amount": {Type: genai.TypeNumber},
	},
	Required: []string{"date", "label", "amount"},
}

var bucketSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"name":  {Type: genai.TypeString},
		"total": {Type: genai.TypeNumber},
		"count": {Type: genai.TypeInteger},
	},
	Required: []string{"name", "total", "count"},
}

var coachSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"summary": {Type: genai.TypeString},
		"budget_buckets": {
			Type:  genai.TypeArray,
			Items: bucketSchema,
		},
		"tips": {
			Type:  genai.TypeArray,
			Items: &genai.Schema{Type: genai.TypeString},
		},
	},
	Required: []string{"summary", "budget_buckets", "tips"},
}

var spendingSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"summary": {Type: genai.TypeString},
		"top_categories": {
			Type:  genai.TypeArray,
			Items: bucketSchema,
		},
		"unusual_transactions": {
			Type:  genai.TypeArray,
			Items: transactionSchema,
		},
	},
	Required: []string{"summary", "top_categories", "unusual_transactions"},
}

var fraudSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"findings": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"transaction":    transactionSchema,
					"risk_score":     {Type: genai.TypeNumber},
					"reason":         {Type: genai.TypeString},
					"recommendation": {Type: genai.TypeString},
				},
				Required: []string{"transaction", "risk_score", "reason", "recommendation"},
			},
		},
		"overall_risk": {
			Type: genai.TypeString,
			Enum: []string{"low", "elevated", "high"},
		},
		"summary": {Type: genai.TypeString},
	},
	Required: []string{"findings", "overall_risk", "summary"},
}
