package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"marketpilot/opportunity-portal/opportunity-portal-backend/internal/opportunity"
)

// ErrUnparseable indicates model output that could not be validated
// against the assessment schema. Callers substitute DefaultAssessment;
// a parse failure is never allowed to crash a pipeline run.
var ErrUnparseable = errors.New("unparseable model output")

// assessmentPayload is the JSON shape the model is asked to return
type assessmentPayload struct {
	ViabilityScore   *float64 `json:"viability_score"`
	RiskScore        *float64 `json:"risk_score"`
	Confidence       *float64 `json:"confidence"`
	Rationale        string   `json:"rationale"`
	ComplianceScore  *float64 `json:"compliance_score"`
	ComplianceIssues []string `json:"compliance_issues"`
}

// ParseAssessment extracts a structured assessment from untrusted model
// output. The model often wraps JSON in prose or code fences, so the
// parser works on the outermost brace-delimited block.
func ParseAssessment(raw string) (opportunity.Analysis, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return opportunity.Analysis{}, fmt.Errorf("%w: no JSON object found", ErrUnparseable)
	}

	var payload assessmentPayload
	if err := json.Unmarshal([]byte(raw[start:end+1]), &payload); err != nil {
		return opportunity.Analysis{}, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}

	if payload.ViabilityScore == nil || payload.RiskScore == nil {
		return opportunity.Analysis{}, fmt.Errorf("%w: missing required score fields", ErrUnparseable)
	}
	for name, v := range map[string]*float64{
		"viability_score":  payload.ViabilityScore,
		"risk_score":       payload.RiskScore,
		"confidence":       payload.Confidence,
		"compliance_score": payload.ComplianceScore,
	} {
		if v != nil && (*v < 0 || *v > 100) {
			return opportunity.Analysis{}, fmt.Errorf("%w: %s out of range: %v", ErrUnparseable, name, *v)
		}
	}

	a := opportunity.Analysis{
		ViabilityScore:   *payload.ViabilityScore,
		RiskScore:        *payload.RiskScore,
		Rationale:        payload.Rationale,
		ComplianceIssues: pq.StringArray(payload.ComplianceIssues),
	}
	if payload.Confidence != nil {
		a.Confidence = *payload.Confidence
	}
	if payload.ComplianceScore != nil {
		a.ComplianceScore = *payload.ComplianceScore
	}
	return a, nil
}

// DefaultAssessment is the typed fallback used when generation or
// parsing fails. Deliberately conservative: it never clears the
// viability gate on its own.
func DefaultAssessment() opportunity.Analysis {
	return opportunity.Analysis{
		ViabilityScore:  50,
		RiskScore:       50,
		Confidence:      30,
		ComplianceScore: 50,
		Rationale:       "Automated fallback assessment: model output unavailable",
	}
}

// assessmentPrompt asks the model for the exact JSON schema the parser
// validates against.
func assessmentPrompt(raw opportunity.RawOpportunity) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Assess this B2B arbitrage opportunity and respond with JSON only.\n")
	fmt.Fprintf(&b, "Product: %s. Source: %s. Target market: %s.\n",
		raw.ProductName, raw.Source, raw.TargetMarket)
	fmt.Fprintf(&b, "Supplier unit price: %.2f. Estimated monthly demand: %d units. Margin potential: %.1f%%.\n",
		raw.SupplierPrice, raw.EstimatedDemand, raw.MarginPotential)
	b.WriteString(`Respond with: {"viability_score": 0-100, "risk_score": 0-100, "confidence": 0-100, "rationale": "...", "compliance_score": 0-100, "compliance_issues": ["..."]}`)
	return b.String()
}
