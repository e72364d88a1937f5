package ai

import (
	"context"

	"go.uber.org/zap"

	"marketpilot/opportunity-portal/opportunity-portal-backend/internal/opportunity"
)

// TextGenerator mirrors the negotiation-side contract so the analyzer can
// be backed by the same client or a test double.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string, promptContext map[string]interface{}) (string, error)
}

// Analyzer produces opportunity assessments from the text generator
type Analyzer struct {
	gen    TextGenerator
	logger *zap.Logger
}

// NewAnalyzer creates an opportunity analyzer
func NewAnalyzer(gen TextGenerator, logger *zap.Logger) *Analyzer {
	return &Analyzer{gen: gen, logger: logger}
}

// Assess returns the model's assessment of a raw opportunity. Generation
// or parse failures degrade to the conservative default assessment.
func (a *Analyzer) Assess(ctx context.Context, raw opportunity.RawOpportunity) opportunity.Analysis {
	if a.gen == nil {
		return DefaultAssessment()
	}

	text, err := a.gen.GenerateText(ctx, assessmentPrompt(raw), map[string]interface{}{
		"product": raw.ProductName,
		"source":  raw.Source,
	})
	if err != nil {
		a.logger.Warn("Assessment generation failed, using default",
			zap.String("product", raw.ProductName),
			zap.Error(err))
		return DefaultAssessment()
	}

	analysis, err := ParseAssessment(text)
	if err != nil {
		a.logger.Warn("Assessment output unparseable, using default",
			zap.String("product", raw.ProductName),
			zap.Error(err))
		return DefaultAssessment()
	}
	return analysis
}
