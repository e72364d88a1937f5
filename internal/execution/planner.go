package execution

import (
	"math"
	"time"

	"github.com/google/uuid"

	"marketpilot/opportunity-portal/opportunity-portal-backend/internal/opportunity"
)

// BuildPlan expands an approved opportunity into its fulfillment plan.
// Steps run strictly in sequence; the compliance step is included only
// when the opportunity still carries unresolved compliance issues, and
// the channel branch depends on whether the product is consumer-facing.
func BuildPlan(o *opportunity.Opportunity) *Plan {
	var steps []Step

	add := func(action Action, description string, days int, deps ...Action) {
		steps = append(steps, Step{
			StepNumber:   len(steps) + 1,
			Action:       action,
			Description:  description,
			DurationDays: days,
			DependsOn:    deps,
			Status:       StepPending,
		})
	}

	add(ActionSupplierNegotiation, "Negotiate supply agreement and pricing with the supplier", 3)
	add(ActionQualitySamples, "Order and evaluate product quality samples", 7,
		ActionSupplierNegotiation)

	logisticsDeps := []Action{ActionMarketValidation}
	if o.HasUnresolvedCompliance() {
		add(ActionComplianceResolution, "Resolve outstanding certification and compliance issues", 14,
			ActionQualitySamples)
		logisticsDeps = append([]Action{ActionComplianceResolution}, logisticsDeps...)
	}

	add(ActionMarketValidation, "Validate demand and pricing in the target market", 5,
		ActionQualitySamples)
	add(ActionLogisticsSetup, "Arrange freight, customs handling and warehousing", 4,
		logisticsDeps...)
	add(ActionOrderPlacement, "Place the initial purchase order", 2,
		ActionLogisticsSetup)

	if o.ConsumerFacing {
		add(ActionSalesChannelSetup, "Set up consumer sales channels and listings", 6,
			ActionOrderPlacement)
	} else {
		add(ActionB2BChannelSetup, "Establish B2B distribution agreements", 10,
			ActionOrderPlacement)
	}

	total := 0
	for _, s := range steps {
		total += s.DurationDays
	}

	now := time.Now().UTC()
	return &Plan{
		ID:                 uuid.New(),
		OpportunityID:      o.ID,
		Steps:              steps,
		TotalTimelineDays:  total,
		SuccessProbability: planSuccessProbability(o),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// planSuccessProbability weighs risk, compliance readiness and margin.
// Margin contribution is capped at 50 points before weighting.
func planSuccessProbability(o *opportunity.Opportunity) int {
	margin := o.NetMarginPct
	if margin > 50 {
		margin = 50
	}
	p := (100-o.RiskScore)*0.3 + o.ComplianceScore*0.4 + margin*0.3
	return int(math.Round(p))
}
