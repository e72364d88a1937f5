package execution

import (
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketpilot/opportunity-portal/opportunity-portal-backend/internal/opportunity"
)

func approvedOpportunity(consumerFacing bool, complianceIssues []string) *opportunity.Opportunity {
	return &opportunity.Opportunity{
		ID:             uuid.New(),
		ProductName:    "Industrial Valve Assembly",
		ConsumerFacing: consumerFacing,
		Pricing:        opportunity.Pricing{NetMarginPct: 28},
		Analysis: opportunity.Analysis{
			RiskScore:        30,
			ComplianceScore:  80,
			ComplianceIssues: pq.StringArray(complianceIssues),
		},
		Status: opportunity.StatusApproved,
	}
}

func stepIndex(t *testing.T, p *Plan, action Action) int {
	t.Helper()
	for i, s := range p.Steps {
		if s.Action == action {
			return i
		}
	}
	t.Fatalf("plan has no step %q", action)
	return -1
}

func TestBuildPlanStepOrdering(t *testing.T) {
	p := BuildPlan(approvedOpportunity(false, []string{"missing CE marking"}))

	assert.Less(t, stepIndex(t, p, ActionSupplierNegotiation), stepIndex(t, p, ActionQualitySamples))
	assert.Less(t, stepIndex(t, p, ActionQualitySamples), stepIndex(t, p, ActionComplianceResolution))
	assert.Less(t, stepIndex(t, p, ActionLogisticsSetup), stepIndex(t, p, ActionOrderPlacement))
	assert.Less(t, stepIndex(t, p, ActionOrderPlacement), stepIndex(t, p, ActionB2BChannelSetup))

	logistics := p.StepByAction(ActionLogisticsSetup)
	require.NotNil(t, logistics)
	assert.ElementsMatch(t, []Action{ActionComplianceResolution, ActionMarketValidation}, logistics.DependsOn)

	// step numbers are sequential from 1
	for i, s := range p.Steps {
		assert.Equal(t, i+1, s.StepNumber)
		assert.Equal(t, StepPending, s.Status)
	}
}

func TestBuildPlanSkipsComplianceWhenResolved(t *testing.T) {
	p := BuildPlan(approvedOpportunity(false, nil))

	assert.Nil(t, p.StepByAction(ActionComplianceResolution))

	logistics := p.StepByAction(ActionLogisticsSetup)
	require.NotNil(t, logistics)
	assert.Equal(t, []Action{ActionMarketValidation}, logistics.DependsOn)

	// 3 + 7 + 5 + 4 + 2 + 10
	assert.Equal(t, 31, p.TotalTimelineDays)
}

func TestBuildPlanChannelBranch(t *testing.T) {
	b2b := BuildPlan(approvedOpportunity(false, nil))
	assert.NotNil(t, b2b.StepByAction(ActionB2BChannelSetup))
	assert.Nil(t, b2b.StepByAction(ActionSalesChannelSetup))

	consumer := BuildPlan(approvedOpportunity(true, nil))
	assert.NotNil(t, consumer.StepByAction(ActionSalesChannelSetup))
	assert.Nil(t, consumer.StepByAction(ActionB2BChannelSetup))

	sales := consumer.StepByAction(ActionSalesChannelSetup)
	assert.Equal(t, 6, sales.DurationDays)
	assert.Equal(t, []Action{ActionOrderPlacement}, sales.DependsOn)

	channel := b2b.StepByAction(ActionB2BChannelSetup)
	assert.Equal(t, 10, channel.DurationDays)
}

func TestBuildPlanTimelineIncludesCompliance(t *testing.T) {
	p := BuildPlan(approvedOpportunity(true, []string{"pending RoHS"}))

	// 3 + 7 + 14 + 5 + 4 + 2 + 6
	assert.Equal(t, 41, p.TotalTimelineDays)
}

func TestPlanSuccessProbability(t *testing.T) {
	o := approvedOpportunity(false, nil)
	o.RiskScore = 30
	o.ComplianceScore = 80
	o.NetMarginPct = 28

	p := BuildPlan(o)
	// (100-30)*0.3 + 80*0.4 + 28*0.3 = 21 + 32 + 8.4 = 61.4 -> 61
	assert.Equal(t, 61, p.SuccessProbability)

	// margin contribution caps at 50
	o.NetMarginPct = 90
	p = BuildPlan(o)
	// 21 + 32 + 15 = 68
	assert.Equal(t, 68, p.SuccessProbability)
}
