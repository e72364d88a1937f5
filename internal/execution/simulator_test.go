package execution

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"marketpilot/opportunity-portal/opportunity-portal-backend/internal/opportunity"
)

// scriptedRand replays a fixed sequence of draws
type scriptedRand struct {
	draws []float64
	i     int
}

func (r *scriptedRand) Float64() float64 {
	if r.i >= len(r.draws) {
		return 0 // succeed by default once the script runs out
	}
	v := r.draws[r.i]
	r.i++
	return v
}

func TestSimulateAllStepsSucceed(t *testing.T) {
	plan := BuildPlan(approvedOpportunity(false, nil))
	sim := NewSimulator(&scriptedRand{}, zap.NewNop())

	result, err := sim.Run(plan)
	require.NoError(t, err)

	assert.Equal(t, len(plan.Steps), result.CompletedSteps)
	assert.Equal(t, opportunity.StatusCompleted, result.FinalStatus)
	assert.False(t, result.Aborted)
	assert.Nil(t, result.FailedAction)
	assert.True(t, plan.Finalized)
	require.NotNil(t, plan.Outcome)
	assert.Equal(t, string(opportunity.StatusCompleted), *plan.Outcome)

	for _, s := range plan.Steps {
		assert.Equal(t, StepCompleted, s.Status)
	}
}

func TestSimulateCriticalFailureAborts(t *testing.T) {
	plan := BuildPlan(approvedOpportunity(false, nil))

	// first draw fails supplier negotiation (rate 0.90)
	sim := NewSimulator(&scriptedRand{draws: []float64{0.99}}, zap.NewNop())

	result, err := sim.Run(plan)
	require.NoError(t, err)

	assert.True(t, result.Aborted)
	require.NotNil(t, result.FailedAction)
	assert.Equal(t, ActionSupplierNegotiation, *result.FailedAction)
	assert.Equal(t, 0, result.CompletedSteps)
	assert.Equal(t, opportunity.StatusFailed, result.FinalStatus)

	// remaining steps are untouched
	for _, s := range plan.Steps[1:] {
		assert.Equal(t, StepPending, s.Status)
	}
}

func TestSimulateNonCriticalFailureContinues(t *testing.T) {
	plan := BuildPlan(approvedOpportunity(false, nil))

	// succeed supplier negotiation, fail quality samples (rate 0.85),
	// everything downstream is dependency-blocked and stays pending
	sim := NewSimulator(&scriptedRand{draws: []float64{0.1, 0.99}}, zap.NewNop())

	result, err := sim.Run(plan)
	require.NoError(t, err)

	assert.False(t, result.Aborted)
	assert.Equal(t, 1, result.CompletedSteps)
	assert.Equal(t, opportunity.StatusFailed, result.FinalStatus)
	assert.Equal(t, StepFailed, plan.StepByAction(ActionQualitySamples).Status)
	assert.Equal(t, StepPending, plan.StepByAction(ActionMarketValidation).Status)
}

func TestSimulateLateFailureYieldsPartialSuccess(t *testing.T) {
	plan := BuildPlan(approvedOpportunity(false, nil)) // 6 steps
	require.Len(t, plan.Steps, 6)

	// fail only the final channel step (b2b rate 0.70): 5/6 ≈ 0.83
	sim := NewSimulator(&scriptedRand{draws: []float64{0, 0, 0, 0, 0, 0.99}}, zap.NewNop())
	result, err := sim.Run(plan)
	require.NoError(t, err)
	assert.Equal(t, opportunity.StatusCompleted, result.FinalStatus)

	// fail logistics (0.85): order placement and channel never start, 3/6 = 0.5
	plan = BuildPlan(approvedOpportunity(false, nil))
	sim = NewSimulator(&scriptedRand{draws: []float64{0, 0, 0, 0.99}}, zap.NewNop())
	result, err = sim.Run(plan)
	require.NoError(t, err)
	assert.Equal(t, 3, result.CompletedSteps)
	assert.Equal(t, opportunity.StatusPartialSuccess, result.FinalStatus)
}

func TestSimulateFinalizedPlanRejected(t *testing.T) {
	plan := BuildPlan(approvedOpportunity(false, nil))
	sim := NewSimulator(&scriptedRand{}, zap.NewNop())

	_, err := sim.Run(plan)
	require.NoError(t, err)

	_, err = sim.Run(plan)
	assert.ErrorIs(t, err, ErrPlanFinalized)
}

func TestSimulateEmptyPlanRejected(t *testing.T) {
	// a stepless plan can only come from a corrupted row, never BuildPlan
	plan := &Plan{ID: uuid.New(), OpportunityID: uuid.New()}
	sim := NewSimulator(&scriptedRand{}, zap.NewNop())

	_, err := sim.Run(plan)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no steps")
	assert.False(t, plan.Finalized)
}

func TestStartStepDependencyGate(t *testing.T) {
	plan := BuildPlan(approvedOpportunity(false, nil))

	err := StartStep(plan, ActionOrderPlacement)
	assert.ErrorIs(t, err, ErrDependencyPending)

	err = StartStep(plan, ActionSupplierNegotiation)
	require.NoError(t, err)
	assert.Equal(t, StepInProgress, plan.StepByAction(ActionSupplierNegotiation).Status)
}

func TestEveryActionHasExactlyOneRate(t *testing.T) {
	actions := []Action{
		ActionSupplierNegotiation, ActionQualitySamples, ActionComplianceResolution,
		ActionMarketValidation, ActionLogisticsSetup, ActionOrderPlacement,
		ActionSalesChannelSetup, ActionB2BChannelSetup,
	}
	for _, a := range actions {
		rate, ok := stepSuccessRates[a]
		assert.Truef(t, ok, "missing rate for %s", a)
		assert.Greater(t, rate, 0.0)
		assert.LessOrEqual(t, rate, 1.0)
	}
	assert.Len(t, stepSuccessRates, len(actions))
}
