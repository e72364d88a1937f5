package execution

import (
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"marketpilot/opportunity-portal/opportunity-portal-backend/internal/opportunity"
)

// stepSuccessRates are the fixed per-action success rates used by the
// simulator. Every action identifier has exactly one rate.
var stepSuccessRates = map[Action]float64{
	ActionSupplierNegotiation:  0.90,
	ActionQualitySamples:       0.85,
	ActionComplianceResolution: 0.75,
	ActionMarketValidation:     0.80,
	ActionLogisticsSetup:       0.85,
	ActionOrderPlacement:       0.95,
	ActionSalesChannelSetup:    0.80,
	ActionB2BChannelSetup:      0.70,
}

// criticalActions abort the whole run when they fail
var criticalActions = map[Action]bool{
	ActionSupplierNegotiation: true,
	ActionOrderPlacement:      true,
}

// Outcome thresholds on the fraction of steps completed
const (
	completedThreshold = 0.8
	partialThreshold   = 0.5
)

// Rand is the random-draw abstraction used by the simulator. Tests pass
// a seeded or scripted source to force specific branches.
type Rand interface {
	Float64() float64
}

// Result summarizes one simulated execution run
type Result struct {
	PlanID            string             `json:"plan_id"`
	OpportunityID     string             `json:"opportunity_id"`
	TotalSteps        int                `json:"total_steps"`
	CompletedSteps    int                `json:"completed_steps"`
	CompletedFraction float64            `json:"completed_fraction"`
	FailedAction      *Action            `json:"failed_action,omitempty"`
	Aborted           bool               `json:"aborted"`
	FinalStatus       opportunity.Status `json:"final_status"`
	FinishedAt        time.Time          `json:"finished_at"`
}

// Simulator advances plan steps sequentially. No real supplier, carrier
// or payment integration happens here; the run exists to produce a
// bookkeeping outcome for the dashboard.
type Simulator struct {
	rng    Rand
	logger *zap.Logger
}

// NewSimulator creates a simulator. A nil rng falls back to a
// time-seeded source.
func NewSimulator(rng Rand, logger *zap.Logger) *Simulator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Simulator{rng: rng, logger: logger}
}

// Run executes every plan step in order. A failed critical step aborts
// the run immediately, leaving remaining steps pending. The plan is
// finalized afterwards; a finalized plan cannot be run again.
func (sim *Simulator) Run(plan *Plan) (*Result, error) {
	if plan.Finalized {
		return nil, fmt.Errorf("%w: plan %s", ErrPlanFinalized, plan.ID)
	}
	if len(plan.Steps) == 0 {
		return nil, fmt.Errorf("plan %s has no steps", plan.ID)
	}

	result := &Result{
		PlanID:        plan.ID.String(),
		OpportunityID: plan.OpportunityID.String(),
		TotalSteps:    len(plan.Steps),
	}

	for i := range plan.Steps {
		step := &plan.Steps[i]

		// a step whose upstream failed never starts; it stays pending
		if !plan.DependenciesMet(step) {
			continue
		}
		step.Status = StepInProgress

		rate, ok := stepSuccessRates[step.Action]
		if !ok {
			return nil, fmt.Errorf("no success rate for action %q", step.Action)
		}

		if sim.rng.Float64() < rate {
			step.Status = StepCompleted
			result.CompletedSteps++
			continue
		}

		step.Status = StepFailed
		failed := step.Action
		result.FailedAction = &failed

		sim.logger.Warn("Execution step failed",
			zap.String("plan_id", plan.ID.String()),
			zap.String("action", string(step.Action)))

		if criticalActions[step.Action] {
			result.Aborted = true
			break
		}
	}

	result.CompletedFraction = float64(result.CompletedSteps) / float64(result.TotalSteps)
	result.FinalStatus = statusForFraction(result.CompletedFraction)
	result.FinishedAt = time.Now().UTC()

	outcome := string(result.FinalStatus)
	plan.Finalized = true
	plan.Outcome = &outcome
	plan.UpdatedAt = result.FinishedAt

	return result, nil
}

// StartStep moves a single step into in_progress, enforcing the
// dependency gate. Used by the manual stepping API.
func StartStep(plan *Plan, action Action) error {
	if plan.Finalized {
		return fmt.Errorf("%w: plan %s", ErrPlanFinalized, plan.ID)
	}
	step := plan.StepByAction(action)
	if step == nil {
		return fmt.Errorf("plan has no step %q", action)
	}
	if !plan.DependenciesMet(step) {
		return fmt.Errorf("%w: %s", ErrDependencyPending, action)
	}
	step.Status = StepInProgress
	return nil
}

func statusForFraction(fraction float64) opportunity.Status {
	switch {
	case fraction >= completedThreshold:
		return opportunity.StatusCompleted
	case fraction >= partialThreshold:
		return opportunity.StatusPartialSuccess
	default:
		return opportunity.StatusFailed
	}
}
