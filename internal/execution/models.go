package execution

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrDependencyPending indicates an attempt to start a step before
	// every step it depends on has completed. The plan is left unchanged.
	ErrDependencyPending = errors.New("step dependencies not completed")

	// ErrPlanFinalized indicates an attempt to mutate a plan whose
	// terminal outcome was already recorded.
	ErrPlanFinalized = errors.New("execution plan already finalized")

	// ErrNotFound indicates the requested plan does not exist
	ErrNotFound = errors.New("execution plan not found")
)

// Action identifies one kind of fulfillment step
type Action string

const (
	ActionSupplierNegotiation  Action = "supplier_negotiation"
	ActionQualitySamples       Action = "quality_samples"
	ActionComplianceResolution Action = "compliance_resolution"
	ActionMarketValidation     Action = "market_validation"
	ActionLogisticsSetup       Action = "logistics_setup"
	ActionOrderPlacement       Action = "order_placement"
	ActionSalesChannelSetup    Action = "sales_channel_setup"
	ActionB2BChannelSetup      Action = "b2b_channel_setup"
)

// StepStatus is the state of one plan step
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
)

// Step is one dependency-gated fulfillment step
type Step struct {
	StepNumber   int        `json:"step_number"`
	Action       Action     `json:"action"`
	Description  string     `json:"description"`
	DurationDays int        `json:"duration_days"`
	DependsOn    []Action   `json:"depends_on"`
	Status       StepStatus `json:"status"`
}

// StepList stores plan steps as a JSONB column
type StepList []Step

// Value implements the driver.Valuer interface
func (l StepList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

// Scan implements the sql.Scanner interface
func (l *StepList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, l)
}

// Plan is the ordered, dependency-gated fulfillment plan for one
// approved opportunity.
type Plan struct {
	ID            uuid.UUID `json:"id" db:"id"`
	OpportunityID uuid.UUID `json:"opportunity_id" db:"opportunity_id"`

	Steps              StepList `json:"steps" db:"steps"`
	TotalTimelineDays  int      `json:"total_timeline_days" db:"total_timeline_days"`
	SuccessProbability int      `json:"success_probability" db:"success_probability"`

	Finalized bool       `json:"finalized" db:"finalized"`
	Outcome   *string    `json:"outcome,omitempty" db:"outcome"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// StepByAction returns a pointer into the plan's step list, or nil
func (p *Plan) StepByAction(action Action) *Step {
	for i := range p.Steps {
		if p.Steps[i].Action == action {
			return &p.Steps[i]
		}
	}
	return nil
}

// DependenciesMet reports whether every dependency of the step has
// completed within this plan.
func (p *Plan) DependenciesMet(step *Step) bool {
	for _, dep := range step.DependsOn {
		depStep := p.StepByAction(dep)
		if depStep == nil || depStep.Status != StepCompleted {
			return false
		}
	}
	return true
}
