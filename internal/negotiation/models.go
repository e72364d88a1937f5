package negotiation

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

var (
	// ErrPolicyViolation indicates deal parameters that violate the
	// payment-terms policy. Sessions are never persisted with such terms.
	ErrPolicyViolation = errors.New("deal parameters violate payment policy")

	// ErrStageOrderViolation indicates an attempt to advance a session
	// past its terminal stage.
	ErrStageOrderViolation = errors.New("negotiation stage order violation")

	// ErrNotFound indicates the requested session does not exist
	ErrNotFound = errors.New("negotiation session not found")
)

// Stage is one of the six fixed steps a deal passes through toward closing
type Stage string

const (
	StageInitialContact Stage = "initial_contact"
	StageQualification  Stage = "qualification"
	StageProposal       Stage = "proposal"
	StageNegotiation    Stage = "negotiation"
	StageClosing        Stage = "closing"
	StageCompleted      Stage = "completed"
)

// stageSequence is the strict total order of negotiation stages
var stageSequence = []Stage{
	StageInitialContact,
	StageQualification,
	StageProposal,
	StageNegotiation,
	StageClosing,
	StageCompleted,
}

// Next returns the stage that follows s, or completed if s is terminal
func (s Stage) Next() Stage {
	for i, stage := range stageSequence {
		if stage == s && i < len(stageSequence)-1 {
			return stageSequence[i+1]
		}
	}
	return StageCompleted
}

// PaymentTerms is the settlement arrangement for a deal. Policy allows
// only full advance payment or a confirmed letter of credit.
type PaymentTerms string

const (
	PaymentFullAdvance    PaymentTerms = "full_advance"
	PaymentLetterOfCredit PaymentTerms = "letter_of_credit"
)

// Style is the negotiation approach taken by the agent
type Style string

const (
	StyleAggressive    Style = "aggressive"
	StyleCollaborative Style = "collaborative"
	StyleAnalytical    Style = "analytical"
	StyleDiplomatic    Style = "diplomatic"
)

// Level grades qualitative profile attributes
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// BuyerProfile describes the counterparty. PriceSensitivity and Leverage
// are derived once at session creation and never recomputed.
type BuyerProfile struct {
	CompanyName      string `json:"company_name"`
	CompanySize      string `json:"company_size"` // small, medium, enterprise
	BuyingPower      Level  `json:"buying_power"`
	Urgency          Level  `json:"urgency"`
	PriceSensitivity Level  `json:"price_sensitivity"`
	Leverage         Level  `json:"leverage"`
}

// SupplierProfile describes the sourcing side of the deal
type SupplierProfile struct {
	Name           string   `json:"name"`
	Reliability    float64  `json:"reliability"` // 0-100
	CapacityUnits  int      `json:"capacity_units"`
	Certifications []string `json:"certifications"`
}

// DealParameters are the commercial terms under negotiation
type DealParameters struct {
	Product                string       `json:"product"`
	Quantity               int          `json:"quantity"`
	BasePrice              float64      `json:"base_price"`
	TargetPrice            float64      `json:"target_price"`
	MinAcceptablePrice     float64      `json:"min_acceptable_price"`
	DeliveryTimelineDays   int          `json:"delivery_timeline_days"`
	PaymentTerms           PaymentTerms `json:"payment_terms"`
	QualityRequirements    []string     `json:"quality_requirements"`
	ComplianceRequirements []string     `json:"compliance_requirements"`
}

// Validate enforces the payment-terms policy on deal parameters
func (d *DealParameters) Validate() error {
	switch d.PaymentTerms {
	case PaymentFullAdvance, PaymentLetterOfCredit:
		return nil
	default:
		return fmt.Errorf("%w: payment terms %q not allowed, require full advance or letter of credit",
			ErrPolicyViolation, d.PaymentTerms)
	}
}

// Strategy captures how the agent plans to run the negotiation
type Strategy struct {
	Style              Style    `json:"style"`
	SellingPoints      []string `json:"selling_points"`
	ConcessionLimitPct float64  `json:"concession_limit_pct"`
	ClosingTactics     []string `json:"closing_tactics"`
}

// Message is one entry in a session's ordered message log
type Message struct {
	Sender    string    `json:"sender"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is one attempt to close a specific opportunity with one buyer
type Session struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OpportunityID uuid.UUID `gorm:"type:uuid;not null;index" json:"opportunity_id"`

	Buyer    BuyerProfile    `gorm:"serializer:json" json:"buyer"`
	Supplier SupplierProfile `gorm:"serializer:json" json:"supplier"`
	Deal     DealParameters  `gorm:"serializer:json" json:"deal"`
	Strategy Strategy        `gorm:"serializer:json" json:"strategy"`

	Stage              Stage     `gorm:"type:varchar(20);not null;index" json:"stage"`
	Messages           []Message `gorm:"serializer:json" json:"messages"`
	SuccessProbability int       `gorm:"not null" json:"success_probability"`

	Metadata  datatypes.JSON `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName overrides the gorm table name
func (Session) TableName() string {
	return "negotiation_sessions"
}

// Completed reports whether the session has reached its terminal stage
func (s *Session) Completed() bool {
	return s.Stage == StageCompleted
}
