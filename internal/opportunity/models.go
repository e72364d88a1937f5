package opportunity

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Status represents the lifecycle state of an opportunity
type Status string

const (
	StatusDetected       Status = "detected"
	StatusAnalyzing      Status = "analyzing"
	StatusApproved       Status = "approved"
	StatusRejected       Status = "rejected"
	StatusExecuting      Status = "executing"
	StatusCompleted      Status = "completed"
	StatusPartialSuccess Status = "partial_success"
	StatusFailed         Status = "failed"
)

// IsTerminal reports whether no further status transitions are allowed
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusRejected
}

// JSONB is a custom type for PostgreSQL JSONB columns
type JSONB map[string]interface{}

// Value implements the driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// RawOpportunity is a candidate deal as reported by a detection source,
// before any pricing or analysis has been attached.
type RawOpportunity struct {
	ProductName     string  `json:"product_name"`
	Source          string  `json:"source"`
	TargetMarket    string  `json:"target_market"`
	ConsumerFacing  bool    `json:"consumer_facing"`
	SupplierPrice   float64 `json:"supplier_price"`
	EstimatedDemand int     `json:"estimated_demand"`
	MarginPotential float64 `json:"margin_potential"`
}

// Pricing holds the derived economics of an opportunity
type Pricing struct {
	TargetPrice    float64 `json:"target_price" db:"target_price"`
	ShippingCost   float64 `json:"shipping_cost" db:"shipping_cost"`
	TaxesCost      float64 `json:"taxes_cost" db:"taxes_cost"`
	TotalCost      float64 `json:"total_cost" db:"total_cost"`
	NetMarginPct   float64 `json:"net_margin_pct" db:"net_margin_pct"`
	MonthlyRevenue float64 `json:"monthly_revenue" db:"monthly_revenue"`
	MonthlyProfit  float64 `json:"monthly_profit" db:"monthly_profit"`
}

// Analysis holds the AI-sourced assessment of an opportunity
type Analysis struct {
	ViabilityScore   float64        `json:"viability_score" db:"viability_score"`
	RiskScore        float64        `json:"risk_score" db:"risk_score"`
	Confidence       float64        `json:"confidence" db:"confidence"`
	Rationale        string         `json:"rationale" db:"rationale"`
	ComplianceScore  float64        `json:"compliance_score" db:"compliance_score"`
	ComplianceIssues pq.StringArray `json:"compliance_issues" db:"compliance_issues"`
}

// Opportunity represents a candidate arbitrage deal with computed economics
type Opportunity struct {
	ID              uuid.UUID `json:"id" db:"id"`
	ProductName     string    `json:"product_name" db:"product_name"`
	Source          string    `json:"source" db:"source"`
	TargetMarket    string    `json:"target_market" db:"target_market"`
	ConsumerFacing  bool      `json:"consumer_facing" db:"consumer_facing"`
	SupplierPrice   float64   `json:"supplier_price" db:"supplier_price"`
	EstimatedDemand int       `json:"estimated_demand" db:"estimated_demand"`
	MarginPotential float64   `json:"margin_potential" db:"margin_potential"`

	Pricing
	Analysis

	Status    Status    `json:"status" db:"status"`
	Metadata  JSONB     `json:"metadata,omitempty" db:"metadata"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// HasUnresolvedCompliance reports whether any compliance issues remain open
func (o *Opportunity) HasUnresolvedCompliance() bool {
	return len(o.ComplianceIssues) > 0
}

// Filters narrows opportunity listings
type Filters struct {
	Status   *Status `json:"status,omitempty"`
	Source   *string `json:"source,omitempty"`
	MinScore *float64 `json:"min_score,omitempty"`
	Limit    int     `json:"limit"`
	Offset   int     `json:"offset"`
}
