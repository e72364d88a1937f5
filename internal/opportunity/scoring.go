package opportunity

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidInput indicates a raw opportunity carried malformed or
// out-of-range numeric fields. No derived field is computed in that case.
var ErrInvalidInput = errors.New("invalid opportunity input")

// Cost model constants. Shipping and tax are flat percentages of supplier
// and target price respectively; the dashboard's costing model fixes them
// regardless of product or destination market.
const (
	shippingRate = 0.15
	taxRate      = 0.08
)

// Viability thresholds. Both comparisons are strict.
const (
	minViabilityScore = 70.0
	minNetMarginPct   = 20.0
)

// Score derives the full pricing block for a raw opportunity.
//
// The computation is pure: identical inputs always produce identical
// pricing, and failure leaves nothing partially computed.
func Score(raw RawOpportunity) (Pricing, error) {
	if raw.SupplierPrice <= 0 {
		return Pricing{}, fmt.Errorf("%w: supplier price must be positive, got %.2f", ErrInvalidInput, raw.SupplierPrice)
	}
	if raw.EstimatedDemand < 0 {
		return Pricing{}, fmt.Errorf("%w: estimated demand must be non-negative, got %d", ErrInvalidInput, raw.EstimatedDemand)
	}
	if raw.MarginPotential < 0 || raw.MarginPotential > 200 {
		return Pricing{}, fmt.Errorf("%w: margin potential must be within [0, 200], got %.2f", ErrInvalidInput, raw.MarginPotential)
	}

	targetPrice := raw.SupplierPrice * (1 + raw.MarginPotential/100)
	shipping := raw.SupplierPrice * shippingRate
	taxes := targetPrice * taxRate
	totalCost := raw.SupplierPrice + shipping + taxes

	return Pricing{
		TargetPrice:    targetPrice,
		ShippingCost:   shipping,
		TaxesCost:      taxes,
		TotalCost:      totalCost,
		NetMarginPct:   (targetPrice - totalCost) / targetPrice * 100,
		MonthlyRevenue: targetPrice * float64(raw.EstimatedDemand),
		MonthlyProfit:  (targetPrice - totalCost) * float64(raw.EstimatedDemand),
	}, nil
}

// IsViable is the single admission gate for negotiation and execution.
func IsViable(o *Opportunity) bool {
	return o.ViabilityScore > minViabilityScore && o.NetMarginPct > minNetMarginPct
}

// New assembles a scored opportunity from its raw record, derived pricing
// and AI analysis. The result starts in the detected state.
func New(raw RawOpportunity, pricing Pricing, analysis Analysis) *Opportunity {
	now := time.Now().UTC()
	return &Opportunity{
		ID:              uuid.New(),
		ProductName:     raw.ProductName,
		Source:          raw.Source,
		TargetMarket:    raw.TargetMarket,
		ConsumerFacing:  raw.ConsumerFacing,
		SupplierPrice:   raw.SupplierPrice,
		EstimatedDemand: raw.EstimatedDemand,
		MarginPotential: raw.MarginPotential,
		Pricing:         pricing,
		Analysis:        analysis,
		Status:          StatusDetected,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
