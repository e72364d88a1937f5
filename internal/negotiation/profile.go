package negotiation

import (
	"github.com/google/uuid"
)

// DeriveBuyerProfile fills the derived attributes of a buyer profile.
// Run once at session creation.
func DeriveBuyerProfile(b BuyerProfile) BuyerProfile {
	b.PriceSensitivity = derivePriceSensitivity(b)
	b.Leverage = deriveLeverage(b)
	return b
}

func derivePriceSensitivity(b BuyerProfile) Level {
	if b.BuyingPower == LevelHigh && b.Urgency == LevelHigh {
		return LevelLow
	}
	if b.BuyingPower == LevelHigh && b.CompanySize == "enterprise" {
		return LevelLow
	}
	return LevelMedium
}

func deriveLeverage(b BuyerProfile) Level {
	switch {
	case b.Urgency == LevelHigh && b.BuyingPower == LevelHigh:
		return LevelHigh
	case b.Urgency == LevelLow:
		return LevelLow
	default:
		return LevelMedium
	}
}

// NewSession pairs an approved opportunity with a buyer profile. The deal
// parameters are validated against the payment policy before anything is
// built; a rejected session leaves no state behind.
func NewSession(opportunityID uuid.UUID, buyer BuyerProfile, supplier SupplierProfile, deal DealParameters, strategy Strategy) (*Session, error) {
	if err := deal.Validate(); err != nil {
		return nil, err
	}

	return &Session{
		ID:            uuid.New(),
		OpportunityID: opportunityID,
		Buyer:         DeriveBuyerProfile(buyer),
		Supplier:      supplier,
		Deal:          deal,
		Strategy:      strategy,
		Stage:         StageInitialContact,
		Messages:      []Message{},
	}, nil
}
