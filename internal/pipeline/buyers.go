package pipeline

import (
	"context"
	"strings"
	"sync"

	"marketpilot/opportunity-portal/opportunity-portal-backend/internal/negotiation"
	"marketpilot/opportunity-portal/opportunity-portal-backend/internal/opportunity"
)

// BuyerBook is an in-memory buyer directory keyed by target market.
// The production dashboard feeds it from the CRM screen; the pipeline
// only reads it.
type BuyerBook struct {
	mu     sync.RWMutex
	buyers map[string][]negotiation.BuyerProfile
}

// NewBuyerBook creates an empty buyer directory
func NewBuyerBook() *BuyerBook {
	return &BuyerBook{buyers: make(map[string][]negotiation.BuyerProfile)}
}

// Add registers a buyer for a target market
func (b *BuyerBook) Add(market string, buyer negotiation.BuyerProfile) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := strings.ToLower(market)
	b.buyers[key] = append(b.buyers[key], buyer)
}

// Match pairs an approved opportunity with the first buyer registered
// for its target market. Returns nil when no buyer is available.
func (b *BuyerBook) Match(ctx context.Context, o *opportunity.Opportunity) (*negotiation.CreateSessionRequest, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	candidates := b.buyers[strings.ToLower(o.TargetMarket)]
	if len(candidates) == 0 {
		return nil, nil
	}

	return &negotiation.CreateSessionRequest{
		OpportunityID: o.ID,
		Buyer:         candidates[0],
		Deal: negotiation.DealParameters{
			Product:              o.ProductName,
			Quantity:             o.EstimatedDemand,
			BasePrice:            o.SupplierPrice,
			TargetPrice:          o.TargetPrice,
			MinAcceptablePrice:   o.TotalCost,
			DeliveryTimelineDays: 30,
			PaymentTerms:         negotiation.PaymentLetterOfCredit,
		},
		Strategy: negotiation.Strategy{
			Style:         negotiation.StyleCollaborative,
			SellingPoints: []string{"reliable supply", "verified quality samples"},
		},
	}, nil
}
