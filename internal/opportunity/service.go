package opportunity

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"marketpilot/opportunity-portal/opportunity-portal-backend/pkg/audit"
	"marketpilot/opportunity-portal/opportunity-portal-backend/pkg/workflows"
)

// Service provides business logic for opportunity management
type Service struct {
	repo     Repository
	workflow *workflows.StateMachine
	audit    audit.Sink
	logger   *zap.Logger
}

// NewService creates a new opportunity service
func NewService(repo Repository, auditSink audit.Sink, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		workflow: workflows.NewStateMachine(),
		audit:    auditSink,
		logger:   logger,
	}
}

// Ingest scores a raw opportunity, attaches its analysis and persists it
// in the detected state.
func (s *Service) Ingest(ctx context.Context, raw RawOpportunity, analysis Analysis) (*Opportunity, error) {
	pricing, err := Score(raw)
	if err != nil {
		return nil, err
	}

	o := New(raw, pricing, analysis)
	if err := s.repo.Create(ctx, o); err != nil {
		s.audit.Log("opportunity", "ingest", false, map[string]interface{}{"product": raw.ProductName})
		return nil, fmt.Errorf("failed to persist opportunity: %w", err)
	}

	s.audit.Log("opportunity", "ingest", true, map[string]interface{}{
		"id":             o.ID.String(),
		"product":        o.ProductName,
		"net_margin_pct": o.NetMarginPct,
	})
	return o, nil
}

// Get retrieves one opportunity by id
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Opportunity, error) {
	return s.repo.GetByID(ctx, id)
}

// List retrieves opportunities matching the given filters
func (s *Service) List(ctx context.Context, filters *Filters) ([]*Opportunity, int, error) {
	return s.repo.List(ctx, filters)
}

// Transition advances an opportunity's status, enforcing the lifecycle
// transition map.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, to Status) (*Opportunity, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !s.workflow.CanTransition(string(o.Status), string(to)) {
		return nil, fmt.Errorf("transition %s -> %s is not allowed", o.Status, to)
	}

	// the viability gate holds on every path to approved, not just Decide
	if to == StatusApproved && !IsViable(o) {
		return nil, fmt.Errorf("%w: viability %.1f and net margin %.2f%% do not pass the approval gate",
			ErrInvalidInput, o.ViabilityScore, o.NetMarginPct)
	}

	if err := s.repo.UpdateStatus(ctx, id, to); err != nil {
		return nil, err
	}

	s.logger.Info("Opportunity status changed",
		zap.String("opportunity_id", id.String()),
		zap.String("from", string(o.Status)),
		zap.String("to", string(to)))
	s.audit.Log("opportunity", "transition", true, map[string]interface{}{
		"id":   id.String(),
		"from": string(o.Status),
		"to":   string(to),
	})

	o.Status = to
	return o, nil
}

// Decide applies the viability gate to an analyzed opportunity, marking it
// approved or rejected.
func (s *Service) Decide(ctx context.Context, o *Opportunity) (Status, error) {
	target := StatusRejected
	if IsViable(o) {
		target = StatusApproved
	}

	if _, err := s.Transition(ctx, o.ID, StatusAnalyzing); err != nil {
		return o.Status, err
	}
	if _, err := s.Transition(ctx, o.ID, target); err != nil {
		return o.Status, err
	}

	o.Status = target
	return target, nil
}
