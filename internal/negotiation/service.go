package negotiation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"marketpilot/opportunity-portal/opportunity-portal-backend/internal/opportunity"
	"marketpilot/opportunity-portal/opportunity-portal-backend/pkg/audit"
)

// OpportunityLookup reads the opportunity a session references. Sessions
// may only be created against an approved opportunity.
type OpportunityLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*opportunity.Opportunity, error)
}

// Service provides business logic for negotiation sessions
type Service struct {
	repo          Repository
	machine       *StateMachine
	opportunities OpportunityLookup
	audit         audit.Sink
	logger        *zap.Logger
}

// NewService creates a new negotiation service
func NewService(repo Repository, machine *StateMachine, opportunities OpportunityLookup, auditSink audit.Sink, logger *zap.Logger) *Service {
	return &Service{
		repo:          repo,
		machine:       machine,
		opportunities: opportunities,
		audit:         auditSink,
		logger:        logger,
	}
}

// CreateSessionRequest pairs an approved opportunity with a buyer
type CreateSessionRequest struct {
	OpportunityID uuid.UUID       `json:"opportunity_id" binding:"required"`
	Buyer         BuyerProfile    `json:"buyer" binding:"required"`
	Supplier      SupplierProfile `json:"supplier"`
	Deal          DealParameters  `json:"deal" binding:"required"`
	Strategy      Strategy        `json:"strategy"`
}

// CreateSession derives the buyer profile, validates deal terms and
// persists the new session at initial_contact.
func (s *Service) CreateSession(ctx context.Context, req *CreateSessionRequest) (*Session, error) {
	opp, err := s.opportunities.Get(ctx, req.OpportunityID)
	if err != nil {
		return nil, fmt.Errorf("opportunity lookup: %w", err)
	}
	if opp.Status != opportunity.StatusApproved {
		s.audit.Log("negotiation", "create_session", false, map[string]interface{}{
			"opportunity_id": req.OpportunityID.String(),
			"status":         string(opp.Status),
		})
		return nil, fmt.Errorf("%w: opportunity %s is %s, sessions require approved",
			ErrPolicyViolation, opp.ID, opp.Status)
	}

	session, err := NewSession(req.OpportunityID, req.Buyer, req.Supplier, req.Deal, req.Strategy)
	if err != nil {
		s.audit.Log("negotiation", "create_session", false, map[string]interface{}{
			"opportunity_id": req.OpportunityID.String(),
		})
		return nil, err
	}

	if err := s.repo.Create(ctx, session); err != nil {
		return nil, err
	}

	s.audit.Log("negotiation", "create_session", true, map[string]interface{}{
		"session_id":     session.ID.String(),
		"opportunity_id": session.OpportunityID.String(),
	})
	return session, nil
}

// Advance moves a session one stage forward and persists the result.
// The returned message is the outbound content generated for the stage
// the session was in before the advance.
func (s *Service) Advance(ctx context.Context, id uuid.UUID) (*Session, *Message, error) {
	session, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	msg, err := s.machine.Advance(ctx, session)
	if err != nil {
		return nil, nil, err
	}

	if err := s.repo.Update(ctx, session); err != nil {
		return nil, nil, fmt.Errorf("failed to persist stage advance: %w", err)
	}

	s.logger.Info("Negotiation stage advanced",
		zap.String("session_id", session.ID.String()),
		zap.String("stage", string(session.Stage)),
		zap.Int("success_probability", session.SuccessProbability))

	return session, msg, nil
}

// Get retrieves one session by id
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByOpportunity retrieves all sessions for an opportunity
func (s *Service) ListByOpportunity(ctx context.Context, opportunityID uuid.UUID) ([]*Session, error) {
	return s.repo.ListByOpportunity(ctx, opportunityID)
}

// Transcript renders the session's message log as a PDF document
func (s *Service) Transcript(ctx context.Context, id uuid.UUID) ([]byte, error) {
	session, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return RenderTranscript(session)
}
