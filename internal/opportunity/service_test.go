package opportunity

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"marketpilot/opportunity-portal/opportunity-portal-backend/pkg/audit"
)

// MockRepository is a mock implementation of the Repository interface
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, o *Opportunity) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockRepository) GetByID(ctx context.Context, id uuid.UUID) (*Opportunity, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Opportunity), args.Error(1)
}

func (m *MockRepository) Update(ctx context.Context, o *Opportunity) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockRepository) List(ctx context.Context, filters *Filters) ([]*Opportunity, int, error) {
	args := m.Called(ctx, filters)
	return args.Get(0).([]*Opportunity), args.Int(1), args.Error(2)
}

func newTestService(repo Repository) *Service {
	return NewService(repo, audit.NoopSink{}, zap.NewNop())
}

func TestIngestPersistsDetectedOpportunity(t *testing.T) {
	repo := new(MockRepository)
	service := newTestService(repo)

	raw := RawOpportunity{
		ProductName:     "Wireless Earbuds",
		Source:          "alibaba",
		TargetMarket:    "germany",
		SupplierPrice:   100,
		EstimatedDemand: 500,
		MarginPotential: 80,
	}
	analysis := Analysis{ViabilityScore: 85, RiskScore: 20, Confidence: 0.9, ComplianceScore: 90}

	repo.On("Create", mock.Anything, mock.MatchedBy(func(o *Opportunity) bool {
		return o.Status == StatusDetected && o.ProductName == "Wireless Earbuds"
	})).Return(nil)

	o, err := service.Ingest(context.Background(), raw, analysis)
	require.NoError(t, err)
	assert.Equal(t, StatusDetected, o.Status)
	assert.InDelta(t, 28.11, o.NetMarginPct, 0.01)
	repo.AssertExpectations(t)
}

func TestIngestRejectsInvalidInput(t *testing.T) {
	repo := new(MockRepository)
	service := newTestService(repo)

	raw := RawOpportunity{ProductName: "Broken", SupplierPrice: -5, EstimatedDemand: 10, MarginPotential: 50}
	_, err := service.Ingest(context.Background(), raw, Analysis{})
	assert.ErrorIs(t, err, ErrInvalidInput)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestTransitionEnforcesLifecycle(t *testing.T) {
	repo := new(MockRepository)
	service := newTestService(repo)
	id := uuid.New()

	repo.On("GetByID", mock.Anything, id).Return(&Opportunity{ID: id, Status: StatusDetected}, nil)

	// detected -> completed skips the whole lifecycle
	_, err := service.Transition(context.Background(), id, StatusCompleted)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not allowed")
	repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestTransitionAllowedPath(t *testing.T) {
	repo := new(MockRepository)
	service := newTestService(repo)
	id := uuid.New()

	repo.On("GetByID", mock.Anything, id).Return(&Opportunity{ID: id, Status: StatusDetected}, nil)
	repo.On("UpdateStatus", mock.Anything, id, StatusAnalyzing).Return(nil)

	o, err := service.Transition(context.Background(), id, StatusAnalyzing)
	require.NoError(t, err)
	assert.Equal(t, StatusAnalyzing, o.Status)
	repo.AssertExpectations(t)
}

func TestTransitionHoldsViabilityGate(t *testing.T) {
	repo := new(MockRepository)
	service := newTestService(repo)
	id := uuid.New()

	o := &Opportunity{ID: id, Status: StatusAnalyzing}
	o.ViabilityScore = 50
	o.NetMarginPct = 10

	repo.On("GetByID", mock.Anything, id).Return(o, nil)

	// analyzing -> approved is workflow-legal but the gate must hold
	_, err := service.Transition(context.Background(), id, StatusApproved)
	assert.ErrorIs(t, err, ErrInvalidInput)
	repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestDecideApprovesViableOpportunity(t *testing.T) {
	repo := new(MockRepository)
	service := newTestService(repo)

	o := &Opportunity{ID: uuid.New(), Status: StatusDetected}
	o.ViabilityScore = 85
	o.NetMarginPct = 28.11

	current := StatusDetected
	repo.On("GetByID", mock.Anything, o.ID).Return(o, nil)
	repo.On("UpdateStatus", mock.Anything, o.ID, mock.Anything).Run(func(args mock.Arguments) {
		current = args.Get(2).(Status)
		o.Status = current
	}).Return(nil)

	status, err := service.Decide(context.Background(), o)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, status)
	assert.Equal(t, StatusApproved, current)
}

func TestDecideRejectsBelowGate(t *testing.T) {
	repo := new(MockRepository)
	service := newTestService(repo)

	o := &Opportunity{ID: uuid.New(), Status: StatusDetected}
	o.ViabilityScore = 90
	o.NetMarginPct = 15.33

	repo.On("GetByID", mock.Anything, o.ID).Return(o, nil)
	repo.On("UpdateStatus", mock.Anything, o.ID, mock.Anything).Run(func(args mock.Arguments) {
		o.Status = args.Get(2).(Status)
	}).Return(nil)

	status, err := service.Decide(context.Background(), o)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, status)
}
