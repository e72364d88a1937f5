package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"marketpilot/opportunity-portal/opportunity-portal-backend/internal/events"
	"marketpilot/opportunity-portal/opportunity-portal-backend/internal/execution"
	"marketpilot/opportunity-portal/opportunity-portal-backend/internal/negotiation"
	"marketpilot/opportunity-portal/opportunity-portal-backend/internal/opportunity"
	"marketpilot/opportunity-portal/opportunity-portal-backend/pkg/audit"
)

// fakeAssessor returns a canned analysis per product name
type fakeAssessor struct {
	analyses map[string]opportunity.Analysis
}

func (f *fakeAssessor) Assess(ctx context.Context, raw opportunity.RawOpportunity) opportunity.Analysis {
	if a, ok := f.analyses[raw.ProductName]; ok {
		return a
	}
	return opportunity.Analysis{ViabilityScore: 50, RiskScore: 50}
}

// fakeStore scores in memory and records every transition
type fakeStore struct {
	mu          sync.Mutex
	failProduct string
	ingested    []*opportunity.Opportunity
	transitions map[uuid.UUID][]opportunity.Status
}

func newFakeStore() *fakeStore {
	return &fakeStore{transitions: make(map[uuid.UUID][]opportunity.Status)}
}

func (f *fakeStore) Ingest(ctx context.Context, raw opportunity.RawOpportunity, analysis opportunity.Analysis) (*opportunity.Opportunity, error) {
	if raw.ProductName == f.failProduct {
		return nil, errors.New("store write failed")
	}
	pricing, err := opportunity.Score(raw)
	if err != nil {
		return nil, err
	}
	o := opportunity.New(raw, pricing, analysis)
	f.mu.Lock()
	f.ingested = append(f.ingested, o)
	f.mu.Unlock()
	return o, nil
}

func (f *fakeStore) Decide(ctx context.Context, o *opportunity.Opportunity) (opportunity.Status, error) {
	status := opportunity.StatusRejected
	if opportunity.IsViable(o) {
		status = opportunity.StatusApproved
	}
	o.Status = status
	f.record(o.ID, status)
	return status, nil
}

func (f *fakeStore) Transition(ctx context.Context, id uuid.UUID, to opportunity.Status) (*opportunity.Opportunity, error) {
	f.record(id, to)
	return &opportunity.Opportunity{ID: id, Status: to}, nil
}

func (f *fakeStore) record(id uuid.UUID, status opportunity.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transitions[id] = append(f.transitions[id], status)
}

// fakeNegotiator drives real sessions through the real state machine
type fakeNegotiator struct {
	mu       sync.Mutex
	machine  *negotiation.StateMachine
	sessions map[uuid.UUID]*negotiation.Session
	advances map[uuid.UUID]int
}

func newFakeNegotiator() *fakeNegotiator {
	return &fakeNegotiator{
		machine:  negotiation.NewStateMachine(nil, zap.NewNop()),
		sessions: make(map[uuid.UUID]*negotiation.Session),
		advances: make(map[uuid.UUID]int),
	}
}

func (f *fakeNegotiator) CreateSession(ctx context.Context, req *negotiation.CreateSessionRequest) (*negotiation.Session, error) {
	s, err := negotiation.NewSession(req.OpportunityID, req.Buyer, req.Supplier, req.Deal, req.Strategy)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.sessions[s.ID] = s
	f.mu.Unlock()
	return s, nil
}

func (f *fakeNegotiator) Advance(ctx context.Context, id uuid.UUID) (*negotiation.Session, *negotiation.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, nil, negotiation.ErrNotFound
	}
	msg, err := f.machine.Advance(ctx, s)
	if err != nil {
		return nil, nil, err
	}
	f.advances[id]++
	return s, msg, nil
}

// fakeExecutor builds real plans and forces every step to succeed
type fakeExecutor struct {
	mu    sync.Mutex
	plans map[uuid.UUID]*execution.Plan
	fail  bool
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{plans: make(map[uuid.UUID]*execution.Plan)}
}

func (f *fakeExecutor) Plan(ctx context.Context, o *opportunity.Opportunity) (*execution.Plan, error) {
	if f.fail {
		return nil, errors.New("planner unavailable")
	}
	p := execution.BuildPlan(o)
	f.mu.Lock()
	f.plans[p.ID] = p
	f.mu.Unlock()
	return p, nil
}

type alwaysSucceed struct{}

func (alwaysSucceed) Float64() float64 { return 0 }

func (f *fakeExecutor) Simulate(ctx context.Context, planID uuid.UUID) (*execution.Result, error) {
	f.mu.Lock()
	p, ok := f.plans[planID]
	f.mu.Unlock()
	if !ok {
		return nil, execution.ErrNotFound
	}
	sim := execution.NewSimulator(alwaysSucceed{}, zap.NewNop())
	return sim.Run(p)
}

// capturingPublisher records events
type capturingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *capturingPublisher) Publish(e events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *capturingPublisher) byType(t string) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func viableRaw(product, market string) opportunity.RawOpportunity {
	return opportunity.RawOpportunity{
		ProductName:     product,
		Source:          "alibaba",
		TargetMarket:    market,
		SupplierPrice:   100,
		EstimatedDemand: 500,
		MarginPotential: 80,
	}
}

func thinMarginRaw(product string) opportunity.RawOpportunity {
	return opportunity.RawOpportunity{
		ProductName:     product,
		Source:          "alibaba",
		TargetMarket:    "germany",
		SupplierPrice:   100,
		EstimatedDemand: 1000,
		MarginPotential: 50,
	}
}

func testOrchestrator(t *testing.T, source Source, store *fakeStore, analyses map[string]opportunity.Analysis) (*Orchestrator, *fakeNegotiator, *fakeExecutor, *capturingPublisher) {
	t.Helper()

	buyers := NewBuyerBook()
	buyers.Add("germany", negotiation.BuyerProfile{
		CompanyName: "Acme GmbH",
		CompanySize: "enterprise",
		BuyingPower: negotiation.LevelHigh,
		Urgency:     negotiation.LevelHigh,
	})

	negotiator := newFakeNegotiator()
	executor := newFakeExecutor()
	publisher := &capturingPublisher{}

	orch := NewOrchestrator(source, &fakeAssessor{analyses: analyses}, store, buyers,
		negotiator, executor, publisher, audit.NoopSink{}, zap.NewNop(),
		Config{Categories: []string{"electronics"}, MaxConcurrent: 2, ExecuteOnClose: true})

	return orch, negotiator, executor, publisher
}

func TestRunCycleFullPipeline(t *testing.T) {
	source := NewStaticSource(map[string][]opportunity.RawOpportunity{
		"electronics": {
			viableRaw("LED Panel", "germany"),
			thinMarginRaw("Phone Case"),
		},
	})
	store := newFakeStore()
	orch, negotiator, executor, publisher := testOrchestrator(t, source, store, map[string]opportunity.Analysis{
		"LED Panel":  {ViabilityScore: 85, RiskScore: 20, ComplianceScore: 80},
		"Phone Case": {ViabilityScore: 90, RiskScore: 20, ComplianceScore: 80},
	})

	report, err := orch.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Detected)
	assert.Equal(t, 1, report.Approved)
	assert.Equal(t, 1, report.Rejected)
	assert.Equal(t, 1, report.Negotiated)
	assert.Equal(t, 1, report.Executed)
	assert.Equal(t, 0, report.Failures)

	// the viable opportunity walked every negotiation stage
	require.Len(t, negotiator.sessions, 1)
	for id, n := range negotiator.advances {
		assert.Equal(t, 5, n)
		assert.True(t, negotiator.sessions[id].Completed())
	}

	// one plan built and simulated to completion
	require.Len(t, executor.plans, 1)
	for _, p := range executor.plans {
		assert.True(t, p.Finalized)
	}

	// five stage events were broadcast
	assert.Len(t, publisher.byType("negotiation_stage"), 5)
	assert.NotEmpty(t, publisher.byType("execution_step"))
}

func TestRunCycleIsolatesSingleFailure(t *testing.T) {
	source := NewStaticSource(map[string][]opportunity.RawOpportunity{
		"electronics": {
			viableRaw("LED Panel", "germany"),
			viableRaw("Broken Widget", "germany"),
		},
	})
	store := newFakeStore()
	store.failProduct = "Broken Widget"

	orch, _, _, _ := testOrchestrator(t, source, store, map[string]opportunity.Analysis{
		"LED Panel":     {ViabilityScore: 85, RiskScore: 20, ComplianceScore: 80},
		"Broken Widget": {ViabilityScore: 85, RiskScore: 20, ComplianceScore: 80},
	})

	report, err := orch.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Detected)
	assert.Equal(t, 1, report.Failures)
	assert.Equal(t, 1, report.Executed)
	assert.Len(t, store.ingested, 1)
}

func TestRunCycleCountsProgressBeforeFailure(t *testing.T) {
	source := NewStaticSource(map[string][]opportunity.RawOpportunity{
		"electronics": {viableRaw("LED Panel", "germany")},
	})
	store := newFakeStore()
	orch, _, executor, _ := testOrchestrator(t, source, store, map[string]opportunity.Analysis{
		"LED Panel": {ViabilityScore: 85, RiskScore: 20, ComplianceScore: 80},
	})
	executor.fail = true

	report, err := orch.RunCycle(context.Background())
	require.NoError(t, err)

	// the opportunity was approved and negotiated before the planner broke
	assert.Equal(t, 1, report.Approved)
	assert.Equal(t, 1, report.Negotiated)
	assert.Equal(t, 0, report.Executed)
	assert.Equal(t, 1, report.Failures)
	assert.Equal(t, 0, report.Rejected)
}

func TestRunCycleNoBuyerStopsAtApproved(t *testing.T) {
	source := NewStaticSource(map[string][]opportunity.RawOpportunity{
		"electronics": {viableRaw("LED Panel", "brazil")}, // no buyer for brazil
	})
	store := newFakeStore()
	orch, negotiator, _, _ := testOrchestrator(t, source, store, map[string]opportunity.Analysis{
		"LED Panel": {ViabilityScore: 85, RiskScore: 20, ComplianceScore: 80},
	})

	report, err := orch.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Approved)
	assert.Equal(t, 0, report.Negotiated)
	assert.Empty(t, negotiator.sessions)
}

type erroringSource struct{}

func (erroringSource) Detect(ctx context.Context, category string) ([]opportunity.RawOpportunity, error) {
	return nil, errors.New("feed unreachable")
}

func TestRunCycleDetectionFailureCounted(t *testing.T) {
	store := newFakeStore()
	orch, _, _, _ := testOrchestrator(t, erroringSource{}, store, nil)

	report, err := orch.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Detected)
	assert.Equal(t, 1, report.Failures)
}

func TestStaticSourceBatchesAreConsumed(t *testing.T) {
	source := NewStaticSource(map[string][]opportunity.RawOpportunity{
		"electronics": {viableRaw("LED Panel", "germany")},
	})

	first, err := source.Detect(context.Background(), "electronics")
	require.NoError(t, err)
	assert.Len(t, first, 1)

	second, err := source.Detect(context.Background(), "electronics")
	require.NoError(t, err)
	assert.Empty(t, second)
}
