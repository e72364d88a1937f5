package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"marketpilot/opportunity-portal/opportunity-portal-backend/internal/events"
	"marketpilot/opportunity-portal/opportunity-portal-backend/internal/execution"
	"marketpilot/opportunity-portal/opportunity-portal-backend/internal/negotiation"
	"marketpilot/opportunity-portal/opportunity-portal-backend/internal/opportunity"
	"marketpilot/opportunity-portal/opportunity-portal-backend/pkg/audit"
)

// Source produces raw opportunities for a category. The returned slice
// is a finite, non-restartable batch and may be empty.
type Source interface {
	Detect(ctx context.Context, category string) ([]opportunity.RawOpportunity, error)
}

// Assessor produces the AI analysis block for a raw opportunity
type Assessor interface {
	Assess(ctx context.Context, raw opportunity.RawOpportunity) opportunity.Analysis
}

// OpportunityStore is the slice of the opportunity service the
// orchestrator drives.
type OpportunityStore interface {
	Ingest(ctx context.Context, raw opportunity.RawOpportunity, analysis opportunity.Analysis) (*opportunity.Opportunity, error)
	Decide(ctx context.Context, o *opportunity.Opportunity) (opportunity.Status, error)
	Transition(ctx context.Context, id uuid.UUID, to opportunity.Status) (*opportunity.Opportunity, error)
}

// Negotiator drives negotiation sessions to completion
type Negotiator interface {
	CreateSession(ctx context.Context, req *negotiation.CreateSessionRequest) (*negotiation.Session, error)
	Advance(ctx context.Context, id uuid.UUID) (*negotiation.Session, *negotiation.Message, error)
}

// Executor plans and simulates fulfillment for approved opportunities
type Executor interface {
	Plan(ctx context.Context, o *opportunity.Opportunity) (*execution.Plan, error)
	Simulate(ctx context.Context, planID uuid.UUID) (*execution.Result, error)
}

// BuyerMatcher pairs an approved opportunity with a buyer. A nil request
// with nil error means no buyer is available; the opportunity then stops
// at approved.
type BuyerMatcher interface {
	Match(ctx context.Context, o *opportunity.Opportunity) (*negotiation.CreateSessionRequest, error)
}

// Publisher pushes pipeline events to live dashboard clients
type Publisher interface {
	Publish(event events.Event)
}

// Config tunes a pipeline run
type Config struct {
	Categories     []string `json:"categories"`
	MaxConcurrent  int      `json:"max_concurrent"`
	ExecuteOnClose bool     `json:"execute_on_close"`
}

// CycleReport summarizes one pipeline run
type CycleReport struct {
	Detected   int `json:"detected"`
	Rejected   int `json:"rejected"`
	Approved   int `json:"approved"`
	Negotiated int `json:"negotiated"`
	Executed   int `json:"executed"`
	Failures   int `json:"failures"`
}

// Orchestrator sequences detection, scoring, negotiation and execution.
// Opportunities are independent units of work and run concurrently;
// within one session or plan, stage and step order is strict.
type Orchestrator struct {
	source   Source
	assessor Assessor
	store    OpportunityStore
	buyers   BuyerMatcher
	sessions Negotiator
	executor Executor
	publish  Publisher
	audit    audit.Sink
	logger   *zap.Logger
	config   Config
}

// NewOrchestrator wires the pipeline components together
func NewOrchestrator(source Source, assessor Assessor, store OpportunityStore, buyers BuyerMatcher, sessions Negotiator, executor Executor, publisher Publisher, auditSink audit.Sink, logger *zap.Logger, config Config) *Orchestrator {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 4
	}
	return &Orchestrator{
		source:   source,
		assessor: assessor,
		store:    store,
		buyers:   buyers,
		sessions: sessions,
		executor: executor,
		publish:  publisher,
		audit:    auditSink,
		logger:   logger,
		config:   config,
	}
}

// RunCycle runs one full detection-to-execution pass. A failure in any
// single opportunity is logged and skipped; it never aborts the batch,
// so RunCycle only errors when detection itself is unusable.
func (o *Orchestrator) RunCycle(ctx context.Context) (*CycleReport, error) {
	report := &CycleReport{}

	var batch []opportunity.RawOpportunity
	for _, category := range o.config.Categories {
		raws, err := o.source.Detect(ctx, category)
		if err != nil {
			// one bad category does not sink the run
			o.logger.Error("Detection failed for category",
				zap.String("category", category), zap.Error(err))
			o.audit.Log("pipeline", "detect", false, map[string]interface{}{"category": category})
			report.Failures++
			continue
		}
		batch = append(batch, raws...)
	}
	report.Detected = len(batch)

	if len(batch) == 0 {
		o.logger.Info("Pipeline cycle found no opportunities")
		return report, nil
	}

	results := make([]outcome, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.config.MaxConcurrent)
	for i, raw := range batch {
		g.Go(func() error {
			results[i] = o.processOne(gctx, raw)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors, failures are per-opportunity

	for _, r := range results {
		// progress made before a failure still counts; an opportunity
		// approved and then lost in negotiation is both approved and failed
		if r.failed {
			report.Failures++
		}
		switch {
		case r.executed:
			report.Executed++
			fallthrough
		case r.negotiated:
			report.Negotiated++
			fallthrough
		case r.approved:
			report.Approved++
		case !r.failed:
			report.Rejected++
		}
	}

	o.logger.Info("Pipeline cycle finished",
		zap.Int("detected", report.Detected),
		zap.Int("approved", report.Approved),
		zap.Int("negotiated", report.Negotiated),
		zap.Int("executed", report.Executed),
		zap.Int("failures", report.Failures))
	o.audit.Log("pipeline", "run_cycle", true, map[string]interface{}{
		"detected": report.Detected,
		"approved": report.Approved,
		"failures": report.Failures,
	})

	return report, nil
}

type outcome struct {
	approved   bool
	negotiated bool
	executed   bool
	failed     bool
}

// processOne takes a single raw opportunity through score, decide,
// negotiate and execute. Any error marks only this opportunity failed.
func (o *Orchestrator) processOne(ctx context.Context, raw opportunity.RawOpportunity) outcome {
	analysis := o.assessor.Assess(ctx, raw)

	opp, err := o.store.Ingest(ctx, raw, analysis)
	if err != nil {
		o.logger.Error("Failed to ingest opportunity",
			zap.String("product", raw.ProductName), zap.Error(err))
		return outcome{failed: true}
	}

	status, err := o.store.Decide(ctx, opp)
	if err != nil {
		o.logger.Error("Failed to decide opportunity",
			zap.String("opportunity_id", opp.ID.String()), zap.Error(err))
		return outcome{failed: true}
	}
	o.publishStatus(opp.ID, status)

	if status != opportunity.StatusApproved {
		return outcome{}
	}

	if o.buyers == nil {
		return outcome{approved: true}
	}

	req, err := o.buyers.Match(ctx, opp)
	if err != nil {
		o.logger.Error("Buyer matching failed",
			zap.String("opportunity_id", opp.ID.String()), zap.Error(err))
		return outcome{approved: true, failed: true}
	}
	if req == nil {
		// approved, but no buyer yet; negotiation waits for a later cycle
		return outcome{approved: true}
	}

	if err := o.negotiate(ctx, opp, req); err != nil {
		o.logger.Error("Negotiation failed",
			zap.String("opportunity_id", opp.ID.String()), zap.Error(err))
		return outcome{approved: true, failed: true}
	}

	if !o.config.ExecuteOnClose {
		return outcome{approved: true, negotiated: true}
	}

	if err := o.execute(ctx, opp); err != nil {
		o.logger.Error("Execution failed",
			zap.String("opportunity_id", opp.ID.String()), zap.Error(err))
		return outcome{approved: true, negotiated: true, failed: true}
	}

	return outcome{approved: true, negotiated: true, executed: true}
}

// negotiate creates a session and drives it through every stage. The
// negotiation service persists after each advance.
func (o *Orchestrator) negotiate(ctx context.Context, opp *opportunity.Opportunity, req *negotiation.CreateSessionRequest) error {
	session, err := o.sessions.CreateSession(ctx, req)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	sessionID := session.ID
	for !session.Completed() {
		session, _, err = o.sessions.Advance(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("advance session %s: %w", sessionID, err)
		}
		o.publish.Publish(events.Event{
			Type:          "negotiation_stage",
			OpportunityID: opp.ID.String(),
			EntityID:      session.ID.String(),
			Payload: map[string]interface{}{
				"stage":               string(session.Stage),
				"success_probability": session.SuccessProbability,
			},
		})
	}
	return nil
}

// execute builds the plan, simulates it and records the terminal status
// on the opportunity.
func (o *Orchestrator) execute(ctx context.Context, opp *opportunity.Opportunity) error {
	if _, err := o.store.Transition(ctx, opp.ID, opportunity.StatusExecuting); err != nil {
		return fmt.Errorf("mark executing: %w", err)
	}
	o.publishStatus(opp.ID, opportunity.StatusExecuting)

	plan, err := o.executor.Plan(ctx, opp)
	if err != nil {
		return fmt.Errorf("build plan: %w", err)
	}

	result, err := o.executor.Simulate(ctx, plan.ID)
	if err != nil {
		return fmt.Errorf("simulate plan %s: %w", plan.ID, err)
	}

	if _, err := o.store.Transition(ctx, opp.ID, result.FinalStatus); err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	o.publishStatus(opp.ID, result.FinalStatus)

	o.publish.Publish(events.Event{
		Type:          "execution_step",
		OpportunityID: opp.ID.String(),
		EntityID:      plan.ID.String(),
		Payload: map[string]interface{}{
			"completed_steps": result.CompletedSteps,
			"total_steps":     result.TotalSteps,
			"final_status":    string(result.FinalStatus),
		},
	})
	return nil
}

func (o *Orchestrator) publishStatus(id uuid.UUID, status opportunity.Status) {
	o.publish.Publish(events.Event{
		Type:          "opportunity_status",
		OpportunityID: id.String(),
		Payload:       map[string]interface{}{"status": string(status)},
	})
}
