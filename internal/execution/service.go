package execution

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"marketpilot/opportunity-portal/opportunity-portal-backend/internal/opportunity"
	"marketpilot/opportunity-portal/opportunity-portal-backend/pkg/audit"
	"marketpilot/opportunity-portal/opportunity-portal-backend/pkg/storage"
)

// Service provides business logic for execution plans
type Service struct {
	repo      Repository
	simulator *Simulator
	s3        storage.S3Client
	bucket    string
	audit     audit.Sink
	logger    *zap.Logger
}

// NewService creates a new execution service
func NewService(repo Repository, simulator *Simulator, s3 storage.S3Client, bucket string, auditSink audit.Sink, logger *zap.Logger) *Service {
	return &Service{
		repo:      repo,
		simulator: simulator,
		s3:        s3,
		bucket:    bucket,
		audit:     auditSink,
		logger:    logger,
	}
}

// Plan builds and persists the execution plan for an approved opportunity
func (s *Service) Plan(ctx context.Context, o *opportunity.Opportunity) (*Plan, error) {
	plan := BuildPlan(o)
	if err := s.repo.Create(ctx, plan); err != nil {
		return nil, err
	}

	s.audit.Log("execution", "plan", true, map[string]interface{}{
		"plan_id":        plan.ID.String(),
		"opportunity_id": o.ID.String(),
		"timeline_days":  plan.TotalTimelineDays,
	})
	return plan, nil
}

// Simulate runs the plan's simulation and persists the finalized plan
func (s *Service) Simulate(ctx context.Context, planID uuid.UUID) (*Result, error) {
	plan, err := s.repo.GetByID(ctx, planID)
	if err != nil {
		return nil, err
	}

	result, err := s.simulator.Run(plan)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, plan); err != nil {
		return nil, fmt.Errorf("failed to persist simulation outcome: %w", err)
	}

	s.logger.Info("Execution simulation finished",
		zap.String("plan_id", plan.ID.String()),
		zap.String("final_status", string(result.FinalStatus)),
		zap.Int("completed_steps", result.CompletedSteps),
		zap.Int("total_steps", result.TotalSteps))
	s.audit.Log("execution", "simulate", true, map[string]interface{}{
		"plan_id":      plan.ID.String(),
		"final_status": string(result.FinalStatus),
	})

	return result, nil
}

// Get retrieves one plan by id
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Plan, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByOpportunity retrieves the latest plan for an opportunity
func (s *Service) GetByOpportunity(ctx context.Context, opportunityID uuid.UUID) (*Plan, error) {
	return s.repo.GetByOpportunity(ctx, opportunityID)
}

// ExportReport builds the deal-flow workbook for plans finalized since
// the given time, uploads it and returns a presigned download URL.
func (s *Service) ExportReport(ctx context.Context, since time.Time) (string, error) {
	plans, err := s.repo.ListFinalized(ctx, since)
	if err != nil {
		return "", err
	}

	data, err := ExportDealFlow(plans)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("reports/deal-flow-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	if err := s.s3.Upload(ctx, s.bucket, key, bytes.NewReader(data)); err != nil {
		s.audit.Log("execution", "export_report", false, map[string]interface{}{"key": key})
		return "", fmt.Errorf("failed to upload report: %w", err)
	}

	url, err := s.s3.GetPresignedURL(ctx, s.bucket, key, 24*time.Hour)
	if err != nil {
		return "", fmt.Errorf("failed to presign report: %w", err)
	}

	s.audit.Log("execution", "export_report", true, map[string]interface{}{
		"key":   key,
		"plans": len(plans),
	})
	return url, nil
}
