package negotiation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines the interface for session data access
type Repository interface {
	Create(ctx context.Context, s *Session) error
	Update(ctx context.Context, s *Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*Session, error)
	ListByOpportunity(ctx context.Context, opportunityID uuid.UUID) ([]*Session, error)
	ListByStage(ctx context.Context, stage Stage, limit int) ([]*Session, error)
}

// GormRepository implements Repository backed by PostgreSQL via gorm
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a new session repository
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// Create persists a new session. Deal parameters are re-validated here so
// no session with disallowed payment terms ever reaches storage,
// regardless of how it was constructed.
func (r *GormRepository) Create(ctx context.Context, s *Session) error {
	if err := s.Deal.Validate(); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// Update persists session state after a stage advance
func (r *GormRepository) Update(ctx context.Context, s *Session) error {
	if err := s.Deal.Validate(); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Save(s).Error; err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

func (r *GormRepository) GetByID(ctx context.Context, id uuid.UUID) (*Session, error) {
	var s Session
	err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &s, nil
}

func (r *GormRepository) ListByOpportunity(ctx context.Context, opportunityID uuid.UUID) ([]*Session, error) {
	var sessions []*Session
	err := r.db.WithContext(ctx).
		Where("opportunity_id = ?", opportunityID).
		Order("created_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

func (r *GormRepository) ListByStage(ctx context.Context, stage Stage, limit int) ([]*Session, error) {
	var sessions []*Session
	query := r.db.WithContext(ctx).Where("stage = ?", stage).Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("failed to list sessions by stage: %w", err)
	}
	return sessions, nil
}
