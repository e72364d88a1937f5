package execution

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository defines the interface for plan data access
type Repository interface {
	Create(ctx context.Context, p *Plan) error
	Update(ctx context.Context, p *Plan) error
	GetByID(ctx context.Context, id uuid.UUID) (*Plan, error)
	GetByOpportunity(ctx context.Context, opportunityID uuid.UUID) (*Plan, error)
	ListFinalized(ctx context.Context, since time.Time) ([]*Plan, error)
}

// PostgresRepository implements Repository backed by PostgreSQL
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new execution plan repository
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, p *Plan) error {
	query := `
		INSERT INTO execution_plans (
			id, opportunity_id, steps, total_timeline_days,
			success_probability, finalized, outcome, created_at, updated_at
		) VALUES (
			:id, :opportunity_id, :steps, :total_timeline_days,
			:success_probability, :finalized, :outcome, :created_at, :updated_at
		)`
	if _, err := r.db.NamedExecContext(ctx, query, p); err != nil {
		return fmt.Errorf("failed to create execution plan: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, p *Plan) error {
	p.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE execution_plans SET
			steps = :steps,
			total_timeline_days = :total_timeline_days,
			success_probability = :success_probability,
			finalized = :finalized,
			outcome = :outcome,
			updated_at = :updated_at
		WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, p)
	if err != nil {
		return fmt.Errorf("failed to update execution plan: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Plan, error) {
	var p Plan
	err := r.db.GetContext(ctx, &p, `SELECT * FROM execution_plans WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get execution plan: %w", err)
	}
	return &p, nil
}

func (r *PostgresRepository) GetByOpportunity(ctx context.Context, opportunityID uuid.UUID) (*Plan, error) {
	var p Plan
	err := r.db.GetContext(ctx, &p,
		`SELECT * FROM execution_plans WHERE opportunity_id = $1 ORDER BY created_at DESC LIMIT 1`,
		opportunityID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get execution plan: %w", err)
	}
	return &p, nil
}

func (r *PostgresRepository) ListFinalized(ctx context.Context, since time.Time) ([]*Plan, error) {
	var plans []*Plan
	err := r.db.SelectContext(ctx, &plans,
		`SELECT * FROM execution_plans WHERE finalized = true AND updated_at >= $1 ORDER BY updated_at DESC`,
		since)
	if err != nil {
		return nil, fmt.Errorf("failed to list finalized plans: %w", err)
	}
	return plans, nil
}
