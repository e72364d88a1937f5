package opportunity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ErrNotFound indicates the requested opportunity does not exist
var ErrNotFound = errors.New("opportunity not found")

// Repository defines the interface for opportunity data access
type Repository interface {
	Create(ctx context.Context, o *Opportunity) error
	GetByID(ctx context.Context, id uuid.UUID) (*Opportunity, error)
	Update(ctx context.Context, o *Opportunity) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	List(ctx context.Context, filters *Filters) ([]*Opportunity, int, error)
}

// PostgresRepository implements Repository backed by PostgreSQL
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new opportunity repository
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, o *Opportunity) error {
	query := `
		INSERT INTO opportunities (
			id, product_name, source, target_market, consumer_facing,
			supplier_price, estimated_demand, margin_potential,
			target_price, shipping_cost, taxes_cost, total_cost,
			net_margin_pct, monthly_revenue, monthly_profit,
			viability_score, risk_score, confidence, rationale,
			compliance_score, compliance_issues,
			status, metadata, created_at, updated_at
		) VALUES (
			:id, :product_name, :source, :target_market, :consumer_facing,
			:supplier_price, :estimated_demand, :margin_potential,
			:target_price, :shipping_cost, :taxes_cost, :total_cost,
			:net_margin_pct, :monthly_revenue, :monthly_profit,
			:viability_score, :risk_score, :confidence, :rationale,
			:compliance_score, :compliance_issues,
			:status, :metadata, :created_at, :updated_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, o); err != nil {
		return fmt.Errorf("failed to create opportunity: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Opportunity, error) {
	var o Opportunity
	err := r.db.GetContext(ctx, &o, `SELECT * FROM opportunities WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get opportunity: %w", err)
	}
	return &o, nil
}

func (r *PostgresRepository) Update(ctx context.Context, o *Opportunity) error {
	o.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE opportunities SET
			product_name = :product_name,
			target_market = :target_market,
			consumer_facing = :consumer_facing,
			supplier_price = :supplier_price,
			estimated_demand = :estimated_demand,
			margin_potential = :margin_potential,
			target_price = :target_price,
			shipping_cost = :shipping_cost,
			taxes_cost = :taxes_cost,
			total_cost = :total_cost,
			net_margin_pct = :net_margin_pct,
			monthly_revenue = :monthly_revenue,
			monthly_profit = :monthly_profit,
			viability_score = :viability_score,
			risk_score = :risk_score,
			confidence = :confidence,
			rationale = :rationale,
			compliance_score = :compliance_score,
			compliance_issues = :compliance_issues,
			status = :status,
			metadata = :metadata,
			updated_at = :updated_at
		WHERE id = :id`

	result, err := r.db.NamedExecContext(ctx, query, o)
	if err != nil {
		return fmt.Errorf("failed to update opportunity: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE opportunities SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update opportunity status: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context, filters *Filters) ([]*Opportunity, int, error) {
	conditions := []string{"1=1"}
	args := map[string]interface{}{}

	if filters.Status != nil {
		conditions = append(conditions, "status = :status")
		args["status"] = *filters.Status
	}
	if filters.Source != nil {
		conditions = append(conditions, "source = :source")
		args["source"] = *filters.Source
	}
	if filters.MinScore != nil {
		conditions = append(conditions, "viability_score >= :min_score")
		args["min_score"] = *filters.MinScore
	}

	where := strings.Join(conditions, " AND ")

	countQuery := "SELECT COUNT(*) FROM opportunities WHERE " + where
	rows, err := r.db.NamedQueryContext(ctx, countQuery, args)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count opportunities: %w", err)
	}
	var total int
	if rows.Next() {
		if err := rows.Scan(&total); err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("failed to scan opportunity count: %w", err)
		}
	}
	rows.Close()

	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}
	args["limit"] = limit
	args["offset"] = filters.Offset

	listQuery := "SELECT * FROM opportunities WHERE " + where +
		" ORDER BY created_at DESC LIMIT :limit OFFSET :offset"

	rows, err = r.db.NamedQueryContext(ctx, listQuery, args)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list opportunities: %w", err)
	}
	defer rows.Close()

	var opportunities []*Opportunity
	for rows.Next() {
		var o Opportunity
		if err := rows.StructScan(&o); err != nil {
			return nil, 0, fmt.Errorf("failed to scan opportunity: %w", err)
		}
		opportunities = append(opportunities, &o)
	}
	return opportunities, total, nil
}
