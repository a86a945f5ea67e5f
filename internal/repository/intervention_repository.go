package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/mtss-api/internal/models"
)

var interventionColumns = []string{
	"i.id", "i.tenant_id", "i.student_id", "i.name", "i.status", "i.log_frequency",
	"i.goal_description", "i.goal_target_rating", weekColumn("i.start_date", "start_date"),
	"i.created_at", "i.updated_at",
}

// InterventionRepository persists intervention assignments.
type InterventionRepository struct {
	db *sqlx.DB
}

// NewInterventionRepository constructs the repository.
func NewInterventionRepository(db *sqlx.DB) *InterventionRepository {
	return &InterventionRepository{db: db}
}

// Create inserts a new intervention.
func (r *InterventionRepository) Create(ctx context.Context, intervention *models.Intervention) error {
	if intervention.ID == "" {
		intervention.ID = uuid.NewString()
	}
	if intervention.Status == "" {
		intervention.Status = models.InterventionActive
	}
	now := time.Now().UTC()
	if intervention.CreatedAt.IsZero() {
		intervention.CreatedAt = now
	}
	intervention.UpdatedAt = now
	const query = `INSERT INTO interventions (id, tenant_id, student_id, name, status, log_frequency, goal_description, goal_target_rating, start_date, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::date, $10, $11)`
	if _, err := r.db.ExecContext(ctx, query,
		intervention.ID, intervention.TenantID, intervention.StudentID, intervention.Name, intervention.Status,
		intervention.LogFrequency, intervention.GoalDescription, intervention.GoalTargetRating, intervention.StartDate,
		intervention.CreatedAt, intervention.UpdatedAt,
	); err != nil {
		return fmt.Errorf("create intervention: %w", err)
	}
	return nil
}

// FindByID returns an intervention within the tenant; sql.ErrNoRows when absent.
func (r *InterventionRepository) FindByID(ctx context.Context, tenantID, id string) (*models.Intervention, error) {
	query, args, err := psql.Select(interventionColumns...).
		From("interventions i").
		Where("i.id = ?", id).
		Where("i.tenant_id = ?", tenantID).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build intervention query: %w", err)
	}
	var intervention models.Intervention
	if err := r.db.GetContext(ctx, &intervention, query, args...); err != nil {
		return nil, err
	}
	return &intervention, nil
}

// List returns interventions matching the filter ordered by start date, newest first.
func (r *InterventionRepository) List(ctx context.Context, filter models.InterventionFilter) ([]models.Intervention, error) {
	q := psql.Select(interventionColumns...).
		From("interventions i").
		Where("i.tenant_id = ?", filter.TenantID)
	if filter.StudentID != "" {
		q = q.Where("i.student_id = ?", filter.StudentID)
	}
	if filter.Status != nil {
		q = q.Where("i.status = ?", *filter.Status)
	}
	query, args, err := q.OrderBy("i.start_date DESC", "i.name ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build intervention list query: %w", err)
	}
	interventions := make([]models.Intervention, 0)
	if err := r.db.SelectContext(ctx, &interventions, query, args...); err != nil {
		return nil, fmt.Errorf("list interventions: %w", err)
	}
	return interventions, nil
}

// UpdateStatus changes the lifecycle status; sql.ErrNoRows when nothing matched.
func (r *InterventionRepository) UpdateStatus(ctx context.Context, tenantID, id string, status models.InterventionStatus) error {
	const query = `UPDATE interventions SET status = $1, updated_at = $2 WHERE id = $3 AND tenant_id = $4`
	res, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), id, tenantID)
	if err != nil {
		return fmt.Errorf("update intervention status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update intervention status: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
