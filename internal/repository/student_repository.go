package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/mtss-api/internal/models"
)

const studentColumns = `s.id, s.tenant_id, s.first_name, s.last_name, s.grade_level, s.tier, s.archived, s.monitoring_since, s.monitoring_notes, s.monitoring_by, s.created_at, s.updated_at`

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns a tenant's students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	args := []interface{}{filter.TenantID}
	conditions := []string{"s.tenant_id = $1"}

	if filter.Tier != nil {
		conditions = append(conditions, fmt.Sprintf("s.tier = $%d", len(args)+1))
		args = append(args, *filter.Tier)
	}
	if filter.Archived != nil {
		conditions = append(conditions, fmt.Sprintf("s.archived = $%d", len(args)+1))
		args = append(args, *filter.Archived)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.first_name) LIKE $%d OR LOWER(s.last_name) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base := fmt.Sprintf("FROM students s WHERE %s", strings.Join(conditions, " AND "))

	allowedSorts := map[string]string{
		"last_name":  "s.last_name, s.first_name",
		"tier":       "s.tier",
		"created_at": "s.created_at",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "last_name"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = allowedSorts["last_name"]
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	if sortBy == "last_name" {
		column = fmt.Sprintf("s.last_name %s, s.first_name", order)
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", studentColumns, base, column, order, size, offset)

	students := make([]models.Student, 0)
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID fetches a student within the tenant.
func (r *StudentRepository) FindByID(ctx context.Context, tenantID, id string) (*models.Student, error) {
	query := "SELECT " + studentColumns + " FROM students s WHERE s.id = $1 AND s.tenant_id = $2"
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id, tenantID); err != nil {
		return nil, err
	}
	return &student, nil
}

// Create inserts a new student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, tenant_id, first_name, last_name, grade_level, tier, archived, created_at, updated_at)
        VALUES (:id, :tenant_id, :first_name, :last_name, :grade_level, :tier, :archived, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// SetMonitoring places the student in the monitoring state, replacing any previous notes.
func (r *StudentRepository) SetMonitoring(ctx context.Context, tenantID, id string, since time.Time, notes *string, by string) error {
	const query = `UPDATE students SET monitoring_since = $1, monitoring_notes = $2, monitoring_by = $3, updated_at = $1
        WHERE id = $4 AND tenant_id = $5`
	return r.execOne(ctx, "set student monitoring", query, since, notes, by, id, tenantID)
}

// ClearMonitoring removes the monitoring state.
func (r *StudentRepository) ClearMonitoring(ctx context.Context, tenantID, id string) error {
	const query = `UPDATE students SET monitoring_since = NULL, monitoring_notes = NULL, monitoring_by = NULL, updated_at = $1
        WHERE id = $2 AND tenant_id = $3`
	return r.execOne(ctx, "clear student monitoring", query, time.Now().UTC(), id, tenantID)
}

func (r *StudentRepository) execOne(ctx context.Context, op, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
