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

const progressReturning = `id, intervention_id, student_id, to_char(week_start, 'YYYY-MM-DD') AS week_start, status, rating, response, notes, logged_by, created_at, updated_at`

// ProgressRepository persists the weekly progress ledger.
type ProgressRepository struct {
	db *sqlx.DB
}

// NewProgressRepository constructs the repository.
func NewProgressRepository(db *sqlx.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// Upsert inserts the entry or, when the (intervention, week) key exists, overwrites its
// mutable fields. The stored row is returned; its id is the original one on conflict.
func (r *ProgressRepository) Upsert(ctx context.Context, entry *models.ProgressEntry) (*models.ProgressEntry, error) {
	now := time.Now().UTC()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now
	query := `INSERT INTO progress_entries (id, intervention_id, student_id, week_start, status, rating, response, notes, logged_by, created_at, updated_at)
VALUES ($1, $2, $3, $4::date, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (intervention_id, week_start)
DO UPDATE SET status = EXCLUDED.status, rating = EXCLUDED.rating, response = EXCLUDED.response, notes = EXCLUDED.notes, logged_by = EXCLUDED.logged_by, updated_at = EXCLUDED.updated_at
RETURNING ` + progressReturning
	var stored models.ProgressEntry
	if err := r.db.GetContext(ctx, &stored, query,
		entry.ID, entry.InterventionID, entry.StudentID, entry.WeekStart, entry.Status,
		entry.Rating, entry.Response, entry.Notes, entry.LoggedBy, entry.CreatedAt, entry.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("upsert progress entry: %w", err)
	}
	return &stored, nil
}

// List returns a student's entries, newest week first.
func (r *ProgressRepository) List(ctx context.Context, filter models.ProgressFilter) ([]models.ProgressEntry, error) {
	q := psql.Select(
		"p.id", "p.intervention_id", "p.student_id", weekColumn("p.week_start", "week_start"),
		"p.status", "p.rating", "p.response", "p.notes", "p.logged_by", "p.created_at", "p.updated_at",
	).
		From("progress_entries p").
		Join("interventions i ON i.id = p.intervention_id").
		Where("i.tenant_id = ?", filter.TenantID).
		Where("p.student_id = ?", filter.StudentID)
	if filter.InterventionID != "" {
		q = q.Where("p.intervention_id = ?", filter.InterventionID)
	}
	if filter.StartWeek != "" {
		q = q.Where("p.week_start >= ?::date", filter.StartWeek)
	}
	if filter.EndWeek != "" {
		q = q.Where("p.week_start <= ?::date", filter.EndWeek)
	}
	query, args, err := q.OrderBy("p.week_start DESC", "p.updated_at DESC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build progress list query: %w", err)
	}

	entries := make([]models.ProgressEntry, 0)
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list progress entries: %w", err)
	}
	return entries, nil
}

// Delete removes one entry within the tenant. sql.ErrNoRows signals that nothing matched.
func (r *ProgressRepository) Delete(ctx context.Context, tenantID, id string) error {
	const query = `DELETE FROM progress_entries p USING interventions i
WHERE p.intervention_id = i.id AND p.id = $1 AND i.tenant_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, tenantID)
	if err != nil {
		return fmt.Errorf("delete progress entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete progress entry rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

type progressSummaryRow struct {
	TotalLogs   int             `db:"total_logs"`
	RatedLogs   int             `db:"rated_logs"`
	AvgRating   sql.NullFloat64 `db:"avg_rating"`
	Implemented int             `db:"implemented_as_planned"`
	Partial     int             `db:"partially_implemented"`
	NotDone     int             `db:"not_implemented"`
	Absent      int             `db:"student_absent"`
	FirstWeek   sql.NullString  `db:"first_week"`
	LastWeek    sql.NullString  `db:"last_week"`
}

// Summary aggregates an intervention's ledger. AVG ignores NULL ratings, so absent
// weeks count toward total_logs without pulling the average down.
func (r *ProgressRepository) Summary(ctx context.Context, interventionID string) (*models.ProgressSummary, error) {
	const query = `SELECT COUNT(*) AS total_logs,
COUNT(rating) AS rated_logs,
AVG(rating)::float8 AS avg_rating,
COUNT(*) FILTER (WHERE status = 'implemented_as_planned') AS implemented_as_planned,
COUNT(*) FILTER (WHERE status = 'partially_implemented') AS partially_implemented,
COUNT(*) FILTER (WHERE status = 'not_implemented') AS not_implemented,
COUNT(*) FILTER (WHERE status = 'student_absent') AS student_absent,
to_char(MIN(week_start), 'YYYY-MM-DD') AS first_week,
to_char(MAX(week_start), 'YYYY-MM-DD') AS last_week
FROM progress_entries WHERE intervention_id = $1`
	var row progressSummaryRow
	if err := r.db.GetContext(ctx, &row, query, interventionID); err != nil {
		return nil, fmt.Errorf("summarize progress: %w", err)
	}

	summary := &models.ProgressSummary{
		InterventionID: interventionID,
		TotalLogs:      row.TotalLogs,
		RatedLogs:      row.RatedLogs,
		ByStatus: map[models.ProgressStatus]int{
			models.ProgressImplemented:   row.Implemented,
			models.ProgressPartial:       row.Partial,
			models.ProgressNotDone:       row.NotDone,
			models.ProgressStudentAbsent: row.Absent,
		},
	}
	if row.AvgRating.Valid {
		avg := row.AvgRating.Float64
		summary.AvgRating = &avg
	}
	if row.FirstWeek.Valid {
		first := row.FirstWeek.String
		summary.FirstWeek = &first
	}
	if row.LastWeek.Valid {
		last := row.LastWeek.String
		summary.LastWeek = &last
	}
	return summary, nil
}
