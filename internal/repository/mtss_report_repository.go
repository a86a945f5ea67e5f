package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/mtss-api/internal/models"
)

// MTSSReportRepository runs the read-only aggregate queries behind the MTSS reports.
type MTSSReportRepository struct {
	db *sqlx.DB
}

// NewMTSSReportRepository constructs the repository.
func NewMTSSReportRepository(db *sqlx.DB) *MTSSReportRepository {
	return &MTSSReportRepository{db: db}
}

// MissingLogs lists active interventions of non-archived students with no entry for week.
// log_frequency is returned as a label; it does not affect which rows qualify.
func (r *MTSSReportRepository) MissingLogs(ctx context.Context, tenantID, week string) ([]models.MissingLogItem, error) {
	const query = `SELECT i.id AS intervention_id, i.name AS intervention_name, s.id AS student_id,
s.first_name, s.last_name, s.tier, i.log_frequency
FROM interventions i
JOIN students s ON s.id = i.student_id
WHERE i.tenant_id = $1 AND i.status = 'active' AND s.archived = FALSE
AND NOT EXISTS (SELECT 1 FROM progress_entries p WHERE p.intervention_id = i.id AND p.week_start = $2::date)
ORDER BY s.last_name ASC, s.first_name ASC, i.name ASC`
	items := make([]models.MissingLogItem, 0)
	if err := r.db.SelectContext(ctx, &items, query, tenantID, week); err != nil {
		return nil, fmt.Errorf("list missing logs: %w", err)
	}
	for i := range items {
		items[i].WeekStart = week
	}
	return items, nil
}

// ReferralStats aggregates active interventions and their ledger per Tier-1 student.
// Only students with at least one active intervention or in monitoring are returned.
func (r *MTSSReportRepository) ReferralStats(ctx context.Context, tenantID string) ([]models.ReferralStats, error) {
	const query = `SELECT s.id AS student_id, s.first_name, s.last_name, s.grade_level, s.tier,
COUNT(DISTINCT i.id) AS active_interventions,
COUNT(p.id) AS total_logs,
AVG(p.rating)::float8 AS avg_rating,
s.monitoring_since, s.monitoring_notes, s.monitoring_by
FROM students s
LEFT JOIN interventions i ON i.student_id = s.id AND i.status = 'active'
LEFT JOIN progress_entries p ON p.intervention_id = i.id
WHERE s.tenant_id = $1 AND s.tier = 1 AND s.archived = FALSE
GROUP BY s.id
HAVING COUNT(DISTINCT i.id) > 0 OR s.monitoring_since IS NOT NULL`
	stats := make([]models.ReferralStats, 0)
	if err := r.db.SelectContext(ctx, &stats, query, tenantID); err != nil {
		return nil, fmt.Errorf("aggregate referral stats: %w", err)
	}
	return stats, nil
}
