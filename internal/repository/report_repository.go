package repository

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/mtss-api/internal/models"
)

var reportJobColumns = []string{
	"id", "tenant_id", "type", "params", "status", "progress",
	"result_url", "created_by", "created_at", "finished_at", "error_message",
}

// ReportRepository stores MTSS export jobs. Rows are tenant tagged; tenant checks
// happen in the service because the download path resolves jobs by signed token.
type ReportRepository struct {
	db *sqlx.DB
}

func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create stores a new job, defaulting id, status and creation time.
func (r *ReportRepository) Create(ctx context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.ReportStatusQueued
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	query, args, err := psql.Insert("report_jobs").
		Columns(reportJobColumns...).
		Values(job.ID, job.TenantID, job.Type, job.Params, job.Status, job.Progress,
			job.ResultURL, job.CreatedBy, job.CreatedAt, job.FinishedAt, job.ErrorMessage).
		ToSql()
	if err != nil {
		return fmt.Errorf("build report job insert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("create report job: %w", err)
	}
	return nil
}

// GetByID wraps sql.ErrNoRows when the job does not exist.
func (r *ReportRepository) GetByID(ctx context.Context, id string) (*models.ReportJob, error) {
	query, args, err := psql.Select(reportJobColumns...).From("report_jobs").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build report job query: %w", err)
	}
	var job models.ReportJob
	if err := r.db.GetContext(ctx, &job, query, args...); err != nil {
		return nil, fmt.Errorf("get report job: %w", err)
	}
	return &job, nil
}

// UpdateReportJobParams lists the fields a worker may change; nil fields stay untouched.
type UpdateReportJobParams struct {
	Status       *models.ReportStatus
	Progress     *int
	ResultURL    *string
	ErrorMessage *string
	FinishedAt   *time.Time
}

func (p UpdateReportJobParams) apply(b sq.UpdateBuilder) (sq.UpdateBuilder, bool) {
	changed := false
	set := func(column string, value interface{}) {
		b = b.Set(column, value)
		changed = true
	}
	if p.Status != nil {
		set("status", *p.Status)
	}
	if p.Progress != nil {
		set("progress", *p.Progress)
	}
	if p.ResultURL != nil {
		set("result_url", *p.ResultURL)
	}
	if p.ErrorMessage != nil {
		set("error_message", *p.ErrorMessage)
	}
	if p.FinishedAt != nil {
		set("finished_at", *p.FinishedAt)
	}
	return b, changed
}

// Update writes the non-nil fields of params. An empty update is a no-op.
func (r *ReportRepository) Update(ctx context.Context, id string, params UpdateReportJobParams) error {
	builder, changed := params.apply(psql.Update("report_jobs"))
	if !changed {
		return nil
	}
	query, args, err := builder.Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build report job update: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update report job: %w", err)
	}
	return nil
}

// ListQueued returns the oldest queued jobs, used to refill the worker after a restart.
func (r *ReportRepository) ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error) {
	if limit <= 0 {
		limit = 20
	}
	return r.list(ctx, "list queued report jobs", psql.Select(reportJobColumns...).
		From("report_jobs").
		Where(sq.Eq{"status": models.ReportStatusQueued}).
		OrderBy("created_at ASC").
		Limit(uint64(limit)))
}

// ListFinishedBefore returns finished jobs whose files are older than cutoff. Expired
// jobs drop out of this listing once cleanup marks them.
func (r *ReportRepository) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.list(ctx, "list finished report jobs", psql.Select(reportJobColumns...).
		From("report_jobs").
		Where(sq.Eq{"status": models.ReportStatusFinished}).
		Where(sq.NotEq{"finished_at": nil}).
		Where(sq.Lt{"finished_at": cutoff}).
		OrderBy("finished_at ASC").
		Limit(uint64(limit)))
}

func (r *ReportRepository) list(ctx context.Context, op string, b sq.SelectBuilder) ([]models.ReportJob, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	jobs := make([]models.ReportJob, 0)
	if err := r.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return jobs, nil
}
