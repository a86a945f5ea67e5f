package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/mtss-api/internal/models"
	"github.com/noah-isme/mtss-api/pkg/database"
	appErrors "github.com/noah-isme/mtss-api/pkg/errors"
	"github.com/noah-isme/mtss-api/pkg/weekdate"
)

type progressRepository interface {
	Upsert(ctx context.Context, entry *models.ProgressEntry) (*models.ProgressEntry, error)
	List(ctx context.Context, filter models.ProgressFilter) ([]models.ProgressEntry, error)
	Delete(ctx context.Context, tenantID, id string) error
	Summary(ctx context.Context, interventionID string) (*models.ProgressSummary, error)
}

type interventionReader interface {
	FindByID(ctx context.Context, tenantID, id string) (*models.Intervention, error)
}

type studentReader interface {
	FindByID(ctx context.Context, tenantID, id string) (*models.Student, error)
}

type tenantCacheInvalidator interface {
	InvalidateTenant(ctx context.Context, tenantID string) error
}

// UpsertProgressRequest is the payload for logging a week of progress. Date may be any
// day of the week; it is normalized to the week's Monday.
type UpsertProgressRequest struct {
	InterventionID string  `json:"intervention_id" validate:"required"`
	StudentID      string  `json:"student_id"`
	Date           string  `json:"date" validate:"required"`
	Status         string  `json:"status" validate:"required"`
	Rating         *int    `json:"rating" validate:"omitempty,min=1,max=5"`
	Response       *string `json:"response" validate:"omitempty,max=64"`
	Notes          *string `json:"notes" validate:"omitempty,max=4000"`
}

// ListProgressQuery narrows a student's ledger listing.
type ListProgressQuery struct {
	InterventionID string
	StartDate      string
	EndDate        string
}

// ProgressService owns the weekly progress ledger.
type ProgressService struct {
	repo          progressRepository
	interventions interventionReader
	students      studentReader
	cache         tenantCacheInvalidator
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewProgressService constructs the ledger service. cache and metrics may be nil.
func NewProgressService(repo progressRepository, interventions interventionReader, students studentReader, cache tenantCacheInvalidator, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ProgressService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressService{
		repo:          repo,
		interventions: interventions,
		students:      students,
		cache:         cache,
		metrics:       metrics,
		validator:     validate,
		logger:        logger,
	}
}

// Upsert records the entry for the intervention's week, replacing an existing one.
// Rating and response are stored as given for student_absent entries.
func (s *ProgressService) Upsert(ctx context.Context, actor models.Actor, req UpsertProgressRequest) (*models.ProgressEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid progress payload")
	}
	status := models.ProgressStatus(req.Status)
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrInvalidStatus, "status must be one of implemented_as_planned, partially_implemented, not_implemented, student_absent")
	}
	week, err := weekdate.Normalize(req.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidDateFormat.Code, appErrors.ErrInvalidDateFormat.Status, appErrors.ErrInvalidDateFormat.Message)
	}

	intervention, err := s.loadIntervention(ctx, actor.TenantID, req.InterventionID)
	if err != nil {
		return nil, err
	}
	studentID := strings.TrimSpace(req.StudentID)
	if studentID == "" {
		studentID = intervention.StudentID
	} else if studentID != intervention.StudentID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student does not own this intervention")
	}

	entry := &models.ProgressEntry{
		InterventionID: intervention.ID,
		StudentID:      studentID,
		WeekStart:      week,
		Status:         status,
		Rating:         req.Rating,
		Response:       req.Response,
		Notes:          req.Notes,
		LoggedBy:       actor.UserID,
	}
	stored, err := s.repo.Upsert(ctx, entry)
	if err != nil {
		return nil, s.storeError(err, "failed to save progress entry")
	}

	s.metrics.IncProgressUpsert(string(status))
	s.invalidate(ctx, actor.TenantID)
	s.logger.Debug("progress entry saved",
		zap.String("intervention_id", stored.InterventionID),
		zap.String("week_start", stored.WeekStart),
		zap.String("status", string(stored.Status)),
	)
	return stored, nil
}

// ListForStudent returns the student's entries, most recent week first. Bounds are
// inclusive and compared against week_start.
func (s *ProgressService) ListForStudent(ctx context.Context, tenantID, studentID string, query ListProgressQuery) ([]models.ProgressEntry, error) {
	filter := models.ProgressFilter{
		TenantID:       tenantID,
		StudentID:      studentID,
		InterventionID: strings.TrimSpace(query.InterventionID),
	}
	var start, end weekdate.Date
	var err error
	if query.StartDate != "" {
		if start, err = weekdate.Parse(query.StartDate); err != nil {
			return nil, appErrors.Clone(appErrors.ErrInvalidDateFormat, "startDate must be YYYY-MM-DD")
		}
		filter.StartWeek = start.String()
	}
	if query.EndDate != "" {
		if end, err = weekdate.Parse(query.EndDate); err != nil {
			return nil, appErrors.Clone(appErrors.ErrInvalidDateFormat, "endDate must be YYYY-MM-DD")
		}
		filter.EndWeek = end.String()
	}
	if filter.StartWeek != "" && filter.EndWeek != "" && end.Before(start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "startDate must not be after endDate")
	}

	if _, err := s.students.FindByID(ctx, tenantID, studentID); err != nil {
		if database.IsNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	entries, err := s.repo.List(ctx, filter)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "intervention not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list progress entries")
	}
	return entries, nil
}

// Delete removes a single entry.
func (s *ProgressService) Delete(ctx context.Context, tenantID, id string) error {
	if err := s.repo.Delete(ctx, tenantID, id); err != nil {
		if database.IsNotFound(err) {
			return appErrors.Clone(appErrors.ErrNotFound, "progress entry not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete progress entry")
	}
	s.invalidate(ctx, tenantID)
	return nil
}

// SummaryForIntervention aggregates the intervention's ledger.
func (s *ProgressService) SummaryForIntervention(ctx context.Context, tenantID, interventionID string) (*models.ProgressSummary, error) {
	if _, err := s.loadIntervention(ctx, tenantID, interventionID); err != nil {
		return nil, err
	}
	summary, err := s.repo.Summary(ctx, interventionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarize progress")
	}
	return summary, nil
}

func (s *ProgressService) loadIntervention(ctx context.Context, tenantID, id string) (*models.Intervention, error) {
	intervention, err := s.interventions.FindByID(ctx, tenantID, id)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "intervention not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load intervention")
	}
	return intervention, nil
}

func (s *ProgressService) storeError(err error, message string) error {
	if database.IsConstraintViolation(err) {
		msg := appErrors.ErrConstraint.Message
		if name := database.ConstraintName(err); name != "" {
			msg = msg + ": " + name
		}
		return appErrors.Wrap(err, appErrors.ErrConstraint.Code, appErrors.ErrConstraint.Status, msg)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func (s *ProgressService) invalidate(ctx context.Context, tenantID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateTenant(ctx, tenantID); err != nil {
		s.logger.Warn("report cache not invalidated", zap.String("tenant_id", tenantID), zap.Error(err))
	}
}
