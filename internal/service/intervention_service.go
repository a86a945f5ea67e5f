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

type interventionRepository interface {
	Create(ctx context.Context, intervention *models.Intervention) error
	FindByID(ctx context.Context, tenantID, id string) (*models.Intervention, error)
	List(ctx context.Context, filter models.InterventionFilter) ([]models.Intervention, error)
	UpdateStatus(ctx context.Context, tenantID, id string, status models.InterventionStatus) error
}

// CreateInterventionRequest assigns an intervention to a student.
type CreateInterventionRequest struct {
	Name             string `json:"name" validate:"required,max=200"`
	LogFrequency     string `json:"log_frequency" validate:"required,oneof=daily 3x_week 2x_week weekly biweekly"`
	GoalDescription  string `json:"goal_description" validate:"max=2000"`
	GoalTargetRating *int   `json:"goal_target_rating" validate:"omitempty,min=1,max=5"`
	StartDate        string `json:"start_date" validate:"required"`
}

// UpdateInterventionStatusRequest changes the lifecycle state of an intervention.
type UpdateInterventionStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active completed discontinued archived"`
}

// InterventionService manages intervention assignments.
type InterventionService struct {
	repo      interventionRepository
	students  studentReader
	cache     tenantCacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewInterventionService constructs the service.
func NewInterventionService(repo interventionRepository, students studentReader, cache tenantCacheInvalidator, validate *validator.Validate, logger *zap.Logger) *InterventionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InterventionService{repo: repo, students: students, cache: cache, validator: validate, logger: logger}
}

// Create assigns a new active intervention to the student.
func (s *InterventionService) Create(ctx context.Context, tenantID, studentID string, req CreateInterventionRequest) (*models.Intervention, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid intervention payload")
	}
	start, err := weekdate.Parse(req.StartDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidDateFormat, "start_date must be YYYY-MM-DD")
	}
	if err := s.requireStudent(ctx, tenantID, studentID); err != nil {
		return nil, err
	}

	intervention := &models.Intervention{
		TenantID:         tenantID,
		StudentID:        studentID,
		Name:             strings.TrimSpace(req.Name),
		Status:           models.InterventionActive,
		LogFrequency:     models.LogFrequency(req.LogFrequency),
		GoalDescription:  req.GoalDescription,
		GoalTargetRating: req.GoalTargetRating,
		StartDate:        start.String(),
	}
	if err := s.repo.Create(ctx, intervention); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create intervention")
	}
	s.invalidate(ctx, tenantID)
	return intervention, nil
}

// Get returns an intervention in the tenant.
func (s *InterventionService) Get(ctx context.Context, tenantID, id string) (*models.Intervention, error) {
	intervention, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "intervention not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load intervention")
	}
	return intervention, nil
}

// ListForStudent returns a student's interventions, optionally filtered by status.
func (s *InterventionService) ListForStudent(ctx context.Context, tenantID, studentID, status string) ([]models.Intervention, error) {
	filter := models.InterventionFilter{TenantID: tenantID, StudentID: studentID}
	if status != "" {
		st := models.InterventionStatus(status)
		switch st {
		case models.InterventionActive, models.InterventionCompleted, models.InterventionDiscontinued, models.InterventionArchived:
		default:
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown intervention status")
		}
		filter.Status = &st
	}
	if err := s.requireStudent(ctx, tenantID, studentID); err != nil {
		return nil, err
	}
	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list interventions")
	}
	return items, nil
}

// UpdateStatus moves the intervention to a new lifecycle state.
func (s *InterventionService) UpdateStatus(ctx context.Context, tenantID, id string, req UpdateInterventionStatusRequest) (*models.Intervention, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	if err := s.repo.UpdateStatus(ctx, tenantID, id, models.InterventionStatus(req.Status)); err != nil {
		if database.IsNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "intervention not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update intervention status")
	}
	s.invalidate(ctx, tenantID)
	return s.Get(ctx, tenantID, id)
}

func (s *InterventionService) requireStudent(ctx context.Context, tenantID, studentID string) error {
	if _, err := s.students.FindByID(ctx, tenantID, studentID); err != nil {
		if database.IsNotFound(err) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return nil
}

func (s *InterventionService) invalidate(ctx context.Context, tenantID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateTenant(ctx, tenantID); err != nil {
		s.logger.Warn("report cache not invalidated", zap.String("tenant_id", tenantID), zap.Error(err))
	}
}
