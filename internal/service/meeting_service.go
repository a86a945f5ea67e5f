package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/mtss-api/internal/models"
	"github.com/noah-isme/mtss-api/pkg/database"
	appErrors "github.com/noah-isme/mtss-api/pkg/errors"
	"github.com/noah-isme/mtss-api/pkg/weekdate"
)

type meetingRepository interface {
	CreateWithReviews(ctx context.Context, meeting *models.Meeting) error
	FindByID(ctx context.Context, tenantID, id string) (*models.Meeting, error)
	ListByStudent(ctx context.Context, tenantID, studentID string) ([]models.Meeting, error)
}

// MeetingReviewRequest is the decision for one intervention.
type MeetingReviewRequest struct {
	InterventionID string  `json:"intervention_id" validate:"required"`
	Decision       string  `json:"decision" validate:"required,oneof=continue modify discontinue complete"`
	Notes          *string `json:"notes" validate:"omitempty,max=2000"`
}

// CreateMeetingRequest records a team meeting and its reviews.
type CreateMeetingRequest struct {
	StudentID   string                 `json:"student_id" validate:"required"`
	MeetingDate string                 `json:"meeting_date" validate:"required"`
	MeetingType string                 `json:"meeting_type" validate:"required,oneof=initial progress_review referral exit"`
	Attendees   string                 `json:"attendees" validate:"max=1000"`
	Notes       *string                `json:"notes" validate:"omitempty,max=4000"`
	Reviews     []MeetingReviewRequest `json:"reviews" validate:"dive"`
}

// MeetingService records MTSS team meetings.
type MeetingService struct {
	repo          meetingRepository
	students      studentReader
	interventions interventionReader
	cache         tenantCacheInvalidator
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewMeetingService constructs the service.
func NewMeetingService(repo meetingRepository, students studentReader, interventions interventionReader, cache tenantCacheInvalidator, validate *validator.Validate, logger *zap.Logger) *MeetingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MeetingService{repo: repo, students: students, interventions: interventions, cache: cache, validator: validate, logger: logger}
}

// Create stores the meeting with all of its reviews atomically. Discontinue and complete
// decisions change the reviewed intervention's status in the same transaction.
func (s *MeetingService) Create(ctx context.Context, actor models.Actor, req CreateMeetingRequest) (*models.Meeting, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid meeting payload")
	}
	date, err := weekdate.Parse(req.MeetingDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidDateFormat, "meeting_date must be YYYY-MM-DD")
	}
	if _, err := s.students.FindByID(ctx, actor.TenantID, req.StudentID); err != nil {
		if database.IsNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	meeting := &models.Meeting{
		TenantID:    actor.TenantID,
		StudentID:   req.StudentID,
		MeetingDate: date.String(),
		MeetingType: models.MeetingType(req.MeetingType),
		Attendees:   req.Attendees,
		Notes:       req.Notes,
		CreatedBy:   actor.UserID,
		Reviews:     make([]models.MeetingReview, 0, len(req.Reviews)),
	}
	seen := make(map[string]struct{}, len(req.Reviews))
	statusChanges := false
	for _, review := range req.Reviews {
		if _, dup := seen[review.InterventionID]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, "intervention reviewed more than once")
		}
		seen[review.InterventionID] = struct{}{}
		if err := s.checkIntervention(ctx, actor.TenantID, req.StudentID, review.InterventionID); err != nil {
			return nil, err
		}
		decision := models.ReviewDecision(review.Decision)
		if _, ok := decision.ResultingStatus(); ok {
			statusChanges = true
		}
		meeting.Reviews = append(meeting.Reviews, models.MeetingReview{
			InterventionID: review.InterventionID,
			Decision:       decision,
			Notes:          review.Notes,
		})
	}

	if err := s.repo.CreateWithReviews(ctx, meeting); err != nil {
		switch {
		case database.IsNotFound(err):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "intervention not found")
		case database.IsConstraintViolation(err):
			return nil, appErrors.Wrap(err, appErrors.ErrConstraint.Code, appErrors.ErrConstraint.Status, appErrors.ErrConstraint.Message)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create meeting")
	}
	if statusChanges && s.cache != nil {
		if err := s.cache.InvalidateTenant(ctx, actor.TenantID); err != nil {
			s.logger.Warn("report cache not invalidated", zap.String("tenant_id", actor.TenantID), zap.Error(err))
		}
	}
	return meeting, nil
}

// Get returns a meeting with its reviews.
func (s *MeetingService) Get(ctx context.Context, tenantID, id string) (*models.Meeting, error) {
	meeting, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "meeting not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load meeting")
	}
	return meeting, nil
}

// ListForStudent returns the student's meetings, most recent first.
func (s *MeetingService) ListForStudent(ctx context.Context, tenantID, studentID string) ([]models.Meeting, error) {
	meetings, err := s.repo.ListByStudent(ctx, tenantID, studentID)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list meetings")
	}
	return meetings, nil
}

func (s *MeetingService) checkIntervention(ctx context.Context, tenantID, studentID, id string) error {
	intervention, err := s.interventions.FindByID(ctx, tenantID, id)
	if err != nil {
		if database.IsNotFound(err) {
			return appErrors.Clone(appErrors.ErrNotFound, "intervention not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load intervention")
	}
	if intervention.StudentID != studentID {
		return appErrors.Clone(appErrors.ErrValidation, "intervention belongs to another student")
	}
	return nil
}
