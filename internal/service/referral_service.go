package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/mtss-api/internal/models"
	"github.com/noah-isme/mtss-api/pkg/database"
	appErrors "github.com/noah-isme/mtss-api/pkg/errors"
)

const (
	reportReferralCandidates = "referral_candidates"
	reportMonitoredStudents  = "monitored_students"
)

type referralStatsRepository interface {
	ReferralStats(ctx context.Context, tenantID string) ([]models.ReferralStats, error)
}

type monitoringRepository interface {
	FindByID(ctx context.Context, tenantID, id string) (*models.Student, error)
	SetMonitoring(ctx context.Context, tenantID, id string, since time.Time, notes *string, by string) error
	ClearMonitoring(ctx context.Context, tenantID, id string) error
}

// StartMonitoringRequest places a flagged student under observation.
type StartMonitoringRequest struct {
	Notes *string `json:"notes" validate:"omitempty,max=2000"`
}

// ReferralService detects Tier-1 students who may need escalation and manages the
// monitoring state that holds them out of the candidate list.
type ReferralService struct {
	stats      referralStatsRepository
	students   monitoringRepository
	cache      *CacheService
	metrics    *MetricsService
	thresholds ReferralThresholds
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// ReferralServiceParams groups constructor dependencies.
type ReferralServiceParams struct {
	Stats      referralStatsRepository
	Students   monitoringRepository
	Cache      *CacheService
	Metrics    *MetricsService
	Thresholds ReferralThresholds
	Validator  *validator.Validate
	Logger     *zap.Logger
}

// NewReferralService constructs the detector; zero thresholds fall back to defaults.
func NewReferralService(params ReferralServiceParams) *ReferralService {
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReferralService{
		stats:      params.Stats,
		students:   params.Students,
		cache:      params.Cache,
		metrics:    params.Metrics,
		thresholds: params.Thresholds.withDefaults(),
		validator:  validate,
		logger:     logger,
		now:        time.Now,
	}
}

// Candidates returns flagged students that are not being monitored, worst first.
func (s *ReferralService) Candidates(ctx context.Context, tenantID string) ([]models.ReferralCandidate, bool, error) {
	key := ReportKey(tenantID, reportReferralCandidates)
	var cached []models.ReferralCandidate
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, true, nil
	}

	rows, err := s.loadStats(ctx, tenantID)
	if err != nil {
		return nil, false, err
	}
	candidates := []models.ReferralCandidate{}
	for _, row := range rows {
		if row.MonitoringSince != nil {
			continue
		}
		reasons := EvaluateReferral(row, s.thresholds)
		if len(reasons) == 0 {
			continue
		}
		candidates = append(candidates, models.ReferralCandidate{ReferralStats: row, Reasons: reasons})
	}
	sortByRisk(candidates, func(c models.ReferralCandidate) models.ReferralStats { return c.ReferralStats })

	s.metrics.SetReferralCandidates(len(candidates))
	s.store(ctx, key, candidates)
	return candidates, false, nil
}

// Monitored returns students in the monitoring state with live statistics. Reasons are
// recomputed and may be empty once a student no longer matches any rule.
func (s *ReferralService) Monitored(ctx context.Context, tenantID string) ([]models.MonitoredStudent, bool, error) {
	key := ReportKey(tenantID, reportMonitoredStudents)
	var cached []models.MonitoredStudent
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, true, nil
	}

	rows, err := s.loadStats(ctx, tenantID)
	if err != nil {
		return nil, false, err
	}
	monitored := []models.MonitoredStudent{}
	for _, row := range rows {
		if row.MonitoringSince == nil {
			continue
		}
		monitored = append(monitored, models.MonitoredStudent{
			ReferralStats:   row,
			MonitoringSince: *row.MonitoringSince,
			MonitoringNotes: row.MonitoringNotes,
			MonitoringBy:    row.MonitoringBy,
			Reasons:         EvaluateReferral(row, s.thresholds),
		})
	}
	sortByRisk(monitored, func(m models.MonitoredStudent) models.ReferralStats { return m.ReferralStats })

	s.store(ctx, key, monitored)
	return monitored, false, nil
}

// StartMonitoring places a Tier-1 student in the monitoring state. Repeating the call
// refreshes the notes and the start time.
func (s *ReferralService) StartMonitoring(ctx context.Context, actor models.Actor, studentID string, req StartMonitoringRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid monitoring payload")
	}
	student, err := s.loadStudent(ctx, actor.TenantID, studentID)
	if err != nil {
		return nil, err
	}
	if student.Archived {
		return nil, appErrors.Clone(appErrors.ErrValidation, "archived students cannot be monitored")
	}
	if student.Tier != 1 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only tier 1 students can be monitored")
	}

	since := s.now().UTC()
	if err := s.students.SetMonitoring(ctx, actor.TenantID, studentID, since, req.Notes, actor.UserID); err != nil {
		return nil, s.writeError(err)
	}
	student.MonitoringSince = &since
	student.MonitoringNotes = req.Notes
	student.MonitoringBy = &actor.UserID
	s.invalidate(ctx, actor.TenantID)
	return student, nil
}

// StopMonitoring returns the student to the candidate pool. It is a no-op for students
// that are not monitored.
func (s *ReferralService) StopMonitoring(ctx context.Context, tenantID, studentID string) (*models.Student, error) {
	student, err := s.loadStudent(ctx, tenantID, studentID)
	if err != nil {
		return nil, err
	}
	if !student.Monitored() {
		return student, nil
	}
	if err := s.students.ClearMonitoring(ctx, tenantID, studentID); err != nil {
		return nil, s.writeError(err)
	}
	student.MonitoringSince = nil
	student.MonitoringNotes = nil
	student.MonitoringBy = nil
	s.invalidate(ctx, tenantID)
	return student, nil
}

func (s *ReferralService) loadStats(ctx context.Context, tenantID string) ([]models.ReferralStats, error) {
	start := time.Now()
	rows, err := s.stats.ReferralStats(ctx, tenantID)
	s.metrics.ObserveDBQuery("referral_stats", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate referral statistics")
	}
	return rows, nil
}

func (s *ReferralService) loadStudent(ctx context.Context, tenantID, id string) (*models.Student, error) {
	student, err := s.students.FindByID(ctx, tenantID, id)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

func (s *ReferralService) writeError(err error) error {
	if database.IsNotFound(err) {
		return appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update monitoring state")
}

func (s *ReferralService) store(ctx context.Context, key string, value interface{}) {
	if err := s.cache.Set(ctx, key, value, 0); err != nil {
		s.logger.Warn("referral report not cached", zap.String("key", key), zap.Error(err))
	}
}

func (s *ReferralService) invalidate(ctx context.Context, tenantID string) {
	if err := s.cache.InvalidateTenant(ctx, tenantID); err != nil {
		s.logger.Warn("report cache not invalidated", zap.String("tenant_id", tenantID), zap.Error(err))
	}
}
