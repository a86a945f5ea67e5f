package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/mtss-api/internal/models"
	appErrors "github.com/noah-isme/mtss-api/pkg/errors"
	"github.com/noah-isme/mtss-api/pkg/weekdate"
)

const reportMissingLogs = "missing_logs"

type missingLogRepository interface {
	MissingLogs(ctx context.Context, tenantID, week string) ([]models.MissingLogItem, error)
}

// MissingLogService reports active interventions with no entry for a week.
// An intervention's log_frequency is carried as a label only; every active
// intervention is expected to have one entry per week.
type MissingLogService struct {
	repo     missingLogRepository
	cache    *CacheService
	metrics  *MetricsService
	location *time.Location
	logger   *zap.Logger
	now      func() time.Time
}

// NewMissingLogService constructs the service. loc decides which calendar day "today" is.
func NewMissingLogService(repo missingLogRepository, cache *CacheService, metrics *MetricsService, loc *time.Location, logger *zap.Logger) *MissingLogService {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MissingLogService{repo: repo, cache: cache, metrics: metrics, location: loc, logger: logger, now: time.Now}
}

// CurrentWeek returns the week key of today in the configured calendar.
func (s *MissingLogService) CurrentWeek() string {
	return weekdate.CurrentWeek(s.now(), s.location)
}

// Report lists missing logs for the current week.
func (s *MissingLogService) Report(ctx context.Context, tenantID string) (*models.MissingLogReport, bool, error) {
	return s.report(ctx, tenantID, s.CurrentWeek())
}

// ReportForDate lists missing logs for the week containing date.
func (s *MissingLogService) ReportForDate(ctx context.Context, tenantID, date string) (*models.MissingLogReport, bool, error) {
	week, err := weekdate.Normalize(date)
	if err != nil {
		return nil, false, appErrors.Clone(appErrors.ErrInvalidDateFormat, "week must be YYYY-MM-DD")
	}
	return s.report(ctx, tenantID, week)
}

func (s *MissingLogService) report(ctx context.Context, tenantID, week string) (*models.MissingLogReport, bool, error) {
	key := ReportKey(tenantID, reportMissingLogs, week)
	var cached models.MissingLogReport
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, true, nil
	}

	start := time.Now()
	items, err := s.repo.MissingLogs(ctx, tenantID, week)
	s.metrics.ObserveDBQuery("missing_logs", time.Since(start))
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute missing logs")
	}
	if items == nil {
		items = []models.MissingLogItem{}
	}
	report := &models.MissingLogReport{WeekStart: week, Items: items}

	s.metrics.SetMissingLogs(len(items))
	if err := s.cache.Set(ctx, key, report, 0); err != nil {
		s.logger.Warn("missing log report not cached", zap.String("tenant_id", tenantID), zap.Error(err))
	}
	return report, false, nil
}
