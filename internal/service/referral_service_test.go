package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mtss-api/internal/models"
	appErrors "github.com/noah-isme/mtss-api/pkg/errors"
)

// fakeReferralStats joins fixed aggregates with the live monitoring columns of the
// student fake, the way the aggregate query reads them from the students table.
type fakeReferralStats struct {
	base     []models.ReferralStats
	students *fakeStudentRepo
	calls    int
}

func (f *fakeReferralStats) ReferralStats(_ context.Context, tenantID string) ([]models.ReferralStats, error) {
	f.calls++
	out := make([]models.ReferralStats, 0, len(f.base))
	for _, row := range f.base {
		student, ok := f.students.students[row.StudentID]
		if !ok || student.TenantID != tenantID {
			continue
		}
		row.MonitoringSince = student.MonitoringSince
		row.MonitoringNotes = student.MonitoringNotes
		row.MonitoringBy = student.MonitoringBy
		out = append(out, row)
	}
	return out, nil
}

func newReferralFixture(cache *CacheService) (*ReferralService, *fakeReferralStats, *fakeStudentRepo) {
	students := newFakeStudentRepo(
		models.Student{ID: "load", TenantID: "tenant-1", LastName: "Load", Tier: 1},
		models.Student{ID: "chronic", TenantID: "tenant-1", LastName: "Chronic", Tier: 1},
		models.Student{ID: "fine", TenantID: "tenant-1", LastName: "Fine", Tier: 1},
		models.Student{ID: "tier2", TenantID: "tenant-1", LastName: "Tier", Tier: 2},
		models.Student{ID: "archived", TenantID: "tenant-1", LastName: "Gone", Tier: 1, Archived: true},
	)
	stats := &fakeReferralStats{
		students: students,
		base: []models.ReferralStats{
			{StudentID: "load", LastName: "Load", Tier: 1, ActiveInterventions: 3},
			{StudentID: "chronic", LastName: "Chronic", Tier: 1, ActiveInterventions: 1, TotalLogs: 5, AvgRating: floatPtr(1.6)},
			{StudentID: "fine", LastName: "Fine", Tier: 1, ActiveInterventions: 2},
		},
	}
	svc := NewReferralService(ReferralServiceParams{Stats: stats, Students: students, Cache: cache, Metrics: NewMetricsService()})
	svc.now = func() time.Time { return time.Date(2024, 3, 12, 9, 0, 0, 0, time.UTC) }
	return svc, stats, students
}

func TestReferralCandidatesOrderedWorstFirst(t *testing.T) {
	svc, _, _ := newReferralFixture(nil)

	candidates, hit, err := svc.Candidates(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.False(t, hit)
	require.Len(t, candidates, 2)
	assert.Equal(t, "load", candidates[0].StudentID)
	assert.Equal(t, []string{"3 active interventions"}, candidates[0].Reasons)
	assert.Equal(t, "chronic", candidates[1].StudentID)
	assert.Equal(t, []string{"Avg rating 1.6/5 across 5 logs"}, candidates[1].Reasons)
}

func TestReferralMonitoringSuppressesCandidate(t *testing.T) {
	svc, _, students := newReferralFixture(nil)
	ctx := context.Background()
	actor := models.Actor{UserID: "coord-1", TenantID: "tenant-1", Role: models.RoleCoordinator}

	student, err := svc.StartMonitoring(ctx, actor, "load", StartMonitoringRequest{Notes: strPtr("team reviewing")})
	require.NoError(t, err)
	assert.True(t, student.Monitored())
	assert.Equal(t, "coord-1", *students.students["load"].MonitoringBy)

	candidates, _, err := svc.Candidates(ctx, "tenant-1")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "chronic", candidates[0].StudentID)

	monitored, _, err := svc.Monitored(ctx, "tenant-1")
	require.NoError(t, err)
	require.Len(t, monitored, 1)
	assert.Equal(t, "load", monitored[0].StudentID)
	assert.Equal(t, 3, monitored[0].ActiveInterventions)
	assert.Equal(t, []string{"3 active interventions"}, monitored[0].Reasons)
	assert.Equal(t, "team reviewing", *monitored[0].MonitoringNotes)
	assert.Equal(t, time.Date(2024, 3, 12, 9, 0, 0, 0, time.UTC), monitored[0].MonitoringSince)

	_, err = svc.StopMonitoring(ctx, "tenant-1", "load")
	require.NoError(t, err)
	candidates, _, err = svc.Candidates(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Len(t, candidates, 2)

	again, err := svc.StopMonitoring(ctx, "tenant-1", "load")
	require.NoError(t, err)
	assert.False(t, again.Monitored())
}

func TestReferralStartMonitoringRejects(t *testing.T) {
	svc, _, _ := newReferralFixture(nil)
	ctx := context.Background()
	actor := models.Actor{UserID: "coord-1", TenantID: "tenant-1", Role: models.RoleCoordinator}

	_, err := svc.StartMonitoring(ctx, actor, "tier2", StartMonitoringRequest{})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
	_, err = svc.StartMonitoring(ctx, actor, "archived", StartMonitoringRequest{})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
	_, err = svc.StartMonitoring(ctx, actor, "nobody", StartMonitoringRequest{})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
	_, err = svc.StopMonitoring(ctx, "tenant-2", "load")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}

func TestReferralCandidatesCachedUntilMonitoringChanges(t *testing.T) {
	cache := NewCacheService(newMemoryCacheRepo(), nil, time.Minute, nil, true)
	svc, stats, _ := newReferralFixture(cache)
	ctx := context.Background()

	_, hit, err := svc.Candidates(ctx, "tenant-1")
	require.NoError(t, err)
	assert.False(t, hit)
	cached, hit, err := svc.Candidates(ctx, "tenant-1")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Len(t, cached, 2)
	assert.Equal(t, 1, stats.calls)

	_, err = svc.StartMonitoring(ctx, models.Actor{UserID: "u", TenantID: "tenant-1"}, "load", StartMonitoringRequest{})
	require.NoError(t, err)
	fresh, hit, err := svc.Candidates(ctx, "tenant-1")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Len(t, fresh, 1)
}
