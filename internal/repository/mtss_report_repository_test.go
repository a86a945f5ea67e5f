package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mtss-api/internal/models"
)

func TestMTSSReportRepositoryMissingLogs(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewMTSSReportRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE i.tenant_id = $1 AND i.status = 'active' AND s.archived = FALSE") + ".*" +
		regexp.QuoteMeta("AND NOT EXISTS (SELECT 1 FROM progress_entries p WHERE p.intervention_id = i.id AND p.week_start = $2::date)")).
		WithArgs("tenant-1", "2024-03-11").
		WillReturnRows(sqlmock.NewRows([]string{"intervention_id", "intervention_name", "student_id", "first_name", "last_name", "tier", "log_frequency"}).
			AddRow("int-1", "Reading", "stu-1", "Ada", "Lovelace", 1, "daily").
			AddRow("int-3", "Check-in", "stu-2", "Alan", "Turing", 2, "biweekly"))

	items, err := repo.MissingLogs(context.Background(), "tenant-1", "2024-03-11")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, models.MissingLogItem{
		InterventionID:   "int-1",
		InterventionName: "Reading",
		StudentID:        "stu-1",
		FirstName:        "Ada",
		LastName:         "Lovelace",
		Tier:             1,
		LogFrequency:     models.FrequencyDaily,
		WeekStart:        "2024-03-11",
	}, items[0])
	assert.Equal(t, "int-3", items[1].InterventionID)
	assert.Equal(t, 2, items[1].Tier)
	assert.Equal(t, "2024-03-11", items[1].WeekStart)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMTSSReportRepositoryMissingLogsEmptyWeek(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewMTSSReportRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("p.week_start = $2::date")).
		WithArgs("tenant-1", "2024-03-18").
		WillReturnRows(sqlmock.NewRows([]string{"intervention_id", "intervention_name", "student_id", "first_name", "last_name", "tier", "log_frequency"}))

	items, err := repo.MissingLogs(context.Background(), "tenant-1", "2024-03-18")
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestMTSSReportRepositoryReferralStats(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewMTSSReportRepository(db)

	since := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE s.tenant_id = $1 AND s.tier = 1 AND s.archived = FALSE GROUP BY s.id")).
		WithArgs("tenant-1").
		WillReturnRows(sqlmock.NewRows([]string{"student_id", "first_name", "last_name", "grade_level", "tier", "active_interventions", "total_logs", "avg_rating", "monitoring_since", "monitoring_notes", "monitoring_by"}).
			AddRow("stu-1", "Ada", "Lovelace", "5", 1, 3, 0, nil, nil, nil, nil).
			AddRow("stu-2", "Alan", "Turing", "4", 1, 1, 5, 1.6, since, "watch", "user-1"))

	stats, err := repo.ReferralStats(context.Background(), "tenant-1")
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Nil(t, stats[0].AvgRating)
	assert.Equal(t, 3, stats[0].ActiveInterventions)
	require.NotNil(t, stats[1].AvgRating)
	assert.InDelta(t, 1.6, *stats[1].AvgRating, 0.0001)
	require.NotNil(t, stats[1].MonitoringSince)
	assert.True(t, since.Equal(*stats[1].MonitoringSince))
	assert.NoError(t, mock.ExpectationsWereMet())
}
