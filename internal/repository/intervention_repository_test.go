package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mtss-api/internal/models"
)

var interventionRowColumns = []string{"id", "tenant_id", "student_id", "name", "status", "log_frequency", "goal_description", "goal_target_rating", "start_date", "created_at", "updated_at"}

func TestInterventionRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewInterventionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO interventions")).
		WithArgs(sqlmock.AnyArg(), "tenant-1", "stu-1", "Reading fluency", models.InterventionActive, models.FrequencyWeekly, "", nil, "2024-03-04", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	intervention := &models.Intervention{TenantID: "tenant-1", StudentID: "stu-1", Name: "Reading fluency", LogFrequency: models.FrequencyWeekly, StartDate: "2024-03-04"}
	require.NoError(t, repo.Create(context.Background(), intervention))
	assert.Equal(t, models.InterventionActive, intervention.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInterventionRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewInterventionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM interventions i WHERE i.id = $1 AND i.tenant_id = $2")).
		WithArgs("int-1", "tenant-1").
		WillReturnRows(sqlmock.NewRows(interventionRowColumns).
			AddRow("int-1", "tenant-1", "stu-1", "Math facts", "active", "2x_week", "fluency", 4, "2024-02-05", time.Now(), time.Now()))

	intervention, err := repo.FindByID(context.Background(), "tenant-1", "int-1")
	require.NoError(t, err)
	assert.Equal(t, models.FrequencyTwice, intervention.LogFrequency)
	require.NotNil(t, intervention.GoalTargetRating)
	assert.Equal(t, 4, *intervention.GoalTargetRating)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInterventionRepositoryListByStudentAndStatus(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewInterventionRepository(db)

	status := models.InterventionActive
	mock.ExpectQuery(regexp.QuoteMeta("FROM interventions i WHERE i.tenant_id = $1 AND i.student_id = $2 AND i.status = $3 ORDER BY i.start_date DESC, i.name ASC")).
		WithArgs("tenant-1", "stu-1", status).
		WillReturnRows(sqlmock.NewRows(interventionRowColumns))

	list, err := repo.List(context.Background(), models.InterventionFilter{TenantID: "tenant-1", StudentID: "stu-1", Status: &status})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInterventionRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewInterventionRepository(db)

	query := regexp.QuoteMeta("UPDATE interventions SET status = $1, updated_at = $2 WHERE id = $3 AND tenant_id = $4")
	mock.ExpectExec(query).WithArgs(models.InterventionCompleted, sqlmock.AnyArg(), "int-1", "tenant-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).WithArgs(models.InterventionCompleted, sqlmock.AnyArg(), "int-x", "tenant-1").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.UpdateStatus(context.Background(), "tenant-1", "int-1", models.InterventionCompleted))
	assert.ErrorIs(t, repo.UpdateStatus(context.Background(), "tenant-1", "int-x", models.InterventionCompleted), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
