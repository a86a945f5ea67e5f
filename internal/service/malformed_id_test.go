package service

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mtss-api/internal/repository"
	appErrors "github.com/noah-isme/mtss-api/pkg/errors"
)

// uuidSyntaxError is what Postgres returns when a path id is cast to a UUID column.
var uuidSyntaxError = &pq.Error{Code: "22P02", Message: `invalid input syntax for type uuid: "abc"`}

func newSQLBackedProgressService(t *testing.T) (*ProgressService, *StudentService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	students := repository.NewStudentRepository(sqlxDB)
	progress := NewProgressService(
		repository.NewProgressRepository(sqlxDB),
		repository.NewInterventionRepository(sqlxDB),
		students,
		nil, nil, nil, nil,
	)
	return progress, NewStudentService(students, nil, nil), mock
}

func TestProgressDeleteMalformedIDIsNotFound(t *testing.T) {
	svc, _, mock := newSQLBackedProgressService(t)
	mock.ExpectExec("DELETE FROM progress_entries").
		WithArgs("abc", "tenant-1").
		WillReturnError(uuidSyntaxError)

	err := svc.Delete(context.Background(), "tenant-1", "abc")

	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProgressUpsertMalformedInterventionIsNotFound(t *testing.T) {
	svc, _, mock := newSQLBackedProgressService(t)
	mock.ExpectQuery("FROM interventions").
		WithArgs("abc", "tenant-1").
		WillReturnError(uuidSyntaxError)

	_, err := svc.Upsert(context.Background(), teacherActor, UpsertProgressRequest{
		InterventionID: "abc",
		Date:           "2024-03-12",
		Status:         "implemented_as_planned",
	})

	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProgressListMalformedInterventionFilterIsNotFound(t *testing.T) {
	svc, _, mock := newSQLBackedProgressService(t)
	now := time.Now()
	mock.ExpectQuery("FROM students s").
		WithArgs("stu-1", "tenant-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "tenant_id", "first_name", "last_name", "grade_level", "tier", "archived",
			"monitoring_since", "monitoring_notes", "monitoring_by", "created_at", "updated_at",
		}).AddRow("stu-1", "tenant-1", "Ana", "Lopez", "5", 1, false, nil, nil, nil, now, now))
	mock.ExpectQuery("FROM progress_entries").WillReturnError(uuidSyntaxError)

	_, err := svc.ListForStudent(context.Background(), "tenant-1", "stu-1", ListProgressQuery{InterventionID: "abc"})

	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}

func TestStudentGetMalformedIDIsNotFound(t *testing.T) {
	_, students, mock := newSQLBackedProgressService(t)
	mock.ExpectQuery("FROM students s").
		WithArgs("abc", "tenant-1").
		WillReturnError(uuidSyntaxError)

	_, err := students.Get(context.Background(), "tenant-1", "abc")

	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}
