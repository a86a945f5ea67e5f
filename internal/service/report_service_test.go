package service

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/mtss-api/internal/dto"
	"github.com/noah-isme/mtss-api/internal/models"
	"github.com/noah-isme/mtss-api/internal/repository"
	appErrors "github.com/noah-isme/mtss-api/pkg/errors"
	"github.com/noah-isme/mtss-api/pkg/jobs"
)

type reportRepoStub struct {
	mu   sync.Mutex
	jobs map[string]*models.ReportJob
}

func newReportRepoStub() *reportRepoStub {
	return &reportRepoStub{jobs: map[string]*models.ReportJob{}}
}

func (r *reportRepoStub) Create(ctx context.Context, job *models.ReportJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.CreatedAt = time.Now().UTC()
	r.jobs[job.ID] = job
	return nil
}

func (r *reportRepoStub) GetByID(ctx context.Context, id string) (*models.ReportJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *job
	return &copied, nil
}

func (r *reportRepoStub) Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (r *reportRepoStub) ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var queued []models.ReportJob
	for _, job := range r.jobs {
		if job.Status == models.ReportStatusQueued {
			queued = append(queued, *job)
		}
	}
	return queued, nil
}

func (r *reportRepoStub) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var finished []models.ReportJob
	for _, job := range r.jobs {
		if job.Status == models.ReportStatusFinished && job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			finished = append(finished, *job)
		}
	}
	return finished, nil
}

type queueStub struct {
	jobs []jobs.Job
	err  error
}

func (q *queueStub) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

var (
	adminActor = models.Actor{UserID: "admin", TenantID: "tenant-1", Role: models.RoleAdmin}
	teacherOne = models.Actor{UserID: "teacher-1", TenantID: "tenant-1", Role: models.RoleTeacher}
)

func newReportServiceForTest(t *testing.T) (*ReportService, *reportRepoStub, *queueStub, *ExportService) {
	t.Helper()
	repo := newReportRepoStub()
	queue := &queueStub{}
	exportSvc, _, _, _ := newExportServiceForTest(t)
	service := NewReportService(repo, queue, exportSvc, NewMetricsService(), zap.NewNop(), ReportServiceConfig{
		ResultTTL:       time.Hour,
		CleanupInterval: time.Hour,
	})
	return service, repo, queue, exportSvc
}

func TestReportServiceCreateJob(t *testing.T) {
	svc, repo, queue, _ := newReportServiceForTest(t)
	week := "2024-03-14"
	resp, err := svc.CreateJob(context.Background(), adminActor, dto.ReportRequest{
		Type:   models.ReportTypeMissingLogs,
		Format: models.ReportFormatCSV,
		Week:   &week,
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.ID)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, models.ReportStatusQueued, resp.Status)
	stored := repo.jobs[resp.ID]
	assert.Equal(t, "tenant-1", stored.TenantID)
	assert.Equal(t, "2024-03-11", stored.Params.Extras["week"])
}

func TestReportServiceCreateJobValidation(t *testing.T) {
	svc, _, queue, _ := newReportServiceForTest(t)
	ctx := context.Background()
	bad := "31-12-2024"

	_, err := svc.CreateJob(ctx, adminActor, dto.ReportRequest{Type: "attendance", Format: models.ReportFormatCSV})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
	_, err = svc.CreateJob(ctx, adminActor, dto.ReportRequest{Type: models.ReportTypeMissingLogs, Format: "xlsx"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
	_, err = svc.CreateJob(ctx, adminActor, dto.ReportRequest{Type: models.ReportTypeStudentProgress, Format: models.ReportFormatCSV})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
	_, err = svc.CreateJob(ctx, adminActor, dto.ReportRequest{Type: models.ReportTypeStudentProgress, Format: models.ReportFormatCSV, StudentID: strPtr("s"), StartDate: &bad})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidDateFormat))
	assert.Empty(t, queue.jobs)
}

func TestReportServiceCreateJobEnqueueFailure(t *testing.T) {
	svc, repo, queue, _ := newReportServiceForTest(t)
	queue.err = errors.New("queue full")
	_, err := svc.CreateJob(context.Background(), adminActor, dto.ReportRequest{Type: models.ReportTypeReferralCandidates, Format: models.ReportFormatPDF})
	require.Error(t, err)
	for _, job := range repo.jobs {
		assert.Equal(t, models.ReportStatusFailed, job.Status)
	}
}

func TestReportServiceGetStatus(t *testing.T) {
	svc, repo, _, _ := newReportServiceForTest(t)
	repo.jobs["job-1"] = &models.ReportJob{
		ID:        "job-1",
		TenantID:  "tenant-1",
		Type:      models.ReportTypeReferralCandidates,
		Params:    models.ReportJobParams{Format: models.ReportFormatCSV},
		Status:    models.ReportStatusFinished,
		Progress:  100,
		CreatedBy: "admin",
	}

	resp, err := svc.GetStatus(context.Background(), adminActor, "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusFinished, resp.Status)
	assert.Equal(t, 100, resp.Progress)

	_, err = svc.GetStatus(context.Background(), teacherOne, "job-1")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrForbidden))

	_, err = svc.GetStatus(context.Background(), models.Actor{UserID: "admin", TenantID: "tenant-2", Role: models.RoleAdmin}, "job-1")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))

	_, err = svc.GetStatus(context.Background(), adminActor, "missing")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}

func TestReportServiceResolveDownload(t *testing.T) {
	svc, repo, _, exportSvc := newReportServiceForTest(t)
	job := &models.ReportJob{
		ID:        "job-download",
		TenantID:  "tenant-1",
		Type:      models.ReportTypeMonitoredStudents,
		Params:    models.ReportJobParams{Format: models.ReportFormatCSV},
		Status:    models.ReportStatusFinished,
		Progress:  100,
		CreatedBy: "admin",
	}
	repo.jobs[job.ID] = job
	result, err := exportSvc.Generate(context.Background(), job)
	require.NoError(t, err)
	job.ResultURL = &result.URL

	download, err := svc.ResolveDownload(context.Background(), result.Token)
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(result.RelativePath), download.Filename)
	assert.Equal(t, models.ReportFormatCSV, download.Format)
	download.File.Close()

	_, err = svc.ResolveDownload(context.Background(), result.Token+"x")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrForbidden))
}

func TestReportServiceRecoverPendingJobs(t *testing.T) {
	svc, repo, queue, _ := newReportServiceForTest(t)
	repo.jobs["q1"] = &models.ReportJob{ID: "q1", Type: models.ReportTypeMissingLogs, Status: models.ReportStatusQueued}
	repo.jobs["f1"] = &models.ReportJob{ID: "f1", Type: models.ReportTypeMissingLogs, Status: models.ReportStatusFinished}

	svc.RecoverPendingJobs(context.Background())
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, "q1", queue.jobs[0].ID)
}

func TestReportServiceCleanupExpired(t *testing.T) {
	svc, repo, _, exportSvc := newReportServiceForTest(t)
	job := &models.ReportJob{ID: "old", TenantID: "tenant-1", Type: models.ReportTypeReferralCandidates, Params: models.ReportJobParams{Format: models.ReportFormatCSV}}
	result, err := exportSvc.Generate(context.Background(), job)
	require.NoError(t, err)
	finished := time.Now().Add(-2 * time.Hour)
	job.ResultURL = &result.URL
	job.FinishedAt = &finished
	job.Status = models.ReportStatusFinished
	repo.jobs[job.ID] = job

	svc.cleanupExpired(context.Background())
	_, err = exportSvc.Open(result.RelativePath)
	assert.Error(t, err)

	stored, err := repo.GetByID(context.Background(), "old")
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusExpired, stored.Status)
	require.NotNil(t, stored.ResultURL)
	assert.Empty(t, *stored.ResultURL)

	remaining, err := repo.ListFinishedBefore(context.Background(), time.Now(), 100)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	status, err := svc.GetStatus(context.Background(), adminActor, "old")
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusExpired, status.Status)
	assert.Nil(t, status.ResultURL)
}

type exportStub struct {
	result *ExportResult
	err    error
}

func (e exportStub) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.result, nil
}

func queuedJobRepo() *reportRepoStub {
	repo := newReportRepoStub()
	repo.jobs["job-1"] = &models.ReportJob{
		ID:        "job-1",
		TenantID:  "tenant-1",
		Type:      models.ReportTypeMissingLogs,
		Params:    models.ReportJobParams{Format: models.ReportFormatCSV},
		Status:    models.ReportStatusQueued,
		CreatedBy: "admin",
	}
	return repo
}

func TestReportWorkerHandleSuccess(t *testing.T) {
	repo := queuedJobRepo()
	worker := NewReportWorker(repo, exportStub{result: &ExportResult{URL: "/api/v1/export/token"}}, nil, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Type: string(models.ReportTypeMissingLogs)})
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusFinished, repo.jobs["job-1"].Status)
	assert.Equal(t, 100, repo.jobs["job-1"].Progress)
	assert.Equal(t, "/api/v1/export/token", *repo.jobs["job-1"].ResultURL)
}

func TestReportWorkerFailureRequeuesThenGivesUp(t *testing.T) {
	repo := queuedJobRepo()
	worker := NewReportWorker(repo, exportStub{err: errors.New("boom")}, nil, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1"})
	require.Error(t, err)
	assert.Equal(t, models.ReportStatusQueued, repo.jobs["job-1"].Status)
	assert.Equal(t, "boom", *repo.jobs["job-1"].ErrorMessage)

	worker.GiveUp(context.Background(), jobs.Job{ID: "job-1", Attempt: 4}, err)
	assert.Equal(t, models.ReportStatusFailed, repo.jobs["job-1"].Status)
	assert.NotNil(t, repo.jobs["job-1"].FinishedAt)
}

func TestReportWorkerWithQueue(t *testing.T) {
	repo := queuedJobRepo()
	worker := NewReportWorker(repo, exportStub{err: errors.New("render failed")}, nil, zap.NewNop())
	done := make(chan struct{})
	queue := jobs.NewQueue("reports", worker.Handle, jobs.QueueConfig{
		MaxRetries: 1,
		RetryDelay: time.Millisecond,
		OnGiveUp: func(ctx context.Context, job jobs.Job, err error) {
			worker.GiveUp(ctx, job, err)
			close(done)
		},
	})
	queue.Start(context.Background())
	defer queue.Stop()

	require.NoError(t, queue.Enqueue(jobs.Job{ID: "job-1"}))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not given up")
	}
	job, err := repo.GetByID(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusFailed, job.Status)
}
