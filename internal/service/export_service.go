package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/mtss-api/internal/models"
	"github.com/noah-isme/mtss-api/pkg/export"
	"github.com/noah-isme/mtss-api/pkg/storage"
)

type missingLogReporter interface {
	Report(ctx context.Context, tenantID string) (*models.MissingLogReport, bool, error)
	ReportForDate(ctx context.Context, tenantID, date string) (*models.MissingLogReport, bool, error)
}

type referralReporter interface {
	Candidates(ctx context.Context, tenantID string) ([]models.ReferralCandidate, bool, error)
	Monitored(ctx context.Context, tenantID string) ([]models.MonitoredStudent, bool, error)
}

type progressLister interface {
	ListForStudent(ctx context.Context, tenantID, studentID string, query ListProgressQuery) ([]models.ProgressEntry, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	Rows         int
	ExpiresAt    time.Time
}

// ExportSources are the report producers an export can draw from.
type ExportSources struct {
	MissingLogs missingLogReporter
	Referrals   referralReporter
	Progress    progressLister
	Students    studentReader
}

// ExportService builds report datasets and persists rendered files.
type ExportService struct {
	sources ExportSources
	storage fileStorage
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig
	now     func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(sources ExportSources, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		sources: sources,
		storage: store,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Generate builds the dataset for job, renders it and stores the file behind a signed token.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	renderer, err := export.RendererFor(export.Format(job.Params.Format))
	if err != nil {
		return nil, err
	}
	dataset, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}
	payload, err := renderer.Render(dataset)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", job.Type, err)
	}

	relPath, err := s.storage.Save(s.buildFilename(job, renderer.Extension()), payload)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	s.logger.Debug("export generated", zap.String("job_id", job.ID), zap.String("path", relPath), zap.Int("rows", len(dataset.Rows)))
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/export/%s", prefix, token),
		Format:       job.Params.Format,
		Rows:         len(dataset.Rows),
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (storage.Ticket, error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob, ext string) string {
	timestamp := s.now().UTC().Format("20060102_150405")
	scope := sanitizeFilename(job.TenantID)
	if job.Params.StudentID != nil {
		scope = scope + "_" + sanitizeFilename(*job.Params.StudentID)
	}
	return fmt.Sprintf("%s_%s_%s_%s.%s", strings.ToLower(string(job.Type)), scope, timestamp, shortID(job.ID), ext)
}

func shortID(id string) string {
	id = sanitizeFilename(id)
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, error) {
	switch job.Type {
	case models.ReportTypeMissingLogs:
		return s.buildMissingLogDataset(ctx, job)
	case models.ReportTypeReferralCandidates:
		return s.buildCandidateDataset(ctx, job)
	case models.ReportTypeMonitoredStudents:
		return s.buildMonitoredDataset(ctx, job)
	case models.ReportTypeStudentProgress:
		return s.buildProgressDataset(ctx, job)
	default:
		return export.Dataset{}, fmt.Errorf("unsupported report type %s", job.Type)
	}
}

func (s *ExportService) buildMissingLogDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, error) {
	var (
		report *models.MissingLogReport
		err    error
	)
	if week := job.Params.Extras["week"]; week != "" {
		report, _, err = s.sources.MissingLogs.ReportForDate(ctx, job.TenantID, week)
	} else {
		report, _, err = s.sources.MissingLogs.Report(ctx, job.TenantID)
	}
	if err != nil {
		return export.Dataset{}, err
	}
	rows := make([]map[string]string, 0, len(report.Items))
	for _, item := range report.Items {
		rows = append(rows, map[string]string{
			"Student":      studentName(item.LastName, item.FirstName),
			"Tier":         strconv.Itoa(item.Tier),
			"Intervention": item.InterventionName,
			"Frequency":    string(item.LogFrequency),
			"Week":         item.WeekStart,
		})
	}
	return export.Dataset{
		Title:   fmt.Sprintf("Missing Progress Logs - week of %s", report.WeekStart),
		Headers: []string{"Student", "Tier", "Intervention", "Frequency", "Week"},
		Rows:    rows,
	}, nil
}

func (s *ExportService) buildCandidateDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, error) {
	candidates, _, err := s.sources.Referrals.Candidates(ctx, job.TenantID)
	if err != nil {
		return export.Dataset{}, err
	}
	rows := make([]map[string]string, 0, len(candidates))
	for _, c := range candidates {
		rows = append(rows, referralRow(c.ReferralStats, c.Reasons))
	}
	return export.Dataset{
		Title:   "Referral Candidates",
		Headers: referralHeaders,
		Rows:    rows,
	}, nil
}

func (s *ExportService) buildMonitoredDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, error) {
	monitored, _, err := s.sources.Referrals.Monitored(ctx, job.TenantID)
	if err != nil {
		return export.Dataset{}, err
	}
	rows := make([]map[string]string, 0, len(monitored))
	for _, m := range monitored {
		row := referralRow(m.ReferralStats, m.Reasons)
		row["Monitoring Since"] = m.MonitoringSince.UTC().Format(time.RFC3339)
		row["Notes"] = deref(m.MonitoringNotes)
		rows = append(rows, row)
	}
	return export.Dataset{
		Title:   "Monitored Students",
		Headers: append(append([]string{}, referralHeaders...), "Monitoring Since", "Notes"),
		Rows:    rows,
	}, nil
}

func (s *ExportService) buildProgressDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, error) {
	studentID := deref(job.Params.StudentID)
	if studentID == "" {
		return export.Dataset{}, fmt.Errorf("student_progress export requires a student")
	}
	student, err := s.sources.Students.FindByID(ctx, job.TenantID, studentID)
	if err != nil {
		return export.Dataset{}, fmt.Errorf("load student %s: %w", studentID, err)
	}
	entries, err := s.sources.Progress.ListForStudent(ctx, job.TenantID, studentID, ListProgressQuery{
		InterventionID: deref(job.Params.InterventionID),
		StartDate:      deref(job.Params.StartDate),
		EndDate:        deref(job.Params.EndDate),
	})
	if err != nil {
		return export.Dataset{}, err
	}
	rows := make([]map[string]string, 0, len(entries))
	for _, e := range entries {
		rating := ""
		if e.Rating != nil {
			rating = strconv.Itoa(*e.Rating)
		}
		rows = append(rows, map[string]string{
			"Week":         e.WeekStart,
			"Intervention": e.InterventionID,
			"Status":       string(e.Status),
			"Rating":       rating,
			"Response":     deref(e.Response),
			"Notes":        deref(e.Notes),
		})
	}
	return export.Dataset{
		Title:   fmt.Sprintf("Progress History - %s", studentName(student.LastName, student.FirstName)),
		Headers: []string{"Week", "Intervention", "Status", "Rating", "Response", "Notes"},
		Rows:    rows,
	}, nil
}

var referralHeaders = []string{"Student", "Grade", "Active Interventions", "Total Logs", "Avg Rating", "Reasons"}

func referralRow(stats models.ReferralStats, reasons []string) map[string]string {
	avg := ""
	if stats.AvgRating != nil {
		avg = fmt.Sprintf("%.1f", *stats.AvgRating)
	}
	return map[string]string{
		"Student":              studentName(stats.LastName, stats.FirstName),
		"Grade":                stats.GradeLevel,
		"Active Interventions": strconv.Itoa(stats.ActiveInterventions),
		"Total Logs":           strconv.Itoa(stats.TotalLogs),
		"Avg Rating":           avg,
		"Reasons":              strings.Join(reasons, "; "),
	}
}

func studentName(last, first string) string {
	switch {
	case last == "":
		return first
	case first == "":
		return last
	}
	return last + ", " + first
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
