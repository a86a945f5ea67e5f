package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/noah-isme/mtss-api/internal/models"
)

type fakeStudentRepo struct {
	students map[string]models.Student
	err      error
}

func newFakeStudentRepo(students ...models.Student) *fakeStudentRepo {
	repo := &fakeStudentRepo{students: map[string]models.Student{}}
	for _, s := range students {
		repo.students[s.ID] = s
	}
	return repo
}

func (f *fakeStudentRepo) List(_ context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	if f.err != nil {
		return nil, 0, f.err
	}
	var out []models.Student
	for _, s := range f.students {
		if s.TenantID == filter.TenantID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (f *fakeStudentRepo) FindByID(_ context.Context, tenantID, id string) (*models.Student, error) {
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.students[id]
	if !ok || s.TenantID != tenantID {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (f *fakeStudentRepo) Create(_ context.Context, student *models.Student) error {
	if f.err != nil {
		return f.err
	}
	if student.ID == "" {
		student.ID = fmt.Sprintf("student-%d", len(f.students)+1)
	}
	f.students[student.ID] = *student
	return nil
}

func (f *fakeStudentRepo) SetMonitoring(_ context.Context, tenantID, id string, since time.Time, notes *string, by string) error {
	s, ok := f.students[id]
	if !ok || s.TenantID != tenantID {
		return sql.ErrNoRows
	}
	s.MonitoringSince = &since
	s.MonitoringNotes = notes
	s.MonitoringBy = &by
	f.students[id] = s
	return nil
}

func (f *fakeStudentRepo) ClearMonitoring(_ context.Context, tenantID, id string) error {
	s, ok := f.students[id]
	if !ok || s.TenantID != tenantID {
		return sql.ErrNoRows
	}
	s.MonitoringSince = nil
	s.MonitoringNotes = nil
	s.MonitoringBy = nil
	f.students[id] = s
	return nil
}

type fakeInterventionRepo struct {
	items   map[string]models.Intervention
	updated map[string]models.InterventionStatus
	err     error
}

func newFakeInterventionRepo(items ...models.Intervention) *fakeInterventionRepo {
	repo := &fakeInterventionRepo{items: map[string]models.Intervention{}, updated: map[string]models.InterventionStatus{}}
	for _, i := range items {
		repo.items[i.ID] = i
	}
	return repo
}

func (f *fakeInterventionRepo) Create(_ context.Context, intervention *models.Intervention) error {
	if f.err != nil {
		return f.err
	}
	if intervention.ID == "" {
		intervention.ID = fmt.Sprintf("intervention-%d", len(f.items)+1)
	}
	if intervention.Status == "" {
		intervention.Status = models.InterventionActive
	}
	f.items[intervention.ID] = *intervention
	return nil
}

func (f *fakeInterventionRepo) FindByID(_ context.Context, tenantID, id string) (*models.Intervention, error) {
	if f.err != nil {
		return nil, f.err
	}
	i, ok := f.items[id]
	if !ok || i.TenantID != tenantID {
		return nil, sql.ErrNoRows
	}
	return &i, nil
}

func (f *fakeInterventionRepo) List(_ context.Context, filter models.InterventionFilter) ([]models.Intervention, error) {
	var out []models.Intervention
	for _, i := range f.items {
		if i.TenantID != filter.TenantID {
			continue
		}
		if filter.StudentID != "" && i.StudentID != filter.StudentID {
			continue
		}
		if filter.Status != nil && i.Status != *filter.Status {
			continue
		}
		out = append(out, i)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

func (f *fakeInterventionRepo) UpdateStatus(_ context.Context, tenantID, id string, status models.InterventionStatus) error {
	i, ok := f.items[id]
	if !ok || i.TenantID != tenantID {
		return sql.ErrNoRows
	}
	i.Status = status
	f.items[id] = i
	f.updated[id] = status
	return nil
}

// fakeProgressRepo keys entries by (intervention, week) like the unique index does.
type fakeProgressRepo struct {
	entries   map[string]models.ProgressEntry
	seq       int
	upsertErr error
	lastList  models.ProgressFilter
}

func newFakeProgressRepo() *fakeProgressRepo {
	return &fakeProgressRepo{entries: map[string]models.ProgressEntry{}}
}

func (f *fakeProgressRepo) Upsert(_ context.Context, entry *models.ProgressEntry) (*models.ProgressEntry, error) {
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	key := entry.InterventionID + "|" + entry.WeekStart
	if existing, ok := f.entries[key]; ok {
		existing.Status = entry.Status
		existing.Rating = entry.Rating
		existing.Response = entry.Response
		existing.Notes = entry.Notes
		existing.LoggedBy = entry.LoggedBy
		f.entries[key] = existing
		return &existing, nil
	}
	f.seq++
	stored := *entry
	stored.ID = fmt.Sprintf("entry-%d", f.seq)
	f.entries[key] = stored
	return &stored, nil
}

func (f *fakeProgressRepo) List(_ context.Context, filter models.ProgressFilter) ([]models.ProgressEntry, error) {
	f.lastList = filter
	var out []models.ProgressEntry
	for _, e := range f.entries {
		if e.StudentID == filter.StudentID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WeekStart > out[j].WeekStart })
	return out, nil
}

func (f *fakeProgressRepo) Delete(_ context.Context, _ string, id string) error {
	for key, e := range f.entries {
		if e.ID == id {
			delete(f.entries, key)
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f *fakeProgressRepo) Summary(_ context.Context, interventionID string) (*models.ProgressSummary, error) {
	summary := &models.ProgressSummary{InterventionID: interventionID, ByStatus: map[models.ProgressStatus]int{}}
	var sum int
	for _, e := range f.entries {
		if e.InterventionID != interventionID {
			continue
		}
		summary.TotalLogs++
		summary.ByStatus[e.Status]++
		if e.Rating != nil {
			summary.RatedLogs++
			sum += *e.Rating
		}
	}
	if summary.RatedLogs > 0 {
		avg := float64(sum) / float64(summary.RatedLogs)
		summary.AvgRating = &avg
	}
	return summary, nil
}

type recordingInvalidator struct {
	tenants []string
}

func (r *recordingInvalidator) InvalidateTenant(_ context.Context, tenantID string) error {
	r.tenants = append(r.tenants, tenantID)
	return nil
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func floatPtr(v float64) *float64 { return &v }
