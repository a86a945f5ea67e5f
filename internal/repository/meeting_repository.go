package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/mtss-api/internal/models"
)

const meetingColumns = `id, tenant_id, student_id, to_char(meeting_date, 'YYYY-MM-DD') AS meeting_date, meeting_type, attendees, notes, created_by, created_at`

// MeetingRepository persists MTSS meetings together with their review rows.
type MeetingRepository struct {
	db *sqlx.DB
}

// NewMeetingRepository constructs the repository.
func NewMeetingRepository(db *sqlx.DB) *MeetingRepository {
	return &MeetingRepository{db: db}
}

// CreateWithReviews writes the meeting, every review and the intervention status changes
// implied by the decisions in one transaction. Any failure rolls all of it back.
func (r *MeetingRepository) CreateWithReviews(ctx context.Context, meeting *models.Meeting) error {
	if meeting.ID == "" {
		meeting.ID = uuid.NewString()
	}
	if meeting.CreatedAt.IsZero() {
		meeting.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin meeting tx: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			_ = tx.Rollback()
		}
	}()

	const insertMeeting = `INSERT INTO meetings (id, tenant_id, student_id, meeting_date, meeting_type, attendees, notes, created_by, created_at)
VALUES ($1, $2, $3, $4::date, $5, $6, $7, $8, $9)`
	if _, err := tx.ExecContext(ctx, insertMeeting,
		meeting.ID, meeting.TenantID, meeting.StudentID, meeting.MeetingDate, meeting.MeetingType,
		meeting.Attendees, meeting.Notes, meeting.CreatedBy, meeting.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert meeting: %w", err)
	}

	const insertReview = `INSERT INTO meeting_reviews (id, meeting_id, intervention_id, decision, notes) VALUES ($1, $2, $3, $4, $5)`
	const updateStatus = `UPDATE interventions SET status = $1, updated_at = $2
WHERE id = $3 AND tenant_id = $4 AND student_id = $5`
	for i := range meeting.Reviews {
		review := &meeting.Reviews[i]
		if review.ID == "" {
			review.ID = uuid.NewString()
		}
		review.MeetingID = meeting.ID
		if _, err := tx.ExecContext(ctx, insertReview, review.ID, review.MeetingID, review.InterventionID, review.Decision, review.Notes); err != nil {
			return fmt.Errorf("insert meeting review: %w", err)
		}

		status, ok := review.Decision.ResultingStatus()
		if !ok {
			continue
		}
		res, err := tx.ExecContext(ctx, updateStatus, status, meeting.CreatedAt, review.InterventionID, meeting.TenantID, meeting.StudentID)
		if err != nil {
			return fmt.Errorf("apply review decision: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("apply review decision: %w", err)
		}
		if affected == 0 {
			return sql.ErrNoRows
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit meeting tx: %w", err)
	}
	commit = true
	return nil
}

// FindByID returns a meeting with its reviews.
func (r *MeetingRepository) FindByID(ctx context.Context, tenantID, id string) (*models.Meeting, error) {
	var meeting models.Meeting
	if err := r.db.GetContext(ctx, &meeting, "SELECT "+meetingColumns+" FROM meetings WHERE id = $1 AND tenant_id = $2", id, tenantID); err != nil {
		return nil, err
	}
	reviews := make([]models.MeetingReview, 0)
	const reviewQuery = `SELECT id, meeting_id, intervention_id, decision, notes FROM meeting_reviews WHERE meeting_id = $1 ORDER BY id`
	if err := r.db.SelectContext(ctx, &reviews, reviewQuery, id); err != nil {
		return nil, fmt.Errorf("list meeting reviews: %w", err)
	}
	meeting.Reviews = reviews
	return &meeting, nil
}

// ListByStudent returns a student's meetings, most recent first, without reviews.
func (r *MeetingRepository) ListByStudent(ctx context.Context, tenantID, studentID string) ([]models.Meeting, error) {
	meetings := make([]models.Meeting, 0)
	query := "SELECT " + meetingColumns + " FROM meetings WHERE tenant_id = $1 AND student_id = $2 ORDER BY meeting_date DESC, created_at DESC"
	if err := r.db.SelectContext(ctx, &meetings, query, tenantID, studentID); err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	return meetings, nil
}
