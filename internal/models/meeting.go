package models

import "time"

// MeetingType classifies an MTSS team meeting.
type MeetingType string

const (
	MeetingInitial        MeetingType = "initial"
	MeetingProgressReview MeetingType = "progress_review"
	MeetingReferral       MeetingType = "referral"
	MeetingExit           MeetingType = "exit"
)

// ReviewDecision is the team's verdict on one intervention.
type ReviewDecision string

const (
	DecisionContinue    ReviewDecision = "continue"
	DecisionModify      ReviewDecision = "modify"
	DecisionDiscontinue ReviewDecision = "discontinue"
	DecisionComplete    ReviewDecision = "complete"
)

// ResultingStatus returns the intervention status a decision implies, if any.
func (d ReviewDecision) ResultingStatus() (InterventionStatus, bool) {
	switch d {
	case DecisionDiscontinue:
		return InterventionDiscontinued, true
	case DecisionComplete:
		return InterventionCompleted, true
	}
	return "", false
}

// Meeting is a review meeting held for a student.
type Meeting struct {
	ID          string          `db:"id" json:"id"`
	TenantID    string          `db:"tenant_id" json:"tenant_id"`
	StudentID   string          `db:"student_id" json:"student_id"`
	MeetingDate string          `db:"meeting_date" json:"meeting_date"`
	MeetingType MeetingType     `db:"meeting_type" json:"meeting_type"`
	Attendees   string          `db:"attendees" json:"attendees"`
	Notes       *string         `db:"notes" json:"notes,omitempty"`
	CreatedBy   string          `db:"created_by" json:"created_by"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	Reviews     []MeetingReview `db:"-" json:"reviews"`
}

// MeetingReview records the decision taken for one intervention in a meeting.
type MeetingReview struct {
	ID             string         `db:"id" json:"id"`
	MeetingID      string         `db:"meeting_id" json:"meeting_id"`
	InterventionID string         `db:"intervention_id" json:"intervention_id"`
	Decision       ReviewDecision `db:"decision" json:"decision"`
	Notes          *string        `db:"notes" json:"notes,omitempty"`
}
