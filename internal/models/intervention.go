package models

import "time"

// InterventionStatus is the lifecycle state of an intervention assignment.
type InterventionStatus string

const (
	InterventionActive       InterventionStatus = "active"
	InterventionCompleted    InterventionStatus = "completed"
	InterventionDiscontinued InterventionStatus = "discontinued"
	InterventionArchived     InterventionStatus = "archived"
)

// LogFrequency is the expected logging cadence. It is informational only.
type LogFrequency string

const (
	FrequencyDaily    LogFrequency = "daily"
	FrequencyThrice   LogFrequency = "3x_week"
	FrequencyTwice    LogFrequency = "2x_week"
	FrequencyWeekly   LogFrequency = "weekly"
	FrequencyBiweekly LogFrequency = "biweekly"
)

// Intervention is a student's enrollment in a named intervention.
type Intervention struct {
	ID               string             `db:"id" json:"id"`
	TenantID         string             `db:"tenant_id" json:"tenant_id"`
	StudentID        string             `db:"student_id" json:"student_id"`
	Name             string             `db:"name" json:"name"`
	Status           InterventionStatus `db:"status" json:"status"`
	LogFrequency     LogFrequency       `db:"log_frequency" json:"log_frequency"`
	GoalDescription  string             `db:"goal_description" json:"goal_description"`
	GoalTargetRating *int               `db:"goal_target_rating" json:"goal_target_rating,omitempty"`
	StartDate        string             `db:"start_date" json:"start_date"`
	CreatedAt        time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time          `db:"updated_at" json:"updated_at"`
}

// InterventionFilter scopes intervention listings.
type InterventionFilter struct {
	TenantID  string
	StudentID string
	Status    *InterventionStatus
}
