package models

import "time"

// ProgressStatus records how an intervention session went in a week.
type ProgressStatus string

const (
	ProgressImplemented   ProgressStatus = "implemented_as_planned"
	ProgressPartial       ProgressStatus = "partially_implemented"
	ProgressNotDone       ProgressStatus = "not_implemented"
	ProgressStudentAbsent ProgressStatus = "student_absent"
)

// ProgressStatuses lists every accepted status in display order.
var ProgressStatuses = []ProgressStatus{
	ProgressImplemented,
	ProgressPartial,
	ProgressNotDone,
	ProgressStudentAbsent,
}

// Valid reports whether s is one of the four ledger statuses.
func (s ProgressStatus) Valid() bool {
	for _, known := range ProgressStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// ProgressEntry is the single weekly observation for an intervention.
// (InterventionID, WeekStart) is its natural key.
type ProgressEntry struct {
	ID             string         `db:"id" json:"id"`
	InterventionID string         `db:"intervention_id" json:"intervention_id"`
	StudentID      string         `db:"student_id" json:"student_id"`
	WeekStart      string         `db:"week_start" json:"week_start"`
	Status         ProgressStatus `db:"status" json:"status"`
	Rating         *int           `db:"rating" json:"rating,omitempty"`
	Response       *string        `db:"response" json:"response,omitempty"`
	Notes          *string        `db:"notes" json:"notes,omitempty"`
	LoggedBy       string         `db:"logged_by" json:"logged_by"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// ProgressFilter scopes ledger listings; week bounds are inclusive week keys.
type ProgressFilter struct {
	TenantID       string
	StudentID      string
	InterventionID string
	StartWeek      string
	EndWeek        string
}

// ProgressSummary aggregates the ledger of one intervention.
type ProgressSummary struct {
	InterventionID string                 `json:"intervention_id"`
	TotalLogs      int                    `json:"total_logs"`
	RatedLogs      int                    `json:"rated_logs"`
	AvgRating      *float64               `json:"avg_rating"`
	ByStatus       map[ProgressStatus]int `json:"by_status"`
	FirstWeek      *string                `json:"first_week,omitempty"`
	LastWeek       *string                `json:"last_week,omitempty"`
}
