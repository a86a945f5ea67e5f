package models

import "time"

// MissingLogItem is an active intervention without an entry for the current week.
type MissingLogItem struct {
	InterventionID   string       `db:"intervention_id" json:"intervention_id"`
	InterventionName string       `db:"intervention_name" json:"intervention_name"`
	StudentID        string       `db:"student_id" json:"student_id"`
	FirstName        string       `db:"first_name" json:"first_name"`
	LastName         string       `db:"last_name" json:"last_name"`
	Tier             int          `db:"tier" json:"tier"`
	LogFrequency     LogFrequency `db:"log_frequency" json:"log_frequency"`
	WeekStart        string       `db:"-" json:"week_start"`
}

// MissingLogReport wraps the items with the week they were computed for.
type MissingLogReport struct {
	WeekStart string           `json:"week_start"`
	Items     []MissingLogItem `json:"items"`
}

// ReferralStats are the ledger aggregates for one Tier-1 student.
// AvgRating is nil when no entry carries a rating.
type ReferralStats struct {
	StudentID           string     `db:"student_id" json:"student_id"`
	FirstName           string     `db:"first_name" json:"first_name"`
	LastName            string     `db:"last_name" json:"last_name"`
	GradeLevel          string     `db:"grade_level" json:"grade_level"`
	Tier                int        `db:"tier" json:"tier"`
	ActiveInterventions int        `db:"active_interventions" json:"active_interventions"`
	TotalLogs           int        `db:"total_logs" json:"total_logs"`
	AvgRating           *float64   `db:"avg_rating" json:"avg_rating"`
	MonitoringSince     *time.Time `db:"monitoring_since" json:"-"`
	MonitoringNotes     *string    `db:"monitoring_notes" json:"-"`
	MonitoringBy        *string    `db:"monitoring_by" json:"-"`
}

// SortRating is the average used for ordering, with no ratings counting as 0.
func (s ReferralStats) SortRating() float64 {
	if s.AvgRating == nil {
		return 0
	}
	return *s.AvgRating
}

// ReferralCandidate is a student flagged for escalation with the rules that matched.
type ReferralCandidate struct {
	ReferralStats
	Reasons []string `json:"reasons"`
}

// MonitoredStudent is a student in the monitoring state with live statistics.
type MonitoredStudent struct {
	ReferralStats
	MonitoringSince time.Time `json:"monitoring_since"`
	MonitoringNotes *string   `json:"monitoring_notes,omitempty"`
	MonitoringBy    *string   `json:"monitoring_by,omitempty"`
	Reasons         []string  `json:"reasons"`
}
