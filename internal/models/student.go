package models

import "time"

// Student is a learner in one tenant, placed on an MTSS tier.
type Student struct {
	ID              string     `db:"id" json:"id"`
	TenantID        string     `db:"tenant_id" json:"tenant_id"`
	FirstName       string     `db:"first_name" json:"first_name"`
	LastName        string     `db:"last_name" json:"last_name"`
	GradeLevel      string     `db:"grade_level" json:"grade_level"`
	Tier            int        `db:"tier" json:"tier"`
	Archived        bool       `db:"archived" json:"archived"`
	MonitoringSince *time.Time `db:"monitoring_since" json:"monitoring_since,omitempty"`
	MonitoringNotes *string    `db:"monitoring_notes" json:"monitoring_notes,omitempty"`
	MonitoringBy    *string    `db:"monitoring_by" json:"monitoring_by,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// Monitored reports whether the student is held in the referral monitoring state.
func (s Student) Monitored() bool {
	return s.MonitoringSince != nil
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	TenantID  string
	Search    string
	Tier      *int
	Archived  *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
