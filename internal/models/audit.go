package models

import "time"

// Audit actions recorded for ledger and referral workflow changes.
const (
	AuditActionProgressUpsert     = "PROGRESS_UPSERT"
	AuditActionProgressDelete     = "PROGRESS_DELETE"
	AuditActionMonitoringStart    = "MONITORING_START"
	AuditActionMonitoringStop     = "MONITORING_STOP"
	AuditActionMeetingCreate      = "MEETING_CREATE"
	AuditActionInterventionStatus = "INTERVENTION_STATUS"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	TenantID   *string   `db:"tenant_id" json:"tenant_id,omitempty"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
