package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionLogin           = "LOGIN"
	AuditActionViewerLogin     = "VIEWER_LOGIN"
	AuditActionLogout          = "LOGOUT"
	AuditActionPasswordChange  = "PASSWORD_CHANGE"
	AuditActionStaffCreate     = "STAFF_CREATE"
	AuditActionResidentCreate  = "RESIDENT_CREATE"
	AuditActionResidentUpdate  = "RESIDENT_UPDATE"
	AuditActionResidentDelete  = "RESIDENT_DELETE"
	AuditActionPasswordReset   = "PASSWORD_RESET"
	AuditActionRequestApprove  = "REQUEST_APPROVE"
	AuditActionRequestReject   = "REQUEST_REJECT"
	AuditActionReportResolve   = "REPORT_RESOLVE"
	AuditActionAmbulanceStatus = "AMBULANCE_STATUS"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	Actor      string    `db:"actor" json:"actor"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID string    `db:"resource_id" json:"resource_id,omitempty"`
	Details    []byte    `db:"details" json:"details,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
