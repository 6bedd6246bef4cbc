package dto

import "github.com/isagip/barangay-dashboard-api/internal/models"

// CreateReportRequest captures POST /reports payload.
type CreateReportRequest struct {
	Type        models.IncidentType `json:"type" validate:"required,oneof=Medical Fire Police General"`
	Description string              `json:"description" validate:"required,max=500"`
	Street      string              `json:"street"`
	Landmark    string              `json:"landmark"`
	Lat         *float64            `json:"lat,omitempty" validate:"omitempty,latitude"`
	Lng         *float64            `json:"lng,omitempty" validate:"omitempty,longitude"`
	ReportedBy  string              `json:"reportedBy" validate:"required"`
	Severity    models.Severity     `json:"severity,omitempty" validate:"omitempty,oneof=Low Medium High Critical"`
	PhotoRef    string              `json:"photoRef,omitempty"`
	Relayed     bool                `json:"relayed"`
	Notes       string              `json:"notes,omitempty"`
}

// DispatchRequest moves a report to Ongoing with optional assignments.
type DispatchRequest struct {
	Responder   string          `json:"responder,omitempty"`
	AmbulanceID string          `json:"ambulanceId,omitempty"`
	Severity    models.Severity `json:"severity,omitempty" validate:"omitempty,oneof=Low Medium High Critical"`
	Version     int64           `json:"version,omitempty"`
}

// SeverityRequest sets the triage level.
type SeverityRequest struct {
	Severity models.Severity `json:"severity" validate:"required,oneof=Low Medium High Critical"`
	Version  int64           `json:"version,omitempty"`
}

// ResponderRequest assigns a responder by name.
type ResponderRequest struct {
	Responder string `json:"responder" validate:"required"`
	Version   int64  `json:"version,omitempty"`
}

// AssignAmbulanceRequest links a vehicle to the report.
type AssignAmbulanceRequest struct {
	AmbulanceID string `json:"ambulanceId" validate:"required"`
}

// ConfirmRequest carries the explicit confirmation for destructive actions.
type ConfirmRequest struct {
	Confirm bool  `json:"confirm"`
	Version int64 `json:"version,omitempty"`
}

// NoteRequest appends a note.
type NoteRequest struct {
	Note string `json:"note" validate:"required,max=1000"`
}

// VersionRequest carries an optional expected version.
type VersionRequest struct {
	Version int64 `json:"version,omitempty"`
}

// ReportQuery binds GET /reports query parameters.
type ReportQuery struct {
	Status   string `form:"status"`
	Type     string `form:"type"`
	Search   string `form:"q"`
	From     string `form:"from"`
	To       string `form:"to"`
	Page     int    `form:"page"`
	PageSize int    `form:"pageSize"`
}

// ReportView is a report with its derived fields.
type ReportView struct {
	*models.Report
	ResponseTime string `json:"response_time"`
}

// PhotoRequest attaches a previously uploaded file to a report.
type PhotoRequest struct {
	PhotoRef string `json:"photoRef" validate:"required"`
}
