package models

import (
	"encoding/json"
	"time"
)

// Collections published on the change bus.
const (
	CollectionReports       = "reports"
	CollectionAmbulances    = "ambulances"
	CollectionResidents     = "residents"
	CollectionRegistrations = "registrations"
	CollectionAccounts      = "accounts"
	CollectionNotifications = "notifications"
)

// Change operations.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// ChangeEvent announces a write to a collection.
type ChangeEvent struct {
	Collection string          `json:"collection"`
	ID         string          `json:"id"`
	Op         string          `json:"op"`
	At         time.Time       `json:"at"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Notification is a new-report alert shown to staff.
type Notification struct {
	ID          string       `json:"id"`
	ReportID    string       `json:"report_id"`
	Type        IncidentType `json:"type"`
	Description string       `json:"description"`
	Street      string       `json:"street"`
	ReportedBy  string       `json:"reported_by"`
	CreatedAt   time.Time    `json:"created_at"`
}

// DashboardSummary aggregates report and fleet counters.
type DashboardSummary struct {
	Total               int                     `json:"total"`
	Active              int                     `json:"active"`
	Responded           int                     `json:"responded"`
	Resolved            int                     `json:"resolved"`
	ByType              map[IncidentType]int    `json:"by_type"`
	ByStatus            map[IncidentStatus]int  `json:"by_status"`
	AverageResponseMins float64                 `json:"average_response_minutes"`
	Ambulances          map[AmbulanceStatus]int `json:"ambulances"`
	GeneratedAt         time.Time               `json:"generated_at"`
}
