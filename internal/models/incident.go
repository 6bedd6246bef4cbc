package models

import (
	"fmt"
	"strings"
	"time"
)

// IncidentType classifies an emergency report.
type IncidentType string

const (
	IncidentMedical IncidentType = "Medical"
	IncidentFire    IncidentType = "Fire"
	IncidentPolice  IncidentType = "Police"
	IncidentGeneral IncidentType = "General"
)

// IncidentStatus is the state of a report in its lifecycle.
type IncidentStatus string

const (
	StatusPending   IncidentStatus = "Pending"
	StatusRelayed   IncidentStatus = "Relayed"
	StatusOngoing   IncidentStatus = "Ongoing"
	StatusResponded IncidentStatus = "Responded"
	StatusResolved  IncidentStatus = "Resolved"
)

// Terminal reports whether no further transitions are permitted.
func (s IncidentStatus) Terminal() bool {
	return s == StatusResolved
}

// Active reports whether the incident still awaits a response.
func (s IncidentStatus) Active() bool {
	return s == StatusPending || s == StatusRelayed || s == StatusOngoing
}

// Severity is the optional triage level set by staff.
type Severity string

const (
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

// History actions recorded on reports.
const (
	ActionCreated           = "Created"
	ActionRelayed           = "Relayed"
	ActionDispatched        = "Dispatched"
	ActionResponded         = "Responded"
	ActionReopened          = "Marked Ongoing"
	ActionSeverity          = "Severity Updated"
	ActionResponder         = "Responder Assigned"
	ActionAmbulanceAssigned = "Ambulance Assigned"
	ActionAmbulanceReleased = "Ambulance Released"
	ActionClosed            = "Closed"
	ActionNote              = "Note Added"
	ActionPhoto             = "Photo Attached"
)

// Coordinates is an optional map position.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// String renders the pair as "lat,lng".
func (c *Coordinates) String() string {
	if c == nil {
		return ""
	}
	return fmt.Sprintf("%g,%g", c.Lat, c.Lng)
}

// Attribution records who last changed a specific field.
type Attribution struct {
	By string    `json:"by"`
	At time.Time `json:"at"`
}

// HistoryEntry is one append-only audit line of a report.
type HistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
}

// Report is an emergency incident tracked from creation to resolution.
type Report struct {
	ID                string                 `db:"id" json:"id"`
	Type              IncidentType           `db:"type" json:"type"`
	Description       string                 `db:"description" json:"description"`
	Status            IncidentStatus         `db:"status" json:"status"`
	Street            string                 `db:"street" json:"street"`
	Landmark          string                 `db:"landmark" json:"landmark"`
	Coordinates       *Coordinates           `db:"-" json:"coordinates,omitempty"`
	PhotoRef          string                 `db:"photo_ref" json:"photo_ref,omitempty"`
	ReportedBy        string                 `db:"reported_by" json:"reported_by"`
	Severity          Severity               `db:"severity" json:"severity,omitempty"`
	AssignedResponder string                 `db:"assigned_responder" json:"assigned_responder,omitempty"`
	AssignedVehicleID string                 `db:"assigned_vehicle_id" json:"assigned_vehicle_id,omitempty"`
	ClosedBy          string                 `db:"closed_by" json:"closed_by,omitempty"`
	ClosedAt          *time.Time             `db:"closed_at" json:"closed_at,omitempty"`
	CreatedAt         time.Time              `db:"created_at" json:"created_at"`
	LastUpdatedAt     time.Time              `db:"last_updated_at" json:"last_updated_at"`
	LastUpdatedBy     string                 `db:"last_updated_by" json:"last_updated_by"`
	Notes             string                 `db:"notes" json:"notes"`
	Attribution       map[string]Attribution `db:"-" json:"attribution,omitempty"`
	History           []HistoryEntry         `db:"-" json:"history"`
	Version           int64                  `db:"version" json:"version"`
}

// Record appends a history entry and stamps the last-updated fields.
func (r *Report) Record(actor, action, details string, at time.Time) {
	r.History = append(r.History, HistoryEntry{Timestamp: at, Actor: actor, Action: action, Details: details})
	r.LastUpdatedAt = at
	r.LastUpdatedBy = actor
}

// Attribute marks field as changed by actor.
func (r *Report) Attribute(field, actor string, at time.Time) {
	if r.Attribution == nil {
		r.Attribution = make(map[string]Attribution)
	}
	r.Attribution[field] = Attribution{By: actor, At: at}
}

// ResponseTime renders the whole minutes between creation and closure.
func (r *Report) ResponseTime() string {
	if r.ClosedAt == nil || r.Status != StatusResolved {
		return "N/A"
	}
	minutes := int(r.ClosedAt.Sub(r.CreatedAt) / time.Minute)
	if minutes < 0 {
		minutes = 0
	}
	if minutes == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}

// Location is the free-text place used when dispatching a vehicle.
func (r *Report) Location() string {
	if s := strings.TrimSpace(r.Street); s != "" && s != "-" {
		return s
	}
	if l := strings.TrimSpace(r.Landmark); l != "" && l != "-" {
		return l
	}
	return "Report " + r.ID
}

// Clone returns a deep copy.
func (r *Report) Clone() *Report {
	if r == nil {
		return nil
	}
	out := *r
	if r.Coordinates != nil {
		c := *r.Coordinates
		out.Coordinates = &c
	}
	if r.ClosedAt != nil {
		t := *r.ClosedAt
		out.ClosedAt = &t
	}
	if r.Attribution != nil {
		out.Attribution = make(map[string]Attribution, len(r.Attribution))
		for k, v := range r.Attribution {
			out.Attribution[k] = v
		}
	}
	out.History = append([]HistoryEntry(nil), r.History...)
	return &out
}

// ReportFilter narrows report listings.
type ReportFilter struct {
	Status   []IncidentStatus
	Type     IncidentType
	Search   string
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// Matches reports whether r satisfies the filter, ignoring paging.
func (f ReportFilter) Matches(r *Report) bool {
	if len(f.Status) > 0 {
		found := false
		for _, s := range f.Status {
			if r.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Type != "" && r.Type != f.Type {
		return false
	}
	if f.From != nil && r.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && !r.CreatedAt.Before(*f.To) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		haystack := strings.ToLower(strings.Join([]string{r.ID, r.Description, r.Street, r.Landmark, r.ReportedBy}, " "))
		if !strings.Contains(haystack, q) {
			return false
		}
	}
	return true
}
