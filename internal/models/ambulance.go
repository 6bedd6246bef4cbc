package models

import "time"

// AmbulanceStatus is the availability of a vehicle.
type AmbulanceStatus string

const (
	AmbulanceAvailable   AmbulanceStatus = "AVAILABLE"
	AmbulanceInUse       AmbulanceStatus = "IN-USE"
	AmbulanceMaintenance AmbulanceStatus = "MAINTENANCE"
)

// Valid reports whether s is a known status.
func (s AmbulanceStatus) Valid() bool {
	switch s {
	case AmbulanceAvailable, AmbulanceInUse, AmbulanceMaintenance:
		return true
	}
	return false
}

// Ambulance is a dispatchable vehicle.
type Ambulance struct {
	ID               string          `db:"id" json:"id"`
	Name             string          `db:"name" json:"name"`
	Status           AmbulanceStatus `db:"status" json:"status"`
	Location         string          `db:"location" json:"location"`
	AssignedReportID string          `db:"assigned_report_id" json:"assigned_report_id,omitempty"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
	UpdatedBy        string          `db:"updated_by" json:"updated_by"`
	Version          int64           `db:"version" json:"version"`
}

// Clear drops the location and report link.
func (a *Ambulance) Clear(status AmbulanceStatus, actor string, at time.Time) {
	a.Status = status
	a.Location = ""
	a.AssignedReportID = ""
	a.UpdatedAt = at
	a.UpdatedBy = actor
}

// Clone returns a copy.
func (a *Ambulance) Clone() *Ambulance {
	if a == nil {
		return nil
	}
	out := *a
	return &out
}
