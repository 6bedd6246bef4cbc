package dto

import "github.com/isagip/barangay-dashboard-api/internal/models"

// CreateAmbulanceRequest registers a vehicle in the fleet.
type CreateAmbulanceRequest struct {
	Name string `json:"name" validate:"required,max=80"`
}

// AssignReportRequest links the ambulance to an open report from the board.
type AssignReportRequest struct {
	ReportID string `json:"reportId" validate:"required"`
}

// AmbulanceStatusRequest is the board status toggle.
type AmbulanceStatusRequest struct {
	Status models.AmbulanceStatus `json:"status" validate:"required"`
}
