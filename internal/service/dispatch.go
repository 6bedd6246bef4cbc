package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/isagip/barangay-dashboard-api/internal/models"
	"github.com/isagip/barangay-dashboard-api/internal/repository"
	appErrors "github.com/isagip/barangay-dashboard-api/pkg/errors"
)

// Fleet consistency rules shared by the report and ambulance services. Every
// function runs against a transactional store view. An ambulance is IN-USE
// exactly when it points at a report that is not Resolved.

// assignVehicle links the ambulance to report. The report is changed in memory
// only and must be persisted by the caller; ambulances are written through tx.
// It returns every ambulance it wrote.
func assignVehicle(ctx context.Context, tx repository.Store, report *models.Report, ambulanceID, actor string, at time.Time) ([]models.Ambulance, error) {
	if report.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrReportResolved, "cannot assign an ambulance to a resolved report")
	}
	amb, err := tx.Ambulances().Get(ctx, ambulanceID)
	if err != nil {
		return nil, storeError(err, "ambulance")
	}
	if amb.Status == models.AmbulanceMaintenance {
		return nil, appErrors.Clone(appErrors.ErrAmbulanceUnavailable, fmt.Sprintf("%s is under maintenance", amb.Name))
	}
	if amb.Status == models.AmbulanceInUse && amb.AssignedReportID == report.ID {
		return nil, nil
	}
	if amb.Status == models.AmbulanceInUse && amb.AssignedReportID != "" {
		busy, err := linkedReportActive(ctx, tx, amb.AssignedReportID)
		if err != nil {
			return nil, err
		}
		if busy {
			return nil, appErrors.Clone(appErrors.ErrAmbulanceUnavailable, fmt.Sprintf("%s is already assigned to %s", amb.Name, amb.AssignedReportID))
		}
	}

	written, err := releaseReportVehicles(ctx, tx, report, amb.ID, actor, at)
	if err != nil {
		return nil, err
	}

	amb.Status = models.AmbulanceInUse
	amb.Location = report.Location()
	amb.AssignedReportID = report.ID
	amb.UpdatedAt = at
	amb.UpdatedBy = actor
	if err := tx.Ambulances().Update(ctx, amb); err != nil {
		return nil, storeError(err, "ambulance")
	}

	report.AssignedVehicleID = amb.ID
	report.Attribute("assignedVehicleId", actor, at)
	report.Record(actor, models.ActionAmbulanceAssigned, fmt.Sprintf("%s (%s)", amb.Name, amb.ID), at)
	return append(written, *amb), nil
}

// releaseReportVehicles returns every ambulance linked to report, except the
// one named by keep, to AVAILABLE. The report is changed in memory only.
func releaseReportVehicles(ctx context.Context, tx repository.Store, report *models.Report, keep, actor string, at time.Time) ([]models.Ambulance, error) {
	linked, err := tx.Ambulances().ListByReport(ctx, report.ID)
	if err != nil {
		return nil, storeError(err, "ambulance")
	}
	var written []models.Ambulance
	for i := range linked {
		amb := &linked[i]
		if amb.ID == keep {
			continue
		}
		amb.Clear(models.AmbulanceAvailable, actor, at)
		if err := tx.Ambulances().Update(ctx, amb); err != nil {
			return nil, storeError(err, "ambulance")
		}
		written = append(written, *amb)
		if report.AssignedVehicleID == amb.ID {
			report.AssignedVehicleID = ""
			report.Attribute("assignedVehicleId", actor, at)
		}
		report.Record(actor, models.ActionAmbulanceReleased, fmt.Sprintf("%s (%s)", amb.Name, amb.ID), at)
	}
	return written, nil
}

// releaseVehicle sets the ambulance to status, drops its location and report
// link, and clears the link on the report side when it still points back. A
// release of an already free ambulance writes nothing and reports no change.
func releaseVehicle(ctx context.Context, tx repository.Store, amb *models.Ambulance, status models.AmbulanceStatus, actor string, at time.Time) (bool, *models.Report, error) {
	if amb.Status == status && amb.AssignedReportID == "" && amb.Location == "" {
		return false, nil, nil
	}
	reportID := amb.AssignedReportID
	amb.Clear(status, actor, at)
	if err := tx.Ambulances().Update(ctx, amb); err != nil {
		return false, nil, storeError(err, "ambulance")
	}
	if reportID == "" {
		return true, nil, nil
	}

	report, err := tx.Reports().Get(ctx, reportID)
	if errors.Is(err, repository.ErrNotFound) {
		return true, nil, nil
	}
	if err != nil {
		return false, nil, storeError(err, "report")
	}
	if report.AssignedVehicleID != amb.ID {
		return true, nil, nil
	}
	report.AssignedVehicleID = ""
	report.Attribute("assignedVehicleId", actor, at)
	report.Record(actor, models.ActionAmbulanceReleased, fmt.Sprintf("%s (%s)", amb.Name, amb.ID), at)
	if err := tx.Reports().Update(ctx, report); err != nil {
		return false, nil, storeError(err, "report")
	}
	return true, report, nil
}

func linkedReportActive(ctx context.Context, tx repository.Store, reportID string) (bool, error) {
	report, err := tx.Reports().Get(ctx, reportID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, storeError(err, "report")
	}
	return !report.Status.Terminal(), nil
}
