package service

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isagip/barangay-dashboard-api/internal/dto"
	"github.com/isagip/barangay-dashboard-api/internal/models"
	appErrors "github.com/isagip/barangay-dashboard-api/pkg/errors"
)

func TestAmbulanceCreateAssignsNextID(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()
	seedAmbulance(t, f.store, "AMB-2", models.AmbulanceAvailable)
	seedAmbulance(t, f.store, "AMB-10", models.AmbulanceAvailable)

	amb, err := f.ambulances.Create(ctx, dto.CreateAmbulanceRequest{Name: " Rescue 11 "}, "admin")
	require.NoError(t, err)
	assert.Equal(t, "AMB-11", amb.ID)
	assert.Equal(t, "Rescue 11", amb.Name)
	assert.Equal(t, models.AmbulanceAvailable, amb.Status)
}

func TestReleaseIsIdempotent(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()
	seedAmbulance(t, f.store, "AMB-1", models.AmbulanceAvailable)
	report := f.create(t)
	_, err := f.ambulances.Assign(ctx, "AMB-1", report.ID, "staff")
	require.NoError(t, err)

	amb, err := f.ambulances.Release(ctx, "AMB-1", "staff")
	require.NoError(t, err)
	assert.Equal(t, models.AmbulanceAvailable, amb.Status)
	version := amb.Version
	events := len(f.bus.collections())

	again, err := f.ambulances.Release(ctx, "AMB-1", "staff")
	require.NoError(t, err)
	assert.Equal(t, version, again.Version)
	assert.Len(t, f.bus.collections(), events)

	r, err := f.reports.Get(ctx, report.ID)
	require.NoError(t, err)
	assert.Empty(t, r.AssignedVehicleID)
	assert.Equal(t, models.ActionAmbulanceReleased, r.History[len(r.History)-1].Action)
}

func TestMaintenanceDropsAssignment(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()
	seedAmbulance(t, f.store, "AMB-1", models.AmbulanceAvailable)
	report := f.create(t)
	_, err := f.ambulances.Assign(ctx, "AMB-1", report.ID, "staff")
	require.NoError(t, err)

	amb, err := f.ambulances.SetStatus(ctx, "AMB-1", dto.AmbulanceStatusRequest{Status: models.AmbulanceMaintenance}, "staff")
	require.NoError(t, err)
	assert.Equal(t, models.AmbulanceMaintenance, amb.Status)
	assert.Empty(t, amb.AssignedReportID)

	_, err = f.ambulances.Assign(ctx, "AMB-1", report.ID, "staff")
	assertAppError(t, err, appErrors.ErrAmbulanceUnavailable)
}

func TestSetStatusInUseRequiresAssignment(t *testing.T) {
	f := newReportFixture(t)
	seedAmbulance(t, f.store, "AMB-1", models.AmbulanceAvailable)

	_, err := f.ambulances.SetStatus(context.Background(), "AMB-1", dto.AmbulanceStatusRequest{Status: models.AmbulanceInUse}, "staff")
	assertAppError(t, err, appErrors.ErrValidation)

	_, err = f.ambulances.SetStatus(context.Background(), "AMB-1", dto.AmbulanceStatusRequest{Status: "PARKED"}, "staff")
	assertAppError(t, err, appErrors.ErrValidation)
}

func TestAmbulanceListUpdatesFleetGauge(t *testing.T) {
	f := newReportFixture(t)
	metrics := NewMetricsService()
	f.ambulances.metrics = metrics
	seedAmbulance(t, f.store, "AMB-1", models.AmbulanceAvailable)
	seedAmbulance(t, f.store, "AMB-2", models.AmbulanceMaintenance)

	items, err := f.ambulances.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "AMB-1", items[0].ID)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ambulanceStatus.WithLabelValues(string(models.AmbulanceMaintenance))))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.ambulanceStatus.WithLabelValues(string(models.AmbulanceInUse))))
}
