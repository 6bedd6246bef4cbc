package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isagip/barangay-dashboard-api/internal/dto"
	"github.com/isagip/barangay-dashboard-api/internal/models"
	"github.com/isagip/barangay-dashboard-api/internal/service"
	appErrors "github.com/isagip/barangay-dashboard-api/pkg/errors"
)

type residentServiceStub struct {
	residentService
	confirm bool
}

func (s *residentServiceStub) Delete(ctx context.Context, id string, confirm bool, actor string) error {
	s.confirm = confirm
	if !confirm {
		return appErrors.Clone(appErrors.ErrConfirmationRequired, "confirm to delete")
	}
	return nil
}

func (s *residentServiceStub) List(ctx context.Context, query dto.ResidentQuery) ([]models.Resident, int, error) {
	return []models.Resident{}, 3, nil
}

func TestResidentHandlerDeleteRequiresConfirm(t *testing.T) {
	gin.SetMode(gin.TestMode)
	stub := &residentServiceStub{}
	h := NewResidentHandler(stub)

	c, w := newGinContext(http.MethodDelete, "/residents/RES-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "RES-1"}}
	withStaff(c)
	h.Delete(c)
	assert.Equal(t, http.StatusPreconditionRequired, w.Code)

	c, w = newGinContext(http.MethodDelete, "/residents/RES-1?confirm=true", nil)
	c.Params = gin.Params{{Key: "id", Value: "RES-1"}}
	withStaff(c)
	h.Delete(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, stub.confirm)
}

func TestResidentHandlerListDefaultsPaging(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewResidentHandler(&residentServiceStub{})
	c, w := newGinContext(http.MethodGet, "/residents", nil)
	h.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 1, env.Pagination.Page)
	assert.Equal(t, 20, env.Pagination.PageSize)
	assert.Equal(t, 3, env.Pagination.TotalCount)
}

type registrationServiceStub struct {
	registrationService
	reject dto.RejectRequest
}

func (s *registrationServiceStub) Reject(ctx context.Context, id string, req dto.RejectRequest, reviewer string) (*models.ReviewOutcome, error) {
	s.reject = req
	return &models.ReviewOutcome{RequestID: id, Status: "rejected"}, nil
}

func TestRegistrationHandlerRejectReadsBodyAndQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	stub := &registrationServiceStub{}
	h := NewRegistrationHandler(stub)

	c, w := newGinContext(http.MethodPost, "/registrations/REQ-1/reject?confirm=1", []byte(`{"reason":"blurry ID"}`))
	c.Params = gin.Params{{Key: "id", Value: "REQ-1"}}
	withStaff(c)
	h.Reject(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, stub.reject.Confirm)
	assert.Equal(t, "blurry ID", stub.reject.Reason)
}

type exportServiceStub struct {
	exportService
	query  dto.DashboardExportQuery
	filter models.ReportFilter
}

func (s *exportServiceStub) DashboardCSV(ctx context.Context, q dto.DashboardExportQuery) (*dto.ExportFile, error) {
	s.query = q
	return &dto.ExportFile{Filename: "iSagip-reports-2025-09.csv", ContentType: "text/csv", Data: []byte("Report ID")}, nil
}

func (s *exportServiceStub) ReceivedCSV(ctx context.Context, filter models.ReportFilter) (*dto.ExportFile, error) {
	s.filter = filter
	return &dto.ExportFile{Filename: "received-reports.csv", ContentType: "text/csv", Data: []byte("Description")}, nil
}

func TestExportHandlerAttachments(t *testing.T) {
	gin.SetMode(gin.TestMode)
	stub := &exportServiceStub{}
	h := NewExportHandler(stub)

	c, w := newGinContext(http.MethodGet, "/exports/reports/dashboard.csv?period=month&month=9&year=2025", nil)
	h.DashboardCSV(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="iSagip-reports-2025-09.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "Report ID", w.Body.String())
	assert.Equal(t, dto.DashboardExportQuery{Period: "month", Month: 9, Year: 2025}, stub.query)

	c, w = newGinContext(http.MethodGet, "/exports/reports/received.csv?status=Resolved&page=3&pageSize=5", nil)
	h.ReceivedCSV(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []models.IncidentStatus{models.StatusResolved}, stub.filter.Status)
	assert.Zero(t, stub.filter.PageSize)
}

type backendStatusStub service.BackendStatus

func (s backendStatusStub) Status() service.BackendStatus { return service.BackendStatus(s) }

func TestMetricsHandlerReady(t *testing.T) {
	gin.SetMode(gin.TestMode)

	h := NewMetricsHandler(service.NewMetricsService(), backendStatusStub{Available: true, CheckedAt: time.Now()})
	c, w := newGinContext(http.MethodGet, "/ready", nil)
	h.Ready(c)
	assert.Equal(t, http.StatusOK, w.Code)

	h = NewMetricsHandler(nil, backendStatusStub{Available: false, Error: "connection refused"})
	c, w = newGinContext(http.MethodGet, "/ready", nil)
	h.Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	env := decode(t, w)
	assert.Equal(t, true, env.Meta["readOnly"])
	assert.Equal(t, service.OfflineBanner, env.Meta["banner"])

	c, w = newGinContext(http.MethodGet, "/metrics", nil)
	h.Prometheus(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
