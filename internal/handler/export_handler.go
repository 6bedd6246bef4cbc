package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/isagip/barangay-dashboard-api/internal/dto"
	"github.com/isagip/barangay-dashboard-api/internal/models"
	"github.com/isagip/barangay-dashboard-api/internal/service"
	appErrors "github.com/isagip/barangay-dashboard-api/pkg/errors"
	"github.com/isagip/barangay-dashboard-api/pkg/response"
)

type exportService interface {
	DashboardCSV(ctx context.Context, q dto.DashboardExportQuery) (*dto.ExportFile, error)
	DashboardPDF(ctx context.Context, q dto.DashboardExportQuery) (*dto.ExportFile, error)
	ReceivedCSV(ctx context.Context, filter models.ReportFilter) (*dto.ExportFile, error)
}

// ExportHandler streams CSV and PDF downloads.
type ExportHandler struct {
	exports exportService
}

// NewExportHandler constructs the handler.
func NewExportHandler(exports exportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// DashboardCSV godoc
// @Summary Dashboard statistics as CSV
// @Tags Exports
// @Security BearerAuth
// @Produce text/csv
// @Param period query string false "year, month or week"
// @Param month query int false "Month (1-12)"
// @Param year query int false "Year"
// @Success 200 {file} file
// @Router /exports/reports/dashboard.csv [get]
func (h *ExportHandler) DashboardCSV(c *gin.Context) {
	h.dashboard(c, h.exports.DashboardCSV)
}

// DashboardPDF godoc
// @Summary Dashboard statistics as PDF
// @Tags Exports
// @Security BearerAuth
// @Produce application/pdf
// @Param period query string false "year, month or week"
// @Param month query int false "Month (1-12)"
// @Param year query int false "Year"
// @Success 200 {file} file
// @Router /exports/dashboard.pdf [get]
func (h *ExportHandler) DashboardPDF(c *gin.Context) {
	h.dashboard(c, h.exports.DashboardPDF)
}

func (h *ExportHandler) dashboard(c *gin.Context, render func(context.Context, dto.DashboardExportQuery) (*dto.ExportFile, error)) {
	var query dto.DashboardExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export parameters"))
		return
	}
	file, err := render(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}

// ReceivedCSV godoc
// @Summary Received reports as CSV
// @Tags Exports
// @Security BearerAuth
// @Produce text/csv
// @Param status query string false "Comma separated statuses"
// @Param type query string false "Incident type"
// @Param q query string false "Search text"
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD)"
// @Success 200 {file} file
// @Router /exports/reports/received.csv [get]
func (h *ExportHandler) ReceivedCSV(c *gin.Context) {
	var query dto.ReportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export parameters"))
		return
	}
	filter, err := service.ParseFilter(query)
	if err != nil {
		response.Error(c, err)
		return
	}
	filter.Page, filter.PageSize = 0, 0
	file, err := h.exports.ReceivedCSV(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}
