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

type reportService interface {
	Create(ctx context.Context, req dto.CreateReportRequest, actor string) (*models.Report, error)
	Get(ctx context.Context, id string) (*models.Report, error)
	History(ctx context.Context, id string) ([]models.HistoryEntry, error)
	List(ctx context.Context, filter models.ReportFilter) ([]models.Report, int, error)
	Relay(ctx context.Context, id string, version int64, actor string) (*models.Report, error)
	Dispatch(ctx context.Context, id string, req dto.DispatchRequest, actor string) (*models.Report, error)
	ToggleResponded(ctx context.Context, id string, version int64, actor string) (*models.Report, error)
	SetSeverity(ctx context.Context, id string, req dto.SeverityRequest, actor string) (*models.Report, error)
	AssignResponder(ctx context.Context, id string, req dto.ResponderRequest, actor string) (*models.Report, error)
	AssignAmbulance(ctx context.Context, id, ambulanceID, actor string) (*models.Report, error)
	Resolve(ctx context.Context, id string, req dto.ConfirmRequest, actor string) (*models.Report, error)
	AddNote(ctx context.Context, id string, req dto.NoteRequest, actor string) (*models.Report, error)
	AttachPhoto(ctx context.Context, id, photoRef, actor string) (*models.Report, error)
}

// ReportHandler exposes incident report endpoints.
type ReportHandler struct {
	reports reportService
}

// NewReportHandler constructs handler.
func NewReportHandler(reports reportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

func reportView(r *models.Report) dto.ReportView {
	return dto.ReportView{Report: r, ResponseTime: r.ResponseTime()}
}

// List godoc
// @Summary List incident reports
// @Tags Reports
// @Security BearerAuth
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param type query string false "Incident type"
// @Param q query string false "Search text"
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /reports [get]
func (h *ReportHandler) List(c *gin.Context) {
	var query dto.ReportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	filter, err := service.ParseFilter(query)
	if err != nil {
		response.Error(c, err)
		return
	}
	items, total, err := h.reports.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	views := make([]dto.ReportView, 0, len(items))
	for i := range items {
		views = append(views, reportView(&items[i]))
	}
	page, size := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = total
	}
	response.JSON(c, http.StatusOK, views, &response.Pagination{Page: page, PageSize: size, TotalCount: total})
}

// Create godoc
// @Summary Submit a new incident report
// @Tags Reports
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body dto.CreateReportRequest true "Report payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /reports [post]
func (h *ReportHandler) Create(c *gin.Context) {
	var req dto.CreateReportRequest
	if !bindJSON(c, &req, "invalid report payload") {
		return
	}
	report, err := h.reports.Create(c.Request.Context(), req, actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, reportView(report))
}

// Get godoc
// @Summary Report detail
// @Tags Reports
// @Security BearerAuth
// @Produce json
// @Param id path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reports/{id} [get]
func (h *ReportHandler) Get(c *gin.Context) {
	report, err := h.reports.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reportView(report), nil)
}

// History godoc
// @Summary Report status history
// @Tags Reports
// @Security BearerAuth
// @Produce json
// @Param id path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Router /reports/{id}/history [get]
func (h *ReportHandler) History(c *gin.Context) {
	history, err := h.reports.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, nil)
}

// Relay godoc
// @Summary Relay a pending report
// @Tags Reports
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param payload body dto.VersionRequest false "Expected version"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /reports/{id}/relay [post]
func (h *ReportHandler) Relay(c *gin.Context) {
	var req dto.VersionRequest
	if !bindOptionalJSON(c, &req, "invalid relay payload") {
		return
	}
	h.respond(c)(h.reports.Relay(c.Request.Context(), c.Param("id"), req.Version, actor(c)))
}

// Dispatch godoc
// @Summary Dispatch responders to a report
// @Tags Reports
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param payload body dto.DispatchRequest false "Dispatch payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /reports/{id}/dispatch [post]
func (h *ReportHandler) Dispatch(c *gin.Context) {
	var req dto.DispatchRequest
	if !bindOptionalJSON(c, &req, "invalid dispatch payload") {
		return
	}
	h.respond(c)(h.reports.Dispatch(c.Request.Context(), c.Param("id"), req, actor(c)))
}

// ToggleResponded godoc
// @Summary Toggle between Ongoing and Responded
// @Tags Reports
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param payload body dto.VersionRequest false "Expected version"
// @Success 200 {object} response.Envelope
// @Router /reports/{id}/respond [post]
func (h *ReportHandler) ToggleResponded(c *gin.Context) {
	var req dto.VersionRequest
	if !bindOptionalJSON(c, &req, "invalid respond payload") {
		return
	}
	h.respond(c)(h.reports.ToggleResponded(c.Request.Context(), c.Param("id"), req.Version, actor(c)))
}

// SetSeverity godoc
// @Summary Set report severity
// @Tags Reports
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param payload body dto.SeverityRequest true "Severity payload"
// @Success 200 {object} response.Envelope
// @Router /reports/{id}/severity [post]
func (h *ReportHandler) SetSeverity(c *gin.Context) {
	var req dto.SeverityRequest
	if !bindJSON(c, &req, "invalid severity payload") {
		return
	}
	h.respond(c)(h.reports.SetSeverity(c.Request.Context(), c.Param("id"), req, actor(c)))
}

// AssignResponder godoc
// @Summary Assign a responder
// @Tags Reports
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param payload body dto.ResponderRequest true "Responder payload"
// @Success 200 {object} response.Envelope
// @Router /reports/{id}/responder [post]
func (h *ReportHandler) AssignResponder(c *gin.Context) {
	var req dto.ResponderRequest
	if !bindJSON(c, &req, "invalid responder payload") {
		return
	}
	h.respond(c)(h.reports.AssignResponder(c.Request.Context(), c.Param("id"), req, actor(c)))
}

// AssignAmbulance godoc
// @Summary Link an ambulance to the report
// @Tags Reports
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param payload body dto.AssignAmbulanceRequest true "Ambulance payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /reports/{id}/ambulance [post]
func (h *ReportHandler) AssignAmbulance(c *gin.Context) {
	var req dto.AssignAmbulanceRequest
	if !bindJSON(c, &req, "invalid ambulance payload") {
		return
	}
	h.respond(c)(h.reports.AssignAmbulance(c.Request.Context(), c.Param("id"), req.AmbulanceID, actor(c)))
}

// Resolve godoc
// @Summary Resolve a report
// @Description Requires confirm=true; releases any linked ambulance
// @Tags Reports
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param payload body dto.ConfirmRequest true "Confirmation"
// @Success 200 {object} response.Envelope
// @Failure 428 {object} response.Envelope
// @Router /reports/{id}/resolve [post]
func (h *ReportHandler) Resolve(c *gin.Context) {
	var req dto.ConfirmRequest
	if !bindOptionalJSON(c, &req, "invalid resolve payload") {
		return
	}
	if confirmParam(c) {
		req.Confirm = true
	}
	h.respond(c)(h.reports.Resolve(c.Request.Context(), c.Param("id"), req, actor(c)))
}

// AddNote godoc
// @Summary Append a note
// @Tags Reports
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param payload body dto.NoteRequest true "Note payload"
// @Success 200 {object} response.Envelope
// @Router /reports/{id}/notes [post]
func (h *ReportHandler) AddNote(c *gin.Context) {
	var req dto.NoteRequest
	if !bindJSON(c, &req, "invalid note payload") {
		return
	}
	h.respond(c)(h.reports.AddNote(c.Request.Context(), c.Param("id"), req, actor(c)))
}

// AttachPhoto godoc
// @Summary Attach an uploaded photo
// @Tags Reports
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param payload body dto.PhotoRequest true "Photo reference"
// @Success 200 {object} response.Envelope
// @Router /reports/{id}/photo [post]
func (h *ReportHandler) AttachPhoto(c *gin.Context) {
	var req dto.PhotoRequest
	if !bindJSON(c, &req, "invalid photo payload") {
		return
	}
	h.respond(c)(h.reports.AttachPhoto(c.Request.Context(), c.Param("id"), req.PhotoRef, actor(c)))
}

func (h *ReportHandler) respond(c *gin.Context) func(*models.Report, error) {
	return func(report *models.Report, err error) {
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, reportView(report), nil)
	}
}
