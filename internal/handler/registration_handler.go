package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/isagip/barangay-dashboard-api/internal/dto"
	"github.com/isagip/barangay-dashboard-api/internal/models"
	appErrors "github.com/isagip/barangay-dashboard-api/pkg/errors"
	"github.com/isagip/barangay-dashboard-api/pkg/response"
)

type registrationService interface {
	List(ctx context.Context, query dto.RegistrationQuery) ([]models.ReviewRequest, error)
	Feedback(ctx context.Context, identity string) (*models.Feedback, error)
	SubmitUpdate(ctx context.Context, req dto.UpdateRequestPayload) (*models.ReviewRequest, error)
	SubmitRegistration(ctx context.Context, req dto.ResidentRegistrationRequest) (*models.ReviewRequest, error)
	Approve(ctx context.Context, id, reviewer string) (*models.ReviewOutcome, error)
	Reject(ctx context.Context, id string, req dto.RejectRequest, reviewer string) (*models.ReviewOutcome, error)
}

// RegistrationHandler exposes the resident review queue.
type RegistrationHandler struct {
	service registrationService
}

// NewRegistrationHandler constructs the handler.
func NewRegistrationHandler(svc registrationService) *RegistrationHandler {
	return &RegistrationHandler{service: svc}
}

// List godoc
// @Summary Pending review requests
// @Tags Registrations
// @Security BearerAuth
// @Produce json
// @Param kind query string false "update or registration"
// @Success 200 {object} response.Envelope
// @Router /registrations [get]
func (h *RegistrationHandler) List(c *gin.Context) {
	var query dto.RegistrationQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	items, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// SubmitUpdate godoc
// @Summary Propose a resident profile update
// @Tags Registrations
// @Accept json
// @Produce json
// @Param payload body dto.UpdateRequestPayload true "Update request"
// @Success 201 {object} response.Envelope
// @Router /registrations/updates [post]
func (h *RegistrationHandler) SubmitUpdate(c *gin.Context) {
	var req dto.UpdateRequestPayload
	if !bindJSON(c, &req, "invalid update request payload") {
		return
	}
	item, err := h.service.SubmitUpdate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// SubmitRegistration godoc
// @Summary Submit a resident registration for review
// @Tags Registrations
// @Accept json
// @Produce json
// @Param payload body dto.ResidentRegistrationRequest true "Registration"
// @Success 201 {object} response.Envelope
// @Router /registrations/residents [post]
func (h *RegistrationHandler) SubmitRegistration(c *gin.Context) {
	var req dto.ResidentRegistrationRequest
	if !bindJSON(c, &req, "invalid registration payload") {
		return
	}
	item, err := h.service.SubmitRegistration(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Approve godoc
// @Summary Approve a review request
// @Tags Registrations
// @Security BearerAuth
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /registrations/{id}/approve [post]
func (h *RegistrationHandler) Approve(c *gin.Context) {
	outcome, err := h.service.Approve(c.Request.Context(), c.Param("id"), actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, outcome, nil)
}

// Reject godoc
// @Summary Reject a review request
// @Tags Registrations
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.RejectRequest true "Rejection"
// @Success 200 {object} response.Envelope
// @Failure 428 {object} response.Envelope
// @Router /registrations/{id}/reject [post]
func (h *RegistrationHandler) Reject(c *gin.Context) {
	var req dto.RejectRequest
	if !bindOptionalJSON(c, &req, "invalid rejection payload") {
		return
	}
	if confirmParam(c) {
		req.Confirm = true
	}
	outcome, err := h.service.Reject(c.Request.Context(), c.Param("id"), req, actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, outcome, nil)
}

// Feedback godoc
// @Summary Review outcome for a username or email
// @Tags Registrations
// @Produce json
// @Param identity path string true "Username or email"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /registrations/feedback/{identity} [get]
func (h *RegistrationHandler) Feedback(c *gin.Context) {
	feedback, err := h.service.Feedback(c.Request.Context(), c.Param("identity"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, feedback, nil)
}
