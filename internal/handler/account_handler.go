package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/isagip/barangay-dashboard-api/internal/dto"
	"github.com/isagip/barangay-dashboard-api/internal/models"
	"github.com/isagip/barangay-dashboard-api/pkg/response"
)

type accountService interface {
	List(ctx context.Context) ([]models.Account, error)
	RegisterStaff(ctx context.Context, req dto.StaffRegistrationRequest, actor string) (*models.Account, error)
}

// AccountHandler manages staff and responder accounts.
type AccountHandler struct {
	accounts accountService
}

// NewAccountHandler constructs the handler.
func NewAccountHandler(accounts accountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

// List godoc
// @Summary List staff accounts
// @Tags Accounts
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /accounts/staff [get]
func (h *AccountHandler) List(c *gin.Context) {
	items, err := h.accounts.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// RegisterStaff godoc
// @Summary Register a staff or responder account
// @Tags Accounts
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body dto.StaffRegistrationRequest true "Staff payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /accounts/staff [post]
func (h *AccountHandler) RegisterStaff(c *gin.Context) {
	var req dto.StaffRegistrationRequest
	if !bindJSON(c, &req, "invalid staff payload") {
		return
	}
	account, err := h.accounts.RegisterStaff(c.Request.Context(), req, actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, account)
}
