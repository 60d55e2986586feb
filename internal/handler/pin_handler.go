package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/schoolcore/sms-api/internal/service"
	appErrors "github.com/schoolcore/sms-api/pkg/errors"
	"github.com/schoolcore/sms-api/pkg/response"
)

// PinHandler exposes result-check pin endpoints.
type PinHandler struct {
	service *service.PinService
}

// NewPinHandler constructs a pin handler.
func NewPinHandler(svc *service.PinService) *PinHandler {
	return &PinHandler{service: svc}
}

type verifyPinRequest struct {
	Serial string `json:"serial" binding:"required"`
	Pin    string `json:"pin" binding:"required"`
}

// Issue godoc
// @Summary Issue a result-check pin
// @Tags Pins
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.IssuePinRequest true "Pin payload"
// @Success 201 {object} response.Envelope
// @Router /pins [post]
func (h *PinHandler) Issue(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.IssuePinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	pin, err := h.service.Issue(c.Request.Context(), claims.SchoolID, claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, pin)
}

// Verify godoc
// @Summary Verify a pin and consume one use
// @Tags Pins
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body verifyPinRequest true "Serial and pin"
// @Success 200 {object} response.Envelope
// @Router /pins/verify [post]
func (h *PinHandler) Verify(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req verifyPinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	pin, err := h.service.Verify(c.Request.Context(), claims.SchoolID, req.Serial, req.Pin)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pin, nil)
}
