package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/schoolcore/sms-api/internal/service"
	appErrors "github.com/schoolcore/sms-api/pkg/errors"
	"github.com/schoolcore/sms-api/pkg/response"
)

// PromotionHandler exposes promotion endpoints.
type PromotionHandler struct {
	service *service.PromotionService
}

// NewPromotionHandler constructs a promotion handler.
func NewPromotionHandler(svc *service.PromotionService) *PromotionHandler {
	return &PromotionHandler{service: svc}
}

// Promote godoc
// @Summary Promote a batch of students
// @Description Moves every listed student into the target placement, logging each move. The batch commits as a whole or not at all.
// @Tags Promotions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.PromoteStudentsRequest true "Promotion payload"
// @Success 200 {object} response.Envelope
// @Router /promotions [post]
func (h *PromotionHandler) Promote(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.PromoteStudentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	summary, err := h.service.PromoteStudents(c.Request.Context(), claims.SchoolID, claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// History godoc
// @Summary A student's promotion history
// @Tags Promotions
// @Produce json
// @Security BearerAuth
// @Param student_id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /promotions/students/{student_id} [get]
func (h *PromotionHandler) History(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	logs, err := h.service.History(c.Request.Context(), claims.SchoolID, c.Param("student_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, nil)
}
