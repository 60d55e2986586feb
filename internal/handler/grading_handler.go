package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/schoolcore/sms-api/internal/service"
	appErrors "github.com/schoolcore/sms-api/pkg/errors"
	"github.com/schoolcore/sms-api/pkg/response"
)

// GradingHandler exposes grading scale endpoints.
type GradingHandler struct {
	service *service.GradingService
}

// NewGradingHandler constructs a grading handler.
func NewGradingHandler(svc *service.GradingService) *GradingHandler {
	return &GradingHandler{service: svc}
}

// ListScales godoc
// @Summary List grading scales
// @Tags Grading
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /grading/scales [get]
func (h *GradingHandler) ListScales(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	scales, err := h.service.ListScales(c.Request.Context(), claims.SchoolID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, scales, nil)
}

// GetScale godoc
// @Summary Get a grading scale with ranges
// @Tags Grading
// @Produce json
// @Security BearerAuth
// @Param id path string true "Scale ID"
// @Success 200 {object} response.Envelope
// @Router /grading/scales/{id} [get]
func (h *GradingHandler) GetScale(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	scale, err := h.service.GetScale(c.Request.Context(), claims.SchoolID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, scale, nil)
}

// CreateScale godoc
// @Summary Create a grading scale
// @Tags Grading
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateScaleRequest true "Scale payload"
// @Success 201 {object} response.Envelope
// @Router /grading/scales [post]
func (h *GradingHandler) CreateScale(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateScaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	scale, err := h.service.CreateScale(c.Request.Context(), claims.SchoolID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, scale)
}

// UpdateRanges godoc
// @Summary Replace a scale's grade ranges
// @Description Applies inserts, updates and deletions as one atomic edit. The resulting set must cover 0-100 with contiguous, non-overlapping ranges and unique labels.
// @Tags Grading
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Scale ID"
// @Param payload body service.UpdateRangesRequest true "Range set"
// @Success 200 {object} response.Envelope
// @Router /grading/scales/{id}/ranges [put]
func (h *GradingHandler) UpdateRanges(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.UpdateRangesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	scale, err := h.service.UpdateRanges(c.Request.Context(), claims.SchoolID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, scale, nil)
}
