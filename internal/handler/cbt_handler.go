package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/schoolcore/sms-api/internal/models"
	"github.com/schoolcore/sms-api/internal/service"
	appErrors "github.com/schoolcore/sms-api/pkg/errors"
	"github.com/schoolcore/sms-api/pkg/response"
)

// CbtHandler exposes CBT link and score import endpoints.
type CbtHandler struct {
	service *service.CbtService
}

// NewCbtHandler constructs a CBT handler.
func NewCbtHandler(svc *service.CbtService) *CbtHandler {
	return &CbtHandler{service: svc}
}

type importIDsRequest struct {
	IDs    []string `json:"ids"`
	Reason string   `json:"reason"`
}

// CreateLink godoc
// @Summary Link a quiz to an assessment component
// @Tags CBT
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateLinkRequest true "Link payload"
// @Success 201 {object} response.Envelope
// @Router /cbt/links [post]
func (h *CbtHandler) CreateLink(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	link, err := h.service.CreateLink(c.Request.Context(), claims.SchoolID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, link)
}

// GetLink godoc
// @Summary Get a CBT assessment link
// @Tags CBT
// @Produce json
// @Security BearerAuth
// @Param id path string true "Link ID"
// @Success 200 {object} response.Envelope
// @Router /cbt/links/{id} [get]
func (h *CbtHandler) GetLink(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	link, err := h.service.GetLink(c.Request.Context(), claims.SchoolID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// DeleteLink godoc
// @Summary Delete a CBT assessment link
// @Description Links with synced imports are kept so result provenance survives.
// @Tags CBT
// @Security BearerAuth
// @Param id path string true "Link ID"
// @Success 204
// @Router /cbt/links/{id} [delete]
func (h *CbtHandler) DeleteLink(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.DeleteLink(c.Request.Context(), claims.SchoolID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ImportScores godoc
// @Summary Import the linked quiz's raw scores
// @Description Students with a synced import are skipped; other rows are overwritten and reset to pending. Auto-sync links write results in the same transaction.
// @Tags CBT
// @Produce json
// @Security BearerAuth
// @Param id path string true "Link ID"
// @Success 200 {object} response.Envelope
// @Router /cbt/links/{id}/import [post]
func (h *CbtHandler) ImportScores(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	summary, err := h.service.ImportScores(c.Request.Context(), claims.SchoolID, claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// ListImports godoc
// @Summary List a link's score imports
// @Tags CBT
// @Produce json
// @Security BearerAuth
// @Param id path string true "Link ID"
// @Param status query string false "Filter by status"
// @Success 200 {object} response.Envelope
// @Router /cbt/links/{id}/imports [get]
func (h *CbtHandler) ListImports(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	imports, err := h.service.ListImports(c.Request.Context(), claims.SchoolID, c.Param("id"), models.ImportStatus(c.Query("status")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, imports, nil)
}

// Approve godoc
// @Summary Approve pending imports
// @Tags CBT
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Link ID"
// @Param payload body importIDsRequest true "Import ids"
// @Success 204
// @Router /cbt/links/{id}/approve [post]
func (h *CbtHandler) Approve(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req importIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.service.Approve(c.Request.Context(), claims.SchoolID, claims.UserID, c.Param("id"), req.IDs); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Reject godoc
// @Summary Reject pending imports
// @Tags CBT
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Link ID"
// @Param payload body importIDsRequest true "Import ids and reason"
// @Success 204
// @Router /cbt/links/{id}/reject [post]
func (h *CbtHandler) Reject(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req importIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.service.Reject(c.Request.Context(), claims.SchoolID, c.Param("id"), req.IDs, req.Reason); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Sync godoc
// @Summary Sync approved imports into results
// @Description Writes every approved import's converted score into results and marks the imports synced, atomically.
// @Tags CBT
// @Produce json
// @Security BearerAuth
// @Param id path string true "Link ID"
// @Success 200 {object} response.Envelope
// @Router /cbt/links/{id}/sync [post]
func (h *CbtHandler) Sync(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	summary, err := h.service.SyncApprovedScores(c.Request.Context(), claims.SchoolID, claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
