package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/schoolcore/sms-api/internal/service"
	appErrors "github.com/schoolcore/sms-api/pkg/errors"
	"github.com/schoolcore/sms-api/pkg/response"
)

// ComponentHandler exposes assessment component endpoints.
type ComponentHandler struct {
	service *service.ComponentService
}

// NewComponentHandler constructs a component handler.
func NewComponentHandler(svc *service.ComponentService) *ComponentHandler {
	return &ComponentHandler{service: svc}
}

// List godoc
// @Summary List assessment components
// @Tags Components
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /components [get]
func (h *ComponentHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	components, err := h.service.List(c.Request.Context(), claims.SchoolID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, components, nil)
}

// Get godoc
// @Summary Get an assessment component
// @Tags Components
// @Produce json
// @Security BearerAuth
// @Param id path string true "Component ID"
// @Success 200 {object} response.Envelope
// @Router /components/{id} [get]
func (h *ComponentHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	component, err := h.service.Get(c.Request.Context(), claims.SchoolID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, component, nil)
}

// Create godoc
// @Summary Create an assessment component
// @Tags Components
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.ComponentRequest true "Component payload"
// @Success 201 {object} response.Envelope
// @Router /components [post]
func (h *ComponentHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.ComponentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	component, err := h.service.Create(c.Request.Context(), claims.SchoolID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, component)
}

// Update godoc
// @Summary Update an assessment component
// @Tags Components
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Component ID"
// @Param payload body service.ComponentRequest true "Component payload"
// @Success 200 {object} response.Envelope
// @Router /components/{id} [put]
func (h *ComponentHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.ComponentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	component, err := h.service.Update(c.Request.Context(), claims.SchoolID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, component, nil)
}

// Delete godoc
// @Summary Delete an assessment component
// @Description Dependent results keep their rows with the component reference cleared.
// @Tags Components
// @Security BearerAuth
// @Param id path string true "Component ID"
// @Success 204
// @Router /components/{id} [delete]
func (h *ComponentHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Delete(c.Request.Context(), claims.SchoolID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AddStructure godoc
// @Summary Add a max-score override
// @Tags Components
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Component ID"
// @Param payload body service.StructureRequest true "Structure payload"
// @Success 201 {object} response.Envelope
// @Router /components/{id}/structures [post]
func (h *ComponentHandler) AddStructure(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.StructureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	structure, err := h.service.AddStructure(c.Request.Context(), claims.SchoolID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, structure)
}

// ResolveMaxScore godoc
// @Summary Resolve a component's effective max score
// @Tags Components
// @Produce json
// @Security BearerAuth
// @Param id path string true "Component ID"
// @Param class_id query string false "Class scope"
// @Param term_id query string false "Term scope"
// @Success 200 {object} response.Envelope
// @Router /components/{id}/max-score [get]
func (h *ComponentHandler) ResolveMaxScore(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	max, err := h.service.ResolveMaxScore(c.Request.Context(), claims.SchoolID, c.Param("id"), c.Query("class_id"), c.Query("term_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"max_score": max}, nil)
}
