package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/schoolcore/sms-api/internal/models"
	"github.com/schoolcore/sms-api/internal/service"
	appErrors "github.com/schoolcore/sms-api/pkg/errors"
	"github.com/schoolcore/sms-api/pkg/response"
)

// ResultHandler exposes result endpoints.
type ResultHandler struct {
	service *service.ResultService
}

// NewResultHandler constructs a result handler.
func NewResultHandler(svc *service.ResultService) *ResultHandler {
	return &ResultHandler{service: svc}
}

// BatchUpsert godoc
// @Summary Batch upsert results
// @Description Validates every entry before writing; the batch commits as a whole or not at all. Identical resubmissions report entries as unchanged.
// @Tags Results
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.BatchUpsertRequest true "Result batch"
// @Success 200 {object} response.Envelope
// @Router /results/batch [post]
func (h *ResultHandler) BatchUpsert(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.BatchUpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	summary, err := h.service.BatchUpsert(c.Request.Context(), claims.SchoolID, claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// List godoc
// @Summary List results
// @Tags Results
// @Produce json
// @Security BearerAuth
// @Param student_id query string false "Filter by student"
// @Param subject_id query string false "Filter by subject"
// @Param session_id query string false "Filter by session"
// @Param term_id query string false "Filter by term"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /results [get]
func (h *ResultHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter := models.ResultFilter{
		StudentID: c.Query("student_id"),
		SubjectID: c.Query("subject_id"),
		SessionID: c.Query("session_id"),
		TermID:    c.Query("term_id"),
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		filter.PageSize = size
	}

	results, pagination, err := h.service.List(c.Request.Context(), claims.SchoolID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, pagination)
}

// Export godoc
// @Summary Export a student's term results
// @Tags Results
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param student_id path string true "Student ID"
// @Param term_id query string true "Term ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Router /results/export/{student_id} [get]
func (h *ResultHandler) Export(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	studentID := c.Param("student_id")
	termID := c.Query("term_id")
	format := c.DefaultQuery("format", "csv")

	payload, contentType, err := h.service.Export(c.Request.Context(), claims.SchoolID, studentID, termID, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=results_%s.%s", studentID, format))
	c.Data(http.StatusOK, contentType, payload)
}
