package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/swimbuddz/academy-api/internal/models"
	"github.com/swimbuddz/academy-api/internal/service"
	appErrors "github.com/swimbuddz/academy-api/pkg/errors"
	"github.com/swimbuddz/academy-api/pkg/response"
)

// CohortHandler exposes cohort lifecycle endpoints.
type CohortHandler struct {
	cohorts *service.CohortService
	scoring *service.ScoringService
}

// NewCohortHandler constructs CohortHandler.
func NewCohortHandler(cohorts *service.CohortService, scoring *service.ScoringService) *CohortHandler {
	return &CohortHandler{cohorts: cohorts, scoring: scoring}
}

// List godoc
// @Summary List cohorts
// @Tags Cohorts
// @Produce json
// @Param programId query string false "Filter by program"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /cohorts [get]
func (h *CohortHandler) List(c *gin.Context) {
	var filter models.CohortFilter
	filter.ProgramID = c.Query("programId")
	filter.Status = models.CohortStatus(c.Query("status"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	cohorts, pagination, err := h.cohorts.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cohorts, pagination)
}

// Get godoc
// @Summary Get cohort detail with live enrollment counts
// @Tags Cohorts
// @Produce json
// @Param id path string true "Cohort ID"
// @Success 200 {object} response.Envelope
// @Router /cohorts/{id} [get]
func (h *CohortHandler) Get(c *gin.Context) {
	detail, err := h.cohorts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Create godoc
// @Summary Create cohort
// @Tags Cohorts
// @Accept json
// @Produce json
// @Param payload body service.CreateCohortRequest true "Cohort payload"
// @Success 201 {object} response.Envelope
// @Router /cohorts [post]
func (h *CohortHandler) Create(c *gin.Context) {
	var req service.CreateCohortRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	detail, err := h.cohorts.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// Update godoc
// @Summary Update cohort attributes
// @Tags Cohorts
// @Accept json
// @Produce json
// @Param id path string true "Cohort ID"
// @Param payload body service.UpdateCohortRequest true "Cohort payload"
// @Success 200 {object} response.Envelope
// @Router /cohorts/{id} [put]
func (h *CohortHandler) Update(c *gin.Context) {
	var req service.UpdateCohortRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	detail, err := h.cohorts.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Publish godoc
// @Summary Open a draft cohort for enrollment
// @Tags Cohorts
// @Produce json
// @Param id path string true "Cohort ID"
// @Success 200 {object} response.Envelope
// @Router /cohorts/{id}/publish [post]
func (h *CohortHandler) Publish(c *gin.Context) {
	h.transition(c, models.CohortOpen)
}

// Activate godoc
// @Summary Start a cohort's sessions
// @Tags Cohorts
// @Produce json
// @Param id path string true "Cohort ID"
// @Success 200 {object} response.Envelope
// @Router /cohorts/{id}/activate [post]
func (h *CohortHandler) Activate(c *gin.Context) {
	h.transition(c, models.CohortActive)
}

// Complete godoc
// @Summary Complete a cohort, graduating seated members
// @Tags Cohorts
// @Produce json
// @Param id path string true "Cohort ID"
// @Success 200 {object} response.Envelope
// @Router /cohorts/{id}/complete [post]
func (h *CohortHandler) Complete(c *gin.Context) {
	h.transition(c, models.CohortCompleted)
}

// Cancel godoc
// @Summary Cancel a cohort, cascading to enrollments and assignments
// @Tags Cohorts
// @Produce json
// @Param id path string true "Cohort ID"
// @Success 200 {object} response.Envelope
// @Router /cohorts/{id}/cancel [post]
func (h *CohortHandler) Cancel(c *gin.Context) {
	h.transition(c, models.CohortCancelled)
}

// Score godoc
// @Summary Get the cohort's complexity breakdown
// @Tags Cohorts
// @Produce json
// @Param id path string true "Cohort ID"
// @Success 200 {object} response.Envelope
// @Router /cohorts/{id}/score [get]
func (h *CohortHandler) Score(c *gin.Context) {
	result, err := h.cohorts.Score(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Preview godoc
// @Summary Score hypothetical cohort attributes without persisting
// @Tags Scoring
// @Accept json
// @Produce json
// @Param payload body service.ScorePreviewRequest true "Scoring inputs"
// @Success 200 {object} response.Envelope
// @Router /scoring/preview [post]
func (h *CohortHandler) Preview(c *gin.Context) {
	var req service.ScorePreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.scoring.Preview(req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

func (h *CohortHandler) transition(c *gin.Context, status models.CohortStatus) {
	detail, err := h.cohorts.Transition(c.Request.Context(), c.Param("id"),
		service.TransitionCohortRequest{Status: status})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}
