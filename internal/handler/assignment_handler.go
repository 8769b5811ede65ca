package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/swimbuddz/academy-api/internal/service"
	appErrors "github.com/swimbuddz/academy-api/pkg/errors"
	"github.com/swimbuddz/academy-api/pkg/response"
)

// AssignmentHandler exposes coach assignment endpoints.
type AssignmentHandler struct {
	assignments *service.AssignmentService
}

// NewAssignmentHandler constructs AssignmentHandler.
func NewAssignmentHandler(assignments *service.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{assignments: assignments}
}

// Assign godoc
// @Summary Assign a coach to a cohort
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Cohort ID"
// @Param payload body service.AssignCoachRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Router /cohorts/{id}/coaches [post]
func (h *AssignmentHandler) Assign(c *gin.Context) {
	var req service.AssignCoachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.CohortID = c.Param("id")
	assignment, err := h.assignments.Assign(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// ListByCohort godoc
// @Summary List a cohort's coach assignments
// @Tags Assignments
// @Produce json
// @Param id path string true "Cohort ID"
// @Param includeRemoved query bool false "Include removed assignments"
// @Success 200 {object} response.Envelope
// @Router /cohorts/{id}/coaches [get]
func (h *AssignmentHandler) ListByCohort(c *gin.Context) {
	includeRemoved, _ := strconv.ParseBool(c.DefaultQuery("includeRemoved", "false"))
	assignments, err := h.assignments.ListByCohort(c.Request.Context(), c.Param("id"), includeRemoved)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, nil)
}

// Remove godoc
// @Summary Remove a coach assignment (soft delete)
// @Tags Assignments
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id} [delete]
func (h *AssignmentHandler) Remove(c *gin.Context) {
	assignment, err := h.assignments.Remove(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}
