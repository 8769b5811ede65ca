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

// ProgramHandler exposes program endpoints.
type ProgramHandler struct {
	programs *service.ProgramService
}

// NewProgramHandler constructs ProgramHandler.
func NewProgramHandler(programs *service.ProgramService) *ProgramHandler {
	return &ProgramHandler{programs: programs}
}

// List godoc
// @Summary List programs
// @Tags Programs
// @Produce json
// @Param category query string false "Filter by category"
// @Param published query bool false "Filter by published flag"
// @Param search query string false "Name search"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /programs [get]
func (h *ProgramHandler) List(c *gin.Context) {
	var filter models.ProgramFilter
	filter.Category = models.ProgramCategory(c.Query("category"))
	filter.Search = c.Query("search")
	if raw := c.Query("published"); raw != "" {
		if published, err := strconv.ParseBool(raw); err == nil {
			filter.Published = &published
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	programs, pagination, err := h.programs.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, programs, pagination)
}

// Get godoc
// @Summary Get program
// @Tags Programs
// @Produce json
// @Param id path string true "Program ID"
// @Success 200 {object} response.Envelope
// @Router /programs/{id} [get]
func (h *ProgramHandler) Get(c *gin.Context) {
	program, err := h.programs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, program, nil)
}

// Create godoc
// @Summary Create program
// @Tags Programs
// @Accept json
// @Produce json
// @Param payload body service.CreateProgramRequest true "Program payload"
// @Success 201 {object} response.Envelope
// @Router /programs [post]
func (h *ProgramHandler) Create(c *gin.Context) {
	var req service.CreateProgramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	program, err := h.programs.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, program)
}

// Update godoc
// @Summary Update program
// @Tags Programs
// @Accept json
// @Produce json
// @Param id path string true "Program ID"
// @Param payload body service.UpdateProgramRequest true "Program payload"
// @Success 200 {object} response.Envelope
// @Router /programs/{id} [put]
func (h *ProgramHandler) Update(c *gin.Context) {
	var req service.UpdateProgramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	program, err := h.programs.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, program, nil)
}
