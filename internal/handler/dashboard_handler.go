package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/swimbuddz/academy-api/internal/service"
	"github.com/swimbuddz/academy-api/pkg/response"
)

// DashboardHandler exposes the coach dashboard.
type DashboardHandler struct {
	dashboards *service.DashboardService
}

// NewDashboardHandler constructs DashboardHandler.
func NewDashboardHandler(dashboards *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboards: dashboards}
}

// Coach godoc
// @Summary Get a coach's dashboard
// @Tags Dashboard
// @Produce json
// @Param coachId path string true "Coach ID"
// @Success 200 {object} response.Envelope
// @Router /coaches/{coachId}/dashboard [get]
func (h *DashboardHandler) Coach(c *gin.Context) {
	dashboard, err := h.dashboards.CoachDashboard(c.Request.Context(), c.Param("coachId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dashboard, nil)
}
