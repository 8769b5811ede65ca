package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/swimbuddz/academy-api/internal/service"
	appErrors "github.com/swimbuddz/academy-api/pkg/errors"
	"github.com/swimbuddz/academy-api/pkg/response"
)

// PayoutHandler exposes payout computation and statement endpoints.
type PayoutHandler struct {
	payouts *service.PayoutService
	exports *service.ExportService
}

// NewPayoutHandler constructs PayoutHandler.
func NewPayoutHandler(payouts *service.PayoutService, exports *service.ExportService) *PayoutHandler {
	return &PayoutHandler{payouts: payouts, exports: exports}
}

// ComputeBlock godoc
// @Summary Compute the lead coach payout for a closed block
// @Tags Payouts
// @Produce json
// @Param id path string true "Cohort ID"
// @Param block path int true "1-indexed block number"
// @Success 200 {object} response.Envelope
// @Router /cohorts/{id}/payouts/{block} [post]
func (h *PayoutHandler) ComputeBlock(c *gin.Context) {
	block, err := strconv.Atoi(c.Param("block"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "block must be an integer"))
		return
	}
	payouts, err := h.payouts.ComputeBlock(c.Request.Context(), c.Param("id"), block)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payouts, nil)
}

// ListByCohort godoc
// @Summary List payouts recorded for a cohort
// @Tags Payouts
// @Produce json
// @Param id path string true "Cohort ID"
// @Success 200 {object} response.Envelope
// @Router /cohorts/{id}/payouts [get]
func (h *PayoutHandler) ListByCohort(c *gin.Context) {
	payouts, err := h.payouts.ListByCohort(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payouts, nil)
}

// Statement godoc
// @Summary Download a coach payout statement
// @Tags Payouts
// @Produce text/csv
// @Produce application/pdf
// @Param coachId path string true "Coach ID"
// @Param from query string false "Period start (YYYY-MM-DD, default 90 days ago)"
// @Param to query string false "Period end (YYYY-MM-DD, default today)"
// @Param format query string false "csv or pdf (default csv)"
// @Success 200 {file} file
// @Router /coaches/{coachId}/statement [get]
func (h *PayoutHandler) Statement(c *gin.Context) {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -90)
	to := now
	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from must be YYYY-MM-DD"))
			return
		}
		from = parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "to must be YYYY-MM-DD"))
			return
		}
		to = parsed
	}
	format := service.StatementFormat(c.DefaultQuery("format", "csv"))

	statement, err := h.exports.CoachStatement(c.Request.Context(), c.Param("coachId"), from, to, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+statement.Filename+`"`)
	c.Data(http.StatusOK, statement.ContentType, statement.Payload)
}
