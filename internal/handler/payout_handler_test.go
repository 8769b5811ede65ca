package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestPayoutHandlerComputeBlockRejectsNonIntegerBlock(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewPayoutHandler(nil, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/cohorts/coh-1/payouts/first", nil)
	c.Params = gin.Params{{Key: "id", Value: "coh-1"}, {Key: "block", Value: "first"}}

	handler.ComputeBlock(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPayoutHandlerStatementRejectsBadPeriod(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewPayoutHandler(nil, nil)

	for _, query := range []string{"from=31-12-2025", "to=not-a-date"} {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		c.Request = httptest.NewRequest(http.MethodGet, "/coaches/coach-1/statement?"+query, nil)
		c.Params = gin.Params{{Key: "coachId", Value: "coach-1"}}

		handler.Statement(c)

		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
}
