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

// EnrollmentHandler exposes enrollment lifecycle endpoints.
type EnrollmentHandler struct {
	enrollments *service.EnrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments *service.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// Create godoc
// @Summary Enroll a member into a cohort
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Cohort ID"
// @Param payload body service.EnrollRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Router /cohorts/{id}/enrollments [post]
func (h *EnrollmentHandler) Create(c *gin.Context) {
	var req service.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.CohortID = c.Param("id")
	// Members may only enroll themselves; admins enroll anyone.
	if claims := claimsFromContext(c); claims != nil && claims.Role == models.RoleMember {
		req.MemberID = claims.MemberID
		req.Source = models.SourceWeb
	}
	view, err := h.enrollments.Enroll(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, view)
}

// ListByCohort godoc
// @Summary List a cohort's enrollments
// @Tags Enrollments
// @Produce json
// @Param id path string true "Cohort ID"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /cohorts/{id}/enrollments [get]
func (h *EnrollmentHandler) ListByCohort(c *gin.Context) {
	var filter models.EnrollmentFilter
	filter.CohortID = c.Param("id")
	filter.MemberID = c.Query("memberId")
	filter.Status = models.EnrollmentStatus(c.Query("status"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	enrollments, pagination, err := h.enrollments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, pagination)
}

// Get godoc
// @Summary Get an enrollment with its waitlist position
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	view, err := h.enrollments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Approve godoc
// @Summary Approve a pending enrollment against capacity
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/approve [post]
func (h *EnrollmentHandler) Approve(c *gin.Context) {
	view, err := h.enrollments.Approve(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Drop godoc
// @Summary Drop an enrollment, promoting the waitlist head if a seat frees
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/drop [post]
func (h *EnrollmentHandler) Drop(c *gin.Context) {
	view, err := h.enrollments.Drop(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Graduate godoc
// @Summary Graduate an enrolled member
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/graduate [post]
func (h *EnrollmentHandler) Graduate(c *gin.Context) {
	view, err := h.enrollments.Graduate(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// WaitlistPosition godoc
// @Summary Get the 1-indexed waitlist position of an enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/waitlist-position [get]
func (h *EnrollmentHandler) WaitlistPosition(c *gin.Context) {
	view, err := h.enrollments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if view.Status != models.EnrollmentWaitlist {
		response.Error(c, appErrors.Clone(appErrors.ErrPreconditionFailed, "enrollment is not waitlisted"))
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"enrollment_id": view.ID,
		"position":      view.WaitlistPosition,
	}, nil)
}

// PaymentStatus godoc
// @Summary Apply an external payment event to an enrollment
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body service.UpdatePaymentStatusRequest true "Payment status payload"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/payment-status [post]
func (h *EnrollmentHandler) PaymentStatus(c *gin.Context) {
	var req service.UpdatePaymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	view, err := h.enrollments.UpdatePaymentStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}
