package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/swimbuddz/academy-api/internal/models"
	"github.com/swimbuddz/academy-api/internal/repository"
	appErrors "github.com/swimbuddz/academy-api/pkg/errors"
)

type enrollmentStore interface {
	InCohortTx(ctx context.Context, fn func(tx repository.EnrollmentTx) error) error
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error)
	WaitlistPosition(ctx context.Context, enrollment *models.Enrollment) (int, error)
	UpdatePaymentStatus(ctx context.Context, id string, status models.PaymentStatus) error
}

type memberDirectory interface {
	GetMember(ctx context.Context, memberID string) (*models.Member, error)
	GetCoachProfile(ctx context.Context, coachID string) (*models.CoachProfile, error)
}

type paymentProcessor interface {
	CreateIntent(ctx context.Context, req models.PaymentIntentRequest) error
}

// EnrollRequest describes an enrollment attempt.
type EnrollRequest struct {
	CohortID string                  `json:"cohort_id" validate:"required"`
	MemberID string                  `json:"member_id" validate:"required"`
	Source   models.EnrollmentSource `json:"source" validate:"omitempty,oneof=web admin partner"`
}

// UpdatePaymentStatusRequest applies an external payment event.
type UpdatePaymentStatusRequest struct {
	PaymentStatus models.PaymentStatus `json:"payment_status" validate:"required,oneof=pending paid failed waived"`
}

// EnrollmentView is an enrollment enriched with its waitlist position.
type EnrollmentView struct {
	models.Enrollment
	WaitlistPosition int `json:"waitlist_position,omitempty"`
}

// EnrollmentService orchestrates the enrollment lifecycle: creation against
// capacity, approval, drops with FIFO waitlist promotion, and graduation. All
// capacity decisions for one cohort are serialized through a per-cohort mutex
// plus a row lock on the cohort inside the mutation transaction.
type EnrollmentService struct {
	store     enrollmentStore
	programs  programReader
	directory memberDirectory
	payments  paymentProcessor
	events    eventPublisher
	cache     cohortCache
	metrics   *MetricsService
	locks     *cohortLocker
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(store enrollmentStore, programs programReader, directory memberDirectory, payments paymentProcessor, events eventPublisher, cache cohortCache, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		store:     store,
		programs:  programs,
		directory: directory,
		payments:  payments,
		events:    events,
		cache:     cache,
		locks:     newCohortLocker(),
		validator: validate,
		logger:    logger,
	}
}

// WithMetrics attaches enrollment counters. Safe to skip in tests.
func (s *EnrollmentService) WithMetrics(metrics *MetricsService) *EnrollmentService {
	s.metrics = metrics
	return s
}

// Enroll attempts to place a member into a cohort. The outcome is ENROLLED
// when a seat is free, WAITLIST when the cohort is full, or PENDING_APPROVAL
// when the cohort requires manual approval.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest) (*EnrollmentView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	if req.Source == "" {
		req.Source = models.SourceWeb
	}

	member, err := s.directory.GetMember(ctx, req.MemberID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load member")
	}
	if member == nil || !member.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "member not found or inactive")
	}

	unlock := s.locks.Lock(req.CohortID)
	defer unlock()

	var enrollment *models.Enrollment
	var program *models.Program
	err = s.store.InCohortTx(ctx, func(tx repository.EnrollmentTx) error {
		cohort, err := tx.CohortForUpdate(ctx, req.CohortID)
		if err != nil {
			if err == sql.ErrNoRows {
				return appErrors.Clone(appErrors.ErrNotFound, "cohort not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cohort")
		}
		program, err = s.programs.FindByID(ctx, cohort.ProgramID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program")
		}

		duplicate, err := tx.HasOpenEnrollment(ctx, req.CohortID, req.MemberID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check duplicates")
		}
		if duplicate {
			return appErrors.Clone(appErrors.ErrDuplicateEnrollment, "")
		}

		now := time.Now().UTC()
		if !cohort.Status.AcceptsEnrollment() {
			return appErrors.Clone(appErrors.ErrCohortNotOpen, fmt.Sprintf("cohort is %s", cohort.Status))
		}
		if cohort.Status == models.CohortActive {
			if !program.AllowMidEntry {
				return appErrors.Clone(appErrors.ErrMidEntryNotAllowed, "program does not allow mid-entry")
			}
			if week := cohort.ProgramWeek(now); week > program.MidEntryCutoffWeek {
				return appErrors.Clone(appErrors.ErrMidEntryNotAllowed,
					fmt.Sprintf("mid-entry closes after week %d, cohort is in week %d", program.MidEntryCutoffWeek, week))
			}
		}

		enrollment = &models.Enrollment{
			ID:               uuid.NewString(),
			CohortID:         req.CohortID,
			MemberID:         req.MemberID,
			Source:           req.Source,
			PaymentStatus:    models.PaymentPending,
			PriceSnapshot:    cohort.EffectivePrice(program),
			CurrencySnapshot: program.Currency,
			CreatedAt:        now,
		}
		if enrollment.PriceSnapshot == 0 {
			enrollment.PaymentStatus = models.PaymentWaived
		}

		if cohort.RequireApproval {
			enrollment.Status = models.EnrollmentPendingApproval
		} else {
			status, err := s.placeAgainstCapacity(ctx, tx, cohort, program, now)
			if err != nil {
				return err
			}
			enrollment.Status = status
			if status == models.EnrollmentEnrolled {
				enrollment.EnrolledAt = &now
			} else {
				enrollment.WaitlistedAt = &now
			}
		}
		if err := tx.Insert(ctx, enrollment); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, req.CohortID)
	s.metrics.RecordEnrollment(string(enrollment.Status))
	if enrollment.Status == models.EnrollmentEnrolled {
		s.requestPayment(ctx, enrollment, program)
	}
	return s.view(ctx, enrollment)
}

// Approve resolves a PENDING_APPROVAL enrollment against current capacity.
func (s *EnrollmentService) Approve(ctx context.Context, id string) (*EnrollmentView, error) {
	var enrollment *models.Enrollment
	var program *models.Program

	existing, err := s.store.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	unlock := s.locks.Lock(existing.CohortID)
	defer unlock()

	err = s.store.InCohortTx(ctx, func(tx repository.EnrollmentTx) error {
		cohort, err := tx.CohortForUpdate(ctx, existing.CohortID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cohort")
		}
		if !cohort.Status.AcceptsEnrollment() {
			return appErrors.Clone(appErrors.ErrCohortNotOpen, fmt.Sprintf("cohort is %s", cohort.Status))
		}
		enrollment, err = tx.Get(ctx, id)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
		}
		if enrollment.Status != models.EnrollmentPendingApproval {
			return appErrors.Clone(appErrors.ErrInvalidTransition,
				fmt.Sprintf("enrollment is %s, only pending_approval can be approved", enrollment.Status))
		}
		program, err = s.programs.FindByID(ctx, cohort.ProgramID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program")
		}

		now := time.Now().UTC()
		status, err := s.placeAgainstCapacity(ctx, tx, cohort, program, now)
		if err != nil {
			return err
		}
		enrollment.Status = status
		if status == models.EnrollmentEnrolled {
			enrollment.EnrolledAt = &now
		} else {
			enrollment.WaitlistedAt = &now
		}
		return tx.Update(ctx, enrollment)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, existing.CohortID)
	if enrollment.Status == models.EnrollmentEnrolled {
		s.requestPayment(ctx, enrollment, program)
	}
	return s.view(ctx, enrollment)
}

// Drop moves the enrollment to DROPPED. When the dropped enrollment held a
// seat, the oldest waitlisted member is promoted into it with a refreshed
// price snapshot.
func (s *EnrollmentService) Drop(ctx context.Context, id string) (*EnrollmentView, error) {
	existing, err := s.store.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	unlock := s.locks.Lock(existing.CohortID)
	defer unlock()

	var enrollment *models.Enrollment
	var promoted *models.Enrollment
	var program *models.Program
	err = s.store.InCohortTx(ctx, func(tx repository.EnrollmentTx) error {
		cohort, err := tx.CohortForUpdate(ctx, existing.CohortID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cohort")
		}
		enrollment, err = tx.Get(ctx, id)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
		}
		if enrollment.Status.Terminal() {
			return appErrors.Clone(appErrors.ErrTerminalState, fmt.Sprintf("enrollment is %s", enrollment.Status))
		}
		if !enrollment.Status.CanTransition(models.EnrollmentDropped) {
			return appErrors.Clone(appErrors.ErrInvalidTransition,
				fmt.Sprintf("cannot drop enrollment in %s", enrollment.Status))
		}

		heldSeat := enrollment.Status == models.EnrollmentEnrolled
		now := time.Now().UTC()
		enrollment.Status = models.EnrollmentDropped
		enrollment.LeftAt = &now
		if err := tx.Update(ctx, enrollment); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to drop enrollment")
		}

		if !heldSeat || cohort.Status.Terminal() {
			return nil
		}
		program, err = s.programs.FindByID(ctx, cohort.ProgramID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program")
		}
		promoted, err = s.promoteHead(ctx, tx, cohort, program, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, existing.CohortID)
	if promoted != nil {
		s.metrics.RecordPromotion()
		s.publish(models.EventEnrollmentPromoted, map[string]interface{}{
			"enrollment_id":  promoted.ID,
			"cohort_id":      promoted.CohortID,
			"member_id":      promoted.MemberID,
			"price_snapshot": promoted.PriceSnapshot,
		})
		s.requestPayment(ctx, promoted, program)
	}
	return s.view(ctx, enrollment)
}

// Graduate moves an ENROLLED enrollment to GRADUATED.
func (s *EnrollmentService) Graduate(ctx context.Context, id string) (*EnrollmentView, error) {
	existing, err := s.store.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	unlock := s.locks.Lock(existing.CohortID)
	defer unlock()

	var enrollment *models.Enrollment
	err = s.store.InCohortTx(ctx, func(tx repository.EnrollmentTx) error {
		enrollment, err = tx.Get(ctx, id)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
		}
		if enrollment.Status.Terminal() {
			return appErrors.Clone(appErrors.ErrTerminalState, fmt.Sprintf("enrollment is %s", enrollment.Status))
		}
		if !enrollment.Status.CanTransition(models.EnrollmentGraduated) {
			return appErrors.Clone(appErrors.ErrInvalidTransition,
				fmt.Sprintf("cannot graduate enrollment in %s", enrollment.Status))
		}
		now := time.Now().UTC()
		enrollment.Status = models.EnrollmentGraduated
		enrollment.LeftAt = &now
		return tx.Update(ctx, enrollment)
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, existing.CohortID)
	return s.view(ctx, enrollment)
}

// Get returns the enrollment with its waitlist position when applicable.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*EnrollmentView, error) {
	enrollment, err := s.store.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return s.view(ctx, enrollment)
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, *models.Pagination, error) {
	enrollments, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return enrollments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// UpdatePaymentStatus applies an external payment event. Payment state never
// drives the enrollment state machine.
func (s *EnrollmentService) UpdatePaymentStatus(ctx context.Context, id string, req UpdatePaymentStatusRequest) (*EnrollmentView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment status payload")
	}
	enrollment, err := s.store.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if err := s.store.UpdatePaymentStatus(ctx, id, req.PaymentStatus); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update payment status")
	}
	enrollment.PaymentStatus = req.PaymentStatus
	return s.view(ctx, enrollment)
}

// placeAgainstCapacity decides ENROLLED versus WAITLIST under the cohort row
// lock. An enrolled count above capacity means the serialization broke.
func (s *EnrollmentService) placeAgainstCapacity(ctx context.Context, tx repository.EnrollmentTx, cohort *models.Cohort, program *models.Program, now time.Time) (models.EnrollmentStatus, error) {
	capacity := cohort.EffectiveCapacity(program)
	enrolled, err := tx.CountByStatus(ctx, cohort.ID, models.EnrollmentEnrolled)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}
	if enrolled > capacity {
		s.logger.Error("enrolled count exceeds capacity",
			zap.String("cohort_id", cohort.ID), zap.Int("enrolled", enrolled), zap.Int("capacity", capacity))
		return "", appErrors.Clone(appErrors.ErrCapacityInvariantBroken, "")
	}
	if enrolled < capacity {
		return models.EnrollmentEnrolled, nil
	}
	return models.EnrollmentWaitlist, nil
}

// promoteHead promotes the FIFO head of the waitlist into the freed seat,
// refreshing its price snapshot to the cohort's current price.
func (s *EnrollmentService) promoteHead(ctx context.Context, tx repository.EnrollmentTx, cohort *models.Cohort, program *models.Program, now time.Time) (*models.Enrollment, error) {
	head, err := tx.OldestWaitlisted(ctx, cohort.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load waitlist head")
	}
	if head == nil {
		return nil, nil
	}
	head.Status = models.EnrollmentEnrolled
	head.EnrolledAt = &now
	head.PriceSnapshot = cohort.EffectivePrice(program)
	head.PaymentStatus = models.PaymentPending
	if head.PriceSnapshot == 0 {
		head.PaymentStatus = models.PaymentWaived
	}
	if err := tx.Update(ctx, head); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to promote waitlisted enrollment")
	}
	s.logger.Info("waitlisted enrollment promoted",
		zap.String("enrollment_id", head.ID),
		zap.String("cohort_id", cohort.ID),
		zap.Int64("price_snapshot", head.PriceSnapshot))
	return head, nil
}

// requestPayment asks the payment collaborator to start collection. Failures
// leave the enrollment payment-pending for manual follow-up; they never roll
// back the enrollment.
func (s *EnrollmentService) requestPayment(ctx context.Context, enrollment *models.Enrollment, program *models.Program) {
	if s.payments == nil || enrollment.PriceSnapshot <= 0 {
		return
	}
	description := "cohort enrollment"
	if program != nil {
		description = program.Name
	}
	err := s.payments.CreateIntent(ctx, models.PaymentIntentRequest{
		EnrollmentID: enrollment.ID,
		MemberID:     enrollment.MemberID,
		Amount:       enrollment.PriceSnapshot,
		Currency:     enrollment.CurrencySnapshot,
		Description:  description,
	})
	if err != nil {
		s.logger.Warn("payment intent creation failed, enrollment stays payment-pending",
			zap.String("enrollment_id", enrollment.ID), zap.Error(err))
	}
}

func (s *EnrollmentService) view(ctx context.Context, enrollment *models.Enrollment) (*EnrollmentView, error) {
	view := &EnrollmentView{Enrollment: *enrollment}
	if enrollment.Status == models.EnrollmentWaitlist {
		position, err := s.store.WaitlistPosition(ctx, enrollment)
		if err != nil {
			s.logger.Warn("failed to compute waitlist position", zap.String("enrollment_id", enrollment.ID), zap.Error(err))
		} else {
			view.WaitlistPosition = position
		}
	}
	return view, nil
}

func (s *EnrollmentService) publish(eventType models.EventType, payload map[string]interface{}) {
	if s.events == nil {
		return
	}
	s.events.Publish(models.Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	})
}

func (s *EnrollmentService) invalidate(ctx context.Context, cohortID string) {
	if s.cache != nil {
		s.cache.InvalidateCohort(ctx, cohortID)
	}
}
