package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/swimbuddz/academy-api/internal/models"
	appErrors "github.com/swimbuddz/academy-api/pkg/errors"
)

type assignmentStore interface {
	Insert(ctx context.Context, assignment *models.CoachAssignment) error
	FindByID(ctx context.Context, id string) (*models.CoachAssignment, error)
	ListActiveByCohort(ctx context.Context, cohortID string) ([]models.CoachAssignment, error)
	ListByCohort(ctx context.Context, cohortID string) ([]models.CoachAssignment, error)
	ListActiveByCoach(ctx context.Context, coachID string) ([]models.CoachAssignment, error)
	FindActiveLead(ctx context.Context, cohortID string) (*models.CoachAssignment, error)
	HasActiveAssignment(ctx context.Context, cohortID, coachID string) (bool, error)
	SoftRemove(ctx context.Context, id string) error
}

type cohortReader interface {
	FindByID(ctx context.Context, id string) (*models.Cohort, error)
}

// AssignCoachRequest describes a coach assignment attempt.
type AssignCoachRequest struct {
	CohortID string                `json:"cohort_id" validate:"required"`
	CoachID  string                `json:"coach_id" validate:"required"`
	Role     models.AssignmentRole `json:"role" validate:"required,oneof=lead assistant"`
}

// AssignmentService matches coaches to cohorts by per-category grade. The
// grade is snapshotted at assignment time; later grade changes never rewrite
// existing assignments.
type AssignmentService struct {
	store     assignmentStore
	cohorts   cohortReader
	programs  programReader
	directory memberDirectory
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAssignmentService constructs AssignmentService.
func NewAssignmentService(store assignmentStore, cohorts cohortReader, programs programReader, directory memberDirectory, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{store: store, cohorts: cohorts, programs: programs, directory: directory, validator: validate, logger: logger}
}

// Assign places a coach on a cohort after grade matching. A coach with no
// grade in the cohort's category is ineligible; a higher grade than required
// is always eligible; grade 1 may never deliver certification programs.
func (s *AssignmentService) Assign(ctx context.Context, req AssignCoachRequest) (*models.CoachAssignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	cohort, err := s.cohorts.FindByID(ctx, req.CohortID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "cohort not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cohort")
	}
	if cohort.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrTerminalState, fmt.Sprintf("cohort is %s", cohort.Status))
	}
	if !cohort.Status.AcceptsAssignment() {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("cohort in %s does not accept assignments", cohort.Status))
	}
	program, err := s.programs.FindByID(ctx, cohort.ProgramID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program")
	}

	coach, err := s.directory.GetCoachProfile(ctx, req.CoachID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load coach")
	}
	if coach == nil || !coach.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "coach not found or inactive")
	}

	grade := coach.GradeFor(program.Category)
	if !grade.Valid() {
		return nil, appErrors.Clone(appErrors.ErrGradeTooLow,
			fmt.Sprintf("coach holds no grade in category %s", program.Category))
	}
	required := models.Grade1
	if cohort.RequiredCoachGrade != nil {
		required = *cohort.RequiredCoachGrade
	}
	if !grade.Meets(required) {
		return nil, appErrors.Clone(appErrors.ErrGradeTooLow,
			fmt.Sprintf("cohort requires %s, coach holds %s", required, grade))
	}
	if program.RequiresCertification() && grade == models.Grade1 {
		return nil, appErrors.Clone(appErrors.ErrGradeTooLow, "grade_1 coaches may not deliver certification programs")
	}

	duplicate, err := s.store.HasActiveAssignment(ctx, req.CohortID, req.CoachID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check assignments")
	}
	if duplicate {
		return nil, appErrors.Clone(appErrors.ErrConflict, "coach already assigned to cohort")
	}
	if req.Role == models.RoleLead {
		lead, err := s.store.FindActiveLead(ctx, req.CohortID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check lead assignment")
		}
		if lead != nil {
			return nil, appErrors.Clone(appErrors.ErrConflict, "cohort already has an active lead coach")
		}
	}

	assignment := &models.CoachAssignment{
		CohortID:          req.CohortID,
		CoachID:           req.CoachID,
		Role:              req.Role,
		GradeAtAssignment: grade,
		Category:          program.Category,
		AssignedAt:        time.Now().UTC(),
	}
	if err := s.store.Insert(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}
	s.logger.Info("coach assigned",
		zap.String("cohort_id", req.CohortID),
		zap.String("coach_id", req.CoachID),
		zap.String("role", string(req.Role)),
		zap.String("grade", string(grade)))
	return assignment, nil
}

// Remove soft-deletes an active assignment. Payout rows already computed from
// it are untouched.
func (s *AssignmentService) Remove(ctx context.Context, id string) (*models.CoachAssignment, error) {
	assignment, err := s.store.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if !assignment.Active() {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "assignment already removed")
	}
	if err := s.store.SoftRemove(ctx, id); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove assignment")
	}
	now := time.Now().UTC()
	assignment.RemovedAt = &now
	return assignment, nil
}

// ListByCohort returns a cohort's assignments, optionally including removed
// ones.
func (s *AssignmentService) ListByCohort(ctx context.Context, cohortID string, includeRemoved bool) ([]models.CoachAssignment, error) {
	var assignments []models.CoachAssignment
	var err error
	if includeRemoved {
		assignments, err = s.store.ListByCohort(ctx, cohortID)
	} else {
		assignments, err = s.store.ListActiveByCohort(ctx, cohortID)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return assignments, nil
}

// ListByCoach returns a coach's active assignments.
func (s *AssignmentService) ListByCoach(ctx context.Context, coachID string) ([]models.CoachAssignment, error) {
	assignments, err := s.store.ListActiveByCoach(ctx, coachID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return assignments, nil
}
