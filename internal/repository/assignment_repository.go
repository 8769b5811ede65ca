package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/swimbuddz/academy-api/internal/models"
)

// AssignmentRepository handles persistence of coach assignments. Removal is a
// soft delete so payout history stays intact.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

const assignmentColumns = `id, cohort_id, coach_id, role, grade_at_assignment, category, assigned_at, removed_at`

// Insert persists a new assignment.
func (r *AssignmentRepository) Insert(ctx context.Context, assignment *models.CoachAssignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.AssignedAt.IsZero() {
		assignment.AssignedAt = time.Now().UTC()
	}
	const query = `INSERT INTO coach_assignments (id, cohort_id, coach_id, role, grade_at_assignment,
        category, assigned_at)
        VALUES (:id, :cohort_id, :coach_id, :role, :grade_at_assignment, :category, :assigned_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// FindByID returns an assignment by its ID.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.CoachAssignment, error) {
	query := fmt.Sprintf(`SELECT %s FROM coach_assignments WHERE id = $1`, assignmentColumns)
	var assignment models.CoachAssignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// ListActiveByCohort returns the assignments that have not been removed,
// leads first.
func (r *AssignmentRepository) ListActiveByCohort(ctx context.Context, cohortID string) ([]models.CoachAssignment, error) {
	query := fmt.Sprintf(`SELECT %s FROM coach_assignments
        WHERE cohort_id = $1 AND removed_at IS NULL
        ORDER BY role ASC, assigned_at ASC`, assignmentColumns)
	var assignments []models.CoachAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, cohortID); err != nil {
		return nil, fmt.Errorf("list active assignments: %w", err)
	}
	return assignments, nil
}

// ListByCohort returns all assignments for a cohort including removed ones.
func (r *AssignmentRepository) ListByCohort(ctx context.Context, cohortID string) ([]models.CoachAssignment, error) {
	query := fmt.Sprintf(`SELECT %s FROM coach_assignments
        WHERE cohort_id = $1 ORDER BY assigned_at ASC`, assignmentColumns)
	var assignments []models.CoachAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, cohortID); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}

// ListActiveByCoach returns a coach's current assignments across cohorts.
func (r *AssignmentRepository) ListActiveByCoach(ctx context.Context, coachID string) ([]models.CoachAssignment, error) {
	query := fmt.Sprintf(`SELECT %s FROM coach_assignments
        WHERE coach_id = $1 AND removed_at IS NULL
        ORDER BY assigned_at DESC`, assignmentColumns)
	var assignments []models.CoachAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, coachID); err != nil {
		return nil, fmt.Errorf("list coach assignments: %w", err)
	}
	return assignments, nil
}

// FindActiveLead returns the cohort's active lead assignment, or nil.
func (r *AssignmentRepository) FindActiveLead(ctx context.Context, cohortID string) (*models.CoachAssignment, error) {
	query := fmt.Sprintf(`SELECT %s FROM coach_assignments
        WHERE cohort_id = $1 AND role = 'lead' AND removed_at IS NULL LIMIT 1`, assignmentColumns)
	var assignment models.CoachAssignment
	if err := r.db.GetContext(ctx, &assignment, query, cohortID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find active lead: %w", err)
	}
	return &assignment, nil
}

// HasActiveAssignment reports whether the coach already serves the cohort.
func (r *AssignmentRepository) HasActiveAssignment(ctx context.Context, cohortID, coachID string) (bool, error) {
	var exists int
	err := r.db.GetContext(ctx, &exists,
		`SELECT 1 FROM coach_assignments
         WHERE cohort_id = $1 AND coach_id = $2 AND removed_at IS NULL LIMIT 1`, cohortID, coachID)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check active assignment: %w", err)
	}
	return true, nil
}

// SoftRemove marks the assignment removed. Already-removed rows are left
// untouched so the original removal time survives retries.
func (r *AssignmentRepository) SoftRemove(ctx context.Context, id string) error {
	const query = `UPDATE coach_assignments SET removed_at = $2 WHERE id = $1 AND removed_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("remove assignment: %w", err)
	}
	return nil
}
