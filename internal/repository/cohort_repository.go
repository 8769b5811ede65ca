package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/swimbuddz/academy-api/internal/models"
)

// CohortRepository handles persistence of cohorts and their lifecycle
// cascades.
type CohortRepository struct {
	db *sqlx.DB
}

// NewCohortRepository constructs the repository.
func NewCohortRepository(db *sqlx.DB) *CohortRepository {
	return &CohortRepository{db: db}
}

const cohortColumns = `id, program_id, name, start_date, end_date, status, capacity, location_type,
        location_name, timezone, require_approval, price_override, complexity_score,
        required_coach_grade, score_dimensions, created_at, updated_at`

// FindByID returns a cohort by its ID.
func (r *CohortRepository) FindByID(ctx context.Context, id string) (*models.Cohort, error) {
	query := fmt.Sprintf(`SELECT %s FROM cohorts WHERE id = $1`, cohortColumns)
	var cohort models.Cohort
	if err := r.db.GetContext(ctx, &cohort, query, id); err != nil {
		return nil, err
	}
	return &cohort, nil
}

// FindDetailByID returns a cohort with program info and live counts.
func (r *CohortRepository) FindDetailByID(ctx context.Context, id string) (*models.CohortDetail, error) {
	const query = `SELECT c.id, c.program_id, c.name, c.start_date, c.end_date, c.status, c.capacity,
        c.location_type, c.location_name, c.timezone, c.require_approval, c.price_override,
        c.complexity_score, c.required_coach_grade, c.score_dimensions, c.created_at, c.updated_at,
        p.name AS program_name, p.category AS program_category,
        COALESCE(e.enrolled_count, 0) AS enrolled_count,
        COALESCE(e.waitlist_count, 0) AS waitlist_count
        FROM cohorts c
        JOIN programs p ON p.id = c.program_id
        LEFT JOIN (
            SELECT cohort_id,
                COUNT(*) FILTER (WHERE status = 'enrolled') AS enrolled_count,
                COUNT(*) FILTER (WHERE status = 'waitlist') AS waitlist_count
            FROM enrollments GROUP BY cohort_id
        ) e ON e.cohort_id = c.id
        WHERE c.id = $1`
	var detail models.CohortDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// List returns cohorts filtered by the provided criteria.
func (r *CohortRepository) List(ctx context.Context, filter models.CohortFilter) ([]models.Cohort, int, error) {
	var conditions []string
	var args []interface{}

	if filter.ProgramID != "" {
		conditions = append(conditions, fmt.Sprintf("program_id = $%d", len(args)+1))
		args = append(args, filter.ProgramID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"start_date": "start_date",
		"name":       "name",
		"created_at": "created_at",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "start_date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM cohorts%s ORDER BY %s %s LIMIT %d OFFSET %d`,
		cohortColumns, clause, orderBy, order, size, offset)

	var cohorts []models.Cohort
	if err := r.db.SelectContext(ctx, &cohorts, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list cohorts: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM cohorts" + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count cohorts: %w", err)
	}
	return cohorts, total, nil
}

// ListByStatus returns cohorts in any of the given states. Used by the payout
// sweep.
func (r *CohortRepository) ListByStatus(ctx context.Context, statuses ...models.CohortStatus) ([]models.Cohort, error) {
	placeholders := make([]string, len(statuses))
	args := make([]interface{}, len(statuses))
	for i, status := range statuses {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = status
	}
	query := fmt.Sprintf(`SELECT %s FROM cohorts WHERE status IN (%s)`,
		cohortColumns, strings.Join(placeholders, ","))
	var cohorts []models.Cohort
	if err := r.db.SelectContext(ctx, &cohorts, query, args...); err != nil {
		return nil, fmt.Errorf("list cohorts by status: %w", err)
	}
	return cohorts, nil
}

// Create persists a new cohort.
func (r *CohortRepository) Create(ctx context.Context, cohort *models.Cohort) error {
	if cohort.ID == "" {
		cohort.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	cohort.CreatedAt = now
	cohort.UpdatedAt = now
	const query = `INSERT INTO cohorts (id, program_id, name, start_date, end_date, status, capacity,
        location_type, location_name, timezone, require_approval, price_override,
        complexity_score, required_coach_grade, score_dimensions, created_at, updated_at)
        VALUES (:id, :program_id, :name, :start_date, :end_date, :status, :capacity,
        :location_type, :location_name, :timezone, :require_approval, :price_override,
        :complexity_score, :required_coach_grade, :score_dimensions, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, cohort); err != nil {
		return fmt.Errorf("create cohort: %w", err)
	}
	return nil
}

// Update persists cohort attribute edits, including refreshed scoring output.
func (r *CohortRepository) Update(ctx context.Context, cohort *models.Cohort) error {
	cohort.UpdatedAt = time.Now().UTC()
	const query = `UPDATE cohorts SET name = :name, start_date = :start_date, end_date = :end_date,
        capacity = :capacity, location_type = :location_type, location_name = :location_name,
        timezone = :timezone, require_approval = :require_approval, price_override = :price_override,
        complexity_score = :complexity_score, required_coach_grade = :required_coach_grade,
        score_dimensions = :score_dimensions, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, cohort); err != nil {
		return fmt.Errorf("update cohort: %w", err)
	}
	return nil
}

// UpdateStatus moves the cohort to the given state. Callers validate the edge
// first; this is a plain write.
func (r *CohortRepository) UpdateStatus(ctx context.Context, id string, status models.CohortStatus) error {
	const query = `UPDATE cohorts SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update cohort status: %w", err)
	}
	return nil
}

// CancelCascade atomically cancels the cohort: every non-terminal enrollment
// becomes DROPPED and every active assignment is soft-removed. The statements
// only touch non-terminal rows, so retrying an interrupted cancel is a no-op
// for rows already cascaded.
func (r *CohortRepository) CancelCascade(ctx context.Context, cohortID string) (*models.CancelCascadeResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin cancel cascade: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	result := &models.CancelCascadeResult{}

	rows, err := tx.QueryxContext(ctx,
		`UPDATE enrollments SET status = 'dropped', left_at = $2, updated_at = $2
         WHERE cohort_id = $1 AND status IN ('pending_approval', 'waitlist', 'enrolled')
         RETURNING id`, cohortID, now)
	if err != nil {
		return nil, fmt.Errorf("cascade drop enrollments: %w", err)
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan dropped enrollment id: %w", err)
		}
		result.DroppedEnrollmentIDs = append(result.DroppedEnrollmentIDs, id)
	}
	rows.Close()

	rows, err = tx.QueryxContext(ctx,
		`UPDATE coach_assignments SET removed_at = $2
         WHERE cohort_id = $1 AND removed_at IS NULL
         RETURNING id`, cohortID, now)
	if err != nil {
		return nil, fmt.Errorf("cascade remove assignments: %w", err)
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan removed assignment id: %w", err)
		}
		result.RemovedAssignmentIDs = append(result.RemovedAssignmentIDs, id)
	}
	rows.Close()

	if _, err := tx.ExecContext(ctx,
		`UPDATE cohorts SET status = 'cancelled', updated_at = $2 WHERE id = $1`, cohortID, now); err != nil {
		return nil, fmt.Errorf("cascade cancel cohort: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit cancel cascade: %w", err)
	}
	return result, nil
}

// CompleteCascade atomically completes the cohort, dropping any remaining
// waitlist entries since no further promotion is possible.
func (r *CohortRepository) CompleteCascade(ctx context.Context, cohortID string) ([]string, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin complete cascade: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	var droppedIDs []string

	rows, err := tx.QueryxContext(ctx,
		`UPDATE enrollments SET status = 'dropped', left_at = $2, updated_at = $2
         WHERE cohort_id = $1 AND status = 'waitlist'
         RETURNING id`, cohortID, now)
	if err != nil {
		return nil, fmt.Errorf("cascade drop waitlist: %w", err)
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan dropped waitlist id: %w", err)
		}
		droppedIDs = append(droppedIDs, id)
	}
	rows.Close()

	if _, err := tx.ExecContext(ctx,
		`UPDATE cohorts SET status = 'completed', updated_at = $2 WHERE id = $1`, cohortID, now); err != nil {
		return nil, fmt.Errorf("cascade complete cohort: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit complete cascade: %w", err)
	}
	return droppedIDs, nil
}
