package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/swimbuddz/academy-api/internal/models"
)

// EnrollmentRepository handles persistence of enrollments. All mutations that
// touch a cohort's capacity run inside InCohortTx, which locks the cohort row
// so the capacity check and the state write are atomic per cohort.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentColumns = `id, cohort_id, member_id, status, payment_status, source, price_snapshot,
        currency_snapshot, seq, created_at, enrolled_at, waitlisted_at, left_at, updated_at`

// EnrollmentTx exposes the queries available inside a per-cohort critical
// section.
type EnrollmentTx interface {
	// CohortForUpdate loads the cohort row under a row lock, serializing
	// concurrent capacity decisions for the same cohort.
	CohortForUpdate(ctx context.Context, cohortID string) (*models.Cohort, error)
	CountByStatus(ctx context.Context, cohortID string, status models.EnrollmentStatus) (int, error)
	HasOpenEnrollment(ctx context.Context, cohortID, memberID string) (bool, error)
	Get(ctx context.Context, id string) (*models.Enrollment, error)
	Insert(ctx context.Context, enrollment *models.Enrollment) error
	Update(ctx context.Context, enrollment *models.Enrollment) error
	// OldestWaitlisted returns the FIFO head of the cohort's waitlist, or nil.
	OldestWaitlisted(ctx context.Context, cohortID string) (*models.Enrollment, error)
}

type enrollmentTx struct {
	tx *sqlx.Tx
}

// InCohortTx runs fn inside a transaction. fn is expected to take the cohort
// row lock via CohortForUpdate before making capacity decisions.
func (r *EnrollmentRepository) InCohortTx(ctx context.Context, fn func(tx EnrollmentTx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enrollment tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(&enrollmentTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollment tx: %w", err)
	}
	return nil
}

func (t *enrollmentTx) CohortForUpdate(ctx context.Context, cohortID string) (*models.Cohort, error) {
	const query = `SELECT id, program_id, name, start_date, end_date, status, capacity, location_type,
        location_name, timezone, require_approval, price_override, complexity_score,
        required_coach_grade, score_dimensions, created_at, updated_at
        FROM cohorts WHERE id = $1 FOR UPDATE`
	var cohort models.Cohort
	if err := t.tx.GetContext(ctx, &cohort, query, cohortID); err != nil {
		return nil, err
	}
	return &cohort, nil
}

func (t *enrollmentTx) CountByStatus(ctx context.Context, cohortID string, status models.EnrollmentStatus) (int, error) {
	var count int
	if err := t.tx.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM enrollments WHERE cohort_id = $1 AND status = $2", cohortID, status); err != nil {
		return 0, fmt.Errorf("count enrollments: %w", err)
	}
	return count, nil
}

func (t *enrollmentTx) HasOpenEnrollment(ctx context.Context, cohortID, memberID string) (bool, error) {
	var exists int
	err := t.tx.GetContext(ctx, &exists,
		`SELECT 1 FROM enrollments WHERE cohort_id = $1 AND member_id = $2
         AND status IN ('pending_approval', 'waitlist', 'enrolled') LIMIT 1`, cohortID, memberID)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check open enrollment: %w", err)
	}
	return true, nil
}

func (t *enrollmentTx) Get(ctx context.Context, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE id = $1`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := t.tx.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

func (t *enrollmentTx) Insert(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = now
	}
	enrollment.UpdatedAt = now
	const query = `INSERT INTO enrollments (id, cohort_id, member_id, status, payment_status, source,
        price_snapshot, currency_snapshot, created_at, enrolled_at, waitlisted_at, left_at, updated_at)
        VALUES (:id, :cohort_id, :member_id, :status, :payment_status, :source, :price_snapshot,
        :currency_snapshot, :created_at, :enrolled_at, :waitlisted_at, :left_at, :updated_at)
        RETURNING seq`
	rows, err := t.tx.NamedQuery(query, enrollment)
	if err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&enrollment.Seq); err != nil {
			return fmt.Errorf("scan enrollment seq: %w", err)
		}
	}
	return nil
}

func (t *enrollmentTx) Update(ctx context.Context, enrollment *models.Enrollment) error {
	enrollment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE enrollments SET status = :status, payment_status = :payment_status,
        price_snapshot = :price_snapshot, enrolled_at = :enrolled_at, waitlisted_at = :waitlisted_at,
        left_at = :left_at, updated_at = :updated_at
        WHERE id = :id`
	if _, err := t.tx.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("update enrollment: %w", err)
	}
	return nil
}

func (t *enrollmentTx) OldestWaitlisted(ctx context.Context, cohortID string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments
        WHERE cohort_id = $1 AND status = 'waitlist'
        ORDER BY waitlisted_at ASC, seq ASC LIMIT 1`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := t.tx.GetContext(ctx, &enrollment, query, cohortID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find oldest waitlisted: %w", err)
	}
	return &enrollment, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE id = $1`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	var conditions []string
	var args []interface{}

	if filter.CohortID != "" {
		conditions = append(conditions, fmt.Sprintf("cohort_id = $%d", len(args)+1))
		args = append(args, filter.CohortID)
	}
	if filter.MemberID != "" {
		conditions = append(conditions, fmt.Sprintf("member_id = $%d", len(args)+1))
		args = append(args, filter.MemberID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
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

	query := fmt.Sprintf(`SELECT %s FROM enrollments%s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		enrollmentColumns, clause, size, offset)

	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM enrollments" + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// WaitlistPosition returns the 1-indexed FIFO position of a waitlisted
// enrollment, counting earlier waitlist entries for the same cohort.
func (r *EnrollmentRepository) WaitlistPosition(ctx context.Context, enrollment *models.Enrollment) (int, error) {
	var ahead int
	err := r.db.GetContext(ctx, &ahead,
		`SELECT COUNT(*) FROM enrollments
         WHERE cohort_id = $1 AND status = 'waitlist'
         AND (waitlisted_at < $2 OR (waitlisted_at = $2 AND seq < $3))`,
		enrollment.CohortID, enrollment.WaitlistedAt, enrollment.Seq)
	if err != nil {
		return 0, fmt.Errorf("waitlist position: %w", err)
	}
	return ahead + 1, nil
}

// ListEnrolledAt returns the enrollments that were in ENROLLED state at the
// given instant, regardless of their current state. Used to fix a payout
// block's revenue at block start.
func (r *EnrollmentRepository) ListEnrolledAt(ctx context.Context, cohortID string, at time.Time) ([]models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments
        WHERE cohort_id = $1 AND enrolled_at IS NOT NULL AND enrolled_at <= $2
        AND (left_at IS NULL OR left_at > $2)
        ORDER BY enrolled_at ASC, seq ASC`, enrollmentColumns)
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, cohortID, at); err != nil {
		return nil, fmt.Errorf("list enrolled at: %w", err)
	}
	return enrollments, nil
}

// UpdatePaymentStatus applies an external payment event to the enrollment. It
// never touches the enrollment state machine.
func (r *EnrollmentRepository) UpdatePaymentStatus(ctx context.Context, id string, status models.PaymentStatus) error {
	const query = `UPDATE enrollments SET payment_status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	return nil
}
