package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/swimbuddz/academy-api/internal/models"
)

// PayoutRepository handles persistence of payout records. A unique index on
// (cohort_id, block_number, coach_id) makes block computation at-most-once.
type PayoutRepository struct {
	db *sqlx.DB
}

// NewPayoutRepository constructs the repository.
func NewPayoutRepository(db *sqlx.DB) *PayoutRepository {
	return &PayoutRepository{db: db}
}

const payoutColumns = `id, cohort_id, block_number, coach_id, role, block_start, block_end,
        enrolled_count, revenue, base_percent, modifier_total, modifiers, grade, category,
        amount, currency, computed_at`

// InsertIfAbsent stores the payout unless the (cohort, block, coach) row
// already exists. Returns true when the row was inserted.
func (r *PayoutRepository) InsertIfAbsent(ctx context.Context, payout *models.Payout) (bool, error) {
	if payout.ID == "" {
		payout.ID = uuid.NewString()
	}
	if payout.ComputedAt.IsZero() {
		payout.ComputedAt = time.Now().UTC()
	}
	const query = `INSERT INTO payouts (id, cohort_id, block_number, coach_id, role, block_start,
        block_end, enrolled_count, revenue, base_percent, modifier_total, modifiers, grade,
        category, amount, currency, computed_at)
        VALUES (:id, :cohort_id, :block_number, :coach_id, :role, :block_start, :block_end,
        :enrolled_count, :revenue, :base_percent, :modifier_total, :modifiers, :grade,
        :category, :amount, :currency, :computed_at)
        ON CONFLICT (cohort_id, block_number, coach_id) DO NOTHING`
	result, err := r.db.NamedExecContext(ctx, query, payout)
	if err != nil {
		return false, fmt.Errorf("insert payout: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert payout rows affected: %w", err)
	}
	return rows > 0, nil
}

// ExistsForBlock reports whether any payout is already recorded for the
// cohort's block.
func (r *PayoutRepository) ExistsForBlock(ctx context.Context, cohortID string, blockNumber int) (bool, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM payouts WHERE cohort_id = $1 AND block_number = $2", cohortID, blockNumber)
	if err != nil {
		return false, fmt.Errorf("check payout block: %w", err)
	}
	return count > 0, nil
}

// ListByCohortAndBlock returns the stored rows for one closed block.
func (r *PayoutRepository) ListByCohortAndBlock(ctx context.Context, cohortID string, blockNumber int) ([]models.Payout, error) {
	query := fmt.Sprintf(`SELECT %s FROM payouts
        WHERE cohort_id = $1 AND block_number = $2 ORDER BY role ASC, coach_id ASC`, payoutColumns)
	var payouts []models.Payout
	if err := r.db.SelectContext(ctx, &payouts, query, cohortID, blockNumber); err != nil {
		return nil, fmt.Errorf("list payouts for block: %w", err)
	}
	return payouts, nil
}

// ListByCohort returns all payouts recorded for a cohort.
func (r *PayoutRepository) ListByCohort(ctx context.Context, cohortID string) ([]models.Payout, error) {
	query := fmt.Sprintf(`SELECT %s FROM payouts
        WHERE cohort_id = $1 ORDER BY block_number ASC, role ASC`, payoutColumns)
	var payouts []models.Payout
	if err := r.db.SelectContext(ctx, &payouts, query, cohortID); err != nil {
		return nil, fmt.Errorf("list cohort payouts: %w", err)
	}
	return payouts, nil
}

// MaxBlockNumber returns the highest block already computed for the cohort,
// zero when none exist.
func (r *PayoutRepository) MaxBlockNumber(ctx context.Context, cohortID string) (int, error) {
	var max int
	err := r.db.GetContext(ctx, &max,
		"SELECT COALESCE(MAX(block_number), 0) FROM payouts WHERE cohort_id = $1", cohortID)
	if err != nil {
		return 0, fmt.Errorf("max payout block: %w", err)
	}
	return max, nil
}

// ListDetailByCoach returns a coach's payouts with cohort and program names
// for the given period.
func (r *PayoutRepository) ListDetailByCoach(ctx context.Context, coachID string, from, to time.Time) ([]models.PayoutDetail, error) {
	const query = `SELECT po.id, po.cohort_id, po.block_number, po.coach_id, po.role, po.block_start,
        po.block_end, po.enrolled_count, po.revenue, po.base_percent, po.modifier_total, po.modifiers,
        po.grade, po.category, po.amount, po.currency, po.computed_at,
        c.name AS cohort_name, p.name AS program_name
        FROM payouts po
        JOIN cohorts c ON c.id = po.cohort_id
        JOIN programs p ON p.id = c.program_id
        WHERE po.coach_id = $1 AND po.block_start >= $2 AND po.block_start < $3
        ORDER BY po.block_start ASC, po.cohort_id ASC`
	var details []models.PayoutDetail
	if err := r.db.SelectContext(ctx, &details, query, coachID, from, to); err != nil {
		return nil, fmt.Errorf("list coach payouts: %w", err)
	}
	return details, nil
}

// SumByCoach returns the coach's total earnings in the given period.
func (r *PayoutRepository) SumByCoach(ctx context.Context, coachID string, from, to time.Time) (int64, error) {
	var total int64
	err := r.db.GetContext(ctx, &total,
		`SELECT COALESCE(SUM(amount), 0) FROM payouts
         WHERE coach_id = $1 AND block_start >= $2 AND block_start < $3`, coachID, from, to)
	if err != nil {
		return 0, fmt.Errorf("sum coach payouts: %w", err)
	}
	return total, nil
}
