package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/swimbuddz/academy-api/internal/models"
)

func TestPayoutRepositoryInsertIfAbsent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPayoutRepository(db)

	payout := &models.Payout{
		CohortID:      "coh-1",
		BlockNumber:   1,
		CoachID:       "coach-1",
		Role:          models.RoleLead,
		BlockStart:    time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		BlockEnd:      time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EnrolledCount: 8,
		Revenue:       400000,
		BasePercent:   47,
		ModifierTotal: 0,
		Modifiers:     []byte(`{}`),
		Grade:         models.Grade2,
		Category:      models.CategoryLearnToSwim,
		Amount:        188000,
		Currency:      "EUR",
	}

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (cohort_id, block_number, coach_id) DO NOTHING")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	inserted, err := repo.InsertIfAbsent(context.Background(), payout)
	require.NoError(t, err)
	require.True(t, inserted)
	require.NotEmpty(t, payout.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPayoutRepositoryInsertIfAbsentConflict(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPayoutRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (cohort_id, block_number, coach_id) DO NOTHING")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := repo.InsertIfAbsent(context.Background(), &models.Payout{
		CohortID: "coh-1", BlockNumber: 1, CoachID: "coach-1", Modifiers: []byte(`{}`),
	})
	require.NoError(t, err)
	require.False(t, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPayoutRepositoryMaxBlockNumber(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPayoutRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(block_number), 0) FROM payouts WHERE cohort_id = $1")).
		WithArgs("coh-1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(3))

	max, err := repo.MaxBlockNumber(context.Background(), "coh-1")
	require.NoError(t, err)
	require.Equal(t, 3, max)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPayoutRepositorySumByCoach(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPayoutRepository(db)

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(amount), 0) FROM payouts")).
		WithArgs("coach-1", from, to).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(int64(376000)))

	total, err := repo.SumByCoach(context.Background(), "coach-1", from, to)
	require.NoError(t, err)
	require.Equal(t, int64(376000), total)
	require.NoError(t, mock.ExpectationsWereMet())
}
