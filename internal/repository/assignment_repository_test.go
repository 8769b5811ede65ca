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

func assignmentRow() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "cohort_id", "coach_id", "role", "grade_at_assignment", "category", "assigned_at", "removed_at",
	}).AddRow("asg-1", "coh-1", "coach-1", models.RoleLead, models.Grade2,
		models.CategoryLearnToSwim, time.Now(), nil)
}

func TestAssignmentRepositoryFindActiveLead(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("role = 'lead' AND removed_at IS NULL LIMIT 1")).
		WithArgs("coh-1").
		WillReturnRows(assignmentRow())

	lead, err := repo.FindActiveLead(context.Background(), "coh-1")
	require.NoError(t, err)
	require.NotNil(t, lead)
	require.Equal(t, "coach-1", lead.CoachID)
	require.True(t, lead.Active())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryFindActiveLeadNone(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("role = 'lead' AND removed_at IS NULL LIMIT 1")).
		WithArgs("coh-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	lead, err := repo.FindActiveLead(context.Background(), "coh-1")
	require.NoError(t, err)
	require.Nil(t, lead)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositorySoftRemoveOnlyActive(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("SET removed_at = $2 WHERE id = $1 AND removed_at IS NULL")).
		WithArgs("asg-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SoftRemove(context.Background(), "asg-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryHasActiveAssignment(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE cohort_id = $1 AND coach_id = $2 AND removed_at IS NULL LIMIT 1")).
		WithArgs("coh-1", "coach-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(1))

	exists, err := repo.HasActiveAssignment(context.Background(), "coh-1", "coach-1")
	require.NoError(t, err)
	require.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}
