package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/swimbuddz/academy-api/internal/models"
	appErrors "github.com/swimbuddz/academy-api/pkg/errors"
)

type fakePayoutStore struct {
	payouts map[string]*models.Payout
	inserts int
	nextID  int
}

func newFakePayoutStore() *fakePayoutStore {
	return &fakePayoutStore{payouts: make(map[string]*models.Payout)}
}

func payoutKey(cohortID string, blockNumber int, coachID string) string {
	return fmt.Sprintf("%s|%d|%s", cohortID, blockNumber, coachID)
}

func (f *fakePayoutStore) InsertIfAbsent(ctx context.Context, payout *models.Payout) (bool, error) {
	key := payoutKey(payout.CohortID, payout.BlockNumber, payout.CoachID)
	if _, ok := f.payouts[key]; ok {
		return false, nil
	}
	f.nextID++
	payout.ID = fmt.Sprintf("pay-%d", f.nextID)
	copied := *payout
	f.payouts[key] = &copied
	f.inserts++
	return true, nil
}

func (f *fakePayoutStore) ExistsForBlock(ctx context.Context, cohortID string, blockNumber int) (bool, error) {
	for _, p := range f.payouts {
		if p.CohortID == cohortID && p.BlockNumber == blockNumber {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakePayoutStore) ListByCohortAndBlock(ctx context.Context, cohortID string, blockNumber int) ([]models.Payout, error) {
	var rows []models.Payout
	for _, p := range f.payouts {
		if p.CohortID == cohortID && p.BlockNumber == blockNumber {
			rows = append(rows, *p)
		}
	}
	return rows, nil
}

func (f *fakePayoutStore) ListByCohort(ctx context.Context, cohortID string) ([]models.Payout, error) {
	var rows []models.Payout
	for _, p := range f.payouts {
		if p.CohortID == cohortID {
			rows = append(rows, *p)
		}
	}
	return rows, nil
}

func (f *fakePayoutStore) MaxBlockNumber(ctx context.Context, cohortID string) (int, error) {
	max := 0
	for _, p := range f.payouts {
		if p.CohortID == cohortID && p.BlockNumber > max {
			max = p.BlockNumber
		}
	}
	return max, nil
}

func (f *fakePayoutStore) ListDetailByCoach(ctx context.Context, coachID string, from, to time.Time) ([]models.PayoutDetail, error) {
	var rows []models.PayoutDetail
	for _, p := range f.payouts {
		if p.CoachID == coachID && !p.BlockStart.Before(from) && p.BlockStart.Before(to) {
			rows = append(rows, models.PayoutDetail{Payout: *p})
		}
	}
	return rows, nil
}

func (f *fakePayoutStore) SumByCoach(ctx context.Context, coachID string, from, to time.Time) (int64, error) {
	var total int64
	for _, p := range f.payouts {
		if p.CoachID == coachID && !p.BlockStart.Before(from) && p.BlockStart.Before(to) {
			total += p.Amount
		}
	}
	return total, nil
}

type fakeEnrolledAtReader struct {
	enrollments []models.Enrollment
}

func (f *fakeEnrolledAtReader) ListEnrolledAt(ctx context.Context, cohortID string, at time.Time) ([]models.Enrollment, error) {
	var rows []models.Enrollment
	for _, e := range f.enrollments {
		if e.CohortID != cohortID || e.EnrolledAt == nil || e.EnrolledAt.After(at) {
			continue
		}
		if e.LeftAt != nil && !e.LeftAt.After(at) {
			continue
		}
		rows = append(rows, e)
	}
	return rows, nil
}

type fakeCohortLister struct {
	fakeCohortReader
}

func (f *fakeCohortLister) ListByStatus(ctx context.Context, statuses ...models.CohortStatus) ([]models.Cohort, error) {
	var rows []models.Cohort
	for _, c := range f.cohorts {
		for _, status := range statuses {
			if c.Status == status {
				rows = append(rows, *c)
				break
			}
		}
	}
	return rows, nil
}

type payoutFixture struct {
	store       *fakePayoutStore
	enrollments *fakeEnrolledAtReader
	assignments *fakeAssignmentStore
	cohorts     *fakeCohortLister
	programs    *fakeProgramReader
	events      *fakeEvents
	start       time.Time
}

// newPayoutFixture builds a 12-week learn_to_swim cohort that started five
// weeks ago with 8 seats filled at 50000 each and a grade_2 lead assigned
// before the start. Block 1 (weeks 1-4) has ended, block 2 has not.
func newPayoutFixture() *payoutFixture {
	start := time.Now().UTC().AddDate(0, 0, -35).Truncate(time.Hour)
	f := &payoutFixture{
		store:       newFakePayoutStore(),
		assignments: newFakeAssignmentStore(),
		events:      &fakeEvents{},
		start:       start,
	}
	f.cohorts = &fakeCohortLister{fakeCohortReader{cohorts: map[string]*models.Cohort{
		"coh-1": {
			ID:           "coh-1",
			ProgramID:    "prog-1",
			Name:         "Autumn Intake",
			StartDate:    start,
			EndDate:      start.AddDate(0, 0, 84),
			Status:       models.CohortActive,
			Capacity:     intPtr(8),
			LocationType: models.LocationPool,
		},
	}}}
	f.programs = &fakeProgramReader{programs: map[string]*models.Program{
		"prog-1": {
			ID:              "prog-1",
			Name:            "Learn to Swim 2",
			Category:        models.CategoryLearnToSwim,
			DurationWeeks:   12,
			DefaultCapacity: 8,
			PricePerBlock:   50000,
			Currency:        "EUR",
			Published:       true,
		},
	}}
	enrolledAt := start
	for i := 0; i < 8; i++ {
		f.enrollments = appendEnrolled(f.enrollments, "coh-1", fmt.Sprintf("m%d", i), 50000, enrolledAt)
	}
	f.assignments.assignments["asg-lead"] = &models.CoachAssignment{
		ID:                "asg-lead",
		CohortID:          "coh-1",
		CoachID:           "coach-lead",
		Role:              models.RoleLead,
		GradeAtAssignment: models.Grade2,
		Category:          models.CategoryLearnToSwim,
		AssignedAt:        start.AddDate(0, 0, -3),
	}
	return f
}

func appendEnrolled(r *fakeEnrolledAtReader, cohortID, memberID string, price int64, at time.Time) *fakeEnrolledAtReader {
	if r == nil {
		r = &fakeEnrolledAtReader{}
	}
	r.enrollments = append(r.enrollments, models.Enrollment{
		ID:            cohortID + "-" + memberID,
		CohortID:      cohortID,
		MemberID:      memberID,
		Status:        models.EnrollmentEnrolled,
		PriceSnapshot: price,
		EnrolledAt:    &at,
	})
	return r
}

func (f *payoutFixture) service() *PayoutService {
	return NewPayoutService(f.store, f.enrollments, f.assignments, f.cohorts, f.programs,
		models.DefaultScoringConfig(), models.DefaultPayoutConfig(), f.events, nil)
}

func TestComputeBlockLeadRevenueShare(t *testing.T) {
	f := newPayoutFixture()
	svc := f.service()

	payouts, err := svc.ComputeBlock(context.Background(), "coh-1", 1)
	require.NoError(t, err)
	require.Len(t, payouts, 1)

	payout := payouts[0]
	require.Equal(t, "coach-lead", payout.CoachID)
	require.Equal(t, 8, payout.EnrolledCount)
	require.Equal(t, int64(400000), payout.Revenue)
	require.Equal(t, 47, payout.BasePercent)
	require.Equal(t, 0, payout.ModifierTotal)
	require.Equal(t, int64(188000), payout.Amount)
	require.Equal(t, "EUR", payout.Currency)
	require.Len(t, f.events.ofType(models.EventPayoutComputed), 1)
}

func TestComputeBlockIdempotent(t *testing.T) {
	f := newPayoutFixture()
	svc := f.service()
	ctx := context.Background()

	first, err := svc.ComputeBlock(ctx, "coh-1", 1)
	require.NoError(t, err)
	second, err := svc.ComputeBlock(ctx, "coh-1", 1)
	require.NoError(t, err)

	require.Equal(t, 1, f.store.inserts)
	require.Equal(t, first[0].ID, second[0].ID)
	require.Equal(t, first[0].Amount, second[0].Amount)
	// Only the first computation announces itself.
	require.Len(t, f.events.ofType(models.EventPayoutComputed), 1)
}

func TestComputeBlockModifiersAdditive(t *testing.T) {
	f := newPayoutFixture()
	f.cohorts.cohorts["coh-1"].Capacity = intPtr(12)
	f.cohorts.cohorts["coh-1"].LocationType = models.LocationOpenWater
	f.programs.programs["prog-1"].Pilot = true
	f.assignments.assignments["asg-assist"] = &models.CoachAssignment{
		ID:                "asg-assist",
		CohortID:          "coh-1",
		CoachID:           "coach-assist",
		Role:              models.RoleAssistant,
		GradeAtAssignment: models.Grade1,
		Category:          models.CategoryLearnToSwim,
		AssignedAt:        f.start,
	}
	svc := f.service()

	payouts, err := svc.ComputeBlock(context.Background(), "coh-1", 1)
	require.NoError(t, err)
	require.Len(t, payouts, 1)

	// large_cohort +2, difficult_location +3, mentoring +2, pilot +2.
	require.Equal(t, 9, payouts[0].ModifierTotal)
	require.Equal(t, int64(400000*56/100), payouts[0].Amount)
}

func TestComputeBlockMidBlockDropKeepsRevenue(t *testing.T) {
	f := newPayoutFixture()
	// One member left a week into the block; the block-start snapshot stands.
	left := f.start.AddDate(0, 0, 7)
	f.enrollments.enrollments[0].LeftAt = &left
	svc := f.service()

	payouts, err := svc.ComputeBlock(context.Background(), "coh-1", 1)
	require.NoError(t, err)
	require.Equal(t, 8, payouts[0].EnrolledCount)
	require.Equal(t, int64(400000), payouts[0].Revenue)
}

func TestComputeBlockRejectsOpenBlock(t *testing.T) {
	f := newPayoutFixture()
	svc := f.service()

	// Block 2 runs weeks 5-8 and is still in progress.
	_, err := svc.ComputeBlock(context.Background(), "coh-1", 2)
	require.True(t, appErrors.Is(err, appErrors.ErrPreconditionFailed))
}

func TestComputeBlockRequiresLeadAtBlockStart(t *testing.T) {
	f := newPayoutFixture()
	// Lead removed before the block started.
	removed := f.start.AddDate(0, 0, -1)
	f.assignments.assignments["asg-lead"].RemovedAt = &removed
	svc := f.service()

	_, err := svc.ComputeBlock(context.Background(), "coh-1", 1)
	require.True(t, appErrors.Is(err, appErrors.ErrPreconditionFailed))
}

func TestComputeBlockRejectsCancelledCohort(t *testing.T) {
	f := newPayoutFixture()
	f.cohorts.cohorts["coh-1"].Status = models.CohortCancelled
	svc := f.service()

	_, err := svc.ComputeBlock(context.Background(), "coh-1", 1)
	require.True(t, appErrors.Is(err, appErrors.ErrPreconditionFailed))
}

func TestComputeBlockRejectsBlockBeyondCohortEnd(t *testing.T) {
	f := newPayoutFixture()
	svc := f.service()

	// A 12-week cohort has three 4-week blocks; block 4 starts at the end date.
	_, err := svc.ComputeBlock(context.Background(), "coh-1", 4)
	require.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestCloseDueBlocksSweepsClosedBlocks(t *testing.T) {
	f := newPayoutFixture()
	// Rewind the cohort so blocks 1 and 2 have both closed.
	f.cohorts.cohorts["coh-1"].StartDate = time.Now().UTC().AddDate(0, 0, -63)
	f.cohorts.cohorts["coh-1"].EndDate = f.cohorts.cohorts["coh-1"].StartDate.AddDate(0, 0, 84)
	f.assignments.assignments["asg-lead"].AssignedAt = f.cohorts.cohorts["coh-1"].StartDate.AddDate(0, 0, -3)
	enrolledAt := f.cohorts.cohorts["coh-1"].StartDate
	for i := range f.enrollments.enrollments {
		f.enrollments.enrollments[i].EnrolledAt = &enrolledAt
	}
	svc := f.service()

	computed, err := svc.CloseDueBlocks(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, computed)

	// A second sweep finds nothing new.
	computed, err = svc.CloseDueBlocks(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, computed)
}

func TestCoachEarningsWindow(t *testing.T) {
	f := newPayoutFixture()
	svc := f.service()
	ctx := context.Background()

	_, err := svc.ComputeBlock(ctx, "coh-1", 1)
	require.NoError(t, err)

	details, total, err := svc.CoachEarnings(ctx, "coach-lead", f.start.AddDate(0, 0, -1), time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, details, 1)
	require.Equal(t, int64(188000), total)
}
