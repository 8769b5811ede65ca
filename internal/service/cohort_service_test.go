package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/swimbuddz/academy-api/internal/models"
	appErrors "github.com/swimbuddz/academy-api/pkg/errors"
)

// fakeCohortRepo keeps cohorts plus the enrollments and assignments the
// terminal cascades operate on.
type fakeCohortRepo struct {
	cohorts     map[string]*models.Cohort
	enrollments []*models.Enrollment
	assignments []*models.CoachAssignment
}

func newFakeCohortRepo() *fakeCohortRepo {
	return &fakeCohortRepo{cohorts: make(map[string]*models.Cohort)}
}

func (f *fakeCohortRepo) FindByID(ctx context.Context, id string) (*models.Cohort, error) {
	cohort, ok := f.cohorts[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *cohort
	return &copied, nil
}

func (f *fakeCohortRepo) FindDetailByID(ctx context.Context, id string) (*models.CohortDetail, error) {
	cohort, ok := f.cohorts[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	detail := &models.CohortDetail{Cohort: *cohort}
	for _, e := range f.enrollments {
		if e.CohortID != id {
			continue
		}
		switch e.Status {
		case models.EnrollmentEnrolled:
			detail.EnrolledCount++
		case models.EnrollmentWaitlist:
			detail.WaitlistCount++
		}
	}
	return detail, nil
}

func (f *fakeCohortRepo) List(ctx context.Context, filter models.CohortFilter) ([]models.Cohort, int, error) {
	var rows []models.Cohort
	for _, c := range f.cohorts {
		rows = append(rows, *c)
	}
	return rows, len(rows), nil
}

func (f *fakeCohortRepo) Create(ctx context.Context, cohort *models.Cohort) error {
	copied := *cohort
	f.cohorts[cohort.ID] = &copied
	return nil
}

func (f *fakeCohortRepo) Update(ctx context.Context, cohort *models.Cohort) error {
	copied := *cohort
	f.cohorts[cohort.ID] = &copied
	return nil
}

func (f *fakeCohortRepo) UpdateStatus(ctx context.Context, id string, status models.CohortStatus) error {
	if c, ok := f.cohorts[id]; ok {
		c.Status = status
	}
	return nil
}

func (f *fakeCohortRepo) CancelCascade(ctx context.Context, cohortID string) (*models.CancelCascadeResult, error) {
	f.cohorts[cohortID].Status = models.CohortCancelled
	result := &models.CancelCascadeResult{}
	now := time.Now().UTC()
	for _, e := range f.enrollments {
		if e.CohortID == cohortID && !e.Status.Terminal() {
			e.Status = models.EnrollmentDropped
			e.LeftAt = &now
			result.DroppedEnrollmentIDs = append(result.DroppedEnrollmentIDs, e.ID)
		}
	}
	for _, a := range f.assignments {
		if a.CohortID == cohortID && a.RemovedAt == nil {
			a.RemovedAt = &now
			result.RemovedAssignmentIDs = append(result.RemovedAssignmentIDs, a.ID)
		}
	}
	return result, nil
}

func (f *fakeCohortRepo) CompleteCascade(ctx context.Context, cohortID string) ([]string, error) {
	f.cohorts[cohortID].Status = models.CohortCompleted
	now := time.Now().UTC()
	var dropped []string
	for _, e := range f.enrollments {
		if e.CohortID != cohortID {
			continue
		}
		switch e.Status {
		case models.EnrollmentEnrolled:
			e.Status = models.EnrollmentGraduated
			e.LeftAt = &now
		case models.EnrollmentWaitlist, models.EnrollmentPendingApproval:
			e.Status = models.EnrollmentDropped
			e.LeftAt = &now
			dropped = append(dropped, e.ID)
		}
	}
	return dropped, nil
}

func cohortServiceFixture() (*fakeCohortRepo, *fakeProgramReader, *fakeEvents, *CohortService) {
	repo := newFakeCohortRepo()
	programs := &fakeProgramReader{programs: map[string]*models.Program{
		"prog-1": {
			ID:              "prog-1",
			Name:            "Learn to Swim 1",
			Category:        models.CategoryLearnToSwim,
			DurationWeeks:   8,
			DefaultCapacity: 10,
			PricePerBlock:   50000,
			Currency:        "EUR",
			Published:       true,
		},
	}}
	events := &fakeEvents{}
	scorer := NewScoringService(models.DefaultScoringConfig(), nil, nil)
	svc := NewCohortService(repo, programs, scorer, events, nil, nil, nil)
	return repo, programs, events, svc
}

func seedCohort(repo *fakeCohortRepo, status models.CohortStatus) {
	repo.cohorts["coh-1"] = &models.Cohort{
		ID:                 "coh-1",
		ProgramID:          "prog-1",
		Name:               "Spring Intake",
		StartDate:          time.Now().UTC().AddDate(0, 0, 7),
		EndDate:            time.Now().UTC().AddDate(0, 0, 63),
		Status:             status,
		Capacity:           intPtr(10),
		LocationType:       models.LocationPool,
		ComplexityScore:    intPtr(10),
		RequiredCoachGrade: gradePtr(models.Grade1),
	}
}

func TestCreateCohortScoresOnCreation(t *testing.T) {
	repo, _, _, svc := cohortServiceFixture()

	detail, err := svc.Create(context.Background(), CreateCohortRequest{
		ProgramID:    "prog-1",
		Name:         "Summer Intake",
		StartDate:    time.Now().UTC().AddDate(0, 0, 14),
		EndDate:      time.Now().UTC().AddDate(0, 0, 70),
		Capacity:     intPtr(10),
		LocationType: models.LocationPool,
	})
	require.NoError(t, err)
	require.Equal(t, models.CohortDraft, detail.Status)

	stored := repo.cohorts[detail.ID]
	require.NotNil(t, stored.ComplexityScore)
	// size 2 + category 2 + location 1 + special 1 + pilot 1 + duration 2 + cert 1 = 10
	require.Equal(t, 10, *stored.ComplexityScore)
	require.Equal(t, models.Grade1, *stored.RequiredCoachGrade)
	require.NotEmpty(t, stored.ScoreDimensions)
}

func TestCreateCohortRequiresPublishedProgram(t *testing.T) {
	_, programs, _, svc := cohortServiceFixture()
	programs.programs["prog-1"].Published = false

	_, err := svc.Create(context.Background(), CreateCohortRequest{
		ProgramID:    "prog-1",
		Name:         "Summer Intake",
		StartDate:    time.Now().UTC().AddDate(0, 0, 14),
		EndDate:      time.Now().UTC().AddDate(0, 0, 70),
		LocationType: models.LocationPool,
	})
	require.True(t, appErrors.Is(err, appErrors.ErrPreconditionFailed))
}

func TestUpdateCohortRescoresOnLocationChange(t *testing.T) {
	repo, _, _, svc := cohortServiceFixture()
	seedCohort(repo, models.CohortOpen)
	openWater := models.LocationOpenWater

	_, err := svc.Update(context.Background(), "coh-1", UpdateCohortRequest{LocationType: &openWater})
	require.NoError(t, err)

	stored := repo.cohorts["coh-1"]
	// Location moves from 1 to 5, lifting the total from 10 to 14.
	require.Equal(t, 14, *stored.ComplexityScore)
}

func TestUpdateCohortTerminalRejected(t *testing.T) {
	repo, _, _, svc := cohortServiceFixture()
	seedCohort(repo, models.CohortCompleted)
	name := "Renamed"

	_, err := svc.Update(context.Background(), "coh-1", UpdateCohortRequest{Name: &name})
	require.True(t, appErrors.Is(err, appErrors.ErrTerminalState))
}

func TestTransitionIllegalEdgeRejected(t *testing.T) {
	repo, _, _, svc := cohortServiceFixture()
	seedCohort(repo, models.CohortDraft)

	// draft can only move to open.
	_, err := svc.Transition(context.Background(), "coh-1", TransitionCohortRequest{Status: models.CohortActive})
	require.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))

	_, err = svc.Transition(context.Background(), "coh-1", TransitionCohortRequest{Status: models.CohortCancelled})
	require.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))

	detail, err := svc.Transition(context.Background(), "coh-1", TransitionCohortRequest{Status: models.CohortOpen})
	require.NoError(t, err)
	require.Equal(t, models.CohortOpen, detail.Status)
}

func TestTransitionPublishRequiresStoredScore(t *testing.T) {
	repo, _, _, svc := cohortServiceFixture()
	seedCohort(repo, models.CohortDraft)
	repo.cohorts["coh-1"].ComplexityScore = nil

	_, err := svc.Transition(context.Background(), "coh-1", TransitionCohortRequest{Status: models.CohortOpen})
	require.True(t, appErrors.Is(err, appErrors.ErrPreconditionFailed))
	require.Equal(t, models.CohortDraft, repo.cohorts["coh-1"].Status)
}

func TestTransitionTerminalRejected(t *testing.T) {
	repo, _, _, svc := cohortServiceFixture()
	seedCohort(repo, models.CohortCancelled)

	_, err := svc.Transition(context.Background(), "coh-1", TransitionCohortRequest{Status: models.CohortOpen})
	require.True(t, appErrors.Is(err, appErrors.ErrTerminalState))
}

func TestCancelCascadeDropsEveryOpenEnrollment(t *testing.T) {
	repo, _, events, svc := cohortServiceFixture()
	seedCohort(repo, models.CohortActive)
	for i, status := range []models.EnrollmentStatus{
		models.EnrollmentEnrolled, models.EnrollmentEnrolled, models.EnrollmentEnrolled,
		models.EnrollmentWaitlist, models.EnrollmentWaitlist,
	} {
		repo.enrollments = append(repo.enrollments, &models.Enrollment{
			ID: string(rune('a' + i)), CohortID: "coh-1", Status: status,
		})
	}
	repo.assignments = append(repo.assignments, &models.CoachAssignment{
		ID: "asg-1", CohortID: "coh-1", Role: models.RoleLead,
	})

	detail, err := svc.Transition(context.Background(), "coh-1", TransitionCohortRequest{Status: models.CohortCancelled})
	require.NoError(t, err)
	require.Equal(t, models.CohortCancelled, detail.Status)

	for _, e := range repo.enrollments {
		require.Equal(t, models.EnrollmentDropped, e.Status)
		require.NotNil(t, e.LeftAt)
	}
	require.NotNil(t, repo.assignments[0].RemovedAt)

	cancelled := events.ofType(models.EventCohortCancelled)
	require.Len(t, cancelled, 1)
	require.Len(t, cancelled[0].Payload["dropped_enrollment_ids"], 5)
	require.Len(t, cancelled[0].Payload["removed_assignment_ids"], 1)
}

func TestCompleteCascadeGraduatesSeatedAndDropsWaitlist(t *testing.T) {
	repo, _, _, svc := cohortServiceFixture()
	seedCohort(repo, models.CohortActive)
	repo.enrollments = append(repo.enrollments,
		&models.Enrollment{ID: "e1", CohortID: "coh-1", Status: models.EnrollmentEnrolled},
		&models.Enrollment{ID: "e2", CohortID: "coh-1", Status: models.EnrollmentWaitlist},
		&models.Enrollment{ID: "e3", CohortID: "coh-1", Status: models.EnrollmentDropped},
	)

	_, err := svc.Transition(context.Background(), "coh-1", TransitionCohortRequest{Status: models.CohortCompleted})
	require.NoError(t, err)

	require.Equal(t, models.EnrollmentGraduated, repo.enrollments[0].Status)
	require.Equal(t, models.EnrollmentDropped, repo.enrollments[1].Status)
	// Already-terminal rows are untouched.
	require.Nil(t, repo.enrollments[2].LeftAt)
}
