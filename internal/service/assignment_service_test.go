package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/swimbuddz/academy-api/internal/models"
	appErrors "github.com/swimbuddz/academy-api/pkg/errors"
)

type fakeAssignmentStore struct {
	assignments map[string]*models.CoachAssignment
	nextID      int
}

func newFakeAssignmentStore() *fakeAssignmentStore {
	return &fakeAssignmentStore{assignments: make(map[string]*models.CoachAssignment)}
}

func (f *fakeAssignmentStore) Insert(ctx context.Context, assignment *models.CoachAssignment) error {
	f.nextID++
	assignment.ID = fmt.Sprintf("asg-%d", f.nextID)
	copied := *assignment
	f.assignments[assignment.ID] = &copied
	return nil
}

func (f *fakeAssignmentStore) FindByID(ctx context.Context, id string) (*models.CoachAssignment, error) {
	assignment, ok := f.assignments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *assignment
	return &copied, nil
}

func (f *fakeAssignmentStore) ListActiveByCohort(ctx context.Context, cohortID string) ([]models.CoachAssignment, error) {
	var active []models.CoachAssignment
	for _, a := range f.assignments {
		if a.CohortID == cohortID && a.RemovedAt == nil {
			active = append(active, *a)
		}
	}
	return active, nil
}

func (f *fakeAssignmentStore) ListByCohort(ctx context.Context, cohortID string) ([]models.CoachAssignment, error) {
	var all []models.CoachAssignment
	for _, a := range f.assignments {
		if a.CohortID == cohortID {
			all = append(all, *a)
		}
	}
	return all, nil
}

func (f *fakeAssignmentStore) ListActiveByCoach(ctx context.Context, coachID string) ([]models.CoachAssignment, error) {
	var active []models.CoachAssignment
	for _, a := range f.assignments {
		if a.CoachID == coachID && a.RemovedAt == nil {
			active = append(active, *a)
		}
	}
	return active, nil
}

func (f *fakeAssignmentStore) FindActiveLead(ctx context.Context, cohortID string) (*models.CoachAssignment, error) {
	for _, a := range f.assignments {
		if a.CohortID == cohortID && a.Role == models.RoleLead && a.RemovedAt == nil {
			copied := *a
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeAssignmentStore) HasActiveAssignment(ctx context.Context, cohortID, coachID string) (bool, error) {
	for _, a := range f.assignments {
		if a.CohortID == cohortID && a.CoachID == coachID && a.RemovedAt == nil {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAssignmentStore) SoftRemove(ctx context.Context, id string) error {
	if a, ok := f.assignments[id]; ok && a.RemovedAt == nil {
		now := time.Now().UTC()
		a.RemovedAt = &now
	}
	return nil
}

type fakeCohortReader struct {
	cohorts map[string]*models.Cohort
}

func (f *fakeCohortReader) FindByID(ctx context.Context, id string) (*models.Cohort, error) {
	cohort, ok := f.cohorts[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *cohort
	return &copied, nil
}

func gradePtr(g models.CoachGrade) *models.CoachGrade { return &g }

func assignmentFixture() (*fakeAssignmentStore, *fakeCohortReader, *fakeProgramReader, *fakeDirectory) {
	store := newFakeAssignmentStore()
	cohorts := &fakeCohortReader{cohorts: map[string]*models.Cohort{
		"coh-1": {
			ID:                 "coh-1",
			ProgramID:          "prog-1",
			Status:             models.CohortOpen,
			StartDate:          time.Now().UTC().AddDate(0, 0, 7),
			EndDate:            time.Now().UTC().AddDate(0, 0, 63),
			RequiredCoachGrade: gradePtr(models.Grade2),
		},
	}}
	programs := &fakeProgramReader{programs: map[string]*models.Program{
		"prog-1": {
			ID:        "prog-1",
			Name:      "Stroke Development",
			Category:  models.CategoryLearnToSwim,
			Published: true,
		},
	}}
	directory := &fakeDirectory{coaches: map[string]*models.CoachProfile{
		"coach-g1": {ID: "coach-g1", Active: true, Grades: map[models.ProgramCategory]models.CoachGrade{
			models.CategoryLearnToSwim: models.Grade1,
		}},
		"coach-g2": {ID: "coach-g2", Active: true, Grades: map[models.ProgramCategory]models.CoachGrade{
			models.CategoryLearnToSwim: models.Grade2,
		}},
		"coach-g3": {ID: "coach-g3", Active: true, Grades: map[models.ProgramCategory]models.CoachGrade{
			models.CategoryLearnToSwim:    models.Grade3,
			models.CategoryCertifications: models.Grade3,
		}},
		"coach-other": {ID: "coach-other", Active: true, Grades: map[models.ProgramCategory]models.CoachGrade{
			models.CategoryCompetitiveElite: models.Grade3,
		}},
	}}
	return store, cohorts, programs, directory
}

func TestAssignRejectsGradeBelowRequirement(t *testing.T) {
	store, cohorts, programs, directory := assignmentFixture()
	svc := NewAssignmentService(store, cohorts, programs, directory, nil, nil)

	_, err := svc.Assign(context.Background(), AssignCoachRequest{CohortID: "coh-1", CoachID: "coach-g1", Role: models.RoleLead})
	require.True(t, appErrors.Is(err, appErrors.ErrGradeTooLow))
}

func TestAssignRejectsCoachWithoutCategoryGrade(t *testing.T) {
	store, cohorts, programs, directory := assignmentFixture()
	svc := NewAssignmentService(store, cohorts, programs, directory, nil, nil)

	// A grade_3 in another category counts for nothing here.
	_, err := svc.Assign(context.Background(), AssignCoachRequest{CohortID: "coh-1", CoachID: "coach-other", Role: models.RoleLead})
	require.True(t, appErrors.Is(err, appErrors.ErrGradeTooLow))
}

func TestAssignSnapshotsGradeAtAssignment(t *testing.T) {
	store, cohorts, programs, directory := assignmentFixture()
	svc := NewAssignmentService(store, cohorts, programs, directory, nil, nil)
	ctx := context.Background()

	assignment, err := svc.Assign(ctx, AssignCoachRequest{CohortID: "coh-1", CoachID: "coach-g2", Role: models.RoleLead})
	require.NoError(t, err)
	require.Equal(t, models.Grade2, assignment.GradeAtAssignment)
	require.Equal(t, models.CategoryLearnToSwim, assignment.Category)

	// A later grade change in the directory never rewrites the snapshot.
	directory.coaches["coach-g2"].Grades[models.CategoryLearnToSwim] = models.Grade3
	stored, err := store.FindByID(ctx, assignment.ID)
	require.NoError(t, err)
	require.Equal(t, models.Grade2, stored.GradeAtAssignment)
}

func TestAssignHigherGradeEligible(t *testing.T) {
	store, cohorts, programs, directory := assignmentFixture()
	svc := NewAssignmentService(store, cohorts, programs, directory, nil, nil)

	assignment, err := svc.Assign(context.Background(), AssignCoachRequest{CohortID: "coh-1", CoachID: "coach-g3", Role: models.RoleAssistant})
	require.NoError(t, err)
	require.Equal(t, models.Grade3, assignment.GradeAtAssignment)
}

func TestAssignSingleActiveLead(t *testing.T) {
	store, cohorts, programs, directory := assignmentFixture()
	svc := NewAssignmentService(store, cohorts, programs, directory, nil, nil)
	ctx := context.Background()

	lead, err := svc.Assign(ctx, AssignCoachRequest{CohortID: "coh-1", CoachID: "coach-g2", Role: models.RoleLead})
	require.NoError(t, err)

	_, err = svc.Assign(ctx, AssignCoachRequest{CohortID: "coh-1", CoachID: "coach-g3", Role: models.RoleLead})
	require.True(t, appErrors.Is(err, appErrors.ErrConflict))

	// Removing the lead frees the slot.
	_, err = svc.Remove(ctx, lead.ID)
	require.NoError(t, err)
	_, err = svc.Assign(ctx, AssignCoachRequest{CohortID: "coh-1", CoachID: "coach-g3", Role: models.RoleLead})
	require.NoError(t, err)
}

func TestAssignDuplicateCoachRejected(t *testing.T) {
	store, cohorts, programs, directory := assignmentFixture()
	svc := NewAssignmentService(store, cohorts, programs, directory, nil, nil)
	ctx := context.Background()

	_, err := svc.Assign(ctx, AssignCoachRequest{CohortID: "coh-1", CoachID: "coach-g2", Role: models.RoleLead})
	require.NoError(t, err)
	_, err = svc.Assign(ctx, AssignCoachRequest{CohortID: "coh-1", CoachID: "coach-g2", Role: models.RoleAssistant})
	require.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestAssignGradeOneBarredFromCertifications(t *testing.T) {
	store, cohorts, programs, directory := assignmentFixture()
	programs.programs["prog-1"].Category = models.CategoryCertifications
	cohorts.cohorts["coh-1"].RequiredCoachGrade = gradePtr(models.Grade1)
	directory.coaches["coach-g1"].Grades[models.CategoryCertifications] = models.Grade1
	svc := NewAssignmentService(store, cohorts, programs, directory, nil, nil)

	_, err := svc.Assign(context.Background(), AssignCoachRequest{CohortID: "coh-1", CoachID: "coach-g1", Role: models.RoleLead})
	require.True(t, appErrors.Is(err, appErrors.ErrGradeTooLow))
}

func TestAssignRejectsTerminalCohort(t *testing.T) {
	store, cohorts, programs, directory := assignmentFixture()
	cohorts.cohorts["coh-1"].Status = models.CohortCancelled
	svc := NewAssignmentService(store, cohorts, programs, directory, nil, nil)

	_, err := svc.Assign(context.Background(), AssignCoachRequest{CohortID: "coh-1", CoachID: "coach-g2", Role: models.RoleLead})
	require.True(t, appErrors.Is(err, appErrors.ErrTerminalState))
}

func TestRemoveAlreadyRemovedRejected(t *testing.T) {
	store, cohorts, programs, directory := assignmentFixture()
	svc := NewAssignmentService(store, cohorts, programs, directory, nil, nil)
	ctx := context.Background()

	assignment, err := svc.Assign(ctx, AssignCoachRequest{CohortID: "coh-1", CoachID: "coach-g2", Role: models.RoleLead})
	require.NoError(t, err)
	_, err = svc.Remove(ctx, assignment.ID)
	require.NoError(t, err)
	_, err = svc.Remove(ctx, assignment.ID)
	require.True(t, appErrors.Is(err, appErrors.ErrPreconditionFailed))
}
