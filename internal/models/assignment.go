package models

import "time"

// AssignmentRole is the capacity in which a coach serves a cohort.
type AssignmentRole string

const (
	RoleLead      AssignmentRole = "lead"
	RoleAssistant AssignmentRole = "assistant"
)

// Valid reports whether the role is one of the closed set.
func (r AssignmentRole) Valid() bool {
	return r == RoleLead || r == RoleAssistant
}

// CoachAssignment is one coach's relationship to one cohort. The coach's
// grade is snapshotted at assignment time and never recomputed; removal is a
// soft delete so payout history for already-computed blocks survives.
type CoachAssignment struct {
	ID       string `db:"id" json:"id"`
	CohortID string `db:"cohort_id" json:"cohort_id"`
	CoachID  string `db:"coach_id" json:"coach_id"`

	Role              AssignmentRole  `db:"role" json:"role"`
	GradeAtAssignment CoachGrade      `db:"grade_at_assignment" json:"grade_at_assignment"`
	Category          ProgramCategory `db:"category" json:"category"`

	AssignedAt time.Time  `db:"assigned_at" json:"assigned_at"`
	RemovedAt  *time.Time `db:"removed_at" json:"removed_at,omitempty"`
}

// Active reports whether the assignment has not been removed.
func (a *CoachAssignment) Active() bool {
	return a.RemovedAt == nil
}
