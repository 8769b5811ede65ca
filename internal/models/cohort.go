package models

import "time"

// CohortStatus is the lifecycle state of a scheduled program run.
type CohortStatus string

const (
	CohortDraft     CohortStatus = "draft"
	CohortOpen      CohortStatus = "open"
	CohortActive    CohortStatus = "active"
	CohortCompleted CohortStatus = "completed"
	CohortCancelled CohortStatus = "cancelled"
)

// cohortTransitions is the closed set of legal lifecycle edges. Any edge not
// present here is rejected with INVALID_TRANSITION.
var cohortTransitions = map[CohortStatus][]CohortStatus{
	CohortDraft:  {CohortOpen},
	CohortOpen:   {CohortActive, CohortCancelled},
	CohortActive: {CohortCompleted, CohortCancelled},
}

// CanTransition reports whether moving from to next is a legal edge.
func (s CohortStatus) CanTransition(next CohortStatus) bool {
	for _, allowed := range cohortTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s CohortStatus) Terminal() bool {
	return s == CohortCompleted || s == CohortCancelled
}

// AcceptsEnrollment reports whether new enrollments may be created. Mid-entry
// during ACTIVE is additionally subject to the program's cutoff week.
func (s CohortStatus) AcceptsEnrollment() bool {
	return s == CohortOpen || s == CohortActive
}

// AcceptsAssignment reports whether coaches may be assigned.
func (s CohortStatus) AcceptsAssignment() bool {
	return s == CohortDraft || s == CohortOpen || s == CohortActive
}

// LocationType describes where a cohort runs.
type LocationType string

const (
	LocationPool      LocationType = "pool"
	LocationOpenWater LocationType = "open_water"
	LocationRemote    LocationType = "remote"
)

// Cohort is one scheduled run of a program.
type Cohort struct {
	ID        string       `db:"id" json:"id"`
	ProgramID string       `db:"program_id" json:"program_id"`
	Name      string       `db:"name" json:"name"`
	StartDate time.Time    `db:"start_date" json:"start_date"`
	EndDate   time.Time    `db:"end_date" json:"end_date"`
	Status    CohortStatus `db:"status" json:"status"`

	// Capacity overrides the program default when set.
	Capacity        *int         `db:"capacity" json:"capacity,omitempty"`
	LocationType    LocationType `db:"location_type" json:"location_type"`
	LocationName    string       `db:"location_name" json:"location_name"`
	Timezone        string       `db:"timezone" json:"timezone"`
	RequireApproval bool         `db:"require_approval" json:"require_approval"`

	// PriceOverride, when set, replaces the program price for new snapshots.
	PriceOverride *int64 `db:"price_override" json:"price_override,omitempty"`

	// Cached complexity scoring output. Recomputed when scoring inputs change,
	// never on read.
	ComplexityScore    *int        `db:"complexity_score" json:"complexity_score,omitempty"`
	RequiredCoachGrade *CoachGrade `db:"required_coach_grade" json:"required_coach_grade,omitempty"`
	ScoreDimensions    []byte      `db:"score_dimensions" json:"-"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// EffectiveCapacity resolves the cohort capacity, falling back to the program
// default when no override is set.
func (c *Cohort) EffectiveCapacity(program *Program) int {
	if c.Capacity != nil && *c.Capacity > 0 {
		return *c.Capacity
	}
	if program != nil {
		return program.DefaultCapacity
	}
	return 0
}

// EffectivePrice resolves the per-block price for new snapshots.
func (c *Cohort) EffectivePrice(program *Program) int64 {
	if c.PriceOverride != nil {
		return *c.PriceOverride
	}
	if program != nil {
		return program.PricePerBlock
	}
	return 0
}

// ProgramWeek returns the 1-indexed program week at the given instant,
// counting whole 7-day spans elapsed since the cohort start.
func (c *Cohort) ProgramWeek(at time.Time) int {
	if at.Before(c.StartDate) {
		return 0
	}
	return int(at.Sub(c.StartDate)/(7*24*time.Hour)) + 1
}

// CohortDetail enriches a cohort with program info and live counts.
type CohortDetail struct {
	Cohort
	ProgramName     string          `db:"program_name" json:"program_name"`
	ProgramCategory ProgramCategory `db:"program_category" json:"program_category"`
	EnrolledCount   int             `db:"enrolled_count" json:"enrolled_count"`
	WaitlistCount   int             `db:"waitlist_count" json:"waitlist_count"`
}

// CohortFilter provides filters for listing cohorts.
type CohortFilter struct {
	ProgramID string
	Status    CohortStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// CancelCascadeResult reports the full effect of a cohort cancellation. The
// cascade is applied in one transaction so a retry after interruption is a
// no-op for already-terminal rows.
type CancelCascadeResult struct {
	DroppedEnrollmentIDs []string `json:"dropped_enrollment_ids"`
	RemovedAssignmentIDs []string `json:"removed_assignment_ids"`
}
