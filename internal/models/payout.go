package models

import "time"

// PayoutModifier is an additive percentage-point adjustment applied once per
// qualifying condition, never compounded.
type PayoutModifier string

const (
	ModifierLargeCohort       PayoutModifier = "large_cohort"
	ModifierDifficultLocation PayoutModifier = "difficult_location"
	ModifierMentoring         PayoutModifier = "mentoring"
	ModifierPilot             PayoutModifier = "pilot"
)

// PayoutConfig carries modifier points and qualification thresholds as an
// explicit value object.
type PayoutConfig struct {
	BlockWeeks int
	// LargeCohortThreshold is the effective capacity at or above which the
	// large-cohort modifier applies.
	LargeCohortThreshold int
	ModifierPoints       map[PayoutModifier]int
}

// DefaultPayoutConfig returns the framework defaults: 4-week blocks and the
// standard modifier points.
func DefaultPayoutConfig() PayoutConfig {
	return PayoutConfig{
		BlockWeeks:           4,
		LargeCohortThreshold: 12,
		ModifierPoints: map[PayoutModifier]int{
			ModifierLargeCohort:       2,
			ModifierDifficultLocation: 3,
			ModifierMentoring:         2,
			ModifierPilot:             2,
		},
	}
}

// Payout is the immutable record of one coach's revenue share for one closed
// billing block of a cohort. (cohort_id, block_number) is unique; recomputing
// an existing block returns the stored row.
type Payout struct {
	ID          string         `db:"id" json:"id"`
	CohortID    string         `db:"cohort_id" json:"cohort_id"`
	BlockNumber int            `db:"block_number" json:"block_number"`
	CoachID     string         `db:"coach_id" json:"coach_id"`
	Role        AssignmentRole `db:"role" json:"role"`

	BlockStart time.Time `db:"block_start" json:"block_start"`
	BlockEnd   time.Time `db:"block_end" json:"block_end"`

	// EnrolledCount is fixed at block start; mid-block drops do not reduce it.
	EnrolledCount int `db:"enrolled_count" json:"enrolled_count"`
	// Revenue sums the price snapshots of the enrollments counted above, in
	// minor currency units. Snapshots can differ across waitlist promotions.
	Revenue       int64           `db:"revenue" json:"revenue"`
	BasePercent   int             `db:"base_percent" json:"base_percent"`
	ModifierTotal int             `db:"modifier_total" json:"modifier_total"`
	Modifiers     []byte          `db:"modifiers" json:"-"`
	Grade         CoachGrade      `db:"grade" json:"grade"`
	Category      ProgramCategory `db:"category" json:"category"`
	Amount        int64           `db:"amount" json:"amount"`
	Currency      string          `db:"currency" json:"currency"`

	ComputedAt time.Time `db:"computed_at" json:"computed_at"`
}

// PayoutDetail adds the human-facing context used in statements.
type PayoutDetail struct {
	Payout
	CohortName  string `db:"cohort_name" json:"cohort_name"`
	ProgramName string `db:"program_name" json:"program_name"`
}
