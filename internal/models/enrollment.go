package models

import "time"

// EnrollmentStatus is the lifecycle state of a member's participation in a
// cohort.
type EnrollmentStatus string

const (
	EnrollmentPendingApproval EnrollmentStatus = "pending_approval"
	EnrollmentWaitlist        EnrollmentStatus = "waitlist"
	EnrollmentEnrolled        EnrollmentStatus = "enrolled"
	EnrollmentDropped         EnrollmentStatus = "dropped"
	EnrollmentGraduated       EnrollmentStatus = "graduated"
)

// enrollmentTransitions is the closed set of legal edges. DROPPED and
// GRADUATED are terminal; any attempt to leave them is a TERMINAL_STATE
// violation.
var enrollmentTransitions = map[EnrollmentStatus][]EnrollmentStatus{
	EnrollmentPendingApproval: {EnrollmentEnrolled, EnrollmentWaitlist, EnrollmentDropped},
	EnrollmentWaitlist:        {EnrollmentEnrolled, EnrollmentDropped},
	EnrollmentEnrolled:        {EnrollmentDropped, EnrollmentGraduated},
}

// CanTransition reports whether moving from to next is a legal edge.
func (s EnrollmentStatus) CanTransition(next EnrollmentStatus) bool {
	for _, allowed := range enrollmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s EnrollmentStatus) Terminal() bool {
	return s == EnrollmentDropped || s == EnrollmentGraduated
}

// PaymentStatus tracks the billing side of an enrollment. It is updated by
// external payment events and never alters the enrollment state machine.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
	PaymentWaived  PaymentStatus = "waived"
)

// Valid reports whether the payment status is one of the closed set.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentWaived:
		return true
	}
	return false
}

// EnrollmentSource records the channel an enrollment arrived through.
type EnrollmentSource string

const (
	SourceWeb     EnrollmentSource = "web"
	SourceAdmin   EnrollmentSource = "admin"
	SourcePartner EnrollmentSource = "partner"
)

// Enrollment is one member's relationship to one cohort. At most one
// non-terminal enrollment may exist per (member, cohort) pair.
type Enrollment struct {
	ID       string `db:"id" json:"id"`
	CohortID string `db:"cohort_id" json:"cohort_id"`
	MemberID string `db:"member_id" json:"member_id"`

	Status        EnrollmentStatus `db:"status" json:"status"`
	PaymentStatus PaymentStatus    `db:"payment_status" json:"payment_status"`
	Source        EnrollmentSource `db:"source" json:"source"`

	// PriceSnapshot is copied from the cohort/program at creation and is
	// immutable afterwards, except on waitlist promotion where it is refreshed
	// to the cohort's current price (the member has not yet been charged).
	PriceSnapshot    int64  `db:"price_snapshot" json:"price_snapshot"`
	CurrencySnapshot string `db:"currency_snapshot" json:"currency_snapshot"`

	// Seq is a monotonically increasing insert sequence used as the stable
	// FIFO tie-break for waitlist promotion.
	Seq          int64      `db:"seq" json:"-"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	EnrolledAt   *time.Time `db:"enrolled_at" json:"enrolled_at,omitempty"`
	WaitlistedAt *time.Time `db:"waitlisted_at" json:"waitlisted_at,omitempty"`
	LeftAt       *time.Time `db:"left_at" json:"left_at,omitempty"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	CohortID string
	MemberID string
	Status   EnrollmentStatus
	Page     int
	PageSize int
}
