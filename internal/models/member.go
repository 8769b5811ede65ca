package models

import "time"

// Member is the directory projection of a community member.
type Member struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Active   bool   `json:"active"`
}

// CoachProfile is the directory projection of a coach, including per-category
// grades. A category absent from Grades means the coach holds no grade there
// and is ineligible for cohorts requiring one.
type CoachProfile struct {
	ID       string                         `json:"id"`
	FullName string                         `json:"full_name"`
	Active   bool                           `json:"active"`
	Grades   map[ProgramCategory]CoachGrade `json:"grades"`
}

// GradeFor returns the coach's grade in the category, empty when none is held.
func (c *CoachProfile) GradeFor(category ProgramCategory) CoachGrade {
	return c.Grades[category]
}

// Session is the schedule collaborator's projection of one upcoming cohort
// session.
type Session struct {
	ID       string    `json:"id"`
	CohortID string    `json:"cohort_id"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
	Location string    `json:"location"`
}

// PaymentIntentRequest asks the payment collaborator to start collection for
// an enrollment.
type PaymentIntentRequest struct {
	EnrollmentID string `json:"enrollment_id"`
	MemberID     string `json:"member_id"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Description  string `json:"description"`
}
