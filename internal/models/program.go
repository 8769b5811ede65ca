package models

import "time"

// ProgramCategory classifies a curriculum template. The category drives
// complexity scoring weights and coach pay bands.
type ProgramCategory string

const (
	CategoryLearnToSwim            ProgramCategory = "learn_to_swim"
	CategorySpecialPopulations     ProgramCategory = "special_populations"
	CategoryInstitutional          ProgramCategory = "institutional"
	CategoryCompetitiveElite       ProgramCategory = "competitive_elite"
	CategoryCertifications         ProgramCategory = "certifications"
	CategorySpecializedDisciplines ProgramCategory = "specialized_disciplines"
	CategoryAdjacentServices       ProgramCategory = "adjacent_services"
)

// ProgramCategories lists every valid category.
var ProgramCategories = []ProgramCategory{
	CategoryLearnToSwim,
	CategorySpecialPopulations,
	CategoryInstitutional,
	CategoryCompetitiveElite,
	CategoryCertifications,
	CategorySpecializedDisciplines,
	CategoryAdjacentServices,
}

// Valid reports whether the category is one of the closed set.
func (c ProgramCategory) Valid() bool {
	for _, known := range ProgramCategories {
		if c == known {
			return true
		}
	}
	return false
}

// ProgramLevel is the curriculum difficulty tier.
type ProgramLevel string

const (
	LevelBeginner1    ProgramLevel = "beginner_1"
	LevelBeginner2    ProgramLevel = "beginner_2"
	LevelIntermediate ProgramLevel = "intermediate"
	LevelAdvanced     ProgramLevel = "advanced"
	LevelSpecialty    ProgramLevel = "specialty"
)

// BillingType describes how a program charges.
type BillingType string

const (
	BillingOneTime      BillingType = "one_time"
	BillingSubscription BillingType = "subscription"
	BillingPerSession   BillingType = "per_session"
)

// Program is a reusable curriculum template. Once a cohort references it, only
// forward-compatible metadata edits are allowed.
type Program struct {
	ID              string          `db:"id" json:"id"`
	Name            string          `db:"name" json:"name"`
	Description     string          `db:"description" json:"description"`
	Category        ProgramCategory `db:"category" json:"category"`
	Level           ProgramLevel    `db:"level" json:"level"`
	DurationWeeks   int             `db:"duration_weeks" json:"duration_weeks"`
	DefaultCapacity int             `db:"default_capacity" json:"default_capacity"`
	// PricePerBlock is in minor currency units (e.g. kobo).
	PricePerBlock      int64       `db:"price_per_block" json:"price_per_block"`
	Currency           string      `db:"currency" json:"currency"`
	BillingType        BillingType `db:"billing_type" json:"billing_type"`
	AllowMidEntry      bool        `db:"allow_mid_entry" json:"allow_mid_entry"`
	MidEntryCutoffWeek int         `db:"mid_entry_cutoff_week" json:"mid_entry_cutoff_week"`
	SpecialPopulation  bool        `db:"special_population" json:"special_population"`
	Pilot              bool        `db:"pilot" json:"pilot"`
	Published          bool        `db:"published" json:"published"`
	CreatedAt          time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time   `db:"updated_at" json:"updated_at"`
}

// RequiresCertification reports whether delivering the program demands a
// certified instructor. Certification programs may never be led by grade 1.
func (p *Program) RequiresCertification() bool {
	return p.Category == CategoryCertifications
}

// ProgramFilter provides filters for listing programs.
type ProgramFilter struct {
	Category  ProgramCategory
	Published *bool
	Search    string
	Page      int
	PageSize  int
}
