package models

// CoachGrade is a per-category competency tier gating which cohorts a coach
// may lead. Grades are ordered: grade_1 < grade_2 < grade_3.
type CoachGrade string

const (
	Grade1 CoachGrade = "grade_1"
	Grade2 CoachGrade = "grade_2"
	Grade3 CoachGrade = "grade_3"
)

var gradeRank = map[CoachGrade]int{
	Grade1: 1,
	Grade2: 2,
	Grade3: 3,
}

// Rank returns the numeric tier of the grade, or 0 for an unknown grade.
// A coach with no recorded grade in a category ranks below grade_1.
func (g CoachGrade) Rank() int {
	return gradeRank[g]
}

// Meets reports whether the grade satisfies the required grade.
func (g CoachGrade) Meets(required CoachGrade) bool {
	return g.Rank() > 0 && g.Rank() >= required.Rank()
}

// Valid reports whether the grade is one of the closed set.
func (g CoachGrade) Valid() bool {
	return g.Rank() > 0
}

// ScoreDimension identifies one of the seven complexity dimensions. Each
// dimension contributes an integer weight in [1,5], so totals land in [7,35].
type ScoreDimension string

const (
	DimSize              ScoreDimension = "size"
	DimCategoryRisk      ScoreDimension = "category_risk"
	DimLocation          ScoreDimension = "location"
	DimSpecialPopulation ScoreDimension = "special_population"
	DimPilot             ScoreDimension = "pilot"
	DimDuration          ScoreDimension = "duration"
	DimCertification     ScoreDimension = "certification"
)

// ScoreDimensionOrder fixes the reporting order of dimensions so serialized
// breakdowns are reproducible byte-for-byte.
var ScoreDimensionOrder = []ScoreDimension{
	DimSize,
	DimCategoryRisk,
	DimLocation,
	DimSpecialPopulation,
	DimPilot,
	DimDuration,
	DimCertification,
}

// ScoreInputs are the cohort attributes complexity scoring is derived from.
// Changing any of them triggers a recompute; time alone never does.
type ScoreInputs struct {
	Category          ProgramCategory `json:"category"`
	Capacity          int             `json:"capacity"`
	LocationType      LocationType    `json:"location_type"`
	DurationWeeks     int             `json:"duration_weeks"`
	SpecialPopulation bool            `json:"special_population"`
	Pilot             bool            `json:"pilot"`
}

// ComplexityResult is the scorer output cached on the cohort.
type ComplexityResult struct {
	Dimensions    map[ScoreDimension]int `json:"dimensions"`
	TotalScore    int                    `json:"total_score"`
	RequiredGrade CoachGrade             `json:"required_coach_grade"`
	PayBandMin    int                    `json:"pay_band_min"`
	PayBandMax    int                    `json:"pay_band_max"`
}

// PayBand is an inclusive revenue-share percentage range.
type PayBand struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Base returns the default revenue-share percent for the band: the integer
// midpoint.
func (b PayBand) Base() int {
	return (b.Min + b.Max) / 2
}

// GradeBand maps an inclusive total-score range onto a required grade.
type GradeBand struct {
	MinScore int        `json:"min_score"`
	MaxScore int        `json:"max_score"`
	Grade    CoachGrade `json:"grade"`
}

// ScoringConfig carries the threshold bands and pay-band table as an explicit
// value object so scoring and payouts are pure given their inputs.
type ScoringConfig struct {
	GradeBands []GradeBand
	// PayBands is keyed by category then grade. A zero band means the grade
	// may not deliver that category at all (grade_1 on certifications).
	PayBands map[ProgramCategory]map[CoachGrade]PayBand
}

// GradeFor maps a total score onto the required coach grade.
func (c ScoringConfig) GradeFor(total int) CoachGrade {
	for _, band := range c.GradeBands {
		if total >= band.MinScore && total <= band.MaxScore {
			return band.Grade
		}
	}
	// Scores above the top band require the highest grade.
	return Grade3
}

// PayBandFor returns the band for a category/grade pair and whether the grade
// is allowed to deliver the category.
func (c ScoringConfig) PayBandFor(category ProgramCategory, grade CoachGrade) (PayBand, bool) {
	bands, ok := c.PayBands[category]
	if !ok {
		return PayBand{}, false
	}
	band, ok := bands[grade]
	if !ok || (band.Min == 0 && band.Max == 0) {
		return PayBand{}, false
	}
	return band, true
}

// DefaultScoringConfig returns the coach operations framework defaults.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		GradeBands: []GradeBand{
			{MinScore: 7, MaxScore: 14, Grade: Grade1},
			{MinScore: 15, MaxScore: 24, Grade: Grade2},
			{MinScore: 25, MaxScore: 35, Grade: Grade3},
		},
		PayBands: map[ProgramCategory]map[CoachGrade]PayBand{
			CategoryLearnToSwim: {
				Grade1: {Min: 35, Max: 42},
				Grade2: {Min: 43, Max: 52},
				Grade3: {Min: 53, Max: 65},
			},
			CategorySpecialPopulations: {
				Grade1: {Min: 38, Max: 45},
				Grade2: {Min: 46, Max: 55},
				Grade3: {Min: 56, Max: 68},
			},
			CategoryInstitutional: {
				Grade1: {Min: 33, Max: 40},
				Grade2: {Min: 41, Max: 50},
				Grade3: {Min: 51, Max: 62},
			},
			CategoryCompetitiveElite: {
				Grade1: {Min: 37, Max: 44},
				Grade2: {Min: 45, Max: 55},
				Grade3: {Min: 55, Max: 68},
			},
			CategoryCertifications: {
				// Grade 1 cannot deliver certification programs.
				Grade2: {Min: 46, Max: 55},
				Grade3: {Min: 56, Max: 68},
			},
			CategorySpecializedDisciplines: {
				Grade1: {Min: 37, Max: 44},
				Grade2: {Min: 45, Max: 55},
				Grade3: {Min: 55, Max: 68},
			},
			CategoryAdjacentServices: {
				Grade1: {Min: 30, Max: 40},
				Grade2: {Min: 40, Max: 55},
				Grade3: {Min: 55, Max: 65},
			},
		},
	}
}
