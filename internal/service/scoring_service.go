package service

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/swimbuddz/academy-api/internal/models"
	appErrors "github.com/swimbuddz/academy-api/pkg/errors"
)

// categoryRisk rates the inherent delivery risk of each program category.
var categoryRisk = map[models.ProgramCategory]int{
	models.CategoryLearnToSwim:            2,
	models.CategorySpecialPopulations:     5,
	models.CategoryInstitutional:          3,
	models.CategoryCompetitiveElite:       4,
	models.CategoryCertifications:         4,
	models.CategorySpecializedDisciplines: 4,
	models.CategoryAdjacentServices:       1,
}

// locationDifficulty rates the operational difficulty of each venue type.
var locationDifficulty = map[models.LocationType]int{
	models.LocationPool:      1,
	models.LocationRemote:    2,
	models.LocationOpenWater: 5,
}

// ScorePreviewRequest computes a complexity breakdown without persisting it.
type ScorePreviewRequest struct {
	Category          models.ProgramCategory `json:"category" validate:"required"`
	Capacity          int                    `json:"capacity" validate:"required,min=1"`
	LocationType      models.LocationType    `json:"location_type" validate:"required"`
	DurationWeeks     int                    `json:"duration_weeks" validate:"required,min=1"`
	SpecialPopulation bool                   `json:"special_population"`
	Pilot             bool                   `json:"pilot"`
}

// ScoringService derives cohort complexity from its attributes. Scoring is
// pure given the inputs and the config: the same cohort always produces the
// same breakdown, total, and required grade.
type ScoringService struct {
	cfg       models.ScoringConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewScoringService constructs ScoringService.
func NewScoringService(cfg models.ScoringConfig, validate *validator.Validate, logger *zap.Logger) *ScoringService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScoringService{cfg: cfg, validator: validate, logger: logger}
}

// Score computes the seven-dimension complexity breakdown. Each dimension
// weighs in [1,5], so the total lands in [7,35].
func (s *ScoringService) Score(inputs models.ScoreInputs) (*models.ComplexityResult, error) {
	if !inputs.Category.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown program category %q", inputs.Category))
	}

	dimensions := map[models.ScoreDimension]int{
		models.DimSize:              sizeWeight(inputs.Capacity),
		models.DimCategoryRisk:      categoryRisk[inputs.Category],
		models.DimLocation:          locationWeight(inputs.LocationType),
		models.DimSpecialPopulation: boolWeight(inputs.SpecialPopulation, 5),
		models.DimPilot:             boolWeight(inputs.Pilot, 4),
		models.DimDuration:          durationWeight(inputs.DurationWeeks),
		models.DimCertification:     boolWeight(inputs.Category == models.CategoryCertifications, 5),
	}

	total := 0
	for _, dim := range models.ScoreDimensionOrder {
		total += dimensions[dim]
	}

	grade := s.cfg.GradeFor(total)
	result := &models.ComplexityResult{
		Dimensions:    dimensions,
		TotalScore:    total,
		RequiredGrade: grade,
	}
	if band, ok := s.cfg.PayBandFor(inputs.Category, grade); ok {
		result.PayBandMin = band.Min
		result.PayBandMax = band.Max
	}
	return result, nil
}

// Preview validates the request and scores it without touching storage.
func (s *ScoringService) Preview(req ScorePreviewRequest) (*models.ComplexityResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid scoring payload")
	}
	return s.Score(models.ScoreInputs{
		Category:          req.Category,
		Capacity:          req.Capacity,
		LocationType:      req.LocationType,
		DurationWeeks:     req.DurationWeeks,
		SpecialPopulation: req.SpecialPopulation,
		Pilot:             req.Pilot,
	})
}

// MarshalDimensions serializes a breakdown in the fixed dimension order so
// stored payloads compare byte-for-byte across recomputes.
func MarshalDimensions(dimensions map[models.ScoreDimension]int) ([]byte, error) {
	ordered := make([]struct {
		Dimension models.ScoreDimension `json:"dimension"`
		Weight    int                   `json:"weight"`
	}, 0, len(models.ScoreDimensionOrder))
	for _, dim := range models.ScoreDimensionOrder {
		ordered = append(ordered, struct {
			Dimension models.ScoreDimension `json:"dimension"`
			Weight    int                   `json:"weight"`
		}{Dimension: dim, Weight: dimensions[dim]})
	}
	return json.Marshal(ordered)
}

func sizeWeight(capacity int) int {
	switch {
	case capacity <= 6:
		return 1
	case capacity <= 10:
		return 2
	case capacity <= 14:
		return 3
	case capacity <= 20:
		return 4
	default:
		return 5
	}
}

func durationWeight(weeks int) int {
	switch {
	case weeks <= 4:
		return 1
	case weeks <= 8:
		return 2
	case weeks <= 12:
		return 3
	case weeks <= 16:
		return 4
	default:
		return 5
	}
}

func locationWeight(location models.LocationType) int {
	if weight, ok := locationDifficulty[location]; ok {
		return weight
	}
	return 1
}

func boolWeight(on bool, weight int) int {
	if on {
		return weight
	}
	return 1
}
