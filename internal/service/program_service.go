package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/swimbuddz/academy-api/internal/models"
	appErrors "github.com/swimbuddz/academy-api/pkg/errors"
)

type programRepository interface {
	FindByID(ctx context.Context, id string) (*models.Program, error)
	List(ctx context.Context, filter models.ProgramFilter) ([]models.Program, int, error)
	Create(ctx context.Context, program *models.Program) error
	Update(ctx context.Context, program *models.Program) error
	HasCohorts(ctx context.Context, programID string) (bool, error)
}

// CreateProgramRequest describes program creation.
type CreateProgramRequest struct {
	Name               string                 `json:"name" validate:"required"`
	Description        string                 `json:"description"`
	Category           models.ProgramCategory `json:"category" validate:"required"`
	Level              models.ProgramLevel    `json:"level" validate:"required,oneof=beginner_1 beginner_2 intermediate advanced specialty"`
	DurationWeeks      int                    `json:"duration_weeks" validate:"required,min=1"`
	DefaultCapacity    int                    `json:"default_capacity" validate:"required,min=1"`
	PricePerBlock      int64                  `json:"price_per_block" validate:"min=0"`
	Currency           string                 `json:"currency" validate:"required,len=3"`
	BillingType        models.BillingType     `json:"billing_type" validate:"required,oneof=one_time subscription per_session"`
	AllowMidEntry      bool                   `json:"allow_mid_entry"`
	MidEntryCutoffWeek int                    `json:"mid_entry_cutoff_week" validate:"min=0"`
	SpecialPopulation  bool                   `json:"special_population"`
	Pilot              bool                   `json:"pilot"`
	Published          bool                   `json:"published"`
}

// UpdateProgramRequest describes forward-compatible program edits. Category,
// level, and billing type are fixed once any cohort references the program;
// duration and special-population likewise, since they feed cohort scoring.
type UpdateProgramRequest struct {
	Name               *string `json:"name"`
	Description        *string `json:"description"`
	DurationWeeks      *int    `json:"duration_weeks" validate:"omitempty,min=1"`
	DefaultCapacity    *int    `json:"default_capacity" validate:"omitempty,min=1"`
	PricePerBlock      *int64  `json:"price_per_block" validate:"omitempty,min=0"`
	AllowMidEntry      *bool   `json:"allow_mid_entry"`
	MidEntryCutoffWeek *int    `json:"mid_entry_cutoff_week" validate:"omitempty,min=0"`
	SpecialPopulation  *bool   `json:"special_population"`
	Pilot              *bool   `json:"pilot"`
	Published          *bool   `json:"published"`
}

// ProgramService manages curriculum templates.
type ProgramService struct {
	repo      programRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProgramService constructs ProgramService.
func NewProgramService(repo programRepository, validate *validator.Validate, logger *zap.Logger) *ProgramService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgramService{repo: repo, validator: validate, logger: logger}
}

// List returns programs with pagination metadata.
func (s *ProgramService) List(ctx context.Context, filter models.ProgramFilter) ([]models.Program, *models.Pagination, error) {
	programs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list programs")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return programs, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a program by ID.
func (s *ProgramService) Get(ctx context.Context, id string) (*models.Program, error) {
	program, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program")
	}
	return program, nil
}

// Create registers a new program.
func (s *ProgramService) Create(ctx context.Context, req CreateProgramRequest) (*models.Program, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid program payload")
	}
	if !req.Category.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown program category")
	}
	program := &models.Program{
		Name:               req.Name,
		Description:        req.Description,
		Category:           req.Category,
		Level:              req.Level,
		DurationWeeks:      req.DurationWeeks,
		DefaultCapacity:    req.DefaultCapacity,
		PricePerBlock:      req.PricePerBlock,
		Currency:           req.Currency,
		BillingType:        req.BillingType,
		AllowMidEntry:      req.AllowMidEntry,
		MidEntryCutoffWeek: req.MidEntryCutoffWeek,
		SpecialPopulation:  req.SpecialPopulation,
		Pilot:              req.Pilot,
		Published:          req.Published,
	}
	if err := s.repo.Create(ctx, program); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create program")
	}
	return program, nil
}

// Update applies metadata edits to a program.
func (s *ProgramService) Update(ctx context.Context, id string, req UpdateProgramRequest) (*models.Program, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid program payload")
	}
	program, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if touchesScoringInputs(req, program) {
		referenced, err := s.repo.HasCohorts(ctx, id)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check cohort references")
		}
		if referenced {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed,
				"duration and special-population feed cohort complexity scores and are fixed once cohorts reference the program")
		}
	}
	if req.Name != nil {
		program.Name = *req.Name
	}
	if req.Description != nil {
		program.Description = *req.Description
	}
	if req.DurationWeeks != nil {
		program.DurationWeeks = *req.DurationWeeks
	}
	if req.DefaultCapacity != nil {
		program.DefaultCapacity = *req.DefaultCapacity
	}
	if req.PricePerBlock != nil {
		program.PricePerBlock = *req.PricePerBlock
	}
	if req.AllowMidEntry != nil {
		program.AllowMidEntry = *req.AllowMidEntry
	}
	if req.MidEntryCutoffWeek != nil {
		program.MidEntryCutoffWeek = *req.MidEntryCutoffWeek
	}
	if req.SpecialPopulation != nil {
		program.SpecialPopulation = *req.SpecialPopulation
	}
	if req.Pilot != nil {
		program.Pilot = *req.Pilot
	}
	if req.Published != nil {
		program.Published = *req.Published
	}
	if err := s.repo.Update(ctx, program); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update program")
	}
	return program, nil
}

// touchesScoringInputs reports whether the edit would change a field that
// feeds cohort complexity scoring. Stored cohort scores are never rescored
// retroactively, so these fields freeze once cohorts exist.
func touchesScoringInputs(req UpdateProgramRequest, program *models.Program) bool {
	if req.DurationWeeks != nil && *req.DurationWeeks != program.DurationWeeks {
		return true
	}
	if req.SpecialPopulation != nil && *req.SpecialPopulation != program.SpecialPopulation {
		return true
	}
	return false
}
