package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/swimbuddz/academy-api/internal/models"
)

// ProgramRepository handles persistence of curriculum templates.
type ProgramRepository struct {
	db *sqlx.DB
}

// NewProgramRepository constructs the repository.
func NewProgramRepository(db *sqlx.DB) *ProgramRepository {
	return &ProgramRepository{db: db}
}

const programColumns = `id, name, description, category, level, duration_weeks, default_capacity,
        price_per_block, currency, billing_type, allow_mid_entry, mid_entry_cutoff_week,
        special_population, pilot, published, created_at, updated_at`

// FindByID returns a program by its ID.
func (r *ProgramRepository) FindByID(ctx context.Context, id string) (*models.Program, error) {
	query := fmt.Sprintf(`SELECT %s FROM programs WHERE id = $1`, programColumns)
	var program models.Program
	if err := r.db.GetContext(ctx, &program, query, id); err != nil {
		return nil, err
	}
	return &program, nil
}

// List returns programs filtered by the provided criteria.
func (r *ProgramRepository) List(ctx context.Context, filter models.ProgramFilter) ([]models.Program, int, error) {
	var conditions []string
	var args []interface{}

	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)+1))
		args = append(args, filter.Category)
	}
	if filter.Published != nil {
		conditions = append(conditions, fmt.Sprintf("published = $%d", len(args)+1))
		args = append(args, *filter.Published)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("name ILIKE $%d", len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM programs%s ORDER BY name ASC LIMIT %d OFFSET %d`,
		programColumns, clause, size, offset)

	var programs []models.Program
	if err := r.db.SelectContext(ctx, &programs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list programs: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM programs" + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count programs: %w", err)
	}
	return programs, total, nil
}

// Create persists a new program.
func (r *ProgramRepository) Create(ctx context.Context, program *models.Program) error {
	if program.ID == "" {
		program.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	program.CreatedAt = now
	program.UpdatedAt = now
	const query = `INSERT INTO programs (id, name, description, category, level, duration_weeks,
        default_capacity, price_per_block, currency, billing_type, allow_mid_entry,
        mid_entry_cutoff_week, special_population, pilot, published, created_at, updated_at)
        VALUES (:id, :name, :description, :category, :level, :duration_weeks, :default_capacity,
        :price_per_block, :currency, :billing_type, :allow_mid_entry, :mid_entry_cutoff_week,
        :special_population, :pilot, :published, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, program); err != nil {
		return fmt.Errorf("create program: %w", err)
	}
	return nil
}

// Update persists metadata edits to an existing program.
func (r *ProgramRepository) Update(ctx context.Context, program *models.Program) error {
	program.UpdatedAt = time.Now().UTC()
	const query = `UPDATE programs SET name = :name, description = :description,
        duration_weeks = :duration_weeks, default_capacity = :default_capacity,
        price_per_block = :price_per_block, allow_mid_entry = :allow_mid_entry,
        mid_entry_cutoff_week = :mid_entry_cutoff_week, special_population = :special_population,
        pilot = :pilot, published = :published, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, program); err != nil {
		return fmt.Errorf("update program: %w", err)
	}
	return nil
}

// HasCohorts reports whether any cohort references the program.
func (r *ProgramRepository) HasCohorts(ctx context.Context, programID string) (bool, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM cohorts WHERE program_id = $1", programID); err != nil {
		return false, fmt.Errorf("count program cohorts: %w", err)
	}
	return count > 0, nil
}
