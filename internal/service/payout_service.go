package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/swimbuddz/academy-api/internal/models"
	appErrors "github.com/swimbuddz/academy-api/pkg/errors"
)

type payoutStore interface {
	InsertIfAbsent(ctx context.Context, payout *models.Payout) (bool, error)
	ExistsForBlock(ctx context.Context, cohortID string, blockNumber int) (bool, error)
	ListByCohortAndBlock(ctx context.Context, cohortID string, blockNumber int) ([]models.Payout, error)
	ListByCohort(ctx context.Context, cohortID string) ([]models.Payout, error)
	MaxBlockNumber(ctx context.Context, cohortID string) (int, error)
	ListDetailByCoach(ctx context.Context, coachID string, from, to time.Time) ([]models.PayoutDetail, error)
	SumByCoach(ctx context.Context, coachID string, from, to time.Time) (int64, error)
}

type enrolledAtReader interface {
	ListEnrolledAt(ctx context.Context, cohortID string, at time.Time) ([]models.Enrollment, error)
}

type assignmentReader interface {
	ListByCohort(ctx context.Context, cohortID string) ([]models.CoachAssignment, error)
}

type cohortLister interface {
	cohortReader
	ListByStatus(ctx context.Context, statuses ...models.CohortStatus) ([]models.Cohort, error)
}

// PayoutService computes per-block coach revenue shares. A block is computable
// once it has ended; computing the same block twice returns the stored record.
type PayoutService struct {
	store       payoutStore
	enrollments enrolledAtReader
	assignments assignmentReader
	cohorts     cohortLister
	programs    programReader
	scoringCfg  models.ScoringConfig
	cfg         models.PayoutConfig
	events      eventPublisher
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewPayoutService constructs PayoutService.
func NewPayoutService(store payoutStore, enrollments enrolledAtReader, assignments assignmentReader, cohorts cohortLister, programs programReader, scoringCfg models.ScoringConfig, cfg models.PayoutConfig, events eventPublisher, logger *zap.Logger) *PayoutService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BlockWeeks <= 0 {
		cfg = models.DefaultPayoutConfig()
	}
	return &PayoutService{
		store:       store,
		enrollments: enrollments,
		assignments: assignments,
		cohorts:     cohorts,
		programs:    programs,
		scoringCfg:  scoringCfg,
		cfg:         cfg,
		events:      events,
		logger:      logger,
	}
}

// WithMetrics attaches payout counters. Safe to skip in tests.
func (s *PayoutService) WithMetrics(metrics *MetricsService) *PayoutService {
	s.metrics = metrics
	return s
}

// BlockWindow returns the half-open [start, end) interval of a 1-indexed
// block within the cohort's run.
func (s *PayoutService) BlockWindow(cohort *models.Cohort, blockNumber int) (time.Time, time.Time) {
	blockLen := time.Duration(s.cfg.BlockWeeks) * 7 * 24 * time.Hour
	start := cohort.StartDate.Add(time.Duration(blockNumber-1) * blockLen)
	return start, start.Add(blockLen)
}

// ComputeBlock computes the lead coach's payout for one closed block. The
// enrolled count and revenue are fixed at block start; mid-block drops do not
// reduce them. Recomputing an already-stored block returns the stored rows.
func (s *PayoutService) ComputeBlock(ctx context.Context, cohortID string, blockNumber int) ([]models.Payout, error) {
	if blockNumber < 1 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "block number must be positive")
	}
	cohort, err := s.cohorts.FindByID(ctx, cohortID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "cohort not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cohort")
	}
	if cohort.Status == models.CohortDraft || cohort.Status == models.CohortCancelled {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("cohort is %s", cohort.Status))
	}

	blockStart, blockEnd := s.BlockWindow(cohort, blockNumber)
	now := time.Now().UTC()
	if blockStart.After(cohort.EndDate) || blockStart.Equal(cohort.EndDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("block %d starts after the cohort ends", blockNumber))
	}
	if blockEnd.After(now) {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed,
			fmt.Sprintf("block %d has not ended yet", blockNumber))
	}

	exists, err := s.store.ExistsForBlock(ctx, cohortID, blockNumber)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check payout block")
	}
	if exists {
		return s.storedBlock(ctx, cohortID, blockNumber)
	}

	program, err := s.programs.FindByID(ctx, cohort.ProgramID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program")
	}

	lead, assistants, err := s.staffAt(ctx, cohortID, blockStart)
	if err != nil {
		return nil, err
	}
	if lead == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "cohort has no lead coach active at block start")
	}

	enrolled, err := s.enrollments.ListEnrolledAt(ctx, cohortID, blockStart)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load block enrollments")
	}
	var revenue int64
	for _, enrollment := range enrolled {
		revenue += enrollment.PriceSnapshot
	}

	band, ok := s.scoringCfg.PayBandFor(lead.Category, lead.GradeAtAssignment)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed,
			fmt.Sprintf("no pay band for grade %s in category %s", lead.GradeAtAssignment, lead.Category))
	}
	basePercent := band.Base()
	modifiers := s.applicableModifiers(cohort, program, len(assistants) > 0)
	modifierTotal := 0
	for _, modifier := range modifiers {
		modifierTotal += s.cfg.ModifierPoints[modifier]
	}
	percent := basePercent + modifierTotal

	modifiersJSON, err := json.Marshal(modifiers)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to serialize modifiers")
	}

	payout := &models.Payout{
		CohortID:      cohortID,
		BlockNumber:   blockNumber,
		CoachID:       lead.CoachID,
		Role:          models.RoleLead,
		BlockStart:    blockStart,
		BlockEnd:      blockEnd,
		EnrolledCount: len(enrolled),
		Revenue:       revenue,
		BasePercent:   basePercent,
		ModifierTotal: modifierTotal,
		Modifiers:     modifiersJSON,
		Grade:         lead.GradeAtAssignment,
		Category:      lead.Category,
		Amount:        revenue * int64(percent) / 100,
		Currency:      program.Currency,
		ComputedAt:    now,
	}

	inserted, err := s.store.InsertIfAbsent(ctx, payout)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store payout")
	}
	if !inserted {
		// A concurrent computation won the unique index race.
		return s.storedBlock(ctx, cohortID, blockNumber)
	}

	s.metrics.RecordPayout(payout.Amount)
	s.logger.Info("payout computed",
		zap.String("cohort_id", cohortID),
		zap.Int("block", blockNumber),
		zap.String("coach_id", lead.CoachID),
		zap.Int64("revenue", revenue),
		zap.Int("percent", percent),
		zap.Int64("amount", payout.Amount))
	s.publish(models.EventPayoutComputed, map[string]interface{}{
		"cohort_id": cohortID,
		"block":     blockNumber,
		"coach_id":  lead.CoachID,
		"amount":    payout.Amount,
		"currency":  payout.Currency,
	})
	return []models.Payout{*payout}, nil
}

// ListByCohort returns every payout recorded for a cohort.
func (s *PayoutService) ListByCohort(ctx context.Context, cohortID string) ([]models.Payout, error) {
	payouts, err := s.store.ListByCohort(ctx, cohortID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payouts")
	}
	return payouts, nil
}

// CloseDueBlocks computes every closed, uncomputed block for ACTIVE and
// COMPLETED cohorts. Cohorts without an active lead at a block start are
// skipped and retried on the next sweep.
func (s *PayoutService) CloseDueBlocks(ctx context.Context) (int, error) {
	cohorts, err := s.cohorts.ListByStatus(ctx, models.CohortActive, models.CohortCompleted)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list cohorts for payout sweep")
	}
	computed := 0
	for i := range cohorts {
		cohort := &cohorts[i]
		last, err := s.store.MaxBlockNumber(ctx, cohort.ID)
		if err != nil {
			s.logger.Warn("payout sweep: failed to read last block", zap.String("cohort_id", cohort.ID), zap.Error(err))
			continue
		}
		for block := last + 1; ; block++ {
			blockStart, blockEnd := s.BlockWindow(cohort, block)
			if !blockStart.Before(cohort.EndDate) || blockEnd.After(time.Now().UTC()) {
				break
			}
			if _, err := s.ComputeBlock(ctx, cohort.ID, block); err != nil {
				if appErrors.Is(err, appErrors.ErrPreconditionFailed) {
					s.logger.Debug("payout sweep: block skipped",
						zap.String("cohort_id", cohort.ID), zap.Int("block", block), zap.Error(err))
					break
				}
				s.logger.Warn("payout sweep: block failed",
					zap.String("cohort_id", cohort.ID), zap.Int("block", block), zap.Error(err))
				break
			}
			computed++
		}
	}
	return computed, nil
}

// CoachEarnings summarises a coach's payouts over a period.
func (s *PayoutService) CoachEarnings(ctx context.Context, coachID string, from, to time.Time) ([]models.PayoutDetail, int64, error) {
	details, err := s.store.ListDetailByCoach(ctx, coachID, from, to)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list coach payouts")
	}
	total, err := s.store.SumByCoach(ctx, coachID, from, to)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sum coach payouts")
	}
	return details, total, nil
}

// staffAt splits a cohort's assignments into the lead and the assistants that
// were active at the given instant.
func (s *PayoutService) staffAt(ctx context.Context, cohortID string, at time.Time) (*models.CoachAssignment, []models.CoachAssignment, error) {
	assignments, err := s.assignments.ListByCohort(ctx, cohortID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	var lead *models.CoachAssignment
	var assistants []models.CoachAssignment
	for i := range assignments {
		assignment := &assignments[i]
		if assignment.AssignedAt.After(at) {
			continue
		}
		if assignment.RemovedAt != nil && !assignment.RemovedAt.After(at) {
			continue
		}
		if assignment.Role == models.RoleLead {
			lead = assignment
		} else {
			assistants = append(assistants, *assignment)
		}
	}
	return lead, assistants, nil
}

// applicableModifiers lists the qualifying modifiers in a fixed order so the
// stored payload is reproducible.
func (s *PayoutService) applicableModifiers(cohort *models.Cohort, program *models.Program, mentoring bool) []models.PayoutModifier {
	var modifiers []models.PayoutModifier
	if cohort.EffectiveCapacity(program) >= s.cfg.LargeCohortThreshold {
		modifiers = append(modifiers, models.ModifierLargeCohort)
	}
	if cohort.LocationType == models.LocationOpenWater {
		modifiers = append(modifiers, models.ModifierDifficultLocation)
	}
	if mentoring {
		modifiers = append(modifiers, models.ModifierMentoring)
	}
	if program.Pilot {
		modifiers = append(modifiers, models.ModifierPilot)
	}
	return modifiers
}

func (s *PayoutService) storedBlock(ctx context.Context, cohortID string, blockNumber int) ([]models.Payout, error) {
	payouts, err := s.store.ListByCohortAndBlock(ctx, cohortID, blockNumber)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load stored payouts")
	}
	return payouts, nil
}

func (s *PayoutService) publish(eventType models.EventType, payload map[string]interface{}) {
	if s.events == nil {
		return
	}
	s.events.Publish(models.Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	})
}
