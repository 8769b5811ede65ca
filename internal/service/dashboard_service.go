package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/swimbuddz/academy-api/internal/models"
)

type sessionSchedule interface {
	NextSession(ctx context.Context, cohortID string) (*models.Session, error)
}

// CoachDashboard aggregates a coach's current workload and earnings.
type CoachDashboard struct {
	CoachID     string                   `json:"coach_id"`
	Assignments []CoachDashboardCohort   `json:"assignments"`
	Earnings    []models.PayoutDetail    `json:"earnings"`
	TotalEarned int64                    `json:"total_earned"`
	Period      CoachDashboardPeriod     `json:"period"`
	GeneratedAt time.Time                `json:"generated_at"`
}

// CoachDashboardCohort is one assignment enriched with the next session.
type CoachDashboardCohort struct {
	models.CoachAssignment
	NextSession *models.Session `json:"next_session,omitempty"`
}

// CoachDashboardPeriod is the earnings window.
type CoachDashboardPeriod struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// DashboardService builds the coach dashboard view, cached per coach.
type DashboardService struct {
	assignments assignmentReader2
	payouts     *PayoutService
	sessions    sessionSchedule
	cache       *CacheService
	logger      *zap.Logger
}

type assignmentReader2 interface {
	ListActiveByCoach(ctx context.Context, coachID string) ([]models.CoachAssignment, error)
}

// NewDashboardService constructs DashboardService.
func NewDashboardService(assignments assignmentReader2, payouts *PayoutService, sessions sessionSchedule, cache *CacheService, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{assignments: assignments, payouts: payouts, sessions: sessions, cache: cache, logger: logger}
}

// CoachDashboard returns the coach's assignments with upcoming sessions and
// their earnings for the trailing 90 days.
func (s *DashboardService) CoachDashboard(ctx context.Context, coachID string) (*CoachDashboard, error) {
	cacheKey := fmt.Sprintf("dashboard:coach:%s", coachID)
	if s.cache != nil {
		var cached CoachDashboard
		if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
			return &cached, nil
		}
	}

	now := time.Now().UTC()
	from := now.AddDate(0, 0, -90)

	assignments, err := s.assignments.ListActiveByCoach(ctx, coachID)
	if err != nil {
		return nil, err
	}
	cohorts := make([]CoachDashboardCohort, 0, len(assignments))
	for _, assignment := range assignments {
		entry := CoachDashboardCohort{CoachAssignment: assignment}
		if s.sessions != nil {
			session, err := s.sessions.NextSession(ctx, assignment.CohortID)
			if err != nil {
				s.logger.Warn("failed to load next session",
					zap.String("cohort_id", assignment.CohortID), zap.Error(err))
			} else {
				entry.NextSession = session
			}
		}
		cohorts = append(cohorts, entry)
	}

	earnings, total, err := s.payouts.CoachEarnings(ctx, coachID, from, now)
	if err != nil {
		return nil, err
	}

	dashboard := &CoachDashboard{
		CoachID:     coachID,
		Assignments: cohorts,
		Earnings:    earnings,
		TotalEarned: total,
		Period:      CoachDashboardPeriod{From: from, To: now},
		GeneratedAt: now,
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, dashboard, 2*time.Minute); err != nil {
			s.logger.Debug("dashboard cache set failed", zap.Error(err))
		}
	}
	return dashboard, nil
}
