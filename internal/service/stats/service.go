// Package stats orchestrates the per-submission aggregation pipeline:
// profile counters, activity calendar, streak, coin rewards and the
// badge sweep, in a fixed order.
package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/koodecode/progression/internal/config"
	prommetrics "github.com/koodecode/progression/internal/metrics"
	"github.com/koodecode/progression/internal/models"
	"github.com/koodecode/progression/internal/repository"
	"github.com/koodecode/progression/internal/service/activity"
	"github.com/koodecode/progression/pkg/logger"
)

// ProfileRepository interface for profile operations used by the pipeline.
type ProfileRepository interface {
	FindOrCreate(userID string) (*models.UserProfile, error)
	GetByUserID(userID string) (*models.UserProfile, error)
	IncrementSubmission(userID string, accepted bool) error
	MarkAttempted(userID, problemID string) error
	MarkSolved(userID, problemID string, solvedAt time.Time) (bool, error)
	IncrementSolveCounters(userID string, difficulty models.Difficulty, solvedAt time.Time) error
	IncrementLanguage(userID, languageID string) error
	RecordActivity(userID, date, activityType string, count int) (bool, error)
	UpdateStreak(userID string, streak models.Streak) error
	IncrementActiveDays(userID string) error
	ListActivitiesForYear(userID string, year int) ([]models.Activity, error)
	ListLanguageUsage(userID string) ([]models.LanguageUsage, error)
}

// BadgeSweeper interface for the post-update badge sweep.
type BadgeSweeper interface {
	Sweep(ctx context.Context, userID string) ([]models.Badge, error)
}

// CoinLedger interface for paying solve rewards.
type CoinLedger interface {
	Earn(ctx context.Context, userID string, amount int64, source, description string, metadata json.RawMessage) error
}

// Service is the orchestrating entry point for submission outcomes.
type Service struct {
	profileRepo ProfileRepository
	badges      BadgeSweeper
	coins       CoinLedger
	rewards     config.RewardsConfig
	log         *logger.Logger
	now         func() time.Time
}

// NewService creates a new stats service.
func NewService(
	profileRepo *repository.ProfileRepository,
	badgeSweeper BadgeSweeper,
	coins CoinLedger,
	rewards config.RewardsConfig,
	log *logger.Logger,
) *Service {
	return &Service{
		profileRepo: profileRepo,
		badges:      badgeSweeper,
		coins:       coins,
		rewards:     rewards,
		log:         log,
		now:         time.Now,
	}
}

// NewServiceWithInterfaces creates a new stats service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(
	profileRepo ProfileRepository,
	badgeSweeper BadgeSweeper,
	coins CoinLedger,
	rewards config.RewardsConfig,
	log *logger.Logger,
) *Service {
	return &Service{
		profileRepo: profileRepo,
		badges:      badgeSweeper,
		coins:       coins,
		rewards:     rewards,
		log:         log,
		now:         time.Now,
	}
}

// SetClock overrides the pipeline clock. Used by tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// RecordSubmission runs the aggregation pipeline for one submission
// outcome. Each step's effects are durable before the next begins; a
// failing step logs and aborts the remaining steps without rolling back
// earlier ones. Stat drift from an aborted run self-corrects on the next
// event, so only a failure to load or create the profile propagates.
//
// Rejected submissions update the submission counters only: failed
// attempts alone do not record activity, build streaks or earn badges.
func (s *Service) RecordSubmission(ctx context.Context, userID, problemID string, accepted bool, difficulty models.Difficulty, languageID string) error {
	if userID == "" || problemID == "" {
		return fmt.Errorf("user id and problem id are required: %w", models.ErrValidation)
	}
	if accepted && !difficulty.Valid() {
		return fmt.Errorf("unknown difficulty %q: %w", difficulty, models.ErrValidation)
	}

	log := s.log.With().
		Str("user_id", userID).
		Str("problem_id", problemID).
		Bool("accepted", accepted).
		Logger()

	// Step 1: lazily initialize the profile.
	profile, err := s.profileRepo.FindOrCreate(userID)
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}

	// Step 2: submission counters and acceptance rate.
	if err := s.profileRepo.IncrementSubmission(userID, accepted); err != nil {
		log.Error().Err(err).Msg("Failed to increment submission counters")
		return nil
	}

	status := "rejected"
	if accepted {
		status = "accepted"
	}
	prommetrics.RecordSubmission(status, string(difficulty))

	if !accepted {
		return nil
	}

	// Step 3: attempted set.
	if err := s.profileRepo.MarkAttempted(userID, problemID); err != nil {
		log.Error().Err(err).Msg("Failed to mark problem attempted")
		return nil
	}

	// Step 4: language usage.
	if languageID != "" {
		if err := s.profileRepo.IncrementLanguage(userID, languageID); err != nil {
			log.Error().Err(err).Msg("Failed to increment language usage")
			return nil
		}
	}

	now := s.now().UTC()

	// Steps 5-6: solved set and solve counters, first acceptance only.
	newlySolved, err := s.profileRepo.MarkSolved(userID, problemID, now)
	if err != nil {
		log.Error().Err(err).Msg("Failed to mark problem solved")
		return nil
	}
	if newlySolved {
		if err := s.profileRepo.IncrementSolveCounters(userID, difficulty, now); err != nil {
			log.Error().Err(err).Msg("Failed to increment solve counters")
			return nil
		}
		prommetrics.RecordProblemSolved(string(difficulty))
		s.paySolveReward(ctx, userID, problemID, difficulty, log)
	}

	// Step 7: activity calendar.
	today := activity.DateKey(now)
	firstToday, err := s.profileRepo.RecordActivity(userID, today, models.ActivityProblemSolved, 1)
	if err != nil {
		log.Error().Err(err).Msg("Failed to record activity")
		return nil
	}

	// Step 8: streak, and active days on the first activity of the day.
	streak := activity.UpdateStreak(profile.Streak, true, now)
	if err := s.profileRepo.UpdateStreak(userID, streak); err != nil {
		log.Error().Err(err).Msg("Failed to update streak")
		return nil
	}
	if firstToday {
		if err := s.profileRepo.IncrementActiveDays(userID); err != nil {
			log.Error().Err(err).Msg("Failed to increment active days")
			return nil
		}
	}

	// Step 9: badge sweep over the updated profile.
	if _, err := s.badges.Sweep(ctx, userID); err != nil {
		log.Error().Err(err).Msg("Badge sweep failed")
	}

	return nil
}

// GetProfile retrieves a user's aggregate statistics. Streaks only
// decay on read: a user who went quiet has no events to age the counter
// through the pipeline, so the stored streak is re-evaluated against
// the current date and a lapsed one is reset before the profile is
// returned.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	profile, err := s.profileRepo.GetByUserID(userID)
	if err != nil {
		return nil, err
	}

	aged := activity.UpdateStreak(profile.Streak, false, s.now().UTC())
	if aged.CurrentCount != profile.Streak.CurrentCount {
		if err := s.profileRepo.UpdateStreak(userID, aged); err != nil {
			// Serve the corrected view anyway; the next read retries.
			s.log.Error().Err(err).Str("user_id", userID).Msg("Failed to persist lapsed streak")
		}
		profile.Streak = aged
	}

	return profile, nil
}

// GetCalendar maps each active day of a year to its activity count.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) GetCalendar(ctx context.Context, userID string, year int) (map[string]int, error) {
	entries, err := s.profileRepo.ListActivitiesForYear(userID, year)
	if err != nil {
		return nil, fmt.Errorf("failed to load activity calendar: %w", err)
	}
	return activity.CalendarForYear(entries, year), nil
}

// GetLanguageUsage retrieves a user's per-language submission counts.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) GetLanguageUsage(ctx context.Context, userID string) ([]models.LanguageUsage, error) {
	return s.profileRepo.ListLanguageUsage(userID)
}

// paySolveReward credits the difficulty-based coin reward for a first
// accepted solve. Best-effort like the rest of the side-effect chain.
func (s *Service) paySolveReward(ctx context.Context, userID, problemID string, difficulty models.Difficulty, log zerolog.Logger) {
	amount := s.rewards.CoinsFor(string(difficulty))
	if amount <= 0 {
		return
	}

	metadata, _ := json.Marshal(map[string]string{"problem_id": problemID})
	err := s.coins.Earn(ctx, userID, amount, models.CoinSourceProblemSolved,
		fmt.Sprintf("Solved %s problem", difficulty), metadata)
	if err != nil {
		log.Error().Err(err).Msg("Failed to pay solve reward")
	}
}
