// Package badges provides badge eligibility evaluation and awarding.
package badges

import (
	"context"
	"fmt"
	"time"

	prommetrics "github.com/koodecode/progression/internal/metrics"
	"github.com/koodecode/progression/internal/models"
	"github.com/koodecode/progression/internal/repository"
	"github.com/koodecode/progression/internal/service/activity"
	"github.com/koodecode/progression/pkg/logger"
)

// BadgeRepository interface for badge operations.
type BadgeRepository interface {
	ListActive() ([]models.Badge, error)
	GetByName(name string) (*models.Badge, error)
	Create(badge *models.Badge) error
	Update(badge *models.Badge) error
	Award(snapshot *models.UserBadge) (bool, error)
	HasUserEarnedBadge(userID string, badgeID uint) (bool, error)
	GetUserBadges(userID string) ([]models.UserBadge, error)
	GetBadgeHoldersCount(badgeID uint) (int64, error)
}

// ProfileRepository interface for profile operations needed by the sweep.
type ProfileRepository interface {
	GetByUserID(userID string) (*models.UserProfile, error)
	RecordActivity(userID, date, activityType string, count int) (bool, error)
}

// Service evaluates badge criteria and awards badges.
type Service struct {
	badgeRepo   BadgeRepository
	profileRepo ProfileRepository
	log         *logger.Logger
}

// NewService creates a new badge service.
func NewService(badgeRepo *repository.BadgeRepository, profileRepo *repository.ProfileRepository, log *logger.Logger) *Service {
	return &Service{badgeRepo: badgeRepo, profileRepo: profileRepo, log: log}
}

// NewServiceWithInterfaces creates a new badge service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(badgeRepo BadgeRepository, profileRepo ProfileRepository, log *logger.Logger) *Service {
	return &Service{badgeRepo: badgeRepo, profileRepo: profileRepo, log: log}
}

// Sweep evaluates every active catalog badge the user has not yet earned
// and awards the eligible ones. Idempotent: rerunning with unchanged
// stats awards nothing. Badges are processed one at a time with each
// award persisted before the next evaluation, so an interrupted sweep
// loses no awards. Returns the newly awarded catalog badges.
func (s *Service) Sweep(ctx context.Context, userID string) ([]models.Badge, error) {
	start := time.Now()
	defer func() {
		prommetrics.ObserveBadgeSweepDuration(time.Since(start).Seconds())
	}()

	profile, err := s.profileRepo.GetByUserID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	catalog, err := s.badgeRepo.ListActive()
	if err != nil {
		return nil, fmt.Errorf("failed to load badge catalog: %w", err)
	}

	var newlyEarned []models.Badge

	for _, badge := range catalog {
		earned, err := s.badgeRepo.HasUserEarnedBadge(userID, badge.ID)
		if err != nil {
			s.log.Error().
				Err(err).
				Str("user_id", userID).
				Uint("badge_id", badge.ID).
				Msg("Failed to check if user has badge")
			continue
		}
		if earned {
			continue
		}

		result := Evaluate(profile, &badge)
		if !result.Eligible {
			continue
		}

		awarded, err := s.award(ctx, userID, &badge)
		if err != nil {
			s.log.Error().
				Err(err).
				Str("user_id", userID).
				Str("badge", badge.Name).
				Msg("Failed to award badge")
			continue
		}
		if awarded {
			newlyEarned = append(newlyEarned, badge)
			s.log.Info().
				Str("user_id", userID).
				Str("badge", badge.Name).
				Int("current_value", result.CurrentValue).
				Int("threshold", result.Threshold).
				Msg("Badge awarded")
		}
	}

	return newlyEarned, nil
}

// award persists the snapshot, records the calendar activity and updates
// the badge metrics. Reports false when another sweep won the race.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) award(ctx context.Context, userID string, badge *models.Badge) (bool, error) {
	snapshot := badge.Snapshot(userID, time.Now().UTC())

	awarded, err := s.badgeRepo.Award(snapshot)
	if err != nil {
		return false, err
	}
	if !awarded {
		return false, nil
	}

	today := activity.DateKey(time.Now().UTC())
	if _, err := s.profileRepo.RecordActivity(userID, today, models.ActivityBadgeEarned, 1); err != nil {
		// The award itself is durable; losing the calendar tag is
		// self-correcting noise, not a reason to fail the sweep.
		s.log.Warn().
			Err(err).
			Str("user_id", userID).
			Str("badge", badge.Name).
			Msg("Failed to record badge activity")
	}

	prommetrics.RecordBadgeAwarded(badge.Name)
	if count, err := s.badgeRepo.GetBadgeHoldersCount(badge.ID); err == nil {
		prommetrics.SetActiveBadgeHolders(badge.Name, int(count))
	}

	return true, nil
}

// GetUserBadges retrieves all badge snapshots earned by a user.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) GetUserBadges(ctx context.Context, userID string) ([]models.UserBadge, error) {
	return s.badgeRepo.GetUserBadges(userID)
}

// GetCatalog retrieves the active badge catalog.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) GetCatalog(ctx context.Context) ([]models.Badge, error) {
	return s.badgeRepo.ListActive()
}
