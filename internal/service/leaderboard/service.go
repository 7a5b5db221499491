// Package leaderboard ranks users by their aggregate progression counters.
package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/koodecode/progression/internal/cache"
	"github.com/koodecode/progression/internal/models"
	"github.com/koodecode/progression/internal/repository"
	"github.com/koodecode/progression/pkg/logger"
)

// ProfileRepository interface for profile queries.
type ProfileRepository interface {
	ListTop(orderColumn string, limit int) ([]models.UserProfile, error)
}

// BadgeRepository interface for badge counts.
type BadgeRepository interface {
	GetUserBadgeCount(userID string) (int64, error)
}

// Entry represents a single entry in a leaderboard.
type Entry struct {
	UserID        string `json:"user_id"`
	Rank          int    `json:"rank"`
	TotalProblems int    `json:"total_problems"`
	MaxStreak     int    `json:"max_streak"`
	ActiveDays    int    `json:"active_days"`
	BadgeCount    int    `json:"badge_count"`
}

// Metrics a leaderboard can rank by, mapped to their profile columns.
var metricColumns = map[string]string{
	"problems_solved": "total_problems",
	"max_streak":      "streak_max_count",
	"active_days":     "active_days",
}

const cacheTTL = 60 * time.Second

// Service builds leaderboards over the profile counters, with a short
// Redis cache in front.
type Service struct {
	profileRepo ProfileRepository
	badgeRepo   BadgeRepository
	cache       cache.Cache
	log         *logger.Logger
}

// NewService creates a new leaderboard service.
func NewService(profileRepo *repository.ProfileRepository, badgeRepo *repository.BadgeRepository, c cache.Cache, log *logger.Logger) *Service {
	return &Service{profileRepo: profileRepo, badgeRepo: badgeRepo, cache: c, log: log}
}

// NewServiceWithInterfaces creates a new leaderboard service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(profileRepo ProfileRepository, badgeRepo BadgeRepository, c cache.Cache, log *logger.Logger) *Service {
	return &Service{profileRepo: profileRepo, badgeRepo: badgeRepo, cache: c, log: log}
}

// GetLeaderboard returns the top users ranked by a metric.
func (s *Service) GetLeaderboard(ctx context.Context, metric string, limit int) ([]Entry, error) {
	column, ok := metricColumns[metric]
	if !ok {
		return nil, fmt.Errorf("unknown leaderboard metric %q: %w", metric, models.ErrValidation)
	}
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	key := fmt.Sprintf("leaderboard:%s:%d", metric, limit)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, key); err == nil && cached != "" {
			var entries []Entry
			if err := json.Unmarshal([]byte(cached), &entries); err == nil {
				return entries, nil
			}
		}
	}

	entries, err := s.build(column, limit)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if payload, err := json.Marshal(entries); err == nil {
			if err := s.cache.Set(ctx, key, string(payload), cacheTTL); err != nil {
				s.log.Warn().Err(err).Str("key", key).Msg("Failed to cache leaderboard")
			}
		}
	}

	return entries, nil
}

// Refresh recomputes and caches every known leaderboard. Run by the
// nightly reconciliation job.
func (s *Service) Refresh(ctx context.Context) error {
	for metric := range metricColumns {
		key := fmt.Sprintf("leaderboard:%s:%d", metric, 10)
		if s.cache != nil {
			if err := s.cache.Del(ctx, key); err != nil {
				s.log.Warn().Err(err).Str("key", key).Msg("Failed to invalidate leaderboard cache")
			}
		}
		if _, err := s.GetLeaderboard(ctx, metric, 10); err != nil {
			return fmt.Errorf("failed to refresh %s leaderboard: %w", metric, err)
		}
	}
	return nil
}

func (s *Service) build(column string, limit int) ([]Entry, error) {
	profiles, err := s.profileRepo.ListTop(column, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list top profiles: %w", err)
	}

	entries := make([]Entry, 0, len(profiles))
	for i := range profiles {
		p := &profiles[i]

		badgeCount := 0
		if count, err := s.badgeRepo.GetUserBadgeCount(p.UserID); err != nil {
			s.log.Warn().Err(err).Str("user_id", p.UserID).Msg("Failed to get badge count")
		} else {
			badgeCount = int(count)
		}

		entries = append(entries, Entry{
			UserID:        p.UserID,
			Rank:          i + 1,
			TotalProblems: p.TotalProblems,
			MaxStreak:     p.Streak.MaxCount,
			ActiveDays:    p.ActiveDays,
			BadgeCount:    badgeCount,
		})
	}

	return entries, nil
}
