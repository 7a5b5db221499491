// Package scheduler runs the nightly reconciliation job: a badge sweep
// across all profiles plus a leaderboard cache refresh. Event-driven
// sweeps self-heal most drift; this job catches users who went quiet
// after a failed pipeline step.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/koodecode/progression/internal/config"
	prommetrics "github.com/koodecode/progression/internal/metrics"
	"github.com/koodecode/progression/internal/models"
	"github.com/koodecode/progression/pkg/logger"
)

// ProfileRepository interface for enumerating and auditing profiles.
type ProfileRepository interface {
	ListUserIDs() ([]string, error)
	GetByUserID(userID string) (*models.UserProfile, error)
	CountSolved(userID string) (int64, error)
}

// CoinAuditor interface for reconciling balances against the ledger.
type CoinAuditor interface {
	SumByType(userID string, txType models.TransactionType) (int64, error)
}

// BadgeSweeper interface for the per-user sweep.
type BadgeSweeper interface {
	Sweep(ctx context.Context, userID string) ([]models.Badge, error)
}

// LeaderboardRefresher interface for cache refresh.
type LeaderboardRefresher interface {
	Refresh(ctx context.Context) error
}

// Service schedules the reconciliation job.
type Service struct {
	config      config.SchedulerConfig
	profileRepo ProfileRepository
	badges      BadgeSweeper
	leaderboard LeaderboardRefresher
	coins       CoinAuditor
	log         *logger.Logger
	cron        *cron.Cron
}

// NewService creates a new scheduler service.
func NewService(
	cfg config.SchedulerConfig,
	profileRepo ProfileRepository,
	badges BadgeSweeper,
	leaderboard LeaderboardRefresher,
	coins CoinAuditor,
	log *logger.Logger,
) *Service {
	return &Service{
		config:      cfg,
		profileRepo: profileRepo,
		badges:      badges,
		leaderboard: leaderboard,
		coins:       coins,
		log:         log,
	}
}

// Start initializes and starts the cron scheduler.
func (s *Service) Start() error {
	if !s.config.Enabled {
		s.log.Info().Msg("Scheduler is disabled in configuration")
		return nil
	}

	location, err := s.config.GetLocation()
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", s.config.Timezone, err)
	}

	s.cron = cron.New(cron.WithLocation(location))

	cronExpr, err := s.buildCronExpression()
	if err != nil {
		return fmt.Errorf("failed to build cron expression: %w", err)
	}

	_, err = s.cron.AddFunc(cronExpr, func() {
		s.RunReconciliation(context.Background())
	})
	if err != nil {
		return fmt.Errorf("failed to register reconciliation job: %w", err)
	}

	s.cron.Start()

	entries := s.cron.Entries()
	nextRun := ""
	if len(entries) > 0 {
		nextRun = entries[0].Next.Format(time.RFC3339)
	}

	s.log.Info().
		Str("schedule", cronExpr).
		Str("timezone", s.config.Timezone).
		Str("next_run", nextRun).
		Msg("Scheduler started successfully")

	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Service) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.log.Info().Msg("Scheduler stopped")
	}
}

// buildCronExpression generates a cron expression from the HH:MM config.
func (s *Service) buildCronExpression() (string, error) {
	parts := strings.Split(s.config.Time, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid time format %q, expected HH:MM", s.config.Time)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour %q", parts[0])
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute %q", parts[1])
	}

	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

// RunReconciliation sweeps badges for every profile, audits the
// materialized counters against their sources of truth and refreshes
// the leaderboard caches. Per-user failures are logged and skipped.
func (s *Service) RunReconciliation(ctx context.Context) {
	start := time.Now()
	s.log.Info().Msg("Starting reconciliation job")

	userIDs, err := s.profileRepo.ListUserIDs()
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list profiles for reconciliation")
		prommetrics.RecordSchedulerJobRun("error")
		return
	}

	awarded := 0
	drifted := 0
	for _, userID := range userIDs {
		newly, err := s.badges.Sweep(ctx, userID)
		if err != nil {
			s.log.Error().Err(err).Str("user_id", userID).Msg("Reconciliation sweep failed")
			continue
		}
		awarded += len(newly)

		drift, err := s.auditUser(userID)
		if err != nil {
			s.log.Error().Err(err).Str("user_id", userID).Msg("Reconciliation audit failed")
			continue
		}
		if drift {
			drifted++
		}
	}

	if err := s.leaderboard.Refresh(ctx); err != nil {
		s.log.Error().Err(err).Msg("Leaderboard refresh failed")
	}

	duration := time.Since(start)
	prommetrics.RecordSchedulerJobRun("success")
	prommetrics.ObserveSchedulerJobDuration(duration.Seconds())

	s.log.Info().
		Int("users", len(userIDs)).
		Int("badges_awarded", awarded).
		Int("drifted_users", drifted).
		Dur("duration", duration).
		Msg("Reconciliation job complete")
}

// auditUser cross-checks a profile's materialized counters against
// their sources of truth: the solved rows for total_problems and the
// coin ledger for coin_balance. Detection only; drift means a partial
// failure between a debit and its delivery left residue, and that needs
// an operator, not an automated write.
func (s *Service) auditUser(userID string) (bool, error) {
	profile, err := s.profileRepo.GetByUserID(userID)
	if err != nil {
		return false, err
	}
	solved, err := s.profileRepo.CountSolved(userID)
	if err != nil {
		return false, err
	}
	earned, err := s.coins.SumByType(userID, models.TransactionEarn)
	if err != nil {
		return false, err
	}
	spent, err := s.coins.SumByType(userID, models.TransactionSpend)
	if err != nil {
		return false, err
	}

	drift := false
	if int64(profile.TotalProblems) != solved {
		drift = true
		s.log.Warn().
			Str("user_id", userID).
			Int("profile_total", profile.TotalProblems).
			Int64("solved_rows", solved).
			Msg("Solve counter drift detected")
	}
	if profile.CoinBalance != earned-spent {
		drift = true
		s.log.Warn().
			Str("user_id", userID).
			Int64("balance", profile.CoinBalance).
			Int64("ledger_net", earned-spent).
			Msg("Coin balance drift detected")
	}
	return drift, nil
}
