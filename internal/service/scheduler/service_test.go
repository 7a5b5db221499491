package scheduler

import (
	"context"
	"fmt"
	"testing"

	"github.com/koodecode/progression/internal/config"
	"github.com/koodecode/progression/internal/models"
	"github.com/koodecode/progression/pkg/logger"
)

type mockProfileRepository struct {
	userIDs  []string
	profiles map[string]*models.UserProfile
	solved   map[string]int64
	listErr  error
}

func (m *mockProfileRepository) ListUserIDs() ([]string, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.userIDs, nil
}

func (m *mockProfileRepository) GetByUserID(userID string) (*models.UserProfile, error) {
	if p, ok := m.profiles[userID]; ok {
		return p, nil
	}
	return &models.UserProfile{UserID: userID}, nil
}

func (m *mockProfileRepository) CountSolved(userID string) (int64, error) {
	return m.solved[userID], nil
}

type mockCoinAuditor struct {
	earned map[string]int64
	spent  map[string]int64
}

func (m *mockCoinAuditor) SumByType(userID string, txType models.TransactionType) (int64, error) {
	if txType == models.TransactionEarn {
		return m.earned[userID], nil
	}
	return m.spent[userID], nil
}

type mockBadgeSweeper struct {
	swept   []string
	failFor map[string]bool
	awarded map[string]int
}

func (m *mockBadgeSweeper) Sweep(ctx context.Context, userID string) ([]models.Badge, error) {
	if m.failFor[userID] {
		return nil, fmt.Errorf("sweep failed for %s", userID)
	}
	m.swept = append(m.swept, userID)
	badges := make([]models.Badge, m.awarded[userID])
	return badges, nil
}

type mockLeaderboardRefresher struct {
	refreshes  int
	refreshErr error
}

func (m *mockLeaderboardRefresher) Refresh(ctx context.Context) error {
	m.refreshes++
	return m.refreshErr
}

func setupTestService(cfg config.SchedulerConfig) (*Service, *mockProfileRepository, *mockBadgeSweeper, *mockLeaderboardRefresher) {
	profileRepo := &mockProfileRepository{
		profiles: map[string]*models.UserProfile{},
		solved:   map[string]int64{},
	}
	sweeper := &mockBadgeSweeper{failFor: map[string]bool{}, awarded: map[string]int{}}
	refresher := &mockLeaderboardRefresher{}
	auditor := &mockCoinAuditor{earned: map[string]int64{}, spent: map[string]int64{}}
	log := logger.New("debug", "json", "stdout")

	service := NewService(cfg, profileRepo, sweeper, refresher, auditor, log)

	return service, profileRepo, sweeper, refresher
}

func TestBuildCronExpression(t *testing.T) {
	tests := []struct {
		time     string
		expected string
		wantErr  bool
	}{
		{"03:00", "0 3 * * *", false},
		{"23:59", "59 23 * * *", false},
		{"00:00", "0 0 * * *", false},
		{"24:00", "", true},
		{"12:60", "", true},
		{"noon", "", true},
		{"12", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.time, func(t *testing.T) {
			service, _, _, _ := setupTestService(config.SchedulerConfig{Time: tt.time})

			expr, err := service.buildCronExpression()
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if expr != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, expr)
			}
		})
	}
}

func TestStart_DisabledIsNoOp(t *testing.T) {
	service, _, _, _ := setupTestService(config.SchedulerConfig{Enabled: false})

	if err := service.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if service.cron != nil {
		t.Error("Expected no cron instance when disabled")
	}
	service.Stop()
}

func TestStart_InvalidTimezone(t *testing.T) {
	service, _, _, _ := setupTestService(config.SchedulerConfig{
		Enabled:  true,
		Time:     "03:00",
		Timezone: "Mars/Olympus_Mons",
	})

	if err := service.Start(); err == nil {
		t.Error("Expected error for invalid timezone")
	}
}

func TestStartStop(t *testing.T) {
	service, _, _, _ := setupTestService(config.SchedulerConfig{
		Enabled:  true,
		Time:     "03:00",
		Timezone: "UTC",
	})

	if err := service.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if service.cron == nil {
		t.Fatal("Expected cron instance")
	}
	if len(service.cron.Entries()) != 1 {
		t.Errorf("Expected 1 scheduled job, got %d", len(service.cron.Entries()))
	}
	service.Stop()
}

func TestRunReconciliation(t *testing.T) {
	service, profileRepo, sweeper, refresher := setupTestService(config.SchedulerConfig{})
	profileRepo.userIDs = []string{"u1", "u2", "u3"}
	sweeper.awarded["u2"] = 1

	service.RunReconciliation(context.Background())

	if len(sweeper.swept) != 3 {
		t.Errorf("Expected 3 sweeps, got %d", len(sweeper.swept))
	}
	if refresher.refreshes != 1 {
		t.Errorf("Expected 1 leaderboard refresh, got %d", refresher.refreshes)
	}
}

func TestRunReconciliation_ContinuesPastFailedUser(t *testing.T) {
	service, profileRepo, sweeper, refresher := setupTestService(config.SchedulerConfig{})
	profileRepo.userIDs = []string{"u1", "u2", "u3"}
	sweeper.failFor["u2"] = true

	service.RunReconciliation(context.Background())

	if len(sweeper.swept) != 2 {
		t.Errorf("Expected the failing user to be skipped, got %d sweeps", len(sweeper.swept))
	}
	if refresher.refreshes != 1 {
		t.Errorf("Expected leaderboard refresh despite sweep failures, got %d", refresher.refreshes)
	}
}

func TestRunReconciliation_DetectsCoinBalanceDrift(t *testing.T) {
	service, profileRepo, _, _ := setupTestService(config.SchedulerConfig{})
	profileRepo.userIDs = []string{"u1"}
	// A purchase debited the balance but its delivery write was lost.
	// Replaying the ledger exposes the mismatch.
	profileRepo.profiles["u1"] = &models.UserProfile{UserID: "u1", CoinBalance: 50}
	service.coins.(*mockCoinAuditor).earned["u1"] = 100
	service.coins.(*mockCoinAuditor).spent["u1"] = 30

	drift, err := service.auditUser("u1")
	if err != nil {
		t.Fatalf("auditUser failed: %v", err)
	}
	if !drift {
		t.Error("Expected drift when balance disagrees with ledger net")
	}
}

func TestRunReconciliation_DetectsSolveCounterDrift(t *testing.T) {
	service, profileRepo, _, _ := setupTestService(config.SchedulerConfig{})
	profileRepo.profiles["u1"] = &models.UserProfile{UserID: "u1", TotalProblems: 7}
	profileRepo.solved["u1"] = 5

	drift, err := service.auditUser("u1")
	if err != nil {
		t.Fatalf("auditUser failed: %v", err)
	}
	if !drift {
		t.Error("Expected drift when the counter disagrees with solved rows")
	}
}

func TestRunReconciliation_CleanProfileHasNoDrift(t *testing.T) {
	service, profileRepo, _, _ := setupTestService(config.SchedulerConfig{})
	profileRepo.profiles["u1"] = &models.UserProfile{UserID: "u1", TotalProblems: 5, CoinBalance: 70}
	profileRepo.solved["u1"] = 5
	service.coins.(*mockCoinAuditor).earned["u1"] = 100
	service.coins.(*mockCoinAuditor).spent["u1"] = 30

	drift, err := service.auditUser("u1")
	if err != nil {
		t.Fatalf("auditUser failed: %v", err)
	}
	if drift {
		t.Error("Expected no drift for a consistent profile")
	}
}

func TestRunReconciliation_ListFailureAborts(t *testing.T) {
	service, profileRepo, sweeper, refresher := setupTestService(config.SchedulerConfig{})
	profileRepo.listErr = fmt.Errorf("database down")

	service.RunReconciliation(context.Background())

	if len(sweeper.swept) != 0 {
		t.Error("Expected no sweeps when listing fails")
	}
	if refresher.refreshes != 0 {
		t.Error("Expected no refresh when listing fails")
	}
}
