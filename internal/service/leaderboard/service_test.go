package leaderboard

import (
	"context"
	"testing"

	"github.com/koodecode/progression/internal/models"
	"github.com/koodecode/progression/pkg/logger"
	"github.com/koodecode/progression/test/mocks"
)

type mockProfileRepository struct {
	profiles []models.UserProfile
	listErr  error
	calls    int
}

func (m *mockProfileRepository) ListTop(orderColumn string, limit int) ([]models.UserProfile, error) {
	m.calls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	if len(m.profiles) > limit {
		return m.profiles[:limit], nil
	}
	return m.profiles, nil
}

type mockBadgeRepository struct {
	counts map[string]int64
}

func (m *mockBadgeRepository) GetUserBadgeCount(userID string) (int64, error) {
	return m.counts[userID], nil
}

func setupTestService() (*Service, *mockProfileRepository, *mocks.MockCache) {
	profileRepo := &mockProfileRepository{
		profiles: []models.UserProfile{
			{UserID: "alice", TotalProblems: 120, Streak: models.Streak{MaxCount: 30}, ActiveDays: 90},
			{UserID: "bob", TotalProblems: 80, Streak: models.Streak{MaxCount: 15}, ActiveDays: 60},
			{UserID: "carol", TotalProblems: 40, Streak: models.Streak{MaxCount: 7}, ActiveDays: 20},
		},
	}
	badgeRepo := &mockBadgeRepository{counts: map[string]int64{"alice": 5, "bob": 2}}
	cache := mocks.NewMockCache()
	log := logger.New("debug", "json", "stdout")

	service := NewServiceWithInterfaces(profileRepo, badgeRepo, cache, log)

	return service, profileRepo, cache
}

func TestGetLeaderboard(t *testing.T) {
	service, _, _ := setupTestService()

	entries, err := service.GetLeaderboard(context.Background(), "problems_solved", 10)
	if err != nil {
		t.Fatalf("GetLeaderboard failed: %v", err)
	}

	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}
	if entries[0].UserID != "alice" || entries[0].Rank != 1 {
		t.Errorf("Expected alice at rank 1, got %+v", entries[0])
	}
	if entries[2].Rank != 3 {
		t.Errorf("Expected rank 3 for last entry, got %d", entries[2].Rank)
	}
	if entries[0].BadgeCount != 5 {
		t.Errorf("Expected badge count 5 for alice, got %d", entries[0].BadgeCount)
	}
	if entries[2].BadgeCount != 0 {
		t.Errorf("Expected badge count 0 for carol, got %d", entries[2].BadgeCount)
	}
}

func TestGetLeaderboard_UnknownMetric(t *testing.T) {
	service, _, _ := setupTestService()

	if _, err := service.GetLeaderboard(context.Background(), "karma", 10); err == nil {
		t.Error("Expected error for unknown metric")
	}
}

func TestGetLeaderboard_ServesFromCache(t *testing.T) {
	service, profileRepo, _ := setupTestService()
	ctx := context.Background()

	if _, err := service.GetLeaderboard(ctx, "problems_solved", 10); err != nil {
		t.Fatalf("First call failed: %v", err)
	}
	if _, err := service.GetLeaderboard(ctx, "problems_solved", 10); err != nil {
		t.Fatalf("Second call failed: %v", err)
	}

	if profileRepo.calls != 1 {
		t.Errorf("Expected 1 repository query with a warm cache, got %d", profileRepo.calls)
	}
}

func TestGetLeaderboard_LimitClamped(t *testing.T) {
	service, _, _ := setupTestService()

	entries, err := service.GetLeaderboard(context.Background(), "max_streak", -5)
	if err != nil {
		t.Fatalf("GetLeaderboard failed: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("Expected all 3 entries under the default limit, got %d", len(entries))
	}
}

func TestRefresh(t *testing.T) {
	service, profileRepo, cache := setupTestService()
	ctx := context.Background()

	// Warm a cache entry, then change the data underneath it.
	if _, err := service.GetLeaderboard(ctx, "problems_solved", 10); err != nil {
		t.Fatalf("Warmup failed: %v", err)
	}
	profileRepo.profiles[0].TotalProblems = 500

	if err := service.Refresh(ctx); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	entries, err := service.GetLeaderboard(ctx, "problems_solved", 10)
	if err != nil {
		t.Fatalf("GetLeaderboard failed: %v", err)
	}
	if entries[0].TotalProblems != 500 {
		t.Errorf("Expected refreshed data, got %d", entries[0].TotalProblems)
	}

	cache.Clear()
}
