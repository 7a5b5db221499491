//nolint:noctx // Test file uses http.NewRequest for simplicity
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/koodecode/progression/internal/models"
	"github.com/koodecode/progression/internal/service/leaderboard"
	"github.com/koodecode/progression/internal/service/store"
	"github.com/koodecode/progression/pkg/logger"
)

// Mock Stats Service
type mockStatsService struct {
	profiles    map[string]*models.UserProfile
	calendars   map[string]map[string]int
	submissions []string
	recordErr   error
}

func newMockStatsService() *mockStatsService {
	return &mockStatsService{
		profiles:  make(map[string]*models.UserProfile),
		calendars: make(map[string]map[string]int),
	}
}

func (m *mockStatsService) RecordSubmission(ctx context.Context, userID, problemID string, accepted bool, difficulty models.Difficulty, languageID string) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	m.submissions = append(m.submissions, userID+"/"+problemID)
	return nil
}

func (m *mockStatsService) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	if p, exists := m.profiles[userID]; exists {
		return p, nil
	}
	return nil, fmt.Errorf("profile for user %s: %w", userID, models.ErrNotFound)
}

func (m *mockStatsService) GetCalendar(ctx context.Context, userID string, year int) (map[string]int, error) {
	if c, exists := m.calendars[userID]; exists {
		return c, nil
	}
	return map[string]int{}, nil
}

func (m *mockStatsService) GetLanguageUsage(ctx context.Context, userID string) ([]models.LanguageUsage, error) {
	return []models.LanguageUsage{}, nil
}

// Mock Badge Service
type mockBadgeService struct {
	userBadges map[string][]models.UserBadge
	catalog    []models.Badge
}

func newMockBadgeService() *mockBadgeService {
	return &mockBadgeService{userBadges: make(map[string][]models.UserBadge)}
}

func (m *mockBadgeService) GetUserBadges(ctx context.Context, userID string) ([]models.UserBadge, error) {
	badges, exists := m.userBadges[userID]
	if !exists {
		return []models.UserBadge{}, nil
	}
	return badges, nil
}

func (m *mockBadgeService) GetCatalog(ctx context.Context) ([]models.Badge, error) {
	return m.catalog, nil
}

// Mock Store Service
type mockStoreService struct {
	items       []models.StoreItem
	inventory   map[string][]models.InventoryItem
	missedDays  map[string][]string
	purchaseErr error
	ticketErr   error
}

func newMockStoreService() *mockStoreService {
	return &mockStoreService{
		inventory:  make(map[string][]models.InventoryItem),
		missedDays: make(map[string][]string),
	}
}

func (m *mockStoreService) ListItems(ctx context.Context) ([]models.StoreItem, error) {
	return m.items, nil
}

func (m *mockStoreService) GetInventory(ctx context.Context, userID string) ([]models.InventoryItem, error) {
	return m.inventory[userID], nil
}

func (m *mockStoreService) Purchase(ctx context.Context, userID string, itemID uint, quantity int) (*store.PurchaseResult, error) {
	if m.purchaseErr != nil {
		return nil, m.purchaseErr
	}
	return &store.PurchaseResult{ItemID: itemID, ItemName: "Test Item", Quantity: quantity, TotalCost: 50}, nil
}

func (m *mockStoreService) UseTimeTravelTicket(ctx context.Context, userID, dateToFill string) error {
	return m.ticketErr
}

func (m *mockStoreService) MissedDays(ctx context.Context, userID string) ([]string, error) {
	return m.missedDays[userID], nil
}

// Mock Ledger Service
type mockLedgerService struct {
	transactions map[string][]models.CoinTransaction
}

func (m *mockLedgerService) History(ctx context.Context, userID string, limit, offset int) ([]models.CoinTransaction, error) {
	return m.transactions[userID], nil
}

// Mock Leaderboard Service
type mockLeaderboardService struct {
	entries map[string][]leaderboard.Entry
}

func (m *mockLeaderboardService) GetLeaderboard(ctx context.Context, metric string, limit int) ([]leaderboard.Entry, error) {
	entries, exists := m.entries[metric]
	if !exists {
		return nil, fmt.Errorf("unknown leaderboard metric %q: %w", metric, models.ErrValidation)
	}
	return entries, nil
}

// Test Setup
func setupTestHandler() (*Handler, *mockStatsService, *mockStoreService, *mockLeaderboardService) {
	statsService := newMockStatsService()
	badgeService := newMockBadgeService()
	storeService := newMockStoreService()
	ledgerService := &mockLedgerService{transactions: make(map[string][]models.CoinTransaction)}
	leaderboardService := &mockLeaderboardService{entries: make(map[string][]leaderboard.Entry)}
	log := logger.New("debug", "json", "stdout")

	handler := NewHandlerWithInterfaces(statsService, badgeService, storeService, ledgerService, leaderboardService, log)

	return handler, statsService, storeService, leaderboardService
}

func setupRouter(handler *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler.RegisterRoutes(router)
	return router
}

// Tests

func TestRecordSubmission_Success(t *testing.T) {
	handler, statsService, _, _ := setupTestHandler()
	router := setupRouter(handler)

	body, _ := json.Marshal(map[string]interface{}{
		"user_id":     "user-1",
		"problem_id":  "two-sum",
		"accepted":    true,
		"difficulty":  "easy",
		"language_id": "go",
	})
	req, _ := http.NewRequest("POST", "/api/v1/submissions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []string{"user-1/two-sum"}, statsService.submissions)
}

func TestRecordSubmission_MissingFields(t *testing.T) {
	handler, _, _, _ := setupTestHandler()
	router := setupRouter(handler)

	body, _ := json.Marshal(map[string]interface{}{"user_id": "user-1"})
	req, _ := http.NewRequest("POST", "/api/v1/submissions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecordSubmission_ValidationErrorMapped(t *testing.T) {
	handler, statsService, _, _ := setupTestHandler()
	router := setupRouter(handler)

	statsService.recordErr = fmt.Errorf("unknown difficulty: %w", models.ErrValidation)

	body, _ := json.Marshal(map[string]interface{}{
		"user_id":    "user-1",
		"problem_id": "two-sum",
		"accepted":   true,
		"difficulty": "insane",
	})
	req, _ := http.NewRequest("POST", "/api/v1/submissions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetProfile_Success(t *testing.T) {
	handler, statsService, _, _ := setupTestHandler()
	router := setupRouter(handler)

	statsService.profiles["user-1"] = &models.UserProfile{
		UserID:        "user-1",
		TotalProblems: 42,
		CoinBalance:   150,
	}

	req, _ := http.NewRequest("GET", "/api/v1/users/user-1/profile", http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)

	profile := response["profile"].(map[string]interface{})
	assert.Equal(t, "user-1", profile["user_id"])
	assert.Equal(t, float64(42), profile["total_problems"])
	assert.Equal(t, float64(150), profile["coin_balance"])
}

func TestGetProfile_NotFound(t *testing.T) {
	handler, _, _, _ := setupTestHandler()
	router := setupRouter(handler)

	req, _ := http.NewRequest("GET", "/api/v1/users/ghost/profile", http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetCalendar(t *testing.T) {
	handler, statsService, _, _ := setupTestHandler()
	router := setupRouter(handler)

	statsService.calendars["user-1"] = map[string]int{"2026-03-10": 3, "2026-03-11": 1}

	req, _ := http.NewRequest("GET", "/api/v1/users/user-1/calendar?year=2026", http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, float64(2026), response["year"])
	assert.Equal(t, float64(2), response["active_days"])
}

func TestGetCalendar_InvalidYear(t *testing.T) {
	handler, _, _, _ := setupTestHandler()
	router := setupRouter(handler)

	req, _ := http.NewRequest("GET", "/api/v1/users/user-1/calendar?year=later", http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetMissedDays(t *testing.T) {
	handler, _, storeService, _ := setupTestHandler()
	router := setupRouter(handler)

	storeService.missedDays["user-1"] = []string{"2026-03-02", "2026-03-05"}

	req, _ := http.NewRequest("GET", "/api/v1/users/user-1/missed-days", http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, float64(2), response["total"])
}

func TestPurchase_Success(t *testing.T) {
	handler, _, _, _ := setupTestHandler()
	router := setupRouter(handler)

	body, _ := json.Marshal(map[string]interface{}{
		"user_id": "user-1",
		"item_id": 7,
	})
	req, _ := http.NewRequest("POST", "/api/v1/store/purchase", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)

	// Quantity defaults to 1.
	purchase := response["purchase"].(map[string]interface{})
	assert.Equal(t, float64(1), purchase["quantity"])
}

func TestPurchase_InsufficientBalance(t *testing.T) {
	handler, _, storeService, _ := setupTestHandler()
	router := setupRouter(handler)

	storeService.purchaseErr = fmt.Errorf("need 100 coins: %w", models.ErrInsufficientBalance)

	body, _ := json.Marshal(map[string]interface{}{"user_id": "user-1", "item_id": 7})
	req, _ := http.NewRequest("POST", "/api/v1/store/purchase", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
}

func TestPurchase_AlreadyOwned(t *testing.T) {
	handler, _, storeService, _ := setupTestHandler()
	router := setupRouter(handler)

	storeService.purchaseErr = fmt.Errorf("Golden Frame: %w", models.ErrAlreadyOwned)

	body, _ := json.Marshal(map[string]interface{}{"user_id": "user-1", "item_id": 7})
	req, _ := http.NewRequest("POST", "/api/v1/store/purchase", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUseTimeTravelTicket_Success(t *testing.T) {
	handler, _, _, _ := setupTestHandler()
	router := setupRouter(handler)

	body, _ := json.Marshal(map[string]interface{}{"user_id": "user-1", "date": "2026-03-05"})
	req, _ := http.NewRequest("POST", "/api/v1/store/time-travel", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, true, response["filled"])
}

func TestUseTimeTravelTicket_ErrorsMapped(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"invalid date", fmt.Errorf("future: %w", models.ErrInvalidDate), http.StatusBadRequest},
		{"already filled", fmt.Errorf("filled: %w", models.ErrDateAlreadyFilled), http.StatusConflict},
		{"no tickets", fmt.Errorf("none: %w", models.ErrInsufficientQuantity), http.StatusConflict},
		{"internal", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, _, storeService, _ := setupTestHandler()
			router := setupRouter(handler)
			storeService.ticketErr = tt.err

			body, _ := json.Marshal(map[string]interface{}{"user_id": "user-1", "date": "2026-03-05"})
			req, _ := http.NewRequest("POST", "/api/v1/store/time-travel", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expected, w.Code)
		})
	}
}

func TestGetLeaderboard_Success(t *testing.T) {
	handler, _, _, leaderboardService := setupTestHandler()
	router := setupRouter(handler)

	leaderboardService.entries["problems_solved"] = []leaderboard.Entry{
		{UserID: "alice", Rank: 1, TotalProblems: 120},
		{UserID: "bob", Rank: 2, TotalProblems: 80},
	}

	req, _ := http.NewRequest("GET", "/api/v1/leaderboard?metric=problems_solved&limit=10", http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, "problems_solved", response["metric"])
	assert.Equal(t, float64(2), response["total_entries"])
}

func TestGetLeaderboard_UnknownMetric(t *testing.T) {
	handler, _, _, _ := setupTestHandler()
	router := setupRouter(handler)

	req, _ := http.NewRequest("GET", "/api/v1/leaderboard?metric=karma", http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetTransactions_InvalidLimit(t *testing.T) {
	handler, _, _, _ := setupTestHandler()
	router := setupRouter(handler)

	req, _ := http.NewRequest("GET", "/api/v1/users/user-1/transactions?limit=abc", http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetStoreItems(t *testing.T) {
	handler, _, storeService, _ := setupTestHandler()
	router := setupRouter(handler)

	storeService.items = []models.StoreItem{
		{ID: 1, Name: "Time Travel Ticket", Type: models.ItemTimeTravelTicket, Price: 50},
	}

	req, _ := http.NewRequest("GET", "/api/v1/store/items", http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, float64(1), response["total_items"])
}
