// Package api provides REST handlers for the progression service. It
// exposes submission ingestion plus read and store endpoints for
// profiles, calendars, badges, coins and the leaderboard.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/koodecode/progression/internal/models"
	"github.com/koodecode/progression/internal/service/badges"
	"github.com/koodecode/progression/internal/service/leaderboard"
	"github.com/koodecode/progression/internal/service/ledger"
	"github.com/koodecode/progression/internal/service/stats"
	"github.com/koodecode/progression/internal/service/store"
	"github.com/koodecode/progression/pkg/logger"
)

// StatsService interface for the submission pipeline and profile reads.
type StatsService interface {
	RecordSubmission(ctx context.Context, userID, problemID string, accepted bool, difficulty models.Difficulty, languageID string) error
	GetProfile(ctx context.Context, userID string) (*models.UserProfile, error)
	GetCalendar(ctx context.Context, userID string, year int) (map[string]int, error)
	GetLanguageUsage(ctx context.Context, userID string) ([]models.LanguageUsage, error)
}

// BadgeService interface for badge operations.
type BadgeService interface {
	GetUserBadges(ctx context.Context, userID string) ([]models.UserBadge, error)
	GetCatalog(ctx context.Context) ([]models.Badge, error)
}

// StoreService interface for store operations.
type StoreService interface {
	ListItems(ctx context.Context) ([]models.StoreItem, error)
	GetInventory(ctx context.Context, userID string) ([]models.InventoryItem, error)
	Purchase(ctx context.Context, userID string, itemID uint, quantity int) (*store.PurchaseResult, error)
	UseTimeTravelTicket(ctx context.Context, userID, dateToFill string) error
	MissedDays(ctx context.Context, userID string) ([]string, error)
}

// LedgerService interface for coin transaction history.
type LedgerService interface {
	History(ctx context.Context, userID string, limit, offset int) ([]models.CoinTransaction, error)
}

// LeaderboardService interface for leaderboard operations.
type LeaderboardService interface {
	GetLeaderboard(ctx context.Context, metric string, limit int) ([]leaderboard.Entry, error)
}

// Handler handles progression API requests.
type Handler struct {
	statsService       StatsService
	badgeService       BadgeService
	storeService       StoreService
	ledgerService      LedgerService
	leaderboardService LeaderboardService
	log                *logger.Logger
}

// NewHandler creates a new API handler.
func NewHandler(
	statsService *stats.Service,
	badgeService *badges.Service,
	storeService *store.Service,
	ledgerService *ledger.Service,
	leaderboardService *leaderboard.Service,
	log *logger.Logger,
) *Handler {
	return &Handler{
		statsService:       statsService,
		badgeService:       badgeService,
		storeService:       storeService,
		ledgerService:      ledgerService,
		leaderboardService: leaderboardService,
		log:                log,
	}
}

// NewHandlerWithInterfaces creates a new API handler with interface dependencies (useful for testing).
func NewHandlerWithInterfaces(
	statsService StatsService,
	badgeService BadgeService,
	storeService StoreService,
	ledgerService LedgerService,
	leaderboardService LeaderboardService,
	log *logger.Logger,
) *Handler {
	return &Handler{
		statsService:       statsService,
		badgeService:       badgeService,
		storeService:       storeService,
		ledgerService:      ledgerService,
		leaderboardService: leaderboardService,
		log:                log,
	}
}

// RegisterRoutes mounts all API routes on the router.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	v1 := r.Group("/api/v1")
	{
		v1.POST("/submissions", h.RecordSubmission)

		v1.GET("/users/:id/profile", h.GetProfile)
		v1.GET("/users/:id/calendar", h.GetCalendar)
		v1.GET("/users/:id/missed-days", h.GetMissedDays)
		v1.GET("/users/:id/badges", h.GetUserBadges)
		v1.GET("/users/:id/languages", h.GetLanguageUsage)
		v1.GET("/users/:id/inventory", h.GetInventory)
		v1.GET("/users/:id/transactions", h.GetTransactions)

		v1.GET("/badges", h.GetBadgeCatalog)
		v1.GET("/leaderboard", h.GetLeaderboard)

		v1.GET("/store/items", h.GetStoreItems)
		v1.POST("/store/purchase", h.Purchase)
		v1.POST("/store/time-travel", h.UseTimeTravelTicket)
	}
}

// submissionRequest is the body of POST /api/v1/submissions.
type submissionRequest struct {
	UserID     string `json:"user_id" binding:"required"`
	ProblemID  string `json:"problem_id" binding:"required"`
	Accepted   bool   `json:"accepted"`
	Difficulty string `json:"difficulty"`
	LanguageID string `json:"language_id"`
}

// RecordSubmission ingests one submission outcome.
// POST /api/v1/submissions.
func (h *Handler) RecordSubmission(c *gin.Context) {
	var req submissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	err := h.statsService.RecordSubmission(c.Request.Context(), req.UserID, req.ProblemID,
		req.Accepted, models.Difficulty(req.Difficulty), req.LanguageID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", req.UserID).Msg("Failed to record submission")
		h.serviceError(c, err, "Failed to record submission")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"user_id":    req.UserID,
		"problem_id": req.ProblemID,
		"accepted":   req.Accepted,
	})
}

// GetProfile returns a user's aggregate statistics.
// GET /api/v1/users/:id/profile.
func (h *Handler) GetProfile(c *gin.Context) {
	userID := c.Param("id")

	profile, err := h.statsService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to get profile")
		h.serviceError(c, err, "Failed to retrieve profile")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"profile":      profile,
		"generated_at": time.Now().UTC(),
	})
}

// GetCalendar returns a user's activity calendar for a year.
// GET /api/v1/users/:id/calendar?year=2026.
func (h *Handler) GetCalendar(c *gin.Context) {
	userID := c.Param("id")

	year := time.Now().UTC().Year()
	if yearStr := c.Query("year"); yearStr != "" {
		parsed, err := strconv.Atoi(yearStr)
		if err != nil || parsed < 2000 || parsed > 2200 {
			h.errorResponse(c, http.StatusBadRequest, fmt.Sprintf("invalid year: %s", yearStr))
			return
		}
		year = parsed
	}

	calendar, err := h.statsService.GetCalendar(c.Request.Context(), userID, year)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to get calendar")
		h.serviceError(c, err, "Failed to retrieve calendar")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":     userID,
		"year":        year,
		"calendar":    calendar,
		"active_days": len(calendar),
	})
}

// GetMissedDays returns the unfilled days of the current month.
// GET /api/v1/users/:id/missed-days.
func (h *Handler) GetMissedDays(c *gin.Context) {
	userID := c.Param("id")

	missed, err := h.storeService.MissedDays(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to get missed days")
		h.serviceError(c, err, "Failed to retrieve missed days")
		return
	}
	if missed == nil {
		missed = []string{}
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":     userID,
		"missed_days": missed,
		"total":       len(missed),
	})
}

// GetUserBadges returns badges earned by a user.
// GET /api/v1/users/:id/badges.
func (h *Handler) GetUserBadges(c *gin.Context) {
	userID := c.Param("id")

	userBadges, err := h.badgeService.GetUserBadges(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to get user badges")
		h.serviceError(c, err, "Failed to retrieve user badges")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":      userID,
		"badges":       userBadges,
		"total_badges": len(userBadges),
	})
}

// GetLanguageUsage returns per-language submission counts for a user.
// GET /api/v1/users/:id/languages.
func (h *Handler) GetLanguageUsage(c *gin.Context) {
	userID := c.Param("id")

	usage, err := h.statsService.GetLanguageUsage(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to get language usage")
		h.serviceError(c, err, "Failed to retrieve language usage")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":   userID,
		"languages": usage,
	})
}

// GetInventory returns a user's store holdings.
// GET /api/v1/users/:id/inventory.
func (h *Handler) GetInventory(c *gin.Context) {
	userID := c.Param("id")

	inventory, err := h.storeService.GetInventory(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to get inventory")
		h.serviceError(c, err, "Failed to retrieve inventory")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":   userID,
		"inventory": inventory,
	})
}

// GetTransactions returns a page of a user's coin transaction history.
// GET /api/v1/users/:id/transactions?limit=20&offset=0.
func (h *Handler) GetTransactions(c *gin.Context) {
	userID := c.Param("id")

	limit, err := h.parseIntQuery(c, "limit", 20)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := h.parseIntQuery(c, "offset", 0)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	transactions, err := h.ledgerService.History(c.Request.Context(), userID, limit, offset)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to get transactions")
		h.serviceError(c, err, "Failed to retrieve transactions")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":      userID,
		"transactions": transactions,
		"limit":        limit,
		"offset":       offset,
	})
}

// GetBadgeCatalog returns the active badge catalog.
// GET /api/v1/badges.
func (h *Handler) GetBadgeCatalog(c *gin.Context) {
	catalog, err := h.badgeService.GetCatalog(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get badge catalog")
		h.serviceError(c, err, "Failed to retrieve badge catalog")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"badges":       catalog,
		"total_badges": len(catalog),
	})
}

// GetLeaderboard returns the top users ranked by a metric.
// GET /api/v1/leaderboard?metric=problems_solved&limit=10.
func (h *Handler) GetLeaderboard(c *gin.Context) {
	metric := c.DefaultQuery("metric", "problems_solved")
	limit, err := h.parseIntQuery(c, "limit", 10)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.leaderboardService.GetLeaderboard(c.Request.Context(), metric, limit)
	if err != nil {
		h.log.Error().Err(err).Str("metric", metric).Msg("Failed to get leaderboard")
		h.serviceError(c, err, "Failed to retrieve leaderboard")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"leaderboard":   entries,
		"metric":        metric,
		"total_entries": len(entries),
		"generated_at":  time.Now().UTC(),
	})
}

// GetStoreItems returns the purchasable catalog.
// GET /api/v1/store/items.
func (h *Handler) GetStoreItems(c *gin.Context) {
	items, err := h.storeService.ListItems(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get store items")
		h.serviceError(c, err, "Failed to retrieve store items")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items":       items,
		"total_items": len(items),
	})
}

// purchaseRequest is the body of POST /api/v1/store/purchase.
type purchaseRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	ItemID   uint   `json:"item_id" binding:"required"`
	Quantity int    `json:"quantity"`
}

// Purchase buys store items for a user.
// POST /api/v1/store/purchase.
func (h *Handler) Purchase(c *gin.Context) {
	var req purchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	result, err := h.storeService.Purchase(c.Request.Context(), req.UserID, req.ItemID, req.Quantity)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", req.UserID).Uint("item_id", req.ItemID).Msg("Purchase failed")
		h.serviceError(c, err, "Purchase failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":  req.UserID,
		"purchase": result,
	})
}

// timeTravelRequest is the body of POST /api/v1/store/time-travel.
type timeTravelRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Date   string `json:"date" binding:"required"`
}

// UseTimeTravelTicket consumes a ticket to fill a missed calendar day.
// POST /api/v1/store/time-travel.
func (h *Handler) UseTimeTravelTicket(c *gin.Context) {
	var req timeTravelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	err := h.storeService.UseTimeTravelTicket(c.Request.Context(), req.UserID, req.Date)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", req.UserID).Str("date", req.Date).Msg("Time travel failed")
		h.serviceError(c, err, "Time travel failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id": req.UserID,
		"date":    req.Date,
		"filled":  true,
	})
}

// Helper functions

// parseIntQuery extracts and validates a non-negative integer query parameter.
func (h *Handler) parseIntQuery(c *gin.Context, name string, defaultValue int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("invalid %s parameter: %s", name, raw)
	}
	return value, nil
}

// serviceError maps domain sentinel errors to HTTP statuses. Unmatched
// errors become a 500 with the fallback message; sentinel matches expose
// the wrapped error text since it is user-actionable.
func (h *Handler) serviceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		h.errorResponse(c, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrInvalidDate):
		h.errorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrInsufficientBalance):
		h.errorResponse(c, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, models.ErrAlreadyOwned),
		errors.Is(err, models.ErrDateAlreadyFilled),
		errors.Is(err, models.ErrInsufficientQuantity):
		h.errorResponse(c, http.StatusConflict, err.Error())
	default:
		h.errorResponse(c, http.StatusInternalServerError, fallback)
	}
}

// errorResponse sends a standardized error response.
func (h *Handler) errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":     message,
		"timestamp": time.Now().UTC(),
	})
}
