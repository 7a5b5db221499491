// Package store implements the coin store: purchases and consumable
// ticket redemption.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	prommetrics "github.com/koodecode/progression/internal/metrics"
	"github.com/koodecode/progression/internal/models"
	"github.com/koodecode/progression/internal/repository"
	"github.com/koodecode/progression/internal/service/activity"
	"github.com/koodecode/progression/pkg/logger"
)

// StoreRepository interface for item and inventory operations.
type StoreRepository interface {
	GetItemByID(id uint) (*models.StoreItem, error)
	GetActiveItemByType(itemType models.ItemType) (*models.StoreItem, error)
	ListActiveItems() ([]models.StoreItem, error)
	GetInventoryItem(userID string, itemID uint) (*models.InventoryItem, error)
	ListInventory(userID string) ([]models.InventoryItem, error)
	AddQuantity(userID string, itemID uint, quantity int, purchasedAt time.Time) error
	AddPermanentIfAbsent(userID string, itemID uint, purchasedAt time.Time) (bool, error)
	ConsumeOne(userID string, itemID uint, usedAt time.Time) (bool, error)
}

// ProfileRepository interface for profile and calendar operations.
type ProfileRepository interface {
	GetByUserID(userID string) (*models.UserProfile, error)
	GetActivity(userID, date string) (*models.Activity, error)
	ListActivities(userID string) ([]models.Activity, error)
	InsertActivityIfAbsent(userID, date, activityType string, count int) (bool, error)
}

// CoinLedger interface for paying purchases and refunding failed ones.
type CoinLedger interface {
	Spend(ctx context.Context, userID string, amount int64, source, description string, metadata json.RawMessage) error
	Earn(ctx context.Context, userID string, amount int64, source, description string, metadata json.RawMessage) error
}

// PurchaseResult reports a completed purchase.
type PurchaseResult struct {
	ItemID    uint   `json:"item_id"`
	ItemName  string `json:"item_name"`
	Quantity  int    `json:"quantity"`
	TotalCost int64  `json:"total_cost"`
}

// Service runs store transactions. Unlike the stats pipeline, failures
// here propagate: money and quantity correctness is not eventually
// consistent.
type Service struct {
	storeRepo   StoreRepository
	profileRepo ProfileRepository
	coins       CoinLedger
	log         *logger.Logger
	now         func() time.Time
}

// NewService creates a new store service.
func NewService(storeRepo *repository.StoreRepository, profileRepo *repository.ProfileRepository, coins CoinLedger, log *logger.Logger) *Service {
	return &Service{storeRepo: storeRepo, profileRepo: profileRepo, coins: coins, log: log, now: time.Now}
}

// NewServiceWithInterfaces creates a new store service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(storeRepo StoreRepository, profileRepo ProfileRepository, coins CoinLedger, log *logger.Logger) *Service {
	return &Service{storeRepo: storeRepo, profileRepo: profileRepo, coins: coins, log: log, now: time.Now}
}

// SetClock overrides the service clock. Used by tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// ListItems returns the purchasable catalog.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) ListItems(ctx context.Context) ([]models.StoreItem, error) {
	return s.storeRepo.ListActiveItems()
}

// GetInventory returns a user's holdings.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) GetInventory(ctx context.Context, userID string) ([]models.InventoryItem, error) {
	return s.storeRepo.ListInventory(userID)
}

// Purchase buys quantity units of an item for a user. Permanent items
// are strictly one per user; consumables stack. The balance check is
// re-validated by the conditional debit inside CoinLedger.Spend, and the
// ownership check by the if-absent inventory insert, so racing purchases
// can neither overdraw nor hand out a second copy.
func (s *Service) Purchase(ctx context.Context, userID string, itemID uint, quantity int) (*PurchaseResult, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("quantity must be at least 1, got %d: %w", quantity, models.ErrValidation)
	}

	item, err := s.storeRepo.GetItemByID(itemID)
	if err != nil {
		return nil, err
	}
	if !item.IsActive {
		return nil, fmt.Errorf("store item %d is inactive: %w", itemID, models.ErrNotFound)
	}
	if item.Type.IsPermanent() && quantity != 1 {
		return nil, fmt.Errorf("%s is one per user: %w", item.Name, models.ErrValidation)
	}

	totalCost := item.Price * int64(quantity)

	profile, err := s.profileRepo.GetByUserID(userID)
	if err != nil {
		return nil, err
	}
	if profile.CoinBalance < totalCost {
		prommetrics.RecordStorePurchase(string(item.Type), "insufficient_balance")
		return nil, fmt.Errorf("need %d coins, have %d: %w", totalCost, profile.CoinBalance, models.ErrInsufficientBalance)
	}

	if item.Type.IsPermanent() {
		if _, err := s.storeRepo.GetInventoryItem(userID, itemID); err == nil {
			prommetrics.RecordStorePurchase(string(item.Type), "already_owned")
			return nil, fmt.Errorf("%s: %w", item.Name, models.ErrAlreadyOwned)
		} else if !errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
	}

	metadata, _ := json.Marshal(map[string]interface{}{
		"item_id":  item.ID,
		"quantity": quantity,
	})
	err = s.coins.Spend(ctx, userID, totalCost, models.CoinSourceStorePurchase,
		fmt.Sprintf("Purchased %s x%d", item.Name, quantity), metadata)
	if err != nil {
		prommetrics.RecordStorePurchase(string(item.Type), "failed")
		return nil, err
	}

	if item.Type.IsPermanent() {
		inserted, err := s.storeRepo.AddPermanentIfAbsent(userID, itemID, s.now().UTC())
		if err != nil {
			s.logDeliveryFailure(err, userID, itemID, totalCost)
			return nil, fmt.Errorf("failed to deliver item %d: %w", itemID, err)
		}
		if !inserted {
			// Lost the ownership race to a concurrent purchase. Put the
			// coins back.
			s.refund(ctx, userID, item, totalCost)
			prommetrics.RecordStorePurchase(string(item.Type), "already_owned")
			return nil, fmt.Errorf("%s: %w", item.Name, models.ErrAlreadyOwned)
		}
	} else if err := s.storeRepo.AddQuantity(userID, itemID, quantity, s.now().UTC()); err != nil {
		// Coins left the balance but the item never arrived. Flag it;
		// the nightly audit picks the residue up.
		s.logDeliveryFailure(err, userID, itemID, totalCost)
		return nil, fmt.Errorf("failed to deliver item %d: %w", itemID, err)
	}

	prommetrics.RecordStorePurchase(string(item.Type), "success")
	s.log.Info().
		Str("user_id", userID).
		Str("item", item.Name).
		Int("quantity", quantity).
		Int64("total_cost", totalCost).
		Msg("Store purchase completed")

	return &PurchaseResult{
		ItemID:    item.ID,
		ItemName:  item.Name,
		Quantity:  quantity,
		TotalCost: totalCost,
	}, nil
}

// refund returns the coins of a purchase that could not be delivered.
func (s *Service) refund(ctx context.Context, userID string, item *models.StoreItem, amount int64) {
	metadata, _ := json.Marshal(map[string]interface{}{"item_id": item.ID})
	err := s.coins.Earn(ctx, userID, amount, models.CoinSourceRefund,
		fmt.Sprintf("Refund for %s", item.Name), metadata)
	if err != nil {
		s.log.Error().
			Err(err).
			Str("user_id", userID).
			Uint("item_id", item.ID).
			Int64("amount", amount).
			Msg("Refund failed after lost purchase race")
	}
}

func (s *Service) logDeliveryFailure(err error, userID string, itemID uint, totalCost int64) {
	s.log.Error().
		Err(err).
		Str("user_id", userID).
		Uint("item_id", itemID).
		Int64("total_cost", totalCost).
		Msg("Inventory update failed after debit")
}

// UseTimeTravelTicket consumes one ticket to retroactively fill a missed
// day in the current month. The target must be strictly before today,
// inside the current UTC month, and unfilled.
//
// The ticket is consumed with a conditional decrement first, then the
// calendar entry is inserted with an if-absent guard; if another request
// filled the date in between, the ticket is restored. Both writes carry
// their own precondition, so the earlier validation reads can go stale
// without breaking the invariants.
func (s *Service) UseTimeTravelTicket(ctx context.Context, userID, dateToFill string) error {
	item, err := s.storeRepo.GetActiveItemByType(models.ItemTimeTravelTicket)
	if err != nil {
		return err
	}

	entry, err := s.storeRepo.GetInventoryItem(userID, item.ID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return fmt.Errorf("no time travel tickets: %w", models.ErrInsufficientQuantity)
		}
		return err
	}
	if entry.Quantity < 1 {
		return fmt.Errorf("no time travel tickets: %w", models.ErrInsufficientQuantity)
	}

	target, err := activity.ParseDateKey(dateToFill)
	if err != nil {
		return fmt.Errorf("date must be formatted %s: %w", models.DateLayout, models.ErrValidation)
	}

	now := s.now().UTC()
	today := activity.DateOnly(now)
	if !target.Before(today) {
		return fmt.Errorf("date %s is today or in the future: %w", dateToFill, models.ErrInvalidDate)
	}
	if target.Year() != today.Year() || target.Month() != today.Month() {
		return fmt.Errorf("date %s is outside the current month: %w", dateToFill, models.ErrInvalidDate)
	}

	if _, err := s.profileRepo.GetActivity(userID, dateToFill); err == nil {
		return fmt.Errorf("date %s: %w", dateToFill, models.ErrDateAlreadyFilled)
	} else if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check activity for %s: %w", dateToFill, err)
	}

	consumed, err := s.storeRepo.ConsumeOne(userID, item.ID, now)
	if err != nil {
		return err
	}
	if !consumed {
		return fmt.Errorf("no time travel tickets: %w", models.ErrInsufficientQuantity)
	}

	inserted, err := s.profileRepo.InsertActivityIfAbsent(userID, dateToFill, models.ActivityTimeTravel, 1)
	if err != nil {
		s.log.Error().
			Err(err).
			Str("user_id", userID).
			Str("date", dateToFill).
			Msg("Calendar fill failed after ticket consumption")
		return fmt.Errorf("failed to fill %s: %w", dateToFill, err)
	}
	if !inserted {
		// Lost the race to another fill of the same date. Put the
		// ticket back.
		if err := s.storeRepo.AddQuantity(userID, item.ID, 1, entry.PurchasedAt); err != nil {
			s.log.Error().
				Err(err).
				Str("user_id", userID).
				Uint("item_id", item.ID).
				Msg("Failed to restore ticket after fill race")
		}
		return fmt.Errorf("date %s: %w", dateToFill, models.ErrDateAlreadyFilled)
	}

	prommetrics.RecordTimeTravelTicketUsed()
	s.log.Info().
		Str("user_id", userID).
		Str("date", dateToFill).
		Msg("Time travel ticket used")

	return nil
}

// MissedDays lists the unfilled days of the current month for a user,
// today excluded. Candidates for time travel.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) MissedDays(ctx context.Context, userID string) ([]string, error) {
	entries, err := s.profileRepo.ListActivities(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load activity calendar: %w", err)
	}
	return activity.MissedDaysInCurrentMonth(entries, s.now().UTC()), nil
}
