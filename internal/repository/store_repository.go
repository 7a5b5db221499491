package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/koodecode/progression/internal/models"
)

// StoreRepository handles store item and inventory database operations.
type StoreRepository struct {
	db *DB
}

// NewStoreRepository creates a new store repository.
func NewStoreRepository(db *DB) *StoreRepository {
	return &StoreRepository{db: db}
}

// CreateItem creates a new store item.
func (r *StoreRepository) CreateItem(item *models.StoreItem) error {
	return r.db.Create(item).Error
}

// UpdateItem updates an existing store item.
func (r *StoreRepository) UpdateItem(item *models.StoreItem) error {
	return r.db.Save(item).Error
}

// GetItemByID retrieves a store item by its ID.
func (r *StoreRepository) GetItemByID(id uint) (*models.StoreItem, error) {
	var item models.StoreItem
	if err := r.db.First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("store item %d: %w", id, models.ErrNotFound)
		}
		return nil, err
	}
	return &item, nil
}

// GetActiveItemByType returns the single active item of a type, oldest
// first when several exist.
func (r *StoreRepository) GetActiveItemByType(itemType models.ItemType) (*models.StoreItem, error) {
	var item models.StoreItem
	err := r.db.
		Where("type = ? AND is_active = ?", itemType, true).
		Order("created_at ASC").
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("active %s item: %w", itemType, models.ErrNotFound)
		}
		return nil, err
	}
	return &item, nil
}

// ListActiveItems retrieves all purchasable items.
func (r *StoreRepository) ListActiveItems() ([]models.StoreItem, error) {
	var items []models.StoreItem
	err := r.db.Where("is_active = ?", true).Order("price ASC").Find(&items).Error
	return items, err
}

// GetInventoryItem returns a user's holding of one item, or ErrNotFound.
func (r *StoreRepository) GetInventoryItem(userID string, itemID uint) (*models.InventoryItem, error) {
	var entry models.InventoryItem
	err := r.db.Where("user_id = ? AND item_id = ?", userID, itemID).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("inventory entry for item %d: %w", itemID, models.ErrNotFound)
		}
		return nil, err
	}
	return &entry, nil
}

// ListInventory retrieves a user's full inventory with item details.
func (r *StoreRepository) ListInventory(userID string) ([]models.InventoryItem, error) {
	var entries []models.InventoryItem
	err := r.db.
		Where("user_id = ?", userID).
		Preload("Item").
		Order("purchased_at DESC").
		Find(&entries).Error
	return entries, err
}

// AddQuantity upserts an inventory entry: an existing holding gains
// quantity, a new one is created with it.
func (r *StoreRepository) AddQuantity(userID string, itemID uint, quantity int, purchasedAt time.Time) error {
	entry := &models.InventoryItem{
		UserID:      userID,
		ItemID:      itemID,
		Quantity:    quantity,
		PurchasedAt: purchasedAt,
	}
	err := r.db.
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "item_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"quantity": gorm.Expr("quantity + ?", quantity),
			}),
		}).
		Create(entry).Error
	if err != nil {
		return fmt.Errorf("failed to add inventory quantity for item %d: %w", itemID, err)
	}
	return nil
}

// AddPermanentIfAbsent creates a quantity-1 inventory entry only when
// the user holds none, and reports whether it inserted. The unique
// (user_id, item_id) index arbitrates racing purchases of one-per-user
// items.
func (r *StoreRepository) AddPermanentIfAbsent(userID string, itemID uint, purchasedAt time.Time) (bool, error) {
	entry := &models.InventoryItem{
		UserID:      userID,
		ItemID:      itemID,
		Quantity:    1,
		PurchasedAt: purchasedAt,
	}
	res := r.db.
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "item_id"}},
			DoNothing: true,
		}).
		Create(entry)
	if res.Error != nil {
		return false, fmt.Errorf("failed to add inventory entry for item %d: %w", itemID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ConsumeOne decrements an inventory entry by one and stamps the use
// time, only when at least one is held. Reports whether it consumed.
func (r *StoreRepository) ConsumeOne(userID string, itemID uint, usedAt time.Time) (bool, error) {
	res := r.db.Model(&models.InventoryItem{}).
		Where("user_id = ? AND item_id = ? AND quantity >= 1", userID, itemID).
		Updates(map[string]interface{}{
			"quantity":     gorm.Expr("quantity - 1"),
			"last_used_at": usedAt,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to consume item %d: %w", itemID, res.Error)
	}
	return res.RowsAffected > 0, nil
}
