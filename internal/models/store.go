package models

import (
	"encoding/json"
	"time"
)

// ItemType classifies store items.
type ItemType string

// Store item types. Profile frames are permanent and one-per-user;
// tickets are stackable consumables.
const (
	ItemProfileFrame      ItemType = "PROFILE_FRAME"
	ItemTimeTravelTicket  ItemType = "TIME_TRAVEL_TICKET"
	ItemProblemSubmitPass ItemType = "PROBLEM_SUBMIT_TICKET"
)

// IsPermanent reports whether an item is owned at most once per user.
func (t ItemType) IsPermanent() bool {
	return t == ItemProfileFrame
}

// StoreItem is a purchasable catalog entry.
type StoreItem struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"uniqueIndex;not null;size:100" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Type        ItemType  `gorm:"not null;size:50;index" json:"type"`
	ImageURL    string    `gorm:"size:255" json:"image_url"`
	Price       int64     `gorm:"not null" json:"price"`
	IsActive    bool      `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName specifies the table name for StoreItem model.
func (StoreItem) TableName() string {
	return "store_items"
}

// InventoryItem is a user's holding of one store item.
// Quantity never goes negative; consumption is a conditional decrement.
type InventoryItem struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UserID      string     `gorm:"not null;size:64;uniqueIndex:idx_user_item" json:"user_id"`
	ItemID      uint       `gorm:"not null;uniqueIndex:idx_user_item" json:"item_id"`
	Item        StoreItem  `gorm:"foreignKey:ItemID" json:"item,omitempty"`
	Quantity    int        `gorm:"default:0" json:"quantity"`
	PurchasedAt time.Time  `gorm:"not null" json:"purchased_at"`
	LastUsedAt  *time.Time `json:"last_used_at"`
}

// TableName specifies the table name for InventoryItem model.
func (InventoryItem) TableName() string {
	return "inventory_items"
}

// TransactionType is the direction of a coin transaction.
type TransactionType string

// Coin transaction directions.
const (
	TransactionEarn  TransactionType = "EARN"
	TransactionSpend TransactionType = "SPEND"
)

// Coin transaction sources.
const (
	CoinSourceProblemSolved = "PROBLEM_SOLVED"
	CoinSourceStorePurchase = "STORE_PURCHASE"
	CoinSourceAdminGrant    = "ADMIN_GRANT"
	CoinSourceRefund        = "REFUND"
)

// CoinTransaction is one append-only ledger row. The profile's CoinBalance
// is the materialized sum of these rows; every balance mutation writes
// exactly one transaction in the same logical operation.
type CoinTransaction struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Reference   string          `gorm:"uniqueIndex;not null;size:36" json:"reference"`
	UserID      string          `gorm:"not null;size:64;index" json:"user_id"`
	Amount      int64           `gorm:"not null" json:"amount"` // always positive
	Type        TransactionType `gorm:"not null;size:10" json:"type"`
	Source      string          `gorm:"not null;size:50" json:"source"`
	Description string          `gorm:"type:text" json:"description"`
	Metadata    json.RawMessage `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// TableName specifies the table name for CoinTransaction model.
func (CoinTransaction) TableName() string {
	return "coin_transactions"
}
