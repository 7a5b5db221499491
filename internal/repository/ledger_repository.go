package repository

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/koodecode/progression/internal/models"
)

// LedgerRepository handles the append-only coin transaction log. Every
// append moves the profile balance and writes the transaction row inside
// one database transaction, so neither side can land without the other.
type LedgerRepository struct {
	db *DB
}

// NewLedgerRepository creates a new ledger repository.
func NewLedgerRepository(db *DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// AppendEarn credits the balance and writes the EARN row atomically.
// Rows are never updated or deleted.
func (r *LedgerRepository) AppendEarn(txn *models.CoinTransaction) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.UserProfile{}).
			Where("user_id = ?", txn.UserID).
			Update("coin_balance", gorm.Expr("coin_balance + ?", txn.Amount))
		if res.Error != nil {
			return fmt.Errorf("failed to add balance for user %s: %w", txn.UserID, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("profile for user %s: %w", txn.UserID, models.ErrNotFound)
		}

		if err := tx.Create(txn).Error; err != nil {
			return fmt.Errorf("failed to append coin transaction: %w", err)
		}
		return nil
	})
}

// AppendSpend debits the balance and writes the SPEND row atomically.
// The debit condition lives in the UPDATE itself; a balance that does
// not cover the amount leaves both tables untouched and reports false.
func (r *LedgerRepository) AppendSpend(txn *models.CoinTransaction) (bool, error) {
	debited := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.UserProfile{}).
			Where("user_id = ? AND coin_balance >= ?", txn.UserID, txn.Amount).
			Update("coin_balance", gorm.Expr("coin_balance - ?", txn.Amount))
		if res.Error != nil {
			return fmt.Errorf("failed to deduct balance for user %s: %w", txn.UserID, res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}

		if err := tx.Create(txn).Error; err != nil {
			return fmt.Errorf("failed to append coin transaction: %w", err)
		}
		debited = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return debited, nil
}

// ListByUser returns a page of a user's transactions, newest first.
func (r *LedgerRepository) ListByUser(userID string, limit, offset int) ([]models.CoinTransaction, error) {
	var txs []models.CoinTransaction
	err := r.db.
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&txs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions for user %s: %w", userID, err)
	}
	return txs, nil
}

// SumByType returns the total amount of a user's transactions of one
// direction. Used to audit the materialized balance against the ledger.
func (r *LedgerRepository) SumByType(userID string, txType models.TransactionType) (int64, error) {
	var total int64
	err := r.db.Model(&models.CoinTransaction{}).
		Where("user_id = ? AND type = ?", userID, txType).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum %s transactions for user %s: %w", txType, userID, err)
	}
	return total, nil
}
