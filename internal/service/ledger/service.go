// Package ledger credits and debits coins. The balance mutation and the
// append-only transaction row commit together, so the materialized
// balance and the ledger cannot diverge through this path.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	prommetrics "github.com/koodecode/progression/internal/metrics"
	"github.com/koodecode/progression/internal/models"
	"github.com/koodecode/progression/internal/repository"
	"github.com/koodecode/progression/pkg/logger"
)

// LedgerRepository interface for transaction log operations. Both append
// variants pair the balance mutation with the transaction row in one
// database transaction.
type LedgerRepository interface {
	AppendEarn(tx *models.CoinTransaction) error
	AppendSpend(tx *models.CoinTransaction) (bool, error)
	ListByUser(userID string, limit, offset int) ([]models.CoinTransaction, error)
}

// Service credits and debits coins.
type Service struct {
	ledgerRepo LedgerRepository
	log        *logger.Logger
}

// NewService creates a new ledger service.
func NewService(ledgerRepo *repository.LedgerRepository, log *logger.Logger) *Service {
	return &Service{ledgerRepo: ledgerRepo, log: log}
}

// NewServiceWithInterfaces creates a new ledger service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(ledgerRepo LedgerRepository, log *logger.Logger) *Service {
	return &Service{ledgerRepo: ledgerRepo, log: log}
}

// Earn credits coins to a user and appends one EARN transaction row.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) Earn(ctx context.Context, userID string, amount int64, source, description string, metadata json.RawMessage) error {
	if amount <= 0 {
		return fmt.Errorf("earn amount must be positive, got %d: %w", amount, models.ErrValidation)
	}

	tx := newTransaction(userID, amount, models.TransactionEarn, source, description, metadata)
	if err := s.ledgerRepo.AppendEarn(tx); err != nil {
		return fmt.Errorf("failed to credit %d coins: %w", amount, err)
	}

	prommetrics.RecordCoinsEarned(source, amount)
	s.log.Debug().
		Str("user_id", userID).
		Int64("amount", amount).
		Str("source", source).
		Msg("Coins credited")

	return nil
}

// Spend debits coins from a user and appends one SPEND transaction row.
// The debit is a balance-conditional update; a spend exceeding the
// balance returns ErrInsufficientBalance and changes nothing.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) Spend(ctx context.Context, userID string, amount int64, source, description string, metadata json.RawMessage) error {
	if amount <= 0 {
		return fmt.Errorf("spend amount must be positive, got %d: %w", amount, models.ErrValidation)
	}

	tx := newTransaction(userID, amount, models.TransactionSpend, source, description, metadata)
	debited, err := s.ledgerRepo.AppendSpend(tx)
	if err != nil {
		return fmt.Errorf("failed to debit %d coins: %w", amount, err)
	}
	if !debited {
		return fmt.Errorf("spend of %d coins: %w", amount, models.ErrInsufficientBalance)
	}

	prommetrics.RecordCoinsSpent(source, amount)
	s.log.Debug().
		Str("user_id", userID).
		Int64("amount", amount).
		Str("source", source).
		Msg("Coins debited")

	return nil
}

// History returns a page of a user's coin transactions, newest first.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) History(ctx context.Context, userID string, limit, offset int) ([]models.CoinTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.ledgerRepo.ListByUser(userID, limit, offset)
}

func newTransaction(userID string, amount int64, txType models.TransactionType, source, description string, metadata json.RawMessage) *models.CoinTransaction {
	return &models.CoinTransaction{
		Reference:   uuid.NewString(),
		UserID:      userID,
		Amount:      amount,
		Type:        txType,
		Source:      source,
		Description: description,
		Metadata:    metadata,
		CreatedAt:   time.Now().UTC(),
	}
}
