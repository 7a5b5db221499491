// Package repository provides data access layer for the application.
package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/koodecode/progression/internal/models"
)

// BadgeRepository handles badge catalog and award database operations.
type BadgeRepository struct {
	db *DB
}

// NewBadgeRepository creates a new badge repository.
func NewBadgeRepository(db *DB) *BadgeRepository {
	return &BadgeRepository{db: db}
}

// Create creates a new catalog badge.
func (r *BadgeRepository) Create(badge *models.Badge) error {
	return r.db.Create(badge).Error
}

// Update updates an existing catalog badge.
func (r *BadgeRepository) Update(badge *models.Badge) error {
	return r.db.Save(badge).Error
}

// SetActiveStatus enables or disables a catalog badge.
func (r *BadgeRepository) SetActiveStatus(id uint, active bool) error {
	res := r.db.Model(&models.Badge{}).
		Where("id = ?", id).
		Update("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("badge %d: %w", id, models.ErrNotFound)
	}
	return nil
}

// GetByID retrieves a badge by its ID.
func (r *BadgeRepository) GetByID(id uint) (*models.Badge, error) {
	var badge models.Badge
	if err := r.db.First(&badge, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("badge %d: %w", id, models.ErrNotFound)
		}
		return nil, err
	}
	return &badge, nil
}

// GetByName retrieves a badge by its name.
func (r *BadgeRepository) GetByName(name string) (*models.Badge, error) {
	var badge models.Badge
	if err := r.db.Where("name = ?", name).First(&badge).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("badge %q: %w", name, models.ErrNotFound)
		}
		return nil, err
	}
	return &badge, nil
}

// GetAll retrieves every catalog badge, oldest first.
func (r *BadgeRepository) GetAll() ([]models.Badge, error) {
	var badges []models.Badge
	err := r.db.Order("created_at ASC").Find(&badges).Error
	return badges, err
}

// ListActive retrieves the active catalog badges, oldest first. Sweep
// order follows catalog order.
func (r *BadgeRepository) ListActive() ([]models.Badge, error) {
	var badges []models.Badge
	err := r.db.Where("is_active = ?", true).Order("created_at ASC").Find(&badges).Error
	return badges, err
}

// Award persists an immutable badge snapshot for a user and reports
// whether this call awarded it. The unique (user_id, badge_id) index
// makes concurrent sweeps award at most once.
func (r *BadgeRepository) Award(snapshot *models.UserBadge) (bool, error) {
	res := r.db.
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "badge_id"}},
			DoNothing: true,
		}).
		Create(snapshot)
	if res.Error != nil {
		return false, fmt.Errorf("failed to award badge %d: %w", snapshot.BadgeID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// HasUserEarnedBadge checks if a user has earned a specific badge.
func (r *BadgeRepository) HasUserEarnedBadge(userID string, badgeID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.UserBadge{}).
		Where("user_id = ? AND badge_id = ?", userID, badgeID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserBadges retrieves all badge snapshots earned by a user.
func (r *BadgeRepository) GetUserBadges(userID string) ([]models.UserBadge, error) {
	var userBadges []models.UserBadge
	err := r.db.
		Where("user_id = ?", userID).
		Order("earned_at DESC").
		Find(&userBadges).Error
	return userBadges, err
}

// GetUserBadgeCount returns the total number of badges a user has earned.
func (r *BadgeRepository) GetUserBadgeCount(userID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.UserBadge{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}

// GetBadgeHoldersCount returns the number of users holding a badge.
func (r *BadgeRepository) GetBadgeHoldersCount(badgeID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.UserBadge{}).
		Where("badge_id = ?", badgeID).
		Count(&count).Error
	return count, err
}
