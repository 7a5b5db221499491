package models

import (
	"time"
)

// CriteriaType identifies the profile counter a badge threshold applies to.
type CriteriaType string

// Known badge criteria types. Unknown types evaluate to zero and never
// qualify, so a newer catalog cannot break an older deployment.
const (
	CriteriaProblemsSolved CriteriaType = "problems_solved"
	CriteriaEasyProblems   CriteriaType = "easy_problems"
	CriteriaMediumProblems CriteriaType = "medium_problems"
	CriteriaHardProblems   CriteriaType = "hard_problems"
	CriteriaMaxStreak      CriteriaType = "max_streak"
	CriteriaActiveDays     CriteriaType = "active_days"
)

// BadgeRarity buckets for display purposes.
const (
	RarityCommon    = "common"
	RarityRare      = "rare"
	RarityEpic      = "epic"
	RarityLegendary = "legendary"
)

// Badge is a catalog entry describing an earnable badge. Admin-managed;
// edits never touch badges already awarded (UserBadge snapshots them).
type Badge struct {
	ID           uint         `gorm:"primaryKey" json:"id"`
	Name         string       `gorm:"uniqueIndex;not null;size:100" json:"name"`
	Description  string       `gorm:"type:text" json:"description"`
	Type         string       `gorm:"size:50" json:"type"`
	IconURL      string       `gorm:"size:255" json:"icon_url"`
	CriteriaType CriteriaType `gorm:"not null;size:50" json:"criteria_type"`
	Threshold    int          `gorm:"not null" json:"threshold"`
	Category     string       `gorm:"size:50" json:"category"`
	Rarity       string       `gorm:"size:50" json:"rarity"`
	IsActive     bool         `gorm:"default:true" json:"is_active"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// TableName specifies the table name for Badge model.
func (Badge) TableName() string {
	return "badges"
}

// UserBadge is an immutable award record. Name, description, icon and
// criteria are copied from the catalog at award time so later catalog
// edits do not rewrite history.
type UserBadge struct {
	ID           uint         `gorm:"primaryKey" json:"id"`
	UserID       string       `gorm:"not null;size:64;uniqueIndex:idx_user_badge" json:"user_id"`
	BadgeID      uint         `gorm:"not null;uniqueIndex:idx_user_badge" json:"badge_id"`
	Name         string       `gorm:"not null;size:100" json:"name"`
	Description  string       `gorm:"type:text" json:"description"`
	Type         string       `gorm:"size:50" json:"type"`
	IconURL      string       `gorm:"size:255" json:"icon_url"`
	CriteriaType CriteriaType `gorm:"size:50" json:"criteria_type"`
	Threshold    int          `json:"threshold"`
	Rarity       string       `gorm:"size:50" json:"rarity"`
	EarnedAt     time.Time    `gorm:"not null" json:"earned_at"`
}

// TableName specifies the table name for UserBadge model.
func (UserBadge) TableName() string {
	return "user_badges"
}

// Snapshot builds the immutable award record for a badge.
func (b *Badge) Snapshot(userID string, earnedAt time.Time) *UserBadge {
	return &UserBadge{
		UserID:       userID,
		BadgeID:      b.ID,
		Name:         b.Name,
		Description:  b.Description,
		Type:         b.Type,
		IconURL:      b.IconURL,
		CriteriaType: b.CriteriaType,
		Threshold:    b.Threshold,
		Rarity:       b.Rarity,
		EarnedAt:     earnedAt,
	}
}
