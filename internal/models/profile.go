// Package models defines domain models for the progression service.
package models

import (
	"time"
)

// Difficulty of a problem on the platform.
type Difficulty string

// Problem difficulty levels.
const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether the difficulty is one of the known levels.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Streak tracks consecutive activity days for a user.
type Streak struct {
	CurrentCount   int        `gorm:"default:0" json:"current_count"`
	MaxCount       int        `gorm:"default:0" json:"max_count"`
	LastActiveDate *time.Time `json:"last_active_date"`
}

// UserProfile holds per-user aggregate statistics. One row per user,
// created lazily on the first stats event and never deleted.
type UserProfile struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	UserID string `gorm:"uniqueIndex;not null;size:64" json:"user_id"`

	TotalProblems  int `gorm:"default:0" json:"total_problems"`
	EasyProblems   int `gorm:"default:0" json:"easy_problems"`
	MediumProblems int `gorm:"default:0" json:"medium_problems"`
	HardProblems   int `gorm:"default:0" json:"hard_problems"`

	TotalSubmissions    int `gorm:"default:0" json:"total_submissions"`
	AcceptedSubmissions int `gorm:"default:0" json:"accepted_submissions"`
	RejectedSubmissions int `gorm:"default:0" json:"rejected_submissions"`
	AcceptanceRate      int `gorm:"default:0" json:"acceptance_rate"` // integer percentage

	// Denormalized sum of the coin ledger. Mutated only through
	// conditional updates paired with a CoinTransaction row.
	CoinBalance int64 `gorm:"default:0" json:"coin_balance"`

	Streak     Streak `gorm:"embedded;embeddedPrefix:streak_" json:"streak"`
	ActiveDays int    `gorm:"default:0" json:"active_days"`

	FirstSolveDate *time.Time `json:"first_solve_date"`
	LastSolveDate  *time.Time `json:"last_solve_date"`

	IsBlocked bool      `gorm:"default:false" json:"is_blocked"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for UserProfile model.
func (UserProfile) TableName() string {
	return "user_profiles"
}

// BucketFor returns the profile counter value backing a badge criteria type.
func (p *UserProfile) BucketFor(d Difficulty) int {
	switch d {
	case DifficultyEasy:
		return p.EasyProblems
	case DifficultyMedium:
		return p.MediumProblems
	case DifficultyHard:
		return p.HardProblems
	}
	return 0
}

// ProblemProgress records a user's relationship with a single problem.
// Row existence means attempted; Solved marks the first acceptance.
type ProblemProgress struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    string     `gorm:"not null;size:64;uniqueIndex:idx_user_problem" json:"user_id"`
	ProblemID string     `gorm:"not null;size:64;uniqueIndex:idx_user_problem" json:"problem_id"`
	Solved    bool       `gorm:"default:false" json:"solved"`
	SolvedAt  *time.Time `json:"solved_at"`
	CreatedAt time.Time  `json:"created_at"`
}

// TableName specifies the table name for ProblemProgress model.
func (ProblemProgress) TableName() string {
	return "problem_progress"
}

// LanguageUsage counts submissions per programming language for a user.
type LanguageUsage struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	UserID     string `gorm:"not null;size:64;uniqueIndex:idx_user_language" json:"user_id"`
	LanguageID string `gorm:"not null;size:64;uniqueIndex:idx_user_language" json:"language_id"`
	Count      int    `gorm:"default:0" json:"count"`
}

// TableName specifies the table name for LanguageUsage model.
func (LanguageUsage) TableName() string {
	return "language_usage"
}

// Activity category tags.
const (
	ActivityProblemSolved = "PROBLEM_SOLVED"
	ActivityBadgeEarned   = "BADGE_EARNED"
	ActivityTimeTravel    = "TIME_TRAVEL"
)

// DateLayout is the calendar-day key format used throughout the service.
const DateLayout = "2006-01-02"

// Activity is one calendar-day entry in a user's activity ledger.
// At most one row exists per (user, date); repeated activity on the same
// day increments Count and unions Types.
type Activity struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	UserID string `gorm:"not null;size:64;uniqueIndex:idx_user_date" json:"user_id"`
	Date   string `gorm:"not null;size:10;uniqueIndex:idx_user_date" json:"date"` // YYYY-MM-DD
	// Comma-separated set of activity category tags.
	Types     string    `gorm:"not null;size:255" json:"types"`
	Count     int       `gorm:"default:1" json:"count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for Activity model.
func (Activity) TableName() string {
	return "activities"
}
