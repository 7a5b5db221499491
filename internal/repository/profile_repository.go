package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/koodecode/progression/internal/models"
)

// ProfileRepository handles user profile database operations.
//
// Every counter, balance and calendar mutation here is a single
// conditional UPDATE or upsert so concurrent requests for the same user
// cannot lose updates. Read-modify-write is deliberately absent.
type ProfileRepository struct {
	db *DB
}

// NewProfileRepository creates a new profile repository.
func NewProfileRepository(db *DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// FindOrCreate returns the profile for a user, creating an empty one if
// none exists. The unique constraint on user_id makes concurrent first
// submissions collapse into one row.
func (r *ProfileRepository) FindOrCreate(userID string) (*models.UserProfile, error) {
	profile := &models.UserProfile{UserID: userID}
	err := r.db.
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(profile).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create profile for user %s: %w", userID, err)
	}
	return r.GetByUserID(userID)
}

// GetByUserID retrieves a profile by platform user id.
func (r *ProfileRepository) GetByUserID(userID string) (*models.UserProfile, error) {
	var profile models.UserProfile
	if err := r.db.Where("user_id = ?", userID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("profile for user %s: %w", userID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get profile for user %s: %w", userID, err)
	}
	return &profile, nil
}

// ListUserIDs returns the user ids of all profiles.
func (r *ProfileRepository) ListUserIDs() ([]string, error) {
	var ids []string
	err := r.db.Model(&models.UserProfile{}).Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list user ids: %w", err)
	}
	return ids, nil
}

// IncrementSubmission bumps the submission counters and recomputes the
// acceptance rate in one atomic update. All expressions read the
// pre-update column values, so the rate is computed over the new totals.
func (r *ProfileRepository) IncrementSubmission(userID string, accepted bool) error {
	accInc := 0
	outcome := "rejected_submissions"
	if accepted {
		accInc = 1
		outcome = "accepted_submissions"
	}

	// round(accepted/total*100) == (accepted*200 + total) / (2*total) in integers
	updates := map[string]interface{}{
		"total_submissions": gorm.Expr("total_submissions + 1"),
		outcome:             gorm.Expr(outcome + " + 1"),
		"acceptance_rate": gorm.Expr(
			"((accepted_submissions + ?) * 200 + (total_submissions + 1)) / (2 * (total_submissions + 1))",
			accInc,
		),
		"updated_at": time.Now().UTC(),
	}

	res := r.db.Model(&models.UserProfile{}).
		Where("user_id = ?", userID).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to increment submissions for user %s: %w", userID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("profile for user %s: %w", userID, models.ErrNotFound)
	}
	return nil
}

// MarkAttempted records that a user attempted a problem. No-op when the
// problem was attempted before.
func (r *ProfileRepository) MarkAttempted(userID, problemID string) error {
	progress := &models.ProblemProgress{UserID: userID, ProblemID: problemID}
	err := r.db.
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "problem_id"}},
			DoNothing: true,
		}).
		Create(progress).Error
	if err != nil {
		return fmt.Errorf("failed to mark problem %s attempted: %w", problemID, err)
	}
	return nil
}

// MarkSolved flips a problem to solved and reports whether this call was
// the first acceptance. The solved=false condition makes retried
// submissions idempotent.
func (r *ProfileRepository) MarkSolved(userID, problemID string, solvedAt time.Time) (bool, error) {
	res := r.db.Model(&models.ProblemProgress{}).
		Where("user_id = ? AND problem_id = ? AND solved = ?", userID, problemID, false).
		Updates(map[string]interface{}{
			"solved":    true,
			"solved_at": solvedAt,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to mark problem %s solved: %w", problemID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// CountSolved returns the number of problems a user has solved.
func (r *ProfileRepository) CountSolved(userID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.ProblemProgress{}).
		Where("user_id = ? AND solved = ?", userID, true).
		Count(&count).Error
	return count, err
}

// IncrementSolveCounters bumps the solve totals and difficulty bucket and
// stamps first/last solve dates.
func (r *ProfileRepository) IncrementSolveCounters(userID string, difficulty models.Difficulty, solvedAt time.Time) error {
	var bucket string
	switch difficulty {
	case models.DifficultyEasy:
		bucket = "easy_problems"
	case models.DifficultyMedium:
		bucket = "medium_problems"
	case models.DifficultyHard:
		bucket = "hard_problems"
	default:
		return fmt.Errorf("unknown difficulty %q: %w", difficulty, models.ErrValidation)
	}

	res := r.db.Model(&models.UserProfile{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"total_problems":   gorm.Expr("total_problems + 1"),
			bucket:             gorm.Expr(bucket + " + 1"),
			"first_solve_date": gorm.Expr("COALESCE(first_solve_date, ?)", solvedAt),
			"last_solve_date":  solvedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to increment solve counters for user %s: %w", userID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("profile for user %s: %w", userID, models.ErrNotFound)
	}
	return nil
}

// IncrementLanguage bumps the usage count for a programming language.
func (r *ProfileRepository) IncrementLanguage(userID, languageID string) error {
	usage := &models.LanguageUsage{UserID: userID, LanguageID: languageID, Count: 1}
	err := r.db.
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "language_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"count": gorm.Expr("count + 1"),
			}),
		}).
		Create(usage).Error
	if err != nil {
		return fmt.Errorf("failed to increment language usage: %w", err)
	}
	return nil
}

// ListLanguageUsage returns per-language submission counts for a user.
func (r *ProfileRepository) ListLanguageUsage(userID string) ([]models.LanguageUsage, error) {
	var usage []models.LanguageUsage
	err := r.db.Where("user_id = ?", userID).Order("count DESC").Find(&usage).Error
	return usage, err
}

// InsertActivityIfAbsent creates the day's activity entry only when none
// exists, and reports whether it inserted. The unique (user_id, date)
// index is the race arbiter.
func (r *ProfileRepository) InsertActivityIfAbsent(userID, date, activityType string, count int) (bool, error) {
	activity := &models.Activity{
		UserID: userID,
		Date:   date,
		Types:  activityType,
		Count:  count,
	}
	res := r.db.
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "date"}},
			DoNothing: true,
		}).
		Create(activity)
	if res.Error != nil {
		return false, fmt.Errorf("failed to insert activity for %s: %w", date, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// RecordActivity upserts a day's activity: a fresh day inserts one entry,
// a repeated day increments count and unions the category tag. Returns
// whether this was the user's first activity of the day.
func (r *ProfileRepository) RecordActivity(userID, date, activityType string, count int) (bool, error) {
	inserted, err := r.InsertActivityIfAbsent(userID, date, activityType, count)
	if err != nil || inserted {
		return inserted, err
	}

	err = r.db.Model(&models.Activity{}).
		Where("user_id = ? AND date = ?", userID, date).
		Updates(map[string]interface{}{
			"count":      gorm.Expr("count + ?", count),
			"updated_at": time.Now().UTC(),
		}).Error
	if err != nil {
		return false, fmt.Errorf("failed to update activity for %s: %w", date, err)
	}

	// Union the category tag into the comma-separated set.
	err = r.db.Model(&models.Activity{}).
		Where("user_id = ? AND date = ?", userID, date).
		Where("',' || types || ',' NOT LIKE '%,' || ? || ',%'", activityType).
		Update("types", gorm.Expr("types || ',' || ?", activityType)).Error
	if err != nil {
		return false, fmt.Errorf("failed to union activity types for %s: %w", date, err)
	}

	return false, nil
}

// GetActivity returns the activity entry for one day, or ErrNotFound.
func (r *ProfileRepository) GetActivity(userID, date string) (*models.Activity, error) {
	var activity models.Activity
	if err := r.db.Where("user_id = ? AND date = ?", userID, date).First(&activity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("activity for %s: %w", date, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get activity for %s: %w", date, err)
	}
	return &activity, nil
}

// ListActivities returns all activity entries for a user ordered by date.
func (r *ProfileRepository) ListActivities(userID string) ([]models.Activity, error) {
	var activities []models.Activity
	err := r.db.Where("user_id = ?", userID).Order("date ASC").Find(&activities).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list activities for user %s: %w", userID, err)
	}
	return activities, nil
}

// ListActivitiesForYear returns a user's activity entries within a year.
func (r *ProfileRepository) ListActivitiesForYear(userID string, year int) ([]models.Activity, error) {
	var activities []models.Activity
	err := r.db.
		Where("user_id = ? AND date LIKE ?", userID, fmt.Sprintf("%04d-%%", year)).
		Order("date ASC").
		Find(&activities).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list %d activities for user %s: %w", year, userID, err)
	}
	return activities, nil
}

// UpdateStreak stores a freshly computed streak on the profile.
func (r *ProfileRepository) UpdateStreak(userID string, streak models.Streak) error {
	res := r.db.Model(&models.UserProfile{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"streak_current_count":    streak.CurrentCount,
			"streak_max_count":        streak.MaxCount,
			"streak_last_active_date": streak.LastActiveDate,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update streak for user %s: %w", userID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("profile for user %s: %w", userID, models.ErrNotFound)
	}
	return nil
}

// IncrementActiveDays bumps the distinct-active-days counter.
func (r *ProfileRepository) IncrementActiveDays(userID string) error {
	err := r.db.Model(&models.UserProfile{}).
		Where("user_id = ?", userID).
		Update("active_days", gorm.Expr("active_days + 1")).Error
	if err != nil {
		return fmt.Errorf("failed to increment active days for user %s: %w", userID, err)
	}
	return nil
}

// ListTop returns profiles ordered by one of the aggregate counters.
// orderColumn must come from a caller-side whitelist.
func (r *ProfileRepository) ListTop(orderColumn string, limit int) ([]models.UserProfile, error) {
	var profiles []models.UserProfile
	err := r.db.
		Where("is_blocked = ?", false).
		Order(orderColumn + " DESC").
		Limit(limit).
		Find(&profiles).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list top profiles: %w", err)
	}
	return profiles, nil
}
