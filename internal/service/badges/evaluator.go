package badges

import (
	"github.com/koodecode/progression/internal/models"
)

// Evaluation is the result of checking one badge against a profile.
type Evaluation struct {
	Eligible     bool `json:"eligible"`
	CurrentValue int  `json:"current_value"`
	Threshold    int  `json:"threshold"`
}

// Evaluate checks a profile against one badge's criteria. Unknown
// criteria types resolve to a current value of 0 and never qualify, so
// a catalog entry from a newer deployment degrades quietly instead of
// failing the sweep.
func Evaluate(profile *models.UserProfile, badge *models.Badge) Evaluation {
	current := currentValue(profile, badge.CriteriaType)
	return Evaluation{
		Eligible:     badge.Threshold > 0 && current >= badge.Threshold,
		CurrentValue: current,
		Threshold:    badge.Threshold,
	}
}

// currentValue resolves the profile counter a criteria type refers to.
func currentValue(profile *models.UserProfile, criteria models.CriteriaType) int {
	switch criteria {
	case models.CriteriaProblemsSolved:
		return profile.TotalProblems
	case models.CriteriaEasyProblems:
		return profile.EasyProblems
	case models.CriteriaMediumProblems:
		return profile.MediumProblems
	case models.CriteriaHardProblems:
		return profile.HardProblems
	case models.CriteriaMaxStreak:
		return profile.Streak.MaxCount
	case models.CriteriaActiveDays:
		return profile.ActiveDays
	default:
		return 0
	}
}
