// Package rewards computes XP, coin, level and streak changes. Functions
// mutate the passed user and never touch storage.
package rewards

import (
	"time"

	"github.com/volatiletech/null/v8"

	"growtive/pkg/types"
)

const (
	XPPerLevel = 100

	LoginXP    = 10
	LoginCoins = 5

	MaterialXP    = 30
	MaterialCoins = 10

	SessionXP    = 50
	SessionCoins = 20
)

// DateLayout is the calendar-day format stored in last_login_date.
const DateLayout = "2006-01-02"

// LevelForXP returns max(1, xp/100 + 1).
func LevelForXP(xp int) int {
	if xp < 0 {
		return 1
	}
	return xp/XPPerLevel + 1
}

// AwardLogin applies the daily login bonus for the calendar day of today, in
// today's location. It returns false when the user already logged in that day.
func AwardLogin(u *types.User, today time.Time) bool {
	day := today.Format(DateLayout)
	if u.LastLoginDate.Valid && u.LastLoginDate.String == day {
		return false
	}

	yesterday := today.AddDate(0, 0, -1).Format(DateLayout)
	if u.LastLoginDate.Valid && u.LastLoginDate.String == yesterday {
		u.StreakDays++
	} else {
		u.StreakDays = 1
	}
	u.LastLoginDate = null.StringFrom(day)

	grant(u, LoginXP, LoginCoins)
	return true
}

// AwardMaterialCompletion grants the bonus for finishing a material. It can
// be earned any number of times.
func AwardMaterialCompletion(u *types.User) {
	grant(u, MaterialXP, MaterialCoins)
}

// AwardStudySession grants the bonus for finishing a study room session.
func AwardStudySession(u *types.User) {
	grant(u, SessionXP, SessionCoins)
}

func grant(u *types.User, xp, coins int) {
	u.XP += xp
	u.Coins += coins
	u.Level = LevelForXP(u.XP)
}
