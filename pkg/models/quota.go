package models

import "time"

// QuotaState is the per-user daily credit ledger. Reset at 00:00 UTC.
type QuotaState struct {
	UserID        string    `json:"user_id"`
	DailyUsed     int       `json:"daily_used"`
	DailyLimit    int       `json:"daily_limit"`
	LastResetDate time.Time `json:"last_reset_date"`
}

// NeedsReset reports whether the state's LastResetDate is before the UTC
// calendar day of now.
func (q QuotaState) NeedsReset(now time.Time) bool {
	now = now.UTC()
	last := q.LastResetDate.UTC()
	return last.Year() != now.Year() || last.YearDay() != now.YearDay()
}
