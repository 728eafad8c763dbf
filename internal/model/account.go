package model

import "time"

// AccountContext is the read-only profile baseline every stage compares
// activity against.
type AccountContext struct {
	CustomerSince           time.Time
	AccountNumber           string
	AccountType             string // e.g. "Personal Current Account", "Business Current Account"
	ExpectedMonthlyTurnover float64
	AvgTransactionSize      float64
	StatedPurpose           string
	PriorAlerts             int
}

// TenureYears returns whole years since account opening, measured at the
// given reference time.
func (a *AccountContext) TenureYears(now time.Time) int {
	if a.CustomerSince.IsZero() || a.CustomerSince.After(now) {
		return 0
	}
	years := now.Year() - a.CustomerSince.Year()
	anniversary := a.CustomerSince.AddDate(years, 0, 0)
	if anniversary.After(now) {
		years--
	}
	return years
}
