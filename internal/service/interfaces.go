// Package service defines the contracts for the external collaborators the
// case review pipeline depends on.
package service

import (
	"context"
	"time"

	"github.com/moneypennybank/amlflow/internal/model"
	"github.com/moneypennybank/amlflow/internal/report"
)

// TransactionFetcher retrieves an account's transaction history for a period.
type TransactionFetcher interface {
	FetchTransactions(ctx context.Context, accountNumber string, start, end time.Time) ([]model.Transaction, error)
}

// ProfileFetcher retrieves the account's baseline profile.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, accountNumber string) (*model.AccountContext, error)
}

// CountryRisk is the bank's AML rating for a single country.
type CountryRisk struct {
	CountryCode string `json:"country_code"`
	CountryName string `json:"country_name"`
	Rating      string `json:"aml_risk_rating"` // low, medium, high, sanctioned
	Reason      string `json:"reason_for_rating"`
}

// Country risk ratings returned by CountryRiskRater.
const (
	CountryRiskLow        = "low"
	CountryRiskMedium     = "medium"
	CountryRiskHigh       = "high"
	CountryRiskSanctioned = "sanctioned"
)

// CountryRiskRater looks up the bank's AML risk rating for a country.
type CountryRiskRater interface {
	RateCountry(ctx context.Context, countryCode string) (*CountryRisk, error)
}

// WatchlistEntry describes a single watchlist or sanctions list match.
type WatchlistEntry struct {
	ListName    string  `json:"list_name"`
	Program     string  `json:"program,omitempty"`
	MatchedName string  `json:"matched_name"`
	MatchScore  float64 `json:"match_score"`
	Sanctions   bool    `json:"sanctions"`
}

// WatchlistResult is the outcome of screening one entity.
type WatchlistResult struct {
	IsOnWatchlist bool             `json:"is_on_watchlist"`
	Entries       []WatchlistEntry `json:"watchlist_details"`
}

// WatchlistChecker screens an entity against watchlists and sanctions lists.
type WatchlistChecker interface {
	CheckWatchlist(ctx context.Context, ref model.CounterpartyRef) (*WatchlistResult, error)
}

// CompanyOfficers lists the directors and shareholders of a registered company.
type CompanyOfficers struct {
	Directors    []string `json:"directors"`
	Shareholders []string `json:"shareholders"`
}

// RegistrySearcher looks up company officers in a national registry.
type RegistrySearcher interface {
	LookupOfficers(ctx context.Context, registrationID, countryCode string) (*CompanyOfficers, error)
}

// GeocodeResult resolves coordinates to a country.
type GeocodeResult struct {
	CountryCode      string `json:"country_code"`
	FormattedAddress string `json:"formatted_address"`
}

// Geocoder resolves geographic coordinates to a country code. Used only when
// a transaction has coordinates but no counterparty country.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (*GeocodeResult, error)
}

// ReportSummary is the listing row for a stored case report.
type ReportSummary struct {
	GeneratedAt   time.Time
	CaseID        string
	AccountNumber string
	OverallRisk   model.RiskLevel
	FindingCount  int
}

// ReportStore persists completed case reports for audit.
type ReportStore interface {
	SaveReport(ctx context.Context, r *report.CaseReport) error
	GetReport(ctx context.Context, caseID string) (*report.CaseReport, error)
	ListReports(ctx context.Context, accountNumber string, limit int) ([]ReportSummary, error)
	Close() error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
