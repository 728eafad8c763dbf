package bankapi

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/moneypennybank/amlflow/internal/common"
	"github.com/moneypennybank/amlflow/internal/model"
	"github.com/moneypennybank/amlflow/internal/service"
)

var (
	_ service.TransactionFetcher = (*FixtureClient)(nil)
	_ service.ProfileFetcher     = (*FixtureClient)(nil)
	_ service.CountryRiskRater   = (*FixtureClient)(nil)
	_ service.WatchlistChecker   = (*FixtureClient)(nil)
	_ service.RegistrySearcher   = (*FixtureClient)(nil)
	_ service.Geocoder           = (*FixtureClient)(nil)
)

// FixtureClient serves the same interfaces as Client from a local JSON file,
// for offline reviews and tests.
type FixtureClient struct {
	accounts  map[string]fixtureAccount
	countries map[string]service.CountryRisk
	watchlist []fixtureWatchlistEntry
	officers  map[string]service.CompanyOfficers
	geocodes  map[string]service.GeocodeResult
}

type fixtureAccount struct {
	Profile      wireProfile       `json:"profile"`
	Transactions []wireTransaction `json:"transactions"`
}

type fixtureWatchlistEntry struct {
	Names []string               `json:"names"`
	Entry service.WatchlistEntry `json:"entry"`
}

type fixtureFile struct {
	Accounts  map[string]fixtureAccount          `json:"accounts"`
	Countries map[string]service.CountryRisk     `json:"country_risk"`
	Watchlist []fixtureWatchlistEntry            `json:"watchlist"`
	Officers  map[string]service.CompanyOfficers `json:"company_officers"`
	Geocodes  map[string]service.GeocodeResult   `json:"geocodes"`
}

// NewFixtureClient loads a fixture file from disk.
func NewFixtureClient(path string) (*FixtureClient, error) {
	raw, err := os.ReadFile(path) // #nosec G304 -- operator-supplied fixture path
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture file: %w", err)
	}
	return ParseFixture(raw)
}

// ParseFixture builds a fixture client from raw JSON.
func ParseFixture(raw []byte) (*FixtureClient, error) {
	var file fixtureFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}
	return &FixtureClient{
		accounts:  file.Accounts,
		countries: file.Countries,
		watchlist: file.Watchlist,
		officers:  file.Officers,
		geocodes:  file.Geocodes,
	}, nil
}

// FetchTransactions returns the account's fixture transactions within the
// period.
func (f *FixtureClient) FetchTransactions(ctx context.Context, accountNumber string, start, end time.Time) ([]model.Transaction, error) {
	acct, ok := f.accounts[accountNumber]
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrUnknownAccount, accountNumber)
	}

	var txns []model.Transaction
	for _, w := range acct.Transactions {
		txn, err := w.toModel()
		if err != nil {
			return nil, fmt.Errorf("fixture transaction %s: %w", w.TransactionID, err)
		}
		if txn.Timestamp.Before(start) || txn.Timestamp.After(end.Add(24*time.Hour)) {
			continue
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

// FetchProfile returns the account's fixture profile.
func (f *FixtureClient) FetchProfile(ctx context.Context, accountNumber string) (*model.AccountContext, error) {
	acct, ok := f.accounts[accountNumber]
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrUnknownAccount, accountNumber)
	}

	profile := &model.AccountContext{
		AccountNumber:           accountNumber,
		AccountType:             acct.Profile.AccountType,
		StatedPurpose:           acct.Profile.StatedPurpose,
		ExpectedMonthlyTurnover: acct.Profile.ExpectedMonthlyTurnover,
		AvgTransactionSize:      acct.Profile.AvgTransactionSize,
		PriorAlerts:             acct.Profile.PriorAlerts,
	}
	if acct.Profile.CustomerSince != "" {
		since, err := time.Parse("2006-01-02", acct.Profile.CustomerSince)
		if err != nil {
			return nil, fmt.Errorf("fixture customer_since %q: %w", acct.Profile.CustomerSince, err)
		}
		profile.CustomerSince = since
	}
	return profile, nil
}

// RateCountry returns the fixture risk rating, defaulting to low for
// countries the fixture does not mention.
func (f *FixtureClient) RateCountry(ctx context.Context, countryCode string) (*service.CountryRisk, error) {
	code := strings.ToUpper(countryCode)
	if risk, ok := f.countries[code]; ok {
		return &risk, nil
	}
	return &service.CountryRisk{
		CountryCode: code,
		Rating:      service.CountryRiskLow,
		Reason:      "not listed in fixture data",
	}, nil
}

// CheckWatchlist screens a counterparty against the fixture watchlist by
// case-insensitive name match.
func (f *FixtureClient) CheckWatchlist(ctx context.Context, ref model.CounterpartyRef) (*service.WatchlistResult, error) {
	names := append([]string{ref.Name}, ref.Aliases...)
	result := &service.WatchlistResult{}
	for _, entry := range f.watchlist {
		for _, listed := range entry.Names {
			for _, name := range names {
				if strings.EqualFold(strings.TrimSpace(listed), strings.TrimSpace(name)) {
					result.IsOnWatchlist = true
					result.Entries = append(result.Entries, entry.Entry)
				}
			}
		}
	}
	return result, nil
}

// LookupOfficers returns fixture company officers by registration id.
func (f *FixtureClient) LookupOfficers(ctx context.Context, registrationID, countryCode string) (*service.CompanyOfficers, error) {
	officers, ok := f.officers[registrationID]
	if !ok {
		return nil, fmt.Errorf("company %s not found in registry", registrationID)
	}
	return &officers, nil
}

// ReverseGeocode resolves coordinates from the fixture's geocode table,
// keyed by "lat,lon" at four decimal places.
func (f *FixtureClient) ReverseGeocode(ctx context.Context, lat, lon float64) (*service.GeocodeResult, error) {
	key := geocodeKey(lat, lon)
	if result, ok := f.geocodes[key]; ok {
		return &result, nil
	}
	return nil, fmt.Errorf("no fixture geocode entry for %s", key)
}

func geocodeKey(lat, lon float64) string {
	return fmt.Sprintf("%.4f,%.4f", lat, lon)
}
