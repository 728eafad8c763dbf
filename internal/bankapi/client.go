// Package bankapi speaks the bank core API's JSON contracts for transaction
// history, account profiles, and the external AML lookup services the bank
// proxies (country risk, watchlist screening, company registry, geocoding).
package bankapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/moneypennybank/amlflow/internal/common"
	"github.com/moneypennybank/amlflow/internal/model"
	"github.com/moneypennybank/amlflow/internal/service"
)

var (
	_ service.TransactionFetcher = (*Client)(nil)
	_ service.ProfileFetcher     = (*Client)(nil)
	_ service.CountryRiskRater   = (*Client)(nil)
	_ service.WatchlistChecker   = (*Client)(nil)
	_ service.RegistrySearcher   = (*Client)(nil)
	_ service.Geocoder           = (*Client)(nil)
)

// Client implements the fetcher and lookup interfaces against the bank API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client, primarily for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithAPIKey sets the bearer token sent on every request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// NewClient creates a bank API client for the given base URL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("baseURL is required")
	}
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Wire types for the bank API responses.

type wireTransaction struct {
	TransactionID       string   `json:"transaction_id"`
	Timestamp           string   `json:"timestamp"`
	Amount              float64  `json:"amount"`
	Currency            string   `json:"currency"`
	Type                string   `json:"type"`
	Description         string   `json:"description"`
	CounterpartyName    string   `json:"counterparty_name"`
	CounterpartyAcct    string   `json:"counterparty_account_number"`
	CounterpartyBankID  string   `json:"counterparty_bank_identifier"`
	CounterpartyCountry string   `json:"counterparty_country"`
	Latitude            *float64 `json:"transaction_location_latitude"`
	Longitude           *float64 `json:"transaction_location_longitude"`
	Cash                bool     `json:"is_cash_transaction"`
	BalanceAfter        float64  `json:"balance_after"`
}

type wireProfile struct {
	AccountNumber           string  `json:"account_number"`
	AccountType             string  `json:"account_type"`
	CustomerSince           string  `json:"customer_since"`
	StatedPurpose           string  `json:"primary_business_activity"`
	ExpectedMonthlyTurnover float64 `json:"expected_monthly_turnover"`
	AvgTransactionSize      float64 `json:"avg_transaction_size"`
	PriorAlerts             int     `json:"known_alerts_history_count"`
}

type watchlistRequest struct {
	EntityName string   `json:"entity_name"`
	EntityType string   `json:"entity_type"`
	Country    string   `json:"country_of_residence_or_incorporation,omitempty"`
	DOB        string   `json:"date_of_birth,omitempty"`
	Aliases    []string `json:"aliases,omitempty"`
}

type wireGeocode struct {
	CountryCode      string `json:"country_code"`
	FormattedAddress string `json:"formatted_address"`
}

// FetchTransactions retrieves the account's transactions for the period.
func (c *Client) FetchTransactions(ctx context.Context, accountNumber string, start, end time.Time) ([]model.Transaction, error) {
	endpoint := fmt.Sprintf("%s/users/%s/transactions?%s",
		c.baseURL, url.PathEscape(accountNumber),
		url.Values{
			"start_date": {start.Format("2006-01-02")},
			"end_date":   {end.Format("2006-01-02")},
		}.Encode())

	var wire []wireTransaction
	if err := c.getJSON(ctx, endpoint, &wire); err != nil {
		return nil, fmt.Errorf("fetching transactions for %s: %w", accountNumber, err)
	}

	txns := make([]model.Transaction, 0, len(wire))
	for _, w := range wire {
		txn, err := w.toModel()
		if err != nil {
			return nil, fmt.Errorf("transaction %s: %w", w.TransactionID, err)
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

func (w *wireTransaction) toModel() (model.Transaction, error) {
	ts, err := time.Parse(time.RFC3339, w.Timestamp)
	if err != nil {
		// Some sources send date-only timestamps.
		ts, err = time.Parse("2006-01-02", w.Timestamp)
		if err != nil {
			return model.Transaction{}, fmt.Errorf("unparseable timestamp %q", w.Timestamp)
		}
	}
	txn := model.Transaction{
		Timestamp:           ts,
		ID:                  w.TransactionID,
		Amount:              w.Amount,
		Currency:            w.Currency,
		Type:                w.Type,
		Description:         w.Description,
		CounterpartyName:    w.CounterpartyName,
		CounterpartyAcct:    w.CounterpartyAcct,
		CounterpartyBankID:  w.CounterpartyBankID,
		CounterpartyCountry: w.CounterpartyCountry,
		Latitude:            w.Latitude,
		Longitude:           w.Longitude,
		Cash:                w.Cash,
		BalanceAfter:        w.BalanceAfter,
	}
	if txn.ID == "" {
		txn.ID = txn.Hash()
	}
	return txn, nil
}

// FetchProfile retrieves the account's AML baseline profile.
func (c *Client) FetchProfile(ctx context.Context, accountNumber string) (*model.AccountContext, error) {
	endpoint := fmt.Sprintf("%s/users/%s/aml_profile_summary", c.baseURL, url.PathEscape(accountNumber))

	var wire wireProfile
	if err := c.getJSON(ctx, endpoint, &wire); err != nil {
		return nil, fmt.Errorf("fetching profile for %s: %w", accountNumber, err)
	}

	profile := &model.AccountContext{
		AccountNumber:           accountNumber,
		AccountType:             wire.AccountType,
		StatedPurpose:           wire.StatedPurpose,
		ExpectedMonthlyTurnover: wire.ExpectedMonthlyTurnover,
		AvgTransactionSize:      wire.AvgTransactionSize,
		PriorAlerts:             wire.PriorAlerts,
	}
	if wire.AccountNumber != "" {
		profile.AccountNumber = wire.AccountNumber
	}
	if wire.CustomerSince != "" {
		since, err := time.Parse("2006-01-02", wire.CustomerSince)
		if err != nil {
			return nil, fmt.Errorf("unparseable customer_since %q", wire.CustomerSince)
		}
		profile.CustomerSince = since
	}
	return profile, nil
}

// RateCountry looks up the bank's AML risk rating for a country.
func (c *Client) RateCountry(ctx context.Context, countryCode string) (*service.CountryRisk, error) {
	endpoint := fmt.Sprintf("%s/aml_data/country_risk/%s", c.baseURL, url.PathEscape(countryCode))

	var risk service.CountryRisk
	if err := c.getJSON(ctx, endpoint, &risk); err != nil {
		return nil, fmt.Errorf("rating country %s: %w", countryCode, err)
	}
	return &risk, nil
}

// CheckWatchlist screens a counterparty against watchlists and sanctions
// lists via the bank's screening proxy.
func (c *Client) CheckWatchlist(ctx context.Context, ref model.CounterpartyRef) (*service.WatchlistResult, error) {
	payload := watchlistRequest{
		EntityName: ref.Name,
		EntityType: string(ref.EntityType),
		Country:    ref.Country,
		DOB:        ref.DateOfBirth,
		Aliases:    ref.Aliases,
	}
	endpoint := c.baseURL + "/external_services/watchlist_check"

	var result service.WatchlistResult
	if err := c.postJSON(ctx, endpoint, payload, &result); err != nil {
		return nil, fmt.Errorf("screening %s: %w", ref.Name, err)
	}
	return &result, nil
}

// LookupOfficers fetches director and shareholder information for a
// registered company.
func (c *Client) LookupOfficers(ctx context.Context, registrationID, countryCode string) (*service.CompanyOfficers, error) {
	endpoint := fmt.Sprintf("%s/external_services/company_info/%s/directors?country_code=%s",
		c.baseURL, url.PathEscape(registrationID), url.QueryEscape(countryCode))

	var officers service.CompanyOfficers
	if err := c.getJSON(ctx, endpoint, &officers); err != nil {
		return nil, fmt.Errorf("looking up officers for %s: %w", registrationID, err)
	}
	return &officers, nil
}

// ReverseGeocode resolves coordinates to a country via the bank's geocoding
// proxy.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (*service.GeocodeResult, error) {
	endpoint := fmt.Sprintf("%s/external_services/geocode?latlng=%s",
		c.baseURL, url.QueryEscape(fmt.Sprintf("%f,%f", lat, lon)))

	var wire wireGeocode
	if err := c.getJSON(ctx, endpoint, &wire); err != nil {
		return nil, fmt.Errorf("reverse geocoding %f,%f: %w", lat, lon, err)
	}
	return &service.GeocodeResult{
		CountryCode:      wire.CountryCode,
		FormattedAddress: wire.FormattedAddress,
	}, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrUpstreamUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", common.ErrUnknownAccount, req.URL.Path)
	case resp.StatusCode >= 500:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: API returned status %d: %s",
			common.ErrUpstreamUnavailable, resp.StatusCode, string(body))
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
