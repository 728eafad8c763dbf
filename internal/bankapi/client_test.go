package bankapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moneypennybank/amlflow/internal/common"
	"github.com/moneypennybank/amlflow/internal/model"
	"github.com/moneypennybank/amlflow/internal/service"
)

func TestFetchTransactions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/123456789/transactions", r.URL.Path)
		assert.Equal(t, "2025-05-01", r.URL.Query().Get("start_date"))
		assert.Equal(t, "2025-05-31", r.URL.Query().Get("end_date"))
		assert.Equal(t, "Bearer sekrit", r.Header.Get("Authorization"))

		lat, lon := 35.6892, 51.3890
		_ = json.NewEncoder(w).Encode([]wireTransaction{
			{
				TransactionID:       "txn_122",
				Timestamp:           "2025-05-15T10:30:00Z",
				Amount:              24000,
				Currency:            "USD",
				Type:                "transfer_out",
				CounterpartyName:    "Opaque Holdings Ltd",
				CounterpartyCountry: "IR",
				Latitude:            &lat,
				Longitude:           &lon,
			},
			{
				Timestamp:   "2025-05-16",
				Amount:      50,
				Type:        "card_payment",
				Description: "coffee",
			},
		})
	}))
	defer server.Close()

	client, err := NewClient(server.URL, WithAPIKey("sekrit"))
	require.NoError(t, err)

	txns, err := client.FetchTransactions(context.Background(),
		"123456789",
		time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, txns, 2)

	assert.Equal(t, "txn_122", txns[0].ID)
	assert.Equal(t, "IR", txns[0].CounterpartyCountry)
	assert.True(t, txns[0].HasCoordinates())
	assert.Equal(t, time.Date(2025, 5, 15, 10, 30, 0, 0, time.UTC), txns[0].Timestamp)

	// An id is synthesized when the source omits one.
	assert.NotEmpty(t, txns[1].ID)
	assert.False(t, txns[1].HasCoordinates())
}

func TestFetchTransactionsRejectsBadTimestamp(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]wireTransaction{{TransactionID: "txn_1", Timestamp: "yesterday"}})
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	_, err = client.FetchTransactions(context.Background(), "1", time.Now(), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unparseable timestamp")
}

func TestFetchProfile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/123456789/aml_profile_summary", r.URL.Path)
		_ = json.NewEncoder(w).Encode(wireProfile{
			AccountNumber:           "123456789",
			AccountType:             "business_checking",
			CustomerSince:           "2015-03-01",
			StatedPurpose:           "import/export trading",
			ExpectedMonthlyTurnover: 50000,
			AvgTransactionSize:      1200,
			PriorAlerts:             1,
		})
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	profile, err := client.FetchProfile(context.Background(), "123456789")
	require.NoError(t, err)

	assert.Equal(t, "123456789", profile.AccountNumber)
	assert.Equal(t, "business_checking", profile.AccountType)
	assert.Equal(t, time.Date(2015, 3, 1, 0, 0, 0, 0, time.UTC), profile.CustomerSince)
	assert.Equal(t, float64(50000), profile.ExpectedMonthlyTurnover)
	assert.Equal(t, 1, profile.PriorAlerts)
}

func TestUnknownAccountMapsTo404(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"account not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	_, err = client.FetchProfile(context.Background(), "999")
	assert.ErrorIs(t, err, common.ErrUnknownAccount)
}

func TestServerErrorIsUpstreamUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	_, err = client.RateCountry(context.Background(), "IR")
	assert.ErrorIs(t, err, common.ErrUpstreamUnavailable)
	assert.True(t, common.IsTransient(err))
}

func TestConnectionFailureIsUpstreamUnavailable(t *testing.T) {
	client, err := NewClient("http://127.0.0.1:1")
	require.NoError(t, err)

	_, err = client.RateCountry(context.Background(), "IR")
	assert.ErrorIs(t, err, common.ErrUpstreamUnavailable)
}

func TestRateCountry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/aml_data/country_risk/IR", r.URL.Path)
		_ = json.NewEncoder(w).Encode(service.CountryRisk{
			CountryCode: "IR",
			CountryName: "Iran",
			Rating:      service.CountryRiskSanctioned,
			Reason:      "comprehensive sanctions program",
		})
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	risk, err := client.RateCountry(context.Background(), "IR")
	require.NoError(t, err)
	assert.Equal(t, service.CountryRiskSanctioned, risk.Rating)
}

func TestCheckWatchlist(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/external_services/watchlist_check", r.URL.Path)

		var payload watchlistRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "Opaque Holdings Ltd", payload.EntityName)
		assert.Equal(t, "organization", payload.EntityType)
		assert.Equal(t, "IR", payload.Country)

		_ = json.NewEncoder(w).Encode(service.WatchlistResult{
			IsOnWatchlist: true,
			Entries: []service.WatchlistEntry{{
				ListName:    "OFAC SDN",
				Program:     "IRAN",
				MatchedName: "OPAQUE HOLDINGS LTD",
				MatchScore:  0.97,
				Sanctions:   true,
			}},
		})
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	result, err := client.CheckWatchlist(context.Background(), model.CounterpartyRef{
		Name:       "Opaque Holdings Ltd",
		EntityType: model.EntityOrganization,
		Country:    "IR",
	})
	require.NoError(t, err)
	assert.True(t, result.IsOnWatchlist)
	require.Len(t, result.Entries, 1)
	assert.True(t, result.Entries[0].Sanctions)
}

func TestLookupOfficers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/external_services/company_info/REG-42/directors", r.URL.Path)
		assert.Equal(t, "GB", r.URL.Query().Get("country_code"))
		_ = json.NewEncoder(w).Encode(service.CompanyOfficers{
			Directors: []string{"B Blofeld"},
		})
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	officers, err := client.LookupOfficers(context.Background(), "REG-42", "GB")
	require.NoError(t, err)
	assert.Equal(t, []string{"B Blofeld"}, officers.Directors)
}

func TestReverseGeocode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/external_services/geocode", r.URL.Path)
		assert.Equal(t, "35.689200,51.389000", r.URL.Query().Get("latlng"))
		_ = json.NewEncoder(w).Encode(wireGeocode{
			CountryCode:      "IR",
			FormattedAddress: "Tehran, Iran",
		})
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	result, err := client.ReverseGeocode(context.Background(), 35.6892, 51.3890)
	require.NoError(t, err)
	assert.Equal(t, "IR", result.CountryCode)
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient("")
	assert.Error(t, err)
}
