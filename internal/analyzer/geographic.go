package analyzer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/moneypennybank/amlflow/internal/common"
	"github.com/moneypennybank/amlflow/internal/model"
	"github.com/moneypennybank/amlflow/internal/service"
)

// GeographicAnalyzer assesses each transaction's country of origin or
// destination against the bank's country risk ratings. Coordinates take
// precedence over the counterparty country when both are present.
type GeographicAnalyzer struct {
	rater    service.CountryRiskRater
	geocoder service.Geocoder
}

// NewGeographicAnalyzer creates a geographic risk analyzer backed by the
// given country rating and geocoding collaborators.
func NewGeographicAnalyzer(rater service.CountryRiskRater, geocoder service.Geocoder) *GeographicAnalyzer {
	return &GeographicAnalyzer{rater: rater, geocoder: geocoder}
}

// Stage implements Analyzer.
func (a *GeographicAnalyzer) Stage() model.Stage {
	return model.StageGeographic
}

// Analyze implements Analyzer.
func (a *GeographicAnalyzer) Analyze(ctx context.Context, in Input) (Result, error) {
	if err := validateInput(in); err != nil {
		return Result{}, err
	}

	var result Result

	// evidence per country, keyed by country code
	type countryHits struct {
		risk     *service.CountryRisk
		evidence []string
	}
	hits := make(map[string]*countryHits)
	ratings := make(map[string]*service.CountryRisk)
	unresolved := 0

	for _, txn := range in.Transactions {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		code, warning := a.resolveCountry(ctx, txn)
		if warning != "" {
			result.Warnings = append(result.Warnings, warning)
		}
		if code == "" {
			unresolved++
			continue
		}

		risk, ok := ratings[code]
		if !ok {
			var err error
			risk, err = a.rater.RateCountry(ctx, code)
			if err != nil {
				return Result{}, fmt.Errorf("%w: country risk lookup for %s: %v",
					common.ErrUpstreamUnavailable, code, err)
			}
			ratings[code] = risk
		}

		if risk.Rating != service.CountryRiskHigh && risk.Rating != service.CountryRiskSanctioned {
			continue
		}
		h, ok := hits[code]
		if !ok {
			h = &countryHits{risk: risk}
			hits[code] = h
		}
		h.evidence = append(h.evidence, txn.ID)
	}

	if unresolved > 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("could not determine a country for %d transactions", unresolved))
	}

	// Deterministic finding order regardless of map iteration.
	codes := make([]string, 0, len(hits))
	for code := range hits {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for _, code := range codes {
		h := hits[code]
		if h.risk.Rating == service.CountryRiskSanctioned {
			result.Findings = append(result.Findings, model.Finding{
				ID:       uuid.New().String(),
				Stage:    model.StageGeographic,
				Category: model.CategorySanctionedCountry,
				Severity: model.SeverityHigh,
				Description: fmt.Sprintf(
					"%d transactions involve sanctioned country %s (%s)",
					len(h.evidence), code, a.ratingReason(h.risk)),
				EvidenceIDs:       h.evidence,
				ConfirmedSanction: true,
			})
			continue
		}
		result.Findings = append(result.Findings, model.Finding{
			ID:       uuid.New().String(),
			Stage:    model.StageGeographic,
			Category: model.CategoryHighRiskCorridor,
			Severity: model.SeverityMedium,
			Description: fmt.Sprintf(
				"%d transactions involve high-risk country %s (%s)",
				len(h.evidence), code, a.ratingReason(h.risk)),
			EvidenceIDs: h.evidence,
		})
	}

	return result, nil
}

// resolveCountry determines a transaction's country code, preferring
// coordinates over the counterparty country. A geocoding failure degrades to
// the counterparty country with a warning rather than failing the stage.
func (a *GeographicAnalyzer) resolveCountry(ctx context.Context, txn model.Transaction) (code, warning string) {
	if txn.HasCoordinates() && a.geocoder != nil {
		geo, err := a.geocoder.ReverseGeocode(ctx, *txn.Latitude, *txn.Longitude)
		if err == nil && geo.CountryCode != "" {
			return strings.ToUpper(geo.CountryCode), ""
		}
		if err != nil {
			warning = fmt.Sprintf("geocoding failed for transaction %s: %v", txn.ID, err)
		}
	}
	if txn.CounterpartyCountry != "" {
		return strings.ToUpper(txn.CounterpartyCountry), warning
	}
	return "", warning
}

func (a *GeographicAnalyzer) ratingReason(risk *service.CountryRisk) string {
	if risk.Reason != "" {
		return risk.Reason
	}
	return "rated " + risk.Rating
}
