package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/moneypennybank/amlflow/internal/common"
	"github.com/moneypennybank/amlflow/internal/model"
	"github.com/moneypennybank/amlflow/internal/service"
)

// EntityLinkageAnalyzer screens the counterparties behind flagged findings
// against watchlists and, for organizations, screens their registered
// directors as well.
type EntityLinkageAnalyzer struct {
	watchlist service.WatchlistChecker
	registry  service.RegistrySearcher
}

// NewEntityLinkageAnalyzer creates an entity linkage analyzer backed by the
// given watchlist and company registry collaborators.
func NewEntityLinkageAnalyzer(watchlist service.WatchlistChecker, registry service.RegistrySearcher) *EntityLinkageAnalyzer {
	return &EntityLinkageAnalyzer{watchlist: watchlist, registry: registry}
}

// Stage implements Analyzer.
func (a *EntityLinkageAnalyzer) Stage() model.Stage {
	return model.StageEntity
}

// Analyze implements Analyzer.
func (a *EntityLinkageAnalyzer) Analyze(ctx context.Context, in Input) (Result, error) {
	if err := validateInput(in); err != nil {
		return Result{}, err
	}
	if len(in.Counterparties) == 0 {
		return Result{}, fmt.Errorf("%w: entity linkage requires at least one counterparty", common.ErrInvalidInput)
	}

	var result Result

	for _, ref := range in.Counterparties {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if !ref.Resolvable() {
			result.Warnings = append(result.Warnings,
				"skipped a counterparty with no resolvable identity")
			continue
		}

		screening, err := a.watchlist.CheckWatchlist(ctx, ref)
		if err != nil {
			return Result{}, fmt.Errorf("%w: watchlist check for %q: %v",
				common.ErrUpstreamUnavailable, ref.Name, err)
		}
		if screening.IsOnWatchlist {
			result.Findings = append(result.Findings, a.watchlistFinding(ref, screening))
		}

		if ref.EntityType == model.EntityOrganization && ref.RegistrationID != "" {
			findings, warning := a.screenOfficers(ctx, ref)
			result.Findings = append(result.Findings, findings...)
			if warning != "" {
				result.Warnings = append(result.Warnings, warning)
			}
		}
	}

	return result, nil
}

// watchlistFinding converts a screening hit into a finding. Sanctions-list
// entries produce a confirmed-sanction HIGH finding; other watchlists
// produce a MEDIUM finding for analyst follow-up.
func (a *EntityLinkageAnalyzer) watchlistFinding(ref model.CounterpartyRef, screening *service.WatchlistResult) model.Finding {
	sanctioned := false
	lists := make([]string, 0, len(screening.Entries))
	for _, entry := range screening.Entries {
		if entry.Sanctions {
			sanctioned = true
		}
		lists = append(lists, entry.ListName)
	}

	if sanctioned {
		return model.Finding{
			ID:       uuid.New().String(),
			Stage:    model.StageEntity,
			Category: model.CategorySanctionsMatch,
			Severity: model.SeverityHigh,
			Description: fmt.Sprintf("counterparty %q matched sanctions list(s): %s",
				ref.Name, strings.Join(lists, ", ")),
			EvidenceIDs:       ref.EvidenceIDs,
			ConfirmedSanction: true,
		}
	}

	return model.Finding{
		ID:       uuid.New().String(),
		Stage:    model.StageEntity,
		Category: model.CategoryWatchlistMatch,
		Severity: model.SeverityMedium,
		Description: fmt.Sprintf("counterparty %q matched watchlist(s): %s",
			ref.Name, strings.Join(lists, ", ")),
		EvidenceIDs: ref.EvidenceIDs,
	}
}

// screenOfficers looks up an organization's directors and screens each one.
// Registry or screening failures degrade to a warning; director linkage is
// corroborating evidence, not a reason to fail the stage.
func (a *EntityLinkageAnalyzer) screenOfficers(ctx context.Context, ref model.CounterpartyRef) ([]model.Finding, string) {
	officers, err := a.registry.LookupOfficers(ctx, ref.RegistrationID, ref.Country)
	if err != nil {
		return nil, fmt.Sprintf("company registry lookup failed for %q: %v", ref.Name, err)
	}

	var findings []model.Finding
	for _, director := range officers.Directors {
		screening, err := a.watchlist.CheckWatchlist(ctx, model.CounterpartyRef{
			Name:       director,
			EntityType: model.EntityIndividual,
			Country:    ref.Country,
		})
		if err != nil {
			return findings, fmt.Sprintf("watchlist check failed for director %q of %q: %v",
				director, ref.Name, err)
		}
		if !screening.IsOnWatchlist {
			continue
		}

		severity := model.SeverityMedium
		sanctioned := false
		for _, entry := range screening.Entries {
			if entry.Sanctions {
				severity = model.SeverityHigh
				sanctioned = true
			}
		}
		findings = append(findings, model.Finding{
			ID:       uuid.New().String(),
			Stage:    model.StageEntity,
			Category: model.CategoryDirectorWatchlist,
			Severity: severity,
			Description: fmt.Sprintf("director %q of counterparty %q is watchlisted",
				director, ref.Name),
			EvidenceIDs:       ref.EvidenceIDs,
			ConfirmedSanction: sanctioned,
		})
	}

	return findings, ""
}
