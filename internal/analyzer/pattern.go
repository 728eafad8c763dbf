package analyzer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/moneypennybank/amlflow/internal/model"
)

// PatternConfig holds the thresholds the pattern analyzer evaluates against.
type PatternConfig struct {
	// ReportingThreshold is the cash reporting limit structuring skirts.
	ReportingThreshold float64
	// StructuringMargin is the fraction of the threshold above which a cash
	// deposit counts as "just under" it.
	StructuringMargin float64
	// StructuringWindow bounds how far apart structured deposits may be.
	StructuringWindow time.Duration
	// StructuringMinCount is the minimum deposits needed to flag structuring.
	StructuringMinCount int
	// LargeDepositAmount is the minimum deposit that triggers rapid-movement
	// tracking.
	LargeDepositAmount float64
	// RapidMovementWindow bounds how quickly funds must leave after a large
	// deposit to be flagged.
	RapidMovementWindow time.Duration
	// RapidMovementRatio is the fraction of the deposit that must flow out
	// within the window.
	RapidMovementRatio float64
	// TurnoverMultiple flags period volume exceeding this multiple of the
	// account's expected turnover.
	TurnoverMultiple float64
	// HighValueCashAmount flags individual cash movements at or above it.
	HighValueCashAmount float64
}

// DefaultPatternConfig returns the thresholds used in production review runs.
func DefaultPatternConfig() PatternConfig {
	return PatternConfig{
		ReportingThreshold:  10000,
		StructuringMargin:   0.75,
		StructuringWindow:   72 * time.Hour,
		StructuringMinCount: 3,
		LargeDepositAmount:  25000,
		RapidMovementWindow: 48 * time.Hour,
		RapidMovementRatio:  0.8,
		TurnoverMultiple:    3.0,
		HighValueCashAmount: 15000,
	}
}

// PatternAnalyzer flags transaction patterns associated with money
// laundering: structuring, rapid movement of funds, volume inconsistent with
// the account profile, and high-value cash activity.
type PatternAnalyzer struct {
	config PatternConfig
}

// NewPatternAnalyzer creates a pattern analyzer with the given thresholds.
func NewPatternAnalyzer(config PatternConfig) *PatternAnalyzer {
	return &PatternAnalyzer{config: config}
}

// Stage implements Analyzer.
func (a *PatternAnalyzer) Stage() model.Stage {
	return model.StagePattern
}

// Analyze implements Analyzer.
func (a *PatternAnalyzer) Analyze(ctx context.Context, in Input) (Result, error) {
	if err := validateInput(in); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	var result Result
	if len(in.Transactions) < 2 {
		result.Warnings = append(result.Warnings,
			"transaction history too sparse for meaningful pattern analysis")
		return result, nil
	}

	// Work on a time-sorted copy so window scans are linear.
	txns := make([]model.Transaction, len(in.Transactions))
	copy(txns, in.Transactions)
	sort.Slice(txns, func(i, j int) bool {
		return txns[i].Timestamp.Before(txns[j].Timestamp)
	})

	if f := a.detectStructuring(txns); f != nil {
		result.Findings = append(result.Findings, *f)
	}
	result.Findings = append(result.Findings, a.detectRapidMovement(txns)...)
	if f := a.detectTurnoverDeviation(txns, in.Account); f != nil {
		result.Findings = append(result.Findings, *f)
	}
	if f := a.detectHighValueCash(txns, result.Findings); f != nil {
		result.Findings = append(result.Findings, *f)
	}

	return result, nil
}

// detectStructuring looks for repeated cash deposits just under the
// reporting threshold within a short window.
func (a *PatternAnalyzer) detectStructuring(txns []model.Transaction) *model.Finding {
	lower := a.config.ReportingThreshold * a.config.StructuringMargin

	var candidates []model.Transaction
	for _, txn := range txns {
		if txn.Cash && txn.IsInbound() &&
			txn.Amount >= lower && txn.Amount < a.config.ReportingThreshold {
			candidates = append(candidates, txn)
		}
	}
	if len(candidates) < a.config.StructuringMinCount {
		return nil
	}

	// Find the densest run of candidates inside the window.
	var best []model.Transaction
	for i := range candidates {
		run := candidates[i : i+1]
		for j := i + 1; j < len(candidates); j++ {
			if candidates[j].Timestamp.Sub(candidates[i].Timestamp) > a.config.StructuringWindow {
				break
			}
			run = candidates[i : j+1]
		}
		if len(run) > len(best) {
			best = run
		}
	}
	if len(best) < a.config.StructuringMinCount {
		return nil
	}

	severity := model.SeverityMedium
	if len(best) >= a.config.StructuringMinCount*2 {
		severity = model.SeverityHigh
	}

	evidence := make([]string, len(best))
	amounts := make([]string, len(best))
	for i, txn := range best {
		evidence[i] = txn.ID
		amounts[i] = fmt.Sprintf("%.0f %s", txn.Amount, txn.Currency)
	}

	return &model.Finding{
		ID:       uuid.New().String(),
		Stage:    model.StagePattern,
		Category: model.CategoryStructuring,
		Severity: severity,
		Description: fmt.Sprintf(
			"%d cash deposits just under the %.0f reporting threshold within %s (%s)",
			len(best), a.config.ReportingThreshold,
			a.config.StructuringWindow, strings.Join(amounts, ", ")),
		EvidenceIDs: evidence,
	}
}

// detectRapidMovement flags large deposits whose value leaves the account
// within the configured window.
func (a *PatternAnalyzer) detectRapidMovement(txns []model.Transaction) []model.Finding {
	var findings []model.Finding

	for i, deposit := range txns {
		if !deposit.IsInbound() || deposit.Amount < a.config.LargeDepositAmount {
			continue
		}

		var outflow float64
		evidence := []string{deposit.ID}
		for _, txn := range txns[i+1:] {
			if txn.Timestamp.Sub(deposit.Timestamp) > a.config.RapidMovementWindow {
				break
			}
			if txn.IsOutbound() {
				outflow += txn.Amount
				evidence = append(evidence, txn.ID)
			}
		}

		if outflow >= deposit.Amount*a.config.RapidMovementRatio {
			findings = append(findings, model.Finding{
				ID:       uuid.New().String(),
				Stage:    model.StagePattern,
				Category: model.CategoryRapidMovement,
				Severity: model.SeverityHigh,
				Description: fmt.Sprintf(
					"deposit of %.0f %s on %s followed by %.0f %s in outbound transfers within %s",
					deposit.Amount, deposit.Currency,
					deposit.Timestamp.Format("2006-01-02"),
					outflow, deposit.Currency, a.config.RapidMovementWindow),
				EvidenceIDs: evidence,
			})
		}
	}

	return findings
}

// detectTurnoverDeviation compares the period's inbound volume against the
// profile's expected turnover, pro-rated to the period length.
func (a *PatternAnalyzer) detectTurnoverDeviation(txns []model.Transaction, account model.AccountContext) *model.Finding {
	if account.ExpectedMonthlyTurnover <= 0 {
		return nil
	}

	var inbound float64
	evidence := make([]string, 0, len(txns))
	for _, txn := range txns {
		if txn.IsInbound() {
			inbound += txn.Amount
			evidence = append(evidence, txn.ID)
		}
	}
	if inbound == 0 {
		return nil
	}

	days := txns[len(txns)-1].Timestamp.Sub(txns[0].Timestamp).Hours()/24 + 1
	expected := account.ExpectedMonthlyTurnover * (days / 30)
	if expected <= 0 || inbound < expected*a.config.TurnoverMultiple {
		return nil
	}

	return &model.Finding{
		ID:       uuid.New().String(),
		Stage:    model.StagePattern,
		Category: model.CategoryTurnoverDeviation,
		Severity: model.SeverityMedium,
		Description: fmt.Sprintf(
			"inbound volume of %.0f over %.0f days is %.1fx the expected turnover for this profile",
			inbound, days, inbound/expected),
		EvidenceIDs: evidence,
	}
}

// detectHighValueCash flags large cash movements not already implicated in a
// structuring finding.
func (a *PatternAnalyzer) detectHighValueCash(txns []model.Transaction, prior []model.Finding) *model.Finding {
	implicated := make(map[string]bool)
	for _, f := range prior {
		if f.Category == model.CategoryStructuring {
			for _, id := range f.EvidenceIDs {
				implicated[id] = true
			}
		}
	}

	var flagged []model.Transaction
	for _, txn := range txns {
		if txn.Cash && txn.Amount >= a.config.HighValueCashAmount && !implicated[txn.ID] {
			flagged = append(flagged, txn)
		}
	}
	if len(flagged) == 0 {
		return nil
	}

	severity := model.SeverityLow
	evidence := make([]string, len(flagged))
	for i, txn := range flagged {
		evidence[i] = txn.ID
		if txn.Amount >= a.config.HighValueCashAmount*2 {
			severity = model.SeverityMedium
		}
	}

	return &model.Finding{
		ID:       uuid.New().String(),
		Stage:    model.StagePattern,
		Category: model.CategoryHighValueCash,
		Severity: severity,
		Description: fmt.Sprintf(
			"%d cash movements at or above %.0f, unusual for this account type",
			len(flagged), a.config.HighValueCashAmount),
		EvidenceIDs: evidence,
	}
}
