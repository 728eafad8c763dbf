// Package policy implements the risk aggregation engine: the pure, ordered
// rule evaluation that turns a case's findings into a verdict.
package policy

import (
	"fmt"
	"sort"
	"time"

	"github.com/moneypennybank/amlflow/internal/model"
)

// Recommended actions, one per verdict tier. The wording is part of the
// report contract consumed by downstream compliance tooling.
const (
	ActionCritical = "Immediate SAR filing and consider account restriction, subject to legal review."
	ActionHigh     = "Consider SAR filing; escalate to senior AML compliance officer."
	ActionMedium   = "Enhanced Due Diligence; specify areas for review."
	ActionLow      = "No immediate action; continue standard monitoring."
)

// Engine evaluates the accumulated findings against the bank's AML policy.
// Aggregate is a pure function: the same findings and account context always
// produce the same verdict, which is what makes case decisions auditable.
// The injected clock only influences the tenure wording of mitigating notes.
type Engine struct {
	now func() time.Time
}

// NewEngine creates a risk aggregation engine.
func NewEngine() *Engine {
	return &Engine{now: time.Now}
}

// NewEngineAt creates an engine with a fixed clock, for reproducible runs.
func NewEngineAt(now func() time.Time) *Engine {
	return &Engine{now: now}
}

// Aggregate maps findings and account context to a verdict. Rules are
// evaluated in fixed order and the first match wins: a single confirmed
// sanctions hit dominates any number of lower-severity findings.
func (e *Engine) Aggregate(findings []model.Finding, account model.AccountContext) model.CaseVerdict {
	var (
		sanctionHits []model.Finding
		highs        []model.Finding
		mediums      []model.Finding
	)
	for _, f := range findings {
		switch {
		case f.IsSanctionsHit():
			sanctionHits = append(sanctionHits, f)
		case f.Severity == model.SeverityHigh:
			highs = append(highs, f)
		case f.Severity == model.SeverityMedium:
			mediums = append(mediums, f)
		}
	}

	verdict := model.CaseVerdict{
		MitigatingNotes: e.mitigatingNotes(findings, account),
	}

	switch {
	case len(sanctionHits) > 0:
		verdict.Risk = model.RiskCritical
		verdict.RecommendedAction = ActionCritical
		verdict.KeyFindings = orderFindings(append(append(sanctionHits, highs...), mediums...))
	case len(highs) > 0:
		verdict.Risk = model.RiskHigh
		verdict.RecommendedAction = ActionHigh
		verdict.KeyFindings = orderFindings(append(highs, mediums...))
	case len(mediums) >= 2:
		verdict.Risk = model.RiskHigh
		verdict.RecommendedAction = ActionHigh
		verdict.KeyFindings = orderFindings(mediums)
	case len(mediums) == 1:
		verdict.Risk = model.RiskMedium
		verdict.RecommendedAction = ActionMedium
		verdict.KeyFindings = orderFindings(mediums)
	default:
		verdict.Risk = model.RiskLow
		verdict.RecommendedAction = ActionLow
	}

	return verdict
}

// orderFindings sorts findings so the verdict's evidence order does not
// depend on stage completion order: severity first, then stage, then id.
func orderFindings(findings []model.Finding) []model.Finding {
	ordered := make([]model.Finding, len(findings))
	copy(ordered, findings)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Severity.Rank() != ordered[j].Severity.Rank() {
			return ordered[i].Severity.Rank() > ordered[j].Severity.Rank()
		}
		if ordered[i].Stage != ordered[j].Stage {
			return ordered[i].Stage < ordered[j].Stage
		}
		return ordered[i].ID < ordered[j].ID
	})
	return ordered
}

// mitigatingNotes surfaces context that argues for a benign explanation.
// Notes never downgrade the computed risk level; they accompany the verdict
// for the reviewing analyst.
func (e *Engine) mitigatingNotes(findings []model.Finding, account model.AccountContext) []string {
	var notes []string

	if !account.CustomerSince.IsZero() {
		if years := account.TenureYears(e.now()); years >= 5 {
			notes = append(notes, fmt.Sprintf(
				"customer of %d years with no relationship concerns on file", years))
		}
	}
	if account.StatedPurpose != "" {
		notes = append(notes, "stated account purpose on file: "+account.StatedPurpose)
	}
	if account.PriorAlerts == 0 && len(findings) > 0 {
		notes = append(notes, "no prior AML alerts on this account")
	}

	return notes
}
