package model

import "fmt"

// Stage identifies which analyzer produced a finding.
type Stage string

const (
	// StagePattern is the transaction pattern analysis stage.
	StagePattern Stage = "PATTERN"
	// StageGeographic is the geographic risk assessment stage.
	StageGeographic Stage = "GEOGRAPHIC"
	// StageEntity is the entity linkage analysis stage.
	StageEntity Stage = "ENTITY"
)

// Severity is the analyzer's assessment of a single finding.
type Severity string

const (
	// SeverityLow indicates an observation worth recording but not alone actionable.
	SeverityLow Severity = "LOW"
	// SeverityMedium indicates a pattern warranting enhanced due diligence.
	SeverityMedium Severity = "MEDIUM"
	// SeverityHigh indicates activity consistent with money laundering typologies.
	SeverityHigh Severity = "HIGH"
)

// Rank returns the numeric order of a severity (higher is more severe).
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Common finding categories. Category is free-form; these are the tags the
// bundled analyzers emit.
const (
	CategoryStructuring       = "structuring"
	CategoryRapidMovement     = "rapid_movement"
	CategoryTurnoverDeviation = "turnover_deviation"
	CategoryHighValueCash     = "high_value_cash"
	CategoryHighRiskCorridor  = "high_risk_corridor"
	CategorySanctionedCountry = "sanctioned_country"
	CategorySanctionsMatch    = "sanctions_match"
	CategoryWatchlistMatch    = "watchlist_match"
	CategoryDirectorWatchlist = "director_watchlist_match"
)

// Finding is the unit of analyzer output: one flagged observation with its
// supporting evidence. Findings are append-only within a case; later stages
// may corroborate but never edit earlier ones.
type Finding struct {
	ID                string   `json:"id"`
	Stage             Stage    `json:"source_stage"`
	Category          string   `json:"category"`
	Severity          Severity `json:"severity"`
	Description       string   `json:"description"`
	EvidenceIDs       []string `json:"evidence_transaction_ids"`
	ConfirmedSanction bool     `json:"confirmed_sanction,omitempty"`
}

// Validate ensures the finding is well-formed.
func (f *Finding) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("finding ID is required")
	}
	switch f.Stage {
	case StagePattern, StageGeographic, StageEntity:
	default:
		return fmt.Errorf("unknown source stage %q", f.Stage)
	}
	if f.Category == "" {
		return fmt.Errorf("finding category is required")
	}
	if f.Severity.Rank() == 0 {
		return fmt.Errorf("unknown severity %q", f.Severity)
	}
	if f.Description == "" {
		return fmt.Errorf("finding description is required")
	}
	return nil
}

// IsSanctionsHit reports whether the finding represents a direct
// sanctions or watchlist hit.
func (f *Finding) IsSanctionsHit() bool {
	if f.ConfirmedSanction {
		return true
	}
	switch f.Category {
	case CategorySanctionsMatch, CategorySanctionedCountry:
		return f.Severity == SeverityHigh
	}
	return false
}
