package model

// RiskLevel is the overall risk classification for a case.
type RiskLevel string

const (
	// RiskLow requires no immediate action.
	RiskLow RiskLevel = "LOW"
	// RiskMedium calls for enhanced due diligence.
	RiskMedium RiskLevel = "MEDIUM"
	// RiskHigh calls for SAR consideration and escalation.
	RiskHigh RiskLevel = "HIGH"
	// RiskCritical calls for immediate SAR filing and possible account restriction.
	RiskCritical RiskLevel = "CRITICAL"
)

// Rank returns the numeric order of a risk level (higher is riskier).
func (r RiskLevel) Rank() int {
	switch r {
	case RiskCritical:
		return 4
	case RiskHigh:
		return 3
	case RiskMedium:
		return 2
	case RiskLow:
		return 1
	default:
		return 0
	}
}

// CaseVerdict is the terminal risk decision for a case. It is produced
// exactly once, at aggregation, and is immutable thereafter.
type CaseVerdict struct {
	Risk              RiskLevel `json:"overall_risk"`
	RecommendedAction string    `json:"recommended_action"`
	KeyFindings       []Finding `json:"key_findings"`
	MitigatingNotes   []string  `json:"mitigating_notes"`
}
