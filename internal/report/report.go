// Package report assembles and renders the final output of a case review.
package report

import (
	"encoding/json"
	"time"

	"github.com/moneypennybank/amlflow/internal/model"
)

// CaseReport is the durable artifact of one completed review. KeyFindings is
// the verdict's ordered evidence; FindingsByStage carries everything each
// stage produced, low severities included.
type CaseReport struct {
	CaseID            string                     `json:"case_id"`
	AccountNumber     string                     `json:"account_number"`
	PeriodStart       time.Time                  `json:"period_start"`
	PeriodEnd         time.Time                  `json:"period_end"`
	GeneratedAt       time.Time                  `json:"generated_at"`
	OverallRisk       model.RiskLevel            `json:"overall_risk"`
	RecommendedAction string                     `json:"recommended_action"`
	KeyFindings       []model.Finding            `json:"key_findings"`
	FindingsByStage   map[string][]model.Finding `json:"findings_by_stage,omitempty"`
	MitigatingNotes   []string                   `json:"mitigating_notes,omitempty"`
	Warnings          []string                   `json:"warnings,omitempty"`
	StageStatus       map[string]string          `json:"stage_status"`
	TransactionCount  int                        `json:"transaction_count"`
}

// JSON renders the report as indented JSON.
func (r *CaseReport) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Input carries everything the assembler needs from a finished case.
type Input struct {
	CaseID           string
	AccountNumber    string
	PeriodStart      time.Time
	PeriodEnd        time.Time
	Verdict          model.CaseVerdict
	AllFindings      []model.Finding
	Warnings         []string
	StageStatus      map[string]string
	TransactionCount int
}

// Assembler builds case reports with a stable clock, so rendering is
// reproducible in tests.
type Assembler struct {
	now func() time.Time
}

// NewAssembler returns an assembler stamped with the wall clock.
func NewAssembler() *Assembler {
	return &Assembler{now: time.Now}
}

// NewAssemblerAt returns an assembler with a fixed clock.
func NewAssemblerAt(now func() time.Time) *Assembler {
	return &Assembler{now: now}
}

// Assemble builds the report for a finished case.
func (a *Assembler) Assemble(in Input) *CaseReport {
	return &CaseReport{
		CaseID:            in.CaseID,
		AccountNumber:     in.AccountNumber,
		PeriodStart:       in.PeriodStart,
		PeriodEnd:         in.PeriodEnd,
		GeneratedAt:       a.now().UTC(),
		OverallRisk:       in.Verdict.Risk,
		RecommendedAction: in.Verdict.RecommendedAction,
		KeyFindings:       in.Verdict.KeyFindings,
		FindingsByStage:   groupByStage(in.AllFindings),
		MitigatingNotes:   in.Verdict.MitigatingNotes,
		Warnings:          in.Warnings,
		StageStatus:       in.StageStatus,
		TransactionCount:  in.TransactionCount,
	}
}

func groupByStage(findings []model.Finding) map[string][]model.Finding {
	if len(findings) == 0 {
		return nil
	}
	grouped := make(map[string][]model.Finding)
	for _, f := range findings {
		stage := string(f.Stage)
		grouped[stage] = append(grouped[stage], f)
	}
	return grouped
}
