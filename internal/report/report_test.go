package report

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moneypennybank/amlflow/internal/model"
	"github.com/moneypennybank/amlflow/internal/policy"
)

func sampleInput() Input {
	return Input{
		CaseID:        "case-42",
		AccountNumber: "123456789",
		PeriodStart:   time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:     time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC),
		Verdict: model.CaseVerdict{
			Risk:              model.RiskCritical,
			RecommendedAction: policy.ActionCritical,
			KeyFindings: []model.Finding{
				{
					ID:                "e1",
					Stage:             model.StageEntity,
					Category:          model.CategorySanctionsMatch,
					Severity:          model.SeverityHigh,
					Description:       "counterparty matched an OFAC SDN entry",
					EvidenceIDs:       []string{"txn_122"},
					ConfirmedSanction: true,
				},
			},
			MitigatingNotes: []string{"no prior AML alerts on this account"},
		},
		AllFindings: []model.Finding{
			{
				ID:                "e1",
				Stage:             model.StageEntity,
				Category:          model.CategorySanctionsMatch,
				Severity:          model.SeverityHigh,
				Description:       "counterparty matched an OFAC SDN entry",
				EvidenceIDs:       []string{"txn_122"},
				ConfirmedSanction: true,
			},
			{
				ID:          "p1",
				Stage:       model.StagePattern,
				Category:    model.CategoryStructuring,
				Severity:    model.SeverityLow,
				Description: "single deposit slightly under the reporting threshold",
				EvidenceIDs: []string{"txn_101"},
			},
		},
		Warnings:         []string{"partial analysis: geographic stage failed"},
		StageStatus:      map[string]string{"PATTERN": "SUCCEEDED", "GEOGRAPHIC": "FAILED", "ENTITY": "SUCCEEDED"},
		TransactionCount: 17,
	}
}

func TestAssemblerStampsFixedClock(t *testing.T) {
	at := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	a := NewAssemblerAt(func() time.Time { return at })

	rep := a.Assemble(sampleInput())

	assert.Equal(t, at, rep.GeneratedAt)
	assert.Equal(t, "case-42", rep.CaseID)
	assert.Equal(t, model.RiskCritical, rep.OverallRisk)
	assert.Equal(t, policy.ActionCritical, rep.RecommendedAction)
	assert.Equal(t, 17, rep.TransactionCount)
	require.Len(t, rep.KeyFindings, 1)
	assert.Equal(t, "FAILED", rep.StageStatus["GEOGRAPHIC"])
	require.Len(t, rep.FindingsByStage, 2)
	assert.Equal(t, "e1", rep.FindingsByStage["ENTITY"][0].ID)
	assert.Equal(t, "p1", rep.FindingsByStage["PATTERN"][0].ID)
}

func TestReportJSONContract(t *testing.T) {
	rep := NewAssemblerAt(func() time.Time {
		return time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	}).Assemble(sampleInput())

	raw, err := rep.JSON()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, "case-42", decoded["case_id"])
	assert.Equal(t, "123456789", decoded["account_number"])
	assert.Equal(t, "CRITICAL", decoded["overall_risk"])
	assert.Contains(t, decoded, "recommended_action")
	assert.Contains(t, decoded, "key_findings")
	assert.Contains(t, decoded, "stage_status")

	findings, ok := decoded["key_findings"].([]any)
	require.True(t, ok)
	require.Len(t, findings, 1)
	finding := findings[0].(map[string]any)
	assert.Equal(t, "ENTITY", finding["source_stage"])
	assert.Equal(t, true, finding["confirmed_sanction"])
	assert.Contains(t, finding, "evidence_transaction_ids")

	grouped, ok := decoded["findings_by_stage"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, grouped, "ENTITY")
	assert.Contains(t, grouped, "PATTERN")
}

func TestRenderIncludesAllSections(t *testing.T) {
	rep := NewAssemblerAt(func() time.Time {
		return time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	}).Assemble(sampleInput())

	out := Render(rep)

	assert.Contains(t, out, "AML Case Review")
	assert.Contains(t, out, "123456789")
	assert.Contains(t, out, "CRITICAL")
	assert.Contains(t, out, "counterparty matched an OFAC SDN entry")
	assert.Contains(t, out, "txn_122")
	assert.Contains(t, out, "no prior AML alerts on this account")
	assert.Contains(t, out, "partial analysis")
	assert.Contains(t, out, "GEOGRAPHIC")
	assert.Contains(t, out, "2025-05-01 to 2025-05-31")
}

func TestRenderOmitsEmptySections(t *testing.T) {
	in := sampleInput()
	in.Verdict = model.CaseVerdict{
		Risk:              model.RiskLow,
		RecommendedAction: policy.ActionLow,
	}
	in.Warnings = nil

	out := Render(NewAssembler().Assemble(in))

	assert.NotContains(t, out, "Key Findings")
	assert.NotContains(t, out, "Warnings")
	assert.Contains(t, out, "LOW")
}
