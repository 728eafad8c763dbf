package policy

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moneypennybank/amlflow/internal/model"
)

func fixedClock() time.Time {
	return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
}

func testEngine() *Engine {
	return NewEngineAt(fixedClock)
}

func finding(id string, stage model.Stage, category string, severity model.Severity, sanction bool) model.Finding {
	return model.Finding{
		ID:                id,
		Stage:             stage,
		Category:          category,
		Severity:          severity,
		Description:       "test finding " + id,
		ConfirmedSanction: sanction,
	}
}

func TestAggregateRuleOrder(t *testing.T) {
	account := model.AccountContext{AccountNumber: "123456789"}

	tests := []struct {
		name       string
		findings   []model.Finding
		wantRisk   model.RiskLevel
		wantAction string
	}{
		{
			name: "confirmed sanction is critical",
			findings: []model.Finding{
				finding("f1", model.StageGeographic, model.CategorySanctionedCountry, model.SeverityHigh, true),
			},
			wantRisk:   model.RiskCritical,
			wantAction: ActionCritical,
		},
		{
			name: "high severity sanctions category is critical without explicit flag",
			findings: []model.Finding{
				finding("f1", model.StageEntity, model.CategorySanctionsMatch, model.SeverityHigh, false),
			},
			wantRisk:   model.RiskCritical,
			wantAction: ActionCritical,
		},
		{
			name: "plain high finding is high",
			findings: []model.Finding{
				finding("f1", model.StagePattern, model.CategoryRapidMovement, model.SeverityHigh, false),
			},
			wantRisk:   model.RiskHigh,
			wantAction: ActionHigh,
		},
		{
			name: "two mediums escalate to high",
			findings: []model.Finding{
				finding("f1", model.StagePattern, model.CategoryStructuring, model.SeverityMedium, false),
				finding("f2", model.StageGeographic, model.CategoryHighRiskCorridor, model.SeverityMedium, false),
			},
			wantRisk:   model.RiskHigh,
			wantAction: ActionHigh,
		},
		{
			name: "one medium with lows is medium",
			findings: []model.Finding{
				finding("f1", model.StagePattern, model.CategoryStructuring, model.SeverityMedium, false),
				finding("f2", model.StagePattern, model.CategoryHighValueCash, model.SeverityLow, false),
				finding("f3", model.StagePattern, model.CategoryHighValueCash, model.SeverityLow, false),
			},
			wantRisk:   model.RiskMedium,
			wantAction: ActionMedium,
		},
		{
			name: "only lows is low",
			findings: []model.Finding{
				finding("f1", model.StagePattern, model.CategoryHighValueCash, model.SeverityLow, false),
			},
			wantRisk:   model.RiskLow,
			wantAction: ActionLow,
		},
		{
			name:       "no findings is low",
			findings:   nil,
			wantRisk:   model.RiskLow,
			wantAction: ActionLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict := testEngine().Aggregate(tt.findings, account)
			assert.Equal(t, tt.wantRisk, verdict.Risk)
			assert.Equal(t, tt.wantAction, verdict.RecommendedAction)
		})
	}
}

func TestAggregateSanctionDominatesAnyNumberOfLows(t *testing.T) {
	findings := []model.Finding{
		finding("s1", model.StageGeographic, model.CategorySanctionedCountry, model.SeverityHigh, true),
	}
	for i := 0; i < 10; i++ {
		findings = append(findings,
			finding(fmt.Sprintf("l%d", i), model.StagePattern, model.CategoryHighValueCash, model.SeverityLow, false))
	}

	verdict := testEngine().Aggregate(findings, model.AccountContext{AccountNumber: "123456789"})
	assert.Equal(t, model.RiskCritical, verdict.Risk)
	assert.Equal(t, ActionCritical, verdict.RecommendedAction)
	require.NotEmpty(t, verdict.KeyFindings)
	assert.Equal(t, "s1", verdict.KeyFindings[0].ID)
}

func TestAggregateIsDeterministic(t *testing.T) {
	account := model.AccountContext{
		AccountNumber: "123456789",
		CustomerSince: time.Date(2012, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	findings := []model.Finding{
		finding("a", model.StageGeographic, model.CategoryHighRiskCorridor, model.SeverityMedium, false),
		finding("b", model.StagePattern, model.CategoryStructuring, model.SeverityMedium, false),
		finding("c", model.StagePattern, model.CategoryRapidMovement, model.SeverityHigh, false),
	}

	first := testEngine().Aggregate(findings, account)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, testEngine().Aggregate(findings, account))
	}

	// Completion order of the fan-out stages must not matter.
	reversed := []model.Finding{findings[2], findings[1], findings[0]}
	assert.Equal(t, first, testEngine().Aggregate(reversed, account))
}

func TestAggregateMonotonicity(t *testing.T) {
	account := model.AccountContext{AccountNumber: "123456789"}

	bases := [][]model.Finding{
		nil,
		{finding("l1", model.StagePattern, model.CategoryHighValueCash, model.SeverityLow, false)},
		{finding("m1", model.StagePattern, model.CategoryStructuring, model.SeverityMedium, false)},
		{
			finding("m1", model.StagePattern, model.CategoryStructuring, model.SeverityMedium, false),
			finding("m2", model.StageGeographic, model.CategoryHighRiskCorridor, model.SeverityMedium, false),
		},
	}

	high := finding("h1", model.StagePattern, model.CategoryRapidMovement, model.SeverityHigh, false)
	for i, base := range bases {
		before := testEngine().Aggregate(base, account)
		after := testEngine().Aggregate(append(append([]model.Finding{}, base...), high), account)
		assert.GreaterOrEqual(t, after.Risk.Rank(), before.Risk.Rank(), "base set %d", i)
	}
}

func TestAggregateKeyFindingOrdering(t *testing.T) {
	account := model.AccountContext{AccountNumber: "123456789"}
	findings := []model.Finding{
		finding("z", model.StageGeographic, model.CategoryHighRiskCorridor, model.SeverityMedium, false),
		finding("a", model.StagePattern, model.CategoryRapidMovement, model.SeverityHigh, false),
		finding("b", model.StagePattern, model.CategoryStructuring, model.SeverityMedium, false),
	}

	verdict := testEngine().Aggregate(findings, account)
	require.Len(t, verdict.KeyFindings, 3)
	assert.Equal(t, "a", verdict.KeyFindings[0].ID) // HIGH first
	assert.Equal(t, "z", verdict.KeyFindings[1].ID) // GEOGRAPHIC before PATTERN
	assert.Equal(t, "b", verdict.KeyFindings[2].ID)
}

func TestMitigatingNotesNeverDowngrade(t *testing.T) {
	account := model.AccountContext{
		AccountNumber: "123456789",
		CustomerSince: time.Date(2005, 1, 1, 0, 0, 0, 0, time.UTC),
		StatedPurpose: "salary and household spending",
		PriorAlerts:   0,
	}
	findings := []model.Finding{
		finding("s1", model.StageEntity, model.CategorySanctionsMatch, model.SeverityHigh, true),
	}

	verdict := testEngine().Aggregate(findings, account)
	assert.Equal(t, model.RiskCritical, verdict.Risk)
	assert.NotEmpty(t, verdict.MitigatingNotes)
}

func TestScenarioStructuringRapidMovementSanction(t *testing.T) {
	// The canonical review: structuring (MEDIUM) + rapid movement (HIGH) from
	// pattern analysis, plus a confirmed-sanction geographic finding.
	findings := []model.Finding{
		finding("p1", model.StagePattern, model.CategoryStructuring, model.SeverityMedium, false),
		finding("p2", model.StagePattern, model.CategoryRapidMovement, model.SeverityHigh, false),
		finding("g1", model.StageGeographic, model.CategorySanctionedCountry, model.SeverityHigh, true),
	}

	verdict := testEngine().Aggregate(findings, model.AccountContext{AccountNumber: "123456789"})
	assert.Equal(t, model.RiskCritical, verdict.Risk)
	assert.Equal(t, ActionCritical, verdict.RecommendedAction)
	assert.Equal(t, "g1", verdict.KeyFindings[0].ID)
}
