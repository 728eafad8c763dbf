package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moneypennybank/amlflow/internal/model"
	"github.com/moneypennybank/amlflow/internal/report"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func storedReport(caseID, account string, risk model.RiskLevel, generatedAt time.Time) *report.CaseReport {
	return &report.CaseReport{
		CaseID:        caseID,
		AccountNumber: account,
		PeriodStart:   time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:     time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC),
		GeneratedAt:   generatedAt,
		OverallRisk:   risk,
		KeyFindings: []model.Finding{{
			ID:          "f1",
			Stage:       model.StagePattern,
			Category:    model.CategoryStructuring,
			Severity:    model.SeverityMedium,
			Description: "deposits kept just below the reporting threshold",
			EvidenceIDs: []string{"txn_101"},
		}},
		StageStatus:      map[string]string{"PATTERN": "SUCCEEDED"},
		TransactionCount: 12,
	}
}

func TestSaveAndGetReport(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	in := storedReport("case-1", "123456789", model.RiskMedium, time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, store.SaveReport(ctx, in))

	out, err := store.GetReport(ctx, "case-1")
	require.NoError(t, err)
	assert.Equal(t, in.CaseID, out.CaseID)
	assert.Equal(t, in.OverallRisk, out.OverallRisk)
	require.Len(t, out.KeyFindings, 1)
	assert.Equal(t, []string{"txn_101"}, out.KeyFindings[0].EvidenceIDs)
	assert.Equal(t, "SUCCEEDED", out.StageStatus["PATTERN"])
	assert.Equal(t, 12, out.TransactionCount)
}

func TestGetReportNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetReport(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrReportNotFound)
}

func TestSaveReportReplacesExisting(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := storedReport("case-1", "123456789", model.RiskMedium, time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, store.SaveReport(ctx, first))

	second := storedReport("case-1", "123456789", model.RiskHigh, time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC))
	require.NoError(t, store.SaveReport(ctx, second))

	out, err := store.GetReport(ctx, "case-1")
	require.NoError(t, err)
	assert.Equal(t, model.RiskHigh, out.OverallRisk)

	all, err := store.ListReports(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSaveReportRequiresCaseID(t *testing.T) {
	store := newTestStore(t)

	assert.Error(t, store.SaveReport(context.Background(), nil))
	assert.Error(t, store.SaveReport(context.Background(), &report.CaseReport{}))
}

func TestListReportsOrderingAndFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		account := "111111111"
		if i%2 == 1 {
			account = "222222222"
		}
		r := storedReport(fmt.Sprintf("case-%d", i), account, model.RiskLow, base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, store.SaveReport(ctx, r))
	}

	all, err := store.ListReports(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "case-4", all[0].CaseID)
	assert.Equal(t, "case-0", all[4].CaseID)
	assert.Equal(t, 1, all[0].FindingCount)

	filtered, err := store.ListReports(ctx, "222222222", 0)
	require.NoError(t, err)
	require.Len(t, filtered, 2)
	for _, item := range filtered {
		assert.Equal(t, "222222222", item.AccountNumber)
	}

	limited, err := store.ListReports(ctx, "", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestMigrateIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Migrate(context.Background()))
}
