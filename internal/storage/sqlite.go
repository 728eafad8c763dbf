// Package storage persists completed case reports in SQLite so reviews are
// auditable after the fact.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/moneypennybank/amlflow/internal/model"
	"github.com/moneypennybank/amlflow/internal/report"
	"github.com/moneypennybank/amlflow/internal/service"
)

// ErrReportNotFound indicates no stored report matches the given case id.
var ErrReportNotFound = errors.New("report not found")

var _ service.ReportStore = (*SQLiteStore)(nil)

// SQLiteStore implements service.ReportStore on a local SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens (and creates if needed) the report database at dbPath.
// Pass ":memory:" for an ephemeral store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("dbPath is required")
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveReport inserts or replaces the report for its case id. The full report
// is stored as JSON alongside the columns used for listing.
func (s *SQLiteStore) SaveReport(ctx context.Context, r *report.CaseReport) error {
	if r == nil || r.CaseID == "" {
		return fmt.Errorf("report with a case id is required")
	}

	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO case_reports
			(case_id, account_number, period_start, period_end, generated_at,
			 overall_risk, finding_count, report_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.CaseID,
		r.AccountNumber,
		r.PeriodStart,
		r.PeriodEnd,
		r.GeneratedAt,
		string(r.OverallRisk),
		len(r.KeyFindings),
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to save report %s: %w", r.CaseID, err)
	}
	return nil
}

// GetReport loads a stored report by case id.
func (s *SQLiteStore) GetReport(ctx context.Context, caseID string) (*report.CaseReport, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		"SELECT report_json FROM case_reports WHERE case_id = ?", caseID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrReportNotFound, caseID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load report %s: %w", caseID, err)
	}

	var r report.CaseReport
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return nil, fmt.Errorf("failed to decode report %s: %w", caseID, err)
	}
	return &r, nil
}

// ListReports returns stored reports newest first, optionally filtered by
// account number. A limit of 0 means no limit.
func (s *SQLiteStore) ListReports(ctx context.Context, accountNumber string, limit int) ([]service.ReportSummary, error) {
	query := `
		SELECT case_id, account_number, generated_at, overall_risk, finding_count
		FROM case_reports`
	args := make([]any, 0, 2)
	if accountNumber != "" {
		query += " WHERE account_number = ?"
		args = append(args, accountNumber)
	}
	query += " ORDER BY generated_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []service.ReportSummary
	for rows.Next() {
		var item service.ReportSummary
		var risk string
		if err := rows.Scan(&item.CaseID, &item.AccountNumber, &item.GeneratedAt, &risk, &item.FindingCount); err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}
		item.OverallRisk = model.RiskLevel(risk)
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate report rows: %w", err)
	}
	return out, nil
}
