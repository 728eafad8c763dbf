package ofx

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/moneypennybank/amlflow/internal/common"
	"github.com/moneypennybank/amlflow/internal/model"
	"github.com/moneypennybank/amlflow/internal/service"
)

var (
	_ service.TransactionFetcher = (*StatementSource)(nil)
	_ service.ProfileFetcher     = (*StatementSource)(nil)
)

// StatementSource serves transactions and a minimal profile from a parsed
// statement file. Statement exports carry no AML baseline, so the profile is
// limited to what the file proves: the account number.
type StatementSource struct {
	statements map[string]Statement
}

// NewStatementSource parses the OFX file at path into a source.
func NewStatementSource(ctx context.Context, path string) (*StatementSource, error) {
	f, err := os.Open(path) // #nosec G304 -- operator-supplied statement path
	if err != nil {
		return nil, fmt.Errorf("failed to open statement file: %w", err)
	}
	defer func() { _ = f.Close() }()

	statements, err := NewParser().ParseFile(ctx, f)
	if err != nil {
		return nil, err
	}

	source := &StatementSource{statements: make(map[string]Statement, len(statements))}
	for _, stmt := range statements {
		source.statements[stmt.AccountNumber] = stmt
	}
	return source, nil
}

// Accounts lists the account numbers present in the statement file.
func (s *StatementSource) Accounts() []string {
	out := make([]string, 0, len(s.statements))
	for acct := range s.statements {
		out = append(out, acct)
	}
	return out
}

// FetchTransactions returns the statement's transactions within the period.
func (s *StatementSource) FetchTransactions(ctx context.Context, accountNumber string, start, end time.Time) ([]model.Transaction, error) {
	stmt, ok := s.statements[accountNumber]
	if !ok {
		return nil, fmt.Errorf("%w: %s not present in statement file", common.ErrUnknownAccount, accountNumber)
	}

	var txns []model.Transaction
	for _, txn := range stmt.Transactions {
		if txn.Timestamp.Before(start) || txn.Timestamp.After(end.Add(24*time.Hour)) {
			continue
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

// FetchProfile synthesizes the minimal profile a statement file supports.
func (s *StatementSource) FetchProfile(ctx context.Context, accountNumber string) (*model.AccountContext, error) {
	if _, ok := s.statements[accountNumber]; !ok {
		return nil, fmt.Errorf("%w: %s not present in statement file", common.ErrUnknownAccount, accountNumber)
	}
	return &model.AccountContext{AccountNumber: accountNumber}, nil
}
