// Package analyzer defines the capability contract each analysis stage
// implements, plus rule-based reference implementations of the three stages.
// The detection method behind a stage is pluggable; the orchestrator only
// depends on the Analyzer interface.
package analyzer

import (
	"context"
	"fmt"

	"github.com/moneypennybank/amlflow/internal/common"
	"github.com/moneypennybank/amlflow/internal/model"
)

// Input carries everything a stage may read. Transactions and the account
// context are shared immutable state; Counterparties is populated only for
// the entity linkage stage.
type Input struct {
	CaseID         string
	Account        model.AccountContext
	Transactions   []model.Transaction
	PriorFindings  []model.Finding
	Counterparties []model.CounterpartyRef
}

// Result is a stage's complete output. Findings are appended to the case by
// the orchestrator; warnings surface in the final report.
type Result struct {
	Findings []model.Finding
	Warnings []string
}

// Analyzer is the contract every analysis stage satisfies. Implementations
// must not mutate the input; all output flows back through the Result.
type Analyzer interface {
	// Stage identifies which pipeline stage this capability serves.
	Stage() model.Stage
	// Analyze reviews the case input and returns findings and warnings.
	Analyze(ctx context.Context, in Input) (Result, error)
}

// validateInput performs the checks shared by all bundled analyzers.
func validateInput(in Input) error {
	if in.Account.AccountNumber == "" {
		return fmt.Errorf("%w: account number is required", common.ErrInvalidInput)
	}
	return nil
}
