package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/moneypennybank/amlflow/internal/analyzer"
	"github.com/moneypennybank/amlflow/internal/common"
	"github.com/moneypennybank/amlflow/internal/model"
	"github.com/moneypennybank/amlflow/internal/service"
)

// DefaultStageTimeout bounds a single analyzer attempt.
const DefaultStageTimeout = 30 * time.Second

// Coordinator runs one analyzer stage to a terminal status. Each attempt is
// time-boxed, transient failures (timeout, upstream outage) are retried with
// exponential backoff, and invalid input or malformed output fails
// immediately. A failed run never publishes partial findings.
type Coordinator struct {
	timeout time.Duration
	retry   service.RetryOptions
}

// NewCoordinator returns a coordinator with the given per-attempt timeout.
// A non-positive timeout selects DefaultStageTimeout.
func NewCoordinator(timeout time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultStageTimeout
	}
	return &Coordinator{
		timeout: timeout,
		retry: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
	}
}

// WithRetryOptions overrides the retry schedule, primarily for tests.
func (c *Coordinator) WithRetryOptions(opts service.RetryOptions) *Coordinator {
	c.retry = opts
	return c
}

// Run executes the analyzer until it succeeds or its error budget is spent.
// The returned result always carries a terminal status.
func (c *Coordinator) Run(ctx context.Context, a analyzer.Analyzer, in analyzer.Input) StageResult {
	stage := a.Stage()
	var out analyzer.Result

	attempt := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		res, err := a.Analyze(attemptCtx, in)
		if err != nil {
			return classifyStageError(ctx, err)
		}
		if err := validateStageOutput(stage, res.Findings, in.Transactions); err != nil {
			return err
		}
		out = res
		return nil
	}

	slog.Debug("running analysis stage", "case_id", in.CaseID, "stage", stage)
	if err := common.WithRetry(ctx, attempt, c.retry); err != nil {
		slog.Warn("analysis stage failed",
			"case_id", in.CaseID,
			"stage", stage,
			"error", err)
		return StageResult{
			Stage:  stage,
			Status: StageFailed,
			Err:    fmt.Errorf("stage %s: %w", stage, err),
		}
	}

	slog.Debug("analysis stage succeeded",
		"case_id", in.CaseID,
		"stage", stage,
		"findings", len(out.Findings))
	return StageResult{
		Stage:    stage,
		Status:   StageSucceeded,
		Findings: out.Findings,
		Warnings: out.Warnings,
	}
}

// classifyStageError maps an analyzer failure onto the retry taxonomy. The
// parent context is consulted so a case-level cancellation is never mistaken
// for a retryable per-attempt timeout.
func classifyStageError(parent context.Context, err error) error {
	if parent.Err() != nil {
		return common.NewRetryableError(parent.Err(), false)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return common.NewRetryableError(fmt.Errorf("%w: %s", common.ErrStageTimeout, err), true)
	}
	if common.IsTransient(err) {
		return common.NewRetryableError(err, true)
	}
	return common.NewRetryableError(err, false)
}

// validateStageOutput enforces the output contract: every finding must be
// structurally valid, labeled with the stage that produced it, and must only
// cite transaction ids that exist in the case under review. Violations are
// malformed output and are not retried.
func validateStageOutput(stage model.Stage, findings []model.Finding, txns []model.Transaction) error {
	known := make(map[string]struct{}, len(txns))
	for _, txn := range txns {
		known[txn.ID] = struct{}{}
	}
	for _, f := range findings {
		if err := f.Validate(); err != nil {
			return common.NewRetryableError(fmt.Errorf("%w: %s", common.ErrMalformedOutput, err), false)
		}
		if f.Stage != stage {
			return common.NewRetryableError(
				fmt.Errorf("%w: finding %s labeled %s, produced by %s",
					common.ErrMalformedOutput, f.ID, f.Stage, stage), false)
		}
		for _, id := range f.EvidenceIDs {
			if _, ok := known[id]; !ok {
				return common.NewRetryableError(
					fmt.Errorf("%w: finding %s cites unknown transaction %s",
						common.ErrMalformedOutput, f.ID, id), false)
			}
		}
	}
	return nil
}
