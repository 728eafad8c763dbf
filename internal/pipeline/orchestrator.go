package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/moneypennybank/amlflow/internal/analyzer"
	"github.com/moneypennybank/amlflow/internal/common"
	"github.com/moneypennybank/amlflow/internal/model"
	"github.com/moneypennybank/amlflow/internal/policy"
	"github.com/moneypennybank/amlflow/internal/report"
	"github.com/moneypennybank/amlflow/internal/service"
)

// Deps are the collaborators a review needs. All of them are interfaces or
// small engines, so tests substitute stubs freely.
type Deps struct {
	Transactions service.TransactionFetcher
	Profiles     service.ProfileFetcher
	Pattern      analyzer.Analyzer
	Geographic   analyzer.Analyzer
	Entity       analyzer.Analyzer
}

// Config tunes the orchestrator. Zero values select defaults.
type Config struct {
	StageTimeout time.Duration
	Retry        service.RetryOptions
}

// Orchestrator drives a case through the review state machine. The pattern
// and geographic stages run concurrently; entity linkage is entered only when
// the earlier stages surface a counterparty worth resolving. A single failed
// fan-out stage degrades the review with a warning; both failing aborts it.
type Orchestrator struct {
	deps        Deps
	coordinator *Coordinator
	policy      *policy.Engine
	assembler   *report.Assembler

	mu     sync.Mutex
	active map[string]struct{}
}

// New wires an orchestrator from its collaborators.
func New(deps Deps, cfg Config) *Orchestrator {
	coord := NewCoordinator(cfg.StageTimeout)
	if cfg.Retry != (service.RetryOptions{}) {
		coord = coord.WithRetryOptions(cfg.Retry)
	}
	return &Orchestrator{
		deps:        deps,
		coordinator: coord,
		policy:      policy.NewEngine(),
		assembler:   report.NewAssembler(),
		active:      make(map[string]struct{}),
	}
}

// Review runs one case end to end and returns its report. The same case
// (account and period) is never reviewed concurrently; a second caller gets
// common.ErrCaseActive. Fatal intake errors and a full fan-out failure
// return an error with no report; everything else degrades into warnings.
func (o *Orchestrator) Review(ctx context.Context, req CaseRequest) (*report.CaseReport, error) {
	if err := validateRequest(req); err != nil {
		return nil, common.NewFatalCaseError(err)
	}
	if err := o.acquire(req.Key()); err != nil {
		return nil, err
	}
	defer o.release(req.Key())

	state := newCaseState(uuid.New().String())
	logger := slog.With("case_id", state.CaseID, "account", req.AccountNumber)
	logger.Info("starting case review",
		"period_start", req.Start.Format("2006-01-02"),
		"period_end", req.End.Format("2006-01-02"))

	if err := o.intake(ctx, req, state); err != nil {
		state.Phase = PhaseFailed
		logger.Error("case review failed during intake", "error", err)
		return nil, err
	}
	notifyProgress(req, state, 20)

	if err := o.analysisFanout(ctx, req, state, logger); err != nil {
		state.Phase = PhaseFailed
		logger.Error("case review failed during analysis", "error", err)
		return nil, err
	}
	notifyProgress(req, state, 60)

	if err := checkCancel(ctx, state); err != nil {
		return nil, err
	}

	o.entityLinkage(ctx, req, state, logger)
	notifyProgress(req, state, 80)

	if err := checkCancel(ctx, state); err != nil {
		return nil, err
	}

	state.Phase = PhaseAggregation
	verdict := o.policy.Aggregate(state.Findings, state.Account)
	state.Phase = PhaseComplete
	notifyProgress(req, state, 100)

	logger.Info("case review complete",
		"risk", verdict.Risk,
		"findings", len(state.Findings),
		"warnings", len(state.Warnings))

	return o.assembler.Assemble(reportInput(req, state, verdict)), nil
}

func validateRequest(req CaseRequest) error {
	if req.AccountNumber == "" {
		return fmt.Errorf("%w: account number is required", common.ErrInvalidInput)
	}
	if req.Start.IsZero() || req.End.IsZero() {
		return fmt.Errorf("%w: start and end dates are required", common.ErrInvalidDateRange)
	}
	if req.End.Before(req.Start) {
		return fmt.Errorf("%w: end %s precedes start %s",
			common.ErrInvalidDateRange,
			req.End.Format("2006-01-02"),
			req.Start.Format("2006-01-02"))
	}
	return nil
}

func (o *Orchestrator) acquire(key string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.active[key]; busy {
		return common.ErrCaseActive
	}
	o.active[key] = struct{}{}
	return nil
}

func (o *Orchestrator) release(key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.active, key)
}

// intake loads the account profile and the transactions in the review
// period, in parallel. Any failure here is fatal to the case.
func (o *Orchestrator) intake(ctx context.Context, req CaseRequest, state *CaseState) error {
	state.Phase = PhaseIntake

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		profile, err := o.deps.Profiles.FetchProfile(gctx, req.AccountNumber)
		if err != nil {
			return fmt.Errorf("fetching account profile: %w", err)
		}
		state.Account = *profile
		return nil
	})
	g.Go(func() error {
		txns, err := o.deps.Transactions.FetchTransactions(gctx, req.AccountNumber, req.Start, req.End)
		if err != nil {
			return fmt.Errorf("fetching transactions: %w", err)
		}
		state.Transactions = txns
		return nil
	})
	if err := g.Wait(); err != nil {
		return common.NewFatalCaseError(err)
	}

	return checkCancel(ctx, state)
}

// analysisFanout runs the pattern and geographic stages concurrently and
// joins their results. Stage goroutines only write to the results channel;
// the case state is mutated here, on the orchestrator goroutine.
func (o *Orchestrator) analysisFanout(ctx context.Context, req CaseRequest, state *CaseState, logger *slog.Logger) error {
	state.Phase = PhaseAnalysisFanout

	in := analyzer.Input{
		CaseID:       state.CaseID,
		Account:      state.Account,
		Transactions: state.Transactions,
	}

	stages := []analyzer.Analyzer{o.deps.Pattern, o.deps.Geographic}
	results := make(chan StageResult, len(stages))
	for _, a := range stages {
		state.StageStatus[a.Stage()] = StageRunning
		go func(a analyzer.Analyzer) {
			results <- o.coordinator.Run(ctx, a, in)
		}(a)
	}

	state.Phase = PhaseAnalysisJoin
	var failures []error
	for range stages {
		res := <-results
		state.StageStatus[res.Stage] = res.Status
		state.Warnings = append(state.Warnings, res.Warnings...)
		if res.Status == StageFailed {
			failures = append(failures, res.Err)
			continue
		}
		state.Findings = append(state.Findings, res.Findings...)
	}

	switch len(failures) {
	case 0:
		return nil
	case 1:
		logger.Warn("continuing with partial analysis", "error", failures[0])
		state.Warnings = append(state.Warnings,
			fmt.Sprintf("partial analysis: %v", failures[0]))
		return nil
	default:
		return fmt.Errorf("all analysis stages failed: %w", errors.Join(failures...))
	}
}

// entityLinkage runs the entity stage when a medium-or-worse finding points
// at a resolvable counterparty, or when the caller forces it. The stage is
// advisory: its failure becomes a warning, never a case failure.
func (o *Orchestrator) entityLinkage(ctx context.Context, req CaseRequest, state *CaseState, logger *slog.Logger) {
	counterparties := analyzer.ExtractCounterparties(state.Findings, state.Transactions, model.SeverityMedium)
	if len(counterparties) == 0 && !req.ForceEntityLinkage {
		state.StageStatus[model.StageEntity] = StageSkipped
		logger.Debug("entity linkage skipped", "reason", "no qualifying counterparties")
		return
	}
	if len(counterparties) == 0 {
		// Forced entry with nothing from the findings: screen every
		// counterparty seen in the period instead.
		counterparties = analyzer.ExtractCounterparties(
			allTransactionsFinding(state.Transactions), state.Transactions, model.SeverityLow)
	}
	if len(counterparties) == 0 {
		state.StageStatus[model.StageEntity] = StageSkipped
		state.Warnings = append(state.Warnings,
			"entity linkage forced but no counterparties could be identified")
		return
	}

	state.Phase = PhaseEntityLinkage
	state.StageStatus[model.StageEntity] = StageRunning

	in := analyzer.Input{
		CaseID:         state.CaseID,
		Account:        state.Account,
		Transactions:   state.Transactions,
		PriorFindings:  state.Findings,
		Counterparties: counterparties,
	}
	res := o.coordinator.Run(ctx, o.deps.Entity, in)
	state.StageStatus[model.StageEntity] = res.Status
	state.Warnings = append(state.Warnings, res.Warnings...)
	if res.Status == StageFailed {
		logger.Warn("entity linkage failed, continuing without it", "error", res.Err)
		state.Warnings = append(state.Warnings,
			fmt.Sprintf("entity linkage unavailable: %v", res.Err))
		return
	}
	state.Findings = append(state.Findings, res.Findings...)
}

// allTransactionsFinding fabricates a severity-low finding citing every
// transaction, so counterparty extraction can run over the whole period.
func allTransactionsFinding(txns []model.Transaction) []model.Finding {
	ids := make([]string, 0, len(txns))
	for _, txn := range txns {
		ids = append(ids, txn.ID)
	}
	return []model.Finding{{
		Severity:    model.SeverityLow,
		EvidenceIDs: ids,
	}}
}

func checkCancel(ctx context.Context, state *CaseState) error {
	if err := ctx.Err(); err != nil {
		state.Phase = PhaseFailed
		return fmt.Errorf("case review canceled: %w", err)
	}
	return nil
}

func notifyProgress(req CaseRequest, state *CaseState, percent int) {
	if req.Progress != nil {
		req.Progress(state.Phase, percent)
	}
}

func reportInput(req CaseRequest, state *CaseState, verdict model.CaseVerdict) report.Input {
	statuses := make(map[string]string, len(state.StageStatus))
	for stage, status := range state.StageStatus {
		statuses[string(stage)] = string(status)
	}
	return report.Input{
		CaseID:           state.CaseID,
		AccountNumber:    req.AccountNumber,
		PeriodStart:      req.Start,
		PeriodEnd:        req.End,
		Verdict:          verdict,
		AllFindings:      state.Findings,
		Warnings:         state.Warnings,
		StageStatus:      statuses,
		TransactionCount: len(state.Transactions),
	}
}
