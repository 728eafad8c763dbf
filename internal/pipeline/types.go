// Package pipeline implements the case review state machine: intake, the
// concurrent analysis fan-out, the optional entity linkage stage, and
// aggregation into a verdict.
package pipeline

import (
	"time"

	"github.com/moneypennybank/amlflow/internal/model"
)

// Phase is the orchestrator's position in the case state machine.
type Phase string

const (
	// PhaseIntake validates the request and loads transactions and profile.
	PhaseIntake Phase = "INTAKE"
	// PhaseAnalysisFanout runs the pattern and geographic stages concurrently.
	PhaseAnalysisFanout Phase = "ANALYSIS_FANOUT"
	// PhaseAnalysisJoin waits for both fan-out stages to reach a terminal status.
	PhaseAnalysisJoin Phase = "ANALYSIS_JOIN"
	// PhaseEntityLinkage runs the conditional entity linkage stage.
	PhaseEntityLinkage Phase = "ENTITY_LINKAGE"
	// PhaseAggregation converts the accumulated findings into a verdict.
	PhaseAggregation Phase = "AGGREGATION"
	// PhaseComplete is the successful terminal phase.
	PhaseComplete Phase = "COMPLETE"
	// PhaseFailed is the failed terminal phase.
	PhaseFailed Phase = "FAILED"
)

// StageStatus tracks one analyzer stage through the pipeline.
type StageStatus string

const (
	// StagePending means the stage has not started.
	StagePending StageStatus = "PENDING"
	// StageRunning means the stage is executing.
	StageRunning StageStatus = "RUNNING"
	// StageSucceeded means the stage returned findings.
	StageSucceeded StageStatus = "SUCCEEDED"
	// StageFailed means the stage failed after any retries.
	StageFailed StageStatus = "FAILED"
	// StageSkipped means the stage's entry condition was not met.
	StageSkipped StageStatus = "SKIPPED"
)

// Terminal reports whether the status is final for a stage run.
func (s StageStatus) Terminal() bool {
	return s == StageSucceeded || s == StageFailed || s == StageSkipped
}

// ProgressFunc receives phase transitions during a review.
type ProgressFunc func(phase Phase, percent int)

// CaseRequest describes one review: an account and a date range.
type CaseRequest struct {
	Start              time.Time
	End                time.Time
	AccountNumber      string
	ForceEntityLinkage bool
	Progress           ProgressFunc
}

// Key identifies the case for single-flight purposes: one review per
// account and period at a time.
func (r *CaseRequest) Key() string {
	return r.AccountNumber + ":" + r.Start.Format("2006-01-02") + ":" + r.End.Format("2006-01-02")
}

// StageResult is a stage coordinator's terminal outcome for one stage run.
// On failure Findings is always empty; partial output is never published.
type StageResult struct {
	Stage    model.Stage
	Status   StageStatus
	Findings []model.Finding
	Warnings []string
	Err      error
}

// CaseState is the orchestrator's mutable aggregate for one review. It is
// owned exclusively by the orchestrator goroutine: analyzers only ever see
// copies of its immutable parts and return values, so no locking is needed
// around findings accumulation.
type CaseState struct {
	StartedAt    time.Time
	CaseID       string
	Phase        Phase
	Account      model.AccountContext
	Transactions []model.Transaction
	Findings     []model.Finding
	StageStatus  map[model.Stage]StageStatus
	Warnings     []string
}

func newCaseState(caseID string) *CaseState {
	return &CaseState{
		StartedAt: time.Now(),
		CaseID:    caseID,
		Phase:     PhaseIntake,
		StageStatus: map[model.Stage]StageStatus{
			model.StagePattern:    StagePending,
			model.StageGeographic: StagePending,
			model.StageEntity:     StagePending,
		},
	}
}
