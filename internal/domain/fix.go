package domain

import "time"

// FixPlan is the ordered list of issues the engine will attempt, highest
// line first so earlier edits never shift the lines of later ones.
type FixPlan struct {
	Issues  []Issue `json:"issues"`
	Total   int     `json:"total"`
	Fixable int     `json:"fixable"`
	Skipped int     `json:"skipped"`
}

// Len returns the number of planned issues.
func (p FixPlan) Len() int { return len(p.Issues) }

// PlanOptions narrows a plan. Nil fields mean no restriction.
type PlanOptions struct {
	MinSeverity *Severity
	MaxIssues   *int
}

// FixContext is everything an AI tool needs to attempt a single issue.
type FixContext struct {
	Issue       Issue
	File        string
	Rule        *Rule
	CodeContext string
	Prompt      string
}

// FixAttemptResult is the outcome of one AI tool invocation.
type FixAttemptResult struct {
	Success       bool          `json:"success"`
	Error         string        `json:"error,omitempty"`
	FilesModified []string      `json:"files_modified,omitempty"`
	Output        string        `json:"-"`
	Duration      time.Duration `json:"duration"`
}

// Outcome describes how a single-file remediation ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeNoIssues  Outcome = "no-issues"
	OutcomeDeclined  Outcome = "declined"
)

// RemediationSummary aggregates the result of fixing one file.
type RemediationSummary struct {
	File    string   `json:"file"`
	Total   int      `json:"total"`
	Fixed   int      `json:"fixed"`
	Failed  int      `json:"failed"`
	Skipped int      `json:"skipped"`
	Commits []string `json:"commits"`
	Outcome Outcome  `json:"outcome"`
	DryRun  bool     `json:"dry_run,omitempty"`
}

// HasFailures reports whether any attempted fix failed.
func (s RemediationSummary) HasFailures() bool { return s.Failed > 0 }

// Attempted returns the number of issues the engine tried to fix.
func (s RemediationSummary) Attempted() int { return s.Fixed + s.Failed }

// SuccessRate returns the percentage of attempted fixes that succeeded.
func (s RemediationSummary) SuccessRate() float64 {
	if s.Attempted() == 0 {
		return 0
	}
	return float64(s.Fixed) / float64(s.Attempted()) * 100
}

// EngineState names the phases of a single-file remediation.
type EngineState string

const (
	StateIdle                 EngineState = "idle"
	StateValidating           EngineState = "validating"
	StateFetching             EngineState = "fetching"
	StatePlanning             EngineState = "planning"
	StateAwaitingConfirmation EngineState = "awaiting-confirmation"
	StateFixing               EngineState = "fixing"
	StateDone                 EngineState = "done"
	StateAborted              EngineState = "aborted"
)
