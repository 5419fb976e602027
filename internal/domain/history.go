package domain

import "time"

// RunKind distinguishes single-file runs from branch-wide loops, and issue
// fixes from deduplication.
type RunKind string

const (
	RunKindFix          RunKind = "fix"
	RunKindCleanup      RunKind = "cleanup"
	RunKindDedupe       RunKind = "dedupe"
	RunKindDedupeBranch RunKind = "dedupe-branch"
)

// RunRecord is one finished run as stored in history.
type RunRecord struct {
	ID         string        `json:"id"`
	Kind       RunKind       `json:"kind"`
	Timestamp  time.Time     `json:"timestamp"`
	Target     string        `json:"target"`
	Tool       string        `json:"tool"`
	Fixed      int           `json:"fixed"`
	Failed     int           `json:"failed"`
	Commits    int           `json:"commits"`
	Iterations int           `json:"iterations,omitempty"`
	StopReason StopReason    `json:"stop_reason,omitempty"`
	DryRun     bool          `json:"dry_run,omitempty"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// RecordFromSummary builds a history record for a single-file run.
func RecordFromSummary(id, tool string, at time.Time, s *RemediationSummary) RunRecord {
	return RunRecord{
		ID:        id,
		Kind:      RunKindFix,
		Timestamp: at,
		Target:    s.File,
		Tool:      tool,
		Fixed:     s.Fixed,
		Failed:    s.Failed,
		Commits:   len(s.Commits),
		DryRun:    s.DryRun,
	}
}

// RecordFromCleanup builds a history record for a branch cleanup.
func RecordFromCleanup(id, tool, base string, at time.Time, r *CleanupResult) RunRecord {
	return RunRecord{
		ID:         id,
		Kind:       RunKindCleanup,
		Timestamp:  at,
		Target:     base,
		Tool:       tool,
		Fixed:      r.TotalFixed,
		Failed:     r.TotalFailed,
		Commits:    r.TotalCommits,
		Iterations: r.Iterations,
		StopReason: r.StopReason,
		Error:      r.Error,
	}
}
