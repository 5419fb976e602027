package domain

// StopReason explains why a branch cleanup loop ended.
type StopReason string

const (
	StopConverged     StopReason = "converged"
	StopNoProgress    StopReason = "no-progress"
	StopMaxIterations StopReason = "max-iterations"
	StopError         StopReason = "error"
)

// CleanupIterationState is the loop bookkeeping handed to a stop condition
// after each iteration.
type CleanupIterationState struct {
	Iteration     int `json:"iteration"`
	Observed      int `json:"observed"`
	Previous      int `json:"previous"`
	MaxIterations int `json:"max_iterations"`
}

// StopCondition decides whether the loop should end. An empty reason means
// keep going.
type StopCondition func(CleanupIterationState) StopReason

// FileCleanupResult accumulates the fixes applied to one file across all
// iterations.
type FileCleanupResult struct {
	File    string   `json:"file"`
	Fixed   int      `json:"fixed"`
	Failed  int      `json:"failed"`
	Commits []string `json:"commits,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// CleanupResult aggregates a branch cleanup run.
type CleanupResult struct {
	Files        []FileCleanupResult `json:"files"`
	TotalFixed   int                 `json:"total_fixed"`
	TotalFailed  int                 `json:"total_failed"`
	TotalCommits int                 `json:"total_commits"`
	Iterations   int                 `json:"iterations"`
	Remaining    int                 `json:"remaining"`
	StopReason   StopReason          `json:"stop_reason"`
	Error        string              `json:"error,omitempty"`
	TempProject  string              `json:"temp_project,omitempty"`
	ChangedFiles []string            `json:"changed_files,omitempty"`
}

// Success reports whether the loop ended cleanly without failed fixes.
func (r CleanupResult) Success() bool {
	return r.StopReason != StopError && r.TotalFailed == 0
}

// File returns the accumulated result for path, creating it on first use.
func (r *CleanupResult) File(path string) *FileCleanupResult {
	for i := range r.Files {
		if r.Files[i].File == path {
			return &r.Files[i]
		}
	}
	r.Files = append(r.Files, FileCleanupResult{File: path})
	return &r.Files[len(r.Files)-1]
}

// Absorb folds a single-file summary into the running totals.
func (r *CleanupResult) Absorb(s *RemediationSummary) {
	fr := r.File(s.File)
	fr.Fixed += s.Fixed
	fr.Failed += s.Failed
	fr.Commits = append(fr.Commits, s.Commits...)
	r.TotalFixed += s.Fixed
	r.TotalFailed += s.Failed
	r.TotalCommits += len(s.Commits)
}
