package domain

import (
	"context"
	"time"
)

// IssueTracker reads issues and rules from the static-analysis server.
type IssueTracker interface {
	IssuesForFile(ctx context.Context, projectKey, file string) ([]Issue, error)
	IssuesForProject(ctx context.Context, projectKey string) ([]Issue, error)
	Rule(ctx context.Context, key string) (*Rule, error)
}

// DuplicationSource reports duplicated code blocks.
type DuplicationSource interface {
	DuplicationsForFile(ctx context.Context, projectKey, file string) (*Duplications, error)
}

// ProjectManager creates and deletes projects on the tracker.
type ProjectManager interface {
	CreateProject(ctx context.Context, key, name string) error
	DeleteProject(ctx context.Context, key string) error
	ProjectExists(ctx context.Context, key string) (bool, error)
}

// AnalysisRequest describes one analysis run against a project.
type AnalysisRequest struct {
	ProjectKey  string
	ProjectName string
	Sources     []string
}

// AnalysisResult reports the server-side task produced by an analysis run.
type AnalysisResult struct {
	TaskID   string        `json:"task_id,omitempty"`
	Status   string        `json:"status"`
	Duration time.Duration `json:"duration"`
}

// AnalysisRunner submits source files for analysis and blocks until the
// server has processed them.
type AnalysisRunner interface {
	Available() bool
	Run(ctx context.Context, req AnalysisRequest) (*AnalysisResult, error)
}

// AITool is an external CLI able to edit files to resolve an issue.
type AITool interface {
	Kind() AIToolKind
	DisplayName() string
	Available() bool
	Fix(ctx context.Context, fc FixContext) FixAttemptResult
}

// VCS records fixes in version control.
type VCS interface {
	IsRepository() bool
	IsClean(path string) (bool, error)
	Commit(ctx context.Context, files []string, message string) (string, error)
	CurrentBranch() (string, error)
	UserIdentity() (string, error)
}

// BranchAnalyzer reports what changed on the current branch.
type BranchAnalyzer interface {
	BranchExists(name string) bool
	ChangedFiles(ctx context.Context, base string) ([]string, error)
}

// Confirmer asks the user to approve a plan before anything is changed.
type Confirmer interface {
	Confirm(ctx context.Context, issueCount int) (bool, error)
}

// RunHistory persists finished runs.
type RunHistory interface {
	Save(dir string, rec RunRecord) error
	Load(dir string) ([]RunRecord, error)
}

// RuleCache persists rule details between runs.
type RuleCache interface {
	Load(dir string) (*RuleCacheFile, error)
	Save(dir string, cache *RuleCacheFile) error
}

// FixRecorder receives counters about fix activity.
type FixRecorder interface {
	ObserveFix(outcome string, d time.Duration)
	ObserveCommit()
	ObserveIteration(observed int)
}
