package application_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vibeheal/vibeheal/internal/domain"
)

type fakeTracker struct {
	mu           sync.Mutex
	fileIssues   map[string][]domain.Issue
	fileErr      error
	projectCalls int
	fileCalls    int
	ruleCalls    int
	// projectRounds[i] is returned by the i-th IssuesForProject call; the
	// last entry repeats.
	projectRounds [][]domain.Issue
	projectErr    error
	rules         map[string]domain.Rule
}

func (f *fakeTracker) IssuesForFile(_ context.Context, _ string, file string) ([]domain.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fileCalls++
	if f.fileErr != nil {
		return nil, f.fileErr
	}
	return f.fileIssues[file], nil
}

func (f *fakeTracker) IssuesForProject(context.Context, string) ([]domain.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projectCalls++
	if f.projectErr != nil {
		return nil, f.projectErr
	}
	if len(f.projectRounds) == 0 {
		return nil, nil
	}
	idx := f.projectCalls - 1
	if idx >= len(f.projectRounds) {
		idx = len(f.projectRounds) - 1
	}
	return f.projectRounds[idx], nil
}

func (f *fakeTracker) Rule(_ context.Context, key string) (*domain.Rule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ruleCalls++
	if r, ok := f.rules[key]; ok {
		return &r, nil
	}
	return nil, fmt.Errorf("rule %s: %w", key, domain.ErrTracker)
}

func (f *fakeTracker) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fileCalls + f.projectCalls
}

type fakeTool struct {
	available bool
	// results are consumed in order; once exhausted every call succeeds.
	results  []domain.FixAttemptResult
	calls    []domain.FixContext
	onFix    func(domain.FixContext)
	deadline []bool
}

func (f *fakeTool) Kind() domain.AIToolKind { return domain.AIToolClaudeCode }
func (f *fakeTool) DisplayName() string     { return "Fake Tool" }
func (f *fakeTool) Available() bool         { return f.available }

func (f *fakeTool) Fix(ctx context.Context, fc domain.FixContext) domain.FixAttemptResult {
	f.calls = append(f.calls, fc)
	_, hasDeadline := ctx.Deadline()
	f.deadline = append(f.deadline, hasDeadline && ctx.Err() == nil)
	if f.onFix != nil {
		f.onFix(fc)
	}
	if len(f.results) > 0 {
		r := f.results[0]
		f.results = f.results[1:]
		return r
	}
	return domain.FixAttemptResult{Success: true, Duration: time.Millisecond}
}

type fakeVCS struct {
	repo       bool
	dirty      map[string]bool
	commitErrs []error
	commits    []fakeCommit
	branch     string
	user       string
}

type fakeCommit struct {
	files   []string
	message string
}

func (f *fakeVCS) IsRepository() bool { return f.repo }

func (f *fakeVCS) IsClean(path string) (bool, error) { return !f.dirty[path], nil }

func (f *fakeVCS) Commit(_ context.Context, files []string, message string) (string, error) {
	if len(f.commitErrs) > 0 {
		err := f.commitErrs[0]
		f.commitErrs = f.commitErrs[1:]
		if err != nil {
			return "", err
		}
	}
	f.commits = append(f.commits, fakeCommit{files: files, message: message})
	return fmt.Sprintf("%040d", len(f.commits)), nil
}

func (f *fakeVCS) CurrentBranch() (string, error) { return f.branch, nil }
func (f *fakeVCS) UserIdentity() (string, error)  { return f.user, nil }

type fakeProjects struct {
	created   []string
	deleted   []string
	createErr error
	deleteErr error
}

func (f *fakeProjects) CreateProject(_ context.Context, key, _ string) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, key)
	return nil
}

func (f *fakeProjects) DeleteProject(ctx context.Context, key string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	f.deleted = append(f.deleted, key)
	return f.deleteErr
}

func (f *fakeProjects) ProjectExists(_ context.Context, key string) (bool, error) {
	for _, k := range f.created {
		if k == key {
			return true, nil
		}
	}
	return false, nil
}

type fakeAnalysis struct {
	available bool
	runs      int
	err       error
	onRun     func(n int)
}

func (f *fakeAnalysis) Available() bool { return f.available }

func (f *fakeAnalysis) Run(context.Context, domain.AnalysisRequest) (*domain.AnalysisResult, error) {
	f.runs++
	if f.onRun != nil {
		f.onRun(f.runs)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &domain.AnalysisResult{TaskID: "task", Status: "SUCCESS"}, nil
}

type fakeBranches struct {
	exists  bool
	changed []string
	err     error
}

func (f *fakeBranches) BranchExists(string) bool { return f.exists }

func (f *fakeBranches) ChangedFiles(context.Context, string) ([]string, error) {
	return f.changed, f.err
}

type mockConfirmer struct{ mock.Mock }

func (m *mockConfirmer) Confirm(ctx context.Context, n int) (bool, error) {
	args := m.Called(ctx, n)
	return args.Bool(0), args.Error(1)
}

type recordingRecorder struct {
	outcomes   []string
	commits    int
	iterations []int
}

func (r *recordingRecorder) ObserveFix(outcome string, _ time.Duration) {
	r.outcomes = append(r.outcomes, outcome)
}
func (r *recordingRecorder) ObserveCommit()           { r.commits++ }
func (r *recordingRecorder) ObserveIteration(obs int) { r.iterations = append(r.iterations, obs) }

func testConfig() domain.Config {
	cfg := domain.DefaultConfig()
	cfg.SonarQube.URL = "https://sonar.example.com"
	cfg.SonarQube.Token = "t"
	cfg.SonarQube.ProjectKey = "proj"
	cfg.Fix.Timeout = 5 * time.Second
	return cfg
}

func writeFile(t *testing.T, dir, rel string, lines int) {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	content := ""
	for i := 1; i <= lines; i++ {
		content += fmt.Sprintf("line %d\n", i)
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func openIssue(key, component string, line int) domain.Issue {
	return domain.Issue{
		Key:       key,
		Rule:      "python:S1481",
		Severity:  domain.SeverityMajor,
		Message:   "Remove this unused variable " + key,
		Component: component,
		Line:      domain.IntPtr(line),
		Status:    domain.StatusOpen,
	}
}

var errCommit = errors.New("commit exploded")
