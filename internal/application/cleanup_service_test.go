package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vibeheal/vibeheal/internal/application"
	"github.com/vibeheal/vibeheal/internal/domain"
)

var fixedClock = func() time.Time { return time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC) }

const expectedTempKey = "proj_dev_example_com_feature_x_250101-120000"

type cleanupFixture struct {
	dir      string
	tracker  *fakeTracker
	tool     *fakeTool
	vcs      *fakeVCS
	projects *fakeProjects
	analysis *fakeAnalysis
	branches *fakeBranches
	recorder *recordingRecorder
	logger   *zap.Logger
}

func newCleanupFixture(t *testing.T) *cleanupFixture {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "a.py", 40)
	writeFile(t, dir, "b.py", 40)
	return &cleanupFixture{
		dir:      dir,
		tracker:  &fakeTracker{},
		tool:     &fakeTool{available: true},
		vcs:      &fakeVCS{repo: true, dirty: map[string]bool{}, branch: "feature/x", user: "dev@example.com"},
		projects: &fakeProjects{},
		analysis: &fakeAnalysis{available: true},
		branches: &fakeBranches{exists: true, changed: []string{"a.py", "b.py"}},
		recorder: &recordingRecorder{},
		logger:   zap.NewNop(),
	}
}

func (f *cleanupFixture) service() *application.CleanupService {
	cfg := testConfig()
	fixer := application.NewFixService(f.tracker, f.tool, f.vcs, cfg,
		application.WithWorkDir(f.dir),
		application.WithLogger(f.logger))
	temp := application.NewTempProjectService(f.projects, f.logger).WithClock(fixedClock)
	return application.NewCleanupService(fixer, temp, f.tracker, f.analysis, f.branches, f.vcs, cfg, f.logger).
		WithRecorder(f.recorder)
}

// fiveIssues spreads five fixable issues over a.py and b.py.
func fiveIssues() []domain.Issue {
	return []domain.Issue{
		openIssue("a1", "tmp:a.py", 30),
		openIssue("a2", "tmp:a.py", 20),
		openIssue("a3", "tmp:a.py", 10),
		openIssue("b1", "tmp:b.py", 15),
		openIssue("b2", "tmp:b.py", 5),
	}
}

func issuesN(n int) []domain.Issue {
	return fiveIssues()[:n]
}

func TestCleanup_NoProgressStopsAfterSecondIteration(t *testing.T) {
	f := newCleanupFixture(t)
	f.tracker.projectRounds = [][]domain.Issue{fiveIssues(), fiveIssues()}
	f.tool.results = []domain.FixAttemptResult{
		{Success: true}, {Success: true}, {Success: true},
		{Success: false, Error: "no idea"}, {Success: false, Error: "no idea"},
	}

	result, err := f.service().Run(context.Background(), application.CleanupRequest{MaxIterations: 10})
	require.NoError(t, err)

	assert.Equal(t, domain.StopNoProgress, result.StopReason)
	assert.Equal(t, 2, result.Iterations)
	assert.Equal(t, 5, result.Remaining)
	assert.Equal(t, 2, f.analysis.runs)
	assert.Equal(t, []string{expectedTempKey}, f.projects.created)
	assert.Equal(t, []string{expectedTempKey}, f.projects.deleted, "temp project destroyed exactly once")
	assert.Equal(t, []int{5, 5}, f.recorder.iterations)

	// Iteration 1 fixed 3 and failed 2; iteration 2 fixed all 5.
	assert.Equal(t, 8, result.TotalFixed)
	assert.Equal(t, 2, result.TotalFailed)
	assert.Equal(t, 8, result.TotalCommits)
	assert.False(t, result.Success())
}

func TestCleanup_MaxIterationsReportsRemaining(t *testing.T) {
	f := newCleanupFixture(t)
	f.tracker.projectRounds = [][]domain.Issue{issuesN(5), issuesN(4), issuesN(3)}

	result, err := f.service().Run(context.Background(), application.CleanupRequest{MaxIterations: 3})
	require.NoError(t, err)

	assert.Equal(t, domain.StopMaxIterations, result.StopReason)
	assert.Equal(t, 3, result.Iterations)
	assert.Equal(t, 3, result.Remaining)
	assert.Equal(t, []string{expectedTempKey}, f.projects.deleted)
}

func TestCleanup_Converges(t *testing.T) {
	f := newCleanupFixture(t)
	f.tracker.projectRounds = [][]domain.Issue{issuesN(2), nil}

	result, err := f.service().Run(context.Background(), application.CleanupRequest{})
	require.NoError(t, err)

	assert.Equal(t, domain.StopConverged, result.StopReason)
	assert.Equal(t, 2, result.Iterations)
	assert.Zero(t, result.Remaining)
	assert.Equal(t, 2, result.TotalFixed)
	assert.True(t, result.Success())
	assert.Equal(t, expectedTempKey, result.TempProject)
	assert.Len(t, f.projects.deleted, 1)

	require.Len(t, result.Files, 1)
	assert.Equal(t, "a.py", result.Files[0].File)
	assert.Equal(t, 2, result.Files[0].Fixed)
}

func TestCleanup_FilesProcessedInSortedOrder(t *testing.T) {
	f := newCleanupFixture(t)
	f.tracker.projectRounds = [][]domain.Issue{
		{openIssue("b1", "tmp:b.py", 3), openIssue("a1", "tmp:a.py", 3)},
		nil,
	}

	_, err := f.service().Run(context.Background(), application.CleanupRequest{})
	require.NoError(t, err)
	require.Len(t, f.tool.calls, 2)
	assert.Equal(t, "a.py", f.tool.calls[0].File)
	assert.Equal(t, "b.py", f.tool.calls[1].File)
}

func TestCleanup_NoChangedFilesSkipsTempProject(t *testing.T) {
	f := newCleanupFixture(t)
	f.branches.changed = nil

	result, err := f.service().Run(context.Background(), application.CleanupRequest{})
	require.NoError(t, err)
	assert.Equal(t, domain.StopConverged, result.StopReason)
	assert.Zero(t, result.Iterations)
	assert.Empty(t, f.projects.created)
	assert.Empty(t, f.projects.deleted)
	assert.Zero(t, f.analysis.runs)
}

func TestCleanup_PatternsFilterChangedFiles(t *testing.T) {
	f := newCleanupFixture(t)
	f.branches.changed = []string{"a.py", "docs/readme.md"}
	f.tracker.projectRounds = [][]domain.Issue{nil}

	result, err := f.service().Run(context.Background(), application.CleanupRequest{Patterns: []string{"*.py"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.py"}, result.ChangedFiles)

	f2 := newCleanupFixture(t)
	f2.branches.changed = []string{"docs/readme.md"}
	result, err = f2.service().Run(context.Background(), application.CleanupRequest{Patterns: []string{"*.py"}})
	require.NoError(t, err)
	assert.Empty(t, result.ChangedFiles)
	assert.Empty(t, f2.projects.created)
}

func TestCleanup_IgnoresIssuesOutsideChangedFiles(t *testing.T) {
	f := newCleanupFixture(t)
	f.tracker.projectRounds = [][]domain.Issue{{openIssue("o1", "tmp:other.py", 4)}}

	result, err := f.service().Run(context.Background(), application.CleanupRequest{})
	require.NoError(t, err)
	assert.Equal(t, domain.StopConverged, result.StopReason)
	assert.Empty(t, f.tool.calls)
}

func TestCleanup_AnalysisErrorStillDestroys(t *testing.T) {
	f := newCleanupFixture(t)
	f.analysis.err = errors.Join(domain.ErrAnalysis, errors.New("scanner crashed"))

	result, err := f.service().Run(context.Background(), application.CleanupRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAnalysis)
	require.NotNil(t, result)
	assert.Equal(t, domain.StopError, result.StopReason)
	assert.Contains(t, result.Error, "scanner crashed")
	assert.Equal(t, []string{expectedTempKey}, f.projects.deleted)
}

func TestCleanup_TrackerErrorStillDestroys(t *testing.T) {
	f := newCleanupFixture(t)
	f.tracker.projectErr = &domain.APIError{StatusCode: 503}

	result, err := f.service().Run(context.Background(), application.CleanupRequest{})
	require.ErrorIs(t, err, domain.ErrTracker)
	assert.Equal(t, domain.StopError, result.StopReason)
	assert.Len(t, f.projects.deleted, 1)
}

func TestCleanup_PanicStillDestroys(t *testing.T) {
	f := newCleanupFixture(t)
	f.tracker.projectRounds = [][]domain.Issue{issuesN(1)}
	f.tool.onFix = func(domain.FixContext) { panic("tool blew up") }

	svc := f.service()
	assert.Panics(t, func() {
		_, _ = svc.Run(context.Background(), application.CleanupRequest{})
	})
	assert.Equal(t, []string{expectedTempKey}, f.projects.deleted)
}

func TestCleanup_CancellationStopsAndDestroys(t *testing.T) {
	f := newCleanupFixture(t)
	f.tracker.projectRounds = [][]domain.Issue{fiveIssues()}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.analysis.onRun = func(int) { cancel() }

	result, err := f.service().Run(ctx, application.CleanupRequest{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.StopError, result.StopReason)
	assert.Empty(t, f.tool.calls, "no file may start after cancellation")
	assert.Equal(t, []string{expectedTempKey}, f.projects.deleted, "destroy runs with a context detached from cancellation")
}

func TestCleanup_DestroyFailureIsLoggedNotReturned(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	f := newCleanupFixture(t)
	f.logger = zap.New(core)
	f.tracker.projectRounds = [][]domain.Issue{nil}
	f.projects.deleteErr = &domain.APIError{StatusCode: 500, Body: "boom"}

	result, err := f.service().Run(context.Background(), application.CleanupRequest{})
	require.NoError(t, err)
	assert.Equal(t, domain.StopConverged, result.StopReason)

	entries := logs.FilterMessageSnippet("temp project left behind").All()
	require.Len(t, entries, 1)
	assert.Equal(t, expectedTempKey, entries[0].ContextMap()["project"])
}

func TestCleanup_MalformedPatternIsConfigError(t *testing.T) {
	f := newCleanupFixture(t)
	f.branches.changed = []string{"src/a.py", "src/sub/b.py", "README.md"}

	result, err := f.service().Run(context.Background(), application.CleanupRequest{Patterns: []string{"src/[a.py"}})
	require.ErrorIs(t, err, domain.ErrConfig)
	assert.Equal(t, domain.StopError, result.StopReason)
	assert.Empty(t, f.projects.created)
	assert.Zero(t, f.analysis.runs)
}

func TestCleanup_BraceAlternationPattern(t *testing.T) {
	f := newCleanupFixture(t)
	f.branches.changed = []string{"src/a.py", "lib/b.py", "docs/c.py"}
	f.tracker.projectRounds = [][]domain.Issue{nil}

	result, err := f.service().Run(context.Background(), application.CleanupRequest{Patterns: []string{"{src,lib}/*.py"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"src/a.py", "lib/b.py"}, result.ChangedFiles)
}

func TestCleanup_ChangedFilesErrorSetsStopError(t *testing.T) {
	f := newCleanupFixture(t)
	f.branches.err = errors.New("bad revision")

	result, err := f.service().Run(context.Background(), application.CleanupRequest{})
	require.Error(t, err)
	assert.Equal(t, domain.StopError, result.StopReason)
	assert.Contains(t, result.Error, "bad revision")
}

func TestCleanup_CreateFailureSkipsDestroy(t *testing.T) {
	f := newCleanupFixture(t)
	f.projects.createErr = &domain.APIError{StatusCode: 400, Body: "key taken"}

	result, err := f.service().Run(context.Background(), application.CleanupRequest{})
	require.Error(t, err)
	assert.Equal(t, domain.StopError, result.StopReason)
	assert.Empty(t, f.projects.deleted)
	assert.Zero(t, f.analysis.runs)
}

func TestCleanup_Preconditions(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*cleanupFixture)
	}{
		{"missing base branch", func(f *cleanupFixture) { f.branches.exists = false }},
		{"scanner unavailable", func(f *cleanupFixture) { f.analysis.available = false }},
		{"tool unavailable", func(f *cleanupFixture) { f.tool.available = false }},
		{"not a repository", func(f *cleanupFixture) { f.vcs.repo = false }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCleanupFixture(t)
			tt.mutate(f)
			result, err := f.service().Run(context.Background(), application.CleanupRequest{})
			require.ErrorIs(t, err, domain.ErrPrecondition)
			assert.Equal(t, domain.StopError, result.StopReason)
			assert.Equal(t, err.Error(), result.Error)
			assert.Empty(t, f.projects.created)
			assert.Zero(t, f.tracker.calls())
		})
	}
}

func TestCleanup_PerFileErrorDoesNotStopLoop(t *testing.T) {
	f := newCleanupFixture(t)
	f.vcs.dirty["b.py"] = true
	f.tracker.projectRounds = [][]domain.Issue{fiveIssues(), nil}

	result, err := f.service().Run(context.Background(), application.CleanupRequest{})
	require.NoError(t, err)
	assert.Equal(t, domain.StopConverged, result.StopReason)
	assert.Equal(t, 3, result.TotalFixed)

	var bResult *domain.FileCleanupResult
	for i := range result.Files {
		if result.Files[i].File == "b.py" {
			bResult = &result.Files[i]
		}
	}
	require.NotNil(t, bResult)
	assert.Contains(t, bResult.Error, "uncommitted changes")
}

func TestCleanup_InjectedStopCondition(t *testing.T) {
	f := newCleanupFixture(t)
	f.tracker.projectRounds = [][]domain.Issue{fiveIssues()}
	var seen []domain.CleanupIterationState

	svc := f.service().WithStopCondition(func(st domain.CleanupIterationState) domain.StopReason {
		seen = append(seen, st)
		return domain.StopNoProgress
	})
	result, err := svc.Run(context.Background(), application.CleanupRequest{MaxIterations: 4})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Iterations)
	require.Len(t, seen, 1)
	assert.Equal(t, domain.CleanupIterationState{Iteration: 1, Observed: 5, Previous: -1, MaxIterations: 4}, seen[0])
}
