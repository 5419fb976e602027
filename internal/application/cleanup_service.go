package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/vibeheal/vibeheal/internal/domain"
)

const (
	DefaultBaseBranch    = "origin/main"
	DefaultMaxIterations = 10
)

// CleanupRequest describes a branch-wide cleanup.
type CleanupRequest struct {
	BaseBranch    string
	MaxIterations int
	Patterns      []string
}

func (r CleanupRequest) withDefaults() CleanupRequest {
	if r.BaseBranch == "" {
		r.BaseBranch = DefaultBaseBranch
	}
	if r.MaxIterations <= 0 {
		r.MaxIterations = DefaultMaxIterations
	}
	return r
}

// CleanupService repeatedly analyzes the files changed on the current branch
// in a disposable project and fixes what it finds, until no issues remain,
// an iteration makes no progress, or the iteration ceiling is reached.
type CleanupService struct {
	fixer    *FixService
	temp     *TempProjectService
	tracker  domain.IssueTracker
	analysis domain.AnalysisRunner
	branches domain.BranchAnalyzer
	vcs      domain.VCS
	cfg      domain.Config
	stop     domain.StopCondition
	recorder domain.FixRecorder
	logger   *zap.Logger
	tracer   trace.Tracer

	destroyTimeout time.Duration
}

func NewCleanupService(
	fixer *FixService,
	temp *TempProjectService,
	tracker domain.IssueTracker,
	analysis domain.AnalysisRunner,
	branches domain.BranchAnalyzer,
	vcs domain.VCS,
	cfg domain.Config,
	logger *zap.Logger,
) *CleanupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CleanupService{
		fixer:          fixer,
		temp:           temp,
		tracker:        tracker,
		analysis:       analysis,
		branches:       branches,
		vcs:            vcs,
		cfg:            cfg,
		stop:           DefaultStopCondition,
		recorder:       nopRecorder{},
		logger:         logger,
		tracer:         otel.Tracer(tracerName),
		destroyTimeout: time.Minute,
	}
}

// WithStopCondition replaces DefaultStopCondition.
func (s *CleanupService) WithStopCondition(fn domain.StopCondition) *CleanupService {
	s.stop = fn
	return s
}

// WithRecorder attaches a metrics sink.
func (s *CleanupService) WithRecorder(r domain.FixRecorder) *CleanupService {
	s.recorder = r
	return s
}

// Run executes the cleanup. On error the partial result is returned alongside
// it. The temp project is deleted on every path once it has been created.
func (s *CleanupService) Run(ctx context.Context, req CleanupRequest) (*domain.CleanupResult, error) {
	return s.runBranch(ctx, "cleanup.run", req, s.iterate)
}

// Dedupe runs the same loop as Run, but each iteration refactors the
// duplicated blocks the analysis reports in the changed files instead of
// fixing issues. It stops when no duplications remain, an iteration makes no
// progress, or the iteration ceiling is reached.
func (s *CleanupService) Dedupe(ctx context.Context, req CleanupRequest) (*domain.CleanupResult, error) {
	return s.runBranch(ctx, "dedupe.branch", req, s.iterateDedupe)
}

// branchPass runs the iterations of one branch-wide loop against the temp
// project h.
type branchPass func(ctx context.Context, req CleanupRequest, h *domain.TempProjectHandle, changed []string, result *domain.CleanupResult) error

func (s *CleanupService) runBranch(ctx context.Context, spanName string, req CleanupRequest, pass branchPass) (*domain.CleanupResult, error) {
	req = req.withDefaults()
	ctx, span := s.tracer.Start(ctx, spanName, trace.WithAttributes(
		attribute.String("base_branch", req.BaseBranch),
		attribute.Int("max_iterations", req.MaxIterations),
	))
	defer span.End()

	result := &domain.CleanupResult{}
	fail := func(err error) (*domain.CleanupResult, error) {
		result.StopReason = domain.StopError
		result.Error = err.Error()
		return result, err
	}

	if err := s.validate(req); err != nil {
		return fail(err)
	}

	changed, err := s.branches.ChangedFiles(ctx, req.BaseBranch)
	if err != nil {
		return fail(fmt.Errorf("listing files changed since %s: %w", req.BaseBranch, err))
	}
	changed, err = domain.FilterFiles(changed, req.Patterns)
	if err != nil {
		return fail(err)
	}
	result.ChangedFiles = changed
	if len(changed) == 0 {
		s.logger.Info("no changed files to analyze", zap.String("base", req.BaseBranch))
		result.StopReason = domain.StopConverged
		return result, nil
	}

	branch, err := s.vcs.CurrentBranch()
	if err != nil {
		return fail(fmt.Errorf("reading current branch: %w", err))
	}
	user, err := s.vcs.UserIdentity()
	if err != nil {
		return fail(fmt.Errorf("reading user identity: %w", err))
	}

	handle, err := s.temp.Create(ctx, s.cfg.SonarQube.ProjectKey, branch, user)
	if err != nil {
		return fail(err)
	}
	result.TempProject = handle.Key

	defer func() {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.destroyTimeout)
		defer cancel()
		if derr := s.temp.Destroy(dctx, handle); derr != nil {
			s.logger.Warn("temp project left behind; delete it manually",
				zap.String("project", handle.Key), zap.Error(derr))
		}
	}()

	if err := pass(ctx, req, handle, changed, result); err != nil {
		return fail(err)
	}
	return result, nil
}

func (s *CleanupService) validate(req CleanupRequest) error {
	if err := domain.ValidatePatterns(req.Patterns); err != nil {
		return err
	}
	if !s.vcs.IsRepository() {
		return domain.Preconditionf("not inside a version-controlled repository")
	}
	if !s.branches.BranchExists(req.BaseBranch) {
		return domain.Preconditionf("base branch %q does not exist", req.BaseBranch)
	}
	if !s.analysis.Available() {
		return domain.Preconditionf("%s is not installed or not on PATH", s.cfg.Analysis.Scanner)
	}
	if !s.fixer.Tool().Available() {
		return domain.Preconditionf("%s is not installed or not on PATH", s.fixer.Tool().DisplayName())
	}
	return nil
}

func (s *CleanupService) iterate(ctx context.Context, req CleanupRequest, h *domain.TempProjectHandle, changed []string, result *domain.CleanupResult) error {
	changedSet := make(map[string]bool, len(changed))
	for _, f := range changed {
		changedSet[f] = true
	}

	previous := -1
	for i := 1; i <= req.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("cleanup interrupted: %w", err)
		}
		result.Iterations = i
		log := s.logger.With(zap.Int("iteration", i), zap.String("project", h.Key))

		if _, err := s.analysis.Run(ctx, domain.AnalysisRequest{
			ProjectKey:  h.Key,
			ProjectName: h.Name,
			Sources:     changed,
		}); err != nil {
			return fmt.Errorf("analysis in iteration %d: %w", i, err)
		}

		issues, err := s.tracker.IssuesForProject(ctx, h.Key)
		if err != nil {
			return fmt.Errorf("fetching issues in iteration %d: %w", i, err)
		}
		byFile := groupFixableByFile(issues, changedSet)
		observed := 0
		for _, list := range byFile {
			observed += len(list)
		}
		result.Remaining = observed
		s.recorder.ObserveIteration(observed)
		log.Info("analysis complete", zap.Int("issues", observed), zap.Int("files", len(byFile)))

		if observed == 0 {
			result.StopReason = domain.StopConverged
			return nil
		}

		for _, file := range sortedKeys(byFile) {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("cleanup interrupted: %w", err)
			}
			summary, err := s.fixer.FixWithIssues(ctx, FixRequest{
				File:       file,
				ProjectKey: h.Key,
				AssumeYes:  true,
			}, byFile[file])
			if summary != nil {
				result.Absorb(summary)
			}
			if err != nil {
				if ctx.Err() != nil {
					return fmt.Errorf("cleanup interrupted: %w", err)
				}
				result.File(file).Error = err.Error()
				log.Warn("fixing file", zap.String("file", file), zap.Error(err))
			}
		}

		reason := s.stop(domain.CleanupIterationState{
			Iteration:     i,
			Observed:      observed,
			Previous:      previous,
			MaxIterations: req.MaxIterations,
		})
		if reason != "" {
			result.StopReason = reason
			return nil
		}
		previous = observed
	}

	result.StopReason = domain.StopMaxIterations
	return nil
}

func (s *CleanupService) iterateDedupe(ctx context.Context, req CleanupRequest, h *domain.TempProjectHandle, changed []string, result *domain.CleanupResult) error {
	previous := -1
	for i := 1; i <= req.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("dedupe interrupted: %w", err)
		}
		result.Iterations = i
		log := s.logger.With(zap.Int("iteration", i), zap.String("project", h.Key))

		if _, err := s.analysis.Run(ctx, domain.AnalysisRequest{
			ProjectKey:  h.Key,
			ProjectName: h.Name,
			Sources:     changed,
		}); err != nil {
			return fmt.Errorf("analysis in iteration %d: %w", i, err)
		}

		observed := 0
		for _, file := range changed {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("dedupe interrupted: %w", err)
			}
			summary, err := s.fixer.DedupeFile(ctx, DedupeRequest{
				File:       file,
				ProjectKey: h.Key,
				AssumeYes:  true,
			})
			if summary != nil {
				observed += summary.Total
				if summary.Total > 0 {
					result.Absorb(summary)
				}
			}
			switch {
			case err == nil:
			case ctx.Err() != nil:
				return fmt.Errorf("dedupe interrupted: %w", err)
			case errors.Is(err, domain.ErrPrecondition):
				result.File(file).Error = err.Error()
				log.Warn("skipping file", zap.String("file", file), zap.Error(err))
			default:
				return fmt.Errorf("iteration %d: %w", i, err)
			}
		}
		result.Remaining = observed
		s.recorder.ObserveIteration(observed)
		log.Info("deduplication pass complete", zap.Int("duplications", observed))

		if observed == 0 {
			result.StopReason = domain.StopConverged
			return nil
		}

		reason := s.stop(domain.CleanupIterationState{
			Iteration:     i,
			Observed:      observed,
			Previous:      previous,
			MaxIterations: req.MaxIterations,
		})
		if reason != "" {
			result.StopReason = reason
			return nil
		}
		previous = observed
	}

	result.StopReason = domain.StopMaxIterations
	return nil
}

func groupFixableByFile(issues []domain.Issue, changed map[string]bool) map[string][]domain.Issue {
	byFile := make(map[string][]domain.Issue)
	for _, issue := range issues {
		path := issue.FilePath()
		if !changed[path] || !issue.Fixable() {
			continue
		}
		byFile[path] = append(byFile[path], issue)
	}
	return byFile
}

func sortedKeys(m map[string][]domain.Issue) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
