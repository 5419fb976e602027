package application

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/vibeheal/vibeheal/internal/domain"
	"github.com/vibeheal/vibeheal/internal/domain/processor"
)

const tracerName = "github.com/vibeheal/vibeheal/internal/application"

// FixRequest describes one single-file remediation.
type FixRequest struct {
	File        string
	ProjectKey  string
	DryRun      bool
	AssumeYes   bool
	MinSeverity domain.Severity
	MaxIssues   *int
}

func (r FixRequest) planOptions() domain.PlanOptions {
	opts := processor.Options(r.MinSeverity, 0, false)
	opts.MaxIssues = r.MaxIssues
	return opts
}

// FixService runs the single-file workflow:
// validate → fetch → plan → confirm → fix and commit each issue.
type FixService struct {
	tracker   domain.IssueTracker
	dups      domain.DuplicationSource
	tool      domain.AITool
	vcs       domain.VCS
	confirmer domain.Confirmer
	recorder  domain.FixRecorder
	rules     *RuleResolver
	cfg       domain.Config
	workDir   string
	logger    *zap.Logger
	tracer    trace.Tracer
	onState   func(domain.EngineState)
	onPlan    func(file string, plan domain.FixPlan)
	onDupPlan func(file string, plan domain.DuplicationPlan)
}

// FixOption customizes a FixService.
type FixOption func(*FixService)

// WithConfirmer sets the interactive confirmation step. Without one every
// plan is treated as approved.
func WithConfirmer(c domain.Confirmer) FixOption { return func(s *FixService) { s.confirmer = c } }

// WithRecorder attaches a metrics sink.
func WithRecorder(r domain.FixRecorder) FixOption { return func(s *FixService) { s.recorder = r } }

// WithRuleResolver shares a rule resolver, typically one backed by the disk cache.
func WithRuleResolver(r *RuleResolver) FixOption { return func(s *FixService) { s.rules = r } }

// WithWorkDir sets the repository root relative paths are resolved against.
func WithWorkDir(dir string) FixOption { return func(s *FixService) { s.workDir = dir } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) FixOption { return func(s *FixService) { s.logger = l } }

// WithPlanHook receives the plan before confirmation, so callers can show it.
func WithPlanHook(fn func(file string, plan domain.FixPlan)) FixOption {
	return func(s *FixService) { s.onPlan = fn }
}

// WithDuplicationSource sets where DedupeFile reads duplications from. It
// defaults to the tracker when the tracker reports duplications itself.
func WithDuplicationSource(d domain.DuplicationSource) FixOption {
	return func(s *FixService) { s.dups = d }
}

// WithDuplicationPlanHook receives the duplication plan before confirmation.
func WithDuplicationPlanHook(fn func(file string, plan domain.DuplicationPlan)) FixOption {
	return func(s *FixService) { s.onDupPlan = fn }
}

// WithStateHook is called on every engine state transition.
func WithStateHook(fn func(domain.EngineState)) FixOption {
	return func(s *FixService) { s.onState = fn }
}

func NewFixService(tracker domain.IssueTracker, tool domain.AITool, vcs domain.VCS, cfg domain.Config, opts ...FixOption) *FixService {
	s := &FixService{
		tracker: tracker,
		tool:    tool,
		vcs:     vcs,
		cfg:     cfg,
		workDir: ".",
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.recorder == nil {
		s.recorder = nopRecorder{}
	}
	if s.dups == nil {
		if d, ok := tracker.(domain.DuplicationSource); ok {
			s.dups = d
		}
	}
	if s.rules == nil {
		s.rules = NewRuleResolver(tracker, nil, s.workDir, cfg.SonarQube.URL, s.logger)
	}
	return s
}

// Tool returns the AI tool the service drives.
func (s *FixService) Tool() domain.AITool { return s.tool }

// FixFile fetches the open issues of req.File from the tracker and fixes them.
func (s *FixService) FixFile(ctx context.Context, req FixRequest) (*domain.RemediationSummary, error) {
	ctx, span := s.tracer.Start(ctx, "fix.file", trace.WithAttributes(attribute.String("file", req.File)))
	defer span.End()

	var issues []domain.Issue
	return s.run(ctx, req.File, req.DryRun, req.AssumeYes, workflow{
		fetch: func(ctx context.Context, file string) error {
			var err error
			issues, err = s.tracker.IssuesForFile(ctx, s.projectKey(req.ProjectKey), file)
			if err != nil {
				return fmt.Errorf("fetching issues for %s: %w", file, err)
			}
			return nil
		},
		plan: func(file string) workload {
			return s.issueWorkload(file, processor.Plan(issues, req.planOptions()))
		},
	})
}

// FixWithIssues runs the same workflow against an issue set the caller already
// holds, skipping the tracker query.
func (s *FixService) FixWithIssues(ctx context.Context, req FixRequest, issues []domain.Issue) (*domain.RemediationSummary, error) {
	ctx, span := s.tracer.Start(ctx, "fix.issues", trace.WithAttributes(
		attribute.String("file", req.File),
		attribute.Int("issues", len(issues)),
	))
	defer span.End()

	return s.run(ctx, req.File, req.DryRun, req.AssumeYes, workflow{
		fetch: func(context.Context, string) error { return nil },
		plan: func(file string) workload {
			return s.issueWorkload(file, processor.Plan(issues, req.planOptions()))
		},
	})
}

func (s *FixService) projectKey(key string) string {
	if key == "" {
		return s.cfg.SonarQube.ProjectKey
	}
	return key
}

// workItem is one unit of remediation: an issue or a duplication group.
// prepare runs right before the tool, so the code it quotes reflects the
// edits of earlier items.
type workItem struct {
	fields  []zap.Field
	prepare func(ctx context.Context) (domain.FixContext, commitMessage)
}

// commitMessage renders the commit message once the number of modified
// files is known.
type commitMessage func(filesModified int) string

type workload struct {
	total   int
	skipped int
	items   []workItem
}

// workflow supplies the fetch and plan steps of a run. fetch may keep state
// for plan in its closure.
type workflow struct {
	fetch func(ctx context.Context, file string) error
	plan  func(file string) workload
}

func (s *FixService) issueWorkload(file string, plan domain.FixPlan) workload {
	s.logger.Debug("planned fixes",
		zap.String("file", file),
		zap.Int("total", plan.Total),
		zap.Int("fixable", plan.Fixable),
		zap.Int("planned", plan.Len()))
	if s.onPlan != nil {
		s.onPlan(file, plan)
	}

	w := workload{total: plan.Total, skipped: plan.Skipped}
	for _, issue := range plan.Issues {
		w.items = append(w.items, workItem{
			fields: []zap.Field{zap.String("issue", issue.Key), zap.String("rule", issue.Rule), zap.Int("line", issue.LineNumber())},
			prepare: func(ctx context.Context) (domain.FixContext, commitMessage) {
				rule := s.rules.Lookup(ctx, issue.Rule)
				codeContext := CodeContext(filepath.Join(s.workDir, file), issue.LineNumber(), s.cfg.Fix.CodeContextLines)
				fc := domain.FixContext{
					Issue:       issue,
					File:        file,
					Rule:        rule,
					CodeContext: codeContext,
					Prompt:      BuildPrompt(issue, file, rule, codeContext, s.cfg.Fix.IncludeRuleDescription),
				}
				return fc, func(n int) string { return domain.CommitMessage(issue, rule, s.tool.DisplayName(), n) }
			},
		})
	}
	return w
}

func (s *FixService) run(ctx context.Context, target string, dryRun, assumeYes bool, wf workflow) (*domain.RemediationSummary, error) {
	s.setState(domain.StateIdle)
	file := s.relPath(target)
	log := s.logger.With(zap.String("file", file))

	s.setState(domain.StateValidating)
	if err := s.validate(file, dryRun); err != nil {
		s.setState(domain.StateAborted)
		return nil, err
	}

	s.setState(domain.StateFetching)
	if err := wf.fetch(ctx, file); err != nil {
		s.setState(domain.StateAborted)
		return nil, err
	}

	s.setState(domain.StatePlanning)
	work := wf.plan(file)

	summary := &domain.RemediationSummary{
		File:    file,
		Total:   work.total,
		Skipped: work.skipped,
		Commits: []string{},
		Outcome: domain.OutcomeCompleted,
		DryRun:  dryRun,
	}
	if len(work.items) == 0 {
		summary.Outcome = domain.OutcomeNoIssues
		s.setState(domain.StateDone)
		return summary, nil
	}

	if !assumeYes && !dryRun && s.confirmer != nil {
		s.setState(domain.StateAwaitingConfirmation)
		ok, err := s.confirmer.Confirm(ctx, len(work.items))
		if err != nil {
			s.setState(domain.StateAborted)
			return nil, fmt.Errorf("confirming plan: %w", err)
		}
		if !ok {
			summary.Outcome = domain.OutcomeDeclined
			summary.Skipped += len(work.items)
			s.setState(domain.StateAborted)
			return summary, nil
		}
	}

	s.setState(domain.StateFixing)
	for i, item := range work.items {
		if err := ctx.Err(); err != nil {
			remaining := len(work.items) - i
			summary.Skipped += remaining
			s.setState(domain.StateAborted)
			log.Warn("remediation interrupted", zap.Int("remaining", remaining))
			return summary, fmt.Errorf("fixing %s: %w", file, err)
		}
		s.fixOne(ctx, log.With(item.fields...), file, item, dryRun, summary)
	}

	if err := s.rules.Flush(); err != nil {
		log.Debug("saving rule cache", zap.Error(err))
	}
	s.setState(domain.StateDone)
	return summary, nil
}

func (s *FixService) validate(file string, dryRun bool) error {
	if !s.vcs.IsRepository() {
		return domain.Preconditionf("%s is not inside a version-controlled repository", s.workDir)
	}
	if _, err := os.Stat(filepath.Join(s.workDir, file)); err != nil {
		return domain.Preconditionf("file not found: %s", file)
	}
	if !dryRun {
		clean, err := s.vcs.IsClean(file)
		if err != nil {
			return fmt.Errorf("checking working tree: %w", err)
		}
		if !clean {
			return domain.Preconditionf("%s has uncommitted changes; commit or stash them first", file)
		}
	}
	if !s.tool.Available() {
		return domain.Preconditionf("%s is not installed or not on PATH", s.tool.DisplayName())
	}
	return nil
}

func (s *FixService) fixOne(ctx context.Context, log *zap.Logger, file string, item workItem, dryRun bool, summary *domain.RemediationSummary) {
	fc, message := item.prepare(ctx)

	// In-flight edits and commits run to completion even after an interrupt.
	toolCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Fix.Timeout)
	start := time.Now()
	res := s.tool.Fix(toolCtx, fc)
	cancel()
	elapsed := time.Since(start)

	if !res.Success {
		summary.Failed++
		s.recorder.ObserveFix("failed", elapsed)
		log.Warn("fix attempt failed", zap.String("error", res.Error), zap.Duration("took", elapsed))
		return
	}

	if dryRun {
		summary.Fixed++
		s.recorder.ObserveFix("dry-run", elapsed)
		log.Info("fix applied (dry run, not committed)", zap.Duration("took", elapsed))
		return
	}

	files := res.FilesModified
	if len(files) == 0 {
		files = []string{file}
	}
	msg := message(len(files))

	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
	sha, err := s.vcs.Commit(commitCtx, files, msg)
	cancel()

	switch {
	case errors.Is(err, domain.ErrNothingToCommit):
		summary.Fixed++
		s.recorder.ObserveFix("fixed", elapsed)
		log.Warn("tool reported success but changed nothing", zap.Strings("files", files))
	case err != nil:
		summary.Failed++
		s.recorder.ObserveFix("commit-failed", elapsed)
		log.Error("committing fix", zap.Error(err))
	default:
		summary.Fixed++
		summary.Commits = append(summary.Commits, sha)
		s.recorder.ObserveFix("fixed", elapsed)
		s.recorder.ObserveCommit()
		log.Info("fix committed", zap.String("commit", shortSHA(sha)), zap.Duration("took", elapsed))
	}
}

func (s *FixService) relPath(file string) string {
	if filepath.IsAbs(file) {
		root, err := filepath.Abs(s.workDir)
		if err == nil {
			if rel, err := filepath.Rel(root, file); err == nil {
				file = rel
			}
		}
	}
	return filepath.ToSlash(filepath.Clean(file))
}

func (s *FixService) setState(st domain.EngineState) {
	if s.onState != nil {
		s.onState(st)
	}
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}

type nopRecorder struct{}

func (nopRecorder) ObserveFix(string, time.Duration) {}
func (nopRecorder) ObserveCommit()                   {}
func (nopRecorder) ObserveIteration(int)             {}
