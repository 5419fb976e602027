package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vibeheal/vibeheal/internal/adapters/outbound/aitool"
	"github.com/vibeheal/vibeheal/internal/adapters/outbound/cache"
	appconfig "github.com/vibeheal/vibeheal/internal/adapters/outbound/config"
	"github.com/vibeheal/vibeheal/internal/adapters/outbound/history"
	"github.com/vibeheal/vibeheal/internal/adapters/outbound/logging"
	"github.com/vibeheal/vibeheal/internal/adapters/outbound/sonarqube"
	"github.com/vibeheal/vibeheal/internal/adapters/outbound/telemetry"
	"github.com/vibeheal/vibeheal/internal/adapters/outbound/vcs"
	"github.com/vibeheal/vibeheal/internal/application"
	"github.com/vibeheal/vibeheal/internal/domain"
)

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configPath  string
	verbose     bool
	logFormat   string
	metricsFile string
	trace       bool
}

// session is the per-invocation state: config, logger, run id and the
// telemetry sinks flushed when the command returns.
type session struct {
	cfg      domain.Config
	workDir  string
	logger   *zap.Logger
	runID    string
	started  time.Time
	metrics  *telemetry.Recorder
	tracer   *telemetry.TracerProvider
	metricsF string
}

// open loads configuration and builds the logger. validate rejects configs
// that cannot reach the server.
func (g *globalOptions) open(cmd *cobra.Command, validate bool) (*session, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolving working directory: %w", err)
	}

	loader := appconfig.New()
	var cfg domain.Config
	if validate {
		cfg, err = loader.LoadValid(wd, g.configPath)
	} else {
		cfg, err = loader.Load(wd, g.configPath)
	}
	if err != nil {
		return nil, err
	}
	if g.logFormat != "" {
		cfg.Log.Format = g.logFormat
	}

	logger, err := logging.NewWithWriter(cfg.Log, g.verbose, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	s := &session{
		cfg:      cfg,
		workDir:  wd,
		runID:    uuid.NewString(),
		started:  time.Now(),
		metricsF: g.metricsFile,
	}
	s.logger = logger.With(zap.String("run_id", s.runID))

	if g.trace {
		tp, err := telemetry.NewTracerProvider(cmd.ErrOrStderr(), version)
		if err != nil {
			return nil, err
		}
		s.tracer = tp
	}
	return s, nil
}

// recorder returns the metrics sink for tool, or nil when --metrics-file is unset.
func (s *session) recorder(tool domain.AIToolKind) domain.FixRecorder {
	if s.metricsF == "" {
		return nil
	}
	if s.metrics == nil {
		s.metrics = telemetry.NewRecorder(string(tool))
	}
	return s.metrics
}

// saveRun appends rec to the run history under dir. Failures are logged only.
func (s *session) saveRun(dir string, rec domain.RunRecord, runErr error) {
	rec.Duration = time.Since(s.started).Round(time.Millisecond)
	if runErr != nil && rec.Error == "" {
		rec.Error = runErr.Error()
	}
	if err := history.New().Save(dir, rec); err != nil {
		s.logger.Warn("saving run history", zap.Error(err))
	}
}

func (s *session) close(ctx context.Context) {
	if s.metrics != nil {
		if err := s.metrics.WriteTextfile(s.metricsF); err != nil {
			s.logger.Warn("writing metrics", zap.Error(err))
		}
	}
	if s.tracer != nil {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.tracer.Shutdown(sctx); err != nil {
			s.logger.Debug("flushing traces", zap.Error(err))
		}
	}
	_ = s.logger.Sync()
}

// remediation bundles the adapters the fix and cleanup commands share.
type remediation struct {
	client  *sonarqube.Client
	tool    domain.AITool
	repo    vcs.Backend
	vcsKind vcs.Kind
	root    string
	rules   *application.RuleResolver
}

// wire resolves the VCS backend, repository root and AI tool.
func (s *session) wire(toolOverride string) (*remediation, error) {
	repo, kind := vcs.Open(s.workDir, s.logger)
	root := repoRoot(repo, s.workDir)

	tool, err := aitool.Resolve(toolOverride, s.cfg, root, s.logger)
	if err != nil {
		return nil, err
	}

	client := sonarqube.New(s.cfg.SonarQube, s.cfg.HTTP, s.logger)
	s.logger.Debug("wired adapters",
		zap.String("vcs", string(kind)),
		zap.String("root", root),
		zap.String("tool", string(tool.Kind())),
		zap.String("server", client.BaseURL()))

	return &remediation{
		client:  client,
		tool:    tool,
		repo:    repo,
		vcsKind: kind,
		root:    root,
		rules:   application.NewRuleResolver(client, cache.New(), root, s.cfg.SonarQube.URL, s.logger),
	}, nil
}

// repoRoot returns the repository root, falling back to dir outside a repository.
func repoRoot(repo any, dir string) string {
	if r, ok := repo.(interface{ Root() (string, error) }); ok {
		if root, err := r.Root(); err == nil && root != "" {
			return resolvePath(root)
		}
	}
	return resolvePath(dir)
}

// resolvePath makes p absolute with symlinks evaluated, so paths from the
// shell and from the VCS compare equal.
func resolvePath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		return real
	}
	return abs
}
