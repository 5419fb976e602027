// Package analysis runs sonar-scanner and waits for the server to finish
// processing the report.
package analysis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"go.uber.org/zap"

	"github.com/vibeheal/vibeheal/internal/adapters/outbound/sonarqube"
	"github.com/vibeheal/vibeheal/internal/domain"
)

const (
	taskMarker     = "api/ce/task?id="
	maxOutputTail  = 500
	redactedSecret = "***"
)

var _ domain.AnalysisRunner = (*Runner)(nil)

// TaskSource reads compute engine task state.
type TaskSource interface {
	Task(ctx context.Context, id string) (*sonarqube.Task, error)
}

// Runner implements domain.AnalysisRunner on top of the sonar-scanner CLI.
type Runner struct {
	sq      domain.SonarQubeConfig
	cfg     domain.AnalysisConfig
	workDir string
	tasks   TaskSource
	logger  *zap.Logger
}

// New creates a runner that scans workDir.
func New(sq domain.SonarQubeConfig, cfg domain.AnalysisConfig, workDir string, tasks TaskSource, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Scanner == "" {
		cfg.Scanner = "sonar-scanner"
	}
	return &Runner{sq: sq, cfg: cfg, workDir: workDir, tasks: tasks, logger: logger.Named("analysis")}
}

// Available reports whether the scanner binary can be found.
func (r *Runner) Available() bool {
	_, err := exec.LookPath(r.cfg.Scanner)
	return err == nil
}

// Run executes the scanner for req and blocks until the server-side task
// succeeds, fails or the configured timeout elapses.
func (r *Runner) Run(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResult, error) {
	start := time.Now()
	args := ScannerArgs(r.sq, req)
	r.logger.Info("running scanner",
		zap.String("project", req.ProjectKey),
		zap.Int("sources", len(req.Sources)),
		zap.Strings("args", redactArgs(args)),
	)

	cmd := exec.CommandContext(ctx, r.cfg.Scanner, args...)
	cmd.Dir = r.workDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		out := stderr.String()
		if strings.TrimSpace(out) == "" {
			out = stdout.String()
		}
		return nil, fmt.Errorf("%w: %s failed: %v: %s", domain.ErrAnalysis, r.cfg.Scanner, err, tail(out, maxOutputTail))
	}

	taskID := ExtractTaskID(stdout.String())
	if taskID == "" {
		r.logger.Debug("scanner output without task id", zap.String("output", stdout.String()))
		return nil, fmt.Errorf("%w: could not find task id in scanner output", domain.ErrAnalysis)
	}
	r.logger.Debug("waiting for task", zap.String("task", taskID))

	task, err := r.waitForTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	res := &domain.AnalysisResult{TaskID: taskID, Status: string(task.Status), Duration: time.Since(start)}
	r.logger.Info("analysis finished",
		zap.String("project", req.ProjectKey),
		zap.String("task", taskID),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

// errTaskPending signals a task that has not reached a terminal state yet.
var errTaskPending = errors.New("task pending")

// taskFailedError is a terminal FAILED or CANCELED task.
type taskFailedError struct{ task *sonarqube.Task }

func (e *taskFailedError) Error() string {
	msg := fmt.Sprintf("task %s ended with status %s", e.task.ID, e.task.Status)
	if e.task.ErrorMessage != "" {
		msg += ": " + e.task.ErrorMessage
	}
	return msg
}

// waitForTask polls the task at the configured interval. Transient API
// errors are logged and polling continues.
func (r *Runner) waitForTask(ctx context.Context, id string) (*sonarqube.Task, error) {
	pollCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	attempts := uint(r.cfg.Timeout/r.cfg.PollInterval) + 1
	var (
		last       *sonarqube.Task
		lastStatus sonarqube.TaskStatus
	)
	err := retry.Do(
		func() error {
			task, err := r.tasks.Task(pollCtx, id)
			if err != nil {
				return err
			}
			last = task
			if task.Status != lastStatus {
				r.logger.Debug("task status", zap.String("task", id), zap.String("status", string(task.Status)))
				lastStatus = task.Status
			}
			switch {
			case task.Status == sonarqube.TaskSuccess:
				return nil
			case task.Status.Done():
				return &taskFailedError{task: task}
			default:
				return errTaskPending
			}
		},
		retry.Context(pollCtx),
		retry.Attempts(attempts),
		retry.Delay(r.cfg.PollInterval),
		retry.MaxDelay(r.cfg.PollInterval),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			if !errors.Is(err, errTaskPending) {
				r.logger.Warn("polling task failed", zap.String("task", id), zap.Uint("attempt", n+1), zap.Error(err))
			}
		}),
		retry.RetryIf(func(err error) bool {
			var failed *taskFailedError
			return !errors.As(err, &failed) && !errors.Is(err, domain.ErrAuth)
		}),
	)

	var failed *taskFailedError
	switch {
	case err == nil:
		return last, nil
	case errors.As(err, &failed):
		return nil, fmt.Errorf("%w: %s", domain.ErrAnalysis, failed.Error())
	case errors.Is(err, domain.ErrAuth):
		return nil, err
	case ctx.Err() != nil:
		return nil, ctx.Err()
	default:
		return nil, fmt.Errorf("%w: task %s not finished after %s", domain.ErrAnalysisTimeout, id, r.cfg.Timeout)
	}
}

// ScannerArgs builds the sonar-scanner arguments for req. Without explicit
// sources the whole working directory is analysed.
func ScannerArgs(sq domain.SonarQubeConfig, req domain.AnalysisRequest) []string {
	name := req.ProjectName
	if name == "" {
		name = req.ProjectKey
	}
	args := []string{
		"-Dsonar.projectKey=" + req.ProjectKey,
		"-Dsonar.projectName=" + name,
		"-Dsonar.host.url=" + sq.URL,
	}
	if sq.UsesToken() {
		args = append(args, "-Dsonar.token="+sq.Token)
	} else {
		args = append(args, "-Dsonar.login="+sq.Username, "-Dsonar.password="+sq.Password)
	}
	sources := "."
	if len(req.Sources) > 0 {
		sources = strings.Join(req.Sources, ",")
	}
	return append(args, "-Dsonar.sources="+sources)
}

// ExtractTaskID finds the compute engine task id in scanner output, which
// ends with a line like "More about the report processing at
// https://host/api/ce/task?id=AY...".
func ExtractTaskID(output string) string {
	for _, line := range strings.Split(output, "\n") {
		_, after, ok := strings.Cut(line, taskMarker)
		if !ok {
			continue
		}
		if fields := strings.Fields(after); len(fields) > 0 {
			return fields[0]
		}
	}
	return ""
}

func redactArgs(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		for _, secret := range []string{"-Dsonar.token=", "-Dsonar.password="} {
			if strings.HasPrefix(a, secret) {
				a = secret + redactedSecret
			}
		}
		out[i] = a
	}
	return out
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
