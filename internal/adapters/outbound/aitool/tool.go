// Package aitool drives external AI coding CLIs (Claude Code, Aider, Gemini)
// to edit a file so that one issue goes away.
package aitool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vibeheal/vibeheal/internal/domain"
)

const (
	maxErrorOutput = 500
	waitDelay      = 2 * time.Second
)

// cli holds what every tool backend shares: the binary, the directory it
// runs in and a logger.
type cli struct {
	binary  string
	workDir string
	logger  *zap.Logger
}

func newCLI(binary, workDir string, logger *zap.Logger) cli {
	if logger == nil {
		logger = zap.NewNop()
	}
	if workDir == "" {
		workDir = "."
	}
	return cli{binary: binary, workDir: workDir, logger: logger}
}

func (c cli) available() bool {
	_, err := exec.LookPath(c.binary)
	return err == nil
}

type cmdResult struct {
	stdout string
	stderr string
}

// run executes the binary in the work directory. extraEnv entries are
// appended to the current environment.
func (c cli) run(ctx context.Context, extraEnv []string, args ...string) (cmdResult, error) {
	cmd := exec.CommandContext(ctx, c.binary, args...)
	cmd.Dir = c.workDir
	cmd.WaitDelay = waitDelay
	if len(extraEnv) > 0 {
		cmd.Env = append(os.Environ(), extraEnv...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return cmdResult{stdout: stdout.String(), stderr: stderr.String()}, err
}

// precheck returns a failed result when the tool cannot run or the target
// file is missing.
func (c cli) precheck(name string, fc domain.FixContext) (domain.FixAttemptResult, bool) {
	if !c.available() {
		return domain.FixAttemptResult{Error: fmt.Sprintf("%s CLI not found in PATH (%s)", name, c.binary)}, false
	}
	if _, err := os.Stat(filepath.Join(c.workDir, fc.File)); err != nil {
		return domain.FixAttemptResult{Error: "file not found: " + fc.File}, false
	}
	return domain.FixAttemptResult{}, true
}

// result converts a finished command into a FixAttemptResult. parse maps
// successful stdout to the list of modified files.
func (c cli) result(ctx context.Context, name string, start time.Time, out cmdResult, err error, parse func(string) []string) domain.FixAttemptResult {
	res := domain.FixAttemptResult{Output: out.stdout, Duration: time.Since(start)}
	switch {
	case err == nil:
		res.Success = true
		res.FilesModified = parse(out.stdout)
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.Error = fmt.Sprintf("%s timed out after %s", name, res.Duration.Round(time.Second))
	case ctx.Err() != nil:
		res.Error = fmt.Sprintf("%s interrupted: %v", name, ctx.Err())
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.Error = fmt.Sprintf("%s failed with exit code %d: %s", name, exitErr.ExitCode(), truncate(out.stderr))
		} else {
			res.Error = fmt.Sprintf("invoking %s: %v", name, err)
		}
	}
	c.logger.Debug("tool finished",
		zap.String("tool", name),
		zap.Bool("success", res.Success),
		zap.Strings("files", res.FilesModified),
		zap.Duration("took", res.Duration),
	)
	return res
}

// writePromptFile stores the prompt in a temp file inside dir and returns
// its path. The caller removes it.
func writePromptFile(dir, prompt string) (string, error) {
	f, err := os.CreateTemp(dir, "vibeheal-prompt-*.txt")
	if err != nil {
		return "", fmt.Errorf("creating prompt file: %w", err)
	}
	if _, err := f.WriteString(prompt); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("writing prompt file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("closing prompt file: %w", err)
	}
	return f.Name(), nil
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxErrorOutput {
		return s[:maxErrorOutput] + "..."
	}
	return s
}
