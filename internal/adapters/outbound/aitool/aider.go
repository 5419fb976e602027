package aitool

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/vibeheal/vibeheal/internal/domain"
)

// Aider runs aider non-interactively without letting it touch git; commits
// stay with vibeheal.
type Aider struct {
	cli
	cfg domain.AiderConfig
}

// NewAider creates the Aider backend. APIKey and APIBase are passed through
// as OLLAMA_API_KEY and OLLAMA_API_BASE.
func NewAider(cfg domain.AiderConfig, workDir string, logger *zap.Logger) *Aider {
	return &Aider{cli: newCLI("aider", workDir, logger), cfg: cfg}
}

func (a *Aider) Kind() domain.AIToolKind { return domain.AIToolAider }
func (a *Aider) DisplayName() string     { return "Aider" }
func (a *Aider) Available() bool         { return a.available() }

// Fix passes the prompt inline and always reports the target file as the
// only modified file.
func (a *Aider) Fix(ctx context.Context, fc domain.FixContext) domain.FixAttemptResult {
	if res, ok := a.precheck(a.DisplayName(), fc); !ok {
		return res
	}
	start := time.Now()
	out, err := a.run(ctx, a.env(), a.args(fc)...)
	return a.result(ctx, a.DisplayName(), start, out, err, func(string) []string {
		return []string{fc.File}
	})
}

func (a *Aider) args(fc domain.FixContext) []string {
	args := []string{"--yes", "--no-git", "--message", fc.Prompt, fc.File}
	if a.cfg.Model != "" {
		args = append(args, "--model", a.cfg.Model)
	}
	return args
}

func (a *Aider) env() []string {
	var env []string
	if a.cfg.APIKey != "" {
		env = append(env, "OLLAMA_API_KEY="+a.cfg.APIKey)
	}
	if a.cfg.APIBase != "" {
		env = append(env, "OLLAMA_API_BASE="+a.cfg.APIBase)
	}
	return env
}
