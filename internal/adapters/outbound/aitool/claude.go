package aitool

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/vibeheal/vibeheal/internal/domain"
)

// Claude runs Claude Code in print mode with edit permissions limited to
// Edit and Read.
type Claude struct {
	cli
}

// NewClaude creates the Claude Code backend.
func NewClaude(workDir string, logger *zap.Logger) *Claude {
	return &Claude{cli: newCLI("claude", workDir, logger)}
}

func (c *Claude) Kind() domain.AIToolKind { return domain.AIToolClaudeCode }
func (c *Claude) DisplayName() string     { return "Claude Code" }
func (c *Claude) Available() bool         { return c.available() }

// Fix writes the prompt to a temp file and asks Claude to implement it.
func (c *Claude) Fix(ctx context.Context, fc domain.FixContext) domain.FixAttemptResult {
	if res, ok := c.precheck(c.DisplayName(), fc); !ok {
		return res
	}
	start := time.Now()
	promptFile, err := writePromptFile("", fc.Prompt)
	if err != nil {
		return domain.FixAttemptResult{Error: err.Error(), Duration: time.Since(start)}
	}
	defer os.Remove(promptFile)

	out, err := c.run(ctx, nil,
		"--print", "Please implement the changes specified in "+promptFile,
		"--output-format", "json",
		"--permission-mode", "acceptEdits",
		"--allowedTools", "Edit,Read",
	)
	return c.result(ctx, c.DisplayName(), start, out, err, func(stdout string) []string {
		return ParseClaudeFiles(stdout, fc.File)
	})
}
