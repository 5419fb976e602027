package aitool

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/vibeheal/vibeheal/internal/domain"
)

// Gemini runs the Gemini CLI with auto-approved edits. The CLI only reads
// files inside its working directory, so the prompt file is written there.
type Gemini struct {
	cli
}

// NewGemini creates the Gemini CLI backend.
func NewGemini(workDir string, logger *zap.Logger) *Gemini {
	return &Gemini{cli: newCLI("gemini", workDir, logger)}
}

func (g *Gemini) Kind() domain.AIToolKind { return domain.AIToolGemini }
func (g *Gemini) DisplayName() string     { return "Gemini CLI" }
func (g *Gemini) Available() bool         { return g.available() }

func (g *Gemini) Fix(ctx context.Context, fc domain.FixContext) domain.FixAttemptResult {
	if res, ok := g.precheck(g.DisplayName(), fc); !ok {
		return res
	}
	start := time.Now()
	promptFile, err := writePromptFile(g.workDir, fc.Prompt)
	if err != nil {
		return domain.FixAttemptResult{Error: err.Error(), Duration: time.Since(start)}
	}
	defer os.Remove(promptFile)

	out, err := g.run(ctx, nil,
		`Please implement the changes specified in "`+filepath.Base(promptFile)+`"`,
		"--output-format", "json",
		"--approval-mode", "auto_edit",
	)
	return g.result(ctx, g.DisplayName(), start, out, err, func(stdout string) []string {
		return ParseGeminiFiles(stdout, fc.File)
	})
}
