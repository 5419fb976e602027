package aitool

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/vibeheal/vibeheal/internal/domain"
)

var (
	_ domain.AITool = (*Claude)(nil)
	_ domain.AITool = (*Aider)(nil)
	_ domain.AITool = (*Gemini)(nil)
)

// New creates the backend for kind.
func New(kind domain.AIToolKind, cfg domain.Config, workDir string, logger *zap.Logger) (domain.AITool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("aitool")
	switch kind {
	case domain.AIToolClaudeCode:
		return NewClaude(workDir, logger), nil
	case domain.AIToolAider:
		return NewAider(cfg.Aider, workDir, logger), nil
	case domain.AIToolGemini:
		return NewGemini(workDir, logger), nil
	default:
		return nil, fmt.Errorf("%w %q", domain.ErrUnsupportedTool, kind)
	}
}

// Detect returns the first installed tool in ValidAIToolKinds order.
func Detect(cfg domain.Config, workDir string, logger *zap.Logger) (domain.AITool, error) {
	for _, kind := range domain.ValidAIToolKinds {
		tool, err := New(kind, cfg, workDir, logger)
		if err != nil {
			return nil, err
		}
		if tool.Available() {
			return tool, nil
		}
	}
	return nil, fmt.Errorf("%w: install claude, aider or gemini", domain.ErrToolUnavailable)
}

// Resolve honours an explicit override, then the configured tool, then
// auto-detection.
func Resolve(override string, cfg domain.Config, workDir string, logger *zap.Logger) (domain.AITool, error) {
	name := override
	if name == "" {
		name = string(cfg.AITool)
	}
	kind, err := domain.ParseAIToolKind(name)
	if err != nil {
		return nil, err
	}
	if kind == "" {
		return Detect(cfg, workDir, logger)
	}
	return New(kind, cfg, workDir, logger)
}
