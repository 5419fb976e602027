package application

import (
	"context"
	"fmt"
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/vibeheal/vibeheal/internal/domain"
	"github.com/vibeheal/vibeheal/internal/domain/processor"
)

// DedupeRequest describes the removal of duplicated code from one file.
type DedupeRequest struct {
	File       string
	ProjectKey string
	DryRun     bool
	AssumeYes  bool
	// MaxDuplications caps the groups refactored; zero means all.
	MaxDuplications int
}

// DedupeFile fetches the duplication groups req.File takes part in and asks
// the AI tool to refactor each of them, bottom-up, with one commit per group.
// It shares validation, confirmation and the commit path with FixFile.
func (s *FixService) DedupeFile(ctx context.Context, req DedupeRequest) (*domain.RemediationSummary, error) {
	ctx, span := s.tracer.Start(ctx, "dedupe.file", trace.WithAttributes(attribute.String("file", req.File)))
	defer span.End()

	projectKey := s.projectKey(req.ProjectKey)
	var dups *domain.Duplications
	return s.run(ctx, req.File, req.DryRun, req.AssumeYes, workflow{
		fetch: func(ctx context.Context, file string) error {
			if s.dups == nil {
				return domain.Preconditionf("the issue tracker does not report duplications")
			}
			var err error
			dups, err = s.dups.DuplicationsForFile(ctx, projectKey, file)
			if err != nil {
				return fmt.Errorf("fetching duplications for %s: %w", file, err)
			}
			return nil
		},
		plan: func(file string) workload {
			plan := processor.PlanDuplications(dups, projectKey+":"+file, req.MaxDuplications)
			return s.duplicationWorkload(file, dups, plan)
		},
	})
}

func (s *FixService) duplicationWorkload(file string, dups *domain.Duplications, plan domain.DuplicationPlan) workload {
	s.logger.Debug("planned deduplication",
		zap.String("file", file),
		zap.Int("total", plan.Total),
		zap.Int("in_file", plan.InFile),
		zap.Int("planned", plan.Len()))
	if s.onDupPlan != nil {
		s.onDupPlan(file, plan)
	}

	w := workload{total: plan.Total, skipped: plan.Skipped}
	for _, group := range plan.Groups {
		block, _ := group.Block(plan.Ref)
		others := group.Others(plan.Ref)
		locations := make([]string, 0, len(others))
		for _, b := range others {
			locations = append(locations, dups.Location(b))
		}

		w.items = append(w.items, workItem{
			fields: []zap.Field{zap.Int("line", block.From), zap.Int("size", block.Size), zap.Int("copies", len(group.Blocks))},
			prepare: func(context.Context) (domain.FixContext, commitMessage) {
				snippet := DuplicateSnippet(filepath.Join(s.workDir, file), block)
				fc := domain.FixContext{
					File:        file,
					CodeContext: snippet,
					Prompt:      BuildDuplicationPrompt(block, snippet, locations),
				}
				return fc, func(n int) string {
					return domain.DuplicationCommitMessage(block, len(group.Blocks), s.tool.DisplayName(), n)
				}
			},
		})
	}
	return w
}
