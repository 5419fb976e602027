package processor

import (
	"sort"

	"github.com/vibeheal/vibeheal/internal/domain"
)

// PlanDuplications picks the groups of dups that involve componentKey and
// orders them by the starting line of that file's block, highest first,
// ties broken by block size then input order. limit > 0 truncates the plan.
// The input is not modified.
func PlanDuplications(dups *domain.Duplications, componentKey string, limit int) domain.DuplicationPlan {
	if dups == nil {
		return domain.DuplicationPlan{}
	}
	plan := domain.DuplicationPlan{Total: len(dups.Groups)}
	ref := dups.RefFor(componentKey)
	if ref == "" {
		plan.Skipped = plan.Total
		return plan
	}
	plan.Ref = ref

	var kept []domain.DuplicationGroup
	for _, g := range dups.Groups {
		if _, ok := g.Block(ref); ok {
			kept = append(kept, g)
		}
	}
	plan.InFile = len(kept)

	sort.SliceStable(kept, func(i, j int) bool {
		a, _ := kept[i].Block(ref)
		b, _ := kept[j].Block(ref)
		if a.From != b.From {
			return a.From > b.From
		}
		return a.Size > b.Size
	})
	if limit > 0 && len(kept) > limit {
		kept = kept[:limit]
	}

	plan.Groups = kept
	plan.Skipped = plan.Total - len(kept)
	return plan
}
