package processor

import (
	"sort"

	"github.com/vibeheal/vibeheal/internal/domain"
)

// Plan turns the raw issue list of one file into the ordered set the engine
// will attempt. It is pure: the input slice is never modified.
//
// Issues that are not fixable or rank below opts.MinSeverity are dropped.
// The rest are ordered by Order, highest line first, so fixing one never
// shifts the line of an issue still waiting in the plan. The result is
// truncated to opts.MaxIssues when set.
func Plan(issues []domain.Issue, opts domain.PlanOptions) domain.FixPlan {
	plan := domain.FixPlan{Total: len(issues)}

	var kept []domain.Issue
	for _, issue := range issues {
		if !issue.Fixable() {
			continue
		}
		plan.Fixable++
		if opts.MinSeverity != nil && !issue.Severity.AtLeast(*opts.MinSeverity) {
			continue
		}
		kept = append(kept, issue)
	}

	ordered := Order(kept)
	if opts.MaxIssues != nil {
		limit := *opts.MaxIssues
		if limit < 0 {
			limit = 0
		}
		if len(ordered) > limit {
			ordered = ordered[:limit]
		}
	}

	plan.Issues = ordered
	plan.Skipped = plan.Total - len(plan.Issues)
	return plan
}

// Order returns a copy of issues with line-bearing issues first, highest
// line first, ties broken by rule then key. Issues without a line follow in
// their input order.
func Order(issues []domain.Issue) []domain.Issue {
	var withLine, withoutLine []domain.Issue
	for _, issue := range issues {
		if issue.Line != nil {
			withLine = append(withLine, issue)
		} else {
			withoutLine = append(withoutLine, issue)
		}
	}

	sort.SliceStable(withLine, func(i, j int) bool {
		a, b := withLine[i], withLine[j]
		if *a.Line != *b.Line {
			return *a.Line > *b.Line
		}
		if a.Rule != b.Rule {
			return a.Rule < b.Rule
		}
		return a.Key < b.Key
	})

	return append(withLine, withoutLine...)
}

// Options builds PlanOptions from CLI-style values where zero means unset.
func Options(minSeverity domain.Severity, maxIssues int, maxSet bool) domain.PlanOptions {
	var opts domain.PlanOptions
	if minSeverity != "" {
		sev := minSeverity
		opts.MinSeverity = &sev
	}
	if maxSet {
		n := maxIssues
		opts.MaxIssues = &n
	}
	return opts
}
