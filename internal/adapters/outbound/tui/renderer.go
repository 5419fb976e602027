package tui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/vibeheal/vibeheal/internal/domain"
)

// ── warm palette ──
var (
	accent    = lipgloss.Color("#D97706") // amber
	fg        = lipgloss.Color("#E8E6E3") // warm light gray
	dim       = lipgloss.Color("#6B7280") // muted gray
	faint     = lipgloss.Color("#3F3F46") // very dim
	success   = lipgloss.Color("#22C55E") // green
	danger    = lipgloss.Color("#EF4444") // red
	warning   = lipgloss.Color("#F59E0B") // amber-yellow
	info      = lipgloss.Color("#8B949E") // soft blue-gray
	skipColor = lipgloss.Color("#4B5563") // dark gray
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accent).
			Align(lipgloss.Center)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(1, 4).
			Align(lipgloss.Center).
			Width(68)

	severityColors = map[domain.Severity]lipgloss.Color{
		domain.SeverityBlocker:  danger,
		domain.SeverityCritical: lipgloss.Color("#FB923C"), // orange
		domain.SeverityMajor:    warning,
		domain.SeverityMinor:    info,
		domain.SeverityInfo:     dim,
	}

	dimStyle      = lipgloss.NewStyle().Foreground(dim)
	faintStyle    = lipgloss.NewStyle().Foreground(faint)
	passStyle     = lipgloss.NewStyle().Foreground(success)
	failStyle     = lipgloss.NewStyle().Foreground(danger)
	warnStyle     = lipgloss.NewStyle().Foreground(warning)
	skipStyle     = lipgloss.NewStyle().Foreground(skipColor)
	fileStyle     = lipgloss.NewStyle().Foreground(dim)
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(fg)
	keyStyle      = lipgloss.NewStyle().Bold(true).Foreground(fg)
	hintStyle     = lipgloss.NewStyle().Foreground(dim).Italic(true)
	separatorLine = faintStyle.Render(strings.Repeat("─", 64))
)

// RenderPlan lists the issues about to be fixed, in execution order.
func RenderPlan(file string, plan domain.FixPlan, tool string, dryRun bool) string {
	var b strings.Builder

	title := headerStyle.Render("vibeheal")
	subtitle := dimStyle.Render(shortenPath(file))
	counts := fmt.Sprintf("%d to fix  ·  %d fixable  ·  %d found", plan.Len(), plan.Fixable, plan.Total)
	if dryRun {
		counts += "  ·  " + warnStyle.Render("dry run")
	}
	b.WriteString(boxStyle.Render(title + "\n" + subtitle + "\n\n" + titleStyle.Render(counts)))
	b.WriteString("\n\n")

	if plan.Len() == 0 {
		b.WriteString("  " + passStyle.Render("No fixable issues found.") + "\n")
		return b.String()
	}

	for i, issue := range plan.Issues {
		renderIssueLine(&b, i+1, issue)
	}

	if tool != "" {
		b.WriteString("\n  " + hintStyle.Render("Fixes will be applied with "+tool+", one commit per issue.") + "\n")
	}
	return b.String()
}

// RenderDuplicationPlan shows the duplicated blocks of file that will be
// refactored, in order.
func RenderDuplicationPlan(file string, plan domain.DuplicationPlan, tool string, dryRun bool) string {
	var b strings.Builder

	title := headerStyle.Render("vibeheal dedupe")
	subtitle := dimStyle.Render(shortenPath(file))
	counts := fmt.Sprintf("%d to refactor  ·  %d in file  ·  %d found", plan.Len(), plan.InFile, plan.Total)
	if dryRun {
		counts += "  ·  " + warnStyle.Render("dry run")
	}
	b.WriteString(boxStyle.Render(title + "\n" + subtitle + "\n\n" + titleStyle.Render(counts)))
	b.WriteString("\n\n")

	if plan.Len() == 0 {
		b.WriteString("  " + passStyle.Render("No duplicated code found.") + "\n")
		return b.String()
	}

	for i, g := range plan.Groups {
		block, _ := g.Block(plan.Ref)
		fmt.Fprintf(&b, "  %s %s %s\n",
			faintStyle.Render(fmt.Sprintf("%2d.", i+1)),
			dimStyle.Render(padRight(fmt.Sprintf("L%d-%d", block.From, block.To()), 10)),
			fmt.Sprintf("%d lines, %d copies", block.Size, len(g.Blocks)))
	}

	if tool != "" {
		b.WriteString("\n  " + hintStyle.Render("Refactors will be applied with "+tool+", one commit per duplication.") + "\n")
	}
	return b.String()
}

// RenderIssues lists issues grouped by file, highest severity first.
func RenderIssues(issues []domain.Issue) string {
	if len(issues) == 0 {
		return "  " + passStyle.Render("No issues found.") + "\n"
	}

	byFile := make(map[string][]domain.Issue)
	var files []string
	for _, issue := range issues {
		f := issue.FilePath()
		if _, ok := byFile[f]; !ok {
			files = append(files, f)
		}
		byFile[f] = append(byFile[f], issue)
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString("  " + titleStyle.Render("Issues") + "  " + severityCounts(issues) + "\n")
	b.WriteString("  " + separatorLine + "\n")
	for _, f := range files {
		group := byFile[f]
		sortBySeverity(group)
		fmt.Fprintf(&b, "\n  %s %s\n", fileStyle.Render(f), faintStyle.Render(fmt.Sprintf("(%d)", len(group))))
		for _, issue := range group {
			renderIssueLine(&b, 0, issue)
		}
	}
	return b.String()
}

// RenderSummary reports the outcome of a single-file run.
func RenderSummary(s *domain.RemediationSummary) string {
	var b strings.Builder
	b.WriteString("\n")

	switch s.Outcome {
	case domain.OutcomeNoIssues:
		b.WriteString("  " + passStyle.Render("No open issues in "+shortenPath(s.File)+".") + "\n")
		return b.String()
	case domain.OutcomeDeclined:
		b.WriteString("  " + skipStyle.Render("Aborted; nothing was changed.") + "\n")
		return b.String()
	}

	b.WriteString("  " + titleStyle.Render("Summary") + "  " + fileStyle.Render(shortenPath(s.File)) + "\n")
	b.WriteString("  " + separatorLine + "\n")
	renderCount(&b, "Total", s.Total, fg)
	renderCount(&b, "Fixed", s.Fixed, success)
	renderCount(&b, "Failed", s.Failed, danger)
	renderCount(&b, "Skipped", s.Skipped, skipColor)
	if s.Attempted() > 0 {
		fmt.Fprintf(&b, "    %s %s\n", padRight("Success rate", 14), rateStyled(s.SuccessRate()))
	}

	if len(s.Commits) > 0 {
		b.WriteString("\n  " + titleStyle.Render("Commits") + "\n")
		for _, sha := range s.Commits {
			fmt.Fprintf(&b, "    %s %s\n", passStyle.Render("●"), faintStyle.Render(shortSHA(sha)))
		}
	}
	if s.DryRun {
		b.WriteString("\n  " + hintStyle.Render("Dry run: no files were changed.") + "\n")
	}
	return b.String()
}

// RenderCleanup reports a branch cleanup run.
func RenderCleanup(r *domain.CleanupResult) string {
	return renderBranchRun(r, "vibeheal cleanup", "issues")
}

// RenderDedupeBranch reports a branch-wide deduplication run.
func RenderDedupeBranch(r *domain.CleanupResult) string {
	return renderBranchRun(r, "vibeheal dedupe-branch", "duplications")
}

func renderBranchRun(r *domain.CleanupResult, heading, noun string) string {
	var b strings.Builder

	reason := string(r.StopReason)
	reasonStyle := passStyle
	switch r.StopReason {
	case domain.StopError:
		reasonStyle = failStyle
	case domain.StopNoProgress, domain.StopMaxIterations:
		reasonStyle = warnStyle
	}

	title := headerStyle.Render(heading)
	line := fmt.Sprintf("%d fixed  ·  %d failed  ·  %d commits  ·  %d iterations",
		r.TotalFixed, r.TotalFailed, r.TotalCommits, r.Iterations)
	b.WriteString(boxStyle.Render(title + "\n" + titleStyle.Render(line) + "\n\n" + reasonStyle.Render("stopped: "+reason)))
	b.WriteString("\n\n")

	if len(r.Files) > 0 {
		for _, f := range r.Files {
			icon := passStyle.Render("●")
			switch {
			case f.Error != "" || f.Failed > 0:
				icon = failStyle.Render("●")
			case f.Fixed == 0:
				icon = skipStyle.Render("○")
			}
			fmt.Fprintf(&b, "  %s %s %s\n", icon, padRight(shortenPath(f.File), 40),
				dimStyle.Render(fmt.Sprintf("%d fixed, %d failed", f.Fixed, f.Failed)))
			if f.Error != "" {
				fmt.Fprintf(&b, "       %s\n", failStyle.Render(f.Error))
			}
		}
		b.WriteString("\n")
	} else if len(r.ChangedFiles) == 0 && r.StopReason != domain.StopError {
		b.WriteString("  " + dimStyle.Render("No changed files on this branch.") + "\n\n")
	}

	if r.Remaining > 0 {
		b.WriteString("  " + warnStyle.Render(fmt.Sprintf("%d %s remain on changed files.", r.Remaining, noun)) + "\n")
	}
	if r.Error != "" {
		b.WriteString("  " + failStyle.Render("error: "+r.Error) + "\n")
	}
	return b.String()
}

// RenderHistory formats past runs, newest first.
func RenderHistory(records []domain.RunRecord) string {
	if len(records) == 0 {
		return "  " + dimStyle.Render("No run history found.") + "\n"
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString("  " + titleStyle.Render("Run History") + "\n")
	b.WriteString("  " + faintStyle.Render(strings.Repeat("─", 50)) + "\n\n")

	for _, r := range records {
		id := r.ID
		if len(id) > 8 {
			id = id[:8]
		}
		fixed := passStyle.Render(fmt.Sprintf("%d fixed", r.Fixed))
		line := fmt.Sprintf("  %s  %s  %s  %s  %s",
			dimStyle.Render(r.Timestamp.Local().Format("2006-01-02 15:04")),
			faintStyle.Render(id),
			padRight(string(r.Kind), 8),
			fileStyle.Render(shortenPath(r.Target)),
			fixed,
		)
		if r.Failed > 0 {
			line += "  " + failStyle.Render(fmt.Sprintf("%d failed", r.Failed))
		}
		if r.StopReason != "" {
			line += "  " + faintStyle.Render(string(r.StopReason))
		}
		if r.DryRun {
			line += "  " + warnStyle.Render("dry run")
		}
		if r.Duration > 0 {
			line += "  " + dimStyle.Render(FormatDuration(r.Duration))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// RenderConfig prints the resolved configuration with secrets masked.
func RenderConfig(cfg domain.Config, source string) string {
	cfg = cfg.Redacted()
	tool := string(cfg.AITool)
	if tool == "" {
		tool = "auto-detect"
	}

	rows := [][2]string{
		{"sonarqube.url", cfg.SonarQube.URL},
		{"sonarqube.project_key", cfg.SonarQube.ProjectKey},
		{"sonarqube.token", cfg.SonarQube.Token},
		{"sonarqube.username", cfg.SonarQube.Username},
		{"sonarqube.password", cfg.SonarQube.Password},
		{"ai_tool", tool},
		{"aider.model", cfg.Aider.Model},
		{"fix.timeout", cfg.Fix.Timeout.String()},
		{"fix.code_context_lines", fmt.Sprintf("%d", cfg.Fix.CodeContextLines)},
		{"fix.include_rule_description", fmt.Sprintf("%t", cfg.Fix.IncludeRuleDescription)},
		{"analysis.scanner", cfg.Analysis.Scanner},
		{"analysis.timeout", cfg.Analysis.Timeout.String()},
		{"http.max_retries", fmt.Sprintf("%d", cfg.HTTP.MaxRetries)},
		{"log.level", cfg.Log.Level},
	}

	var b strings.Builder
	b.WriteString("\n  " + titleStyle.Render("Configuration"))
	if source != "" {
		b.WriteString("  " + fileStyle.Render(source))
	}
	b.WriteString("\n  " + separatorLine + "\n")
	for _, row := range rows {
		val := row[1]
		if val == "" {
			val = skipStyle.Render("(unset)")
		}
		fmt.Fprintf(&b, "    %s %s\n", keyStyle.Render(padRight(row[0], 30)), val)
	}
	return b.String()
}

func renderIssueLine(b *strings.Builder, n int, issue domain.Issue) {
	prefix := "    "
	if n > 0 {
		prefix = fmt.Sprintf("  %s ", faintStyle.Render(fmt.Sprintf("%2d.", n)))
	}
	line := "-"
	if issue.Line != nil {
		line = fmt.Sprintf("%d", *issue.Line)
	}
	fmt.Fprintf(b, "%s%s %s %s\n", prefix,
		severityTag(issue.Severity),
		dimStyle.Render(padRight("L"+line, 6)),
		faintStyle.Render(issue.Rule),
	)
	fmt.Fprintf(b, "%s     %s\n", strings.Repeat(" ", lipgloss.Width(prefix)), issue.Message)
}

func renderCount(b *strings.Builder, label string, n int, color lipgloss.Color) {
	style := lipgloss.NewStyle().Foreground(color)
	if n == 0 {
		style = dimStyle
	}
	fmt.Fprintf(b, "    %s %s\n", padRight(label, 14), style.Render(fmt.Sprintf("%d", n)))
}

func rateStyled(rate float64) string {
	text := fmt.Sprintf("%.0f%%", rate)
	switch {
	case rate >= 80:
		return passStyle.Render(text)
	case rate >= 40:
		return warnStyle.Render(text)
	default:
		return failStyle.Render(text)
	}
}

func severityTag(sev domain.Severity) string {
	color, ok := severityColors[sev]
	if !ok {
		color = dim
	}
	return lipgloss.NewStyle().Foreground(color).Bold(sev.AtLeast(domain.SeverityCritical)).Render(padRight(strings.ToLower(string(sev)), 8))
}

func severityCounts(issues []domain.Issue) string {
	counts := make(map[domain.Severity]int)
	for _, i := range issues {
		counts[i.Severity]++
	}
	var parts []string
	for _, sev := range domain.ValidSeverities {
		if counts[sev] == 0 {
			continue
		}
		parts = append(parts, lipgloss.NewStyle().Foreground(severityColors[sev]).Render(
			fmt.Sprintf("%d %s", counts[sev], strings.ToLower(string(sev)))))
	}
	return strings.Join(parts, "  ")
}

func sortBySeverity(issues []domain.Issue) {
	for i := 1; i < len(issues); i++ {
		for j := i; j > 0 && issues[j].Severity.Rank() > issues[j-1].Severity.Rank(); j-- {
			issues[j], issues[j-1] = issues[j-1], issues[j]
		}
	}
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}

// FormatDuration rounds d for display.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	case d < time.Minute:
		return d.Round(100 * time.Millisecond).String()
	default:
		return d.Round(time.Second).String()
	}
}

func shortenPath(path string) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) > 4 {
		return ".../" + strings.Join(parts[len(parts)-3:], "/")
	}
	return path
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
