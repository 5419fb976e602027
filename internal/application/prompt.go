package application

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/vibeheal/vibeheal/internal/domain"
)

// BuildPrompt renders the instructions handed to the AI tool for one issue.
func BuildPrompt(issue domain.Issue, file string, rule *domain.Rule, codeContext string, includeDescription bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Fix the following SonarQube issue in %s:\n\n", file)

	b.WriteString("**Issue Details:**\n")
	if rule != nil && rule.Name != "" {
		fmt.Fprintf(&b, "- Rule: %s (%s)\n", issue.Rule, rule.Name)
	} else {
		fmt.Fprintf(&b, "- Rule: %s\n", issue.Rule)
	}
	fmt.Fprintf(&b, "- Severity: %s\n", issue.Severity)
	if issue.Type != "" {
		fmt.Fprintf(&b, "- Type: %s\n", issue.Type)
	}
	fmt.Fprintf(&b, "- Line: %d\n", issue.LineNumber())
	fmt.Fprintf(&b, "- Message: %s\n", issue.Message)

	if includeDescription && rule != nil && rule.Description != "" {
		b.WriteString("\n**Rule Description:**\n")
		b.WriteString(strings.TrimSpace(rule.Description))
		b.WriteString("\n")
	}

	if codeContext != "" {
		b.WriteString("\n**Code Context:**\n```\n")
		b.WriteString(codeContext)
		b.WriteString("```\n")
	}

	b.WriteString(`
**Instructions:**
1. Fix the issue while maintaining code functionality and style
2. Make minimal changes - only fix this specific issue
3. Do not fix other unrelated issues in the file
4. Ensure the fix doesn't break existing functionality
5. Follow the project's coding standards

Please make the necessary changes to fix this issue.`)
	return b.String()
}

// CodeContext returns up to radius lines either side of line from path,
// numbered, with the issue line marked by ">>". It returns "" when the file
// cannot be read or the line is out of range.
func CodeContext(path string, line, radius int) string {
	if line <= 0 || radius < 0 {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}

	from, to := line-radius, line+radius
	var b strings.Builder
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	n := 0
	for sc.Scan() {
		n++
		if n < from {
			continue
		}
		if n > to {
			break
		}
		marker := "  "
		if n == line {
			marker = ">>"
		}
		fmt.Fprintf(&b, "%s %4d | %s\n", marker, n, sc.Text())
	}
	if n < line {
		return ""
	}
	return b.String()
}

// snippetEdge is how many lines a long duplicated block shows at each end.
const snippetEdge = 3

// DuplicateSnippet returns the numbered lines of block from path. Blocks
// longer than six lines show their first and last three lines around an
// omission marker. It returns "" when the file cannot be read.
func DuplicateSnippet(path string, block domain.DuplicationBlock) string {
	if block.From <= 0 || block.Size <= 0 {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}

	long := block.Size > 2*snippetEdge
	headEnd := block.From + snippetEdge - 1
	tailStart := block.To() - snippetEdge + 1

	var b strings.Builder
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	n := 0
	for sc.Scan() {
		n++
		if n < block.From {
			continue
		}
		if n > block.To() {
			break
		}
		if long && n > headEnd && n < tailStart {
			if n == headEnd+1 {
				fmt.Fprintf(&b, "\n... (%d lines omitted) ...\n\n", block.Size-2*snippetEdge)
			}
			continue
		}
		fmt.Fprintf(&b, "%d: %s\n", n, strings.TrimRight(sc.Text(), " \t"))
	}
	return b.String()
}

// BuildDuplicationPrompt renders the instructions handed to the AI tool for
// one duplicated block. locations lists the other copies.
func BuildDuplicationPrompt(block domain.DuplicationBlock, snippet string, locations []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Duplicate code detected at lines %d-%d (%d lines total)\n", block.From, block.To(), block.Size)

	if snippet != "" {
		b.WriteString("\nCode block:\n")
		b.WriteString(snippet)
	}

	if len(locations) > 0 {
		fmt.Fprintf(&b, "\nThis code is duplicated in %d other location(s):\n", len(locations))
		for _, loc := range locations {
			fmt.Fprintf(&b, "  - %s\n", loc)
		}
	}

	b.WriteString(`
Please refactor this duplicate code. Consider appropriate strategies such as:
- Extracting a function or method
- Finding a suitable class in the inheritance hierarchy
- Extracting a reusable component
- Using composition or dependency injection patterns

Analyze the context and choose the most appropriate refactoring approach.`)
	return b.String()
}
