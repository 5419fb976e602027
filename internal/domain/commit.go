package domain

import (
	"fmt"
	"strings"
)

const commitSubjectMessageLimit = 50

// CommitMessage renders the message recorded for a successful fix. rule may
// be nil when rule details could not be fetched.
func CommitMessage(issue Issue, rule *Rule, toolName string, filesModified int) string {
	msg := issue.Message
	if runes := []rune(msg); len(runes) > commitSubjectMessageLimit {
		msg = string(runes[:commitSubjectMessageLimit]) + "..."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "fix: [SQ-%s] %s\n\n", issue.RuleShortID(), msg)
	fmt.Fprintf(&b, "SonarQube Issue: %s\n", issue.Key)
	if rule != nil && rule.Name != "" {
		fmt.Fprintf(&b, "Rule: %s - %s\n", issue.Rule, rule.Name)
	} else {
		fmt.Fprintf(&b, "Rule: %s\n", issue.Rule)
	}
	fmt.Fprintf(&b, "Severity: %s\n", issue.Severity)
	fmt.Fprintf(&b, "Location: %s:%d\n", issue.Component, issue.LineNumber())
	if filesModified > 1 {
		fmt.Fprintf(&b, "Files modified: %d\n", filesModified)
	}
	fmt.Fprintf(&b, "Message: %s\n", issue.Message)
	fmt.Fprintf(&b, "\nFixed by: vibeheal using %s\n", toolName)
	return b.String()
}
