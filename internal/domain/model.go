package domain

import "strings"

// Severity is the SonarQube severity of an issue.
type Severity string

const (
	SeverityBlocker  Severity = "BLOCKER"
	SeverityCritical Severity = "CRITICAL"
	SeverityMajor    Severity = "MAJOR"
	SeverityMinor    Severity = "MINOR"
	SeverityInfo     Severity = "INFO"
)

// ValidSeverities enumerates the recognized severities, highest first.
var ValidSeverities = []Severity{
	SeverityBlocker,
	SeverityCritical,
	SeverityMajor,
	SeverityMinor,
	SeverityInfo,
}

var severityRank = map[Severity]int{
	SeverityBlocker:  5,
	SeverityCritical: 4,
	SeverityMajor:    3,
	SeverityMinor:    2,
	SeverityInfo:     1,
}

// Rank returns the ordinal of s. Unrecognized severities rank 0, below INFO.
func (s Severity) Rank() int { return severityRank[s] }

// AtLeast reports whether s ranks at or above min.
func (s Severity) AtLeast(min Severity) bool { return s.Rank() >= min.Rank() }

// ParseSeverity accepts any casing of a recognized severity name.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := severityRank[sev]; !ok {
		return "", &ConfigError{Field: "severity", Reason: "unknown severity " + quote(s) + " (valid: BLOCKER, CRITICAL, MAJOR, MINOR, INFO)"}
	}
	return sev, nil
}

// Status is the workflow status of an issue on the tracker.
type Status string

const (
	StatusOpen          Status = "OPEN"
	StatusConfirmed     Status = "CONFIRMED"
	StatusReopened      Status = "REOPENED"
	StatusResolved      Status = "RESOLVED"
	StatusClosed        Status = "CLOSED"
	StatusWontFix       Status = "WONTFIX"
	StatusFalsePositive Status = "FALSE_POSITIVE"
	StatusAccepted      Status = "ACCEPTED"
)

// NormalizeStatus upper-cases s and maps the hyphenated FALSE-POSITIVE
// spelling some servers return onto StatusFalsePositive.
func NormalizeStatus(s string) Status {
	st := strings.ToUpper(strings.TrimSpace(s))
	if st == "FALSE-POSITIVE" {
		return StatusFalsePositive
	}
	return Status(st)
}

// Closed reports whether the status means the issue is no longer actionable.
func (s Status) Closed() bool {
	switch s {
	case StatusResolved, StatusClosed, StatusWontFix, StatusFalsePositive, StatusAccepted:
		return true
	}
	return false
}

// Issue is a single finding reported by the tracker against a file.
type Issue struct {
	Key       string   `json:"key"`
	Rule      string   `json:"rule"`
	Severity  Severity `json:"severity"`
	Message   string   `json:"message"`
	Component string   `json:"component"`
	Line      *int     `json:"line,omitempty"`
	Status    Status   `json:"status"`
	Type      string   `json:"type,omitempty"`
}

// Fixable reports whether the issue has a line to anchor an edit and is
// still open on the tracker.
func (i Issue) Fixable() bool {
	return i.Line != nil && !i.Status.Closed()
}

// LineNumber returns the issue line or 0 when absent.
func (i Issue) LineNumber() int {
	if i.Line == nil {
		return 0
	}
	return *i.Line
}

// FilePath strips the "projectKey:" prefix from the component, yielding the
// path relative to the project root.
func (i Issue) FilePath() string {
	if idx := strings.Index(i.Component, ":"); idx >= 0 {
		return i.Component[idx+1:]
	}
	return i.Component
}

// RuleShortID returns the part of the rule key after the repository prefix,
// e.g. "S1481" for "python:S1481".
func (i Issue) RuleShortID() string {
	if idx := strings.LastIndex(i.Rule, ":"); idx >= 0 {
		return i.Rule[idx+1:]
	}
	return i.Rule
}

// Rule carries the descriptive fields of a tracker rule used to enrich prompts
// and commit messages.
type Rule struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Language    string `json:"language,omitempty"`
	Type        string `json:"type,omitempty"`
}

// IntPtr is a convenience for building issues with a line.
func IntPtr(n int) *int { return &n }

func quote(s string) string { return "\"" + s + "\"" }
