package domain

import (
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ValidatePatterns rejects malformed glob patterns before any work starts.
func ValidatePatterns(patterns []string) error {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(normalizePattern(p)) {
			return &ConfigError{Field: "pattern", Reason: "malformed glob " + quote(p)}
		}
	}
	return nil
}

// MatchAny reports whether file matches at least one pattern. An empty
// pattern list matches everything. Patterns without a slash are also tried
// against the base name. "**" spans any number of directories and
// "{a,b}" alternates. A malformed pattern is an error.
func MatchAny(file string, patterns []string) (bool, error) {
	if len(patterns) == 0 {
		return true, nil
	}
	file = strings.TrimPrefix(path.Clean(strings.ReplaceAll(file, "\\", "/")), "./")
	for _, p := range patterns {
		p = normalizePattern(p)
		ok, err := doublestar.Match(p, file)
		if err != nil {
			return false, &ConfigError{Field: "pattern", Reason: "malformed glob " + quote(p)}
		}
		if !ok && !strings.Contains(p, "/") {
			ok, _ = doublestar.Match(p, path.Base(file))
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// FilterFiles keeps the files matched by MatchAny, preserving order.
func FilterFiles(files, patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		return files, nil
	}
	if err := ValidatePatterns(patterns); err != nil {
		return nil, err
	}
	var out []string
	for _, f := range files {
		ok, err := MatchAny(f, patterns)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, f)
		}
	}
	return out, nil
}

func normalizePattern(p string) string {
	return strings.TrimPrefix(strings.ReplaceAll(p, "\\", "/"), "./")
}
