package domain

import (
	"strings"
	"time"
)

// TempProjectTimeLayout renders timestamps in temp project keys. It sorts
// lexically and has second granularity.
const TempProjectTimeLayout = "060102-150405"

// TempProjectHandle identifies a disposable analysis project.
type TempProjectHandle struct {
	Key       string    `json:"key"`
	Name      string    `json:"name"`
	BaseKey   string    `json:"base_key"`
	Branch    string    `json:"branch"`
	User      string    `json:"user"`
	CreatedAt time.Time `json:"created_at"`
}

// SanitizeIdentifier lower-cases s and replaces every character outside
// [a-z0-9_] with an underscore.
func SanitizeIdentifier(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// TempProjectKey derives the key of a temp project owned by user on branch.
func TempProjectKey(baseKey, user, branch string, at time.Time) string {
	return baseKey + "_" + SanitizeIdentifier(user) + "_" + SanitizeIdentifier(branch) + "_" + at.UTC().Format(TempProjectTimeLayout)
}

// TempProjectName is the human-readable name shown in the tracker UI.
func TempProjectName(baseKey, branch string) string {
	return "vibeheal cleanup: " + baseKey + " (" + branch + ")"
}
