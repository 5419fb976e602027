package domain

import "time"

// RuleCacheFile is the on-disk shape of cached rule details.
type RuleCacheFile struct {
	ServerURL string          `json:"server_url"`
	UpdatedAt time.Time       `json:"updated_at"`
	Rules     map[string]Rule `json:"rules"`
}

// IsInvalidated reports whether the cache was written for a different server.
func (c *RuleCacheFile) IsInvalidated(serverURL string) bool {
	return c.ServerURL != serverURL
}
