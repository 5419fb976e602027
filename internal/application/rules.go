package application

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/vibeheal/vibeheal/internal/domain"
)

// RuleResolver looks up rule details once per run, backed by an optional
// on-disk cache. Lookups never fail: a missing rule yields nil.
type RuleResolver struct {
	tracker   domain.IssueTracker
	cache     domain.RuleCache
	dir       string
	serverURL string
	logger    *zap.Logger

	rules map[string]domain.Rule
	dirty bool
}

// NewRuleResolver creates a resolver. cache may be nil.
func NewRuleResolver(tracker domain.IssueTracker, cache domain.RuleCache, dir, serverURL string, logger *zap.Logger) *RuleResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &RuleResolver{
		tracker:   tracker,
		cache:     cache,
		dir:       dir,
		serverURL: serverURL,
		logger:    logger,
		rules:     make(map[string]domain.Rule),
	}
	if cache != nil {
		stored, err := cache.Load(dir)
		switch {
		case err != nil:
			logger.Debug("rule cache unreadable", zap.Error(err))
		case stored != nil && !stored.IsInvalidated(serverURL):
			for k, v := range stored.Rules {
				r.rules[k] = v
			}
		}
	}
	return r
}

// Lookup returns the rule for key, fetching it from the tracker on a miss.
func (r *RuleResolver) Lookup(ctx context.Context, key string) *domain.Rule {
	if key == "" {
		return nil
	}
	if rule, ok := r.rules[key]; ok {
		return &rule
	}
	rule, err := r.tracker.Rule(ctx, key)
	if err != nil || rule == nil {
		r.logger.Debug("rule details unavailable", zap.String("rule", key), zap.Error(err))
		return nil
	}
	r.rules[key] = *rule
	r.dirty = true
	return rule
}

// Flush writes newly fetched rules to the cache.
func (r *RuleResolver) Flush() error {
	if r.cache == nil || !r.dirty {
		return nil
	}
	if err := r.cache.Save(r.dir, &domain.RuleCacheFile{
		ServerURL: r.serverURL,
		UpdatedAt: time.Now().UTC(),
		Rules:     r.rules,
	}); err != nil {
		return err
	}
	r.dirty = false
	return nil
}
