package ratelimit

import (
	"errors"
	"slices"
	"time"

	"github.com/Proton-105/himera-wallet/pkg/config"
)

// Rules resolves the configured limit for a caller and route.
type Rules struct {
	config config.RateLimitConfig
}

func NewRules(cfg config.RateLimitConfig) *Rules {
	return &Rules{config: cfg}
}

// Enabled reports whether limiting is switched on.
func (r *Rules) Enabled() bool {
	return r != nil && r.config.Enabled
}

// IsWhitelisted returns true if the user bypasses rate limits.
func (r *Rules) IsWhitelisted(userID string) bool {
	return slices.Contains(r.config.Whitelist, userID)
}

// RouteLimit returns the rule for a named route, falling back to the per-user rule.
func (r *Rules) RouteLimit(route string) (int, time.Duration, error) {
	if rule, ok := r.config.Routes[route]; ok {
		return parseRule(rule)
	}
	return r.PerUserLimit()
}

func (r *Rules) GlobalLimit() (int, time.Duration, error) {
	return parseRule(r.config.Global)
}

func (r *Rules) PerUserLimit() (int, time.Duration, error) {
	return parseRule(r.config.PerUser)
}

func parseRule(rule config.RateLimitRule) (int, time.Duration, error) {
	if rule.Window == "" {
		return rule.Limit, 0, errors.New("window duration is not set")
	}
	window, err := time.ParseDuration(rule.Window)
	if err != nil {
		return 0, 0, err
	}
	return rule.Limit, window, nil
}
