package config

import (
	"fmt"
	"regexp"
	"strings"
)

// Validate checks a loaded Config for mistakes that would otherwise only
// surface as confusing runtime failures.
func Validate(cfg *Config) error {
	switch cfg.Source.Mode {
	case "direct":
		for _, tmpl := range append(
			append([]string{}, cfg.Source.Direct.IdentifierEndpoints...),
			cfg.Source.Direct.WeightEndpoints...,
		) {
			if err := validateTemplate(tmpl); err != nil {
				return fmt.Errorf("source.direct endpoint %q: %w", tmpl, err)
			}
		}
	case "navigate":
		for _, tmpl := range []string{cfg.Source.Navigate.IdentifierTarget, cfg.Source.Navigate.WeightTarget} {
			if tmpl == "" {
				return fmt.Errorf("source.navigate: identifier_target and weight_target are required")
			}
			if err := validateTemplate(tmpl); err != nil {
				return fmt.Errorf("source.navigate target %q: %w", tmpl, err)
			}
		}
		for role, pattern := range cfg.Agents.Locations {
			if _, err := regexp.Compile(pattern); err != nil {
				return fmt.Errorf("agents.locations[%s]: %w", role, err)
			}
		}
	default:
		return fmt.Errorf("source.mode: unsupported mode %q", cfg.Source.Mode)
	}

	if cfg.Batch.Concurrency < 0 {
		return fmt.Errorf("batch.concurrency: must not be negative")
	}
	if cfg.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl: must be positive")
	}

	if cfg.Gateway.Enabled && cfg.Gateway.Auth.Type == "static" && len(cfg.Gateway.Auth.Tokens) == 0 {
		return fmt.Errorf("gateway.auth: static auth requires at least one token")
	}
	return nil
}

// validateTemplate checks that a URL template carries exactly the two
// substitution verbs the fetch paths fill in (warehouse id, then item or
// batch id).
func validateTemplate(tmpl string) error {
	if n := strings.Count(tmpl, "%s"); n != 2 {
		return fmt.Errorf("expected 2 %%s verbs, found %d", n)
	}
	return nil
}
