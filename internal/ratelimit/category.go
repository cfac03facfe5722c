// Package ratelimit implements category-aware admission control with a
// shared sliding-window counter and a per-process fallback.
package ratelimit

import (
	"fmt"
	"time"

	"care-gateway/internal/common/errors"
)

// Category identifies a traffic class with its own quota. The set is
// closed; adding a category means extending the config table below, which
// ValidateConfigs checks at startup.
type Category string

const (
	CategoryAuthentication Category = "authentication"
	CategoryAPI            Category = "api"
	CategoryFileUpload     Category = "file_upload"
	CategoryWebhook        Category = "webhook"
	CategoryPublic         Category = "public"
	CategoryHealth         Category = "health"
)

// Categories lists every known category, used for exhaustive validation.
var Categories = []Category{
	CategoryAuthentication,
	CategoryAPI,
	CategoryFileUpload,
	CategoryWebhook,
	CategoryPublic,
	CategoryHealth,
}

// Config holds the static quota for a category.
type Config struct {
	Limit       int           `json:"limit"`
	Window      time.Duration `json:"window"`
	TrackByUser bool          `json:"track_by_user"`
	TrackByIP   bool          `json:"track_by_ip"`
	Message     string        `json:"message,omitempty"`
}

// categoryConfigs is the compiled-in quota table. Immutable after process
// start.
var categoryConfigs = map[Category]Config{
	CategoryAuthentication: {
		Limit:     5,
		Window:    15 * time.Minute,
		TrackByIP: true,
		Message:   "Too many login attempts, please try again later",
	},
	CategoryAPI: {
		Limit:       100,
		Window:      time.Minute,
		TrackByUser: true,
		TrackByIP:   true,
	},
	CategoryFileUpload: {
		Limit:       20,
		Window:      time.Hour,
		TrackByUser: true,
		TrackByIP:   true,
		Message:     "Upload limit reached, please try again later",
	},
	CategoryWebhook: {
		Limit:     120,
		Window:    time.Minute,
		TrackByIP: true,
	},
	CategoryPublic: {
		Limit:     60,
		Window:    time.Minute,
		TrackByIP: true,
	},
	CategoryHealth: {
		Limit:     240,
		Window:    time.Minute,
		TrackByIP: true,
	},
}

// GetConfig returns the quota for a category. Callers must run
// ValidateConfigs at startup; an unknown category here is a programming
// error.
func GetConfig(category Category) Config {
	return categoryConfigs[category]
}

// ValidateConfigs verifies every category has a usable config. A missing
// or non-positive entry is fatal at startup, never silently defaulted.
func ValidateConfigs() error {
	for _, category := range Categories {
		cfg, ok := categoryConfigs[category]
		if !ok {
			return errors.ConfigError(fmt.Sprintf("rate limit category %q has no config", category))
		}
		if cfg.Limit <= 0 {
			return errors.ConfigError(fmt.Sprintf("rate limit category %q has non-positive limit %d", category, cfg.Limit))
		}
		if cfg.Window <= 0 {
			return errors.ConfigError(fmt.Sprintf("rate limit category %q has non-positive window %s", category, cfg.Window))
		}
	}
	return nil
}
