package ratelimit

import "strings"

// RoutePattern maps a path pattern to a category. A pattern ending in "*"
// matches as a prefix, otherwise it must match exactly. When Methods is
// non-empty the request method must be listed.
type RoutePattern struct {
	Pattern  string
	Methods  []string
	Category Category
}

// routePatterns is evaluated in declared order and the first match wins,
// so specific prefixes must stay above the /api/* catch-all. Unmatched
// paths fall back to the public category.
var routePatterns = []RoutePattern{
	{Pattern: "/health", Category: CategoryHealth},
	{Pattern: "/api/health", Category: CategoryHealth},
	{Pattern: "/api/auth/*", Category: CategoryAuthentication},
	{Pattern: "/api/uploads/*", Category: CategoryFileUpload},
	{Pattern: "/api/credentials/*", Methods: []string{"POST", "PUT"}, Category: CategoryFileUpload},
	{Pattern: "/webhooks/*", Category: CategoryWebhook},
	{Pattern: "/api/*", Category: CategoryAPI},
}

// excludedPrefixes never consume quota and never produce violations.
var excludedPrefixes = []string{
	"/static/",
	"/assets/",
	"/favicon.ico",
	"/robots.txt",
}

// ResolveCategory maps a request path and method to its traffic category.
func ResolveCategory(path, method string) Category {
	for _, rp := range routePatterns {
		if !rp.matchesPath(path) {
			continue
		}
		if !rp.matchesMethod(method) {
			continue
		}
		return rp.Category
	}
	return CategoryPublic
}

// IsExcludedPath reports whether a path bypasses admission control
// entirely (static-asset style paths).
func IsExcludedPath(path string) bool {
	for _, prefix := range excludedPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (rp RoutePattern) matchesPath(path string) bool {
	if strings.HasSuffix(rp.Pattern, "*") {
		return strings.HasPrefix(path, strings.TrimSuffix(rp.Pattern, "*"))
	}
	return path == rp.Pattern
}

func (rp RoutePattern) matchesMethod(method string) bool {
	if len(rp.Methods) == 0 {
		return true
	}
	for _, m := range rp.Methods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}
