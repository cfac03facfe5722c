package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveCategory(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		method   string
		expected Category
	}{
		{"health exact", "/health", "GET", CategoryHealth},
		{"api health exact", "/api/health", "GET", CategoryHealth},
		{"login", "/api/auth/login", "POST", CategoryAuthentication},
		{"token refresh", "/api/auth/refresh", "POST", CategoryAuthentication},
		{"upload", "/api/uploads/documents", "POST", CategoryFileUpload},
		{"credential upload", "/api/credentials/123/documents", "POST", CategoryFileUpload},
		{"credential update", "/api/credentials/123", "PUT", CategoryFileUpload},
		{"credential read is api", "/api/credentials/123", "GET", CategoryAPI},
		{"webhook", "/webhooks/billing", "POST", CategoryWebhook},
		{"clients crud", "/api/clients/42", "GET", CategoryAPI},
		{"attendance crud", "/api/attendance", "POST", CategoryAPI},
		{"unmatched root", "/", "GET", CategoryPublic},
		{"unmatched page", "/login", "GET", CategoryPublic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ResolveCategory(tt.path, tt.method))
		})
	}
}

func TestResolveCategory_FirstMatchWins(t *testing.T) {
	// /api/health must resolve before the /api/* catch-all
	assert.Equal(t, CategoryHealth, ResolveCategory("/api/health", "GET"))

	// /api/auth/* must resolve before the /api/* catch-all
	assert.Equal(t, CategoryAuthentication, ResolveCategory("/api/auth/login", "POST"))
}

func TestIsExcludedPath(t *testing.T) {
	assert.True(t, IsExcludedPath("/static/app.css"))
	assert.True(t, IsExcludedPath("/assets/logo.png"))
	assert.True(t, IsExcludedPath("/favicon.ico"))
	assert.True(t, IsExcludedPath("/robots.txt"))

	assert.False(t, IsExcludedPath("/api/clients"))
	assert.False(t, IsExcludedPath("/health"))
	assert.False(t, IsExcludedPath("/"))
}

func TestRoutePattern_Matching(t *testing.T) {
	t.Run("exact pattern does not prefix match", func(t *testing.T) {
		rp := RoutePattern{Pattern: "/health", Category: CategoryHealth}
		assert.True(t, rp.matchesPath("/health"))
		assert.False(t, rp.matchesPath("/healthz"))
		assert.False(t, rp.matchesPath("/health/live"))
	})

	t.Run("wildcard pattern prefix matches", func(t *testing.T) {
		rp := RoutePattern{Pattern: "/api/*", Category: CategoryAPI}
		assert.True(t, rp.matchesPath("/api/clients"))
		assert.True(t, rp.matchesPath("/api/"))
		assert.False(t, rp.matchesPath("/apiv2/clients"))
	})

	t.Run("method constraint", func(t *testing.T) {
		rp := RoutePattern{Pattern: "/api/credentials/*", Methods: []string{"POST", "PUT"}}
		assert.True(t, rp.matchesMethod("POST"))
		assert.True(t, rp.matchesMethod("put"))
		assert.False(t, rp.matchesMethod("GET"))
	})

	t.Run("no methods means any method", func(t *testing.T) {
		rp := RoutePattern{Pattern: "/api/*"}
		assert.True(t, rp.matchesMethod("DELETE"))
	})
}
