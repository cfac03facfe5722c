// Package audit records rate limit violations and flushes them to a
// caller-supplied audit sink as compliance-grade records.
package audit

import (
	"time"

	"care-gateway/internal/ratelimit"
)

// Violation is a denial event. It exists only in the in-process buffer
// between Record and the next drain; persistence is delegated to the
// audit sink.
type Violation struct {
	Timestamp  time.Time          `json:"timestamp"`
	Category   ratelimit.Category `json:"category"`
	Path       string             `json:"path"`
	Method     string             `json:"method"`
	IP         string             `json:"ip,omitempty"`
	UserID     string             `json:"user_id,omitempty"`
	UserAgent  string             `json:"user_agent,omitempty"`
	Limit      int                `json:"limit"`
	RetryAfter int                `json:"retry_after"`
}

// Severity labels a violation for audit review prioritization. It is
// derived, never stored independently.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Classify derives the severity of a violation. Brute-force pressure on
// authentication is always high; upload flooding and long lockouts are
// medium; everything else is low.
func Classify(v Violation) Severity {
	switch {
	case v.Category == ratelimit.CategoryAuthentication:
		return SeverityHigh
	case v.Category == ratelimit.CategoryFileUpload:
		return SeverityMedium
	case v.RetryAfter > 300:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func severityRank(s Severity) int {
	switch s {
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0
	}
}
