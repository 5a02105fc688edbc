// Package abuse detects suspicious voting patterns across fingerprints and
// IP addresses. The checks are advisory and strictly fail-open: when the
// backing store is unavailable a vote proceeds as if nothing suspicious was
// seen.
package abuse

import "context"

// Oracle is the abuse-detection capability consumed by the vote admission
// path. Implementations must never block vote admission beyond a short
// bounded check.
type Oracle interface {
	// CheckSuspicious records the (ip, fingerprint) sighting and reports
	// whether the pair looks suspicious, with a human-readable reason.
	CheckSuspicious(ctx context.Context, ipHash, fingerprintHash string) (suspicious bool, reason string)

	// RecordAttempt tracks a submission attempt for pattern analysis.
	// Fire-and-forget: errors are swallowed.
	RecordAttempt(ctx context.Context, ipHash, fingerprintHash string, categoryID uint, success bool)
}

// Noop is an Oracle that never flags anything. Used when abuse detection
// is disabled and as a test substitute.
type Noop struct{}

// CheckSuspicious always reports not suspicious.
func (Noop) CheckSuspicious(context.Context, string, string) (bool, string) {
	return false, ""
}

// RecordAttempt does nothing.
func (Noop) RecordAttempt(context.Context, string, string, uint, bool) {}
