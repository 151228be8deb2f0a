package engine

import "fmt"

// Kind classifies why an execution did not succeed. The coordinator maps
// every kind onto exactly one terminal status; nothing of this taxonomy
// escapes the Execute boundary as a Go error.
type Kind string

const (
	KindSafetyRejected   Kind = "safety_rejected"
	KindLockContention   Kind = "lock_contention"
	KindCredentialDenied Kind = "credential_denied"
	KindTimeout          Kind = "timeout"
	KindCancelled        Kind = "cancelled"
	KindSpawnFailure     Kind = "spawn_failure"
	KindNonZeroExit      Kind = "non_zero_exit"
)

// execError is a classified execution failure flowing through the
// coordinator's pipeline.
type execError struct {
	kind   Kind
	reason string
}

func (e *execError) Error() string {
	return fmt.Sprintf("%s: %s", e.kind, e.reason)
}

// status maps the failure class onto the caller-visible terminal status.
// Timeout stays a plain failure; the timeout marker on stderr carries the
// distinction.
func (e *execError) status() Status {
	switch e.kind {
	case KindLockContention:
		return StatusLocked
	case KindCredentialDenied:
		return StatusNeedsPassword
	case KindCancelled:
		return StatusCancelled
	case KindSafetyRejected, KindTimeout, KindSpawnFailure, KindNonZeroExit:
		return StatusFailed
	}
	return StatusFailed
}
