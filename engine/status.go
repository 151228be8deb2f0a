package engine

// Status classifies an execution. The set is closed; exactly one value
// describes every terminal result.
type Status string

const (
	StatusPending       Status = "pending"
	StatusRunning       Status = "running"
	StatusSuccess       Status = "success"
	StatusFailed        Status = "failed"
	StatusCancelled     Status = "cancelled"
	StatusNeedsPassword Status = "needs_password"
	StatusLocked        Status = "locked"
)

// Terminal reports whether the status describes a finished execution.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusCancelled, StatusNeedsPassword, StatusLocked:
		return true
	}
	return false
}

// phase names one stage of the coordinator's per-invocation state machine.
type phase string

const (
	phaseValidating   phase = "validating"
	phaseCheckingLock phase = "checking-lock"
	phaseCredential   phase = "preparing-credential"
	phaseRunning      phase = "running"
	phaseFinalized    phase = "finalized"
)
