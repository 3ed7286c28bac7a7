package constants

// JobStatus is the canonical status for rows in interpretation_jobs.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusPending   JobStatus = "PENDING"   // created, not yet started
	JobStatusRunning   JobStatus = "RUNNING"   // pipeline in progress
	JobStatusCompleted JobStatus = "COMPLETED" // result persisted
	JobStatusFailed    JobStatus = "FAILED"    // terminal failure, error recorded
	JobStatusCancelled JobStatus = "CANCELLED" // cancelled before completion
)

// IsTerminal reports whether a job in this status may never change again.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next is a legal state change.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case JobStatusPending:
		return next == JobStatusRunning || next == JobStatusCancelled
	case JobStatusRunning:
		return next == JobStatusCompleted || next == JobStatusFailed || next == JobStatusCancelled
	}
	return false
}
