package model

// Job asks a worker to build one actor's profile for a cycle.
type Job struct {
	CycleID string
	ActorID string
	// Reply receives exactly one JobResult. Producers size it so workers
	// never block on send.
	Reply chan<- JobResult
	// Done closes when the cycle no longer wants the result.
	Done <-chan struct{}
}

// Abandoned reports whether the owning cycle has given up on j.
func (j Job) Abandoned() bool {
	if j.Done == nil {
		return false
	}
	select {
	case <-j.Done:
		return true
	default:
		return false
	}
}

// JobResult is the outcome of a Job. Profile is nil when the actor was dropped.
type JobResult struct {
	ActorID string
	Profile *ActorProfile
	Err     error
}
