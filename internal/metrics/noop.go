package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) IncUserRegistered() {}
func (n *NoopRecorder) IncLogin(status string) {}
func (n *NoopRecorder) IncCapsuleCreated() {}
func (n *NoopRecorder) IncCapsuleUpdated() {}
func (n *NoopRecorder) IncCapsuleDeleted() {}
func (n *NoopRecorder) IncCapsuleFetched(state string) {}
func (n *NoopRecorder) IncUnlockEventPublished(status string) {}
func (n *NoopRecorder) ObserveUnlockSweepDuration(duration time.Duration) {}
func (n *NoopRecorder) IncRateLimited(scope string) {}
