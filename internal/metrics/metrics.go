// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Account metrics
	IncUserRegistered()
	IncLogin(status string) // status: "success" or "failed"

	// Capsule lifecycle metrics
	IncCapsuleCreated()
	IncCapsuleUpdated()
	IncCapsuleDeleted()
	IncCapsuleFetched(state string) // state: "locked" or "unlocked"

	// Unlock sweep metrics
	IncUnlockEventPublished(status string) // status: "success" or "failed"
	ObserveUnlockSweepDuration(duration time.Duration)

	// Rate limiting
	IncRateLimited(scope string) // scope: "user" or "login"
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
