package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	UsersRegistered          uint64
	LoginsSucceeded          uint64
	LoginsFailed             uint64
	CapsulesCreated          uint64
	CapsulesUpdated          uint64
	CapsulesDeleted          uint64
	CapsuleFetchesLocked     uint64
	CapsuleFetchesUnlocked   uint64
	UnlockEventsPublished    uint64
	UnlockEventsFailed       uint64
	UnlockSweepCount         uint64
	UnlockSweepTotalNs       int64
	RateLimitedUserRequests  uint64
	RateLimitedLoginRequests uint64
}

// InMemoryRecorder stores metrics in memory using atomic counters.
type InMemoryRecorder struct {
	usersRegistered          atomic.Uint64
	loginsSucceeded          atomic.Uint64
	loginsFailed             atomic.Uint64
	capsulesCreated          atomic.Uint64
	capsulesUpdated          atomic.Uint64
	capsulesDeleted          atomic.Uint64
	capsuleFetchesLocked     atomic.Uint64
	capsuleFetchesUnlocked   atomic.Uint64
	unlockEventsPublished    atomic.Uint64
	unlockEventsFailed       atomic.Uint64
	unlockSweepCount         atomic.Uint64
	unlockSweepTotalNs       atomic.Int64
	rateLimitedUserRequests  atomic.Uint64
	rateLimitedLoginRequests atomic.Uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		UsersRegistered:          m.usersRegistered.Load(),
		LoginsSucceeded:          m.loginsSucceeded.Load(),
		LoginsFailed:             m.loginsFailed.Load(),
		CapsulesCreated:          m.capsulesCreated.Load(),
		CapsulesUpdated:          m.capsulesUpdated.Load(),
		CapsulesDeleted:          m.capsulesDeleted.Load(),
		CapsuleFetchesLocked:     m.capsuleFetchesLocked.Load(),
		CapsuleFetchesUnlocked:   m.capsuleFetchesUnlocked.Load(),
		UnlockEventsPublished:    m.unlockEventsPublished.Load(),
		UnlockEventsFailed:       m.unlockEventsFailed.Load(),
		UnlockSweepCount:         m.unlockSweepCount.Load(),
		UnlockSweepTotalNs:       m.unlockSweepTotalNs.Load(),
		RateLimitedUserRequests:  m.rateLimitedUserRequests.Load(),
		RateLimitedLoginRequests: m.rateLimitedLoginRequests.Load(),
	}
}

// IncUserRegistered increments the registration counter.
func (m *InMemoryRecorder) IncUserRegistered() {
	m.usersRegistered.Add(1)
}

// IncLogin counts a login attempt by outcome.
func (m *InMemoryRecorder) IncLogin(status string) {
	if status == "success" {
		m.loginsSucceeded.Add(1)
		return
	}
	m.loginsFailed.Add(1)
}

// IncCapsuleCreated increments capsule created counter.
func (m *InMemoryRecorder) IncCapsuleCreated() {
	m.capsulesCreated.Add(1)
}

// IncCapsuleUpdated increments capsule updated counter.
func (m *InMemoryRecorder) IncCapsuleUpdated() {
	m.capsulesUpdated.Add(1)
}

// IncCapsuleDeleted increments capsule deleted counter.
func (m *InMemoryRecorder) IncCapsuleDeleted() {
	m.capsulesDeleted.Add(1)
}

// IncCapsuleFetched counts a single-capsule fetch by lock state.
func (m *InMemoryRecorder) IncCapsuleFetched(state string) {
	if state == "locked" {
		m.capsuleFetchesLocked.Add(1)
		return
	}
	m.capsuleFetchesUnlocked.Add(1)
}

// IncUnlockEventPublished counts unlock events by publish outcome.
func (m *InMemoryRecorder) IncUnlockEventPublished(status string) {
	if status == "success" {
		m.unlockEventsPublished.Add(1)
		return
	}
	m.unlockEventsFailed.Add(1)
}

// ObserveUnlockSweepDuration records one sweep run.
func (m *InMemoryRecorder) ObserveUnlockSweepDuration(duration time.Duration) {
	m.unlockSweepCount.Add(1)
	m.unlockSweepTotalNs.Add(duration.Nanoseconds())
}

// IncRateLimited counts a rejected request by limiter scope.
func (m *InMemoryRecorder) IncRateLimited(scope string) {
	if scope == "login" {
		m.rateLimitedLoginRequests.Add(1)
		return
	}
	m.rateLimitedUserRequests.Add(1)
}
