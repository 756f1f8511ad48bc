package handler

import (
	"fmt"
	"net/http"

	"github.com/timecapsule/timecapsule/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
//
// GET /metrics
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "timecapsule_users_registered_total %d\n", snap.UsersRegistered)
	writeMetric(w, "timecapsule_logins_total{status=\"success\"} %d\n", snap.LoginsSucceeded)
	writeMetric(w, "timecapsule_logins_total{status=\"failed\"} %d\n", snap.LoginsFailed)

	writeMetric(w, "timecapsule_capsules_created_total %d\n", snap.CapsulesCreated)
	writeMetric(w, "timecapsule_capsules_updated_total %d\n", snap.CapsulesUpdated)
	writeMetric(w, "timecapsule_capsules_deleted_total %d\n", snap.CapsulesDeleted)
	writeMetric(w, "timecapsule_capsule_fetches_total{state=\"locked\"} %d\n", snap.CapsuleFetchesLocked)
	writeMetric(w, "timecapsule_capsule_fetches_total{state=\"unlocked\"} %d\n", snap.CapsuleFetchesUnlocked)

	writeMetric(w, "timecapsule_unlock_events_published_total{status=\"success\"} %d\n", snap.UnlockEventsPublished)
	writeMetric(w, "timecapsule_unlock_events_published_total{status=\"failed\"} %d\n", snap.UnlockEventsFailed)
	writeMetric(w, "timecapsule_unlock_sweep_duration_seconds_count %d\n", snap.UnlockSweepCount)
	writeMetric(w, "timecapsule_unlock_sweep_duration_seconds_sum %.6f\n", float64(snap.UnlockSweepTotalNs)/1e9)

	writeMetric(w, "timecapsule_rate_limited_total{scope=\"user\"} %d\n", snap.RateLimitedUserRequests)
	writeMetric(w, "timecapsule_rate_limited_total{scope=\"login\"} %d\n", snap.RateLimitedLoginRequests)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
