package health

import (
	"encoding/json"
	"net/http"
)

// Handler returns an http.Handler serving the monitor's aggregate health as
// JSON. The response code is 200 when the aggregate is healthy or degraded
// and 503 when it is unhealthy, so the endpoint works directly as a liveness
// probe.
func Handler(monitor *Monitor, systemName string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		aggregate := monitor.AggregateHealth(systemName)

		w.Header().Set("Content-Type", "application/json")
		if aggregate.IsUnhealthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}

		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(aggregate)
	})
}
