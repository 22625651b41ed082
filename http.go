package polaris

import (
	"encoding/json"
	"net/http"
)

// MetricsHandler returns the Prometheus-backed /metrics handler for
// this Engine (§10). The module never listens on a
// socket itself; the embedder mounts this on their own mux.
func (e *Engine) MetricsHandler() http.Handler {
	return e.Metrics.Handler()
}

// StatusHandler returns a JSON introspection endpoint listing the
// breaker state and metric counters for every instance of the service
// named by the "service" query parameter (§10, shape grounded on the
// teacher's internal/health JSON-safe snapshot struct). Mount it
// alongside MetricsHandler on the embedder's own mux; neither handler
// requires this module to own a listening socket.
func (e *Engine) StatusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serviceKey := r.URL.Query().Get("service")
		if serviceKey == "" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "missing \"service\" query parameter"})
			return
		}

		statuses := e.Snapshot(serviceKey)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"service":   serviceKey,
			"instances": statuses,
		})
	})
}
