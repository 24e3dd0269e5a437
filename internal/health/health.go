// Package health evaluates and serves liveness and readiness of the leaderboard server.
package health

import (
	"context"
	"encoding/json"
	"net/http"
)

// Mode indicates high-level health mode.
type Mode string

const (
	// ModeHealthy indicates all configured dependencies are healthy.
	ModeHealthy Mode = "healthy"
	// ModeDegraded indicates the server is ready but an optional dependency is down.
	ModeDegraded Mode = "degraded"
	// ModeUnhealthy indicates no snapshot can be served.
	ModeUnhealthy Mode = "unhealthy"
)

// Input represents dependency states used for health evaluation.
type Input struct {
	SnapshotAvailable bool
	// SnapshotRecords is the number of groups in the served snapshot.
	SnapshotRecords int
	HubConfigured   bool
	HubHealthy      bool
}

// Status represents evaluated server health.
type Status struct {
	Mode       Mode            `json:"mode"`
	Ready      bool            `json:"ready"`
	Groups     int             `json:"groups"`
	Components map[string]bool `json:"components"`
}

// Provider supplies current health status.
type Provider interface {
	CurrentStatus(ctx context.Context) Status
}

// StatusEvaluator evaluates health and readiness.
type StatusEvaluator struct{}

// NewStatusEvaluator creates a health evaluator.
func NewStatusEvaluator() *StatusEvaluator {
	return &StatusEvaluator{}
}

// Evaluate derives readiness and mode. Readiness only needs a snapshot; an
// unreachable dataset hub degrades the mode.
func (e *StatusEvaluator) Evaluate(input Input) Status {
	components := map[string]bool{
		"snapshot": input.SnapshotAvailable,
	}
	if input.HubConfigured {
		components["hub"] = input.HubHealthy
	}

	ready := input.SnapshotAvailable
	mode := ModeHealthy
	switch {
	case !ready:
		mode = ModeUnhealthy
	case input.HubConfigured && !input.HubHealthy:
		mode = ModeDegraded
	}

	groups := 0
	if ready {
		groups = input.SnapshotRecords
	}
	return Status{
		Mode:       mode,
		Ready:      ready,
		Groups:     groups,
		Components: components,
	}
}

// NewHandler returns the health HTTP handler with /livez, /readyz, and /healthz endpoints.
func NewHandler(provider Provider) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if provider.CurrentStatus(r.Context()).Ready {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		status := provider.CurrentStatus(r.Context())
		payload, err := json.Marshal(status)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"mode":"unhealthy","error":"marshal health status"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		//nolint:gosec // Health payload is server-generated JSON status.
		_, _ = w.Write(payload)
	})

	return mux
}
