package httpapi

import (
	"net/http"
	"time"

	"github.com/Proton-105/himera-wallet/internal/health"
)

type healthResponse struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components,omitempty"`
}

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	report := health.Report{Healthy: true}
	if a.probes != nil {
		report = a.probes.Report(r.Context())
	}

	resp := healthResponse{Status: "healthy", Timestamp: time.Now().UTC(), Components: report.Components}
	status := http.StatusOK
	if !report.Healthy {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeStatus(w, status, resp)
}

func (a *api) livez(w http.ResponseWriter, r *http.Request) {
	if a.probes != nil {
		if err := a.probes.Liveness(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) readyz(w http.ResponseWriter, r *http.Request) {
	if a.probes != nil {
		if err := a.probes.Readiness(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
