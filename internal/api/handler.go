package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openwater-labs/aquanet/internal/domain"
	"github.com/openwater-labs/aquanet/internal/sim"
	"github.com/openwater-labs/aquanet/internal/store"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	loader  *store.Loader
	orch    *sim.Orchestrator
	records domain.CacheStore
	version string
}

// NewHandler creates a new API handler.
func NewHandler(loader *store.Loader, orch *sim.Orchestrator, records domain.CacheStore, version string) *Handler {
	return &Handler{
		loader:  loader,
		orch:    orch,
		records: records,
		version: version,
	}
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": h.version,
	})
}

// Ready handles GET /ready: the service is ready when the cache record
// store answers.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if pinger, ok := h.records.(interface{ Ping(context.Context) error }); ok {
		if err := pinger.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "cache store unavailable",
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// ListScenarios handles GET /scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{
		"scenarios": h.loader.ListScenarios(),
	})
}

// ListConfigs handles GET /scenarios/{scenario}/configs. Listing is total:
// an unknown scenario yields empty lists.
func (h *Handler) ListConfigs(w http.ResponseWriter, r *http.Request) {
	scenario := chi.URLParam(r, "scenario")
	writeJSON(w, http.StatusOK, h.loader.ListConfigs(scenario))
}

type leakResponse struct {
	PartID   string  `json:"partId"`
	IsPipe   bool    `json:"isPipe"`
	Kind     string  `json:"kind"`
	Diameter float64 `json:"diameter"`
	Start    int     `json:"start"`
	Peak     *int    `json:"peak,omitempty"`
	End      int     `json:"end"`
}

// GetLeakData handles GET /scenarios/{scenario}/leaks/{name}, serving the
// persisted leak config document.
func (h *Handler) GetLeakData(w http.ResponseWriter, r *http.Request) {
	scenario := chi.URLParam(r, "scenario")
	name := chi.URLParam(r, "name")

	lc, err := h.loader.GetLeakData(scenario, name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if lc == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "leak config " + name + " has not been generated in scenario " + scenario,
		})
		return
	}

	leaks := make([]leakResponse, 0, len(lc.Leaks))
	for _, l := range lc.Leaks {
		lr := leakResponse{
			PartID:   l.PartID,
			IsPipe:   l.IsPipe,
			Kind:     string(l.Kind),
			Diameter: l.Diameter,
			Start:    l.Start,
			End:      l.End,
		}
		if l.Kind == domain.LeakIncipient {
			peak := l.Peak
			lr.Peak = &peak
		}
		leaks = append(leaks, lr)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":  lc.Name,
		"leaks": leaks,
	})
}

type sensorfaultResponse struct {
	PartID     string   `json:"partId"`
	SensorType string   `json:"sensorType"`
	Start      int      `json:"start"`
	End        int      `json:"end"`
	FaultType  string   `json:"faultType"`
	FaultParam *float64 `json:"faultParam,omitempty"`
}

// GetSensorfaultData handles GET /scenarios/{scenario}/sensorfaults/{name}.
func (h *Handler) GetSensorfaultData(w http.ResponseWriter, r *http.Request) {
	scenario := chi.URLParam(r, "scenario")
	name := chi.URLParam(r, "name")

	sc, err := h.loader.GetSensorfaultData(scenario, name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if sc == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "sensorfault config " + name + " has not been generated in scenario " + scenario,
		})
		return
	}

	faults := make([]sensorfaultResponse, 0, len(sc.Faults))
	for _, f := range sc.Faults {
		fr := sensorfaultResponse{
			PartID:     f.PartID,
			SensorType: string(f.SensorType),
			Start:      f.Start,
			End:        f.End,
			FaultType:  domain.FaultName(f.Fault),
		}
		if p, ok := domain.FaultParam(f.Fault); ok {
			param := p
			fr.FaultParam = &param
		}
		faults = append(faults, fr)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":   sc.Name,
		"faults": faults,
	})
}

// GetData handles GET /scenarios/{scenario}/data, composing one dataset
// from the leak, sensors and faults query parameters. An optional
// measurement parameter restricts the response to one table.
func (h *Handler) GetData(w http.ResponseWriter, r *http.Request) {
	scenario := chi.URLParam(r, "scenario")
	q := r.URL.Query()
	leak, sensors, faults := q.Get("leak"), q.Get("sensors"), q.Get("faults")
	if leak == "" || sensors == "" || faults == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "leak, sensors and faults query parameters are required",
		})
		return
	}

	ds, err := h.loader.Get(r.Context(), scenario, leak, sensors, faults)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if m := q.Get("measurement"); m != "" {
		st, err := domain.ParseSensorType(m)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ds.Table(st))
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

// GenerateRequest is the request body for POST /generate.
type GenerateRequest struct {
	Parallel  bool   `json:"parallel"`
	Workers   int    `json:"workers"`
	Force     bool   `json:"force"`
	Selection string `json:"selection"`
}

type pairResponse struct {
	Scenario   string `json:"scenario"`
	LeakConfig string `json:"leakConfig"`
	Rebuilt    bool   `json:"rebuilt"`
	DurationMs int64  `json:"durationMs"`
	Error      string `json:"error,omitempty"`
}

// GenerateResponse is the response for POST /generate.
type GenerateResponse struct {
	RunID   string         `json:"runId"`
	Rebuilt int            `json:"rebuilt"`
	Skipped int            `json:"skipped"`
	Failed  int            `json:"failed"`
	Pairs   []pairResponse `json:"pairs"`
}

// Generate handles POST /generate, running the write path synchronously
// and reporting the per-pair summary.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid JSON request body",
			})
			return
		}
	}

	summary, err := h.orch.Generate(r.Context(), h.loader.Collection(), sim.Options{
		Parallel:  req.Parallel,
		Workers:   req.Workers,
		Force:     req.Force,
		Selection: req.Selection,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := GenerateResponse{
		RunID:   summary.RunID,
		Rebuilt: summary.Rebuilt,
		Skipped: summary.Skipped,
		Failed:  summary.Failed,
	}
	for _, p := range summary.Pairs {
		pr := pairResponse{
			Scenario:   p.Scenario,
			LeakConfig: p.LeakConfig,
			Rebuilt:    p.Rebuilt,
			DurationMs: p.Duration.Milliseconds(),
		}
		if p.Err != nil {
			pr.Error = p.Err.Error()
		}
		resp.Pairs = append(resp.Pairs, pr)
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeError maps the domain error taxonomy onto HTTP statuses.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrConfig):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrSimulation):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		slog.Error("request failed",
			"path", r.URL.Path,
			"request_id", GetRequestID(r.Context()),
			"error", err,
		)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
