package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/pulsestack/pulse-engine/internal/engine"
	"github.com/pulsestack/pulse-engine/internal/models"
	"github.com/pulsestack/pulse-engine/internal/narrative"
	"github.com/pulsestack/pulse-engine/internal/services"
	"github.com/pulsestack/pulse-engine/internal/store"
	"github.com/pulsestack/pulse-engine/internal/trend"
	"github.com/pulsestack/pulse-engine/internal/utils"
)

// narrativeLimit caps the pattern summaries returned in status responses.
const narrativeLimit = 10

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	logger  *slog.Logger
	monitor *services.Monitor
	store   *store.Store
	stream  http.Handler
	mux     *http.ServeMux
}

// ClusterStatus is one entry of the clusters listing.
type ClusterStatus struct {
	Name          string             `json:"name"`
	State         models.HealthState `json:"state"`
	LastEvaluated *time.Time         `json:"last_evaluated,omitempty"`
}

// StatusResponse is the full status surface for one cluster.
type StatusResponse struct {
	Cluster    string                     `json:"cluster"`
	State      models.HealthState         `json:"state"`
	Assessment *models.Assessment         `json:"assessment,omitempty"`
	Trend      trend.Context              `json:"trend"`
	Narrative  []narrative.PatternSummary `json:"narrative,omitempty"`
}

// EvaluateRequest drives a manual dry-run evaluation. The caller supplies
// the signals; nothing is recorded.
type EvaluateRequest struct {
	Cluster        string               `json:"cluster"`
	CurrentState   models.HealthState   `json:"current_state"`
	ProposedAction engine.ScalingAction `json:"proposed_action,omitempty"`
	ScaleUpCount   int                  `json:"scale_up_count,omitempty"`
	Snapshot       models.Snapshot      `json:"snapshot"`
	Worker         models.WorkerHealth  `json:"worker"`
}

type errorResponse struct {
	Error      string                  `json:"error"`
	Violations []models.FieldViolation `json:"violations,omitempty"`
}

// NewHandler creates a Handler and registers all routes. stream may be nil
// when the websocket surface is disabled.
func NewHandler(logger *slog.Logger, monitor *services.Monitor, assessments *store.Store, stream http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		logger:  logger,
		monitor: monitor,
		store:   assessments,
		stream:  stream,
		mux:     http.NewServeMux(),
	}

	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /api/v1/clusters", h.listClusters)
	h.mux.HandleFunc("GET /api/v1/status/{cluster}", h.clusterStatus)
	h.mux.HandleFunc("GET /api/v1/history/{cluster}", h.clusterHistory)
	h.mux.HandleFunc("POST /api/v1/evaluate", h.evaluate)
	if stream != nil {
		h.mux.Handle("/api/v1/stream", stream)
	}

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	jsonResp(w, http.StatusOK, map[string]string{"status": "ok"})
}

// listClusters returns GET /api/v1/clusters: every tracked cluster with its
// current state and last evaluation time.
func (h *Handler) listClusters(w http.ResponseWriter, _ *http.Request) {
	names := h.monitor.Clusters()
	out := make([]ClusterStatus, 0, len(names))
	for _, name := range names {
		status := ClusterStatus{Name: name, State: h.monitor.State(name)}
		if latest, ok := h.store.Latest(name); ok {
			ts := latest.Timestamp
			status.LastEvaluated = &ts
		}
		out = append(out, status)
	}
	jsonResp(w, http.StatusOK, out)
}

// clusterStatus returns GET /api/v1/status/{cluster}: the latest assessment
// plus trend and narrative context from the snapshot window.
func (h *Handler) clusterStatus(w http.ResponseWriter, r *http.Request) {
	cluster := r.PathValue("cluster")

	latest, ok := h.store.Latest(cluster)
	if !ok {
		jsonErr(w, http.StatusNotFound, "no assessment recorded for cluster "+cluster)
		return
	}

	snapshots := h.monitor.WindowSnapshots(cluster)
	resp := StatusResponse{
		Cluster:    cluster,
		State:      h.monitor.State(cluster),
		Assessment: &latest,
		Trend:      trend.Build(snapshots),
		Narrative:  narrative.Rollup(snapshots, narrativeLimit),
	}
	jsonResp(w, http.StatusOK, resp)
}

// clusterHistory returns GET /api/v1/history/{cluster}: retained assessments
// oldest first, optionally bounded by ?since=RFC3339.
func (h *Handler) clusterHistory(w http.ResponseWriter, r *http.Request) {
	cluster := r.PathValue("cluster")
	history := h.store.History(cluster)

	if since := r.URL.Query().Get("since"); since != "" {
		cutoff, err := utils.ParseRFC3339(since)
		if err != nil {
			jsonErr(w, http.StatusBadRequest, "invalid since parameter: "+err.Error())
			return
		}
		filtered := history[:0]
		for _, assessment := range history {
			if !assessment.Timestamp.Before(cutoff) {
				filtered = append(filtered, assessment)
			}
		}
		history = filtered
	}

	jsonResp(w, http.StatusOK, history)
}

// evaluate handles POST /api/v1/evaluate: a dry-run over caller-supplied
// signals that never mutates tracked state.
func (h *Handler) evaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Cluster == "" {
		jsonErr(w, http.StatusBadRequest, "cluster is required")
		return
	}

	if err := req.Snapshot.Validate(); err != nil {
		writeValidationError(w, err)
		return
	}
	if err := req.Worker.Validate(); err != nil {
		writeValidationError(w, err)
		return
	}

	if req.Snapshot.Timestamp.IsZero() {
		req.Snapshot.Timestamp = time.Now().UTC()
	}

	assessment := h.monitor.DryRun(req.Cluster, req.Snapshot, req.Worker, req.CurrentState, engine.ScalingContext{
		ProposedAction:       req.ProposedAction,
		ProposedScaleUpCount: req.ScaleUpCount,
	})
	jsonResp(w, http.StatusOK, assessment)
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

func writeValidationError(w http.ResponseWriter, err error) {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		jsonResp(w, http.StatusBadRequest, errorResponse{
			Error:      verr.Error(),
			Violations: verr.Violations,
		})
		return
	}
	jsonErr(w, http.StatusBadRequest, err.Error())
}
