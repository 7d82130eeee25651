// Package rest exposes the coordinator's admission and inspection surface
// over HTTP, following the teacher's mux-routed, JSON-encoded handler
// convention.
package rest

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ajkula/sendcoordinator/domain/model"
	"github.com/ajkula/sendcoordinator/domain/port/inbound"
)

// Handler serves the coordinator's REST admin surface.
type Handler struct {
	coordinator inbound.CoordinatorService
}

func NewHandler(coordinator inbound.CoordinatorService) *Handler {
	return &Handler{coordinator: coordinator}
}

// SetupRoutes registers the handler's routes on router.
func (h *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/v1/messages", h.submitMessage).Methods(http.MethodPost)
	router.HandleFunc("/v1/messages/{fingerprint}", h.getStatus).Methods(http.MethodGet)
	router.HandleFunc("/v1/stats", h.getStats).Methods(http.MethodGet)
	router.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
}

type submitRequest struct {
	Destination    string         `json:"destination"`
	Origin         string         `json:"origin"`
	Subject        string         `json:"subject"`
	Body           string         `json:"body"`
	IdempotencyKey string         `json:"idempotencyKey,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

func (h *Handler) submitMessage(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	msg := &model.Message{
		Destination:    req.Destination,
		Origin:         req.Origin,
		Subject:        req.Subject,
		Body:           req.Body,
		IdempotencyKey: req.IdempotencyKey,
		Metadata:       req.Metadata,
	}

	result, err := h.coordinator.Submit(msg)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch result.Outcome {
	case inbound.OutcomeSent:
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{"status": "SENT", "result": result.Success})
	case inbound.OutcomeQueued:
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]any{"status": "QUEUED", "result": result.Queued})
	case inbound.OutcomeFailed:
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{"status": "FAILED", "result": result.Failure})
	}
}

func (h *Handler) getStatus(w http.ResponseWriter, r *http.Request) {
	fp := model.Fingerprint(mux.Vars(r)["fingerprint"])

	status, ok := h.coordinator.LookupStatus(fp)
	if !ok {
		http.Error(w, "unknown fingerprint", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"fingerprint":      fp,
		"status":           status.Value.String(),
		"attempts":         status.Attempts,
		"currentTransport": status.CurrentTransport,
		"lastTimestamp":    status.LastTimestamp,
		"lastErrorDesc":    status.LastErrorDesc,
	})
}

func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	snap := h.coordinator.Snapshot()

	providers := make([]map[string]any, 0, len(snap.Providers))
	for _, p := range snap.Providers {
		providers = append(providers, map[string]any{
			"name":         p.Name,
			"breakerState": p.BreakerState.String(),
			"failureCount": p.FailureCount,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"totalObserved": snap.TotalObserved,
		"sent":          snap.Sent,
		"failed":        snap.Failed,
		"queued":        snap.Queued,
		"successRate":   snap.SuccessRate,
		"providers":     providers,
	})
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
