// Package api exposes tracking sessions and device ingestion over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/UnknownOlympus/compass/internal/models"
	"github.com/UnknownOlympus/compass/internal/repository"
	"github.com/UnknownOlympus/compass/internal/service"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Tracking is the service surface used by the handlers.
type Tracking interface {
	StartSession(ctx context.Context, deviceID string) (service.SessionInfo, error)
	StopSession(ctx context.Context, id uuid.UUID) error
	RestartSession(ctx context.Context, id uuid.UUID) (service.SessionInfo, error)
	Session(id uuid.UUID) (service.SessionInfo, error)
	Ingest(deviceID string, reading models.Reading) error
	IngestError(deviceID string, code int, message string) error
	LastPosition(ctx context.Context, deviceID string) (*models.Position, error)
}

// Pinger reports backing store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type handler struct {
	log      *slog.Logger
	tracking Tracking
	db       Pinger
}

type startRequest struct {
	DeviceID string `json:"device_id"`
}

type errorReport struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewRouter wires the API, health and metrics endpoints.
func NewRouter(log *slog.Logger, tracking Tracking, db Pinger, reg *prometheus.Registry) *mux.Router {
	h := &handler{log: log, tracking: tracking, db: db}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	r.HandleFunc("/sessions", h.startSession).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}", h.getSession).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}", h.stopSession).Methods(http.MethodDelete)
	r.HandleFunc("/sessions/{id}/restart", h.restartSession).Methods(http.MethodPost)

	r.HandleFunc("/devices/{device}/readings", h.ingestReading).Methods(http.MethodPost)
	r.HandleFunc("/devices/{device}/errors", h.ingestError).Methods(http.MethodPost)
	r.HandleFunc("/devices/{device}/position", h.lastPosition).Methods(http.MethodGet)

	return r
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	status, body := http.StatusOK, "OK"
	if err := h.db.Ping(r.Context()); err != nil {
		status, body = http.StatusServiceUnavailable, "DB ping failed"
	}
	w.WriteHeader(status)
	if _, err := w.Write([]byte(body)); err != nil {
		h.log.ErrorContext(r.Context(), "failed to write reply", "error", err)
	}
}

func (h *handler) startSession(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	info, err := h.tracking.StartSession(r.Context(), req.DeviceID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, info)
}

func (h *handler) getSession(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	info, err := h.tracking.Session(id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, info)
}

func (h *handler) stopSession(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	if err := h.tracking.StopSession(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) restartSession(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	info, err := h.tracking.RestartSession(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, info)
}

// ingestReading accepts raw fixes; range validation is the tracker's job, not the transport's.
func (h *handler) ingestReading(w http.ResponseWriter, r *http.Request) {
	var reading models.Reading
	if err := json.NewDecoder(r.Body).Decode(&reading); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid reading")
		return
	}
	if err := h.tracking.Ingest(mux.Vars(r)["device"], reading); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *handler) ingestError(w http.ResponseWriter, r *http.Request) {
	var report errorReport
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid error report")
		return
	}
	if err := h.tracking.IngestError(mux.Vars(r)["device"], report.Code, report.Message); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *handler) lastPosition(w http.ResponseWriter, r *http.Request) {
	pos, err := h.tracking.LastPosition(r.Context(), mux.Vars(r)["device"])
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, pos)
}

func (h *handler) sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid session id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, repository.ErrNotFound):
		h.writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidDevice):
		h.writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrServiceClosed):
		h.writeError(w, r, http.StatusServiceUnavailable, err.Error())
	default:
		h.log.ErrorContext(r.Context(), "Request failed", "path", r.URL.Path, "error", err)
		h.writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	h.writeJSON(w, r, status, map[string]string{"error": message})
}

func (h *handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.ErrorContext(r.Context(), "failed to write reply", "error", err)
	}
}
