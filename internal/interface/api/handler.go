package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"motwatch-service/internal/domain/entity"
	"motwatch-service/internal/usecase"
	"motwatch-service/pkg/logger"
)

// Handler serves the consumer-facing notification API.
type Handler struct {
	service *usecase.SubscriptionService
	logger  logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(service *usecase.SubscriptionService, logger logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

type registrationRequest struct {
	Registration string `json:"registration"`
}

type deviceRequest struct {
	Registration string              `json:"registration"`
	DeviceID     string              `json:"deviceId"`
	Endpoint     entity.PushEndpoint `json:"endpoint"`
}

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type errorBody struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type pollResponse struct {
	HasUpdate        bool                  `json:"hasUpdate"`
	Registration     string                `json:"registration"`
	LastCheckedDate  time.Time             `json:"lastCheckedDate"`
	LastMotTestDate  *time.Time            `json:"lastMotTestDate,omitempty"`
	UpdateDetectedAt *time.Time            `json:"updateDetectedAt,omitempty"`
	Details          *entity.UpdateDetails `json:"details,omitempty"`
}

// EnableNotification subscribes a vehicle. Idempotent: re-subscribing an
// already-tracked registration is success.
func (h *Handler) EnableNotification(w http.ResponseWriter, r *http.Request) {
	var req registrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, entity.ErrValidation, "malformed request body")
		return
	}

	result, err := h.service.Subscribe(r.Context(), req.Registration)
	if err != nil {
		h.writeError(w, err, "")
		return
	}

	message := "Notifications enabled for " + result.Registration
	if !result.Created {
		message = "Notifications already enabled for " + result.Registration
	}

	h.writeJSON(w, http.StatusOK, successResponse{Success: true, Message: message})
}

// DisableNotification unsubscribes a vehicle.
func (h *Handler) DisableNotification(w http.ResponseWriter, r *http.Request) {
	var req registrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, entity.ErrValidation, "malformed request body")
		return
	}

	if err := h.service.Unsubscribe(r.Context(), req.Registration); err != nil {
		h.writeError(w, err, "")
		return
	}

	h.writeJSON(w, http.StatusOK, successResponse{Success: true, Message: "Notifications disabled"})
}

// PendingNotifications is the poll endpoint. The first poll after a
// detection claims the update; later polls see hasUpdate=false until the
// scheduler detects the next test.
func (h *Handler) PendingNotifications(w http.ResponseWriter, r *http.Request) {
	registration := r.URL.Query().Get("registration")

	result, err := h.service.PollPending(r.Context(), registration)
	if err != nil {
		h.writeError(w, err, "")
		return
	}

	h.writeJSON(w, http.StatusOK, pollResponse{
		HasUpdate:        result.HasUpdate,
		Registration:     result.Registration,
		LastCheckedDate:  result.LastCheckedDate,
		LastMotTestDate:  result.LastMotTestDate,
		UpdateDetectedAt: result.UpdateDetectedAt,
		Details:          result.Details,
	})
}

// RegisterDevice upserts a device push subscription.
func (h *Handler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req deviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, entity.ErrValidation, "malformed request body")
		return
	}

	if err := h.service.RegisterDevice(r.Context(), req.Registration, req.DeviceID, req.Endpoint); err != nil {
		h.writeError(w, err, "")
		return
	}

	h.writeJSON(w, http.StatusOK, successResponse{Success: true, Message: "Device registered"})
}

// RemoveDevice deletes a device push subscription.
func (h *Handler) RemoveDevice(w http.ResponseWriter, r *http.Request) {
	registration := r.URL.Query().Get("registration")
	deviceID := r.URL.Query().Get("deviceId")

	if err := h.service.RemoveDevice(r.Context(), registration, deviceID); err != nil {
		h.writeError(w, err, "")
		return
	}

	h.writeJSON(w, http.StatusOK, successResponse{Success: true, Message: "Device removed"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}

// writeError maps the error taxonomy to a status code and a structured
// body. Internal detail never leaks: the message is the sentinel kind plus
// the optional override.
func (h *Handler) writeError(w http.ResponseWriter, err error, message string) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, entity.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, entity.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, entity.ErrRateLimited),
		errors.Is(err, entity.ErrUpstream),
		errors.Is(err, entity.ErrTimeout),
		errors.Is(err, entity.ErrAuth):
		status = http.StatusBadGateway
	case errors.Is(err, entity.ErrPersistence):
		status = http.StatusServiceUnavailable
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "kind", entity.ErrorKind(err), "error", err)
	}

	if message == "" {
		message = err.Error()
		if status == http.StatusInternalServerError {
			message = "internal error"
		}
	}

	h.writeJSON(w, status, errorResponse{Error: errorBody{
		Kind:      entity.ErrorKind(err),
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}})
}
