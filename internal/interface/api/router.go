package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the consumer API plus the metrics and health endpoints.
func NewRouter(handler *Handler) *mux.Router {
	router := mux.NewRouter()

	v1 := router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/enable-notification", handler.EnableNotification).Methods(http.MethodPost)
	v1.HandleFunc("/disable-notification", handler.DisableNotification).Methods(http.MethodPost)
	v1.HandleFunc("/pending-notifications", handler.PendingNotifications).Methods(http.MethodGet)
	v1.HandleFunc("/push-subscriptions", handler.RegisterDevice).Methods(http.MethodPost)
	v1.HandleFunc("/push-subscriptions", handler.RemoveDevice).Methods(http.MethodDelete)

	router.Handle("/metrics", promhttp.Handler())
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Healthy"))
	})

	return router
}
