package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/example/defense-scheduler/internal/logging"
)

// RouterConfig wires handlers into the router. Nil handlers leave their routes unregistered.
type RouterConfig struct {
	Defenses    *DefenseHandler
	Inbox       *InboxHandler
	Metrics     http.Handler
	Health      func(ctx context.Context) error
	CORSOrigins []string
	Logger      *slog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := logging.OrDefault(cfg.Logger)
	router := mux.NewRouter()

	router.HandleFunc("/healthz", healthHandler(cfg.Health, logger)).Methods(http.MethodGet)
	if cfg.Metrics != nil {
		router.Handle("/metrics", cfg.Metrics).Methods(http.MethodGet)
	}

	if cfg.Defenses != nil {
		defenses := router.PathPrefix("/defenses").Subrouter()
		defenses.Use(RequirePrincipal(logger))
		defenses.HandleFunc("", cfg.Defenses.List).Methods(http.MethodGet).Name("defenses.list")
		defenses.HandleFunc("", cfg.Defenses.Create).Methods(http.MethodPost).Name("defenses.create")
		defenses.HandleFunc("/availability", cfg.Defenses.Availability).Methods(http.MethodGet).Name("defenses.availability")
		defenses.HandleFunc("/{id}", cfg.Defenses.Get).Methods(http.MethodGet).Name("defenses.get")
		defenses.HandleFunc("/{id}", cfg.Defenses.Update).Methods(http.MethodPatch).Name("defenses.update")
		defenses.HandleFunc("/{id}", cfg.Defenses.Cancel).Methods(http.MethodDelete).Name("defenses.cancel")
		defenses.HandleFunc("/{id}/duplicate", cfg.Defenses.Duplicate).Methods(http.MethodPost).Name("defenses.duplicate")
		defenses.HandleFunc("/{id}/respond", cfg.Defenses.Respond).Methods(http.MethodPost).Name("defenses.respond")
		defenses.HandleFunc("/{id}/change-requests", cfg.Defenses.RequestChange).Methods(http.MethodPost).Name("defenses.change_request")
	}

	if cfg.Inbox != nil {
		inbox := router.PathPrefix("/notifications").Subrouter()
		inbox.Use(RequirePrincipal(logger))
		inbox.HandleFunc("", cfg.Inbox.List).Methods(http.MethodGet).Name("notifications.list")
	}

	var handler http.Handler = router
	handler = Recoverer(logger)(handler)
	handler = RequestLogger(logger)(handler)
	handler = CORS(cfg.CORSOrigins)(handler)
	return handler
}

func healthHandler(check func(ctx context.Context) error, logger *slog.Logger) http.HandlerFunc {
	responder := newResponder(logger)
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r.Context()); err != nil {
				responder.loggerFor(r.Context()).WarnContext(r.Context(), "health check failed", "error", err)
				responder.writeJSON(r.Context(), w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		responder.writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
