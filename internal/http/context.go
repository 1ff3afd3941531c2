package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/example/defense-scheduler/internal/application"
	"github.com/example/defense-scheduler/internal/logging"
)

type contextKey string

const principalContextKey contextKey = "principal"

// ContextWithPrincipal returns a derived context containing the calling principal.
func ContextWithPrincipal(ctx context.Context, principal application.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

// PrincipalFromContext extracts the calling principal from context if available.
func PrincipalFromContext(ctx context.Context) (application.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey).(application.Principal)
	return principal, ok
}

// ContextWithLogger attaches a request scoped logger.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return logging.ContextWithLogger(ctx, logger)
}

// LoggerFromContext returns the request scoped logger, or nil.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx)
}

// auditLogger tags the request logger with the action taken and the defense it touched.
func auditLogger(r *http.Request, fallback *slog.Logger, action, defenseID string) *slog.Logger {
	logger := logging.Resolve(r.Context(), fallback).With(slog.String("action", action))
	if defenseID != "" {
		logger = logger.With(slog.String("defense_id", defenseID))
	}
	if route := mux.CurrentRoute(r); route != nil {
		if name := route.GetName(); name != "" {
			logger = logger.With(slog.String("route", name))
		}
	}
	return logger
}
