package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/example/defense-scheduler/internal/application"
	"github.com/example/defense-scheduler/internal/logging"
)

const kindUnauthenticated = "unauthenticated"

var (
	errBadRequestBody   = errors.New("request body must be a JSON object")
	errMissingUserID    = errors.New("X-User-ID header is required")
	errInvalidDefenseID = errors.New("defense id is required")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	return responder{logger: logging.OrDefault(logger)}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// writeError reports a transport level failure that never reached the service.
func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, kind string, err error) {
	message := http.StatusText(status)
	if err != nil {
		message = err.Error()
	}
	r.loggerFor(ctx).InfoContext(ctx, "request rejected", "status", status, "error_kind", kind, "error", err)
	r.writeJSON(ctx, w, status, errorResponse{Error: errorDetail{Kind: kind, Message: message}})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	kind := application.ErrorKind(err)
	if kind == "" {
		kind = application.KindUnexpected
	}
	status := statusForKind(kind)
	detail := errorDetail{Kind: kind, Message: publicMessage(kind, err)}

	var vErr *application.ValidationError
	if errors.As(err, &vErr) && vErr.HasErrors() {
		detail.Fields = vErr.FieldErrors
	}

	logger := r.loggerFor(ctx)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, "request failed", "status", status, "error_kind", kind, "error", err)
	} else {
		logger.InfoContext(ctx, "request rejected", "status", status, "error_kind", kind, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Error: detail})
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	return logging.Resolve(ctx, r.logger)
}

func statusForKind(kind string) int {
	switch kind {
	case application.KindInvalidInput:
		return http.StatusUnprocessableEntity
	case application.KindNotFound:
		return http.StatusNotFound
	case application.KindForbidden:
		return http.StatusForbidden
	case application.KindConflict, application.KindInvalidState:
		return http.StatusConflict
	case application.KindInfrastructure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage keeps storage and transport details out of response bodies.
func publicMessage(kind string, err error) string {
	switch kind {
	case application.KindInvalidInput:
		return "request validation failed"
	case application.KindNotFound:
		var nfErr *application.NotFoundError
		if errors.As(err, &nfErr) {
			return nfErr.Error()
		}
		return "resource not found"
	case application.KindForbidden:
		return "operation not permitted for this user"
	case application.KindConflict:
		var cErr *application.ConflictError
		if errors.As(err, &cErr) {
			return cErr.Error()
		}
		return "conflict with an existing defense"
	case application.KindInvalidState:
		return "defense is cancelled and can no longer be changed"
	case application.KindInfrastructure:
		return "service temporarily unavailable, retry later"
	default:
		return "internal server error"
	}
}

type errorResponse struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string            `json:"kind"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}
