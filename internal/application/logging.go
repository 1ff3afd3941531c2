package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/defense-scheduler/internal/logging"
)

func serviceLogger(ctx context.Context, base *slog.Logger, service, operation string, attrs ...any) *slog.Logger {
	logger := logging.Resolve(ctx, base).With("service", service)
	if operation != "" {
		logger = logger.With("operation", operation)
	}
	return logger.With(attrs...)
}

// Error kind labels shared by logs, metrics and transport responses.
const (
	KindInvalidInput   = "invalid_input"
	KindNotFound       = "not_found"
	KindForbidden      = "forbidden"
	KindConflict       = "conflict"
	KindInvalidState   = "invalid_state"
	KindInfrastructure = "infrastructure"
	KindUnexpected     = "unexpected"
)

// ErrorKind maps sentinel and typed errors to a stable label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return KindInvalidInput
	}

	switch {
	case errors.Is(err, ErrInfrastructure):
		return KindInfrastructure
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrInvalidState):
		return KindInvalidState
	}

	return KindUnexpected
}

// logOutcome logs err at a level matching its kind: caller mistakes are
// warnings, everything else is an error.
func logOutcome(ctx context.Context, logger *slog.Logger, msg string, err error) {
	kind := ErrorKind(err)
	switch kind {
	case KindInfrastructure, KindUnexpected:
		logger.ErrorContext(ctx, msg, "error", err, "error_kind", kind)
	default:
		logger.WarnContext(ctx, msg, "error", err, "error_kind", kind)
	}
}
