package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/defense-scheduler/internal/logging"
)

// Inbox listing limits.
const (
	DefaultInboxLimit = 50
	MaxInboxLimit     = 200
)

// InboxEntry is a stored notification addressed to one user.
type InboxEntry struct {
	ID        string
	Type      NotificationType
	DefenseID string
	Title     string
	Payload   map[string]string
	CreatedAt time.Time
	ReadAt    *time.Time
}

// InboxRepository reads stored notifications.
type InboxRepository interface {
	ListInbox(ctx context.Context, userID string, limit int) ([]InboxEntry, error)
}

// InboxService exposes the caller's notification inbox.
type InboxService struct {
	repo   InboxRepository
	logger *slog.Logger
}

// NewInboxService creates an InboxService.
func NewInboxService(repo InboxRepository, logger *slog.Logger) *InboxService {
	return &InboxService{repo: repo, logger: logging.OrDefault(logger)}
}

// ListInbox returns the newest notifications of the principal. A zero limit selects the default.
func (s *InboxService) ListInbox(ctx context.Context, principal Principal, limit int) ([]InboxEntry, error) {
	if s == nil {
		return nil, fmt.Errorf("InboxService is nil")
	}
	if principal.UserID == "" {
		return nil, ErrForbidden
	}
	if limit < 0 || limit > MaxInboxLimit {
		return nil, newValidationError("limit", fmt.Sprintf("limit must be between 1 and %d", MaxInboxLimit))
	}
	if limit == 0 {
		limit = DefaultInboxLimit
	}
	if s.repo == nil {
		return nil, fmt.Errorf("inbox repository not configured")
	}

	entries, err := s.repo.ListInbox(ctx, principal.UserID, limit)
	if err != nil {
		err = &InfrastructureError{Op: "list inbox", Err: err}
		serviceLogger(ctx, s.logger, "InboxService", "ListInbox", "user_id", principal.UserID).
			ErrorContext(ctx, "failed to list inbox", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}
	if entries == nil {
		entries = []InboxEntry{}
	}
	return entries, nil
}
