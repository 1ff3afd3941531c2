package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/example/defense-scheduler/internal/application"
	"github.com/example/defense-scheduler/internal/scheduler"
)

type inboxService interface {
	ListInbox(ctx context.Context, principal application.Principal, limit int) ([]application.InboxEntry, error)
}

// InboxHandler serves GET /notifications.
type InboxHandler struct {
	service   inboxService
	responder responder
}

func NewInboxHandler(service inboxService, logger *slog.Logger) *InboxHandler {
	return &InboxHandler{service: service, responder: newResponder(logger)}
}

func (h *InboxHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	limit := 0
	if raw := first(r.URL.Query(), "limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.responder.handleServiceError(r.Context(), w, &application.ValidationError{
				FieldErrors: map[string]string{"limit": "limit must be an integer"},
			})
			return
		}
		limit = n
	}

	principal, _ := PrincipalFromContext(r.Context())
	entries, err := h.service.ListInbox(r.Context(), principal, limit)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]inboxEntryDTO, 0, len(entries))
	for _, e := range entries {
		dto := inboxEntryDTO{
			ID:        e.ID,
			Type:      string(e.Type),
			DefenseID: e.DefenseID,
			Title:     e.Title,
			Payload:   e.Payload,
			CreatedAt: scheduler.FormatInstant(e.CreatedAt),
		}
		if e.ReadAt != nil {
			at := scheduler.FormatInstant(*e.ReadAt)
			dto.ReadAt = &at
		}
		out = append(out, dto)
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, inboxResponse{Notifications: out})
}

type inboxResponse struct {
	Notifications []inboxEntryDTO `json:"notifications"`
}

type inboxEntryDTO struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	DefenseID string            `json:"defenseId"`
	Title     string            `json:"title"`
	Payload   map[string]string `json:"payload,omitempty"`
	CreatedAt string            `json:"createdAt"`
	ReadAt    *string           `json:"readAt"`
}
