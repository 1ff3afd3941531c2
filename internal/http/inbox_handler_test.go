package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/example/defense-scheduler/internal/application"
)

type inboxServiceStub struct {
	entries   []application.InboxEntry
	err       error
	principal application.Principal
	limit     int
}

func (s *inboxServiceStub) ListInbox(_ context.Context, principal application.Principal, limit int) ([]application.InboxEntry, error) {
	s.principal = principal
	s.limit = limit
	return s.entries, s.err
}

func TestInboxHandler_List(t *testing.T) {
	t.Parallel()

	created := time.Date(2025, 5, 1, 6, 0, 0, 0, time.UTC)
	svc := &inboxServiceStub{entries: []application.InboxEntry{{
		ID:        "n-1",
		Type:      application.NotificationDefenseScheduled,
		DefenseID: "d-1",
		Title:     "Thesis defense",
		Payload:   map[string]string{"startAt": "2025-05-01T07:00:00Z"},
		CreatedAt: created,
	}}}
	router := NewRouter(RouterConfig{
		Inbox:  NewInboxHandler(svc, nil),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	rec := doRequest(t, router, http.MethodGet, "/notifications?limit=10", "u-p1", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if svc.principal.UserID != "u-p1" || svc.limit != 10 {
		t.Fatalf("principal = %+v limit = %d", svc.principal, svc.limit)
	}
	var body inboxResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Notifications) != 1 || body.Notifications[0].Type != "defense_scheduled" || body.Notifications[0].ReadAt != nil {
		t.Fatalf("notifications = %+v", body.Notifications)
	}

	rec = doRequest(t, router, http.MethodGet, "/notifications?limit=ten", "u-p1", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad limit status = %d", rec.Code)
	}

	rec = doRequest(t, router, http.MethodGet, "/notifications", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d", rec.Code)
	}
}
