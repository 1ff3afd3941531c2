package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/example/defense-scheduler/internal/persistence"
)

// InboxWriter stores inbox entries.
type InboxWriter interface {
	CreateNotifications(ctx context.Context, notifications []persistence.Notification) error
}

// InboxSink writes one inbox entry per recipient.
type InboxSink struct {
	store InboxWriter
	newID func() string
}

// NewInboxSink creates a sink persisting to store with ids from newID.
func NewInboxSink(store InboxWriter, newID func() string) *InboxSink {
	return &InboxSink{store: store, newID: newID}
}

// Name identifies the sink in logs and metrics.
func (s *InboxSink) Name() string { return "inbox" }

// Deliver stores the message for every recipient in one batch.
func (s *InboxSink) Deliver(ctx context.Context, msg Message) error {
	if s.store == nil {
		return fmt.Errorf("inbox store not configured")
	}

	createdAt := msg.OccurredAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	payload := inboxPayload(msg)

	entries := make([]persistence.Notification, 0, len(msg.Recipients))
	for _, userID := range msg.Recipients {
		entries = append(entries, persistence.Notification{
			ID:        s.newID(),
			UserID:    userID,
			Type:      msg.Type,
			DefenseID: msg.DefenseID,
			Title:     msg.Title,
			Payload:   payload,
			CreatedAt: createdAt,
		})
	}
	if err := s.store.CreateNotifications(ctx, entries); err != nil {
		return fmt.Errorf("store inbox notifications: %w", err)
	}
	return nil
}

func inboxPayload(msg Message) map[string]string {
	payload := map[string]string{}
	set := func(key, value string) {
		if value != "" {
			payload[key] = value
		}
	}
	set("actorId", msg.ActorID)
	set("status", msg.Status)
	set("responseStatus", msg.ResponseStatus)
	set("reason", msg.Reason)
	if !msg.StartAt.IsZero() {
		payload["startAt"] = msg.StartAt.UTC().Format(time.RFC3339)
	}
	if !msg.EndAt.IsZero() {
		payload["endAt"] = msg.EndAt.UTC().Format(time.RFC3339)
	}
	return payload
}
