package persistence

import (
	"context"
	"time"
)

// BufferedWindow matches rows whose window widened by their own buffer intersects
// Start..End widened by BufferMins.
type BufferedWindow struct {
	Start      time.Time
	End        time.Time
	BufferMins int
}

// DefenseFilter narrows defense queries. PersonIDs and Venue combine with OR;
// the remaining fields combine with AND. Zero values do not filter.
type DefenseFilter struct {
	StartFrom        *time.Time
	StartTo          *time.Time
	Overlapping      *BufferedWindow
	PersonIDs        []string
	Venue            string
	CandidateID      string
	PanelistID       string
	ExcludeID        string
	IncludeCancelled bool
}

// ConflictCheck runs inside the write transaction before the row is written.
// A non-nil error from Verify aborts the write and is returned unchanged.
type ConflictCheck struct {
	Filter DefenseFilter
	Verify func(existing []Defense) error
}

// DefenseRepository stores defenses and their child records.
type DefenseRepository interface {
	GetDefense(ctx context.Context, id string) (Defense, error)
	ListDefenses(ctx context.Context, filter DefenseFilter) ([]Defense, error)
	CreateDefense(ctx context.Context, defense Defense, check ConflictCheck) (Defense, error)
	UpdateDefense(ctx context.Context, defense Defense, check ConflictCheck) (Defense, error)
	CancelDefense(ctx context.Context, id string, at time.Time) (Defense, error)
	RecordResponse(ctx context.Context, defenseID string, response Response) (Defense, error)
	AppendChangeRequest(ctx context.Context, defenseID string, request ChangeRequest) (Defense, error)
}

// UserRepository reads and seeds the user directory.
type UserRepository interface {
	GetUser(ctx context.Context, id string) (User, error)
	FindUsers(ctx context.Context, ids []string) ([]User, error)
	ListUsersByRole(ctx context.Context, role string) ([]User, error)
	UpsertUser(ctx context.Context, user User) error
}

// NotificationRepository stores per-recipient inbox entries.
type NotificationRepository interface {
	CreateNotifications(ctx context.Context, notifications []Notification) error
	ListNotifications(ctx context.Context, userID string, limit int) ([]Notification, error)
}
