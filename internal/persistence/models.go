package persistence

import "time"

// Defense status values stored in the defenses table.
const (
	StatusScheduled = "scheduled"
	StatusCancelled = "cancelled"
)

// Defense represents a thesis defense row with its panel, responses and change requests.
type Defense struct {
	ID             string
	Title          string
	CandidateID    string
	PanelistIDs    []string
	SupervisorID   string
	Start          time.Time
	End            time.Time
	DurationMins   int
	BufferMins     int
	Venue          string
	MeetingLink    string
	Modality       string
	Notes          string
	Status         string
	CreatedBy      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Responses      []Response
	ChangeRequests []ChangeRequest
}

// Response is an invitee's stored answer.
type Response struct {
	UserID      string
	Status      string
	Note        string
	RespondedAt *time.Time
}

// ChangeRequest is a logged reschedule request.
type ChangeRequest struct {
	RequestedBy    string
	Reason         string
	PreferredSlots []string
	RequestedAt    time.Time
}

// User represents a directory entry.
type User struct {
	ID        string
	Name      string
	Role      string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Notification is one inbox entry for a single recipient.
type Notification struct {
	ID        string
	UserID    string
	Type      string
	DefenseID string
	Title     string
	Payload   map[string]string
	CreatedAt time.Time
	ReadAt    *time.Time
}
