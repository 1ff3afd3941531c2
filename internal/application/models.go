package application

import (
	"time"

	"github.com/example/defense-scheduler/internal/scheduler"
)

// Principal represents the user invoking a service method.
type Principal struct {
	UserID string
}

// DefenseStatus is the lifecycle state of a defense.
type DefenseStatus string

const (
	DefenseStatusScheduled DefenseStatus = "scheduled"
	DefenseStatusCancelled DefenseStatus = "cancelled"
)

// ResponseStatus is an invitee's answer to a defense invitation.
type ResponseStatus string

const (
	ResponsePending ResponseStatus = "pending"
	ResponseAccept  ResponseStatus = "accept"
	ResponseDecline ResponseStatus = "decline"
)

// RoleCoordinator identifies directory users who receive change requests.
const RoleCoordinator = "coordinator"

// Input limits.
const (
	MaxDurationMins     = 480
	MaxBufferMins       = 480
	MaxTitleLength      = 200
	MaxNotesLength      = 2000
	MaxResponseNote     = 1000
	MaxReasonLength     = 2000
	MaxPreferredSlots   = 20
	MaxPreferredSlotLen = 200
)

// Response is an invitee's answer to a defense invitation.
type Response struct {
	UserID      string
	Status      ResponseStatus
	Note        string
	RespondedAt *time.Time
}

// ChangeRequest is a candidate's logged request for a different slot.
type ChangeRequest struct {
	RequestedBy    string
	Reason         string
	PreferredSlots []string
	RequestedAt    time.Time
}

// Defense is a scheduled thesis defense.
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
	Modality       scheduler.Modality
	Notes          string
	Status         DefenseStatus
	CreatedBy      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Responses      []Response
	ChangeRequests []ChangeRequest
}

// Invitees returns the panelists and supervisor, the people who hold response entries.
// The candidate is never an invitee, even when also listed on the panel.
func (d Defense) Invitees() []string {
	set := scheduler.BuildPersonSet("", d.PanelistIDs, d.SupervisorID)
	out := set[:0]
	for _, id := range set {
		if id != d.CandidateID {
			out = append(out, id)
		}
	}
	return out
}

// People returns everyone attending the defense.
func (d Defense) People() []string {
	return scheduler.BuildPersonSet(d.CandidateID, d.PanelistIDs, d.SupervisorID)
}

func (d Defense) booking() scheduler.Booking {
	return scheduler.Booking{
		ID:         d.ID,
		Title:      d.Title,
		People:     d.People(),
		Venue:      d.Venue,
		Start:      d.Start,
		End:        d.End,
		BufferMins: d.BufferMins,
	}
}

// User is a directory record.
type User struct {
	ID    string
	Name  string
	Role  string
	Email string
}

// DefenseInput captures caller provided fields for a new defense.
type DefenseInput struct {
	Title        string
	CandidateID  string
	PanelistIDs  []string
	SupervisorID string
	Date         string
	StartTime    string
	DurationMins int
	BufferMins   int
	Venue        string
	MeetingLink  string
	Modality     scheduler.Modality
	Notes        string
}

// DefensePatch carries the fields to change; nil fields keep their current value.
type DefensePatch struct {
	Title        *string
	CandidateID  *string
	PanelistIDs  *[]string
	SupervisorID *string
	Date         *string
	StartTime    *string
	DurationMins *int
	BufferMins   *int
	Venue        *string
	MeetingLink  *string
	Modality     *scheduler.Modality
	Notes        *string
}

// CreateDefenseParams wraps the data required to schedule a defense.
type CreateDefenseParams struct {
	Principal Principal
	Input     DefenseInput
}

// UpdateDefenseParams wraps the data required to update an existing defense.
type UpdateDefenseParams struct {
	Principal Principal
	DefenseID string
	Patch     DefensePatch
}

// CancelDefenseParams identifies the defense to cancel.
type CancelDefenseParams struct {
	Principal Principal
	DefenseID string
}

// DuplicateDefenseParams identifies the source defense and the fields to override.
type DuplicateDefenseParams struct {
	Principal Principal
	DefenseID string
	Overrides DefensePatch
}

// RespondParams carries an invitee's answer.
type RespondParams struct {
	DefenseID string
	UserID    string
	Status    ResponseStatus
	Note      string
}

// ChangeRequestParams carries a candidate's reschedule request.
type ChangeRequestParams struct {
	DefenseID      string
	UserID         string
	Reason         string
	PreferredSlots []string
}

// ListDefensesParams narrows defense listings. Empty fields do not filter.
type ListDefensesParams struct {
	From             *time.Time
	To               *time.Time
	CandidateID      string
	PanelistID       string
	MineID           string
	IncludeCancelled bool
}

// AvailabilityParams selects the people and range to report busy slots for.
type AvailabilityParams struct {
	From    *time.Time
	To      *time.Time
	UserIDs []string
}

// BusySlot is a busy interval for a set of people. End includes the booking's buffer.
type BusySlot struct {
	Start        time.Time
	End          time.Time
	Participants []string
	BufferMins   int
}
