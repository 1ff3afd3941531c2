package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/defense-scheduler/internal/application"
	"github.com/example/defense-scheduler/internal/persistence"
	"github.com/example/defense-scheduler/internal/scheduler"
)

var (
	userCounter    uint64
	defenseCounter uint64
)

// 09:00 in Addis Ababa.
var referenceTime = time.Date(2025, time.April, 1, 6, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// InstitutionZone is the zone defenses are scheduled in.
const InstitutionZone = "Africa/Addis_Ababa"

// Location returns the institution zone, falling back to a fixed UTC+3 zone when
// the host has no tz database.
func Location() *time.Location {
	loc, err := time.LoadLocation(InstitutionZone)
	if err != nil {
		return time.FixedZone("EAT", 3*60*60)
	}
	return loc
}

// Directory roles.
const (
	RoleCoordinator = application.RoleCoordinator
	RoleStudent     = "student"
	RoleFaculty     = "faculty"
)

// Identifiers of the standard directory returned by Directory.
const (
	CoordinatorID = "coord-1"
	CandidateID   = "student-1"
	SupervisorID  = "faculty-sup"
	PanelistAID   = "faculty-a"
	PanelistBID   = "faculty-b"
)

// ----------------------------- User fixtures -----------------------------

// UserFixture represents a deterministic directory entry that can be materialised
// for application or persistence tests.
type UserFixture struct {
	ID        string
	Name      string
	Role      string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns a deterministic faculty user with optional overrides.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := UserFixture{
		ID:        id,
		Name:      fmt.Sprintf("User %03d", idx),
		Role:      RoleFaculty,
		Email:     fmt.Sprintf("%s@example.edu", id),
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(f *UserFixture) {
		f.ID = id
		f.Email = fmt.Sprintf("%s@example.edu", id)
	}
}

// WithUserName overrides the generated display name.
func WithUserName(name string) UserOption {
	return func(f *UserFixture) {
		f.Name = name
	}
}

// WithUserRole overrides the directory role.
func WithUserRole(role string) UserOption {
	return func(f *UserFixture) {
		f.Role = role
	}
}

// Application returns the fixture as an application.User value.
func (f UserFixture) Application() application.User {
	return application.User{
		ID:    f.ID,
		Name:  f.Name,
		Role:  f.Role,
		Email: f.Email,
	}
}

// Persistence returns the fixture as a persistence.User value.
func (f UserFixture) Persistence() persistence.User {
	return persistence.User{
		ID:        f.ID,
		Name:      f.Name,
		Role:      f.Role,
		Email:     f.Email,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// Principal returns an application.Principal acting as this user.
func (f UserFixture) Principal() application.Principal {
	return application.Principal{UserID: f.ID}
}

// Directory returns the standard set of users referenced by NewDefenseFixture:
// a coordinator, a candidate, a supervisor and two panelists.
func Directory() []UserFixture {
	return []UserFixture{
		NewUserFixture(WithUserID(CoordinatorID), WithUserName("Defense Coordinator"), WithUserRole(RoleCoordinator)),
		NewUserFixture(WithUserID(CandidateID), WithUserName("Hana Tesfaye"), WithUserRole(RoleStudent)),
		NewUserFixture(WithUserID(SupervisorID), WithUserName("Dawit Bekele"), WithUserRole(RoleFaculty)),
		NewUserFixture(WithUserID(PanelistAID), WithUserName("Sara Alemu"), WithUserRole(RoleFaculty)),
		NewUserFixture(WithUserID(PanelistBID), WithUserName("Yonas Girma"), WithUserRole(RoleFaculty)),
	}
}

// --------------------------- Defense fixtures ----------------------------

// DefenseFixture represents a defense booking expressed in local date and time.
type DefenseFixture struct {
	ID           string
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
	CreatedBy    string
}

// DefenseOption configures the generated defense fixture.
type DefenseOption func(*DefenseFixture)

// NewDefenseFixture returns an in-person defense on 2025-05-01 at 10:00 for the
// standard directory, with optional overrides.
func NewDefenseFixture(opts ...DefenseOption) DefenseFixture {
	idx := atomic.AddUint64(&defenseCounter, 1)
	fixture := DefenseFixture{
		ID:           fmt.Sprintf("defense-%03d", idx),
		Title:        fmt.Sprintf("Thesis Defense %03d", idx),
		CandidateID:  CandidateID,
		PanelistIDs:  []string{PanelistAID, PanelistBID},
		SupervisorID: SupervisorID,
		Date:         "2025-05-01",
		StartTime:    "10:00",
		DurationMins: 60,
		BufferMins:   15,
		Venue:        "Room 101",
		Modality:     scheduler.ModalityInPerson,
		CreatedBy:    CoordinatorID,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithDefenseID overrides the generated defense ID.
func WithDefenseID(id string) DefenseOption {
	return func(f *DefenseFixture) {
		f.ID = id
	}
}

// WithDefenseTitle overrides the generated title.
func WithDefenseTitle(title string) DefenseOption {
	return func(f *DefenseFixture) {
		f.Title = title
	}
}

// WithDefenseStart sets the local date (YYYY-MM-DD) and start time (HH:mm).
func WithDefenseStart(date, startTime string) DefenseOption {
	return func(f *DefenseFixture) {
		f.Date = date
		f.StartTime = startTime
	}
}

// WithDefenseDuration sets the duration and buffer in minutes.
func WithDefenseDuration(durationMins, bufferMins int) DefenseOption {
	return func(f *DefenseFixture) {
		f.DurationMins = durationMins
		f.BufferMins = bufferMins
	}
}

// WithDefenseCandidate overrides the candidate.
func WithDefenseCandidate(id string) DefenseOption {
	return func(f *DefenseFixture) {
		f.CandidateID = id
	}
}

// WithDefensePanel replaces the panel.
func WithDefensePanel(ids ...string) DefenseOption {
	return func(f *DefenseFixture) {
		f.PanelistIDs = append([]string(nil), ids...)
	}
}

// WithDefenseSupervisor overrides the supervisor. An empty id removes it.
func WithDefenseSupervisor(id string) DefenseOption {
	return func(f *DefenseFixture) {
		f.SupervisorID = id
	}
}

// WithDefenseVenue makes the defense in-person at venue.
func WithDefenseVenue(venue string) DefenseOption {
	return func(f *DefenseFixture) {
		f.Modality = scheduler.ModalityInPerson
		f.Venue = venue
		f.MeetingLink = ""
	}
}

// WithDefenseOnline makes the defense online at link.
func WithDefenseOnline(link string) DefenseOption {
	return func(f *DefenseFixture) {
		f.Modality = scheduler.ModalityOnline
		f.Venue = ""
		f.MeetingLink = link
	}
}

// Input returns the fixture as an application.DefenseInput.
func (f DefenseFixture) Input() application.DefenseInput {
	return application.DefenseInput{
		Title:        f.Title,
		CandidateID:  f.CandidateID,
		PanelistIDs:  append([]string(nil), f.PanelistIDs...),
		SupervisorID: f.SupervisorID,
		Date:         f.Date,
		StartTime:    f.StartTime,
		DurationMins: f.DurationMins,
		BufferMins:   f.BufferMins,
		Venue:        f.Venue,
		MeetingLink:  f.MeetingLink,
		Modality:     f.Modality,
		Notes:        f.Notes,
	}
}

// Start returns the start instant in the institution zone. It panics on a
// malformed date or time since fixtures are authored by tests.
func (f DefenseFixture) Start() time.Time {
	start, err := time.ParseInLocation("2006-01-02 15:04", f.Date+" "+f.StartTime, Location())
	if err != nil {
		panic(fmt.Sprintf("testfixtures: invalid defense start %q %q: %v", f.Date, f.StartTime, err))
	}
	return start
}

// Persistence returns the fixture as a scheduled persistence.Defense with a
// pending response for every invitee.
func (f DefenseFixture) Persistence() persistence.Defense {
	window := scheduler.ComputeWindow(f.Start(), f.DurationMins, f.BufferMins)
	people := scheduler.BuildPersonSet("", f.PanelistIDs, f.SupervisorID)
	responses := make([]persistence.Response, 0, len(people))
	for _, id := range people {
		if id == f.CandidateID {
			continue
		}
		responses = append(responses, persistence.Response{UserID: id, Status: string(application.ResponsePending)})
	}
	return persistence.Defense{
		ID:           f.ID,
		Title:        f.Title,
		CandidateID:  f.CandidateID,
		PanelistIDs:  scheduler.BuildPersonSet("", f.PanelistIDs, ""),
		SupervisorID: f.SupervisorID,
		Start:        window.Start.UTC(),
		End:          window.End.UTC(),
		DurationMins: window.DurationMins,
		BufferMins:   window.BufferMins,
		Venue:        f.Venue,
		MeetingLink:  f.MeetingLink,
		Modality:     string(f.Modality),
		Notes:        f.Notes,
		Status:       persistence.StatusScheduled,
		CreatedBy:    f.CreatedBy,
		CreatedAt:    referenceTime,
		UpdatedAt:    referenceTime,
		Responses:    responses,
	}
}
