package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/example/defense-scheduler/internal/logging"
	"github.com/example/defense-scheduler/internal/persistence"
	"github.com/example/defense-scheduler/internal/scheduler"
)

// DefenseRepository captures the persistence interactions needed by the service.
type DefenseRepository interface {
	GetDefense(ctx context.Context, id string) (Defense, error)
	ListDefenses(ctx context.Context, filter DefenseFilter) ([]Defense, error)
	CreateDefense(ctx context.Context, defense Defense, check ConflictCheck) (Defense, error)
	UpdateDefense(ctx context.Context, defense Defense, check ConflictCheck) (Defense, error)
	CancelDefense(ctx context.Context, id string, at time.Time) (Defense, error)
	RecordResponse(ctx context.Context, defenseID string, response Response) (Defense, error)
	AppendChangeRequest(ctx context.Context, defenseID string, request ChangeRequest) (Defense, error)
}

// BufferedWindow selects defenses whose window, widened by their own buffer,
// intersects Start..End widened by BufferMins.
type BufferedWindow struct {
	Start      time.Time
	End        time.Time
	BufferMins int
}

// DefenseFilter narrows queries issued to the defense repository. Zero fields do not filter.
// PersonIDs and Venue combine with OR; every other field combines with AND.
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

// ConflictCheck is evaluated by the repository inside the write transaction.
// Filter selects the candidate collisions and Verify rejects the write when any remain.
type ConflictCheck struct {
	Filter DefenseFilter
	Verify func(existing []Defense) error
}

// IdentityResolver resolves directory users.
type IdentityResolver interface {
	ResolveUsers(ctx context.Context, ids []string) ([]User, error)
	UsersByRole(ctx context.Context, role string) ([]User, error)
}

// Notifier accepts notifications for asynchronous delivery.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// DefenseServiceDeps lists the collaborators of DefenseService. Only Defenses is required.
type DefenseServiceDeps struct {
	Defenses    DefenseRepository
	Identity    IdentityResolver
	Notifier    Notifier
	Calendar    scheduler.Calendar
	IDGenerator func() string
	Logger      *slog.Logger
	Registerer  prometheus.Registerer
}

// DefenseService orchestrates validation, conflict detection and persistence for defenses.
type DefenseService struct {
	defenses    DefenseRepository
	identity    IdentityResolver
	notifier    Notifier
	calendar    scheduler.Calendar
	idGenerator func() string
	logger      *slog.Logger
	metrics     *serviceMetrics
}

// NewDefenseService wires dependencies for defense operations.
func NewDefenseService(deps DefenseServiceDeps) *DefenseService {
	idGenerator := deps.IDGenerator
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	return &DefenseService{
		defenses:    deps.Defenses,
		identity:    deps.Identity,
		notifier:    deps.Notifier,
		calendar:    deps.Calendar,
		idGenerator: idGenerator,
		logger:      logging.OrDefault(deps.Logger),
		metrics:     newServiceMetrics(deps.Registerer),
	}
}

func (s *DefenseService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "DefenseService", operation, attrs...)
}

// CreateDefense validates the request, checks for conflicts and persists a new defense.
func (s *DefenseService) CreateDefense(ctx context.Context, params CreateDefenseParams) (defense Defense, err error) {
	if s == nil {
		err = fmt.Errorf("DefenseService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateDefense",
		"principal_id", params.Principal.UserID,
	)
	defer func() {
		s.metrics.observe("create", err)
		if err != nil {
			logOutcome(ctx, logger, "failed to create defense", err)
			return
		}
		logger.With("defense_id", defense.ID).InfoContext(ctx, "defense created")
	}()

	if s.defenses == nil {
		err = fmt.Errorf("defense repository not configured")
		return
	}

	var draft Defense
	draft, err = s.prepare(ctx, params.Input)
	if err != nil {
		return
	}

	now := s.calendar.Now()
	draft.ID = s.idGenerator()
	draft.Status = DefenseStatusScheduled
	draft.CreatedBy = strings.TrimSpace(params.Principal.UserID)
	draft.CreatedAt = now
	draft.UpdatedAt = now
	draft.Responses = pendingResponses(draft.Invitees())

	defense, err = s.defenses.CreateDefense(ctx, draft, s.conflictCheck(draft))
	if err != nil {
		err = mapDefenseRepoError("create defense", err)
		return
	}

	s.notify(ctx, logger, newDefenseNotification(NotificationDefenseScheduled, defense, defense.CreatedBy, defense.Invitees()))
	return
}

// UpdateDefense applies a partial patch to a scheduled defense, re-running every creation check.
func (s *DefenseService) UpdateDefense(ctx context.Context, params UpdateDefenseParams) (defense Defense, err error) {
	if s == nil {
		err = fmt.Errorf("DefenseService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateDefense",
		"principal_id", params.Principal.UserID,
		"defense_id", params.DefenseID,
	)
	defer func() {
		s.metrics.observe("update", err)
		if err != nil {
			logOutcome(ctx, logger, "failed to update defense", err)
			return
		}
		logger.InfoContext(ctx, "defense updated")
	}()

	if s.defenses == nil {
		err = fmt.Errorf("defense repository not configured")
		return
	}

	var existing Defense
	existing, err = s.defenses.GetDefense(ctx, params.DefenseID)
	if err != nil {
		err = mapDefenseRepoError("load defense", err)
		return
	}
	if existing.Status == DefenseStatusCancelled {
		err = ErrInvalidState
		return
	}

	var draft Defense
	draft, err = s.prepare(ctx, s.mergePatch(existing, params.Patch))
	if err != nil {
		return
	}

	updated := existing
	updated.Title = draft.Title
	updated.CandidateID = draft.CandidateID
	updated.PanelistIDs = draft.PanelistIDs
	updated.SupervisorID = draft.SupervisorID
	updated.Start = draft.Start
	updated.End = draft.End
	updated.DurationMins = draft.DurationMins
	updated.BufferMins = draft.BufferMins
	updated.Venue = draft.Venue
	updated.MeetingLink = draft.MeetingLink
	updated.Modality = draft.Modality
	updated.Notes = draft.Notes
	updated.UpdatedAt = s.calendar.Now()
	updated.Responses = reconcileResponses(existing.Responses, updated.Invitees())

	defense, err = s.defenses.UpdateDefense(ctx, updated, s.conflictCheck(updated))
	if err != nil {
		err = mapDefenseRepoError("update defense", err)
		return
	}

	s.notify(ctx, logger, newDefenseNotification(NotificationDefenseUpdated, defense, params.Principal.UserID, defense.People()))
	return
}

// CancelDefense marks a defense cancelled. Cancelling twice is not an error.
func (s *DefenseService) CancelDefense(ctx context.Context, params CancelDefenseParams) (defense Defense, err error) {
	if s == nil {
		err = fmt.Errorf("DefenseService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CancelDefense",
		"principal_id", params.Principal.UserID,
		"defense_id", params.DefenseID,
	)
	defer func() {
		s.metrics.observe("cancel", err)
		if err != nil {
			logOutcome(ctx, logger, "failed to cancel defense", err)
			return
		}
		logger.InfoContext(ctx, "defense cancelled")
	}()

	if s.defenses == nil {
		err = fmt.Errorf("defense repository not configured")
		return
	}

	defense, err = s.defenses.CancelDefense(ctx, params.DefenseID, s.calendar.Now())
	if err != nil {
		err = mapDefenseRepoError("cancel defense", err)
		return
	}

	s.notify(ctx, logger, newDefenseNotification(NotificationDefenseCancelled, defense, params.Principal.UserID, defense.People()))
	return
}

// DuplicateDefense books a copy of an existing defense, applying overrides on top of its fields.
func (s *DefenseService) DuplicateDefense(ctx context.Context, params DuplicateDefenseParams) (defense Defense, err error) {
	if s == nil {
		err = fmt.Errorf("DefenseService is nil")
		return
	}

	logger := s.loggerWith(ctx, "DuplicateDefense",
		"principal_id", params.Principal.UserID,
		"source_defense_id", params.DefenseID,
	)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, "failed to duplicate defense", err)
			return
		}
		logger.With("defense_id", defense.ID).InfoContext(ctx, "defense duplicated")
	}()

	if s.defenses == nil {
		err = fmt.Errorf("defense repository not configured")
		return
	}

	var source Defense
	source, err = s.defenses.GetDefense(ctx, params.DefenseID)
	if err != nil {
		err = mapDefenseRepoError("load defense", err)
		return
	}

	input := s.mergePatch(source, params.Overrides)
	if params.Overrides.Title == nil {
		input.Title = source.Title + " (Copy)"
	}

	defense, err = s.CreateDefense(ctx, CreateDefenseParams{Principal: params.Principal, Input: input})
	return
}

// RespondToDefense records an invitee's accept or decline.
func (s *DefenseService) RespondToDefense(ctx context.Context, params RespondParams) (defense Defense, err error) {
	if s == nil {
		err = fmt.Errorf("DefenseService is nil")
		return
	}

	logger := s.loggerWith(ctx, "RespondToDefense",
		"principal_id", params.UserID,
		"defense_id", params.DefenseID,
	)
	defer func() {
		s.metrics.observe("respond", err)
		if err != nil {
			logOutcome(ctx, logger, "failed to record response", err)
			return
		}
		logger.With("status", params.Status).InfoContext(ctx, "response recorded")
	}()

	if s.defenses == nil {
		err = fmt.Errorf("defense repository not configured")
		return
	}

	var existing Defense
	existing, err = s.defenses.GetDefense(ctx, params.DefenseID)
	if err != nil {
		err = mapDefenseRepoError("load defense", err)
		return
	}

	vErr := &ValidationError{}
	if params.Status != ResponseAccept && params.Status != ResponseDecline {
		vErr.add("status", "status must be accept or decline")
	}
	note := strings.TrimSpace(params.Note)
	if utf8.RuneCountInString(note) > MaxResponseNote {
		vErr.add("note", fmt.Sprintf("note must be at most %d characters", MaxResponseNote))
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if existing.Status == DefenseStatusCancelled {
		err = ErrInvalidState
		return
	}

	userID := strings.TrimSpace(params.UserID)
	if !hasResponseEntry(existing.Responses, userID) {
		err = &NotFoundError{Resource: "invitation", IDs: []string{userID}}
		return
	}

	respondedAt := s.calendar.Now()
	defense, err = s.defenses.RecordResponse(ctx, existing.ID, Response{
		UserID:      userID,
		Status:      params.Status,
		Note:        note,
		RespondedAt: &respondedAt,
	})
	if err != nil {
		err = mapDefenseRepoError("record response", err)
		return
	}

	if defense.CreatedBy != "" {
		n := newDefenseNotification(NotificationDefenseResponse, defense, userID, []string{defense.CreatedBy})
		n.ResponseStatus = params.Status
		s.notify(ctx, logger, n)
	}
	return
}

// RequestChange appends a reschedule request from the defense's candidate and alerts coordinators.
func (s *DefenseService) RequestChange(ctx context.Context, params ChangeRequestParams) (defense Defense, err error) {
	if s == nil {
		err = fmt.Errorf("DefenseService is nil")
		return
	}

	logger := s.loggerWith(ctx, "RequestChange",
		"principal_id", params.UserID,
		"defense_id", params.DefenseID,
	)
	defer func() {
		s.metrics.observe("request_change", err)
		if err != nil {
			logOutcome(ctx, logger, "failed to record change request", err)
			return
		}
		logger.InfoContext(ctx, "change request recorded")
	}()

	if s.defenses == nil {
		err = fmt.Errorf("defense repository not configured")
		return
	}

	var existing Defense
	existing, err = s.defenses.GetDefense(ctx, params.DefenseID)
	if err != nil {
		err = mapDefenseRepoError("load defense", err)
		return
	}

	userID := strings.TrimSpace(params.UserID)
	if userID == "" || userID != existing.CandidateID {
		err = ErrForbidden
		return
	}

	vErr := &ValidationError{}
	reason := strings.TrimSpace(params.Reason)
	switch {
	case reason == "":
		vErr.add("reason", "reason is required")
	case utf8.RuneCountInString(reason) > MaxReasonLength:
		vErr.add("reason", fmt.Sprintf("reason must be at most %d characters", MaxReasonLength))
	}
	slots := sanitizeSlots(params.PreferredSlots)
	if len(slots) > MaxPreferredSlots {
		vErr.add("preferredSlots", fmt.Sprintf("at most %d preferred slots are allowed", MaxPreferredSlots))
	}
	for _, slot := range slots {
		if utf8.RuneCountInString(slot) > MaxPreferredSlotLen {
			vErr.add("preferredSlots", fmt.Sprintf("each preferred slot must be at most %d characters", MaxPreferredSlotLen))
			break
		}
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if existing.Status == DefenseStatusCancelled {
		err = ErrInvalidState
		return
	}

	defense, err = s.defenses.AppendChangeRequest(ctx, existing.ID, ChangeRequest{
		RequestedBy:    userID,
		Reason:         reason,
		PreferredSlots: slots,
		RequestedAt:    s.calendar.Now(),
	})
	if err != nil {
		err = mapDefenseRepoError("append change request", err)
		return
	}

	coordinators := s.coordinatorIDs(ctx, logger)
	if len(coordinators) > 0 {
		n := newDefenseNotification(NotificationDefenseChangeRequested, defense, userID, coordinators)
		n.Reason = reason
		s.notify(ctx, logger, n)
	}
	return
}

// GetDefense returns a single defense by id.
func (s *DefenseService) GetDefense(ctx context.Context, id string) (Defense, error) {
	if s == nil {
		return Defense{}, fmt.Errorf("DefenseService is nil")
	}
	if s.defenses == nil {
		return Defense{}, fmt.Errorf("defense repository not configured")
	}

	defense, err := s.defenses.GetDefense(ctx, id)
	if err != nil {
		err = mapDefenseRepoError("load defense", err)
		if ErrorKind(err) == KindInfrastructure {
			s.loggerWith(ctx, "GetDefense", "defense_id", id).ErrorContext(ctx, "failed to load defense", "error", err, "error_kind", KindInfrastructure)
		}
		return Defense{}, err
	}
	return defense, nil
}

// ListDefenses returns defenses matching the filters, ordered by start time.
func (s *DefenseService) ListDefenses(ctx context.Context, params ListDefensesParams) ([]Defense, error) {
	if s == nil {
		return nil, fmt.Errorf("DefenseService is nil")
	}
	if s.defenses == nil {
		return nil, fmt.Errorf("defense repository not configured")
	}

	if err := validateRange(params.From, params.To); err != nil {
		return nil, err
	}

	filter := DefenseFilter{
		StartFrom:        params.From,
		StartTo:          params.To,
		CandidateID:      strings.TrimSpace(params.CandidateID),
		PanelistID:       strings.TrimSpace(params.PanelistID),
		IncludeCancelled: params.IncludeCancelled,
	}
	if mine := strings.TrimSpace(params.MineID); mine != "" {
		filter.PersonIDs = []string{mine}
	}

	defenses, err := s.defenses.ListDefenses(ctx, filter)
	if err != nil {
		err = mapDefenseRepoError("list defenses", err)
		s.loggerWith(ctx, "ListDefenses").ErrorContext(ctx, "failed to list defenses", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}

	sortDefenses(defenses)
	return defenses, nil
}

// Availability reports the busy intervals of the given people. No defense detail is exposed.
func (s *DefenseService) Availability(ctx context.Context, params AvailabilityParams) ([]BusySlot, error) {
	if s == nil {
		return nil, fmt.Errorf("DefenseService is nil")
	}

	ids := uniqueStrings(params.UserIDs)
	if len(ids) == 0 {
		return []BusySlot{}, nil
	}
	if s.defenses == nil {
		return nil, fmt.Errorf("defense repository not configured")
	}
	if err := validateRange(params.From, params.To); err != nil {
		return nil, err
	}

	defenses, err := s.defenses.ListDefenses(ctx, DefenseFilter{
		StartFrom: params.From,
		StartTo:   params.To,
		PersonIDs: ids,
	})
	if err != nil {
		err = mapDefenseRepoError("list defenses", err)
		s.loggerWith(ctx, "Availability").ErrorContext(ctx, "failed to query availability", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}

	sortDefenses(defenses)
	slots := make([]BusySlot, 0, len(defenses))
	for _, d := range defenses {
		if d.Status == DefenseStatusCancelled {
			continue
		}
		slots = append(slots, BusySlot{
			Start:        d.Start,
			End:          d.End.Add(time.Duration(d.BufferMins) * time.Minute),
			Participants: d.People(),
			BufferMins:   d.BufferMins,
		})
	}
	return slots, nil
}

// prepare validates input and resolves participants, returning the normalized defense fields.
// Field validation runs in full before any directory lookup.
func (s *DefenseService) prepare(ctx context.Context, input DefenseInput) (Defense, error) {
	vErr := &ValidationError{}

	title := strings.TrimSpace(input.Title)
	switch {
	case title == "":
		vErr.add("title", "title is required")
	case utf8.RuneCountInString(title) > MaxTitleLength:
		vErr.add("title", fmt.Sprintf("title must be at most %d characters", MaxTitleLength))
	}

	candidate := strings.TrimSpace(input.CandidateID)
	if candidate == "" {
		vErr.add("candidateId", "candidate is required")
	}

	panelists := uniqueStrings(input.PanelistIDs)
	if len(panelists) == 0 {
		vErr.add("panelistIds", "at least one panelist is required")
	}
	supervisor := strings.TrimSpace(input.SupervisorID)

	if input.DurationMins > MaxDurationMins {
		vErr.add("durationMins", fmt.Sprintf("duration must be at most %d minutes", MaxDurationMins))
	}
	if input.BufferMins > MaxBufferMins {
		vErr.add("bufferMins", fmt.Sprintf("buffer must be at most %d minutes", MaxBufferMins))
	}

	notes := strings.TrimSpace(input.Notes)
	if utf8.RuneCountInString(notes) > MaxNotesLength {
		vErr.add("notes", fmt.Sprintf("notes must be at most %d characters", MaxNotesLength))
	}

	start, parseErr := s.calendar.ParseLocalStart(input.Date, input.StartTime)
	if parseErr == nil {
		parseErr = s.calendar.EnsureFuture(start)
	}
	addFieldError(vErr, parseErr)

	venue, link, locErr := scheduler.NormalizeVenueAndLink(input.Modality, input.Venue, input.MeetingLink)
	addFieldError(vErr, locErr)

	if vErr.HasErrors() {
		return Defense{}, vErr
	}

	if err := s.ensureUsersExist(ctx, scheduler.BuildPersonSet(candidate, panelists, supervisor)); err != nil {
		return Defense{}, err
	}

	window := scheduler.ComputeWindow(start, input.DurationMins, input.BufferMins)
	return Defense{
		Title:        title,
		CandidateID:  candidate,
		PanelistIDs:  panelists,
		SupervisorID: supervisor,
		Start:        window.Start,
		End:          window.End,
		DurationMins: window.DurationMins,
		BufferMins:   window.BufferMins,
		Venue:        venue,
		MeetingLink:  link,
		Modality:     input.Modality,
		Notes:        notes,
	}, nil
}

// mergePatch builds a full input from base, replacing the fields set in patch.
// Date and start time default to base's start re-expressed in the institution zone.
func (s *DefenseService) mergePatch(base Defense, patch DefensePatch) DefenseInput {
	date, clock := s.calendar.LocalDateTime(base.Start)
	input := DefenseInput{
		Title:        base.Title,
		CandidateID:  base.CandidateID,
		PanelistIDs:  append([]string(nil), base.PanelistIDs...),
		SupervisorID: base.SupervisorID,
		Date:         date,
		StartTime:    clock,
		DurationMins: base.DurationMins,
		BufferMins:   base.BufferMins,
		Venue:        base.Venue,
		MeetingLink:  base.MeetingLink,
		Modality:     base.Modality,
		Notes:        base.Notes,
	}

	if patch.Title != nil {
		input.Title = *patch.Title
	}
	if patch.CandidateID != nil {
		input.CandidateID = *patch.CandidateID
	}
	if patch.PanelistIDs != nil {
		input.PanelistIDs = append([]string(nil), (*patch.PanelistIDs)...)
	}
	if patch.SupervisorID != nil {
		input.SupervisorID = *patch.SupervisorID
	}
	if patch.Date != nil {
		input.Date = *patch.Date
	}
	if patch.StartTime != nil {
		input.StartTime = *patch.StartTime
	}
	if patch.DurationMins != nil {
		input.DurationMins = *patch.DurationMins
	}
	if patch.BufferMins != nil {
		input.BufferMins = *patch.BufferMins
	}
	if patch.Venue != nil {
		input.Venue = *patch.Venue
	}
	if patch.MeetingLink != nil {
		input.MeetingLink = *patch.MeetingLink
	}
	if patch.Modality != nil {
		input.Modality = *patch.Modality
	}
	if patch.Notes != nil {
		input.Notes = *patch.Notes
	}
	return input
}

// conflictCheck selects non-cancelled defenses that overlap the draft in buffered time and
// share a person or its venue, and rejects the write naming the first collision.
func (s *DefenseService) conflictCheck(draft Defense) ConflictCheck {
	candidate := draft.booking()
	return ConflictCheck{
		Filter: DefenseFilter{
			Overlapping: &BufferedWindow{
				Start:      draft.Start,
				End:        draft.End,
				BufferMins: draft.BufferMins,
			},
			PersonIDs: candidate.People,
			Venue:     draft.Venue,
			ExcludeID: draft.ID,
		},
		Verify: func(existing []Defense) error {
			bookings := make([]scheduler.Booking, 0, len(existing))
			for _, d := range existing {
				if d.Status == DefenseStatusCancelled {
					continue
				}
				bookings = append(bookings, d.booking())
			}
			conflicts := scheduler.DetectConflicts(bookings, candidate)
			if len(conflicts) == 0 {
				return nil
			}
			return &ConflictError{DefenseID: conflicts[0].WithBookingID, Title: conflicts[0].WithTitle}
		},
	}
}

func (s *DefenseService) ensureUsersExist(ctx context.Context, ids []string) error {
	if s.identity == nil || len(ids) == 0 {
		return nil
	}

	users, err := s.identity.ResolveUsers(ctx, ids)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return &InfrastructureError{Op: "resolve users", Err: err}
	}

	found := make(map[string]struct{}, len(users))
	for _, u := range users {
		found[u.ID] = struct{}{}
	}
	var missing []string
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return &NotFoundError{Resource: "user", IDs: missing}
	}
	return nil
}

func (s *DefenseService) coordinatorIDs(ctx context.Context, logger *slog.Logger) []string {
	if s.identity == nil {
		return nil
	}
	users, err := s.identity.UsersByRole(ctx, RoleCoordinator)
	if err != nil {
		logger.WarnContext(ctx, "failed to resolve coordinators", "error", err)
		return nil
	}
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	ids = uniqueStrings(ids)
	sort.Strings(ids)
	return ids
}

// notify hands the notification to the notifier. Failures and panics are logged and discarded.
func (s *DefenseService) notify(ctx context.Context, logger *slog.Logger, notification Notification) {
	if s.notifier == nil || len(notification.Recipients) == 0 {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "notifier panicked", "notification_type", notification.Type, "panic", r)
		}
	}()
	if err := s.notifier.Notify(ctx, notification); err != nil {
		logger.WarnContext(ctx, "failed to enqueue notification", "notification_type", notification.Type, "error", err)
	}
}

func mapDefenseRepoError(op string, err error) error {
	if err == nil {
		return nil
	}

	var vErr *ValidationError
	var nfErr *NotFoundError
	switch {
	case errors.As(err, &vErr), errors.As(err, &nfErr):
		return err
	case errors.Is(err, ErrConflict), errors.Is(err, ErrInvalidState), errors.Is(err, ErrNotFound), errors.Is(err, ErrInfrastructure):
		return err
	case errors.Is(err, persistence.ErrNotFound):
		return &NotFoundError{Resource: "defense"}
	case errors.Is(err, persistence.ErrStateChanged):
		return ErrInvalidState
	}
	return &InfrastructureError{Op: op, Err: err}
}

func addFieldError(vErr *ValidationError, err error) {
	if err == nil {
		return
	}
	var fErr *scheduler.FieldError
	if errors.As(err, &fErr) {
		vErr.add(fErr.Field, fErr.Message)
		return
	}
	vErr.add("input", err.Error())
}

func validateRange(from, to *time.Time) error {
	if from != nil && to != nil && to.Before(*from) {
		return newValidationError("to", "to must not be before from")
	}
	return nil
}

func pendingResponses(invitees []string) []Response {
	responses := make([]Response, 0, len(invitees))
	for _, id := range invitees {
		responses = append(responses, Response{UserID: id, Status: ResponsePending})
	}
	return responses
}

// reconcileResponses keeps the entries of invitees who remain, adds pending entries for new
// invitees and drops entries for people no longer invited.
func reconcileResponses(existing []Response, invitees []string) []Response {
	byUser := make(map[string]Response, len(existing))
	for _, r := range existing {
		byUser[r.UserID] = r
	}
	out := make([]Response, 0, len(invitees))
	for _, id := range invitees {
		if r, ok := byUser[id]; ok {
			out = append(out, r)
			continue
		}
		out = append(out, Response{UserID: id, Status: ResponsePending})
	}
	return out
}

func hasResponseEntry(responses []Response, userID string) bool {
	if userID == "" {
		return false
	}
	for _, r := range responses {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

func sanitizeSlots(slots []string) []string {
	out := make([]string, 0, len(slots))
	for _, slot := range slots {
		if trimmed := strings.TrimSpace(slot); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func sortDefenses(defenses []Defense) {
	sort.SliceStable(defenses, func(i, j int) bool {
		if defenses[i].Start.Equal(defenses[j].Start) {
			return defenses[i].ID < defenses[j].ID
		}
		return defenses[i].Start.Before(defenses[j].Start)
	})
}

// uniqueStrings trims, drops blanks and removes duplicates while keeping first-seen order.
func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
