package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/example/defense-scheduler/internal/application"
	"github.com/example/defense-scheduler/internal/logging"
	"github.com/example/defense-scheduler/internal/scheduler"
)

const maxBodyBytes = 1 << 20

type defenseService interface {
	CreateDefense(ctx context.Context, params application.CreateDefenseParams) (application.Defense, error)
	UpdateDefense(ctx context.Context, params application.UpdateDefenseParams) (application.Defense, error)
	CancelDefense(ctx context.Context, params application.CancelDefenseParams) (application.Defense, error)
	DuplicateDefense(ctx context.Context, params application.DuplicateDefenseParams) (application.Defense, error)
	RespondToDefense(ctx context.Context, params application.RespondParams) (application.Defense, error)
	RequestChange(ctx context.Context, params application.ChangeRequestParams) (application.Defense, error)
	GetDefense(ctx context.Context, id string) (application.Defense, error)
	ListDefenses(ctx context.Context, params application.ListDefensesParams) ([]application.Defense, error)
	Availability(ctx context.Context, params application.AvailabilityParams) ([]application.BusySlot, error)
}

// DefenseHandler serves the /defenses routes.
type DefenseHandler struct {
	service   defenseService
	calendar  scheduler.Calendar
	logger    *slog.Logger
	responder responder
}

// NewDefenseHandler creates a handler. calendar resolves availability dates in the institution's zone.
func NewDefenseHandler(service defenseService, calendar scheduler.Calendar, logger *slog.Logger) *DefenseHandler {
	logger = logging.OrDefault(logger)
	return &DefenseHandler{service: service, calendar: calendar, logger: logger, responder: newResponder(logger)}
}

func (h *DefenseHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	req, ok := h.decodeDefenseRequest(w, r, false)
	if !ok {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	defense, err := h.service.CreateDefense(r.Context(), application.CreateDefenseParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	auditLogger(r, h.logger, "create", defense.ID).InfoContext(r.Context(), "defense scheduled",
		slog.Time("start", defense.Start), slog.String("venue", defense.Venue))
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, defenseResponse{Defense: toDefenseDTO(defense)})
}

func (h *DefenseHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id, ok := h.defenseID(w, r)
	if !ok {
		return
	}

	defense, err := h.service.GetDefense(r.Context(), id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, defenseResponse{Defense: toDefenseDTO(defense)})
}

func (h *DefenseHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id, ok := h.defenseID(w, r)
	if !ok {
		return
	}
	req, ok := h.decodeDefenseRequest(w, r, false)
	if !ok {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	defense, err := h.service.UpdateDefense(r.Context(), application.UpdateDefenseParams{
		Principal: principal,
		DefenseID: id,
		Patch:     req.toPatch(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	auditLogger(r, h.logger, "update", id).InfoContext(r.Context(), "defense rescheduled")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, defenseResponse{Defense: toDefenseDTO(defense)})
}

func (h *DefenseHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id, ok := h.defenseID(w, r)
	if !ok {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	defense, err := h.service.CancelDefense(r.Context(), application.CancelDefenseParams{
		Principal: principal,
		DefenseID: id,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	auditLogger(r, h.logger, "cancel", id).InfoContext(r.Context(), "defense cancelled")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, defenseResponse{Defense: toDefenseDTO(defense)})
}

func (h *DefenseHandler) Duplicate(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id, ok := h.defenseID(w, r)
	if !ok {
		return
	}
	req, ok := h.decodeDefenseRequest(w, r, true)
	if !ok {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	defense, err := h.service.DuplicateDefense(r.Context(), application.DuplicateDefenseParams{
		Principal: principal,
		DefenseID: id,
		Overrides: req.toPatch(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, defenseResponse{Defense: toDefenseDTO(defense)})
}

func (h *DefenseHandler) Respond(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id, ok := h.defenseID(w, r)
	if !ok {
		return
	}
	var req respondRequest
	if !h.decode(w, r, &req, false) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	defense, err := h.service.RespondToDefense(r.Context(), application.RespondParams{
		DefenseID: id,
		UserID:    principal.UserID,
		Status:    application.ResponseStatus(req.Status),
		Note:      req.Note,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, defenseResponse{Defense: toDefenseDTO(defense)})
}

func (h *DefenseHandler) RequestChange(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id, ok := h.defenseID(w, r)
	if !ok {
		return
	}
	var req changeRequestRequest
	if !h.decode(w, r, &req, false) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	defense, err := h.service.RequestChange(r.Context(), application.ChangeRequestParams{
		DefenseID:      id,
		UserID:         principal.UserID,
		Reason:         req.Reason,
		PreferredSlots: req.PreferredSlots,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, defenseResponse{Defense: toDefenseDTO(defense)})
}

func (h *DefenseHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	params, err := buildListParams(r.URL.Query(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	defenses, err := h.service.ListDefenses(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listDefensesResponse{Defenses: toDefenseDTOs(defenses)})
}

func (h *DefenseHandler) Availability(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	params, err := buildAvailabilityParams(r.URL.Query(), h.calendar)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	slots, err := h.service.Availability(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, availabilityResponse{Busy: toBusySlotDTOs(slots)})
}

func (h *DefenseHandler) defenseID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(mux.Vars(r)["id"])
	if id == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, application.KindInvalidInput, errInvalidDefenseID)
		return "", false
	}
	return id, true
}

func (h *DefenseHandler) decodeDefenseRequest(w http.ResponseWriter, r *http.Request, allowEmpty bool) (defenseRequest, bool) {
	var req defenseRequest
	if !h.decode(w, r, &req, allowEmpty) {
		return req, false
	}
	if err := req.normalizeAliases(); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return req, false
	}
	return req, true
}

// decode reads a JSON body into dst and validates its tags. With allowEmpty an
// absent body leaves dst at its zero value.
func (h *DefenseHandler) decode(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) bool {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
	switch {
	case errors.Is(err, io.EOF) && allowEmpty:
	case err != nil:
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, application.KindInvalidInput, errBadRequestBody)
		return false
	}

	if err := validateRequest(dst); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return false
	}
	return true
}

type listQuery struct {
	From             string `json:"from"`
	To               string `json:"to"`
	CandidateID      string `json:"candidateId"`
	PanelistID       string `json:"panelistId"`
	Mine             string `json:"mine" validate:"omitempty,oneof=true false"`
	IncludeCancelled string `json:"includeCancelled" validate:"omitempty,oneof=true false"`
}

func buildListParams(values map[string][]string, principal application.Principal) (application.ListDefensesParams, error) {
	q := listQuery{
		From:             first(values, "from"),
		To:               first(values, "to"),
		CandidateID:      first(values, "candidateId"),
		PanelistID:       first(values, "panelistId"),
		Mine:             first(values, "mine"),
		IncludeCancelled: first(values, "includeCancelled"),
	}
	if err := validateRequest(q); err != nil {
		return application.ListDefensesParams{}, err
	}

	params := application.ListDefensesParams{
		CandidateID:      q.CandidateID,
		PanelistID:       q.PanelistID,
		IncludeCancelled: q.IncludeCancelled == "true",
	}
	if q.Mine == "true" {
		params.MineID = principal.UserID
	}

	vErr := &application.ValidationError{}
	params.From = parseInstantParam(vErr, "from", q.From)
	params.To = parseInstantParam(vErr, "to", q.To)
	if vErr.HasErrors() {
		return application.ListDefensesParams{}, vErr
	}
	return params, nil
}

type availabilityQuery struct {
	Date    string   `json:"date" validate:"omitempty,datetime=2006-01-02"`
	From    string   `json:"from"`
	To      string   `json:"to"`
	UserIDs []string `json:"userIds" validate:"max=100"`
}

// buildAvailabilityParams resolves the range from date, which covers the whole
// local day, or from the from/to instants.
func buildAvailabilityParams(values map[string][]string, calendar scheduler.Calendar) (application.AvailabilityParams, error) {
	q := availabilityQuery{
		Date: first(values, "date"),
		From: first(values, "from"),
		To:   first(values, "to"),
	}
	for _, raw := range values["userIds"] {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				q.UserIDs = append(q.UserIDs, id)
			}
		}
	}
	if err := validateRequest(q); err != nil {
		return application.AvailabilityParams{}, err
	}

	params := application.AvailabilityParams{UserIDs: q.UserIDs}
	if q.Date != "" {
		start, end, err := calendar.DayRange(q.Date)
		if err != nil {
			message := err.Error()
			var fErr *scheduler.FieldError
			if errors.As(err, &fErr) {
				message = fErr.Message
			}
			return application.AvailabilityParams{}, &application.ValidationError{
				FieldErrors: map[string]string{"date": message},
			}
		}
		last := end.Add(-time.Millisecond)
		params.From, params.To = &start, &last
		return params, nil
	}

	vErr := &application.ValidationError{}
	params.From = parseInstantParam(vErr, "from", q.From)
	params.To = parseInstantParam(vErr, "to", q.To)
	if vErr.HasErrors() {
		return application.AvailabilityParams{}, vErr
	}
	return params, nil
}

func parseInstantParam(vErr *application.ValidationError, field, value string) *time.Time {
	if value == "" {
		return nil
	}
	ts, err := scheduler.ParseInstant(value)
	if err != nil {
		if vErr.FieldErrors == nil {
			vErr.FieldErrors = map[string]string{}
		}
		vErr.FieldErrors[field] = field + " must be an RFC 3339 timestamp"
		return nil
	}
	return &ts
}

func first(values map[string][]string, key string) string {
	if v := values[key]; len(v) > 0 {
		return strings.TrimSpace(v[0])
	}
	return ""
}
