package http

import (
	"slices"
	"strings"
	"time"

	"github.com/example/defense-scheduler/internal/application"
	"github.com/example/defense-scheduler/internal/scheduler"
)

// Defaults applied when a create request omits them.
const (
	defaultDurationMins = 60
	defaultBufferMins   = 15
)

// defenseRequest is the body of create, update and duplicate. Absent fields
// are nil so update and duplicate keep the stored value.
type defenseRequest struct {
	Title        *string   `json:"title" validate:"omitempty,max=200"`
	CandidateID  *string   `json:"candidateId"`
	ResearcherID *string   `json:"researcherId"`
	PanelistIDs  *[]string `json:"panelistIds" validate:"omitempty,dive,required"`
	ExaminerIDs  *[]string `json:"examinerIds" validate:"omitempty,dive,required"`
	SupervisorID *string   `json:"supervisorId"`
	Date         *string   `json:"date" validate:"omitempty,datetime=2006-01-02"`
	StartTime    *string   `json:"startTime" validate:"omitempty,datetime=15:04"`
	DurationMins *int      `json:"durationMins" validate:"omitempty,lte=480"`
	BufferMins   *int      `json:"bufferMins" validate:"omitempty,lte=480"`
	Venue        *string   `json:"venue"`
	MeetingLink  *string   `json:"meetingLink" validate:"omitempty,url"`
	Modality     *string   `json:"modality" validate:"omitempty,oneof=in-person online hybrid"`
	Notes        *string   `json:"notes" validate:"omitempty,max=2000"`
}

// normalizeAliases folds researcherId and examinerIds into their canonical
// fields. Both spellings may be sent only when they agree.
func (r *defenseRequest) normalizeAliases() error {
	vErr := &application.ValidationError{FieldErrors: map[string]string{}}

	if r.ResearcherID != nil {
		if r.CandidateID != nil && strings.TrimSpace(*r.CandidateID) != strings.TrimSpace(*r.ResearcherID) {
			vErr.FieldErrors["candidateId"] = "candidateId and researcherId disagree"
		} else {
			r.CandidateID = r.ResearcherID
		}
		r.ResearcherID = nil
	}
	if r.ExaminerIDs != nil {
		if r.PanelistIDs != nil && !slices.Equal(*r.PanelistIDs, *r.ExaminerIDs) {
			vErr.FieldErrors["panelistIds"] = "panelistIds and examinerIds disagree"
		} else {
			r.PanelistIDs = r.ExaminerIDs
		}
		r.ExaminerIDs = nil
	}

	if vErr.HasErrors() {
		return vErr
	}
	return nil
}

func (r defenseRequest) toInput() application.DefenseInput {
	input := application.DefenseInput{
		Title:        deref(r.Title),
		CandidateID:  strings.TrimSpace(deref(r.CandidateID)),
		SupervisorID: strings.TrimSpace(deref(r.SupervisorID)),
		Date:         deref(r.Date),
		StartTime:    deref(r.StartTime),
		DurationMins: defaultDurationMins,
		BufferMins:   defaultBufferMins,
		Venue:        deref(r.Venue),
		MeetingLink:  deref(r.MeetingLink),
		Modality:     scheduler.Modality(deref(r.Modality)),
		Notes:        deref(r.Notes),
	}
	if r.PanelistIDs != nil {
		input.PanelistIDs = trimAll(*r.PanelistIDs)
	}
	if r.DurationMins != nil {
		input.DurationMins = *r.DurationMins
	}
	if r.BufferMins != nil {
		input.BufferMins = *r.BufferMins
	}
	return input
}

func (r defenseRequest) toPatch() application.DefensePatch {
	patch := application.DefensePatch{
		Title:        r.Title,
		CandidateID:  trimmed(r.CandidateID),
		SupervisorID: trimmed(r.SupervisorID),
		Date:         r.Date,
		StartTime:    r.StartTime,
		DurationMins: r.DurationMins,
		BufferMins:   r.BufferMins,
		Venue:        r.Venue,
		MeetingLink:  r.MeetingLink,
		Notes:        r.Notes,
	}
	if r.PanelistIDs != nil {
		ids := trimAll(*r.PanelistIDs)
		patch.PanelistIDs = &ids
	}
	if r.Modality != nil {
		modality := scheduler.Modality(*r.Modality)
		patch.Modality = &modality
	}
	return patch
}

type respondRequest struct {
	Status string `json:"status" validate:"required,oneof=accept decline"`
	Note   string `json:"note" validate:"max=1000"`
}

type changeRequestRequest struct {
	Reason         string   `json:"reason" validate:"required,max=2000"`
	PreferredSlots []string `json:"preferredSlots" validate:"omitempty,max=20,dive,max=200"`
}

type defenseResponse struct {
	Defense defenseDTO `json:"defense"`
}

type listDefensesResponse struct {
	Defenses []defenseDTO `json:"defenses"`
}

type availabilityResponse struct {
	Busy []busySlotDTO `json:"busy"`
}

type defenseDTO struct {
	ID             string             `json:"id"`
	Title          string             `json:"title"`
	CandidateID    string             `json:"candidateId"`
	PanelistIDs    []string           `json:"panelistIds"`
	SupervisorID   string             `json:"supervisorId,omitempty"`
	StartAt        string             `json:"startAt"`
	EndAt          string             `json:"endAt"`
	DurationMins   int                `json:"durationMins"`
	BufferMins     int                `json:"bufferMins"`
	Venue          string             `json:"venue"`
	MeetingLink    string             `json:"meetingLink"`
	Modality       string             `json:"modality"`
	Notes          string             `json:"notes"`
	Status         string             `json:"status"`
	CreatedBy      string             `json:"createdBy"`
	CreatedAt      string             `json:"createdAt"`
	UpdatedAt      string             `json:"updatedAt"`
	Responses      []responseDTO      `json:"responses"`
	ChangeRequests []changeRequestDTO `json:"changeRequests"`
}

type responseDTO struct {
	UserID      string  `json:"userId"`
	Status      string  `json:"status"`
	Note        string  `json:"note"`
	RespondedAt *string `json:"respondedAt"`
}

type changeRequestDTO struct {
	RequestedBy    string   `json:"requestedBy"`
	Reason         string   `json:"reason"`
	PreferredSlots []string `json:"preferredSlots"`
	RequestedAt    string   `json:"requestedAt"`
}

type busySlotDTO struct {
	StartAt      string   `json:"startAt"`
	EndAt        string   `json:"endAt"`
	Participants []string `json:"participants"`
	BufferMins   int      `json:"bufferMins"`
}

func toDefenseDTO(d application.Defense) defenseDTO {
	dto := defenseDTO{
		ID:             d.ID,
		Title:          d.Title,
		CandidateID:    d.CandidateID,
		PanelistIDs:    append([]string{}, d.PanelistIDs...),
		SupervisorID:   d.SupervisorID,
		StartAt:        scheduler.FormatInstant(d.Start),
		EndAt:          scheduler.FormatInstant(d.End),
		DurationMins:   d.DurationMins,
		BufferMins:     d.BufferMins,
		Venue:          d.Venue,
		MeetingLink:    d.MeetingLink,
		Modality:       string(d.Modality),
		Notes:          d.Notes,
		Status:         string(d.Status),
		CreatedBy:      d.CreatedBy,
		CreatedAt:      formatOptional(d.CreatedAt),
		UpdatedAt:      formatOptional(d.UpdatedAt),
		Responses:      make([]responseDTO, 0, len(d.Responses)),
		ChangeRequests: make([]changeRequestDTO, 0, len(d.ChangeRequests)),
	}
	for _, resp := range d.Responses {
		item := responseDTO{UserID: resp.UserID, Status: string(resp.Status), Note: resp.Note}
		if resp.RespondedAt != nil {
			at := scheduler.FormatInstant(*resp.RespondedAt)
			item.RespondedAt = &at
		}
		dto.Responses = append(dto.Responses, item)
	}
	for _, cr := range d.ChangeRequests {
		dto.ChangeRequests = append(dto.ChangeRequests, changeRequestDTO{
			RequestedBy:    cr.RequestedBy,
			Reason:         cr.Reason,
			PreferredSlots: append([]string{}, cr.PreferredSlots...),
			RequestedAt:    scheduler.FormatInstant(cr.RequestedAt),
		})
	}
	return dto
}

func toDefenseDTOs(defenses []application.Defense) []defenseDTO {
	out := make([]defenseDTO, 0, len(defenses))
	for _, d := range defenses {
		out = append(out, toDefenseDTO(d))
	}
	return out
}

func toBusySlotDTOs(slots []application.BusySlot) []busySlotDTO {
	out := make([]busySlotDTO, 0, len(slots))
	for _, slot := range slots {
		out = append(out, busySlotDTO{
			StartAt:      scheduler.FormatInstant(slot.Start),
			EndAt:        scheduler.FormatInstant(slot.End),
			Participants: append([]string{}, slot.Participants...),
			BufferMins:   slot.BufferMins,
		})
	}
	return out
}

func formatOptional(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return scheduler.FormatInstant(t)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, strings.TrimSpace(v))
	}
	return out
}
