package main

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/example/defense-scheduler/internal/application"
	"github.com/example/defense-scheduler/internal/notify"
	"github.com/example/defense-scheduler/internal/persistence"
	"github.com/example/defense-scheduler/internal/scheduler"
)

func newID() string {
	return uuid.NewString()
}

type defenseRepositoryAdapter struct {
	repo persistence.DefenseRepository
}

func newDefenseRepositoryAdapter(repo persistence.DefenseRepository) *defenseRepositoryAdapter {
	return &defenseRepositoryAdapter{repo: repo}
}

func (a *defenseRepositoryAdapter) GetDefense(ctx context.Context, id string) (application.Defense, error) {
	model, err := a.repo.GetDefense(ctx, id)
	if err != nil {
		return application.Defense{}, err
	}
	return toApplicationDefense(model), nil
}

func (a *defenseRepositoryAdapter) ListDefenses(ctx context.Context, filter application.DefenseFilter) ([]application.Defense, error) {
	models, err := a.repo.ListDefenses(ctx, toPersistenceFilter(filter))
	if err != nil {
		return nil, err
	}
	return toApplicationDefenses(models), nil
}

func (a *defenseRepositoryAdapter) CreateDefense(ctx context.Context, defense application.Defense, check application.ConflictCheck) (application.Defense, error) {
	model, err := a.repo.CreateDefense(ctx, toPersistenceDefense(defense), toPersistenceCheck(check))
	if err != nil {
		return application.Defense{}, err
	}
	return toApplicationDefense(model), nil
}

func (a *defenseRepositoryAdapter) UpdateDefense(ctx context.Context, defense application.Defense, check application.ConflictCheck) (application.Defense, error) {
	model, err := a.repo.UpdateDefense(ctx, toPersistenceDefense(defense), toPersistenceCheck(check))
	if err != nil {
		return application.Defense{}, err
	}
	return toApplicationDefense(model), nil
}

func (a *defenseRepositoryAdapter) CancelDefense(ctx context.Context, id string, at time.Time) (application.Defense, error) {
	model, err := a.repo.CancelDefense(ctx, id, at)
	if err != nil {
		return application.Defense{}, err
	}
	return toApplicationDefense(model), nil
}

func (a *defenseRepositoryAdapter) RecordResponse(ctx context.Context, defenseID string, response application.Response) (application.Defense, error) {
	model, err := a.repo.RecordResponse(ctx, defenseID, toPersistenceResponse(response))
	if err != nil {
		return application.Defense{}, err
	}
	return toApplicationDefense(model), nil
}

func (a *defenseRepositoryAdapter) AppendChangeRequest(ctx context.Context, defenseID string, request application.ChangeRequest) (application.Defense, error) {
	model, err := a.repo.AppendChangeRequest(ctx, defenseID, persistence.ChangeRequest{
		RequestedBy:    request.RequestedBy,
		Reason:         request.Reason,
		PreferredSlots: cloneStrings(request.PreferredSlots),
		RequestedAt:    request.RequestedAt,
	})
	if err != nil {
		return application.Defense{}, err
	}
	return toApplicationDefense(model), nil
}

type identityResolverAdapter struct {
	repo persistence.UserRepository
}

func newIdentityResolverAdapter(repo persistence.UserRepository) *identityResolverAdapter {
	return &identityResolverAdapter{repo: repo}
}

// ResolveUsers returns the known users among ids. Unknown ids are omitted.
func (a *identityResolverAdapter) ResolveUsers(ctx context.Context, ids []string) ([]application.User, error) {
	models, err := a.repo.FindUsers(ctx, ids)
	if err != nil {
		return nil, err
	}
	return toApplicationUsers(models), nil
}

func (a *identityResolverAdapter) UsersByRole(ctx context.Context, role string) ([]application.User, error) {
	models, err := a.repo.ListUsersByRole(ctx, role)
	if err != nil {
		return nil, err
	}
	return toApplicationUsers(models), nil
}

type notifierAdapter struct {
	dispatcher *notify.Dispatcher
}

func newNotifierAdapter(dispatcher *notify.Dispatcher) *notifierAdapter {
	return &notifierAdapter{dispatcher: dispatcher}
}

func (a *notifierAdapter) Notify(ctx context.Context, n application.Notification) error {
	return a.dispatcher.Notify(ctx, notify.Message{
		Type:           string(n.Type),
		Recipients:     cloneStrings(n.Recipients),
		ActorID:        n.ActorID,
		DefenseID:      n.DefenseID,
		Title:          n.Title,
		StartAt:        n.StartAt,
		EndAt:          n.EndAt,
		Status:         string(n.Status),
		ResponseStatus: string(n.ResponseStatus),
		Reason:         n.Reason,
	})
}

type inboxRepositoryAdapter struct {
	repo persistence.NotificationRepository
}

func newInboxRepositoryAdapter(repo persistence.NotificationRepository) *inboxRepositoryAdapter {
	return &inboxRepositoryAdapter{repo: repo}
}

func (a *inboxRepositoryAdapter) ListInbox(ctx context.Context, userID string, limit int) ([]application.InboxEntry, error) {
	models, err := a.repo.ListNotifications(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	entries := make([]application.InboxEntry, 0, len(models))
	for _, m := range models {
		entries = append(entries, application.InboxEntry{
			ID:        m.ID,
			Type:      application.NotificationType(m.Type),
			DefenseID: m.DefenseID,
			Title:     m.Title,
			Payload:   m.Payload,
			CreatedAt: m.CreatedAt,
			ReadAt:    cloneTime(m.ReadAt),
		})
	}
	return entries, nil
}

func toPersistenceCheck(check application.ConflictCheck) persistence.ConflictCheck {
	out := persistence.ConflictCheck{Filter: toPersistenceFilter(check.Filter)}
	if check.Verify != nil {
		verify := check.Verify
		out.Verify = func(existing []persistence.Defense) error {
			return verify(toApplicationDefenses(existing))
		}
	}
	return out
}

func toPersistenceFilter(filter application.DefenseFilter) persistence.DefenseFilter {
	out := persistence.DefenseFilter{
		StartFrom:        cloneTime(filter.StartFrom),
		StartTo:          cloneTime(filter.StartTo),
		PersonIDs:        cloneStrings(filter.PersonIDs),
		Venue:            filter.Venue,
		CandidateID:      filter.CandidateID,
		PanelistID:       filter.PanelistID,
		ExcludeID:        filter.ExcludeID,
		IncludeCancelled: filter.IncludeCancelled,
	}
	if filter.Overlapping != nil {
		out.Overlapping = &persistence.BufferedWindow{
			Start:      filter.Overlapping.Start,
			End:        filter.Overlapping.End,
			BufferMins: filter.Overlapping.BufferMins,
		}
	}
	return out
}

func toApplicationDefenses(models []persistence.Defense) []application.Defense {
	out := make([]application.Defense, 0, len(models))
	for _, m := range models {
		out = append(out, toApplicationDefense(m))
	}
	return out
}

func toApplicationDefense(model persistence.Defense) application.Defense {
	responses := make([]application.Response, 0, len(model.Responses))
	for _, r := range model.Responses {
		responses = append(responses, application.Response{
			UserID:      r.UserID,
			Status:      application.ResponseStatus(r.Status),
			Note:        r.Note,
			RespondedAt: cloneTime(r.RespondedAt),
		})
	}
	requests := make([]application.ChangeRequest, 0, len(model.ChangeRequests))
	for _, cr := range model.ChangeRequests {
		requests = append(requests, application.ChangeRequest{
			RequestedBy:    cr.RequestedBy,
			Reason:         cr.Reason,
			PreferredSlots: cloneStrings(cr.PreferredSlots),
			RequestedAt:    cr.RequestedAt,
		})
	}
	return application.Defense{
		ID:             model.ID,
		Title:          model.Title,
		CandidateID:    model.CandidateID,
		PanelistIDs:    cloneStrings(model.PanelistIDs),
		SupervisorID:   model.SupervisorID,
		Start:          model.Start,
		End:            model.End,
		DurationMins:   model.DurationMins,
		BufferMins:     model.BufferMins,
		Venue:          model.Venue,
		MeetingLink:    model.MeetingLink,
		Modality:       scheduler.Modality(model.Modality),
		Notes:          model.Notes,
		Status:         application.DefenseStatus(model.Status),
		CreatedBy:      model.CreatedBy,
		CreatedAt:      model.CreatedAt,
		UpdatedAt:      model.UpdatedAt,
		Responses:      responses,
		ChangeRequests: requests,
	}
}

func toPersistenceDefense(defense application.Defense) persistence.Defense {
	responses := make([]persistence.Response, 0, len(defense.Responses))
	for _, r := range defense.Responses {
		responses = append(responses, toPersistenceResponse(r))
	}
	requests := make([]persistence.ChangeRequest, 0, len(defense.ChangeRequests))
	for _, cr := range defense.ChangeRequests {
		requests = append(requests, persistence.ChangeRequest{
			RequestedBy:    cr.RequestedBy,
			Reason:         cr.Reason,
			PreferredSlots: cloneStrings(cr.PreferredSlots),
			RequestedAt:    cr.RequestedAt,
		})
	}
	return persistence.Defense{
		ID:             defense.ID,
		Title:          defense.Title,
		CandidateID:    defense.CandidateID,
		PanelistIDs:    cloneStrings(defense.PanelistIDs),
		SupervisorID:   defense.SupervisorID,
		Start:          defense.Start,
		End:            defense.End,
		DurationMins:   defense.DurationMins,
		BufferMins:     defense.BufferMins,
		Venue:          defense.Venue,
		MeetingLink:    defense.MeetingLink,
		Modality:       string(defense.Modality),
		Notes:          defense.Notes,
		Status:         string(defense.Status),
		CreatedBy:      defense.CreatedBy,
		CreatedAt:      defense.CreatedAt,
		UpdatedAt:      defense.UpdatedAt,
		Responses:      responses,
		ChangeRequests: requests,
	}
}

func toPersistenceResponse(response application.Response) persistence.Response {
	return persistence.Response{
		UserID:      response.UserID,
		Status:      string(response.Status),
		Note:        response.Note,
		RespondedAt: cloneTime(response.RespondedAt),
	}
}

func toApplicationUsers(models []persistence.User) []application.User {
	out := make([]application.User, 0, len(models))
	for _, m := range models {
		out = append(out, application.User{
			ID:    m.ID,
			Name:  m.Name,
			Role:  m.Role,
			Email: m.Email,
		})
	}
	return out
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	return append([]string(nil), values...)
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}
