package main

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/example/defense-scheduler/internal/application"
	"github.com/example/defense-scheduler/internal/persistence"
	"github.com/example/defense-scheduler/internal/testfixtures"
)

func TestDefenseConversionRoundTrip(t *testing.T) {
	model := testfixtures.NewDefenseFixture(testfixtures.WithDefenseID("d-1")).Persistence()
	responded := testfixtures.ReferenceTime()
	model.Responses[0].Status = "accept"
	model.Responses[0].RespondedAt = &responded
	model.ChangeRequests = []persistence.ChangeRequest{{
		RequestedBy:    testfixtures.CandidateID,
		Reason:         "clash with exam",
		PreferredSlots: []string{"2025-05-02 10:00"},
		RequestedAt:    responded,
	}}

	converted := toApplicationDefense(model)
	if converted.Responses[0].Status != application.ResponseAccept {
		t.Fatalf("unexpected response status %q", converted.Responses[0].Status)
	}

	back := toPersistenceDefense(converted)
	if !reflect.DeepEqual(model, back) {
		t.Fatalf("round trip changed the defense:\nwant %+v\ngot  %+v", model, back)
	}

	// Clones must not share backing arrays.
	converted.PanelistIDs[0] = "changed"
	if model.PanelistIDs[0] == "changed" {
		t.Fatal("conversion shared the panel slice")
	}
}

type recordingDefenseRepo struct {
	persistence.DefenseRepository
	existing []persistence.Defense
	filter   persistence.DefenseFilter
}

func (r *recordingDefenseRepo) CreateDefense(_ context.Context, d persistence.Defense, check persistence.ConflictCheck) (persistence.Defense, error) {
	r.filter = check.Filter
	if check.Verify != nil {
		if err := check.Verify(r.existing); err != nil {
			return persistence.Defense{}, err
		}
	}
	return d, nil
}

func TestConflictCheckIsTranslated(t *testing.T) {
	existing := testfixtures.NewDefenseFixture(testfixtures.WithDefenseID("busy")).Persistence()
	repo := &recordingDefenseRepo{existing: []persistence.Defense{existing}}
	adapter := newDefenseRepositoryAdapter(repo)

	var seen []application.Defense
	sentinel := errors.New("rejected")
	check := application.ConflictCheck{
		Filter: application.DefenseFilter{
			Overlapping: &application.BufferedWindow{Start: existing.Start, End: existing.End, BufferMins: 15},
			PersonIDs:   []string{testfixtures.PanelistAID},
			Venue:       "Room 101",
			ExcludeID:   "self",
		},
		Verify: func(defenses []application.Defense) error {
			seen = defenses
			return sentinel
		},
	}

	_, err := adapter.CreateDefense(context.Background(), application.Defense{ID: "self"}, check)
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected the verify error to pass through, got %v", err)
	}
	if len(seen) != 1 || seen[0].ID != "busy" {
		t.Fatalf("verify saw unexpected defenses: %+v", seen)
	}
	if repo.filter.Overlapping == nil || repo.filter.Overlapping.BufferMins != 15 {
		t.Fatalf("overlap window not translated: %+v", repo.filter.Overlapping)
	}
	if repo.filter.Venue != "Room 101" || repo.filter.ExcludeID != "self" {
		t.Fatalf("filter not translated: %+v", repo.filter)
	}
}

func TestIdentityResolverAdapter(t *testing.T) {
	harness := testfixtures.NewSQLiteHarness(t)
	harness.SeedUsers(t)
	resolver := newIdentityResolverAdapter(harness.Users)

	users, err := resolver.ResolveUsers(context.Background(), []string{testfixtures.PanelistAID, "ghost"})
	if err != nil {
		t.Fatalf("ResolveUsers returned error: %v", err)
	}
	if len(users) != 1 || users[0].ID != testfixtures.PanelistAID {
		t.Fatalf("unexpected users: %+v", users)
	}

	coordinators, err := resolver.UsersByRole(context.Background(), application.RoleCoordinator)
	if err != nil {
		t.Fatalf("UsersByRole returned error: %v", err)
	}
	if len(coordinators) != 1 || coordinators[0].ID != testfixtures.CoordinatorID {
		t.Fatalf("unexpected coordinators: %+v", coordinators)
	}
}

func TestInboxRepositoryAdapter(t *testing.T) {
	harness := testfixtures.NewSQLiteHarness(t)
	created := testfixtures.ReferenceTime()
	err := harness.Notifications.CreateNotifications(context.Background(), []persistence.Notification{{
		ID:        "n-1",
		UserID:    testfixtures.PanelistAID,
		Type:      string(application.NotificationDefenseScheduled),
		DefenseID: "d-1",
		Title:     "Thesis Defense",
		Payload:   map[string]string{"actorId": testfixtures.CoordinatorID},
		CreatedAt: created,
	}})
	if err != nil {
		t.Fatalf("CreateNotifications returned error: %v", err)
	}

	entries, err := newInboxRepositoryAdapter(harness.Notifications).ListInbox(context.Background(), testfixtures.PanelistAID, 10)
	if err != nil {
		t.Fatalf("ListInbox returned error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	got := entries[0]
	if got.Type != application.NotificationDefenseScheduled || got.DefenseID != "d-1" {
		t.Fatalf("unexpected entry: %+v", got)
	}
	if !got.CreatedAt.Equal(created) || got.ReadAt != nil {
		t.Fatalf("unexpected timestamps: %v %v", got.CreatedAt, got.ReadAt)
	}
	if got.Payload["actorId"] != testfixtures.CoordinatorID {
		t.Fatalf("payload not carried: %+v", got.Payload)
	}
}

func TestNewIDIsUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for range 100 {
		id := newID()
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = struct{}{}
	}
}
