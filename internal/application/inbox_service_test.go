package application

import (
	"context"
	"errors"
	"testing"
)

type inboxRepoStub struct {
	entries   []InboxEntry
	err       error
	gotUser   string
	gotLimit  int
	callCount int
}

func (s *inboxRepoStub) ListInbox(_ context.Context, userID string, limit int) ([]InboxEntry, error) {
	s.callCount++
	s.gotUser = userID
	s.gotLimit = limit
	return s.entries, s.err
}

func TestInboxService_ListInbox(t *testing.T) {
	t.Parallel()

	repo := &inboxRepoStub{entries: []InboxEntry{{ID: "n-1", Type: NotificationDefenseScheduled}}}
	svc := NewInboxService(repo, nil)

	entries, err := svc.ListInbox(context.Background(), Principal{UserID: "u-panel"}, 0)
	if err != nil {
		t.Fatalf("ListInbox returned error: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "n-1" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if repo.gotUser != "u-panel" || repo.gotLimit != DefaultInboxLimit {
		t.Fatalf("repository called with user=%q limit=%d", repo.gotUser, repo.gotLimit)
	}
}

func TestInboxService_ListInbox_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		principal Principal
		limit     int
		repoErr   error
		wantKind  string
	}{
		{name: "anonymous", principal: Principal{}, limit: 10, wantKind: KindForbidden},
		{name: "negative limit", principal: Principal{UserID: "u1"}, limit: -1, wantKind: KindInvalidInput},
		{name: "limit too large", principal: Principal{UserID: "u1"}, limit: MaxInboxLimit + 1, wantKind: KindInvalidInput},
		{name: "store failure", principal: Principal{UserID: "u1"}, limit: 5, repoErr: errors.New("disk I/O error"), wantKind: KindInfrastructure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo := &inboxRepoStub{err: tt.repoErr}
			svc := NewInboxService(repo, nil)

			_, err := svc.ListInbox(context.Background(), tt.principal, tt.limit)
			if got := ErrorKind(err); got != tt.wantKind {
				t.Fatalf("ErrorKind = %q, want %q (err=%v)", got, tt.wantKind, err)
			}
			if tt.repoErr == nil && repo.callCount != 0 {
				t.Fatalf("repository should not be called")
			}
		})
	}
}
