package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/defense-scheduler/internal/persistence"
)

func TestNotificationRepository_CreateAndList(t *testing.T) {
	ctx := context.Background()
	repo := newTestStorage(t).Notifications
	base := time.Date(2025, 4, 1, 6, 0, 0, 0, time.UTC)

	err := repo.CreateNotifications(ctx, []persistence.Notification{
		{ID: "n1", UserID: "pan-1", Type: "defense_scheduled", DefenseID: "def-1", Title: "Thesis A", CreatedAt: base},
		{ID: "n2", UserID: "pan-1", Type: "defense_cancelled", DefenseID: "def-1", Title: "Thesis A",
			Payload: map[string]string{"status": "cancelled"}, CreatedAt: base.Add(time.Hour)},
		{ID: "n3", UserID: "pan-2", Type: "defense_scheduled", DefenseID: "def-1", CreatedAt: base},
	})
	require.NoError(t, err)

	list, err := repo.ListNotifications(ctx, "pan-1", 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "n2", list[0].ID)
	require.Equal(t, "cancelled", list[0].Payload["status"])
	require.Empty(t, list[1].Payload)
	require.Nil(t, list[1].ReadAt)

	limited, err := repo.ListNotifications(ctx, "pan-1", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)

	require.NoError(t, repo.CreateNotifications(ctx, nil))
}

func TestNotificationRepository_RejectsDuplicateBatch(t *testing.T) {
	ctx := context.Background()
	repo := newTestStorage(t).Notifications

	n := persistence.Notification{ID: "n1", UserID: "pan-1", Type: "defense_updated"}
	err := repo.CreateNotifications(ctx, []persistence.Notification{n, n})
	require.ErrorIs(t, err, persistence.ErrDuplicate)

	list, err := repo.ListNotifications(ctx, "pan-1", 10)
	require.NoError(t, err)
	require.Empty(t, list, "failed batch must not be partially stored")

	err = repo.CreateNotifications(ctx, []persistence.Notification{{ID: "n2"}})
	require.ErrorIs(t, err, persistence.ErrConstraintViolation)
}
