package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/defense-scheduler/internal/persistence"
)

const defaultNotificationLimit = 50

// NotificationRepository implements persistence.NotificationRepository using SQLite
type NotificationRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
	retry  *RetryHelper
}

// NewNotificationRepository creates a new SQLite notification repository
func NewNotificationRepository(pool *ConnectionPool) *NotificationRepository {
	return &NotificationRepository{
		pool:   pool,
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
	}
}

// CreateNotifications stores all entries in one transaction
func (r *NotificationRepository) CreateNotifications(ctx context.Context, notifications []persistence.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	for _, n := range notifications {
		if n.ID == "" || n.UserID == "" || n.Type == "" {
			return persistence.ErrConstraintViolation
		}
	}

	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			for _, n := range notifications {
				payload := n.Payload
				if payload == nil {
					payload = map[string]string{}
				}
				encoded, err := json.Marshal(payload)
				if err != nil {
					return fmt.Errorf("failed to encode notification payload: %w", err)
				}

				createdAt := n.CreatedAt
				if createdAt.IsZero() {
					createdAt = time.Now()
				}

				if _, err := tx.ExecContext(ctx, `
					INSERT INTO notifications (id, user_id, type, defense_id, title, payload, created_at, read_at)
					VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
					n.ID,
					n.UserID,
					n.Type,
					n.DefenseID,
					n.Title,
					string(encoded),
					formatTimestamp(createdAt),
					formatOptionalTimestamp(n.ReadAt),
				); err != nil {
					return r.mapper.MapError(err)
				}
			}
			return nil
		})
	})
}

// ListNotifications returns a user's newest notifications first. A non-positive limit uses the default.
func (r *NotificationRepository) ListNotifications(ctx context.Context, userID string, limit int) ([]persistence.Notification, error) {
	if limit <= 0 {
		limit = defaultNotificationLimit
	}

	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT id, user_id, type, defense_id, title, payload, created_at, read_at
		FROM notifications
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	notifications := []persistence.Notification{}
	for rows.Next() {
		var (
			n         persistence.Notification
			payload   string
			createdAt string
			readAt    sql.NullString
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.DefenseID, &n.Title, &payload, &createdAt, &readAt); err != nil {
			return nil, r.mapper.MapError(err)
		}
		if err := json.Unmarshal([]byte(payload), &n.Payload); err != nil {
			return nil, fmt.Errorf("failed to decode notification payload: %w", err)
		}
		n.CreatedAt = parseTimestamp(createdAt)
		if readAt.Valid {
			t := parseTimestamp(readAt.String)
			n.ReadAt = &t
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return notifications, nil
}

var _ persistence.NotificationRepository = (*NotificationRepository)(nil)
