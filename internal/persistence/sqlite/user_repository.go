package sqlite

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/example/defense-scheduler/internal/persistence"
)

// UserRepository implements persistence.UserRepository using SQLite
type UserRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
	now    func() time.Time
}

// NewUserRepository creates a new SQLite user repository
func NewUserRepository(pool *ConnectionPool) *UserRepository {
	return &UserRepository{
		pool:   pool,
		mapper: NewErrorMapper(),
		now:    time.Now,
	}
}

// GetUser retrieves a user by ID
func (r *UserRepository) GetUser(ctx context.Context, id string) (persistence.User, error) {
	if id == "" {
		return persistence.User{}, persistence.ErrNotFound
	}

	row := r.pool.db.QueryRowContext(ctx, `
		SELECT id, name, role, email, created_at, updated_at
		FROM users WHERE id = ?`, id)
	user, err := scanUser(row)
	if err != nil {
		return persistence.User{}, r.mapper.MapError(err)
	}
	return user, nil
}

// FindUsers returns the users among ids that exist, ordered by ID. Unknown ids are skipped.
func (r *UserRepository) FindUsers(ctx context.Context, ids []string) ([]persistence.User, error) {
	ids = compactIDs(ids)
	if len(ids) == 0 {
		return []persistence.User{}, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return r.queryUsers(ctx, `
		SELECT id, name, role, email, created_at, updated_at
		FROM users WHERE id IN (`+placeholders(len(ids))+`)
		ORDER BY id ASC`, args...)
}

// ListUsersByRole returns users holding role ordered by ID
func (r *UserRepository) ListUsersByRole(ctx context.Context, role string) ([]persistence.User, error) {
	return r.queryUsers(ctx, `
		SELECT id, name, role, email, created_at, updated_at
		FROM users WHERE role = ?
		ORDER BY id ASC`, strings.TrimSpace(role))
}

// UpsertUser inserts a user or updates name, role and email of an existing one
func (r *UserRepository) UpsertUser(ctx context.Context, user persistence.User) error {
	user.ID = strings.TrimSpace(user.ID)
	user.Name = strings.TrimSpace(user.Name)
	if user.ID == "" || user.Name == "" {
		return persistence.ErrConstraintViolation
	}

	now := formatTimestamp(r.now())
	_, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO users (id, name, role, email, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			role = excluded.role,
			email = excluded.email,
			updated_at = excluded.updated_at`,
		user.ID,
		user.Name,
		strings.TrimSpace(user.Role),
		normalizeEmail(user.Email),
		now,
		now,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

func (r *UserRepository) queryUsers(ctx context.Context, query string, args ...any) ([]persistence.User, error) {
	rows, err := r.pool.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	users := []persistence.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return users, nil
}

func scanUser(row rowScanner) (persistence.User, error) {
	var (
		user                 persistence.User
		createdAt, updatedAt string
	)
	if err := row.Scan(&user.ID, &user.Name, &user.Role, &user.Email, &createdAt, &updatedAt); err != nil {
		return persistence.User{}, err
	}
	user.CreatedAt = parseTimestamp(createdAt)
	user.UpdatedAt = parseTimestamp(updatedAt)
	return user, nil
}

// compactIDs trims, drops blanks and removes duplicates
func compactIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// normalizeEmail normalizes email addresses for consistent storage and lookup
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var _ persistence.UserRepository = (*UserRepository)(nil)
