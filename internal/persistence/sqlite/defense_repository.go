package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/example/defense-scheduler/internal/persistence"
)

const minuteMillis = int64(time.Minute / time.Millisecond)

const defenseColumns = `d.id, d.title, d.candidate_id, d.supervisor_id, d.start_ms, d.end_ms,
	d.duration_mins, d.buffer_mins, d.venue, d.meeting_link, d.modality, d.notes,
	d.status, d.created_by, d.created_at, d.updated_at`

// DefenseRepository implements persistence.DefenseRepository using SQLite
type DefenseRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
	retry  *RetryHelper
	now    func() time.Time
}

// NewDefenseRepository creates a new SQLite defense repository
func NewDefenseRepository(pool *ConnectionPool) *DefenseRepository {
	return &DefenseRepository{
		pool:   pool,
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
		now:    time.Now,
	}
}

// GetDefense retrieves a defense with its panel, responses and change requests
func (r *DefenseRepository) GetDefense(ctx context.Context, id string) (persistence.Defense, error) {
	if id == "" {
		return persistence.Defense{}, persistence.ErrNotFound
	}
	return r.getDefense(ctx, r.pool.db, id)
}

// ListDefenses returns defenses matching filter ordered by start time then id
func (r *DefenseRepository) ListDefenses(ctx context.Context, filter persistence.DefenseFilter) ([]persistence.Defense, error) {
	return r.listDefenses(ctx, r.pool.db, filter)
}

// CreateDefense inserts a defense after the conflict check passes inside the same transaction
func (r *DefenseRepository) CreateDefense(ctx context.Context, defense persistence.Defense, check persistence.ConflictCheck) (persistence.Defense, error) {
	if defense.ID == "" {
		return persistence.Defense{}, persistence.ErrConstraintViolation
	}

	now := r.now().UTC()
	if defense.CreatedAt.IsZero() {
		defense.CreatedAt = now
	}
	if defense.UpdatedAt.IsZero() {
		defense.UpdatedAt = defense.CreatedAt
	}
	if defense.Status == "" {
		defense.Status = persistence.StatusScheduled
	}

	var stored persistence.Defense
	err := r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			if err := r.runCheck(ctx, tx, check); err != nil {
				return err
			}

			_, err := tx.ExecContext(ctx, `
				INSERT INTO defenses (id, title, candidate_id, supervisor_id, start_ms, end_ms,
					duration_mins, buffer_mins, venue, meeting_link, modality, notes,
					status, created_by, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				defense.ID,
				defense.Title,
				defense.CandidateID,
				defense.SupervisorID,
				defense.Start.UnixMilli(),
				defense.End.UnixMilli(),
				defense.DurationMins,
				defense.BufferMins,
				defense.Venue,
				defense.MeetingLink,
				defense.Modality,
				defense.Notes,
				defense.Status,
				defense.CreatedBy,
				formatTimestamp(defense.CreatedAt),
				formatTimestamp(defense.UpdatedAt),
			)
			if err != nil {
				return r.mapper.MapError(err)
			}

			if err := r.writePanel(ctx, tx, defense.ID, defense.PanelistIDs); err != nil {
				return err
			}
			if err := r.writeResponses(ctx, tx, defense.ID, defense.Responses); err != nil {
				return err
			}
			for _, cr := range defense.ChangeRequests {
				if err := r.insertChangeRequest(ctx, tx, defense.ID, cr); err != nil {
					return err
				}
			}

			stored, err = r.getDefense(ctx, tx, defense.ID)
			return err
		})
	})
	if err != nil {
		return persistence.Defense{}, err
	}
	return stored, nil
}

// UpdateDefense rewrites a scheduled defense. The panel and responses are replaced;
// change requests are kept. A cancelled row yields ErrStateChanged.
func (r *DefenseRepository) UpdateDefense(ctx context.Context, defense persistence.Defense, check persistence.ConflictCheck) (persistence.Defense, error) {
	if defense.ID == "" {
		return persistence.Defense{}, persistence.ErrNotFound
	}
	if defense.UpdatedAt.IsZero() {
		defense.UpdatedAt = r.now().UTC()
	}

	var stored persistence.Defense
	err := r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			if err := r.runCheck(ctx, tx, check); err != nil {
				return err
			}

			result, err := tx.ExecContext(ctx, `
				UPDATE defenses
				SET title = ?, candidate_id = ?, supervisor_id = ?, start_ms = ?, end_ms = ?,
					duration_mins = ?, buffer_mins = ?, venue = ?, meeting_link = ?,
					modality = ?, notes = ?, updated_at = ?
				WHERE id = ? AND status = ?`,
				defense.Title,
				defense.CandidateID,
				defense.SupervisorID,
				defense.Start.UnixMilli(),
				defense.End.UnixMilli(),
				defense.DurationMins,
				defense.BufferMins,
				defense.Venue,
				defense.MeetingLink,
				defense.Modality,
				defense.Notes,
				formatTimestamp(defense.UpdatedAt),
				defense.ID,
				persistence.StatusScheduled,
			)
			if err != nil {
				return r.mapper.MapError(err)
			}
			if err := r.requireAffected(ctx, tx, result, defense.ID); err != nil {
				return err
			}

			if _, err := tx.ExecContext(ctx, `DELETE FROM defense_panelists WHERE defense_id = ?`, defense.ID); err != nil {
				return r.mapper.MapError(err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM defense_responses WHERE defense_id = ?`, defense.ID); err != nil {
				return r.mapper.MapError(err)
			}
			if err := r.writePanel(ctx, tx, defense.ID, defense.PanelistIDs); err != nil {
				return err
			}
			if err := r.writeResponses(ctx, tx, defense.ID, defense.Responses); err != nil {
				return err
			}

			stored, err = r.getDefense(ctx, tx, defense.ID)
			return err
		})
	})
	if err != nil {
		return persistence.Defense{}, err
	}
	return stored, nil
}

// CancelDefense marks a defense cancelled. Cancelling an already cancelled
// defense returns it unchanged.
func (r *DefenseRepository) CancelDefense(ctx context.Context, id string, at time.Time) (persistence.Defense, error) {
	if id == "" {
		return persistence.Defense{}, persistence.ErrNotFound
	}

	var stored persistence.Defense
	err := r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `
				UPDATE defenses SET status = ?, updated_at = ?
				WHERE id = ? AND status = ?`,
				persistence.StatusCancelled,
				formatTimestamp(at),
				id,
				persistence.StatusScheduled,
			)
			if err != nil {
				return r.mapper.MapError(err)
			}

			stored, err = r.getDefense(ctx, tx, id)
			return err
		})
	})
	if err != nil {
		return persistence.Defense{}, err
	}
	return stored, nil
}

// RecordResponse overwrites an invitee's response entry
func (r *DefenseRepository) RecordResponse(ctx context.Context, defenseID string, response persistence.Response) (persistence.Defense, error) {
	var stored persistence.Defense
	err := r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			if err := r.requireScheduled(ctx, tx, defenseID); err != nil {
				return err
			}

			result, err := tx.ExecContext(ctx, `
				UPDATE defense_responses SET status = ?, note = ?, responded_at = ?
				WHERE defense_id = ? AND user_id = ?`,
				response.Status,
				response.Note,
				formatOptionalTimestamp(response.RespondedAt),
				defenseID,
				response.UserID,
			)
			if err != nil {
				return r.mapper.MapError(err)
			}
			if affected, err := result.RowsAffected(); err != nil {
				return fmt.Errorf("failed to get rows affected: %w", err)
			} else if affected == 0 {
				return persistence.ErrNotFound
			}

			if err := r.touch(ctx, tx, defenseID); err != nil {
				return err
			}
			stored, err = r.getDefense(ctx, tx, defenseID)
			return err
		})
	})
	if err != nil {
		return persistence.Defense{}, err
	}
	return stored, nil
}

// AppendChangeRequest adds a change request to a scheduled defense
func (r *DefenseRepository) AppendChangeRequest(ctx context.Context, defenseID string, request persistence.ChangeRequest) (persistence.Defense, error) {
	var stored persistence.Defense
	err := r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			if err := r.requireScheduled(ctx, tx, defenseID); err != nil {
				return err
			}
			if err := r.insertChangeRequest(ctx, tx, defenseID, request); err != nil {
				return err
			}
			if err := r.touch(ctx, tx, defenseID); err != nil {
				return err
			}

			var err error
			stored, err = r.getDefense(ctx, tx, defenseID)
			return err
		})
	})
	if err != nil {
		return persistence.Defense{}, err
	}
	return stored, nil
}

func (r *DefenseRepository) runCheck(ctx context.Context, q queryer, check persistence.ConflictCheck) error {
	if check.Verify == nil {
		return nil
	}
	existing, err := r.listDefenses(ctx, q, check.Filter)
	if err != nil {
		return err
	}
	return check.Verify(existing)
}

// requireAffected distinguishes a missing row from one that is no longer scheduled
func (r *DefenseRepository) requireAffected(ctx context.Context, q queryer, result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}
	return r.requireScheduled(ctx, q, id)
}

func (r *DefenseRepository) requireScheduled(ctx context.Context, q queryer, id string) error {
	var status string
	err := q.QueryRowContext(ctx, `SELECT status FROM defenses WHERE id = ?`, id).Scan(&status)
	if err != nil {
		return r.mapper.MapError(err)
	}
	if status != persistence.StatusScheduled {
		return persistence.ErrStateChanged
	}
	return nil
}

func (r *DefenseRepository) touch(ctx context.Context, q queryer, id string) error {
	_, err := q.ExecContext(ctx, `UPDATE defenses SET updated_at = ? WHERE id = ?`,
		formatTimestamp(r.now()), id)
	return r.mapper.MapError(err)
}

func (r *DefenseRepository) writePanel(ctx context.Context, q queryer, defenseID string, panelistIDs []string) error {
	for i, userID := range panelistIDs {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO defense_panelists (defense_id, user_id, position) VALUES (?, ?, ?)`,
			defenseID, userID, i); err != nil {
			return r.mapper.MapError(err)
		}
	}
	return nil
}

func (r *DefenseRepository) writeResponses(ctx context.Context, q queryer, defenseID string, responses []persistence.Response) error {
	for i, resp := range responses {
		status := resp.Status
		if status == "" {
			status = "pending"
		}
		if _, err := q.ExecContext(ctx, `
			INSERT INTO defense_responses (defense_id, user_id, position, status, note, responded_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			defenseID, resp.UserID, i, status, resp.Note, formatOptionalTimestamp(resp.RespondedAt)); err != nil {
			return r.mapper.MapError(err)
		}
	}
	return nil
}

func (r *DefenseRepository) insertChangeRequest(ctx context.Context, q queryer, defenseID string, cr persistence.ChangeRequest) error {
	slots := cr.PreferredSlots
	if slots == nil {
		slots = []string{}
	}
	encoded, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("failed to encode preferred slots: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO defense_change_requests (defense_id, requested_by, reason, preferred_slots, requested_at)
		VALUES (?, ?, ?, ?, ?)`,
		defenseID, cr.RequestedBy, cr.Reason, string(encoded), formatTimestamp(cr.RequestedAt))
	return r.mapper.MapError(err)
}

func (r *DefenseRepository) getDefense(ctx context.Context, q queryer, id string) (persistence.Defense, error) {
	row := q.QueryRowContext(ctx, `SELECT `+defenseColumns+` FROM defenses d WHERE d.id = ?`, id)
	defense, err := scanDefense(row)
	if err != nil {
		return persistence.Defense{}, r.mapper.MapError(err)
	}
	if err := r.loadChildren(ctx, q, &defense); err != nil {
		return persistence.Defense{}, err
	}
	return defense, nil
}

func (r *DefenseRepository) listDefenses(ctx context.Context, q queryer, filter persistence.DefenseFilter) ([]persistence.Defense, error) {
	query, args := buildDefenseQuery(filter)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}

	var defenses []persistence.Defense
	for rows.Next() {
		defense, err := scanDefense(rows)
		if err != nil {
			rows.Close()
			return nil, r.mapper.MapError(err)
		}
		defenses = append(defenses, defense)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, r.mapper.MapError(err)
	}
	rows.Close()

	for i := range defenses {
		if err := r.loadChildren(ctx, q, &defenses[i]); err != nil {
			return nil, err
		}
	}
	return defenses, nil
}

func (r *DefenseRepository) loadChildren(ctx context.Context, q queryer, defense *persistence.Defense) error {
	panelists, err := queryStrings(ctx, q,
		`SELECT user_id FROM defense_panelists WHERE defense_id = ? ORDER BY position`, defense.ID)
	if err != nil {
		return r.mapper.MapError(err)
	}
	defense.PanelistIDs = panelists

	responses, err := r.loadResponses(ctx, q, defense.ID)
	if err != nil {
		return err
	}
	defense.Responses = responses

	requests, err := r.loadChangeRequests(ctx, q, defense.ID)
	if err != nil {
		return err
	}
	defense.ChangeRequests = requests
	return nil
}

func (r *DefenseRepository) loadResponses(ctx context.Context, q queryer, defenseID string) ([]persistence.Response, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT user_id, status, note, responded_at
		FROM defense_responses WHERE defense_id = ? ORDER BY position`, defenseID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	responses := []persistence.Response{}
	for rows.Next() {
		var (
			resp        persistence.Response
			respondedAt sql.NullString
		)
		if err := rows.Scan(&resp.UserID, &resp.Status, &resp.Note, &respondedAt); err != nil {
			return nil, r.mapper.MapError(err)
		}
		if respondedAt.Valid {
			t := parseTimestamp(respondedAt.String)
			resp.RespondedAt = &t
		}
		responses = append(responses, resp)
	}
	return responses, r.mapper.MapError(rows.Err())
}

func (r *DefenseRepository) loadChangeRequests(ctx context.Context, q queryer, defenseID string) ([]persistence.ChangeRequest, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT requested_by, reason, preferred_slots, requested_at
		FROM defense_change_requests WHERE defense_id = ? ORDER BY id`, defenseID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	requests := []persistence.ChangeRequest{}
	for rows.Next() {
		var (
			cr          persistence.ChangeRequest
			slots       string
			requestedAt string
		)
		if err := rows.Scan(&cr.RequestedBy, &cr.Reason, &slots, &requestedAt); err != nil {
			return nil, r.mapper.MapError(err)
		}
		if err := json.Unmarshal([]byte(slots), &cr.PreferredSlots); err != nil {
			return nil, fmt.Errorf("failed to decode preferred slots: %w", err)
		}
		cr.RequestedAt = parseTimestamp(requestedAt)
		requests = append(requests, cr)
	}
	return requests, r.mapper.MapError(rows.Err())
}

// buildDefenseQuery renders filter as SQL. The buffered overlap test mirrors
// scheduler.Overlaps: each side is widened by its own buffer and the comparison is strict.
func buildDefenseQuery(filter persistence.DefenseFilter) (string, []any) {
	var (
		conditions []string
		args       []any
	)

	if !filter.IncludeCancelled {
		conditions = append(conditions, "d.status = ?")
		args = append(args, persistence.StatusScheduled)
	}
	if filter.ExcludeID != "" {
		conditions = append(conditions, "d.id <> ?")
		args = append(args, filter.ExcludeID)
	}
	if filter.StartFrom != nil {
		conditions = append(conditions, "d.start_ms >= ?")
		args = append(args, filter.StartFrom.UnixMilli())
	}
	if filter.StartTo != nil {
		conditions = append(conditions, "d.start_ms <= ?")
		args = append(args, filter.StartTo.UnixMilli())
	}
	if w := filter.Overlapping; w != nil {
		pad := int64(w.BufferMins) * minuteMillis
		conditions = append(conditions,
			"(d.start_ms - d.buffer_mins * ?) < ?",
			"(d.end_ms + d.buffer_mins * ?) > ?",
		)
		args = append(args,
			minuteMillis, w.End.UnixMilli()+pad,
			minuteMillis, w.Start.UnixMilli()-pad,
		)
	}
	if filter.CandidateID != "" {
		conditions = append(conditions, "d.candidate_id = ?")
		args = append(args, filter.CandidateID)
	}
	if filter.PanelistID != "" {
		conditions = append(conditions,
			"EXISTS (SELECT 1 FROM defense_panelists p WHERE p.defense_id = d.id AND p.user_id = ?)")
		args = append(args, filter.PanelistID)
	}

	var either []string
	if len(filter.PersonIDs) > 0 {
		marks := placeholders(len(filter.PersonIDs))
		either = append(either,
			"d.candidate_id IN ("+marks+")",
			"d.supervisor_id IN ("+marks+")",
			"EXISTS (SELECT 1 FROM defense_panelists p WHERE p.defense_id = d.id AND p.user_id IN ("+marks+"))",
		)
		for range 3 {
			for _, id := range filter.PersonIDs {
				args = append(args, id)
			}
		}
	}
	if filter.Venue != "" {
		either = append(either, "d.venue = ?")
		args = append(args, filter.Venue)
	}
	if len(either) > 0 {
		conditions = append(conditions, "("+strings.Join(either, " OR ")+")")
	}

	query := `SELECT ` + defenseColumns + ` FROM defenses d`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY d.start_ms ASC, d.id ASC"
	return query, args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDefense(row rowScanner) (persistence.Defense, error) {
	var (
		d                    persistence.Defense
		startMs, endMs       int64
		createdAt, updatedAt string
	)
	err := row.Scan(
		&d.ID,
		&d.Title,
		&d.CandidateID,
		&d.SupervisorID,
		&startMs,
		&endMs,
		&d.DurationMins,
		&d.BufferMins,
		&d.Venue,
		&d.MeetingLink,
		&d.Modality,
		&d.Notes,
		&d.Status,
		&d.CreatedBy,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.Defense{}, err
	}
	d.Start = time.UnixMilli(startMs).UTC()
	d.End = time.UnixMilli(endMs).UTC()
	d.CreatedAt = parseTimestamp(createdAt)
	d.UpdatedAt = parseTimestamp(updatedAt)
	return d, nil
}

func queryStrings(ctx context.Context, q queryer, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatOptionalTimestamp(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTimestamp(*t)
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

var _ persistence.DefenseRepository = (*DefenseRepository)(nil)
