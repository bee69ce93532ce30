package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/cmhannon/flashfam/internal/domain"
)

// CreateSession inserts a session row and returns its generated id.
// Sessions are created at completion time, inside the completion
// transaction, with completed_at still unset.
func CreateSession(ctx context.Context, q Queryer, typ domain.SessionType, deckID *int64, plannedCount int, startedAt time.Time) (int64, error) {
	query, args, err := builder.
		Insert("sessions").
		Columns("type", "deck_id", "planned_count", "started_at").
		Values(string(typ), deckID, plannedCount, startedAt).
		ToSql()
	if err != nil {
		return 0, err
	}

	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get generated session id: %w", err)
	}
	return id, nil
}

// InsertSessionResult appends one answered card to a session.
func InsertSessionResult(ctx context.Context, q Queryer, sessionID int64, ans domain.Answer, ts time.Time) error {
	query, args, err := builder.
		Insert("session_results").
		Columns("session_id", "card_id", "correct", "response_time_ms", "timestamp").
		Values(sessionID, ans.CardID, ans.Correct, ans.ResponseTimeMs, ts).
		ToSql()
	if err != nil {
		return err
	}

	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert result for card %d: %w", ans.CardID, err)
	}
	return nil
}

// MarkSessionCompleted stamps completed_at, turning the row into a
// durable finished session.
func MarkSessionCompleted(ctx context.Context, q Queryer, sessionID int64, at time.Time) error {
	query, args, err := builder.
		Update("sessions").
		Set("completed_at", at).
		Where(squirrel.Eq{"id": sessionID}).
		ToSql()
	if err != nil {
		return err
	}

	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to mark session %d completed: %w", sessionID, err)
	}
	return nil
}

// LastCompletedSession returns the most recently completed session of
// the given type, or nil if none exists.
func LastCompletedSession(ctx context.Context, q Queryer, typ domain.SessionType) (*domain.Session, error) {
	query, args, err := builder.
		Select("id", "type", "deck_id", "planned_count", "started_at", "completed_at").
		From("sessions").
		Where(squirrel.Eq{"type": string(typ)}).
		Where("completed_at IS NOT NULL").
		OrderBy("completed_at DESC", "id DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, err
	}

	var s domain.Session
	var deckID sql.NullInt64
	var completedAt sql.NullTime
	row := q.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&s.ID, &s.Type, &deckID, &s.PlannedCount, &s.StartedAt, &completedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // No prior session of this type
		}
		return nil, fmt.Errorf("failed to scan last completed session: %w", err)
	}
	if deckID.Valid {
		v := deckID.Int64
		s.DeckID = &v
	}
	if completedAt.Valid {
		t := completedAt.Time
		s.CompletedAt = &t
	}
	return &s, nil
}

// IncorrectCardIDs returns the ids of cards answered wrong in a
// session, in the order the answers were recorded, deduplicated.
func IncorrectCardIDs(ctx context.Context, q Queryer, sessionID int64) ([]int64, error) {
	query, args, err := builder.
		Select("card_id").
		From("session_results").
		Where(squirrel.Eq{"session_id": sessionID, "correct": false}).
		OrderBy("timestamp ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query incorrect cards for session %d: %w", sessionID, err)
	}
	defer rows.Close()

	seen := make(map[int64]bool)
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan incorrect card id: %w", err)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// WritingAccuracy returns lifetime attempt and correct counts for a
// card across all writing sessions.
func WritingAccuracy(ctx context.Context, q Queryer, cardID int64) (attempts, correct int, err error) {
	row := q.QueryRowContext(ctx, `
		SELECT COUNT(r.id), COALESCE(SUM(r.correct), 0)
		FROM session_results r
		JOIN sessions s ON s.id = r.session_id
		WHERE r.card_id = ? AND s.type = ?
	`, cardID, string(domain.SessionWriting))
	if err := row.Scan(&attempts, &correct); err != nil {
		return 0, 0, fmt.Errorf("failed to compute writing accuracy for card %d: %w", cardID, err)
	}
	return attempts, correct, nil
}

// PurgeIncompleteSessions deletes sessions that never completed, along
// with their results. Run at startup so get-last-completed-session
// never observes a half-written session from a previous process.
func (db *DB) PurgeIncompleteSessions(ctx context.Context) (int64, error) {
	var purged int64
	err := db.WithTx(ctx, func(q Queryer) error {
		if _, err := q.ExecContext(ctx, `
			DELETE FROM session_results
			WHERE session_id IN (SELECT id FROM sessions WHERE completed_at IS NULL)
		`); err != nil {
			return fmt.Errorf("failed to purge incomplete session results: %w", err)
		}
		res, err := q.ExecContext(ctx, `DELETE FROM sessions WHERE completed_at IS NULL`)
		if err != nil {
			return fmt.Errorf("failed to purge incomplete sessions: %w", err)
		}
		purged, _ = res.RowsAffected()
		return nil
	})
	return purged, err
}
