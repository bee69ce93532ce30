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

var cardColumns = []string{
	"id", "deck_id", "front", "back",
	"hardness_score", "skip_practice", "audio_file", "created_at",
}

// InsertCard inserts a card and returns its generated id. A zero
// CreatedAt is stamped with the current time.
func (db *DB) InsertCard(ctx context.Context, c domain.Card) (int64, error) {
	return insertCard(ctx, db.conn, c)
}

func insertCard(ctx context.Context, q Queryer, c domain.Card) (int64, error) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	query, args, err := builder.
		Insert("cards").
		Columns("deck_id", "front", "back", "hardness_score", "skip_practice", "audio_file", "created_at").
		Values(c.DeckID, c.Front, c.Back, c.HardnessScore, c.SkipPractice, c.AudioFile, c.CreatedAt).
		ToSql()
	if err != nil {
		return 0, err
	}

	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert card %q: %w", c.Front, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get generated id for card %q: %w", c.Front, err)
	}
	return id, nil
}

// InsertWritingCard inserts a card into a writing deck. Duplicate
// answers (matched by back) are a user error, pre-checked so the
// caller never sees a constraint violation.
func (db *DB) InsertWritingCard(ctx context.Context, c domain.Card) (int64, error) {
	exists, err := db.hasCard(ctx, c.DeckID, "back", c.Back)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, fmt.Errorf("%w: phrase %q already exists in this deck", domain.ErrInvalidInput, c.Back)
	}
	return insertCard(ctx, db.conn, c)
}

func (db *DB) hasCard(ctx context.Context, deckID int64, column, value string) (bool, error) {
	query, args, err := builder.
		Select("COUNT(1)").
		From("cards").
		Where(squirrel.Eq{"deck_id": deckID, column: value}).
		ToSql()
	if err != nil {
		return false, err
	}

	var n int
	if err := db.conn.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check for existing card: %w", err)
	}
	return n > 0, nil
}

// DedupField selects which side of a card identifies a duplicate
// during bulk insertion.
type DedupField string

const (
	DedupByFront DedupField = "front"
	DedupByBack  DedupField = "back"
)

// BulkInsertCards inserts cards into a deck, skipping any whose dedup
// field already exists in the deck (or earlier in the batch). Returns
// the number actually inserted.
func (db *DB) BulkInsertCards(ctx context.Context, deckID int64, cards []domain.Card, dedup DedupField) (int, error) {
	existing, err := db.cardFieldSet(ctx, deckID, string(dedup))
	if err != nil {
		return 0, err
	}

	inserted := 0
	err = db.WithTx(ctx, func(q Queryer) error {
		for _, c := range cards {
			key := c.Front
			if dedup == DedupByBack {
				key = c.Back
			}
			if existing[key] {
				continue
			}
			c.DeckID = deckID
			if _, err := insertCard(ctx, q, c); err != nil {
				return err
			}
			existing[key] = true
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func (db *DB) cardFieldSet(ctx context.Context, deckID int64, column string) (map[string]bool, error) {
	query, args, err := builder.
		Select(column).
		From("cards").
		Where(squirrel.Eq{"deck_id": deckID}).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing card %s values: %w", column, err)
	}
	defer rows.Close()

	set := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan card %s value: %w", column, err)
		}
		set[v] = true
	}
	return set, rows.Err()
}

// GetCard retrieves a card by id.
func (db *DB) GetCard(ctx context.Context, id int64) (*domain.Card, error) {
	return getCard(ctx, db.conn, id)
}

func getCard(ctx context.Context, q Queryer, id int64) (*domain.Card, error) {
	query, args, err := builder.
		Select(cardColumns...).
		From("cards").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var c domain.Card
	row := q.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&c.ID, &c.DeckID, &c.Front, &c.Back,
		&c.HardnessScore, &c.SkipPractice, &c.AudioFile, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: card %d", domain.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to scan card %d: %w", id, err)
	}
	return &c, nil
}

// ListActiveCards returns the deck's cards with skip_practice unset,
// ordered ascending by id. This ordering is what the rotation cursor
// indexes into.
func (db *DB) ListActiveCards(ctx context.Context, deckID int64) ([]domain.Card, error) {
	return listActiveCards(ctx, db.conn, deckID)
}

func listActiveCards(ctx context.Context, q Queryer, deckID int64) ([]domain.Card, error) {
	query, args, err := builder.
		Select(cardColumns...).
		From("cards").
		Where(squirrel.Eq{"deck_id": deckID, "skip_practice": false}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, err
	}
	return queryCards(ctx, q, query, args)
}

// ListCards returns every card in a deck, including skipped ones.
func (db *DB) ListCards(ctx context.Context, deckID int64) ([]domain.Card, error) {
	query, args, err := builder.
		Select(cardColumns...).
		From("cards").
		Where(squirrel.Eq{"deck_id": deckID}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, err
	}
	return queryCards(ctx, db.conn, query, args)
}

func queryCards(ctx context.Context, q Queryer, query string, args []any) ([]domain.Card, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		var c domain.Card
		if err := rows.Scan(&c.ID, &c.DeckID, &c.Front, &c.Back,
			&c.HardnessScore, &c.SkipPractice, &c.AudioFile, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan card row: %w", err)
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// ListCardStats returns every card in a deck together with lifetime
// attempt counts and the last time it was practiced.
func (db *DB) ListCardStats(ctx context.Context, deckID int64) ([]domain.CardStats, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT c.id, c.deck_id, c.front, c.back,
		       c.hardness_score, c.skip_practice, c.audio_file, c.created_at,
		       COUNT(r.id), COALESCE(SUM(r.correct), 0), MAX(r.timestamp)
		FROM cards c
		LEFT JOIN session_results r ON r.card_id = c.id
		WHERE c.deck_id = ?
		GROUP BY c.id
		ORDER BY c.id ASC
	`, deckID)
	if err != nil {
		return nil, fmt.Errorf("failed to query card stats: %w", err)
	}
	defer rows.Close()

	var stats []domain.CardStats
	for rows.Next() {
		var s domain.CardStats
		var lastSeen any
		if err := rows.Scan(&s.ID, &s.DeckID, &s.Front, &s.Back,
			&s.HardnessScore, &s.SkipPractice, &s.AudioFile, &s.CreatedAt,
			&s.Attempts, &s.Correct, &lastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan card stats row: %w", err)
		}
		// MAX() strips the column's declared type, so the driver hands
		// the raw stored value back instead of a time.Time.
		if t, ok := parseStoredTime(lastSeen); ok {
			s.LastSeen = &t
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

var storedTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05",
}

func parseStoredTime(v any) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return val, true
	case string:
		for _, layout := range storedTimeLayouts {
			if t, err := time.Parse(layout, val); err == nil {
				return t, true
			}
		}
	case []byte:
		return parseStoredTime(string(val))
	}
	return time.Time{}, false
}

// SetSkipPractice toggles a card's skip flag. The rotation cursor is
// renormalized on the next EnsureCursor, so no repair is needed here.
func (db *DB) SetSkipPractice(ctx context.Context, id int64, skip bool) error {
	query, args, err := builder.
		Update("cards").
		Set("skip_practice", skip).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}

	res, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to set skip flag on card %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: card %d", domain.ErrNotFound, id)
	}
	return nil
}

// SetHardness updates a card's hardness score. Exposed at package
// level so the completion transaction can run it against its Queryer.
func SetHardness(ctx context.Context, q Queryer, cardID int64, score float64) error {
	query, args, err := builder.
		Update("cards").
		Set("hardness_score", score).
		Where(squirrel.Eq{"id": cardID}).
		ToSql()
	if err != nil {
		return err
	}

	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update hardness for card %d: %w", cardID, err)
	}
	return nil
}

// DeleteCard removes a card and repairs its deck's rotation cursor so
// the rotation keeps pointing at the same logical next card.
func (db *DB) DeleteCard(ctx context.Context, id int64) error {
	return db.WithTx(ctx, func(q Queryer) error {
		card, err := getCard(ctx, q, id)
		if err != nil {
			return err
		}

		if !card.SkipPractice {
			active, err := listActiveCards(ctx, q, card.DeckID)
			if err != nil {
				return err
			}
			index := -1
			for i, c := range active {
				if c.ID == id {
					index = i
					break
				}
			}
			cursor, err := EnsureCursor(ctx, q, card.DeckID, len(active))
			if err != nil {
				return err
			}
			if err := RepairCursorOnDelete(ctx, q, card.DeckID, index, cursor, len(active)); err != nil {
				return err
			}
		}

		query, args, err := builder.Delete("cards").Where(squirrel.Eq{"id": id}).ToSql()
		if err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to delete card %d: %w", id, err)
		}
		return nil
	})
}
