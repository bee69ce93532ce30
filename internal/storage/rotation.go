package storage

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
)

// EnsureCursor creates the rotation row for a deck if absent and
// normalizes the stored cursor against the current active-card count.
// The returned cursor always satisfies 0 <= cursor < activeCount for a
// non-empty deck, and is 0 for an empty one.
func EnsureCursor(ctx context.Context, q Queryer, deckID int64, activeCount int) (int, error) {
	query, args, err := builder.
		Insert("practice_rotation").
		Options("OR IGNORE").
		Columns("deck_id", "queue_cursor").
		Values(deckID, 0).
		ToSql()
	if err != nil {
		return 0, err
	}
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return 0, fmt.Errorf("failed to ensure rotation row for deck %d: %w", deckID, err)
	}

	query, args, err = builder.
		Select("queue_cursor").
		From("practice_rotation").
		Where(squirrel.Eq{"deck_id": deckID}).
		ToSql()
	if err != nil {
		return 0, err
	}

	var cursor int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&cursor); err != nil {
		return 0, fmt.Errorf("failed to read rotation cursor for deck %d: %w", deckID, err)
	}

	normalized := 0
	if activeCount > 0 {
		normalized = cursor % activeCount
	}
	if normalized != cursor {
		if err := SetCursor(ctx, q, deckID, normalized); err != nil {
			return 0, err
		}
	}
	return normalized, nil
}

// SetCursor stores an absolute cursor value for a deck. The completion
// transaction uses this with the next_cursor captured at plan time.
func SetCursor(ctx context.Context, q Queryer, deckID int64, cursor int) error {
	query, args, err := builder.
		Update("practice_rotation").
		Set("queue_cursor", cursor).
		Where(squirrel.Eq{"deck_id": deckID}).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to set rotation cursor for deck %d: %w", deckID, err)
	}
	return nil
}

// RepairCursorOnDelete adjusts the cursor after a card is removed from
// the deck's active ordering. A deletion strictly before the cursor
// shifts every later card down one slot, so the cursor follows it to
// keep pointing at the same logical next card. deletedIndex is the
// card's position in the ascending-id active ordering before deletion;
// pass -1 if the card was not active.
func RepairCursorOnDelete(ctx context.Context, q Queryer, deckID int64, deletedIndex, oldCursor, oldCount int) error {
	cursor := oldCursor
	if deletedIndex >= 0 && deletedIndex < oldCursor {
		cursor--
	}

	newCount := oldCount
	if deletedIndex >= 0 {
		newCount--
	}
	if newCount <= 0 {
		cursor = 0
	} else {
		cursor = cursor % newCount
	}
	return SetCursor(ctx, q, deckID, cursor)
}
