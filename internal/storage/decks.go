package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/cmhannon/flashfam/internal/domain"
)

var deckColumns = []string{"id", "name", "description", "tags", "source"}

// CreateDeck inserts a new deck and returns its generated id. Deck
// names are unique; a clash is reported as a conflict, not a driver
// error.
func (db *DB) CreateDeck(ctx context.Context, deck domain.Deck) (int64, error) {
	if strings.TrimSpace(deck.Name) == "" {
		return 0, fmt.Errorf("%w: deck name is required", domain.ErrInvalidInput)
	}

	existing, err := db.GetDeckByName(ctx, deck.Name)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return 0, err
	}
	if existing != nil {
		return 0, fmt.Errorf("%w: deck %q already exists", domain.ErrConflict, deck.Name)
	}

	query, args, err := builder.
		Insert("decks").
		Columns("name", "description", "tags", "source").
		Values(deck.Name, deck.Description, deck.Tags, deck.Source).
		ToSql()
	if err != nil {
		return 0, err
	}

	res, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert deck %q: %w", deck.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get generated id for deck %q: %w", deck.Name, err)
	}
	return id, nil
}

// GetDeck retrieves a deck by id.
func (db *DB) GetDeck(ctx context.Context, id int64) (*domain.Deck, error) {
	return db.getDeck(ctx, squirrel.Eq{"id": id})
}

// GetDeckByName retrieves a deck by its unique name.
func (db *DB) GetDeckByName(ctx context.Context, name string) (*domain.Deck, error) {
	return db.getDeck(ctx, squirrel.Eq{"name": name})
}

func (db *DB) getDeck(ctx context.Context, where squirrel.Eq) (*domain.Deck, error) {
	query, args, err := builder.Select(deckColumns...).From("decks").Where(where).ToSql()
	if err != nil {
		return nil, err
	}

	var d domain.Deck
	row := db.conn.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&d.ID, &d.Name, &d.Description, &d.Tags, &d.Source); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: deck", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to scan deck: %w", err)
	}
	return &d, nil
}

// ListDecks returns all decks ordered by name.
func (db *DB) ListDecks(ctx context.Context) ([]domain.Deck, error) {
	query, args, err := builder.Select(deckColumns...).From("decks").OrderBy("name ASC").ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list decks: %w", err)
	}
	defer rows.Close()

	var decks []domain.Deck
	for rows.Next() {
		var d domain.Deck
		if err := rows.Scan(&d.ID, &d.Name, &d.Description, &d.Tags, &d.Source); err != nil {
			return nil, fmt.Errorf("failed to scan deck row: %w", err)
		}
		decks = append(decks, d)
	}
	return decks, rows.Err()
}

// ListDecksByTag returns decks whose comma-separated tags contain tag,
// ordered by name. Tag matching is exact per element, not substring.
func (db *DB) ListDecksByTag(ctx context.Context, tag string) ([]domain.Deck, error) {
	decks, err := db.ListDecks(ctx)
	if err != nil {
		return nil, err
	}

	var matched []domain.Deck
	for _, d := range decks {
		for _, t := range strings.Split(d.Tags, ",") {
			if strings.TrimSpace(t) == tag {
				matched = append(matched, d)
				break
			}
		}
	}
	return matched, nil
}

// SetDeckSource updates the content source URL or path for a deck.
func (db *DB) SetDeckSource(ctx context.Context, id int64, source string) error {
	query, args, err := builder.
		Update("decks").
		Set("source", source).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}

	res, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update deck %d source: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: deck %d", domain.ErrNotFound, id)
	}
	return nil
}
