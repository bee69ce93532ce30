package seed

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/cmhannon/flashfam/internal/domain"
	"github.com/cmhannon/flashfam/internal/storage"
)

// Deck names the math planner draws from, in planning order.
const (
	AdditionDeck    = "math-addition"
	SubtractionDeck = "math-subtraction"
	MathTag         = "math"
)

// MathConfig bounds the generated fact tables.
type MathConfig struct {
	// MaxSum caps a+b for addition facts; pairs with a+b < 2 are
	// skipped (0+0, 0+1 and 1+0 are not worth drilling).
	MaxSum int
	// MaxMinuend caps the minuend for subtraction facts.
	MaxMinuend int
}

// DefaultMathConfig matches the number range of early primary school.
func DefaultMathConfig() MathConfig {
	return MathConfig{MaxSum: 12, MaxMinuend: 12}
}

// Math seeds the two math fact decks. Idempotent: fronts that already
// exist are skipped, so re-running converges to the same card count
// for a given config. Returns the number of cards inserted.
func Math(ctx context.Context, db *storage.DB, cfg MathConfig) (int, error) {
	if cfg.MaxSum < 2 || cfg.MaxMinuend < 1 {
		return 0, fmt.Errorf("%w: math seed bounds too small", domain.ErrInvalidInput)
	}

	addDeck, err := ensureDeck(ctx, db, AdditionDeck, "Addition facts", MathTag)
	if err != nil {
		return 0, err
	}
	subDeck, err := ensureDeck(ctx, db, SubtractionDeck, "Subtraction facts", MathTag)
	if err != nil {
		return 0, err
	}

	var adds []domain.Card
	for a := 0; a <= cfg.MaxSum; a++ {
		for b := 0; b <= cfg.MaxSum; b++ {
			sum := a + b
			if sum < 2 || sum > cfg.MaxSum {
				continue
			}
			adds = append(adds, domain.Card{
				Front: fmt.Sprintf("%d + %d", a, b),
				Back:  strconv.Itoa(sum),
			})
		}
	}

	var subs []domain.Card
	for a := 1; a <= cfg.MaxMinuend; a++ {
		for b := 0; b <= a; b++ {
			subs = append(subs, domain.Card{
				Front: fmt.Sprintf("%d - %d", a, b),
				Back:  strconv.Itoa(a - b),
			})
		}
	}

	inserted, err := db.BulkInsertCards(ctx, addDeck, adds, storage.DedupByFront)
	if err != nil {
		return inserted, err
	}
	n, err := db.BulkInsertCards(ctx, subDeck, subs, storage.DedupByFront)
	return inserted + n, err
}

func ensureDeck(ctx context.Context, db *storage.DB, name, description, tags string) (int64, error) {
	deck, err := db.GetDeckByName(ctx, name)
	if err == nil {
		return deck.ID, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return 0, err
	}
	return db.CreateDeck(ctx, domain.Deck{Name: name, Description: description, Tags: tags})
}
