package seed

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/cmhannon/flashfam/internal/domain"
	"github.com/cmhannon/flashfam/internal/storage"
)

func openTestDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMathSeedsBothDecks(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	// MaxSum 3: sums of 2 (three pairs) and 3 (four pairs).
	// MaxMinuend 2: 1-0, 1-1, 2-0, 2-1, 2-2.
	inserted, err := Math(ctx, db, MathConfig{MaxSum: 3, MaxMinuend: 2})
	if err != nil {
		t.Fatalf("Math() failed: %v", err)
	}
	if inserted != 12 {
		t.Errorf("inserted = %d, want 12", inserted)
	}

	add, err := db.GetDeckByName(ctx, AdditionDeck)
	if err != nil {
		t.Fatalf("addition deck missing: %v", err)
	}
	if add.Tags != MathTag {
		t.Errorf("addition deck tags = %q, want %q", add.Tags, MathTag)
	}
	addCards, err := db.ListCards(ctx, add.ID)
	if err != nil {
		t.Fatalf("ListCards() failed: %v", err)
	}
	if len(addCards) != 7 {
		t.Errorf("addition deck has %d cards, want 7", len(addCards))
	}

	sub, err := db.GetDeckByName(ctx, SubtractionDeck)
	if err != nil {
		t.Fatalf("subtraction deck missing: %v", err)
	}
	subCards, err := db.ListCards(ctx, sub.ID)
	if err != nil {
		t.Fatalf("ListCards() failed: %v", err)
	}
	if len(subCards) != 5 {
		t.Errorf("subtraction deck has %d cards, want 5", len(subCards))
	}
}

func TestMathIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	cfg := MathConfig{MaxSum: 4, MaxMinuend: 3}

	if _, err := Math(ctx, db, cfg); err != nil {
		t.Fatalf("first Math() failed: %v", err)
	}
	inserted, err := Math(ctx, db, cfg)
	if err != nil {
		t.Fatalf("second Math() failed: %v", err)
	}
	if inserted != 0 {
		t.Errorf("re-seeding inserted %d cards, want 0", inserted)
	}
}

func TestMathGrowsWhenBoundsGrow(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := Math(ctx, db, MathConfig{MaxSum: 3, MaxMinuend: 2}); err != nil {
		t.Fatalf("Math() failed: %v", err)
	}
	inserted, err := Math(ctx, db, MathConfig{MaxSum: 4, MaxMinuend: 2})
	if err != nil {
		t.Fatalf("Math() with larger bounds failed: %v", err)
	}
	// Five new pairs sum to exactly 4.
	if inserted != 5 {
		t.Errorf("growing MaxSum to 4 inserted %d cards, want 5", inserted)
	}
}

func TestMathRejectsTinyBounds(t *testing.T) {
	db := openTestDB(t)
	if _, err := Math(context.Background(), db, MathConfig{MaxSum: 1, MaxMinuend: 1}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("Math() error = %v, want ErrInvalidInput", err)
	}
}

func TestLessonsSeedsUnits(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	inserted, removed, err := Lessons(ctx, db)
	if err != nil {
		t.Fatalf("Lessons() failed: %v", err)
	}
	if removed != 0 {
		t.Errorf("removed = %d on fresh database, want 0", removed)
	}
	wantTotal := 0
	for _, unit := range lessonUnits {
		wantTotal += len(unit)
	}
	if inserted != wantTotal {
		t.Errorf("inserted = %d, want %d", inserted, wantTotal)
	}

	for i, unit := range lessonUnits {
		deck, err := db.GetDeckByName(ctx, fmt.Sprintf("lessons-unit-%d", i+1))
		if err != nil {
			t.Fatalf("unit %d deck missing: %v", i+1, err)
		}
		if deck.Tags != LessonTag {
			t.Errorf("unit %d tags = %q, want %q", i+1, deck.Tags, LessonTag)
		}
		cards, err := db.ListCards(ctx, deck.ID)
		if err != nil {
			t.Fatalf("ListCards() failed: %v", err)
		}
		if len(cards) != len(unit) {
			t.Errorf("unit %d has %d cards, want %d", i+1, len(cards), len(unit))
		}
	}

	// Re-running changes nothing.
	inserted, removed, err = Lessons(ctx, db)
	if err != nil {
		t.Fatalf("second Lessons() failed: %v", err)
	}
	if inserted != 0 || removed != 0 {
		t.Errorf("re-seeding inserted/removed = %d/%d, want 0/0", inserted, removed)
	}
}

func TestLessonsRemovesRetiredPassages(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, _, err := Lessons(ctx, db); err != nil {
		t.Fatalf("Lessons() failed: %v", err)
	}
	deck, err := db.GetDeckByName(ctx, "lessons-unit-1")
	if err != nil {
		t.Fatalf("unit 1 deck missing: %v", err)
	}
	if _, err := db.InsertCard(ctx, domain.Card{
		DeckID: deck.ID,
		Front:  "The Gingerbread Man",
		Back:   "26",
	}); err != nil {
		t.Fatalf("InsertCard() failed: %v", err)
	}

	_, removed, err := Lessons(ctx, db)
	if err != nil {
		t.Fatalf("Lessons() failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	cards, err := db.ListCards(ctx, deck.ID)
	if err != nil {
		t.Fatalf("ListCards() failed: %v", err)
	}
	for _, c := range cards {
		if c.Front == "The Gingerbread Man" {
			t.Error("retired passage still present after reseeding")
		}
	}
}
