package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cmhannon/flashfam/internal/domain"
)

func TestInsertCardReturnsGeneratedID(t *testing.T) {
	db := openTestDB(t)
	deckID := mustCreateDeck(t, db, "hanzi")

	first := mustInsertCard(t, db, domain.Card{DeckID: deckID, Front: "水", Back: "water"})
	second := mustInsertCard(t, db, domain.Card{DeckID: deckID, Front: "火", Back: "fire"})
	if first <= 0 || second <= first {
		t.Errorf("expected increasing generated ids, got %d then %d", first, second)
	}

	card, err := db.GetCard(context.Background(), first)
	if err != nil {
		t.Fatalf("GetCard() failed: %v", err)
	}
	if card.Front != "水" || card.Back != "water" {
		t.Errorf("GetCard() = %q/%q, want 水/water", card.Front, card.Back)
	}
	if card.CreatedAt.IsZero() {
		t.Error("expected created_at to be stamped on insert")
	}
}

func TestGetCardNotFound(t *testing.T) {
	db := openTestDB(t)
	_, err := db.GetCard(context.Background(), 999)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetCard() error = %v, want ErrNotFound", err)
	}
}

func TestInsertWritingCardRejectsDuplicateAnswer(t *testing.T) {
	db := openTestDB(t)
	deckID := mustCreateDeck(t, db, "writing")

	if _, err := db.InsertWritingCard(context.Background(), domain.Card{
		DeckID: deckID, Front: "ma1", Back: "妈妈", AudioFile: "mama.mp3",
	}); err != nil {
		t.Fatalf("InsertWritingCard() failed: %v", err)
	}

	_, err := db.InsertWritingCard(context.Background(), domain.Card{
		DeckID: deckID, Front: "other prompt", Back: "妈妈",
	})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("duplicate answer error = %v, want ErrInvalidInput", err)
	}
}

func TestBulkInsertCardsDedup(t *testing.T) {
	db := openTestDB(t)
	deckID := mustCreateDeck(t, db, "deck")
	mustInsertCard(t, db, domain.Card{DeckID: deckID, Front: "existing", Back: "x"})

	batch := []domain.Card{
		{Front: "existing", Back: "skipped"},
		{Front: "new one", Back: "kept"},
		{Front: "new one", Back: "duplicate in batch"},
		{Front: "another", Back: "kept"},
	}
	inserted, err := db.BulkInsertCards(context.Background(), deckID, batch, DedupByFront)
	if err != nil {
		t.Fatalf("BulkInsertCards() failed: %v", err)
	}
	if inserted != 2 {
		t.Errorf("inserted = %d, want 2", inserted)
	}

	cards, err := db.ListCards(context.Background(), deckID)
	if err != nil {
		t.Fatalf("ListCards() failed: %v", err)
	}
	if len(cards) != 3 {
		t.Errorf("deck has %d cards, want 3", len(cards))
	}
}

func TestListActiveCardsSkipsFlagged(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	deckID := mustCreateDeck(t, db, "deck")

	keep := mustInsertCard(t, db, domain.Card{DeckID: deckID, Front: "keep"})
	skip := mustInsertCard(t, db, domain.Card{DeckID: deckID, Front: "skip"})
	if err := db.SetSkipPractice(ctx, skip, true); err != nil {
		t.Fatalf("SetSkipPractice() failed: %v", err)
	}

	active, err := db.ListActiveCards(ctx, deckID)
	if err != nil {
		t.Fatalf("ListActiveCards() failed: %v", err)
	}
	if len(active) != 1 || active[0].ID != keep {
		t.Errorf("active cards = %v, want only card %d", active, keep)
	}
}

func TestListCardStats(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	deckID := mustCreateDeck(t, db, "deck")

	practiced := mustInsertCard(t, db, domain.Card{DeckID: deckID, Front: "practiced"})
	untouched := mustInsertCard(t, db, domain.Card{DeckID: deckID, Front: "untouched"})

	at := time.Now().UTC().Truncate(time.Second)
	mustCompleteSession(t, db, domain.SessionFlashcard, []int64{practiced}, map[int64]bool{practiced: true}, at.Add(-time.Hour))
	mustCompleteSession(t, db, domain.SessionFlashcard, []int64{practiced}, map[int64]bool{practiced: false}, at)

	stats, err := db.ListCardStats(ctx, deckID)
	if err != nil {
		t.Fatalf("ListCardStats() failed: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("got %d stat rows, want 2", len(stats))
	}

	byID := map[int64]domain.CardStats{}
	for _, s := range stats {
		byID[s.ID] = s
	}
	p := byID[practiced]
	if p.Attempts != 2 || p.Correct != 1 {
		t.Errorf("practiced card attempts/correct = %d/%d, want 2/1", p.Attempts, p.Correct)
	}
	if p.LastSeen == nil {
		t.Error("practiced card should have a last-seen timestamp")
	}
	u := byID[untouched]
	if u.Attempts != 0 || u.LastSeen != nil {
		t.Errorf("untouched card should have zero attempts and no last-seen, got %d/%v", u.Attempts, u.LastSeen)
	}
}
