package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/cmhannon/flashfam/internal/domain"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func mustCreateDeck(t *testing.T, db *DB, name string) int64 {
	t.Helper()
	id, err := db.CreateDeck(context.Background(), domain.Deck{Name: name})
	if err != nil {
		t.Fatalf("CreateDeck(%q) failed: %v", name, err)
	}
	return id
}

func mustInsertCard(t *testing.T, db *DB, c domain.Card) int64 {
	t.Helper()
	id, err := db.InsertCard(context.Background(), c)
	if err != nil {
		t.Fatalf("InsertCard(%q) failed: %v", c.Front, err)
	}
	return id
}

// mustCompleteSession writes a finished session with the given results
// directly, bypassing the planning flow. correct maps card id to the
// recorded outcome in iteration-independent insert order of cardIDs.
func mustCompleteSession(t *testing.T, db *DB, typ domain.SessionType, cardIDs []int64, correct map[int64]bool, at time.Time) int64 {
	t.Helper()
	ctx := context.Background()
	var sessionID int64
	err := db.WithTx(ctx, func(q Queryer) error {
		id, err := CreateSession(ctx, q, typ, nil, len(cardIDs), at)
		if err != nil {
			return err
		}
		sessionID = id
		for i, cardID := range cardIDs {
			ans := domain.Answer{CardID: cardID, Correct: correct[cardID], ResponseTimeMs: 1000}
			if err := InsertSessionResult(ctx, q, id, ans, at.Add(time.Duration(i)*time.Second)); err != nil {
				return err
			}
		}
		return MarkSessionCompleted(ctx, q, id, at)
	})
	if err != nil {
		t.Fatalf("completing fixture session failed: %v", err)
	}
	return sessionID
}
