package practice

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cmhannon/flashfam/internal/domain"
	"github.com/cmhannon/flashfam/internal/storage"
)

func openTestDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// seedDeck creates a deck with n cards and returns the deck id plus the
// card ids in insertion order. Cards are backdated so they never count
// as new relative to fixture sessions.
func seedDeck(t *testing.T, db *storage.DB, name string, n int) (int64, []int64) {
	t.Helper()
	ctx := context.Background()
	deckID, err := db.CreateDeck(ctx, domain.Deck{Name: name})
	require.NoError(t, err)

	created := time.Now().UTC().Add(-30 * 24 * time.Hour)
	ids := make([]int64, n)
	for i := 0; i < n; i++ {
		id, err := db.InsertCard(ctx, domain.Card{
			DeckID:    deckID,
			Front:     string(rune('a' + i)),
			CreatedAt: created,
		})
		require.NoError(t, err)
		ids[i] = id
	}
	return deckID, ids
}

func setCursor(t *testing.T, db *storage.DB, deckID int64, cursor, activeCount int) {
	t.Helper()
	ctx := context.Background()
	_, err := storage.EnsureCursor(ctx, db.Conn(), deckID, activeCount)
	require.NoError(t, err)
	require.NoError(t, storage.SetCursor(ctx, db.Conn(), deckID, cursor))
}

func cursorOf(t *testing.T, db *storage.DB, deckID int64, activeCount int) int {
	t.Helper()
	cursor, err := storage.EnsureCursor(context.Background(), db.Conn(), deckID, activeCount)
	require.NoError(t, err)
	return cursor
}

// recordSession writes a completed session directly, bypassing staging.
func recordSession(t *testing.T, db *storage.DB, typ domain.SessionType, answers []domain.Answer, at time.Time) int64 {
	t.Helper()
	ctx := context.Background()
	var sessionID int64
	err := db.WithTx(ctx, func(q storage.Queryer) error {
		id, err := storage.CreateSession(ctx, q, typ, nil, len(answers), at)
		if err != nil {
			return err
		}
		sessionID = id
		for i, ans := range answers {
			if err := storage.InsertSessionResult(ctx, q, id, ans, at.Add(time.Duration(i)*time.Second)); err != nil {
				return err
			}
		}
		return storage.MarkSessionCompleted(ctx, q, id, at)
	})
	require.NoError(t, err)
	return sessionID
}
