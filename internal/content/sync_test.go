package content

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmhannon/flashfam/internal/domain"
	"github.com/cmhannon/flashfam/internal/storage"
)

func newTestSyncer(t *testing.T) (*Syncer, *storage.DB) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewSyncer(t.TempDir(), log), db
}

func TestSyncDeckFromLocalDirectory(t *testing.T) {
	syncer, db := newTestSyncer(t)
	ctx := context.Background()

	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "animals.md"),
		[]byte("F: 猫\nB: cat\n---\nF: 狗\nB: dog\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "notes.txt"),
		[]byte("F: not markdown\nB: ignored\n"), 0o644))

	deckID, err := db.CreateDeck(ctx, domain.Deck{Name: "animals", Source: src})
	require.NoError(t, err)

	res, err := syncer.SyncDeck(ctx, db, deckID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Parsed)
	assert.Equal(t, 2, res.Added)
	assert.Equal(t, 0, res.Orphaned)

	// A second run is a no-op.
	res, err = syncer.SyncDeck(ctx, db, deckID)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Added)
	assert.Equal(t, 0, res.Orphaned)
}

func TestSyncDeckDeletesOrphans(t *testing.T) {
	syncer, db := newTestSyncer(t)
	ctx := context.Background()

	src := t.TempDir()
	path := filepath.Join(src, "deck.md")
	require.NoError(t, os.WriteFile(path,
		[]byte("F: keep\nB: k\n---\nF: drop\nB: d\n"), 0o644))

	deckID, err := db.CreateDeck(ctx, domain.Deck{Name: "deck", Source: src})
	require.NoError(t, err)
	_, err = syncer.SyncDeck(ctx, db, deckID)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("F: keep\nB: k\n"), 0o644))
	res, err := syncer.SyncDeck(ctx, db, deckID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Orphaned)

	cards, err := db.ListCards(ctx, deckID)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "keep", cards[0].Front)
}

func TestSyncDeckMatchingIgnoresCaseAndWhitespace(t *testing.T) {
	syncer, db := newTestSyncer(t)
	ctx := context.Background()

	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "deck.md"),
		[]byte("F: Hello\nB: World\n"), 0o644))

	deckID, err := db.CreateDeck(ctx, domain.Deck{Name: "deck", Source: src})
	require.NoError(t, err)
	_, err = db.InsertCard(ctx, domain.Card{DeckID: deckID, Front: "  hello ", Back: "WORLD"})
	require.NoError(t, err)

	res, err := syncer.SyncDeck(ctx, db, deckID)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Added)
	assert.Equal(t, 0, res.Orphaned)
}

func TestSyncDeckRequiresSource(t *testing.T) {
	syncer, db := newTestSyncer(t)
	ctx := context.Background()

	deckID, err := db.CreateDeck(ctx, domain.Deck{Name: "no-source"})
	require.NoError(t, err)

	_, err = syncer.SyncDeck(ctx, db, deckID)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestGitURLToLocalPath(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"https", "https://github.com/user/decks.git", filepath.Join("base", "github.com", "user", "decks")},
		{"ssh", "git@github.com:user/decks.git", filepath.Join("base", "github.com", "user", "decks")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := gitURLToLocalPath("base", tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
