package practice

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmhannon/flashfam/internal/domain"
)

func TestStagingPutPop(t *testing.T) {
	s := NewStaging(time.Hour)

	token := s.Put(PendingSession{
		KidID:       "mia",
		SessionType: domain.SessionFlashcard,
		Kind:        KindDeck,
		DeckID:      7,
		CardIDs:     []int64{1, 2, 3},
	})
	require.NotEmpty(t, token)
	assert.Equal(t, 1, s.Len())

	p, err := s.Pop(token, "mia", domain.SessionFlashcard)
	require.NoError(t, err)
	assert.Equal(t, token, p.Token)
	assert.Equal(t, int64(7), p.DeckID)
	assert.Equal(t, []int64{1, 2, 3}, p.CardIDs)
	assert.Equal(t, 0, s.Len())
}

func TestStagingPopIsSingleUse(t *testing.T) {
	s := NewStaging(time.Hour)
	token := s.Put(PendingSession{KidID: "mia", SessionType: domain.SessionFlashcard})

	_, err := s.Pop(token, "mia", domain.SessionFlashcard)
	require.NoError(t, err)

	_, err = s.Pop(token, "mia", domain.SessionFlashcard)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStagingPopRequiresMatchingKidAndType(t *testing.T) {
	s := NewStaging(time.Hour)
	token := s.Put(PendingSession{KidID: "mia", SessionType: domain.SessionFlashcard})

	_, err := s.Pop(token, "leo", domain.SessionFlashcard)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.Pop(token, "mia", domain.SessionMath)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// The right kid and type can still redeem after failed attempts.
	_, err = s.Pop(token, "mia", domain.SessionFlashcard)
	assert.NoError(t, err)
}

func TestStagingExpiry(t *testing.T) {
	s := NewStaging(time.Hour)
	current := time.Now()
	s.now = func() time.Time { return current }

	token := s.Put(PendingSession{KidID: "mia", SessionType: domain.SessionFlashcard})

	current = current.Add(59 * time.Minute)
	assert.Equal(t, 1, s.Len())

	current = current.Add(2 * time.Minute)
	_, err := s.Pop(token, "mia", domain.SessionFlashcard)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 0, s.Len())
}

func TestStagingReservedCards(t *testing.T) {
	s := NewStaging(time.Hour)
	s.Put(PendingSession{KidID: "mia", SessionType: domain.SessionWriting, CardIDs: []int64{1, 2}})
	s.Put(PendingSession{KidID: "mia", SessionType: domain.SessionFlashcard, CardIDs: []int64{3}})
	s.Put(PendingSession{KidID: "leo", SessionType: domain.SessionWriting, CardIDs: []int64{4}})

	reserved := s.ReservedCards("mia", domain.SessionWriting)
	assert.Equal(t, map[int64]bool{1: true, 2: true}, reserved)
}

func TestStagingZeroTTLFallsBackToDefault(t *testing.T) {
	s := NewStaging(0)
	assert.Equal(t, DefaultTTL, s.ttl)
}
