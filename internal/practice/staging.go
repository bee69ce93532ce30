package practice

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cmhannon/flashfam/internal/domain"
)

// PendingKind distinguishes single-deck plans from composite ones.
type PendingKind string

const (
	KindDeck          PendingKind = "deck"
	KindMath          PendingKind = "math"
	KindLessonReading PendingKind = "lesson_reading"
)

// CursorUpdate is the rotation advance one contributing deck owes if
// the planned session completes.
type CursorUpdate struct {
	DeckID     int64
	NextCursor int
}

// PendingSession reserves a planned card list under a single-use token
// until the kid either answers or the TTL runs out. Nothing here is
// durable; a process restart drops all pending sessions, which is
// consistent with sessions leaving no trace until completion.
type PendingSession struct {
	Token         string
	KidID         string
	SessionType   domain.SessionType
	Kind          PendingKind
	DeckID        int64
	PlannedCount  int
	CardIDs       []int64
	CursorUpdates []CursorUpdate
	CreatedAt     time.Time
}

// Staging is the process-wide holding area for pending sessions. One
// instance is constructed at startup and injected wherever planning or
// completion happens; all access is serialized by its mutex. Expired
// entries are swept lazily on every access, no background timer.
type Staging struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]*PendingSession
}

// DefaultTTL bounds how long a planned session stays redeemable.
const DefaultTTL = 6 * time.Hour

// NewStaging creates an empty staging area. A non-positive ttl falls
// back to DefaultTTL.
func NewStaging(ttl time.Duration) *Staging {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Staging{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]*PendingSession),
	}
}

// Put stores a pending session under a fresh token and returns it.
func (s *Staging) Put(p PendingSession) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()

	p.Token = uuid.NewString()
	p.CreatedAt = s.now()
	s.entries[p.Token] = &p
	return p.Token
}

// Pop atomically removes and returns the pending session for token,
// but only if it has not expired and matches both kid and session
// type. A second Pop with the same token always fails. The error never
// reveals whether the token existed or merely expired.
func (s *Staging) Pop(token, kidID string, typ domain.SessionType) (*PendingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()

	p, ok := s.entries[token]
	if !ok || p.KidID != kidID || p.SessionType != typ {
		return nil, fmt.Errorf("%w: pending session not found or expired", domain.ErrNotFound)
	}
	delete(s.entries, token)
	return p, nil
}

// ReservedCards returns the ids of cards held by any live pending
// session of the given kid and type. Writing planning uses this to
// keep one card out of two sheets at once.
func (s *Staging) ReservedCards(kidID string, typ domain.SessionType) map[int64]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()

	reserved := make(map[int64]bool)
	for _, p := range s.entries {
		if p.KidID != kidID || p.SessionType != typ {
			continue
		}
		for _, id := range p.CardIDs {
			reserved[id] = true
		}
	}
	return reserved
}

// Len reports the number of live entries after a sweep.
func (s *Staging) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	return len(s.entries)
}

func (s *Staging) sweepLocked() {
	cutoff := s.now().Add(-s.ttl)
	for token, p := range s.entries {
		if p.CreatedAt.Before(cutoff) {
			delete(s.entries, token)
		}
	}
}
