package domain

import "time"

// SessionType identifies which kind of practice a session belongs to.
// The hardness semantics of a card depend on it: timed types store the
// most recent response time, writing stores a historical error rate.
type SessionType string

const (
	SessionFlashcard     SessionType = "flashcard"
	SessionMath          SessionType = "math"
	SessionWriting       SessionType = "writing"
	SessionLessonReading SessionType = "lesson_reading"
)

// Valid reports whether t is one of the known session types.
func (t SessionType) Valid() bool {
	switch t {
	case SessionFlashcard, SessionMath, SessionWriting, SessionLessonReading:
		return true
	}
	return false
}

// Card is a single practice item inside a deck.
type Card struct {
	ID            int64
	DeckID        int64
	Front         string
	Back          string
	HardnessScore float64
	SkipPractice  bool
	AudioFile     string
	CreatedAt     time.Time
}

// CardStats extends a card with lifetime practice statistics.
type CardStats struct {
	Card
	Attempts int
	Correct  int
	LastSeen *time.Time
}

// Deck is a named collection of cards sharing one rotation cursor.
type Deck struct {
	ID          int64
	Name        string
	Description string
	Tags        string
	Source      string
}

// Session is the durable record of a completed practice run. It is
// created at completion time; an abandoned practice leaves no session.
type Session struct {
	ID           int64
	Type         SessionType
	DeckID       *int64
	PlannedCount int
	StartedAt    time.Time
	CompletedAt  *time.Time
}

// SessionResult is one answered card within a session. Append-only.
type SessionResult struct {
	ID             int64
	SessionID      int64
	CardID         int64
	Correct        bool
	ResponseTimeMs int
	Timestamp      time.Time
}

// Answer is a single submitted result, validated before the completion
// transaction touches the database.
type Answer struct {
	CardID         int64 `json:"card_id" validate:"required,gt=0"`
	Correct        bool  `json:"correct"`
	ResponseTimeMs int   `json:"response_time_ms" validate:"gte=0"`
}

// KidConfig is the resolved per-kid practice configuration. It is built
// once from family defaults plus kid overrides and never mutated by the
// selection engine.
type KidConfig struct {
	SessionCardCount   int
	HardCardPercentage int
}

// Kid identifies one child in the family metadata store.
type Kid struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	SessionCardCount int    `json:"session_card_count,omitempty"`
}
