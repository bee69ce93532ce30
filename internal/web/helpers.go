package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cmhannon/flashfam/internal/cardtext"
	"github.com/cmhannon/flashfam/internal/domain"
	"github.com/cmhannon/flashfam/internal/storage"
)

// decode parses a JSON request body and runs struct validation.
func (s *Server) decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: malformed JSON body", domain.ErrInvalidInput)
	}
	if err := s.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("failed to encode response", "error", err)
	}
}

// writeError maps domain sentinels onto HTTP statuses. Unknown errors
// are logged and reported as a plain 500 without internals.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := "internal server error"
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
		msg = err.Error()
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
		msg = err.Error()
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
		msg = err.Error()
	default:
		s.log.Error("request failed", "error", err)
	}
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func errInvalid(msg string) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidInput, msg)
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalid(name + " must be a positive integer")
	}
	return id, nil
}

func queryID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalid(name + " must be a positive integer")
	}
	return id, nil
}

func isWritingDeck(deck *domain.Deck) bool {
	for _, t := range strings.Split(deck.Tags, ",") {
		if strings.TrimSpace(t) == "writing" {
			return true
		}
	}
	return false
}

// bulkCards turns a bulk request body into cards plus the dedup field
// the store should apply.
func bulkCards(req bulkAddRequest) ([]domain.Card, storage.DedupField, error) {
	if req.Mode == "phrases" {
		phrases := cardtext.SplitPhrases(req.Text)
		cards := make([]domain.Card, len(phrases))
		for i, p := range phrases {
			cards[i] = domain.Card{Front: p, Back: p}
		}
		return cards, storage.DedupByBack, nil
	}

	cards, err := cardtext.Parse(strings.NewReader(req.Text))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return cards, storage.DedupByFront, nil
}

// cardJSON is the wire shape for a card.
type cardJSON struct {
	ID            int64     `json:"id"`
	DeckID        int64     `json:"deck_id"`
	Front         string    `json:"front"`
	Back          string    `json:"back"`
	HardnessScore float64   `json:"hardness_score"`
	SkipPractice  bool      `json:"skip_practice"`
	AudioFile     string    `json:"audio_file,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type cardStatsJSON struct {
	cardJSON
	Attempts int        `json:"attempts"`
	Correct  int        `json:"correct"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
}

func toCardJSON(c domain.Card) cardJSON {
	return cardJSON{
		ID:            c.ID,
		DeckID:        c.DeckID,
		Front:         c.Front,
		Back:          c.Back,
		HardnessScore: c.HardnessScore,
		SkipPractice:  c.SkipPractice,
		AudioFile:     c.AudioFile,
		CreatedAt:     c.CreatedAt,
	}
}

func toCardsJSON(cards []domain.Card) []cardJSON {
	out := make([]cardJSON, len(cards))
	for i, c := range cards {
		out[i] = toCardJSON(c)
	}
	return out
}

func toCardStatsJSON(stats []domain.CardStats) []cardStatsJSON {
	out := make([]cardStatsJSON, len(stats))
	for i, st := range stats {
		out[i] = cardStatsJSON{
			cardJSON: toCardJSON(st.Card),
			Attempts: st.Attempts,
			Correct:  st.Correct,
			LastSeen: st.LastSeen,
		}
	}
	return out
}
