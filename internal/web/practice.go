package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/cmhannon/flashfam/internal/domain"
	"github.com/cmhannon/flashfam/internal/practice"
	"github.com/cmhannon/flashfam/internal/seed"
	"github.com/cmhannon/flashfam/internal/storage"
)

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	kidID, db, err := s.kidDB(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	cfg, err := s.family.ResolveKidConfig(kidID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	typ := domain.SessionType(r.URL.Query().Get("type"))
	if !typ.Valid() {
		s.writeError(w, errInvalid("unknown session type"))
		return
	}

	var cards []domain.Card
	switch typ {
	case domain.SessionMath, domain.SessionLessonReading:
		// Composite previews reuse planning without staging by running
		// the same per-deck selection.
		decks, derr := s.compositeDecks(r, db, typ)
		if derr != nil {
			s.writeError(w, derr)
			return
		}
		cards, err = s.previewComposite(r, db, kidID, cfg, typ, decks)
	default:
		deckID, derr := queryID(r, "deck_id")
		if derr != nil {
			s.writeError(w, derr)
			return
		}
		cards, err = s.practice.PreviewDeck(r.Context(), db, kidID, deckID, cfg, typ)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toCardsJSON(cards))
}

func (s *Server) previewComposite(r *http.Request, db *storage.DB, kidID string, cfg domain.KidConfig, typ domain.SessionType, decks []domain.Deck) ([]domain.Card, error) {
	total := cfg.SessionCardCount
	if len(decks) == 0 {
		return nil, nil
	}
	share := total / len(decks)
	rem := total % len(decks)

	var cards []domain.Card
	for i, deck := range decks {
		want := share
		if i < rem {
			want++
		}
		if want == 0 {
			continue
		}
		subCfg := cfg
		subCfg.SessionCardCount = want
		sel, err := practice.SelectCards(r.Context(), db, practice.SelectOptions{
			DeckID:             deck.ID,
			SessionType:        typ,
			Config:             subCfg,
			EnforceExactTarget: true,
		})
		if err != nil {
			return nil, err
		}
		cards = append(cards, sel.Cards...)
	}
	return cards, nil
}

type planRequest struct {
	Type    string  `json:"type" validate:"required"`
	DeckID  int64   `json:"deck_id"`
	CardIDs []int64 `json:"card_ids"`
}

type planResponse struct {
	Token string     `json:"token"`
	Cards []cardJSON `json:"cards"`
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	kidID, db, err := s.kidDB(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req planRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	typ := domain.SessionType(req.Type)
	if !typ.Valid() {
		s.writeError(w, errInvalid("unknown session type"))
		return
	}
	cfg, err := s.family.ResolveKidConfig(kidID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var token string
	var cards []domain.Card
	switch {
	case typ == domain.SessionWriting && len(req.CardIDs) > 0:
		token, cards, err = s.practice.PlanWritingSheet(r.Context(), db, kidID, req.CardIDs)
	case typ == domain.SessionMath || typ == domain.SessionLessonReading:
		decks, derr := s.compositeDecks(r, db, typ)
		if derr != nil {
			s.writeError(w, derr)
			return
		}
		token, cards, err = s.practice.PlanComposite(r.Context(), db, kidID, cfg, typ, decks)
	default:
		if req.DeckID == 0 {
			s.writeError(w, errInvalid("deck_id is required for this session type"))
			return
		}
		token, cards, err = s.practice.PlanDeck(r.Context(), db, kidID, req.DeckID, cfg, typ)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, planResponse{Token: token, Cards: toCardsJSON(cards)})
}

type completeRequest struct {
	Token   string          `json:"token" validate:"required"`
	Type    string          `json:"type" validate:"required"`
	Answers []domain.Answer `json:"answers" validate:"required,min=1,dive"`
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	kidID, db, err := s.kidDB(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req completeRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	typ := domain.SessionType(req.Type)
	if !typ.Valid() {
		s.writeError(w, errInvalid("unknown session type"))
		return
	}

	summary, err := s.practice.Complete(r.Context(), db, kidID, typ, req.Token, req.Answers)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

// compositeDecks returns the fixed decks a composite session spans.
func (s *Server) compositeDecks(r *http.Request, db *storage.DB, typ domain.SessionType) ([]domain.Deck, error) {
	tag := seed.MathTag
	if typ == domain.SessionLessonReading {
		tag = seed.LessonTag
	}
	return db.ListDecksByTag(r.Context(), tag)
}

type seedMathRequest struct {
	MaxSum     int `json:"max_sum"`
	MaxMinuend int `json:"max_minuend"`
}

func (s *Server) handleSeedMath(w http.ResponseWriter, r *http.Request) {
	_, db, err := s.kidDB(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	cfg := seed.DefaultMathConfig()
	var req seedMathRequest
	// An absent body means "use the defaults"; a body that fails to
	// parse is still a client error.
	switch err := json.NewDecoder(r.Body).Decode(&req); {
	case errors.Is(err, io.EOF):
	case err != nil:
		s.writeError(w, errInvalid("malformed JSON body"))
		return
	default:
		if req.MaxSum > 0 {
			cfg.MaxSum = req.MaxSum
		}
		if req.MaxMinuend > 0 {
			cfg.MaxMinuend = req.MaxMinuend
		}
	}
	inserted, err := seed.Math(r.Context(), db, cfg)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"inserted": inserted})
}

func (s *Server) handleSeedLessons(w http.ResponseWriter, r *http.Request) {
	_, db, err := s.kidDB(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	inserted, removed, err := seed.Lessons(r.Context(), db)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"inserted": inserted, "removed": removed})
}
