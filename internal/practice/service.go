package practice

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/cmhannon/flashfam/internal/domain"
	"github.com/cmhannon/flashfam/internal/storage"
)

// Summary is what a completed session reports back to the caller.
type Summary struct {
	SessionID    int64 `json:"session_id"`
	AnswerCount  int   `json:"answer_count"`
	PlannedCount int   `json:"planned_count"`
}

// Service ties selection, staging and completion together. One
// instance serves all kids; the per-kid database is passed per call so
// requests for different kids never share storage state.
type Service struct {
	staging  *Staging
	validate *validator.Validate
	log      *slog.Logger
	now      func() time.Time
}

// NewService wires a practice service around an injected staging area.
func NewService(staging *Staging, log *slog.Logger) *Service {
	return &Service{
		staging:  staging,
		validate: validator.New(),
		log:      log,
		now:      time.Now,
	}
}

// PreviewDeck computes the next session's card list without staging
// anything. Repeatable and side-effect free.
func (s *Service) PreviewDeck(ctx context.Context, db *storage.DB, kidID string, deckID int64, cfg domain.KidConfig, typ domain.SessionType) ([]domain.Card, error) {
	excluded, err := s.exclusions(ctx, db, kidID, deckID, typ)
	if err != nil {
		return nil, err
	}
	sel, err := SelectCards(ctx, db, SelectOptions{
		DeckID:      deckID,
		SessionType: typ,
		Config:      cfg,
		Excluded:    excluded,
	})
	if err != nil {
		return nil, err
	}
	return sel.Cards, nil
}

// PlanDeck selects cards for a single-deck session and stages the
// result under a fresh token. The rotation cursor is not touched; the
// staged next_cursor is applied only if the session completes.
func (s *Service) PlanDeck(ctx context.Context, db *storage.DB, kidID string, deckID int64, cfg domain.KidConfig, typ domain.SessionType) (string, []domain.Card, error) {
	if !typ.Valid() {
		return "", nil, fmt.Errorf("%w: unknown session type %q", domain.ErrInvalidInput, typ)
	}

	excluded, err := s.exclusions(ctx, db, kidID, deckID, typ)
	if err != nil {
		return "", nil, err
	}
	sel, err := SelectCards(ctx, db, SelectOptions{
		DeckID:      deckID,
		SessionType: typ,
		Config:      cfg,
		Excluded:    excluded,
	})
	if err != nil {
		return "", nil, err
	}
	if len(sel.Cards) == 0 {
		return "", nil, fmt.Errorf("%w: no cards available to practice", domain.ErrNotFound)
	}

	token := s.staging.Put(PendingSession{
		KidID:        kidID,
		SessionType:  typ,
		Kind:         KindDeck,
		DeckID:       deckID,
		PlannedCount: len(sel.Cards),
		CardIDs:      sel.CardIDs(),
		CursorUpdates: []CursorUpdate{
			{DeckID: deckID, NextCursor: sel.NextCursor()},
		},
	})
	s.log.Info("planned deck session",
		"kid", kidID, "type", typ, "deck", deckID,
		"cards", len(sel.Cards), "queue_used", sel.QueueUsed)
	return token, sel.Cards, nil
}

// PlanComposite selects cards across several fixed decks (math fact
// decks, lesson units) and stages one cursor update per contributing
// deck. Each sub-deck runs with an exact target so the parts sum to
// the configured session size; earlier decks absorb the remainder.
func (s *Service) PlanComposite(ctx context.Context, db *storage.DB, kidID string, cfg domain.KidConfig, typ domain.SessionType, decks []domain.Deck) (string, []domain.Card, error) {
	kind := KindMath
	if typ == domain.SessionLessonReading {
		kind = KindLessonReading
	}
	if len(decks) == 0 {
		return "", nil, fmt.Errorf("%w: no decks to draw from", domain.ErrNotFound)
	}

	total := cfg.SessionCardCount
	share := total / len(decks)
	rem := total % len(decks)

	var cards []domain.Card
	var updates []CursorUpdate
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
		sel, err := SelectCards(ctx, db, SelectOptions{
			DeckID:             deck.ID,
			SessionType:        typ,
			Config:             subCfg,
			EnforceExactTarget: true,
		})
		if err != nil {
			return "", nil, err
		}
		if len(sel.Cards) == 0 {
			continue
		}
		cards = append(cards, sel.Cards...)
		updates = append(updates, CursorUpdate{DeckID: deck.ID, NextCursor: sel.NextCursor()})
	}
	if len(cards) == 0 {
		return "", nil, fmt.Errorf("%w: no cards available to practice", domain.ErrNotFound)
	}

	ids := make([]int64, len(cards))
	for i, c := range cards {
		ids[i] = c.ID
	}
	token := s.staging.Put(PendingSession{
		KidID:         kidID,
		SessionType:   typ,
		Kind:          kind,
		PlannedCount:  len(cards),
		CardIDs:       ids,
		CursorUpdates: updates,
	})
	s.log.Info("planned composite session",
		"kid", kidID, "type", typ, "decks", len(updates), "cards", len(cards))
	return token, cards, nil
}

// PlanWritingSheet stages a writing session from explicitly chosen
// cards. Cards already held by another pending sheet are a conflict;
// cards without an audio prompt are rejected outright. The rotation is
// not involved, so no cursor update is staged.
func (s *Service) PlanWritingSheet(ctx context.Context, db *storage.DB, kidID string, cardIDs []int64) (string, []domain.Card, error) {
	if len(cardIDs) == 0 {
		return "", nil, fmt.Errorf("%w: no cards requested", domain.ErrInvalidInput)
	}

	reserved := s.staging.ReservedCards(kidID, domain.SessionWriting)
	cards := make([]domain.Card, 0, len(cardIDs))
	for _, id := range cardIDs {
		if reserved[id] {
			return "", nil, fmt.Errorf("%w: card %d is already on another pending writing sheet", domain.ErrConflict, id)
		}
		card, err := db.GetCard(ctx, id)
		if err != nil {
			return "", nil, err
		}
		if card.AudioFile == "" {
			return "", nil, fmt.Errorf("%w: card %d has no audio prompt", domain.ErrInvalidInput, id)
		}
		if card.SkipPractice {
			return "", nil, fmt.Errorf("%w: card %d is excluded from practice", domain.ErrInvalidInput, id)
		}
		cards = append(cards, *card)
	}

	token := s.staging.Put(PendingSession{
		KidID:        kidID,
		SessionType:  domain.SessionWriting,
		Kind:         KindDeck,
		DeckID:       cards[0].DeckID,
		PlannedCount: len(cards),
		CardIDs:      cardIDs,
	})
	s.log.Info("planned writing sheet", "kid", kidID, "cards", len(cards))
	return token, cards, nil
}

// Complete redeems a pending token and commits the session in one
// transaction: session row, one result per answer, hardness updates,
// staged cursor advances, completion stamp. Any failure rolls back all
// of it; the token stays consumed either way, so the caller must plan
// a fresh session after an error.
func (s *Service) Complete(ctx context.Context, db *storage.DB, kidID string, typ domain.SessionType, token string, answers []domain.Answer) (*Summary, error) {
	if len(answers) == 0 {
		return nil, fmt.Errorf("%w: at least one answer is required", domain.ErrInvalidInput)
	}
	for i, a := range answers {
		if err := s.validate.Struct(a); err != nil {
			return nil, fmt.Errorf("%w: answer %d: %v", domain.ErrInvalidInput, i, err)
		}
	}

	pending, err := s.staging.Pop(token, kidID, typ)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	var sessionID int64
	err = db.WithTx(ctx, func(q storage.Queryer) error {
		var deckID *int64
		if pending.Kind == KindDeck {
			deckID = &pending.DeckID
		}

		id, err := storage.CreateSession(ctx, q, typ, deckID, pending.PlannedCount, now)
		if err != nil {
			return err
		}
		sessionID = id

		for _, a := range answers {
			if err := storage.InsertSessionResult(ctx, q, id, a, now); err != nil {
				return err
			}
		}

		if err := s.updateHardness(ctx, q, typ, answers); err != nil {
			return err
		}

		// Cursor values were captured at plan time; applying them
		// verbatim keeps the advance in step with what the kid saw even
		// if the deck changed in between. EnsureCursor self-heals any
		// resulting out-of-range value on the next read.
		for _, u := range pending.CursorUpdates {
			if err := storage.SetCursor(ctx, q, u.DeckID, u.NextCursor); err != nil {
				return err
			}
		}

		return storage.MarkSessionCompleted(ctx, q, id, now)
	})
	if err != nil {
		s.log.Error("session completion failed", "kid", kidID, "type", typ, "error", err)
		return nil, err
	}

	s.log.Info("session completed",
		"kid", kidID, "type", typ, "session", sessionID, "answers", len(answers))
	return &Summary{
		SessionID:    sessionID,
		AnswerCount:  len(answers),
		PlannedCount: pending.PlannedCount,
	}, nil
}

// updateHardness recomputes the touched cards' hardness scores. Timed
// types store the card's most recent response time, last write wins.
// Writing stores 100 minus the lifetime percent correct across all
// writing sessions, including the one being committed.
func (s *Service) updateHardness(ctx context.Context, q storage.Queryer, typ domain.SessionType, answers []domain.Answer) error {
	if typ == domain.SessionWriting {
		seen := make(map[int64]bool, len(answers))
		for _, a := range answers {
			if seen[a.CardID] {
				continue
			}
			seen[a.CardID] = true
			attempts, correct, err := storage.WritingAccuracy(ctx, q, a.CardID)
			if err != nil {
				return err
			}
			score := 0.0
			if attempts > 0 {
				score = 100 - 100*float64(correct)/float64(attempts)
			}
			if err := storage.SetHardness(ctx, q, a.CardID, score); err != nil {
				return err
			}
		}
		return nil
	}

	latest := make(map[int64]int, len(answers))
	order := make([]int64, 0, len(answers))
	for _, a := range answers {
		if _, ok := latest[a.CardID]; !ok {
			order = append(order, a.CardID)
		}
		latest[a.CardID] = a.ResponseTimeMs
	}
	for _, id := range order {
		if err := storage.SetHardness(ctx, q, id, float64(latest[id])); err != nil {
			return err
		}
	}
	return nil
}

// exclusions builds the excluded-card set for planning. Writing
// sessions keep out cards reserved by other pending sheets and cards
// with no audio prompt; other types have no exclusions. A failure to
// load the deck is a failure to plan: selecting without the audio
// exclusion would put unpronounceable cards on a sheet.
func (s *Service) exclusions(ctx context.Context, db *storage.DB, kidID string, deckID int64, typ domain.SessionType) (map[int64]bool, error) {
	if typ != domain.SessionWriting {
		return nil, nil
	}
	excluded := s.staging.ReservedCards(kidID, typ)
	cards, err := db.ListActiveCards(ctx, deckID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cards for audio exclusion: %w", err)
	}
	for _, c := range cards {
		if c.AudioFile == "" {
			excluded[c.ID] = true
		}
	}
	return excluded, nil
}
