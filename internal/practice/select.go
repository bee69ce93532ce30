package practice

import (
	"context"
	"sort"

	"github.com/cmhannon/flashfam/internal/domain"
	"github.com/cmhannon/flashfam/internal/storage"
)

// Selection is the result of planning which cards to show next. It is
// computed without mutating rotation state; Cursor and QueueUsed carry
// the bookkeeping a later completion needs to advance the rotation.
type Selection struct {
	Cards []domain.Card
	Pool  []domain.Card

	// Cursor is the normalized rotation cursor before the walk.
	Cursor int
	// QueueUsed counts circular positions visited during the rotation
	// fill. The cursor advance is position-based: a visited slot counts
	// even when its card was already chosen by an earlier phase.
	QueueUsed int
}

// NextCursor is the cursor value a completed session should store.
func (s *Selection) NextCursor() int {
	if len(s.Pool) == 0 {
		return 0
	}
	return (s.Cursor + s.QueueUsed) % len(s.Pool)
}

// CardIDs returns the ordered ids of the selected cards.
func (s *Selection) CardIDs() []int64 {
	ids := make([]int64, len(s.Cards))
	for i, c := range s.Cards {
		ids[i] = c.ID
	}
	return ids
}

// SelectOptions are the inputs to one selection run.
type SelectOptions struct {
	DeckID      int64
	SessionType domain.SessionType
	Config      domain.KidConfig

	// Excluded removes cards from consideration entirely, e.g. cards
	// reserved by another pending writing sheet or missing audio.
	Excluded map[int64]bool

	// EnforceExactTarget caps the selection at the configured size even
	// if that drops must-include cards; composite sessions use this so
	// sub-decks cannot overrun their share.
	EnforceExactTarget bool
}

// SelectCards computes the ordered card list for the next session of a
// deck. The blend, in priority order: cards missed in the previous
// session of the same type, cards added since that session, a
// configured share of hard cards, then a circular walk from the deck's
// rotation cursor. Deterministic; never mutates the cursor.
func SelectCards(ctx context.Context, db *storage.DB, opts SelectOptions) (*Selection, error) {
	active, err := db.ListActiveCards(ctx, opts.DeckID)
	if err != nil {
		return nil, err
	}

	pool := active
	if len(opts.Excluded) > 0 {
		pool = make([]domain.Card, 0, len(active))
		for _, c := range active {
			if !opts.Excluded[c.ID] {
				pool = append(pool, c)
			}
		}
	}

	cursor, err := storage.EnsureCursor(ctx, db.Conn(), opts.DeckID, len(active))
	if err != nil {
		return nil, err
	}
	if len(pool) > 0 {
		cursor = cursor % len(pool)
	} else {
		cursor = 0
	}

	sel := &Selection{Pool: pool, Cursor: cursor}
	if len(pool) == 0 {
		return sel, nil
	}

	baseTarget := opts.Config.SessionCardCount
	if baseTarget > len(pool) {
		baseTarget = len(pool)
	}
	if baseTarget <= 0 {
		return sel, nil
	}

	byID := make(map[int64]domain.Card, len(pool))
	for _, c := range pool {
		byID[c.ID] = c
	}

	red, fresh, err := redAndNewCards(ctx, db, opts, pool, byID)
	if err != nil {
		return nil, err
	}

	selected := make(map[int64]bool)
	var picked []domain.Card
	appendCard := func(c domain.Card) {
		if !selected[c.ID] {
			selected[c.ID] = true
			picked = append(picked, c)
		}
	}
	for _, c := range red {
		appendCard(c)
	}
	for _, c := range fresh {
		appendCard(c)
	}

	target := baseTarget
	if opts.EnforceExactTarget {
		if len(picked) > target {
			// Red cards sit first in the slice, so a plain cut keeps
			// them at the expense of newer cards.
			picked = picked[:target]
			trimmed := make(map[int64]bool, len(picked))
			for _, c := range picked {
				trimmed[c.ID] = true
			}
			selected = trimmed
		}
	} else {
		if len(picked) > target {
			target = len(picked)
		}
		if target > len(pool) {
			target = len(pool)
		}
	}

	// Hard fill: a configured share of the remaining slots goes to the
	// highest-hardness cards in the deck.
	if remaining := target - len(picked); remaining > 0 && opts.Config.HardCardPercentage > 0 {
		hardTarget := remaining * opts.Config.HardCardPercentage / 100
		if hardTarget > remaining {
			hardTarget = remaining
		}
		ranked := make([]domain.Card, len(pool))
		copy(ranked, pool)
		sort.Slice(ranked, func(i, j int) bool {
			if ranked[i].HardnessScore != ranked[j].HardnessScore {
				return ranked[i].HardnessScore > ranked[j].HardnessScore
			}
			return ranked[i].ID < ranked[j].ID
		})
		added := 0
		for _, c := range ranked {
			if added >= hardTarget {
				break
			}
			if selected[c.ID] {
				continue
			}
			appendCard(c)
			added++
		}
	}

	// Rotation fill: walk the pool circularly from the cursor. The walk
	// offset progresses over already-selected cards too; QueueUsed is
	// the number of positions visited, not the number appended.
	visits := 0
	for i := 0; i < len(pool) && len(picked) < target; i++ {
		visits = i + 1
		c := pool[(cursor+i)%len(pool)]
		appendCard(c)
	}
	sel.QueueUsed = visits

	sel.Cards = picked
	return sel, nil
}

// redAndNewCards finds the priority cards: those answered wrong in the
// most recent completed session of this type, and those created after
// it finished. Without a prior session there is no context and both
// sets are empty.
func redAndNewCards(ctx context.Context, db *storage.DB, opts SelectOptions, pool []domain.Card, byID map[int64]domain.Card) (red, fresh []domain.Card, err error) {
	last, err := storage.LastCompletedSession(ctx, db.Conn(), opts.SessionType)
	if err != nil {
		return nil, nil, err
	}
	if last == nil || last.CompletedAt == nil {
		return nil, nil, nil
	}

	wrongIDs, err := storage.IncorrectCardIDs(ctx, db.Conn(), last.ID)
	if err != nil {
		return nil, nil, err
	}
	inRed := make(map[int64]bool, len(wrongIDs))
	for _, id := range wrongIDs {
		if c, ok := byID[id]; ok {
			red = append(red, c)
			inRed[id] = true
		}
	}

	for _, c := range pool {
		if !inRed[c.ID] && c.CreatedAt.After(*last.CompletedAt) {
			fresh = append(fresh, c)
		}
	}
	return red, fresh, nil
}
