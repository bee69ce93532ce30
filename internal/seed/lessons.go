package seed

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cmhannon/flashfam/internal/domain"
	"github.com/cmhannon/flashfam/internal/storage"
)

// LessonTag marks the decks the lesson-reading planner spans.
const LessonTag = "lessons"

// Passage is one curated reading entry: the card front is the title,
// the back the page number.
type Passage struct {
	Title string
	Page  int
}

// lessonUnits is the curated reading list, one deck per unit. Editing
// this table is the supported way to revise the curriculum; Lessons
// reconciles decks against it on every run.
var lessonUnits = [][]Passage{
	{
		{Title: "The Little Red Hen", Page: 4},
		{Title: "Stone Soup", Page: 9},
		{Title: "The Enormous Turnip", Page: 14},
		{Title: "Town Mouse and Country Mouse", Page: 19},
	},
	{
		{Title: "The Crow and the Pitcher", Page: 3},
		{Title: "The Lion and the Mouse", Page: 8},
		{Title: "The Wind and the Sun", Page: 12},
		{Title: "The Boy Who Cried Wolf", Page: 17},
		{Title: "The Ant and the Grasshopper", Page: 22},
	},
	{
		{Title: "Why the Sea Is Salty", Page: 5},
		{Title: "How the Camel Got His Hump", Page: 11},
		{Title: "The Four Dragons", Page: 18},
	},
}

// retiredTitles are passages dropped from the curriculum; they are
// deleted from lesson decks before missing passages are inserted.
var retiredTitles = []string{
	"The Gingerbread Man",
}

// Lessons seeds the per-unit reading decks: retired passages are
// removed first, then any (front, back) pair not yet present is
// inserted. Idempotent for a given curriculum version.
func Lessons(ctx context.Context, db *storage.DB) (inserted, removed int, err error) {
	retired := make(map[string]bool, len(retiredTitles))
	for _, t := range retiredTitles {
		retired[t] = true
	}

	for i, unit := range lessonUnits {
		name := fmt.Sprintf("lessons-unit-%d", i+1)
		deckID, err := ensureDeck(ctx, db, name, fmt.Sprintf("Reading passages, unit %d", i+1), LessonTag)
		if err != nil {
			return inserted, removed, err
		}

		existing, err := db.ListCards(ctx, deckID)
		if err != nil {
			return inserted, removed, err
		}
		present := make(map[string]bool, len(existing))
		for _, c := range existing {
			if retired[c.Front] {
				if err := db.DeleteCard(ctx, c.ID); err != nil {
					return inserted, removed, err
				}
				removed++
				continue
			}
			present[c.Front+"\x00"+c.Back] = true
		}

		for _, p := range unit {
			back := strconv.Itoa(p.Page)
			if present[p.Title+"\x00"+back] {
				continue
			}
			if _, err := db.InsertCard(ctx, domain.Card{
				DeckID: deckID,
				Front:  p.Title,
				Back:   back,
			}); err != nil {
				return inserted, removed, err
			}
			inserted++
		}
	}
	return inserted, removed, nil
}
