// Package content reconciles decks against external markdown sources:
// a local directory or a git repository of card files. Cards found in
// the source but not in the deck are inserted; deck cards no longer in
// the source are deleted (with rotation cursor repair).
package content

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/cmhannon/flashfam/internal/cardtext"
	"github.com/cmhannon/flashfam/internal/domain"
	"github.com/cmhannon/flashfam/internal/gitsource"
	"github.com/cmhannon/flashfam/internal/storage"
)

// Syncer pulls deck content sources and reconciles their cards.
type Syncer struct {
	reposDir string
	log      *slog.Logger
}

// NewSyncer creates a syncer that checks out git sources under
// reposDir.
func NewSyncer(reposDir string, log *slog.Logger) *Syncer {
	return &Syncer{reposDir: reposDir, log: log}
}

// Result summarizes one reconciliation run.
type Result struct {
	Parsed   int `json:"parsed"`
	Added    int `json:"added"`
	Orphaned int `json:"orphaned"`
}

// SyncDeck refreshes one deck from its configured source.
func (s *Syncer) SyncDeck(ctx context.Context, db *storage.DB, deckID int64) (*Result, error) {
	deck, err := db.GetDeck(ctx, deckID)
	if err != nil {
		return nil, err
	}
	if deck.Source == "" {
		return nil, fmt.Errorf("%w: deck %q has no content source", domain.ErrInvalidInput, deck.Name)
	}

	root := deck.Source
	if isGitSource(deck.Source) {
		local, err := gitURLToLocalPath(s.reposDir, deck.Source)
		if err != nil {
			return nil, err
		}
		if err := gitsource.Sync(ctx, deck.Source, local); err != nil {
			return nil, err
		}
		root = local
	}

	parsed, err := parseTree(root)
	if err != nil {
		return nil, err
	}

	existing, err := db.ListCards(ctx, deck.ID)
	if err != nil {
		return nil, err
	}
	present := make(map[string]bool, len(existing))
	for _, c := range existing {
		present[cardtext.Hash(c.Front, c.Back)] = true
	}

	res := &Result{Parsed: len(parsed)}
	inSource := make(map[string]bool, len(parsed))
	for _, c := range parsed {
		hash := cardtext.Hash(c.Front, c.Back)
		if inSource[hash] {
			continue
		}
		inSource[hash] = true
		if present[hash] {
			continue
		}
		c.DeckID = deck.ID
		if _, err := db.InsertCard(ctx, c); err != nil {
			return nil, err
		}
		res.Added++
	}

	for _, c := range existing {
		if !inSource[cardtext.Hash(c.Front, c.Back)] {
			if err := db.DeleteCard(ctx, c.ID); err != nil {
				return nil, err
			}
			res.Orphaned++
		}
	}

	s.log.Info("deck reconciled",
		"deck", deck.Name, "parsed", res.Parsed,
		"added", res.Added, "orphaned_deleted", res.Orphaned)
	return res, nil
}

func parseTree(root string) ([]domain.Card, error) {
	var cards []domain.Card
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}
		fileCards, err := cardtext.ParseFile(path)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
		cards = append(cards, fileCards...)
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: source path %s", domain.ErrNotFound, root)
		}
		return nil, err
	}
	return cards, nil
}

func isGitSource(source string) bool {
	return strings.HasSuffix(source, ".git") ||
		strings.HasPrefix(source, "git@") ||
		strings.HasPrefix(source, "https://") ||
		strings.HasPrefix(source, "http://")
}

func gitURLToLocalPath(baseDir, repoURL string) (string, error) {
	parsedURL, err := url.Parse(repoURL)
	if err != nil || (parsedURL.Scheme != "https" && parsedURL.Scheme != "http") {
		if strings.Contains(repoURL, "@") {
			parts := strings.Split(repoURL, ":")
			if len(parts) == 2 {
				hostAndUser := strings.Split(parts[0], "@")
				if len(hostAndUser) == 2 {
					host := hostAndUser[1]
					repoPath := strings.TrimSuffix(parts[1], ".git")
					return filepath.Join(baseDir, host, repoPath), nil
				}
			}
		}
		return "", fmt.Errorf("could not parse git URL: %s", repoURL)
	}

	sanitizedPath := strings.TrimSuffix(parsedURL.Path, ".git")
	return filepath.Join(baseDir, parsedURL.Host, sanitizedPath), nil
}
