package family

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/cmhannon/flashfam/internal/domain"
)

// Settings are the family-level practice defaults.
type Settings struct {
	Name               string `json:"name"`
	HardCardPercentage int    `json:"hard_card_percentage"`
	SessionCardCount   int    `json:"session_card_count"`
}

type metadata struct {
	Family Settings     `json:"family"`
	Kids   []domain.Kid `json:"kids"`
}

// Store holds the family metadata JSON file. Reads and writes are
// serialized in-process; writes go to a temp file and rename into
// place so a crash never leaves a half-written file.
type Store struct {
	path string

	mu   sync.RWMutex
	data metadata
}

// Load reads the metadata file. A missing file yields an empty store
// carrying the given defaults (resolved from the application config);
// a file that omits the session card count falls back to the default
// too, so configured values always reach planning unless the family
// explicitly overrides them.
func Load(path string, defaults Settings) (*Store, error) {
	s := &Store{path: path}

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		s.data = metadata{Family: defaults}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read family metadata: %w", err)
	}

	if err := json.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("failed to parse family metadata %s: %w", path, err)
	}
	if s.data.Family.HardCardPercentage < 0 || s.data.Family.HardCardPercentage > 100 {
		return nil, fmt.Errorf("%w: hard_card_percentage must be 0-100", domain.ErrInvalidInput)
	}
	if s.data.Family.SessionCardCount <= 0 {
		s.data.Family.SessionCardCount = defaults.SessionCardCount
	}
	return s, nil
}

// Kids returns a copy of the kid list.
func (s *Store) Kids() []domain.Kid {
	s.mu.RLock()
	defer s.mu.RUnlock()
	kids := make([]domain.Kid, len(s.data.Kids))
	copy(kids, s.data.Kids)
	return kids
}

// Kid looks up one kid by id.
func (s *Store) Kid(id string) (domain.Kid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range s.data.Kids {
		if k.ID == id {
			return k, nil
		}
	}
	return domain.Kid{}, fmt.Errorf("%w: kid %q", domain.ErrNotFound, id)
}

// AddKid registers a kid and persists the file.
func (s *Store) AddKid(k domain.Kid) error {
	if k.ID == "" || k.Name == "" {
		return fmt.Errorf("%w: kid id and name are required", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.data.Kids {
		if existing.ID == k.ID {
			return fmt.Errorf("%w: kid %q already exists", domain.ErrConflict, k.ID)
		}
	}
	s.data.Kids = append(s.data.Kids, k)
	return s.saveLocked()
}

// HardCardPercentage returns the family-wide hard-card share.
func (s *Store) HardCardPercentage() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Family.HardCardPercentage
}

// ResolveKidConfig builds the effective practice configuration for a
// kid: the family session size unless the kid overrides it, plus the
// family-level hard-card percentage.
func (s *Store) ResolveKidConfig(kidID string) (domain.KidConfig, error) {
	kid, err := s.Kid(kidID)
	if err != nil {
		return domain.KidConfig{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg := domain.KidConfig{
		SessionCardCount:   s.data.Family.SessionCardCount,
		HardCardPercentage: s.data.Family.HardCardPercentage,
	}
	if kid.SessionCardCount > 0 {
		cfg.SessionCardCount = kid.SessionCardCount
	}
	return cfg, nil
}

func (s *Store) saveLocked() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode family metadata: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create metadata directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".family-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp metadata file: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp metadata file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace metadata file: %w", err)
	}
	return nil
}
