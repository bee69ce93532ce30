package family

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/cmhannon/flashfam/internal/storage"
)

// DBManager caches one open database handle per kid. Each kid's deck
// state lives in its own SQLite file, so requests for different kids
// run in parallel with no shared storage state.
type DBManager struct {
	dataDir string
	log     *slog.Logger

	mu   sync.Mutex
	open map[string]*storage.DB
}

// NewDBManager creates a manager rooted at dataDir; kid databases live
// under dataDir/kids.
func NewDBManager(dataDir string, log *slog.Logger) *DBManager {
	return &DBManager{
		dataDir: dataDir,
		log:     log,
		open:    make(map[string]*storage.DB),
	}
}

// Get returns the kid's database, opening (and migrating) it on first
// access.
func (m *DBManager) Get(kidID string) (*storage.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if db, ok := m.open[kidID]; ok {
		return db, nil
	}

	dir := filepath.Join(m.dataDir, "kids")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create kid database directory: %w", err)
	}

	path := filepath.Join(dir, kidID+".db")
	db, err := storage.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database for kid %q: %w", kidID, err)
	}
	m.log.Info("opened kid database", "kid", kidID, "path", path)
	m.open[kidID] = db
	return db, nil
}

// PurgeIncomplete removes incomplete sessions from every registered
// kid's database. Run once at startup so no half-finished session
// survives a restart.
func (m *DBManager) PurgeIncomplete(ctx context.Context, kidIDs []string) error {
	for _, id := range kidIDs {
		db, err := m.Get(id)
		if err != nil {
			return err
		}
		purged, err := db.PurgeIncompleteSessions(ctx)
		if err != nil {
			return fmt.Errorf("failed to purge incomplete sessions for kid %q: %w", id, err)
		}
		if purged > 0 {
			m.log.Info("purged incomplete sessions", "kid", id, "count", purged)
		}
	}
	return nil
}

// CloseAll closes every open handle. Called on shutdown.
func (m *DBManager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, db := range m.open {
		if err := db.Close(); err != nil {
			m.log.Warn("failed to close kid database", "kid", id, "error", err)
		}
		delete(m.open, id)
	}
}
