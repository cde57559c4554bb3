package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

const (
	documentsFile = "reports.json"
	cardsFile     = "cards.json"
	discardedFile = "discarded_signals.json"
	ledgerFile    = "radar.db"
)

// DB owns the on-disk state: three JSON collections and the SQLite run
// ledger.
type DB struct {
	Documents *Collection[SourceDocument]
	Cards     *Collection[OpportunityCard]
	Discarded *Collection[DiscardedSignal]

	conn *sql.DB
	dir  string
}

// Open creates or opens the repository rooted at dataDir.
func Open(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	conn, err := sql.Open("sqlite", filepath.Join(dataDir, ledgerFile))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return &DB{
		Documents: NewCollection[SourceDocument](filepath.Join(dataDir, documentsFile)),
		Cards:     NewCollection[OpportunityCard](filepath.Join(dataDir, cardsFile)),
		Discarded: NewCollection[DiscardedSignal](filepath.Join(dataDir, discardedFile)),
		conn:      conn,
		dir:       dataDir,
	}, nil
}

// Close closes the ledger connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Dir returns the data directory.
func (db *DB) Dir() string {
	return db.dir
}

// FindAllDocuments returns every stored source document.
func (db *DB) FindAllDocuments() []SourceDocument {
	return db.Documents.FindAll()
}

// FindAllAccepted returns every stored opportunity card.
func (db *DB) FindAllAccepted() []OpportunityCard {
	return db.Cards.FindAll()
}

// FindAllDiscarded returns every stored discarded signal.
func (db *DB) FindAllDiscarded() []DiscardedSignal {
	return db.Discarded.FindAll()
}

// Reset clears all three collections. The run ledger is kept.
func (db *DB) Reset() error {
	if err := db.Documents.SaveAll(nil); err != nil {
		return fmt.Errorf("clearing documents: %w", err)
	}
	if err := db.Cards.SaveAll(nil); err != nil {
		return fmt.Errorf("clearing cards: %w", err)
	}
	if err := db.Discarded.SaveAll(nil); err != nil {
		return fmt.Errorf("clearing discarded signals: %w", err)
	}
	log.Info().Str("dir", db.dir).Msg("repository reset")
	return nil
}

// ClearSignals empties the card and discarded collections, leaving documents.
func (db *DB) ClearSignals() error {
	if err := db.Cards.SaveAll(nil); err != nil {
		return fmt.Errorf("clearing cards: %w", err)
	}
	if err := db.Discarded.SaveAll(nil); err != nil {
		return fmt.Errorf("clearing discarded signals: %w", err)
	}
	return nil
}

// GetStats returns aggregate counts across the collections and ledger.
func (db *DB) GetStats() (*Stats, error) {
	docs := db.Documents.FindAll()
	s := &Stats{
		TotalDocuments: len(docs),
		ByStatus:       CountByStatus(docs),
		Cards:          len(db.Cards.FindAll()),
		Discarded:      len(db.Discarded.FindAll()),
	}
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM runs").Scan(&s.Runs); err != nil {
		return nil, fmt.Errorf("counting runs: %w", err)
	}
	return s, nil
}
