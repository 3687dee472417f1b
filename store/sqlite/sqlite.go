/*
Package sqlite provides a SQLite-backed implementation of inventory.Store.

PURPOSE:
  The production Ledger Store. Materials, products, the BOM relation, the
  used_by cache, the audit log and user accounts live in one database so a
  single SQL transaction covers every write of an operation.

KEY TABLES:
  materials:         Raw inputs, decimal prices stored as TEXT
  products:          Assemblies, decimal prices stored as TEXT
  product_bom:       (product_id, material_id, quantity) join table
  material_usage:    Cached reverse edge, rewritten by UpdateMaterial
  operation_records: Append-only audit log
  users:             Accounts with bcrypt hashes

INDEXES:
  - idx_product_bom_material: ProductsReferencing (cascade hot path)
  - idx_records_created_at:   Date range filters and ordering
  - idx_records_type_subject: Trend and top-mover queries

CONCURRENCY:
  Write transactions start with BEGIN IMMEDIATE (_txlock=immediate), so the
  database write lock is taken before the first stock read and held through
  commit. A writer mutex additionally serializes WithTx inside the process.
  View runs statements directly on the pool: in WAL mode readers never
  wait for the writer and never hold row locks.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/inventory.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := inventory.NewService(store)

MIGRATION:
  Versioned goose migrations are embedded and applied on New().

SEE ALSO:
  - inventory/store.go: Interface definitions
  - inventory/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/warp/inventory-engine/inventory"
)

//go:embed migrations/*.sql
var migrations embed.FS

// timeLayout sorts lexicographically in UTC.
const timeLayout = "2006-01-02T15:04:05.000000Z"

var (
	_ inventory.Store = (*Store)(nil)
	_ inventory.Tx    = (*queries)(nil)
)

// Store implements inventory.Store using SQLite.
type Store struct {
	db *sqlx.DB
	mu sync.Mutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sqlx.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// One connection keeps the shared-cache database alive and avoids
		// table-level lock errors between pooled connections.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func dsn(dbPath string) string {
	const opts = "_foreign_keys=on&_txlock=immediate&_busy_timeout=5000"
	if dbPath == ":memory:" {
		return "file:" + uuid.NewString() + "?mode=memory&cache=shared&" + opts
	}
	return "file:" + dbPath + "?_journal_mode=WAL&" + opts
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.Up(s.db.DB, "migrations")
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// =============================================================================
// TRANSACTIONAL STORE (inventory.Store interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(inventory.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&queries{q: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// View runs fn without a transaction; each read is its own snapshot.
func (s *Store) View(ctx context.Context, fn func(inventory.Reader) error) error {
	return fn(readOnly{&queries{q: s.db}})
}

type readOnly struct {
	inventory.Reader
}

// queries runs every statement against either the pool or an open tx.
type queries struct {
	q sqlx.ExtContext
}

// =============================================================================
// HELPERS
// =============================================================================

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime reads a stored timestamp. Malformed values are an error rather
// than the zero time so corrupted rows never pass as year-one entries.
func parseTime(column, s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: invalid timestamp %q: %w", column, s, err)
	}
	return t, nil
}

// parseStamps reads the created_at and updated_at pair most rows carry.
func parseStamps(created, updated string) (time.Time, time.Time, error) {
	c, err := parseTime("created_at", created)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	u, err := parseTime("updated_at", updated)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return c, u, nil
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}

// limitOffset renders paging; limit 0 means no limit.
func limitOffset(p inventory.Page) (int, int) {
	limit := p.Limit
	if limit <= 0 {
		limit = -1
	}
	offset := p.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
