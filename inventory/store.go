/*
store.go - Persistence interfaces for the ledger store

PURPOSE:
  Defines the boundary between the consistency engine and the database.
  The engine never talks to a driver directly: every read goes through a
  Reader and every write goes through a Tx handed out by Store.WithTx.

KEY INTERFACES:
  Reader: Point lookups, batch lookups, paginated listing, record search
  Tx:     Reader plus all writes; lives for one WithTx call
  Store:  Hands out Tx (mutations) and Reader (reporting) scopes

ATOMICITY:
  WithTx commits when fn returns nil and rolls back otherwise. Every entity
  write and the audit insert of one operation share a single Tx, so a failed
  operation leaves nothing behind.

LOCKING:
  Implementations must serialize conflicting WithTx calls so a read of
  stock_count inside a Tx cannot go stale before that Tx commits.
  - store.Memory: one writer mutex held for the whole Tx
  - sqlite.Store: BEGIN IMMEDIATE plus a writer mutex

  View must not block on these locks for longer than a single read, so
  exports and trend queries never hold material/product rows.

IMPLEMENTATIONS:
  - inventory/store/memory.go: In-memory for tests and development
  - store/sqlite/sqlite.go:    SQLite with relational BOM join table

SEE ALSO:
  - service.go: Uses Store for every operation
*/
package inventory

import (
	"context"
	"strings"
	"time"
)

// =============================================================================
// READER - Read-only access
// =============================================================================

type Reader interface {
	// GetMaterial returns *NotFoundError if id is unknown.
	GetMaterial(ctx context.Context, id MaterialID) (*Material, error)

	// GetMaterialByName returns *NotFoundError if name is unknown.
	GetMaterialByName(ctx context.Context, name string) (*Material, error)

	// GetMaterials returns the materials that exist; unknown ids are absent.
	GetMaterials(ctx context.Context, ids []MaterialID) (map[MaterialID]*Material, error)

	// ListMaterials returns materials ordered by id.
	ListMaterials(ctx context.Context, page Page) ([]*Material, error)
	CountMaterials(ctx context.Context) (int, error)

	GetProduct(ctx context.Context, id ProductID) (*Product, error)
	GetProductByName(ctx context.Context, name string) (*Product, error)
	GetProducts(ctx context.Context, ids []ProductID) (map[ProductID]*Product, error)
	ListProducts(ctx context.Context, page Page) ([]*Product, error)
	CountProducts(ctx context.Context) (int, error)

	// ProductsReferencing returns the ids of products whose BOM contains id,
	// read from the BOM relation itself rather than the used_by cache.
	ProductsReferencing(ctx context.Context, id MaterialID) ([]ProductID, error)

	// QueryRecords returns one page of matching records and the total match count.
	QueryRecords(ctx context.Context, filter RecordFilter) ([]OperationRecord, int, error)

	GetUser(ctx context.Context, id UserID) (*User, error)
	GetUserByName(ctx context.Context, username string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
}

// =============================================================================
// TX - Writes within one atomic unit
// =============================================================================

type Tx interface {
	Reader

	// InsertMaterial assigns m.ID. Returns *DuplicateNameError on name collision.
	InsertMaterial(ctx context.Context, m *Material) error
	// UpdateMaterial persists every field, including UsedBy.
	UpdateMaterial(ctx context.Context, m *Material) error
	DeleteMaterial(ctx context.Context, id MaterialID) error

	// InsertProduct assigns p.ID. Returns *DuplicateNameError on name collision.
	InsertProduct(ctx context.Context, p *Product) error
	UpdateProduct(ctx context.Context, p *Product) error
	DeleteProduct(ctx context.Context, id ProductID) error

	// AppendRecord assigns r.ID.
	AppendRecord(ctx context.Context, r *OperationRecord) error
	// DeleteRecords removes every record matching filter (paging ignored).
	DeleteRecords(ctx context.Context, filter RecordFilter) (int, error)

	InsertUser(ctx context.Context, u *User) error
	UpdateUser(ctx context.Context, u *User) error
	DeleteUser(ctx context.Context, id UserID) error
}

// =============================================================================
// STORE
// =============================================================================

type Store interface {
	// WithTx executes fn within a transaction.
	// If fn returns error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(Tx) error) error

	// View executes fn against a read-only scope.
	View(ctx context.Context, fn func(Reader) error) error
}

// =============================================================================
// RECORD FILTER
// =============================================================================

// RecordFilter selects operation records. Zero values match everything.
type RecordFilter struct {
	From      *time.Time // inclusive
	To        *time.Time // inclusive
	Types     []OperationType
	Actors    []string
	Search    string // substring of Detail
	SubjectID int64  // 0 matches any subject
	Order     SortOrder
	Page      Page
}

// Match reports whether r passes every criterion except paging.
func (f RecordFilter) Match(r OperationRecord) bool {
	if f.From != nil && r.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && r.CreatedAt.After(*f.To) {
		return false
	}
	if len(f.Types) > 0 && !containsType(f.Types, r.Type) {
		return false
	}
	if len(f.Actors) > 0 && !containsString(f.Actors, r.Actor) {
		return false
	}
	if f.Search != "" && !strings.Contains(r.Detail, f.Search) {
		return false
	}
	if f.SubjectID != 0 && r.SubjectID != f.SubjectID {
		return false
	}
	return true
}

func containsType(types []OperationType, t OperationType) bool {
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}

func containsString(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}
