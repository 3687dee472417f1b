/*
Package inventory provides the inventory consistency engine.

PURPOSE:
  Tracks raw materials, finished products assembled from materials through a
  bill of materials (BOM), stock movements, and the audit trail of every
  mutating operation. The engine keeps three things consistent inside a
  single store transaction:
    1. The back-reference set from each material to the products using it
    2. Derived product prices when a material price changes
    3. Stock counts moving between materials and products

KEY CONCEPTS IN THIS FILE (types.go):
  - Material: a raw input with cost/sell price and a stock count
  - Product: an assembly with a BOM, derived prices and a stock count
  - BOM: material id -> required quantity per produced unit
  - ProductSet: the derived used_by cache on a material
  - OperationRecord: append-only audit entry

DESIGN PRINCIPLES:
  1. Precision: all money is decimal.Decimal, never float64
  2. Type Safety: MaterialID and ProductID cannot be mixed up
  3. Non-negativity: stock counts never drop below zero
  4. Derived data: UsedBy and product prices are recomputed, never trusted

USAGE:
  svc := inventory.NewService(store.NewMemory())
  beadID, _ := svc.AddMaterial(ctx, "alice", inventory.NewMaterial{
      Name:    "Bead",
      InPrice: decimal.NewFromInt(1),
  })

SEE ALSO:
  - store.go: persistence interfaces
  - references.go: used_by maintenance
  - pricing.go: price cascade
  - stock.go: stock transaction engine
  - service.go: the operation surface
*/
package inventory

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type MaterialID int64
type ProductID int64
type UserID int64
type RecordID int64

// =============================================================================
// BOM - Bill of materials
// =============================================================================

// BOM maps a material to the quantity consumed per produced unit.
// Quantities are integers >= 1. An empty BOM marks a manual product.
type BOM map[MaterialID]int

// MaterialIDs returns the BOM keys in ascending order.
func (b BOM) MaterialIDs() []MaterialID {
	ids := make([]MaterialID, 0, len(b))
	for id := range b {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (b BOM) IsEmpty() bool { return len(b) == 0 }

func (b BOM) Contains(id MaterialID) bool {
	_, ok := b[id]
	return ok
}

func (b BOM) Clone() BOM {
	out := make(BOM, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Diff returns the materials dropped and gained when moving from b to next.
func (b BOM) Diff(next BOM) (removed, added []MaterialID) {
	for _, id := range b.MaterialIDs() {
		if !next.Contains(id) {
			removed = append(removed, id)
		}
	}
	for _, id := range next.MaterialIDs() {
		if !b.Contains(id) {
			added = append(added, id)
		}
	}
	return removed, added
}

// Requirements returns the total quantity of each material needed for units.
// A total that does not fit in an int yields a *ValidationError.
func (b BOM) Requirements(units int) (map[MaterialID]int, error) {
	req := make(map[MaterialID]int, len(b))
	for _, id := range b.MaterialIDs() {
		perUnit := b[id]
		if units > 0 && perUnit > math.MaxInt/units {
			return nil, invalid("quantity", "requirement for material %d overflows", id)
		}
		req[id] = perUnit * units
	}
	return req, nil
}

// =============================================================================
// PRODUCT SET - Derived used_by cache
// =============================================================================

type ProductSet map[ProductID]struct{}

func NewProductSet(ids ...ProductID) ProductSet {
	s := make(ProductSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Add inserts id and reports whether the set changed.
func (s ProductSet) Add(id ProductID) bool {
	if _, ok := s[id]; ok {
		return false
	}
	s[id] = struct{}{}
	return true
}

// Remove deletes id and reports whether the set changed.
func (s ProductSet) Remove(id ProductID) bool {
	if _, ok := s[id]; !ok {
		return false
	}
	delete(s, id)
	return true
}

func (s ProductSet) Has(id ProductID) bool {
	_, ok := s[id]
	return ok
}

func (s ProductSet) Len() int { return len(s) }

// IDs returns the members in ascending order.
func (s ProductSet) IDs() []ProductID {
	ids := make([]ProductID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s ProductSet) Clone() ProductSet {
	out := make(ProductSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// =============================================================================
// MATERIAL
// =============================================================================

type Material struct {
	ID         MaterialID
	Name       string
	InPrice    decimal.Decimal // cost
	OutPrice   decimal.Decimal // sell
	StockCount int
	ImageRef   string

	// UsedBy is derived from product BOMs. Maintained by ReferenceTracker.
	UsedBy ProductSet

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (m *Material) Clone() *Material {
	c := *m
	c.UsedBy = m.UsedBy.Clone()
	return &c
}

// =============================================================================
// PRODUCT
// =============================================================================

type Product struct {
	ID   ProductID
	Name string
	BOM  BOM

	// InPrice is the BOM cost unless the BOM is empty, in which case it is
	// set manually. OutPrice defaults to InPrice + OtherPrice.
	InPrice    decimal.Decimal
	OutPrice   decimal.Decimal
	OtherPrice decimal.Decimal // manual surcharge

	StockCount int
	ImageRef   string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p *Product) Clone() *Product {
	c := *p
	c.BOM = p.BOM.Clone()
	return &c
}

// IsManual reports whether the product has no BOM.
func (p *Product) IsManual() bool { return p.BOM.IsEmpty() }

// =============================================================================
// OPERATION RECORD - Append-only audit entry
// =============================================================================

type OperationType string

const (
	OpMaterialAdd      OperationType = "material_add"
	OpMaterialUpdate   OperationType = "material_update"
	OpMaterialDelete   OperationType = "material_delete"
	OpMaterialInbound  OperationType = "material_inbound"
	OpMaterialOutbound OperationType = "material_outbound"
	OpMaterialImport   OperationType = "material_import"

	OpProductAdd      OperationType = "product_add"
	OpProductUpdate   OperationType = "product_update"
	OpProductDelete   OperationType = "product_delete"
	OpProductInbound  OperationType = "product_inbound"
	OpProductOutbound OperationType = "product_outbound"
	OpProductRestore  OperationType = "product_restore"

	OpUserAdd    OperationType = "user_add"
	OpUserUpdate OperationType = "user_update"
	OpUserDelete OperationType = "user_delete"

	OpRecordsCleared OperationType = "records_cleared"
	OpRecordsDeleted OperationType = "records_deleted"
)

// SubjectKind says which aggregate an operation touches.
type SubjectKind string

const (
	SubjectMaterial SubjectKind = "material"
	SubjectProduct  SubjectKind = "product"
	SubjectUser     SubjectKind = "user"
	SubjectSystem   SubjectKind = "system"
)

// Subject returns the kind of aggregate the operation applies to.
func (t OperationType) Subject() SubjectKind {
	switch t {
	case OpMaterialAdd, OpMaterialUpdate, OpMaterialDelete,
		OpMaterialInbound, OpMaterialOutbound, OpMaterialImport:
		return SubjectMaterial
	case OpProductAdd, OpProductUpdate, OpProductDelete,
		OpProductInbound, OpProductOutbound, OpProductRestore:
		return SubjectProduct
	case OpUserAdd, OpUserUpdate, OpUserDelete:
		return SubjectUser
	default:
		return SubjectSystem
	}
}

// MovementTypes returns the operation types that change stock for kind.
func MovementTypes(kind SubjectKind) []OperationType {
	switch kind {
	case SubjectMaterial:
		return []OperationType{OpMaterialInbound, OpMaterialOutbound, OpMaterialImport}
	case SubjectProduct:
		return []OperationType{OpProductInbound, OpProductOutbound, OpProductRestore}
	default:
		return nil
	}
}

// OperationRecord is immutable once written, except for administrator
// clear/filtered delete.
type OperationRecord struct {
	ID          RecordID
	Type        OperationType
	SubjectID   int64 // 0 when the operation has no single subject
	SubjectName string
	Quantity    int // positive inbound, negative outbound/restore
	Detail      string
	Actor       string
	CreatedAt   time.Time
}

// =============================================================================
// USER
// =============================================================================

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

func (r Role) Valid() bool { return r == RoleAdmin || r == RoleUser }

type User struct {
	ID           UserID
	Username     string
	PasswordHash string
	Role         Role
	AvatarRef    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// =============================================================================
// PAGING / SORTING
// =============================================================================

// Page selects a window. Limit 0 means no limit.
type Page struct {
	Offset int
	Limit  int
}

type SortOrder string

const (
	SortDesc SortOrder = "desc"
	SortAsc  SortOrder = "asc"
)
