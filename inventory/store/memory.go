// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/inventory-engine/inventory"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

var (
	_ inventory.Store = (*Memory)(nil)
	_ inventory.Tx    = (*state)(nil)
)

// Memory is a transactional in-memory inventory.Store. Writers hold the
// mutex for the whole transaction; a failed transaction restores a snapshot.
type Memory struct {
	mu sync.RWMutex
	st *state
}

func NewMemory() *Memory {
	return &Memory{st: newState()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(ctx context.Context, fn func(inventory.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()
	if err := fn(m.st); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

func (m *Memory) View(ctx context.Context, fn func(inventory.Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(readOnly{m.st})
}

// readOnly hides the write methods of state from View callers.
type readOnly struct {
	inventory.Reader
}

// =============================================================================
// STATE
// =============================================================================

type state struct {
	materials map[inventory.MaterialID]*inventory.Material
	products  map[inventory.ProductID]*inventory.Product
	users     map[inventory.UserID]*inventory.User
	records   []inventory.OperationRecord // ascending id == ascending time

	nextMaterial inventory.MaterialID
	nextProduct  inventory.ProductID
	nextUser     inventory.UserID
	nextRecord   inventory.RecordID
}

func newState() *state {
	return &state{
		materials: make(map[inventory.MaterialID]*inventory.Material),
		products:  make(map[inventory.ProductID]*inventory.Product),
		users:     make(map[inventory.UserID]*inventory.User),
	}
}

func (s *state) clone() *state {
	c := *s
	c.materials = make(map[inventory.MaterialID]*inventory.Material, len(s.materials))
	for id, m := range s.materials {
		c.materials[id] = m.Clone()
	}
	c.products = make(map[inventory.ProductID]*inventory.Product, len(s.products))
	for id, p := range s.products {
		c.products[id] = p.Clone()
	}
	c.users = make(map[inventory.UserID]*inventory.User, len(s.users))
	for id, u := range s.users {
		cu := *u
		c.users[id] = &cu
	}
	c.records = append([]inventory.OperationRecord(nil), s.records...)
	return &c
}

// =============================================================================
// MATERIALS
// =============================================================================

func (s *state) GetMaterial(_ context.Context, id inventory.MaterialID) (*inventory.Material, error) {
	m, ok := s.materials[id]
	if !ok {
		return nil, &inventory.NotFoundError{Kind: inventory.SubjectMaterial, ID: int64(id)}
	}
	return m.Clone(), nil
}

func (s *state) GetMaterialByName(_ context.Context, name string) (*inventory.Material, error) {
	for _, m := range s.materials {
		if m.Name == name {
			return m.Clone(), nil
		}
	}
	return nil, &inventory.NotFoundError{Kind: inventory.SubjectMaterial, Name: name}
}

func (s *state) GetMaterials(_ context.Context, ids []inventory.MaterialID) (map[inventory.MaterialID]*inventory.Material, error) {
	out := make(map[inventory.MaterialID]*inventory.Material, len(ids))
	for _, id := range ids {
		if m, ok := s.materials[id]; ok {
			out[id] = m.Clone()
		}
	}
	return out, nil
}

func (s *state) ListMaterials(_ context.Context, page inventory.Page) ([]*inventory.Material, error) {
	ids := make([]inventory.MaterialID, 0, len(s.materials))
	for id := range s.materials {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	lo, hi := window(len(ids), page)
	out := make([]*inventory.Material, 0, hi-lo)
	for _, id := range ids[lo:hi] {
		out = append(out, s.materials[id].Clone())
	}
	return out, nil
}

func (s *state) CountMaterials(context.Context) (int, error) { return len(s.materials), nil }

func (s *state) InsertMaterial(_ context.Context, m *inventory.Material) error {
	if s.materialNameTaken(m.Name, 0) {
		return &inventory.DuplicateNameError{Kind: inventory.SubjectMaterial, Name: m.Name}
	}
	s.nextMaterial++
	m.ID = s.nextMaterial
	s.materials[m.ID] = m.Clone()
	return nil
}

func (s *state) UpdateMaterial(_ context.Context, m *inventory.Material) error {
	if _, ok := s.materials[m.ID]; !ok {
		return &inventory.NotFoundError{Kind: inventory.SubjectMaterial, ID: int64(m.ID)}
	}
	if s.materialNameTaken(m.Name, m.ID) {
		return &inventory.DuplicateNameError{Kind: inventory.SubjectMaterial, Name: m.Name}
	}
	s.materials[m.ID] = m.Clone()
	return nil
}

func (s *state) DeleteMaterial(_ context.Context, id inventory.MaterialID) error {
	if _, ok := s.materials[id]; !ok {
		return &inventory.NotFoundError{Kind: inventory.SubjectMaterial, ID: int64(id)}
	}
	delete(s.materials, id)
	return nil
}

func (s *state) materialNameTaken(name string, self inventory.MaterialID) bool {
	for id, m := range s.materials {
		if id != self && m.Name == name {
			return true
		}
	}
	return false
}

// =============================================================================
// PRODUCTS
// =============================================================================

func (s *state) GetProduct(_ context.Context, id inventory.ProductID) (*inventory.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, &inventory.NotFoundError{Kind: inventory.SubjectProduct, ID: int64(id)}
	}
	return p.Clone(), nil
}

func (s *state) GetProductByName(_ context.Context, name string) (*inventory.Product, error) {
	for _, p := range s.products {
		if p.Name == name {
			return p.Clone(), nil
		}
	}
	return nil, &inventory.NotFoundError{Kind: inventory.SubjectProduct, Name: name}
}

func (s *state) GetProducts(_ context.Context, ids []inventory.ProductID) (map[inventory.ProductID]*inventory.Product, error) {
	out := make(map[inventory.ProductID]*inventory.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out[id] = p.Clone()
		}
	}
	return out, nil
}

func (s *state) ListProducts(_ context.Context, page inventory.Page) ([]*inventory.Product, error) {
	ids := make([]inventory.ProductID, 0, len(s.products))
	for id := range s.products {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	lo, hi := window(len(ids), page)
	out := make([]*inventory.Product, 0, hi-lo)
	for _, id := range ids[lo:hi] {
		out = append(out, s.products[id].Clone())
	}
	return out, nil
}

func (s *state) CountProducts(context.Context) (int, error) { return len(s.products), nil }

func (s *state) ProductsReferencing(_ context.Context, id inventory.MaterialID) ([]inventory.ProductID, error) {
	var out []inventory.ProductID
	for pid, p := range s.products {
		if p.BOM.Contains(id) {
			out = append(out, pid)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *state) InsertProduct(_ context.Context, p *inventory.Product) error {
	if s.productNameTaken(p.Name, 0) {
		return &inventory.DuplicateNameError{Kind: inventory.SubjectProduct, Name: p.Name}
	}
	s.nextProduct++
	p.ID = s.nextProduct
	s.products[p.ID] = p.Clone()
	return nil
}

func (s *state) UpdateProduct(_ context.Context, p *inventory.Product) error {
	if _, ok := s.products[p.ID]; !ok {
		return &inventory.NotFoundError{Kind: inventory.SubjectProduct, ID: int64(p.ID)}
	}
	if s.productNameTaken(p.Name, p.ID) {
		return &inventory.DuplicateNameError{Kind: inventory.SubjectProduct, Name: p.Name}
	}
	s.products[p.ID] = p.Clone()
	return nil
}

func (s *state) DeleteProduct(_ context.Context, id inventory.ProductID) error {
	if _, ok := s.products[id]; !ok {
		return &inventory.NotFoundError{Kind: inventory.SubjectProduct, ID: int64(id)}
	}
	delete(s.products, id)
	return nil
}

func (s *state) productNameTaken(name string, self inventory.ProductID) bool {
	for id, p := range s.products {
		if id != self && p.Name == name {
			return true
		}
	}
	return false
}

// =============================================================================
// RECORDS
// =============================================================================

func (s *state) QueryRecords(_ context.Context, f inventory.RecordFilter) ([]inventory.OperationRecord, int, error) {
	var matched []inventory.OperationRecord
	for _, r := range s.records {
		if f.Match(r) {
			matched = append(matched, r)
		}
	}
	if f.Order != inventory.SortAsc {
		for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
			matched[i], matched[j] = matched[j], matched[i]
		}
	}
	lo, hi := window(len(matched), f.Page)
	return append([]inventory.OperationRecord{}, matched[lo:hi]...), len(matched), nil
}

func (s *state) AppendRecord(_ context.Context, r *inventory.OperationRecord) error {
	s.nextRecord++
	r.ID = s.nextRecord
	s.records = append(s.records, *r)
	return nil
}

func (s *state) DeleteRecords(_ context.Context, f inventory.RecordFilter) (int, error) {
	kept := s.records[:0:0]
	for _, r := range s.records {
		if !f.Match(r) {
			kept = append(kept, r)
		}
	}
	n := len(s.records) - len(kept)
	s.records = kept
	return n, nil
}

// =============================================================================
// USERS
// =============================================================================

func (s *state) GetUser(_ context.Context, id inventory.UserID) (*inventory.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, &inventory.NotFoundError{Kind: inventory.SubjectUser, ID: int64(id)}
	}
	c := *u
	return &c, nil
}

func (s *state) GetUserByName(_ context.Context, username string) (*inventory.User, error) {
	for _, u := range s.users {
		if u.Username == username {
			c := *u
			return &c, nil
		}
	}
	return nil, &inventory.NotFoundError{Kind: inventory.SubjectUser, Name: username}
}

func (s *state) ListUsers(context.Context) ([]*inventory.User, error) {
	out := make([]*inventory.User, 0, len(s.users))
	for _, u := range s.users {
		c := *u
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *state) InsertUser(_ context.Context, u *inventory.User) error {
	if s.usernameTaken(u.Username, 0) {
		return &inventory.DuplicateNameError{Kind: inventory.SubjectUser, Name: u.Username}
	}
	s.nextUser++
	u.ID = s.nextUser
	c := *u
	s.users[u.ID] = &c
	return nil
}

func (s *state) UpdateUser(_ context.Context, u *inventory.User) error {
	if _, ok := s.users[u.ID]; !ok {
		return &inventory.NotFoundError{Kind: inventory.SubjectUser, ID: int64(u.ID)}
	}
	if s.usernameTaken(u.Username, u.ID) {
		return &inventory.DuplicateNameError{Kind: inventory.SubjectUser, Name: u.Username}
	}
	c := *u
	s.users[u.ID] = &c
	return nil
}

func (s *state) DeleteUser(_ context.Context, id inventory.UserID) error {
	if _, ok := s.users[id]; !ok {
		return &inventory.NotFoundError{Kind: inventory.SubjectUser, ID: int64(id)}
	}
	delete(s.users, id)
	return nil
}

func (s *state) usernameTaken(name string, self inventory.UserID) bool {
	for id, u := range s.users {
		if id != self && u.Username == name {
			return true
		}
	}
	return false
}

// window returns the slice bounds of page over n items. Limit 0 means all.
func window(n int, page inventory.Page) (lo, hi int) {
	lo = page.Offset
	if lo < 0 {
		lo = 0
	}
	if lo > n {
		lo = n
	}
	hi = n
	if page.Limit > 0 && lo+page.Limit < n {
		hi = lo + page.Limit
	}
	return lo, hi
}
