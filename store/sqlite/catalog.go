package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/warp/inventory-engine/inventory"
)

// =============================================================================
// ROWS
// =============================================================================

type materialRow struct {
	ID         int64           `db:"id"`
	Name       string          `db:"name"`
	InPrice    decimal.Decimal `db:"in_price"`
	OutPrice   decimal.Decimal `db:"out_price"`
	StockCount int             `db:"stock_count"`
	ImageRef   string          `db:"image_ref"`
	CreatedAt  string          `db:"created_at"`
	UpdatedAt  string          `db:"updated_at"`
}

func (r materialRow) toDomain() (*inventory.Material, error) {
	created, updated, err := parseStamps(r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("material %d: %w", r.ID, err)
	}
	return &inventory.Material{
		ID:         inventory.MaterialID(r.ID),
		Name:       r.Name,
		InPrice:    r.InPrice,
		OutPrice:   r.OutPrice,
		StockCount: r.StockCount,
		ImageRef:   r.ImageRef,
		UsedBy:     inventory.NewProductSet(),
		CreatedAt:  created,
		UpdatedAt:  updated,
	}, nil
}

type productRow struct {
	ID         int64           `db:"id"`
	Name       string          `db:"name"`
	InPrice    decimal.Decimal `db:"in_price"`
	OutPrice   decimal.Decimal `db:"out_price"`
	OtherPrice decimal.Decimal `db:"other_price"`
	StockCount int             `db:"stock_count"`
	ImageRef   string          `db:"image_ref"`
	CreatedAt  string          `db:"created_at"`
	UpdatedAt  string          `db:"updated_at"`
}

func (r productRow) toDomain() (*inventory.Product, error) {
	created, updated, err := parseStamps(r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("product %d: %w", r.ID, err)
	}
	return &inventory.Product{
		ID:         inventory.ProductID(r.ID),
		Name:       r.Name,
		BOM:        inventory.BOM{},
		InPrice:    r.InPrice,
		OutPrice:   r.OutPrice,
		OtherPrice: r.OtherPrice,
		StockCount: r.StockCount,
		ImageRef:   r.ImageRef,
		CreatedAt:  created,
		UpdatedAt:  updated,
	}, nil
}

type bomLine struct {
	ProductID  int64 `db:"product_id"`
	MaterialID int64 `db:"material_id"`
	Quantity   int   `db:"quantity"`
}

type usageLine struct {
	MaterialID int64 `db:"material_id"`
	ProductID  int64 `db:"product_id"`
}

const materialCols = `id, name, in_price, out_price, stock_count, image_ref, created_at, updated_at`
const productCols = `id, name, in_price, out_price, other_price, stock_count, image_ref, created_at, updated_at`

// =============================================================================
// MATERIALS
// =============================================================================

func (q *queries) GetMaterial(ctx context.Context, id inventory.MaterialID) (*inventory.Material, error) {
	var row materialRow
	err := sqlx.GetContext(ctx, q.q, &row, `SELECT `+materialCols+` FROM materials WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &inventory.NotFoundError{Kind: inventory.SubjectMaterial, ID: int64(id)}
	}
	if err != nil {
		return nil, fmt.Errorf("get material: %w", err)
	}
	m, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return q.withUsage(ctx, m)
}

func (q *queries) GetMaterialByName(ctx context.Context, name string) (*inventory.Material, error) {
	var row materialRow
	err := sqlx.GetContext(ctx, q.q, &row, `SELECT `+materialCols+` FROM materials WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &inventory.NotFoundError{Kind: inventory.SubjectMaterial, Name: name}
	}
	if err != nil {
		return nil, fmt.Errorf("get material by name: %w", err)
	}
	m, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return q.withUsage(ctx, m)
}

func (q *queries) GetMaterials(ctx context.Context, ids []inventory.MaterialID) (map[inventory.MaterialID]*inventory.Material, error) {
	out := make(map[inventory.MaterialID]*inventory.Material, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(`SELECT `+materialCols+` FROM materials WHERE id IN (?)`, toInt64s(ids))
	if err != nil {
		return nil, err
	}
	var rows []materialRow
	if err := sqlx.SelectContext(ctx, q.q, &rows, q.q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("get materials: %w", err)
	}
	list := make([]*inventory.Material, len(rows))
	for i, r := range rows {
		if list[i], err = r.toDomain(); err != nil {
			return nil, err
		}
		out[list[i].ID] = list[i]
	}
	if err := q.loadUsage(ctx, list); err != nil {
		return nil, err
	}
	return out, nil
}

func (q *queries) ListMaterials(ctx context.Context, page inventory.Page) ([]*inventory.Material, error) {
	limit, offset := limitOffset(page)
	var rows []materialRow
	err := sqlx.SelectContext(ctx, q.q, &rows,
		`SELECT `+materialCols+` FROM materials ORDER BY id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list materials: %w", err)
	}
	list := make([]*inventory.Material, len(rows))
	for i, r := range rows {
		if list[i], err = r.toDomain(); err != nil {
			return nil, err
		}
	}
	if err := q.loadUsage(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

func (q *queries) CountMaterials(ctx context.Context) (int, error) {
	var n int
	if err := sqlx.GetContext(ctx, q.q, &n, `SELECT COUNT(*) FROM materials`); err != nil {
		return 0, fmt.Errorf("count materials: %w", err)
	}
	return n, nil
}

func (q *queries) InsertMaterial(ctx context.Context, m *inventory.Material) error {
	res, err := q.q.ExecContext(ctx, `
		INSERT INTO materials (name, in_price, out_price, stock_count, image_ref, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.Name, m.InPrice, m.OutPrice, m.StockCount, m.ImageRef, formatTime(m.CreatedAt), formatTime(m.UpdatedAt))
	if isUniqueConstraintError(err) {
		return &inventory.DuplicateNameError{Kind: inventory.SubjectMaterial, Name: m.Name}
	}
	if err != nil {
		return fmt.Errorf("insert material: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = inventory.MaterialID(id)
	return q.writeUsage(ctx, m)
}

// UpdateMaterial writes the row and replaces its material_usage entries.
func (q *queries) UpdateMaterial(ctx context.Context, m *inventory.Material) error {
	res, err := q.q.ExecContext(ctx, `
		UPDATE materials
		SET name = ?, in_price = ?, out_price = ?, stock_count = ?, image_ref = ?, updated_at = ?
		WHERE id = ?`,
		m.Name, m.InPrice, m.OutPrice, m.StockCount, m.ImageRef, formatTime(m.UpdatedAt), m.ID)
	if isUniqueConstraintError(err) {
		return &inventory.DuplicateNameError{Kind: inventory.SubjectMaterial, Name: m.Name}
	}
	if err != nil {
		return fmt.Errorf("update material: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &inventory.NotFoundError{Kind: inventory.SubjectMaterial, ID: int64(m.ID)}
	}
	if _, err := q.q.ExecContext(ctx, `DELETE FROM material_usage WHERE material_id = ?`, m.ID); err != nil {
		return fmt.Errorf("clear material usage: %w", err)
	}
	return q.writeUsage(ctx, m)
}

func (q *queries) DeleteMaterial(ctx context.Context, id inventory.MaterialID) error {
	res, err := q.q.ExecContext(ctx, `DELETE FROM materials WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete material: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &inventory.NotFoundError{Kind: inventory.SubjectMaterial, ID: int64(id)}
	}
	return nil
}

func (q *queries) writeUsage(ctx context.Context, m *inventory.Material) error {
	for _, pid := range m.UsedBy.IDs() {
		if _, err := q.q.ExecContext(ctx,
			`INSERT INTO material_usage (material_id, product_id) VALUES (?, ?)`, m.ID, pid); err != nil {
			return fmt.Errorf("write material usage: %w", err)
		}
	}
	return nil
}

func (q *queries) withUsage(ctx context.Context, m *inventory.Material) (*inventory.Material, error) {
	if err := q.loadUsage(ctx, []*inventory.Material{m}); err != nil {
		return nil, err
	}
	return m, nil
}

func (q *queries) loadUsage(ctx context.Context, mats []*inventory.Material) error {
	if len(mats) == 0 {
		return nil
	}
	byID := make(map[int64]*inventory.Material, len(mats))
	ids := make([]int64, len(mats))
	for i, m := range mats {
		byID[int64(m.ID)] = m
		ids[i] = int64(m.ID)
	}
	query, args, err := sqlx.In(`SELECT material_id, product_id FROM material_usage WHERE material_id IN (?)`, ids)
	if err != nil {
		return err
	}
	var lines []usageLine
	if err := sqlx.SelectContext(ctx, q.q, &lines, q.q.Rebind(query), args...); err != nil {
		return fmt.Errorf("load material usage: %w", err)
	}
	for _, l := range lines {
		byID[l.MaterialID].UsedBy.Add(inventory.ProductID(l.ProductID))
	}
	return nil
}

// =============================================================================
// PRODUCTS
// =============================================================================

func (q *queries) GetProduct(ctx context.Context, id inventory.ProductID) (*inventory.Product, error) {
	var row productRow
	err := sqlx.GetContext(ctx, q.q, &row, `SELECT `+productCols+` FROM products WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &inventory.NotFoundError{Kind: inventory.SubjectProduct, ID: int64(id)}
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	p, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return p, q.loadBOM(ctx, []*inventory.Product{p})
}

func (q *queries) GetProductByName(ctx context.Context, name string) (*inventory.Product, error) {
	var row productRow
	err := sqlx.GetContext(ctx, q.q, &row, `SELECT `+productCols+` FROM products WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &inventory.NotFoundError{Kind: inventory.SubjectProduct, Name: name}
	}
	if err != nil {
		return nil, fmt.Errorf("get product by name: %w", err)
	}
	p, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return p, q.loadBOM(ctx, []*inventory.Product{p})
}

func (q *queries) GetProducts(ctx context.Context, ids []inventory.ProductID) (map[inventory.ProductID]*inventory.Product, error) {
	out := make(map[inventory.ProductID]*inventory.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	raw := make([]int64, len(ids))
	for i, id := range ids {
		raw[i] = int64(id)
	}
	query, args, err := sqlx.In(`SELECT `+productCols+` FROM products WHERE id IN (?)`, raw)
	if err != nil {
		return nil, err
	}
	var rows []productRow
	if err := sqlx.SelectContext(ctx, q.q, &rows, q.q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	list := make([]*inventory.Product, len(rows))
	for i, r := range rows {
		if list[i], err = r.toDomain(); err != nil {
			return nil, err
		}
		out[list[i].ID] = list[i]
	}
	if err := q.loadBOM(ctx, list); err != nil {
		return nil, err
	}
	return out, nil
}

func (q *queries) ListProducts(ctx context.Context, page inventory.Page) ([]*inventory.Product, error) {
	limit, offset := limitOffset(page)
	var rows []productRow
	err := sqlx.SelectContext(ctx, q.q, &rows,
		`SELECT `+productCols+` FROM products ORDER BY id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	list := make([]*inventory.Product, len(rows))
	for i, r := range rows {
		if list[i], err = r.toDomain(); err != nil {
			return nil, err
		}
	}
	if err := q.loadBOM(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

func (q *queries) CountProducts(ctx context.Context) (int, error) {
	var n int
	if err := sqlx.GetContext(ctx, q.q, &n, `SELECT COUNT(*) FROM products`); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

func (q *queries) ProductsReferencing(ctx context.Context, id inventory.MaterialID) ([]inventory.ProductID, error) {
	var raw []int64
	err := sqlx.SelectContext(ctx, q.q, &raw,
		`SELECT product_id FROM product_bom WHERE material_id = ? ORDER BY product_id`, id)
	if err != nil {
		return nil, fmt.Errorf("products referencing: %w", err)
	}
	out := make([]inventory.ProductID, len(raw))
	for i, v := range raw {
		out[i] = inventory.ProductID(v)
	}
	return out, nil
}

func (q *queries) InsertProduct(ctx context.Context, p *inventory.Product) error {
	res, err := q.q.ExecContext(ctx, `
		INSERT INTO products (name, in_price, out_price, other_price, stock_count, image_ref, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.InPrice, p.OutPrice, p.OtherPrice, p.StockCount, p.ImageRef,
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
	if isUniqueConstraintError(err) {
		return &inventory.DuplicateNameError{Kind: inventory.SubjectProduct, Name: p.Name}
	}
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = inventory.ProductID(id)
	return q.writeBOM(ctx, p)
}

// UpdateProduct writes the row and replaces its BOM lines.
func (q *queries) UpdateProduct(ctx context.Context, p *inventory.Product) error {
	res, err := q.q.ExecContext(ctx, `
		UPDATE products
		SET name = ?, in_price = ?, out_price = ?, other_price = ?, stock_count = ?, image_ref = ?, updated_at = ?
		WHERE id = ?`,
		p.Name, p.InPrice, p.OutPrice, p.OtherPrice, p.StockCount, p.ImageRef, formatTime(p.UpdatedAt), p.ID)
	if isUniqueConstraintError(err) {
		return &inventory.DuplicateNameError{Kind: inventory.SubjectProduct, Name: p.Name}
	}
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &inventory.NotFoundError{Kind: inventory.SubjectProduct, ID: int64(p.ID)}
	}
	if _, err := q.q.ExecContext(ctx, `DELETE FROM product_bom WHERE product_id = ?`, p.ID); err != nil {
		return fmt.Errorf("clear bom: %w", err)
	}
	return q.writeBOM(ctx, p)
}

func (q *queries) DeleteProduct(ctx context.Context, id inventory.ProductID) error {
	res, err := q.q.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &inventory.NotFoundError{Kind: inventory.SubjectProduct, ID: int64(id)}
	}
	return nil
}

func (q *queries) writeBOM(ctx context.Context, p *inventory.Product) error {
	for _, mid := range p.BOM.MaterialIDs() {
		if _, err := q.q.ExecContext(ctx,
			`INSERT INTO product_bom (product_id, material_id, quantity) VALUES (?, ?, ?)`,
			p.ID, mid, p.BOM[mid]); err != nil {
			return fmt.Errorf("write bom: %w", err)
		}
	}
	return nil
}

func (q *queries) loadBOM(ctx context.Context, products []*inventory.Product) error {
	if len(products) == 0 {
		return nil
	}
	byID := make(map[int64]*inventory.Product, len(products))
	ids := make([]int64, len(products))
	for i, p := range products {
		byID[int64(p.ID)] = p
		ids[i] = int64(p.ID)
	}
	query, args, err := sqlx.In(`SELECT product_id, material_id, quantity FROM product_bom WHERE product_id IN (?)`, ids)
	if err != nil {
		return err
	}
	var lines []bomLine
	if err := sqlx.SelectContext(ctx, q.q, &lines, q.q.Rebind(query), args...); err != nil {
		return fmt.Errorf("load bom: %w", err)
	}
	for _, l := range lines {
		byID[l.ProductID].BOM[inventory.MaterialID(l.MaterialID)] = l.Quantity
	}
	return nil
}

func toInt64s(ids []inventory.MaterialID) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}
