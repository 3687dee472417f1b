/*
stock.go - Stock Transaction Engine

PURPOSE:
  Moves stock for materials and products. Every method runs inside the
  caller's Tx and follows VALIDATE then APPLY: all checks finish before the
  first write, so a rejected movement leaves every row untouched.

MOVEMENTS:
  MaterialInbound    material += n
  MaterialOutbound   material -= n                 (needs material >= n)
  ProductInbound     material[k] -= bom[k] × n     (needs every material >= bom[k] × n)
                     product += n
  ProductOutbound    product -= n                  (needs product >= n)
  ProductRestore     product -= n                  (needs product >= n)
                     material[k] += bom[k] × n

  ProductInbound and ProductRestore are inverses.

SERIALIZATION:
  Reads of stock_count happen inside the Tx. The store serializes writers,
  so a second producer re-validates against the first one's result.
*/
package inventory

import (
	"context"
)

type StockEngine struct {
	clock Clock
}

func NewStockEngine(clock Clock) *StockEngine {
	if clock == nil {
		clock = SystemClock{}
	}
	return &StockEngine{clock: clock}
}

// Consumption is one material line touched by a product movement.
type Consumption struct {
	MaterialID MaterialID
	Name       string
	Quantity   int
	StockAfter int
}

func (se *StockEngine) MaterialInbound(ctx context.Context, tx Tx, id MaterialID, qty int) (*Material, error) {
	m, err := tx.GetMaterial(ctx, id)
	if err != nil {
		return nil, err
	}
	m.StockCount += qty
	m.UpdatedAt = se.clock.Now()
	if err := tx.UpdateMaterial(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (se *StockEngine) MaterialOutbound(ctx context.Context, tx Tx, id MaterialID, qty int) (*Material, error) {
	m, err := tx.GetMaterial(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.StockCount < qty {
		return nil, &InsufficientStockError{
			Kind: SubjectMaterial, ID: int64(m.ID), Name: m.Name,
			Available: m.StockCount, Requested: qty,
		}
	}
	m.StockCount -= qty
	m.UpdatedAt = se.clock.Now()
	if err := tx.UpdateMaterial(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// ProductInbound produces qty units, consuming materials per the BOM. The
// first insufficient material in ascending id order is reported.
func (se *StockEngine) ProductInbound(ctx context.Context, tx Tx, id ProductID, qty int) (*Product, []Consumption, error) {
	p, err := tx.GetProduct(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	mats, err := se.loadBOM(ctx, tx, p)
	if err != nil {
		return nil, nil, err
	}

	// VALIDATE
	req, err := p.BOM.Requirements(qty)
	if err != nil {
		return nil, nil, err
	}
	for _, mid := range p.BOM.MaterialIDs() {
		m := mats[mid]
		if m.StockCount < req[mid] {
			return nil, nil, &InsufficientStockError{
				Kind: SubjectMaterial, ID: int64(m.ID), Name: m.Name,
				Available: m.StockCount, Requested: req[mid],
			}
		}
	}

	// APPLY
	now := se.clock.Now()
	used := make([]Consumption, 0, len(req))
	for _, mid := range p.BOM.MaterialIDs() {
		m := mats[mid]
		m.StockCount -= req[mid]
		m.UpdatedAt = now
		if err := tx.UpdateMaterial(ctx, m); err != nil {
			return nil, nil, err
		}
		used = append(used, Consumption{MaterialID: mid, Name: m.Name, Quantity: req[mid], StockAfter: m.StockCount})
	}
	p.StockCount += qty
	p.UpdatedAt = now
	if err := tx.UpdateProduct(ctx, p); err != nil {
		return nil, nil, err
	}
	return p, used, nil
}

func (se *StockEngine) ProductOutbound(ctx context.Context, tx Tx, id ProductID, qty int) (*Product, error) {
	p, err := tx.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkProductStock(p, qty); err != nil {
		return nil, err
	}
	p.StockCount -= qty
	p.UpdatedAt = se.clock.Now()
	if err := tx.UpdateProduct(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ProductRestore undoes a production run, returning materials to stock.
func (se *StockEngine) ProductRestore(ctx context.Context, tx Tx, id ProductID, qty int) (*Product, []Consumption, error) {
	p, err := tx.GetProduct(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := checkProductStock(p, qty); err != nil {
		return nil, nil, err
	}
	mats, err := se.loadBOM(ctx, tx, p)
	if err != nil {
		return nil, nil, err
	}

	req, err := p.BOM.Requirements(qty)
	if err != nil {
		return nil, nil, err
	}
	now := se.clock.Now()
	returned := make([]Consumption, 0, len(req))
	for _, mid := range p.BOM.MaterialIDs() {
		m := mats[mid]
		m.StockCount += req[mid]
		m.UpdatedAt = now
		if err := tx.UpdateMaterial(ctx, m); err != nil {
			return nil, nil, err
		}
		returned = append(returned, Consumption{MaterialID: mid, Name: m.Name, Quantity: req[mid], StockAfter: m.StockCount})
	}
	p.StockCount -= qty
	p.UpdatedAt = now
	if err := tx.UpdateProduct(ctx, p); err != nil {
		return nil, nil, err
	}
	return p, returned, nil
}

func (se *StockEngine) loadBOM(ctx context.Context, tx Tx, p *Product) (map[MaterialID]*Material, error) {
	if p.IsManual() {
		return map[MaterialID]*Material{}, nil
	}
	mats, err := tx.GetMaterials(ctx, p.BOM.MaterialIDs())
	if err != nil {
		return nil, err
	}
	var missing []MaterialID
	for _, mid := range p.BOM.MaterialIDs() {
		if _, ok := mats[mid]; !ok {
			missing = append(missing, mid)
		}
	}
	if len(missing) > 0 {
		return nil, &ReferenceError{ProductID: p.ID, Missing: missing}
	}
	return mats, nil
}

func checkProductStock(p *Product, qty int) error {
	if p.StockCount < qty {
		return &InsufficientStockError{
			Kind: SubjectProduct, ID: int64(p.ID), Name: p.Name,
			Available: p.StockCount, Requested: qty,
		}
	}
	return nil
}

// =============================================================================
// POSSIBLE QUANTITY
// =============================================================================

// PossibleQuantity is how many units current material stock can produce.
// Zero for an empty BOM or when any BOM material is missing.
func PossibleQuantity(bom BOM, mats map[MaterialID]*Material) int {
	if bom.IsEmpty() {
		return 0
	}
	possible := -1
	for _, id := range bom.MaterialIDs() {
		m, ok := mats[id]
		if !ok {
			return 0
		}
		n := m.StockCount / bom[id]
		if possible < 0 || n < possible {
			possible = n
		}
	}
	return possible
}
