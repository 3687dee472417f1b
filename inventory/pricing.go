/*
pricing.go - Price Cascade Engine

PURPOSE:
  Recomputes derived product prices after a material price change, and
  previews the effect of a candidate change without writing anything.

FORMULAS:
  product.in_price  = Σ material(k).in_price × bom[k]   for k in bom
  product.out_price = product.in_price + product.other_price

  Products with an empty BOM are priced manually and never recomputed.

DETERMINISM:
  Each product reads only material state, so recompute order does not
  matter and running the cascade twice yields the same prices.

ROUNDING:
  Stored prices keep full decimal precision. PriceImpact values are
  rounded to 2 places because they only feed a confirmation prompt.
*/
package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DisplayPlaces is the precision of every displayed monetary value.
const DisplayPlaces = 2

// BOMCost sums material in_price × quantity. Missing materials yield *ReferenceError.
func BOMCost(bom BOM, mats map[MaterialID]*Material) (decimal.Decimal, error) {
	total := decimal.Zero
	var missing []MaterialID
	for _, id := range bom.MaterialIDs() {
		m, ok := mats[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		total = total.Add(m.InPrice.Mul(decimal.NewFromInt(int64(bom[id]))))
	}
	if len(missing) > 0 {
		return decimal.Zero, &ReferenceError{Missing: missing}
	}
	return total, nil
}

type PriceCascade struct {
	clock Clock
}

func NewPriceCascade(clock Clock) *PriceCascade {
	if clock == nil {
		clock = SystemClock{}
	}
	return &PriceCascade{clock: clock}
}

// OnMaterialPriceChanged recomputes every BOM product that uses materialID.
// The material must already carry its new price inside tx. Returns the ids
// of products whose stored prices changed.
func (pc *PriceCascade) OnMaterialPriceChanged(ctx context.Context, tx Tx, materialID MaterialID) ([]ProductID, error) {
	pids, err := tx.ProductsReferencing(ctx, materialID)
	if err != nil || len(pids) == 0 {
		return nil, err
	}
	products, err := tx.GetProducts(ctx, pids)
	if err != nil {
		return nil, err
	}
	mats, err := tx.GetMaterials(ctx, bomUnion(products))
	if err != nil {
		return nil, err
	}

	now := pc.clock.Now()
	var changed []ProductID
	for _, pid := range pids {
		p, ok := products[pid]
		if !ok || p.IsManual() {
			continue
		}
		in, err := BOMCost(p.BOM, mats)
		if err != nil {
			return nil, err
		}
		out := in.Add(p.OtherPrice)
		if in.Equal(p.InPrice) && out.Equal(p.OutPrice) {
			continue
		}
		p.InPrice, p.OutPrice, p.UpdatedAt = in, out, now
		if err := tx.UpdateProduct(ctx, p); err != nil {
			return nil, err
		}
		changed = append(changed, pid)
	}
	return changed, nil
}

// =============================================================================
// PREVIEW
// =============================================================================

type PriceImpact struct {
	MaterialID   MaterialID
	PriceChanged bool
	Products     []AffectedProduct
}

type AffectedProduct struct {
	ID             ProductID
	Name           string
	ImageRef       string
	Components     string // "Bead×10, Clasp×1"
	CurrentCost    decimal.Decimal
	CurrentSelling decimal.Decimal
	NewCost        decimal.Decimal
	NewSelling     decimal.Decimal
}

// Preview reports what the cascade would do if materialID took the candidate
// prices. Nil candidates keep the current value. Read-only.
func (pc *PriceCascade) Preview(ctx context.Context, r Reader, materialID MaterialID, candIn, candOut *decimal.Decimal) (*PriceImpact, error) {
	m, err := r.GetMaterial(ctx, materialID)
	if err != nil {
		return nil, err
	}
	impact := &PriceImpact{MaterialID: materialID}
	if candIn != nil && !candIn.Equal(m.InPrice) {
		impact.PriceChanged = true
	}
	if candOut != nil && !candOut.Equal(m.OutPrice) {
		impact.PriceChanged = true
	}
	if !impact.PriceChanged {
		return impact, nil
	}

	pids, err := r.ProductsReferencing(ctx, materialID)
	if err != nil || len(pids) == 0 {
		return impact, err
	}
	products, err := r.GetProducts(ctx, pids)
	if err != nil {
		return nil, err
	}
	mats, err := r.GetMaterials(ctx, bomUnion(products))
	if err != nil {
		return nil, err
	}

	candidate := make(map[MaterialID]*Material, len(mats))
	for id, mm := range mats {
		candidate[id] = mm
	}
	hypo := m.Clone()
	if candIn != nil {
		hypo.InPrice = *candIn
	}
	candidate[materialID] = hypo

	for _, pid := range pids {
		p, ok := products[pid]
		if !ok || p.IsManual() {
			continue
		}
		newCost, err := BOMCost(p.BOM, candidate)
		if err != nil {
			return nil, err
		}
		impact.Products = append(impact.Products, AffectedProduct{
			ID:             p.ID,
			Name:           p.Name,
			ImageRef:       p.ImageRef,
			Components:     components(p.BOM, mats),
			CurrentCost:    p.InPrice.Round(DisplayPlaces),
			CurrentSelling: p.OutPrice.Round(DisplayPlaces),
			NewCost:        newCost.Round(DisplayPlaces),
			NewSelling:     newCost.Add(p.OtherPrice).Round(DisplayPlaces),
		})
	}
	return impact, nil
}

func bomUnion(products map[ProductID]*Product) []MaterialID {
	seen := make(map[MaterialID]bool)
	var ids []MaterialID
	for _, p := range products {
		for id := range p.BOM {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids
}

func components(bom BOM, mats map[MaterialID]*Material) string {
	parts := make([]string, 0, len(bom))
	for _, id := range bom.MaterialIDs() {
		if m, ok := mats[id]; ok {
			parts = append(parts, fmt.Sprintf("%s×%d", m.Name, bom[id]))
		}
	}
	return strings.Join(parts, ", ")
}
