/*
references.go - Reference Tracker

PURPOSE:
  Keeps Material.UsedBy equal to the set of products whose BOM contains the
  material. UsedBy is a cache of the reverse edge; the BOM is the truth.

ALL-OR-NOTHING:
  Every material named by the new BOM is loaded and checked before any
  UsedBy set is written. A missing material aborts with *ReferenceError and
  nothing is touched. The writes share the caller's Tx with the product
  write, so the edge and its reverse commit together.

IDEMPOTENCE:
  Adding a product already present is a no-op, and every key of the new BOM
  is re-asserted, so a drifted cache heals on the next BOM change.
*/
package inventory

import (
	"context"
	"time"
)

type ReferenceTracker struct {
	clock Clock
}

func NewReferenceTracker(clock Clock) *ReferenceTracker {
	if clock == nil {
		clock = SystemClock{}
	}
	return &ReferenceTracker{clock: clock}
}

// OnProductBOMChanged moves productID between UsedBy sets for the transition
// oldBOM -> newBOM. Pass an empty oldBOM for a new product.
func (rt *ReferenceTracker) OnProductBOMChanged(ctx context.Context, tx Tx, productID ProductID, oldBOM, newBOM BOM) error {
	removed, _ := oldBOM.Diff(newBOM)
	ids := append(newBOM.MaterialIDs(), removed...)
	if len(ids) == 0 {
		return nil
	}

	mats, err := tx.GetMaterials(ctx, ids)
	if err != nil {
		return err
	}

	// VALIDATE
	var missing []MaterialID
	for _, id := range newBOM.MaterialIDs() {
		if _, ok := mats[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return &ReferenceError{ProductID: productID, Missing: missing}
	}

	// APPLY
	now := rt.clock.Now()
	for _, id := range removed {
		m, ok := mats[id]
		if !ok {
			continue
		}
		if m.UsedBy.Remove(productID) {
			if err := touch(ctx, tx, m, now); err != nil {
				return err
			}
		}
	}
	for _, id := range newBOM.MaterialIDs() {
		m := mats[id]
		if m.UsedBy == nil {
			m.UsedBy = NewProductSet()
		}
		if m.UsedBy.Add(productID) {
			if err := touch(ctx, tx, m, now); err != nil {
				return err
			}
		}
	}
	return nil
}

// OnProductDeleted drops productID from every material in bom.
func (rt *ReferenceTracker) OnProductDeleted(ctx context.Context, tx Tx, productID ProductID, bom BOM) error {
	return rt.OnProductBOMChanged(ctx, tx, productID, bom, BOM{})
}

// Referencing returns the existing products that use a material: the BOM
// relation unioned with the UsedBy cache, minus ids that no longer exist.
func Referencing(ctx context.Context, r Reader, m *Material) ([]ProductID, error) {
	ids, err := r.ProductsReferencing(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	set := NewProductSet(ids...)
	for id := range m.UsedBy {
		set.Add(id)
	}
	if set.Len() == 0 {
		return nil, nil
	}
	live, err := r.GetProducts(ctx, set.IDs())
	if err != nil {
		return nil, err
	}
	out := make([]ProductID, 0, len(live))
	for _, id := range set.IDs() {
		if _, ok := live[id]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func touch(ctx context.Context, tx Tx, m *Material, now time.Time) error {
	m.UpdatedAt = now
	return tx.UpdateMaterial(ctx, m)
}
