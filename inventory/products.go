package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// =============================================================================
// INPUTS
// =============================================================================

type NewProduct struct {
	Name       string
	BOM        BOM
	InPrice    *decimal.Decimal // only used when BOM is empty
	OutPrice   *decimal.Decimal // override; nil means InPrice + OtherPrice
	OtherPrice decimal.Decimal
	ImageRef   string
}

// ProductUpdate replaces the name and any non-nil field.
type ProductUpdate struct {
	Name       string
	BOM        *BOM
	InPrice    *decimal.Decimal // only used when the resulting BOM is empty
	OutPrice   *decimal.Decimal
	OtherPrice *decimal.Decimal
	ImageRef   *string
}

// =============================================================================
// CRUD
// =============================================================================

func (s *Service) AddProduct(ctx context.Context, actor string, in NewProduct) (ProductID, error) {
	actor, err := s.actor(actor)
	if err != nil {
		return 0, err
	}
	name, err := s.limits.Name("name", in.Name, s.limits.NameMax)
	if err != nil {
		return 0, err
	}
	bom := in.BOM.Clone()
	if err := s.limits.BOM(bom); err != nil {
		return 0, err
	}
	if err := validatePrices(in.InPrice, in.OutPrice, &in.OtherPrice); err != nil {
		return 0, err
	}
	image, err := s.limits.Optional("image_ref", in.ImageRef, s.limits.DetailMax)
	if err != nil {
		return 0, err
	}

	var id ProductID
	err = s.mutate(ctx, OpProductAdd, actor, func(tx Tx) error {
		mats, err := tx.GetMaterials(ctx, bom.MaterialIDs())
		if err != nil {
			return err
		}
		cost, err := BOMCost(bom, mats)
		if err != nil {
			return err
		}
		if bom.IsEmpty() && in.InPrice != nil {
			cost = *in.InPrice
		}
		sell := cost.Add(in.OtherPrice)
		if in.OutPrice != nil {
			sell = *in.OutPrice
		}

		now := s.clock.Now()
		p := &Product{
			Name:       name,
			BOM:        bom,
			InPrice:    cost,
			OutPrice:   sell,
			OtherPrice: in.OtherPrice,
			ImageRef:   image,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := tx.InsertProduct(ctx, p); err != nil {
			return err
		}
		id = p.ID
		if err := s.refs.OnProductBOMChanged(ctx, tx, p.ID, BOM{}, bom); err != nil {
			return err
		}
		detail := fmt.Sprintf("added product %s, cost %s, price %s, materials [%s]",
			name, money(cost), money(sell), components(bom, mats))
		return s.Record(ctx, tx, OpProductAdd, int64(p.ID), name, 0, actor, detail)
	}, zap.String("product", name))
	return id, err
}

// UpdateProduct applies u. Derived prices are recomputed from the BOM; the
// sell price is reset to cost + surcharge when any price input changed,
// unless an OutPrice override is given.
func (s *Service) UpdateProduct(ctx context.Context, actor string, id ProductID, u ProductUpdate) error {
	actor, err := s.actor(actor)
	if err != nil {
		return err
	}
	name, err := s.limits.Name("name", u.Name, s.limits.NameMax)
	if err != nil {
		return err
	}
	if u.BOM != nil {
		if err := s.limits.BOM(*u.BOM); err != nil {
			return err
		}
	}
	if err := validatePrices(u.InPrice, u.OutPrice, u.OtherPrice); err != nil {
		return err
	}
	if u.ImageRef != nil {
		img, err := s.limits.Optional("image_ref", *u.ImageRef, s.limits.DetailMax)
		if err != nil {
			return err
		}
		u.ImageRef = &img
	}

	return s.mutate(ctx, OpProductUpdate, actor, func(tx Tx) error {
		p, err := tx.GetProduct(ctx, id)
		if err != nil {
			return err
		}
		if err := ensureProductNameFree(ctx, tx, name, p.ID); err != nil {
			return err
		}

		oldBOM := p.BOM
		newBOM := oldBOM.Clone()
		if u.BOM != nil {
			newBOM = u.BOM.Clone()
		}
		mats, err := tx.GetMaterials(ctx, newBOM.MaterialIDs())
		if err != nil {
			return err
		}
		cost, err := BOMCost(newBOM, mats)
		if err != nil {
			var re *ReferenceError
			if errors.As(err, &re) {
				re.ProductID = p.ID
			}
			return err
		}
		if newBOM.IsEmpty() {
			cost = p.InPrice
			if u.InPrice != nil {
				cost = *u.InPrice
			}
		}
		other := p.OtherPrice
		if u.OtherPrice != nil {
			other = *u.OtherPrice
		}

		inputsChanged := !cost.Equal(p.InPrice) || !other.Equal(p.OtherPrice)
		switch {
		case u.OutPrice != nil:
			p.OutPrice = *u.OutPrice
		case inputsChanged:
			p.OutPrice = cost.Add(other)
		}
		p.Name, p.BOM, p.InPrice, p.OtherPrice = name, newBOM, cost, other
		if u.ImageRef != nil {
			p.ImageRef = *u.ImageRef
		}
		p.UpdatedAt = s.clock.Now()

		if err := s.refs.OnProductBOMChanged(ctx, tx, p.ID, oldBOM, newBOM); err != nil {
			return err
		}
		if err := tx.UpdateProduct(ctx, p); err != nil {
			return err
		}
		detail := fmt.Sprintf("updated product %s, cost %s, price %s, materials [%s]",
			name, money(p.InPrice), money(p.OutPrice), components(newBOM, mats))
		return s.Record(ctx, tx, OpProductUpdate, int64(p.ID), name, 0, actor, detail)
	}, zap.Int64("product_id", int64(id)))
}

func (s *Service) DeleteProduct(ctx context.Context, actor string, id ProductID) error {
	_, err := s.deleteProduct(ctx, actor, id)
	return err
}

func (s *Service) deleteProduct(ctx context.Context, actor string, id ProductID) (name string, err error) {
	actor, err = s.actor(actor)
	if err != nil {
		return "", err
	}
	err = s.mutate(ctx, OpProductDelete, actor, func(tx Tx) error {
		p, err := tx.GetProduct(ctx, id)
		if err != nil {
			return err
		}
		name = p.Name
		if p.StockCount > 0 {
			return &StockNotZeroError{Kind: SubjectProduct, Name: p.Name, Stock: p.StockCount}
		}
		if err := s.refs.OnProductDeleted(ctx, tx, p.ID, p.BOM); err != nil {
			return err
		}
		if err := tx.DeleteProduct(ctx, id); err != nil {
			return err
		}
		return s.Record(ctx, tx, OpProductDelete, int64(id), p.Name, 0, actor, "deleted product "+p.Name)
	}, zap.Int64("product_id", int64(id)))
	return name, err
}

func (s *Service) BatchDeleteProducts(ctx context.Context, actor string, ids []ProductID) BatchResult {
	var res BatchResult
	for _, id := range ids {
		name, err := s.deleteProduct(ctx, actor, id)
		res.add(int64(id), name, err)
	}
	return res
}

// =============================================================================
// STOCK
// =============================================================================

// ProductInbound produces qty units, consuming BOM materials.
func (s *Service) ProductInbound(ctx context.Context, actor string, id ProductID, qty int, customer string) error {
	actor, customer, err := s.movementInput(actor, qty, "customer", customer, false)
	if err != nil {
		return err
	}
	return s.mutate(ctx, OpProductInbound, actor, func(tx Tx) error {
		p, used, err := s.stock.ProductInbound(ctx, tx, id, qty)
		if err != nil {
			return err
		}
		detail := fmt.Sprintf("produced %d, stock %d", qty, p.StockCount)
		if len(used) > 0 {
			detail += ", consumed " + describe(used)
		}
		if customer != "" {
			detail = fmt.Sprintf("customer %s, %s", customer, detail)
		}
		return s.Record(ctx, tx, OpProductInbound, int64(p.ID), p.Name, qty, actor, detail)
	}, zap.Int64("product_id", int64(id)), zap.Int("quantity", qty))
}

func (s *Service) ProductOutbound(ctx context.Context, actor string, id ProductID, qty int, customer string) error {
	actor, customer, err := s.movementInput(actor, qty, "customer", customer, false)
	if err != nil {
		return err
	}
	return s.mutate(ctx, OpProductOutbound, actor, func(tx Tx) error {
		p, err := s.stock.ProductOutbound(ctx, tx, id, qty)
		if err != nil {
			return err
		}
		detail := fmt.Sprintf("sold %d at %s, stock %d", qty, money(p.OutPrice), p.StockCount)
		if customer != "" {
			detail = fmt.Sprintf("customer %s, %s", customer, detail)
		}
		return s.Record(ctx, tx, OpProductOutbound, int64(p.ID), p.Name, -qty, actor, detail)
	}, zap.Int64("product_id", int64(id)), zap.Int("quantity", qty))
}

// ProductRestore undoes a production run. reason is required.
func (s *Service) ProductRestore(ctx context.Context, actor string, id ProductID, qty int, reason string) error {
	actor, reason, err := s.movementInput(actor, qty, "reason", reason, true)
	if err != nil {
		return err
	}
	return s.mutate(ctx, OpProductRestore, actor, func(tx Tx) error {
		p, returned, err := s.stock.ProductRestore(ctx, tx, id, qty)
		if err != nil {
			return err
		}
		detail := fmt.Sprintf("reason %s, restored %d, stock %d", reason, qty, p.StockCount)
		if len(returned) > 0 {
			detail += ", returned " + describe(returned)
		}
		return s.Record(ctx, tx, OpProductRestore, int64(p.ID), p.Name, -qty, actor, detail)
	}, zap.Int64("product_id", int64(id)), zap.Int("quantity", qty))
}

// =============================================================================
// HELPERS
// =============================================================================

func validatePrices(in, out, other *decimal.Decimal) error {
	var errs []error
	if in != nil {
		errs = append(errs, price("in_price", *in))
	}
	if out != nil {
		errs = append(errs, price("out_price", *out))
	}
	if other != nil {
		errs = append(errs, price("other_price", *other))
	}
	return errors.Join(errs...)
}

func ensureProductNameFree(ctx context.Context, r Reader, name string, self ProductID) error {
	other, err := r.GetProductByName(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if other.ID != self {
		return &DuplicateNameError{Kind: SubjectProduct, Name: name}
	}
	return nil
}

func describe(lines []Consumption) string {
	parts := make([]string, len(lines))
	for i, c := range lines {
		parts[i] = fmt.Sprintf("%s×%d", c.Name, c.Quantity)
	}
	return strings.Join(parts, ", ")
}
