package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// =============================================================================
// INPUTS
// =============================================================================

type NewMaterial struct {
	Name     string
	InPrice  decimal.Decimal
	OutPrice *decimal.Decimal // nil defaults to InPrice
	ImageRef string
}

// MaterialUpdate replaces the name and any non-nil field.
type MaterialUpdate struct {
	Name     string
	InPrice  *decimal.Decimal
	OutPrice *decimal.Decimal
	ImageRef *string
}

// MaterialRow is one spreadsheet row to upsert by name.
type MaterialRow struct {
	Row      int
	Name     string
	InPrice  decimal.Decimal
	OutPrice *decimal.Decimal
	Stock    int
}

type ImportResult struct {
	Created int
	Updated int
	Failed  []RowFailure
}

type RowFailure struct {
	Row    int
	Name   string
	Kind   ErrorKind
	Reason string
}

// =============================================================================
// CRUD
// =============================================================================

func (s *Service) AddMaterial(ctx context.Context, actor string, in NewMaterial) (MaterialID, error) {
	actor, err := s.actor(actor)
	if err != nil {
		return 0, err
	}
	name, err := s.limits.Name("name", in.Name, s.limits.NameMax)
	if err != nil {
		return 0, err
	}
	out := in.InPrice
	if in.OutPrice != nil {
		out = *in.OutPrice
	}
	if err := errors.Join(price("in_price", in.InPrice), price("out_price", out)); err != nil {
		return 0, err
	}
	image, err := s.limits.Optional("image_ref", in.ImageRef, s.limits.DetailMax)
	if err != nil {
		return 0, err
	}

	var id MaterialID
	err = s.mutate(ctx, OpMaterialAdd, actor, func(tx Tx) error {
		now := s.clock.Now()
		m := &Material{
			Name:      name,
			InPrice:   in.InPrice,
			OutPrice:  out,
			ImageRef:  image,
			UsedBy:    NewProductSet(),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.InsertMaterial(ctx, m); err != nil {
			return err
		}
		id = m.ID
		detail := fmt.Sprintf("added material %s, cost %s, price %s", name, money(m.InPrice), money(m.OutPrice))
		return s.Record(ctx, tx, OpMaterialAdd, int64(m.ID), name, 0, actor, detail)
	}, zap.String("material", name))
	return id, err
}

// UpdateMaterial applies u and, when a price moved, cascades to every
// product using the material in the same transaction.
func (s *Service) UpdateMaterial(ctx context.Context, actor string, id MaterialID, u MaterialUpdate) (priceChanged bool, err error) {
	actor, err = s.actor(actor)
	if err != nil {
		return false, err
	}
	name, err := s.limits.Name("name", u.Name, s.limits.NameMax)
	if err != nil {
		return false, err
	}
	if u.InPrice != nil {
		if err := price("in_price", *u.InPrice); err != nil {
			return false, err
		}
	}
	if u.OutPrice != nil {
		if err := price("out_price", *u.OutPrice); err != nil {
			return false, err
		}
	}
	if u.ImageRef != nil {
		img, err := s.limits.Optional("image_ref", *u.ImageRef, s.limits.DetailMax)
		if err != nil {
			return false, err
		}
		u.ImageRef = &img
	}

	err = s.mutate(ctx, OpMaterialUpdate, actor, func(tx Tx) error {
		m, err := tx.GetMaterial(ctx, id)
		if err != nil {
			return err
		}
		if err := ensureMaterialNameFree(ctx, tx, name, m.ID); err != nil {
			return err
		}

		m.Name = name
		if u.InPrice != nil && !u.InPrice.Equal(m.InPrice) {
			m.InPrice = *u.InPrice
			priceChanged = true
		}
		if u.OutPrice != nil && !u.OutPrice.Equal(m.OutPrice) {
			m.OutPrice = *u.OutPrice
			priceChanged = true
		}
		if u.ImageRef != nil {
			m.ImageRef = *u.ImageRef
		}
		m.UpdatedAt = s.clock.Now()
		if err := tx.UpdateMaterial(ctx, m); err != nil {
			return err
		}

		detail := fmt.Sprintf("updated material %s, cost %s, price %s", name, money(m.InPrice), money(m.OutPrice))
		if priceChanged {
			changed, err := s.pricing.OnMaterialPriceChanged(ctx, tx, m.ID)
			if err != nil {
				return err
			}
			detail += fmt.Sprintf(", %d products repriced", len(changed))
		}
		return s.Record(ctx, tx, OpMaterialUpdate, int64(m.ID), name, 0, actor, detail)
	}, zap.Int64("material_id", int64(id)))
	if err != nil {
		return false, err
	}
	return priceChanged, nil
}

func (s *Service) DeleteMaterial(ctx context.Context, actor string, id MaterialID) error {
	_, err := s.deleteMaterial(ctx, actor, id)
	return err
}

func (s *Service) deleteMaterial(ctx context.Context, actor string, id MaterialID) (name string, err error) {
	actor, err = s.actor(actor)
	if err != nil {
		return "", err
	}
	err = s.mutate(ctx, OpMaterialDelete, actor, func(tx Tx) error {
		m, err := tx.GetMaterial(ctx, id)
		if err != nil {
			return err
		}
		name = m.Name
		if m.StockCount > 0 {
			return &StockNotZeroError{Kind: SubjectMaterial, Name: m.Name, Stock: m.StockCount}
		}
		refs, err := Referencing(ctx, tx, m)
		if err != nil {
			return err
		}
		if len(refs) > 0 {
			return &StillReferencedError{MaterialName: m.Name, ProductIDs: refs}
		}
		if err := tx.DeleteMaterial(ctx, id); err != nil {
			return err
		}
		return s.Record(ctx, tx, OpMaterialDelete, int64(id), m.Name, 0, actor, "deleted material "+m.Name)
	}, zap.Int64("material_id", int64(id)))
	return name, err
}

func (s *Service) BatchDeleteMaterials(ctx context.Context, actor string, ids []MaterialID) BatchResult {
	var res BatchResult
	for _, id := range ids {
		name, err := s.deleteMaterial(ctx, actor, id)
		res.add(int64(id), name, err)
	}
	return res
}

// =============================================================================
// STOCK
// =============================================================================

func (s *Service) MaterialInbound(ctx context.Context, actor string, id MaterialID, qty int, supplier string) error {
	actor, supplier, err := s.movementInput(actor, qty, "supplier", supplier, false)
	if err != nil {
		return err
	}
	return s.mutate(ctx, OpMaterialInbound, actor, func(tx Tx) error {
		m, err := s.stock.MaterialInbound(ctx, tx, id, qty)
		if err != nil {
			return err
		}
		detail := fmt.Sprintf("received %d, stock %d", qty, m.StockCount)
		if supplier != "" {
			detail = fmt.Sprintf("supplier %s, %s", supplier, detail)
		}
		return s.Record(ctx, tx, OpMaterialInbound, int64(m.ID), m.Name, qty, actor, detail)
	}, zap.Int64("material_id", int64(id)), zap.Int("quantity", qty))
}

func (s *Service) MaterialOutbound(ctx context.Context, actor string, id MaterialID, qty int, customer string) error {
	actor, customer, err := s.movementInput(actor, qty, "customer", customer, false)
	if err != nil {
		return err
	}
	return s.mutate(ctx, OpMaterialOutbound, actor, func(tx Tx) error {
		m, err := s.stock.MaterialOutbound(ctx, tx, id, qty)
		if err != nil {
			return err
		}
		detail := fmt.Sprintf("shipped %d, stock %d", qty, m.StockCount)
		if customer != "" {
			detail = fmt.Sprintf("customer %s, %s", customer, detail)
		}
		return s.Record(ctx, tx, OpMaterialOutbound, int64(m.ID), m.Name, -qty, actor, detail)
	}, zap.Int64("material_id", int64(id)), zap.Int("quantity", qty))
}

func (s *Service) movementInput(actor string, qty int, field, partner string, required bool) (string, string, error) {
	actor, err := s.actor(actor)
	if err != nil {
		return "", "", err
	}
	if err := s.limits.Quantity(qty); err != nil {
		return "", "", err
	}
	if required {
		partner, err = s.limits.Name(field, partner, s.limits.PartnerMax)
	} else {
		partner, err = s.limits.Optional(field, partner, s.limits.PartnerMax)
	}
	return actor, partner, err
}

// =============================================================================
// PRICE PREVIEW
// =============================================================================

// PreviewPriceImpact shows current and hypothetical prices of every product
// using the material. Nothing is written.
func (s *Service) PreviewPriceImpact(ctx context.Context, id MaterialID, inPrice, outPrice *decimal.Decimal) (*PriceImpact, error) {
	var impact *PriceImpact
	err := s.view(ctx, "preview_price_impact", func(r Reader) error {
		var err error
		impact, err = s.pricing.Preview(ctx, r, id, inPrice, outPrice)
		return err
	})
	return impact, err
}

// =============================================================================
// IMPORT
// =============================================================================

// ImportMaterials upserts rows by name. Each row commits on its own so one
// bad row does not reject the file.
func (s *Service) ImportMaterials(ctx context.Context, actor string, rows []MaterialRow) (ImportResult, error) {
	var res ImportResult
	actor, err := s.actor(actor)
	if err != nil {
		return res, err
	}
	for _, row := range rows {
		created, err := s.importRow(ctx, actor, row)
		switch {
		case err != nil:
			res.Failed = append(res.Failed, RowFailure{Row: row.Row, Name: row.Name, Kind: KindOf(err), Reason: err.Error()})
		case created:
			res.Created++
		default:
			res.Updated++
		}
	}
	return res, nil
}

func (s *Service) importRow(ctx context.Context, actor string, row MaterialRow) (created bool, err error) {
	name, err := s.limits.Name("name", row.Name, s.limits.NameMax)
	if err != nil {
		return false, err
	}
	out := row.InPrice
	if row.OutPrice != nil {
		out = *row.OutPrice
	}
	if err := errors.Join(price("in_price", row.InPrice), price("out_price", out)); err != nil {
		return false, err
	}
	if row.Stock < 0 || row.Stock > s.limits.QuantityMax {
		return false, invalid("stock", "must be between 0 and %d", s.limits.QuantityMax)
	}

	err = s.mutate(ctx, OpMaterialImport, actor, func(tx Tx) error {
		now := s.clock.Now()
		m, err := tx.GetMaterialByName(ctx, name)
		if errors.Is(err, ErrNotFound) {
			created = true
			m = &Material{Name: name, InPrice: row.InPrice, OutPrice: out, StockCount: row.Stock,
				UsedBy: NewProductSet(), CreatedAt: now, UpdatedAt: now}
			if err := tx.InsertMaterial(ctx, m); err != nil {
				return err
			}
			return s.Record(ctx, tx, OpMaterialImport, int64(m.ID), name, row.Stock, actor,
				fmt.Sprintf("imported new material %s, stock %d", name, row.Stock))
		}
		if err != nil {
			return err
		}

		delta := row.Stock - m.StockCount
		costChanged := !row.InPrice.Equal(m.InPrice)
		m.InPrice, m.OutPrice, m.StockCount, m.UpdatedAt = row.InPrice, out, row.Stock, now
		if err := tx.UpdateMaterial(ctx, m); err != nil {
			return err
		}
		if costChanged {
			if _, err := s.pricing.OnMaterialPriceChanged(ctx, tx, m.ID); err != nil {
				return err
			}
		}
		return s.Record(ctx, tx, OpMaterialImport, int64(m.ID), name, delta, actor,
			fmt.Sprintf("imported material %s, stock %d", name, row.Stock))
	}, zap.String("material", name), zap.Int("row", row.Row))
	return created, err
}

func ensureMaterialNameFree(ctx context.Context, r Reader, name string, self MaterialID) error {
	other, err := r.GetMaterialByName(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if other.ID != self {
		return &DuplicateNameError{Kind: SubjectMaterial, Name: name}
	}
	return nil
}

func money(d decimal.Decimal) string { return d.StringFixed(DisplayPlaces) }
