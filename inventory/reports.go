/*
reports.go - Query/Reporting Layer

PURPOSE:
  Read-only views over the ledger. Everything here runs in Store.View, never
  in a write transaction, so slow reports do not hold stock rows.

VIEWS:
  - MaterialPage / ProductPage: paginated listings with totals
  - ProductView: product plus BOM lines and possible production quantity
  - Trend: signed movement quantity summed per local calendar day
  - TopMovers: subjects ranked by moved volume (sum of |quantity|)
  - Summary: current counts, stock totals and stock value at cost
*/
package inventory

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultWindowDays is the statistics window when none is requested.
const DefaultWindowDays = 30

// MaxWindowDays caps statistics windows.
const MaxWindowDays = 366

// =============================================================================
// LISTINGS
// =============================================================================

type MaterialPage struct {
	Materials []*Material
	Total     int
}

type ProductPage struct {
	Products []*ProductView
	Total    int
}

type ProductView struct {
	Product          *Product
	Components       []Component
	PossibleQuantity int
}

type Component struct {
	MaterialID MaterialID
	Name       string
	PerUnit    int
	Stock      int
}

func (s *Service) GetMaterial(ctx context.Context, id MaterialID) (*Material, error) {
	var m *Material
	err := s.view(ctx, "get_material", func(r Reader) error {
		var err error
		m, err = r.GetMaterial(ctx, id)
		return err
	})
	return m, err
}

func (s *Service) ListMaterials(ctx context.Context, page Page) (MaterialPage, error) {
	page = s.limits.Page(page, s.limits.PageMax)
	var out MaterialPage
	err := s.view(ctx, "list_materials", func(r Reader) error {
		var err error
		if out.Materials, err = r.ListMaterials(ctx, page); err != nil {
			return err
		}
		out.Total, err = r.CountMaterials(ctx)
		return err
	})
	return out, err
}

// AllMaterials returns every material, for exports.
func (s *Service) AllMaterials(ctx context.Context) ([]*Material, error) {
	var out []*Material
	err := s.view(ctx, "all_materials", func(r Reader) error {
		var err error
		out, err = r.ListMaterials(ctx, Page{})
		return err
	})
	return out, err
}

func (s *Service) GetProduct(ctx context.Context, id ProductID) (*ProductView, error) {
	var v *ProductView
	err := s.view(ctx, "get_product", func(r Reader) error {
		p, err := r.GetProduct(ctx, id)
		if err != nil {
			return err
		}
		views, err := productViews(ctx, r, []*Product{p})
		if err != nil {
			return err
		}
		v = views[0]
		return nil
	})
	return v, err
}

func (s *Service) ListProducts(ctx context.Context, page Page) (ProductPage, error) {
	page = s.limits.Page(page, s.limits.PageMax)
	var out ProductPage
	err := s.view(ctx, "list_products", func(r Reader) error {
		products, err := r.ListProducts(ctx, page)
		if err != nil {
			return err
		}
		if out.Products, err = productViews(ctx, r, products); err != nil {
			return err
		}
		out.Total, err = r.CountProducts(ctx)
		return err
	})
	return out, err
}

// AllProducts returns every product view, for exports.
func (s *Service) AllProducts(ctx context.Context) ([]*ProductView, error) {
	var out []*ProductView
	err := s.view(ctx, "all_products", func(r Reader) error {
		products, err := r.ListProducts(ctx, Page{})
		if err != nil {
			return err
		}
		out, err = productViews(ctx, r, products)
		return err
	})
	return out, err
}

func productViews(ctx context.Context, r Reader, products []*Product) ([]*ProductView, error) {
	byID := make(map[ProductID]*Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	mats, err := r.GetMaterials(ctx, bomUnion(byID))
	if err != nil {
		return nil, err
	}
	views := make([]*ProductView, len(products))
	for i, p := range products {
		v := &ProductView{Product: p, PossibleQuantity: PossibleQuantity(p.BOM, mats)}
		for _, mid := range p.BOM.MaterialIDs() {
			c := Component{MaterialID: mid, PerUnit: p.BOM[mid]}
			if m, ok := mats[mid]; ok {
				c.Name, c.Stock = m.Name, m.StockCount
			}
			v.Components = append(v.Components, c)
		}
		views[i] = v
	}
	return views, nil
}

// =============================================================================
// STOCK LOOKUPS
// =============================================================================

func (s *Service) MaterialStock(ctx context.Context, id MaterialID) (int, error) {
	m, err := s.GetMaterial(ctx, id)
	if err != nil {
		return 0, err
	}
	return m.StockCount, nil
}

func (s *Service) ProductStock(ctx context.Context, id ProductID) (int, error) {
	var n int
	err := s.view(ctx, "product_stock", func(r Reader) error {
		p, err := r.GetProduct(ctx, id)
		if err != nil {
			return err
		}
		n = p.StockCount
		return nil
	})
	return n, err
}

// =============================================================================
// STATISTICS
// =============================================================================

type TrendPoint struct {
	Day      string // YYYY-MM-DD in the service location
	Quantity int
}

type Mover struct {
	SubjectID int64
	Name      string
	Quantity  int
}

type Summary struct {
	MaterialCount int
	MaterialStock int
	ProductCount  int
	ProductStock  int
	StockValue    decimal.Decimal // materials and products at cost
}

// Trend sums signed movement quantity per day over the last days days.
// subjectID 0 covers every subject of kind. Days without movement are omitted.
func (s *Service) Trend(ctx context.Context, kind SubjectKind, subjectID int64, days int) ([]TrendPoint, error) {
	recs, err := s.movements(ctx, kind, subjectID, days)
	if err != nil {
		return nil, err
	}
	sums := make(map[string]int)
	for _, r := range recs {
		sums[r.CreatedAt.In(s.loc).Format("2006-01-02")] += r.Quantity
	}
	points := make([]TrendPoint, 0, len(sums))
	for day, q := range sums {
		points = append(points, TrendPoint{Day: day, Quantity: q})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Day < points[j].Day })
	return points, nil
}

// TopMovers ranks subjects of kind by moved volume over the last days days.
func (s *Service) TopMovers(ctx context.Context, kind SubjectKind, limit, days int) ([]Mover, error) {
	if limit <= 0 || limit > s.limits.PageMax {
		limit = 10
	}
	recs, err := s.movements(ctx, kind, 0, days)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*Mover)
	for _, r := range recs {
		m, ok := byID[r.SubjectID]
		if !ok {
			m = &Mover{SubjectID: r.SubjectID}
			byID[r.SubjectID] = m
		}
		m.Name = r.SubjectName
		m.Quantity += abs(r.Quantity)
	}
	movers := make([]Mover, 0, len(byID))
	for _, m := range byID {
		movers = append(movers, *m)
	}
	sort.Slice(movers, func(i, j int) bool {
		if movers[i].Quantity != movers[j].Quantity {
			return movers[i].Quantity > movers[j].Quantity
		}
		return movers[i].SubjectID < movers[j].SubjectID
	})
	if len(movers) > limit {
		movers = movers[:limit]
	}
	return movers, nil
}

func (s *Service) Summary(ctx context.Context) (Summary, error) {
	var sum Summary
	sum.StockValue = decimal.Zero
	err := s.view(ctx, "summary", func(r Reader) error {
		mats, err := r.ListMaterials(ctx, Page{})
		if err != nil {
			return err
		}
		products, err := r.ListProducts(ctx, Page{})
		if err != nil {
			return err
		}
		sum.MaterialCount, sum.ProductCount = len(mats), len(products)
		for _, m := range mats {
			sum.MaterialStock += m.StockCount
			sum.StockValue = sum.StockValue.Add(m.InPrice.Mul(decimal.NewFromInt(int64(m.StockCount))))
		}
		for _, p := range products {
			sum.ProductStock += p.StockCount
			sum.StockValue = sum.StockValue.Add(p.InPrice.Mul(decimal.NewFromInt(int64(p.StockCount))))
		}
		return nil
	})
	return sum, err
}

func (s *Service) movements(ctx context.Context, kind SubjectKind, subjectID int64, days int) ([]OperationRecord, error) {
	types := MovementTypes(kind)
	if types == nil {
		return nil, invalid("kind", "must be material or product")
	}
	if days <= 0 {
		days = DefaultWindowDays
	}
	if days > MaxWindowDays {
		days = MaxWindowDays
	}
	now := s.clock.Now().In(s.loc)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	from := midnight.AddDate(0, 0, -(days - 1)).UTC()

	var recs []OperationRecord
	err := s.view(ctx, "movements", func(r Reader) error {
		var err error
		recs, _, err = r.QueryRecords(ctx, RecordFilter{
			From: &from, Types: types, SubjectID: subjectID, Order: SortAsc,
		})
		return err
	})
	return recs, err
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
