package api

import (
	"bytes"
	"net/http"

	"github.com/warp/inventory-engine/export"
	"github.com/warp/inventory-engine/inventory"
)

// =============================================================================
// RECORD HANDLERS
// =============================================================================

// recordFilter reads the shared record query parameters:
//
//	from, to     YYYY-MM-DD or RFC 3339, both inclusive
//	type, actor  comma separated
//	q            detail substring
//	subject_id   one subject
//	order        asc or desc
//	offset, limit
func (h *Handler) recordFilter(r *http.Request) (inventory.RecordFilter, error) {
	var f inventory.RecordFilter
	loc := h.Inventory.Location()
	q := r.URL.Query()

	var err error
	if f.From, err = parseBound("from", q.Get("from"), loc, false); err != nil {
		return f, err
	}
	if f.To, err = parseBound("to", q.Get("to"), loc, true); err != nil {
		return f, err
	}
	for _, t := range queryList(r, "type") {
		f.Types = append(f.Types, inventory.OperationType(t))
	}
	f.Actors = queryList(r, "actor")
	f.Search = q.Get("q")
	switch o := q.Get("order"); o {
	case "", string(inventory.SortDesc):
		f.Order = inventory.SortDesc
	case string(inventory.SortAsc):
		f.Order = inventory.SortAsc
	default:
		return f, &inventory.ValidationError{Field: "order", Message: "must be asc or desc"}
	}
	subject, err := queryInt(r, "subject_id", 0)
	if err != nil {
		return f, err
	}
	f.SubjectID = int64(subject)
	f.Page, err = queryPage(r)
	return f, err
}

func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	f, err := h.recordFilter(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	page, err := h.Inventory.ListRecords(r.Context(), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	loc := h.Inventory.Location()
	items := make([]RecordDTO, len(page.Records))
	for i, rec := range page.Records {
		items[i] = toRecordDTO(rec, loc)
	}
	limits := h.Inventory.Limits()
	f.Page = limits.Page(f.Page, limits.RecordsMax)
	writeOK(w, PageDTO{Items: items, Total: page.Total, Offset: f.Page.Offset, Limit: f.Page.Limit})
}

func (h *Handler) ExportRecords(w http.ResponseWriter, r *http.Request) {
	f, err := h.recordFilter(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	recs, err := h.Inventory.AllRecords(r.Context(), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteRecords(&buf, recs, h.Inventory.Location()); err != nil {
		h.writeError(w, r, err)
		return
	}
	attachment(w, export.ContentType, "records.xlsx")
	w.Write(buf.Bytes())
}

// ExportAll writes materials, products, records and users into one workbook.
func (h *Handler) ExportAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var d export.Dump
	var err error
	if d.Materials, err = h.Inventory.AllMaterials(ctx); err != nil {
		h.writeError(w, r, err)
		return
	}
	if d.Products, err = h.Inventory.AllProducts(ctx); err != nil {
		h.writeError(w, r, err)
		return
	}
	if d.Records, err = h.Inventory.AllRecords(ctx, inventory.RecordFilter{}); err != nil {
		h.writeError(w, r, err)
		return
	}
	if d.Users, err = h.Accounts.ListUsers(ctx); err != nil {
		h.writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteAll(&buf, d, h.Inventory.Location()); err != nil {
		h.writeError(w, r, err)
		return
	}
	attachment(w, export.ContentType, "inventory.xlsx")
	w.Write(buf.Bytes())
}

// ClearRecords empties the audit log.
func (h *Handler) ClearRecords(w http.ResponseWriter, r *http.Request) {
	n, err := h.Inventory.ClearRecords(r.Context(), actor(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, DeletedDTO{Deleted: n})
}

// DeleteRecords removes the records matching the query filter.
func (h *Handler) DeleteRecords(w http.ResponseWriter, r *http.Request) {
	f, err := h.recordFilter(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	n, err := h.Inventory.DeleteRecords(r.Context(), actor(r), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, DeletedDTO{Deleted: n})
}

// =============================================================================
// STATISTICS
// =============================================================================

func statsKind(r *http.Request) inventory.SubjectKind {
	if k := r.URL.Query().Get("kind"); k != "" {
		return inventory.SubjectKind(k)
	}
	return inventory.SubjectMaterial
}

func (h *Handler) Trend(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", inventory.DefaultWindowDays)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := queryInt(r, "id", 0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	points, err := h.Inventory.Trend(r.Context(), statsKind(r), int64(id), days)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]TrendPointDTO, len(points))
	for i, p := range points {
		out[i] = TrendPointDTO{Day: p.Day, Quantity: p.Quantity}
	}
	writeOK(w, out)
}

func (h *Handler) TopMovers(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", inventory.DefaultWindowDays)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	movers, err := h.Inventory.TopMovers(r.Context(), statsKind(r), limit, days)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]MoverDTO, len(movers))
	for i, m := range movers {
		out[i] = MoverDTO{ID: m.SubjectID, Name: m.Name, Quantity: m.Quantity}
	}
	writeOK(w, out)
}

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	s, err := h.Inventory.Summary(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, SummaryDTO{
		MaterialCount: s.MaterialCount,
		MaterialStock: s.MaterialStock,
		ProductCount:  s.ProductCount,
		ProductStock:  s.ProductStock,
		StockValue:    money(s.StockValue),
	})
}
