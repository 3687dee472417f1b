package api

import (
	"bytes"
	"context"
	"net/http"

	"github.com/warp/inventory-engine/export"
	"github.com/warp/inventory-engine/inventory"
)

// =============================================================================
// MATERIAL HANDLERS
// =============================================================================

func (h *Handler) ListMaterials(w http.ResponseWriter, r *http.Request) {
	page, err := queryPage(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.Inventory.ListMaterials(r.Context(), page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items := make([]MaterialDTO, len(res.Materials))
	for i, m := range res.Materials {
		items[i] = toMaterialDTO(m)
	}
	page = h.Inventory.Limits().Page(page, h.Inventory.Limits().PageMax)
	writeOK(w, PageDTO{Items: items, Total: res.Total, Offset: page.Offset, Limit: page.Limit})
}

func (h *Handler) GetMaterial(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	m, err := h.Inventory.GetMaterial(r.Context(), inventory.MaterialID(id))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, toMaterialDTO(m))
}

func (h *Handler) CreateMaterial(w http.ResponseWriter, r *http.Request) {
	var req CreateMaterialRequest
	if !decode(w, r, &req) {
		return
	}
	id, err := h.Inventory.AddMaterial(r.Context(), actor(r), inventory.NewMaterial{
		Name:     req.Name,
		InPrice:  req.InPrice,
		OutPrice: req.OutPrice,
		ImageRef: req.ImageRef,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	m, err := h.Inventory.GetMaterial(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeCreated(w, toMaterialDTO(m))
}

func (h *Handler) UpdateMaterial(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req UpdateMaterialRequest
	if !decode(w, r, &req) {
		return
	}
	changed, err := h.Inventory.UpdateMaterial(r.Context(), actor(r), inventory.MaterialID(id), inventory.MaterialUpdate{
		Name:     req.Name,
		InPrice:  req.InPrice,
		OutPrice: req.OutPrice,
		ImageRef: req.ImageRef,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	m, err := h.Inventory.GetMaterial(r.Context(), inventory.MaterialID(id))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, map[string]any{"material": toMaterialDTO(m), "price_changed": changed})
}

func (h *Handler) DeleteMaterial(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.Inventory.DeleteMaterial(r.Context(), actor(r), inventory.MaterialID(id)); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, map[string]int64{"deleted": id})
}

func (h *Handler) BatchDeleteMaterials(w http.ResponseWriter, r *http.Request) {
	var req BatchDeleteRequest
	if !decode(w, r, &req) {
		return
	}
	ids := make([]inventory.MaterialID, len(req.IDs))
	for i, id := range req.IDs {
		ids[i] = inventory.MaterialID(id)
	}
	writeOK(w, toBatchDTO(h.Inventory.BatchDeleteMaterials(r.Context(), actor(r), ids)))
}

// =============================================================================
// STOCK
// =============================================================================

func (h *Handler) MaterialInbound(w http.ResponseWriter, r *http.Request) {
	h.materialMovement(w, r, h.Inventory.MaterialInbound)
}

func (h *Handler) MaterialOutbound(w http.ResponseWriter, r *http.Request) {
	h.materialMovement(w, r, h.Inventory.MaterialOutbound)
}

type materialMove func(ctx context.Context, actor string, id inventory.MaterialID, qty int, partner string) error

func (h *Handler) materialMovement(w http.ResponseWriter, r *http.Request, move materialMove) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req MovementRequest
	if !decode(w, r, &req) {
		return
	}
	mid := inventory.MaterialID(id)
	if err := move(r.Context(), actor(r), mid, req.Quantity, req.Partner); err != nil {
		h.writeError(w, r, err)
		return
	}
	n, err := h.Inventory.MaterialStock(r.Context(), mid)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, StockDTO{ID: id, Stock: n})
}

func (h *Handler) MaterialStock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	n, err := h.Inventory.MaterialStock(r.Context(), inventory.MaterialID(id))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, StockDTO{ID: id, Stock: n})
}

// PriceImpact previews which products a candidate price would reprice.
func (h *Handler) PriceImpact(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req PriceCandidateRequest
	if !decode(w, r, &req) {
		return
	}
	impact, err := h.Inventory.PreviewPriceImpact(r.Context(), inventory.MaterialID(id), req.InPrice, req.OutPrice)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, toImpactDTO(impact))
}

// =============================================================================
// SPREADSHEETS
// =============================================================================

// ImportMaterials reads the "file" part of a multipart upload.
func (h *Handler) ImportMaterials(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	file, _, err := r.FormFile("file")
	if err != nil {
		badRequest(w, "file", "missing xlsx upload")
		return
	}
	defer file.Close()

	rows, bad, err := export.ReadMaterials(file)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.Inventory.ImportMaterials(r.Context(), actor(r), rows)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res.Failed = append(bad, res.Failed...)
	writeOK(w, toImportDTO(res))
}

func (h *Handler) ImportTemplate(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := export.WriteImportTemplate(&buf); err != nil {
		h.writeError(w, r, err)
		return
	}
	attachment(w, export.ContentType, "materials_template.xlsx")
	w.Write(buf.Bytes())
}

func (h *Handler) ExportMaterials(w http.ResponseWriter, r *http.Request) {
	mats, err := h.Inventory.AllMaterials(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteMaterials(&buf, mats, h.Inventory.Location()); err != nil {
		h.writeError(w, r, err)
		return
	}
	attachment(w, export.ContentType, "materials.xlsx")
	w.Write(buf.Bytes())
}
