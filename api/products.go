package api

import (
	"bytes"
	"net/http"

	"github.com/warp/inventory-engine/export"
	"github.com/warp/inventory-engine/inventory"
)

// =============================================================================
// PRODUCT HANDLERS
// =============================================================================

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	page, err := queryPage(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.Inventory.ListProducts(r.Context(), page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items := make([]ProductDTO, len(res.Products))
	for i, v := range res.Products {
		items[i] = toProductDTO(v)
	}
	page = h.Inventory.Limits().Page(page, h.Inventory.Limits().PageMax)
	writeOK(w, PageDTO{Items: items, Total: res.Total, Offset: page.Offset, Limit: page.Limit})
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	h.respondProduct(w, r, http.StatusOK, inventory.ProductID(id))
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if !decode(w, r, &req) {
		return
	}
	id, err := h.Inventory.AddProduct(r.Context(), actor(r), inventory.NewProduct{
		Name:       req.Name,
		BOM:        req.BOM,
		InPrice:    req.InPrice,
		OutPrice:   req.OutPrice,
		OtherPrice: req.OtherPrice,
		ImageRef:   req.ImageRef,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respondProduct(w, r, http.StatusCreated, id)
}

func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req UpdateProductRequest
	if !decode(w, r, &req) {
		return
	}
	pid := inventory.ProductID(id)
	err := h.Inventory.UpdateProduct(r.Context(), actor(r), pid, inventory.ProductUpdate{
		Name:       req.Name,
		BOM:        req.BOM,
		InPrice:    req.InPrice,
		OutPrice:   req.OutPrice,
		OtherPrice: req.OtherPrice,
		ImageRef:   req.ImageRef,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respondProduct(w, r, http.StatusOK, pid)
}

func (h *Handler) respondProduct(w http.ResponseWriter, r *http.Request, status int, id inventory.ProductID) {
	v, err := h.Inventory.GetProduct(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, status, Result{Success: true, Data: toProductDTO(v)})
}

func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.Inventory.DeleteProduct(r.Context(), actor(r), inventory.ProductID(id)); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, map[string]int64{"deleted": id})
}

func (h *Handler) BatchDeleteProducts(w http.ResponseWriter, r *http.Request) {
	var req BatchDeleteRequest
	if !decode(w, r, &req) {
		return
	}
	ids := make([]inventory.ProductID, len(req.IDs))
	for i, id := range req.IDs {
		ids[i] = inventory.ProductID(id)
	}
	writeOK(w, toBatchDTO(h.Inventory.BatchDeleteProducts(r.Context(), actor(r), ids)))
}

// =============================================================================
// STOCK
// =============================================================================

// ProductInbound assembles units from materials.
func (h *Handler) ProductInbound(w http.ResponseWriter, r *http.Request) {
	h.productMovement(w, r, func(req MovementRequest, id inventory.ProductID) error {
		return h.Inventory.ProductInbound(r.Context(), actor(r), id, req.Quantity, req.Partner)
	})
}

func (h *Handler) ProductOutbound(w http.ResponseWriter, r *http.Request) {
	h.productMovement(w, r, func(req MovementRequest, id inventory.ProductID) error {
		return h.Inventory.ProductOutbound(r.Context(), actor(r), id, req.Quantity, req.Partner)
	})
}

// ProductRestore disassembles units back into materials.
func (h *Handler) ProductRestore(w http.ResponseWriter, r *http.Request) {
	h.productMovement(w, r, func(req MovementRequest, id inventory.ProductID) error {
		return h.Inventory.ProductRestore(r.Context(), actor(r), id, req.Quantity, req.Reason)
	})
}

func (h *Handler) productMovement(w http.ResponseWriter, r *http.Request, move func(MovementRequest, inventory.ProductID) error) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req MovementRequest
	if !decode(w, r, &req) {
		return
	}
	pid := inventory.ProductID(id)
	if err := move(req, pid); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respondProduct(w, r, http.StatusOK, pid)
}

func (h *Handler) ProductStock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	n, err := h.Inventory.ProductStock(r.Context(), inventory.ProductID(id))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, StockDTO{ID: id, Stock: n})
}

func (h *Handler) ExportProducts(w http.ResponseWriter, r *http.Request) {
	views, err := h.Inventory.AllProducts(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteProducts(&buf, views, h.Inventory.Location()); err != nil {
		h.writeError(w, r, err)
		return
	}
	attachment(w, export.ContentType, "products.xlsx")
	w.Write(buf.Bytes())
}
