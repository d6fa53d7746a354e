package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/warp/pos-engine/pos"
	"github.com/warp/pos-engine/store/sqlstore"
)

// =============================================================================
// PRODUCT HANDLERS
// =============================================================================

// ListProducts supports ?search=, ?categoryId=, ?active= and pagination.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	active, err := queryBool(r, "active")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	products, err := h.Store.ListProducts(r.Context(), sqlstore.ProductFilter{
		Search:     q.Get("search"),
		CategoryID: pos.CategoryID(q.Get("categoryId")),
		Active:     active,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Page[ProductDTO]{Items: productDTOs(products), Limit: limit, Offset: offset})
}

func (h *Handler) LowStockProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Store.LowStockProducts(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, productDTOs(products))
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.Store.GetProduct(r.Context(), pos.ProductID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(*p))
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	p := &pos.Product{
		Name:        req.Name,
		Description: req.Description,
		SKU:         req.SKU,
		Barcode:     req.Barcode,
		CategoryID:  pos.CategoryID(req.CategoryID),
		Price:       req.Price,
		Cost:        req.Cost,
		Stock:       req.Stock,
		MinStock:    pos.DefaultMinStock,
		Active:      true,
	}
	if req.MinStock != nil {
		p.MinStock = *req.MinStock
	}
	if req.Active != nil {
		p.Active = *req.Active
	}
	if err := p.Validate(); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Store.CreateProduct(r.Context(), p); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductDTO(*p))
}

// UpdateProduct replaces the editable fields. Stock is left untouched.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	p, err := h.Store.GetProduct(r.Context(), pos.ProductID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	p.Name = req.Name
	p.Description = req.Description
	p.SKU = req.SKU
	p.Barcode = req.Barcode
	p.CategoryID = pos.CategoryID(req.CategoryID)
	p.Price = req.Price
	p.Cost = req.Cost
	if req.MinStock != nil {
		p.MinStock = *req.MinStock
	}
	if req.Active != nil {
		p.Active = *req.Active
	}
	if err := p.Validate(); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Store.UpdateProduct(r.Context(), p); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(*p))
}

// AdjustStock applies {operation: set|add|subtract, quantity}.
func (h *Handler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	var req StockRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	p, err := h.Engine.AdjustStock(r.Context(), pos.ProductID(chi.URLParam(r, "id")), pos.StockOp(req.Operation), req.Quantity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(*p))
}

// DeleteProduct removes a product, or deactivates it when it has sales.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	soft, err := h.Store.DeleteProduct(r.Context(), pos.ProductID(id))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{ID: id, Soft: soft})
}

func productDTOs(products []pos.Product) []ProductDTO {
	dtos := make([]ProductDTO, len(products))
	for i, p := range products {
		dtos[i] = toProductDTO(p)
	}
	return dtos
}
