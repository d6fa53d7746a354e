package api

import (
	"net/http"

	"github.com/warp/pos-engine/pos"
)

const defaultTopProducts = 10

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// DailySales summarizes completed sales for ?date= (default today, UTC).
func (h *Handler) DailySales(w http.ResponseWriter, r *http.Request) {
	day, ok, err := queryDate(r, "date")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !ok {
		day = h.now()
	}
	summary, err := h.Store.DailySales(r.Context(), day)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// TopProducts ranks products by quantity sold over ?from=..?to=.
func (h *Handler) TopProducts(w http.ResponseWriter, r *http.Request) {
	from, to, err := h.dateRange(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", defaultTopProducts)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if limit == 0 {
		limit = defaultTopProducts
	}
	top, err := h.Store.TopProducts(r.Context(), from, to, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if top == nil {
		top = []pos.ProductSales{}
	}
	writeJSON(w, http.StatusOK, top)
}

// TransactionStats breaks transactions down by status and payment method.
func (h *Handler) TransactionStats(w http.ResponseWriter, r *http.Request) {
	from, to, err := h.dateRange(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	stats, err := h.Store.TransactionStats(r.Context(), from, to)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
