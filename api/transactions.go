package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/warp/pos-engine/pos"
	"github.com/warp/pos-engine/store/sqlstore"
)

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// ListTransactions supports ?status=, ?paymentMethod=, ?userId=,
// ?customerId=, ?from=, ?to= (YYYY-MM-DD, inclusive) and pagination.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	f := sqlstore.TransactionFilter{
		Status:        pos.Status(q.Get("status")),
		PaymentMethod: pos.PaymentMethod(q.Get("paymentMethod")),
		UserID:        pos.UserID(q.Get("userId")),
		CustomerID:    pos.CustomerID(q.Get("customerId")),
		Limit:         limit,
		Offset:        offset,
	}
	if f.Status != "" && !f.Status.Valid() {
		h.writeError(w, r, &pos.ValidationError{Field: "status", Reason: "unknown status"})
		return
	}
	if f.PaymentMethod != "" && !f.PaymentMethod.Valid() {
		h.writeError(w, r, &pos.ValidationError{Field: "paymentMethod", Reason: "unknown payment method"})
		return
	}
	from, hasFrom, err := queryDate(r, "from")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	to, hasTo, err := queryDate(r, "to")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if hasFrom {
		f.From = from
	}
	if hasTo {
		f.To = to.AddDate(0, 0, 1)
	}

	txns, err := h.Store.ListTransactions(r.Context(), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	dtos := make([]TransactionDTO, len(txns))
	for i, t := range txns {
		dtos[i] = toTransactionDTO(t)
	}
	writeJSON(w, http.StatusOK, Page[TransactionDTO]{Items: dtos, Limit: limit, Offset: offset})
}

func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := h.Store.GetTransaction(r.Context(), pos.TransactionID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(*t))
}

func (h *Handler) GetTransactionByNumber(w http.ResponseWriter, r *http.Request) {
	t, err := h.Store.GetTransactionByNumber(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(*t))
}

// CreateSale runs the sale workflow with the caller as cashier.
func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	var req CreateSaleRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	sale := pos.SaleRequest{
		UserID:         principal(r).UserID,
		CustomerID:     pos.CustomerID(req.CustomerID),
		Items:          make([]pos.SaleItem, len(req.Items)),
		PaymentMethod:  pos.PaymentMethod(req.PaymentMethod),
		Discount:       req.Discount,
		PointsToRedeem: req.PointsToRedeem,
		Notes:          req.Notes,
	}
	for i, item := range req.Items {
		sale.Items[i] = pos.SaleItem{ProductID: pos.ProductID(item.ProductID), Quantity: item.Quantity}
	}

	t, err := h.Engine.CreateSale(r.Context(), sale)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(*t))
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	t, err := h.Engine.UpdateStatus(r.Context(), pos.TransactionID(chi.URLParam(r, "id")), pos.Status(req.Status), req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(*t))
}

func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	var req RefundRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	refund := pos.RefundRequest{
		Amount:  req.Amount,
		Reason:  req.Reason,
		Items:   make([]pos.RefundItem, len(req.Items)),
		Restock: req.Restock,
	}
	for i, item := range req.Items {
		refund.Items[i] = pos.RefundItem{LineID: pos.LineID(item.LineID), Quantity: item.Quantity}
	}

	t, err := h.Engine.ProcessRefund(r.Context(), pos.TransactionID(chi.URLParam(r, "id")), refund)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(*t))
}

func (h *Handler) MarkReceiptPrinted(w http.ResponseWriter, r *http.Request) {
	t, err := h.Engine.MarkReceiptPrinted(r.Context(), pos.TransactionID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(*t))
}
