package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/warp/pos-engine/pos"
	"github.com/warp/pos-engine/store/sqlstore"
)

// IdempotencyHeader may carry the idempotency key instead of the body.
const IdempotencyHeader = "Idempotency-Key"

// loyaltyHistory is how many ledger entries GET /customers/{id}/loyalty returns.
const loyaltyHistory = 20

// =============================================================================
// CUSTOMER HANDLERS
// =============================================================================

// ListCustomers supports ?search=, ?tier=, ?active= and pagination.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
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
	tier := pos.Tier(r.URL.Query().Get("tier"))
	if tier != "" && tier.Rank() < 0 {
		h.writeError(w, r, &pos.ValidationError{Field: "tier", Reason: "must be one of bronze, silver, gold, platinum"})
		return
	}
	customers, err := h.Store.ListCustomers(r.Context(), sqlstore.CustomerFilter{
		Search: r.URL.Query().Get("search"),
		Tier:   tier,
		Active: active,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	dtos := make([]CustomerDTO, len(customers))
	for i, c := range customers {
		dtos[i] = toCustomerDTO(c)
	}
	writeJSON(w, http.StatusOK, Page[CustomerDTO]{Items: dtos, Limit: limit, Offset: offset})
}

func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := h.Store.GetCustomer(r.Context(), pos.CustomerID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerDTO(*c))
}

// CreateCustomer registers a customer at the counter. New customers start
// with zero points in the bronze tier.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CustomerRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	c := &pos.Customer{Name: req.Name, Email: req.Email, Phone: req.Phone, Active: true}
	if req.Active != nil {
		c.Active = *req.Active
	}
	if err := c.Validate(); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Store.CreateCustomer(r.Context(), c); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCustomerDTO(*c))
}

func (h *Handler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CustomerRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := h.Store.GetCustomer(r.Context(), pos.CustomerID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	c.Name, c.Email, c.Phone = req.Name, req.Email, req.Phone
	if req.Active != nil {
		c.Active = *req.Active
	}
	if err := c.Validate(); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Store.UpdateCustomer(r.Context(), c); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerDTO(*c))
}

func (h *Handler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	soft, err := h.Store.DeleteCustomer(r.Context(), pos.CustomerID(id))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{ID: id, Soft: soft})
}

// =============================================================================
// LOYALTY HANDLERS
// =============================================================================

// GetLoyalty returns the balance, tier and recent ledger entries.
func (h *Handler) GetLoyalty(w http.ResponseWriter, r *http.Request) {
	id := pos.CustomerID(chi.URLParam(r, "id"))
	c, err := h.Store.GetCustomer(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	entries, err := h.Store.ListLoyaltyEntries(r.Context(), id, loyaltyHistory)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	dto := LoyaltyDTO{
		CustomerID:    string(c.ID),
		LoyaltyPoints: c.LoyaltyPoints,
		Tier:          string(c.Tier),
		PointValue:    h.Engine.Calculator().PointValue.String(),
		Entries:       make([]LoyaltyEntryDTO, len(entries)),
	}
	for i, e := range entries {
		dto.Entries[i] = LoyaltyEntryDTO{
			ID:          e.ID,
			Kind:        string(e.Kind),
			Points:      e.Points,
			Balance:     e.Balance,
			ReferenceID: e.ReferenceID,
			Reason:      e.Reason,
			CreatedAt:   e.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, dto)
}

func (h *Handler) GrantPoints(w http.ResponseWriter, r *http.Request) {
	h.adjustPoints(w, r, h.Engine.GrantPoints)
}

func (h *Handler) RedeemPoints(w http.ResponseWriter, r *http.Request) {
	h.adjustPoints(w, r, h.Engine.RedeemPoints)
}

type pointsFunc func(ctx context.Context, id pos.CustomerID, points int64, ref pos.Ref) (*pos.Customer, error)

func (h *Handler) adjustPoints(w http.ResponseWriter, r *http.Request, fn pointsFunc) {
	var req PointsRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	ref := pos.Ref{
		ID:             string(principal(r).UserID),
		IdempotencyKey: req.IdempotencyKey,
		Reason:         req.Reason,
	}
	if ref.IdempotencyKey == "" {
		ref.IdempotencyKey = r.Header.Get(IdempotencyHeader)
	}
	c, err := fn(r.Context(), pos.CustomerID(chi.URLParam(r, "id")), req.Points, ref)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerDTO(*c))
}
