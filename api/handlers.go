/*
handlers.go - HTTP API handlers for the POS back office

PURPOSE:
  Exposes the sale engine and the catalog via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to package pos
  (sales, refunds, loyalty) or the store (catalog CRUD, reports).

ENDPOINTS:
  Users (admin):         GET/POST /api/users, DELETE /api/users/{id}
  Categories:            /api/categories
  Products:              /api/products, /low-stock, /{id}/stock
  Customers:             /api/customers, /{id}/loyalty
  Transactions:          /api/transactions, /number/{number},
                         /{id}/status, /{id}/refund, /{id}/receipt-printed
  Reports:               /api/reports/daily-sales, /top-products,
                         /transaction-stats

REQUEST FLOW:
  1. Identity middleware resolves the caller (X-User-ID)
  2. Parse and validate input
  3. Call the engine or the store
  4. Serialize response
  5. Map errors by kind (see errors.go)

SEE ALSO:
  - dto.go: Request/response data structures
  - seed.go: Demo data loader
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/warp/pos-engine/pos"
	"github.com/warp/pos-engine/store/sqlstore"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store  *sqlstore.Store
	Engine *pos.Engine
	Log    zerolog.Logger
}

// NewHandler creates a handler over store and engine.
func NewHandler(store *sqlstore.Store, engine *pos.Engine, log zerolog.Logger) *Handler {
	return &Handler{Store: store, Engine: engine, Log: log}
}

// =============================================================================
// REQUEST HELPERS
// =============================================================================

// decode reads a JSON body into v. Malformed JSON is a validation error.
// MaxBodyBytes caps request bodies; the router enforces it.
const MaxBodyBytes = 1 << 20

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &pos.ValidationError{Field: "body", Reason: fmt.Sprintf("must be at most %d bytes", tooLarge.Limit)}
		}
		return &pos.ValidationError{Field: "body", Reason: "invalid JSON: " + err.Error()}
	}
	return nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, &pos.ValidationError{Field: name, Reason: "must be a non-negative integer"}
	}
	return n, nil
}

func queryBool(r *http.Request, name string) (*bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, &pos.ValidationError{Field: name, Reason: "must be true or false"}
	}
	return &b, nil
}

// queryDate parses a YYYY-MM-DD parameter as a UTC day.
func queryDate(r *http.Request, name string) (time.Time, bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, false, nil
	}
	d, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, false, &pos.ValidationError{Field: name, Reason: "must be a date (YYYY-MM-DD)"}
	}
	return d, true, nil
}

// pageParams reads limit and offset.
func pageParams(r *http.Request) (limit, offset int, err error) {
	if limit, err = queryInt(r, "limit", sqlstore.DefaultLimit); err != nil {
		return 0, 0, err
	}
	if offset, err = queryInt(r, "offset", 0); err != nil {
		return 0, 0, err
	}
	return min(limit, sqlstore.MaxLimit), offset, nil
}

// dateRange reads from/to as an inclusive day range and returns [from, to+1day).
// Missing bounds default to the last 30 days ending today.
func (h *Handler) dateRange(r *http.Request) (time.Time, time.Time, error) {
	today, _ := pos.DayBounds(h.now())
	from, hasFrom, err := queryDate(r, "from")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, hasTo, err := queryDate(r, "to")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !hasTo {
		to = today
	}
	if !hasFrom {
		from = to.AddDate(0, 0, -29)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, &pos.ValidationError{Field: "to", Reason: "must not be before from"}
	}
	return from, to.AddDate(0, 0, 1), nil
}

func (h *Handler) now() time.Time {
	return h.Engine.Now()
}

func principal(r *http.Request) Principal {
	p, _ := PrincipalFrom(r.Context())
	return p
}

// =============================================================================
// HEALTH
// =============================================================================

// Health reports database connectivity.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		h.Log.Error().Err(err).Msg("health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"database": h.Store.Driver(),
		"time":     h.now().Format(time.RFC3339),
	})
}

// =============================================================================
// USER HANDLERS
// =============================================================================

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Store.ListUsers(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	dtos := make([]UserDTO, len(users))
	for i, u := range users {
		dtos[i] = toUserDTO(u)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	u := &pos.User{
		ID:        pos.UserID(req.ID),
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      pos.Role(req.Role),
		Active:    true,
	}
	if u.Role == "" {
		u.Role = pos.RoleCashier
	}
	if err := u.Validate(); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Store.CreateUser(r.Context(), u); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.Log.Info().Str("user_id", string(u.ID)).Str("role", string(u.Role)).
		Str("by", string(principal(r).UserID)).Msg("user created")
	writeJSON(w, http.StatusCreated, toUserDTO(*u))
}

// Me returns the authenticated caller.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.Store.GetUser(r.Context(), principal(r).UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(*u))
}

func (h *Handler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	id := pos.UserID(chi.URLParam(r, "id"))
	if id == principal(r).UserID {
		h.writeError(w, r, &pos.ValidationError{Field: "id", Reason: "cannot deactivate yourself"})
		return
	}
	if err := h.Store.DeactivateUser(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{ID: string(id), Soft: true})
}

// =============================================================================
// CATEGORY HANDLERS
// =============================================================================

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	all, err := queryBool(r, "all")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	cats, err := h.Store.ListCategories(r.Context(), all == nil || !*all)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	dtos := make([]CategoryDTO, len(cats))
	for i, c := range cats {
		dtos[i] = toCategoryDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	c := &pos.Category{Name: req.Name, Description: req.Description, Color: req.Color, Active: true}
	if req.Active != nil {
		c.Active = *req.Active
	}
	if err := c.Validate(); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Store.CreateCategory(r.Context(), c); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCategoryDTO(*c))
}

func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id := pos.CategoryID(chi.URLParam(r, "id"))
	var req CategoryRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := h.Store.GetCategory(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	c.Name, c.Description, c.Color = req.Name, req.Description, req.Color
	if req.Active != nil {
		c.Active = *req.Active
	}
	if err := c.Validate(); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Store.UpdateCategory(r.Context(), c); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryDTO(*c))
}

func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	soft, err := h.Store.DeleteCategory(r.Context(), pos.CategoryID(id))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{ID: id, Soft: soft})
}

// notFound is used for chi's NotFound handler.
func notFound(w http.ResponseWriter, r *http.Request) {
	writeKind(w, pos.KindNotFound, fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path))
}
