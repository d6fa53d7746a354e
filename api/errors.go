package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/warp/pos-engine/pos"
)

// Error kinds that exist only at the HTTP edge.
const (
	kindUnauthorized pos.Kind = "unauthorized"
	kindForbidden    pos.Kind = "forbidden"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error ErrorDTO `json:"error"`
}

type ErrorDTO struct {
	Kind    pos.Kind `json:"kind"`
	Message string   `json:"message"`
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind pos.Kind) int {
	switch kind {
	case pos.KindValidation:
		return http.StatusBadRequest
	case pos.KindNotFound:
		return http.StatusNotFound
	case pos.KindConflict:
		return http.StatusConflict
	case kindUnauthorized:
		return http.StatusUnauthorized
	case kindForbidden:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeKind(w http.ResponseWriter, kind pos.Kind, message string) {
	writeJSON(w, statusFor(kind), ErrorBody{Error: ErrorDTO{Kind: kind, Message: message}})
}

// writeError classifies err and writes it. Internal errors are logged and
// their detail is never sent to the client.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := pos.KindOf(err)
	if kind == pos.KindInternal {
		h.Log.Error().Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeKind(w, kind, "internal server error")
		return
	}
	var constraint interface{ Cause() error }
	if errors.As(err, &constraint) {
		h.Log.Warn().Err(constraint.Cause()).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("constraint violation")
	}
	writeKind(w, kind, err.Error())
}
