package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/StarShopCr/escrowd/escrow"
)

// statusFromError maps engine errors to HTTP status codes. Unknown errors
// collapse to 500 without leaking internals.
func statusFromError(err error) int {
	switch {
	case errors.Is(err, escrow.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, escrow.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, escrow.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, escrow.ErrConflict), errors.Is(err, escrow.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, escrow.ErrUpstreamFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFromError(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "err", err)
		message = "internal error"
	}
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
