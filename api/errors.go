package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/warp/shopledger/ledger"
	"go.uber.org/zap"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

const internalErrorMessage = "internal server error"

func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrValidation), errors.Is(err, ledger.ErrInsufficientStock):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ledger.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrConflict), errors.Is(err, ledger.ErrConcurrentModification):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err to a status. Server faults are logged in full and
// the client only sees a generic message. Authentication failures all read
// the same; the token parser's reason goes to the debug log.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
		writeJSON(w, status, ErrorResponse{Error: internalErrorMessage})
		return
	}

	if status == http.StatusUnauthorized {
		h.log.Debug("request unauthenticated",
			zap.Error(err),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
		writeJSON(w, status, ErrorResponse{Error: ledger.ErrUnauthenticated.Error()})
		return
	}

	resp := ErrorResponse{Error: err.Error()}
	var ve *ledger.ValidationError
	if errors.As(err, &ve) {
		resp.Field = ve.Field
	}
	writeJSON(w, status, resp)
}
