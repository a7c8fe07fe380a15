package http

import (
	"errors"
	"net/http"

	"custody-backend/internal/domain"
	"custody-backend/internal/logger"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Committed *int   `json:"committed,omitempty"`
	Total     *int   `json:"total,omitempty"`
}

func statusFor(kind string) int {
	switch kind {
	case "NotFound":
		return http.StatusNotFound
	case "InvalidState", "OwnershipMismatch", "DuplicateCode":
		return http.StatusConflict
	case "QuantityExceeded":
		return http.StatusUnprocessableEntity
	case "PartialBatchFailure":
		return http.StatusMultiStatus
	case "InvalidInput":
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// respondError maps the error taxonomy onto a status code. Internal errors
// are logged and their detail is not sent to the caller.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.Kind(err)
	status := statusFor(kind)
	body := ErrorResponse{Error: kind, Message: err.Error()}

	var partial *domain.PartialBatchError
	if errors.As(err, &partial) {
		body.Committed = &partial.Committed
		body.Total = &partial.Total
	}

	switch {
	case status == http.StatusInternalServerError:
		logger.ErrorContext(r.Context(), "Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		body.Message = "internal server error"
	case status == http.StatusMultiStatus:
		logger.Warn("Request partially applied", "method", r.Method, "path", r.URL.Path, "error", err)
	default:
		logger.Debug("Request rejected", "method", r.Method, "path", r.URL.Path, "kind", kind, "error", err)
	}
	h.respond(w, body, status)
}
