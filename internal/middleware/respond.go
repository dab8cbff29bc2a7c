// Package middleware holds the chi middleware chain of the wallet API.
package middleware

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/Proton-105/himera-wallet/internal/errors"
	"github.com/Proton-105/himera-wallet/pkg/logger"
)

// ErrorBody is the JSON shape of every failed response.
type ErrorBody struct {
	Detail        string `json:"detail"`
	Code          string `json:"code"`
	Reason        string `json:"reason"`
	Retryable     bool   `json:"retryable,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError logs err through h and writes the translated outcome.
func WriteError(w http.ResponseWriter, r *http.Request, h *apperrors.Handler, err error) {
	out := h.Handle(r.Context(), err)
	WriteJSON(w, out.Status, ErrorBody{
		Detail:        out.UserMessage,
		Code:          out.Code,
		Reason:        out.Reason,
		Retryable:     out.Retryable,
		CorrelationID: logger.CorrelationIDFromContext(r.Context()),
	})
}
