package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-shop-orders/internal/apperr"
	"github.com/ariefcatur/go-shop-orders/internal/logx"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Opinion *orders.Opinion `json:"opinion,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: msg})
}

var errorKinds = []struct {
	kind   error
	status int
	code   string
}{
	{apperr.ErrValidation, http.StatusBadRequest, "validation_error"},
	{apperr.ErrNotFound, http.StatusNotFound, "not_found"},
	{apperr.ErrInvalidTransition, http.StatusBadRequest, "invalid_transition"},
	{apperr.ErrForbidden, http.StatusForbidden, "forbidden"},
	{apperr.ErrConflict, http.StatusConflict, "conflict"},
	{apperr.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
}

// writeAppError maps a service error onto a response. Anything that is not a
// business error is logged and answered with a generic 500.
func writeAppError(w http.ResponseWriter, r *http.Request, log *logrus.Entry, err error) {
	var exists *orders.OpinionExistsError
	if errors.As(err, &exists) {
		op := exists.Opinion
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: "conflict", Message: exists.Error(), Opinion: &op})
		return
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.kind) {
			writeError(w, k.status, k.code, apperr.Reason(err))
			return
		}
	}
	logx.FromContext(r.Context(), log).WithError(err).
		WithFields(logrus.Fields{"method": r.Method, "path": r.URL.Path}).
		Error("request failed")
	writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}
