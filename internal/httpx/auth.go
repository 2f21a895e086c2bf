package httpx

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ariefcatur/go-shop-orders/internal/apperr"
	"github.com/ariefcatur/go-shop-orders/internal/auth"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// Authenticator turns bearer tokens into request identities.
type Authenticator struct {
	Auth *auth.Service
	Log  *logrus.Entry
}

func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(h, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}

		id, err := a.Auth.Verify(strings.TrimSpace(token))
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, auth.ErrExpiredToken) {
				msg = "token has expired"
			}
			writeError(w, http.StatusUnauthorized, "unauthorized", msg)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
	})
}

// RequireRole re-reads the caller's role from storage, so a demoted account
// loses access before its token expires. Must run after Authenticate.
func (a *Authenticator) RequireRole(role auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := auth.FromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}
			current, err := a.Auth.CurrentRole(r.Context(), id.UserID)
			if err != nil {
				if errors.Is(err, apperr.ErrNotFound) {
					writeError(w, http.StatusUnauthorized, "unauthorized", "user no longer exists")
					return
				}
				writeAppError(w, r, a.Log, err)
				return
			}
			if current != role {
				writeError(w, http.StatusForbidden, "forbidden", "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type AuthHandler struct {
	Auth          *auth.Service
	Authenticator *Authenticator
	Log           *logrus.Entry
}

func (h *AuthHandler) Register(r *chi.Mux) {
	r.Post("/login", h.login)
	r.With(h.Authenticator.Authenticate).Post("/refresh-token", h.refresh)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "request body must be valid JSON")
		return
	}
	resp, err := h.Auth.Login(r.Context(), req)
	if err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) refresh(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	resp, err := h.Auth.Refresh(id)
	if err != nil {
		writeAppError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
