package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/shop-api/internal/domain/auth"
)

// TokenCookie is the cookie that may carry the bearer token.
const TokenCookie = "jwt"

// Authenticator resolves the calling user from a bearer token.
type Authenticator struct {
	tokens *auth.Tokens
	users  auth.Repository
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(tokens *auth.Tokens, users auth.Repository) *Authenticator {
	return &Authenticator{tokens: tokens, users: users}
}

// RequireUser rejects requests without a valid token with 401. The user is
// loaded from the store on every request so that revoked users and changed
// admin flags take effect immediately.
func (a *Authenticator) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := tokenFromRequest(r)
		if raw == "" {
			writeError(w, http.StatusUnauthorized, "not authorized, no token")
			return
		}
		userID, err := a.tokens.Verify(raw)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "not authorized, token failed")
			return
		}

		ctx := r.Context()
		u, err := a.users.FindByID(ctx, userID)
		switch {
		case errors.Is(err, auth.ErrUserNotFound):
			writeError(w, http.StatusUnauthorized, "not authorized, token failed")
			return
		case err != nil:
			zctx.From(ctx).Error("Load user", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		ctx = auth.WithUser(ctx, u)
		ctx = zctx.With(ctx, zap.String("user_id", u.ID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin rejects non-admin users with 403. It must run after
// RequireUser.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := auth.UserFrom(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "not authorized")
			return
		}
		if !u.IsAdmin {
			writeError(w, http.StatusForbidden, "not authorized as an admin")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if c, err := r.Cookie(TokenCookie); err == nil {
		return c.Value
	}
	return ""
}

// currentUser returns the user stored by RequireUser.
func currentUser(r *http.Request) *auth.User {
	u, _ := auth.UserFrom(r.Context())
	return u
}
