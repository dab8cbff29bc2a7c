package middleware

import (
	"context"
	"net/http"
	"strings"

	apperrors "github.com/Proton-105/himera-wallet/internal/errors"
)

// UserIDHeader is set by the upstream identity gateway.
const UserIDHeader = "X-User-ID"

type userIDKey struct{}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFromContext returns the authenticated caller, or "".
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey{}).(string)
	return id
}

// Identity rejects requests without a caller id and stores it in the context.
func Identity(h *apperrors.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
			if userID == "" || len(userID) > 128 {
				WriteError(w, r, h, apperrors.ErrUnauthenticated)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}
