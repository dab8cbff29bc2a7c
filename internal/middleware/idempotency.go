package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"time"

	apperrors "github.com/Proton-105/himera-wallet/internal/errors"
	"github.com/Proton-105/himera-wallet/internal/idempotency"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	ReplayedHeader       = "Idempotent-Replayed"
	idempotencyTTL       = 24 * time.Hour
)

// Idempotency makes mutating requests that carry an Idempotency-Key execute at
// most once per user and route. Repeats get the stored response back.
func Idempotency(manager idempotency.Manager, errs *apperrors.Handler, log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		if manager == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := r.Header.Get(IdempotencyKeyHeader)
			if clientKey == "" || r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}
			if len(clientKey) > 255 {
				WriteError(w, r, errs, apperrors.Wrap(apperrors.ErrInvalidRequest, "Idempotency-Key is too long"))
				return
			}

			key := idempotency.GenerateKey(UserIDFromContext(r.Context()), r.Method, r.URL.Path, clientKey)

			var header http.Header
			result, err := manager.Execute(r.Context(), key, idempotencyTTL, func(ctx context.Context) (*idempotency.Response, error) {
				rec := httptest.NewRecorder()
				next.ServeHTTP(rec, r.WithContext(ctx))
				header = rec.Header()
				return &idempotency.Response{Status: rec.Code, Body: rec.Body.Bytes()}, nil
			})
			if err != nil {
				if errors.Is(err, idempotency.ErrRequestInProgress) {
					WriteError(w, r, errs, apperrors.Wrap(apperrors.ErrUserLocked, "a request with this Idempotency-Key is still running"))
					return
				}
				log.ErrorContext(r.Context(), "idempotency store failed, serving without it", slog.Any("error", err))
				next.ServeHTTP(w, r)
				return
			}

			if result.FromCache {
				w.Header().Set(ReplayedHeader, "true")
				w.Header().Set("Content-Type", "application/json")
			} else {
				for k, values := range header {
					for _, v := range values {
						w.Header().Add(k, v)
					}
				}
			}

			w.WriteHeader(result.Response.Status)
			_, _ = w.Write(result.Response.Body)
		})
	}
}
