package logger

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskingHandlerMasksSensitiveKeys(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewMaskingHandler(slog.NewTextHandler(&buf, nil)))

	log.Info("saving payment method",
		slog.String("user_id", "u1"),
		slog.String("account_number", "1234567890"),
		slog.String("Token", "abc"),
	)

	out := buf.String()
	assert.Contains(t, out, "user_id=u1")
	assert.Contains(t, out, "account_number=***7890")
	assert.Contains(t, out, "Token=***")
	assert.NotContains(t, out, "1234567890")
}

func TestMaskingHandlerMasksGroupsAndBoundAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewMaskingHandler(slog.NewTextHandler(&buf, nil))).
		With(slog.String("password", "hunter2"))

	log.Info("payout", slog.Group("upi", slog.String("upi_id", "ab@upi")))

	out := buf.String()
	assert.Contains(t, out, "password=***")
	assert.Contains(t, out, "upi.upi_id=***")
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "ab@upi")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestMiddlewareCorrelationID(t *testing.T) {
	var seen string
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CorrelationIDFromContext(r.Context())
	}))

	t.Run("reuses incoming request id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "req-42")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, "req-42", seen)
		assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))
	})

	t.Run("generates one when absent", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		require.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
	})
}

func TestCorrelationIDFromEmptyContext(t *testing.T) {
	assert.Empty(t, CorrelationIDFromContext(context.Background()))
}
