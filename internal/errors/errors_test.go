package errors

import (
	"context"
	stdErrors "errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap_PreservesIdentity(t *testing.T) {
	err := Wrap(ErrInsufficientFunds, "need %d more", 5)

	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, CodeInsufficientFunds, err.Code)
	assert.Equal(t, "Insufficient balance: need 5 more", err.Error())
	assert.Equal(t, "need 5 more", err.UserMessage)
}

func TestAppError_HTTPStatus(t *testing.T) {
	testCases := []struct {
		name   string
		err    *AppError
		status int
	}{
		{name: "validation", err: ErrInvalidAmount, status: http.StatusBadRequest},
		{name: "funds", err: ErrInsufficientBalance, status: http.StatusBadRequest},
		{name: "not found", err: ErrGiftNotFound, status: http.StatusNotFound},
		{name: "precondition", err: ErrDailyLimitReached, status: http.StatusConflict},
		{name: "lock", err: ErrUserLocked, status: http.StatusConflict},
		{name: "database", err: NewDatabaseError(io.EOF), status: http.StatusInternalServerError},
		{name: "upstream", err: NewExternalAPIError("telegram", io.EOF), status: http.StatusServiceUnavailable},
		{name: "rate limit", err: NewRateLimitError(3), status: http.StatusTooManyRequests},
		{name: "unauthenticated", err: ErrUnauthenticated, status: http.StatusUnauthorized},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.status, tc.err.HTTPStatus())
		})
	}
}

func TestHandler_Handle(t *testing.T) {
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), false)

	outcome := h.Handle(context.Background(), Wrap(ErrSelfReferral, "code belongs to caller"))
	assert.Equal(t, http.StatusConflict, outcome.Status)
	assert.Equal(t, "self_referral", outcome.Reason)
	assert.Equal(t, "code belongs to caller", outcome.UserMessage)

	outcome = h.Handle(context.Background(), stdErrors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, outcome.Status)
	assert.Equal(t, genericUserMessage, outcome.UserMessage)
}
