package errors

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/getsentry/sentry-go"

	"github.com/Proton-105/himera-wallet/pkg/logger"
	"github.com/Proton-105/himera-wallet/pkg/metrics"
)

const genericUserMessage = "Something went wrong. Please try again later"

// Outcome is what the transport layer needs to report a failure.
type Outcome struct {
	Status      int
	Code        string
	Reason      string
	UserMessage string
	Retryable   bool
}

type Handler struct {
	log           *slog.Logger
	sentryEnabled bool
}

func NewHandler(log *slog.Logger, sentryEnabled bool) *Handler {
	return &Handler{
		log:           log,
		sentryEnabled: sentryEnabled,
	}
}

// Handle logs err once, reports serious failures to Sentry and translates it for the caller.
func (h *Handler) Handle(ctx context.Context, err error) Outcome {
	if err == nil {
		return Outcome{Status: http.StatusOK}
	}

	if ctx == nil {
		ctx = context.Background()
	}

	log := h.log
	if log == nil {
		log = slog.Default()
	}

	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		attrs := []slog.Attr{
			slog.String("code", appErr.Code),
			slog.String("reason", appErr.Reason),
			slog.String("message", appErr.Message),
			slog.String("severity", string(appErr.Severity)),
			slog.Bool("retryable", appErr.Retryable),
		}

		if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
			attrs = append(attrs, slog.String("correlation_id", correlationID))
		}

		level := slog.LevelWarn
		if appErr.Severity == SeverityHigh || appErr.Severity == SeverityCritical {
			level = slog.LevelError
		}
		log.LogAttrs(ctx, level, "application error", attrs...)
		metrics.RecordError(appErr.Code, string(appErr.Severity))

		if h.sentryEnabled && (appErr.Severity == SeverityCritical || appErr.Severity == SeverityHigh) {
			h.sendToSentry(ctx, err)
		}

		userMessage := appErr.UserMessage
		if userMessage == "" {
			userMessage = genericUserMessage
		}

		return Outcome{
			Status:      appErr.HTTPStatus(),
			Code:        appErr.Code,
			Reason:      appErr.Reason,
			UserMessage: userMessage,
			Retryable:   appErr.Retryable,
		}
	}

	attrs := []slog.Attr{
		slog.String("message", err.Error()),
		slog.String("severity", string(SeverityHigh)),
		slog.Bool("retryable", false),
	}

	if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
		attrs = append(attrs, slog.String("correlation_id", correlationID))
	}

	log.LogAttrs(ctx, slog.LevelError, "unknown error", attrs...)
	metrics.RecordError("unknown", string(SeverityHigh))

	if h.sentryEnabled {
		h.sendToSentry(ctx, err)
	}

	return Outcome{
		Status:      http.StatusInternalServerError,
		Code:        "E000",
		Reason:      "internal",
		UserMessage: genericUserMessage,
	}
}

func (h *Handler) sendToSentry(ctx context.Context, err error) {
	if err == nil {
		return
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}

	hub.WithScope(func(scope *sentry.Scope) {
		var appErr *AppError
		if errors.As(err, &appErr) && appErr != nil {
			if appErr.Code != "" {
				scope.SetTag("code", appErr.Code)
			}

			if appErr.Severity != "" {
				scope.SetTag("severity", string(appErr.Severity))
			}
		}

		if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
			scope.SetTag("correlation_id", correlationID)
		}

		hub.CaptureException(err)
	})
}
