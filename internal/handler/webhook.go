package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/mastrohq/mastro/internal/handler/dto"
	"github.com/mastrohq/mastro/internal/payment"
)

// maxWebhookBody bounds the webhook payload size (Stripe recommends 64KB+).
const maxWebhookBody = 1 << 20

// WebhookHandler receives Stripe webhook deliveries.
type WebhookHandler struct {
	reconciler *payment.Reconciler
	logger     *slog.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(reconciler *payment.Reconciler, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		reconciler: reconciler,
		logger:     logger.With("handler", "webhook"),
	}
}

// Receive handles POST /api/v1/stripe/webhook.
// Success is acknowledged only after the credit insert commits; any other
// outcome returns a non-2xx so Stripe retries. An invalid signature is the
// one rejection that must never touch the store.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	if !h.reconciler.Configured() {
		h.logger.Error("webhook secret not configured")
		writeError(w, http.StatusInternalServerError, "service misconfigured", "server_config")
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read payload", "bad_request")
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")

	if err := h.reconciler.HandleEvent(r.Context(), payload, sigHeader); err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			h.logger.Warn("webhook signature verification failed",
				slog.String("remote_addr", r.RemoteAddr),
			)
			writeError(w, http.StatusBadRequest, "Invalid signature", "invalid_signature")
			return
		}

		// Includes ErrMissingUser: a paid event without correlation must
		// be retried by the provider, not dropped.
		h.logger.Error("webhook processing failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "webhook processing failed", "server_error")
		return
	}

	writeJSON(w, http.StatusOK, dto.WebhookAck{Received: true})
}
