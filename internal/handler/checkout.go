package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mastrohq/mastro/internal/handler/dto"
	"github.com/mastrohq/mastro/internal/identity"
	"github.com/mastrohq/mastro/internal/payment"
)

// CheckoutHandler creates Stripe checkout sessions.
type CheckoutHandler struct {
	builder *payment.CheckoutBuilder
	logger  *slog.Logger
}

// NewCheckoutHandler creates a new checkout handler.
func NewCheckoutHandler(builder *payment.CheckoutBuilder, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		builder: builder,
		logger:  logger.With("handler", "checkout"),
	}
}

// Create handles POST /api/v1/checkout.
// The amount must be an integer number of minor units, at least 100.
func (h *CheckoutHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := identity.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "auth_failed")
		return
	}

	if !h.builder.Configured() {
		h.logger.Error("stripe credentials not configured")
		writeError(w, http.StatusInternalServerError, "service misconfigured", "server_config")
		return
	}

	var req dto.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "bad_request")
		return
	}

	amount, err := req.AmountCents.Int64()
	if err != nil {
		// Fractional or non-numeric amount
		writeError(w, http.StatusBadRequest, "amount must be an integer number of cents", "bad_request")
		return
	}

	sess, err := h.builder.CreateSession(r.Context(), id, amount, req.TokenCount)
	if err != nil {
		if errors.Is(err, payment.ErrBadAmount) {
			writeError(w, http.StatusBadRequest, err.Error(), "bad_request")
			return
		}
		h.logger.Error("checkout session creation failed",
			slog.String("user_id", id.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "checkout session creation failed", "stripe_error")
		return
	}

	h.logger.Info("checkout session created",
		slog.String("user_id", id.ID),
		slog.String("session_id", sess.SessionID),
		slog.Int64("amount_cents", amount),
	)

	writeJSON(w, http.StatusOK, dto.CheckoutResponse{
		URL:       sess.URL,
		SessionID: sess.SessionID,
	})
}
