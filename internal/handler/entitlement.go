package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/mastrohq/mastro/internal/entitlement"
	"github.com/mastrohq/mastro/internal/handler/dto"
	"github.com/mastrohq/mastro/internal/identity"
)

// EntitlementHandler exposes the entitlement check/consume operations.
type EntitlementHandler struct {
	engine *entitlement.Engine
	logger *slog.Logger
}

// NewEntitlementHandler creates a new entitlement handler.
func NewEntitlementHandler(engine *entitlement.Engine, logger *slog.Logger) *EntitlementHandler {
	return &EntitlementHandler{
		engine: engine,
		logger: logger.With("handler", "entitlement"),
	}
}

// Check handles GET/POST /api/v1/entitlement.
// Read-only: reports whether the caller may download and the remaining
// credit balance. A store failure is a db_error, never a denial.
func (h *EntitlementHandler) Check(w http.ResponseWriter, r *http.Request) {
	id, ok := identity.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "auth_failed")
		return
	}

	decision, err := h.engine.Check(r.Context(), id)
	if err != nil {
		h.logger.Error("entitlement check failed",
			slog.String("user_id", id.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "entitlement check failed", "db_error")
		return
	}

	writeJSON(w, http.StatusOK, dto.EntitlementResponse{
		Allowed:   decision.Allowed,
		Remaining: decision.Remaining,
		Admin:     decision.Admin,
	})
}

// Consume handles POST /api/v1/entitlement/consume.
// Spends one credit; admins pass through without depleting inventory.
func (h *EntitlementHandler) Consume(w http.ResponseWriter, r *http.Request) {
	id, ok := identity.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "auth_failed")
		return
	}

	consumption, err := h.engine.Consume(r.Context(), id)
	if err != nil {
		if errors.Is(err, entitlement.ErrNoCredits) {
			writeJSON(w, http.StatusForbidden, dto.ErrorResponse{
				Error: "no download credits remaining",
				Code:  "no_tokens_left",
			})
			return
		}
		h.logger.Error("credit consumption failed",
			slog.String("user_id", id.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "credit consumption failed", "db_error")
		return
	}

	writeJSON(w, http.StatusOK, dto.ConsumeResponse{
		Consumed:  consumption.Consumed,
		Allowed:   consumption.Allowed,
		Remaining: consumption.Remaining,
		Admin:     consumption.Admin,
	})
}
