package handler

import (
	"log/slog"
	"net/http"

	"github.com/mastrohq/mastro/internal/handler/dto"
	"github.com/mastrohq/mastro/internal/identity"
	"github.com/mastrohq/mastro/internal/notify"
)

// SignupHandler triggers the one-time admin notification for new users.
type SignupHandler struct {
	notifier *notify.SignupNotifier
	logger   *slog.Logger
}

// NewSignupHandler creates a new signup handler.
func NewSignupHandler(notifier *notify.SignupNotifier, logger *slog.Logger) *SignupHandler {
	return &SignupHandler{
		notifier: notifier,
		logger:   logger.With("handler", "signup"),
	}
}

// Notify handles GET/POST /api/v1/signup/notify.
func (h *SignupHandler) Notify(w http.ResponseWriter, r *http.Request) {
	id, ok := identity.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "auth_failed")
		return
	}

	outcome, err := h.notifier.Notify(r.Context(), id)
	if err != nil {
		h.logger.Error("signup notification failed",
			slog.String("user_id", id.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "signup notification failed", "db_error")
		return
	}

	writeJSON(w, http.StatusOK, dto.SignupNotifyResponse{
		Notified: outcome.Notified,
		Already:  outcome.Already,
	})
}
