package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mastrohq/mastro/internal/download"
	"github.com/mastrohq/mastro/internal/handler/dto"
	"github.com/mastrohq/mastro/internal/identity"
	"github.com/mastrohq/mastro/internal/model"
)

// HistoryLister is the repository surface the listing endpoint needs.
type HistoryLister interface {
	ListHistoryByUser(ctx context.Context, userID string) ([]*model.DownloadHistory, error)
}

// HistoryHandler lists past deliveries and serves gated re-downloads.
type HistoryHandler struct {
	lister  HistoryLister
	gateway *download.Gateway
	logger  *slog.Logger
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(lister HistoryLister, gateway *download.Gateway, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{
		lister:  lister,
		gateway: gateway,
		logger:  logger.With("handler", "history"),
	}
}

// List handles GET /api/v1/history.
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := identity.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "auth_failed")
		return
	}

	records, err := h.lister.ListHistoryByUser(r.Context(), id.ID)
	if err != nil {
		h.logger.Error("history listing failed",
			slog.String("user_id", id.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "history listing failed", "db_error")
		return
	}

	now := time.Now()
	entries := make([]dto.HistoryEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, dto.HistoryEntry{
			ID:              record.ID,
			FileName:        record.FileName,
			MasteringTarget: record.MasteringTarget,
			CreatedAt:       record.CreatedAt,
			ExpiresAt:       record.ExpiresAt,
			Redownloadable:  record.Redownloadable(now),
		})
	}

	writeJSON(w, http.StatusOK, dto.HistoryListResponse{History: entries})
}

// Redownload handles GET /api/v1/history/download?history_id=...&mode=...
// mode=url (default) answers with a presigned URL; mode=stream serves the
// stored audio bytes directly.
func (h *HistoryHandler) Redownload(w http.ResponseWriter, r *http.Request) {
	id, ok := identity.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "auth_failed")
		return
	}

	if h.gateway == nil {
		h.logger.Error("object storage not configured")
		writeError(w, http.StatusInternalServerError, "service misconfigured", "server_config")
		return
	}

	historyID := r.URL.Query().Get("history_id")
	if historyID == "" {
		writeError(w, http.StatusBadRequest, "history_id is required", "bad_request")
		return
	}

	mode := download.ModeURL
	if r.URL.Query().Get("mode") == string(download.ModeStream) {
		mode = download.ModeStream
	}

	result, err := h.gateway.Resolve(r.Context(), id, historyID, mode)
	if err != nil {
		switch {
		case errors.Is(err, download.ErrNotFound):
			writeError(w, http.StatusNotFound, "history record not found", "not_found")
		case errors.Is(err, download.ErrNotOwner):
			writeError(w, http.StatusForbidden, "not your download", "forbidden")
		case errors.Is(err, download.ErrWindowExpired):
			writeError(w, http.StatusGone, "re-download window expired", "redownload_expired")
		default:
			h.logger.Error("re-download failed",
				slog.String("user_id", id.ID),
				slog.String("history_id", historyID),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "re-download failed", "db_error")
		}
		return
	}

	if result.Body != nil {
		defer result.Body.Close()
		w.Header().Set("Content-Type", download.ContentType)
		w.Header().Set("Content-Disposition", `attachment; filename="`+result.SuggestedName+`"`)
		if _, err := io.Copy(w, result.Body); err != nil {
			h.logger.Error("streaming download aborted",
				slog.String("history_id", historyID),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	writeJSON(w, http.StatusOK, dto.RedownloadResponse{
		URL:           result.URL,
		SuggestedName: result.SuggestedName,
	})
}
