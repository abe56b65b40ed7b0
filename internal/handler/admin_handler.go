package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"votecore/internal/middleware"
	"votecore/internal/service"
	apperrors "votecore/pkg/errors"
	"votecore/pkg/logger"
)

// AdminHandler exposes the management operations over HTTP
type AdminHandler struct {
	refresher *service.Refresher
	logger    *logger.Logger
}

func NewAdminHandler(refresher *service.Refresher, logger *logger.Logger) *AdminHandler {
	return &AdminHandler{refresher: refresher, logger: logger}
}

// Refresh handles POST /admin/refresh?poll_id=&force=
func (h *AdminHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	force := false
	if raw := r.URL.Query().Get("force"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			h.respondError(w, r, apperrors.NewValidationError("force must be a boolean", nil))
			return
		}
		force = parsed
	}

	pollID := strings.TrimSpace(r.URL.Query().Get("poll_id"))
	if pollID != "" {
		updated, err := h.refresher.RefreshOne(r.Context(), pollID, force)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		count := 0
		if updated {
			count = 1
		}
		h.logger.WithPoll(pollID).WithField("force", force).Info("Manual refresh completed")
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"poll_id": pollID,
			"updated": count,
		})
		return
	}

	report, err := h.refresher.RefreshAll(r.Context(), force)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// Reconcile handles POST /admin/polls/{pollId}/reconcile
func (h *AdminHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	pollID := chi.URLParam(r, "pollId")

	repaired, err := h.refresher.Verify(r.Context(), pollID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"poll_id":    pollID,
		"reconciled": repaired,
	})
}

func (h *AdminHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	middleware.WriteError(w, r, toAppError(err), h.logger)
}
