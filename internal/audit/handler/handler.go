package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"trialgate/internal/audit"
	id "trialgate/pkg/domain"
	dErrors "trialgate/pkg/domain-errors"
	"trialgate/pkg/platform/httputil"
	"trialgate/pkg/requestcontext"
)

// Service defines the audit read operations the handler needs.
type Service interface {
	List(ctx context.Context, filter audit.Filter) ([]audit.Entry, error)
}

// Handler exposes the audit log listing endpoint.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts audit endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/audit-log", h.handleList)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	filter := audit.Filter{Limit: 100}

	if raw := r.URL.Query().Get("action"); raw != "" {
		action := audit.Action(raw)
		if !action.Valid() {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "unknown audit action"))
			return
		}
		filter.Action = action
	}

	if raw := r.URL.Query().Get("trialId"); raw != "" {
		trialID, err := id.ParseTrialID(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		filter.TrialID = trialID
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 1000 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "limit must be between 1 and 1000"))
			return
		}
		filter.Limit = limit
	}

	entries, err := h.service.List(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list audit entries",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to list audit entries"))
		return
	}

	if entries == nil {
		entries = []audit.Entry{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}
