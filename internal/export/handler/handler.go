// Package handler serves trial exports as CSV downloads.
package handler

import (
	"context"
	"encoding/csv"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"trialgate/internal/export"
	id "trialgate/pkg/domain"
	dErrors "trialgate/pkg/domain-errors"
	"trialgate/pkg/platform/httputil"
	"trialgate/pkg/requestcontext"
)

// Service defines the export operations the handler needs.
type Service interface {
	Build(ctx context.Context, trialID id.TrialID, blinded bool) (*export.Export, error)
}

// Handler exposes the export endpoint.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the export endpoint on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/trials/{trialID}/export", h.handleExport)
}

// handleExport streams the export as a CSV attachment. Exports are blinded
// unless blinded=false is requested explicitly, and that request is refused
// while the trial's blind is intact.
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	trialID, err := id.ParseTrialID(chi.URLParam(r, "trialID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	blinded := true
	switch r.URL.Query().Get("blinded") {
	case "", "true":
	case "false":
		blinded = false
	default:
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "blinded must be true or false"))
		return
	}

	result, err := h.service.Build(ctx, trialID, blinded)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	if err := cw.Write(result.Header); err != nil {
		h.logger.ErrorContext(ctx, "failed to write export",
			"trial_id", trialID,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return
	}
	for _, row := range result.Rows {
		if err := cw.Write(row); err != nil {
			h.logger.ErrorContext(ctx, "failed to write export row",
				"trial_id", trialID,
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
			return
		}
	}
	cw.Flush()
}
