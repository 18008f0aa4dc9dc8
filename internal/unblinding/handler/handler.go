// Package handler exposes the unblinding endpoints. These are the only routes
// in the API that return real treatment assignments.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"trialgate/internal/unblinding"
	id "trialgate/pkg/domain"
	"trialgate/pkg/platform/httputil"
	"trialgate/pkg/requestcontext"
)

// Service defines the unblinding operations the handler needs.
type Service interface {
	UnblindParticipant(ctx context.Context, participantID id.ParticipantID, reason string) (*unblinding.ParticipantResult, error)
	UnblindStudy(ctx context.Context, trialID id.TrialID, reason, confirmation string) (*unblinding.StudyResult, error)
}

// Handler exposes unblinding endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts unblinding endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/participants/{participantID}/unblind", h.handleUnblindParticipant)
	r.Post("/trials/{trialID}/unblind", h.handleUnblindStudy)
}

// UnblindParticipantRequest carries the justification for a single reveal.
// Length validation lives in the service so the denial is audited.
type UnblindParticipantRequest struct {
	Reason string `json:"reason"`
}

func (req *UnblindParticipantRequest) Validate() error { return nil }

func (h *Handler) handleUnblindParticipant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	participantID, err := id.ParseParticipantID(chi.URLParam(r, "participantID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[UnblindParticipantRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.UnblindParticipant(ctx, participantID, req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// UnblindStudyRequest carries the justification and confirmation phrase for a
// study-wide reveal. Validation lives in the service so denials are audited.
type UnblindStudyRequest struct {
	Reason       string `json:"reason"`
	Confirmation string `json:"confirmation"`
}

func (req *UnblindStudyRequest) Validate() error { return nil }

func (h *Handler) handleUnblindStudy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	trialID, err := id.ParseTrialID(chi.URLParam(r, "trialID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[UnblindStudyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.UnblindStudy(ctx, trialID, req.Reason, req.Confirmation)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}
