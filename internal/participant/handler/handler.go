// Package handler exposes participant endpoints. Everything served here goes
// through the blinding gate: listings are always blinded and single reads
// reveal an assignment only after the unblinding workflow has run.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"trialgate/internal/participant/models"
	id "trialgate/pkg/domain"
	"trialgate/pkg/platform/httputil"
)

// Service defines the participant operations the handler needs.
type Service interface {
	Get(ctx context.Context, participantID id.ParticipantID) (any, error)
	ListByTrial(ctx context.Context, trialID id.TrialID) ([]models.BlindedParticipant, error)
	Withdraw(ctx context.Context, participantID id.ParticipantID) (models.BlindedParticipant, error)
}

// Enroller admits new participants.
type Enroller interface {
	Enroll(ctx context.Context, trialID id.TrialID) (models.BlindedParticipant, error)
}

// Handler exposes participant endpoints.
type Handler struct {
	service  Service
	enroller Enroller
	logger   *slog.Logger
}

func New(service Service, enroller Enroller, logger *slog.Logger) *Handler {
	return &Handler{service: service, enroller: enroller, logger: logger}
}

// Register mounts participant endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/trials/{trialID}/participants", h.handleEnroll)
	r.Get("/trials/{trialID}/participants", h.handleList)
	r.Get("/participants/{participantID}", h.handleGet)
	r.Post("/participants/{participantID}/withdraw", h.handleWithdraw)
}

func (h *Handler) handleEnroll(w http.ResponseWriter, r *http.Request) {
	trialID, err := id.ParseTrialID(chi.URLParam(r, "trialID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	blinded, err := h.enroller.Enroll(r.Context(), trialID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, blinded)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	trialID, err := id.ParseTrialID(chi.URLParam(r, "trialID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	participants, err := h.service.ListByTrial(r.Context(), trialID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if participants == nil {
		participants = []models.BlindedParticipant{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"participants": participants,
		"count":        len(participants),
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	participantID, err := id.ParseParticipantID(chi.URLParam(r, "participantID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	view, err := h.service.Get(r.Context(), participantID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	participantID, err := id.ParseParticipantID(chi.URLParam(r, "participantID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	blinded, err := h.service.Withdraw(r.Context(), participantID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, blinded)
}
