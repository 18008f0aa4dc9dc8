// Package handler exposes trial management endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"trialgate/internal/trial/models"
	"trialgate/internal/trial/service"
	id "trialgate/pkg/domain"
	dErrors "trialgate/pkg/domain-errors"
	"trialgate/pkg/platform/httputil"
	"trialgate/pkg/requestcontext"
)

// Service defines the trial operations the handler needs.
type Service interface {
	Create(ctx context.Context, input service.CreateInput) (*models.Trial, error)
	Get(ctx context.Context, trialID id.TrialID) (*models.Trial, error)
	List(ctx context.Context) ([]*models.Trial, error)
	ChangeStatus(ctx context.Context, trialID id.TrialID, target models.Status) (*models.Trial, error)
	Update(ctx context.Context, trialID id.TrialID, input service.UpdateInput) (*models.Trial, error)
}

// Handler exposes trial endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts trial endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/trials", h.handleCreate)
	r.Get("/trials", h.handleList)
	r.Get("/trials/{trialID}", h.handleGet)
	r.Patch("/trials/{trialID}", h.handleUpdate)
	r.Put("/trials/{trialID}/status", h.handleChangeStatus)
}

// CreateTrialRequest is the trial creation payload.
type CreateTrialRequest struct {
	Title              string       `json:"title"`
	Description        string       `json:"description"`
	Arms               []models.Arm `json:"arms"`
	RandomizationRatio []int        `json:"randomizationRatio"`
	TargetEnrollment   int          `json:"targetEnrollment"`
}

// Validate checks the structural basics; the domain model enforces the rest.
func (req *CreateTrialRequest) Validate() error {
	if req.Title == "" {
		return dErrors.New(dErrors.CodeValidation, "title is required")
	}
	if len(req.Arms) == 0 {
		return dErrors.New(dErrors.CodeValidation, "at least one arm is required")
	}
	return nil
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateTrialRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	trial, err := h.service.Create(ctx, service.CreateInput{
		Title:              req.Title,
		Description:        req.Description,
		Arms:               req.Arms,
		RandomizationRatio: req.RandomizationRatio,
		TargetEnrollment:   req.TargetEnrollment,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, trial)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	trials, err := h.service.List(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if trials == nil {
		trials = []*models.Trial{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"trials": trials,
		"count":  len(trials),
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	trialID, err := id.ParseTrialID(chi.URLParam(r, "trialID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	trial, err := h.service.Get(r.Context(), trialID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, trial)
}

// UpdateTrialRequest is the metadata update payload; absent fields are left
// untouched. Arms and ratio are immutable and have no fields here.
type UpdateTrialRequest struct {
	Title            *string `json:"title"`
	Description      *string `json:"description"`
	TargetEnrollment *int    `json:"targetEnrollment"`
}

func (req *UpdateTrialRequest) Validate() error {
	if req.Title == nil && req.Description == nil && req.TargetEnrollment == nil {
		return dErrors.New(dErrors.CodeValidation, "no fields to update")
	}
	return nil
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	trialID, err := id.ParseTrialID(chi.URLParam(r, "trialID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateTrialRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	trial, err := h.service.Update(ctx, trialID, service.UpdateInput{
		Title:            req.Title,
		Description:      req.Description,
		TargetEnrollment: req.TargetEnrollment,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, trial)
}

// ChangeStatusRequest carries the target lifecycle status.
type ChangeStatusRequest struct {
	Status string `json:"status"`

	parsed models.Status
}

func (req *ChangeStatusRequest) Validate() error {
	status, err := models.ParseStatus(req.Status)
	if err != nil {
		return err
	}
	req.parsed = status
	return nil
}

func (h *Handler) handleChangeStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	trialID, err := id.ParseTrialID(chi.URLParam(r, "trialID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[ChangeStatusRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	trial, err := h.service.ChangeStatus(ctx, trialID, req.parsed)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, trial)
}
