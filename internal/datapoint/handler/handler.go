// Package handler exposes data ingestion and trial summary endpoints.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"trialgate/internal/datapoint"
	"trialgate/internal/datapoint/models"
	id "trialgate/pkg/domain"
	dErrors "trialgate/pkg/domain-errors"
	"trialgate/pkg/platform/httputil"
	"trialgate/pkg/requestcontext"
)

// Service defines the data point operations the handler needs.
type Service interface {
	Ingest(ctx context.Context, participantCode, typeName string, raw json.RawMessage) (*datapoint.IngestResult, error)
	ListByParticipant(ctx context.Context, participantID id.ParticipantID, opts datapoint.ListOptions) ([]*models.DataPoint, error)
	Alerts(ctx context.Context, trialID id.TrialID, severity models.Severity) (*datapoint.AlertSummary, error)
	Aggregate(ctx context.Context, trialID id.TrialID) (*datapoint.AggregatedData, error)
}

// Handler exposes data point endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts data point endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/data", h.handleIngest)
	r.Get("/participants/{participantID}/data", h.handleListByParticipant)
	r.Get("/trials/{trialID}/alerts", h.handleAlerts)
	r.Get("/trials/{trialID}/aggregated-data", h.handleAggregate)
}

// IngestRequest is the observation submission payload. The payload shape is
// validated against the type during ingestion.
type IngestRequest struct {
	ParticipantCode string          `json:"participantCode"`
	Type            string          `json:"type"`
	Payload         json.RawMessage `json:"payload"`
}

func (req *IngestRequest) Validate() error {
	if req.ParticipantCode == "" {
		return dErrors.New(dErrors.CodeValidation, "participantCode is required")
	}
	if req.Type == "" {
		return dErrors.New(dErrors.CodeValidation, "type is required")
	}
	return nil
}

func (h *Handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[IngestRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Ingest(ctx, req.ParticipantCode, req.Type, req.Payload)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleListByParticipant(w http.ResponseWriter, r *http.Request) {
	participantID, err := id.ParseParticipantID(chi.URLParam(r, "participantID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var opts datapoint.ListOptions
	if v := r.URL.Query().Get("type"); v != "" {
		typ, err := models.ParseType(v)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		opts.Type = typ
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "limit must be a positive integer"))
			return
		}
		opts.Limit = n
	}

	points, err := h.service.ListByParticipant(r.Context(), participantID, opts)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if points == nil {
		points = []*models.DataPoint{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"dataPoints": points,
		"count":      len(points),
	})
}

func (h *Handler) handleAlerts(w http.ResponseWriter, r *http.Request) {
	trialID, err := id.ParseTrialID(chi.URLParam(r, "trialID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var severity models.Severity
	if v := r.URL.Query().Get("severity"); v != "" {
		severity, err = models.ParseSeverity(v)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	summary, err := h.service.Alerts(r.Context(), trialID, severity)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if summary.Alerts == nil {
		summary.Alerts = []*models.DataPoint{}
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleAggregate(w http.ResponseWriter, r *http.Request) {
	trialID, err := id.ParseTrialID(chi.URLParam(r, "trialID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	agg, err := h.service.Aggregate(r.Context(), trialID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, agg)
}
