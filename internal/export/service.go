// Package export builds trial data exports. Blinded exports label assignments
// with neutral group labels; unblinded exports carry real arm names and are
// refused outright while the trial's blind is intact.
package export

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"trialgate/internal/audit"
	dpmodels "trialgate/internal/datapoint/models"
	pmodels "trialgate/internal/participant/models"
	tmodels "trialgate/internal/trial/models"
	id "trialgate/pkg/domain"
	dErrors "trialgate/pkg/domain-errors"
	"trialgate/pkg/platform/sentinel"
	"trialgate/pkg/requestcontext"
)

// TrialStore loads the trial being exported.
type TrialStore interface {
	Get(ctx context.Context, trialID id.TrialID) (*tmodels.Trial, error)
}

// ParticipantStore lists the trial's participants.
type ParticipantStore interface {
	ListByTrial(ctx context.Context, trialID id.TrialID) ([]*pmodels.Participant, error)
}

// DataPointStore lists the trial's data points.
type DataPointStore interface {
	ListByTrial(ctx context.Context, trialID id.TrialID, filter dpmodels.Filter) ([]*dpmodels.DataPoint, error)
}

// AuditRecorder is the audit sink. Recording is best-effort; see audit.Recorder.
type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

// Service assembles exports.
type Service struct {
	trials       TrialStore
	participants ParticipantStore
	dataPoints   DataPointStore
	recorder     AuditRecorder
	logger       *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func New(trials TrialStore, participants ParticipantStore, dataPoints DataPointStore, recorder AuditRecorder, opts ...Option) *Service {
	s := &Service{
		trials:       trials,
		participants: participants,
		dataPoints:   dataPoints,
		recorder:     recorder,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Header is the fixed column layout of an export.
var Header = []string{
	"participant_code", "group", "status", "enrollment_date",
	"data_type", "data_timestamp", "is_alert", "severity",
}

// Export is a fully assembled dataset ready for CSV encoding.
type Export struct {
	Filename string
	Header   []string
	Rows     [][]string
}

// Build assembles the export. One row per participant/data-point pair;
// participants without data still appear, with N/A data columns, so the
// export always accounts for the full cohort.
func (s *Service) Build(ctx context.Context, trialID id.TrialID, blinded bool) (*Export, error) {
	trial, err := s.trials.Get(ctx, trialID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "trial not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load trial")
	}
	if !blinded && !trial.IsUnblinded {
		return nil, dErrors.New(dErrors.CodeForbidden, "unblinded export requires the trial to be unblinded first")
	}

	var (
		participants []*pmodels.Participant
		points       []*dpmodels.DataPoint
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		participants, err = s.participants.ListByTrial(gctx, trialID)
		return err
	})
	g.Go(func() error {
		var err error
		points, err = s.dataPoints.ListByTrial(gctx, trialID, dpmodels.Filter{})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load export data")
	}

	byParticipant := map[id.ParticipantID][]*dpmodels.DataPoint{}
	for _, dp := range points {
		byParticipant[dp.ParticipantID] = append(byParticipant[dp.ParticipantID], dp)
	}

	var rows [][]string
	for _, p := range participants {
		label := tmodels.BlindedGroupLabel(p.AssignedGroup)
		if !blinded {
			label = trial.ArmLabel(p.AssignedGroup)
		}
		base := []string{
			p.ParticipantCode,
			label,
			string(p.Status),
			p.EnrolledAt.Format(time.RFC3339),
		}

		data := byParticipant[p.ID]
		if len(data) == 0 {
			rows = append(rows, append(base, "N/A", "N/A", "N/A", "N/A"))
			continue
		}
		for _, dp := range data {
			rows = append(rows, append(append([]string{}, base...),
				string(dp.Type),
				dp.Timestamp.Format(time.RFC3339),
				strconv.FormatBool(dp.IsAlert),
				string(dp.Severity),
			))
		}
	}

	s.recorder.Record(ctx, audit.Entry{
		UserID:  requestcontext.UserID(ctx),
		Action:  audit.ActionDataExport,
		TrialID: &trialID,
		Details: map[string]any{
			"blinded": blinded,
			"rows":    len(rows),
		},
	})

	return &Export{
		Filename: exportFilename(trial.Title, blinded, requestcontext.Now(ctx)),
		Header:   Header,
		Rows:     rows,
	}, nil
}

// exportFilename builds a safe attachment name from the trial title.
func exportFilename(title string, blinded bool, now time.Time) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteByte('_')
		}
	}
	name := strings.Trim(b.String(), "_")
	if name == "" {
		name = "trial"
	}
	mode := "blinded"
	if !blinded {
		mode = "unblinded"
	}
	return name + "_" + mode + "_" + now.Format("20060102") + ".csv"
}
