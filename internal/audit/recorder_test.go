package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"trialgate/internal/audit/metrics"
	id "trialgate/pkg/domain"
	"trialgate/pkg/requestcontext"
)

type fakeStore struct {
	entries []Entry
	err     error
}

func (f *fakeStore) Append(_ context.Context, entry Entry) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeStore) List(_ context.Context, _ Filter) ([]Entry, error) {
	return f.entries, nil
}

type fakePublisher struct {
	published []Entry
	err       error
}

func (f *fakePublisher) Publish(_ context.Context, entry Entry) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, entry)
	return nil
}

type RecorderSuite struct {
	suite.Suite
	store   *fakeStore
	metrics *metrics.Metrics
}

func TestRecorderSuite(t *testing.T) {
	suite.Run(t, new(RecorderSuite))
}

func (s *RecorderSuite) SetupTest() {
	s.store = &fakeStore{}
	s.metrics = metrics.NewForTesting()
}

func (s *RecorderSuite) TestRecordFillsRequestMetadata() {
	recorder := NewRecorder(s.store, WithMetrics(s.metrics))

	fixed := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), fixed)
	ctx = requestcontext.WithClientMetadata(ctx, "203.0.113.9",
		"Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0")

	recorder.Record(ctx, Entry{
		UserID: id.UserID(uuid.New()),
		Action: ActionTrialCreated,
	})

	s.Require().Len(s.store.entries, 1)
	entry := s.store.entries[0]
	s.NotEqual(uuid.Nil, entry.ID)
	s.Equal(fixed, entry.Timestamp)
	s.Equal("203.0.113.9", entry.IPAddress)
	s.Contains(entry.Device, "Firefox")
	s.NotNil(entry.Details)
}

func (s *RecorderSuite) TestStoreFailureIsSwallowedAndCounted() {
	s.store.err = errors.New("connection refused")
	recorder := NewRecorder(s.store, WithMetrics(s.metrics))

	// Record has no error return: the audited operation must not observe
	// audit failures.
	recorder.Record(context.Background(), Entry{
		UserID: id.UserID(uuid.New()),
		Action: ActionParticipantUnblinded,
	})

	s.Empty(s.store.entries)
	s.Equal(1.0, promtestutil.ToFloat64(s.metrics.WriteFailures))
}

func (s *RecorderSuite) TestUnknownActionDropped() {
	recorder := NewRecorder(s.store, WithMetrics(s.metrics))

	recorder.Record(context.Background(), Entry{
		UserID: id.UserID(uuid.New()),
		Action: Action("made_up_action"),
	})

	s.Empty(s.store.entries)
	s.Equal(1.0, promtestutil.ToFloat64(s.metrics.WriteFailures))
}

func (s *RecorderSuite) TestPublisherMirrorsEntries() {
	pub := &fakePublisher{}
	recorder := NewRecorder(s.store, WithMetrics(s.metrics), WithPublisher(pub))

	recorder.Record(context.Background(), Entry{
		UserID: id.UserID(uuid.New()),
		Action: ActionDataExport,
	})

	s.Require().Len(pub.published, 1)
	s.Equal(ActionDataExport, pub.published[0].Action)
}

func (s *RecorderSuite) TestPublisherFailureDoesNotBlockWrite() {
	pub := &fakePublisher{err: errors.New("broker down")}
	recorder := NewRecorder(s.store, WithMetrics(s.metrics), WithPublisher(pub))

	recorder.Record(context.Background(), Entry{
		UserID: id.UserID(uuid.New()),
		Action: ActionUserLogin,
	})

	s.Len(s.store.entries, 1)
	s.Equal(1.0, promtestutil.ToFloat64(s.metrics.PublishFailures))
}

func TestActionValid(t *testing.T) {
	for _, a := range []Action{
		ActionTrialCreated, ActionTrialUpdated, ActionTrialStatusChanged,
		ActionTrialUnblinded, ActionParticipantEnrolled, ActionParticipantUnblinded,
		ActionParticipantWithdrawn, ActionDataExport, ActionUserCreated, ActionUserLogin,
	} {
		require.True(t, a.Valid(), "expected %s to be valid", a)
	}
	assert.False(t, Action("something_else").Valid())
}
