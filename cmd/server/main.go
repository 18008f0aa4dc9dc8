// Command server runs the trialgate API: trial management, blinded
// enrollment, data ingestion, and the unblinding workflow behind one HTTP
// surface. External systems are optional; see internal/platform/config.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trialgate/internal/audit"
	audithandler "trialgate/internal/audit/handler"
	auditmetrics "trialgate/internal/audit/metrics"
	auditpublisher "trialgate/internal/audit/publisher"
	auditmemory "trialgate/internal/audit/store/memory"
	auditpg "trialgate/internal/audit/store/postgres"
	"trialgate/internal/datapoint"
	datapointhandler "trialgate/internal/datapoint/handler"
	datapointmetrics "trialgate/internal/datapoint/metrics"
	dpmodels "trialgate/internal/datapoint/models"
	datapointstore "trialgate/internal/datapoint/store/datapoint"
	"trialgate/internal/enrollment"
	enrollmentmetrics "trialgate/internal/enrollment/metrics"
	"trialgate/internal/export"
	exporthandler "trialgate/internal/export/handler"
	httpapi "trialgate/internal/http"
	jwttoken "trialgate/internal/jwt_token"
	participanthandler "trialgate/internal/participant/handler"
	pmodels "trialgate/internal/participant/models"
	participantservice "trialgate/internal/participant/service"
	participantstore "trialgate/internal/participant/store/participant"
	"trialgate/internal/platform/config"
	"trialgate/internal/platform/httpserver"
	"trialgate/internal/platform/logger"
	"trialgate/internal/platform/postgres"
	"trialgate/internal/platform/redis"
	trialhandler "trialgate/internal/trial/handler"
	tmodels "trialgate/internal/trial/models"
	trialservice "trialgate/internal/trial/service"
	trialstore "trialgate/internal/trial/store/trial"
	"trialgate/internal/unblinding"
	unblindinghandler "trialgate/internal/unblinding/handler"
	unblindingmetrics "trialgate/internal/unblinding/metrics"
	userhandler "trialgate/internal/user/handler"
	umodels "trialgate/internal/user/models"
	userservice "trialgate/internal/user/service"
	userstore "trialgate/internal/user/store/user"
	id "trialgate/pkg/domain"
)

// Store unions wide enough for every consumer-side interface in the services.
type trialStore interface {
	Create(ctx context.Context, t *tmodels.Trial) error
	Get(ctx context.Context, trialID id.TrialID) (*tmodels.Trial, error)
	List(ctx context.Context) ([]*tmodels.Trial, error)
	Update(ctx context.Context, t *tmodels.Trial) error
}

type participantStore interface {
	Create(ctx context.Context, p *pmodels.Participant) error
	Get(ctx context.Context, participantID id.ParticipantID) (*pmodels.Participant, error)
	GetByCode(ctx context.Context, code string) (*pmodels.Participant, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	ListByTrial(ctx context.Context, trialID id.TrialID) ([]*pmodels.Participant, error)
	CountByTrial(ctx context.Context, trialID id.TrialID) (int, error)
	Update(ctx context.Context, p *pmodels.Participant) error
	UnblindAll(ctx context.Context, trialID id.TrialID, now time.Time, by id.UserID) (int, error)
}

type dataPointStore interface {
	Create(ctx context.Context, dp *dpmodels.DataPoint) error
	ListByParticipant(ctx context.Context, participantID id.ParticipantID) ([]*dpmodels.DataPoint, error)
	ListByTrial(ctx context.Context, trialID id.TrialID, filter dpmodels.Filter) ([]*dpmodels.DataPoint, error)
}

type userStore interface {
	Create(ctx context.Context, u *umodels.User) error
	Get(ctx context.Context, userID id.UserID) (*umodels.User, error)
	GetByEmail(ctx context.Context, email string) (*umodels.User, error)
}

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		trials       trialStore
		participants participantStore
		dataPoints   dataPointStore
		users        userStore
		auditStore   audit.Store
	)

	db, err := postgres.Open(ctx, cfg.PostgresURL)
	if err != nil {
		log.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
		trials = trialstore.NewPostgres(db)
		participants = participantstore.NewPostgres(db)
		dataPoints = datapointstore.NewPostgres(db)
		users = userstore.NewPostgres(db)
		auditStore = auditpg.New(db)
		log.Info("using postgres stores")
	} else {
		trials = trialstore.NewMemory()
		participants = participantstore.NewMemory()
		dataPoints = datapointstore.NewMemory()
		users = userstore.NewMemory()
		auditStore = auditmemory.New()
		log.Warn("POSTGRES_URL not set, using in-memory stores")
	}

	redisClient, err := redis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	recorderOpts := []audit.Option{
		audit.WithLogger(log),
		audit.WithMetrics(auditmetrics.New()),
	}
	publisher, err := auditpublisher.NewKafka(ctx, cfg.KafkaBrokers, cfg.KafkaTopic, log)
	if err != nil {
		log.Error("kafka connection failed", "error", err)
		os.Exit(1)
	}
	if publisher != nil {
		defer publisher.Close()
		recorderOpts = append(recorderOpts, audit.WithPublisher(publisher))
		log.Info("audit entries mirrored to kafka", "topic", cfg.KafkaTopic)
	}
	recorder := audit.NewRecorder(auditStore, recorderOpts...)

	tokens := jwttoken.NewJWTService(cfg.JWTSigningKey, "trialgate", "trialgate")

	enrollmentOpts := []enrollment.Option{
		enrollment.WithLogger(log),
		enrollment.WithMetrics(enrollmentmetrics.New()),
	}
	if redisClient != nil {
		enrollmentOpts = append(enrollmentOpts, enrollment.WithLocker(enrollment.NewRedisLocker(redisClient)))
	}

	trialSvc := trialservice.New(trials, recorder, trialservice.WithLogger(log))
	participantSvc := participantservice.New(participants, recorder, participantservice.WithLogger(log))
	enrollSvc := enrollment.New(participants, trials, recorder, enrollmentOpts...)
	var unblindAPI unblindinghandler.Service = unblinding.New(participants, trials, recorder,
		unblinding.WithLogger(log),
		unblinding.WithMetrics(unblindingmetrics.New()),
	)
	if db != nil {
		unblindAPI = newUnblindPostgresTx(db, unblindAPI)
	}
	dataSvc := datapoint.New(dataPoints, participants,
		datapoint.WithLogger(log),
		datapoint.WithMetrics(datapointmetrics.New()),
	)
	exportSvc := export.New(trials, participants, dataPoints, recorder, export.WithLogger(log))
	userSvc := userservice.New(users, tokens, recorder, userservice.WithLogger(log))

	router := httpapi.NewRouter(httpapi.Config{
		Logger:       log,
		JWTValidator: tokens,
		Public: []httpapi.Registrar{
			userhandler.New(userSvc, log),
		},
		Protected: []httpapi.Registrar{
			trialhandler.New(trialSvc, log),
			participanthandler.New(participantSvc, enrollSvc, log),
			unblindinghandler.New(unblindAPI, log),
			datapointhandler.New(dataSvc, log),
			exporthandler.New(exportSvc, log),
			audithandler.New(recorder, log),
		},
	})

	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("starting trialgate", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
