package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle"
	raffleservice "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/application"
	raffledomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/domain"
	raffleadapters "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/infrastructure/adapters"
	rafflehandlers "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/infrastructure/handlers"
	rafflejwt "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/infrastructure/jwt"
	rafflequeue "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/infrastructure/queue"
	raffletreasury "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/infrastructure/treasury"
	"github.com/Black-And-White-Club/frolf-raffle/app/modules/vrf"
	vrfservice "github.com/Black-And-White-Club/frolf-raffle/app/modules/vrf/application"
	vrfdomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/vrf/domain"
	"github.com/Black-And-White-Club/frolf-raffle/config"
	"github.com/Black-And-White-Club/frolf-raffle/internal/db/bundb"
	"github.com/Black-And-White-Club/frolf-raffle/internal/eventbus"
	"github.com/Black-And-White-Club/frolf-raffle/internal/observability"
	"github.com/Black-And-White-Club/frolf-raffle/internal/observability/attr"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/uptrace/bun"
	"golang.org/x/time/rate"
)

const (
	TestEnvironmentFlag  = "APP_ENV"
	TestEnvironmentValue = "test"
)

// App wires the raffle, the optional local coordinator and their transports.
type App struct {
	Config        *config.Config
	Observability observability.Observability
	DB            *bun.DB
	EventBus      eventbus.EventBus
	Router        *message.Router
	Queue         *rafflequeue.Service
	HTTPServer    *http.Server

	RaffleModule *raffle.Module
	VRFModule    *vrf.Module

	wg sync.WaitGroup
}

// Initialize connects storage and messaging and builds every module.
func (app *App) Initialize(ctx context.Context, cfg *config.Config, obs observability.Observability) error {
	app.Config = cfg
	app.Observability = obs
	logger := obs.Provider.Logger

	db, err := bundb.Open(ctx, cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	app.DB = db

	if cfg.NATS.URL == "" {
		logger.WarnContext(ctx, "No NATS URL configured, events stay in process")
		app.EventBus = eventbus.NewMemoryEventBus(logger)
	} else {
		bus, err := eventbus.NewEventBus(ctx, cfg.NATS.URL, logger, "backend", obs.Registry.Tracer)
		if err != nil {
			return fmt.Errorf("failed to create event bus: %w", err)
		}
		app.EventBus = bus
	}

	if err := eventbus.EnsureStreams(ctx, app.EventBus,
		eventbus.Stream{Name: raffledomain.StreamName, Subjects: []string{raffledomain.StreamSubjectsWildcard}},
		eventbus.Stream{Name: vrfdomain.StreamName, Subjects: []string{vrfdomain.StreamSubjectsWildcard}},
	); err != nil {
		return err
	}

	if err := app.initRouter(); err != nil {
		return err
	}

	raffleCfg, err := cfg.RaffleConfig()
	if err != nil {
		return err
	}

	var (
		oracle    raffleservice.OracleClient
		vrfClient *raffleadapters.VRFClient
		fulfiller rafflequeue.Fulfiller
	)
	if cfg.VRF.Enabled {
		vrfCfg, err := cfg.VRFConfig()
		if err != nil {
			return err
		}
		app.VRFModule, err = vrf.NewVRFModule(ctx, obs, app.EventBus, app.Router, vrfCfg)
		if err != nil {
			return fmt.Errorf("failed to initialize vrf module: %w", err)
		}

		subID, err := app.VRFModule.Coordinator.Provision(ctx, vrfservice.ProvisionConfig{
			Owner:      cfg.VRF.Owner,
			Consumer:   cfg.Raffle.Consumer,
			FundAmount: cfg.FundAmount(),
		})
		if err != nil {
			return fmt.Errorf("failed to provision vrf subscription: %w", err)
		}
		raffleCfg.SubscriptionID = subID

		vrfClient = raffleadapters.NewVRFClient(app.VRFModule.Coordinator, cfg.Raffle.Consumer)
		oracle = vrfClient
		fulfiller = app.VRFModule.Coordinator
		logger.InfoContext(ctx, "Using local vrf coordinator", attr.Uint64("subscription_id", subID))
	} else {
		oracle = raffleadapters.NewBusOracleClient(app.EventBus, cfg.Raffle.Consumer)
		logger.InfoContext(ctx, "Using external oracle over the event bus")
	}

	app.RaffleModule, err = raffle.NewRaffleModule(ctx, obs, app.EventBus, app.Router, db, raffle.Options{
		Config:                 raffleCfg,
		Consumer:               cfg.Raffle.Consumer,
		Oracle:                 oracle,
		Treasury:               raffletreasury.NewLedger(db),
		ConsumeBusFulfillments: !cfg.VRF.Enabled,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize raffle module: %w", err)
	}
	if vrfClient != nil {
		vrfClient.Bind(app.RaffleModule.RaffleService)
	}

	var keeperInterval time.Duration
	if cfg.Keeper.Enabled {
		keeperInterval = cfg.Keeper.PollInterval
	}
	app.Queue, err = rafflequeue.NewService(ctx, db, logger, cfg.Postgres.DSN, obs.Registry.RaffleMetrics,
		app.RaffleModule.RaffleService, fulfiller, rafflequeue.Options{
			KeeperInterval: keeperInterval,
			FulfillDelay:   cfg.VRF.FulfillDelay,
		})
	if err != nil {
		return fmt.Errorf("failed to initialize queue service: %w", err)
	}
	if app.VRFModule != nil && cfg.VRF.AutoFulfill {
		app.VRFModule.Coordinator.UseScheduler(app.Queue)
	}
	if vrfClient != nil {
		if err := vrfClient.Recover(ctx); err != nil {
			return fmt.Errorf("failed to recover vrf requests: %w", err)
		}
	}

	app.HTTPServer = &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           app.httpHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return nil
}

func (app *App) initRouter() error {
	logger := app.Observability.Provider.Logger
	wmLogger := watermill.NewSlogLogger(logger)

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 5 * time.Second}, wmLogger)
	if err != nil {
		return fmt.Errorf("failed to create watermill router: %w", err)
	}
	router.AddMiddleware(
		middleware.CorrelationID,
		middleware.Retry{
			MaxRetries:      3,
			InitialInterval: 100 * time.Millisecond,
			Logger:          wmLogger,
		}.Middleware,
		middleware.Recoverer,
	)

	if reg := app.Observability.Registry.Prometheus; reg != nil && os.Getenv(TestEnvironmentFlag) != TestEnvironmentValue {
		builder := metrics.NewPrometheusMetricsBuilder(reg, "", "")
		builder.AddPrometheusRouterMetrics(router)
	}

	app.Router = router
	return nil
}

func (app *App) httpHandler() http.Handler {
	cfg := app.Config
	logger := app.Observability.Provider.Logger

	if cfg.JWT.Secret == "" {
		logger.Warn("No JWT secret configured, operator endpoints will reject every request")
	}
	jwtProvider := rafflejwt.NewProvider(cfg.JWT.Secret, cfg.JWT.Issuer)

	r := chi.NewRouter()
	r.Use(rafflehandlers.RateLimitMiddleware(rafflehandlers.NewIPRateLimiter(rate.Limit(cfg.HTTP.RateLimit), cfg.HTTP.RateBurst)))
	r.Use(rafflehandlers.CORSMiddleware(cfg.HTTP.AllowedOrigins))

	r.Get("/healthz", app.handleHealth)
	app.RaffleModule.Mount(r, rafflehandlers.OperatorAuthMiddleware(jwtProvider))
	if app.VRFModule != nil {
		app.VRFModule.Mount(r)
	}
	return r
}

func (app *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := app.DB.PingContext(ctx); err != nil {
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	if err := app.Queue.HealthCheck(ctx); err != nil {
		http.Error(w, "queue unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Run starts every component and blocks until ctx is cancelled or one of
// them fails.
func (app *App) Run(ctx context.Context) error {
	logger := app.Observability.Provider.Logger
	errCh := make(chan error, 3)

	if app.VRFModule != nil {
		app.wg.Add(1)
		go app.VRFModule.Run(ctx, &app.wg)
	}
	app.wg.Add(1)
	go app.RaffleModule.Run(ctx, &app.wg)

	go func() {
		if err := app.Router.Run(ctx); err != nil {
			errCh <- fmt.Errorf("watermill router: %w", err)
		}
	}()
	select {
	case <-app.Router.Running():
	case err := <-errCh:
		return err
	}

	if err := app.Queue.Start(ctx); err != nil {
		return err
	}

	go func() {
		if err := app.Observability.ServeMetrics(ctx); err != nil {
			errCh <- err
		}
	}()

	go func() {
		logger.InfoContext(ctx, "HTTP server listening", attr.String("address", app.HTTPServer.Addr))
		if err := app.HTTPServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Close stops every component in reverse start order.
func (app *App) Close(ctx context.Context) error {
	logger := app.Observability.Provider.Logger
	var errs []error

	if app.HTTPServer != nil {
		if err := app.HTTPServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http server: %w", err))
		}
	}
	if app.Queue != nil {
		if err := app.Queue.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("queue: %w", err))
		}
	}
	if app.RaffleModule != nil {
		if err := app.RaffleModule.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if app.VRFModule != nil {
		if err := app.VRFModule.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	app.wg.Wait()

	if app.EventBus != nil {
		if err := app.EventBus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("event bus: %w", err))
		}
	}
	if app.DB != nil {
		if err := app.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}

	logger.Info("Application stopped", attr.Int("errors", len(errs)))
	return errors.Join(errs...)
}
