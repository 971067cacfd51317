package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/2beens/contenthub/internal/admin"
	"github.com/2beens/contenthub/internal/auth"
	"github.com/2beens/contenthub/internal/config"
	"github.com/2beens/contenthub/internal/db"
	"github.com/2beens/contenthub/internal/login"
	"github.com/2beens/contenthub/internal/mailer"
	"github.com/2beens/contenthub/internal/middleware"
	"github.com/2beens/contenthub/internal/telemetry/metrics"
	"github.com/2beens/contenthub/internal/telemetry/tracing"
	"github.com/2beens/contenthub/internal/verification"
	"github.com/2beens/contenthub/pkg"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/extra/redisotel/v8"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
)

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	versionInfo       string

	config      *config.Config
	dbPool      *pgxpool.Pool
	redisClient *redis.Client

	tokenIssuer *auth.TokenIssuer
	authService *auth.Service
	// nil when the code store expires entries on its own
	sweeper *verification.Sweeper

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()

	backgroundCancel context.CancelFunc
	backgroundWg     sync.WaitGroup
}

type NewServerParams struct {
	Config                  *config.Config
	VersionInfo             string
	JWTSecret               string
	PostgresPassword        string
	RedisPassword           string
	SMTPUsername            string
	SMTPPassword            string
	HoneycombTracingEnabled bool
	OtelServiceName         string
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	cfg := params.Config

	// fail fast on a bad secret, before any connection is opened
	tokenIssuer, err := auth.NewTokenIssuer(params.JWTSecret, cfg.SessionTTL.Duration)
	if err != nil {
		return nil, fmt.Errorf("session token issuer: %w", err)
	}

	dbParams := db.NewDBPoolParams{
		DBHost:         cfg.PostgresHost,
		DBPort:         cfg.PostgresPort,
		DBName:         cfg.PostgresDBName,
		DBUser:         cfg.PostgresUser,
		DBPassword:     params.PostgresPassword,
		TracingEnabled: params.HoneycombTracingEnabled,
	}
	if err := db.RunMigrations(dbParams.ConnString()); err != nil {
		return nil, fmt.Errorf("run db migrations: %w", err)
	}

	dbPool, err := db.NewDBPool(ctx, dbParams)
	if err != nil {
		return nil, fmt.Errorf("new db pool: %w", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Warnf("failed to ping db: %s", err)
	}

	pgxpoolCollector := pgxpoolprometheus.NewCollector(
		dbPool,
		map[string]string{"db_name": cfg.PostgresDBName},
	)
	promRegistry := metrics.SetupPrometheus(pgxpoolCollector)
	metricsManager := metrics.NewManager("contenthub", "admin_auth", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
		Password: params.RedisPassword,
		DB:       0, // use default DB
	})
	if params.HoneycombTracingEnabled {
		rdb.AddHook(redisotel.NewTracingHook())
	}

	rdbStatus := rdb.Ping(ctx)
	if err := rdbStatus.Err(); err != nil {
		log.Errorf("--> failed to ping redis: %s", err)
	} else {
		log.Debugf("redis ping: %s", rdbStatus.Val())
	}

	// use honeycomb distro to setup OpenTelemetry SDK
	serviceName := params.OtelServiceName
	if serviceName == "" {
		serviceName = "contenthub-backend"
	}
	otelShutdown, err := tracing.HoneycombSetup(params.HoneycombTracingEnabled, serviceName)
	if err != nil {
		dbPool.Close()
		_ = rdb.Close()
		return nil, err
	}

	var (
		codeStore verification.Store
		sweeper   *verification.Sweeper
	)
	switch cfg.VerificationStore {
	case config.VerificationStoreRedis:
		codeStore = verification.NewRedisStore(rdb)
	default:
		psqlStore := verification.NewPsqlStore(dbPool)
		codeStore = psqlStore
		sweeper = verification.NewSweeper(psqlStore, cfg.SweepInterval.Duration, metricsManager)
	}
	log.Debugf("verification code store: %s", cfg.VerificationStore)

	dispatcher, err := newDispatcher(cfg, params, metricsManager)
	if err != nil {
		otelShutdown()
		dbPool.Close()
		_ = rdb.Close()
		return nil, err
	}

	authService := auth.NewService(
		admin.NewRepo(dbPool),
		codeStore,
		dispatcher,
		tokenIssuer,
		cfg.VerificationCodeTTL.Duration,
		metricsManager,
	)

	return &Server{
		config:      cfg,
		versionInfo: params.VersionInfo,
		dbPool:      dbPool,
		redisClient: rdb,

		tokenIssuer: tokenIssuer,
		authService: authService,
		sweeper:     sweeper,

		// telemetry
		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}, nil
}

func newDispatcher(cfg *config.Config, params NewServerParams, metricsManager *metrics.Manager) (mailer.Dispatcher, error) {
	if cfg.MailDevLogOnly {
		log.Warnln("mail transport disabled, verification codes will only be logged")
		return mailer.NewLogDispatcher(metricsManager), nil
	}

	dispatcher, err := mailer.NewSMTPDispatcher(mailer.SMTPParams{
		Host:        cfg.MailHost,
		Port:        cfg.MailPort,
		Username:    params.SMTPUsername,
		Password:    params.SMTPPassword,
		From:        cfg.MailFrom,
		SendTimeout: cfg.MailSendTimeout.Duration,
		CodeTTL:     cfg.VerificationCodeTTL.Duration,
	}, metricsManager)
	if err != nil {
		return nil, fmt.Errorf("mail dispatcher: %w", err)
	}
	return dispatcher, nil
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("contenthub-router"))

	r.HandleFunc("/", s.handleRoot).Methods("GET", "POST", "OPTIONS").Name("root")
	r.HandleFunc("/version", s.handleGetVersionInfo).Methods("GET").Name("version")

	loginHandler := login.NewHandler(s.authService, s.config.SessionTTL.Duration, !s.config.IsDevelopment())
	loginHandler.SetupRoutes(
		r,
		s.tokenIssuer,
		redis_rate.NewLimiter(s.redisClient),
		s.config.LoginRateLimitAllowedPerMin,
		s.config.TrustProxyHeaders,
		s.metricsManager,
	)

	// all the rest - unhandled paths
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pkg.WriteJSONError(w, http.StatusNotFound, "not found")
	})

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest(s.config.TrustProxyHeaders))
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors(s.config.AllowedOrigins))
	r.Use(middleware.LimitAndDrainRequest(middleware.DefaultMaxBodyBytes))

	return r
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteTextResponseOK(w, "I'm OK, thanks ;)")
}

func (s *Server) handleGetVersionInfo(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteTextResponseOK(w, s.versionInfo)
}

func (s *Server) Serve(ctx context.Context, host string, port int) {
	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:           s.routerSetup(),
		Addr:              ipAndPort,
		WriteTimeout:      time.Minute,
		ReadTimeout:       time.Minute,
		ReadHeaderTimeout: 10 * time.Second,
		ConnState:         s.connStateMetrics,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.HandlerFor(
		s.promRegistry,
		promhttp.HandlerOpts{Registry: s.promRegistry},
	))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:              metricsAddr,
		Handler:           metricsRouter,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	bgCtx, cancel := context.WithCancel(ctx)
	s.backgroundCancel = cancel
	if s.sweeper != nil {
		s.backgroundWg.Add(1)
		go func() {
			defer s.backgroundWg.Done()
			s.sweeper.Run(bgCtx)
		}()
	}

	s.metricsManager.GaugeLifeSignal.Set(1)
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	// stop taking requests first, the stores are still needed by in-flight ones
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown http server")
		}
		log.Warnln("server shut down")
	}

	if s.backgroundCancel != nil {
		s.backgroundCancel()
		s.backgroundWg.Wait()
		log.Debugln("background workers stopped")
	}

	s.otelShutdown()
	log.Trace("otel shut down ...")

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Errorf("failed to close redis client conn: %s", err)
		}
	}

	if s.dbPool != nil {
		log.Debugln("closing db pool ...")
		s.dbPool.Close() // blocking operation
		log.Debugln("db pool closed")
	}

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}

	if s.metricsHttpServer != nil {
		if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown metrics http server")
		}
		log.Warnln("metrics server shut down")
	}
}

func (s *Server) connStateMetrics(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.metricsManager.GaugeRequests.Add(1)
	case http.StateClosed, http.StateHijacked:
		s.metricsManager.GaugeRequests.Add(-1)
	default:
		// do nothing
	}
}
