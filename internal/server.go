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

	"github.com/IBM/pgxpoolprometheus"
	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/multierr"

	"github.com/2beens/catalogguard/internal/admin"
	"github.com/2beens/catalogguard/internal/auth"
	"github.com/2beens/catalogguard/internal/config"
	"github.com/2beens/catalogguard/internal/contact"
	"github.com/2beens/catalogguard/internal/db"
	"github.com/2beens/catalogguard/internal/middleware"
	"github.com/2beens/catalogguard/internal/ratelimit"
	"github.com/2beens/catalogguard/internal/telemetry/metrics"
	"github.com/2beens/catalogguard/internal/telemetry/tracing"
	"github.com/2beens/catalogguard/pkg"
)

const (
	serviceName = "catalog-guard"

	// request bodies of this service are small JSON/form payloads
	maxRequestBodyBytes = 64 * 1024
)

type contactRepo interface {
	Add(ctx context.Context, msg *contact.Message) (*contact.Message, error)
	List(ctx context.Context, onlyUnread bool) ([]contact.Message, error)
	MarkRead(ctx context.Context, id int) error
	Delete(ctx context.Context, id int) error
}

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	versionInfo       string

	config      *config.Config
	dbPool      *pgxpool.Pool
	redisClient *redis.Client
	contactRepo contactRepo

	admin        *auth.Admin
	tokenService *auth.TokenService
	rateLimiter  *ratelimit.Limiter
	memoryStore  *ratelimit.MemoryStore // set only with the memory store, swept in the background
	apiThrottler middleware.APIThrottler

	// background workers
	cancelWorkers context.CancelFunc
	workersWg     sync.WaitGroup

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config      *config.Config
	VersionInfo string
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	cfg := params.Config

	// the pool connects lazily, so the service starts even when postgres is not up yet
	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost:         cfg.PostgresHost,
		DBPort:         cfg.PostgresPort,
		DBName:         cfg.PostgresDBName,
		DBUser:         cfg.PostgresUser,
		DBPassword:     cfg.PostgresPassword,
		TracingEnabled: cfg.TracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("new db pool: %w", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Warnf("failed to ping db: %s", err)
	} else if err := db.Migrate(ctx, dbPool); err != nil {
		log.Errorf("failed to migrate db: %s", err)
	}

	pgxpoolCollector := pgxpoolprometheus.NewCollector(
		dbPool,
		map[string]string{"db_name": cfg.PostgresDBName},
	)
	promRegistry := metrics.SetupPrometheus(pgxpoolCollector)
	metricsManager := metrics.NewManager("backend", "guard", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0) // set to 1 once serving

	var rdb *redis.Client
	if cfg.NeedsRedis() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
			Password: cfg.RedisPassword,
			DB:       0, // use default DB
		})

		rdbStatus := rdb.Ping(ctx)
		if err := rdbStatus.Err(); err != nil {
			log.Errorf("--> failed to ping redis: %s", err)
		} else {
			log.Debugf("redis ping: %s", rdbStatus.Val())
		}
	}

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(cfg.TracingEnabled, serviceName, rdb)
	if err != nil {
		dbPool.Close()
		return nil, err
	}

	var revoker auth.Revoker
	if cfg.RevokeOnLogout {
		revoker = auth.NewDenylist(cfg.DenylistSizeBytes)
	}

	s := &Server{
		config:      cfg,
		dbPool:      dbPool,
		redisClient: rdb,
		contactRepo: contact.NewRepo(dbPool),
		versionInfo: params.VersionInfo,

		admin: &auth.Admin{
			Username:     cfg.AdminUsername,
			PasswordHash: cfg.AdminPasswordHash,
		},
		tokenService: auth.NewTokenService(cfg.JWTSecret, cfg.JWTExpiresIn(), revoker),

		// telemetry
		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}

	s.rateLimiter, s.memoryStore = newRateLimiter(cfg, rdb)
	if cfg.APIRateLimitPerMin > 0 {
		s.apiThrottler = redis_rate.NewLimiter(rdb)
	}

	return s, nil
}

func newRateLimiter(cfg *config.Config, rdb *redis.Client) (*ratelimit.Limiter, *ratelimit.MemoryStore) {
	switch cfg.RateLimitStore {
	case "redis":
		log.Debugln("rate limiter: using redis store")
		return ratelimit.NewLimiter(ratelimit.NewRedisStore(rdb)), nil
	case "lru":
		log.Debugf("rate limiter: using lru store, size %d", cfg.RateLimitLRUSize)
		// entries outlive the longest window, so no live window gets dropped by the ttl
		return ratelimit.NewLimiter(ratelimit.NewLRUStore(cfg.RateLimitLRUSize, longestWindow())), nil
	default:
		log.Debugln("rate limiter: using memory store")
		store := ratelimit.NewMemoryStore()
		return ratelimit.NewLimiter(store), store
	}
}

func longestWindow() time.Duration {
	if ratelimit.LoginLimit.Window > ratelimit.ContactLimit.Window {
		return ratelimit.LoginLimit.Window
	}
	return ratelimit.ContactLimit.Window
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("main-router"))

	r.HandleFunc("/health", s.handleHealth).Methods("GET").Name("health")

	adminHandler := admin.NewHandler(
		s.admin,
		s.tokenService,
		s.metricsManager,
		s.config.IsProduction(),
		s.config.RevokeOnLogout,
	)
	adminHandler.SetupRoutes(r, s.rateLimiter)

	contactHandler := contact.NewHandler(s.contactRepo, s.metricsManager)
	contactHandler.SetupRoutes(r, s.rateLimiter, s.tokenService)

	// all the rest - unhandled paths, registered last
	r.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pkg.WriteJSONError(w, http.StatusNotFound, "Not found")
	}).Name("unknown")

	accessGate := middleware.NewAccessGate(s.tokenService, s.metricsManager)

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors(s.config.AllowedOrigins))
	if s.apiThrottler != nil {
		r.Use(middleware.Throttle(s.apiThrottler, s.config.APIRateLimitPerMin, s.metricsManager))
	}
	r.Use(accessGate.AccessCheck())
	r.Use(middleware.LimitRequestBody(maxRequestBodyBytes))
	r.Use(middleware.DrainAndCloseRequest())

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.versionInfo,
	})
}

func (s *Server) Serve(ctx context.Context, host string, port int) {
	router := s.routerSetup()

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      router,
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
		ConnState:    s.connStateMetrics,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.InstrumentMetricHandler(
		s.promRegistry,
		promhttp.HandlerFor(s.promRegistry, promhttp.HandlerOpts{}),
	))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:    metricsAddr,
		Handler: otelhttp.NewHandler(metricsRouter, "metrics"),
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

	s.startWorkers(ctx)

	s.metricsManager.GaugeLifeSignal.Set(1)
}

func (s *Server) startWorkers(ctx context.Context) {
	workersCtx, cancel := context.WithCancel(ctx)
	s.cancelWorkers = cancel

	if s.memoryStore != nil {
		s.workersWg.Add(1)
		go func() {
			defer s.workersWg.Done()
			s.memoryStore.RunSweeper(workersCtx, s.config.RateLimitSweepInterval, time.Now)
		}()
	}
}

func (s *Server) GracefulShutdown() error {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	if s.cancelWorkers != nil {
		s.cancelWorkers()
	}
	s.workersWg.Wait()
	log.Trace("background workers stopped ...")

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	var shutdownErr error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			shutdownErr = multierr.Append(shutdownErr, fmt.Errorf("shutdown http server: %w", err))
		}
		log.Warnln("server shut down")
	}

	if s.metricsHttpServer != nil {
		if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
			shutdownErr = multierr.Append(shutdownErr, fmt.Errorf("shutdown metrics http server: %w", err))
		}
		log.Warnln("metrics server shut down")
	}

	s.otelShutdown()
	log.Trace("otel shut down ...")

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			shutdownErr = multierr.Append(shutdownErr, fmt.Errorf("close redis client: %w", err))
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

	return shutdownErr
}

func (s *Server) connStateMetrics(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.metricsManager.GaugeOpenConnections.Add(1)
	case http.StateHijacked, http.StateClosed:
		s.metricsManager.GaugeOpenConnections.Add(-1)
	default:
		// do nothing
	}
}
