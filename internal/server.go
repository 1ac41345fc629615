package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
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

	"github.com/2beens/exercisetracker/internal/config"
	"github.com/2beens/exercisetracker/internal/db"
	"github.com/2beens/exercisetracker/internal/events"
	"github.com/2beens/exercisetracker/internal/health"
	"github.com/2beens/exercisetracker/internal/middleware"
	"github.com/2beens/exercisetracker/internal/telemetry/metrics"
	"github.com/2beens/exercisetracker/internal/telemetry/tracing"
	"github.com/2beens/exercisetracker/internal/users"
	"github.com/2beens/exercisetracker/pkg"
)

const serviceName = "exercise-tracker"

// TrackerStore is a users store the health check can ping.
type TrackerStore interface {
	users.Store
	health.Pinger
}

type exerciseProducer interface {
	PublishExerciseLogged(ctx context.Context, event events.ExerciseLogged) error
	Close() error
}

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server

	config     *config.Config
	store      TrackerStore
	closeStore func()
	producer   exerciseProducer
	listCache  *users.ListCache

	redisClient *redis.Client

	// telemetry
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config                  *config.Config
	RedisPassword           string
	HoneycombTracingEnabled bool
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	cfg := params.Config

	store, dbPool, closeStore, err := NewStore(ctx, cfg, params.HoneycombTracingEnabled)
	if err != nil {
		return nil, err
	}

	var extraCollectors []prometheus.Collector
	if dbPool != nil {
		extraCollectors = append(extraCollectors, pgxpoolprometheus.NewCollector(
			dbPool,
			map[string]string{"db_name": cfg.PostgresDBName},
		))
	}
	promRegistry := metrics.SetupPrometheus(extraCollectors...)
	metricsManager := metrics.NewManager("tracker", "main", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	var rdb *redis.Client
	if addr := cfg.RedisAddr(); addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: params.RedisPassword,
			DB:       0, // use default DB
		})
		rdbStatus := rdb.Ping(ctx)
		if err := rdbStatus.Err(); err != nil {
			log.Errorf("--> failed to ping redis: %s", err)
		} else {
			log.Debugf("redis ping: %s", rdbStatus.Val())
		}
	} else {
		log.Warnln("redis not configured, rate limiting disabled")
	}

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(params.HoneycombTracingEnabled, serviceName, rdb)
	if err != nil {
		closeStore()
		return nil, err
	}

	var producer exerciseProducer = events.NoopProducer{}
	if len(cfg.KafkaBrokers) > 0 {
		log.Infof("publishing exercise events to %v, topic [%s]", cfg.KafkaBrokers, cfg.KafkaTopic)
		producer = events.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	}

	return &Server{
		config:      cfg,
		store:       store,
		closeStore:  closeStore,
		producer:    producer,
		listCache:   users.NewListCache(cfg.UsersCacheTTL()),
		redisClient: rdb,

		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}, nil
}

// NewStore opens the store selected by the config. The pool is returned only for
// the postgres backend. The returned func releases the store.
func NewStore(ctx context.Context, cfg *config.Config, tracingEnabled bool) (TrackerStore, *pgxpool.Pool, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreBackendPostgres:
		dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
			DBHost:         cfg.PostgresHost,
			DBPort:         cfg.PostgresPort,
			DBName:         cfg.PostgresDBName,
			TracingEnabled: tracingEnabled,
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("new db pool: %w", err)
		}
		repo := users.NewPgRepo(dbPool)
		if err := repo.EnsureSchema(ctx); err != nil {
			dbPool.Close()
			return nil, nil, nil, err
		}
		return repo, dbPool, func() {
			log.Debugln("closing db pool ...")
			dbPool.Close() // blocking operation
			log.Debugln("db pool closed")
		}, nil
	case config.StoreBackendSQLite:
		repo, err := users.NewSQLiteRepo(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("new sqlite repo: %w", err)
		}
		return repo, nil, func() {
			if err := repo.Close(); err != nil {
				log.Errorf("close sqlite db: %s", err)
			}
		}, nil
	case config.StoreBackendMemory, "":
		log.Warnln("using in-memory store, data is lost on restart")
		return users.NewMemoryRepo(), nil, func() {}, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown store backend: %s", cfg.StoreBackend)
	}
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("main-router"))

	usersHandler := users.NewHandler(
		users.NewService(s.store, s.producer),
		s.listCache,
		s.metricsManager,
	)
	usersHandler.SetupRoutes(r)

	// writes are rate limited per client, when redis is around
	var reqRateLimiter middleware.RequestRateLimiter
	if s.redisClient != nil {
		reqRateLimiter = redis_rate.NewLimiter(s.redisClient)
	}
	for _, routeName := range []string{"new-user", "new-exercise"} {
		route := r.Get(routeName)
		route.Handler(middleware.RateLimit(
			reqRateLimiter, routeName, s.config.RateLimitPerMin, s.metricsManager,
		)(route.GetHandler()))
	}

	healthHandler := health.NewHandler(s.store, s.redisClient)
	r.HandleFunc("/health", healthHandler.HandleHealth).Methods("GET").Name("health")

	if s.config.StaticDir != "" {
		staticDir := s.config.StaticDir
		r.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
			http.ServeFile(w, req, filepath.Join(staticDir, "index.html"))
		}).Methods("GET").Name("index")
		r.PathPrefix("/public/").Handler(
			http.StripPrefix("/public/", http.FileServer(http.Dir(filepath.Join(staticDir, "public")))),
		).Methods("GET").Name("public")
	}

	// all the rest - unhandled paths
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		pkg.WriteResponse(w, pkg.ContentType.JSON, `{"error":"not found"}`, http.StatusNotFound)
	})

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.DrainAndCloseRequest())

	return r
}

// Handler returns the root handler of the main listener. CORS wraps the router,
// so preflight requests are answered before route matching.
func (s *Server) Handler() http.Handler {
	return middleware.Cors()(s.routerSetup())
}

func (s *Server) Serve(host string, port int) {
	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
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

	if s.config.PrometheusMetricsPort != "" {
		go func() {
			log.Debugf(" > metrics listening on: [%s]", metricsAddr)
			err := s.metricsHttpServer.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatalf("metrics service, listen and serve: %s", err)
			}
		}()
	}

	s.metricsManager.GaugeLifeSignal.Set(1)
}

func (s *Server) GracefulShutdown() error {
	log.Debug("graceful shutdown initiated ...")
	s.metricsManager.GaugeLifeSignal.Set(0)

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	var err error
	// stop taking requests before the things they depend on go away
	if s.httpServer != nil {
		if shutdownErr := s.httpServer.Shutdown(ctx); shutdownErr != nil {
			err = multierr.Append(err, fmt.Errorf("shutdown http server: %w", shutdownErr))
		}
		log.Warnln("server shut down")
	}
	if s.metricsHttpServer != nil {
		if shutdownErr := s.metricsHttpServer.Shutdown(ctx); shutdownErr != nil {
			err = multierr.Append(err, fmt.Errorf("shutdown metrics http server: %w", shutdownErr))
		}
		log.Warnln("metrics server shut down")
	}

	if closeErr := s.producer.Close(); closeErr != nil {
		err = multierr.Append(err, fmt.Errorf("close event producer: %w", closeErr))
	}

	s.otelShutdown()
	log.Trace("otel shut down ...")

	if s.redisClient != nil {
		if closeErr := s.redisClient.Close(); closeErr != nil {
			err = multierr.Append(err, fmt.Errorf("close redis client: %w", closeErr))
		}
	}

	s.closeStore()

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}

	return err
}
