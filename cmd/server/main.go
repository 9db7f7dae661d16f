package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"teukbyeolsil/internal/api"
	"teukbyeolsil/internal/archive"
	"teukbyeolsil/internal/cache"
	"teukbyeolsil/internal/config"
	"teukbyeolsil/internal/database"
	"teukbyeolsil/internal/events"
	"teukbyeolsil/internal/metrics"
	"teukbyeolsil/internal/models"
	"teukbyeolsil/internal/service"
	"teukbyeolsil/shared/access"
	"teukbyeolsil/shared/audit"
)

func newLogger(level, format string) zerolog.Logger {
	var logger zerolog.Logger
	if format == "json" {
		logger = zerolog.New(os.Stdout)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return logger.Level(lvl).With().Timestamp().Logger()
}

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		boot := newLogger("info", "console")
		boot.Fatal().Err(err).Msg("failed to load config")
	}
	logger := newLogger(cfg.Logging.Level, cfg.Logging.Format)

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		rdb     *redis.Client
		limiter cache.Limiter = cache.NewMemoryLimiter()
	)
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		limiter = cache.NewFailoverLimiter(cache.NewRedisLimiter(rdb), limiter, &logger)
	}
	roomCache := cache.New(rdb, cfg.Redis.CacheTTL)

	bus := events.NewBus(&logger)
	var m *metrics.Metrics
	if cfg.Monitoring.PrometheusEnabled {
		m = metrics.New("teukbyeolsil", prometheus.DefaultRegisterer)
		m.Subscribe(bus)
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	if err := config.WatchRooms(ctx, cfg.RoomsFile, 0, func(rc *config.RoomsConfig) {
		seedRooms(ctx, db, roomCache, rc, &logger)
	}); err != nil {
		logger.Warn().Err(err).Msg("rooms file not loaded, using rooms from the database")
	}

	policy, err := service.PolicyFromConfig(cfg.Booking)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid booking config")
	}

	sweeper := archive.NewSweeper(db, archive.Policy{Retention: cfg.ArchiveRetention()}, nil, &logger)
	exporter := audit.NewExporter(db, db, nil, logger)

	svc := api.Services{
		Access:      access.NewService(db, logger),
		Booking:     service.NewBookingService(db, db, db, limiter, bus, policy, nil, &logger),
		Review:      service.NewReviewService(db, bus, nil, &logger),
		Restriction: service.NewRestrictionService(db, roomCache, bus, &logger),
		Room:        service.NewRoomService(db, roomCache, bus, &logger),
		Notice:      service.NewNoticeService(db, roomCache, bus),
		Account:     service.NewAccountService(db, cfg.Accounts.Staff, bus, &logger),
		Archive:     service.NewArchiveService(sweeper, db, exporter, bus, &logger),
	}

	go database.NewBackupService(db, cfg.Database.Backup, &logger).Start(ctx)
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, db, rdb, &logger)

	server := api.NewHTTPServer(cfg.HTTP, svc, m, &logger)
	logger.Info().Str("app", cfg.App.Name).Str("env", cfg.App.Environment).Msg("booking service started")
	if err := server.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("http server error")
	}
	logger.Info().Msg("booking service stopped")
}

// seedRooms upserts every room in rc by name. Rooms missing from the file
// are left alone since they may hold reservations.
func seedRooms(ctx context.Context, db *database.DB, c *cache.Cache, rc *config.RoomsConfig, logger *zerolog.Logger) {
	for _, r := range rc.Rooms {
		room := &models.Room{
			Name:            r.Name,
			Capacity:        r.Capacity,
			Location:        r.Location,
			Facilities:      r.Facilities,
			RestrictedHours: r.RestrictedHours,
			Notes:           r.Notes,
		}
		if err := db.UpsertRoomByName(ctx, room); err != nil {
			logger.Error().Err(err).Str("room", r.Name).Msg("seed room failed")
		}
	}
	c.Invalidate(ctx, cache.KeyRooms)
	logger.Info().Int("rooms", len(rc.Rooms)).Msg("rooms loaded")
}

func startHealthServer(ctx context.Context, port int, db *database.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := db.HealthCheck(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	serve(ctx, fmt.Sprintf(":%d", port), mux, "health", logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	serve(ctx, fmt.Sprintf(":%d", port), mux, "metrics", logger)
}

func serve(ctx context.Context, addr string, h http.Handler, name string, logger *zerolog.Logger) {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Str("server", name).Msg("server error")
	}
}
