package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/wirechat/wirechat/internal/api"
	"github.com/wirechat/wirechat/internal/auth"
	"github.com/wirechat/wirechat/internal/broadcast"
	"github.com/wirechat/wirechat/internal/broker"
	"github.com/wirechat/wirechat/internal/config"
	"github.com/wirechat/wirechat/internal/gateway"
	"github.com/wirechat/wirechat/internal/jobs"
	"github.com/wirechat/wirechat/internal/mail"
	"github.com/wirechat/wirechat/internal/models"
	"github.com/wirechat/wirechat/internal/presence"
	"github.com/wirechat/wirechat/internal/scan"
	"github.com/wirechat/wirechat/internal/scheduler"
	"github.com/wirechat/wirechat/internal/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Persistence: PostgreSQL in production, SQLite for development.
	var (
		db  store.DataStore
		err error
	)
	if cfg.DatabaseURL != "" {
		db, err = store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		logger.Info().Msg("connected to PostgreSQL")
	} else {
		db, err = store.NewSQLiteStore(ctx, os.Getenv("SQLITE_PATH"))
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite open failed")
		}
		logger.Info().Msg("using SQLite store")
	}
	defer db.Close()

	// Shared Redis: presence counters, verdict cache, pub/sub relay,
	// scheduler guard. Absent in single-instance development.
	var (
		rdb       *redis.Client
		subClient *redis.Client
		pres      presence.Store  = presence.NewMemoryStore()
		scanCache scan.Cache      = scan.NewMemoryCache()
		fireGuard scheduler.Guard = scheduler.AlwaysFire{}
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		rdb = redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer rdb.Close()

		// Dedicated connection for the blocking subscription.
		subClient = redis.NewClient(opts)
		defer subClient.Close()

		pres = presence.NewRedisStore(rdb)
		scanCache = scan.NewRedisCache(rdb)
		fireGuard = scheduler.NewRedisGuard(rdb)
		logger.Info().Msg("connected to Redis")
	}

	// Collaborator boundaries. Real deployments inject the application's
	// verifier, mail sender, renderer, and classifier here.
	verifier := buildVerifier(cfg)
	sender := &mail.LogSender{Logger: logger}
	renderer := mail.FallbackRenderer{}
	classifier := &scan.FixedClassifier{Verdict: models.ScanVerdict{
		Safe:   true,
		Status: models.ScanStatusSafe,
		Score:  0,
	}}

	// Gateway with explicit constructor injection throughout.
	gw := gateway.New(
		verifier,
		gateway.NewStoreAuthorizer(db),
		pres,
		broadcast.Noop{},
		cfg.AuthGrace,
		logger,
	)

	// Cross-instance broadcast adapter. The gateway and the adapter
	// reference each other (publish out, deliver in), so the relay is wired
	// after construction, before any connection is accepted.
	if rdb != nil {
		adapter := broadcast.New(cfg.InstanceID, rdb, subClient, gw, logger)
		gw.SetRelay(adapter)
		go func() {
			if err := adapter.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("cross-instance delivery unavailable")
			}
		}()
	}

	// Broker producers and consumers.
	var sched *scheduler.Scheduler
	if cfg.AmqpURL != "" {
		conn, err := broker.Dial(ctx, cfg.AmqpURL, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("broker connection failed")
		}
		defer conn.Close()

		producer, err := broker.NewProducer(conn, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("broker topology declaration failed")
		}

		pipeline := scan.NewPipeline(scanCache, db, classifier, producer, renderer, logger)

		consumers := []*broker.Consumer{
			broker.NewConsumer(conn, broker.EmailBinding, jobs.NewEmailConsumer(sender, logger).Handle, logger),
			broker.NewConsumer(conn, broker.ScanBinding, jobs.NewScanConsumer(pipeline).Handle, logger),
			broker.NewConsumer(conn, broker.DigestBinding, jobs.NewDigestConsumer(db, renderer, producer, logger).Handle, logger),
		}
		for _, c := range consumers {
			c := c
			go func() {
				_ = c.Run(ctx)
			}()
		}

		// Daily unread digest trigger.
		sched, err = scheduler.New(cfg.DigestTimezone, fireGuard, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("scheduler init failed")
		}
		err = sched.AddDaily("chat.unread.digest", cfg.DigestCron, func(ctx context.Context) error {
			return producer.PublishUnreadDigest(ctx)
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("digest schedule failed")
		}
		sched.Start()
	}

	// HTTP surface.
	wsHandler := gateway.NewHandler(gw, cfg.MaxMessageSize, logger)
	router := api.NewRouter(logger, wsHandler, api.NewHealthHandler(cfg.InstanceID, db, rdb))

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Str("instance", cfg.InstanceID).
			Msg("starting wirechat server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")
	stop()
	if sched != nil {
		sched.Stop()
	}
	gw.Shutdown()

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}

// buildVerifier returns the credential verifier. Development trusts tokens
// of the form "<uuid>" (optionally "<uuid>:admin") so local clients need no
// identity service; production must inject a real verifier.
func buildVerifier(cfg *config.Config) auth.Verifier {
	if !cfg.IsDevelopment() {
		return auth.VerifierFunc(func(ctx context.Context, token string) (*auth.Principal, error) {
			// Placeholder until the identity service client is wired in.
			return nil, auth.ErrInvalidToken
		})
	}

	return auth.VerifierFunc(func(_ context.Context, token string) (*auth.Principal, error) {
		admin := false
		if rest, ok := strings.CutSuffix(token, ":admin"); ok {
			token = rest
			admin = true
		}
		id, err := uuid.Parse(token)
		if err != nil {
			return nil, auth.ErrInvalidToken
		}
		return &auth.Principal{ID: id, Admin: admin}, nil
	})
}
