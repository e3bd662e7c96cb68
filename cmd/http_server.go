package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mockly/internal/capture"
	"mockly/internal/features"
	"mockly/internal/generator"
	"mockly/internal/handler"
	"mockly/internal/metrics"
	"mockly/internal/repo"
	sv "mockly/internal/service"
	ext "mockly/internal/utils/extractor"
	cache "mockly/internal/utils/redis"
	"mockly/internal/utils/sse"
	"mockly/pkg/database/client"
	rabbit "mockly/pkg/rabbit/pkg"
	redis "mockly/pkg/redis/pkg"
	"mockly/schema"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the event stream",
	RunE: func(cmd *cobra.Command, args []string) error {
		defer logger.Sync()
		return serve(cmd.Context())
	},
}

func serve(ctx context.Context) error {
	setDefaults()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repository, closeDB, err := openRepository(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	store, err := openCache()
	if err != nil {
		return err
	}

	text, err := sv.New(sv.ReadConfig(), logger)
	if err != nil {
		logger.Error("Failed to initialize text service", zap.Error(err))
		return err
	}

	m := metrics.MustNewMetrics(prometheus.DefaultRegisterer)
	hub := sse.NewHub()

	pool := features.NewEventWorkerPool(features.PoolConfig{
		Workers:         viper.GetInt("events.workers"),
		QueuePerWorker:  viper.GetInt("events.queue_per_worker"),
		MaxTaskWaitTime: viper.GetDuration("events.max_task_wait_time"),
	}, hub, rabbit.New(rabbit.ReadConfig()), m, logger)
	pool.Start()
	defer pool.Stop()

	interviews := features.New(features.ReadConfig(), repository, generator.New(text, logger, generator.WithRepair(viper.GetBool("llm.repair_json"))), store, pool, m, logger)
	defer interviews.Shutdown()

	captures := capture.NewManager(capture.ReadConfig(), m, logger)
	defer captures.CloseAll()

	extractor := ext.New(viper.GetString("auth.jwt_secret"))
	limiter := handler.NewRateLimiter(handler.RateLimitConfig{
		RequestsPerMinute: viper.GetInt("server.rate_limit.requests_per_minute"),
		Burst:             viper.GetInt("server.rate_limit.burst"),
	})

	engine := newEngine(m)
	engine.GET("/healthz", healthz(repository, pool))
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handler.New(interviews, captures, extractor, limiter, logger).Register(engine)

	stream := handler.NewStream(hub, extractor, viper.GetDuration("server.sse_heartbeat"), logger)
	servers := []*http.Server{{
		Addr:              fmt.Sprintf("%s:%s", viper.GetString("server.host"), viper.GetString("server.port")),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}}
	if sseServer := newSSEServer(stream, m); sseServer != nil {
		servers = append(servers, sseServer)
	} else {
		stream.Register(engine)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			logger.Info("Starting HTTP server", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down HTTP servers...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		var errs []error
		for _, srv := range servers {
			errs = append(errs, srv.Shutdown(shutdownCtx))
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		logger.Error("HTTP server stopped with error", zap.Error(err))
		return err
	}
	logger.Info("HTTP servers stopped")
	return nil
}

func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.sse_heartbeat", "60s")
	viper.SetDefault("events.workers", 4)
	viper.SetDefault("events.queue_per_worker", 64)
	viper.SetDefault("events.max_task_wait_time", "100ms")
	viper.SetDefault("cache.local_size", 1024)
}

func newEngine(m *metrics.Metrics) *gin.Engine {
	if !viper.GetBool("server.debug") {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery(), handler.RequestID(), handler.Logger(), handler.Metrics(m))

	corsConfig := cors.DefaultConfig()
	if origins := viper.GetStringSlice("server.cors.allow_origins"); len(origins) > 0 {
		corsConfig.AllowOrigins = origins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", ext.UserID, ext.Status, ext.RequestID}
	corsConfig.ExposeHeaders = []string{ext.RequestID}
	corsConfig.AllowWebSockets = true
	engine.Use(cors.New(corsConfig))
	return engine
}

func openRepository(ctx context.Context) (*repo.Repository, func(), error) {
	config := client.ReadConfig()
	if config.Type == client.TypeMemory {
		logger.Warn("Using in-memory interview store; records are lost on restart")
		return repo.NewMemory(), func() {}, nil
	}

	drv, err := client.Open("mockly", config)
	if err != nil {
		logger.Error("Failed to initialize Ent driver", zap.Error(err))
		return nil, nil, err
	}
	closeDB := func() {
		if err := drv.Close(); err != nil {
			logger.Error("Failed to close database", zap.Error(err))
		}
	}
	if viper.GetBool("db.auto_migrate") {
		if err := schema.Create(ctx, drv); err != nil {
			closeDB()
			logger.Error("Failed to migrate database", zap.Error(err))
			return nil, nil, err
		}
	}
	logger.Info("Connected to database", zap.String("type", config.Type), zap.String("host", config.Host))
	return repo.New(drv), closeDB, nil
}

func openCache() (cache.Redis, error) {
	config := redis.ReadConfig()
	if !config.Enabled {
		return cache.Local(viper.GetInt("cache.local_size"))
	}
	rdb, err := redis.New(config)
	if err != nil {
		logger.Error("Failed to connect to redis", zap.String("address", config.Address), zap.Error(err))
		return nil, err
	}
	return cache.New(rdb), nil
}

func healthz(repository *repo.Repository, pool *features.EventWorkerPool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if repository.DB != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := repository.DB.PingContext(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "events": pool.GetMetrics()})
	}
}
