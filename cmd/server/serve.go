package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"friend-connect-backend/internal/common/auth"
	"friend-connect-backend/internal/common/config"
	"friend-connect-backend/internal/common/logger"
	"friend-connect-backend/internal/common/middleware"
	"friend-connect-backend/internal/common/validation"
	friendshttp "friend-connect-backend/internal/features/friends/delivery/http"
	friendsservice "friend-connect-backend/internal/features/friends/service"
	"friend-connect-backend/internal/features/graph/repository"
	notificationhttp "friend-connect-backend/internal/features/notification/delivery/http"
	"friend-connect-backend/internal/features/notification/delivery/ws"
	"friend-connect-backend/internal/features/notification/fanout"
	"friend-connect-backend/internal/features/notification/presence"
	notificationservice "friend-connect-backend/internal/features/notification/service"
	recommendationhttp "friend-connect-backend/internal/features/recommendation/delivery/http"
	recommendationservice "friend-connect-backend/internal/features/recommendation/service"
	userhttp "friend-connect-backend/internal/features/user/delivery/http"
	userservice "friend-connect-backend/internal/features/user/service"
	"friend-connect-backend/internal/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and live notification channel",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.Init(serviceName, cfg.Debug)
	base := logger.Get()
	log := logger.Component("server")
	log.Info().
		Str("store", cfg.Store).
		Str("fanout", cfg.Presence.Fanout).
		Bool("debug", cfg.Debug).
		Msg("Starting friend-connect backend")

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := validation.RegisterBindings(); err != nil {
		return fmt.Errorf("register validators: %w", err)
	}

	ctx := cmd.Context()
	openCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	b, err := openBackend(openCtx, cfg)
	cancel()
	if err != nil {
		return err
	}
	defer func() {
		if err := b.close(context.Background()); err != nil {
			log.Error().Err(err).Msg("Failed to close store")
		}
	}()
	log.Info().Msg("Store connection established")

	tokens := auth.NewTokens(cfg.Auth.Secret, cfg.Auth.TokenTTL)
	registry := presence.NewRegistry()

	var (
		dispatcherOpts []notificationservice.Option
		subscriber     *fanout.Subscriber
	)
	if cfg.Presence.Fanout == config.FanoutRedis {
		dispatcherOpts = append(dispatcherOpts,
			notificationservice.WithPublisher(fanout.NewPublisher(b.redis, fanout.DefaultChannel)))
	}
	dispatcher := notificationservice.NewDispatcher(b.store, registry, base, dispatcherOpts...)
	if cfg.Presence.Fanout == config.FanoutRedis {
		subscriber = fanout.NewSubscriber(b.redis, fanout.DefaultChannel, dispatcher, base)
	}

	userSvc := userservice.NewUserService(b.store, tokens, cfg.Auth.BcryptCost, base)
	friendsSvc := friendsservice.NewService(b.store, dispatcher, base)
	recommendationSvc := recommendationservice.NewService(b.store, recommendationservice.Options{
		DefaultLimit:   cfg.Recommendation.DefaultLimit,
		MaxLimit:       cfg.Recommendation.MaxLimit,
		MaxCandidates:  cfg.Recommendation.MaxCandidates,
		InterestWeight: cfg.Recommendation.InterestWeight,
		Timeout:        cfg.Recommendation.Timeout,
	}, base)

	var limiter *middleware.UserRateLimiter
	if cfg.RateLimit.RequestsPerMinute > 0 {
		limiter = middleware.NewUserRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	httpLog := logger.Component("http")
	router.Use(middleware.Logger(httpLog))
	router.Use(middleware.ErrorHandler(httpLog))
	router.Use(middleware.Recovery(httpLog))
	router.Use(metrics.Middleware())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Server.Origin}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization", "Accept", middleware.TokenHeader}
	router.Use(cors.New(corsConfig))

	api := router.Group("/api")
	users := userhttp.NewUserHandler(userSvc)
	users.RegisterPublicRoutes(api)
	ws.NewHandler(dispatcher, tokens, cfg.Server.Origin, cfg.Presence.SendBuffer, base).RegisterRoutes(api)

	authed := api.Group("", middleware.RequireAuth(tokens))
	users.RegisterRoutes(authed)
	friendshttp.NewFriendsHandler(friendsSvc, limiter).RegisterRoutes(authed)
	recommendationhttp.NewRecommendationHandler(recommendationSvc).RegisterRoutes(authed)
	notificationhttp.NewNotificationHandler(dispatcher).RegisterRoutes(authed)

	registerProbes(router, b.store)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if subscriber != nil {
		g.Go(func() error { return subscriber.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")

		closeLiveChannels(dispatcher, log)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		return nil
	})

	err = g.Wait()
	log.Info().Msg("Server exited")
	return err
}

// closeLiveChannels clears the presence registry and closes every socket
// that was still registered.
func closeLiveChannels(dispatcher *notificationservice.Dispatcher, log zerolog.Logger) {
	chans := dispatcher.Shutdown()
	for _, ch := range chans {
		if c, ok := ch.(io.Closer); ok {
			_ = c.Close()
		}
	}
	log.Info().Int("channels", len(chans)).Msg("Live channels closed")
}

func registerProbes(router *gin.Engine, store repository.GraphStore) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"service":   serviceName,
		})
	})

	router.GET("/live", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := store.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unready",
				"error":   "store unavailable",
				"details": err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":    "ready",
			"timestamp": time.Now().UTC(),
			"service":   serviceName,
		})
	})

	router.GET("/metrics", metrics.Handler())
}
