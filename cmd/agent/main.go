package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/automarked/automarked-sub000/internal/chat"
	"github.com/automarked/automarked-sub000/internal/config"
	"github.com/automarked/automarked-sub000/internal/handlers"
	"github.com/automarked/automarked-sub000/internal/notify"
	"github.com/automarked/automarked-sub000/internal/observability"
	"github.com/automarked/automarked-sub000/internal/rest"
	"github.com/automarked/automarked-sub000/internal/socket"
	"github.com/automarked/automarked-sub000/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if cfg.UserID == "" {
		log.Fatal("AUTOMARKED_USER_ID must be set")
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "automarked-sync").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "automarked-sync", cfg.OTLPEndpoint, cfg.Environment)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up tracing")
	}

	var auditEmitter *telemetry.AuditEmitter
	if cfg.AMQPURL != "" {
		publisher, err := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			logger.Warn().Err(err).Msg("event bus unavailable, ops events disabled")
		} else {
			observability.SetPublisher(publisher)
			auditEmitter = telemetry.NewAuditEmitter(publisher, "audit.sync", "automarked-sync", cfg.Environment, logger)
			defer publisher.Close()
		}
	}

	restClient := rest.NewHTTPClient(cfg.GatewayURL, logger)
	sock := socket.NewSession(cfg.SocketURL, logger)

	chatSession := chat.NewSession(cfg.UserID, restClient, sock, logger)
	synchronizer := notify.NewSynchronizer(cfg.UserID, restClient, sock, func(event string) {
		logger.Info().Str("event", event).Msg("alert")
	}, logger)
	groups := notify.NewGroupRegistry(restClient, logger)

	// The gateway may come up after us; keep dialing until it does or we
	// are told to stop.
	connectPolicy := backoff.NewExponentialBackOff()
	connectPolicy.InitialInterval = time.Second
	connectPolicy.MaxInterval = 30 * time.Second
	connectPolicy.MaxElapsedTime = 0
	err = backoff.Retry(func() error {
		return sock.Connect(ctx, cfg.UserID)
	}, backoff.WithContext(connectPolicy, ctx))
	if err != nil {
		logger.Fatal().Err(err).Msg("gateway connection never came up")
	}

	sock.JoinNotificationRoom(cfg.UserID)

	seedCtx, cancelSeed := context.WithTimeout(ctx, 30*time.Second)
	if err := synchronizer.Fetch(seedCtx); err != nil {
		logger.Warn().Err(err).Msg("initial notification fetch failed")
	}
	if err := synchronizer.FetchUnread(seedCtx); err != nil {
		logger.Warn().Err(err).Msg("initial unread fetch failed")
	}
	chatSession.Refresh(seedCtx)
	synchronizer.SetUnreadMessages(chatSession.Unread())
	cancelSeed()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"connected": sock.Connected(),
		})
	})

	if cfg.DebugRoutes {
		router.GET("/debug/state", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"receiver":       chatSession.Receiver(),
				"messages":       chatSession.Messages(),
				"chats":          chatSession.Chats(),
				"unreadMessages": synchronizer.UnreadMessages(),
				"notifications":  synchronizer.Notifications(),
				"unread":         synchronizer.Unread(),
			})
		})
		router.GET("/debug/groups/:companyId", func(c *gin.Context) {
			companyID := c.Param("companyId")
			if err := groups.Fetch(c.Request.Context(), companyID); err != nil {
				c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"notifications": groups.Members(companyID)})
		})
	}
	handlers.RegisterDebugRoutes(router, auditEmitter, cfg.DebugRoutes)

	server := &http.Server{
		Addr:    cfg.AgentAddress(),
		Handler: router,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("sync agent listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	_ = sock.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("tracing shutdown failed")
	}
}
