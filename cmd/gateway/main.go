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

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/automarked/automarked-sub000/internal/config"
	"github.com/automarked/automarked-sub000/internal/handlers"
	"github.com/automarked/automarked-sub000/internal/observability"
	"github.com/automarked/automarked-sub000/internal/repositories"
	"github.com/automarked/automarked-sub000/internal/telemetry"
	"github.com/automarked/automarked-sub000/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "automarked-gateway").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "automarked-gateway", cfg.OTLPEndpoint, cfg.Environment)
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
			auditEmitter = telemetry.NewAuditEmitter(publisher, "audit.gateway", "automarked-gateway", cfg.Environment, logger)
			defer publisher.Close()
		}
	}

	var (
		messages      repositories.MessageStore
		notifications repositories.NotificationStore
		groups        repositories.GroupStore
	)
	if cfg.DatabaseDSN != "" {
		db, err := repositories.Connect(cfg.DatabaseDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to db")
		}
		defer db.Close()
		messages = repositories.NewPostgresMessageStore(db)
		notifications = repositories.NewPostgresNotificationStore(db)
		groups = repositories.NewPostgresGroupStore(db)
		logger.Info().Msg("using postgres stores")
	} else {
		messages = repositories.NewMemoryMessageStore()
		notifications = repositories.NewMemoryNotificationStore()
		groups = repositories.NewMemoryGroupStore()
		logger.Info().Msg("using in-memory stores")
	}

	hub := ws.NewHub(logger)
	gatewayWS := ws.NewGatewayHandler(hub, messages, notifications, logger)

	chatHandler := handlers.NewChatHandler(messages, logger)
	notificationHandler := handlers.NewNotificationHandler(notifications, groups, hub, logger)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("automarked-gateway"))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/chat/messages", chatHandler.GetMessages)
	router.GET("/chat/user-chats", chatHandler.GetUserChats)
	router.GET("/chat/unread/:userId", chatHandler.GetUnreadCount)

	router.GET("/notifications/:userId", notificationHandler.List)
	router.GET("/notifications/unread/:userId", notificationHandler.ListUnread)
	router.PATCH("/notifications/read/:userId", notificationHandler.MarkAllRead)
	router.DELETE("/notifications/:userId/:notificationId", notificationHandler.Delete)

	router.GET("/notifications-group/:companyId", notificationHandler.GroupMembers)
	router.POST("/notifications-group/add", notificationHandler.GroupAdd)
	router.POST("/notifications-group/remove", notificationHandler.GroupRemove)
	router.POST("/notifications-group/delete", notificationHandler.GroupClear)

	router.GET("/ws", gatewayWS.Handle)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handlers.RegisterDebugRoutes(router, auditEmitter, cfg.DebugRoutes)

	server := &http.Server{
		Addr:    cfg.GatewayAddress(),
		Handler: router,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("gateway listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("tracing shutdown failed")
	}
}
