package main

import (
	"context"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chat-app/internal/auth"
	"chat-app/internal/config"
	"chat-app/internal/db"
	"chat-app/internal/handlers"
	"chat-app/internal/logger"
	"chat-app/internal/middleware"
	"chat-app/internal/observability"
	"chat-app/internal/rabbitmq"
	"chat-app/internal/repositories"
	"chat-app/internal/telemetry"
	"chat-app/internal/uploads"
	"chat-app/internal/ws"
)

const serviceName = "chat-app"

func main() {
	cfg := config.Load()
	logger.Init(cfg.Environment)

	shutdownTracing, err := observability.InitTracing(context.Background(), serviceName, cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init tracing")
	}
	defer shutdownTracing(context.Background())

	database, err := db.Connect(cfg.DBDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to db")
	}
	defer database.Close()

	store, err := uploads.NewDiskStore(cfg.UploadDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init upload store")
	}

	eventPublisher, err := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.EventExchange)
	if err != nil {
		logger.Warn().Err(err).Msg("event publishing disabled")
	} else {
		observability.SetPublisher(eventPublisher)
		defer eventPublisher.Close()
	}

	auditPublisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AuditExchange)
	defer auditPublisher.Close()
	audit := telemetry.NewAuditEmitter(auditPublisher, "audit_logs.chat", serviceName, cfg.Environment)

	userRepo := repositories.NewUserRepo(database)
	sessionRepo := repositories.NewSessionRepo(database)
	chatRepo := repositories.NewChatRepo(database)
	messageRepo := repositories.NewMessageRepo(database)

	tokens := auth.NewTokenManager(cfg.JWTSecret)
	hub := ws.NewHub()

	authHandler := handlers.NewAuthHandler(userRepo, sessionRepo, tokens, audit)
	chatHandler := handlers.NewChatHandler(chatRepo, messageRepo, userRepo, store, hub)
	adminHandler := handlers.NewAdminHandler(userRepo, audit)
	wsHandler := ws.NewHandler(hub, chatRepo, tokens, sessionRepo)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(otelgin.Middleware(serviceName))
	if !cfg.IsProduction() {
		router.Use(cors.Default())
	}

	router.Static("/uploads", store.Dir())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authGuard := middleware.Auth(tokens, sessionRepo)
	adminGuard := middleware.RequireAdmin(userRepo)

	api := router.Group("/api")
	{
		api.POST("/auth/register", authHandler.Register)
		api.POST("/auth/login", authHandler.Login)
		api.POST("/auth/logout", authHandler.Logout)
		api.GET("/auth/me", authGuard, authHandler.Me)

		chat := api.Group("/chat", authGuard)
		chat.GET("/conversations", chatHandler.ListConversations)
		chat.POST("/conversation", chatHandler.StartConversation)
		chat.GET("/messages/:chatId", chatHandler.GetMessages)
		chat.POST("/messages", chatHandler.PostMessage)
		chat.GET("/users", chatHandler.SearchUsers)

		admin := api.Group("/admin", authGuard, adminGuard)
		admin.GET("/users", adminHandler.ListUsers)
		admin.GET("/users/:id", adminHandler.GetUser)
		admin.POST("/users/:id/reset-password", adminHandler.ResetPassword)
		admin.DELETE("/users/:id", adminHandler.DeleteUser)
	}

	router.GET("/ws", wsHandler.Handle)

	logger.Info().Str("port", cfg.Port).Str("environment", cfg.Environment).Msg("chat server starting")
	if err := router.Run(":" + cfg.Port); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}
