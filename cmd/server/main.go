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

	"groupbot-gateway/internal/api"
	"groupbot-gateway/internal/automation"
	"groupbot-gateway/internal/config"
	"groupbot-gateway/internal/database"
	"groupbot-gateway/internal/store"
	"groupbot-gateway/internal/telegram"
	"groupbot-gateway/internal/webhook"
	"groupbot-gateway/internal/ws"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.LoadConfig()
	database.InitGorm(cfg)
	db := database.GormDB

	definitions := store.New(db)
	triggerLog := store.NewTriggerLog(db, cfg.LogLimitMax)
	stats, err := store.NewStats(db)
	if err != nil {
		log.Fatalf("Failed to prepare stats queries: %v", err)
	}

	hub := ws.NewHub()
	go hub.Run()

	var messenger automation.Messenger = automation.LogMessenger{}
	var telegramClient *telegram.Client
	if cfg.TelegramToken != "" {
		telegramClient, err = telegram.NewClient(cfg)
		if err != nil {
			log.Fatalf("Failed to start Telegram client: %v", err)
		}
		messenger = telegramClient
	} else {
		log.Println("TELEGRAM_TOKEN not set, actions will only be logged")
	}

	botUsername := cfg.BotUsername
	if botUsername == "" && telegramClient != nil {
		botUsername = telegramClient.Bot().Me.Username
	}

	engine := automation.NewEngine(definitions, triggerLog, messenger,
		automation.WithNotifier(hub),
		automation.WithHTTPTimeout(cfg.HTTPActionTimeout),
		automation.WithBotUsername(botUsername),
	)

	scheduler := automation.NewScheduler(engine, definitions, cfg.Location())
	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	var listener *telegram.Listener
	if telegramClient != nil {
		listener = telegram.NewListener(telegramClient, engine)
		go listener.Start()
	}

	r := gin.Default()

	// CORS Middleware
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, "+webhook.SecretHeader)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	webhookHandler := webhook.NewHandler(cfg, engine)
	automationHandler := api.NewAutomationHandler(definitions, triggerLog, stats)

	// Event ingestion routes
	webhookGroup := r.Group("/webhook", webhookHandler.VerifySecret)
	{
		webhookGroup.POST("/events", webhookHandler.HandleEvent)
		webhookGroup.POST("/messages", webhookHandler.HandleMessage)
		webhookGroup.POST("/members", webhookHandler.HandleMember)
	}

	// Dashboard API Routes
	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/ws", func(c *gin.Context) {
			hub.ServeWs(c.Writer, c.Request)
		})
		automationHandler.Register(apiGroup)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to run server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if listener != nil {
		listener.Stop()
	}
	<-scheduler.Stop().Done()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown: %v", err)
	}
	if err := engine.Shutdown(ctx); err != nil {
		log.Printf("Action chains still running at shutdown: %v", err)
	}
	hub.Close()

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	log.Println("Server stopped")
}
