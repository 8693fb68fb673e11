package app

import (
	"context"
	"fmt"
	"go-bank-sync/config"
	"go-bank-sync/db"
	"go-bank-sync/handler"
	"go-bank-sync/logger"
	"go-bank-sync/repository"
	"go-bank-sync/router"
	"go-bank-sync/service"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func Run() {
	config.LoadConfig(".")
	logger.Init()
	logger.Log.Info("Logger initialized")
	logger.Log.Info("Configuration loaded successfully")

	database, err := db.Connect()
	if err != nil {
		logger.Log.Fatalf("Error connecting to the database: %v", err)
	}
	defer database.Close()

	dbCfg := config.AppConfig.Database
	migrateConnStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		dbCfg.User, dbCfg.Password, dbCfg.Host, dbCfg.Port, dbCfg.Name)
	if err := db.Migrate("file://db/migrations", migrateConnStr); err != nil {
		logger.Log.Fatalf("Error running migrations: %v", err)
	}

	redisClient, err := db.ConnectRedis()
	if err != nil {
		logger.Log.Fatalf("Error connecting to redis: %v", err)
	}
	defer redisClient.Close()

	// --- Wiring All Layers Together ---
	userRepo := repository.NewUserRepository(database)
	accountRepo := repository.NewAccountRepository(database)
	ledgerRepo := repository.NewLedgerRepository(database)

	authService := service.NewAuthService(userRepo, &service.RedisOTPStore{Client: redisClient})
	accountService := service.NewAccountService(accountRepo, userRepo, redisClient)
	ledgerService := service.NewLedgerService(database, accountRepo, ledgerRepo)

	authHandler := handler.NewAuthHandler(authService, accountService)
	accountHandler := handler.NewAccountHandler(accountService)
	transferHandler := handler.NewTransferHandler(ledgerService)

	r := router.NewRouter(authHandler, accountHandler, transferHandler)

	// --- Start the Server with Graceful Shutdown ---
	port := config.AppConfig.Server.Port
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	go func() {
		logger.Log.Infof("Server starting on port :%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Warn("Shutdown signal received. Starting graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Log.Info("Server exited properly")
}
