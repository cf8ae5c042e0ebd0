package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/immxrtalbeast/collabboard/internal/api/http"
	"github.com/immxrtalbeast/collabboard/internal/config"
	"github.com/immxrtalbeast/collabboard/internal/repository"
	"github.com/immxrtalbeast/collabboard/internal/repository/model"
	"github.com/immxrtalbeast/collabboard/internal/service"
	"github.com/immxrtalbeast/collabboard/lib/logger/sl"
	"github.com/immxrtalbeast/collabboard/lib/logger/slogpretty"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	_ = godotenv.Load(".env")

	cfg := config.MustLoad()
	log := setupLogger(cfg.Env)

	var userRepo repository.UserRepository
	var chatArchive repository.ChatArchiveRepository

	if cfg.Database.DSN != "" {
		db, err := connectDatabase(cfg.Database)
		if err != nil {
			log.Error("failed to connect database", sl.Err(err))
			os.Exit(1)
		}
		userRepo = repository.NewPostgresUserRepository(db)
		chatArchive = repository.NewPostgresChatArchive(db)
	} else {
		log.Warn("no database dsn configured, using in-memory stores")
		userRepo = repository.NewInMemoryUserRepository()
		chatArchive = repository.NewInMemoryChatArchive()
	}

	userService := service.NewUserService(userRepo, log)
	sessionService := service.NewSessionService(cfg, chatArchive, log)

	sessionController := httpapi.NewSessionController(sessionService, userService, log)
	userController := httpapi.NewUserController(userService)

	router := httpapi.SetupRouter(sessionController, userController)

	srv := &http.Server{
		Addr:    cfg.HTTP.Address,
		Handler: router,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		log.Info("starting application", slog.String("addr", cfg.HTTP.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server stopped", sl.Err(err))
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", sl.Err(err))
	}
	log.Info("server exited gracefully")
}

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = setupPrettySlog()
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}

func connectDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&model.User{}, &model.ChatMessage{}); err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}
