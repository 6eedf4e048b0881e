package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/florentd35/teachly/internal/api"
	"github.com/florentd35/teachly/internal/app"
	"github.com/florentd35/teachly/internal/app/maintenance"
	iauth "github.com/florentd35/teachly/internal/auth"
	"github.com/florentd35/teachly/internal/database"
	"github.com/florentd35/teachly/internal/realtime"
	"github.com/florentd35/teachly/internal/services"
	"github.com/florentd35/teachly/pkg/logger"
	"github.com/florentd35/teachly/pkg/mail"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("teachly-server", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logger.Init(cfg.Server.LogLevel, cfg.Server.LogFormat); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")

	db, err := database.Open(databaseConfig(cfg))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer closeDatabase(db, log)

	if err := database.AutoMigrateAndSeed(db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	jwtService, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         cfg.Auth.JWT.Secret,
		Issuer:         cfg.Auth.JWT.Issuer,
		AccessTokenTTL: cfg.Auth.JWT.TTL,
	})
	if err != nil {
		return fmt.Errorf("initialise jwt service: %w", err)
	}

	mailer := buildMailer(cfg, log)

	hub := realtime.NewHub(realtime.NewMemoryRegistry())
	notifier := services.NewNotifier(db, hub)

	users, err := services.NewUserService(db, mailer)
	if err != nil {
		return fmt.Errorf("initialise user service: %w", err)
	}
	contacts, err := services.NewContactService(db, notifier)
	if err != nil {
		return fmt.Errorf("initialise contact service: %w", err)
	}
	demands, err := services.NewDemandService(db, notifier)
	if err != nil {
		return fmt.Errorf("initialise demand service: %w", err)
	}
	messages, err := services.NewMessageService(db, notifier)
	if err != nil {
		return fmt.Errorf("initialise message service: %w", err)
	}
	events, err := services.NewEventService(db, notifier)
	if err != nil {
		return fmt.Errorf("initialise event service: %w", err)
	}
	tasks, err := services.NewTaskService(db, notifier)
	if err != nil {
		return fmt.Errorf("initialise task service: %w", err)
	}
	notifications, err := services.NewNotificationService(db)
	if err != nil {
		return fmt.Errorf("initialise notification service: %w", err)
	}

	cleaner := maintenance.NewCleaner(db,
		maintenance.WithDeletionSchedule(cfg.Maintenance.DeletionSchedule),
		maintenance.WithTokenSchedule(cfg.Maintenance.TokenSchedule),
	)
	if err := cleaner.Start(); err != nil {
		return fmt.Errorf("start maintenance jobs: %w", err)
	}
	defer func() {
		stopCtx := cleaner.Stop()
		if err := cleaner.RunOnce(stopCtx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}()

	router, err := api.NewRouter(api.Dependencies{
		Config:        cfg,
		DB:            db,
		JWT:           jwtService,
		Hub:           hub,
		Users:         users,
		Contacts:      contacts,
		Demands:       demands,
		Messages:      messages,
		Events:        events,
		Tasks:         tasks,
		Notifications: notifications,
	})
	if err != nil {
		return fmt.Errorf("build api router: %w", err)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	if err, ok := <-serverErr; ok && err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadConfig(filepath.Dir(path))
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}

func databaseConfig(cfg *app.Config) database.Config {
	out := database.Config{
		Driver: cfg.Database.Driver,
		Path:   cfg.Database.Path,
		DSN:    cfg.Database.DSN,
	}

	var auth app.DBAuthConfig
	switch strings.ToLower(strings.TrimSpace(cfg.Database.Driver)) {
	case "postgres", "postgresql":
		auth = cfg.Database.Postgres
	case "mysql":
		auth = cfg.Database.MySQL
	default:
		return out
	}

	out.Host = auth.Host
	out.Port = auth.Port
	out.Name = auth.Database
	out.User = auth.Username
	out.Password = auth.Password
	return out
}

func buildMailer(cfg *app.Config, log *zap.Logger) mail.Mailer {
	smtp := cfg.Email.SMTP
	if !smtp.Enabled {
		log.Info("smtp delivery disabled; account emails will be logged only")
		return nil
	}
	return mail.NewSMTPMailer(mail.SMTPSettings{
		Enabled:  smtp.Enabled,
		Host:     smtp.Host,
		Port:     smtp.Port,
		Username: smtp.Username,
		Password: smtp.Password,
		From:     smtp.From,
		Timeout:  smtp.Timeout,
	})
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("retrieving underlying database handle failed", zap.Error(err))
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn("closing database failed", zap.Error(err))
	}
}
