package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/templui/drive/internal/config"
	"github.com/templui/drive/internal/db"
	"github.com/templui/drive/internal/markdown"
	"github.com/templui/drive/internal/repository"
	"github.com/templui/drive/internal/service"
	"github.com/templui/drive/internal/storage"
)

type App struct {
	Cfg            *config.Config
	DB             *sqlx.DB
	Storage        storage.Storage
	UserRepository repository.UserRepository
	AuthService    *service.AuthService
	EmailService   *service.EmailService
	FileService    *service.FileService

	done chan struct{}
}

func New(cfg *config.Config) (*App, error) {
	// Initialize database
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	// Run database migrations
	err = db.RunMigrations(ctx, database.DB, cfg.DBDriver)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Storage
	fileStorage, err := storage.New(ctx, cfg)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	return Wire(cfg, database, fileStorage), nil
}

// Wire builds the services over already-open clients.
func Wire(cfg *config.Config, database *sqlx.DB, fileStorage storage.Storage) *App {
	// Repositories
	userRepository := repository.NewUserRepository(database)

	// Services
	emailService := service.NewEmailService(
		cfg.ResendAPIKey,
		cfg.EmailFrom,
		cfg.AppURL,
		cfg.AppName,
		cfg.IsDevelopment(),
	)
	authService := service.NewAuthService(
		userRepository,
		emailService,
		cfg.JWTSecret,
		cfg.JWTExpiry,
		cfg.IsProduction(),
	)
	fileService := service.NewFileService(fileStorage, markdown.NewParser(), cfg.S3PresignExpiry)

	return &App{
		Cfg:            cfg,
		DB:             database,
		Storage:        fileStorage,
		UserRepository: userRepository,
		AuthService:    authService,
		EmailService:   emailService,
		FileService:    fileService,
		done:           make(chan struct{}),
	}
}

// Done is closed by Close; background loops stop on it.
func (a *App) Done() <-chan struct{} {
	return a.done
}

func (a *App) Close() error {
	if a.done != nil {
		select {
		case <-a.done:
		default:
			close(a.done)
		}
	}
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
