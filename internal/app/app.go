package app

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/vetlink/vetlink/internal/config"
	"github.com/vetlink/vetlink/internal/db"
	"github.com/vetlink/vetlink/internal/middleware"
	"github.com/vetlink/vetlink/internal/repository"
	"github.com/vetlink/vetlink/internal/service"
	"github.com/vetlink/vetlink/internal/storage"
	"github.com/vetlink/vetlink/internal/validation"
)

type App struct {
	Cfg    *config.Config
	DB     *sqlx.DB
	Policy *validation.ImagePolicy

	PhotoStorage *storage.LocalStorage
	FeedStorage  *storage.LocalStorage

	UserRepository     repository.UserRepository
	FeedPostRepository repository.FeedPostRepository

	AuthService   *service.AuthService
	UserService   *service.UserService
	FeedService   *service.FeedService
	UploadService *service.UploadService

	UploadLimiter *middleware.RateLimiter
}

func New(cfg *config.Config) (*App, error) {
	// Upload policy is built once and never changes
	policy, err := cfg.ImagePolicy()
	if err != nil {
		return nil, fmt.Errorf("invalid upload policy: %w", err)
	}

	// Storage roots
	photoStorage, err := storage.NewLocalStorage(cfg.UploadDir, cfg.UploadURLPrefix, policy)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize photo storage: %w", err)
	}
	feedStorage, err := storage.NewLocalStorage(cfg.FeedUploadDir, cfg.FeedUploadURLPrefix, policy)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize feed storage: %w", err)
	}
	if photoStorage.Root() == feedStorage.Root() {
		return nil, fmt.Errorf("UPLOAD_DIR and FEED_UPLOAD_DIR must differ: %s", photoStorage.Root())
	}
	for _, s := range []*storage.LocalStorage{photoStorage, feedStorage} {
		if err := s.EnsureRoot(); err != nil {
			return nil, err
		}
	}

	// Initialize database
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Run database migrations
	err = db.RunMigrations(database.DB, cfg.DBDriver)
	if err != nil {
		_ = db.Close(database)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Repositories
	userRepository := repository.NewUserRepository(database)
	feedPostRepository := repository.NewFeedPostRepository(database)

	// Services
	uploadService := service.NewUploadService(policy)
	authService := service.NewAuthService(
		userRepository,
		cfg.JWTSecret,
		cfg.IsProduction(),
		cfg.JWTExpiry,
	)
	userService := service.NewUserService(userRepository, uploadService, photoStorage)
	feedService := service.NewFeedService(feedPostRepository, uploadService, feedStorage)

	return &App{
		Cfg:                cfg,
		DB:                 database,
		Policy:             policy,
		PhotoStorage:       photoStorage,
		FeedStorage:        feedStorage,
		UserRepository:     userRepository,
		FeedPostRepository: feedPostRepository,
		AuthService:        authService,
		UserService:        userService,
		FeedService:        feedService,
		UploadService:      uploadService,
		UploadLimiter:      middleware.NewRateLimiter(cfg.UploadRateLimit, cfg.UploadRateWindow),
	}, nil
}

func (a *App) Close() error {
	if a.UploadLimiter != nil {
		a.UploadLimiter.Stop()
	}
	if a.DB != nil {
		return db.Close(a.DB)
	}
	return nil
}
