// Package app wires the store, the event bus and the services together.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"inkwell/internal/config"
	"inkwell/internal/db"
	"inkwell/internal/db/memdb"
	"inkwell/internal/events"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/router"
	"inkwell/internal/services"
	"inkwell/internal/utils"
)

const commentCacheSize = 1024

type App struct {
	Config *config.Config
	Logger *zap.Logger
	Store  services.Store
	Bus    *events.Bus

	Users         *services.UserService
	Posts         *services.PostService
	Comments      *services.CommentService
	Dashboard     *services.ModerationDashboard
	Notifications *services.NotificationService
	Ranking       *services.RankingService
	Chat          *services.ChatService
	Importer      *services.FeedImporter
	Uploader      *services.ImageUploader
	Mail          *services.MailService
	Tokens        *middleware.TokenIssuer

	closeStore func() error
}

// OpenStore connects the configured backend. Postgres is migrated and the
// initial admin is seeded.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (services.Store, func() error, error) {
	switch cfg.Storage {
	case config.StorageMemory:
		store := memdb.New()
		if err := seedMemoryAdmin(ctx, store, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			return nil, nil, err
		}
		logger.Warn("using in-memory storage, data is lost on restart")
		return store, store.Close, nil

	case config.StoragePostgres:
		gdb, err := db.Open(cfg.DatabaseURL, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(gdb); err != nil {
			return nil, nil, err
		}
		if err := db.SeedAdmin(ctx, gdb, cfg.AdminEmail, cfg.AdminPassword, logger); err != nil {
			return nil, nil, err
		}
		store := db.New(gdb)
		return store, store.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown storage %q", cfg.Storage)
}

func seedMemoryAdmin(ctx context.Context, store services.UserStore, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	if _, err := store.GetUserByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, services.ErrUserNotFound) {
		return err
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	return store.CreateUser(ctx, &models.User{
		Username: "admin",
		Email:    email,
		Password: hash,
		Role:     models.RoleAdmin,
	})
}

// New opens the store and builds every service.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	store, closeStore, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a, err := NewWithStore(cfg, store, logger)
	if err != nil {
		_ = closeStore()
		return nil, err
	}
	a.closeStore = closeStore
	return a, nil
}

// NewWithStore builds the services on an already opened store.
func NewWithStore(cfg *config.Config, store services.Store, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	rules, err := services.LoadChatRules(cfg.ChatRulesPath)
	if err != nil {
		return nil, err
	}
	cache, err := utils.NewCache(commentCacheSize)
	if err != nil {
		return nil, err
	}

	bus := events.NewBus(logger)
	mail := services.NewMailService(services.MailConfig{
		Host:        cfg.SMTPHost,
		Port:        cfg.SMTPPort,
		Username:    cfg.SMTPUser,
		Password:    cfg.SMTPPass,
		From:        cfg.SMTPFrom,
		SiteName:    cfg.SiteName,
		TemplateDir: emailTemplateDir(cfg.TemplateDir),
	}, logger)

	posts := services.NewPostService(store, bus, logger)
	comments := services.NewCommentService(store, bus, cache, logger)

	a := &App{
		Config:        cfg,
		Logger:        logger,
		Store:         store,
		Bus:           bus,
		Users:         services.NewUserService(store, logger),
		Posts:         posts,
		Comments:      comments,
		Dashboard:     services.NewModerationDashboard(comments, store, bus, logger),
		Notifications: services.NewNotificationService(store, bus, mail, cfg.SiteURL, logger),
		Ranking:       services.NewRankingService(store, bus, logger),
		Chat:          services.NewChatService(store, rules, logger),
		Importer:      services.NewFeedImporter(posts, cfg.RSSHubInstance, logger),
		Uploader: services.NewImageUploader(services.CloudinaryConfig{
			CloudName:    cfg.CloudinaryCloudName,
			UploadPreset: cfg.CloudinaryUploadPreset,
			APIKey:       cfg.CloudinaryAPIKey,
			APISecret:    cfg.CloudinaryAPISecret,
		}, logger),
		Mail:       mail,
		Tokens:     middleware.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL),
		closeStore: func() error { return nil },
	}
	return a, nil
}

func emailTemplateDir(templateDir string) string {
	if templateDir == "" {
		return ""
	}
	return filepath.Join(templateDir, "email")
}

// Deps exposes the services to the router.
func (a *App) Deps() router.Deps {
	return router.Deps{
		Config:        a.Config,
		Logger:        a.Logger,
		Users:         a.Users,
		Posts:         a.Posts,
		Comments:      a.Comments,
		Dashboard:     a.Dashboard,
		Notifications: a.Notifications,
		Chat:          a.Chat,
		Importer:      a.Importer,
		Uploader:      a.Uploader,
		Mail:          a.Mail,
		Tokens:        a.Tokens,
	}
}

func (a *App) Close() error {
	a.Dashboard.Close()
	return a.closeStore()
}
