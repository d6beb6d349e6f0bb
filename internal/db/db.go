// Package db is the PostgreSQL Store built on gorm.
package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"inkwell/internal/models"
	"inkwell/internal/services"
	"inkwell/internal/utils"
)

// Store implements services.Store on top of gorm.
type Store struct {
	db *gorm.DB
}

var _ services.Store = (*Store)(nil)

// Open connects to PostgreSQL. Timestamps are written in UTC with
// microsecond precision to match what the database keeps.
func Open(dsn string, logger *zap.Logger) (*gorm.DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC().Truncate(time.Microsecond)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	logger.Info("database connection established")
	return db, nil
}

// Migrate creates or updates every table.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Post{},
		&models.Comment{},
		&models.CommentLike{},
		&models.Notification{},
		&models.RoleChangeAudit{},
		&models.ChatMessage{},
		&models.ChatFeedback{},
		&models.ChatAnalytics{},
	)
	if err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	return nil
}

// SeedAdmin creates the first admin account when no admin exists yet.
func SeedAdmin(ctx context.Context, db *gorm.DB, email, password string, logger *zap.Logger) error {
	if email == "" || password == "" {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var count int64
	if err := db.WithContext(ctx).Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		logger.Debug("admin already seeded, skipping")
		return nil
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	admin := models.User{
		Username: "admin",
		Email:    email,
		Password: hash,
		Role:     models.RoleAdmin,
	}
	if err := db.WithContext(ctx).Create(&admin).Error; err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	logger.Info("initial admin created", zap.String("email", email))
	return nil
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// notFound maps gorm's missing-row error to the domain error.
func notFound(err, domainErr error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domainErr
	}
	return err
}
