package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sabalioglu/vidgen/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// gormProfileRepository працює з таблицею profiles напряму через Postgres
type gormProfileRepository struct {
	db *gorm.DB
}

// NewGormProfileRepository створює репозиторій профілів на GORM
func NewGormProfileRepository(db *gorm.DB) ProfileRepository {
	return &gormProfileRepository{
		db: db,
	}
}

// GetProfile отримує профіль за id користувача
func (r *gormProfileRepository) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var profile models.Profile
	err := r.db.WithContext(ctx).Where("id = ?", userID).Take(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &profile, nil
}

// CreateProfile створює профіль з початковими кредитами
func (r *gormProfileRepository) CreateProfile(ctx context.Context, userID, email string) error {
	profile := models.Profile{
		ID:      userID,
		Email:   email,
		Credits: models.DefaultCredits,
	}

	err := r.db.WithContext(ctx).Create(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			logrus.WithField("user_id", userID).Info("Profile already exists, skipping insert")
			return nil
		}
		return fmt.Errorf("failed to create profile: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"credits": profile.Credits,
	}).Info("Profile created")
	return nil
}

// Ping перевіряє з'єднання з базою даних
func (r *gormProfileRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}
