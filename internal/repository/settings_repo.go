package repository

import (
	"context"
	"errors"

	"pricewatch/internal/model"

	"gorm.io/gorm"
)

// SettingsRepository accesses the single-row settings record.
type SettingsRepository interface {
	// Get returns the settings row, creating it with defaults on first call.
	Get(ctx context.Context) (*model.Settings, error)
	Update(ctx context.Context, s *model.Settings) error
}

type settingsRepo struct{ db *gorm.DB }

func NewSettingsRepository(db *gorm.DB) SettingsRepository { return &settingsRepo{db: db} }

func (r *settingsRepo) Get(ctx context.Context) (*model.Settings, error) {
	var s model.Settings
	err := r.db.WithContext(ctx).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s = model.Settings{
			CheckIntervalMinutes:  model.DefaultIntervalMin,
			AutoImportOrders:      true,
			ImportFrequency:       model.ImportEvery12h,
			RecallScanEnabled:     true,
			RecallScanFrequency:   model.RecallDaily,
			DefaultExpirationDays: model.DefaultRetainDays,
			AutoArchive:           true,
		}
		if err := r.db.WithContext(ctx).Create(&s).Error; err != nil {
			return nil, err
		}
		return &s, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *settingsRepo) Update(ctx context.Context, s *model.Settings) error {
	return r.db.WithContext(ctx).Save(s).Error
}
