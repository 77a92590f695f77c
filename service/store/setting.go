package store

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JustinTDCT/onlineTracker/model"
)

const (
	settingsCacheKey = "settings"
	settingsTTL      = 10 * time.Second
)

// GetSettings returns a snapshot of the settings table; missing keys read as defaults.
func (s *Store) GetSettings(ctx context.Context) (model.Settings, error) {
	if cached, ok := s.cache.Get(settingsCacheKey); ok {
		return cached.(model.Settings), nil
	}
	var rows []model.Setting
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	settings := model.NewSettings(rows)
	s.cache.SetDefault(settingsCacheKey, settings)
	return settings, nil
}

// SetSettings upserts values and drops the cached snapshot.
func (s *Store) SetSettings(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]model.Setting, 0, len(values))
	for k, v := range values {
		rows = append(rows, model.Setting{Key: k, Value: v, UpdatedAt: now})
	}
	err := s.write(ctx, "set settings", func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&rows).Error
	})
	s.cache.Delete(settingsCacheKey)
	return err
}
