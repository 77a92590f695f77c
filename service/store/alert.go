package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/JustinTDCT/onlineTracker/model"
)

func (s *Store) AppendAlerts(ctx context.Context, records []*model.AlertRecord) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		r.SentAt = r.SentAt.UTC()
	}
	return s.write(ctx, "append alerts", func(tx *gorm.DB) error {
		return tx.Create(&records).Error
	})
}

// LastFailureAlert returns the newest down or degraded alert, or nil.
func (s *Store) LastFailureAlert(ctx context.Context, monitorID uint64) (*model.AlertRecord, error) {
	var r model.AlertRecord
	err := s.db.WithContext(ctx).
		Where("monitor_id = ? AND kind IN ?", monitorID, model.FailureAlertKinds).
		Order("sent_at DESC, id DESC").First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) ListAlerts(ctx context.Context, monitorID uint64, limit int) ([]*model.AlertRecord, error) {
	var records []*model.AlertRecord
	err := s.db.WithContext(ctx).Where("monitor_id = ?", monitorID).
		Order("sent_at DESC, id DESC").Limit(limit).Find(&records).Error
	return records, err
}
