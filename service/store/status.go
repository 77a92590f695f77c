package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/JustinTDCT/onlineTracker/model"
)

// RecordCheck persists a status record and its probe attempts atomically.
func (s *Store) RecordCheck(ctx context.Context, r *model.StatusRecord) error {
	r.CheckedAt = r.CheckedAt.UTC()
	return s.write(ctx, "record check", func(tx *gorm.DB) error {
		return tx.Create(r).Error
	})
}

// GetLatestStatus returns nil when the monitor was never checked.
func (s *Store) GetLatestStatus(ctx context.Context, monitorID uint64) (*model.StatusRecord, error) {
	var r model.StatusRecord
	err := s.db.WithContext(ctx).Where("monitor_id = ?", monitorID).Order("checked_at DESC, id DESC").First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRecentStatuses returns at most limit records, newest first.
func (s *Store) GetRecentStatuses(ctx context.Context, monitorID uint64, limit int) ([]*model.StatusRecord, error) {
	var records []*model.StatusRecord
	err := s.db.WithContext(ctx).Where("monitor_id = ?", monitorID).
		Order("checked_at DESC, id DESC").Limit(limit).Find(&records).Error
	return records, err
}

// GetStatusesSince returns records checked at or after since, newest first.
func (s *Store) GetStatusesSince(ctx context.Context, monitorID uint64, since time.Time, limit int) ([]*model.StatusRecord, error) {
	var records []*model.StatusRecord
	err := s.db.WithContext(ctx).Where("monitor_id = ? AND checked_at >= ?", monitorID, since.UTC()).
		Order("checked_at DESC, id DESC").Limit(limit).Find(&records).Error
	return records, err
}

// GetStatusDetail loads one record with its probe attempts.
func (s *Store) GetStatusDetail(ctx context.Context, id uint64) (*model.StatusRecord, error) {
	var r model.StatusRecord
	err := s.db.WithContext(ctx).Preload("ProbeAttempts", func(db *gorm.DB) *gorm.DB {
		return db.Order("sequence")
	}).First(&r, id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

// LatestStatuses returns the newest record of every monitor that has one.
func (s *Store) LatestStatuses(ctx context.Context) (map[uint64]*model.StatusRecord, error) {
	return s.latestStatuses(ctx, nil)
}

func (s *Store) latestStatuses(ctx context.Context, monitorIDs []uint64) (map[uint64]*model.StatusRecord, error) {
	q := s.db.WithContext(ctx).Model(&model.StatusRecord{}).
		Where("checked_at = (SELECT MAX(s2.checked_at) FROM status_records s2 WHERE s2.monitor_id = status_records.monitor_id)")
	if monitorIDs != nil {
		q = q.Where("monitor_id IN ?", monitorIDs)
	}
	var records []*model.StatusRecord
	if err := q.Order("id").Find(&records).Error; err != nil {
		return nil, err
	}
	ret := make(map[uint64]*model.StatusRecord, len(records))
	for _, r := range records {
		// ties on checked_at resolve to the last inserted row
		ret[r.MonitorID] = r
	}
	return ret, nil
}

// DeleteStatusesBefore removes records checked strictly before cutoff and
// their probe attempts. It returns the number of status records removed.
func (s *Store) DeleteStatusesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := s.write(ctx, "delete expired statuses", func(tx *gorm.DB) error {
		expired := tx.Model(&model.StatusRecord{}).Select("id").Where("checked_at < ?", cutoff.UTC())
		if err := tx.Where("status_id IN (?)", expired).Delete(&model.ProbeAttempt{}).Error; err != nil {
			return err
		}
		res := tx.Where("checked_at < ?", cutoff.UTC()).Delete(&model.StatusRecord{})
		deleted = res.RowsAffected
		return res.Error
	})
	return deleted, err
}
