package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/JustinTDCT/onlineTracker/model"
)

func (s *Store) ListMonitors(ctx context.Context) ([]*model.Monitor, error) {
	var monitors []*model.Monitor
	if err := s.db.WithContext(ctx).Order("id").Find(&monitors).Error; err != nil {
		return nil, err
	}
	return monitors, nil
}

// ListDueCandidateMonitors returns enabled monitors probed by this server,
// each with LastCheckedAt filled from its newest status record.
func (s *Store) ListDueCandidateMonitors(ctx context.Context) ([]*model.Monitor, error) {
	var monitors []*model.Monitor
	err := s.db.WithContext(ctx).
		Where("enabled = ?", true).
		Where("(agent_id IS NULL OR agent_id = '')").
		Order("id").Find(&monitors).Error
	if err != nil || len(monitors) == 0 {
		return monitors, err
	}

	ids := make([]uint64, len(monitors))
	for i, m := range monitors {
		ids[i] = m.ID
	}
	latest, err := s.latestStatuses(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, m := range monitors {
		if r, ok := latest[m.ID]; ok {
			at := r.CheckedAt
			m.LastCheckedAt = &at
		}
	}
	return monitors, nil
}

func (s *Store) GetMonitor(ctx context.Context, id uint64) (*model.Monitor, error) {
	var m model.Monitor
	if err := s.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

// ListAgentMonitors returns the enabled monitors assigned to an agent.
func (s *Store) ListAgentMonitors(ctx context.Context, agentID string) ([]*model.Monitor, error) {
	var monitors []*model.Monitor
	err := s.db.WithContext(ctx).Where("enabled = ? AND agent_id = ?", true, agentID).Order("id").Find(&monitors).Error
	return monitors, err
}

func (s *Store) CreateMonitor(ctx context.Context, m *model.Monitor) error {
	return s.write(ctx, "create monitor", func(tx *gorm.DB) error {
		return tx.Create(m).Error
	})
}

func (s *Store) UpdateMonitor(ctx context.Context, m *model.Monitor) error {
	return s.write(ctx, "update monitor", func(tx *gorm.DB) error {
		var existing model.Monitor
		if err := tx.Select("id", "created_at").First(&existing, m.ID).Error; err != nil {
			return notFound(err)
		}
		m.CreatedAt = existing.CreatedAt
		return tx.Save(m).Error
	})
}

// DeleteMonitor removes the monitor together with its history and alert log.
func (s *Store) DeleteMonitor(ctx context.Context, id uint64) error {
	return s.write(ctx, "delete monitor", func(tx *gorm.DB) error {
		statusIDs := tx.Model(&model.StatusRecord{}).Select("id").Where("monitor_id = ?", id)
		if err := tx.Where("status_id IN (?)", statusIDs).Delete(&model.ProbeAttempt{}).Error; err != nil {
			return err
		}
		if err := tx.Where("monitor_id = ?", id).Delete(&model.StatusRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("monitor_id = ?", id).Delete(&model.AlertRecord{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&model.Monitor{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
