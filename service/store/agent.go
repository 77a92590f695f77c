package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JustinTDCT/onlineTracker/model"
)

// GetAgent returns nil when the agent is unknown.
func (s *Store) GetAgent(ctx context.Context, id string) (*model.Agent, error) {
	var a model.Agent
	err := s.db.WithContext(ctx).First(&a, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) ListAgents(ctx context.Context) ([]*model.Agent, error) {
	var agents []*model.Agent
	err := s.db.WithContext(ctx).Order("created_at").Find(&agents).Error
	return agents, err
}

// UpsertAgent creates the agent or refreshes its name, secret hash, approval and last-seen time.
func (s *Store) UpsertAgent(ctx context.Context, a *model.Agent) error {
	return s.write(ctx, "upsert agent", func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "secret_hash", "approved", "last_seen"}),
		}).Create(a).Error; err != nil {
			return err
		}
		return tx.Where("uuid = ?", a.ID).Delete(&model.PendingAgent{}).Error
	})
}

func (s *Store) TouchAgent(ctx context.Context, id string, at time.Time) error {
	return s.write(ctx, "touch agent", func(tx *gorm.DB) error {
		return tx.Model(&model.Agent{}).Where("id = ?", id).Update("last_seen", at.UTC()).Error
	})
}

// RecordPendingAgent notes a registration from an agent outside the allow-list.
func (s *Store) RecordPendingAgent(ctx context.Context, uuid, name, secretHash string, at time.Time) error {
	at = at.UTC()
	return s.write(ctx, "record pending agent", func(tx *gorm.DB) error {
		var p model.PendingAgent
		err := tx.First(&p, "uuid = ?", uuid).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&model.PendingAgent{
				UUID:         uuid,
				Name:         name,
				SecretHash:   secretHash,
				FirstAttempt: at,
				LastAttempt:  at,
				AttemptCount: 1,
			}).Error
		}
		if err != nil {
			return err
		}
		return tx.Model(&p).Updates(map[string]interface{}{
			"name":          name,
			"secret_hash":   secretHash,
			"last_attempt":  at,
			"attempt_count": gorm.Expr("attempt_count + 1"),
		}).Error
	})
}

func (s *Store) ListPendingAgents(ctx context.Context) ([]*model.PendingAgent, error) {
	var pending []*model.PendingAgent
	err := s.db.WithContext(ctx).Order("last_attempt DESC").Find(&pending).Error
	return pending, err
}

// PushReceivers lists every registered push endpoint, enabled or not.
func (s *Store) PushReceivers(ctx context.Context) ([]*model.PushReceiver, error) {
	var receivers []*model.PushReceiver
	err := s.db.WithContext(ctx).Order("id").Find(&receivers).Error
	return receivers, err
}

func (s *Store) CreatePushReceiver(ctx context.Context, r *model.PushReceiver) error {
	return s.write(ctx, "create push receiver", func(tx *gorm.DB) error {
		return tx.Create(r).Error
	})
}
