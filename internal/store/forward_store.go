package store

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"wxbridge/internal/domain"
)

type ForwardStore struct{ db *gorm.DB }

func (s *Store) Forwarding() *ForwardStore { return &ForwardStore{db: s.DB} }

func (f *ForwardStore) GetConfig(ctx context.Context, appID domain.AppID) (*domain.ForwardConfig, error) {
	var cfg domain.ForwardConfig
	if err := f.db.WithContext(ctx).First(&cfg, "app_id = ?", appID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &cfg, nil
}

func (f *ForwardStore) UpsertConfig(ctx context.Context, cfg *domain.ForwardConfig) error {
	now := time.Now().UTC()
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = now
	}
	cfg.UpdatedAt = now
	return f.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "app_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"url", "updated_at"}),
	}).Create(cfg).Error
}

func (f *ForwardStore) AppendLog(ctx context.Context, appID domain.AppID, content string) error {
	return f.db.WithContext(ctx).Create(&domain.ForwardLog{
		AppID:     appID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}).Error
}

func (f *ForwardStore) ListLogs(ctx context.Context, appID domain.AppID, limit int) ([]domain.ForwardLog, error) {
	tx := f.db.WithContext(ctx).Where("app_id = ?", appID).Order("created_at desc")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	var logs []domain.ForwardLog
	if err := tx.Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
