package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"wxbridge/internal/domain"
)

var ErrRecordNotFound = errors.New("store: record not found")

type Store struct {
	DB *gorm.DB
}

func New(db *gorm.DB) *Store { return &Store{DB: db} }

func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{DB: tx})
	})
}

func (s *Store) AutoMigrate(ctx context.Context) error {
	return s.DB.WithContext(ctx).AutoMigrate(
		&domain.App{},
		&domain.ForwardConfig{},
		&domain.ForwardLog{},
		&domain.Contact{},
		&domain.Group{},
		&domain.Channel{},
		&domain.Message{},
		&domain.TextMessage{},
		&domain.MapMessage{},
		&domain.SharingMessage{},
		&domain.PictureMessage{},
		&domain.RecordingMessage{},
		&domain.AttachmentMessage{},
		&domain.VideoMessage{},
		&domain.CardMessage{},
		&domain.NoteMessage{},
	)
}
