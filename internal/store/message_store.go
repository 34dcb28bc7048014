package store

import (
	"context"

	"gorm.io/gorm"

	"wxbridge/internal/domain"
)

type MessageStore struct{ db *gorm.DB }

func (s *Store) Messages() *MessageStore { return &MessageStore{db: s.DB} }

func (m *MessageStore) CreateEnvelope(ctx context.Context, msg *domain.Message) error {
	return m.db.WithContext(ctx).Create(msg).Error
}

// CreatePayload stores the type-specific row. The caller passes one of the
// payload structs from domain; the envelope must already exist in the same
// transaction.
func (m *MessageStore) CreatePayload(ctx context.Context, payload any) error {
	return m.db.WithContext(ctx).Create(payload).Error
}

func (m *MessageStore) GetEnvelope(ctx context.Context, id int64) (*domain.Message, error) {
	var msg domain.Message
	if err := m.db.WithContext(ctx).First(&msg, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &msg, nil
}

// GetPayload loads the payload row for the envelope into out, which must be
// a pointer to the payload struct matching the envelope type.
func (m *MessageStore) GetPayload(ctx context.Context, id int64, out any) error {
	if err := m.db.WithContext(ctx).First(out, "message_id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return ErrRecordNotFound
		}
		return err
	}
	return nil
}

// ListFilter narrows List to the original query surface: type, participants
// and the at-mention flag, always scoped to the owning account.
type ListFilter struct {
	OwnerPUID    string
	Type         string
	SenderPUID   string
	ReceiverPUID string
	IsAt         *bool
	Limit        int
}

func (m *MessageStore) List(ctx context.Context, f ListFilter) ([]domain.Message, error) {
	tx := m.db.WithContext(ctx).Model(&domain.Message{}).
		Where("owner_puid = ?", f.OwnerPUID).
		Order("receive_time desc")
	if f.Type != "" {
		tx = tx.Where("type = ?", f.Type)
	}
	if f.SenderPUID != "" {
		tx = tx.Where("sender_puid = ?", f.SenderPUID)
	}
	if f.ReceiverPUID != "" {
		tx = tx.Where("receiver_puid = ?", f.ReceiverPUID)
	}
	if f.IsAt != nil {
		tx = tx.Where("is_at = ?", *f.IsAt)
	}
	if f.Limit > 0 {
		tx = tx.Limit(f.Limit)
	}
	var msgs []domain.Message
	if err := tx.Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}
