package store

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"wxbridge/internal/domain"
)

type ContactStore struct{ db *gorm.DB }

func (s *Store) Contacts() *ContactStore { return &ContactStore{db: s.DB} }

// Ensure creates the contact on first observation and returns the stored
// row. An existing row wins; profile fields are not rewritten.
func (c *ContactStore) Ensure(ctx context.Context, contact *domain.Contact) (*domain.Contact, error) {
	var existing domain.Contact
	err := c.db.WithContext(ctx).First(&existing, "puid = ?", contact.PUID).Error
	if err == nil {
		return &existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	if err := c.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(contact).Error; err != nil {
		return nil, err
	}
	return contact, nil
}

func (c *ContactStore) Get(ctx context.Context, puid string) (*domain.Contact, error) {
	var contact domain.Contact
	if err := c.db.WithContext(ctx).First(&contact, "puid = ?", puid).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &contact, nil
}

// FriendsOf lists the friend edges of the given owner contact.
func (c *ContactStore) FriendsOf(ctx context.Context, ownerPUID string) ([]domain.Contact, error) {
	owner := domain.Contact{PUID: ownerPUID}
	var friends []domain.Contact
	if err := c.db.WithContext(ctx).Model(&owner).Association("Friends").Find(&friends); err != nil {
		return nil, err
	}
	return friends, nil
}

func (c *ContactStore) SetAvatar(ctx context.Context, puid, blobName string) error {
	return c.db.WithContext(ctx).Model(&domain.Contact{}).
		Where("puid = ?", puid).
		Update("avatar", blobName).Error
}

type GroupStore struct{ db *gorm.DB }

func (s *Store) Groups() *GroupStore { return &GroupStore{db: s.DB} }

func (g *GroupStore) Ensure(ctx context.Context, group *domain.Group) (*domain.Group, error) {
	var existing domain.Group
	err := g.db.WithContext(ctx).First(&existing, "puid = ?", group.PUID).Error
	if err == nil {
		return &existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	if err := g.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(group).Error; err != nil {
		return nil, err
	}
	return group, nil
}

func (g *GroupStore) Get(ctx context.Context, puid string) (*domain.Group, error) {
	var group domain.Group
	if err := g.db.WithContext(ctx).First(&group, "puid = ?", puid).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &group, nil
}

func (g *GroupStore) ListByOwner(ctx context.Context, ownerPUID string) ([]domain.Group, error) {
	var groups []domain.Group
	if err := g.db.WithContext(ctx).Find(&groups, "owner_puid = ?", ownerPUID).Error; err != nil {
		return nil, err
	}
	return groups, nil
}

func (g *GroupStore) SetAvatar(ctx context.Context, puid, blobName string) error {
	return g.db.WithContext(ctx).Model(&domain.Group{}).
		Where("puid = ?", puid).
		Update("avatar", blobName).Error
}

func (g *GroupStore) AddMember(ctx context.Context, groupPUID string, member *domain.Contact) error {
	group := domain.Group{PUID: groupPUID}
	return g.db.WithContext(ctx).Model(&group).Association("Members").Append(member)
}

func (g *GroupStore) Members(ctx context.Context, groupPUID string) ([]domain.Contact, error) {
	group := domain.Group{PUID: groupPUID}
	var members []domain.Contact
	if err := g.db.WithContext(ctx).Model(&group).Association("Members").Find(&members); err != nil {
		return nil, err
	}
	return members, nil
}

type ChannelStore struct{ db *gorm.DB }

func (s *Store) Channels() *ChannelStore { return &ChannelStore{db: s.DB} }

func (c *ChannelStore) Ensure(ctx context.Context, channel *domain.Channel) (*domain.Channel, error) {
	var existing domain.Channel
	err := c.db.WithContext(ctx).First(&existing, "puid = ?", channel.PUID).Error
	if err == nil {
		return &existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	if err := c.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(channel).Error; err != nil {
		return nil, err
	}
	return channel, nil
}

func (c *ChannelStore) ListByOwner(ctx context.Context, ownerPUID string) ([]domain.Channel, error) {
	var channels []domain.Channel
	if err := c.db.WithContext(ctx).Find(&channels, "owner_puid = ?", ownerPUID).Error; err != nil {
		return nil, err
	}
	return channels, nil
}
