package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"wxbridge/internal/domain"
)

type AppStore struct{ db *gorm.DB }

func (s *Store) Apps() *AppStore { return &AppStore{db: s.DB} }

func (a *AppStore) Create(ctx context.Context, app *domain.App) error {
	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	return a.db.WithContext(ctx).Create(app).Error
}

func (a *AppStore) GetByAppID(ctx context.Context, appID string) (*domain.App, error) {
	var app domain.App
	if err := a.db.WithContext(ctx).First(&app, "app_id = ?", appID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &app, nil
}

func (a *AppStore) GetByName(ctx context.Context, name string) (*domain.App, error) {
	var app domain.App
	if err := a.db.WithContext(ctx).First(&app, "app_name = ?", name).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &app, nil
}

// BindAccount sets the authenticated account once. A second login with a
// different account leaves the original binding in place.
func (a *AppStore) BindAccount(ctx context.Context, id domain.AppID, puid string) error {
	return a.db.WithContext(ctx).Model(&domain.App{}).
		Where("id = ? AND bound_puid IS NULL", id).
		Updates(map[string]any{"bound_puid": puid, "updated_at": time.Now().UTC()}).Error
}

// AddFriend records a friendship edge from the app's bound account.
func (a *AppStore) AddFriend(ctx context.Context, ownerPUID, friendPUID string) error {
	owner := domain.Contact{PUID: ownerPUID}
	return a.db.WithContext(ctx).Model(&owner).
		Association("Friends").
		Append(&domain.Contact{PUID: friendPUID})
}
