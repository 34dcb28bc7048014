package domain

import "time"

// App is a client application issued credentials to use the bridge.
// The credential pair (AppID, secret) is immutable once minted; the secret
// is stored hashed, never in clear.
type App struct {
	ID          AppID     `gorm:"type:uuid;primaryKey" json:"id"`
	AppName     string    `gorm:"type:text;uniqueIndex:ux_apps_name" json:"appName"`
	AppID       string    `gorm:"type:text;uniqueIndex:ux_apps_appid" json:"appId"`
	SecretAlgo  string    `gorm:"type:text;not null" json:"-"`
	SecretHash  []byte    `gorm:"type:bytea;not null" json:"-"`
	SecretSalt  []byte    `gorm:"type:bytea;not null" json:"-"`
	SecretParams []byte   `gorm:"type:jsonb" json:"-"`
	Token       string    `gorm:"type:text;not null" json:"-"` // shared signing token for signed requests
	BoundPUID   *string   `gorm:"column:bound_puid;type:text" json:"boundPuid"`  // authenticated account, set on first login
	CreatedAt   time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"not null" json:"updatedAt"`
}

func (App) TableName() string { return "apps" }

// ForwardConfig holds the one webhook destination for an App.
type ForwardConfig struct {
	AppID     AppID     `gorm:"type:uuid;primaryKey" json:"appId"`
	URL       string    `gorm:"type:text;not null" json:"url"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`
}

func (ForwardConfig) TableName() string { return "forward_configs" }

// ForwardLog is the append-only record of failed deliveries.
type ForwardLog struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	AppID     AppID     `gorm:"type:uuid;index" json:"appId"`
	Content   string    `gorm:"type:text" json:"content"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
}

func (ForwardLog) TableName() string { return "forward_logs" }
