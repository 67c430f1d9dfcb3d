package models

import (
	"time"
)

// UserProviderKey stores a user-supplied provider API key ("bring your own
// key"), encrypted at rest with AES-256-GCM. The plaintext never touches the
// database; it is decrypted just-in-time before a provider call.
type UserProviderKey struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       string    `gorm:"not null;uniqueIndex:idx_user_provider;size:255" json:"user_id"`
	Provider     string    `gorm:"not null;uniqueIndex:idx_user_provider;size:50" json:"provider"`
	EncryptedKey string    `gorm:"not null;type:text" json:"-"`
	KeyPrefix    string    `gorm:"size:12;default:''" json:"key_prefix"`
	CreatedAt    time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (UserProviderKey) TableName() string {
	return "user_provider_keys"
}

// SetProviderKeyRequest is the payload for PUT /v1/keys/:provider.
type SetProviderKeyRequest struct {
	APIKey string `json:"api_key"`
}
