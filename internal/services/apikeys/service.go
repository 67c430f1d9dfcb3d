// Package apikeys stores user-supplied provider API keys encrypted at rest
// and resolves which key a pipeline run should use.
package apikeys

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/Abhi1997-1/Lumen-sub000/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service encrypts keys with AES-256-GCM. The cipher key is derived from the
// configured secret, so rotating the secret invalidates stored keys.
type Service struct {
	db              *gorm.DB
	aead            cipher.AEAD
	systemKeys      map[string]string
	defaultProvider string
}

func NewService(db *gorm.DB, secret string, systemKeys map[string]string, defaultProvider string) (*Service, error) {
	if secret == "" {
		return nil, fmt.Errorf("encryption secret is required")
	}

	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Service{
		db:              db,
		aead:            aead,
		systemKeys:      systemKeys,
		defaultProvider: defaultProvider,
	}, nil
}

func (s *Service) AutoMigrate() error {
	return s.db.AutoMigrate(&models.UserProviderKey{})
}

// SetKey stores (or replaces) a user's personal key for a provider.
func (s *Service) SetKey(ctx context.Context, userID, providerID, apiKey string) error {
	if !models.IsValidProvider(providerID) {
		return models.NewValidationError(fmt.Sprintf("unknown provider %q", providerID), nil)
	}
	if apiKey == "" {
		return models.NewValidationError("api key is required", nil)
	}

	encrypted, err := s.encrypt(apiKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt key: %w", err)
	}

	record := models.UserProviderKey{
		UserID:       userID,
		Provider:     providerID,
		EncryptedKey: encrypted,
		KeyPrefix:    keyPrefix(apiKey),
	}

	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "provider"}},
			DoUpdates: clause.AssignmentColumns([]string{"encrypted_key", "key_prefix", "updated_at"}),
		}).
		Create(&record).Error
	if err != nil {
		return fmt.Errorf("failed to store provider key: %w", err)
	}

	return nil
}

// DeleteKey removes a user's personal key for a provider.
func (s *Service) DeleteKey(ctx context.Context, userID, providerID string) error {
	result := s.db.WithContext(ctx).
		Where("user_id = ? AND provider = ?", userID, providerID).
		Delete(&models.UserProviderKey{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete provider key: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("provider key")
	}
	return nil
}

// HasPersonalKey reports whether a personal key is on file. Storage errors
// propagate so plan gating fails closed.
func (s *Service) HasPersonalKey(ctx context.Context, userID, providerID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.UserProviderKey{}).
		Where("user_id = ? AND provider = ?", userID, providerID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check provider key: %w", err)
	}
	return count > 0, nil
}

// ListKeys returns the stored key records for a user (prefixes only, never
// plaintext).
func (s *Service) ListKeys(ctx context.Context, userID string) ([]models.UserProviderKey, error) {
	var records []models.UserProviderKey
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list provider keys: %w", err)
	}
	return records, nil
}

// Resolve returns the key the pipeline should use for a provider: the user's
// personal key when present, else the system key — but the system key exists
// for the default provider only. Everything else is a validation error.
func (s *Service) Resolve(ctx context.Context, userID, providerID string) (string, error) {
	var record models.UserProviderKey
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND provider = ?", userID, providerID).
		First(&record).Error

	switch {
	case err == nil:
		plaintext, decErr := s.decrypt(record.EncryptedKey)
		if decErr != nil {
			return "", fmt.Errorf("failed to decrypt provider key: %w", decErr)
		}
		return plaintext, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		if providerID == s.defaultProvider && s.systemKeys[providerID] != "" {
			return s.systemKeys[providerID], nil
		}
		return "", models.NewValidationError(
			fmt.Sprintf("no API key on file for provider %q; add one in settings", providerID), nil)
	default:
		return "", fmt.Errorf("failed to load provider key: %w", err)
	}
}

func (s *Service) encrypt(plaintext string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (s *Service) decrypt(encoded string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	if len(sealed) < s.aead.NonceSize() {
		return "", fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := sealed[:s.aead.NonceSize()], sealed[s.aead.NonceSize():]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func keyPrefix(key string) string {
	if len(key) < 8 {
		return key
	}
	return key[:8]
}
