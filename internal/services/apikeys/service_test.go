package apikeys

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/Abhi1997-1/Lumen-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.UserProviderKey{}))

	svc, err := NewService(db, "test-secret", map[string]string{
		models.ProviderGemini: "system-gemini-key",
	}, models.ProviderGemini)
	require.NoError(t, err)
	return svc, db
}

func TestSetAndResolvePersonalKey(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.SetKey(ctx, "user-1", models.ProviderOpenAI, "sk-personal-abc123"))

	// Stored ciphertext never equals the plaintext.
	var record models.UserProviderKey
	require.NoError(t, db.First(&record).Error)
	assert.NotEqual(t, "sk-personal-abc123", record.EncryptedKey)
	assert.NotContains(t, record.EncryptedKey, "personal")
	assert.Equal(t, "sk-perso", record.KeyPrefix)

	key, err := svc.Resolve(ctx, "user-1", models.ProviderOpenAI)
	require.NoError(t, err)
	assert.Equal(t, "sk-personal-abc123", key)
}

func TestSetKeyReplacesExisting(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.SetKey(ctx, "user-1", models.ProviderOpenAI, "sk-first-key"))
	require.NoError(t, svc.SetKey(ctx, "user-1", models.ProviderOpenAI, "sk-second-key"))

	var count int64
	require.NoError(t, db.Model(&models.UserProviderKey{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	key, err := svc.Resolve(ctx, "user-1", models.ProviderOpenAI)
	require.NoError(t, err)
	assert.Equal(t, "sk-second-key", key)
}

func TestResolveSystemKeyFallbackDefaultProviderOnly(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	// Default provider falls back to the system key.
	key, err := svc.Resolve(ctx, "user-1", models.ProviderGemini)
	require.NoError(t, err)
	assert.Equal(t, "system-gemini-key", key)

	// Any other provider requires a personal key.
	_, err = svc.Resolve(ctx, "user-1", models.ProviderGroq)
	require.Error(t, err)
	appErr, ok := err.(*models.AppError)
	require.True(t, ok)
	assert.Equal(t, models.ErrorTypeValidation, appErr.Type)
}

func TestResolvePersonalKeyWinsOverSystemKey(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.SetKey(ctx, "user-1", models.ProviderGemini, "sk-my-own-gemini"))

	key, err := svc.Resolve(ctx, "user-1", models.ProviderGemini)
	require.NoError(t, err)
	assert.Equal(t, "sk-my-own-gemini", key)
}

func TestHasPersonalKey(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	has, err := svc.HasPersonalKey(ctx, "user-1", models.ProviderGemini)
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, svc.SetKey(ctx, "user-1", models.ProviderGemini, "sk-key"))

	has, err = svc.HasPersonalKey(ctx, "user-1", models.ProviderGemini)
	require.NoError(t, err)
	assert.True(t, has)

	// The system key never counts as a personal key.
	has, err = svc.HasPersonalKey(ctx, "user-2", models.ProviderGemini)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestDeleteKey(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.SetKey(ctx, "user-1", models.ProviderOpenAI, "sk-key"))
	require.NoError(t, svc.DeleteKey(ctx, "user-1", models.ProviderOpenAI))

	_, err := svc.Resolve(ctx, "user-1", models.ProviderOpenAI)
	require.Error(t, err)

	// Deleting a key that is not there is a not-found error.
	err = svc.DeleteKey(ctx, "user-1", models.ProviderOpenAI)
	require.Error(t, err)
}

func TestSetKeyValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.Error(t, svc.SetKey(ctx, "user-1", "mystery", "sk-key"))
	require.Error(t, svc.SetKey(ctx, "user-1", models.ProviderOpenAI, ""))
}

func TestNewServiceRequiresSecret(t *testing.T) {
	_, err := NewService(nil, "", nil, models.ProviderGemini)
	require.Error(t, err)
}

func TestListKeysNeverExposesPlaintext(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.SetKey(ctx, "user-1", models.ProviderOpenAI, "sk-secret-value"))
	require.NoError(t, svc.SetKey(ctx, "user-1", models.ProviderGroq, "gsk-another-one"))

	records, err := svc.ListKeys(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, record := range records {
		assert.NotEqual(t, "sk-secret-value", record.EncryptedKey)
		assert.NotEqual(t, "gsk-another-one", record.EncryptedKey)
	}
}
