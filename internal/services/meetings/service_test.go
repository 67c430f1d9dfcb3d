package meetings

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

func newServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Meeting{}))
	return db
}

func createProcessingMeeting(t *testing.T, svc *Service, id, userID string) {
	t.Helper()
	require.NoError(t, svc.Create(context.Background(), &models.Meeting{
		ID:     id,
		UserID: userID,
		Status: models.MeetingStatusProcessing,
	}))
}

func TestMarkCompleted(t *testing.T) {
	db := newServiceTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	createProcessingMeeting(t, svc, "m-1", "user-1")

	err := svc.MarkCompleted(ctx, "m-1", models.MeetingResult{
		Transcript:   "hello",
		Summary:      "a summary",
		ActionItems:  `["follow up"]`,
		InputTokens:  10,
		OutputTokens: 5,
		TotalTokens:  15,
	})
	require.NoError(t, err)

	meeting, err := svc.GetByID(ctx, "m-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.MeetingStatusCompleted, meeting.Status)
	assert.Equal(t, "hello", meeting.Transcript)
	assert.Equal(t, 15, meeting.TotalTokens)
	assert.True(t, meeting.IsTerminal())
}

func TestTerminalStatusIsSticky(t *testing.T) {
	db := newServiceTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	createProcessingMeeting(t, svc, "m-1", "user-1")
	require.NoError(t, svc.MarkFailed(ctx, "m-1", "provider unavailable"))

	// A stale continuation landing after the failure must not resurrect it.
	err := svc.MarkCompleted(ctx, "m-1", models.MeetingResult{Summary: "late result"})
	require.Error(t, err)

	meeting, err := svc.GetByID(ctx, "m-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.MeetingStatusFailed, meeting.Status)
	assert.Equal(t, "provider unavailable", meeting.Summary)

	// And failed stays failed.
	require.Error(t, svc.MarkFailed(ctx, "m-1", "again"))
}

func TestMarkReprocessingOnlyFromTerminal(t *testing.T) {
	db := newServiceTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	createProcessingMeeting(t, svc, "m-1", "user-1")

	err := svc.MarkReprocessing(ctx, "m-1", "user-1", models.ProviderGemini, "gemini-2.0-flash")
	require.Error(t, err)

	require.NoError(t, svc.MarkFailed(ctx, "m-1", "boom"))
	require.NoError(t, svc.MarkReprocessing(ctx, "m-1", "user-1", models.ProviderOpenAI, "gpt-4o-mini"))

	meeting, err := svc.GetByID(ctx, "m-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.MeetingStatusProcessing, meeting.Status)
	assert.Equal(t, models.ProviderOpenAI, meeting.Provider)
	assert.Equal(t, "gpt-4o-mini", meeting.Model)
	// Previous results are cleared for the new attempt.
	assert.Empty(t, meeting.Summary)
	assert.Zero(t, meeting.TotalTokens)
}

func TestGetByIDScopedToOwner(t *testing.T) {
	db := newServiceTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	createProcessingMeeting(t, svc, "m-1", "user-1")

	_, err := svc.GetByID(ctx, "m-1", "someone-else")
	require.Error(t, err)

	appErr, ok := err.(*models.AppError)
	require.True(t, ok)
	assert.Equal(t, models.ErrorTypeNotFound, appErr.Type)
}

func TestListAndDelete(t *testing.T) {
	db := newServiceTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	createProcessingMeeting(t, svc, "m-1", "user-1")
	createProcessingMeeting(t, svc, "m-2", "user-1")
	createProcessingMeeting(t, svc, "m-3", "user-2")

	results, err := svc.List(ctx, "user-1", 10, 0)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	require.NoError(t, svc.Delete(ctx, "m-1", "user-1"))
	require.Error(t, svc.Delete(ctx, "m-3", "user-1"))

	results, err = svc.List(ctx, "user-1", 10, 0)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}
