package usage

import (
	"context"
	"testing"
	"time"

	"github.com/Abhi1997-1/Lumen-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecord(t *testing.T) {
	db := newTestDB(t)
	tracker := NewTracker(db)
	ctx := context.Background()

	tracker.Record(ctx, models.RecordUsageParams{
		UserID:       "user-1",
		Provider:     models.ProviderGemini,
		Endpoint:     "transcription",
		Model:        "gemini-2.0-flash",
		TokensInput:  120,
		TokensOutput: 80,
		Success:      true,
	})

	var row models.APIUsage
	require.NoError(t, db.First(&row).Error)
	assert.Equal(t, "user-1", row.UserID)
	assert.Equal(t, models.ProviderGemini, row.Provider)
	assert.Equal(t, 120, row.TokensInput)
	assert.Equal(t, 80, row.TokensOutput)
	// Total is derived when the caller did not supply one.
	assert.Equal(t, 200, row.TokensUsed)
	assert.True(t, row.Success)
}

func TestTrackerRecordRejected(t *testing.T) {
	db := newTestDB(t)
	tracker := NewTracker(db)

	tracker.RecordRejected(context.Background(), "user-1", models.ProviderGroq, "transcription",
		"Daily limit exceeded: 100 requests per day. Resets at midnight.")

	var row models.APIUsage
	require.NoError(t, db.First(&row).Error)
	assert.False(t, row.Success)
	assert.Equal(t, models.ErrorCodeRateLimitExceeded, row.ErrorCode)
	assert.Contains(t, row.ErrorMessage, "Daily limit exceeded")
	assert.Zero(t, row.TokensUsed)
}

func TestGetUsageStats(t *testing.T) {
	db := newTestDB(t)
	rateLimit := NewRateLimitService(db)
	svc := NewService(db, rateLimit)
	tracker := NewTracker(db)
	ctx := context.Background()

	require.NoError(t, db.Create(models.NewDefaultRateLimit("user-1")).Error)

	for range 3 {
		tracker.Record(ctx, models.RecordUsageParams{
			UserID:     "user-1",
			Provider:   models.ProviderGemini,
			TokensUsed: 100,
			Success:    true,
		})
	}
	tracker.RecordRejected(ctx, "user-1", models.ProviderGemini, "transcription", "denied")

	stats, err := svc.GetUsageStats(ctx, "user-1")
	require.NoError(t, err)

	assert.Equal(t, models.TierFree, stats.Tier)
	assert.Equal(t, models.DefaultMonthlyCredits, stats.MonthlyCredits)

	gemini := stats.Providers[models.ProviderGemini]
	// Rejected attempts count against today's total.
	assert.Equal(t, 4, gemini.RequestsToday)
	assert.Equal(t, models.DefaultFreeRPD, gemini.DailyLimit)
	assert.Equal(t, models.DefaultFreeRPD-4, gemini.Remaining)
	assert.Equal(t, models.DefaultFreeRPM, gemini.MinuteLimit)
	assert.Equal(t, int64(300), gemini.TokensToday)

	openai := stats.Providers[models.ProviderOpenAI]
	assert.Zero(t, openai.RequestsToday)
}

func TestGetUsageHistoryNewestFirst(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, NewRateLimitService(db))
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := range 5 {
		row := models.APIUsage{
			UserID:    "user-1",
			Provider:  models.ProviderGemini,
			Model:     string(rune('a' + i)),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, db.Create(&row).Error)
	}

	rows, err := svc.GetUsageHistory(ctx, "user-1", 3, 0)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "e", rows[0].Model)
	assert.Equal(t, "d", rows[1].Model)

	rows, err = svc.GetUsageHistory(ctx, "user-1", 3, 3)
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestGetUsageByPeriod(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, NewRateLimitService(db))
	ctx := context.Background()

	day1 := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	for i, spec := range []struct {
		at      time.Time
		success bool
		tokens  int
	}{
		{day1, true, 100},
		{day1.Add(time.Hour), false, 0},
		{day2, true, 250},
	} {
		row := models.APIUsage{
			UserID:     "user-1",
			Provider:   models.ProviderGemini,
			Endpoint:   "transcription",
			TokensUsed: spec.tokens,
			Success:    spec.success,
			CreatedAt:  spec.at.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, db.Create(&row).Error)
	}

	stats, err := svc.GetUsageByPeriod(ctx, "user-1", day1.Add(-time.Hour), day2.Add(time.Hour), "day")
	require.NoError(t, err)
	require.Len(t, stats, 2)

	assert.Equal(t, "2026-03-10", stats[0].Period)
	assert.Equal(t, 2, stats[0].TotalRequests)
	assert.Equal(t, 1, stats[0].SuccessRequests)
	assert.Equal(t, 1, stats[0].FailedRequests)
	assert.Equal(t, int64(100), stats[0].TotalTokens)

	assert.Equal(t, "2026-03-11", stats[1].Period)
	assert.Equal(t, 1, stats[1].TotalRequests)
	assert.Equal(t, int64(250), stats[1].TotalTokens)
}

func TestWorkerRecordsSubmittedTasks(t *testing.T) {
	db := newTestDB(t)
	tracker := NewTracker(db)
	worker := NewWorker(tracker, 2, 16)

	for range 5 {
		worker.Submit(models.RecordUsageParams{
			UserID:   "user-1",
			Provider: models.ProviderGemini,
			Success:  true,
		}, "req-1")
	}
	worker.Stop()

	var count int64
	require.NoError(t, db.Model(&models.APIUsage{}).Count(&count).Error)
	assert.Equal(t, int64(5), count)
}

func TestWorkerRecordsInlineAfterStop(t *testing.T) {
	db := newTestDB(t)
	tracker := NewTracker(db)
	worker := NewWorker(tracker, 1, 1)
	worker.Stop()

	// A stopped worker must not lose the row.
	worker.Submit(models.RecordUsageParams{
		UserID:   "user-1",
		Provider: models.ProviderGemini,
	}, "req-1")

	var count int64
	require.NoError(t, db.Model(&models.APIUsage{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestProcessDueResets(t *testing.T) {
	db := newTestDB(t)
	scheduler := NewCreditsResetScheduler(db, time.Hour)
	ctx := context.Background()

	due := models.NewDefaultRateLimit("user-due")
	due.CreditsUsed = 42
	due.CreditsResetAt = time.Now().Add(-time.Hour)
	require.NoError(t, db.Create(due).Error)

	notDue := models.NewDefaultRateLimit("user-not-due")
	notDue.CreditsUsed = 7
	notDue.CreditsResetAt = time.Now().Add(24 * time.Hour)
	require.NoError(t, db.Create(notDue).Error)

	require.NoError(t, scheduler.ProcessDueResets(ctx))

	var reset models.UserRateLimit
	require.NoError(t, db.Where("user_id = ?", "user-due").First(&reset).Error)
	assert.Zero(t, reset.CreditsUsed)
	assert.True(t, reset.CreditsResetAt.After(time.Now()))

	var untouched models.UserRateLimit
	require.NoError(t, db.Where("user_id = ?", "user-not-due").First(&untouched).Error)
	assert.Equal(t, 7, untouched.CreditsUsed)
}
