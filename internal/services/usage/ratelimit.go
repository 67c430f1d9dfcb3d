package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Abhi1997-1/Lumen-sub000/internal/models"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RateLimitService enforces the per-user, per-provider request caps. Both
// trailing windows are re-counted from the ledger on every check; nothing is
// cached in-process, so limits survive restarts.
//
// Counting then inserting is not atomic: two concurrent requests can both
// pass the check before either usage row lands, overshooting the cap by a
// request. Accepted trade-off; a conditional UPDATE on a counter column would
// close it.
type RateLimitService struct {
	db *gorm.DB
}

func NewRateLimitService(db *gorm.DB) *RateLimitService {
	return &RateLimitService{db: db}
}

func (s *RateLimitService) AutoMigrate() error {
	return s.db.AutoMigrate(&models.UserRateLimit{})
}

// Check reports whether userID may call provider right now. The minute window
// is checked before the day window; count >= limit denies the request that
// would be the (limit+1)th. Storage errors propagate so callers fail closed.
func (s *RateLimitService) Check(ctx context.Context, userID, provider string) (*models.RateLimitResult, error) {
	if userID == "" {
		return nil, models.NewValidationError("user id is required", nil)
	}
	if !models.IsValidProvider(provider) {
		return nil, models.NewValidationError(fmt.Sprintf("unknown provider %q", provider), nil)
	}

	record, created, err := s.getOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	rpm, rpd := record.LimitsFor(provider)
	now := time.Now()

	// First-use grace: a brand-new user is always allowed.
	if created {
		return &models.RateLimitResult{
			Allowed:   true,
			Remaining: rpd,
			ResetAt:   now.Add(24 * time.Hour),
		}, nil
	}

	minuteCount, err := s.countSince(ctx, userID, provider, now.Add(-time.Minute))
	if err != nil {
		return nil, fmt.Errorf("failed to count minute window: %w", err)
	}
	if minuteCount >= int64(rpm) {
		fiberlog.Infof("rate limit hit (minute) user=%s provider=%s count=%d rpm=%d", userID, provider, minuteCount, rpm)
		return &models.RateLimitResult{
			Allowed:       false,
			Remaining:     0,
			ResetAt:       now.Add(time.Minute),
			ErrorMessage:  fmt.Sprintf("Rate limit exceeded: %d requests per minute. Please wait a moment.", rpm),
			UpgradePrompt: record.Tier == models.TierFree,
		}, nil
	}

	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	nextMidnight := startOfDay.AddDate(0, 0, 1)

	dayCount, err := s.countSince(ctx, userID, provider, startOfDay)
	if err != nil {
		return nil, fmt.Errorf("failed to count day window: %w", err)
	}
	if dayCount >= int64(rpd) {
		fiberlog.Infof("rate limit hit (day) user=%s provider=%s count=%d rpd=%d", userID, provider, dayCount, rpd)
		return &models.RateLimitResult{
			Allowed:       false,
			Remaining:     0,
			ResetAt:       nextMidnight,
			ErrorMessage:  fmt.Sprintf("Daily limit exceeded: %d requests per day. Resets at midnight.", rpd),
			UpgradePrompt: record.Tier == models.TierFree,
		}, nil
	}

	return &models.RateLimitResult{
		Allowed:   true,
		Remaining: rpd - int(dayCount),
		ResetAt:   nextMidnight,
	}, nil
}

// GetRecord returns the user's rate limit record, creating it with free-tier
// defaults if absent.
func (s *RateLimitService) GetRecord(ctx context.Context, userID string) (*models.UserRateLimit, error) {
	record, _, err := s.getOrCreate(ctx, userID)
	return record, err
}

func (s *RateLimitService) getOrCreate(ctx context.Context, userID string) (*models.UserRateLimit, bool, error) {
	var record models.UserRateLimit
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&record).Error
	if err == nil {
		return &record, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("failed to load rate limit record: %w", err)
	}

	return s.createDefault(ctx, userID)
}

// createDefault inserts the free-tier defaults for a user seen for the first
// time. Two concurrent first-ever checks race to insert the same row; the
// conflict clause lets the loser read back the winner's record instead of
// surfacing a unique-index error.
func (s *RateLimitService) createDefault(ctx context.Context, userID string) (*models.UserRateLimit, bool, error) {
	fresh := models.NewDefaultRateLimit(userID)
	fresh.CreditsResetAt = firstOfNextMonth(time.Now())
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(fresh)
	if result.Error != nil {
		return nil, false, fmt.Errorf("failed to create rate limit record: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		var record models.UserRateLimit
		if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&record).Error; err != nil {
			return nil, false, fmt.Errorf("failed to load rate limit record: %w", err)
		}
		return &record, false, nil
	}
	fiberlog.Infof("created default rate limit record for user %s (tier=%s)", userID, fresh.Tier)
	return fresh, true, nil
}

func (s *RateLimitService) countSince(ctx context.Context, userID, provider string, since time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.APIUsage{}).
		Where("user_id = ? AND provider = ? AND created_at >= ?", userID, provider, since).
		Count(&count).Error
	return count, err
}

func firstOfNextMonth(from time.Time) time.Time {
	return time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, from.Location()).AddDate(0, 1, 0)
}
