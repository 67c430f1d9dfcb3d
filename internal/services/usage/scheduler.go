package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/Abhi1997-1/Lumen-sub000/internal/models"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

// CreditsResetScheduler zeroes credits_used on rate limit records whose
// monthly window has rolled over. Caps themselves are only touched by plan
// changes, which happen outside this service.
type CreditsResetScheduler struct {
	db       *gorm.DB
	interval time.Duration
	stopChan chan struct{}
}

func NewCreditsResetScheduler(db *gorm.DB, interval time.Duration) *CreditsResetScheduler {
	if interval == 0 {
		interval = 1 * time.Hour
	}
	return &CreditsResetScheduler{
		db:       db,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

func (s *CreditsResetScheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	fiberlog.Infof("credits reset scheduler started, running every %s", s.interval)

	for {
		select {
		case <-ticker.C:
			if err := s.ProcessDueResets(ctx); err != nil {
				fiberlog.Errorf("error processing credit resets: %v", err)
			}
		case <-s.stopChan:
			fiberlog.Info("credits reset scheduler stopped")
			return
		case <-ctx.Done():
			fiberlog.Info("credits reset scheduler stopped due to context cancellation")
			return
		}
	}
}

// ProcessDueResets resets every record whose credits_reset_at has passed and
// schedules the next monthly boundary.
func (s *CreditsResetScheduler) ProcessDueResets(ctx context.Context) error {
	now := time.Now()

	var records []models.UserRateLimit
	if err := s.db.WithContext(ctx).
		Where("credits_reset_at IS NOT NULL AND credits_reset_at <= ?", now).
		Find(&records).Error; err != nil {
		return fmt.Errorf("failed to find records due for credit reset: %w", err)
	}

	for _, record := range records {
		if err := s.db.WithContext(ctx).
			Model(&models.UserRateLimit{}).
			Where("id = ?", record.ID).
			Updates(map[string]any{
				"credits_used":     0,
				"credits_reset_at": firstOfNextMonth(now),
			}).Error; err != nil {
			return fmt.Errorf("failed to reset credits for user %s: %w", record.UserID, err)
		}
		fiberlog.Infof("reset monthly credits for user %s", record.UserID)
	}

	return nil
}

func (s *CreditsResetScheduler) Stop() {
	close(s.stopChan)
}
