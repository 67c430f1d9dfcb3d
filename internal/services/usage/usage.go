package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/Abhi1997-1/Lumen-sub000/internal/models"
	"gorm.io/gorm"
)

// Service answers usage queries over the ledger: the dashboard summary,
// raw history, and period aggregation.
type Service struct {
	db        *gorm.DB
	rateLimit *RateLimitService
}

func NewService(db *gorm.DB, rateLimit *RateLimitService) *Service {
	return &Service{db: db, rateLimit: rateLimit}
}

// GetUsageStats builds the per-provider consumption summary for one user:
// today's request count against the daily cap, plus tier and credit counters.
func (s *Service) GetUsageStats(ctx context.Context, userID string) (*models.UsageStatsResponse, error) {
	record, err := s.rateLimit.GetRecord(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	providers := make(map[string]models.ProviderUsage, len(models.Providers))
	for _, provider := range models.Providers {
		var count int64
		var tokens int64

		err := s.db.WithContext(ctx).
			Model(&models.APIUsage{}).
			Where("user_id = ? AND provider = ? AND created_at >= ?", userID, provider, startOfDay).
			Count(&count).Error
		if err != nil {
			return nil, fmt.Errorf("failed to count usage for %s: %w", provider, err)
		}

		err = s.db.WithContext(ctx).
			Model(&models.APIUsage{}).
			Where("user_id = ? AND provider = ? AND created_at >= ?", userID, provider, startOfDay).
			Select("COALESCE(SUM(tokens_used), 0)").
			Scan(&tokens).Error
		if err != nil {
			return nil, fmt.Errorf("failed to sum tokens for %s: %w", provider, err)
		}

		rpm, rpd := record.LimitsFor(provider)
		remaining := rpd - int(count)
		if remaining < 0 {
			remaining = 0
		}
		providers[provider] = models.ProviderUsage{
			RequestsToday: int(count),
			DailyLimit:    rpd,
			Remaining:     remaining,
			MinuteLimit:   rpm,
			TokensToday:   tokens,
		}
	}

	return &models.UsageStatsResponse{
		Tier:           record.Tier,
		CreditsUsed:    record.CreditsUsed,
		MonthlyCredits: record.MonthlyCredits,
		Providers:      providers,
	}, nil
}

// GetUsageHistory returns raw ledger rows for a user, newest first.
func (s *Service) GetUsageHistory(ctx context.Context, userID string, limit, offset int) ([]models.APIUsage, error) {
	var rows []models.APIUsage

	query := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get usage history: %w", err)
	}

	return rows, nil
}

// GetUsageByPeriod buckets a user's ledger rows by hour/day/week/month.
func (s *Service) GetUsageByPeriod(ctx context.Context, userID string, startDate, endDate time.Time, groupBy string) ([]models.PeriodStats, error) {
	query := s.db.WithContext(ctx).
		Model(&models.APIUsage{}).
		Where("user_id = ?", userID)

	if !startDate.IsZero() {
		query = query.Where("created_at >= ?", startDate)
	}
	if !endDate.IsZero() {
		query = query.Where("created_at <= ?", endDate)
	}

	var rows []models.APIUsage
	if err := query.Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get usage: %w", err)
	}

	periodMap := make(map[string]*models.PeriodStats)
	var order []string
	for _, row := range rows {
		key := formatPeriod(row.CreatedAt, groupBy)

		stats := periodMap[key]
		if stats == nil {
			stats = &models.PeriodStats{Period: key}
			periodMap[key] = stats
			order = append(order, key)
		}

		stats.TotalRequests++
		stats.TotalTokens += int64(row.TokensUsed)
		if row.Success {
			stats.SuccessRequests++
		} else {
			stats.FailedRequests++
		}
	}

	results := make([]models.PeriodStats, 0, len(order))
	for _, key := range order {
		results = append(results, *periodMap[key])
	}

	return results, nil
}

func formatPeriod(t time.Time, groupBy string) string {
	switch groupBy {
	case "hour":
		return t.Format("2006-01-02 15:00:00")
	case "week":
		year, week := t.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	case "month":
		return t.Format("2006-01")
	default:
		return t.Format("2006-01-02")
	}
}
