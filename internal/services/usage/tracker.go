package usage

import (
	"context"

	"github.com/Abhi1997-1/Lumen-sub000/internal/models"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

// Tracker is the accounting system of record: every attempted provider call,
// including attempts rejected by policy before dispatch, produces exactly one
// ledger row. Accounting is an observability-only side channel; a failed
// insert is logged and never blocks the caller's primary flow.
type Tracker struct {
	db *gorm.DB
}

func NewTracker(db *gorm.DB) *Tracker {
	return &Tracker{db: db}
}

func (t *Tracker) AutoMigrate() error {
	return t.db.AutoMigrate(&models.APIUsage{})
}

// Record appends one usage row. Never returns an error.
func (t *Tracker) Record(ctx context.Context, params models.RecordUsageParams) {
	row := models.APIUsage{
		UserID:       params.UserID,
		Provider:     params.Provider,
		Endpoint:     params.Endpoint,
		Model:        params.Model,
		TokensInput:  params.TokensInput,
		TokensOutput: params.TokensOutput,
		TokensUsed:   params.TokensUsed,
		Success:      params.Success,
		ErrorCode:    params.ErrorCode,
		ErrorMessage: params.ErrorMessage,
	}
	if row.TokensUsed == 0 {
		row.TokensUsed = params.TokensInput + params.TokensOutput
	}

	if err := t.db.WithContext(ctx).Create(&row).Error; err != nil {
		fiberlog.Errorf("failed to record usage for user %s provider %s: %v", params.UserID, params.Provider, err)
	}
}

// RecordRejected appends the ledger row for an attempt denied by the rate
// limit policy, so rejected attempts show up in usage history.
func (t *Tracker) RecordRejected(ctx context.Context, userID, provider, endpoint, message string) {
	t.Record(ctx, models.RecordUsageParams{
		UserID:       userID,
		Provider:     provider,
		Endpoint:     endpoint,
		Success:      false,
		ErrorCode:    models.ErrorCodeRateLimitExceeded,
		ErrorMessage: message,
	})
}
