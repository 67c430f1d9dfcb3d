package models

import (
	"time"
)

// Provider identifiers. Grok is OpenAI-compatible (x.ai) and only usable for
// summarization/chat, never transcription.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderGroq   = "groq"
	ProviderGrok   = "grok"
)

// Providers lists every provider the service can dispatch to.
var Providers = []string{ProviderGemini, ProviderOpenAI, ProviderGroq, ProviderGrok}

// IsValidProvider reports whether id names a known provider.
func IsValidProvider(id string) bool {
	for _, p := range Providers {
		if p == id {
			return true
		}
	}
	return false
}

// Subscription tiers.
const (
	TierFree      = "free"
	TierPro       = "pro"
	TierUnlimited = "unlimited"
)

// Default caps applied when a user has no rate limit record yet.
const (
	DefaultFreeRPM        = 10
	DefaultFreeRPD        = 100
	DefaultProRPM         = 60
	DefaultProRPD         = 1000
	DefaultMonthlyCredits = 100
)

// Error code recorded on usage rows for attempts rejected by policy.
const ErrorCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"

// APIUsage is one row of the append-only usage ledger: exactly one row per
// attempted provider call, success or failure. Rows are never updated or
// deleted.
type APIUsage struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       string    `gorm:"not null;index:idx_usage_user_provider;size:255" json:"user_id"`
	Provider     string    `gorm:"not null;index:idx_usage_user_provider;size:50" json:"provider"`
	Endpoint     string    `gorm:"size:100;default:''" json:"endpoint"`
	Model        string    `gorm:"size:100;default:''" json:"model"`
	TokensInput  int       `gorm:"default:0" json:"tokens_input"`
	TokensOutput int       `gorm:"default:0" json:"tokens_output"`
	TokensUsed   int       `gorm:"default:0" json:"tokens_used"`
	Success      bool      `gorm:"not null;default:false" json:"success"`
	ErrorCode    string    `gorm:"size:50;default:''" json:"error_code,omitzero"`
	ErrorMessage string    `gorm:"type:text;default:''" json:"error_message,omitzero"`
	CreatedAt    time.Time `gorm:"not null;autoCreateTime;index:idx_usage_user_provider" json:"created_at"`
}

func (APIUsage) TableName() string {
	return "api_usage"
}

// UserRateLimit holds one row per user: tier plus per-provider rpm/rpd caps
// and the monthly credit counters. Created lazily on first rate check.
type UserRateLimit struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID         string    `gorm:"uniqueIndex;not null;size:255" json:"user_id"`
	Tier           string    `gorm:"not null;size:20;default:'free'" json:"tier"`
	GeminiRPM      int       `gorm:"not null;default:10" json:"gemini_rpm"`
	GeminiRPD      int       `gorm:"not null;default:100" json:"gemini_rpd"`
	OpenAIRPM      int       `gorm:"column:openai_rpm;not null;default:10" json:"openai_rpm"`
	OpenAIRPD      int       `gorm:"column:openai_rpd;not null;default:100" json:"openai_rpd"`
	GroqRPM        int       `gorm:"not null;default:10" json:"groq_rpm"`
	GroqRPD        int       `gorm:"not null;default:100" json:"groq_rpd"`
	GrokRPM        int       `gorm:"not null;default:10" json:"grok_rpm"`
	GrokRPD        int       `gorm:"not null;default:100" json:"grok_rpd"`
	CreditsUsed    int       `gorm:"not null;default:0" json:"credits_used"`
	MonthlyCredits int       `gorm:"not null;default:100" json:"monthly_credits"`
	CreditsResetAt time.Time `json:"credits_reset_at,omitzero"`
	CreatedAt      time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (UserRateLimit) TableName() string {
	return "user_rate_limits"
}

// LimitsFor returns the (rpm, rpd) caps for a provider.
func (r *UserRateLimit) LimitsFor(provider string) (int, int) {
	switch provider {
	case ProviderGemini:
		return r.GeminiRPM, r.GeminiRPD
	case ProviderOpenAI:
		return r.OpenAIRPM, r.OpenAIRPD
	case ProviderGroq:
		return r.GroqRPM, r.GroqRPD
	case ProviderGrok:
		return r.GrokRPM, r.GrokRPD
	default:
		return DefaultFreeRPM, DefaultFreeRPD
	}
}

// NewDefaultRateLimit builds a free-tier rate limit record for a user.
func NewDefaultRateLimit(userID string) *UserRateLimit {
	return &UserRateLimit{
		UserID:         userID,
		Tier:           TierFree,
		GeminiRPM:      DefaultFreeRPM,
		GeminiRPD:      DefaultFreeRPD,
		OpenAIRPM:      DefaultFreeRPM,
		OpenAIRPD:      DefaultFreeRPD,
		GroqRPM:        DefaultFreeRPM,
		GroqRPD:        DefaultFreeRPD,
		GrokRPM:        DefaultFreeRPM,
		GrokRPD:        DefaultFreeRPD,
		CreditsUsed:    0,
		MonthlyCredits: DefaultMonthlyCredits,
	}
}

// RateLimitResult is the outcome of a policy check.
type RateLimitResult struct {
	Allowed       bool      `json:"allowed"`
	Remaining     int       `json:"remaining"`
	ResetAt       time.Time `json:"reset_at"`
	ErrorMessage  string    `json:"error_message,omitzero"`
	UpgradePrompt bool      `json:"upgrade_prompt,omitzero"`
}

// RecordUsageParams carries one ledger entry into the tracker.
type RecordUsageParams struct {
	UserID       string
	Provider     string
	Endpoint     string
	Model        string
	TokensInput  int
	TokensOutput int
	TokensUsed   int
	Success      bool
	ErrorCode    string
	ErrorMessage string
}

// ProviderUsage summarizes today's consumption against the caps for one provider.
type ProviderUsage struct {
	RequestsToday int   `json:"requests_today"`
	DailyLimit    int   `json:"daily_limit"`
	Remaining     int   `json:"remaining"`
	MinuteLimit   int   `json:"minute_limit"`
	TokensToday   int64 `json:"tokens_today"`
}

// UsageStatsResponse is the dashboard usage summary for one user.
type UsageStatsResponse struct {
	Tier           string                   `json:"tier"`
	CreditsUsed    int                      `json:"credits_used"`
	MonthlyCredits int                      `json:"monthly_credits"`
	Providers      map[string]ProviderUsage `json:"providers"`
}

// PeriodStats aggregates ledger rows for one period bucket.
type PeriodStats struct {
	Period          string `json:"period"`
	TotalRequests   int    `json:"total_requests"`
	SuccessRequests int    `json:"success_requests"`
	FailedRequests  int    `json:"failed_requests"`
	TotalTokens     int64  `json:"total_tokens"`
}
