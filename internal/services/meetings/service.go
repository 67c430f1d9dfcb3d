package meetings

import (
	"context"
	"errors"
	"fmt"

	"github.com/Abhi1997-1/Lumen-sub000/internal/models"
	"gorm.io/gorm"
)

// Service owns MeetingRecord persistence and its status transitions.
// Status is monotonic: processing -> completed | failed. A terminal record
// only re-enters processing through Reprocess, which goes through
// MarkReprocessing.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) AutoMigrate() error {
	return s.db.AutoMigrate(&models.Meeting{})
}

func (s *Service) Create(ctx context.Context, meeting *models.Meeting) error {
	if err := s.db.WithContext(ctx).Create(meeting).Error; err != nil {
		return fmt.Errorf("failed to create meeting: %w", err)
	}
	return nil
}

// GetByID loads a meeting scoped to its owner.
func (s *Service) GetByID(ctx context.Context, id, userID string) (*models.Meeting, error) {
	var meeting models.Meeting
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&meeting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("meeting")
		}
		return nil, fmt.Errorf("failed to get meeting: %w", err)
	}
	return &meeting, nil
}

func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]models.Meeting, error) {
	var results []models.Meeting

	query := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	if err := query.Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to list meetings: %w", err)
	}
	return results, nil
}

func (s *Service) Delete(ctx context.Context, id, userID string) error {
	result := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.Meeting{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete meeting: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("meeting")
	}
	return nil
}

// MarkCompleted writes the result and flips status to completed in one
// update. The status guard keeps a record that already went terminal from
// being rewritten by a stale continuation.
func (s *Service) MarkCompleted(ctx context.Context, id string, result models.MeetingResult) error {
	res := s.db.WithContext(ctx).
		Model(&models.Meeting{}).
		Where("id = ? AND status = ?", id, models.MeetingStatusProcessing).
		Updates(map[string]any{
			"status":        models.MeetingStatusCompleted,
			"transcript":    result.Transcript,
			"summary":       result.Summary,
			"action_items":  result.ActionItems,
			"input_tokens":  result.InputTokens,
			"output_tokens": result.OutputTokens,
			"total_tokens":  result.TotalTokens,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to complete meeting: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("meeting %s was not in processing state", id)
	}
	return nil
}

// MarkFailed flips status to failed and stores a short diagnostic in the
// summary so the client has something to show.
func (s *Service) MarkFailed(ctx context.Context, id, diagnostic string) error {
	res := s.db.WithContext(ctx).
		Model(&models.Meeting{}).
		Where("id = ? AND status = ?", id, models.MeetingStatusProcessing).
		Updates(map[string]any{
			"status":  models.MeetingStatusFailed,
			"summary": diagnostic,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to mark meeting failed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("meeting %s was not in processing state", id)
	}
	return nil
}

// MarkReprocessing is the one legal way back from a terminal state. It
// clears previous results and records the provider/model of the new attempt.
func (s *Service) MarkReprocessing(ctx context.Context, id, userID, providerID, model string) error {
	res := s.db.WithContext(ctx).
		Model(&models.Meeting{}).
		Where("id = ? AND user_id = ? AND status IN ?", id, userID,
			[]string{models.MeetingStatusCompleted, models.MeetingStatusFailed}).
		Updates(map[string]any{
			"status":        models.MeetingStatusProcessing,
			"provider":      providerID,
			"model":         model,
			"summary":       "",
			"action_items":  "",
			"input_tokens":  0,
			"output_tokens": 0,
			"total_tokens":  0,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to mark meeting for reprocessing: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewValidationError("meeting is not in a reprocessable state", nil)
	}
	return nil
}
