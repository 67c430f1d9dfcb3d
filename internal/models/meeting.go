package models

import (
	"time"
)

// Meeting statuses. Status only moves processing -> completed | failed; a
// terminal record re-enters processing solely through a user-initiated
// reprocess.
const (
	MeetingStatusProcessing = "processing"
	MeetingStatusCompleted  = "completed"
	MeetingStatusFailed     = "failed"
)

// Transcription methods for a job: "browser" means the client already ran
// on-device transcription and sent the text along; "server" means we fetch
// the audio and transcribe it ourselves.
const (
	TranscriptionMethodBrowser = "browser"
	TranscriptionMethodServer  = "server"
)

// Meeting is the persisted unit of work representing one audio recording's
// processing lifecycle.
type Meeting struct {
	ID                  string    `gorm:"primaryKey;size:36" json:"id"`
	UserID              string    `gorm:"not null;index;size:255" json:"user_id"`
	Title               string    `gorm:"size:255;default:''" json:"title"`
	AudioURL            string    `gorm:"size:2048;default:''" json:"audio_url"`
	Duration            int       `gorm:"default:0" json:"duration"`
	Status              string    `gorm:"not null;size:20;index;default:'processing'" json:"status"`
	Provider            string    `gorm:"size:50;default:''" json:"provider"`
	Model               string    `gorm:"size:100;default:''" json:"model"`
	TranscriptionMethod string    `gorm:"size:20;default:'server'" json:"transcription_method"`
	Transcript          string    `gorm:"type:text;default:''" json:"transcript,omitzero"`
	Summary             string    `gorm:"type:text;default:''" json:"summary,omitzero"`
	ActionItems         string    `gorm:"type:text;default:''" json:"action_items,omitzero"`
	InputTokens         int       `gorm:"default:0" json:"input_tokens"`
	OutputTokens        int       `gorm:"default:0" json:"output_tokens"`
	TotalTokens         int       `gorm:"default:0" json:"total_tokens"`
	CreatedAt           time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"`
	UpdatedAt           time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (Meeting) TableName() string {
	return "meetings"
}

// IsTerminal reports whether the meeting finished processing.
func (m *Meeting) IsTerminal() bool {
	return m.Status == MeetingStatusCompleted || m.Status == MeetingStatusFailed
}

// CreateMeetingRequest is the payload for POST /v1/meetings.
type CreateMeetingRequest struct {
	Title    string `json:"title"`
	AudioURL string `json:"audio_url"`
	// Duration is the client's duration hint in seconds.
	Duration int    `json:"duration"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Method   string `json:"transcription_method"`
	// Transcript carries the on-device transcription result when Method is
	// "browser". Empty or whitespace-only text triggers the server fallback.
	Transcript string `json:"transcript,omitempty"`
}

// CreateMeetingResponse acknowledges an accepted job. Processing continues
// after the response; clients poll the meeting status.
type CreateMeetingResponse struct {
	Success   bool   `json:"success"`
	MeetingID string `json:"meeting_id"`
	Warning   string `json:"warning,omitzero"`
}

// ReprocessRequest re-runs a terminal meeting with the chosen model.
type ReprocessRequest struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// AskRequest is a question against a completed meeting's transcript.
type AskRequest struct {
	Question string `json:"question"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// AskResponse carries the provider's answer.
type AskResponse struct {
	Answer string `json:"answer"`
}

// MeetingResult is the payload persisted atomically with the completed
// status flip.
type MeetingResult struct {
	Transcript   string
	Summary      string
	ActionItems  string
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}
