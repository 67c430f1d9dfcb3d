package models

// ProviderConfig holds configuration for one provider (system-wide key,
// endpoint and model defaults). User-supplied keys override APIKey at
// dispatch time.
type ProviderConfig struct {
	APIKey             string `yaml:"api_key" json:"-"`
	BaseURL            string `yaml:"base_url,omitempty" json:"base_url,omitzero"`
	DefaultModel       string `yaml:"default_model,omitempty" json:"default_model,omitzero"`
	TranscriptionModel string `yaml:"transcription_model,omitempty" json:"transcription_model,omitzero"`
	TimeoutMs          int    `yaml:"timeout_ms,omitempty" json:"timeout_ms,omitzero"`
}

// ProviderCapabilities is the explicit capability table for one provider.
// Unsupported operations fail fast before any network call.
type ProviderCapabilities struct {
	Transcribe bool `json:"transcribe"`
	Analyze    bool `json:"analyze"`
	Ask        bool `json:"ask"`
}
