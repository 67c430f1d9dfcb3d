package models

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port           string `json:"port,omitzero" yaml:"port"`
	AllowedOrigins string `json:"allowed_origins,omitzero" yaml:"allowed_origins"`
	Environment    string `json:"environment,omitzero" yaml:"environment"`
	LogLevel       string `json:"log_level,omitzero" yaml:"log_level"`
}

// AuthConfig holds bearer-token verification settings. Tokens are HS256 JWTs
// issued by the hosted auth provider; the user id rides in the `sub` claim.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" json:"-"`
	Issuer    string `yaml:"issuer,omitempty" json:"issuer,omitzero"`
	// KeyEncryptionSecret derives the AES key protecting stored provider
	// API keys. Defaults to JWTSecret when unset.
	KeyEncryptionSecret string `yaml:"key_encryption_secret,omitempty" json:"-"`
}

// RedisConfig holds the connection settings for circuit breaker state.
type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password,omitempty" json:"-"`
	DB       int    `yaml:"db,omitempty" json:"db,omitzero"`
}

// PipelineConfig tunes the transcription pipeline.
type PipelineConfig struct {
	// DefaultProvider is the one provider whose system key is usable without
	// a personal key on file.
	DefaultProvider string `yaml:"default_provider" json:"default_provider"`
	// MaxFreeDurationSeconds gates long recordings for users without a
	// personal key on the default provider.
	MaxFreeDurationSeconds int `yaml:"max_free_duration_seconds" json:"max_free_duration_seconds"`
	// ProcessTimeoutMs bounds one fire-and-forget continuation end to end.
	ProcessTimeoutMs int `yaml:"process_timeout_ms,omitempty" json:"process_timeout_ms,omitzero"`
	// UsageWorkerPoolSize and UsageWorkerBuffer size the async usage
	// recording worker.
	UsageWorkerPoolSize int `yaml:"usage_worker_pool_size,omitempty" json:"usage_worker_pool_size,omitzero"`
	UsageWorkerBuffer   int `yaml:"usage_worker_buffer,omitempty" json:"usage_worker_buffer,omitzero"`
}
