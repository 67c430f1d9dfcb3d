package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Abhi1997-1/Lumen-sub000/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultMaxFreeDurationSeconds = 1200
	defaultProcessTimeoutMs       = 600000
	defaultUsageWorkerPoolSize    = 2
	defaultUsageWorkerBuffer      = 256
)

// Config represents the complete application configuration
type Config struct {
	Server    models.ServerConfig              `yaml:"server"`
	Auth      models.AuthConfig                `yaml:"auth"`
	Database  models.DatabaseConfig            `yaml:"database"`
	Redis     *models.RedisConfig              `yaml:"redis,omitempty"`
	Providers map[string]models.ProviderConfig `yaml:"providers"`
	Pipeline  models.PipelineConfig            `yaml:"pipeline"`
}

// LoadFromFile loads configuration from a YAML file with environment variable substitution
func LoadFromFile(configPath string) (*Config, error) {
	cleanPath := filepath.Clean(configPath)
	if strings.Contains(cleanPath, "..") {
		return nil, fmt.Errorf("invalid config path: path traversal not allowed")
	}

	ext := filepath.Ext(cleanPath)
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("invalid config file: only .yaml and .yml files are allowed")
	}

	data, err := os.ReadFile(cleanPath) // #nosec G304 - path is validated above
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", cleanPath, err)
	}

	content := substituteEnvVars(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(content), &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	// Normalize provider map keys to lowercase for case-insensitive lookups
	if config.Providers != nil {
		normalized := make(map[string]models.ProviderConfig, len(config.Providers))
		for key, value := range config.Providers {
			normalized[strings.ToLower(key)] = value
		}
		config.Providers = normalized
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadEnvFiles loads environment variables from .env files in order of precedence
// Loads files in the order provided (first has highest priority)
func LoadEnvFiles(envFiles []string) {
	for _, envFile := range envFiles {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err == nil {
				fmt.Printf("Loaded environment variables from %s\n", envFile)
			}
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Pipeline.DefaultProvider == "" {
		c.Pipeline.DefaultProvider = models.ProviderGemini
	}
	if c.Pipeline.MaxFreeDurationSeconds == 0 {
		c.Pipeline.MaxFreeDurationSeconds = defaultMaxFreeDurationSeconds
	}
	if c.Pipeline.ProcessTimeoutMs == 0 {
		c.Pipeline.ProcessTimeoutMs = defaultProcessTimeoutMs
	}
	if c.Pipeline.UsageWorkerPoolSize == 0 {
		c.Pipeline.UsageWorkerPoolSize = defaultUsageWorkerPoolSize
	}
	if c.Pipeline.UsageWorkerBuffer == 0 {
		c.Pipeline.UsageWorkerBuffer = defaultUsageWorkerBuffer
	}
	if c.Auth.KeyEncryptionSecret == "" {
		c.Auth.KeyEncryptionSecret = c.Auth.JWTSecret
	}
}

// Validate checks invariants that would otherwise surface as confusing
// runtime failures.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if !models.IsValidProvider(c.Pipeline.DefaultProvider) {
		return fmt.Errorf("pipeline.default_provider %q is not a known provider", c.Pipeline.DefaultProvider)
	}
	if _, ok := c.Providers[c.Pipeline.DefaultProvider]; !ok {
		return fmt.Errorf("pipeline.default_provider %q has no providers entry", c.Pipeline.DefaultProvider)
	}
	return nil
}

// GetProviderConfig returns the configuration for a specific provider
func (c *Config) GetProviderConfig(provider string) (models.ProviderConfig, bool) {
	cfg, ok := c.Providers[strings.ToLower(provider)]
	return cfg, ok
}

// SystemAPIKey returns the system-wide key for a provider, if configured.
func (c *Config) SystemAPIKey(provider string) string {
	if cfg, ok := c.GetProviderConfig(provider); ok {
		return cfg.APIKey
	}
	return ""
}

// substituteEnvVars replaces ${VAR_NAME} and ${VAR_NAME:-default} patterns with environment variables
func substituteEnvVars(content string) string {
	re := regexp.MustCompile(`\$\{([^}:]+)(?::(-[^}]*))?\}`)

	return re.ReplaceAllStringFunc(content, func(match string) string {
		submatches := re.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		defaultValue := ""

		if len(submatches) > 2 && submatches[2] != "" {
			defaultValue = strings.TrimPrefix(submatches[2], "-")
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}

		return defaultValue
	})
}
