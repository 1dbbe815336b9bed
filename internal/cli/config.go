package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/datasense-ai/server/internal/agent/model"
	"github.com/datasense-ai/server/internal/core"
	"github.com/datasense-ai/server/internal/dataset"
	"github.com/datasense-ai/server/internal/sandbox"
	pkgredis "github.com/datasense-ai/server/pkg/redis"
)

// AppConfig defines all configurable parameters, sourced from environment
// variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL"`

	// Infrastructure
	Redis pkgredis.Config

	// LLM provider; checked only by commands that call the model
	APIKey  string `envconfig:"GEMINI_API_KEY"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	Model   model.ModelConfig
	Agent   model.AgentConfig
	Sandbox sandbox.Config
	Session model.SessionConfig
	Dataset dataset.SummaryOptions
}

// LoadConfig reads envFile when present and then the process environment.
func LoadConfig(envFile string) (*AppConfig, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment config: %w", err)
	}
	if _, err := cfg.SessionTTL(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) Env() core.Environment {
	return core.ParseEnvironment(c.Environment)
}

func (c *AppConfig) SessionTTL() (time.Duration, error) {
	ttl, err := time.ParseDuration(c.Session.TTL)
	if err != nil {
		return 0, fmt.Errorf("invalid SESSION_TTL %q: %w", c.Session.TTL, err)
	}
	return ttl, nil
}
