package model

// ================ Config ================
type ModelConfig struct {
	Model          string  `envconfig:"AGENT_MODEL" default:"gemini-2.5-flash"`
	MaxTokens      int     `envconfig:"AGENT_MAX_TOKENS" default:"4096"`
	Temperature    float32 `envconfig:"AGENT_TEMPERATURE" default:"0"`
	ThinkingBudget int32   `envconfig:"AGENT_THINKING_BUDGET" default:"0"`
}

type AgentConfig struct {
	MaxRetries   int `envconfig:"AGENT_MAX_RETRIES" default:"2"`
	MaxSteps     int `envconfig:"AGENT_MAX_STEPS" default:"15"`
	MaxFollowUps int `envconfig:"AGENT_MAX_FOLLOW_UPS" default:"3"`
}

type SessionConfig struct {
	TTL      string `envconfig:"SESSION_TTL" default:"24h"`
	MaxTurns int    `envconfig:"SESSION_MAX_TURNS" default:"50"`
}
