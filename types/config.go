/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package types

import "time"

// AppConfig represents the complete application configuration
type AppConfig struct {
	Verbose   bool            `mapstructure:"verbose"`
	Config    string          `mapstructure:"config"`
	LogFormat string          `mapstructure:"logFormat" validate:"omitempty,oneof=text json"`
	Project   ProjectConfig   `mapstructure:"project"`
	LLM       LLMConfig       `mapstructure:"llm" validate:"omitempty"`
	Workflow  WorkflowConfig  `mapstructure:"workflow"`
	Policy    PolicyConfig    `mapstructure:"policy"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ProjectConfig holds project-related settings
type ProjectConfig struct {
	// Dir overrides the detected .featurewing data directory.
	Dir string `mapstructure:"dir"`
}

// LLMConfig holds configuration for LLM integration
type LLMConfig struct {
	Provider       string `mapstructure:"provider" validate:"omitempty,oneof=openai ollama anthropic gemini"`
	Model          string `mapstructure:"model" validate:"omitempty,min=1"`
	EmbeddingModel string `mapstructure:"embeddingModel" validate:"omitempty,min=1"`
	BaseURL        string `mapstructure:"baseURL" validate:"omitempty,url"`
}

// WorkflowConfig tunes the feature request workflow.
type WorkflowConfig struct {
	MaxRetries        int           `mapstructure:"maxRetries" validate:"min=0,max=10"`
	ValidateThreshold float64       `mapstructure:"validateThreshold" validate:"min=0,max=1"`
	ConfirmThreshold  float64       `mapstructure:"confirmThreshold" validate:"min=0,max=1"`
	SearchThreshold   float64       `mapstructure:"searchThreshold" validate:"min=0,max=1"`
	MaxResults        int           `mapstructure:"maxResults" validate:"min=1,max=100"`
	OracleTimeout     time.Duration `mapstructure:"oracleTimeout" validate:"min=0"`
	ContextFile       string        `mapstructure:"contextFile"`
	AuditRuns         bool          `mapstructure:"auditRuns"`
}

// PolicyConfig configures the policy-driven approval gate.
type PolicyConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

// TelemetryConfig holds PostHog overrides.
type TelemetryConfig struct {
	APIKey   string `mapstructure:"apiKey"`
	Endpoint string `mapstructure:"endpoint" validate:"omitempty,url"`
}
