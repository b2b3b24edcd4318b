package types

import (
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

func validConfig() AppConfig {
	return AppConfig{
		LLM: LLMConfig{Provider: "openai"},
		Workflow: WorkflowConfig{
			MaxRetries:        3,
			ValidateThreshold: 0.7,
			ConfirmThreshold:  0.8,
			SearchThreshold:   0.7,
			MaxResults:        10,
			OracleTimeout:     time.Minute,
		},
	}
}

func TestAppConfig_Validation(t *testing.T) {
	v := validator.New()

	tests := []struct {
		name    string
		mutate  func(c *AppConfig)
		wantErr bool
	}{
		{name: "defaults valid", mutate: func(*AppConfig) {}},
		{name: "unknown provider", mutate: func(c *AppConfig) { c.LLM.Provider = "mistral" }, wantErr: true},
		{name: "empty provider allowed", mutate: func(c *AppConfig) { c.LLM.Provider = "" }},
		{name: "retries above ten", mutate: func(c *AppConfig) { c.Workflow.MaxRetries = 11 }, wantErr: true},
		{name: "negative retries", mutate: func(c *AppConfig) { c.Workflow.MaxRetries = -1 }, wantErr: true},
		{name: "threshold above one", mutate: func(c *AppConfig) { c.Workflow.ConfirmThreshold = 1.5 }, wantErr: true},
		{name: "zero max results", mutate: func(c *AppConfig) { c.Workflow.MaxResults = 0 }, wantErr: true},
		{name: "bad log format", mutate: func(c *AppConfig) { c.LogFormat = "xml" }, wantErr: true},
		{name: "bad telemetry endpoint", mutate: func(c *AppConfig) { c.Telemetry.Endpoint = "not a url" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := v.Struct(&cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMCPError(t *testing.T) {
	err := NewMCPError(ErrCodeNotFound, "feature UP-009 not found", map[string]any{"id": "UP-009"})
	assert.Equal(t, "NOT_FOUND: feature UP-009 not found", err.Error())
	assert.Equal(t, "UP-009", err.Details["id"])
}
