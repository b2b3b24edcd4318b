// Package config provides centralized configuration for FeatureWing.
// All default values are defined here to keep a single source of truth.
package config

import (
	"time"

	"github.com/josephgoksu/FeatureWing/internal/llm"
	"github.com/spf13/viper"
)

// Workflow defaults.
const (
	DefaultMaxRetries        = 3
	DefaultValidateThreshold = 0.7
	DefaultConfirmThreshold  = 0.8
	DefaultSearchThreshold   = 0.7
	DefaultMaxResults        = 10
	DefaultOracleTimeout     = 60 * time.Second
	DefaultContextFile       = "docs/gdd.md"
)

// DefaultInitials is used when project.json carries no initials.
const DefaultInitials = "UP"

// DefaultTelemetryEndpoint is the PostHog ingestion endpoint.
const DefaultTelemetryEndpoint = "https://us.i.posthog.com"

// SetDefaults registers every default value with viper.
func SetDefaults() {
	viper.SetDefault("logFormat", "text")

	viper.SetDefault("llm.provider", llm.DefaultProvider)

	viper.SetDefault("workflow.maxRetries", DefaultMaxRetries)
	viper.SetDefault("workflow.validateThreshold", DefaultValidateThreshold)
	viper.SetDefault("workflow.confirmThreshold", DefaultConfirmThreshold)
	viper.SetDefault("workflow.searchThreshold", DefaultSearchThreshold)
	viper.SetDefault("workflow.maxResults", DefaultMaxResults)
	viper.SetDefault("workflow.oracleTimeout", DefaultOracleTimeout)
	viper.SetDefault("workflow.contextFile", DefaultContextFile)
	viper.SetDefault("workflow.auditRuns", true)

	viper.SetDefault("policy.enabled", false)

	viper.SetDefault("telemetry.endpoint", DefaultTelemetryEndpoint)
}
