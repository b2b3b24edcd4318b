package config

import (
	"cmp"
	"fmt"
	"os"
	"strings"

	"github.com/josephgoksu/FeatureWing/internal/llm"
	"github.com/spf13/viper"
)

// LoadLLMConfig builds the oracle's LLM settings from the llm.* keys. Unset
// values fall back to the provider's defaults. A missing API key is not an
// error: the workflow then runs on keyword similarity and the fallback
// classifier.
func LoadLLMConfig() (llm.Config, error) {
	provider, err := llm.ValidateProvider(cmp.Or(viper.GetString("llm.provider"), llm.DefaultProvider))
	if err != nil {
		return llm.Config{}, fmt.Errorf("invalid provider: %w", err)
	}

	cfg := llm.Config{
		Provider:       provider,
		Model:          cmp.Or(viper.GetString("llm.model"), llm.DefaultModelForProvider(string(provider))),
		EmbeddingModel: viper.GetString("llm.embeddingModel"),
		APIKey:         ResolveAPIKey(provider),
		BaseURL:        viper.GetString("llm.baseURL"),
	}
	if cfg.BaseURL == "" && provider == llm.ProviderOllama {
		cfg.BaseURL = llm.DefaultOllamaURL
	}
	cfg.EmbeddingModel = llm.EmbeddingModelName(cfg)
	return cfg, nil
}

// providerEnvKeys lists the environment variables checked for each
// provider's API key, in order.
var providerEnvKeys = map[llm.Provider][]string{
	llm.ProviderOpenAI:    {"OPENAI_API_KEY"},
	llm.ProviderAnthropic: {"ANTHROPIC_API_KEY"},
	llm.ProviderGemini:    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
}

// ResolveAPIKey returns the key under llm.apiKeys.<provider>, falling back to
// the provider's environment variables. Ollama needs none.
func ResolveAPIKey(provider llm.Provider) string {
	if key := strings.TrimSpace(viper.GetString("llm.apiKeys." + string(provider))); key != "" {
		return key
	}
	for _, env := range providerEnvKeys[provider] {
		if key := strings.TrimSpace(os.Getenv(env)); key != "" {
			return key
		}
	}
	return ""
}
