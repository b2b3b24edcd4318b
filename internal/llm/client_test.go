package llm

import (
	"context"
	"testing"
)

func TestValidateProvider(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		want     Provider
		wantErr  bool
	}{
		{name: "valid openai", provider: "openai", want: ProviderOpenAI},
		{name: "valid ollama", provider: "ollama", want: ProviderOllama},
		{name: "valid anthropic", provider: "anthropic", want: ProviderAnthropic},
		{name: "valid gemini", provider: "gemini", want: ProviderGemini},
		{name: "invalid provider", provider: "invalid", wantErr: true},
		{name: "empty provider", provider: "", wantErr: true},
		{name: "case sensitive - OPENAI fails", provider: "OPENAI", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateProvider(tt.provider)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateProvider(%q) error = %v, wantErr %v", tt.provider, err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("ValidateProvider(%q) = %v, want %v", tt.provider, got, tt.want)
			}
		})
	}
}

func TestDefaultModelForProvider(t *testing.T) {
	tests := []struct {
		provider string
		want     string
	}{
		{provider: "openai", want: "gpt-5-mini-2025-08-07"},
		{provider: "ollama", want: "llama3.2"},
		{provider: "anthropic", want: "claude-3-5-sonnet-latest"},
		{provider: "gemini", want: "gemini-2.0-flash"},
		{provider: "unknown", want: ""},
		{provider: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			if got := DefaultModelForProvider(tt.provider); got != tt.want {
				t.Errorf("DefaultModelForProvider(%q) = %q, want %q", tt.provider, got, tt.want)
			}
		})
	}
}

func TestEmbeddingModelName(t *testing.T) {
	if got := EmbeddingModelName(Config{Provider: ProviderOpenAI}); got != DefaultOpenAIEmbeddingModel {
		t.Errorf("openai default = %q", got)
	}
	if got := EmbeddingModelName(Config{Provider: ProviderOllama, EmbeddingModel: "mxbai-embed-large"}); got != "mxbai-embed-large" {
		t.Errorf("explicit model = %q", got)
	}
	if got := EmbeddingModelName(Config{Provider: ProviderAnthropic}); got != "" {
		t.Errorf("anthropic = %q, want empty", got)
	}
}

func TestNewChatModel_MissingKeys(t *testing.T) {
	ctx := context.Background()
	for _, p := range []Provider{ProviderOpenAI, ProviderAnthropic, ProviderGemini} {
		if _, err := NewChatModel(ctx, Config{Provider: p, Model: "m"}); err == nil {
			t.Errorf("NewChatModel(%s) without key: expected error", p)
		}
	}
	if _, err := NewChatModel(ctx, Config{Provider: "bogus"}); err == nil {
		t.Error("expected error for unsupported provider")
	}
}

func TestNewEmbedder_Unsupported(t *testing.T) {
	if _, err := NewEmbedder(context.Background(), Config{Provider: ProviderAnthropic}); err == nil {
		t.Error("expected error: anthropic has no embeddings")
	}
}
