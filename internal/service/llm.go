package service

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// TextClient is implemented by every generative-text backend.
type TextClient interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

type Config struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	Timeout     time.Duration
}

func ReadConfig() *Config {
	viper.BindEnv("llm.provider", "LLM_PROVIDER")
	viper.BindEnv("llm.api_key", "LLM_API_KEY")
	viper.BindEnv("llm.model", "LLM_MODEL")
	viper.BindEnv("llm.base_url", "LLM_BASE_URL")

	viper.SetDefault("llm.provider", ProviderGemini)
	viper.SetDefault("llm.timeout", 60)

	return &Config{
		Provider:    viper.GetString("llm.provider"),
		APIKey:      viper.GetString("llm.api_key"),
		Model:       viper.GetString("llm.model"),
		BaseURL:     viper.GetString("llm.base_url"),
		Temperature: viper.GetFloat64("llm.temperature"),
		Timeout:     time.Duration(viper.GetInt("llm.timeout")) * time.Second,
	}
}

// New returns the backend selected by cfg.Provider.
func New(cfg *Config, logger *zap.Logger) (TextClient, error) {
	httpClient := &http.Client{Timeout: cfg.Timeout}

	switch cfg.Provider {
	case ProviderGemini, "":
		return NewGeminiClient(cfg, httpClient, logger), nil
	case ProviderOpenAI:
		return NewOpenAIClient(cfg, httpClient, logger), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
