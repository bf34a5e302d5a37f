package providers

import (
	"context"
	"errors"
	"fmt"
	"os"

	"maitred/internal/config"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// ProviderType represents the type of LLM provider
type ProviderType string

const (
	NoProvider           ProviderType = "none"
	OpenAIProvider       ProviderType = "openai"
	GitHubModelsProvider ProviderType = "github_models"
	AzureProvider        ProviderType = "azure"
	OllamaProvider       ProviderType = "ollama"
)

const githubModelsBaseURL = "https://models.inference.ai.azure.com"

// ErrNoProvider is returned when the configuration disables language models
var ErrNoProvider = errors.New("no language model provider configured")

// New builds the language model described by cfg. Credentials fall back to the
// provider's conventional environment variable when the config leaves them empty.
func New(cfg config.LLMConfig) (llms.Model, error) {
	switch ProviderType(cfg.Provider) {
	case "", NoProvider:
		return nil, ErrNoProvider
	case OpenAIProvider:
		return newOpenAI(cfg, firstNonEmpty(cfg.APIKey, os.Getenv("OPENAI_API_KEY")), cfg.BaseURL)
	case GitHubModelsProvider:
		token := firstNonEmpty(cfg.APIKey, os.Getenv("GITHUB_TOKEN"))
		if token == "" {
			return nil, fmt.Errorf("GITHUB_TOKEN is required for GitHub Models")
		}
		return newOpenAI(cfg, token, firstNonEmpty(cfg.BaseURL, githubModelsBaseURL))
	case AzureProvider:
		return NewAzureModel(
			firstNonEmpty(cfg.AzureEndpoint, os.Getenv("AZURE_OPENAI_ENDPOINT")),
			firstNonEmpty(cfg.APIKey, os.Getenv("AZURE_OPENAI_API_KEY")),
			firstNonEmpty(cfg.AzureDeployment, os.Getenv("AZURE_OPENAI_DEPLOYMENT_NAME")),
			cfg.Temperature,
			cfg.MaxTokens,
		)
	case OllamaProvider:
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		llm, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Ollama model: %w", err)
		}
		return llm, nil
	default:
		return nil, fmt.Errorf("unsupported model provider: %s", cfg.Provider)
	}
}

func newOpenAI(cfg config.LLMConfig, token, baseURL string) (llms.Model, error) {
	if token == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithToken(token),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenAI model: %w", err)
	}
	return llm, nil
}

// Ping checks the model answers a trivial prompt
func Ping(ctx context.Context, model llms.Model) error {
	_, err := llms.GenerateFromSinglePrompt(ctx, model, "Reply with the single word: ok", llms.WithMaxTokens(5))
	return err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
