package providers

import (
	"testing"

	"maitred/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func TestNewNoProvider(t *testing.T) {
	_, err := New(config.LLMConfig{Provider: "none"})
	assert.ErrorIs(t, err, ErrNoProvider)
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New(config.LLMConfig{Provider: "carrier-pigeon"})
	assert.ErrorContains(t, err, "unsupported model provider")
}

func TestNewOpenAIRequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := New(config.LLMConfig{Provider: "openai", Model: "gpt-4o-mini"})
	assert.Error(t, err)
}

func TestNewOpenAIWithKey(t *testing.T) {
	model, err := New(config.LLMConfig{Provider: "openai", Model: "gpt-4o-mini", APIKey: "sk-test"})
	require.NoError(t, err)
	assert.NotNil(t, model)
}

func TestNewAzureRequiresSettings(t *testing.T) {
	t.Setenv("AZURE_OPENAI_ENDPOINT", "")
	t.Setenv("AZURE_OPENAI_API_KEY", "")
	t.Setenv("AZURE_OPENAI_DEPLOYMENT_NAME", "")
	_, err := New(config.LLMConfig{Provider: "azure"})
	assert.ErrorContains(t, err, "Azure OpenAI configuration missing")
}

func TestTextOfJoinsTextParts(t *testing.T) {
	msg := llms.TextParts(llms.ChatMessageTypeHuman, "2 tavuk ", "döner")
	assert.Equal(t, "2 tavuk döner", textOf(msg))
}
