package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/ai/azopenai"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/tmc/langchaingo/llms"
)

// AzureModel adapts an Azure OpenAI deployment to the langchaingo model interface
type AzureModel struct {
	client         *azopenai.Client
	deploymentName string
	temperature    float64
	maxTokens      int
}

var _ llms.Model = (*AzureModel)(nil)

// NewAzureModel creates a model bound to one Azure OpenAI deployment
func NewAzureModel(endpoint, apiKey, deploymentName string, temperature float64, maxTokens int) (*AzureModel, error) {
	if endpoint == "" || apiKey == "" || deploymentName == "" {
		return nil, fmt.Errorf("Azure OpenAI configuration missing: ensure AZURE_OPENAI_ENDPOINT, AZURE_OPENAI_API_KEY, and AZURE_OPENAI_DEPLOYMENT_NAME are set")
	}

	client, err := azopenai.NewClientWithKeyCredential(endpoint, azcore.NewKeyCredential(apiKey), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure OpenAI client: %w", err)
	}
	if maxTokens <= 0 {
		maxTokens = 800
	}

	return &AzureModel{
		client:         client,
		deploymentName: deploymentName,
		temperature:    temperature,
		maxTokens:      maxTokens,
	}, nil
}

// GenerateContent implements llms.Model
func (m *AzureModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{Temperature: m.temperature, MaxTokens: m.maxTokens}
	for _, opt := range options {
		opt(&opts)
	}

	chatMessages := make([]azopenai.ChatRequestMessageClassification, 0, len(messages))
	for _, msg := range messages {
		content := textOf(msg)
		switch msg.Role {
		case llms.ChatMessageTypeSystem:
			chatMessages = append(chatMessages, &azopenai.ChatRequestSystemMessage{Content: azopenai.NewChatRequestSystemMessageContent(content)})
		case llms.ChatMessageTypeHuman, llms.ChatMessageTypeGeneric:
			chatMessages = append(chatMessages, &azopenai.ChatRequestUserMessage{Content: azopenai.NewChatRequestUserMessageContent(content)})
		case llms.ChatMessageTypeAI:
			chatMessages = append(chatMessages, &azopenai.ChatRequestAssistantMessage{Content: azopenai.NewChatRequestAssistantMessageContent(content)})
		default:
			return nil, fmt.Errorf("unsupported message role: %s", msg.Role)
		}
	}

	resp, err := m.client.GetChatCompletions(ctx, azopenai.ChatCompletionsOptions{
		Messages:       chatMessages,
		MaxTokens:      to.Ptr(int32(opts.MaxTokens)),
		Temperature:    to.Ptr(float32(opts.Temperature)),
		DeploymentName: to.Ptr(m.deploymentName),
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("Azure OpenAI completion failed: %w", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message == nil || resp.Choices[0].Message.Content == nil {
		return nil, fmt.Errorf("empty response from Azure OpenAI")
	}

	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: *resp.Choices[0].Message.Content}},
	}, nil
}

// Call implements llms.Model
func (m *AzureModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func textOf(msg llms.MessageContent) string {
	var b strings.Builder
	for _, part := range msg.Parts {
		if text, ok := part.(llms.TextContent); ok {
			b.WriteString(text.Text)
		}
	}
	return b.String()
}
