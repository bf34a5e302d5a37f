package extraction

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

const systemPrompt = `You read restaurant chat messages and extract what the customer wants to order.
Only use menu_item_id and option id values from the lists you are given. Never invent items.
If the message does not order anything, return an empty items list.
Answer with a single JSON object and nothing else:
{"items":[{"menu_item_id":"...","quantity":1,"option_ids":["..."],"notes":"...","confidence":0.0}],"confidence":0.0}`

// LLMBackend extracts items with a langchaingo model
type LLMBackend struct {
	model     llms.Model
	modelID   string
	maxTokens int
}

// NewLLMBackend wraps model; a nil model makes every call fail with ErrUnavailable
func NewLLMBackend(model llms.Model, modelID string, maxTokens int) *LLMBackend {
	if maxTokens <= 0 {
		maxTokens = 800
	}
	return &LLMBackend{model: model, modelID: modelID, maxTokens: maxTokens}
}

// ModelID names the model recorded on intents
func (b *LLMBackend) ModelID() string {
	return b.modelID
}

// Extract prompts the model and decodes its answer
func (b *LLMBackend) Extract(ctx context.Context, req Request) (*RawResult, error) {
	if b.model == nil {
		return nil, ErrUnavailable
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, buildPrompt(req)),
	}
	resp, err := b.model.GenerateContent(ctx, messages,
		llms.WithJSONMode(),
		llms.WithTemperature(0),
		llms.WithMaxTokens(b.maxTokens),
	)
	if err != nil {
		return nil, fmt.Errorf("generate extraction: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrMalformed)
	}
	return decodeResult(resp.Choices[0].Content)
}

func buildPrompt(req Request) string {
	var sb strings.Builder

	if len(req.History) > 0 {
		sb.WriteString("Recent conversation:\n")
		for _, h := range req.History {
			who := "customer"
			if h.Direction == "out" {
				who = "restaurant"
			}
			fmt.Fprintf(&sb, "- %s: %s\n", who, h.Text)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Menu candidates:\n")
	for _, c := range req.Candidates {
		fmt.Fprintf(&sb, "- id=%s name=%q", c.MenuItemID, c.Name)
		if req.Snapshot != nil {
			if item, ok := req.Snapshot.Item(c.MenuItemID); ok {
				fmt.Fprintf(&sb, " price=%s", item.Price.StringFixed(2))
			}
			for _, g := range req.Snapshot.Groups(c.MenuItemID) {
				fmt.Fprintf(&sb, "\n    option group %q", g.Name)
				if g.Required {
					sb.WriteString(" (required)")
				}
				if g.MaxSelect > 0 {
					fmt.Fprintf(&sb, " max %d", g.MaxSelect)
				}
				sb.WriteString(":")
				for _, o := range g.Options {
					if o.Active {
						fmt.Fprintf(&sb, " %s=%q", o.ID, o.Name)
					}
				}
			}
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "\nCustomer message: %s\n", req.Text)
	return sb.String()
}
