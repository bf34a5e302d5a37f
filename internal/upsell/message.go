package upsell

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"maitred/internal/apperr"

	"github.com/shopspring/decimal"
	"github.com/tmc/langchaingo/llms"
)

// MaxMessageRunes bounds a suggestion message
const MaxMessageRunes = 160

// MessageContext is what a generator knows about the suggestion
type MessageContext struct {
	CustomerName   string
	CurrentItems   []string
	ItemName       string
	Price          decimal.Decimal
	PriorPurchases int
}

// Generator writes the suggestion sentence
type Generator interface {
	Generate(ctx context.Context, mc MessageContext) (string, error)
}

// LLMGenerator writes suggestions with a langchaingo model
type LLMGenerator struct {
	model     llms.Model
	maxTokens int
}

// NewLLMGenerator wraps model; nil makes every call GENERATION_UNAVAILABLE
func NewLLMGenerator(model llms.Model, maxTokens int) *LLMGenerator {
	if maxTokens <= 0 || maxTokens > 120 {
		maxTokens = 120
	}
	return &LLMGenerator{model: model, maxTokens: maxTokens}
}

func (g *LLMGenerator) Generate(ctx context.Context, mc MessageContext) (string, error) {
	if g.model == nil {
		return "", apperr.New(apperr.KindGenerationUnavailable, "no generative model configured", nil)
	}

	var sb strings.Builder
	sb.WriteString("Write one short, friendly sentence offering an extra item to a restaurant customer. ")
	sb.WriteString("Use at most one emoji. Do not use quotes. Mention the price.\n")
	if mc.CustomerName != "" {
		fmt.Fprintf(&sb, "Customer name: %s\n", mc.CustomerName)
	}
	fmt.Fprintf(&sb, "Current order: %s\n", strings.Join(mc.CurrentItems, ", "))
	fmt.Fprintf(&sb, "Suggested item: %s, price %s\n", mc.ItemName, mc.Price.StringFixed(2))
	if mc.PriorPurchases > 0 {
		fmt.Fprintf(&sb, "The customer ordered it %d time(s) before.\n", mc.PriorPurchases)
	}

	out, err := llms.GenerateFromSinglePrompt(ctx, g.model, sb.String(),
		llms.WithTemperature(0.7),
		llms.WithMaxTokens(g.maxTokens),
	)
	if err != nil {
		return "", apperr.New(apperr.KindGenerationUnavailable, "generate suggestion", err)
	}
	return out, nil
}

// templateMessage is the deterministic fallback
func templateMessage(mc MessageContext) string {
	price := mc.Price.StringFixed(2)
	var msg string
	if mc.PriorPurchases > 0 {
		msg = fmt.Sprintf("You enjoyed %s before. Add one again for %s?", mc.ItemName, price)
	} else {
		msg = fmt.Sprintf("Would you like to add %s for %s?", mc.ItemName, price)
	}
	if mc.CustomerName != "" {
		msg = mc.CustomerName + ", " + lowerFirst(msg)
	}
	return Sanitize(msg)
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}

func isEmoji(r rune) bool {
	switch {
	case r >= 0x1F000 && r <= 0x1FAFF:
		return true
	case r >= 0x2600 && r <= 0x27BF:
		return true
	}
	return false
}

// Sanitize keeps the first non-empty line, at most one emoji and MaxMessageRunes runes
func Sanitize(s string) string {
	line := ""
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			line = l
			break
		}
	}
	line = strings.Trim(line, "\"'“”")
	line = strings.Join(strings.Fields(line), " ")

	var sb strings.Builder
	emojis := 0
	dropping := false
	for _, r := range line {
		if isEmoji(r) {
			emojis++
			dropping = emojis > 1
			if dropping {
				continue
			}
		} else if dropping && (r == 0xFE0F || r == 0x200D) {
			continue
		} else {
			dropping = false
		}
		sb.WriteRune(r)
	}
	out := strings.Join(strings.Fields(sb.String()), " ")

	if utf8.RuneCountInString(out) > MaxMessageRunes {
		runes := []rune(out)
		out = strings.TrimSpace(string(runes[:MaxMessageRunes-1])) + "…"
	}
	return out
}
