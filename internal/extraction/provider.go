package extraction

import (
	"context"
	"fmt"
	"strings"
)

// NewProvider builds the provider selected by name ("openai" or "gemini").
func NewProvider(ctx context.Context, name string, openaiCfg OpenAIConfig, geminiCfg GeminiConfig) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "openai":
		return NewOpenAIProvider(openaiCfg)
	case "gemini":
		return NewGeminiProvider(ctx, geminiCfg)
	default:
		return nil, fmt.Errorf("unknown extraction provider %q", name)
	}
}
