package ai

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

type GeminiConfig struct {
	APIKey          string
	Model           string
	Temperature     float32
	TopK            int
	TopP            float32
	MaxOutputTokens int
}

// GeminiCompleter calls the Gemini API through the genai SDK.
type GeminiCompleter struct {
	client *genai.Client
	cfg    GeminiConfig
}

func NewGeminiCompleter(ctx context.Context, cfg GeminiConfig) (*GeminiCompleter, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client init failed: %w", err)
	}
	return &GeminiCompleter{client: client, cfg: cfg}, nil
}

func (g *GeminiCompleter) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.cfg.Model, geminiContents(messages), g.generationConfig())
	if err != nil {
		return "", fmt.Errorf("gemini generate content failed: %w", err)
	}
	return resp.Text(), nil
}

func (g *GeminiCompleter) generationConfig() *genai.GenerateContentConfig {
	// Temperature is always sent; 0 asks for deterministic output.
	gen := &genai.GenerateContentConfig{Temperature: genai.Ptr(g.cfg.Temperature)}
	if g.cfg.TopK > 0 {
		gen.TopK = genai.Ptr(float32(g.cfg.TopK))
	}
	if g.cfg.TopP > 0 {
		gen.TopP = genai.Ptr(g.cfg.TopP)
	}
	if g.cfg.MaxOutputTokens > 0 {
		gen.MaxOutputTokens = int32(g.cfg.MaxOutputTokens)
	}
	return gen
}

// geminiContents folds system and user messages into user turns and
// assistant messages into model turns; consecutive turns of one role are merged.
func geminiContents(messages []ChatMessage) []*genai.Content {
	var contents []*genai.Content
	for _, m := range messages {
		role := string(genai.RoleUser)
		if m.Role == "assistant" {
			role = string(genai.RoleModel)
		}
		part := &genai.Part{Text: m.Content}
		if n := len(contents); n > 0 && contents[n-1].Role == role {
			contents[n-1].Parts = append(contents[n-1].Parts, part)
			continue
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []*genai.Part{part}})
	}
	return contents
}
