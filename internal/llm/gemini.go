package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiClient implements Client on the Gemini API.
type GeminiClient struct {
	client *genai.Client
}

// NewGeminiClient creates a Gemini-backed client. apiKey may be empty, in
// which case the SDK falls back to its environment lookup.
func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiClient{client: client}, nil
}

// GenerateContent issues one generation call.
func (g *GeminiClient) GenerateContent(ctx context.Context, modelID, prompt string) (*Response, error) {
	resp, err := g.client.Models.GenerateContent(ctx, modelID, genai.Text(prompt), nil)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}
	return &Response{Text: resp.Text(), ModelID: modelID}, nil
}
