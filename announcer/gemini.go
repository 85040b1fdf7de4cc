package announcer

import (
	"context"
	"fmt"

	generativelanguage "google.golang.org/api/generativelanguage/v1beta"
	"google.golang.org/api/option"
)

// TextGenerator abstracts the prompt-in/text-out capability (for tests/mocks).
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// geminiModel is the text model used for all announcement prompts.
const geminiModel = "models/gemini-flash-latest"

// Gemini calls the Generative Language API with API-key auth.
type Gemini struct {
	svc *generativelanguage.Service
}

// NewGemini builds the API client. The key is validated only by the upstream
// service; a bad key surfaces as a generation failure, not at construction.
func NewGemini(ctx context.Context, apiKey string) (*Gemini, error) {
	svc, err := generativelanguage.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("generativelanguage client: %w", err)
	}
	return &Gemini{svc: svc}, nil
}

// Generate sends the prompt and returns the first candidate's text.
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	req := &generativelanguage.GenerateContentRequest{
		Contents: []*generativelanguage.Content{
			{Role: "user", Parts: []*generativelanguage.Part{{Text: prompt}}},
		},
	}
	resp, err := g.svc.Models.GenerateContent(geminiModel, req).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("generate content: empty response")
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}
