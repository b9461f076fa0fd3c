package fallback

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiFiller fills fields through the Gemini API in JSON mode
type GeminiFiller struct {
	client *genai.Client
	model  string
	usage  *UsageTracker
}

// NewGeminiFiller creates a Gemini API client for model
func NewGeminiFiller(ctx context.Context, apiKey, model string, usage *UsageTracker) (*GeminiFiller, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiFiller{client: client, model: model, usage: usage}, nil
}

func (f *GeminiFiller) Fill(ctx context.Context, req Request) (map[string]string, error) {
	result, err := f.client.Models.GenerateContent(ctx, f.model,
		[]*genai.Content{{
			Parts: []*genai.Part{{Text: BuildUserPrompt(req)}},
		}},
		buildGeminiConfig(),
	)
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}
	if result == nil {
		return nil, fmt.Errorf("gemini returned nil result")
	}
	if md := result.UsageMetadata; md != nil {
		f.usage.Add(int64(md.PromptTokenCount), int64(md.CandidatesTokenCount))
	}
	return ParseValues(result.Text(), req.Missing)
}

func buildGeminiConfig() *genai.GenerateContentConfig {
	temp := float32(0)
	return &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: SystemPrompt}},
		},
		Temperature:      &temp,
		ResponseMIMEType: "application/json",
	}
}
