package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"
)

// GeminiProvider implements the Provider interface for Google's Gemini models.
type GeminiProvider struct {
	APIKey string // falls back to GEMINI_API_KEY
	Model  string // e.g. "gemini-2.5-flash"
}

var _ Provider = (*GeminiProvider)(nil)

// GenerateResponse sends a generateContent request to the Gemini API using the official GenAI SDK.
func (p *GeminiProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error) {
	apiKey := stringOption(options, OptAPIKey, p.APIKey)
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return "", fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}

	model := p.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	model = stringOption(options, OptModel, model)

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create GenAI client: %w", err)
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(temperatureOption(options, 0.3))),
		MaxOutputTokens: int32(intOption(options, OptMaxTokens, 8192)),
	}
	if wantsJSON(options) {
		config.ResponseMIMEType = "application/json"
	}

	if systemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: systemPrompt}},
		}
	}

	// Search grounding lets the research role cite live sources.
	if val, ok := options["google_search"].(bool); ok && val {
		config.Tools = []*genai.Tool{{GoogleSearchRetrieval: &genai.GoogleSearchRetrieval{}}}
	}

	result, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}

	text := result.Text()
	if text == "" && len(result.Candidates) > 0 && result.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("gemini response blocked by safety filter")
	}

	if len(result.Candidates) > 0 {
		cand := result.Candidates[0]
		if cand.GroundingMetadata != nil && len(cand.GroundingMetadata.GroundingChunks) > 0 {
			var citations []string
			for _, chunk := range cand.GroundingMetadata.GroundingChunks {
				if chunk.Web != nil {
					citations = append(citations, fmt.Sprintf("[%s](%s)", chunk.Web.Title, chunk.Web.URI))
				}
			}
			if len(citations) > 0 && !wantsJSON(options) {
				text = fmt.Sprintf("%s\n\n**Sources:**\n%s", text, strings.Join(citations, "\n"))
			}
		}
	}

	return text, nil
}

func (p *GeminiProvider) AdaptInstructions(raw string) string {
	return raw
}
