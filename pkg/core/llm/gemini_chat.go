package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiChatProvider talks to Gemini through the generative-ai-go SDK.
// Kept alongside GeminiProvider for deployments pinned to that client.
type GeminiChatProvider struct {
	APIKey string
	Model  string
}

var _ Provider = (*GeminiChatProvider)(nil)

func (p *GeminiChatProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error) {
	apiKey := stringOption(options, OptAPIKey, p.APIKey)
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return "", fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return "", fmt.Errorf("failed to create Gemini client: %v", err)
	}
	defer client.Close()

	modelName := p.Model
	if modelName == "" {
		modelName = "gemini-1.5-pro"
	}
	model := client.GenerativeModel(stringOption(options, OptModel, modelName))
	model.SetTemperature(float32(temperatureOption(options, 0.3)))
	model.SetMaxOutputTokens(int32(intOption(options, OptMaxTokens, 8192)))
	if systemPrompt != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(systemPrompt))
	}
	if wantsJSON(options) {
		model.ResponseMIMEType = "application/json"
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini chat generation failed: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini chat returned no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return sb.String(), nil
}

func (p *GeminiChatProvider) AdaptInstructions(raw string) string {
	return raw
}
