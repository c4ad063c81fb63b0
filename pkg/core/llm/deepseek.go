package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
)

const deepSeekURL = "https://api.deepseek.com/chat/completions"

type DeepSeekProvider struct {
	APIKey  string
	BaseURL string // overrides deepSeekURL, used by tests
	Client  *http.Client
}

// DeepSeekRequest is the OpenAI-compatible chat completion body.
type DeepSeekRequest struct {
	Messages       []Message      `json:"messages"`
	Model          string         `json:"model"`
	MaxTokens      int            `json:"max_tokens"`
	ResponseFormat ResponseFormat `json:"response_format"`
	Stream         bool           `json:"stream"`
	Temperature    float64        `json:"temperature"`
	TopP           float64        `json:"top_p"`
}

type Message struct {
	Content string `json:"content"`
	Role    string `json:"role"`
}

type ResponseFormat struct {
	Type string `json:"type"`
}

type DeepSeekResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func (p *DeepSeekProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error) {
	apiKey := stringOption(options, OptAPIKey, p.APIKey)
	if apiKey == "" {
		apiKey = os.Getenv("DEEPSEEK_API_KEY")
	}
	if apiKey == "" {
		return "", fmt.Errorf("DEEPSEEK_API_KEY_MISSING: Please set DEEPSEEK_API_KEY env var")
	}

	url := deepSeekURL
	if p.BaseURL != "" {
		url = p.BaseURL
	}

	format := "text"
	if wantsJSON(options) {
		format = "json_object"
	}

	reqBody := DeepSeekRequest{
		Messages: []Message{
			{Content: systemPrompt, Role: "system"},
			{Content: prompt, Role: "user"},
		},
		Model:          stringOption(options, OptModel, "deepseek-chat"),
		MaxTokens:      intOption(options, OptMaxTokens, 4096),
		ResponseFormat: ResponseFormat{Type: format},
		Temperature:    temperatureOption(options, 0.3),
		TopP:           1.0,
	}

	jsonBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("DEEPSEEK_MARSHAL_ERROR: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBytes))
	if err != nil {
		return "", fmt.Errorf("DEEPSEEK_REQ_CREATE_ERROR: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	res, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("DEEPSEEK_API_CALL_ERROR: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("DEEPSEEK_READ_BODY_ERROR: %v", err)
	}

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("DEEPSEEK_API_ERROR: status=%d found=%s", res.StatusCode, string(body))
	}

	var response DeepSeekResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("DEEPSEEK_UNMARSHAL_ERROR: %v", err)
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("DEEPSEEK_NO_CHOICES: %s", string(body))
	}

	return response.Choices[0].Message.Content, nil
}

func (p *DeepSeekProvider) AdaptInstructions(raw string) string {
	return raw
}
