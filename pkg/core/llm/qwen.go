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

const dashScopeURL = "https://dashscope.aliyuncs.com/api/v1/services/aigc/text-generation/generation"

type QwenProvider struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
}

type qwenResponse struct {
	Output struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	} `json:"output"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (p *QwenProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error) {
	apiKey := stringOption(options, OptAPIKey, p.APIKey)
	if apiKey == "" {
		apiKey = os.Getenv("DASHSCOPE_API_KEY")
	}
	if apiKey == "" {
		apiKey = os.Getenv("QWEN_API_KEY")
	}
	if apiKey == "" {
		return "", fmt.Errorf("QWEN_API_KEY_MISSING: Please set DASHSCOPE_API_KEY or QWEN_API_KEY")
	}

	parameters := map[string]interface{}{
		"result_format": "message",
		"temperature":   temperatureOption(options, 0.3),
	}
	if wantsJSON(options) {
		parameters["response_format"] = map[string]string{"type": "json_object"}
	}

	// Native DashScope API format.
	reqBody := map[string]interface{}{
		"model": stringOption(options, OptModel, "qwen-max"),
		"input": map[string]interface{}{
			"messages": []map[string]string{
				{"role": "system", "content": systemPrompt},
				{"role": "user", "content": prompt},
			},
		},
		"parameters": parameters,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal qwen request: %w", err)
	}

	url := dashScopeURL
	if p.BaseURL != "" {
		url = p.BaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("QWEN_API_CALL_ERROR: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read qwen response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("QWEN_API_ERROR: status=%d body=%s", resp.StatusCode, string(body))
	}

	var result qwenResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse qwen response: %w", err)
	}
	if result.Code != "" {
		return "", fmt.Errorf("QWEN_API_ERROR: %s - %s", result.Code, result.Message)
	}
	if len(result.Output.Choices) == 0 {
		return "", fmt.Errorf("QWEN_NO_CHOICES: %s", string(body))
	}

	return result.Output.Choices[0].Message.Content, nil
}

func (p *QwenProvider) AdaptInstructions(raw string) string {
	return raw
}
