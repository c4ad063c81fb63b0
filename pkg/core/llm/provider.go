package llm

import (
	"context"
)

// Provider is the interface for all LLM providers.
type Provider interface {
	GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error)
	// AdaptInstructions transforms raw instructions into model-specific formats
	AdaptInstructions(rawInstructions string) string
}

// Option keys understood by the providers.
const (
	OptModel          = "model"
	OptTemperature    = "temperature"
	OptResponseFormat = "response_format"
	OptMaxTokens      = "max_tokens"
	OptAPIKey         = "api_key"
	OptAgent          = "agent" // agent type issuing the call, read by ScriptedProvider
)

// JSONResponseFormat is the options value that requests a JSON object.
func JSONResponseFormat() map[string]interface{} {
	return map[string]interface{}{"type": "json_object"}
}

func wantsJSON(options map[string]interface{}) bool {
	if val, ok := options[OptResponseFormat].(map[string]interface{}); ok {
		return val["type"] == "json_object"
	}
	return false
}

func temperatureOption(options map[string]interface{}, fallback float64) float64 {
	switch v := options[OptTemperature].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	}
	return fallback
}

func stringOption(options map[string]interface{}, key, fallback string) string {
	if val, ok := options[key].(string); ok && val != "" {
		return val
	}
	return fallback
}

func intOption(options map[string]interface{}, key string, fallback int) int {
	if val, ok := options[key].(int); ok && val > 0 {
		return val
	}
	return fallback
}
