package utils

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// RepairJSON attempts to fix common JSON errors from LLM outputs.
// Uses github.com/RealAlexandreAI/json-repair, which handles:
// - Missing quotes around keys
// - Single quotes instead of double quotes
// - Unclosed strings, arrays and objects (truncated output)
// - TRUE/FALSE/Null instead of true/false/null
// - Trailing commas and comments
func RepairJSON(malformedJSON string) (string, error) {
	repaired, err := jsonrepair.RepairJSON(malformedJSON)
	if err != nil {
		return "", fmt.Errorf("JSON_REPAIR_FAILED: %v", err)
	}
	return repaired, nil
}

// ParseHJSON parses Human-friendly JSON (Hjson) and returns standard JSON.
// Hjson accepts comments, unquoted keys and strings, and optional commas.
func ParseHJSON(hjsonData string) (string, error) {
	var result interface{}
	if err := hjson.Unmarshal([]byte(hjsonData), &result); err != nil {
		return "", fmt.Errorf("HJSON_PARSE_ERROR: %v", err)
	}

	jsonBytes, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("JSON_MARSHAL_ERROR: %v", err)
	}
	return string(jsonBytes), nil
}

// LooksLikeJSON reports whether the trimmed input opens an object or array.
func LooksLikeJSON(input string) bool {
	s := strings.TrimSpace(input)
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")
}

// SmartParse tries multiple parsing strategies to extract valid JSON.
// Order of attempts:
// 1. Standard JSON parse
// 2. JSON repair
// 3. Hjson parse (most lenient)
//
// The repair stages only run when the input starts like JSON. json-repair
// happily turns free prose into a bare string, which would hide the fact that
// the model ignored the requested format.
func SmartParse(input string, schema interface{}) (string, error) {
	if err := json.Unmarshal([]byte(input), schema); err == nil {
		return input, nil
	}

	if !LooksLikeJSON(input) {
		return "", fmt.Errorf("SMART_PARSE_FAILED: input is not JSON shaped")
	}

	if repaired, err := RepairJSON(input); err == nil {
		if err := json.Unmarshal([]byte(repaired), schema); err == nil {
			return repaired, nil
		}
	}

	if hjsonResult, err := ParseHJSON(input); err == nil {
		if err := json.Unmarshal([]byte(hjsonResult), schema); err == nil {
			return hjsonResult, nil
		}
	}

	return "", fmt.Errorf("SMART_PARSE_FAILED: all parsing strategies failed for input")
}
