package research

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
)

const perplexityURL = "https://api.perplexity.ai/chat/completions"

// PerplexitySearch asks the Perplexity chat API and returns the answer with
// its citations.
type PerplexitySearch struct {
	APIKey    string
	Model     string // default sonar-pro
	MaxTokens int
	BaseURL   string
	Client    *http.Client
}

var _ SearchProvider = (*PerplexitySearch)(nil)

type perplexityRequest struct {
	Model              string              `json:"model"`
	Messages           []map[string]string `json:"messages"`
	Temperature        float64             `json:"temperature"`
	TopP               float64             `json:"top_p"`
	MaxTokens          int                 `json:"max_tokens"`
	ReturnCitations    bool                `json:"return_citations"`
	SearchDomainFilter []string            `json:"search_domain_filter,omitempty"`
}

type perplexityResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Citations []string `json:"citations"`
}

func (p *PerplexitySearch) Query(ctx context.Context, text string, sources []string) (SearchResult, error) {
	apiKey := p.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("PERPLEXITY_API_KEY")
	}
	if apiKey == "" {
		return SearchResult{}, fmt.Errorf("PERPLEXITY_API_KEY_MISSING: Please set PERPLEXITY_API_KEY env var")
	}

	model := p.Model
	if model == "" {
		model = "sonar-pro"
	}
	maxTokens := p.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	body, err := json.Marshal(perplexityRequest{
		Model:              model,
		Messages:           []map[string]string{{"role": "user", "content": text}},
		Temperature:        0.2,
		TopP:               0.9,
		MaxTokens:          maxTokens,
		ReturnCitations:    true,
		SearchDomainFilter: sources,
	})
	if err != nil {
		return SearchResult{}, fmt.Errorf("PERPLEXITY_MARSHAL_ERROR: %v", err)
	}

	url := perplexityURL
	if p.BaseURL != "" {
		url = p.BaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return SearchResult{}, fmt.Errorf("PERPLEXITY_REQ_CREATE_ERROR: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	res, err := client.Do(req)
	if err != nil {
		return SearchResult{}, fmt.Errorf("PERPLEXITY_API_CALL_ERROR: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return SearchResult{}, fmt.Errorf("PERPLEXITY_READ_BODY_ERROR: %v", err)
	}
	if res.StatusCode != http.StatusOK {
		return SearchResult{}, fmt.Errorf("PERPLEXITY_API_ERROR: status=%d body=%s", res.StatusCode, string(raw))
	}

	var out perplexityResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return SearchResult{}, fmt.Errorf("PERPLEXITY_UNMARSHAL_ERROR: %v", err)
	}
	if len(out.Choices) == 0 {
		return SearchResult{}, fmt.Errorf("PERPLEXITY_NO_CHOICES: %s", string(raw))
	}
	return SearchResult{Text: out.Choices[0].Message.Content, Sources: out.Citations}, nil
}
