package agent

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legal_simulation/pkg/core/completion"
	"legal_simulation/pkg/core/llm"
)

type recordingProvider struct {
	name    string
	options map[string]interface{}
	system  string
}

func (p *recordingProvider) GenerateResponse(ctx context.Context, prompt, systemPrompt string, options map[string]interface{}) (string, error) {
	p.options = options
	p.system = systemPrompt
	return p.name, nil
}

func (p *recordingProvider) AdaptInstructions(raw string) string { return "[" + p.name + "] " + raw }

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "models.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
active_provider: deepseek
agents:
  judge:
    provider: gemini
    temperature: 0.1
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "deepseek", cfg.ActiveProvider)
	assert.Equal(t, "gemini", cfg.Agents["judge"].Provider)
	assert.InDelta(t, 0.1, cfg.Agents["judge"].Temperature, 1e-9)

	missing, err := LoadConfig(filepath.Join(dir, "nope.yaml"))
	require.NoError(t, err)
	assert.Empty(t, missing.ActiveProvider)
}

func TestManager_Routing(t *testing.T) {
	gemini := &recordingProvider{name: "gemini"}
	deepseek := &recordingProvider{name: "deepseek"}
	m := NewManager(Config{
		ActiveProvider: "deepseek",
		Agents:         map[string]AgentConfig{"judge": {Provider: "gemini"}},
	}, map[string]llm.Provider{"gemini": gemini, "deepseek": deepseek})

	assert.Same(t, gemini, m.GetProvider("judge"))
	assert.Same(t, deepseek, m.GetProvider("prosecutor"))
	assert.Nil(t, m.GetProviderByName("openai"))
	assert.Equal(t, []string{"deepseek", "gemini"}, m.Available())

	require.NoError(t, m.SetGlobalProvider("gemini"))
	assert.Equal(t, "gemini", m.GetActiveProvider())
	assert.Same(t, gemini, m.GetProvider("prosecutor"))
	assert.Error(t, m.SetGlobalProvider("openai"))
}

func TestManager_FallbackToFirstRegistered(t *testing.T) {
	only := &recordingProvider{name: "scripted"}
	m := NewManager(Config{ActiveProvider: "gemini"}, map[string]llm.Provider{"scripted": only})
	assert.Same(t, only, m.GetProvider("judge"))

	empty := NewManager(Config{}, nil)
	_, err := empty.ExecutePrompt(context.Background(), "judge", "p", "s", nil)
	assert.Error(t, err)
}

func TestManager_ServiceSetsOptions(t *testing.T) {
	p := &recordingProvider{name: "gemini"}
	m := NewManager(Config{
		ActiveProvider: "gemini",
		Agents:         map[string]AgentConfig{"judge": {Temperature: 0.15, Model: "gemini-2.5-pro"}},
	}, map[string]llm.Provider{"gemini": p})

	out, err := m.Service("judge", "be fair", 0.2).Generate(context.Background(), "decide", completion.ShapeJSON)
	require.NoError(t, err)
	assert.Equal(t, "gemini", out)
	assert.Equal(t, "[gemini] be fair", p.system)
	assert.Equal(t, "judge", p.options[llm.OptAgent])
	assert.Equal(t, 0.15, p.options[llm.OptTemperature])
	assert.Equal(t, "gemini-2.5-pro", p.options[llm.OptModel])
	assert.Equal(t, llm.JSONResponseFormat(), p.options[llm.OptResponseFormat])

	_, err = m.Service("prosecutor", "argue", 0.3).Generate(context.Background(), "open", completion.ShapeText)
	require.NoError(t, err)
	assert.Equal(t, 0.3, p.options[llm.OptTemperature])
	_, hasFormat := p.options[llm.OptResponseFormat]
	assert.False(t, hasFormat)
}

type blockingProvider struct{}

func (blockingProvider) GenerateResponse(ctx context.Context, prompt, systemPrompt string, options map[string]interface{}) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (blockingProvider) AdaptInstructions(raw string) string { return raw }

func TestManager_CallTimeout(t *testing.T) {
	m := NewManager(Config{ActiveProvider: "slow"}, map[string]llm.Provider{"slow": blockingProvider{}})
	m.SetCallTimeout(20 * time.Millisecond)

	_, err := m.Service("judge", "", 0.2).Generate(context.Background(), "decide", completion.ShapeJSON)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
