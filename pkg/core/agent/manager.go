package agent

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gopkg.in/yaml.v2"

	"legal_simulation/pkg/core/completion"
	"legal_simulation/pkg/core/llm"
	"legal_simulation/pkg/core/logging"
	"legal_simulation/pkg/core/telemetry"
)

type Config struct {
	ActiveProvider string                 `yaml:"active_provider"`
	Agents         map[string]AgentConfig `yaml:"agents"`
}

type AgentConfig struct {
	Provider    string  `yaml:"provider"` // Optional override
	Model       string  `yaml:"model"`
	Description string  `yaml:"description"`
	Temperature float64 `yaml:"temperature"`
}

// LoadConfig reads the provider routing file. A missing file yields an
// empty config so the caller's default provider is used everywhere.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read models config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse models config: %w", err)
	}
	return cfg, nil
}

type Manager struct {
	mu        sync.RWMutex
	config    Config
	providers map[string]llm.Provider
	timeout   time.Duration
	logger    *slog.Logger
}

func NewManager(config Config, providers map[string]llm.Provider) *Manager {
	m := &Manager{
		config:    config,
		providers: make(map[string]llm.Provider, len(providers)),
		logger:    logging.New("agent"),
	}
	for name, p := range providers {
		m.providers[name] = p
	}
	return m
}

// SetCallTimeout bounds every completion made through Service. Zero
// disables the bound.
func (m *Manager) SetCallTimeout(d time.Duration) {
	m.mu.Lock()
	m.timeout = d
	m.mu.Unlock()
}

// Register adds or replaces a provider under name.
func (m *Manager) Register(name string, p llm.Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[name] = p
}

func (m *Manager) GetProvider(agentType string) llm.Provider {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, p := m.resolve(agentType)
	return p
}

func (m *Manager) resolve(agentType string) (string, llm.Provider) {
	// 1. Check for agent-specific override
	if agentConfig, ok := m.config.Agents[agentType]; ok && agentConfig.Provider != "" {
		if p, ok := m.providers[agentConfig.Provider]; ok {
			return agentConfig.Provider, p
		}
	}

	// 2. Use global active provider
	if p, ok := m.providers[m.config.ActiveProvider]; ok {
		return m.config.ActiveProvider, p
	}

	// 3. Fallback to the first registered provider, by name for stability
	names := m.names()
	if len(names) == 0 {
		return "", nil
	}
	return names[0], m.providers[names[0]]
}

// GetProviderByName retrieves a provider instance by its specific name (e.g. "deepseek", "gemini")
func (m *Manager) GetProviderByName(name string) llm.Provider {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.providers[name]; ok {
		return p
	}
	m.logger.Debug("provider not found", "name", name, "available", m.names())
	return nil
}

// ExecutePrompt handles instruction adaptation before sending to the model
func (m *Manager) ExecutePrompt(ctx context.Context, agentType string, rawPrompt string, rawSystemPrompt string, options map[string]interface{}) (string, error) {
	m.mu.RLock()
	name, provider := m.resolve(agentType)
	agentCfg := m.config.Agents[agentType]
	m.mu.RUnlock()
	if provider == nil {
		return "", fmt.Errorf("no provider configured for agent %q", agentType)
	}

	opts := make(map[string]interface{}, len(options)+2)
	for k, v := range options {
		opts[k] = v
	}
	opts[llm.OptAgent] = agentType
	if agentCfg.Model != "" {
		if _, ok := opts[llm.OptModel]; !ok {
			opts[llm.OptModel] = agentCfg.Model
		}
	}

	m.logger.Debug("execute prompt", "agent", agentType, "provider", name)

	// Adapt instructions based on the model's specialized "teaching" style
	adaptedSystemPrompt := provider.AdaptInstructions(rawSystemPrompt)

	return provider.GenerateResponse(ctx, rawPrompt, adaptedSystemPrompt, opts)
}

func (m *Manager) SetGlobalProvider(newProvider string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.providers[newProvider]; !ok {
		return fmt.Errorf("provider %s not found", newProvider)
	}
	m.config.ActiveProvider = newProvider
	m.logger.Info("global provider set", "provider", newProvider)
	return nil
}

func (m *Manager) GetActiveProvider() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.ActiveProvider
}

// Available lists registered provider names in sorted order.
func (m *Manager) Available() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.names()
}

// Agents returns a copy of the per-agent routing table.
func (m *Manager) Agents() map[string]AgentConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]AgentConfig, len(m.config.Agents))
	for k, v := range m.config.Agents {
		out[k] = v
	}
	return out
}

func (m *Manager) names() []string {
	names := make([]string, 0, len(m.providers))
	for k := range m.providers {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Service binds an agent type and its system prompt to a completion.Service.
// A configured per-agent temperature overrides the caller's default.
func (m *Manager) Service(agentType, systemPrompt string, temperature float64) completion.Service {
	return completion.ServiceFunc(func(ctx context.Context, prompt string, shape completion.Shape) (string, error) {
		ctx, span := telemetry.Tracer("agent").Start(ctx, "llm.Generate")
		defer span.End()
		span.SetAttributes(
			attribute.String("agent", agentType),
			attribute.String("shape", string(shape)),
		)

		temp := temperature
		m.mu.RLock()
		if cfg, ok := m.config.Agents[agentType]; ok && cfg.Temperature > 0 {
			temp = cfg.Temperature
		}
		timeout := m.timeout
		m.mu.RUnlock()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		opts := map[string]interface{}{llm.OptTemperature: temp}
		if shape == completion.ShapeJSON {
			opts[llm.OptResponseFormat] = llm.JSONResponseFormat()
		}

		out, err := m.ExecutePrompt(ctx, agentType, prompt, systemPrompt, opts)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return "", err
		}
		span.SetAttributes(attribute.Int("response.length", len(out)))
		return out, nil
	})
}
