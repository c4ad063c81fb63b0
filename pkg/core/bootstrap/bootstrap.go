// Package bootstrap turns a config.Config into the wired collaborators
// shared by the API server and the CLI.
package bootstrap

import (
	"context"
	"fmt"

	"legal_simulation/pkg/core/agent"
	"legal_simulation/pkg/core/config"
	"legal_simulation/pkg/core/export"
	"legal_simulation/pkg/core/llm"
	"legal_simulation/pkg/core/logging"
	"legal_simulation/pkg/core/prompt"
	"legal_simulation/pkg/core/research"
	"legal_simulation/pkg/core/store"
	"legal_simulation/pkg/core/trial"
)

// Provider names as used in config/models.yaml.
const (
	ProviderGemini     = "gemini"
	ProviderGeminiChat = "gemini-chat"
	ProviderDeepSeek   = "deepseek"
	ProviderQwen       = "qwen"
	ProviderScripted   = "scripted"
)

// Providers registers every provider the configuration has credentials for.
func Providers(cfg config.Config) map[string]llm.Provider {
	out := map[string]llm.Provider{}
	if cfg.Scripted {
		out[ProviderScripted] = llm.NewScriptedProvider()
	}
	if cfg.GeminiAPIKey != "" {
		out[ProviderGemini] = &llm.GeminiProvider{APIKey: cfg.GeminiAPIKey}
		out[ProviderGeminiChat] = &llm.GeminiChatProvider{APIKey: cfg.GeminiAPIKey}
	}
	if cfg.DeepSeekAPIKey != "" {
		out[ProviderDeepSeek] = &llm.DeepSeekProvider{APIKey: cfg.DeepSeekAPIKey}
	}
	if cfg.QwenAPIKey != "" {
		out[ProviderQwen] = &llm.QwenProvider{APIKey: cfg.QwenAPIKey}
	}
	return out
}

// NewManager loads the model routing file and binds it to the available
// providers. Scripted mode routes every agent to the scripted provider.
// When the configured active provider has no credentials the first
// available one takes over.
func NewManager(cfg config.Config) (*agent.Manager, error) {
	routing, err := agent.LoadConfig(cfg.ModelsConfigPath)
	if err != nil {
		return nil, err
	}
	providers := Providers(cfg)
	if len(providers) == 0 {
		return nil, fmt.Errorf("no completion provider configured")
	}

	if cfg.Scripted {
		routing.ActiveProvider = ProviderScripted
		for name, a := range routing.Agents {
			a.Provider = ""
			routing.Agents[name] = a
		}
	}
	if _, ok := providers[routing.ActiveProvider]; !ok {
		for _, name := range []string{ProviderGemini, ProviderDeepSeek, ProviderQwen, ProviderGeminiChat} {
			if _, ok := providers[name]; ok {
				logging.New("bootstrap").Warn("active provider unavailable, switching",
					"configured", routing.ActiveProvider, "using", name)
				routing.ActiveProvider = name
				break
			}
		}
	}

	m := agent.NewManager(routing, providers)
	m.SetCallTimeout(cfg.CallTimeout)
	return m, nil
}

// SearchOptions picks the search providers: Perplexity first when a key
// is set, the headless browser as fallback (or alone) when enabled.
func SearchOptions(cfg config.Config) research.Options {
	var opts research.Options
	if cfg.PerplexityAPIKey != "" {
		opts.Search = &research.PerplexitySearch{APIKey: cfg.PerplexityAPIKey}
	}
	if cfg.BrowserEnabled {
		if opts.Search == nil {
			opts.Search = research.NewBrowserSearch()
		} else {
			opts.Fallback = research.NewBrowserSearch()
		}
	}
	return opts
}

func NewResearcher(cfg config.Config, src trial.ServiceSource, prompts *prompt.Registry) *research.Researcher {
	return research.New(src, prompts, SearchOptions(cfg))
}

// OpenStore connects the configured document store; nil when disabled.
func OpenStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	return store.Open(ctx, store.Config{
		Backend:     cfg.Store,
		MongoURI:    cfg.MongoURI,
		MongoDB:     cfg.MongoDatabase,
		DatabaseURL: cfg.DatabaseURL,
	})
}

// OpenReports builds the configured report archive; nil when disabled.
func OpenReports(ctx context.Context, cfg config.Config) (export.Storage, error) {
	return export.New(ctx, export.Config{
		Type:         export.StorageType(cfg.ReportStorage),
		LocalPath:    cfg.ReportPath,
		S3Bucket:     cfg.S3Bucket,
		S3Region:     cfg.S3Region,
		S3Prefix:     "legalsim",
		AWSAccessKey: cfg.AWSAccessKey,
		AWSSecretKey: cfg.AWSSecretKey,
	})
}
