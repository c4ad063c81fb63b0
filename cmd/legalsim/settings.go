package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"legal_simulation/pkg/core/agent"
	"legal_simulation/pkg/core/bootstrap"
	"legal_simulation/pkg/core/config"
	"legal_simulation/pkg/core/logging"
	"legal_simulation/pkg/core/montecarlo"
	"legal_simulation/pkg/core/prompt"
	"legal_simulation/pkg/core/research"
	"legal_simulation/pkg/core/store"
	"legal_simulation/pkg/core/telemetry"
	"legal_simulation/pkg/core/trial"
)

// flagKeys maps flag names onto the viper keys they override. The keys
// also name the LEGALSIM_ environment variables and the config file keys.
var flagKeys = map[string]string{
	"scripted":      "scripted",
	"store":         "store",
	"models-config": "models_config",
	"log-level":     "log_level",
	"trial-timeout": "trial_timeout",
	"parallel":      "parallelism",
}

// loadSettings layers config file, LEGALSIM_ environment and flags on top
// of the process configuration and validates the result. The CLI defaults
// to no document store.
func loadSettings(cmd *cobra.Command) (config.Config, error) {
	cfg := config.FromEnv()
	v := viper.New()

	v.SetDefault("scripted", cfg.Scripted)
	v.SetDefault("store", config.StoreNone)
	v.SetDefault("models_config", cfg.ModelsConfigPath)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)
	v.SetDefault("trial_timeout", cfg.TrialTimeout)
	v.SetDefault("call_timeout", cfg.CallTimeout)
	v.SetDefault("parallelism", cfg.Parallelism)
	v.SetDefault("report_storage", cfg.ReportStorage)
	v.SetDefault("report_path", cfg.ReportPath)

	v.SetEnvPrefix("LEGALSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return config.Config{}, fmt.Errorf("error reading config: %w", err)
		}
	}

	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || bindErr != nil {
			return
		}
		// Only an explicitly set flag outranks env and file values.
		if f.Changed {
			bindErr = v.BindPFlag(key, f)
		}
	})
	if bindErr != nil {
		return config.Config{}, bindErr
	}

	cfg.Scripted = v.GetBool("scripted")
	cfg.Store = strings.ToLower(v.GetString("store"))
	cfg.ModelsConfigPath = v.GetString("models_config")
	cfg.LogLevel = v.GetString("log_level")
	cfg.LogFormat = v.GetString("log_format")
	cfg.TrialTimeout = v.GetDuration("trial_timeout")
	cfg.CallTimeout = v.GetDuration("call_timeout")
	cfg.Parallelism = v.GetInt("parallelism")
	cfg.ReportStorage = strings.ToLower(v.GetString("report_storage"))
	cfg.ReportPath = v.GetString("report_path")

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// env is everything a command needs, built from the settings.
type env struct {
	cfg      config.Config
	agents   *agent.Manager
	prompts  *prompt.Registry
	research *research.Researcher
	store    store.Store
	shutdown telemetry.Shutdown
}

func setup(ctx context.Context, cmd *cobra.Command) (*env, error) {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	logging.Init(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat, cmd.ErrOrStderr())

	shutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("failed to init telemetry: %w", err)
	}
	mgr, err := bootstrap.NewManager(cfg)
	if err != nil {
		shutdown(ctx)
		return nil, err
	}
	st, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		shutdown(ctx)
		return nil, fmt.Errorf("failed to open document store: %w", err)
	}

	prompts := prompt.Defaults()
	return &env{
		cfg:      cfg,
		agents:   mgr,
		prompts:  prompts,
		research: bootstrap.NewResearcher(cfg, mgr, prompts),
		store:    st,
		shutdown: shutdown,
	}, nil
}

func (e *env) Close(ctx context.Context) {
	if e.store != nil {
		e.store.Close(ctx)
	}
	e.shutdown(ctx)
}

func (e *env) engine(description, jurisdiction string, opts ...montecarlo.Option) *montecarlo.Engine {
	opts = append([]montecarlo.Option{
		montecarlo.WithParallelism(e.cfg.Parallelism),
		montecarlo.WithTrialTimeout(e.cfg.TrialTimeout),
		montecarlo.WithRecorder(montecarlo.NewRecorder(e.store)),
	}, opts...)
	return montecarlo.NewEngine(description, jurisdiction, e.agents, e.prompts, e.research, opts...)
}

// caseText reads --case or --case-file.
func caseText(cmd *cobra.Command) (string, error) {
	text, _ := cmd.Flags().GetString("case")
	file, _ := cmd.Flags().GetString("case-file")
	if text != "" && file != "" {
		return "", fmt.Errorf("use either --case or --case-file, not both")
	}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read case file: %w", err)
		}
		text = string(data)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("a case description is required (--case or --case-file)")
	}
	return text, nil
}

func addCaseFlags(cmd *cobra.Command) {
	cmd.Flags().String("case", "", "case description")
	cmd.Flags().String("case-file", "", "file holding the case description")
	cmd.Flags().String("jurisdiction", "Federal", "jurisdiction of the case")
}

func addVariableFlags(cmd *cobra.Command) {
	d := montecarlo.DefaultVariables()
	cmd.Flags().String("prosecutor", string(d.ProsecutorStrategy), "prosecutor strategy: aggressive, moderate or conservative")
	cmd.Flags().String("defense", string(d.DefenseStrategy), "defense strategy: aggressive, moderate or conservative")
	cmd.Flags().String("judge", string(d.JudgeTemperament), "judge temperament: strict, balanced or lenient")
	cmd.Flags().Bool("nda", d.HasNDA, "an NDA was signed")
	cmd.Flags().String("evidence", string(d.EvidenceStrength), "evidence strength: weak, moderate or strong")
	cmd.Flags().String("venue", string(d.VenueBias), "venue bias: plaintiff-friendly, neutral or defendant-friendly")
}

// variables reads the variable flags over the defaults.
func variables(cmd *cobra.Command) (montecarlo.Variables, error) {
	v := montecarlo.DefaultVariables()
	f := cmd.Flags()
	prosecutor, _ := f.GetString("prosecutor")
	defense, _ := f.GetString("defense")
	judge, _ := f.GetString("judge")
	evidence, _ := f.GetString("evidence")
	venue, _ := f.GetString("venue")
	nda, _ := f.GetBool("nda")

	v.ProsecutorStrategy = trial.Strategy(prosecutor)
	v.DefenseStrategy = trial.Strategy(defense)
	v.JudgeTemperament = trial.Temperament(judge)
	v.EvidenceStrength = trial.EvidenceStrength(evidence)
	v.VenueBias = trial.VenueBias(venue)
	v.HasNDA = nda
	return v, v.Validate()
}
