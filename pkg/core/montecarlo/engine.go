package montecarlo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"legal_simulation/pkg/core/export"
	"legal_simulation/pkg/core/logging"
	"legal_simulation/pkg/core/prompt"
	"legal_simulation/pkg/core/telemetry"
	"legal_simulation/pkg/core/trial"
)

var ErrInvalidCount = errors.New("montecarlo: number of simulations must be at least 1")

// EvidenceSource produces the base evidence of a case. research.Researcher
// implements it.
type EvidenceSource interface {
	GatherEvidence(ctx context.Context, description, jurisdiction string) trial.Evidence
}

// Engine runs trials of one case. Research happens at most once per
// engine; every trial argues from its own variant of that evidence.
type Engine struct {
	Description  string
	Jurisdiction string

	src      trial.ServiceSource
	prompts  *prompt.Registry
	research EvidenceSource

	parallelism  int
	trialTimeout time.Duration
	recorder     *Recorder
	base         Variables
	logger       *slog.Logger
	now          func() time.Time

	trials   metric.Int64Counter
	duration metric.Float64Histogram

	// researchMu serializes the first gather so research runs once.
	researchMu sync.Mutex

	mu       sync.Mutex
	rng      *rand.Rand
	id       string
	evidence *trial.Evidence
	results  []Result
}

type Option func(*Engine)

// WithParallelism runs up to n trials at once. Each trial still follows
// the protocol in order, and results keep simulation_id order.
func WithParallelism(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.parallelism = n
		}
	}
}

// WithRecorder mirrors runs into a document store. The recorder logs
// through the engine's logger unless it has its own.
func WithRecorder(r *Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithTrialTimeout bounds each trial. A trial that runs out of time counts
// as a failed trial, not a failed run.
func WithTrialTimeout(d time.Duration) Option {
	return func(e *Engine) { e.trialTimeout = d }
}

// WithRand fixes the random source, for reproducible runs.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rng = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithBaseVariables sets the values kept by the fixed_* randomize options.
func WithBaseVariables(v Variables) Option {
	return func(e *Engine) { e.base = v }
}

func NewEngine(description, jurisdiction string, src trial.ServiceSource, prompts *prompt.Registry, research EvidenceSource, opts ...Option) *Engine {
	if prompts == nil {
		prompts = prompt.Defaults()
	}
	e := &Engine{
		Description:  description,
		Jurisdiction: jurisdiction,
		src:          src,
		prompts:      prompts,
		research:     research,
		parallelism:  1,
		base:         DefaultVariables(),
		logger:       logging.New("montecarlo"),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if e.recorder != nil && !e.recorder.ownLogger {
		e.recorder.logger = e.logger
	}

	meter := telemetry.Meter("montecarlo")
	e.trials, _ = meter.Int64Counter("legalsim.trials", metric.WithDescription("Trials run, by winner and failure"))
	e.duration, _ = meter.Float64Histogram("legalsim.trial.duration", metric.WithUnit("s"), metric.WithDescription("Trial wall-clock duration"))
	return e
}

// ID is the Monte Carlo id of the latest run, "" before the first run.
func (e *Engine) ID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.id
}

// Research returns the base evidence, gathering it on first use. Without
// an EvidenceSource the base is the bare case description.
func (e *Engine) Research(ctx context.Context) trial.Evidence {
	e.researchMu.Lock()
	defer e.researchMu.Unlock()

	e.mu.Lock()
	if e.evidence != nil {
		ev := e.evidence.Clone()
		e.mu.Unlock()
		return ev
	}
	e.mu.Unlock()

	var ev trial.Evidence
	if e.research != nil {
		ev = e.research.GatherEvidence(ctx, e.Description, e.Jurisdiction)
	} else {
		ev = trial.Evidence{
			CaseDescription:  e.Description,
			Jurisdiction:     e.Jurisdiction,
			EvidenceStrength: trial.EvidenceModerate,
			VenueBias:        trial.VenueNeutral,
		}
	}
	e.SetEvidence(ev)
	return ev.Clone()
}

// SetEvidence replaces the base evidence, skipping research.
func (e *Engine) SetEvidence(ev trial.Evidence) {
	cp := ev.Clone()
	e.mu.Lock()
	e.evidence = &cp
	e.mu.Unlock()
}

// Results returns the results of every trial run so far.
func (e *Engine) Results() []Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Result, len(e.results))
	copy(out, e.results)
	return out
}

// Analysis recomputes the analysis of Results.
func (e *Engine) Analysis() Analysis {
	return Analyze(e.Results())
}

func (e *Engine) begin() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.id = MonteCarloID(e.now())
	e.results = nil
	return e.id
}

// Run executes n trials with randomized variables and analyzes them. Every
// trial yields exactly one result; a trial that fails is recorded as a
// defense win with zero confidence. The only error is an invalid n.
func (e *Engine) Run(ctx context.Context, n int, opts RandomizeOptions) (Analysis, error) {
	if n < 1 {
		return Analysis{}, ErrInvalidCount
	}
	ctx, span := telemetry.Tracer("montecarlo").Start(ctx, "montecarlo.Run")
	defer span.End()
	span.SetAttributes(
		attribute.Int("simulations", n),
		attribute.Int("parallelism", e.parallelism),
		attribute.Bool("fixed_strategies", opts.FixedStrategies),
		attribute.Bool("fixed_evidence", opts.FixedEvidence),
	)

	mcID := e.begin()
	base := e.Research(ctx)

	// Draw every trial's variables up front so the draw order, and with
	// it a seeded run, does not depend on scheduling.
	vars := make([]Variables, n)
	e.mu.Lock()
	for i := range vars {
		vars[i] = e.base.Randomize(e.rng, opts)
	}
	e.mu.Unlock()

	e.logger.Info("monte carlo run started", "monte_carlo_id", mcID, "simulations", n, "parallelism", e.parallelism)
	e.recorder.Begin(ctx, mcID, e.Description, e.Jurisdiction, n)

	results := make([]Result, n)
	if e.parallelism <= 1 {
		for i := range vars {
			results[i] = e.runTrial(ctx, i+1, vars[i], base)
			e.recorder.RecordTrial(ctx, results[i])
		}
	} else {
		var g errgroup.Group
		g.SetLimit(e.parallelism)
		for i := range vars {
			g.Go(func() error {
				results[i] = e.runTrial(ctx, i+1, vars[i], base)
				e.recorder.RecordTrial(ctx, results[i])
				return nil
			})
		}
		_ = g.Wait()
	}

	e.mu.Lock()
	e.results = results
	e.mu.Unlock()

	a := Analyze(results)
	e.recorder.Complete(ctx, a, base)
	span.SetAttributes(
		attribute.Int("plaintiff_wins", a.PlaintiffWins),
		attribute.Int("defense_wins", a.DefenseWins),
		attribute.Int("failed", a.FailedSimulations),
	)
	e.logger.Info("monte carlo run complete",
		"monte_carlo_id", mcID,
		"plaintiff_wins", a.PlaintiffWins,
		"defense_wins", a.DefenseWins,
		"failed", a.FailedSimulations,
		"average_confidence", a.AverageConfidence,
	)
	return a, nil
}

// RunSingle runs one canonical trial with fixed variables and records it
// as a run of one.
func (e *Engine) RunSingle(ctx context.Context, id int, v Variables) Result {
	mcID := e.begin()
	base := e.Research(ctx)
	e.recorder.Begin(ctx, mcID, e.Description, e.Jurisdiction, 1)

	res := e.runTrial(ctx, id, v, base)
	e.recorder.RecordTrial(ctx, res)

	e.mu.Lock()
	e.results = []Result{res}
	e.mu.Unlock()
	e.recorder.Complete(ctx, Analyze([]Result{res}), base)
	return res
}

// RunExtended runs the extended courtroom mode once. Unlike the canonical
// trial, a failure is returned to the caller.
func (e *Engine) RunExtended(ctx context.Context, v Variables, opts trial.ExtendedOptions) (trial.ExtendedRecord, error) {
	mcID := e.begin()
	base := e.Research(ctx)

	ctx, span := telemetry.Tracer("montecarlo").Start(ctx, "montecarlo.extended")
	defer span.End()
	if e.trialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.trialTimeout)
		defer cancel()
	}

	ev := DeriveVariant(base, v)
	start := e.now()
	rec, err := trial.RunExtended(ctx,
		trial.NewProsecutor(e.src, e.prompts, v.ProsecutorStrategy),
		trial.NewDefense(e.src, e.prompts, v.DefenseStrategy),
		trial.NewJudge(e.src, e.prompts, v.JudgeTemperament),
		ev, opts)
	elapsed := e.now().Sub(start).Seconds()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Error("extended trial failed", "monte_carlo_id", mcID, "error", err)
		return rec, fmt.Errorf("extended trial: %w", err)
	}

	res := Result{
		SimulationID:        1,
		Variables:           v,
		Verdict:             rec.Verdict,
		ProsecutorArguments: rec.ProsecutorArguments,
		DefenseArguments:    rec.DefenseArguments,
		ExecutionTime:       elapsed,
		Timestamp:           e.now(),
	}
	e.mu.Lock()
	e.results = []Result{res}
	e.mu.Unlock()

	e.recorder.Begin(ctx, mcID, e.Description, e.Jurisdiction, 1)
	e.recorder.RecordExtended(ctx, 1, v, rec, elapsed)
	e.recorder.Complete(ctx, Analyze([]Result{res}), base)
	return rec, nil
}

func (e *Engine) runTrial(ctx context.Context, id int, v Variables, base trial.Evidence) (res Result) {
	ctx, span := telemetry.Tracer("montecarlo").Start(ctx, "montecarlo.trial")
	defer span.End()
	span.SetAttributes(
		attribute.Int("simulation_id", id),
		attribute.String("prosecutor_strategy", string(v.ProsecutorStrategy)),
		attribute.String("defense_strategy", string(v.DefenseStrategy)),
		attribute.String("judge_temperament", string(v.JudgeTemperament)),
	)

	start := e.now()
	defer func() {
		if p := recover(); p != nil {
			res = e.failed(ctx, id, v, fmt.Errorf("panic: %v", p))
		}
		e.observe(ctx, res)
		span.SetAttributes(attribute.String("winner", res.Verdict.Winner))
	}()

	if e.trialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.trialTimeout)
		defer cancel()
	}

	ev := DeriveVariant(base, v)
	t := trial.New(
		trial.NewProsecutor(e.src, e.prompts, v.ProsecutorStrategy),
		trial.NewDefense(e.src, e.prompts, v.DefenseStrategy),
		trial.NewJudge(e.src, e.prompts, v.JudgeTemperament),
	)
	rec, err := t.Run(ctx, ev)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return e.failed(ctx, id, v, err)
	}

	end := e.now()
	e.logger.Info("trial complete",
		"simulation_id", id,
		"prosecutor_strategy", v.ProsecutorStrategy,
		"defense_strategy", v.DefenseStrategy,
		"judge_temperament", v.JudgeTemperament,
		"winner", rec.Verdict.Winner,
		"confidence", rec.Verdict.ConfidenceScore,
	)
	return Result{
		SimulationID:        id,
		Variables:           v,
		Verdict:             rec.Verdict,
		ProsecutorArguments: rec.ProsecutorArguments,
		DefenseArguments:    rec.DefenseArguments,
		ExecutionTime:       end.Sub(start).Seconds(),
		Timestamp:           end,
	}
}

func (e *Engine) failed(ctx context.Context, id int, v Variables, err error) Result {
	e.logger.ErrorContext(ctx, "trial failed", "simulation_id", id, "error", err)
	return failureResult(id, v, err, e.now())
}

func (e *Engine) observe(ctx context.Context, res Result) {
	attrs := metric.WithAttributes(
		attribute.String("winner", res.Verdict.Winner),
		attribute.Bool("failed", res.Failed()),
	)
	if e.trials != nil {
		e.trials.Add(ctx, 1, attrs)
	}
	if e.duration != nil {
		e.duration.Record(ctx, res.ExecutionTime)
	}
}

// Report builds the archive record of the latest run.
func (e *Engine) Report(ctx context.Context) Report {
	return BuildReport(e.ID(), e.Research(ctx), e.Results(), e.now())
}

// SaveReport archives the latest run and returns the storage path.
func (e *Engine) SaveReport(ctx context.Context, s export.Storage) (string, error) {
	if s == nil {
		return "", errors.New("no report storage configured")
	}
	return SaveReport(ctx, s, e.Report(ctx))
}
