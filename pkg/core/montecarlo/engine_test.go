package montecarlo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legal_simulation/pkg/core/export"
	"legal_simulation/pkg/core/logging"
	"legal_simulation/pkg/core/prompt"
	"legal_simulation/pkg/core/store"
	"legal_simulation/pkg/core/trial"
)

func newScriptedEngine(opts ...Option) *Engine {
	opts = append([]Option{WithLogger(logging.Discard())}, opts...)
	e := NewEngine(caseText, "federal", scriptedManager(), prompt.Defaults(), nil, opts...)
	e.SetEvidence(baseEvidence())
	return e
}

func TestRunSingle_AggressiveProsecutionWithNDA(t *testing.T) {
	e := newScriptedEngine()
	v := DefaultVariables()
	v.ProsecutorStrategy = trial.StrategyAggressive
	v.DefenseStrategy = trial.StrategyModerate
	v.JudgeTemperament = trial.TemperamentBalanced
	v.HasNDA = true
	v.EvidenceStrength = trial.EvidenceStrong

	res := e.RunSingle(context.Background(), 1, v)

	assert.False(t, res.Failed())
	assert.Contains(t, []string{trial.WinnerPlaintiff, trial.WinnerDefendant}, res.Verdict.Winner)
	assert.Len(t, res.ProsecutorArguments, 2)
	assert.Len(t, res.DefenseArguments, 2)
	assert.Equal(t, trial.ArgumentOpening, res.ProsecutorArguments[0].Type)
	assert.Equal(t, trial.ArgumentRebuttal, res.DefenseArguments[1].Type)
	assert.Equal(t, v, res.Variables)
	assert.Len(t, e.Results(), 1)
}

func TestRun_RandomizedTenTrials(t *testing.T) {
	e := newScriptedEngine(WithRand(rand.New(rand.NewPCG(5, 8))))

	a, err := e.Run(context.Background(), 10, RandomizeOptions{})
	require.NoError(t, err)

	assert.Equal(t, 10, a.TotalSimulations)
	assert.Equal(t, 10, a.PlaintiffWins+a.DefenseWins)
	assert.Zero(t, a.Settlements)
	assert.Zero(t, a.FailedSimulations)
	assert.GreaterOrEqual(t, a.AverageConfidence, 0.0)
	assert.LessOrEqual(t, a.AverageConfidence, 1.0)
	assert.NotEmpty(t, e.ID())

	for i, r := range e.Results() {
		assert.Equal(t, i+1, r.SimulationID)
		require.NoError(t, r.Variables.Validate())
	}
}

func TestRun_FailingServiceStillYieldsEveryResult(t *testing.T) {
	src := sourceFunc(func(ctx context.Context, agentType, prompt string) (string, error) {
		return "", errors.New("DEEPSEEK_API_ERROR: status=503")
	})
	e := NewEngine(caseText, "federal", src, prompt.Defaults(), nil, WithLogger(logging.Discard()))

	a, err := e.Run(context.Background(), 5, RandomizeOptions{})
	require.NoError(t, err)

	assert.Equal(t, 5, a.TotalSimulations)
	assert.Equal(t, 5, a.DefenseWins)
	assert.Equal(t, 5, a.FailedSimulations)
	assert.Zero(t, a.AverageConfidence)

	results := e.Results()
	require.Len(t, results, 5)
	for _, r := range results {
		assert.True(t, r.Failed())
		assert.Equal(t, trial.WinnerDefendant, r.Verdict.Winner)
		assert.Zero(t, r.Verdict.ConfidenceScore)
		assert.True(t, strings.HasPrefix(r.Verdict.Rationale, "Simulation error:"))
		assert.Contains(t, r.Metadata[MetaError], "DEEPSEEK_API_ERROR")
	}
}

func TestRun_IntermittentFailure(t *testing.T) {
	// Every judge call fails for trials whose variant says the defendant
	// refuses to cooperate; the rest finish normally.
	mgr := scriptedManager()
	src := sourceFunc(func(ctx context.Context, agentType, prompt string) (string, error) {
		if agentType == "judge" && strings.Contains(prompt, "refuses to cooperate") {
			return "", errors.New("judge unavailable")
		}
		return mgr.Service(agentType, "", 0.2).Generate(ctx, prompt, "json")
	})
	e := NewEngine(caseText, "federal", src, prompt.Defaults(), nil, WithLogger(logging.Discard()), WithRand(rand.New(rand.NewPCG(9, 9))))
	e.SetEvidence(baseEvidence())

	a, err := e.Run(context.Background(), 12, RandomizeOptions{})
	require.NoError(t, err)
	assert.Equal(t, 12, a.TotalSimulations)

	hostile := 0
	for _, r := range e.Results() {
		if r.Variables.DefendantCooperation == CooperationHostile {
			hostile++
			assert.True(t, r.Failed())
		} else {
			assert.False(t, r.Failed())
		}
	}
	assert.Equal(t, hostile, a.FailedSimulations)
}

func TestRun_TrialTimeoutIsATrialFailure(t *testing.T) {
	src := sourceFunc(func(ctx context.Context, agentType, prompt string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	e := NewEngine(caseText, "federal", src, prompt.Defaults(), nil,
		WithLogger(logging.Discard()), WithTrialTimeout(20*time.Millisecond))

	a, err := e.Run(context.Background(), 2, RandomizeOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, a.TotalSimulations)
	assert.Equal(t, 2, a.FailedSimulations)
	assert.Contains(t, e.Results()[0].Metadata[MetaError], context.DeadlineExceeded.Error())
}

func TestRun_PanicIsATrialFailure(t *testing.T) {
	src := sourceFunc(func(ctx context.Context, agentType, prompt string) (string, error) {
		panic("provider bug")
	})
	e := NewEngine(caseText, "federal", src, prompt.Defaults(), nil, WithLogger(logging.Discard()))

	a, err := e.Run(context.Background(), 3, RandomizeOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, a.FailedSimulations)
	assert.Contains(t, e.Results()[2].Metadata[MetaError], "provider bug")
}

func TestRun_InvalidCount(t *testing.T) {
	e := newScriptedEngine()
	_, err := e.Run(context.Background(), 0, RandomizeOptions{})
	assert.ErrorIs(t, err, ErrInvalidCount)
}

func TestRun_ParallelKeepsSimulationOrder(t *testing.T) {
	mem := store.NewMemory()
	rec := NewRecorder(mem)
	e := newScriptedEngine(WithParallelism(4), WithRecorder(rec), WithRand(rand.New(rand.NewPCG(1, 1))))

	a, err := e.Run(context.Background(), 8, RandomizeOptions{})
	require.NoError(t, err)
	assert.Equal(t, 8, a.TotalSimulations)

	results := e.Results()
	for i, r := range results {
		assert.Equal(t, i+1, r.SimulationID)
	}
	assert.Len(t, rec.SimulationIDs(), 8)

	doc, err := mem.FindMonteCarlo(context.Background(), e.ID())
	require.NoError(t, err)
	assert.Equal(t, rec.SimulationIDs(), doc.SimulationIDs)
	assert.Equal(t, store.ResearchCompleted, doc.Status)
}

func TestRun_SeededRunsMatch(t *testing.T) {
	run := func() []Result {
		e := newScriptedEngine(WithRand(rand.New(rand.NewPCG(21, 34))), WithParallelism(3))
		_, err := e.Run(context.Background(), 6, RandomizeOptions{})
		require.NoError(t, err)
		return e.Results()
	}
	first, second := run(), run()
	for i := range first {
		assert.Equal(t, first[i].Variables, second[i].Variables)
		assert.Equal(t, first[i].Verdict.Winner, second[i].Verdict.Winner)
		assert.Equal(t, first[i].Verdict.ConfidenceScore, second[i].Verdict.ConfidenceScore)
	}
}

func TestRun_FixedVariables(t *testing.T) {
	base := DefaultVariables()
	base.ProsecutorStrategy = trial.StrategyConservative
	base.HasNDA = false
	e := newScriptedEngine(WithBaseVariables(base))

	_, err := e.Run(context.Background(), 4, RandomizeOptions{FixedStrategies: true, FixedEvidence: true})
	require.NoError(t, err)
	for _, r := range e.Results() {
		assert.Equal(t, trial.StrategyConservative, r.Variables.ProsecutorStrategy)
		assert.False(t, r.Variables.HasNDA)
	}
}

func TestEngine_ResearchRunsOnce(t *testing.T) {
	research := &countingResearch{ev: baseEvidence()}
	e := NewEngine(caseText, "federal", scriptedManager(), prompt.Defaults(), research, WithLogger(logging.Discard()))

	_, err := e.Run(context.Background(), 3, RandomizeOptions{})
	require.NoError(t, err)
	_, err = e.Run(context.Background(), 2, RandomizeOptions{})
	require.NoError(t, err)

	assert.EqualValues(t, 1, research.calls.Load())
	assert.Len(t, e.Results(), 2, "a new run replaces the previous results")
}

// slowResearch widens the window in which concurrent callers race.
type slowResearch struct {
	countingResearch
}

func (s *slowResearch) GatherEvidence(ctx context.Context, description, jurisdiction string) trial.Evidence {
	time.Sleep(20 * time.Millisecond)
	return s.countingResearch.GatherEvidence(ctx, description, jurisdiction)
}

func TestEngine_ConcurrentResearchRunsOnce(t *testing.T) {
	research := &slowResearch{countingResearch{ev: baseEvidence()}}
	e := NewEngine(caseText, "federal", scriptedManager(), prompt.Defaults(), research, WithLogger(logging.Discard()))

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ev := e.Research(context.Background())
			assert.Equal(t, caseText, ev.CaseDescription)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, research.calls.Load())
}

func TestEngine_RecorderLogsThroughEngineLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	e := NewEngine(caseText, "federal", scriptedManager(), prompt.Defaults(), nil,
		WithLogger(logger), WithRecorder(NewRecorder(failingStore{})))

	_, err := e.Run(context.Background(), 1, RandomizeOptions{})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "failed to create monte carlo document")
	assert.Contains(t, out, "failed to save simulation")
	assert.Contains(t, out, "write failed")
}

func TestEngine_RecorderKeepsOwnLogger(t *testing.T) {
	var engineLog, recorderLog bytes.Buffer
	rec := NewRecorder(failingStore{})
	rec.SetLogger(slog.New(slog.NewTextHandler(&recorderLog, nil)))
	e := NewEngine(caseText, "federal", scriptedManager(), prompt.Defaults(), nil,
		WithLogger(slog.New(slog.NewTextHandler(&engineLog, nil))), WithRecorder(rec))

	_, err := e.Run(context.Background(), 1, RandomizeOptions{})
	require.NoError(t, err)

	assert.Contains(t, recorderLog.String(), "failed to save simulation")
	assert.NotContains(t, engineLog.String(), "failed to save simulation")
}

func TestEngine_ResearchWithoutSource(t *testing.T) {
	e := NewEngine(caseText, "federal", scriptedManager(), nil, nil)
	ev := e.Research(context.Background())
	assert.Equal(t, caseText, ev.CaseDescription)
	assert.Equal(t, trial.EvidenceModerate, ev.EvidenceStrength)
	assert.Equal(t, trial.VenueNeutral, ev.VenueBias)
}

func TestRunExtended_RecordsTranscript(t *testing.T) {
	mem := store.NewMemory()
	rec := NewRecorder(mem)
	e := newScriptedEngine(WithRecorder(rec))

	out, err := e.RunExtended(context.Background(), DefaultVariables(), trial.ExtendedOptions{Exchanges: 2, Procedural: true})
	require.NoError(t, err)
	assert.NotEmpty(t, out.Messages)
	assert.Len(t, out.ProsecutorArguments, 3)

	ids := rec.SimulationIDs()
	require.Len(t, ids, 1)
	doc, err := mem.GetSimulation(context.Background(), ids[0])
	require.NoError(t, err)
	assert.Equal(t, SimulationTypeExtended, doc.SimulationType)
	assert.Len(t, doc.ChatHistory, len(out.Messages))
}

func TestRunExtended_ReturnsErrors(t *testing.T) {
	src := sourceFunc(func(ctx context.Context, agentType, prompt string) (string, error) {
		return "", errors.New("down")
	})
	e := NewEngine(caseText, "federal", src, prompt.Defaults(), nil, WithLogger(logging.Discard()))
	_, err := e.RunExtended(context.Background(), DefaultVariables(), trial.ExtendedOptions{})
	assert.Error(t, err)
}

func TestEngine_SaveReport(t *testing.T) {
	storage, err := export.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	e := newScriptedEngine(WithRand(rand.New(rand.NewPCG(2, 3))))
	_, err = e.Run(context.Background(), 3, RandomizeOptions{})
	require.NoError(t, err)

	path, err := e.SaveReport(context.Background(), storage)
	require.NoError(t, err)

	rc, err := storage.Get(context.Background(), path)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)

	var report Report
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, e.ID(), report.MonteCarloID)
	assert.Equal(t, caseText, report.CaseDescription)
	assert.Equal(t, 4, report.ResearchSummary.StatutesFound)
	assert.Equal(t, "18 U.S.C. § 1836", report.ResearchSummary.KeyStatute)
	assert.Equal(t, "PepsiCo, Inc. v. Redmond", report.ResearchSummary.KeyPrecedent)
	assert.Len(t, report.Simulations, 3)
	assert.Equal(t, 3, report.Analysis.TotalSimulations)
	assert.LessOrEqual(t, len([]rune(report.Simulations[0].Verdict.Rationale)), 200)
}

func TestEngine_SaveReportWithoutStorage(t *testing.T) {
	_, err := newScriptedEngine().SaveReport(context.Background(), nil)
	assert.Error(t, err)
}
