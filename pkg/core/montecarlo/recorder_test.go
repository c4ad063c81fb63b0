package montecarlo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legal_simulation/pkg/core/store"
	"legal_simulation/pkg/core/trial"
)

func TestTrialDocument_Interleaves(t *testing.T) {
	res := result(4, trial.WinnerPlaintiff, 0.82, nil)
	res.ProsecutorArguments = append(res.ProsecutorArguments, trial.LegalArgument{AgentName: "Prosecutor", Type: trial.ArgumentRebuttal, MainArgument: "rebut"})
	res.DefenseArguments = append(res.DefenseArguments, trial.LegalArgument{AgentName: "Defense", Type: trial.ArgumentRebuttal, MainArgument: "counter"})

	doc := TrialDocument("MC_1", "CASE_MC_1", caseText, res)

	require.Len(t, doc.ChatHistory, 5)
	var agents, phases []string
	for i, m := range doc.ChatHistory {
		agents = append(agents, m.AgentName)
		phases = append(phases, m.Metadata["phase"].(string))
		assert.Equal(t, res.Timestamp.Add(time.Duration(i)*30*time.Second), m.Timestamp)
	}
	assert.Equal(t, []string{"Prosecutor", "Defense", "Prosecutor", "Defense", "Judge"}, agents)
	assert.Equal(t, []string{"round_1", "round_1", "round_2", "round_2", "verdict"}, phases)
	assert.Equal(t, "rebuttal", doc.ChatHistory[2].Metadata["argument_type"])
	assert.Equal(t, "plaintiff", doc.ChatHistory[4].Metadata["verdict"])

	assert.Equal(t, "CASE_MC_1", doc.CaseID)
	assert.Equal(t, "Simulation #4 - "+caseText[:50], doc.CaseName)
	assert.Equal(t, SimulationTypeTrial, doc.SimulationType)
	assert.Equal(t, store.SimulationCompleted, doc.Status)
	assert.Equal(t, "plaintiff", doc.Outcome)
	assert.Equal(t, "Verdict: plaintiff wins with 82.0% confidence", doc.Summary)
	assert.Equal(t, 5, doc.Metadata["total_messages"])
	assert.Equal(t, 120.0, doc.Metadata["trial_duration_seconds"])
	assert.Equal(t, "MC_1", doc.Metadata["monte_carlo_id"])
}

func TestTrialDocument_Failure(t *testing.T) {
	res := failureResult(2, DefaultVariables(), errors.New("timeout"), time.Now())
	doc := TrialDocument("MC_1", "CASE_MC_1", caseText, res)
	assert.Equal(t, store.SimulationFailed, doc.Status)
	assert.Equal(t, "timeout", doc.Metadata[MetaError])
	require.Len(t, doc.ChatHistory, 1)
	assert.Equal(t, "Judge", doc.ChatHistory[0].AgentName)
}

func TestExtendedDocument(t *testing.T) {
	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	rec := trial.ExtendedRecord{
		Record: trial.Record{Verdict: trial.Verdict{Winner: trial.WinnerDefendant, ConfidenceScore: 0.6}},
		Messages: []trial.Message{
			{AgentName: "Judge", Role: "assistant", Content: "session", Timestamp: start},
			{AgentName: "Prosecutor", Role: "assistant", Content: "open", Timestamp: start.Add(5 * time.Second)},
			{AgentName: "Judge", Role: "assistant", Content: "verdict", Timestamp: start.Add(40 * time.Second)},
		},
	}
	doc := ExtendedDocument("MC_2", "CASE_MC_2", caseText, 1, DefaultVariables(), rec, 3.5)
	assert.Equal(t, SimulationTypeExtended, doc.SimulationType)
	assert.Equal(t, []string{"Judge", "Prosecutor"}, doc.Agents)
	assert.Len(t, doc.ChatHistory, 3)
	assert.Equal(t, 40.0, doc.Metadata["trial_duration_seconds"])
	assert.Equal(t, start, doc.CreatedAt)
	assert.Equal(t, "defendant", doc.Outcome)
}

func TestRecorder_Lifecycle(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	r := NewRecorder(mem)

	r.Begin(ctx, "MC_20260101_000000", caseText, "Federal", 2)
	researchID := r.ResearchID()
	require.NotEmpty(t, researchID)

	doc, err := mem.GetResearch(ctx, researchID)
	require.NoError(t, err)
	assert.Equal(t, store.ResearchActive, doc.Status)
	assert.Equal(t, []string{"monte_carlo", "simulation", "federal"}, doc.Tags)
	assert.Equal(t, "CASE_MC_20260101_000000", doc.CaseID)

	// Out of order, as in a parallel run.
	second := r.RecordTrial(ctx, result(2, trial.WinnerDefendant, 0.7, nil))
	first := r.RecordTrial(ctx, result(1, trial.WinnerPlaintiff, 0.9, nil))
	require.NotEmpty(t, first)
	require.NotEmpty(t, second)
	assert.Equal(t, []string{first, second}, r.SimulationIDs())

	results := []Result{result(1, trial.WinnerPlaintiff, 0.9, nil), result(2, trial.WinnerDefendant, 0.7, nil)}
	r.Complete(ctx, Analyze(results), baseEvidence())

	doc, err = mem.GetResearch(ctx, researchID)
	require.NoError(t, err)
	assert.Equal(t, store.ResearchCompleted, doc.Status)
	assert.Equal(t, []string{first, second}, doc.SimulationIDs)
	assert.Equal(t, "Plaintiff win rate: 1/2 (50.0%)", doc.KeyFindings[0])
	assert.Len(t, doc.Statutes, 4)
	assert.Len(t, doc.Precedents, 3)
	assert.Equal(t, "PepsiCo, Inc. v. Redmond", doc.Precedents[0]["case_name"])
	assert.Contains(t, doc.Metadata, "analysis")

	found, err := mem.FindMonteCarlo(ctx, "MC_20260101_000000")
	require.NoError(t, err)
	assert.Equal(t, researchID, found.ID)

	sims, err := mem.SimulationsByCase(ctx, "CASE_MC_20260101_000000")
	require.NoError(t, err)
	assert.Len(t, sims, 2)
}

type failingStore struct {
	store.Store
}

func (failingStore) SaveSimulation(ctx context.Context, doc *store.SimulationDocument) (string, error) {
	return "", errors.New("write failed")
}

func (failingStore) SaveResearch(ctx context.Context, doc *store.ResearchDocument) (string, error) {
	return "", errors.New("write failed")
}

func TestRecorder_StoreErrorsAreSwallowed(t *testing.T) {
	ctx := context.Background()
	r := NewRecorder(failingStore{})

	r.Begin(ctx, "MC_X", caseText, "federal", 1)
	assert.Empty(t, r.ResearchID())
	assert.Empty(t, r.RecordTrial(ctx, result(1, trial.WinnerPlaintiff, 0.9, nil)))
	r.Complete(ctx, Analysis{}, baseEvidence())
	assert.Empty(t, r.SimulationIDs())
}

func TestRecorder_NilIsNoop(t *testing.T) {
	ctx := context.Background()
	var r *Recorder
	r.Begin(ctx, "MC_X", caseText, "federal", 1)
	assert.Empty(t, r.RecordTrial(ctx, result(1, trial.WinnerPlaintiff, 0.9, nil)))
	r.Complete(ctx, Analysis{}, trial.Evidence{})
	assert.Empty(t, r.ResearchID())
	assert.Nil(t, r.SimulationIDs())

	NewRecorder(nil).Begin(ctx, "MC_X", caseText, "federal", 1)
}
