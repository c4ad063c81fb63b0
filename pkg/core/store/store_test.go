package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func simulation(caseID, name string, status SimulationStatus, offset time.Duration) *SimulationDocument {
	return &SimulationDocument{
		CaseID:         caseID,
		CaseName:       name,
		SimulationType: "monte_carlo_trial",
		Agents:         []string{"Prosecutor", "Defense", "Judge"},
		ChatHistory: []AgentMessage{
			{AgentName: "Prosecutor", Role: "assistant", Content: "opening", Timestamp: base},
			{AgentName: "Judge", Role: "assistant", Content: "verdict", Timestamp: base.Add(30 * time.Second)},
		},
		Status:    status,
		CreatedAt: base.Add(offset),
		Metadata:  map[string]interface{}{"simulation_id": 1, "variables": map[string]interface{}{"has_nda": true}},
		Outcome:   "plaintiff",
		Summary:   "Verdict: plaintiff wins with 80.0% confidence",
	}
}

// exerciseStore runs the same contract against every backend.
func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()

	first := simulation("CASE_MC_1", "Simulation #1 - CloudStorage v. Johnson", SimulationCompleted, 0)
	second := simulation("CASE_MC_1", "Simulation #2 - CloudStorage v. Johnson", SimulationCompleted, time.Minute)
	other := simulation("CASE_MC_2", "Enhanced Trial - Acme", SimulationFailed, 2*time.Minute)
	other.SimulationType = "enhanced_trial"

	id1, err := s.SaveSimulation(ctx, first)
	require.NoError(t, err)
	require.NotEmpty(t, id1)
	assert.Equal(t, id1, first.ID)
	id2, err := s.SaveSimulation(ctx, second)
	require.NoError(t, err)
	id3, err := s.SaveSimulation(ctx, other)
	require.NoError(t, err)

	got, err := s.GetSimulation(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, "CASE_MC_1", got.CaseID)
	assert.Len(t, got.ChatHistory, 2)
	assert.Equal(t, "plaintiff", got.Outcome)
	vars := AsMap(got.Metadata["variables"])
	require.NotNil(t, vars, "metadata.variables decodes as a map, got %T", got.Metadata["variables"])
	assert.Equal(t, true, vars["has_nda"])

	_, err = s.GetSimulation(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	byCase, err := s.SimulationsByCase(ctx, "CASE_MC_1")
	require.NoError(t, err)
	require.Len(t, byCase, 2)
	assert.Equal(t, id2, byCase[0].ID, "newest first")

	found, err := s.SearchSimulations(ctx, SimulationFilter{CaseName: "cloudstorage"})
	require.NoError(t, err)
	assert.Len(t, found, 2)

	found, err = s.SearchSimulations(ctx, SimulationFilter{Type: "enhanced_trial"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, id3, found[0].ID)

	found, err = s.SearchSimulations(ctx, SimulationFilter{Status: SimulationCompleted, Agent: "Judge", Limit: 1})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, id2, found[0].ID)

	found, err = s.SearchSimulations(ctx, SimulationFilter{From: base.Add(30 * time.Second), To: base.Add(90 * time.Second)})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, id2, found[0].ID)

	research := &ResearchDocument{
		CaseID:      "CASE_MC_1",
		CaseName:    "Monte Carlo: CloudStorage v. Johnson",
		Topic:       "Monte Carlo Simulation Analysis",
		Description: "Monte Carlo simulation with 2 trials",
		KeyFindings: []string{},
		Status:      ResearchActive,
		Tags:        []string{"monte_carlo", "simulation", "federal"},
		CreatedAt:   base,
		Metadata:    map[string]interface{}{"monte_carlo_id": "MC_1", "planned_simulations": 2},
	}
	rid, err := s.SaveResearch(ctx, research)
	require.NoError(t, err)

	require.NoError(t, s.LinkSimulation(ctx, rid, id1))
	require.NoError(t, s.LinkSimulation(ctx, rid, id2))
	require.NoError(t, s.LinkSimulation(ctx, rid, id2))
	assert.ErrorIs(t, s.LinkSimulation(ctx, "missing", id1), ErrNotFound)

	mc, err := s.FindMonteCarlo(ctx, "MC_1")
	require.NoError(t, err)
	assert.Equal(t, rid, mc.ID)
	assert.Equal(t, []string{id1, id2}, mc.SimulationIDs)

	_, err = s.FindMonteCarlo(ctx, "MC_404")
	assert.ErrorIs(t, err, ErrNotFound)

	// Upsert keeps the id.
	mc.Status = ResearchCompleted
	mc.KeyFindings = []string{"Plaintiff win rate: 2/2 (100.0%)"}
	again, err := s.SaveResearch(ctx, mc)
	require.NoError(t, err)
	assert.Equal(t, rid, again)

	rs, err := s.SearchResearch(ctx, ResearchFilter{Topic: "monte carlo", Tag: "federal", Status: ResearchCompleted})
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, []string{"Plaintiff win rate: 2/2 (100.0%)"}, rs[0].KeyFindings)

	stats, err := s.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalSimulations)
	assert.Equal(t, int64(1), stats.TotalResearch)
	assert.Equal(t, int64(2), stats.SimulationsByStatus["completed"])
	assert.Equal(t, int64(1), stats.SimulationsByStatus["failed"])
	assert.Equal(t, int64(0), stats.SimulationsByStatus["paused"])
	assert.Equal(t, int64(1), stats.ResearchByStatus["completed"])

	summary, err := s.CaseSummary(ctx, "CASE_MC_1")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalSimulations)
	assert.Equal(t, 1, summary.TotalResearch)
	assert.Equal(t, 4, summary.TotalMessages)
	assert.Equal(t, []string{"monte_carlo_trial"}, summary.SimulationTypes)
	assert.Equal(t, []string{"Prosecutor", "Defense", "Judge"}, summary.Agents)
	assert.Equal(t, 2, summary.Research[0].LinkedSimulations)

	require.NoError(t, s.DeleteSimulation(ctx, id1))
	assert.ErrorIs(t, s.DeleteSimulation(ctx, id1), ErrNotFound)
	mc, err = s.GetResearch(ctx, rid)
	require.NoError(t, err)
	assert.Equal(t, []string{id2}, mc.SimulationIDs)

	require.NoError(t, s.Ping(ctx))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestMemoryStore_CopiesDocuments(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	doc := simulation("c", "n", SimulationCompleted, 0)
	id, err := s.SaveSimulation(ctx, doc)
	require.NoError(t, err)

	doc.ChatHistory[0].Content = "mutated"
	got, err := s.GetSimulation(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "opening", got.ChatHistory[0].Content)

	got.Agents[0] = "mutated"
	again, err := s.GetSimulation(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Prosecutor", again.Agents[0])
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultSearchLimit, NormalizeLimit(0))
	assert.Equal(t, DefaultSearchLimit, NormalizeLimit(-3))
	assert.Equal(t, 7, NormalizeLimit(7))
	assert.Equal(t, MaxSearchLimit, NormalizeLimit(500))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, Config{Backend: "none"})
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = Open(ctx, Config{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	_, err = Open(ctx, Config{Backend: "mongo"})
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = Open(ctx, Config{Backend: "postgres"})
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = Open(ctx, Config{Backend: "cassandra"})
	assert.Error(t, err)
}

func integration(t *testing.T) {
	t.Helper()
	if os.Getenv("LEGALSIM_INTEGRATION") != "1" {
		t.Skip("set LEGALSIM_INTEGRATION=1 to run against real databases")
	}
}

func startContainer(t *testing.T, req testcontainers.ContainerRequest, port string) (string, string) {
	t.Helper()
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mapped, err := container.MappedPort(ctx, nat.Port(port))
	require.NoError(t, err)
	return host, mapped.Port()
}

func TestMongoStore_Integration(t *testing.T) {
	integration(t)
	host, port := startContainer(t, testcontainers.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForLog("Waiting for connections").WithStartupTimeout(60 * time.Second),
	}, "27017")

	ctx := context.Background()
	s, err := NewMongo(ctx, fmt.Sprintf("mongodb://%s:%s", host, port), "legalsim_test")
	require.NoError(t, err)
	defer s.Close(ctx)
	exerciseStore(t, s)
}

func TestPostgresStore_Integration(t *testing.T) {
	integration(t)
	host, port := startContainer(t, testcontainers.ContainerRequest{
		Image:        "postgres:16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "legalsim",
			"POSTGRES_PASSWORD": "legalsim",
			"POSTGRES_DB":       "legalsim",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}, "5432")

	ctx := context.Background()
	s, err := NewPostgres(ctx, fmt.Sprintf("postgres://legalsim:legalsim@%s:%s/legalsim?sslmode=disable", host, port))
	require.NoError(t, err)
	defer s.Close(ctx)
	exerciseStore(t, s)
}
