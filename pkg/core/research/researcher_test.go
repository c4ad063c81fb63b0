package research

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legal_simulation/pkg/core/agent"
	"legal_simulation/pkg/core/completion"
	"legal_simulation/pkg/core/llm"
	"legal_simulation/pkg/core/prompt"
	"legal_simulation/pkg/core/trial"
)

type fakeSearch struct {
	mu      sync.Mutex
	queries []string
	err     error
}

func (f *fakeSearch) Query(ctx context.Context, text string, sources []string) (SearchResult, error) {
	f.mu.Lock()
	f.queries = append(f.queries, text)
	f.mu.Unlock()
	if f.err != nil {
		return SearchResult{}, f.err
	}
	return SearchResult{Text: "Notes about " + text, Sources: []string{"https://example.test/" + strings.ReplaceAll(text, " ", "-")}}, nil
}

// sourceFunc answers every agent with the same function.
type sourceFunc func(agentType, prompt string) (string, error)

func (f sourceFunc) Service(agentType, systemPrompt string, temperature float64) completion.Service {
	return completion.ServiceFunc(func(ctx context.Context, prompt string, shape completion.Shape) (string, error) {
		return f(agentType, prompt)
	})
}

func scriptedManager() *agent.Manager {
	return agent.NewManager(agent.Config{ActiveProvider: "scripted"}, map[string]llm.Provider{
		"scripted": llm.NewScriptedProvider(),
	})
}

const caseText = "Engineer signed a non-disclosure agreement and downloaded 14,000 design files before joining a competitor."

func TestGatherEvidence_Scripted(t *testing.T) {
	search := &fakeSearch{}
	r := New(scriptedManager(), prompt.Defaults(), Options{Search: search})

	ev := r.GatherEvidence(context.Background(), caseText, "federal")

	assert.Equal(t, caseText, ev.CaseDescription)
	assert.Equal(t, "federal", ev.Jurisdiction)
	assert.True(t, ev.HasNDA)
	assert.Equal(t, trial.EvidenceStrong, ev.EvidenceStrength)
	assert.Equal(t, trial.VenueNeutral, ev.VenueBias)
	assert.NotEmpty(t, ev.Facts)
	assert.LessOrEqual(t, len(ev.Facts), maxFacts)

	// Every query returns the same two authorities; dedupe keeps one copy.
	require.Len(t, ev.Statutes, 2)
	assert.Equal(t, "18 U.S.C. § 1836", ev.Statutes[0].Citation)
	assert.Equal(t, "https://example.test/DTSA-Defend-Trade-Secrets-Act-requirements-elements", ev.Statutes[0].SourceURL)
	require.Len(t, ev.Precedents, 2)
	assert.Equal(t, "PepsiCo, Inc. v. Redmond", ev.Precedents[1].CaseName)
	assert.Equal(t, "1995", ev.Precedents[1].Year)

	assert.Len(t, search.queries, 8)
	assert.Equal(t, "trade secret law trade secret misappropriation", search.queries[2])
	assert.Equal(t, "trade secret misappropriation cases federal", search.queries[4])
}

func TestGatherEvidence_SearchErrorsGiveEmptyLists(t *testing.T) {
	primary := &fakeSearch{err: errors.New("PERPLEXITY_API_ERROR: status=500")}
	r := New(scriptedManager(), prompt.Defaults(), Options{Search: primary})

	ev := r.GatherEvidence(context.Background(), caseText, "california")
	assert.NotNil(t, ev.Statutes)
	assert.Empty(t, ev.Statutes)
	assert.Empty(t, ev.Precedents)
	assert.True(t, ev.HasNDA)
}

func TestGatherEvidence_FallbackSearch(t *testing.T) {
	primary := &fakeSearch{err: errors.New("down")}
	fallback := &fakeSearch{}
	r := New(scriptedManager(), prompt.Defaults(), Options{Search: primary, Fallback: fallback})

	ev := r.GatherEvidence(context.Background(), caseText, "federal")
	assert.Len(t, ev.Statutes, 2)
	assert.Len(t, fallback.queries, len(primary.queries))
}

func TestGatherEvidence_Defaults(t *testing.T) {
	src := sourceFunc(func(agentType, prompt string) (string, error) {
		return "", errors.New("connection refused")
	})
	r := New(src, prompt.Defaults(), Options{})

	ev := r.GatherEvidence(context.Background(), "Some dispute", "federal")
	assert.False(t, ev.HasNDA)
	assert.Equal(t, trial.EvidenceModerate, ev.EvidenceStrength)
	assert.Equal(t, trial.VenueNeutral, ev.VenueBias)
	assert.Empty(t, ev.Facts)
	assert.Empty(t, ev.PlaintiffClaims)
}

func TestGatherEvidence_InvalidEnumsAndFactCap(t *testing.T) {
	src := sourceFunc(func(agentType, prompt string) (string, error) {
		return "```json\n" + `{"has_nda": true, "evidence_strength": "overwhelming", "venue_bias": "hostile",
"key_facts": ["a", "b", " ", "c", "d", "e", "f", "g"], "legal_issues": []}` + "\n```", nil
	})
	r := New(src, prompt.Defaults(), Options{})

	ev := r.GatherEvidence(context.Background(), "Some dispute", "federal")
	assert.True(t, ev.HasNDA)
	assert.Equal(t, trial.EvidenceModerate, ev.EvidenceStrength)
	assert.Equal(t, trial.VenueNeutral, ev.VenueBias)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, ev.Facts)
}

func TestFinders_TopFive(t *testing.T) {
	n := 0
	src := sourceFunc(func(agentType, prompt string) (string, error) {
		n++
		return `{"statutes":[{"title":"A","citation":"C` + string(rune('0'+n)) + `a"},{"title":"B","citation":"C` + string(rune('0'+n)) + `b"},{"title":"X","citation":"C` + string(rune('0'+n)) + `c"}]}`, nil
	})
	f := NewStatuteFinder(src, prompt.Defaults(), &fakeSearch{}, nil)

	got := f.Find(context.Background(), []string{"misappropriation", "non-compete", "ignored"})
	require.Len(t, got, 5)
	assert.Equal(t, "C1a", got[0].Citation)
	assert.Equal(t, "C1b", got[1].Citation)
	assert.Equal(t, "C3a", got[4].Citation)
}

func TestQueries(t *testing.T) {
	assert.Equal(t, []string{
		"DTSA Defend Trade Secrets Act requirements elements",
		"UTSA Uniform Trade Secrets Act provisions",
		"trade secret law a",
		"trade secret law b",
	}, statuteQueries([]string{"a", "b", "c"}))
	assert.Equal(t, []string{
		"trade secret misappropriation cases texas",
		"landmark trade secret cases federal circuit",
	}, precedentQueries(nil, "texas"))
}
