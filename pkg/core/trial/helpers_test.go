package trial

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"legal_simulation/pkg/core/completion"
	"legal_simulation/pkg/core/prompt"
)

type call struct {
	agent  string
	prompt string
	shape  completion.Shape
}

// fakeSource records every completion call and answers with respond.
type fakeSource struct {
	mu      sync.Mutex
	calls   []call
	respond func(agent, prompt string, shape completion.Shape) (string, error)
}

func (f *fakeSource) Service(agentType, systemPrompt string, temperature float64) completion.Service {
	return completion.ServiceFunc(func(ctx context.Context, p string, shape completion.Shape) (string, error) {
		f.mu.Lock()
		f.calls = append(f.calls, call{agent: agentType, prompt: p, shape: shape})
		n := len(f.calls)
		f.mu.Unlock()
		if f.respond != nil {
			return f.respond(agentType, p, shape)
		}
		return defaultResponse(agentType, n, shape), nil
	})
}

func (f *fakeSource) agents() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.agent
	}
	return out
}

func defaultResponse(agent string, n int, shape completion.Shape) string {
	if shape == completion.ShapeText {
		return fmt.Sprintf("%s reply %d", agent, n)
	}
	if agent == "judge" {
		return `{"winner":"plaintiff","rationale":"Proven.","key_factors":["NDA"],"cited_authorities":["DTSA"],"confidence_score":0.8}`
	}
	return fmt.Sprintf(`{"main_argument":"%s argument %d","key_points":["%s point %d"],"cited_statutes":["DTSA"],"cited_precedents":[],"conclusion":"done"}`, agent, n, agent, n)
}

func newRoles(src ServiceSource) (*Counsel, *Counsel, *Judge) {
	reg := prompt.Defaults()
	return NewProsecutor(src, reg, StrategyAggressive),
		NewDefense(src, reg, StrategyModerate),
		NewJudge(src, reg, TemperamentBalanced)
}

func sampleEvidence() Evidence {
	return Evidence{
		CaseDescription:  "A senior engineer downloaded design files before joining a competitor.",
		Jurisdiction:     "Federal",
		HasNDA:           true,
		EvidenceStrength: EvidenceStrong,
		VenueBias:        VenueNeutral,
		Statutes: []Statute{
			{Title: "Defend Trade Secrets Act", Citation: "18 U.S.C. § 1836", KeyProvisions: []string{"Civil action"}},
		},
		Precedents: []Precedent{
			{CaseName: "PepsiCo, Inc. v. Redmond", Year: "1995", Holding: "Injunction granted"},
		},
		Facts:           []string{"Files downloaded the week before departure"},
		PlaintiffClaims: []string{"Misappropriation of design files"},
		DefendantClaims: []string{"Files were never used"},
	}
}

func containsAll(s string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}

func newRegistry() *prompt.Registry {
	return prompt.Defaults()
}
