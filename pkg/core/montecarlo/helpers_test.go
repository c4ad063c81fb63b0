package montecarlo

import (
	"context"
	"sync/atomic"
	"time"

	"legal_simulation/pkg/core/agent"
	"legal_simulation/pkg/core/completion"
	"legal_simulation/pkg/core/llm"
	"legal_simulation/pkg/core/trial"
)

func scriptedManager() *agent.Manager {
	return agent.NewManager(agent.Config{ActiveProvider: "scripted"}, map[string]llm.Provider{
		"scripted": llm.NewScriptedProvider(),
	})
}

// sourceFunc answers every completion with the same function.
type sourceFunc func(ctx context.Context, agentType, prompt string) (string, error)

func (f sourceFunc) Service(agentType, systemPrompt string, temperature float64) completion.Service {
	return completion.ServiceFunc(func(ctx context.Context, prompt string, shape completion.Shape) (string, error) {
		return f(ctx, agentType, prompt)
	})
}

type countingResearch struct {
	calls atomic.Int32
	ev    trial.Evidence
}

func (c *countingResearch) GatherEvidence(ctx context.Context, description, jurisdiction string) trial.Evidence {
	c.calls.Add(1)
	ev := c.ev.Clone()
	ev.CaseDescription = description
	ev.Jurisdiction = jurisdiction
	return ev
}

const caseText = "A senior engineer downloaded design files before joining a competitor."

func baseEvidence() trial.Evidence {
	return trial.Evidence{
		CaseDescription:  caseText,
		Jurisdiction:     "federal",
		HasNDA:           true,
		EvidenceStrength: trial.EvidenceStrong,
		VenueBias:        trial.VenueNeutral,
		Statutes: []trial.Statute{
			{Title: "Defend Trade Secrets Act", Citation: "18 U.S.C. § 1836", Snippet: "Civil action for misappropriation"},
			{Title: "Uniform Trade Secrets Act", Citation: "UTSA § 1"},
			{Title: "California UTSA", Citation: "Cal. Civ. Code § 3426"},
			{Title: "Economic Espionage Act", Citation: "18 U.S.C. § 1832"},
		},
		Precedents: []trial.Precedent{
			{CaseName: "PepsiCo, Inc. v. Redmond", Year: "1995", Citation: "54 F.3d 1262", Holding: "Inevitable disclosure may justify an injunction"},
			{CaseName: "Waymo LLC v. Uber Technologies, Inc.", Year: "2018", Holding: "Bulk download supported preliminary relief"},
			{CaseName: "Ruckelshaus v. Monsanto Co.", Year: "1984", Holding: "Trade secrets are property"},
		},
		Facts: []string{
			"Engineer downloaded 14,000 files the week before leaving",
			"Engineer signed an NDA covering design documents",
		},
		PlaintiffClaims: []string{
			"Breach of the non-disclosure agreement",
			"Misappropriation of design files",
		},
		DefendantClaims: []string{"Files were part of ordinary work"},
		DisputedFacts:   []string{"Whether the files were used at the new employer"},
	}
}

func result(id int, winner string, conf float64, mutate func(*Variables)) Result {
	v := DefaultVariables()
	if mutate != nil {
		mutate(&v)
	}
	outcome := trial.OutcomeDefenseWin
	if winner == trial.WinnerPlaintiff {
		outcome = trial.OutcomePlaintiffWin
	}
	return Result{
		SimulationID: id,
		Variables:    v,
		Verdict: trial.Verdict{
			Winner:          winner,
			Outcome:         outcome,
			ConfidenceScore: conf,
			Rationale:       "Reasoned decision",
			KeyFactors:      []string{"NDA"},
		},
		ProsecutorArguments: []trial.LegalArgument{{AgentName: "Prosecutor", Type: trial.ArgumentOpening, MainArgument: "open"}},
		DefenseArguments:    []trial.LegalArgument{{AgentName: "Defense", Type: trial.ArgumentOpening, MainArgument: "deny"}},
		ExecutionTime:       1.5,
		Timestamp:           time.Date(2026, 3, 1, 12, 0, id, 0, time.UTC),
	}
}
