package montecarlo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"legal_simulation/pkg/core/export"
	"legal_simulation/pkg/core/trial"
)

const reportRationaleLimit = 200

type ResearchSummary struct {
	StatutesFound   int    `json:"statutes_found"`
	PrecedentsFound int    `json:"precedents_found"`
	KeyStatute      string `json:"key_statute,omitempty"`
	KeyPrecedent    string `json:"key_precedent,omitempty"`
}

type VerdictSummary struct {
	Winner     string        `json:"winner"`
	Outcome    trial.Outcome `json:"outcome"`
	Confidence float64       `json:"confidence"`
	KeyFactors []string      `json:"key_factors"`
	Rationale  string        `json:"rationale"`
}

// SimulationSummary is the archived form of one Result.
type SimulationSummary struct {
	SimulationID      int            `json:"simulation_id"`
	Variables         Variables      `json:"variables"`
	Verdict           VerdictSummary `json:"verdict"`
	NumProsecutorArgs int            `json:"num_prosecutor_args"`
	NumDefenseArgs    int            `json:"num_defense_args"`
	ExecutionTime     float64        `json:"execution_time"`
	Timestamp         time.Time      `json:"timestamp"`
	Error             string         `json:"error,omitempty"`
}

func Summarize(r Result) SimulationSummary {
	return SimulationSummary{
		SimulationID: r.SimulationID,
		Variables:    r.Variables,
		Verdict: VerdictSummary{
			Winner:     r.Verdict.Winner,
			Outcome:    r.Verdict.Outcome,
			Confidence: r.Verdict.ConfidenceScore,
			KeyFactors: r.Verdict.KeyFactors,
			Rationale:  truncate(r.Verdict.Rationale, reportRationaleLimit),
		},
		NumProsecutorArgs: len(r.ProsecutorArguments),
		NumDefenseArgs:    len(r.DefenseArguments),
		ExecutionTime:     r.ExecutionTime,
		Timestamp:         r.Timestamp,
		Error:             r.Metadata[MetaError],
	}
}

// Report is the archived record of a whole run.
type Report struct {
	MonteCarloID    string              `json:"monte_carlo_id"`
	CaseDescription string              `json:"case_description"`
	Jurisdiction    string              `json:"jurisdiction"`
	ResearchSummary ResearchSummary     `json:"research_summary"`
	Simulations     []SimulationSummary `json:"simulations"`
	Analysis        Analysis            `json:"analysis"`
	Timestamp       time.Time           `json:"timestamp"`
}

func BuildReport(monteCarloID string, ev trial.Evidence, results []Result, at time.Time) Report {
	rs := ResearchSummary{
		StatutesFound:   len(ev.Statutes),
		PrecedentsFound: len(ev.Precedents),
	}
	if len(ev.Statutes) > 0 {
		rs.KeyStatute = ev.Statutes[0].Citation
	}
	if len(ev.Precedents) > 0 {
		rs.KeyPrecedent = ev.Precedents[0].CaseName
	}
	sims := make([]SimulationSummary, len(results))
	for i, r := range results {
		sims[i] = Summarize(r)
	}
	return Report{
		MonteCarloID:    monteCarloID,
		CaseDescription: ev.CaseDescription,
		Jurisdiction:    ev.Jurisdiction,
		ResearchSummary: rs,
		Simulations:     sims,
		Analysis:        Analyze(results),
		Timestamp:       at,
	}
}

// Key is the storage key of the report.
func (r Report) Key() string {
	return fmt.Sprintf("monte_carlo/%s.json", r.MonteCarloID)
}

// SaveReport writes r as indented JSON and returns the storage path.
func SaveReport(ctx context.Context, s export.Storage, r Report) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}
	p, err := s.Put(ctx, r.Key(), "application/json", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to store report %s: %w", r.MonteCarloID, err)
	}
	return p, nil
}
