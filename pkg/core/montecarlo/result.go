package montecarlo

import (
	"fmt"
	"time"

	"legal_simulation/pkg/core/trial"
)

// MetaError is the metadata key marking a synthesized failure result.
const MetaError = "error"

// Result is the outcome of one trial. SimulationID is its 1-based position
// in the run.
type Result struct {
	SimulationID        int                   `json:"simulation_id"`
	Variables           Variables             `json:"variables"`
	Verdict             trial.Verdict         `json:"verdict"`
	ProsecutorArguments []trial.LegalArgument `json:"prosecutor_arguments"`
	DefenseArguments    []trial.LegalArgument `json:"defense_arguments"`
	ExecutionTime       float64               `json:"execution_time"` // seconds
	Timestamp           time.Time             `json:"timestamp"`
	Metadata            map[string]string     `json:"metadata,omitempty"`
}

// Failed reports whether the trial crashed and r was synthesized.
func (r Result) Failed() bool {
	_, ok := r.Metadata[MetaError]
	return ok
}

// failureResult stands in for a trial that did not finish: the defense
// wins with zero confidence and the error is kept in the metadata.
func failureResult(id int, v Variables, err error, at time.Time) Result {
	msg := err.Error()
	return Result{
		SimulationID: id,
		Variables:    v,
		Verdict: trial.Verdict{
			Outcome:          trial.OutcomeDefenseWin,
			Winner:           trial.WinnerDefendant,
			Rationale:        fmt.Sprintf("Simulation error: %s", msg),
			KeyFactors:       []string{"Error in simulation"},
			CitedAuthorities: []string{},
			ConfidenceScore:  0,
			Timestamp:        at,
		},
		ProsecutorArguments: []trial.LegalArgument{},
		DefenseArguments:    []trial.LegalArgument{},
		Timestamp:           at,
		Metadata:            map[string]string{MetaError: msg},
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
