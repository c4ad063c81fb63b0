package montecarlo

import "time"

// MonteCarloID names a run by its start time, MC_YYYYMMDD_HHMMSS.
func MonteCarloID(t time.Time) string {
	return "MC_" + t.Format("20060102_150405")
}

// CaseID is the store case id shared by every document of a run.
func CaseID(monteCarloID string) string {
	return "CASE_" + monteCarloID
}
