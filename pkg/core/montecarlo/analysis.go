package montecarlo

import (
	"math"
	"sort"

	"legal_simulation/pkg/core/trial"
)

// Factor impact keys. A key is present only when its partition is non-empty.
// The values are conditional plaintiff win rates, an indicative signal and
// not a causal estimate.
const (
	FactorShortDeparture       = "short_departure_time" // <= 3 months
	FactorLongDeparture        = "long_departure_time"  // > 6 months
	FactorDirectCompetitor     = "direct_competitor"
	FactorNoCompetition        = "no_competition"
	FactorHostileDefendant     = "hostile_defendant"
	FactorCooperativeDefendant = "cooperative_defendant"
)

// NDA impact keys, each present only when computable.
const (
	NDAWithWinRate    = "with_nda_win_rate"
	NDAWithoutWinRate = "without_nda_win_rate"
	NDADelta          = "nda_impact_delta"
)

type StrategyStats struct {
	Wins          int     `json:"wins"`
	Total         int     `json:"total"`
	WinRate       float64 `json:"win_rate"`
	AvgConfidence float64 `json:"avg_confidence"`
}

type TemperamentStats struct {
	PlaintiffWins int     `json:"wins_p"`
	DefenseWins   int     `json:"wins_d"`
	Total         int     `json:"total"`
	PlaintiffRate float64 `json:"plaintiff_rate"`
	DefenseRate   float64 `json:"defense_rate"`
}

type StrategyPerformance struct {
	Prosecutor map[trial.Strategy]StrategyStats       `json:"prosecutor"`
	Defense    map[trial.Strategy]StrategyStats       `json:"defense"`
	Judge      map[trial.Temperament]TemperamentStats `json:"judge"`
}

type VenueStats struct {
	Total            int     `json:"total"`
	PlaintiffWins    int     `json:"plaintiff_wins"`
	PlaintiffWinRate float64 `json:"plaintiff_win_rate"`
	DefenseWinRate   float64 `json:"defense_win_rate"`
}

type EvidenceStats struct {
	Total            int     `json:"total"`
	PlaintiffWins    int     `json:"plaintiff_wins"`
	PlaintiffWinRate float64 `json:"plaintiff_win_rate"`
	AvgConfidence    float64 `json:"avg_confidence"`
}

// Analysis is a view over a set of results. It holds no state beyond what
// Analyze derives from them.
type Analysis struct {
	TotalSimulations    int                                      `json:"total_simulations"`
	PlaintiffWins       int                                      `json:"plaintiff_wins"`
	DefenseWins         int                                      `json:"defense_wins"`
	Settlements         int                                      `json:"settlements"`
	FailedSimulations   int                                      `json:"failed_simulations"`
	AverageConfidence   float64                                  `json:"average_confidence"`
	ConfidenceStd       float64                                  `json:"confidence_std"`
	AverageExecTime     float64                                  `json:"execution_time_avg"`
	StrategyPerformance StrategyPerformance                      `json:"strategy_performance"`
	FactorImpact        map[string]float64                       `json:"factor_impact"`
	VenueImpact         map[trial.VenueBias]VenueStats           `json:"venue_impact"`
	EvidenceImpact      map[trial.EvidenceStrength]EvidenceStats `json:"evidence_impact"`
	NDAImpact           map[string]float64                       `json:"nda_impact"`
	BestPlaintiffConfig *Variables                               `json:"best_plaintiff_config"`
	BestDefenseConfig   *Variables                               `json:"best_defense_config"`
}

// PlaintiffWinRate is PlaintiffWins over the total, zero for an empty run.
func (a Analysis) PlaintiffWinRate() float64 {
	return rate(a.PlaintiffWins, a.TotalSimulations)
}

func (a Analysis) DefenseWinRate() float64 {
	return rate(a.DefenseWins, a.TotalSimulations)
}

// Analyze reduces results to an Analysis. Results are visited in
// simulation_id order whatever order they are passed in, so the output
// depends only on the set. Ties for the best configuration go to the
// lowest simulation_id.
func Analyze(results []Result) Analysis {
	a := Analysis{
		StrategyPerformance: StrategyPerformance{
			Prosecutor: map[trial.Strategy]StrategyStats{},
			Defense:    map[trial.Strategy]StrategyStats{},
			Judge:      map[trial.Temperament]TemperamentStats{},
		},
		FactorImpact:   map[string]float64{},
		VenueImpact:    map[trial.VenueBias]VenueStats{},
		EvidenceImpact: map[trial.EvidenceStrength]EvidenceStats{},
		NDAImpact:      map[string]float64{},
	}
	if len(results) == 0 {
		return a
	}

	ordered := make([]Result, len(results))
	copy(ordered, results)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].SimulationID < ordered[j].SimulationID
	})

	a.TotalSimulations = len(ordered)
	var confSum, execSum float64
	for _, r := range ordered {
		switch r.Verdict.Winner {
		case trial.WinnerPlaintiff:
			a.PlaintiffWins++
		case trial.WinnerDefendant:
			a.DefenseWins++
		case trial.WinnerSettlement:
			a.Settlements++
		}
		if r.Failed() {
			a.FailedSimulations++
		}
		confSum += r.Verdict.ConfidenceScore
		execSum += r.ExecutionTime
	}
	n := float64(a.TotalSimulations)
	a.AverageConfidence = confSum / n
	a.AverageExecTime = execSum / n

	var sq float64
	for _, r := range ordered {
		d := r.Verdict.ConfidenceScore - a.AverageConfidence
		sq += d * d
	}
	a.ConfidenceStd = math.Sqrt(sq / n)

	a.StrategyPerformance = strategyPerformance(ordered)
	a.FactorImpact = factorImpact(ordered)
	a.VenueImpact = venueImpact(ordered)
	a.EvidenceImpact = evidenceImpact(ordered)
	a.NDAImpact = ndaImpact(ordered)
	a.BestPlaintiffConfig = bestConfig(ordered, trial.WinnerPlaintiff)
	a.BestDefenseConfig = bestConfig(ordered, trial.WinnerDefendant)
	return a
}

func plaintiffWon(r Result) bool {
	return r.Verdict.Winner == trial.WinnerPlaintiff
}

func rate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total)
}

func strategyPerformance(results []Result) StrategyPerformance {
	type acc struct {
		wins, total int
		conf        float64
	}
	prosecutor := map[trial.Strategy]*acc{}
	defense := map[trial.Strategy]*acc{}
	judge := map[trial.Temperament]*TemperamentStats{}

	for _, r := range results {
		v := r.Variables
		c := r.Verdict.ConfidenceScore

		p := prosecutor[v.ProsecutorStrategy]
		if p == nil {
			p = &acc{}
			prosecutor[v.ProsecutorStrategy] = p
		}
		p.total++
		p.conf += c
		if plaintiffWon(r) {
			p.wins++
		}

		d := defense[v.DefenseStrategy]
		if d == nil {
			d = &acc{}
			defense[v.DefenseStrategy] = d
		}
		d.total++
		d.conf += c
		if r.Verdict.Winner == trial.WinnerDefendant {
			d.wins++
		}

		j := judge[v.JudgeTemperament]
		if j == nil {
			j = &TemperamentStats{}
			judge[v.JudgeTemperament] = j
		}
		j.Total++
		if plaintiffWon(r) {
			j.PlaintiffWins++
		} else {
			j.DefenseWins++
		}
	}

	out := StrategyPerformance{
		Prosecutor: make(map[trial.Strategy]StrategyStats, len(prosecutor)),
		Defense:    make(map[trial.Strategy]StrategyStats, len(defense)),
		Judge:      make(map[trial.Temperament]TemperamentStats, len(judge)),
	}
	for s, x := range prosecutor {
		out.Prosecutor[s] = StrategyStats{Wins: x.wins, Total: x.total, WinRate: rate(x.wins, x.total), AvgConfidence: x.conf / float64(x.total)}
	}
	for s, x := range defense {
		out.Defense[s] = StrategyStats{Wins: x.wins, Total: x.total, WinRate: rate(x.wins, x.total), AvgConfidence: x.conf / float64(x.total)}
	}
	for t, x := range judge {
		x.PlaintiffRate = rate(x.PlaintiffWins, x.Total)
		x.DefenseRate = rate(x.DefenseWins, x.Total)
		out.Judge[t] = *x
	}
	return out
}

func plaintiffRateWhere(results []Result, keep func(Variables) bool) (float64, bool) {
	wins, total := 0, 0
	for _, r := range results {
		if !keep(r.Variables) {
			continue
		}
		total++
		if plaintiffWon(r) {
			wins++
		}
	}
	return rate(wins, total), total > 0
}

func factorImpact(results []Result) map[string]float64 {
	partitions := []struct {
		key  string
		keep func(Variables) bool
	}{
		{FactorShortDeparture, func(v Variables) bool { return v.TimeSinceDeparture <= 3 }},
		{FactorLongDeparture, func(v Variables) bool { return v.TimeSinceDeparture > timeGapThresholdMonths }},
		{FactorDirectCompetitor, func(v Variables) bool { return v.CompetitorRelationship == CompetitorDirect }},
		{FactorNoCompetition, func(v Variables) bool { return v.CompetitorRelationship == CompetitorNone }},
		{FactorHostileDefendant, func(v Variables) bool { return v.DefendantCooperation == CooperationHostile }},
		{FactorCooperativeDefendant, func(v Variables) bool { return v.DefendantCooperation == CooperationCooperative }},
	}
	out := map[string]float64{}
	for _, p := range partitions {
		if r, ok := plaintiffRateWhere(results, p.keep); ok {
			out[p.key] = r
		}
	}
	return out
}

func venueImpact(results []Result) map[trial.VenueBias]VenueStats {
	out := map[trial.VenueBias]VenueStats{}
	for _, r := range results {
		s := out[r.Variables.VenueBias]
		s.Total++
		if plaintiffWon(r) {
			s.PlaintiffWins++
		}
		out[r.Variables.VenueBias] = s
	}
	for k, s := range out {
		s.PlaintiffWinRate = rate(s.PlaintiffWins, s.Total)
		s.DefenseWinRate = 1 - s.PlaintiffWinRate
		out[k] = s
	}
	return out
}

func evidenceImpact(results []Result) map[trial.EvidenceStrength]EvidenceStats {
	out := map[trial.EvidenceStrength]EvidenceStats{}
	conf := map[trial.EvidenceStrength]float64{}
	for _, r := range results {
		k := r.Variables.EvidenceStrength
		s := out[k]
		s.Total++
		if plaintiffWon(r) {
			s.PlaintiffWins++
		}
		conf[k] += r.Verdict.ConfidenceScore
		out[k] = s
	}
	for k, s := range out {
		s.PlaintiffWinRate = rate(s.PlaintiffWins, s.Total)
		s.AvgConfidence = conf[k] / float64(s.Total)
		out[k] = s
	}
	return out
}

func ndaImpact(results []Result) map[string]float64 {
	out := map[string]float64{}
	with, okWith := plaintiffRateWhere(results, func(v Variables) bool { return v.HasNDA })
	without, okWithout := plaintiffRateWhere(results, func(v Variables) bool { return !v.HasNDA })
	if okWith {
		out[NDAWithWinRate] = with
	}
	if okWithout {
		out[NDAWithoutWinRate] = without
	}
	if okWith && okWithout {
		out[NDADelta] = with - without
	}
	return out
}

// bestConfig is the argmax of indicator(winner == side) * confidence.
// Only a strictly greater score replaces the current best.
func bestConfig(results []Result, side string) *Variables {
	best := -1.0
	var cfg *Variables
	for _, r := range results {
		score := 0.0
		if r.Verdict.Winner == side {
			score = r.Verdict.ConfidenceScore
		}
		if score > best {
			best = score
			v := r.Variables
			cfg = &v
		}
	}
	return cfg
}
