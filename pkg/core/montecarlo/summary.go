package montecarlo

import (
	"fmt"
	"io"
	"strings"

	"legal_simulation/pkg/core/trial"
)

var (
	evidenceOrder = []trial.EvidenceStrength{trial.EvidenceWeak, trial.EvidenceModerate, trial.EvidenceStrong}
	venueOrder    = []trial.VenueBias{trial.VenuePlaintiffFriendly, trial.VenueNeutral, trial.VenueDefendantFriendly}
	factorOrder   = []string{
		FactorShortDeparture, FactorLongDeparture,
		FactorDirectCompetitor, FactorNoCompetition,
		FactorHostileDefendant, FactorCooperativeDefendant,
	}
)

func pct(f float64) string {
	return fmt.Sprintf("%.1f%%", f*100)
}

// FormatSummary writes a human-readable report of a.
func FormatSummary(w io.Writer, a Analysis) error {
	var b strings.Builder
	rule := strings.Repeat("=", 60)
	fmt.Fprintf(&b, "\n%s\nMONTE CARLO SIMULATION ANALYSIS\n%s\n\n", rule, rule)

	fmt.Fprintf(&b, "Total Simulations: %d\n", a.TotalSimulations)
	fmt.Fprintf(&b, "Plaintiff Wins: %d (%s)\n", a.PlaintiffWins, pct(a.PlaintiffWinRate()))
	fmt.Fprintf(&b, "Defense Wins: %d (%s)\n", a.DefenseWins, pct(a.DefenseWinRate()))
	if a.Settlements > 0 {
		fmt.Fprintf(&b, "Settlements: %d\n", a.Settlements)
	}
	if a.FailedSimulations > 0 {
		fmt.Fprintf(&b, "Failed Simulations: %d\n", a.FailedSimulations)
	}
	fmt.Fprintf(&b, "Average Confidence: %s (σ=%s)\n", pct(a.AverageConfidence), pct(a.ConfidenceStd))
	fmt.Fprintf(&b, "Average Execution Time: %.2fs\n", a.AverageExecTime)

	b.WriteString("\nSTRATEGY PERFORMANCE\n")
	b.WriteString("Prosecutor Strategies:\n")
	for _, s := range trial.Strategies {
		if st, ok := a.StrategyPerformance.Prosecutor[s]; ok {
			fmt.Fprintf(&b, "  %-13s %s win rate, avg confidence %s (n=%d)\n", s, pct(st.WinRate), pct(st.AvgConfidence), st.Total)
		}
	}
	b.WriteString("Defense Strategies:\n")
	for _, s := range trial.Strategies {
		if st, ok := a.StrategyPerformance.Defense[s]; ok {
			fmt.Fprintf(&b, "  %-13s %s win rate, avg confidence %s (n=%d)\n", s, pct(st.WinRate), pct(st.AvgConfidence), st.Total)
		}
	}
	b.WriteString("Judge Temperaments:\n")
	for _, t := range trial.Temperaments {
		if st, ok := a.StrategyPerformance.Judge[t]; ok {
			fmt.Fprintf(&b, "  %-13s plaintiff %s, defense %s (n=%d)\n", t, pct(st.PlaintiffRate), pct(st.DefenseRate), st.Total)
		}
	}

	if len(a.FactorImpact) > 0 {
		b.WriteString("\nFACTOR IMPACT (plaintiff win rate)\n")
		for _, k := range factorOrder {
			if r, ok := a.FactorImpact[k]; ok {
				fmt.Fprintf(&b, "  %-22s %s\n", k, pct(r))
			}
		}
	}

	b.WriteString("\nEVIDENCE STRENGTH IMPACT\n")
	for _, e := range evidenceOrder {
		if st, ok := a.EvidenceImpact[e]; ok {
			fmt.Fprintf(&b, "  %-9s %s plaintiff win rate, avg confidence %s (n=%d)\n", e, pct(st.PlaintiffWinRate), pct(st.AvgConfidence), st.Total)
		}
	}

	if len(a.NDAImpact) > 0 {
		b.WriteString("\nNDA IMPACT\n")
		if r, ok := a.NDAImpact[NDAWithWinRate]; ok {
			fmt.Fprintf(&b, "  With NDA:    %s plaintiff win rate\n", pct(r))
		}
		if r, ok := a.NDAImpact[NDAWithoutWinRate]; ok {
			fmt.Fprintf(&b, "  Without NDA: %s plaintiff win rate\n", pct(r))
		}
		if d, ok := a.NDAImpact[NDADelta]; ok {
			fmt.Fprintf(&b, "  Delta:       %+.1f%%\n", d*100)
		}
	}

	b.WriteString("\nVENUE IMPACT\n")
	for _, v := range venueOrder {
		if st, ok := a.VenueImpact[v]; ok {
			fmt.Fprintf(&b, "  %-18s plaintiff %s, defense %s (n=%d)\n", v, pct(st.PlaintiffWinRate), pct(st.DefenseWinRate), st.Total)
		}
	}

	if a.BestPlaintiffConfig != nil || a.BestDefenseConfig != nil {
		b.WriteString("\nBEST CONFIGURATIONS\n")
		if a.BestPlaintiffConfig != nil {
			fmt.Fprintf(&b, "  Plaintiff: %s\n", describe(*a.BestPlaintiffConfig))
		}
		if a.BestDefenseConfig != nil {
			fmt.Fprintf(&b, "  Defense:   %s\n", describe(*a.BestDefenseConfig))
		}
	}
	b.WriteString(rule + "\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func describe(v Variables) string {
	return fmt.Sprintf("prosecutor=%s defense=%s judge=%s nda=%t evidence=%s venue=%s",
		v.ProsecutorStrategy, v.DefenseStrategy, v.JudgeTemperament, v.HasNDA, v.EvidenceStrength, v.VenueBias)
}

// KeyFindings condenses a into the sentences stored on the run's research
// document.
func KeyFindings(a Analysis) []string {
	findings := []string{
		fmt.Sprintf("Plaintiff win rate: %d/%d (%s)", a.PlaintiffWins, a.TotalSimulations, pct(a.PlaintiffWinRate())),
		fmt.Sprintf("Defense win rate: %d/%d (%s)", a.DefenseWins, a.TotalSimulations, pct(a.DefenseWinRate())),
		fmt.Sprintf("Average confidence: %s", pct(a.AverageConfidence)),
	}
	if s, ok := bestStrategy(a.StrategyPerformance.Prosecutor); ok {
		findings = append(findings, "Best prosecutor strategy: "+string(s))
	}
	if s, ok := bestStrategy(a.StrategyPerformance.Defense); ok {
		findings = append(findings, "Best defense strategy: "+string(s))
	}
	if d, ok := a.NDAImpact[NDADelta]; ok {
		findings = append(findings, fmt.Sprintf("NDA impact: %.1f%% increase in plaintiff wins", d*100))
	}
	return findings
}

// bestStrategy picks the highest win rate; ties keep the earlier strategy.
func bestStrategy(stats map[trial.Strategy]StrategyStats) (trial.Strategy, bool) {
	var best trial.Strategy
	found := false
	for _, s := range trial.Strategies {
		st, ok := stats[s]
		if !ok {
			continue
		}
		if !found || st.WinRate > stats[best].WinRate {
			best, found = s, true
		}
	}
	return best, found
}
