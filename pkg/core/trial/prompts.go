package trial

import (
	"fmt"
	"strings"
)

var prosecutorStrategyPrompts = map[Strategy]string{
	StrategyAggressive: `You are an aggressive prosecutor arguing for trade secret misappropriation.
You emphasize every piece of evidence strongly, cite the maximum number of precedents and push for the
harshest remedies. You interpret facts in the light most favorable to the plaintiff.`,
	StrategyModerate: `You are a balanced prosecutor arguing for trade secret misappropriation.
You present evidence fairly but firmly, cite relevant precedents appropriately and seek
reasonable remedies. You focus on the strongest aspects of your case.`,
	StrategyConservative: `You are a cautious prosecutor arguing for trade secret misappropriation.
You focus only on the most clear-cut evidence, cite only the most directly relevant precedents
and seek modest remedies. You acknowledge weaknesses while emphasizing strengths.`,
}

const prosecutorInstructions = `

When making arguments:
1. Always cite specific statutes (e.g., DTSA, UTSA) and their relevant provisions
2. Reference case precedents with full citations
3. Connect facts directly to legal standards
4. Address burden of proof requirements
5. Propose specific remedies and damages`

var defenseStrategyPrompts = map[Strategy]string{
	StrategyAggressive: `You are an aggressive defense attorney fighting trade secret claims.
You challenge every piece of evidence vigorously, distinguish all precedents and argue
for complete dismissal. You emphasize lack of proof, procedural failures and alternative explanations.`,
	StrategyModerate: `You are a balanced defense attorney defending against trade secret claims.
You reasonably challenge weak evidence, distinguish unfavorable precedents where appropriate
and seek fair outcomes. You focus on genuine weaknesses in the plaintiff's case.`,
	StrategyConservative: `You are a measured defense attorney handling trade secret claims.
You acknowledge strong evidence while highlighting gaps, seek to narrow claims rather than
dismiss them entirely and propose reasonable settlements where appropriate.`,
}

const defenseInstructions = `

When making defense arguments:
1. Challenge whether the information qualifies as a trade secret
2. Question whether reasonable measures were taken to protect it
3. Dispute misappropriation or improper acquisition
4. Highlight missing elements of the statutory requirements
5. Cite precedents where similar claims failed
6. Propose alternative explanations for the defendant's actions`

var judgeTemperamentPrompts = map[Temperament]string{
	TemperamentStrict: `You are a strict federal judge who applies the law rigorously.
You require strong evidence and clear statutory violations. You rarely show leniency
and focus heavily on precedent and statutory text.`,
	TemperamentBalanced: `You are a fair and balanced judge who weighs all arguments carefully.
You consider both statutory requirements and equitable factors. You apply the law
consistently while considering the specific circumstances of each case.`,
	TemperamentLenient: `You are a judge who considers broader equitable factors.
While you apply the law, you also consider fairness, good faith efforts and
proportionality in your decisions. You may show flexibility in close cases.`,
}

const judgeInstructions = `

When evaluating cases:
1. Apply the preponderance of the evidence standard for civil claims
2. Apply the statutory requirements systematically
3. Weigh precedential value appropriately
4. Evaluate the credibility and strength of the evidence
5. Provide clear reasoning for the decision

Your verdict must be based on law and evidence, not speculation.`

func counselSystemPrompt(side Side, s Strategy) string {
	if side == SidePlaintiff {
		return prosecutorStrategyPrompts[s] + prosecutorInstructions
	}
	return defenseStrategyPrompts[s] + defenseInstructions
}

func judgeSystemPrompt(t Temperament) string {
	return judgeTemperamentPrompts[t] + judgeInstructions
}

func writeFactors(b *strings.Builder, ev Evidence) {
	fmt.Fprintf(b, "- NDA Present: %t\n", ev.HasNDA)
	fmt.Fprintf(b, "- Evidence Strength: %s\n", ev.EvidenceStrength)
	fmt.Fprintf(b, "- Venue: %s\n", ev.VenueBias)
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}

func factorsText(ev Evidence) string {
	var b strings.Builder
	writeFactors(&b, ev)
	return strings.TrimRight(b.String(), "\n")
}

func prosecutorSummary(ev Evidence) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CASE: %s\nJURISDICTION: %s\n\nKEY FACTORS:\n", ev.CaseDescription, ev.Jurisdiction)
	writeFactors(&b, ev)

	b.WriteString("\nAPPLICABLE STATUTES:\n")
	for _, s := range firstStatutes(ev.Statutes, 3) {
		fmt.Fprintf(&b, "- %s: %s\n", s.Citation, s.Title)
		if len(s.KeyProvisions) > 0 {
			fmt.Fprintf(&b, "  Key provisions: %s\n", strings.Join(firstStrings(s.KeyProvisions, 2), ", "))
		}
	}

	b.WriteString("\nRELEVANT PRECEDENTS:\n")
	for _, p := range firstPrecedents(ev.Precedents, 3) {
		fmt.Fprintf(&b, "- %s (%s): %s\n", p.CaseName, p.Year, truncate(p.Holding, 150))
	}

	writeList(&b, "KEY FACTS", firstStrings(ev.Facts, 5))
	writeList(&b, "PLAINTIFF CLAIMS", ev.PlaintiffClaims)
	return b.String()
}

func defenseSummary(ev Evidence) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CASE: %s\n\nFAVORABLE DEFENSE FACTORS:\n", ev.CaseDescription)
	nda := ""
	if !ev.HasNDA {
		nda = " (no contractual obligation)"
	}
	strength := ""
	if ev.EvidenceStrength != EvidenceStrong {
		strength = " (insufficient for the burden of proof)"
	}
	venue := ""
	if ev.VenueBias == VenueDefendantFriendly {
		venue = " (favorable to the defense)"
	}
	fmt.Fprintf(&b, "- NDA Present: %t%s\n", ev.HasNDA, nda)
	fmt.Fprintf(&b, "- Evidence Strength: %s%s\n", ev.EvidenceStrength, strength)
	fmt.Fprintf(&b, "- Venue: %s%s\n", ev.VenueBias, venue)

	b.WriteString(`
PLAINTIFF MUST PROVE:
1. The information qualifies as a trade secret
2. Reasonable measures were taken to maintain secrecy
3. Misappropriation occurred
4. Damages resulted
`)

	var favorable []string
	for _, p := range ev.Precedents {
		h := strings.ToLower(p.Holding)
		if strings.Contains(h, "dismiss") || strings.Contains(h, "fail") {
			favorable = append(favorable, fmt.Sprintf("%s: %s", p.CaseName, truncate(p.Holding, 100)))
		}
	}
	writeList(&b, "DEFENSIVE PRECEDENTS TO CONSIDER", favorable)
	writeList(&b, "DEFENDANT'S POSITION", ev.DefendantClaims)
	writeList(&b, "DISPUTED FACTS", ev.DisputedFacts)
	return b.String()
}

func judgeSummary(prosecutor, defense []LegalArgument, ev Evidence) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CASE: %s\nJURISDICTION: %s\n\nCASE FACTORS:\n", ev.CaseDescription, ev.Jurisdiction)
	writeFactors(&b, ev)

	b.WriteString("\nPROSECUTOR'S ARGUMENTS:\n")
	for _, arg := range prosecutor {
		fmt.Fprintf(&b, "\n%s:\n%s\n", strings.ToUpper(string(arg.Type)), arg.MainArgument)
		if len(arg.CitedStatutes) > 0 {
			fmt.Fprintf(&b, "Statutes cited: %s\n", strings.Join(firstStrings(arg.CitedStatutes, 3), ", "))
		}
		if len(arg.CitedPrecedents) > 0 {
			fmt.Fprintf(&b, "Precedents cited: %s\n", strings.Join(firstStrings(arg.CitedPrecedents, 3), ", "))
		}
	}

	b.WriteString("\nDEFENSE ARGUMENTS:\n")
	for _, arg := range defense {
		fmt.Fprintf(&b, "\n%s:\n%s\n", strings.ToUpper(string(arg.Type)), arg.MainArgument)
		if len(arg.KeyPoints) > 0 {
			fmt.Fprintf(&b, "Key points: %s\n", strings.Join(firstStrings(arg.KeyPoints, 3), "; "))
		}
	}

	writeList(&b, "DEFENDANT CLAIMS", ev.DefendantClaims)
	writeList(&b, "DISPUTED FACTS", ev.DisputedFacts)

	if len(ev.Statutes) > 0 {
		b.WriteString("\nAPPLICABLE LAW:\n")
		for _, s := range firstStatutes(ev.Statutes, 2) {
			provision := s.Title
			if len(s.KeyProvisions) > 0 {
				provision = s.KeyProvisions[0]
			}
			fmt.Fprintf(&b, "- %s: %s\n", s.Citation, provision)
		}
	}
	if len(ev.Precedents) > 0 {
		b.WriteString("\nKEY PRECEDENTS:\n")
		for _, p := range firstPrecedents(ev.Precedents, 2) {
			fmt.Fprintf(&b, "- %s (%s): %s\n", p.CaseName, p.Year, truncate(p.Holding, 100))
		}
	}
	return b.String()
}

func firstStrings(in []string, n int) []string {
	if len(in) > n {
		return in[:n]
	}
	return in
}

func firstStatutes(in []Statute, n int) []Statute {
	if len(in) > n {
		return in[:n]
	}
	return in
}

func firstPrecedents(in []Precedent, n int) []Precedent {
	if len(in) > n {
		return in[:n]
	}
	return in
}
