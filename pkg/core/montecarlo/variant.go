package montecarlo

import (
	"fmt"
	"regexp"

	"legal_simulation/pkg/core/trial"
)

// Narrative entries appended to a variant by the auxiliary factors.
const (
	hostileDisputedFact    = "Defendant refuses to cooperate with discovery"
	cooperativeFact        = "Defendant has cooperated with investigation"
	timeGapClaimFormat     = "Significant time gap (%d months) weakens causation"
	noCompetitionClaim     = "Companies are not direct competitors"
	timeGapThresholdMonths = 6
)

var ndaMention = regexp.MustCompile(`(?i)\bnda\b|non-?disclosure`)

// DeriveVariant builds the evidence one trial argues from. The result
// shares no slice or map with base, and the same inputs always produce the
// same output.
func DeriveVariant(base trial.Evidence, v Variables) trial.Evidence {
	out := base.Clone()

	if v.NumStatutesCited < len(out.Statutes) {
		out.Statutes = out.Statutes[:max(v.NumStatutesCited, 0)]
	}
	if v.NumPrecedentsCited < len(out.Precedents) {
		out.Precedents = out.Precedents[:max(v.NumPrecedentsCited, 0)]
	}

	out.HasNDA = v.HasNDA
	out.EvidenceStrength = v.EvidenceStrength
	out.VenueBias = v.VenueBias

	// Without an NDA the base narrative must not keep asserting one.
	if !v.HasNDA {
		out.Facts = withoutNDA(out.Facts)
		out.PlaintiffClaims = withoutNDA(out.PlaintiffClaims)
	}

	switch v.DefendantCooperation {
	case CooperationHostile:
		out.DisputedFacts = append(out.DisputedFacts, hostileDisputedFact)
	case CooperationCooperative:
		out.Facts = append(out.Facts, cooperativeFact)
	}
	if v.TimeSinceDeparture > timeGapThresholdMonths {
		out.DefendantClaims = append(out.DefendantClaims, fmt.Sprintf(timeGapClaimFormat, v.TimeSinceDeparture))
	}
	if v.CompetitorRelationship == CompetitorNone {
		out.DefendantClaims = append(out.DefendantClaims, noCompetitionClaim)
	}
	return out
}

func withoutNDA(items []string) []string {
	if items == nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, s := range items {
		if !ndaMention.MatchString(s) {
			out = append(out, s)
		}
	}
	return out
}
