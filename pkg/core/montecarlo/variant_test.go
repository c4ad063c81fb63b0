package montecarlo

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"legal_simulation/pkg/core/trial"
)

func TestDeriveVariant_TruncatesAndOverrides(t *testing.T) {
	base := baseEvidence()
	v := DefaultVariables()
	v.NumStatutesCited = 2
	v.NumPrecedentsCited = 5
	v.EvidenceStrength = trial.EvidenceWeak
	v.VenueBias = trial.VenuePlaintiffFriendly

	out := DeriveVariant(base, v)

	assert.Len(t, out.Statutes, 2)
	assert.Equal(t, "18 U.S.C. § 1836", out.Statutes[0].Citation)
	assert.Len(t, out.Precedents, 3, "counts above the available list keep everything")
	assert.Equal(t, trial.EvidenceWeak, out.EvidenceStrength)
	assert.Equal(t, trial.VenuePlaintiffFriendly, out.VenueBias)
	assert.Len(t, base.Statutes, 4)
}

func TestDeriveVariant_NarrativeFactors(t *testing.T) {
	v := DefaultVariables()
	v.DefendantCooperation = CooperationHostile
	v.TimeSinceDeparture = 9
	v.CompetitorRelationship = CompetitorNone

	out := DeriveVariant(baseEvidence(), v)
	assert.Equal(t, "Defendant refuses to cooperate with discovery", out.DisputedFacts[len(out.DisputedFacts)-1])
	assert.Contains(t, out.DefendantClaims, "Significant time gap (9 months) weakens causation")
	assert.Contains(t, out.DefendantClaims, "Companies are not direct competitors")
	assert.NotContains(t, out.Facts, cooperativeFact)

	v = DefaultVariables()
	v.DefendantCooperation = CooperationCooperative
	v.TimeSinceDeparture = 6
	out = DeriveVariant(baseEvidence(), v)
	assert.Contains(t, out.Facts, "Defendant has cooperated with investigation")
	assert.Equal(t, baseEvidence().DefendantClaims, out.DefendantClaims, "six months is not a significant gap")
	assert.Equal(t, baseEvidence().DisputedFacts, out.DisputedFacts)
}

func TestDeriveVariant_Deterministic(t *testing.T) {
	v := DefaultVariables()
	v.DefendantCooperation = CooperationHostile
	v.TimeSinceDeparture = 11
	a := DeriveVariant(baseEvidence(), v)
	b := DeriveVariant(baseEvidence(), v)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("variants differ (-first +second):\n%s", diff)
	}
}

func TestDeriveVariant_Isolation(t *testing.T) {
	base := baseEvidence()
	pristine := base.Clone()

	hostile := DefaultVariables()
	hostile.DefendantCooperation = CooperationHostile
	hostile.TimeSinceDeparture = 10
	hostile.NumStatutesCited = 2

	cooperative := DefaultVariables()
	cooperative.DefendantCooperation = CooperationCooperative
	cooperative.CompetitorRelationship = CompetitorNone
	cooperative.NumStatutesCited = 4

	a := DeriveVariant(base, hostile)
	b := DeriveVariant(base, cooperative)

	assert.NotContains(t, a.Facts, cooperativeFact)
	assert.NotContains(t, a.DefendantClaims, noCompetitionClaim)
	assert.NotContains(t, b.DisputedFacts, hostileDisputedFact)
	assert.NotContains(t, b.DefendantClaims, "Significant time gap (10 months) weakens causation")

	a.Facts[0] = "mutated"
	a.Statutes[0].KeyProvisions = append(a.Statutes[0].KeyProvisions, "mutated")
	assert.NotEqual(t, "mutated", b.Facts[0])

	if diff := cmp.Diff(pristine, base); diff != "" {
		t.Errorf("base evidence was mutated (-want +got):\n%s", diff)
	}
}

func TestDeriveVariant_WithoutNDADropsNDANarrative(t *testing.T) {
	v := DefaultVariables()
	v.HasNDA = false

	out := DeriveVariant(baseEvidence(), v)
	assert.False(t, out.HasNDA)
	assert.Equal(t, []string{"Engineer downloaded 14,000 files the week before leaving"}, out.Facts)
	assert.Equal(t, []string{"Misappropriation of design files"}, out.PlaintiffClaims)

	v.HasNDA = true
	out = DeriveVariant(baseEvidence(), v)
	assert.Contains(t, out.Facts, "Engineer signed an NDA covering design documents")
	assert.Contains(t, out.PlaintiffClaims, "Breach of the non-disclosure agreement")
}
