// Package montecarlo runs many trials of one case under randomized
// variables and reduces the results to win-rate statistics.
package montecarlo

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"legal_simulation/pkg/core/trial"
)

type Cooperation string

const (
	CooperationHostile     Cooperation = "hostile"
	CooperationModerate    Cooperation = "moderate"
	CooperationCooperative Cooperation = "cooperative"
)

type DamagesClaim string

const (
	DamagesMinimal   DamagesClaim = "minimal"
	DamagesModerate  DamagesClaim = "moderate"
	DamagesExtensive DamagesClaim = "extensive"
)

type CompetitorRelationship string

const (
	CompetitorDirect   CompetitorRelationship = "direct"
	CompetitorIndirect CompetitorRelationship = "indirect"
	CompetitorNone     CompetitorRelationship = "none"
)

// Randomization domains. Repeated entries weight the draw.
var (
	ndaDomain         = []bool{true, true, false}
	evidenceDomain    = []trial.EvidenceStrength{trial.EvidenceWeak, trial.EvidenceModerate, trial.EvidenceModerate, trial.EvidenceStrong}
	venueDomain       = []trial.VenueBias{trial.VenuePlaintiffFriendly, trial.VenueNeutral, trial.VenueNeutral, trial.VenueDefendantFriendly}
	cooperationDomain = []Cooperation{CooperationHostile, CooperationModerate, CooperationCooperative}
	damagesDomain     = []DamagesClaim{DamagesMinimal, DamagesModerate, DamagesExtensive}
	competitorDomain  = []CompetitorRelationship{CompetitorDirect, CompetitorDirect, CompetitorIndirect, CompetitorNone}
)

const (
	minCited         = 2
	maxCited         = 5
	minMonthsElapsed = 1
	maxMonthsElapsed = 12
)

// Variables are the knobs of one trial. They are built once and not
// changed afterwards.
type Variables struct {
	ProsecutorStrategy     trial.Strategy         `json:"prosecutor_strategy" bson:"prosecutor_strategy"`
	DefenseStrategy        trial.Strategy         `json:"defense_strategy" bson:"defense_strategy"`
	JudgeTemperament       trial.Temperament      `json:"judge_temperament" bson:"judge_temperament"`
	HasNDA                 bool                   `json:"has_nda" bson:"has_nda"`
	EvidenceStrength       trial.EvidenceStrength `json:"evidence_strength" bson:"evidence_strength"`
	VenueBias              trial.VenueBias        `json:"venue_bias" bson:"venue_bias"`
	NumStatutesCited       int                    `json:"num_statutes_cited" bson:"num_statutes_cited"`
	NumPrecedentsCited     int                    `json:"num_precedents_cited" bson:"num_precedents_cited"`
	DefendantCooperation   Cooperation            `json:"defendant_cooperation" bson:"defendant_cooperation"`
	PlaintiffDamagesClaim  DamagesClaim           `json:"plaintiff_damages_claim" bson:"plaintiff_damages_claim"`
	TimeSinceDeparture     int                    `json:"time_since_departure" bson:"time_since_departure"`
	CompetitorRelationship CompetitorRelationship `json:"competitor_relationship" bson:"competitor_relationship"`
}

func DefaultVariables() Variables {
	return Variables{
		ProsecutorStrategy:     trial.StrategyModerate,
		DefenseStrategy:        trial.StrategyModerate,
		JudgeTemperament:       trial.TemperamentBalanced,
		HasNDA:                 true,
		EvidenceStrength:       trial.EvidenceModerate,
		VenueBias:              trial.VenueNeutral,
		NumStatutesCited:       3,
		NumPrecedentsCited:     3,
		DefendantCooperation:   CooperationModerate,
		PlaintiffDamagesClaim:  DamagesModerate,
		TimeSinceDeparture:     3,
		CompetitorRelationship: CompetitorDirect,
	}
}

// RandomizeOptions pins groups of variables to their current values.
type RandomizeOptions struct {
	FixedStrategies bool `json:"fixed_strategies"`
	FixedEvidence   bool `json:"fixed_evidence"`
}

// Randomize returns a copy of v with every unpinned field drawn from its
// domain. The draw order is fixed, so a seeded rng reproduces a run.
func (v Variables) Randomize(rng *rand.Rand, opts RandomizeOptions) Variables {
	if !opts.FixedStrategies {
		v.ProsecutorStrategy = pick(rng, trial.Strategies)
		v.DefenseStrategy = pick(rng, trial.Strategies)
		v.JudgeTemperament = pick(rng, trial.Temperaments)
	}
	if !opts.FixedEvidence {
		v.HasNDA = pick(rng, ndaDomain)
		v.EvidenceStrength = pick(rng, evidenceDomain)
		v.VenueBias = pick(rng, venueDomain)
	}
	v.NumStatutesCited = minCited + rng.IntN(maxCited-minCited+1)
	v.NumPrecedentsCited = minCited + rng.IntN(maxCited-minCited+1)
	v.DefendantCooperation = pick(rng, cooperationDomain)
	v.PlaintiffDamagesClaim = pick(rng, damagesDomain)
	v.TimeSinceDeparture = minMonthsElapsed + rng.IntN(maxMonthsElapsed-minMonthsElapsed+1)
	v.CompetitorRelationship = pick(rng, competitorDomain)
	return v
}

func pick[T any](rng *rand.Rand, domain []T) T {
	return domain[rng.IntN(len(domain))]
}

// Validate reports every field outside its domain.
func (v Variables) Validate() error {
	var errs []error
	if !v.ProsecutorStrategy.Valid() {
		errs = append(errs, fmt.Errorf("prosecutor_strategy %q", v.ProsecutorStrategy))
	}
	if !v.DefenseStrategy.Valid() {
		errs = append(errs, fmt.Errorf("defense_strategy %q", v.DefenseStrategy))
	}
	if !v.JudgeTemperament.Valid() {
		errs = append(errs, fmt.Errorf("judge_temperament %q", v.JudgeTemperament))
	}
	if !v.EvidenceStrength.Valid() {
		errs = append(errs, fmt.Errorf("evidence_strength %q", v.EvidenceStrength))
	}
	if !v.VenueBias.Valid() {
		errs = append(errs, fmt.Errorf("venue_bias %q", v.VenueBias))
	}
	if v.NumStatutesCited < 0 || v.NumPrecedentsCited < 0 {
		errs = append(errs, errors.New("citation counts must not be negative"))
	}
	switch v.DefendantCooperation {
	case CooperationHostile, CooperationModerate, CooperationCooperative:
	default:
		errs = append(errs, fmt.Errorf("defendant_cooperation %q", v.DefendantCooperation))
	}
	switch v.PlaintiffDamagesClaim {
	case DamagesMinimal, DamagesModerate, DamagesExtensive:
	default:
		errs = append(errs, fmt.Errorf("plaintiff_damages_claim %q", v.PlaintiffDamagesClaim))
	}
	if v.TimeSinceDeparture < minMonthsElapsed || v.TimeSinceDeparture > maxMonthsElapsed {
		errs = append(errs, fmt.Errorf("time_since_departure %d outside [%d, %d]", v.TimeSinceDeparture, minMonthsElapsed, maxMonthsElapsed))
	}
	switch v.CompetitorRelationship {
	case CompetitorDirect, CompetitorIndirect, CompetitorNone:
	default:
		errs = append(errs, fmt.Errorf("competitor_relationship %q", v.CompetitorRelationship))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid simulation variables: %w", errors.Join(errs...))
	}
	return nil
}
