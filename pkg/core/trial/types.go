// Package trial models a trade-secret case and runs the adversarial
// protocol between prosecutor, defense and judge roles.
package trial

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNoEvidence     = errors.New("trial: evidence has no case description")
	ErrTrialCompleted = errors.New("trial: protocol already completed")
)

// Strategy is the litigation posture of counsel.
type Strategy string

const (
	StrategyAggressive   Strategy = "aggressive"
	StrategyModerate     Strategy = "moderate"
	StrategyConservative Strategy = "conservative"
)

var Strategies = []Strategy{StrategyAggressive, StrategyModerate, StrategyConservative}

func (s Strategy) Valid() bool {
	switch s {
	case StrategyAggressive, StrategyModerate, StrategyConservative:
		return true
	}
	return false
}

func ParseStrategy(s string) (Strategy, error) {
	v := Strategy(s)
	if !v.Valid() {
		return "", fmt.Errorf("invalid strategy %q: want aggressive, moderate or conservative", s)
	}
	return v, nil
}

// Temperament is the judge's disposition.
type Temperament string

const (
	TemperamentStrict   Temperament = "strict"
	TemperamentBalanced Temperament = "balanced"
	TemperamentLenient  Temperament = "lenient"
)

var Temperaments = []Temperament{TemperamentStrict, TemperamentBalanced, TemperamentLenient}

func (t Temperament) Valid() bool {
	switch t {
	case TemperamentStrict, TemperamentBalanced, TemperamentLenient:
		return true
	}
	return false
}

func ParseTemperament(s string) (Temperament, error) {
	v := Temperament(s)
	if !v.Valid() {
		return "", fmt.Errorf("invalid judge temperament %q: want strict, balanced or lenient", s)
	}
	return v, nil
}

type EvidenceStrength string

const (
	EvidenceWeak     EvidenceStrength = "weak"
	EvidenceModerate EvidenceStrength = "moderate"
	EvidenceStrong   EvidenceStrength = "strong"
)

func (e EvidenceStrength) Valid() bool {
	switch e {
	case EvidenceWeak, EvidenceModerate, EvidenceStrong:
		return true
	}
	return false
}

func ParseEvidenceStrength(s string) (EvidenceStrength, error) {
	v := EvidenceStrength(s)
	if !v.Valid() {
		return "", fmt.Errorf("invalid evidence strength %q: want weak, moderate or strong", s)
	}
	return v, nil
}

type VenueBias string

const (
	VenuePlaintiffFriendly VenueBias = "plaintiff-friendly"
	VenueNeutral           VenueBias = "neutral"
	VenueDefendantFriendly VenueBias = "defendant-friendly"
)

func (v VenueBias) Valid() bool {
	switch v {
	case VenuePlaintiffFriendly, VenueNeutral, VenueDefendantFriendly:
		return true
	}
	return false
}

func ParseVenueBias(s string) (VenueBias, error) {
	v := VenueBias(s)
	if !v.Valid() {
		return "", fmt.Errorf("invalid venue bias %q: want plaintiff-friendly, neutral or defendant-friendly", s)
	}
	return v, nil
}

// Side identifies a party at trial.
type Side string

const (
	SidePlaintiff Side = "plaintiff"
	SideDefense   Side = "defense"
)

type ArgumentType string

const (
	ArgumentOpening  ArgumentType = "opening"
	ArgumentRebuttal ArgumentType = "rebuttal"
	ArgumentClosing  ArgumentType = "closing"
)

type Outcome string

const (
	OutcomePlaintiffWin Outcome = "plaintiff_win"
	OutcomeDefenseWin   Outcome = "defense_win"
	OutcomeSettlement   Outcome = "settlement"
)

// Winner strings carried on a Verdict.
const (
	WinnerPlaintiff  = "plaintiff"
	WinnerDefendant  = "defendant"
	WinnerSettlement = "settlement"
)

type Statute struct {
	Title         string            `json:"title" bson:"title"`
	Citation      string            `json:"citation" bson:"citation"`
	Definitions   map[string]string `json:"definitions,omitempty" bson:"definitions,omitempty"`
	KeyProvisions []string          `json:"key_provisions" bson:"key_provisions"`
	Remedies      []string          `json:"remedies" bson:"remedies"`
	Snippet       string            `json:"snippet" bson:"snippet"`
	SourceURL     string            `json:"source_url,omitempty" bson:"source_url,omitempty"`
}

type Precedent struct {
	CaseName   string `json:"case_name" bson:"case_name"`
	Year       string `json:"year" bson:"year"`
	Citation   string `json:"citation" bson:"citation"`
	Court      string `json:"court" bson:"court"`
	CourtLevel string `json:"court_level" bson:"court_level"`
	Holding    string `json:"holding" bson:"holding"`
	Rule       string `json:"rule" bson:"rule"`
	Outcome    string `json:"outcome,omitempty" bson:"outcome,omitempty"`
	SourceURL  string `json:"source_url,omitempty" bson:"source_url,omitempty"`
}

// Evidence is the packet every participant argues from. A base packet is
// read-only once research completes; per-trial variants are Clones.
type Evidence struct {
	CaseDescription  string           `json:"case_description" bson:"case_description"`
	Jurisdiction     string           `json:"jurisdiction" bson:"jurisdiction"`
	HasNDA           bool             `json:"has_nda" bson:"has_nda"`
	EvidenceStrength EvidenceStrength `json:"evidence_strength" bson:"evidence_strength"`
	VenueBias        VenueBias        `json:"venue_bias" bson:"venue_bias"`
	Statutes         []Statute        `json:"statutes" bson:"statutes"`
	Precedents       []Precedent      `json:"precedents" bson:"precedents"`
	Facts            []string         `json:"facts" bson:"facts"`
	Documents        []string         `json:"documents,omitempty" bson:"documents,omitempty"`
	PlaintiffClaims  []string         `json:"plaintiff_claims" bson:"plaintiff_claims"`
	DefendantClaims  []string         `json:"defendant_claims" bson:"defendant_claims"`
	DisputedFacts    []string         `json:"disputed_facts" bson:"disputed_facts"`
}

type LegalArgument struct {
	AgentName       string       `json:"agent_name" bson:"agent_name"`
	Type            ArgumentType `json:"argument_type" bson:"argument_type"`
	MainArgument    string       `json:"main_argument" bson:"main_argument"`
	CitedStatutes   []string     `json:"cited_statutes" bson:"cited_statutes"`
	CitedPrecedents []string     `json:"cited_precedents" bson:"cited_precedents"`
	KeyPoints       []string     `json:"key_points" bson:"key_points"`
	Conclusion      string       `json:"conclusion" bson:"conclusion"`
	Timestamp       time.Time    `json:"timestamp" bson:"timestamp"`
}

type Verdict struct {
	Outcome          Outcome   `json:"outcome" bson:"outcome"`
	Winner           string    `json:"winner" bson:"winner"`
	Rationale        string    `json:"rationale" bson:"rationale"`
	KeyFactors       []string  `json:"key_factors" bson:"key_factors"`
	CitedAuthorities []string  `json:"cited_authorities" bson:"cited_authorities"`
	ConfidenceScore  float64   `json:"confidence_score" bson:"confidence_score"`
	Timestamp        time.Time `json:"timestamp" bson:"timestamp"`
}

// Message is one entry of a chat-style courtroom transcript.
type Message struct {
	AgentName string                 `json:"agent_name" bson:"agent_name"`
	Role      string                 `json:"role" bson:"role"`
	Content   string                 `json:"content" bson:"content"`
	Timestamp time.Time              `json:"timestamp" bson:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty" bson:"metadata,omitempty"`
}
